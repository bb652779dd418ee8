package ports

// FileSystem writes conversion outputs, summaries and debug artifacts.
type FileSystem interface {
	// WriteFile replaces path with data, creating parent directories.
	WriteFile(path string, data []byte) error

	// MkdirAll creates a directory and all parent directories.
	MkdirAll(path string) error
}
