package ports

// SessionStorage is key/value string storage cleared at session end.
type SessionStorage interface {
	// Get returns the value and whether the key exists.
	Get(key string) (string, bool, error)

	// Set stores the value.
	Set(key, value string) error

	// Delete removes the key. Missing keys are not an error.
	Delete(key string) error
}
