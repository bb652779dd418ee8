package summarizer

import (
	"fmt"

	"github.com/user/vidloop/pkg/ports"
)

// Writer renders summaries through a Formatter into files.
type Writer struct {
	formatter Formatter
	fs        ports.FileSystem
}

func NewWriter(formatter Formatter, fs ports.FileSystem) *Writer {
	return &Writer{formatter: formatter, fs: fs}
}

// Write renders s to path. The file system creates missing parent directories.
func (w *Writer) Write(path string, s *Summary) error {
	if err := w.fs.WriteFile(path, []byte(w.formatter.Format(s))); err != nil {
		return fmt.Errorf("write summary %s: %w", path, err)
	}
	return nil
}
