// Package filesink writes debug output of a conversion run to a directory.
package filesink

import (
	"fmt"
	"image"
	"path/filepath"
	"sync"

	"github.com/user/vidloop/pkg/ports"
)

// Sink saves debug output to files:
//
//	<dir>/frames/frame-0000.png
//	<dir>/report.json
//	<dir>/history.json
type Sink struct {
	baseDir  string
	fs       ports.FileSystem
	renderer ports.Renderer

	once     sync.Once
	frameErr error
}

// New creates a new Sink.
func New(baseDir string, fs ports.FileSystem, renderer ports.Renderer) *Sink {
	return &Sink{
		baseDir:  baseDir,
		fs:       fs,
		renderer: renderer,
	}
}

// Enabled returns true as this sink saves output.
func (s *Sink) Enabled() bool {
	return true
}

// SaveFrame saves a captured frame as PNG.
func (s *Sink) SaveFrame(index int, img image.Image) error {
	dir := filepath.Join(s.baseDir, "frames")
	s.once.Do(func() {
		s.frameErr = s.fs.MkdirAll(dir)
	})
	if s.frameErr != nil {
		return s.frameErr
	}
	data, err := s.renderer.EncodeImage(img, ports.FormatPNG, 0)
	if err != nil {
		return fmt.Errorf("encode frame %d: %w", index, err)
	}
	return s.fs.WriteFile(filepath.Join(dir, fmt.Sprintf("frame-%04d.png", index)), data)
}

// SaveReportJSON saves the run report.
func (s *Sink) SaveReportJSON(data []byte) error {
	return s.fs.WriteFile(filepath.Join(s.baseDir, "report.json"), data)
}

// SaveHistoryJSON saves the strategy history snapshot.
func (s *Sink) SaveHistoryJSON(data []byte) error {
	return s.fs.WriteFile(filepath.Join(s.baseDir, "history.json"), data)
}

// Ensure Sink implements ports.DebugSink
var _ ports.DebugSink = (*Sink)(nil)
