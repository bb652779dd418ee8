// Package nullsink provides a debug sink that discards everything.
package nullsink

import (
	"image"

	"github.com/user/vidloop/pkg/ports"
)

// Sink is a no-op implementation of ports.DebugSink.
type Sink struct{}

// New creates a new Sink.
func New() *Sink {
	return &Sink{}
}

// Enabled returns false so callers skip building debug output.
func (s *Sink) Enabled() bool {
	return false
}

func (s *Sink) SaveFrame(index int, img image.Image) error { return nil }

func (s *Sink) SaveReportJSON(data []byte) error { return nil }

func (s *Sink) SaveHistoryJSON(data []byte) error { return nil }

var _ ports.DebugSink = (*Sink)(nil)
