package logger

import "github.com/user/vidloop/pkg/ports"

// Noop drops every message. The CLI uses it for --quiet; library callers
// that only want Callbacks pass it to vidloop.New.
type Noop struct{}

// NewNoop returns the discarding logger.
func NewNoop() ports.Logger {
	return Noop{}
}

func (Noop) Debug(string, ...interface{}) {}
func (Noop) Info(string, ...interface{})  {}
func (Noop) Warn(string, ...interface{})  {}
func (Noop) Error(string, ...interface{}) {}

// WithComponent ignores the component, so capture, encode and workerpool
// loggers derived from a Noop stay silent too.
func (n Noop) WithComponent(string) ports.Logger {
	return n
}

var _ ports.Logger = Noop{}
