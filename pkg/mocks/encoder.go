package mocks

import (
	"context"
	"sync"

	"github.com/user/vidloop/pkg/pipeline"
	"github.com/user/vidloop/pkg/ports"
)

// Encoder is a mock implementation of ports.Encoder.
type Encoder struct {
	NameValue string
	Caps      pipeline.EncoderCapabilities
	Available bool

	IsAvailableFunc func(ctx context.Context) bool
	EncodeFunc      func(ctx context.Context, frames []pipeline.Frame, opts ports.EncodeOptions) ([]byte, error)

	mu sync.Mutex

	// Recorded calls for verification
	AvailabilityChecks int
	EncodeCalls        []EncodeCall
	DisposeCalled      bool
}

// EncodeCall records a call to Encode.
type EncodeCall struct {
	Frames int
	Opts   ports.EncodeOptions
}

// NewEncoder creates an available mock encoder for the given formats.
func NewEncoder(name string, score float64, formats ...pipeline.OutputFormat) *Encoder {
	return &Encoder{
		NameValue: name,
		Caps: pipeline.EncoderCapabilities{
			Formats:          formats,
			PerformanceScore: score,
		},
		Available: true,
	}
}

func (m *Encoder) Name() string { return m.NameValue }

func (m *Encoder) Capabilities() pipeline.EncoderCapabilities { return m.Caps }

func (m *Encoder) IsAvailable(ctx context.Context) bool {
	m.mu.Lock()
	m.AvailabilityChecks++
	m.mu.Unlock()
	if m.IsAvailableFunc != nil {
		return m.IsAvailableFunc(ctx)
	}
	return m.Available
}

func (m *Encoder) Encode(ctx context.Context, frames []pipeline.Frame, opts ports.EncodeOptions) ([]byte, error) {
	m.mu.Lock()
	m.EncodeCalls = append(m.EncodeCalls, EncodeCall{Frames: len(frames), Opts: opts})
	m.mu.Unlock()
	if m.EncodeFunc != nil {
		return m.EncodeFunc(ctx, frames, opts)
	}
	if opts.OnProgress != nil {
		opts.OnProgress(len(frames), len(frames))
	}
	// GIF89a header
	return []byte("GIF89a"), nil
}

func (m *Encoder) Dispose() error {
	m.DisposeCalled = true
	return nil
}

// Calls returns the number of Encode calls.
func (m *Encoder) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.EncodeCalls)
}

var _ ports.Encoder = (*Encoder)(nil)
