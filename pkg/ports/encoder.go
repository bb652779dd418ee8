package ports

import (
	"context"

	"github.com/user/vidloop/pkg/pipeline"
)

// Encoder is a pluggable back-end that turns frames into an output blob.
type Encoder interface {
	// Name identifies the encoder in the registry and in history records.
	Name() string

	// Capabilities returns the static capability description.
	Capabilities() pipeline.EncoderCapabilities

	// IsAvailable probes whether the encoder can run in this environment.
	IsAvailable(ctx context.Context) bool

	// Encode encodes the frames. Implementations must stop and release
	// any worker or process when ctx is done.
	Encode(ctx context.Context, frames []pipeline.Frame, opts EncodeOptions) ([]byte, error)

	// Dispose releases long-lived resources.
	Dispose() error
}

// EncodeOptions configures a single Encode call.
type EncodeOptions struct {
	Format  pipeline.OutputFormat
	Width   int
	Height  int
	FPS     float64
	Quality pipeline.QualityTier

	// OnProgress is called with the number of frames processed so far.
	OnProgress func(done, total int)

	// ShouldCancel is polled between frames.
	ShouldCancel func() bool
}
