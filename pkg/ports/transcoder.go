package ports

import (
	"context"

	"github.com/user/vidloop/pkg/pipeline"
)

// TranscodeOptions configures a software-path transcode.
type TranscodeOptions struct {
	Format    pipeline.OutputFormat
	Quality   pipeline.QualityTier
	Width     int
	Height    int
	FPS       float64
	MaxFrames int

	// OnProgress receives the completed fraction in [0,1].
	OnProgress func(fraction float64)
}

// Transcoder is the software decode/encode backend.
type Transcoder interface {
	// Available reports whether the backend can run.
	Available(ctx context.Context) bool

	// Transcode converts the whole source into the requested format.
	Transcode(ctx context.Context, src string, opts TranscodeOptions, meta pipeline.VideoMetadata) ([]byte, error)

	// EncodeFrames encodes already captured frames.
	EncodeFrames(ctx context.Context, frames []pipeline.Frame, opts EncodeOptions) ([]byte, error)
}
