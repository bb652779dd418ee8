// Package summarizer provides summary generation for conversion runs.
package summarizer

import (
	"errors"
	"time"

	"github.com/user/vidloop/pkg/pipeline"
)

// Summary contains all data collected during a conversion run.
type Summary struct {
	// Metadata
	GeneratedAt time.Time
	RunID       string

	// Source video
	Source SourceInfo

	// Conversion settings
	Settings Settings

	// Output details, empty when the run failed
	Output OutputInfo

	// One entry per path tried, in order
	Attempts []pipeline.AttemptInfo

	// Failure, empty on success
	Failure FailureInfo
}

// SourceInfo describes the input video.
type SourceInfo struct {
	Path      string
	Codec     string
	Container string
	Width     int
	Height    int
	Duration  float64 // seconds, <= 0 means unknown
	FrameRate float64
}

// Settings contains the conversion request.
type Settings struct {
	Format          string
	Quality         string
	Scale           float64
	FPS             float64
	MaxFrames       int
	CaptureMode     string
	ForcedPath      string
	DisableFallback bool
}

// OutputInfo describes a successful result.
type OutputInfo struct {
	Path        string
	Route       string
	Encoder     string
	CaptureMode string
	Frames      int
	Width       int
	Height      int
	DurationMs  int64
	FileSize    int64
}

// FailureInfo describes a failed or cancelled run.
type FailureInfo struct {
	Cancelled bool
	Phase     string
	Message   string
}

// Succeeded reports whether the run produced output.
func (s *Summary) Succeeded() bool {
	return s.Failure.Message == "" && !s.Failure.Cancelled
}

// NewSummary creates a new Summary with the current timestamp.
func NewSummary() *Summary {
	return &Summary{
		GeneratedAt: time.Now(),
	}
}

// Builder provides a fluent interface for building a Summary.
type Builder struct {
	summary *Summary
}

// NewBuilder creates a new Builder.
func NewBuilder() *Builder {
	return &Builder{
		summary: NewSummary(),
	}
}

// WithSource sets source information.
func (b *Builder) WithSource(path string, meta pipeline.VideoMetadata) *Builder {
	b.summary.Source = SourceInfo{
		Path:      path,
		Codec:     meta.Codec,
		Container: meta.Container,
		Width:     meta.Width,
		Height:    meta.Height,
		Duration:  meta.Duration,
		FrameRate: meta.FrameRate,
	}
	return b
}

// WithRequest sets the conversion settings from a request.
func (b *Builder) WithRequest(req pipeline.ConversionRequest) *Builder {
	b.summary.Settings = Settings{
		Format:          string(req.Format),
		Quality:         string(req.Quality),
		Scale:           req.EffectiveScale(),
		FPS:             req.TargetFPS,
		MaxFrames:       req.MaxFrames,
		CaptureMode:     string(req.CaptureMode),
		ForcedPath:      string(req.ForcePath),
		DisableFallback: req.DisableFallback,
	}
	return b
}

// WithResult sets output information of a successful run written to path.
func (b *Builder) WithResult(path string, res pipeline.ConversionResult) *Builder {
	b.summary.RunID = res.RunID
	b.summary.Output = OutputInfo{
		Path:        path,
		Route:       string(res.Path),
		Encoder:     res.Encoder,
		CaptureMode: string(res.CaptureMode),
		Frames:      res.Frames,
		Width:       res.Width,
		Height:      res.Height,
		DurationMs:  res.Duration.Milliseconds(),
		FileSize:    int64(len(res.Data)),
	}
	b.summary.Attempts = res.Attempts
	return b
}

// WithError sets failure information. Attempts are taken from a
// *pipeline.ConversionError.
func (b *Builder) WithError(err error) *Builder {
	if err == nil {
		return b
	}
	b.summary.Failure = FailureInfo{
		Cancelled: pipeline.IsCancellation(err),
		Phase:     string(pipeline.Classify(err)),
		Message:   err.Error(),
	}
	var convErr *pipeline.ConversionError
	if errors.As(err, &convErr) {
		b.summary.Failure.Phase = string(convErr.Phase)
		b.summary.Attempts = convErr.Attempts
	}
	return b
}

// Build returns the constructed Summary.
func (b *Builder) Build() *Summary {
	return b.summary
}
