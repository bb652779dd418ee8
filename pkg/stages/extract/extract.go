// Package extract implements the frame extraction stage: it opens a frame
// source for the attempt and drives the capture adapters over it.
package extract

import (
	"context"
	"fmt"
	"time"

	"github.com/user/vidloop/pkg/capture"
	"github.com/user/vidloop/pkg/pipeline"
	"github.com/user/vidloop/pkg/ports"
)

// Input describes one extraction.
type Input struct {
	Source   string
	Meta     pipeline.VideoMetadata
	Mode     pipeline.CaptureMode
	Params   capture.Params
	Width    int
	Height   int
	Hardware bool

	// Observe, when set, sees every accepted frame with the expected total.
	Observe func(f pipeline.Frame, expected int)
}

// Result is the captured frame set.
type Result struct {
	Frames   []pipeline.Frame
	Mode     pipeline.CaptureMode
	Expected int
	Tried    []pipeline.CaptureMode
	Elapsed  time.Duration
}

// Capturer runs capture adapters over a source.
type Capturer interface {
	Capture(ctx context.Context, src ports.FrameSource, mode pipeline.CaptureMode, p capture.Params, observe func(pipeline.Frame, int)) (capture.Result, error)
}

// Stage extracts frames from a video.
type Stage struct {
	opener   ports.SourceOpener
	capturer Capturer
	sink     ports.DebugSink
	renderer ports.Renderer
	logger   ports.Logger
}

// New creates a new extract stage. renderer may be nil, in which case debug
// frames are saved without annotation.
func New(opener ports.SourceOpener, capturer Capturer, sink ports.DebugSink, renderer ports.Renderer, logger ports.Logger) *Stage {
	return &Stage{
		opener:   opener,
		capturer: capturer,
		sink:     sink,
		renderer: renderer,
		logger:   logger.WithComponent("extract"),
	}
}

// Execute opens the source, captures frames and closes the source.
func (s *Stage) Execute(ctx context.Context, input Input) (Result, error) {
	result := Result{}
	start := time.Now()

	src, err := s.opener.Open(ctx, input.Source, input.Meta, ports.SourceOptions{
		Width:    input.Width,
		Height:   input.Height,
		Hardware: input.Hardware,
	})
	if err != nil {
		if ctx.Err() != nil {
			return result, fmt.Errorf("%w: %w", pipeline.ErrCancelled, ctx.Err())
		}
		return result, fmt.Errorf("%w: open source: %w", pipeline.ErrDecodeBackendFailed, err)
	}
	defer func() {
		if err := src.Close(); err != nil {
			s.logger.Debug("Close source: %v", err)
		}
	}()

	mode := input.Mode
	if mode == "" {
		mode = pipeline.CaptureAuto
	}
	s.logger.Debug("Extracting frames from %s (%s capture, hardware=%t)", input.Source, mode, input.Hardware)

	captured, err := s.capturer.Capture(ctx, src, mode, input.Params, input.Observe)
	result.Frames = captured.Frames
	result.Mode = captured.Mode
	result.Expected = captured.Expected
	result.Tried = captured.Tried
	result.Elapsed = time.Since(start)
	if err != nil {
		return result, err
	}

	s.saveDebugFrames(result.Frames)
	s.logger.Debug("Extracted %d/%d frames with %s in %d ms", len(result.Frames), result.Expected, result.Mode, result.Elapsed.Milliseconds())
	return result, nil
}

func (s *Stage) saveDebugFrames(frames []pipeline.Frame) {
	if s.sink == nil || !s.sink.Enabled() {
		return
	}
	for _, f := range frames {
		img := f.Image
		if s.renderer != nil {
			img = s.renderer.Annotate(img, fmt.Sprintf("#%d %.3fs", f.Index, f.Timestamp.Seconds()))
		}
		if err := s.sink.SaveFrame(f.Index, img); err != nil {
			s.logger.Debug("Save debug frame %d: %v", f.Index, err)
		}
	}
}

var _ pipeline.Stage[Input, Result] = (*Stage)(nil)
