package capture

import (
	"context"
	"errors"

	"github.com/user/vidloop/pkg/pipeline"
	"github.com/user/vidloop/pkg/ports"
)

// TrackProcessorAdapter samples the anchored schedule from a streaming decode.
type TrackProcessorAdapter struct {
	logger ports.Logger
}

// NewTrackProcessor creates a track-processor adapter.
func NewTrackProcessor(logger ports.Logger) *TrackProcessorAdapter {
	return &TrackProcessorAdapter{logger: logger.WithComponent("capture")}
}

// Mode implements Adapter.
func (a *TrackProcessorAdapter) Mode() pipeline.CaptureMode {
	return pipeline.CaptureTrackProcessor
}

// Capture implements Adapter.
func (a *TrackProcessorAdapter) Capture(ctx context.Context, src ports.FrameSource, p Params, onFrame func(pipeline.Frame) error) error {
	stream, ok := src.(ports.StreamDecodable)
	if !ok {
		return ErrUnsupportedSource
	}

	dur := p.duration(src)
	limit := ExpectedFrames(dur, p.fps(), p.MaxFrames)
	if limit == 0 {
		limit = p.MaxFrames
	}
	sampler := slotSampler{interval: p.interval()}

	captured := 0
	err := stream.DecodeStream(ctx, func(tick ports.FrameTick) error {
		if err := checkCancel(ctx, p); err != nil {
			return err
		}
		if dur > 0 && tick.MediaTime >= dur {
			return ports.ErrStopStream
		}
		if !sampler.due(tick.MediaTime) {
			return nil
		}
		if err := onFrame(pipeline.Frame{Index: captured, Timestamp: tick.MediaTime, Image: tick.Image}); err != nil {
			return err
		}
		captured++
		sampler.advance(tick.MediaTime)
		if limit > 0 && captured >= limit {
			return ports.ErrStopStream
		}
		return nil
	})
	if err != nil && !errors.Is(err, ports.ErrStopStream) {
		return err
	}
	a.logger.Debug("Track capture finished: %d frames", captured)
	return checkCancel(ctx, p)
}
