package capture

import (
	"context"
	"errors"
	"fmt"

	"github.com/user/vidloop/pkg/metrics"
	"github.com/user/vidloop/pkg/pipeline"
	"github.com/user/vidloop/pkg/ports"
)

// autoOrder is the capture preference order; explicit modes continue from
// their own position so Seek is always last.
var autoOrder = []pipeline.CaptureMode{
	pipeline.CaptureDemuxer,
	pipeline.CaptureTrackProcessor,
	pipeline.CaptureFrameCallback,
	pipeline.CaptureSeek,
}

// Plan returns the adapter modes tried for a requested mode.
func Plan(mode pipeline.CaptureMode) []pipeline.CaptureMode {
	for i, m := range autoOrder {
		if m == mode {
			out := make([]pipeline.CaptureMode, len(autoOrder)-i)
			copy(out, autoOrder[i:])
			return out
		}
	}
	out := make([]pipeline.CaptureMode, len(autoOrder))
	copy(out, autoOrder)
	return out
}

// Result is the outcome of a driven capture.
type Result struct {
	Frames   []pipeline.Frame
	Mode     pipeline.CaptureMode
	Expected int
	// Tried lists every mode attempted, including the successful one.
	Tried []pipeline.CaptureMode
}

// Driver runs capture adapters in fallback order.
type Driver struct {
	adapters map[pipeline.CaptureMode]Adapter
	logger   ports.Logger
}

// NewDriver creates a driver over the given adapters.
func NewDriver(logger ports.Logger, adapters ...Adapter) *Driver {
	d := &Driver{
		adapters: make(map[pipeline.CaptureMode]Adapter, len(adapters)),
		logger:   logger.WithComponent("capture"),
	}
	for _, a := range adapters {
		d.adapters[a.Mode()] = a
	}
	return d
}

// NewDefaultDriver wires all four adapters. The frame-callback adapter
// delegates to the seek adapter when playback is blocked.
func NewDefaultDriver(logger ports.Logger, seekCfg SeekConfig, fcCfg FrameCallbackConfig) *Driver {
	seek := NewSeek(seekCfg, logger)
	return NewDriver(logger,
		NewDemuxer(logger),
		NewTrackProcessor(logger),
		NewFrameCallback(fcCfg, seek, logger),
		seek,
	)
}

// Capture runs adapters in Plan(mode) order until one produces frames, then
// applies the completeness gate to that capture. Frames buffered by a failed
// adapter are discarded. observe, when set, sees every accepted frame.
func (d *Driver) Capture(ctx context.Context, src ports.FrameSource, mode pipeline.CaptureMode, p Params, observe func(f pipeline.Frame, expected int)) (Result, error) {
	expected := ExpectedFrames(p.duration(src), p.fps(), p.MaxFrames)
	res := Result{Expected: expected}

	plan := Plan(mode)
	if d.singleFrame(src, p) {
		d.logger.Debug("Single frame requested, using %s capture", pipeline.CaptureSeek)
		plan = []pipeline.CaptureMode{pipeline.CaptureSeek}
	}

	var lastErr error
	ran := make(map[pipeline.CaptureMode]bool, len(plan))
	for _, m := range plan {
		adapter, ok := d.adapters[m]
		if !ok {
			continue
		}
		if ran[m] {
			d.logger.Debug("%s capture already ran, skipping", m)
			continue
		}
		ran[m] = true
		res.Tried = append(res.Tried, m)

		var frames []pipeline.Frame
		err := adapter.Capture(ctx, src, p, func(f pipeline.Frame) error {
			frames = append(frames, f)
			if observe != nil {
				observe(f, expected)
			}
			return nil
		})

		var delegated *DelegatedError
		if errors.As(err, &delegated) && !ran[delegated.Mode] {
			ran[delegated.Mode] = true
			res.Tried = append(res.Tried, delegated.Mode)
			err = delegated.Err
		}

		if pipeline.IsCancellation(err) || ctx.Err() != nil {
			return res, cancelled(ctx, err)
		}
		if errors.Is(err, ErrUnsupportedSource) {
			d.logger.Debug("%s capture not supported by source", m)
			continue
		}
		if err != nil {
			d.logger.Debug("%s capture failed after %d frames: %v", m, len(frames), err)
			metrics.CaptureFailuresTotal.WithLabelValues(string(m)).Inc()
			lastErr = err
			continue
		}
		if len(frames) == 0 {
			d.logger.Debug("%s capture produced no frames", m)
			metrics.CaptureFailuresTotal.WithLabelValues(string(m)).Inc()
			lastErr = pipeline.ErrNoFrames
			continue
		}

		res.Frames = frames
		res.Mode = m
		metrics.CaptureFramesTotal.WithLabelValues(string(m)).Add(float64(len(frames)))
		if err := CheckCompleteness(len(frames), expected); err != nil {
			d.logger.Warn("Capture incomplete: %d of %d frames", len(frames), expected)
			return res, err
		}
		d.logger.Debug("Captured %d frames with %s", len(frames), m)
		return res, nil
	}

	switch {
	case lastErr == nil:
		return res, pipeline.ErrNoFrames
	case isCaptureSentinel(lastErr):
		return res, lastErr
	default:
		return res, fmt.Errorf("%w: %w", pipeline.ErrDecodeBackendFailed, lastErr)
	}
}

// singleFrame reports whether a one-frame capture should go straight to seek,
// which takes its frame at SingleFramePosition instead of t=0.
func (d *Driver) singleFrame(src ports.FrameSource, p Params) bool {
	if p.MaxFrames != 1 || p.duration(src) <= 0 {
		return false
	}
	_, ok := d.adapters[pipeline.CaptureSeek]
	return ok
}

func cancelled(ctx context.Context, err error) error {
	if errors.Is(err, pipeline.ErrCancelled) {
		return err
	}
	if err == nil {
		err = ctx.Err()
	}
	return fmt.Errorf("%w: %w", pipeline.ErrCancelled, err)
}

func isCaptureSentinel(err error) bool {
	return errors.Is(err, pipeline.ErrNoFrames) ||
		errors.Is(err, pipeline.ErrCaptureStalled) ||
		errors.Is(err, pipeline.ErrCaptureIncomplete)
}
