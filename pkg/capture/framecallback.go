package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/user/vidloop/pkg/pipeline"
	"github.com/user/vidloop/pkg/ports"
)

// FrameCallbackConfig tunes the playback watchdogs.
type FrameCallbackConfig struct {
	// FirstFrameTimeout aborts when playback produces no frame at all.
	FirstFrameTimeout time.Duration

	// Lag monitor: abort when media time passed LagMediaTime while at most
	// LagMaxCaptured frames were taken and at least LagMinExpected were due.
	LagMediaTime   time.Duration
	LagMaxCaptured int
	LagMinExpected int

	// StallTimeout is the longest gap allowed between captured frames.
	StallTimeout time.Duration

	// CancelPoll bounds how long a cancellation waits when no frame arrives.
	CancelPoll time.Duration
}

// DefaultFrameCallbackConfig returns the default watchdog tuning.
func DefaultFrameCallbackConfig() FrameCallbackConfig {
	return FrameCallbackConfig{
		FirstFrameTimeout: 1500 * time.Millisecond,
		LagMediaTime:      750 * time.Millisecond,
		LagMaxCaptured:    1,
		LagMinExpected:    8,
		StallTimeout:      5 * time.Second,
		CancelPoll:        100 * time.Millisecond,
	}
}

// FrameCallbackAdapter samples frames from real-time playback. When the
// source refuses to play, the whole capture is handed to the fallback.
type FrameCallbackAdapter struct {
	cfg      FrameCallbackConfig
	fallback Adapter
	logger   ports.Logger
}

// NewFrameCallback creates a frame-callback adapter delegating to fallback
// when playback is blocked.
func NewFrameCallback(cfg FrameCallbackConfig, fallback Adapter, logger ports.Logger) *FrameCallbackAdapter {
	def := DefaultFrameCallbackConfig()
	if cfg.FirstFrameTimeout <= 0 {
		cfg.FirstFrameTimeout = def.FirstFrameTimeout
	}
	if cfg.StallTimeout <= 0 {
		cfg.StallTimeout = def.StallTimeout
	}
	if cfg.CancelPoll <= 0 {
		cfg.CancelPoll = def.CancelPoll
	}
	return &FrameCallbackAdapter{
		cfg:      cfg,
		fallback: fallback,
		logger:   logger.WithComponent("capture"),
	}
}

// Mode implements Adapter.
func (a *FrameCallbackAdapter) Mode() pipeline.CaptureMode {
	return pipeline.CaptureFrameCallback
}

// Capture implements Adapter.
func (a *FrameCallbackAdapter) Capture(ctx context.Context, src ports.FrameSource, p Params, onFrame func(pipeline.Frame) error) error {
	player, ok := src.(ports.Playable)
	if !ok {
		return ErrUnsupportedSource
	}

	playCtx, stop := context.WithCancel(ctx)
	defer stop()

	ticks, err := player.Play(playCtx)
	if errors.Is(err, ports.ErrPlaybackBlocked) {
		if a.fallback == nil {
			return err
		}
		a.logger.Debug("Playback blocked, delegating to %s capture", a.fallback.Mode())
		if err := a.fallback.Capture(ctx, src, p, onFrame); err != nil {
			return &DelegatedError{Mode: a.fallback.Mode(), Err: err}
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("start playback: %w", err)
	}
	defer player.Pause()

	dur := p.duration(src)
	fps := p.fps()
	limit := ExpectedFrames(dur, fps, p.MaxFrames)
	if limit == 0 {
		limit = p.MaxFrames
	}
	sampler := slotSampler{interval: p.interval()}

	firstFrame := time.NewTimer(a.cfg.FirstFrameTimeout)
	defer firstFrame.Stop()
	stall := time.NewTimer(a.cfg.StallTimeout)
	defer stall.Stop()
	poll := time.NewTicker(a.cfg.CancelPoll)
	defer poll.Stop()

	firstFrameC := firstFrame.C
	captured := 0
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", pipeline.ErrCancelled, ctx.Err())

		case <-poll.C:
			if err := checkCancel(ctx, p); err != nil {
				return err
			}

		case <-firstFrameC:
			a.logger.Debug("No frame within %s of playback start", a.cfg.FirstFrameTimeout)
			return fmt.Errorf("%w: no frame within %s", pipeline.ErrCaptureStalled, a.cfg.FirstFrameTimeout)

		case <-stall.C:
			a.logger.Debug("No frame for %s, %d captured", a.cfg.StallTimeout, captured)
			return fmt.Errorf("%w: no frame for %s", pipeline.ErrCaptureStalled, a.cfg.StallTimeout)

		case tick, open := <-ticks:
			if !open {
				a.logger.Debug("Playback ended after %d frames", captured)
				return nil
			}
			if err := checkCancel(ctx, p); err != nil {
				return err
			}
			mt := tick.MediaTime
			if dur > 0 && mt >= dur {
				return nil
			}

			expected := int(mt/sampler.interval) + 1
			if mt >= a.cfg.LagMediaTime && captured <= a.cfg.LagMaxCaptured && expected >= a.cfg.LagMinExpected {
				a.logger.Debug("Playback lagging: %d frames at %s, %d expected", captured, mt, expected)
				return fmt.Errorf("%w: %d frames captured by %s", pipeline.ErrCaptureStalled, captured, mt)
			}

			if !sampler.due(mt) {
				continue
			}
			if err := onFrame(pipeline.Frame{Index: captured, Timestamp: mt, Image: tick.Image}); err != nil {
				return err
			}
			captured++
			sampler.advance(mt)

			if firstFrameC != nil {
				firstFrame.Stop()
				firstFrameC = nil
			}
			stall.Reset(a.cfg.StallTimeout)

			if limit > 0 && captured >= limit {
				return nil
			}
		}
	}
}
