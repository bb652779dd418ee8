package capture

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/user/vidloop/pkg/codec"
	"github.com/user/vidloop/pkg/metrics"
	"github.com/user/vidloop/pkg/pipeline"
	"github.com/user/vidloop/pkg/ports"
)

// SeekConfig tunes the seek adapter.
type SeekConfig struct {
	SeekTimeout        time.Duration
	ComplexSeekTimeout time.Duration

	// ProbeSamples is how many initial seeks are timed before deciding to downshift.
	ProbeSamples      int
	SlowSeekThreshold time.Duration
	DownshiftFactor   float64
	MinFPS            float64

	// MaxConsecutiveTimeouts aborts the capture as stalled.
	MaxConsecutiveTimeouts int

	// SingleFramePosition is where a one-frame capture is taken, as a fraction of duration.
	SingleFramePosition float64
}

// DefaultSeekConfig returns the default seek tuning.
func DefaultSeekConfig() SeekConfig {
	return SeekConfig{
		SeekTimeout:            1500 * time.Millisecond,
		ComplexSeekTimeout:     2000 * time.Millisecond,
		ProbeSamples:           5,
		SlowSeekThreshold:      300 * time.Millisecond,
		DownshiftFactor:        0.5,
		MinFPS:                 2,
		MaxConsecutiveTimeouts: 3,
		SingleFramePosition:    0.25,
	}
}

// SeekAdapter captures by seeking to every sample point. It works on any source.
type SeekAdapter struct {
	cfg    SeekConfig
	clock  Clock
	logger ports.Logger
}

// NewSeek creates a seek adapter.
func NewSeek(cfg SeekConfig, logger ports.Logger) *SeekAdapter {
	def := DefaultSeekConfig()
	if cfg.SeekTimeout <= 0 {
		cfg.SeekTimeout = def.SeekTimeout
	}
	if cfg.ComplexSeekTimeout <= 0 {
		cfg.ComplexSeekTimeout = def.ComplexSeekTimeout
	}
	if cfg.ProbeSamples <= 0 {
		cfg.ProbeSamples = def.ProbeSamples
	}
	if cfg.SlowSeekThreshold <= 0 {
		cfg.SlowSeekThreshold = def.SlowSeekThreshold
	}
	if cfg.MinFPS <= 0 {
		cfg.MinFPS = def.MinFPS
	}
	if cfg.DownshiftFactor <= 0 || cfg.DownshiftFactor >= 1 {
		cfg.DownshiftFactor = def.DownshiftFactor
	}
	if cfg.MaxConsecutiveTimeouts <= 0 {
		cfg.MaxConsecutiveTimeouts = def.MaxConsecutiveTimeouts
	}
	if cfg.SingleFramePosition <= 0 || cfg.SingleFramePosition >= 1 {
		cfg.SingleFramePosition = def.SingleFramePosition
	}
	return &SeekAdapter{
		cfg:    cfg,
		clock:  systemClock{},
		logger: logger.WithComponent("capture"),
	}
}

// WithClock replaces the clock used to measure seek latency.
func (a *SeekAdapter) WithClock(c Clock) *SeekAdapter {
	a.clock = c
	return a
}

// Mode implements Adapter.
func (a *SeekAdapter) Mode() pipeline.CaptureMode {
	return pipeline.CaptureSeek
}

func (a *SeekAdapter) timeout(codecHint string) time.Duration {
	if codec.Normalize(codecHint).IsComplex() {
		return a.cfg.ComplexSeekTimeout
	}
	return a.cfg.SeekTimeout
}

// Capture implements Adapter.
func (a *SeekAdapter) Capture(ctx context.Context, src ports.FrameSource, p Params, onFrame func(pipeline.Frame) error) error {
	dur := p.duration(src)
	if dur <= 0 {
		return ErrUnknownDuration
	}
	timeout := a.timeout(p.CodecHint)

	if p.MaxFrames == 1 {
		t := time.Duration(float64(dur) * a.cfg.SingleFramePosition)
		a.logger.Debug("Single frame capture at %s", t)
		if err := checkCancel(ctx, p); err != nil {
			return err
		}
		if _, err := a.seek(ctx, src, t, timeout); err != nil {
			return err
		}
		return a.emit(ctx, src, 0, t, onFrame)
	}

	fps := p.fps()
	interval := p.interval()
	limit := ExpectedFrames(dur, fps, p.MaxFrames)
	a.logger.Debug("Seek capture: %d frames at %.1f fps, timeout %s", limit, fps, timeout)

	var (
		anchor     time.Duration
		k          int64
		index      int
		probed     bool
		latencies  time.Duration
		samples    int
		timeouts   int
		downshifts int
	)
	for {
		if p.MaxFrames > 0 && index >= p.MaxFrames {
			break
		}
		t := anchor + time.Duration(k)*interval
		if t >= dur {
			break
		}
		if err := checkCancel(ctx, p); err != nil {
			return err
		}

		latency, err := a.seek(ctx, src, t, timeout)
		if errors.Is(err, errSeekTimeout) {
			timeouts++
			a.logger.Debug("Seek to %s timed out (%d in a row)", t, timeouts)
			if timeouts >= a.cfg.MaxConsecutiveTimeouts {
				return fmt.Errorf("%w: %d consecutive seek timeouts", pipeline.ErrCaptureStalled, timeouts)
			}
			k++
			continue
		}
		if err != nil {
			return err
		}
		timeouts = 0

		if err := a.emit(ctx, src, index, t, onFrame); err != nil {
			return err
		}
		index++

		if !probed {
			latencies += latency
			samples++
			if samples >= a.cfg.ProbeSamples {
				probed = true
				avg := latencies / time.Duration(samples)
				if avg > a.cfg.SlowSeekThreshold {
					reduced := math.Max(fps*a.cfg.DownshiftFactor, a.cfg.MinFPS)
					if reduced < fps {
						a.logger.Warn("Slow seeks (avg %s), reducing capture rate from %.1f to %.1f fps", avg, fps, reduced)
						metrics.SeekDownshiftsTotal.Inc()
						fps = reduced
						interval = time.Duration(float64(time.Second) / fps)
						anchor, k = t, 0
						downshifts++
					}
				}
			}
		}
		k++
	}

	a.logger.Debug("Seek capture finished: %d frames, %d downshifts", index, downshifts)
	return nil
}

var errSeekTimeout = errors.New("seek timeout")

func (a *SeekAdapter) seek(ctx context.Context, src ports.FrameSource, t, timeout time.Duration) (time.Duration, error) {
	seekCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := a.clock.Now()
	err := src.Seek(seekCtx, t)
	latency := a.clock.Now().Sub(start)
	if err == nil {
		return latency, nil
	}
	if ctx.Err() != nil {
		return latency, fmt.Errorf("%w: %w", pipeline.ErrCancelled, ctx.Err())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return latency, errSeekTimeout
	}
	return latency, fmt.Errorf("seek to %s: %w", t, err)
}

func (a *SeekAdapter) emit(ctx context.Context, src ports.FrameSource, index int, t time.Duration, onFrame func(pipeline.Frame) error) error {
	img, err := src.Frame(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %w", pipeline.ErrCancelled, ctx.Err())
		}
		return fmt.Errorf("read frame at %s: %w", t, err)
	}
	return onFrame(pipeline.Frame{Index: index, Timestamp: t, Image: img})
}
