// Package capture samples decoded frames from a video source at a target rate.
//
// Four adapters share one contract: Demuxer (container sample index plus
// streaming decode), TrackProcessor (streaming decode), FrameCallback
// (real-time playback callbacks) and Seek (random access, works everywhere).
// Driver tries them in order and applies the completeness gate.
package capture

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/user/vidloop/pkg/pipeline"
	"github.com/user/vidloop/pkg/ports"
)

// DefaultFPS is used when Params.TargetFPS is not set.
const DefaultFPS = 10.0

var (
	// ErrUnsupportedSource means the source lacks the interface the adapter needs.
	ErrUnsupportedSource = errors.New("capture: source not supported by adapter")
	// ErrUnknownDuration means the adapter needs a duration the source cannot report.
	ErrUnknownDuration = errors.New("capture: unknown duration")
)

// DelegatedError is returned by an adapter that handed the capture to another
// adapter which then failed. The driver does not run Mode again.
type DelegatedError struct {
	Mode pipeline.CaptureMode
	Err  error
}

func (e *DelegatedError) Error() string {
	return fmt.Sprintf("delegated %s capture: %v", e.Mode, e.Err)
}

func (e *DelegatedError) Unwrap() error {
	return e.Err
}

// Params describes one capture.
type Params struct {
	// Duration of the media. 0 asks the source.
	Duration  time.Duration
	TargetFPS float64
	// MaxFrames caps the frame count. 0 means no cap.
	MaxFrames int
	CodecHint string
	// ShouldCancel is polled at least once per frame.
	ShouldCancel func() bool
}

// Adapter is one capture strategy.
type Adapter interface {
	Mode() pipeline.CaptureMode
	// Capture calls onFrame once per sampled frame in strictly increasing
	// timestamp order. Returning an error from onFrame aborts the capture.
	Capture(ctx context.Context, src ports.FrameSource, p Params, onFrame func(pipeline.Frame) error) error
}

// Clock is the time source used for latency measurement.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (p Params) fps() float64 {
	if p.TargetFPS <= 0 {
		return DefaultFPS
	}
	return p.TargetFPS
}

func (p Params) interval() time.Duration {
	return time.Duration(float64(time.Second) / p.fps())
}

func (p Params) duration(src ports.FrameSource) time.Duration {
	if p.Duration > 0 {
		return p.Duration
	}
	return src.Duration()
}

// ExpectedFrames returns min(maxFrames, ceil(duration × fps)), or 0 when the
// duration is unknown.
func ExpectedFrames(duration time.Duration, fps float64, maxFrames int) int {
	if duration <= 0 || fps <= 0 {
		return 0
	}
	n := int(math.Ceil(duration.Seconds()*fps - 1e-9))
	if maxFrames > 0 && n > maxFrames {
		n = maxFrames
	}
	return n
}

func checkCancel(ctx context.Context, p Params) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", pipeline.ErrCancelled, err)
	}
	if p.ShouldCancel != nil && p.ShouldCancel() {
		return pipeline.ErrCancelled
	}
	return nil
}

// slotSampler keeps a fixed schedule anchored at t=0: a frame is taken when
// media time reaches next*interval, then next becomes the slot after it.
type slotSampler struct {
	interval time.Duration
	next     int64
}

func (s *slotSampler) due(mt time.Duration) bool {
	return mt >= time.Duration(s.next)*s.interval
}

func (s *slotSampler) advance(mt time.Duration) {
	s.next = int64(mt/s.interval) + 1
}
