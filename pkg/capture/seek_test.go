package capture

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/user/vidloop/pkg/adapters/logger"
	"github.com/user/vidloop/pkg/mocks"
	"github.com/user/vidloop/pkg/pipeline"
)

func collect(frames *[]pipeline.Frame) func(pipeline.Frame) error {
	return func(f pipeline.Frame) error {
		*frames = append(*frames, f)
		return nil
	}
}

func assertIncreasing(t *testing.T, frames []pipeline.Frame) {
	t.Helper()
	for i := 1; i < len(frames); i++ {
		if frames[i].Timestamp <= frames[i-1].Timestamp {
			t.Fatalf("timestamps not strictly increasing at %d: %s after %s", i, frames[i].Timestamp, frames[i-1].Timestamp)
		}
		if frames[i].Index != i {
			t.Fatalf("expected index %d, got %d", i, frames[i].Index)
		}
	}
}

func TestSeek_SingleFrameAtQuarterDuration(t *testing.T) {
	src := mocks.NewFrameSource(10 * time.Second)
	a := NewSeek(DefaultSeekConfig(), logger.NewNoop())

	var frames []pipeline.Frame
	err := a.Capture(context.Background(), src, Params{TargetFPS: 10, MaxFrames: 1}, collect(&frames))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	if frames[0].Timestamp != 2500*time.Millisecond {
		t.Errorf("expected frame at 2.5s, got %s", frames[0].Timestamp)
	}
	if len(src.Seeks) != 1 || src.Seeks[0] != 2500*time.Millisecond {
		t.Errorf("expected a single seek to 2.5s, got %v", src.Seeks)
	}
}

func TestSeek_FullSchedule(t *testing.T) {
	src := mocks.NewFrameSource(2 * time.Second)
	a := NewSeek(DefaultSeekConfig(), logger.NewNoop())

	var frames []pipeline.Frame
	if err := a.Capture(context.Background(), src, Params{TargetFPS: 10}, collect(&frames)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(frames) != 20 {
		t.Fatalf("expected 20 frames, got %d", len(frames))
	}
	assertIncreasing(t, frames)
	if frames[19].Timestamp != 1900*time.Millisecond {
		t.Errorf("expected last frame at 1.9s, got %s", frames[19].Timestamp)
	}
}

func TestSeek_MaxFramesCaps(t *testing.T) {
	src := mocks.NewFrameSource(10 * time.Second)
	a := NewSeek(DefaultSeekConfig(), logger.NewNoop())

	var frames []pipeline.Frame
	if err := a.Capture(context.Background(), src, Params{TargetFPS: 10, MaxFrames: 12}, collect(&frames)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(frames) != 12 {
		t.Errorf("expected 12 frames, got %d", len(frames))
	}
}

func TestSeek_SlowSeeksDownshift(t *testing.T) {
	clock := mocks.NewClock()
	src := mocks.NewFrameSource(10 * time.Second)
	src.Clock = clock
	src.SeekLatency = func(time.Duration) time.Duration { return 400 * time.Millisecond }
	a := NewSeek(DefaultSeekConfig(), logger.NewNoop()).WithClock(clock)

	var frames []pipeline.Frame
	if err := a.Capture(context.Background(), src, Params{TargetFPS: 10}, collect(&frames)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	naive := ExpectedFrames(10*time.Second, 10, 0)
	if len(frames) >= naive {
		t.Fatalf("expected fewer than %d frames after downshift, got %d", naive, len(frames))
	}
	// 5 probe frames at 10 fps, then 5 fps from 0.4s onwards.
	if len(frames) != 52 {
		t.Errorf("expected 52 frames, got %d", len(frames))
	}
	assertIncreasing(t, frames)
	if frames[5].Timestamp != 600*time.Millisecond {
		t.Errorf("expected first downshifted sample at 0.6s, got %s", frames[5].Timestamp)
	}
}

func TestSeek_FastSeeksKeepRate(t *testing.T) {
	clock := mocks.NewClock()
	src := mocks.NewFrameSource(10 * time.Second)
	src.Clock = clock
	src.SeekLatency = func(time.Duration) time.Duration { return 20 * time.Millisecond }
	a := NewSeek(DefaultSeekConfig(), logger.NewNoop()).WithClock(clock)

	var frames []pipeline.Frame
	if err := a.Capture(context.Background(), src, Params{TargetFPS: 10}, collect(&frames)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(frames) != 100 {
		t.Errorf("expected 100 frames, got %d", len(frames))
	}
}

func TestSeek_DownshiftFloorsAtMinFPS(t *testing.T) {
	clock := mocks.NewClock()
	src := mocks.NewFrameSource(10 * time.Second)
	src.Clock = clock
	src.SeekLatency = func(time.Duration) time.Duration { return time.Second }
	a := NewSeek(DefaultSeekConfig(), logger.NewNoop()).WithClock(clock)

	var frames []pipeline.Frame
	if err := a.Capture(context.Background(), src, Params{TargetFPS: 3}, collect(&frames)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 3 fps halves to 1.5, floored at 2 fps.
	gap := frames[6].Timestamp - frames[5].Timestamp
	if gap != 500*time.Millisecond {
		t.Errorf("expected 500ms spacing after downshift, got %s", gap)
	}
}

func TestSeek_TimedOutSampleIsSkipped(t *testing.T) {
	src := mocks.NewFrameSource(2 * time.Second)
	src.BlockSeek = func(t time.Duration) bool { return t == 200*time.Millisecond }
	cfg := DefaultSeekConfig()
	cfg.SeekTimeout = 10 * time.Millisecond
	a := NewSeek(cfg, logger.NewNoop())

	var frames []pipeline.Frame
	if err := a.Capture(context.Background(), src, Params{TargetFPS: 10}, collect(&frames)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(frames) != 19 {
		t.Fatalf("expected 19 frames, got %d", len(frames))
	}
	for _, f := range frames {
		if f.Timestamp == 200*time.Millisecond {
			t.Error("timed out sample should be skipped")
		}
	}
	assertIncreasing(t, frames)
}

func TestSeek_ConsecutiveTimeoutsStall(t *testing.T) {
	src := mocks.NewFrameSource(2 * time.Second)
	src.BlockSeek = func(time.Duration) bool { return true }
	cfg := DefaultSeekConfig()
	cfg.SeekTimeout = 5 * time.Millisecond
	a := NewSeek(cfg, logger.NewNoop())

	var frames []pipeline.Frame
	err := a.Capture(context.Background(), src, Params{TargetFPS: 10}, collect(&frames))
	if !errors.Is(err, pipeline.ErrCaptureStalled) {
		t.Fatalf("expected ErrCaptureStalled, got %v", err)
	}
	if src.SeekCount() != 3 {
		t.Errorf("expected 3 seeks before giving up, got %d", src.SeekCount())
	}
}

func TestSeek_UnknownDuration(t *testing.T) {
	a := NewSeek(DefaultSeekConfig(), logger.NewNoop())
	err := a.Capture(context.Background(), mocks.NewFrameSource(0), Params{}, func(pipeline.Frame) error { return nil })
	if !errors.Is(err, ErrUnknownDuration) {
		t.Errorf("expected ErrUnknownDuration, got %v", err)
	}
}

func TestSeek_ShouldCancel(t *testing.T) {
	src := mocks.NewFrameSource(10 * time.Second)
	a := NewSeek(DefaultSeekConfig(), logger.NewNoop())

	var frames []pipeline.Frame
	p := Params{TargetFPS: 10, ShouldCancel: func() bool { return len(frames) >= 3 }}
	err := a.Capture(context.Background(), src, p, collect(&frames))
	if !pipeline.IsCancellation(err) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if len(frames) != 3 {
		t.Errorf("expected to stop after 3 frames, got %d", len(frames))
	}
}

func TestSeek_ContextCancel(t *testing.T) {
	src := mocks.NewFrameSource(10 * time.Second)
	a := NewSeek(DefaultSeekConfig(), logger.NewNoop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := a.Capture(ctx, src, Params{TargetFPS: 10}, func(pipeline.Frame) error { return nil })
	if !errors.Is(err, pipeline.ErrCancelled) || !errors.Is(err, context.Canceled) {
		t.Errorf("expected wrapped cancellation, got %v", err)
	}
}

func TestSeek_CodecAwareTimeout(t *testing.T) {
	a := NewSeek(DefaultSeekConfig(), logger.NewNoop())
	tests := map[string]time.Duration{
		"av01.0.05M.08": 2 * time.Second,
		"hvc1.1.6.L93":  2 * time.Second,
		"vp09.00.10.08": 2 * time.Second,
		"avc1.64001f":   1500 * time.Millisecond,
		"":              1500 * time.Millisecond,
	}
	for hint, want := range tests {
		if got := a.timeout(hint); got != want {
			t.Errorf("%q: expected %s, got %s", hint, want, got)
		}
	}
}

func TestExpectedFrames(t *testing.T) {
	tests := []struct {
		dur  time.Duration
		fps  float64
		max  int
		want int
	}{
		{10 * time.Second, 10, 0, 100},
		{10 * time.Second, 10, 40, 40},
		{1500 * time.Millisecond, 10, 0, 15},
		{1550 * time.Millisecond, 10, 0, 16},
		{0, 10, 5, 0},
	}
	for _, tt := range tests {
		if got := ExpectedFrames(tt.dur, tt.fps, tt.max); got != tt.want {
			t.Errorf("ExpectedFrames(%s, %.0f, %d) = %d, want %d", tt.dur, tt.fps, tt.max, got, tt.want)
		}
	}
}
