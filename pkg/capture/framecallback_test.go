package capture

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/user/vidloop/pkg/adapters/logger"
	"github.com/user/vidloop/pkg/mocks"
	"github.com/user/vidloop/pkg/pipeline"
	"github.com/user/vidloop/pkg/ports"
)

func testFrameCallbackConfig() FrameCallbackConfig {
	cfg := DefaultFrameCallbackConfig()
	cfg.FirstFrameTimeout = 100 * time.Millisecond
	cfg.StallTimeout = 100 * time.Millisecond
	cfg.CancelPoll = 10 * time.Millisecond
	return cfg
}

func newFrameCallback() *FrameCallbackAdapter {
	log := logger.NewNoop()
	return NewFrameCallback(testFrameCallbackConfig(), NewSeek(DefaultSeekConfig(), log), log)
}

func TestFrameCallback_AnchoredSchedule(t *testing.T) {
	src := mocks.NewPlayableSource(2*time.Second, 40*time.Millisecond)

	var frames []pipeline.Frame
	if err := newFrameCallback().Capture(context.Background(), src, Params{TargetFPS: 10}, collect(&frames)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(frames) != 20 {
		t.Fatalf("expected 20 frames, got %d", len(frames))
	}
	assertIncreasing(t, frames)

	// Slots are index*100ms on the 40ms tick grid, so no drift accumulates.
	want := []time.Duration{0, 120, 200, 320, 400, 520}
	for i, ms := range want {
		if frames[i].Timestamp != ms*time.Millisecond {
			t.Errorf("frame %d: expected %dms, got %s", i, ms, frames[i].Timestamp)
		}
	}
	if !src.PauseCalled {
		t.Error("expected playback to be paused on completion")
	}
}

func TestFrameCallback_EndOfMedia(t *testing.T) {
	src := mocks.NewPlayableSource(2*time.Second, 100*time.Millisecond)
	src.MediaTimes = src.MediaTimes[:5]

	var frames []pipeline.Frame
	if err := newFrameCallback().Capture(context.Background(), src, Params{TargetFPS: 10}, collect(&frames)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(frames) != 5 {
		t.Errorf("expected 5 frames, got %d", len(frames))
	}
}

func TestFrameCallback_BlockedPlaybackDelegatesToSeek(t *testing.T) {
	src := mocks.NewPlayableSource(2*time.Second, 40*time.Millisecond)
	src.PlayErr = ports.ErrPlaybackBlocked

	var frames []pipeline.Frame
	if err := newFrameCallback().Capture(context.Background(), src, Params{TargetFPS: 10}, collect(&frames)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(frames) != 20 {
		t.Errorf("expected 20 frames, got %d", len(frames))
	}
	if src.SeekCount() != 20 {
		t.Errorf("expected seek capture, got %d seeks", src.SeekCount())
	}
}

func TestFrameCallback_DelegatedFailureNamesMode(t *testing.T) {
	src := mocks.NewPlayableSource(2*time.Second, 40*time.Millisecond)
	src.PlayErr = ports.ErrPlaybackBlocked
	src.SeekFunc = func(ctx context.Context, at time.Duration) error { return errors.New("bad seek") }

	err := newFrameCallback().Capture(context.Background(), src, Params{TargetFPS: 10}, func(pipeline.Frame) error { return nil })
	var delegated *DelegatedError
	if !errors.As(err, &delegated) {
		t.Fatalf("expected a delegated error, got %v", err)
	}
	if delegated.Mode != pipeline.CaptureSeek {
		t.Errorf("expected seek to be named, got %s", delegated.Mode)
	}
}

func TestFrameCallback_PlayError(t *testing.T) {
	src := mocks.NewPlayableSource(2*time.Second, 40*time.Millisecond)
	src.PlayErr = errors.New("no decoder")

	err := newFrameCallback().Capture(context.Background(), src, Params{TargetFPS: 10}, func(pipeline.Frame) error { return nil })
	if err == nil || src.SeekCount() != 0 {
		t.Errorf("expected error without delegation, got %v (%d seeks)", err, src.SeekCount())
	}
}

func TestFrameCallback_FirstFrameTimeout(t *testing.T) {
	src := mocks.NewPlayableSource(2*time.Second, 40*time.Millisecond)
	src.TickDelay = time.Second

	start := time.Now()
	err := newFrameCallback().Capture(context.Background(), src, Params{TargetFPS: 10}, func(pipeline.Frame) error { return nil })
	if !errors.Is(err, pipeline.ErrCaptureStalled) {
		t.Fatalf("expected ErrCaptureStalled, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 800*time.Millisecond {
		t.Errorf("first-frame watchdog fired late: %s", elapsed)
	}
}

func TestFrameCallback_LagMonitor(t *testing.T) {
	src := mocks.NewPlayableSource(2*time.Second, 40*time.Millisecond)
	src.MediaTimes = []time.Duration{0, 900 * time.Millisecond, 1000 * time.Millisecond}
	src.HoldOpen = true

	var frames []pipeline.Frame
	err := newFrameCallback().Capture(context.Background(), src, Params{TargetFPS: 10}, collect(&frames))
	if !errors.Is(err, pipeline.ErrCaptureStalled) {
		t.Fatalf("expected ErrCaptureStalled, got %v", err)
	}
	if len(frames) != 1 {
		t.Errorf("expected lag check before capturing the late frame, got %d frames", len(frames))
	}
}

func TestFrameCallback_StallTimer(t *testing.T) {
	src := mocks.NewPlayableSource(2*time.Second, 100*time.Millisecond)
	src.MediaTimes = src.MediaTimes[:3]
	src.HoldOpen = true

	var frames []pipeline.Frame
	err := newFrameCallback().Capture(context.Background(), src, Params{TargetFPS: 10}, collect(&frames))
	if !errors.Is(err, pipeline.ErrCaptureStalled) {
		t.Fatalf("expected ErrCaptureStalled, got %v", err)
	}
	if len(frames) != 3 {
		t.Errorf("expected 3 frames before the stall, got %d", len(frames))
	}
}

func TestFrameCallback_ShouldCancelWithoutFrames(t *testing.T) {
	src := mocks.NewPlayableSource(2*time.Second, 100*time.Millisecond)
	src.TickDelay = time.Second
	cfg := testFrameCallbackConfig()
	cfg.FirstFrameTimeout = 5 * time.Second
	a := NewFrameCallback(cfg, nil, logger.NewNoop())

	err := a.Capture(context.Background(), src, Params{TargetFPS: 10, ShouldCancel: func() bool { return true }}, func(pipeline.Frame) error { return nil })
	if !pipeline.IsCancellation(err) {
		t.Errorf("expected cancellation, got %v", err)
	}
}

func TestFrameCallback_UnsupportedSource(t *testing.T) {
	err := newFrameCallback().Capture(context.Background(), mocks.NewFrameSource(time.Second), Params{}, func(pipeline.Frame) error { return nil })
	if !errors.Is(err, ErrUnsupportedSource) {
		t.Errorf("expected ErrUnsupportedSource, got %v", err)
	}
}
