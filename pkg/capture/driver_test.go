package capture

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/user/vidloop/pkg/adapters/logger"
	"github.com/user/vidloop/pkg/mocks"
	"github.com/user/vidloop/pkg/pipeline"
	"github.com/user/vidloop/pkg/ports"
)

func newDriver() *Driver {
	return NewDefaultDriver(logger.NewNoop(), DefaultSeekConfig(), testFrameCallbackConfig())
}

func TestPlan(t *testing.T) {
	tests := []struct {
		mode pipeline.CaptureMode
		want []pipeline.CaptureMode
	}{
		{pipeline.CaptureAuto, []pipeline.CaptureMode{pipeline.CaptureDemuxer, pipeline.CaptureTrackProcessor, pipeline.CaptureFrameCallback, pipeline.CaptureSeek}},
		{pipeline.CaptureDemuxer, []pipeline.CaptureMode{pipeline.CaptureDemuxer, pipeline.CaptureTrackProcessor, pipeline.CaptureFrameCallback, pipeline.CaptureSeek}},
		{pipeline.CaptureTrackProcessor, []pipeline.CaptureMode{pipeline.CaptureTrackProcessor, pipeline.CaptureFrameCallback, pipeline.CaptureSeek}},
		{pipeline.CaptureFrameCallback, []pipeline.CaptureMode{pipeline.CaptureFrameCallback, pipeline.CaptureSeek}},
		{pipeline.CaptureSeek, []pipeline.CaptureMode{pipeline.CaptureSeek}},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			if got := Plan(tt.mode); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestCheckCompleteness(t *testing.T) {
	tests := []struct {
		name     string
		captured int
		expected int
		want     error
	}{
		{"zero frames", 0, 40, pipeline.ErrNoFrames},
		{"8 of 40 is incomplete", 8, 40, pipeline.ErrCaptureIncomplete},
		{"25 of 40 is accepted", 25, 40, nil},
		{"above absolute floor", 10, 100, nil},
		{"short clip above ratio", 4, 6, nil},
		{"unknown expectation", 1, 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckCompleteness(tt.captured, tt.expected)
			if tt.want == nil && err != nil {
				t.Errorf("expected accept, got %v", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestDriver_AutoPrefersDemuxer(t *testing.T) {
	src := mocks.NewStreamSource(2*time.Second, 40*time.Millisecond)

	res, err := newDriver().Capture(context.Background(), src, pipeline.CaptureAuto, Params{TargetFPS: 10}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Mode != pipeline.CaptureDemuxer {
		t.Errorf("expected demuxer, got %s", res.Mode)
	}
	if len(res.Frames) != 20 || res.Expected != 20 {
		t.Errorf("expected 20/20 frames, got %d/%d", len(res.Frames), res.Expected)
	}
}

func TestDriver_FallsBackToSeek(t *testing.T) {
	src := mocks.NewStreamSource(2*time.Second, 40*time.Millisecond)
	src.DecodeErr = errors.New("no hardware decoder")

	observed := 0
	res, err := newDriver().Capture(context.Background(), src, pipeline.CaptureAuto, Params{TargetFPS: 10}, func(pipeline.Frame, int) { observed++ })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Mode != pipeline.CaptureSeek {
		t.Errorf("expected seek, got %s", res.Mode)
	}
	want := []pipeline.CaptureMode{pipeline.CaptureDemuxer, pipeline.CaptureTrackProcessor, pipeline.CaptureFrameCallback, pipeline.CaptureSeek}
	if !reflect.DeepEqual(res.Tried, want) {
		t.Errorf("expected %v tried, got %v", want, res.Tried)
	}
	if observed != 20 {
		t.Errorf("expected 20 observed frames, got %d", observed)
	}
}

func TestDriver_SingleFrameTakenAtQuarterDuration(t *testing.T) {
	src := mocks.NewStreamSource(10*time.Second, 100*time.Millisecond)

	res, err := newDriver().Capture(context.Background(), src, pipeline.CaptureAuto, Params{TargetFPS: 10, MaxFrames: 1}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Mode != pipeline.CaptureSeek {
		t.Errorf("expected seek, got %s", res.Mode)
	}
	if len(res.Frames) != 1 || res.Frames[0].Timestamp != 2500*time.Millisecond {
		t.Fatalf("expected one frame at 2.5s, got %d frames %v", len(res.Frames), res.Frames)
	}
	if src.Decoded != 0 {
		t.Errorf("streaming decode must not run for a single frame, decoded %d", src.Decoded)
	}
	if !reflect.DeepEqual(res.Tried, []pipeline.CaptureMode{pipeline.CaptureSeek}) {
		t.Errorf("expected only seek tried, got %v", res.Tried)
	}
}

func TestDriver_SingleFrameUnknownDuration(t *testing.T) {
	src := mocks.NewStreamSource(2*time.Second, 100*time.Millisecond)
	src.Dur = 0

	res, err := newDriver().Capture(context.Background(), src, pipeline.CaptureAuto, Params{TargetFPS: 10, MaxFrames: 1}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Mode == pipeline.CaptureSeek || len(res.Frames) != 1 {
		t.Errorf("expected one streamed frame without a known duration, got %d from %s", len(res.Frames), res.Mode)
	}
}

func TestDriver_DelegatedSeekRunsOnce(t *testing.T) {
	src := mocks.NewPlayableSource(2*time.Second, 100*time.Millisecond)
	src.PlayErr = ports.ErrPlaybackBlocked
	src.BlockSeek = func(time.Duration) bool { return true }

	seekCfg := DefaultSeekConfig()
	seekCfg.SeekTimeout = 5 * time.Millisecond
	d := NewDefaultDriver(logger.NewNoop(), seekCfg, testFrameCallbackConfig())

	res, err := d.Capture(context.Background(), src, pipeline.CaptureAuto, Params{TargetFPS: 10}, nil)
	if !errors.Is(err, pipeline.ErrCaptureStalled) {
		t.Fatalf("expected ErrCaptureStalled, got %v", err)
	}
	if n := src.SeekCount(); n != seekCfg.MaxConsecutiveTimeouts {
		t.Errorf("expected one stalled seek run of %d seeks, got %d", seekCfg.MaxConsecutiveTimeouts, n)
	}
	want := []pipeline.CaptureMode{pipeline.CaptureDemuxer, pipeline.CaptureTrackProcessor, pipeline.CaptureFrameCallback, pipeline.CaptureSeek}
	if !reflect.DeepEqual(res.Tried, want) {
		t.Errorf("expected %v tried, got %v", want, res.Tried)
	}
}

func TestDriver_DiscardsFramesOfFailedAdapter(t *testing.T) {
	src := mocks.NewPlayableSource(2*time.Second, 100*time.Millisecond)
	src.MediaTimes = src.MediaTimes[:3]
	src.HoldOpen = true

	res, err := newDriver().Capture(context.Background(), src, pipeline.CaptureFrameCallback, Params{TargetFPS: 10}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Mode != pipeline.CaptureSeek || len(res.Frames) != 20 {
		t.Errorf("expected 20 seek frames only, got %d from %s", len(res.Frames), res.Mode)
	}
	assertIncreasing(t, res.Frames)
}

func TestDriver_IncompleteCaptureEscalates(t *testing.T) {
	src := mocks.NewStreamSource(4*time.Second, 100*time.Millisecond)
	src.FrameTimes = src.FrameTimes[:8]

	res, err := newDriver().Capture(context.Background(), src, pipeline.CaptureTrackProcessor, Params{TargetFPS: 10}, nil)
	if !errors.Is(err, pipeline.ErrCaptureIncomplete) {
		t.Fatalf("expected ErrCaptureIncomplete, got %v", err)
	}
	if len(res.Tried) != 1 {
		t.Errorf("incomplete capture must not retry other adapters, tried %v", res.Tried)
	}
	if pipeline.Classify(err) != pipeline.PhaseDecode {
		t.Errorf("expected decode phase, got %s", pipeline.Classify(err))
	}
}

func TestDriver_PartialCaptureAccepted(t *testing.T) {
	src := mocks.NewStreamSource(4*time.Second, 100*time.Millisecond)
	src.FrameTimes = src.FrameTimes[:25]

	res, err := newDriver().Capture(context.Background(), src, pipeline.CaptureTrackProcessor, Params{TargetFPS: 10}, nil)
	if err != nil {
		t.Fatalf("expected 25 of 40 to be accepted, got %v", err)
	}
	if len(res.Frames) != 25 || res.Expected != 40 {
		t.Errorf("expected 25/40, got %d/%d", len(res.Frames), res.Expected)
	}
}

func TestDriver_CancellationStopsImmediately(t *testing.T) {
	src := mocks.NewStreamSource(2*time.Second, 40*time.Millisecond)

	res, err := newDriver().Capture(context.Background(), src, pipeline.CaptureAuto, Params{TargetFPS: 10, ShouldCancel: func() bool { return true }}, nil)
	if !errors.Is(err, pipeline.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if len(res.Tried) != 1 {
		t.Errorf("expected no further adapters after cancel, tried %v", res.Tried)
	}
	if pipeline.Classify(err) != pipeline.PhaseNone {
		t.Errorf("cancellation must classify as none, got %s", pipeline.Classify(err))
	}
}

func TestDriver_AllAdaptersFail(t *testing.T) {
	src := mocks.NewFrameSource(0)

	_, err := newDriver().Capture(context.Background(), src, pipeline.CaptureSeek, Params{TargetFPS: 10}, nil)
	if !errors.Is(err, pipeline.ErrDecodeBackendFailed) || !errors.Is(err, ErrUnknownDuration) {
		t.Errorf("expected wrapped decode failure, got %v", err)
	}
}

func TestDriver_NoAdaptersSupportSource(t *testing.T) {
	d := NewDriver(logger.NewNoop(), NewDemuxer(logger.NewNoop()))
	_, err := d.Capture(context.Background(), mocks.NewFrameSource(time.Second), pipeline.CaptureAuto, Params{}, nil)
	if !errors.Is(err, pipeline.ErrNoFrames) {
		t.Errorf("expected ErrNoFrames, got %v", err)
	}
}
