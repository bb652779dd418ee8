package extract

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/user/vidloop/pkg/adapters/logger"
	"github.com/user/vidloop/pkg/capture"
	"github.com/user/vidloop/pkg/mocks"
	"github.com/user/vidloop/pkg/pipeline"
	"github.com/user/vidloop/pkg/ports"
)

func newDriver() *capture.Driver {
	return capture.NewDefaultDriver(logger.NewNoop(), capture.DefaultSeekConfig(), capture.DefaultFrameCallbackConfig())
}

func TestStage_Execute(t *testing.T) {
	src := mocks.NewStreamSource(2*time.Second, 40*time.Millisecond)
	opener := &mocks.SourceOpener{Source: src}
	sink := mocks.NewDebugSink(true)
	renderer := &mocks.Renderer{}
	stage := New(opener, newDriver(), sink, renderer, logger.NewNoop())

	observed := 0
	result, err := stage.Execute(context.Background(), Input{
		Source:   "clip.mp4",
		Params:   capture.Params{TargetFPS: 10},
		Width:    320,
		Height:   180,
		Hardware: true,
		Observe:  func(pipeline.Frame, int) { observed++ },
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Frames) != 20 || result.Expected != 20 {
		t.Errorf("expected 20/20 frames, got %d/%d", len(result.Frames), result.Expected)
	}
	if result.Mode != pipeline.CaptureDemuxer {
		t.Errorf("expected auto mode to pick demuxer, got %s", result.Mode)
	}
	if observed != 20 {
		t.Errorf("expected 20 observed frames, got %d", observed)
	}
	if !src.Closed {
		t.Error("expected source to be closed")
	}

	if len(opener.Opens) != 1 {
		t.Fatalf("expected 1 open, got %d", len(opener.Opens))
	}
	if want := (ports.SourceOptions{Width: 320, Height: 180, Hardware: true}); opener.Opens[0] != want {
		t.Errorf("expected %+v, got %+v", want, opener.Opens[0])
	}

	if sink.FrameCount() != 20 {
		t.Errorf("expected 20 debug frames, got %d", sink.FrameCount())
	}
	if len(renderer.Captions) != 20 || renderer.Captions[1] != "#1 0.080s" {
		t.Errorf("unexpected captions: %v", renderer.Captions)
	}
}

func TestStage_Execute_DebugDisabled(t *testing.T) {
	src := mocks.NewFrameSource(time.Second)
	renderer := &mocks.Renderer{}
	stage := New(&mocks.SourceOpener{Source: src}, newDriver(), &mocks.NullSink{}, renderer, logger.NewNoop())

	result, err := stage.Execute(context.Background(), Input{Mode: pipeline.CaptureSeek, Params: capture.Params{TargetFPS: 10}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Frames) != 10 {
		t.Errorf("expected 10 frames, got %d", len(result.Frames))
	}
	if len(renderer.Captions) != 0 {
		t.Error("expected no annotation when debug is disabled")
	}
}

func TestStage_Execute_OpenError(t *testing.T) {
	opener := &mocks.SourceOpener{
		OpenFunc: func(ctx context.Context, src string, meta pipeline.VideoMetadata, opts ports.SourceOptions) (ports.FrameSource, error) {
			return nil, errors.New("no hardware decoder")
		},
	}
	stage := New(opener, newDriver(), &mocks.NullSink{}, nil, logger.NewNoop())

	_, err := stage.Execute(context.Background(), Input{})
	if !errors.Is(err, pipeline.ErrDecodeBackendFailed) {
		t.Errorf("expected ErrDecodeBackendFailed, got %v", err)
	}
}

func TestStage_Execute_ClosesSourceOnFailure(t *testing.T) {
	src := mocks.NewStreamSource(4*time.Second, 100*time.Millisecond)
	src.FrameTimes = src.FrameTimes[:8]
	stage := New(&mocks.SourceOpener{Source: src}, newDriver(), &mocks.NullSink{}, nil, logger.NewNoop())

	_, err := stage.Execute(context.Background(), Input{Mode: pipeline.CaptureTrackProcessor, Params: capture.Params{TargetFPS: 10}})
	if !errors.Is(err, pipeline.ErrCaptureIncomplete) {
		t.Errorf("expected ErrCaptureIncomplete, got %v", err)
	}
	if !src.Closed {
		t.Error("expected source to be closed")
	}
}
