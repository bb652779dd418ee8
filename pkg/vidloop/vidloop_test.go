package vidloop

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/user/vidloop/pkg/adapters/gifencoder"
	"github.com/user/vidloop/pkg/adapters/logger"
	"github.com/user/vidloop/pkg/capture"
	"github.com/user/vidloop/pkg/config"
	"github.com/user/vidloop/pkg/mocks"
	"github.com/user/vidloop/pkg/pipeline"
	"github.com/user/vidloop/pkg/ports"
)

func TestGetQualitySettings(t *testing.T) {
	low := GetQualitySettings(pipeline.QualityLow)
	high := GetQualitySettings(pipeline.QualityHigh)

	if low.GIFColors >= high.GIFColors {
		t.Errorf("high quality should use more colors: low=%d high=%d", low.GIFColors, high.GIFColors)
	}
	if low.VideoCRF <= high.VideoCRF {
		t.Errorf("high quality should use a lower CRF: low=%d high=%d", low.VideoCRF, high.VideoCRF)
	}
	if low.WebPQuality >= high.WebPQuality {
		t.Errorf("high quality should use a higher webp quality: low=%d high=%d", low.WebPQuality, high.WebPQuality)
	}
	if low.DecodeBudgetBytes <= high.DecodeBudgetBytes {
		t.Errorf("low quality should get the larger decode budget: low=%d high=%d", low.DecodeBudgetBytes, high.DecodeBudgetBytes)
	}
	if low.Dither {
		t.Error("low quality should not dither")
	}
}

func TestConfigBuilder(t *testing.T) {
	cfg := NewConfigBuilder().
		WithFormat(pipeline.FormatWebP).
		WithQuality(pipeline.QualityHigh).
		WithScale(0.5).
		WithFPS(15).
		WithMaxFrames(90).
		WithCaptureMode(pipeline.CaptureSeek).
		WithPath(pipeline.PathSoftware).
		WithoutFallback().
		WithEncodeTimeout(time.Minute).
		WithWorkers(3).
		WithSourceBackend(config.SourceChrome).
		WithChromePath("/opt/chrome").
		WithHeadless(false).
		WithDebug("").
		Build()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("built config must validate: %v", err)
	}
	req, err := cfg.Request("clip.webm")
	if err != nil {
		t.Fatal(err)
	}
	if req.Format != pipeline.FormatWebP || req.Quality != pipeline.QualityHigh || req.Scale != 0.5 {
		t.Errorf("unexpected request %+v", req)
	}
	if req.CaptureMode != pipeline.CaptureSeek || req.ForcePath != pipeline.PathSoftware || !req.DisableFallback {
		t.Errorf("unexpected request %+v", req)
	}
	if cfg.Source.Headless || cfg.Source.ChromePath != "/opt/chrome" {
		t.Errorf("unexpected source config %+v", cfg.Source)
	}
	if !cfg.Debug || cfg.DebugDir != "./debug" {
		t.Errorf("expected debug with default dir, got %v %q", cfg.Debug, cfg.DebugDir)
	}
}

type fakeProber struct {
	meta  pipeline.VideoMetadata
	err   error
	calls int
}

func (p *fakeProber) Probe(ctx context.Context, src string) (pipeline.VideoMetadata, error) {
	p.calls++
	return p.meta, p.err
}

func TestMetadataProber(t *testing.T) {
	mp4Meta := pipeline.VideoMetadata{Codec: "avc1", Container: "mp4"}
	ffMeta := pipeline.VideoMetadata{Codec: "vp9", Container: "webm"}

	t.Run("mp4 files use mp4probe", func(t *testing.T) {
		mp4, ff := &fakeProber{meta: mp4Meta}, &fakeProber{meta: ffMeta}
		meta, err := NewMetadataProber(mp4, ff, logger.NewNoop()).Probe(context.Background(), "a.mp4")
		if err != nil || meta.Codec != "avc1" {
			t.Errorf("expected mp4 metadata, got %+v, %v", meta, err)
		}
		if ff.calls != 0 {
			t.Error("ffprobe should not run when mp4probe succeeds")
		}
	})

	t.Run("other containers use ffprobe", func(t *testing.T) {
		mp4, ff := &fakeProber{meta: mp4Meta}, &fakeProber{meta: ffMeta}
		meta, _ := NewMetadataProber(mp4, ff, logger.NewNoop()).Probe(context.Background(), "a.webm")
		if meta.Codec != "vp9" || mp4.calls != 0 {
			t.Errorf("expected ffprobe metadata only, got %+v (mp4 calls %d)", meta, mp4.calls)
		}
	})

	t.Run("mp4probe failure falls back", func(t *testing.T) {
		mp4, ff := &fakeProber{err: errors.New("bad box")}, &fakeProber{meta: ffMeta}
		meta, err := NewMetadataProber(mp4, ff, logger.NewNoop()).Probe(context.Background(), "a.mov")
		if err != nil || meta.Codec != "vp9" {
			t.Errorf("expected ffprobe fallback, got %+v, %v", meta, err)
		}
	})

	t.Run("no prober", func(t *testing.T) {
		_, err := NewMetadataProber(nil, nil, logger.NewNoop()).Probe(context.Background(), "a.webm")
		if !errors.Is(err, ErrNoProber) {
			t.Errorf("expected ErrNoProber, got %v", err)
		}
		mp4 := &fakeProber{err: errors.New("bad box")}
		if _, err := NewMetadataProber(mp4, nil, logger.NewNoop()).Probe(context.Background(), "a.mp4"); err == nil || errors.Is(err, ErrNoProber) {
			t.Errorf("expected the mp4probe error, got %v", err)
		}
	})
}

func TestSourceRouter(t *testing.T) {
	ffSource := mocks.NewFrameSource(time.Second)
	chromeSource := mocks.NewFrameSource(2 * time.Second)
	failing := func(ctx context.Context, src string, meta pipeline.VideoMetadata, opts ports.SourceOptions) (ports.FrameSource, error) {
		return nil, errors.New("launch failed")
	}

	tests := []struct {
		name       string
		backend    string
		ffFails    bool
		chromeFail bool
		want       ports.FrameSource
	}{
		{"auto prefers ffmpeg", config.SourceAuto, false, false, ffSource},
		{"auto falls back to chrome", config.SourceAuto, true, false, chromeSource},
		{"chrome preferred", config.SourceChrome, false, false, chromeSource},
		{"chrome falls back to ffmpeg", config.SourceChrome, false, true, ffSource},
		{"empty backend is auto", "", false, false, ffSource},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ff := &mocks.SourceOpener{Source: ffSource}
			chrome := &mocks.SourceOpener{Source: chromeSource}
			if tt.ffFails {
				ff.OpenFunc = failing
			}
			if tt.chromeFail {
				chrome.OpenFunc = failing
			}
			router := NewSourceRouter(tt.backend, ff, chrome, logger.NewNoop())
			got, err := router.Open(context.Background(), "a.mp4", pipeline.VideoMetadata{}, ports.SourceOptions{})
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("opened the wrong backend")
			}
		})
	}
}

func TestSourceRouter_Errors(t *testing.T) {
	if _, err := NewSourceRouter(config.SourceAuto, nil, nil, logger.NewNoop()).Open(context.Background(), "a.mp4", pipeline.VideoMetadata{}, ports.SourceOptions{}); !errors.Is(err, ErrNoSourceBackend) {
		t.Errorf("expected ErrNoSourceBackend, got %v", err)
	}

	chrome := &mocks.SourceOpener{Source: mocks.NewFrameSource(time.Second)}
	router := NewSourceRouter(config.SourceFFmpeg, nil, chrome, logger.NewNoop())
	if _, err := router.Open(context.Background(), "a.mp4", pipeline.VideoMetadata{}, ports.SourceOptions{}); !errors.Is(err, ErrNoSourceBackend) {
		t.Errorf("ffmpeg backend must not use chrome, got %v", err)
	}

	cancelled := &mocks.SourceOpener{OpenFunc: func(ctx context.Context, src string, meta pipeline.VideoMetadata, opts ports.SourceOptions) (ports.FrameSource, error) {
		return nil, pipeline.ErrCancelled
	}}
	chrome = &mocks.SourceOpener{Source: mocks.NewFrameSource(time.Second)}
	router = NewSourceRouter(config.SourceAuto, cancelled, chrome, logger.NewNoop())
	if _, err := router.Open(context.Background(), "a.mp4", pipeline.VideoMetadata{}, ports.SourceOptions{}); !errors.Is(err, pipeline.ErrCancelled) {
		t.Errorf("expected cancellation to stop the fallback, got %v", err)
	}
	if len(chrome.Opens) != 0 {
		t.Error("chrome should not be tried after a cancellation")
	}
}

func TestSampleIndex_UnsupportedContainer(t *testing.T) {
	_, err := sampleIndex(nil)(context.Background(), "clip.webm")
	if !errors.Is(err, capture.ErrUnsupportedSource) {
		t.Errorf("expected ErrUnsupportedSource, got %v", err)
	}
}

func testConfig(t *testing.T) config.Config {
	return NewConfigBuilder().
		WithFFmpegPath(filepath.Join(t.TempDir(), "no-ffmpeg")).
		WithSourceBackend(config.SourceFFmpeg).
		WithSessionDir(filepath.Join(t.TempDir(), "session")).
		WithWorkers(2).
		Build()
}

func TestConverter_WithoutFFmpeg(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	conv, err := New(cfg, logger.NewNoop(), Callbacks{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	var palette *EncoderReport
	for _, r := range conv.Encoders(ctx) {
		if r.Format != pipeline.FormatGIF && r.Name == gifencoder.Name {
			t.Errorf("palette encoder listed for %s", r.Format)
		}
		if r.Name == gifencoder.Name {
			r := r
			palette = &r
		}
	}
	if palette == nil || !palette.Available {
		t.Fatalf("expected the palette encoder to be available, got %+v", palette)
	}

	snap, err := conv.Capabilities(ctx)
	if err != nil {
		t.Fatalf("Capabilities failed: %v", err)
	}
	if snap.CanEncode(pipeline.FormatVideo) {
		t.Error("mp4 encode should be unsupported without ffmpeg")
	}

	_, err = conv.Convert(ctx, filepath.Join(t.TempDir(), "missing.webm"))
	var convErr *pipeline.ConversionError
	if !errors.As(err, &convErr) {
		t.Fatalf("expected ConversionError, got %v", err)
	}
	if got := len(conv.History()); got != 1 {
		t.Fatalf("expected exactly one history record, got %d", got)
	}
	if err := conv.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// History survives a restart.
	conv, err = New(cfg, logger.NewNoop(), Callbacks{})
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer conv.Close()
	if got := len(conv.History()); got != 1 {
		t.Fatalf("expected persisted record, got %d", got)
	}
	if err := conv.ClearHistory(); err != nil {
		t.Fatal(err)
	}
	if got := len(conv.History()); got != 0 {
		t.Errorf("expected empty history after clear, got %d", got)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.Format = "avi"
	if _, err := New(cfg, logger.NewNoop(), Callbacks{}); err == nil {
		t.Error("expected validation error")
	}
}
