package gifencoder

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"sync/atomic"
	"testing"
	"time"

	"github.com/user/vidloop/pkg/adapters/logger"
	"github.com/user/vidloop/pkg/pipeline"
	"github.com/user/vidloop/pkg/ports"
	"github.com/user/vidloop/pkg/workerpool"
)

func gradient(w, h int, shift uint8) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: shift, A: 255})
		}
	}
	return img
}

func testFrames(n, w, h int) []pipeline.Frame {
	frames := make([]pipeline.Frame, n)
	for i := range frames {
		frames[i] = pipeline.Frame{
			Index:     i,
			Timestamp: time.Duration(i) * 100 * time.Millisecond,
			Image:     gradient(w, h, uint8(i*40)),
		}
	}
	return frames
}

func TestEncoder_Encode(t *testing.T) {
	enc := New(Options{Workers: 2}, logger.NewNoop())

	var progress []int
	data, err := enc.Encode(context.Background(), testFrames(4, 32, 16), ports.EncodeOptions{
		Format:     pipeline.FormatGIF,
		Width:      16,
		Height:     8,
		FPS:        10,
		Quality:    pipeline.QualityLow,
		OnProgress: func(done, total int) { progress = append(progress, done) },
	})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	anim, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not a gif: %v", err)
	}
	if len(anim.Image) != 4 {
		t.Errorf("expected 4 frames, got %d", len(anim.Image))
	}
	if b := anim.Image[0].Bounds(); b.Dx() != 16 || b.Dy() != 8 {
		t.Errorf("expected 16x8 frames, got %v", b)
	}
	if len(anim.Image[0].Palette) > 64 {
		t.Errorf("low quality palette exceeds 64 colours: %d", len(anim.Image[0].Palette))
	}
	if anim.Delay[0] != 10 {
		t.Errorf("expected 10cs delay, got %d", anim.Delay[0])
	}
	if len(progress) != 4 {
		t.Errorf("expected 4 progress callbacks, got %v", progress)
	}
}

func TestEncoder_Encode_Errors(t *testing.T) {
	enc := New(Options{Workers: 1}, logger.NewNoop())
	ctx := context.Background()

	if _, err := enc.Encode(ctx, nil, ports.EncodeOptions{}); !errors.Is(err, pipeline.ErrNoFrames) {
		t.Errorf("expected ErrNoFrames, got %v", err)
	}
	if _, err := enc.Encode(ctx, testFrames(1, 4, 4), ports.EncodeOptions{Format: pipeline.FormatWebP}); !errors.Is(err, pipeline.ErrEncoderUnavailable) {
		t.Errorf("expected ErrEncoderUnavailable for webp, got %v", err)
	}
	if _, err := enc.Encode(ctx, testFrames(1, 4, 4), ports.EncodeOptions{Width: 4000, Height: 10}); !errors.Is(err, pipeline.ErrEncodeFailed) {
		t.Errorf("expected ErrEncodeFailed over MaxDimension, got %v", err)
	}

	_, err := enc.Encode(ctx, testFrames(3, 4, 4), ports.EncodeOptions{ShouldCancel: func() bool { return true }})
	if !pipeline.IsCancellation(err) {
		t.Errorf("expected cancellation, got %v", err)
	}
}

func TestEncoder_Encode_FrameTimeout(t *testing.T) {
	enc := New(Options{Workers: 1, FrameTimeout: time.Millisecond}, logger.NewNoop())

	var progress atomic.Int32
	_, err := enc.Encode(context.Background(), testFrames(1, 1920, 1080), ports.EncodeOptions{
		Format:     pipeline.FormatGIF,
		Quality:    pipeline.QualityHigh,
		OnProgress: func(done, total int) { progress.Add(1) },
	})
	if !errors.Is(err, pipeline.ErrEncodeTimeout) {
		t.Fatalf("expected ErrEncodeTimeout, got %v", err)
	}
	if !errors.Is(err, workerpool.ErrTaskTimeout) {
		t.Errorf("expected the pool timeout to stay in the chain, got %v", err)
	}

	// The replaced worker must not finish its frame later.
	time.Sleep(300 * time.Millisecond)
	if n := progress.Load(); n != 0 {
		t.Errorf("expected no progress after the timeout, got %d callbacks", n)
	}
}

// stopAfter calls fire once At has been called n times.
type stopAfter struct {
	image.Image
	n     int
	calls int
	fire  func()
}

func (s *stopAfter) At(x, y int) color.Color {
	s.calls++
	if s.calls == s.n {
		s.fire()
	}
	return s.Image.At(x, y)
}

func TestQuantizer_TerminateMidFrame(t *testing.T) {
	var done int
	q := &quantizer{settings: SettingsFor(pipeline.QualityHigh), done: func() { done++ }}
	img := &stopAfter{Image: gradient(256, 256, 0), n: 100, fire: q.Terminate}

	out, err := q.Process(context.Background(), task{img: img, width: 256, height: 256})
	if err == nil || out != nil {
		t.Fatalf("expected the terminated worker to stop, got %v", err)
	}
	if done != 0 {
		t.Errorf("terminated worker reported progress %d times", done)
	}
	// Sampling stops at the next row, well before the whole image is read.
	if img.calls >= 256*256 {
		t.Errorf("worker kept sampling after Terminate: %d pixel reads", img.calls)
	}

	if _, err := q.Process(context.Background(), task{img: gradient(8, 8, 0), width: 8, height: 8}); err == nil {
		t.Error("expected a terminated worker to refuse new frames")
	}
}

func TestQuantizer_BandedDraw(t *testing.T) {
	var done int
	q := &quantizer{settings: SettingsFor(pipeline.QualityLow), done: func() { done++ }}
	src := gradient(40, 300, 0)

	out, err := q.Process(context.Background(), task{img: src, width: 40, height: 300})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if done != 1 {
		t.Errorf("expected one progress report, got %d", done)
	}
	// Rows past the first band are drawn too.
	last := out.At(39, 299)
	if r, g, _, _ := last.RGBA(); r>>8 < 128 || g>>8 < 128 {
		t.Errorf("bottom-right pixel was not drawn: %v", last)
	}
}

func TestMedianCut(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 1))
	img.Set(0, 0, color.RGBA{255, 0, 0, 255})
	img.Set(1, 0, color.RGBA{255, 0, 0, 255})
	img.Set(2, 0, color.RGBA{0, 0, 255, 255})
	img.Set(3, 0, color.RGBA{0, 0, 255, 255})

	p := MedianCut(img, 16)
	if len(p) != 2 {
		t.Fatalf("expected two colours for a two-colour image, got %d", len(p))
	}
	if p.Index(color.RGBA{250, 0, 0, 255}) == p.Index(color.RGBA{0, 0, 250, 255}) {
		t.Error("red and blue mapped to the same palette entry")
	}

	if got := MedianCut(gradient(64, 64, 0), 8); len(got) != 8 {
		t.Errorf("expected 8 colours, got %d", len(got))
	}
}

func TestDelays(t *testing.T) {
	frames := []pipeline.Frame{
		{Timestamp: 0},
		{Timestamp: 250 * time.Millisecond},
		{Timestamp: 250 * time.Millisecond},
		{Timestamp: 300 * time.Millisecond},
	}
	got := Delays(frames, 20)
	want := []int{25, 5, 5, 5}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("delay %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestSettingsFor(t *testing.T) {
	if s := SettingsFor(pipeline.QualityHigh); s.Colors != 256 || !s.Dither {
		t.Errorf("unexpected high settings %+v", s)
	}
	if s := SettingsFor(pipeline.QualityLow); s.Dither {
		t.Errorf("low quality must not dither: %+v", s)
	}
}
