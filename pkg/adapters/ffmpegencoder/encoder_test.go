package ffmpegencoder

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/user/vidloop/pkg/adapters/ffmpeg"
	"github.com/user/vidloop/pkg/adapters/logger"
	"github.com/user/vidloop/pkg/pipeline"
	"github.com/user/vidloop/pkg/ports"
)

func fixedBuild(encoders ...string) ffmpeg.BuildFunc {
	b := ffmpeg.Build{Encoders: map[string]bool{}}
	for _, name := range encoders {
		b.Encoders[name] = true
	}
	return func(ctx context.Context) (ffmpeg.Build, error) { return b, nil }
}

func solid(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		r, g, b, a := c.RGBA()
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = byte(r>>8), byte(g>>8), byte(b>>8), byte(a>>8)
	}
	return img
}

func TestEncoder_IsAvailable(t *testing.T) {
	runner := ffmpeg.NewRunner("ffmpeg", logger.NewNoop())
	ctx := context.Background()

	tests := []struct {
		name string
		enc  *Encoder
		want bool
	}{
		{"gif with gif encoder", NewGIF(runner, fixedBuild("gif"), logger.NewNoop()), true},
		{"webp without libwebp", NewWebP(runner, fixedBuild("gif"), logger.NewNoop()), false},
		{"mp4 with nvenc", NewMP4(runner, fixedBuild("h264_nvenc"), logger.NewNoop()), true},
		{"no runner", NewGIF(nil, fixedBuild("gif"), logger.NewNoop()), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.enc.IsAvailable(ctx); got != tt.want {
				t.Errorf("IsAvailable() = %t, want %t", got, tt.want)
			}
		})
	}

	failing := NewGIF(runner, func(ctx context.Context) (ffmpeg.Build, error) {
		return ffmpeg.Build{}, errors.New("boom")
	}, logger.NewNoop())
	if failing.IsAvailable(ctx) {
		t.Error("expected unavailable when the build probe fails")
	}
}

func TestEncoder_Capabilities(t *testing.T) {
	for _, enc := range All(nil, nil, logger.NewNoop()) {
		caps := enc.Capabilities()
		if len(caps.Formats) != 1 {
			t.Errorf("%s: expected a single format, got %v", enc.Name(), caps.Formats)
		}
	}
}

func TestOutputArgs(t *testing.T) {
	gif := strings.Join(OutputArgs(pipeline.FormatGIF, "gif", pipeline.QualityLow, ""), " ")
	if !strings.Contains(gif, "max_colors=64") || !strings.Contains(gif, "-loop 0") {
		t.Errorf("unexpected gif args %q", gif)
	}

	webp := strings.Join(OutputArgs(pipeline.FormatWebP, "libwebp_anim", pipeline.QualityHigh, ""), " ")
	if !strings.Contains(webp, "-c:v libwebp_anim") || !strings.Contains(webp, "-quality 90") {
		t.Errorf("unexpected webp args %q", webp)
	}

	x264 := strings.Join(OutputArgs(pipeline.FormatVideo, "libx264", pipeline.QualityMedium, ""), " ")
	if !strings.Contains(x264, "-crf 23") || !strings.Contains(x264, "+faststart") {
		t.Errorf("unexpected mp4 args %q", x264)
	}
	pre := strings.Join(OutputArgs(pipeline.FormatGIF, "gif", pipeline.QualityMedium, "fps=10"), " ")
	if !strings.Contains(pre, "-filter_complex fps=10,split[a][b]") {
		t.Errorf("expected prefilter in palette graph, got %q", pre)
	}
	if vf := strings.Join(OutputArgs(pipeline.FormatWebP, "libwebp", pipeline.QualityMedium, "fps=10"), " "); !strings.Contains(vf, "-vf fps=10") {
		t.Errorf("expected -vf prefilter, got %q", vf)
	}
	if nvenc := strings.Join(OutputArgs(pipeline.FormatVideo, "h264_nvenc", pipeline.QualityMedium, ""), " "); strings.Contains(nvenc, "-crf") {
		t.Errorf("crf is libx264 specific, got %q", nvenc)
	}
}

func TestInputArgs(t *testing.T) {
	got := strings.Join(InputArgs(320, 180, 12.5), " ")
	if !strings.Contains(got, "-s 320x180 -r 12.5 -i pipe:0") {
		t.Errorf("unexpected input args %q", got)
	}
}

func TestWriteFrames(t *testing.T) {
	frames := []pipeline.Frame{
		{Index: 0, Image: solid(4, 4, color.RGBA{R: 255, A: 255})},
		{Index: 1, Image: solid(8, 8, color.RGBA{G: 255, A: 255})},
	}
	var progress []int
	var buf bytes.Buffer
	err := writeFrames(&buf, frames, 4, 4, ports.EncodeOptions{
		OnProgress: func(done, total int) { progress = append(progress, done) },
	})
	if err != nil {
		t.Fatalf("writeFrames failed: %v", err)
	}
	if buf.Len() != 2*4*4*4 {
		t.Errorf("expected %d bytes, got %d", 2*4*4*4, buf.Len())
	}
	if len(progress) != 2 || progress[1] != 2 {
		t.Errorf("unexpected progress %v", progress)
	}
	if buf.Bytes()[4*4*4+1] != 255 {
		t.Error("expected scaled second frame to be green")
	}
}

func TestWriteFrames_Cancelled(t *testing.T) {
	frames := []pipeline.Frame{{Image: solid(2, 2, color.Black)}}
	err := writeFrames(&bytes.Buffer{}, frames, 2, 2, ports.EncodeOptions{
		ShouldCancel: func() bool { return true },
	})
	if !errors.Is(err, pipeline.ErrCancelled) {
		t.Errorf("expected ErrCancelled, got %v", err)
	}
}

func TestEncoder_Encode_NoFrames(t *testing.T) {
	enc := NewGIF(nil, fixedBuild("gif"), logger.NewNoop())
	if _, err := enc.Encode(context.Background(), nil, ports.EncodeOptions{}); !errors.Is(err, pipeline.ErrNoFrames) {
		t.Errorf("expected ErrNoFrames, got %v", err)
	}
	frames := []pipeline.Frame{{Image: solid(2, 2, color.Black)}}
	if _, err := enc.Encode(context.Background(), frames, ports.EncodeOptions{}); !errors.Is(err, pipeline.ErrEncoderUnavailable) {
		t.Errorf("expected ErrEncoderUnavailable without runner, got %v", err)
	}
}
