// Package ffmpegencoder provides pipeline encoders that pipe raw RGBA frames
// into an ffmpeg process.
package ffmpegencoder

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"strconv"

	"golang.org/x/image/draw"

	"github.com/user/vidloop/pkg/adapters/ffmpeg"
	"github.com/user/vidloop/pkg/pipeline"
	"github.com/user/vidloop/pkg/ports"
)

// Encoder names.
const (
	NameGIF  = "gif-ffmpeg"
	NameWebP = "webp-ffmpeg"
	NameMP4  = "mp4-ffmpeg"
)

// Encoder encodes one output format with ffmpeg.
type Encoder struct {
	name   string
	format pipeline.OutputFormat
	score  float64
	runner *ffmpeg.Runner
	build  ffmpeg.BuildFunc
	logger ports.Logger
}

// NewGIF creates the palette-generating GIF encoder.
func NewGIF(runner *ffmpeg.Runner, build ffmpeg.BuildFunc, logger ports.Logger) *Encoder {
	return newEncoder(NameGIF, pipeline.FormatGIF, 9, runner, build, logger)
}

// NewWebP creates the animated WebP encoder.
func NewWebP(runner *ffmpeg.Runner, build ffmpeg.BuildFunc, logger ports.Logger) *Encoder {
	return newEncoder(NameWebP, pipeline.FormatWebP, 8, runner, build, logger)
}

// NewMP4 creates the H.264 MP4 encoder. It picks the first H.264 encoder the build offers.
func NewMP4(runner *ffmpeg.Runner, build ffmpeg.BuildFunc, logger ports.Logger) *Encoder {
	return newEncoder(NameMP4, pipeline.FormatVideo, 10, runner, build, logger)
}

// All returns one encoder per output format sharing the build probe.
func All(runner *ffmpeg.Runner, build ffmpeg.BuildFunc, logger ports.Logger) []*Encoder {
	return []*Encoder{
		NewGIF(runner, build, logger),
		NewWebP(runner, build, logger),
		NewMP4(runner, build, logger),
	}
}

func newEncoder(name string, format pipeline.OutputFormat, score float64, runner *ffmpeg.Runner, build ffmpeg.BuildFunc, logger ports.Logger) *Encoder {
	return &Encoder{
		name:   name,
		format: format,
		score:  score,
		runner: runner,
		build:  build,
		logger: logger.WithComponent(name),
	}
}

// Name implements ports.Encoder.
func (e *Encoder) Name() string {
	return e.name
}

// Capabilities implements ports.Encoder.
func (e *Encoder) Capabilities() pipeline.EncoderCapabilities {
	return pipeline.EncoderCapabilities{
		Formats:          []pipeline.OutputFormat{e.format},
		WorkerCapable:    true,
		PerformanceScore: e.score,
	}
}

// IsAvailable implements ports.Encoder.
func (e *Encoder) IsAvailable(ctx context.Context) bool {
	_, err := e.codec(ctx)
	if err != nil {
		e.logger.Debug("Unavailable: %v", err)
	}
	return err == nil
}

// Encode implements ports.Encoder.
func (e *Encoder) Encode(ctx context.Context, frames []pipeline.Frame, opts ports.EncodeOptions) ([]byte, error) {
	if len(frames) == 0 {
		return nil, pipeline.ErrNoFrames
	}
	name, err := e.codec(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", pipeline.ErrEncoderUnavailable, err)
	}

	w, h := opts.Width, opts.Height
	if w <= 0 || h <= 0 {
		b := frames[0].Image.Bounds()
		w, h = b.Dx(), b.Dy()
	}
	w, h = even(w), even(h)
	fps := opts.FPS
	if fps <= 0 {
		fps = 10
	}

	out, err := os.CreateTemp("", "vidloop-*"+e.format.Extension())
	if err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}
	outPath := out.Name()
	out.Close()
	defer os.Remove(outPath)

	args := append(InputArgs(w, h, fps), OutputArgs(e.format, name, opts.Quality, "")...)
	args = append(args, "-y", outPath)

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(writeFrames(pw, frames, w, h, opts))
	}()

	runErr := e.runner.Run(ctx, args, pr, nil)
	pr.Close()
	if runErr != nil {
		if pipeline.IsCancellation(runErr) {
			return nil, runErr
		}
		return nil, fmt.Errorf("%w: %w", pipeline.ErrEncodeFailed, runErr)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}
	e.logger.Debug("Encoded %d frames at %dx%d with %s: %d bytes", len(frames), w, h, name, len(data))
	return data, nil
}

// Dispose implements ports.Encoder.
func (e *Encoder) Dispose() error {
	return nil
}

// codec returns the ffmpeg encoder name used for the output format.
func (e *Encoder) codec(ctx context.Context) (string, error) {
	if e.runner == nil || e.build == nil {
		return "", ffmpeg.ErrNotFound
	}
	b, err := e.build(ctx)
	if err != nil {
		return "", err
	}
	name, ok := b.FirstEncoder(e.format)
	if !ok {
		return "", fmt.Errorf("ffmpeg build has no %s encoder", e.format)
	}
	return name, nil
}

// InputArgs describes the raw RGBA stream on stdin.
func InputArgs(w, h int, fps float64) []string {
	return []string{
		"-hide_banner", "-nostdin", "-loglevel", "error",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", w, h),
		"-r", strconv.FormatFloat(fps, 'f', -1, 64),
		"-i", "pipe:0",
	}
}

// OutputArgs returns the codec arguments for format encoded with the named
// ffmpeg encoder. pre is an optional filter chain applied before encoding.
func OutputArgs(format pipeline.OutputFormat, name string, q pipeline.QualityTier, pre string) []string {
	if format == pipeline.FormatGIF {
		palette := "split[a][b];[a]palettegen=stats_mode=diff:max_colors=" + strconv.Itoa(gifColors(q)) +
			"[p];[b][p]paletteuse=dither=" + gifDither(q)
		if pre != "" {
			palette = pre + "," + palette
		}
		return []string{"-filter_complex", palette, "-loop", "0", "-f", "gif"}
	}

	var args []string
	if pre != "" {
		args = append(args, "-vf", pre)
	}
	switch format {
	case pipeline.FormatWebP:
		return append(args,
			"-c:v", name,
			"-lossless", "0",
			"-quality", strconv.Itoa(WebPQuality(q)),
			"-loop", "0",
			"-f", "webp",
		)
	default:
		args = append(args, "-c:v", name, "-pix_fmt", "yuv420p")
		if name == "libx264" {
			args = append(args, "-preset", "fast", "-crf", strconv.Itoa(CRF(q)))
		}
		return append(args, "-movflags", "+faststart", "-f", "mp4")
	}
}

func gifColors(q pipeline.QualityTier) int {
	switch q {
	case pipeline.QualityLow:
		return 64
	case pipeline.QualityHigh:
		return 256
	}
	return 128
}

func gifDither(q pipeline.QualityTier) string {
	if q == pipeline.QualityHigh {
		return "sierra2_4a"
	}
	return "bayer:bayer_scale=3"
}

// WebPQuality returns the libwebp quality of a tier.
func WebPQuality(q pipeline.QualityTier) int {
	switch q {
	case pipeline.QualityLow:
		return 50
	case pipeline.QualityHigh:
		return 90
	}
	return 75
}

// CRF returns the libx264 constant rate factor of a tier.
func CRF(q pipeline.QualityTier) int {
	switch q {
	case pipeline.QualityLow:
		return 30
	case pipeline.QualityHigh:
		return 18
	}
	return 23
}

// writeFrames writes frames as packed RGBA of size w x h.
func writeFrames(w io.Writer, frames []pipeline.Frame, width, height int, opts ports.EncodeOptions) error {
	buf := image.NewRGBA(image.Rect(0, 0, width, height))
	for i, f := range frames {
		if opts.ShouldCancel != nil && opts.ShouldCancel() {
			return pipeline.ErrCancelled
		}
		if f.Image == nil {
			return fmt.Errorf("frame %d has no image", f.Index)
		}
		toRGBA(buf, f.Image)
		if _, err := w.Write(buf.Pix); err != nil {
			return err
		}
		if opts.OnProgress != nil {
			opts.OnProgress(i+1, len(frames))
		}
	}
	return nil
}

// toRGBA draws src into dst, scaling when the sizes differ.
func toRGBA(dst *image.RGBA, src image.Image) {
	sb := src.Bounds()
	if sb.Dx() == dst.Rect.Dx() && sb.Dy() == dst.Rect.Dy() {
		draw.Draw(dst, dst.Rect, src, sb.Min, draw.Src)
		return
	}
	draw.ApproxBiLinear.Scale(dst, dst.Rect, src, sb, draw.Src, nil)
}

func even(n int) int {
	n -= n % 2
	if n < 2 {
		return 2
	}
	return n
}

var _ ports.Encoder = (*Encoder)(nil)
