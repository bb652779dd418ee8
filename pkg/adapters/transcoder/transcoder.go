// Package transcoder is the software decode/encode backend: a single ffmpeg
// process that reads the source file and writes the output format without
// any hardware acceleration.
package transcoder

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/user/vidloop/pkg/adapters/ffmpeg"
	"github.com/user/vidloop/pkg/adapters/ffmpegencoder"
	"github.com/user/vidloop/pkg/pipeline"
	"github.com/user/vidloop/pkg/ports"
)

// Transcoder implements ports.Transcoder on ffmpeg.
type Transcoder struct {
	runner   *ffmpeg.Runner
	build    ffmpeg.BuildFunc
	encoders map[pipeline.OutputFormat]*ffmpegencoder.Encoder
	logger   ports.Logger
}

// New creates a transcoder. A nil runner yields a backend that is never
// available; a nil build probes the runner once.
func New(runner *ffmpeg.Runner, build ffmpeg.BuildFunc, logger ports.Logger) *Transcoder {
	t := &Transcoder{
		runner:   runner,
		build:    build,
		encoders: make(map[pipeline.OutputFormat]*ffmpegencoder.Encoder),
		logger:   logger.WithComponent("transcoder"),
	}
	if runner != nil {
		if t.build == nil {
			t.build = ffmpeg.CachedBuild(runner)
		}
		t.encoders[pipeline.FormatGIF] = ffmpegencoder.NewGIF(runner, t.build, logger)
		t.encoders[pipeline.FormatWebP] = ffmpegencoder.NewWebP(runner, t.build, logger)
		t.encoders[pipeline.FormatVideo] = ffmpegencoder.NewMP4(runner, t.build, logger)
	}
	return t
}

// Available implements ports.Transcoder.
func (t *Transcoder) Available(ctx context.Context) bool {
	if t.runner == nil {
		return false
	}
	if _, err := t.build(ctx); err != nil {
		t.logger.Debug("Backend unavailable: %v", err)
		return false
	}
	return true
}

// Transcode implements ports.Transcoder.
func (t *Transcoder) Transcode(ctx context.Context, src string, opts ports.TranscodeOptions, meta pipeline.VideoMetadata) ([]byte, error) {
	if !t.Available(ctx) {
		return nil, pipeline.ErrDecodeBackendFailed
	}
	b, err := t.build(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", pipeline.ErrDecodeBackendFailed, err)
	}
	name, ok := b.FirstEncoder(opts.Format)
	if !ok {
		return nil, fmt.Errorf("%w: no %s encoder in ffmpeg build", pipeline.ErrEncoderUnavailable, opts.Format)
	}

	out, err := os.CreateTemp("", "vidloop-sw-*"+opts.Format.Extension())
	if err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}
	outPath := out.Name()
	out.Close()
	defer os.Remove(outPath)

	progress := newProgressWriter(meta.DurationTime(), opts.MaxFrames, opts.OnProgress)
	start := time.Now()
	if err := t.runner.Run(ctx, Args(src, outPath, name, opts), nil, progress); err != nil {
		if pipeline.IsCancellation(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", pipeline.ErrDecodeBackendFailed, err)
	}
	progress.finish()

	data, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}
	t.logger.Debug("Transcoded %s with %s in %s: %d bytes", src, name, time.Since(start).Round(time.Millisecond), len(data))
	return data, nil
}

// EncodeFrames implements ports.Transcoder.
func (t *Transcoder) EncodeFrames(ctx context.Context, frames []pipeline.Frame, opts ports.EncodeOptions) ([]byte, error) {
	enc, ok := t.encoders[opts.Format]
	if !ok {
		return nil, fmt.Errorf("%w: software backend cannot encode %s", pipeline.ErrEncoderUnavailable, opts.Format)
	}
	return enc.Encode(ctx, frames, opts)
}

// Args builds the single-process transcode command line.
func Args(src, dst, encoder string, opts ports.TranscodeOptions) []string {
	args := []string{
		"-hide_banner", "-nostdin", "-loglevel", "error",
		"-nostats", "-progress", "pipe:1",
		"-i", src,
		"-an",
	}
	if opts.MaxFrames > 0 {
		args = append(args, "-frames:v", strconv.Itoa(opts.MaxFrames))
	}
	args = append(args, ffmpegencoder.OutputArgs(opts.Format, encoder, opts.Quality, filterChain(opts))...)
	return append(args, "-y", dst)
}

func filterChain(opts ports.TranscodeOptions) string {
	var filters []string
	if opts.FPS > 0 {
		filters = append(filters, "fps="+strconv.FormatFloat(opts.FPS, 'f', -1, 64))
	}
	if opts.Width > 0 && opts.Height > 0 {
		filters = append(filters, fmt.Sprintf("scale=%d:%d:flags=lanczos", opts.Width, opts.Height))
	}
	return strings.Join(filters, ",")
}

// progressWriter parses `-progress` key=value lines into a completed fraction.
type progressWriter struct {
	duration  time.Duration
	maxFrames int
	report    func(float64)

	mu      sync.Mutex
	pending []byte
	last    float64
}

func newProgressWriter(duration time.Duration, maxFrames int, report func(float64)) *progressWriter {
	return &progressWriter{duration: duration, maxFrames: maxFrames, report: report}
}

func (p *progressWriter) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = append(p.pending, b...)
	for {
		i := bytes.IndexByte(p.pending, '\n')
		if i < 0 {
			break
		}
		p.line(strings.TrimSpace(string(p.pending[:i])))
		p.pending = p.pending[i+1:]
	}
	return len(b), nil
}

// line must be called with mu held.
func (p *progressWriter) line(l string) {
	key, value, ok := strings.Cut(l, "=")
	if !ok {
		return
	}
	var fraction float64
	switch key {
	case "out_time_us", "out_time_ms":
		// out_time_ms is microseconds as well.
		us, err := strconv.ParseInt(value, 10, 64)
		if err != nil || p.duration <= 0 {
			return
		}
		fraction = float64(time.Duration(us)*time.Microsecond) / float64(p.duration)
	case "frame":
		n, err := strconv.Atoi(value)
		if err != nil || p.maxFrames <= 0 {
			return
		}
		fraction = float64(n) / float64(p.maxFrames)
	default:
		return
	}
	if fraction > 1 {
		fraction = 1
	}
	if fraction > p.last {
		p.last = fraction
		if p.report != nil {
			p.report(fraction)
		}
	}
}

func (p *progressWriter) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last < 1 && p.report != nil {
		p.last = 1
		p.report(1)
	}
}

var _ ports.Transcoder = (*Transcoder)(nil)
