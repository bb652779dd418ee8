// Package gifencoder provides the CPU palette GIF encoder. Every frame gets
// its own median-cut palette; frames are quantised in parallel on a worker pool.
package gifencoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/image/draw"

	"github.com/user/vidloop/pkg/pipeline"
	"github.com/user/vidloop/pkg/ports"
	"github.com/user/vidloop/pkg/workerpool"
)

// Name is the registry name of the encoder.
const Name = "gif-palette"

const (
	// MaxFrames is the frame ceiling the encoder registers with.
	MaxFrames = 1200
	// MaxDimension is the largest width or height accepted.
	MaxDimension = 1920

	// DefaultFrameTimeout bounds the quantisation of a single frame.
	DefaultFrameTimeout = 10 * time.Second
)

// Options configures the encoder.
type Options struct {
	Workers      int
	FrameTimeout time.Duration
}

// Encoder implements ports.Encoder with image/gif.
type Encoder struct {
	opts   Options
	logger ports.Logger
}

// New creates a palette encoder. Zero options use workerpool.ForCPU and DefaultFrameTimeout.
func New(opts Options, logger ports.Logger) *Encoder {
	if opts.Workers <= 0 {
		opts.Workers = workerpool.ForCPU(8)
	}
	if opts.FrameTimeout <= 0 {
		opts.FrameTimeout = DefaultFrameTimeout
	}
	return &Encoder{opts: opts, logger: logger.WithComponent(Name)}
}

// Name implements ports.Encoder.
func (e *Encoder) Name() string {
	return Name
}

// Capabilities implements ports.Encoder.
func (e *Encoder) Capabilities() pipeline.EncoderCapabilities {
	return pipeline.EncoderCapabilities{
		Formats:              []pipeline.OutputFormat{pipeline.FormatGIF},
		WorkerCapable:        true,
		RequiresSharedMemory: true,
		MaxFrames:            MaxFrames,
		MaxDimension:         MaxDimension,
		PerformanceScore:     5,
	}
}

// IsAvailable implements ports.Encoder. The encoder is pure Go.
func (e *Encoder) IsAvailable(ctx context.Context) bool {
	return true
}

// Settings are the quantiser parameters of a quality tier.
type Settings struct {
	Colors int
	Dither bool
}

// SettingsFor maps a quality tier onto palette size and dithering.
func SettingsFor(q pipeline.QualityTier) Settings {
	switch q {
	case pipeline.QualityLow:
		return Settings{Colors: 64, Dither: false}
	case pipeline.QualityHigh:
		return Settings{Colors: 256, Dither: true}
	}
	return Settings{Colors: 128, Dither: true}
}

type task struct {
	img    image.Image
	width  int
	height int
}

// drawBand is the row height drawn between termination checks.
const drawBand = 128

// quantizer is the pool worker. It holds no state between tasks. Once
// Terminate returns, Process stops at its next check and done never fires.
type quantizer struct {
	settings Settings
	cancel   func() bool
	done     func()

	mu         sync.Mutex
	terminated atomic.Bool
}

func (q *quantizer) stopped(ctx context.Context) bool {
	return q.terminated.Load() || ctx.Err() != nil || (q.cancel != nil && q.cancel())
}

func (q *quantizer) abort(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return pipeline.ErrCancelled
}

func (q *quantizer) Process(ctx context.Context, t task) (*image.Paletted, error) {
	if q.stopped(ctx) {
		return nil, q.abort(ctx)
	}
	src := t.img
	if b := src.Bounds(); b.Dx() != t.width || b.Dy() != t.height {
		scaled := image.NewRGBA(image.Rect(0, 0, t.width, t.height))
		draw.CatmullRom.Scale(scaled, scaled.Rect, src, b, draw.Src, nil)
		src = scaled
	}
	palette, ok := medianCut(src, q.settings.Colors, func() bool { return q.stopped(ctx) })
	if !ok {
		return nil, q.abort(ctx)
	}

	out := image.NewPaletted(image.Rect(0, 0, t.width, t.height), palette)
	var drawer draw.Drawer = draw.Src
	if q.settings.Dither {
		drawer = draw.FloydSteinberg
	}
	origin := src.Bounds().Min
	for y := 0; y < t.height; y += drawBand {
		if q.stopped(ctx) {
			return nil, q.abort(ctx)
		}
		band := image.Rect(0, y, t.width, min(y+drawBand, t.height))
		drawer.Draw(out, band, src, origin.Add(band.Min))
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped(ctx) {
		return nil, q.abort(ctx)
	}
	if q.done != nil {
		q.done()
	}
	return out, nil
}

// Terminate stops the worker. A frame still in flight is dropped without
// reporting progress.
func (q *quantizer) Terminate() {
	q.mu.Lock()
	q.terminated.Store(true)
	q.mu.Unlock()
}

// Encode implements ports.Encoder.
func (e *Encoder) Encode(ctx context.Context, frames []pipeline.Frame, opts ports.EncodeOptions) ([]byte, error) {
	if len(frames) == 0 {
		return nil, pipeline.ErrNoFrames
	}
	if opts.Format != "" && opts.Format != pipeline.FormatGIF {
		return nil, fmt.Errorf("%w: %s cannot produce %s", pipeline.ErrEncoderUnavailable, Name, opts.Format)
	}
	w, h := opts.Width, opts.Height
	if w <= 0 || h <= 0 {
		b := frames[0].Image.Bounds()
		w, h = b.Dx(), b.Dy()
	}
	if !e.Capabilities().Fits(len(frames), w, h) {
		return nil, fmt.Errorf("%w: %d frames at %dx%d exceed %s limits", pipeline.ErrEncodeFailed, len(frames), w, h, Name)
	}

	var completed atomic.Int64
	total := len(frames)
	settings := SettingsFor(opts.Quality)
	pool := workerpool.New(e.opts.Workers, e.opts.FrameTimeout, func(int) workerpool.Worker[task, *image.Paletted] {
		return &quantizer{
			settings: settings,
			cancel:   opts.ShouldCancel,
			done: func() {
				n := completed.Add(1)
				if opts.OnProgress != nil {
					opts.OnProgress(int(n), total)
				}
			},
		}
	}, e.logger)
	defer pool.Close()

	tasks := make([]task, len(frames))
	for i, f := range frames {
		if f.Image == nil {
			return nil, fmt.Errorf("%w: frame %d has no image", pipeline.ErrEncodeFailed, f.Index)
		}
		tasks[i] = task{img: f.Image, width: w, height: h}
	}

	start := time.Now()
	paletted, err := pool.Map(ctx, tasks)
	if errors.Is(err, workerpool.ErrTaskTimeout) {
		return nil, fmt.Errorf("%w: frame exceeded %s: %w", pipeline.ErrEncodeTimeout, e.opts.FrameTimeout, err)
	}
	if err != nil {
		return nil, err
	}

	anim := &gif.GIF{LoopCount: 0}
	delays := Delays(frames, opts.FPS)
	for i, img := range paletted {
		anim.Image = append(anim.Image, img)
		anim.Delay = append(anim.Delay, delays[i])
	}
	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, anim); err != nil {
		return nil, fmt.Errorf("%w: %w", pipeline.ErrEncodeFailed, err)
	}
	e.logger.Debug("Quantised %d frames on %d workers in %s", total, pool.Size(), time.Since(start).Round(time.Millisecond))
	return buf.Bytes(), nil
}

// Dispose implements ports.Encoder.
func (e *Encoder) Dispose() error {
	return nil
}

// Delays returns per-frame delays in hundredths of a second. Timestamps are
// used when they increase; otherwise the constant fps delay applies.
func Delays(frames []pipeline.Frame, fps float64) []int {
	if fps <= 0 {
		fps = 10
	}
	fallback := int(math.Max(2, math.Round(100/fps)))
	delays := make([]int, len(frames))
	for i := range frames {
		delays[i] = fallback
		if i+1 < len(frames) {
			if d := frames[i+1].Timestamp - frames[i].Timestamp; d > 0 {
				delays[i] = int(math.Max(2, math.Round(d.Seconds()*100)))
			}
		}
	}
	return delays
}

var _ ports.Encoder = (*Encoder)(nil)
