// Package ffmpegsource provides frame sources decoded by an ffmpeg process,
// optionally with hardware-accelerated decoding.
package ffmpegsource

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/user/vidloop/pkg/adapters/ffmpeg"
	"github.com/user/vidloop/pkg/capture"
	"github.com/user/vidloop/pkg/pipeline"
	"github.com/user/vidloop/pkg/ports"
)

// defaultStreamRate is the decode rate used when the source frame rate is unknown.
const defaultStreamRate = 30.0

// ErrNoFrame is returned when ffmpeg produced no frame at the requested position.
var ErrNoFrame = errors.New("ffmpegsource: no frame decoded")

// IndexFunc reads the container sample index of a file.
type IndexFunc func(ctx context.Context, src string) ([]ports.SampleInfo, error)

// Opener opens ffmpeg-backed frame sources.
type Opener struct {
	runner *ffmpeg.Runner
	index  IndexFunc
	logger ports.Logger
}

// NewOpener creates an opener. index may be nil, in which case sources do
// not offer a sample index.
func NewOpener(runner *ffmpeg.Runner, index IndexFunc, logger ports.Logger) *Opener {
	return &Opener{
		runner: runner,
		index:  index,
		logger: logger.WithComponent("ffmpegsource"),
	}
}

// Open implements ports.SourceOpener.
func (o *Opener) Open(ctx context.Context, src string, meta pipeline.VideoMetadata, opts ports.SourceOptions) (ports.FrameSource, error) {
	if _, err := os.Stat(src); err != nil {
		return nil, err
	}
	w, h := opts.Width, opts.Height
	if w <= 0 || h <= 0 {
		w, h = meta.Width, meta.Height
	}
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("ffmpegsource: unknown frame size for %s", src)
	}
	o.logger.Debug("Opened %s at %dx%d (hardware=%t)", src, w, h, opts.Hardware)
	return &Source{
		opener:   o,
		src:      src,
		meta:     meta,
		width:    w,
		height:   h,
		hardware: opts.Hardware,
	}, nil
}

// Source is one opened video.
type Source struct {
	opener   *Opener
	src      string
	meta     pipeline.VideoMetadata
	width    int
	height   int
	hardware bool

	mu      sync.Mutex
	current image.Image
}

// Duration implements ports.FrameSource.
func (s *Source) Duration() time.Duration {
	return s.meta.DurationTime()
}

// Seek decodes the frame at t.
func (s *Source) Seek(ctx context.Context, t time.Duration) error {
	stdout, wait, err := s.opener.runner.Start(ctx, s.seekArgs(t))
	if err != nil {
		return err
	}
	img, readErr := readFrame(stdout, s.width, s.height)
	io.Copy(io.Discard, stdout)
	if err := wait(); err != nil {
		return err
	}
	if readErr != nil {
		return fmt.Errorf("%w at %s: %w", ErrNoFrame, t, readErr)
	}
	s.mu.Lock()
	s.current = img
	s.mu.Unlock()
	return nil
}

// Frame returns the frame decoded by the last Seek.
func (s *Source) Frame(ctx context.Context) (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil, ErrNoFrame
	}
	return s.current, nil
}

// DecodeStream decodes every frame at the source rate in presentation order.
func (s *Source) DecodeStream(ctx context.Context, fn func(ports.FrameTick) error) error {
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	rate := s.streamRate()
	stdout, wait, err := s.opener.runner.Start(streamCtx, s.streamArgs(rate))
	if err != nil {
		return err
	}

	var cbErr error
	for i := 0; ; i++ {
		img, err := readFrame(stdout, s.width, s.height)
		if err != nil {
			break
		}
		tick := ports.FrameTick{
			MediaTime: time.Duration(float64(i) / rate * float64(time.Second)),
			Image:     img,
		}
		if cbErr = fn(tick); cbErr != nil {
			break
		}
	}

	stopped := errors.Is(cbErr, ports.ErrStopStream)
	if cbErr != nil {
		cancel()
	}
	io.Copy(io.Discard, stdout)
	waitErr := wait()

	switch {
	case stopped:
		return nil
	case cbErr != nil:
		return cbErr
	default:
		return waitErr
	}
}

// SampleIndex implements ports.Demuxable.
func (s *Source) SampleIndex(ctx context.Context) ([]ports.SampleInfo, error) {
	if s.opener.index == nil {
		return nil, fmt.Errorf("%w: no sample index for %s", capture.ErrUnsupportedSource, s.src)
	}
	return s.opener.index(ctx, s.src)
}

// Close implements ports.FrameSource.
func (s *Source) Close() error {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
	return nil
}

func (s *Source) streamRate() float64 {
	if s.meta.FrameRate > 0 {
		return s.meta.FrameRate
	}
	return defaultStreamRate
}

func (s *Source) inputArgs() []string {
	args := []string{"-hide_banner", "-nostdin", "-loglevel", "error"}
	if s.hardware {
		args = append(args, "-hwaccel", "auto")
	}
	return args
}

func (s *Source) seekArgs(t time.Duration) []string {
	args := s.inputArgs()
	return append(args,
		"-ss", strconv.FormatFloat(t.Seconds(), 'f', 3, 64),
		"-i", s.src,
		"-frames:v", "1",
		"-vf", s.scaleFilter(),
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"pipe:1",
	)
}

func (s *Source) streamArgs(rate float64) []string {
	args := s.inputArgs()
	return append(args,
		"-i", s.src,
		"-an",
		"-vf", fmt.Sprintf("fps=%s,%s", strconv.FormatFloat(rate, 'f', -1, 64), s.scaleFilter()),
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"pipe:1",
	)
}

func (s *Source) scaleFilter() string {
	return fmt.Sprintf("scale=%d:%d:flags=bicubic", s.width, s.height)
}

// readFrame reads one packed RGBA frame.
func readFrame(r io.Reader, w, h int) (*image.RGBA, error) {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	if _, err := io.ReadFull(r, img.Pix); err != nil {
		return nil, err
	}
	return img, nil
}

var (
	_ ports.SourceOpener    = (*Opener)(nil)
	_ ports.FrameSource     = (*Source)(nil)
	_ ports.StreamDecodable = (*Source)(nil)
	_ ports.Demuxable       = (*Source)(nil)
)
