// Package chromesource provides frame sources backed by a headless Chrome
// <video> element: seeking with currentTime and real-time playback through
// requestVideoFrameCallback.
package chromesource

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"

	"github.com/user/vidloop/pkg/pipeline"
	"github.com/user/vidloop/pkg/ports"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrChromeNotFound is returned when no Chrome executable can be resolved.
var ErrChromeNotFound = errors.New("chromesource: chrome not found")

// ErrMediaError is returned when the element reports a media error.
var ErrMediaError = errors.New("chromesource: media element error")

// Options configures the browser.
type Options struct {
	ChromePath string
	Headless   bool
	// AutoplayPolicy is passed to --autoplay-policy. Empty keeps the browser default.
	AutoplayPolicy string
	// LoadTimeout bounds waiting for the first decoded frame.
	LoadTimeout time.Duration
	// PlaybackBuffer is the tick channel capacity. Ticks are dropped when full.
	PlaybackBuffer int
}

// DefaultOptions returns headless options with a 15 s load timeout.
func DefaultOptions() Options {
	return Options{
		Headless:       true,
		AutoplayPolicy: "no-user-gesture-required",
		LoadTimeout:    15 * time.Second,
		PlaybackBuffer: 64,
	}
}

// Opener launches one browser tab per opened source.
type Opener struct {
	opts   Options
	logger ports.Logger
}

// NewOpener creates an opener. Zero option fields take DefaultOptions values.
func NewOpener(opts Options, logger ports.Logger) *Opener {
	def := DefaultOptions()
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = def.LoadTimeout
	}
	if opts.PlaybackBuffer <= 0 {
		opts.PlaybackBuffer = def.PlaybackBuffer
	}
	return &Opener{opts: opts, logger: logger.WithComponent("chromesource")}
}

// AllocatorOptions returns the chromedp allocator flags.
func (o *Opener) AllocatorOptions(chromePath string) []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.ExecPath(chromePath),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("allow-file-access-from-files", true),
		chromedp.Flag("disable-background-media-suspend", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
	}
	if o.opts.Headless {
		opts = append(opts, chromedp.Flag("headless", "new"))
	}
	if o.opts.AutoplayPolicy != "" {
		opts = append(opts, chromedp.Flag("autoplay-policy", o.opts.AutoplayPolicy))
	}
	return opts
}

// Open implements ports.SourceOpener. The caller must Close the source.
func (o *Opener) Open(ctx context.Context, src string, meta pipeline.VideoMetadata, opts ports.SourceOptions) (ports.FrameSource, error) {
	chromePath := ResolveChromePath(o.opts.ChromePath)
	if chromePath == "" {
		return nil, ErrChromeNotFound
	}
	if _, err := os.Stat(src); err != nil {
		return nil, err
	}
	w, h := opts.Width, opts.Height
	if w <= 0 || h <= 0 {
		w, h = meta.Width, meta.Height
	}
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("chromesource: unknown frame size for %s", src)
	}

	dir, err := os.MkdirTemp("", "vidloop-chrome-*")
	if err != nil {
		return nil, err
	}
	page, err := PlayerHTML(src, w, h)
	if err == nil {
		err = os.WriteFile(filepath.Join(dir, "player.html"), []byte(page), 0o644)
	}
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("write player page: %w", err)
	}

	// The browser outlives ctx; it is released by Close.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), o.AllocatorOptions(chromePath)...)
	tab, tabCancel := chromedp.NewContext(allocCtx)
	s := &Source{
		opener: o,
		tab:    tab,
		meta:   meta,
		dir:    dir,
		closeFn: func() {
			tabCancel()
			allocCancel()
		},
	}
	chromedp.ListenTarget(tab, s.onEvent)

	var info struct {
		Duration float64 `json:"duration"`
		Width    int     `json:"width"`
		Height   int     `json:"height"`
		Error    string  `json:"error"`
	}
	err = s.run(ctx, o.opts.LoadTimeout,
		runtime.AddBinding(bindingName),
		chromedp.Navigate(FileURL(filepath.Join(dir, "player.html"))),
		chromedp.Evaluate(`window.vidloop.info()`, &info, awaitPromise),
	)
	if err == nil && info.Error != "" {
		err = fmt.Errorf("%w: code %s", ErrMediaError, info.Error)
	}
	if err != nil {
		s.Close()
		return nil, err
	}
	if info.Duration > 0 {
		s.meta.Duration = info.Duration
	}
	o.logger.Debug("Opened %s in Chrome (%dx%d, %.2fs)", src, info.Width, info.Height, info.Duration)
	return s, nil
}

// Source is one video element in its own browser.
type Source struct {
	opener  *Opener
	tab     context.Context
	meta    pipeline.VideoMetadata
	dir     string
	closeFn func()

	mu    sync.Mutex
	ticks chan ports.FrameTick
}

func awaitPromise(p *runtime.EvaluateParams) *runtime.EvaluateParams {
	return p.WithAwaitPromise(true)
}

// run executes actions in the tab, bounded by both ctx and timeout.
func (s *Source) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.tab, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return fmt.Errorf("%w: %w", pipeline.ErrCancelled, ctx.Err())
	}
	return err
}

// Duration implements ports.FrameSource.
func (s *Source) Duration() time.Duration {
	return s.meta.DurationTime()
}

// Seek implements ports.FrameSource.
func (s *Source) Seek(ctx context.Context, t time.Duration) error {
	var pos float64
	return s.run(ctx, s.opener.opts.LoadTimeout,
		chromedp.Evaluate(fmt.Sprintf(`window.vidloop.seek(%f)`, t.Seconds()), &pos, awaitPromise))
}

// Frame implements ports.FrameSource.
func (s *Source) Frame(ctx context.Context) (image.Image, error) {
	var dataURL string
	if err := s.run(ctx, s.opener.opts.LoadTimeout, chromedp.Evaluate(`window.vidloop.frame()`, &dataURL)); err != nil {
		return nil, err
	}
	return DecodeDataURL(dataURL)
}

// Play implements ports.Playable. A rejected play() with NotAllowedError
// maps to ports.ErrPlaybackBlocked.
func (s *Source) Play(ctx context.Context) (<-chan ports.FrameTick, error) {
	ticks := make(chan ports.FrameTick, s.opener.opts.PlaybackBuffer)
	s.endPlayback()
	s.mu.Lock()
	s.ticks = ticks
	s.mu.Unlock()

	var rejection string
	if err := s.run(ctx, s.opener.opts.LoadTimeout, chromedp.Evaluate(`window.vidloop.play()`, &rejection, awaitPromise)); err != nil {
		s.endPlayback()
		return nil, err
	}
	if err := playError(rejection); err != nil {
		s.endPlayback()
		return nil, err
	}
	context.AfterFunc(ctx, func() { s.closeTicks(ticks) })
	return ticks, nil
}

// playError maps the name of a play() rejection onto an error.
func playError(name string) error {
	switch name {
	case "":
		return nil
	case "NotAllowedError":
		return ports.ErrPlaybackBlocked
	default:
		return fmt.Errorf("chromesource: play rejected with %s", name)
	}
}

// Pause implements ports.Playable.
func (s *Source) Pause() error {
	s.endPlayback()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.run(ctx, 5*time.Second, chromedp.Evaluate(`window.vidloop.pause()`, nil))
}

// Close implements ports.FrameSource.
func (s *Source) Close() error {
	s.endPlayback()
	if s.closeFn != nil {
		s.closeFn()
		s.closeFn = nil
	}
	return os.RemoveAll(s.dir)
}

func (s *Source) onEvent(ev interface{}) {
	e, ok := ev.(*runtime.EventBindingCalled)
	if !ok || e.Name != bindingName {
		return
	}
	var p framePayload
	if err := json.UnmarshalFromString(e.Payload, &p); err != nil {
		return
	}
	if p.End {
		s.endPlayback()
		return
	}
	img, err := DecodeDataURL(p.Data)
	if err != nil {
		s.opener.logger.Debug("Dropping undecodable frame at %.3fs: %v", p.T, err)
		return
	}
	s.deliver(ports.FrameTick{MediaTime: p.mediaTime(), Image: img})
}

func (s *Source) deliver(tick ports.FrameTick) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ticks == nil {
		return
	}
	select {
	case s.ticks <- tick:
	default:
	}
}

// endPlayback closes the current tick channel.
func (s *Source) endPlayback() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ticks != nil {
		close(s.ticks)
		s.ticks = nil
	}
}

// closeTicks closes ticks if it is still the current channel.
func (s *Source) closeTicks(ticks chan ports.FrameTick) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ticks == ticks {
		close(ticks)
		s.ticks = nil
	}
}

var (
	_ ports.SourceOpener = (*Opener)(nil)
	_ ports.FrameSource  = (*Source)(nil)
	_ ports.Playable     = (*Source)(nil)
)
