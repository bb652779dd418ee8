package mocks

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"time"

	"github.com/user/vidloop/pkg/pipeline"
	"github.com/user/vidloop/pkg/ports"
)

// FrameSource is a seekable mock source. Seek advances Clock by SeekLatency.
type FrameSource struct {
	Dur         time.Duration
	Clock       *Clock
	SeekLatency func(t time.Duration) time.Duration

	// BlockSeek makes Seek wait for ctx to finish.
	BlockSeek func(t time.Duration) bool
	SeekFunc  func(ctx context.Context, t time.Duration) error

	mu  sync.Mutex
	pos time.Duration

	// Recorded calls for verification
	Seeks  []time.Duration
	Closed bool
}

// NewFrameSource creates a mock source of the given duration.
func NewFrameSource(d time.Duration) *FrameSource {
	return &FrameSource{Dur: d}
}

func (m *FrameSource) Duration() time.Duration { return m.Dur }

func (m *FrameSource) Seek(ctx context.Context, t time.Duration) error {
	m.mu.Lock()
	m.Seeks = append(m.Seeks, t)
	m.mu.Unlock()

	if m.SeekFunc != nil {
		if err := m.SeekFunc(ctx, t); err != nil {
			return err
		}
	}
	if m.BlockSeek != nil && m.BlockSeek(t) {
		<-ctx.Done()
		return ctx.Err()
	}
	if m.Clock != nil && m.SeekLatency != nil {
		m.Clock.Advance(m.SeekLatency(t))
	}

	m.mu.Lock()
	m.pos = t
	m.mu.Unlock()
	return nil
}

func (m *FrameSource) Frame(ctx context.Context) (image.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return FrameImage(m.pos), nil
}

func (m *FrameSource) Close() error {
	m.Closed = true
	return nil
}

// SeekCount returns the number of Seek calls.
func (m *FrameSource) SeekCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Seeks)
}

var _ ports.FrameSource = (*FrameSource)(nil)

// FrameImage returns a tiny image whose colour encodes t, so tests can tell frames apart.
func FrameImage(t time.Duration) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	v := uint8(t / (10 * time.Millisecond))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{R: v, G: 255 - v, B: 128, A: 255})
		}
	}
	return img
}

// PlayableSource adds playback with scripted per-frame callbacks.
type PlayableSource struct {
	*FrameSource

	// MediaTimes are delivered in order, one per tick.
	MediaTimes []time.Duration
	// TickDelay is the wall-clock delay before each tick.
	TickDelay time.Duration
	// HoldOpen keeps the channel open after the last tick instead of closing it.
	HoldOpen bool
	PlayErr  error

	PauseCalled bool
}

// NewPlayableSource creates a playable source emitting ticks every step up to d.
func NewPlayableSource(d, step time.Duration) *PlayableSource {
	var times []time.Duration
	for t := time.Duration(0); t < d; t += step {
		times = append(times, t)
	}
	return &PlayableSource{FrameSource: NewFrameSource(d), MediaTimes: times}
}

func (m *PlayableSource) Play(ctx context.Context) (<-chan ports.FrameTick, error) {
	if m.PlayErr != nil {
		return nil, m.PlayErr
	}
	ch := make(chan ports.FrameTick)
	go func() {
		if !m.HoldOpen {
			defer close(ch)
		}
		for _, t := range m.MediaTimes {
			if m.TickDelay > 0 {
				select {
				case <-time.After(m.TickDelay):
				case <-ctx.Done():
					return
				}
			}
			select {
			case ch <- ports.FrameTick{MediaTime: t, Image: FrameImage(t)}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func (m *PlayableSource) Pause() error {
	m.PauseCalled = true
	return nil
}

var _ ports.Playable = (*PlayableSource)(nil)

// StreamSource adds streaming decode and a container sample index.
type StreamSource struct {
	*FrameSource

	FrameTimes []time.Duration
	Index      []ports.SampleInfo
	IndexErr   error
	DecodeErr  error

	// Decoded counts frames handed to the callback.
	Decoded int
}

// NewStreamSource creates a source decoding a frame every step, with a matching sample index.
func NewStreamSource(d, step time.Duration) *StreamSource {
	s := &StreamSource{FrameSource: NewFrameSource(d)}
	for t := time.Duration(0); t < d; t += step {
		s.FrameTimes = append(s.FrameTimes, t)
		s.Index = append(s.Index, ports.SampleInfo{PTS: t, Sync: len(s.Index)%30 == 0})
	}
	return s
}

func (m *StreamSource) DecodeStream(ctx context.Context, fn func(ports.FrameTick) error) error {
	if m.DecodeErr != nil {
		return m.DecodeErr
	}
	for _, t := range m.FrameTimes {
		if err := ctx.Err(); err != nil {
			return err
		}
		m.Decoded++
		if err := fn(ports.FrameTick{MediaTime: t, Image: FrameImage(t)}); err != nil {
			if errors.Is(err, ports.ErrStopStream) {
				return nil
			}
			return err
		}
	}
	return nil
}

func (m *StreamSource) SampleIndex(ctx context.Context) ([]ports.SampleInfo, error) {
	return m.Index, m.IndexErr
}

var (
	_ ports.StreamDecodable = (*StreamSource)(nil)
	_ ports.Demuxable       = (*StreamSource)(nil)
)

// SourceOpener returns a fixed source.
type SourceOpener struct {
	Source   ports.FrameSource
	OpenFunc func(ctx context.Context, src string, meta pipeline.VideoMetadata, opts ports.SourceOptions) (ports.FrameSource, error)

	// Recorded calls for verification
	Opens []ports.SourceOptions
}

func (m *SourceOpener) Open(ctx context.Context, src string, meta pipeline.VideoMetadata, opts ports.SourceOptions) (ports.FrameSource, error) {
	m.Opens = append(m.Opens, opts)
	if m.OpenFunc != nil {
		return m.OpenFunc(ctx, src, meta, opts)
	}
	return m.Source, nil
}

var _ ports.SourceOpener = (*SourceOpener)(nil)
