package ports

import (
	"context"
	"errors"
	"image"
	"time"

	"github.com/user/vidloop/pkg/pipeline"
)

// ErrPlaybackBlocked is returned by Playable.Play when the source refuses to start playback.
var ErrPlaybackBlocked = errors.New("playback blocked")

// ErrStopStream may be returned from a DecodeStream callback to end decoding early.
var ErrStopStream = errors.New("stop stream")

// FrameSource is a seekable decoded video.
type FrameSource interface {
	// Duration returns the media duration, or 0 when unknown.
	Duration() time.Duration

	// Seek positions the source at t and returns once the frame is decoded.
	Seek(ctx context.Context, t time.Duration) error

	// Frame returns the frame at the current position.
	Frame(ctx context.Context) (image.Image, error)

	// Close releases the source.
	Close() error
}

// FrameTick is a frame delivered during playback or streaming decode.
type FrameTick struct {
	MediaTime time.Duration
	Image     image.Image
}

// Playable sources deliver per-frame callbacks while playing in real time.
type Playable interface {
	// Play starts playback. The channel is closed at end of media.
	Play(ctx context.Context) (<-chan FrameTick, error)

	// Pause stops playback.
	Pause() error
}

// StreamDecodable sources decode every frame in presentation order as fast as possible.
type StreamDecodable interface {
	DecodeStream(ctx context.Context, fn func(FrameTick) error) error
}

// SampleInfo is one entry of a container sample index.
type SampleInfo struct {
	PTS  time.Duration
	Sync bool
}

// Demuxable sources expose the container sample index.
type Demuxable interface {
	SampleIndex(ctx context.Context) ([]SampleInfo, error)
}

// SourceOptions configures how a source is opened.
type SourceOptions struct {
	Width    int
	Height   int
	Hardware bool
}

// SourceOpener opens frame sources for a conversion attempt.
type SourceOpener interface {
	Open(ctx context.Context, src string, meta pipeline.VideoMetadata, opts SourceOptions) (FrameSource, error)
}
