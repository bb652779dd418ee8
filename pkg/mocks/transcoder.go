package mocks

import (
	"context"
	"sync"

	"github.com/user/vidloop/pkg/pipeline"
	"github.com/user/vidloop/pkg/ports"
)

// Transcoder is a mock implementation of ports.Transcoder.
type Transcoder struct {
	Unavailable bool

	TranscodeFunc    func(ctx context.Context, src string, opts ports.TranscodeOptions, meta pipeline.VideoMetadata) ([]byte, error)
	EncodeFramesFunc func(ctx context.Context, frames []pipeline.Frame, opts ports.EncodeOptions) ([]byte, error)

	mu sync.Mutex

	// Recorded calls for verification
	TranscodeCalls    []ports.TranscodeOptions
	EncodeFramesCalls int
}

func (m *Transcoder) Available(ctx context.Context) bool {
	return !m.Unavailable
}

func (m *Transcoder) Transcode(ctx context.Context, src string, opts ports.TranscodeOptions, meta pipeline.VideoMetadata) ([]byte, error) {
	m.mu.Lock()
	m.TranscodeCalls = append(m.TranscodeCalls, opts)
	m.mu.Unlock()
	if m.TranscodeFunc != nil {
		return m.TranscodeFunc(ctx, src, opts, meta)
	}
	if opts.OnProgress != nil {
		opts.OnProgress(1)
	}
	return []byte("software-output"), nil
}

func (m *Transcoder) EncodeFrames(ctx context.Context, frames []pipeline.Frame, opts ports.EncodeOptions) ([]byte, error) {
	m.mu.Lock()
	m.EncodeFramesCalls++
	m.mu.Unlock()
	if m.EncodeFramesFunc != nil {
		return m.EncodeFramesFunc(ctx, frames, opts)
	}
	return []byte("software-frames"), nil
}

var _ ports.Transcoder = (*Transcoder)(nil)

// CapabilityProvider returns a fixed snapshot.
type CapabilityProvider struct {
	Snapshot ports.Snapshot
	Err      error
	Calls    int
}

func (m *CapabilityProvider) Capabilities(ctx context.Context) (ports.Snapshot, error) {
	m.Calls++
	return m.Snapshot, m.Err
}

var _ ports.CapabilityProvider = (*CapabilityProvider)(nil)

// FullSnapshot returns a snapshot of a capable desktop environment.
func FullSnapshot() ports.Snapshot {
	return ports.Snapshot{
		HardwareDecode: map[string]bool{
			"h264": true, "hevc": true, "vp8": true, "vp9": true, "av1": true,
		},
		WorkerSupport: true,
		SharedMemory:  true,
		FormatEncode: map[pipeline.OutputFormat]bool{
			pipeline.FormatGIF: true, pipeline.FormatWebP: true, pipeline.FormatVideo: true,
		},
		DeviceMemoryBytes: 16 << 30,
		Workers:           8,
	}
}
