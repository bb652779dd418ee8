package vidloop

import (
	"context"
	"errors"

	"github.com/user/vidloop/pkg/config"
	"github.com/user/vidloop/pkg/pipeline"
	"github.com/user/vidloop/pkg/ports"
)

// ErrNoSourceBackend is returned when neither ffmpeg nor Chrome can open a source.
var ErrNoSourceBackend = errors.New("vidloop: no frame source backend available")

// SourceRouter opens sources with the preferred backend and falls back to
// the other one when it fails to open.
//
// ffmpeg sources are seekable, stream-decodable and, for ISO-BMFF files,
// demuxable. Chrome sources are seekable and playable.
type SourceRouter struct {
	backend string
	ffmpeg  ports.SourceOpener
	chrome  ports.SourceOpener
	logger  ports.Logger
}

// NewSourceRouter creates a router. Either opener may be nil.
func NewSourceRouter(backend string, ffmpeg, chrome ports.SourceOpener, logger ports.Logger) *SourceRouter {
	if backend == "" {
		backend = config.SourceAuto
	}
	return &SourceRouter{backend: backend, ffmpeg: ffmpeg, chrome: chrome, logger: logger.WithComponent("source")}
}

// order returns the openers to try.
func (r *SourceRouter) order() []ports.SourceOpener {
	var openers []ports.SourceOpener
	switch r.backend {
	case config.SourceFFmpeg:
		openers = []ports.SourceOpener{r.ffmpeg}
	case config.SourceChrome:
		openers = []ports.SourceOpener{r.chrome, r.ffmpeg}
	default:
		openers = []ports.SourceOpener{r.ffmpeg, r.chrome}
	}
	out := openers[:0]
	for _, o := range openers {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

// Open implements ports.SourceOpener.
func (r *SourceRouter) Open(ctx context.Context, src string, meta pipeline.VideoMetadata, opts ports.SourceOptions) (ports.FrameSource, error) {
	openers := r.order()
	if len(openers) == 0 {
		return nil, ErrNoSourceBackend
	}

	var lastErr error
	for i, opener := range openers {
		source, err := opener.Open(ctx, src, meta, opts)
		if err == nil {
			return source, nil
		}
		if pipeline.IsCancellation(err) || ctx.Err() != nil {
			return nil, err
		}
		lastErr = err
		if i < len(openers)-1 {
			r.logger.Warn("Frame source failed to open, trying next backend: %v", err)
		}
	}
	return nil, lastErr
}
