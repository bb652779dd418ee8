package vidloop

import (
	"context"
	"errors"

	"github.com/user/vidloop/pkg/adapters/mp4probe"
	"github.com/user/vidloop/pkg/pipeline"
	"github.com/user/vidloop/pkg/ports"
)

// ErrNoProber is returned when no metadata prober can read a source.
var ErrNoProber = errors.New("vidloop: no metadata prober available")

// MetadataProber reads ISO-BMFF files with mp4probe and everything else,
// or whatever mp4probe rejects, with ffprobe.
type MetadataProber struct {
	mp4     ports.MetadataProber
	ffprobe ports.MetadataProber
	logger  ports.Logger
}

// NewMetadataProber creates a prober. Either prober may be nil.
func NewMetadataProber(mp4, ffprobe ports.MetadataProber, logger ports.Logger) *MetadataProber {
	return &MetadataProber{mp4: mp4, ffprobe: ffprobe, logger: logger.WithComponent("probe")}
}

// Probe implements ports.MetadataProber.
func (p *MetadataProber) Probe(ctx context.Context, src string) (pipeline.VideoMetadata, error) {
	var lastErr error
	if p.mp4 != nil && mp4probe.Supported(src) {
		meta, err := p.mp4.Probe(ctx, src)
		if err == nil {
			return meta, nil
		}
		if ctx.Err() != nil {
			return pipeline.VideoMetadata{}, err
		}
		p.logger.Debug("mp4 probe failed, trying ffprobe: %v", err)
		lastErr = err
	}
	if p.ffprobe != nil {
		return p.ffprobe.Probe(ctx, src)
	}
	if lastErr != nil {
		return pipeline.VideoMetadata{}, lastErr
	}
	return pipeline.VideoMetadata{}, ErrNoProber
}
