package ports

import (
	"context"

	"github.com/user/vidloop/pkg/pipeline"
)

// MetadataProber reads container and stream metadata of a source.
type MetadataProber interface {
	Probe(ctx context.Context, src string) (pipeline.VideoMetadata, error)
}
