package ports

import (
	"context"
	"time"

	"github.com/user/vidloop/pkg/pipeline"
)

// Snapshot is a read-only record of what the current environment supports.
type Snapshot struct {
	// HardwareDecode is keyed by codec family name.
	HardwareDecode    map[string]bool
	WorkerSupport     bool
	SharedMemory      bool
	FormatEncode      map[pipeline.OutputFormat]bool
	LowMemory         bool
	MobileHeritage    bool
	DeviceMemoryBytes uint64
	Workers           int
	TakenAt           time.Time
}

// CanHardwareDecode reports hardware decode support for a codec family.
func (s Snapshot) CanHardwareDecode(family string) bool {
	return s.HardwareDecode[family]
}

// CanEncode reports encode support for a format.
func (s Snapshot) CanEncode(f pipeline.OutputFormat) bool {
	return s.FormatEncode[f]
}

// CapabilityProvider returns the current capability snapshot.
type CapabilityProvider interface {
	Capabilities(ctx context.Context) (Snapshot, error)
}
