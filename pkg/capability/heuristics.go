package capability

import (
	"github.com/user/vidloop/pkg/pipeline"
	"github.com/user/vidloop/pkg/ports"
)

const (
	// LowMemoryTotal flags devices with less physical memory than this.
	LowMemoryTotal = 4 << 30
	// LowMemoryAvailable flags devices with less free memory than this.
	LowMemoryAvailable = 512 << 20
)

// LowMemory reports the low-memory signal. Unknown values (0) never flag.
func LowMemory(total, available uint64) bool {
	if total > 0 && total < LowMemoryTotal {
		return true
	}
	return available > 0 && available < LowMemoryAvailable
}

// MobileHeritage reports platforms whose media stacks behave like phones:
// tight decoder pools and aggressive background throttling.
func MobileHeritage(goos, goarch string) bool {
	switch goos {
	case "android", "ios":
		return true
	}
	return goarch == "arm" || goarch == "mips" || goarch == "mipsle"
}

// Normalize fills the maps so lookups on a partial snapshot are safe.
func Normalize(s *ports.Snapshot) {
	if s.HardwareDecode == nil {
		s.HardwareDecode = map[string]bool{}
	}
	if s.FormatEncode == nil {
		s.FormatEncode = map[pipeline.OutputFormat]bool{}
	}
	if s.Workers <= 0 {
		s.Workers = 1
	}
	if s.Workers < 2 {
		s.WorkerSupport = false
	}
}
