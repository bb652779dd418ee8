// Package sysprobe takes capability snapshots of the local machine: memory
// from the OS and decode/encode support from the ffmpeg build.
package sysprobe

import (
	"context"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/mem"

	"github.com/user/vidloop/pkg/adapters/ffmpeg"
	"github.com/user/vidloop/pkg/capability"
	"github.com/user/vidloop/pkg/pipeline"
	"github.com/user/vidloop/pkg/ports"
	"github.com/user/vidloop/pkg/workerpool"
)

// MemoryFunc returns total and available physical memory in bytes.
type MemoryFunc func(ctx context.Context) (total, available uint64, err error)

// Prober implements capability.Prober.
type Prober struct {
	memory MemoryFunc
	build  ffmpeg.BuildFunc
	goos   string
	goarch string
	now    func() time.Time
	logger ports.Logger
}

// New creates a prober. A nil build means no ffmpeg: no hardware decode and
// no pipeline encoding.
func New(build ffmpeg.BuildFunc, logger ports.Logger) *Prober {
	return &Prober{
		memory: VirtualMemory,
		build:  build,
		goos:   runtime.GOOS,
		goarch: runtime.GOARCH,
		now:    time.Now,
		logger: logger.WithComponent("sysprobe"),
	}
}

// VirtualMemory reads physical memory through gopsutil.
func VirtualMemory(ctx context.Context) (uint64, uint64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, 0, err
	}
	return vm.Total, vm.Available, nil
}

// Probe implements capability.Prober. Partial failures leave the affected
// fields at their conservative zero values.
func (p *Prober) Probe(ctx context.Context) (ports.Snapshot, error) {
	snap := ports.Snapshot{
		HardwareDecode: map[string]bool{},
		FormatEncode:   map[pipeline.OutputFormat]bool{},
		SharedMemory:   true,
		MobileHeritage: capability.MobileHeritage(p.goos, p.goarch),
		Workers:        workerpool.ForCPU(0),
		TakenAt:        p.now(),
	}
	snap.WorkerSupport = snap.Workers > 1

	total, available, err := p.memory(ctx)
	if err != nil {
		p.logger.Debug("Memory probe failed: %v", err)
	}
	snap.DeviceMemoryBytes = total
	snap.LowMemory = capability.LowMemory(total, available)

	if p.build != nil {
		b, err := p.build(ctx)
		if err != nil {
			p.logger.Debug("ffmpeg build probe failed: %v", err)
		} else {
			snap.HardwareDecode = b.HardwareDecode()
			snap.FormatEncode = b.FormatEncode()
		}
	}
	return snap, nil
}

var _ capability.Prober = (*Prober)(nil)
