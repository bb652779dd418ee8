// Package capability caches the environment capability snapshot and holds
// the heuristics used to derive its low-memory and mobile signals.
package capability

import (
	"context"
	"fmt"
	"time"

	"github.com/user/vidloop/pkg/expiring"
	"github.com/user/vidloop/pkg/ports"
)

// DefaultTTL is how long a probed snapshot is reused.
const DefaultTTL = 30 * time.Minute

// Prober takes a fresh snapshot of the environment.
type Prober interface {
	Probe(ctx context.Context) (ports.Snapshot, error)
}

// Provider serves cached snapshots from a Prober.
type Provider struct {
	logger ports.Logger
	probe  Prober
	cache  *expiring.Value[ports.Snapshot]
	now    func() time.Time
}

// New creates a provider. A ttl <= 0 uses DefaultTTL.
func New(probe Prober, ttl time.Duration, logger ports.Logger) *Provider {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Provider{
		logger: logger.WithComponent("capability"),
		probe:  probe,
		cache:  expiring.NewValue[ports.Snapshot](ttl),
		now:    time.Now,
	}
}

// SetClock replaces the time source. Used by tests.
func (p *Provider) SetClock(now func() time.Time) {
	p.now = now
	p.cache.SetClock(now)
}

// Capabilities implements ports.CapabilityProvider.
func (p *Provider) Capabilities(ctx context.Context) (ports.Snapshot, error) {
	if snap, ok := p.cache.Get(); ok {
		return snap, nil
	}
	snap, err := p.probe.Probe(ctx)
	if err != nil {
		return ports.Snapshot{}, fmt.Errorf("probe capabilities: %w", err)
	}
	Normalize(&snap)
	if snap.TakenAt.IsZero() {
		snap.TakenAt = p.now()
	}
	p.cache.Set(snap)
	p.logger.Debug("Capabilities: %d hw decoders, workers=%d, memory=%d MiB, low-memory=%t",
		countTrue(snap.HardwareDecode), snap.Workers, snap.DeviceMemoryBytes>>20, snap.LowMemory)
	return snap, nil
}

// Refresh drops the cached snapshot.
func (p *Provider) Refresh() {
	p.cache.Invalidate()
}

var _ ports.CapabilityProvider = (*Provider)(nil)

func countTrue[K comparable](m map[K]bool) int {
	n := 0
	for _, v := range m {
		if v {
			n++
		}
	}
	return n
}
