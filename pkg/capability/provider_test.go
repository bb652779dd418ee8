package capability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/user/vidloop/pkg/adapters/logger"
	"github.com/user/vidloop/pkg/mocks"
	"github.com/user/vidloop/pkg/ports"
)

type fakeProber struct {
	snap  ports.Snapshot
	err   error
	calls int
}

func (f *fakeProber) Probe(ctx context.Context) (ports.Snapshot, error) {
	f.calls++
	return f.snap, f.err
}

func TestCapabilities_CachedWithinTTL(t *testing.T) {
	clock := mocks.NewClock()
	probe := &fakeProber{snap: mocks.FullSnapshot()}
	p := New(probe, time.Minute, logger.NewNoop())
	p.SetClock(clock.Now)

	for i := 0; i < 3; i++ {
		if _, err := p.Capabilities(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if probe.calls != 1 {
		t.Errorf("expected 1 probe, got %d", probe.calls)
	}

	clock.Advance(time.Minute)
	snap, _ := p.Capabilities(context.Background())
	if probe.calls != 2 {
		t.Errorf("expected re-probe after TTL, got %d", probe.calls)
	}
	if !snap.TakenAt.Equal(clock.Now()) {
		t.Errorf("expected TakenAt to be stamped, got %s", snap.TakenAt)
	}

	p.Refresh()
	p.Capabilities(context.Background())
	if probe.calls != 3 {
		t.Errorf("expected re-probe after Refresh, got %d", probe.calls)
	}
}

func TestCapabilities_ProbeErrorNotCached(t *testing.T) {
	probe := &fakeProber{err: errors.New("ffmpeg missing")}
	p := New(probe, time.Minute, logger.NewNoop())

	if _, err := p.Capabilities(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	probe.err = nil
	if _, err := p.Capabilities(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if probe.calls != 2 {
		t.Errorf("expected failed probe not to be cached, got %d calls", probe.calls)
	}
}

func TestNormalize(t *testing.T) {
	snap := ports.Snapshot{WorkerSupport: true, Workers: 1}
	Normalize(&snap)
	if snap.HardwareDecode == nil || snap.FormatEncode == nil {
		t.Error("expected maps to be allocated")
	}
	if snap.WorkerSupport {
		t.Error("a single worker cannot support worker encoders")
	}
	if snap.CanHardwareDecode("h264") {
		t.Error("empty snapshot must not report hardware decode")
	}
}

func TestLowMemory(t *testing.T) {
	tests := []struct {
		name             string
		total, available uint64
		want             bool
	}{
		{"unknown", 0, 0, false},
		{"desktop", 16 << 30, 8 << 30, false},
		{"small device", 2 << 30, 1 << 30, true},
		{"memory pressure", 16 << 30, 100 << 20, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LowMemory(tt.total, tt.available); got != tt.want {
				t.Errorf("expected %t, got %t", tt.want, got)
			}
		})
	}
}

func TestMobileHeritage(t *testing.T) {
	tests := []struct {
		goos, goarch string
		want         bool
	}{
		{"android", "arm64", true},
		{"ios", "arm64", true},
		{"linux", "arm", true},
		{"darwin", "arm64", false},
		{"linux", "amd64", false},
	}
	for _, tt := range tests {
		if got := MobileHeritage(tt.goos, tt.goarch); got != tt.want {
			t.Errorf("%s/%s: expected %t, got %t", tt.goos, tt.goarch, tt.want, got)
		}
	}
}
