package sysprobe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/user/vidloop/pkg/adapters/ffmpeg"
	"github.com/user/vidloop/pkg/adapters/logger"
	"github.com/user/vidloop/pkg/pipeline"
)

func newProber(build ffmpeg.BuildFunc, total, available uint64, memErr error) *Prober {
	p := New(build, logger.NewNoop())
	p.memory = func(ctx context.Context) (uint64, uint64, error) {
		return total, available, memErr
	}
	p.goos, p.goarch = "linux", "amd64"
	p.now = func() time.Time { return time.Unix(1700000000, 0) }
	return p
}

func TestProber_Probe(t *testing.T) {
	build := func(ctx context.Context) (ffmpeg.Build, error) {
		return ffmpeg.Build{
			HWAccels: []string{"vaapi"},
			Decoders: map[string]bool{"h264": true, "hevc": true},
			Encoders: map[string]bool{"gif": true, "libx264": true},
		}, nil
	}
	snap, err := newProber(build, 16<<30, 8<<30, nil).Probe(context.Background())
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	if !snap.CanHardwareDecode("h264") || !snap.CanHardwareDecode("hevc") || snap.CanHardwareDecode("av1") {
		t.Errorf("unexpected hardware decode %v", snap.HardwareDecode)
	}
	if !snap.CanEncode(pipeline.FormatGIF) || snap.CanEncode(pipeline.FormatWebP) {
		t.Errorf("unexpected format encode %v", snap.FormatEncode)
	}
	if snap.LowMemory || snap.MobileHeritage {
		t.Errorf("desktop snapshot flagged: %+v", snap)
	}
	if snap.DeviceMemoryBytes != 16<<30 || snap.TakenAt.IsZero() {
		t.Errorf("unexpected snapshot %+v", snap)
	}
}

func TestProber_Probe_Degraded(t *testing.T) {
	failing := func(ctx context.Context) (ffmpeg.Build, error) {
		return ffmpeg.Build{}, errors.New("no ffmpeg")
	}
	snap, err := newProber(failing, 0, 0, errors.New("no /proc")).Probe(context.Background())
	if err != nil {
		t.Fatalf("partial failures must not fail the probe: %v", err)
	}
	if len(snap.HardwareDecode) != 0 || len(snap.FormatEncode) != 0 {
		t.Errorf("expected empty support maps, got %+v", snap)
	}
	if snap.LowMemory {
		t.Error("unknown memory must not flag low memory")
	}
}

func TestProber_Probe_LowMemory(t *testing.T) {
	snap, _ := newProber(nil, 2<<30, 1<<30, nil).Probe(context.Background())
	if !snap.LowMemory {
		t.Error("expected low memory for a 2 GiB device")
	}
}
