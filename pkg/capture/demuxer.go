package capture

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/user/vidloop/pkg/pipeline"
	"github.com/user/vidloop/pkg/ports"
)

// DemuxerAdapter plans sample points from the container sample index and
// takes them from a single streaming decode pass.
type DemuxerAdapter struct {
	logger ports.Logger
}

// NewDemuxer creates a demuxer adapter.
func NewDemuxer(logger ports.Logger) *DemuxerAdapter {
	return &DemuxerAdapter{logger: logger.WithComponent("capture")}
}

// Mode implements Adapter.
func (a *DemuxerAdapter) Mode() pipeline.CaptureMode {
	return pipeline.CaptureDemuxer
}

// Capture implements Adapter.
func (a *DemuxerAdapter) Capture(ctx context.Context, src ports.FrameSource, p Params, onFrame func(pipeline.Frame) error) error {
	demux, ok := src.(ports.Demuxable)
	if !ok {
		return ErrUnsupportedSource
	}
	stream, ok := src.(ports.StreamDecodable)
	if !ok {
		return ErrUnsupportedSource
	}

	index, err := demux.SampleIndex(ctx)
	if err != nil {
		return fmt.Errorf("read sample index: %w", err)
	}
	if len(index) == 0 {
		return fmt.Errorf("%w: empty sample index", ErrUnsupportedSource)
	}

	dur := p.duration(src)
	if dur <= 0 {
		dur = index[len(index)-1].PTS + 1
	}
	targets := planTargets(index, dur, p)
	a.logger.Debug("Demuxer capture: %d targets from %d samples", len(targets), len(index))
	if len(targets) == 0 {
		return nil
	}

	next, captured := 0, 0
	err = stream.DecodeStream(ctx, func(tick ports.FrameTick) error {
		if err := checkCancel(ctx, p); err != nil {
			return err
		}
		if tick.MediaTime < targets[next] {
			return nil
		}
		if err := onFrame(pipeline.Frame{Index: captured, Timestamp: tick.MediaTime, Image: tick.Image}); err != nil {
			return err
		}
		captured++
		next++
		// A late frame may cover several targets; skip to the first one after it.
		for next < len(targets) && targets[next] <= tick.MediaTime {
			next++
		}
		if next >= len(targets) {
			return ports.ErrStopStream
		}
		return nil
	})
	if err != nil && !errors.Is(err, ports.ErrStopStream) {
		return err
	}
	return checkCancel(ctx, p)
}

// planTargets snaps the fixed schedule onto the nearest indexed sample and
// drops duplicates so targets are strictly increasing.
func planTargets(index []ports.SampleInfo, dur time.Duration, p Params) []time.Duration {
	pts := make([]time.Duration, len(index))
	for i, s := range index {
		pts[i] = s.PTS
	}
	sort.Slice(pts, func(i, j int) bool { return pts[i] < pts[j] })

	n := ExpectedFrames(dur, p.fps(), p.MaxFrames)
	interval := p.interval()
	targets := make([]time.Duration, 0, n)
	for k := 0; k < n; k++ {
		snapped := nearest(pts, time.Duration(k)*interval)
		if len(targets) > 0 && snapped <= targets[len(targets)-1] {
			continue
		}
		targets = append(targets, snapped)
	}
	return targets
}

func nearest(sorted []time.Duration, t time.Duration) time.Duration {
	i := sort.Search(len(sorted), func(i int) bool { return sorted[i] >= t })
	if i == 0 {
		return sorted[0]
	}
	if i == len(sorted) {
		return sorted[len(sorted)-1]
	}
	if sorted[i]-t < t-sorted[i-1] {
		return sorted[i]
	}
	return sorted[i-1]
}
