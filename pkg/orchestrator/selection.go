package orchestrator

import (
	"context"
	"math"
	"time"

	"github.com/user/vidloop/pkg/codec"
	"github.com/user/vidloop/pkg/pipeline"
	"github.com/user/vidloop/pkg/ports"
)

const mib = 1 << 20

// BudgetConfig sizes the hardware decode budget.
type BudgetConfig struct {
	// Base is the budget of a zero-length clip per quality tier.
	Base map[pipeline.QualityTier]int64
	// ReferenceSeconds and Exponent shrink the budget with duration:
	// base / (1 + duration/ReferenceSeconds)^Exponent.
	ReferenceSeconds float64
	Exponent         float64
	// DeviceShare caps the budget at this share of device memory when known.
	DeviceShare float64
}

// DefaultBudget returns the default decode budget calibration.
func DefaultBudget() BudgetConfig {
	return BudgetConfig{
		Base: map[pipeline.QualityTier]int64{
			pipeline.QualityLow:    512 * mib,
			pipeline.QualityMedium: 384 * mib,
			pipeline.QualityHigh:   256 * mib,
		},
		ReferenceSeconds: 30,
		Exponent:         1.5,
		DeviceShare:      0.25,
	}
}

// DecodeBudget returns the frame-buffer budget in bytes. Longer clips get a
// disproportionately smaller budget.
func (b BudgetConfig) DecodeBudget(q pipeline.QualityTier, durationSec float64, deviceMemory uint64) int64 {
	base, ok := b.Base[q]
	if !ok {
		base = b.Base[pipeline.QualityMedium]
	}
	if durationSec < 0 {
		durationSec = 0
	}
	budget := int64(float64(base) / math.Pow(1+durationSec/b.ReferenceSeconds, b.Exponent))
	if deviceMemory > 0 {
		if limit := int64(float64(deviceMemory) * b.DeviceShare); budget > limit {
			budget = limit
		}
	}
	return budget
}

// FrameBufferBytes estimates uncompressed RGBA bytes for frames of w×h.
func FrameBufferBytes(w, h, frames int) int64 {
	return int64(w) * int64(h) * 4 * int64(frames)
}

// Selection is the outcome of path selection.
type Selection struct {
	Path pipeline.ConversionPath
	// Order is Path followed by the demotions allowed for this run.
	Order  []pipeline.ConversionPath
	Reason string

	Default          pipeline.ConversionPath
	HardwareEligible bool
	Recommendation   *pipeline.StrategyRecommendation

	Family      codec.Family
	Width       int
	Height      int
	FPS         float64
	Frames      int
	FrameBytes  int64
	BudgetBytes int64
}

// Select runs path selection without converting.
func (o *Orchestrator) Select(ctx context.Context, req pipeline.ConversionRequest, meta pipeline.VideoMetadata) (Selection, ports.Snapshot) {
	snap := o.snapshot(ctx)
	return o.selectPath(ctx, req, meta, snap), snap
}

func (o *Orchestrator) selectPath(ctx context.Context, req pipeline.ConversionRequest, meta pipeline.VideoMetadata, snap ports.Snapshot) Selection {
	sel := Selection{Family: codec.Normalize(meta.Codec)}
	sel.Width, sel.Height = o.outputSize(req, meta)
	sel.FPS = o.fps(req, meta)
	sel.Frames = estimatedFrames(meta, sel.FPS, req.MaxFrames)
	sel.FrameBytes = FrameBufferBytes(sel.Width, sel.Height, sel.Frames)
	sel.BudgetBytes = o.opts.Budget.DecodeBudget(req.Quality, meta.Duration, snap.DeviceMemoryBytes)

	hwDecode := snap.CanHardwareDecode(string(sel.Family))
	demuxable := codec.DemuxableContainer(meta.Container)
	constrained := snap.LowMemory || snap.MobileHeritage
	// Without dimensions and a frame count the memory estimate is unknown,
	// which counts as over budget.
	estimated := sel.Width > 0 && sel.Height > 0 && sel.Frames > 0
	sel.HardwareEligible = hwDecode && demuxable && snap.CanEncode(req.Format) &&
		estimated && sel.FrameBytes < sel.BudgetBytes && !constrained

	switch {
	case sel.HardwareEligible:
		sel.Default = pipeline.PathHardware
	case hwDecode && demuxable:
		sel.Default = pipeline.PathHybrid
	default:
		sel.Default = pipeline.PathSoftware
	}

	sel.Path, sel.Reason = sel.Default, "capability"
	if req.ForcePath != "" {
		sel.Path, sel.Reason = req.ForcePath, "forced"
	} else if rec, ok := o.history.Recommend(meta.Codec, req.Format); ok {
		sel.Recommendation = &rec
		if rec.Confidence >= o.opts.Steering.Confidence && rec.Path != sel.Default && !o.hardIncapable(ctx, rec.Path, sel.Family, req.Format, snap) {
			sel.Path, sel.Reason = rec.Path, "history"
		}
	}

	if req.DisableFallback {
		sel.Order = []pipeline.ConversionPath{sel.Path}
	} else {
		sel.Order = sel.Path.Demotions()
	}
	return sel
}

// hardIncapable reports paths that cannot run at all in this environment.
func (o *Orchestrator) hardIncapable(ctx context.Context, path pipeline.ConversionPath, family codec.Family, format pipeline.OutputFormat, snap ports.Snapshot) bool {
	switch path {
	case pipeline.PathHardware:
		return !snap.CanHardwareDecode(string(family)) || !snap.CanEncode(format)
	case pipeline.PathHybrid:
		return !snap.CanHardwareDecode(string(family))
	case pipeline.PathSoftware:
		return o.transcoder == nil || !o.transcoder.Available(ctx)
	}
	return true
}

func (o *Orchestrator) outputSize(req pipeline.ConversionRequest, meta pipeline.VideoMetadata) (int, int) {
	if meta.Width <= 0 || meta.Height <= 0 {
		return 0, 0
	}
	return meta.ScaledSize(req.EffectiveScale())
}

// fps returns the sampling rate, never above the source frame rate.
func (o *Orchestrator) fps(req pipeline.ConversionRequest, meta pipeline.VideoMetadata) float64 {
	fps := req.TargetFPS
	if fps <= 0 {
		fps = o.opts.DefaultFPS
	}
	if meta.FrameRate > 0 && fps > meta.FrameRate {
		fps = meta.FrameRate
	}
	return fps
}

// estimatedFrames returns maxFrames (possibly 0) when the duration is unknown.
func estimatedFrames(meta pipeline.VideoMetadata, fps float64, maxFrames int) int {
	if !meta.HasDuration() {
		return maxFrames
	}
	n := int(math.Ceil(meta.Duration*fps - 1e-9))
	if maxFrames > 0 && n > maxFrames {
		n = maxFrames
	}
	return n
}

// SteeringLimits bound the work the CPU palette encoder takes on.
type SteeringLimits struct {
	MaxFrames   int
	MaxDuration time.Duration
	MaxBytes    int64
}

// SteeringConfig calibrates complex-codec steering. The numbers are a
// starting point and are expected to be re-tuned per platform.
type SteeringConfig struct {
	Limits map[pipeline.QualityTier]SteeringLimits
	// Confidence is the learned-preference threshold shared with path selection.
	Confidence float64
}

// DefaultSteering returns the default steering calibration.
func DefaultSteering() SteeringConfig {
	return SteeringConfig{
		Limits: map[pipeline.QualityTier]SteeringLimits{
			pipeline.QualityLow:    {MaxFrames: 600, MaxDuration: 60 * time.Second, MaxBytes: 512 * mib},
			pipeline.QualityMedium: {MaxFrames: 450, MaxDuration: 45 * time.Second, MaxBytes: 384 * mib},
			pipeline.QualityHigh:   {MaxFrames: 300, MaxDuration: 30 * time.Second, MaxBytes: 256 * mib},
		},
		Confidence: 0.5,
	}
}

// steerToPalette decides whether gif output of a complex codec should use the
// CPU palette encoder. Any missing precondition keeps the default encoder.
func (o *Orchestrator) steerToPalette(req pipeline.ConversionRequest, meta pipeline.VideoMetadata, snap ports.Snapshot, sel Selection) (bool, string) {
	if req.Format != pipeline.FormatGIF {
		return false, "not gif"
	}
	if !sel.Family.IsComplex() {
		return false, "codec not complex"
	}
	if !snap.WorkerSupport || !snap.SharedMemory {
		return false, "no worker support"
	}
	if snap.LowMemory || snap.MobileHeritage {
		return false, "constrained device"
	}
	limits, ok := o.opts.Steering.Limits[req.Quality]
	if !ok {
		limits = o.opts.Steering.Limits[pipeline.QualityMedium]
	}
	if !meta.HasDuration() || meta.DurationTime() > limits.MaxDuration {
		return false, "duration over budget"
	}
	if sel.Frames <= 0 || sel.Frames > limits.MaxFrames {
		return false, "frame count over budget"
	}
	if sel.FrameBytes > limits.MaxBytes {
		return false, "memory over budget"
	}
	if name, conf, ok := o.history.EncoderPreference(meta.Codec, req.Format); ok && name == o.opts.PipelineEncoder && conf >= o.opts.Steering.Confidence {
		return false, "learned pipeline preference"
	}
	return true, "complex codec"
}
