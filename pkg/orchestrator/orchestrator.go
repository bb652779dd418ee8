// Package orchestrator runs a conversion: it selects a conversion path,
// drives the extract and encode stages, demotes to a more conservative path
// on failure and records exactly one outcome per run in the strategy history.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/user/vidloop/pkg/capability"
	"github.com/user/vidloop/pkg/codec"
	"github.com/user/vidloop/pkg/metrics"
	"github.com/user/vidloop/pkg/pipeline"
	"github.com/user/vidloop/pkg/ports"
	"github.com/user/vidloop/pkg/progress"
	"github.com/user/vidloop/pkg/registry"
	"github.com/user/vidloop/pkg/stages/encode"
	"github.com/user/vidloop/pkg/stages/extract"
)

// SoftwareEncoderName names the software backend when it encodes captured frames.
const SoftwareEncoderName = "software-backend"

// Progress phase names.
const (
	PhaseAnalyze   = "analyze"
	PhaseCapture   = "capture"
	PhaseEncode    = "encode"
	PhaseTranscode = "transcode"
)

// EncoderRegistry selects encoders per format.
type EncoderRegistry interface {
	GetEncoder(ctx context.Context, format pipeline.OutputFormat, prefs registry.Preferences) (ports.Encoder, error)
	MarkFailed(name string)
}

// StrategyHistory is the learned outcome ledger.
type StrategyHistory interface {
	Record(rec pipeline.ConversionRecord) error
	Recommend(codecName string, format pipeline.OutputFormat) (pipeline.StrategyRecommendation, bool)
	EncoderPreference(codecName string, format pipeline.OutputFormat) (string, float64, bool)
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Capabilities ports.CapabilityProvider
	Registry     EncoderRegistry
	History      StrategyHistory
	Extract      pipeline.Stage[extract.Input, extract.Result]
	Encode       pipeline.Stage[encode.Input, encode.Result]
	Transcoder   ports.Transcoder
	Sink         ports.DebugSink
	Logger       ports.Logger
}

// Options tune a conversion.
type Options struct {
	DefaultFPS    float64
	EncodeTimeout time.Duration
	Budget        BudgetConfig
	Steering      SteeringConfig

	// PaletteEncoder is the CPU palette encoder complex codecs are steered to.
	PaletteEncoder string
	// PipelineEncoder is the default gif encoder on the hardware path.
	PipelineEncoder string

	OnProgress func(percent int)
	OnStatus   func(phase, status string)
}

// DefaultOptions returns the default options.
func DefaultOptions() Options {
	return Options{
		DefaultFPS:      10,
		EncodeTimeout:   2 * time.Minute,
		Budget:          DefaultBudget(),
		Steering:        DefaultSteering(),
		PaletteEncoder:  "gif-palette",
		PipelineEncoder: "gif-ffmpeg",
	}
}

// Orchestrator coordinates conversion runs. Starting a new run cancels the
// previous one.
type Orchestrator struct {
	caps       ports.CapabilityProvider
	registry   EncoderRegistry
	history    StrategyHistory
	extract    pipeline.Stage[extract.Input, extract.Result]
	encode     pipeline.Stage[encode.Input, encode.Result]
	transcoder ports.Transcoder
	sink       ports.DebugSink
	logger     ports.Logger
	opts       Options

	seq sequence
	now func() time.Time
}

// New creates a new Orchestrator. Zero option fields take their defaults.
func New(deps Deps, opts Options) *Orchestrator {
	def := DefaultOptions()
	if opts.DefaultFPS <= 0 {
		opts.DefaultFPS = def.DefaultFPS
	}
	if opts.EncodeTimeout <= 0 {
		opts.EncodeTimeout = def.EncodeTimeout
	}
	if opts.Budget.Base == nil {
		opts.Budget = def.Budget
	}
	if opts.Steering.Limits == nil {
		opts.Steering = def.Steering
	}
	if opts.PaletteEncoder == "" {
		opts.PaletteEncoder = def.PaletteEncoder
	}
	if opts.PipelineEncoder == "" {
		opts.PipelineEncoder = def.PipelineEncoder
	}
	return &Orchestrator{
		caps:       deps.Capabilities,
		registry:   deps.Registry,
		history:    deps.History,
		extract:    deps.Extract,
		encode:     deps.Encode,
		transcoder: deps.Transcoder,
		sink:       deps.Sink,
		logger:     deps.Logger,
		opts:       opts,
		now:        time.Now,
	}
}

// SetClock replaces the time source used for durations and record timestamps.
func (o *Orchestrator) SetClock(now func() time.Time) {
	o.now = now
}

// Cancel aborts the running conversion, if any. The run returns
// ErrCancelled and records a cancellation.
func (o *Orchestrator) Cancel() {
	o.logger.Debug("Cancel requested")
	o.seq.bump()
}

// run is the state of one Convert call.
type run struct {
	o        *Orchestrator
	gen      uint64
	ctx      context.Context
	id       string
	req      pipeline.ConversionRequest
	meta     pipeline.VideoMetadata
	progress *progress.Reporter
}

func (r *run) stale() bool {
	return !r.o.seq.current(r.gen)
}

func (r *run) shouldCancel() bool {
	return r.ctx.Err() != nil || r.stale()
}

// Convert runs one conversion. On failure the error is a *pipeline.ConversionError.
func (o *Orchestrator) Convert(ctx context.Context, req pipeline.ConversionRequest, meta pipeline.VideoMetadata) (pipeline.ConversionResult, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	gen := o.seq.begin(cancel)
	defer o.seq.end(gen)

	if req.Quality == "" {
		req.Quality = pipeline.QualityMedium
	}
	r := &run{o: o, gen: gen, ctx: runCtx, id: uuid.NewString(), req: req, meta: meta}
	r.progress = progress.New(
		func(p int) {
			if o.seq.current(gen) && o.opts.OnProgress != nil {
				o.opts.OnProgress(p)
			}
		},
		func(phase, status string) {
			if o.seq.current(gen) && o.opts.OnStatus != nil {
				o.opts.OnStatus(phase, status)
			}
		},
	)

	metrics.ConversionsInFlight.Inc()
	defer metrics.ConversionsInFlight.Dec()
	start := o.now()

	r.progress.DefinePhases(
		progress.Phase{Name: PhaseAnalyze, Weight: 5},
		progress.Phase{Name: PhaseCapture, Weight: 55},
		progress.Phase{Name: PhaseEncode, Weight: 40},
	)
	r.progress.StartPhase(PhaseAnalyze, "Analyzing source")
	snap := o.snapshot(runCtx)
	sel := o.selectPath(runCtx, req, meta, snap)
	o.logger.Info("Converting %s (%s to %s) via %s path, reason: %s", req.Source, sel.Family, req.Format, sel.Path, sel.Reason)
	r.progress.Report(1)

	var (
		attempts []pipeline.AttemptInfo
		last     pipeline.AttemptInfo
		lastErr  error
	)
	for i, path := range sel.Order {
		if i > 0 {
			o.logger.Warn("Falling back from %s to %s after %s failure: %v", last.Path, path, last.Phase, lastErr)
			metrics.FallbacksTotal.WithLabelValues(string(last.Path), string(path), string(last.Phase)).Inc()
		}

		res, att, err := r.attempt(path, snap, sel)
		attempts = append(attempts, att)
		last = att

		if err == nil && r.stale() {
			err = pipeline.ErrCancelled
		}
		if err == nil {
			res.RunID = r.id
			res.Attempts = attempts
			res.Duration = o.now().Sub(start)
			r.finish(res.Path, res.CaptureMode, res.Encoder, true, pipeline.PhaseNone, res.Duration)
			r.progress.Complete()
			o.logger.Info("Converted with %s path and %s encoder: %d frames, %d bytes in %d ms",
				res.Path, res.Encoder, res.Frames, len(res.Data), res.Duration.Milliseconds())
			r.writeDebug(sel, attempts, nil)
			return res, nil
		}

		lastErr = err
		if pipeline.IsCancellation(err) || r.shouldCancel() {
			break
		}
		o.logger.Debug("%s path failed: %v", path, err)
	}

	elapsed := o.now().Sub(start)
	phase := pipeline.Classify(lastErr)
	if r.shouldCancel() || pipeline.IsCancellation(lastErr) {
		phase = pipeline.PhaseNone
		if !pipeline.IsCancellation(lastErr) {
			lastErr = fmt.Errorf("%w: %w", pipeline.ErrCancelled, lastErr)
		}
		o.logger.Info("Conversion cancelled")
	} else {
		o.logger.Error("Conversion failed on %s path during %s: %v", last.Path, phase, lastErr)
	}
	r.finish(last.Path, last.CaptureMode, last.Encoder, false, phase, elapsed)
	r.writeDebug(sel, attempts, lastErr)

	return pipeline.ConversionResult{}, &pipeline.ConversionError{
		Path:     last.Path,
		Phase:    phase,
		Attempts: attempts,
		Err:      lastErr,
	}
}

// finish writes the single history record of the run.
func (r *run) finish(path pipeline.ConversionPath, mode pipeline.CaptureMode, encoder string, success bool, phase pipeline.FailurePhase, elapsed time.Duration) {
	o := r.o
	rec := pipeline.ConversionRecord{
		Codec:        r.meta.Codec,
		Format:       r.req.Format,
		Path:         path,
		CaptureMode:  mode,
		Encoder:      encoder,
		DurationMs:   elapsed.Milliseconds(),
		Success:      success,
		FailurePhase: phase,
		Timestamp:    o.now(),
	}
	if err := o.history.Record(rec); err != nil {
		o.logger.Warn("Failed to persist strategy history: %v", err)
	}

	outcome := "success"
	switch {
	case rec.Cancelled():
		outcome = "cancelled"
	case !success:
		outcome = "failure"
	}
	metrics.ConversionsTotal.WithLabelValues(string(path), string(r.req.Format), outcome).Inc()
	if success {
		metrics.ConversionDuration.WithLabelValues(string(path), string(r.req.Format)).Observe(elapsed.Seconds())
	}
}

func (o *Orchestrator) snapshot(ctx context.Context) ports.Snapshot {
	var snap ports.Snapshot
	if o.caps != nil {
		s, err := o.caps.Capabilities(ctx)
		if err != nil {
			o.logger.Warn("Capability probe failed, assuming software only: %v", err)
		} else {
			snap = s
		}
	}
	capability.Normalize(&snap)
	return snap
}

var reportJSON = jsoniter.ConfigCompatibleWithStandardLibrary

type runReport struct {
	RunID     string                  `json:"runId"`
	Source    string                  `json:"source"`
	Format    pipeline.OutputFormat   `json:"format"`
	Quality   pipeline.QualityTier    `json:"quality"`
	Codec     codec.Family            `json:"codecFamily"`
	Metadata  pipeline.VideoMetadata  `json:"metadata"`
	Selected  pipeline.ConversionPath `json:"selectedPath"`
	Default   pipeline.ConversionPath `json:"defaultPath"`
	Reason    string                  `json:"reason"`
	Budget    int64                   `json:"decodeBudgetBytes"`
	Estimate  int64                   `json:"frameBufferBytes"`
	Attempts  []pipeline.AttemptInfo  `json:"attempts"`
	Succeeded bool                    `json:"succeeded"`
	Error     string                  `json:"error,omitempty"`
}

// writeDebug saves the run report and history snapshot when debugging is on.
func (r *run) writeDebug(sel Selection, attempts []pipeline.AttemptInfo, runErr error) {
	o := r.o
	if o.sink == nil || !o.sink.Enabled() || r.stale() {
		return
	}
	rep := runReport{
		RunID:     r.id,
		Source:    r.req.Source,
		Format:    r.req.Format,
		Quality:   r.req.Quality,
		Codec:     sel.Family,
		Metadata:  r.meta,
		Selected:  sel.Path,
		Default:   sel.Default,
		Reason:    sel.Reason,
		Budget:    sel.BudgetBytes,
		Estimate:  sel.FrameBytes,
		Attempts:  attempts,
		Succeeded: runErr == nil,
	}
	if runErr != nil {
		rep.Error = runErr.Error()
	}
	if data, err := reportJSON.MarshalIndent(rep, "", "  "); err == nil {
		if err := o.sink.SaveReportJSON(data); err != nil {
			o.logger.Debug("Save run report: %v", err)
		}
	}
	if m, ok := o.history.(json.Marshaler); ok {
		if data, err := m.MarshalJSON(); err == nil {
			if err := o.sink.SaveHistoryJSON(data); err != nil {
				o.logger.Debug("Save history snapshot: %v", err)
			}
		}
	}
}
