package vidloop

import (
	"context"
	"errors"
	"fmt"

	"github.com/user/vidloop/pkg/adapters/chromesource"
	"github.com/user/vidloop/pkg/adapters/ffmpeg"
	"github.com/user/vidloop/pkg/adapters/ffmpegencoder"
	"github.com/user/vidloop/pkg/adapters/ffmpegsource"
	"github.com/user/vidloop/pkg/adapters/ffprobe"
	"github.com/user/vidloop/pkg/adapters/filesink"
	"github.com/user/vidloop/pkg/adapters/ggrenderer"
	"github.com/user/vidloop/pkg/adapters/gifencoder"
	"github.com/user/vidloop/pkg/adapters/mp4probe"
	"github.com/user/vidloop/pkg/adapters/nullsink"
	"github.com/user/vidloop/pkg/adapters/osfilesystem"
	"github.com/user/vidloop/pkg/adapters/pebblestore"
	"github.com/user/vidloop/pkg/adapters/sysprobe"
	"github.com/user/vidloop/pkg/adapters/transcoder"
	"github.com/user/vidloop/pkg/capability"
	"github.com/user/vidloop/pkg/capture"
	"github.com/user/vidloop/pkg/config"
	"github.com/user/vidloop/pkg/history"
	"github.com/user/vidloop/pkg/orchestrator"
	"github.com/user/vidloop/pkg/pipeline"
	"github.com/user/vidloop/pkg/ports"
	"github.com/user/vidloop/pkg/registry"
	"github.com/user/vidloop/pkg/stages/encode"
	"github.com/user/vidloop/pkg/stages/extract"
)

// Callbacks observe a running conversion.
type Callbacks struct {
	OnProgress func(percent int)
	OnStatus   func(phase, status string)
}

// Converter wires the adapters, stages and orchestrator of one process.
type Converter struct {
	cfg      config.Config
	prober   ports.MetadataProber
	caps     *capability.Provider
	registry *registry.Registry
	history  *history.Store
	store    *pebblestore.Store
	orch     *orchestrator.Orchestrator
	logger   ports.Logger
}

// EncoderReport describes one registered encoder for a format.
type EncoderReport struct {
	Format    pipeline.OutputFormat
	Name      string
	Score     float64
	Available bool
}

// New creates a Converter from cfg. A missing ffmpeg is not an error: the
// pure Go palette encoder and a Chrome source may still serve conversions.
func New(cfg config.Config, logger ports.Logger, cb Callbacks) (*Converter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		runner *ffmpeg.Runner
		build  ffmpeg.BuildFunc
	)
	if path, err := ffmpeg.Locate(cfg.FFmpeg.Path); err == nil {
		runner = ffmpeg.NewRunner(path, logger)
		build = ffmpeg.CachedBuild(runner)
	} else {
		logger.Warn("ffmpeg not found, hardware and software backends disabled: %v", err)
		build = func(context.Context) (ffmpeg.Build, error) { return ffmpeg.Build{}, err }
	}

	mp4 := mp4probe.New(logger)
	var ffp ports.MetadataProber
	probePath := cfg.FFmpeg.ProbePath
	var probeErr error
	if probePath == "" {
		probePath, probeErr = ffmpeg.LocateProbe(cfg.FFmpeg.Path)
	}
	if probeErr == nil {
		ffp = ffprobe.New(probePath, logger)
	} else {
		logger.Debug("ffprobe not found: %v", probeErr)
	}

	// Encoders
	reg := registry.New(logger, cfg.AvailabilityTTL)
	if runner != nil {
		for _, enc := range ffmpegencoder.All(runner, build, logger) {
			reg.Register(enc)
		}
	}
	reg.Register(gifencoder.New(gifencoder.Options{Workers: cfg.Workers}, logger))

	// History
	var (
		store   *pebblestore.Store
		storage ports.SessionStorage
	)
	if cfg.SessionDir != "" {
		s, err := pebblestore.Open(cfg.SessionDir, logger)
		if err != nil {
			return nil, err
		}
		store, storage = s, s
	}
	hist := history.New(storage, logger)

	// Sources
	var ffOpener ports.SourceOpener
	if runner != nil {
		ffOpener = ffmpegsource.NewOpener(runner, sampleIndex(mp4), logger)
	}
	var chromeOpener ports.SourceOpener
	if cfg.Source.Backend != config.SourceFFmpeg {
		chromeOpener = chromesource.NewOpener(chromesource.Options{
			ChromePath:     cfg.Source.ChromePath,
			Headless:       cfg.Source.Headless,
			AutoplayPolicy: cfg.Source.AutoplayPolicy,
			LoadTimeout:    cfg.Source.LoadTimeout,
		}, logger)
	}
	router := NewSourceRouter(cfg.Source.Backend, ffOpener, chromeOpener, logger)

	// Debug output
	renderer := ggrenderer.New(pipeline.ParseQuality(cfg.Quality))
	var sink ports.DebugSink
	if cfg.Debug {
		fs := osfilesystem.New()
		if err := fs.MkdirAll(cfg.DebugDir); err != nil {
			if store != nil {
				store.Close()
			}
			return nil, fmt.Errorf("create debug directory: %w", err)
		}
		sink = filesink.New(cfg.DebugDir, fs, renderer)
	} else {
		sink = nullsink.New()
	}

	caps := capability.New(sysprobe.New(build, logger), cfg.CapabilityTTL, logger)
	driver := capture.NewDefaultDriver(logger, cfg.ToSeekConfig(), capture.DefaultFrameCallbackConfig())

	opts := cfg.ToOptions()
	opts.OnProgress = cb.OnProgress
	opts.OnStatus = cb.OnStatus

	orch := orchestrator.New(orchestrator.Deps{
		Capabilities: caps,
		Registry:     reg,
		History:      hist,
		Extract:      extract.New(router, driver, sink, renderer, logger),
		Encode:       encode.NewStage(logger),
		Transcoder:   transcoder.New(runner, build, logger),
		Sink:         sink,
		Logger:       logger,
	}, opts)

	return &Converter{
		cfg:      cfg,
		prober:   NewMetadataProber(mp4, ffp, logger),
		caps:     caps,
		registry: reg,
		history:  hist,
		store:    store,
		orch:     orch,
		logger:   logger,
	}, nil
}

// sampleIndex serves the demuxer adapter from the mp4 sample table.
func sampleIndex(p *mp4probe.Prober) ffmpegsource.IndexFunc {
	return func(ctx context.Context, src string) ([]ports.SampleInfo, error) {
		if !mp4probe.Supported(src) {
			return nil, fmt.Errorf("%w: no sample index for %s", capture.ErrUnsupportedSource, src)
		}
		return p.SampleIndex(ctx, src)
	}
}

// Probe reads the metadata of src.
func (c *Converter) Probe(ctx context.Context, src string) (pipeline.VideoMetadata, error) {
	return c.prober.Probe(ctx, src)
}

// Prepare builds the request for src and probes its metadata. A failed
// probe is not fatal: the orchestrator selects a path for unknown metadata.
func (c *Converter) Prepare(ctx context.Context, src string) (pipeline.ConversionRequest, pipeline.VideoMetadata, error) {
	req, err := c.cfg.Request(src)
	if err != nil {
		return req, pipeline.VideoMetadata{}, err
	}
	meta, err := c.Probe(ctx, src)
	if err != nil {
		if pipeline.IsCancellation(err) || ctx.Err() != nil {
			return req, pipeline.VideoMetadata{}, &pipeline.ConversionError{Path: req.ForcePath, Phase: pipeline.PhaseNone, Err: pipeline.ErrCancelled}
		}
		c.logger.Warn("Metadata probe failed, continuing with unknown metadata: %v", err)
		meta = pipeline.VideoMetadata{}
	}
	return req, meta, nil
}

// Run converts a prepared request. Starting a run cancels the previous one.
func (c *Converter) Run(ctx context.Context, req pipeline.ConversionRequest, meta pipeline.VideoMetadata) (pipeline.ConversionResult, error) {
	return c.orch.Convert(ctx, req, meta)
}

// Convert prepares and runs a conversion of src.
func (c *Converter) Convert(ctx context.Context, src string) (pipeline.ConversionResult, error) {
	req, meta, err := c.Prepare(ctx, src)
	if err != nil {
		return pipeline.ConversionResult{}, err
	}
	return c.Run(ctx, req, meta)
}

// Cancel cancels the conversion in flight, if any.
func (c *Converter) Cancel() {
	c.orch.Cancel()
}

// Capabilities returns the current capability snapshot.
func (c *Converter) Capabilities(ctx context.Context) (ports.Snapshot, error) {
	return c.caps.Capabilities(ctx)
}

// Encoders ranks the registered encoders of every output format.
func (c *Converter) Encoders(ctx context.Context) []EncoderReport {
	var out []EncoderReport
	for _, format := range pipeline.AllFormats {
		for _, cand := range c.registry.Rank(ctx, format) {
			out = append(out, EncoderReport{
				Format:    format,
				Name:      cand.Encoder.Name(),
				Score:     cand.Score,
				Available: cand.Available,
			})
		}
	}
	return out
}

// History returns the recorded conversion outcomes, oldest first.
func (c *Converter) History() []pipeline.ConversionRecord {
	return c.history.Records()
}

// Recommend returns the learned path for a codec and format.
func (c *Converter) Recommend(codecName string, format pipeline.OutputFormat) (pipeline.StrategyRecommendation, bool) {
	return c.history.Recommend(codecName, format)
}

// ClearHistory removes every recorded outcome.
func (c *Converter) ClearHistory() error {
	return c.history.Clear()
}

// Close releases encoders and the session store.
func (c *Converter) Close() error {
	c.orch.Cancel()
	var errs []error
	if err := c.registry.Dispose(); err != nil {
		errs = append(errs, err)
	}
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
