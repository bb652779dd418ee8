package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/user/vidloop/pkg/capture"
	"github.com/user/vidloop/pkg/pipeline"
	"github.com/user/vidloop/pkg/ports"
	"github.com/user/vidloop/pkg/progress"
	"github.com/user/vidloop/pkg/registry"
	"github.com/user/vidloop/pkg/stages/encode"
	"github.com/user/vidloop/pkg/stages/extract"
)

// attempt runs one path and describes it.
func (r *run) attempt(path pipeline.ConversionPath, snap ports.Snapshot, sel Selection) (pipeline.ConversionResult, pipeline.AttemptInfo, error) {
	start := r.o.now()
	var (
		res pipeline.ConversionResult
		err error
	)
	if path == pipeline.PathSoftware {
		res, err = r.software(sel)
	} else {
		res, err = r.framePath(path, snap, sel)
	}

	info := pipeline.AttemptInfo{
		Path:        path,
		Encoder:     res.Encoder,
		CaptureMode: res.CaptureMode,
		Frames:      res.Frames,
		DurationMs:  r.o.now().Sub(start).Milliseconds(),
		Phase:       pipeline.Classify(err),
	}
	if err != nil {
		info.Error = err.Error()
	}
	return res, info, err
}

// framePath captures frames from the hardware frame source and encodes them.
// Hardware uses a registry encoder; Hybrid uses the software frame encoder.
// On error the partial result still names the encoder and capture mode.
func (r *run) framePath(path pipeline.ConversionPath, snap ports.Snapshot, sel Selection) (pipeline.ConversionResult, error) {
	o := r.o
	res := pipeline.ConversionResult{Format: r.req.Format, Path: path, Width: sel.Width, Height: sel.Height}

	r.progress.DefinePhases(
		progress.Phase{Name: PhaseAnalyze, Weight: 5},
		progress.Phase{Name: PhaseCapture, Weight: 55},
		progress.Phase{Name: PhaseEncode, Weight: 40},
	)

	steer, why := o.steerToPalette(r.req, r.meta, snap, sel)
	o.logger.Debug("Palette steering for %s: %t (%s)", sel.Family, steer, why)

	enc, err := r.chooseEncoder(path, steer)
	if err != nil {
		return res, err
	}
	res.Encoder = enc.Name()

	r.progress.StartPhase(PhaseCapture, "Capturing frames")
	extracted, err := o.extract.Execute(r.ctx, extract.Input{
		Source: r.req.Source,
		Meta:   r.meta,
		Mode:   r.req.CaptureMode,
		Params: capture.Params{
			Duration:     r.meta.DurationTime(),
			TargetFPS:    sel.FPS,
			MaxFrames:    r.req.MaxFrames,
			CodecHint:    r.meta.Codec,
			ShouldCancel: r.shouldCancel,
		},
		Width:    sel.Width,
		Height:   sel.Height,
		Hardware: true,
		Observe: func(f pipeline.Frame, expected int) {
			if expected > 0 {
				r.progress.Report(float64(f.Index+1) / float64(expected))
			}
		},
	})
	res.CaptureMode = extracted.Mode
	res.Frames = len(extracted.Frames)
	if err != nil {
		return res, err
	}
	if r.shouldCancel() {
		return res, pipeline.ErrCancelled
	}

	r.progress.StartPhase(PhaseEncode, fmt.Sprintf("Encoding with %s", enc.Name()))
	guard := &progressGuard{report: r.progress.Report, open: true}
	encoded, err := o.encode.Execute(r.ctx, encode.Input{
		Frames:  extracted.Frames,
		Encoder: enc,
		Options: ports.EncodeOptions{
			Format:  r.req.Format,
			Width:   sel.Width,
			Height:  sel.Height,
			FPS:     sel.FPS,
			Quality: r.req.Quality,
			OnProgress: func(done, total int) {
				if total > 0 {
					guard.Report(float64(done) / float64(total))
				}
			},
			ShouldCancel: r.shouldCancel,
		},
		Timeout: o.opts.EncodeTimeout,
	})
	guard.Close()
	if err != nil {
		if !pipeline.IsCancellation(err) && enc.Name() != SoftwareEncoderName {
			o.registry.MarkFailed(enc.Name())
		}
		return res, err
	}

	res.Data = encoded.Data
	return res, nil
}

func (r *run) chooseEncoder(path pipeline.ConversionPath, steer bool) (ports.Encoder, error) {
	o := r.o
	if path == pipeline.PathHybrid {
		if steer {
			enc, err := o.registry.GetEncoder(r.ctx, r.req.Format, registry.Preferences{Prefer: o.opts.PaletteEncoder})
			if err == nil && enc.Name() == o.opts.PaletteEncoder {
				return enc, nil
			}
			o.logger.Debug("Palette encoder unavailable on hybrid path, using software backend")
		}
		if o.transcoder == nil || !o.transcoder.Available(r.ctx) {
			return nil, fmt.Errorf("%w: software backend unavailable", pipeline.ErrEncoderUnavailable)
		}
		return &softwareEncoder{transcoder: o.transcoder}, nil
	}

	prefs := registry.Preferences{}
	switch {
	case steer:
		prefs.Prefer = o.opts.PaletteEncoder
	case r.req.Format == pipeline.FormatGIF:
		prefs.Prefer = o.opts.PipelineEncoder
	}
	return o.registry.GetEncoder(r.ctx, r.req.Format, prefs)
}

// software hands the whole job to the software backend.
func (r *run) software(sel Selection) (pipeline.ConversionResult, error) {
	o := r.o
	res := pipeline.ConversionResult{
		Format:  r.req.Format,
		Path:    pipeline.PathSoftware,
		Encoder: SoftwareEncoderName,
		Width:   sel.Width,
		Height:  sel.Height,
		Frames:  sel.Frames,
	}
	if o.transcoder == nil || !o.transcoder.Available(r.ctx) {
		return res, fmt.Errorf("%w: unavailable", pipeline.ErrSoftwareBackend)
	}

	r.progress.DefinePhases(
		progress.Phase{Name: PhaseAnalyze, Weight: 5},
		progress.Phase{Name: PhaseTranscode, Weight: 95},
	)
	r.progress.StartPhase(PhaseTranscode, "Transcoding")

	guard := &progressGuard{report: r.progress.Report, open: true}
	data, err := o.transcoder.Transcode(r.ctx, r.req.Source, ports.TranscodeOptions{
		Format:     r.req.Format,
		Quality:    r.req.Quality,
		Width:      sel.Width,
		Height:     sel.Height,
		FPS:        sel.FPS,
		MaxFrames:  r.req.MaxFrames,
		OnProgress: guard.Report,
	}, r.meta)
	guard.Close()

	switch {
	case err != nil && (r.ctx.Err() != nil || errors.Is(err, context.Canceled)):
		return res, fmt.Errorf("%w: %w", pipeline.ErrCancelled, err)
	case err != nil:
		return res, fmt.Errorf("%w: %w", pipeline.ErrSoftwareBackend, err)
	case len(data) == 0:
		return res, fmt.Errorf("%w: no output", pipeline.ErrSoftwareBackend)
	}
	res.Data = data
	return res, nil
}

// progressGuard drops reports that arrive after the phase has ended.
type progressGuard struct {
	mu     sync.Mutex
	open   bool
	report func(float64)
}

func (g *progressGuard) Report(fraction float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.open {
		g.report(fraction)
	}
}

func (g *progressGuard) Close() {
	g.mu.Lock()
	g.open = false
	g.mu.Unlock()
}

// softwareEncoder encodes captured frames with the software backend.
type softwareEncoder struct {
	transcoder ports.Transcoder
}

func (e *softwareEncoder) Name() string { return SoftwareEncoderName }

func (e *softwareEncoder) Capabilities() pipeline.EncoderCapabilities {
	return pipeline.EncoderCapabilities{Formats: pipeline.AllFormats, PerformanceScore: 1}
}

func (e *softwareEncoder) IsAvailable(ctx context.Context) bool {
	return e.transcoder.Available(ctx)
}

func (e *softwareEncoder) Encode(ctx context.Context, frames []pipeline.Frame, opts ports.EncodeOptions) ([]byte, error) {
	return e.transcoder.EncodeFrames(ctx, frames, opts)
}

func (e *softwareEncoder) Dispose() error { return nil }

var _ ports.Encoder = (*softwareEncoder)(nil)
