package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ideamans/go-l10n"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"

	"github.com/user/vidloop/pkg/adapters/osfilesystem"
	"github.com/user/vidloop/pkg/config"
	"github.com/user/vidloop/pkg/metrics"
	"github.com/user/vidloop/pkg/pipeline"
	"github.com/user/vidloop/pkg/ports"
	"github.com/user/vidloop/pkg/summarizer"
	"github.com/user/vidloop/pkg/vidloop"
)

func convertCommand() *cli.Command {
	flags := []cli.Flag{
		// Output
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: l10n.T("Output file path (default: source name with the format extension)"), Category: catOutput},
		&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: l10n.T("Output format (gif, webp, mp4)"), Category: catOutput},
		&cli.StringFlag{Name: "quality", Aliases: []string{"q"}, Usage: l10n.T("Quality preset (low, medium, high)"), Category: catOutput},
		&cli.Float64Flag{Name: "scale", Usage: l10n.T("Output scale factor (0-1]"), Category: catOutput},
		&cli.StringFlag{Name: "summary", Usage: l10n.T("Output execution summary to file (Markdown format)"), Category: catOutput},

		// Capture
		&cli.Float64Flag{Name: "fps", Usage: l10n.T("Target frame rate (default: 10)"), Category: catCapture},
		&cli.IntFlag{Name: "max-frames", Usage: l10n.T("Maximum number of frames (0 = no cap)"), Category: catCapture},
		&cli.StringFlag{Name: "capture-mode", Usage: l10n.T("Capture mode (auto, demuxer, track-processor, frame-callback, seek)"), Category: catCapture},
		&cli.StringFlag{Name: "path", Usage: l10n.T("Force a conversion path (hardware, hybrid, software)"), Category: catCapture},
		&cli.BoolFlag{Name: "no-fallback", Usage: l10n.T("Fail instead of falling back to a more conservative path"), Category: catCapture},
		&cli.DurationFlag{Name: "encode-timeout", Usage: l10n.T("Hard deadline of one encode call"), Category: catCapture},
		&cli.IntFlag{Name: "workers", Usage: l10n.T("Palette encoder workers (0 = number of CPUs)"), Category: catCapture},

		// Source
		&cli.StringFlag{Name: "source", Usage: l10n.T("Frame source backend (auto, ffmpeg, chrome)"), Category: catSource},
		&cli.StringFlag{Name: "chrome-path", Usage: l10n.T("Path to Chrome executable (falls back to CHROME_PATH env, then system default)"), Category: catSource},
		&cli.BoolFlag{Name: "no-headless", Usage: l10n.T("Run browser in non-headless mode"), Category: catSource},

		// Debug
		&cli.BoolFlag{Name: "debug", Aliases: []string{"d"}, Usage: l10n.T("Enable debug output"), Category: catDebug},
		&cli.StringFlag{Name: "debug-dir", Usage: l10n.T("Directory for debug output"), Category: catDebug},
		&cli.StringFlag{Name: "metrics-addr", Usage: l10n.T("Serve Prometheus metrics on this address (e.g. :9090)"), Category: catDebug},
	}

	return &cli.Command{
		Name:      "convert",
		Usage:     l10n.T("Convert a video into a looping clip"),
		ArgsUsage: "<video>",
		Flags:     append(commonFlags(), flags...),
		Action:    runConvert,
	}
}

// applyConvertFlags overrides cfg with the convert flags that were set.
func applyConvertFlags(c *cli.Context, cfg config.Config) (config.Config, error) {
	b := vidloop.FromConfig(cfg)
	if c.IsSet("format") {
		f, err := pipeline.ParseOutputFormat(c.String("format"))
		if err != nil {
			return cfg, err
		}
		b.WithFormat(f)
	}
	if c.IsSet("quality") {
		b.WithQuality(pipeline.ParseQuality(c.String("quality")))
	}
	if c.IsSet("scale") {
		b.WithScale(c.Float64("scale"))
	}
	if c.IsSet("fps") {
		b.WithFPS(c.Float64("fps"))
	}
	if c.IsSet("max-frames") {
		b.WithMaxFrames(c.Int("max-frames"))
	}
	if c.IsSet("capture-mode") {
		m, err := pipeline.ParseCaptureMode(c.String("capture-mode"))
		if err != nil {
			return cfg, err
		}
		b.WithCaptureMode(m)
	}
	if c.IsSet("path") {
		p, err := pipeline.ParsePath(c.String("path"))
		if err != nil {
			return cfg, err
		}
		b.WithPath(p)
	}
	if c.Bool("no-fallback") {
		b.WithoutFallback()
	}
	if c.IsSet("encode-timeout") {
		b.WithEncodeTimeout(c.Duration("encode-timeout"))
	}
	if c.IsSet("workers") {
		b.WithWorkers(c.Int("workers"))
	}
	if c.IsSet("source") {
		b.WithSourceBackend(c.String("source"))
	}
	if c.IsSet("chrome-path") {
		b.WithChromePath(c.String("chrome-path"))
	}
	if c.Bool("no-headless") {
		b.WithHeadless(false)
	}
	if c.Bool("debug") || c.IsSet("debug-dir") {
		b.WithDebug(c.String("debug-dir"))
	}
	cfg = b.Build()
	if c.IsSet("metrics-addr") {
		cfg.MetricsAddr = c.String("metrics-addr")
	}
	return cfg, cfg.Validate()
}

func runConvert(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit(l10n.T("Video argument is required"), 2)
	}
	src := c.Args().First()

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if cfg, err = applyConvertFlags(c, cfg); err != nil {
		return err
	}
	log := newLogger(c, cfg)

	format, _ := pipeline.ParseOutputFormat(cfg.Format)
	output := c.String("output")
	if output == "" {
		output = defaultOutput(src, format)
	}

	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(c.Context, cfg.MetricsAddr, log); err != nil {
				log.Warn("Metrics server stopped: %v", err)
			}
		}()
	}

	progress := newProgressPrinter(!c.Bool("quiet") && isatty.IsTerminal(os.Stderr.Fd()))
	conv, err := vidloop.New(cfg, log, vidloop.Callbacks{
		OnProgress: progress.update,
		OnStatus: func(phase, status string) {
			log.Debug("[%s] %s", phase, status)
		},
	})
	if err != nil {
		return err
	}
	defer conv.Close()

	req, meta, err := conv.Prepare(c.Context, src)
	if err != nil {
		return err
	}
	log.Info("Converting %s to %s...", src, output)
	res, convErr := conv.Run(c.Context, req, meta)
	progress.done()

	fs := osfilesystem.New()
	if convErr == nil {
		if err := fs.WriteFile(output, res.Data); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		log.Info("Output saved to %s", output)
	}

	if path := c.String("summary"); path != "" {
		writeSummary(fs, log, path, output, req, meta, res, convErr)
	}

	if convErr != nil {
		if pipeline.IsCancellation(convErr) {
			return cli.Exit(l10n.T("Conversion cancelled"), 130)
		}
		var ce *pipeline.ConversionError
		if errors.As(convErr, &ce) {
			return cli.Exit(l10n.F("Conversion failed: %s", ce.Error()), 1)
		}
		return convErr
	}
	return nil
}

func writeSummary(fs ports.FileSystem, log ports.Logger, path, output string,
	req pipeline.ConversionRequest, meta pipeline.VideoMetadata, res pipeline.ConversionResult, convErr error) {
	b := summarizer.NewBuilder().WithSource(req.Source, meta).WithRequest(req)
	if convErr == nil {
		b.WithResult(output, res)
	} else {
		b.WithError(convErr)
	}

	w := summarizer.NewWriter(summarizer.NewMarkdownFormatter(summarizer.WithTranslator(l10n.T)), fs)
	if err := w.Write(path, b.Build()); err != nil {
		log.Warn("Failed to write summary: %s", err.Error())
		return
	}
	log.Info("Summary saved to %s", path)
}

// defaultOutput replaces the source extension with the format extension.
func defaultOutput(src string, format pipeline.OutputFormat) string {
	base := strings.TrimSuffix(src, filepath.Ext(src))
	out := base + format.Extension()
	if out == src {
		out = base + ".loop" + format.Extension()
	}
	return out
}

// progressPrinter renders the overall percentage on one terminal line.
type progressPrinter struct {
	mu      sync.Mutex
	enabled bool
	last    int
}

func newProgressPrinter(enabled bool) *progressPrinter {
	return &progressPrinter{enabled: enabled, last: -1}
}

func (p *progressPrinter) update(percent int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.enabled || percent == p.last {
		return
	}
	p.last = percent
	fmt.Fprintf(os.Stderr, "\r%3d%%", percent)
}

func (p *progressPrinter) done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.enabled && p.last >= 0 {
		fmt.Fprintln(os.Stderr)
	}
}
