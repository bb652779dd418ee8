// Package main provides the CLI entry point for vidloop.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ideamans/go-l10n"
	"github.com/urfave/cli/v2"

	"github.com/user/vidloop/pkg/adapters/logger"
	"github.com/user/vidloop/pkg/config"
	"github.com/user/vidloop/pkg/pipeline"
	"github.com/user/vidloop/pkg/ports"
	"github.com/user/vidloop/pkg/vidloop"
)

var version = "dev"

// Flag categories
const (
	catOutput  = "Output"
	catCapture = "Capture"
	catSource  = "Source"
	catSession = "Session"
	catDebug   = "Debug"
	catLogging = "Logging"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, l10n.T("Interrupted, shutting down..."))
		cancel()
	}()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "vidloop",
		Usage:   l10n.T("Convert videos into looping gif, webp and mp4 clips"),
		Version: version,
		Description: l10n.T("vidloop converts videos through a hardware, hybrid or software path, " +
			"falling back automatically and learning which path works for each codec."),
		Commands: []*cli.Command{
			convertCommand(),
			probeCommand(),
			capsCommand(),
			historyCommand(),
		},
	}
}

// commonFlags are shared by every command.
func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: l10n.T("YAML configuration file"), Category: catSession},
		&cli.StringFlag{Name: "ffmpeg-path", Usage: l10n.T("Path to ffmpeg executable (falls back to FFMPEG_PATH, then PATH)"), Category: catSource},
		&cli.StringFlag{Name: "session-dir", Usage: l10n.T("Directory persisting the strategy history across runs"), Category: catSession},
		&cli.StringFlag{Name: "log-level", Aliases: []string{"l"}, Value: "info", Usage: l10n.T("Log level (debug, info, warn, error)"), Category: catLogging},
		&cli.BoolFlag{Name: "quiet", Aliases: []string{"Q"}, Usage: l10n.T("Suppress all log output"), Category: catLogging},
	}
}

// loadConfig reads --config, then applies the flags that were set.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg := config.Defaults()
	if path := c.String("config"); path != "" {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			return cfg, fmt.Errorf("%s: %w", l10n.T("Failed to load config"), err)
		}
		cfg = loaded
	}

	b := vidloop.FromConfig(cfg)
	if c.IsSet("ffmpeg-path") {
		b.WithFFmpegPath(c.String("ffmpeg-path"))
	}
	if c.IsSet("session-dir") {
		b.WithSessionDir(c.String("session-dir"))
	}
	cfg = b.Build()
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
		if _, err := ports.ParseLogLevel(cfg.LogLevel); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

func newLogger(c *cli.Context, cfg config.Config) ports.Logger {
	if c.Bool("quiet") {
		return logger.NewNoop()
	}
	level, _ := ports.ParseLogLevel(cfg.LogLevel)
	return logger.NewConsole(level)
}

func probeCommand() *cli.Command {
	return &cli.Command{
		Name:      "probe",
		Usage:     l10n.T("Show video metadata and the learned conversion path"),
		ArgsUsage: "<video>",
		Flags: append(commonFlags(),
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "gif", Usage: l10n.T("Output format for the recommendation (gif, webp, mp4)"), Category: catOutput},
		),
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit(l10n.T("Video argument is required"), 2)
			}
			format, err := pipeline.ParseOutputFormat(c.String("format"))
			if err != nil {
				return err
			}
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			conv, err := vidloop.New(cfg, newLogger(c, cfg), vidloop.Callbacks{})
			if err != nil {
				return err
			}
			defer conv.Close()

			meta, err := conv.Probe(c.Context, c.Args().First())
			if err != nil {
				return err
			}
			printMetadata(os.Stdout, meta)
			if rec, ok := conv.Recommend(meta.Codec, format); ok {
				fmt.Printf("%s: %s (%s %.2f, %d %s)\n", l10n.T("Recommended path"), rec.Path,
					l10n.T("confidence"), rec.Confidence, rec.Samples, l10n.T("samples"))
			} else {
				fmt.Println(l10n.T("No conversion history for this codec yet"))
			}
			return nil
		},
	}
}

func capsCommand() *cli.Command {
	return &cli.Command{
		Name:  "caps",
		Usage: l10n.T("Show environment capabilities and registered encoders"),
		Flags: commonFlags(),
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			conv, err := vidloop.New(cfg, newLogger(c, cfg), vidloop.Callbacks{})
			if err != nil {
				return err
			}
			defer conv.Close()

			snap, err := conv.Capabilities(c.Context)
			if err != nil {
				return err
			}
			printSnapshot(os.Stdout, snap)
			fmt.Println()
			printEncoders(os.Stdout, conv.Encoders(c.Context))
			return nil
		},
	}
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: l10n.T("Show or clear the strategy history"),
		Flags: append(commonFlags(),
			&cli.BoolFlag{Name: "clear", Usage: l10n.T("Remove every recorded outcome"), Category: catSession},
		),
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if cfg.SessionDir == "" {
				return cli.Exit(l10n.T("History needs --session-dir or session_dir in the config file"), 2)
			}
			conv, err := vidloop.New(cfg, newLogger(c, cfg), vidloop.Callbacks{})
			if err != nil {
				return err
			}
			defer conv.Close()

			if c.Bool("clear") {
				if err := conv.ClearHistory(); err != nil {
					return err
				}
				fmt.Println(l10n.T("History cleared"))
				return nil
			}
			printHistory(os.Stdout, conv.History())
			return nil
		},
	}
}
