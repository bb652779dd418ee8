// Package config provides configuration loading and management.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/user/vidloop/pkg/capture"
	"github.com/user/vidloop/pkg/orchestrator"
	"github.com/user/vidloop/pkg/pipeline"
	"github.com/user/vidloop/pkg/ports"
)

// Source backends.
const (
	SourceAuto   = "auto"
	SourceFFmpeg = "ffmpeg"
	SourceChrome = "chrome"
)

// Config represents the full configuration for vidloop.
type Config struct {
	// Conversion
	Format          string  `yaml:"format"`
	Quality         string  `yaml:"quality"`
	Scale           float64 `yaml:"scale"`
	FPS             float64 `yaml:"fps"`
	MaxFrames       int     `yaml:"max_frames"`
	CaptureMode     string  `yaml:"capture_mode"`
	ForcePath       string  `yaml:"path"`
	DisableFallback bool    `yaml:"disable_fallback"`

	EncodeTimeout time.Duration `yaml:"encode_timeout"`
	Workers       int           `yaml:"workers"`

	// Steering
	SteeringConfidence float64 `yaml:"steering_confidence"`

	// Caching
	CapabilityTTL   time.Duration `yaml:"capability_ttl"`
	AvailabilityTTL time.Duration `yaml:"availability_ttl"`

	FFmpeg FFmpegConfig `yaml:"ffmpeg"`
	Source SourceConfig `yaml:"source"`
	Seek   SeekConfig   `yaml:"seek"`

	// Session history; empty keeps history in memory for one process.
	SessionDir string `yaml:"session_dir"`

	// Debug
	Debug    bool   `yaml:"debug"`
	DebugDir string `yaml:"debug_dir"`

	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
}

// FFmpegConfig locates the ffmpeg binaries. Empty paths are discovered.
type FFmpegConfig struct {
	Path      string `yaml:"path"`
	ProbePath string `yaml:"probe_path"`
}

// SourceConfig selects and tunes the frame source backend.
type SourceConfig struct {
	Backend        string        `yaml:"backend"`
	ChromePath     string        `yaml:"chrome_path"`
	Headless       bool          `yaml:"headless"`
	AutoplayPolicy string        `yaml:"autoplay_policy"`
	LoadTimeout    time.Duration `yaml:"load_timeout"`
}

// SeekConfig tunes seek capture.
type SeekConfig struct {
	Timeout        time.Duration `yaml:"timeout"`
	ComplexTimeout time.Duration `yaml:"complex_timeout"`
	SlowThreshold  time.Duration `yaml:"slow_threshold"`
	MinFPS         float64       `yaml:"min_fps"`
}

// Defaults returns a Config with default values.
func Defaults() Config {
	seek := capture.DefaultSeekConfig()
	return Config{
		Format:             string(pipeline.FormatGIF),
		Quality:            string(pipeline.QualityMedium),
		Scale:              1,
		CaptureMode:        string(pipeline.CaptureAuto),
		EncodeTimeout:      orchestrator.DefaultOptions().EncodeTimeout,
		SteeringConfidence: orchestrator.DefaultSteering().Confidence,
		CapabilityTTL:      30 * time.Minute,
		AvailabilityTTL:    30 * time.Minute,
		Source: SourceConfig{
			Backend:        SourceAuto,
			Headless:       true,
			AutoplayPolicy: "no-user-gesture-required",
			LoadTimeout:    15 * time.Second,
		},
		Seek: SeekConfig{
			Timeout:        seek.SeekTimeout,
			ComplexTimeout: seek.ComplexSeekTimeout,
			SlowThreshold:  seek.SlowSeekThreshold,
			MinFPS:         seek.MinFPS,
		},
		DebugDir: "./debug",
		LogLevel: "info",
	}
}

// LoadFromFile loads configuration from a YAML file over Defaults.
func LoadFromFile(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, cfg.Validate()
}

// Validate checks enumerated fields and ranges.
func (c Config) Validate() error {
	if _, err := pipeline.ParseOutputFormat(c.Format); err != nil {
		return err
	}
	if _, err := pipeline.ParseCaptureMode(c.CaptureMode); err != nil {
		return err
	}
	if _, err := pipeline.ParsePath(c.ForcePath); err != nil {
		return err
	}
	switch c.Source.Backend {
	case "", SourceAuto, SourceFFmpeg, SourceChrome:
	default:
		return fmt.Errorf("unknown source backend %q", c.Source.Backend)
	}
	if c.Scale < 0 || c.Scale > 1 {
		return fmt.Errorf("scale %.2f out of range (0, 1]", c.Scale)
	}
	if c.FPS < 0 || c.MaxFrames < 0 {
		return fmt.Errorf("fps and max_frames must not be negative")
	}
	if _, err := ports.ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	if c.SteeringConfidence < 0 || c.SteeringConfidence > 1 {
		return fmt.Errorf("steering_confidence %.2f out of range [0, 1]", c.SteeringConfidence)
	}
	return nil
}

// Request builds the conversion request for src.
func (c Config) Request(src string) (pipeline.ConversionRequest, error) {
	if err := c.Validate(); err != nil {
		return pipeline.ConversionRequest{}, err
	}
	format, _ := pipeline.ParseOutputFormat(c.Format)
	mode, _ := pipeline.ParseCaptureMode(c.CaptureMode)
	path, _ := pipeline.ParsePath(c.ForcePath)
	return pipeline.ConversionRequest{
		Source:          src,
		Format:          format,
		Quality:         pipeline.ParseQuality(c.Quality),
		Scale:           c.Scale,
		TargetFPS:       c.FPS,
		MaxFrames:       c.MaxFrames,
		CaptureMode:     mode,
		ForcePath:       path,
		DisableFallback: c.DisableFallback,
	}, nil
}

// ToOptions converts Config to orchestrator options. Callbacks are left unset.
func (c Config) ToOptions() orchestrator.Options {
	opts := orchestrator.DefaultOptions()
	if c.FPS > 0 {
		opts.DefaultFPS = c.FPS
	}
	if c.EncodeTimeout > 0 {
		opts.EncodeTimeout = c.EncodeTimeout
	}
	if c.SteeringConfidence > 0 {
		opts.Steering.Confidence = c.SteeringConfidence
	}
	return opts
}

// ToSeekConfig converts the seek section to capture tuning.
func (c Config) ToSeekConfig() capture.SeekConfig {
	cfg := capture.DefaultSeekConfig()
	if c.Seek.Timeout > 0 {
		cfg.SeekTimeout = c.Seek.Timeout
	}
	if c.Seek.ComplexTimeout > 0 {
		cfg.ComplexSeekTimeout = c.Seek.ComplexTimeout
	}
	if c.Seek.SlowThreshold > 0 {
		cfg.SlowSeekThreshold = c.Seek.SlowThreshold
	}
	if c.Seek.MinFPS > 0 {
		cfg.MinFPS = c.Seek.MinFPS
	}
	return cfg
}
