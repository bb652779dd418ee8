package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/user/vidloop/pkg/pipeline"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	req, err := cfg.Request("in.mp4")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if req.Format != pipeline.FormatGIF || req.Quality != pipeline.QualityMedium || req.CaptureMode != pipeline.CaptureAuto {
		t.Errorf("unexpected default request %+v", req)
	}
	if req.ForcePath != "" || req.DisableFallback {
		t.Errorf("defaults must select the path automatically: %+v", req)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vidloop.yaml")
	yamlData := `
format: webp
quality: high
fps: 12
path: hybrid
disable_fallback: true
encode_timeout: 45s
source:
  backend: chrome
  chrome_path: /opt/chrome
seek:
  timeout: 800ms
`
	if err := os.WriteFile(path, []byte(yamlData), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if cfg.EncodeTimeout != 45*time.Second {
		t.Errorf("expected 45s encode timeout, got %s", cfg.EncodeTimeout)
	}
	if cfg.Source.ChromePath != "/opt/chrome" || !cfg.Source.Headless {
		t.Errorf("expected chrome path and default headless, got %+v", cfg.Source)
	}

	req, _ := cfg.Request("in.webm")
	if req.Format != pipeline.FormatWebP || req.ForcePath != pipeline.PathHybrid || !req.DisableFallback {
		t.Errorf("unexpected request %+v", req)
	}

	opts := cfg.ToOptions()
	if opts.DefaultFPS != 12 || opts.EncodeTimeout != 45*time.Second {
		t.Errorf("unexpected options fps=%f timeout=%s", opts.DefaultFPS, opts.EncodeTimeout)
	}
	if seek := cfg.ToSeekConfig(); seek.SeekTimeout != 800*time.Millisecond || seek.ComplexSeekTimeout != 2*time.Second {
		t.Errorf("unexpected seek config %+v", seek)
	}
}

func TestLoadFromFile_Errors(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("format: avi\n"), 0o644)
	if _, err := LoadFromFile(path); err == nil {
		t.Error("expected validation error for unknown format")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"capture mode", func(c *Config) { c.CaptureMode = "screencast" }},
		{"path", func(c *Config) { c.ForcePath = "gpu" }},
		{"backend", func(c *Config) { c.Source.Backend = "vlc" }},
		{"scale", func(c *Config) { c.Scale = 1.5 }},
		{"fps", func(c *Config) { c.FPS = -1 }},
		{"confidence", func(c *Config) { c.SteeringConfidence = 2 }},
		{"log level", func(c *Config) { c.LogLevel = "verbose" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.modify(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
