// Package vidloop provides a high-level API for converting videos into
// looping gif, webp and mp4 clips.
package vidloop

import (
	"time"

	"github.com/user/vidloop/pkg/adapters/ffmpegencoder"
	"github.com/user/vidloop/pkg/adapters/gifencoder"
	"github.com/user/vidloop/pkg/config"
	"github.com/user/vidloop/pkg/orchestrator"
	"github.com/user/vidloop/pkg/pipeline"
)

// QualitySettings contains the encoder and memory parameters of a quality tier.
type QualitySettings struct {
	GIFColors         int   // Palette size of the pure Go gif encoder
	Dither            bool  // Floyd-Steinberg dithering
	WebPQuality       int   // libwebp quality (0-100)
	VideoCRF          int   // libx264 CRF (0-51, lower is better)
	DecodeBudgetBytes int64 // Decode budget before duration scaling
}

// GetQualitySettings returns quality settings for the given tier.
func GetQualitySettings(q pipeline.QualityTier) QualitySettings {
	gif := gifencoder.SettingsFor(q)
	budget := orchestrator.DefaultBudget()
	return QualitySettings{
		GIFColors:         gif.Colors,
		Dither:            gif.Dither,
		WebPQuality:       ffmpegencoder.WebPQuality(q),
		VideoCRF:          ffmpegencoder.CRF(q),
		DecodeBudgetBytes: budget.Base[q],
	}
}

// ConfigBuilder provides a fluent interface for building config.Config.
type ConfigBuilder struct {
	config config.Config
}

// NewConfigBuilder creates a new ConfigBuilder with default values.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{config: config.Defaults()}
}

// FromConfig creates a ConfigBuilder starting from cfg, e.g. a loaded file.
func FromConfig(cfg config.Config) *ConfigBuilder {
	return &ConfigBuilder{config: cfg}
}

// WithFormat sets the output format.
func (b *ConfigBuilder) WithFormat(f pipeline.OutputFormat) *ConfigBuilder {
	b.config.Format = string(f)
	return b
}

// WithQuality sets the quality tier.
func (b *ConfigBuilder) WithQuality(q pipeline.QualityTier) *ConfigBuilder {
	b.config.Quality = string(q)
	return b
}

// WithScale sets the output scale factor (0, 1].
func (b *ConfigBuilder) WithScale(scale float64) *ConfigBuilder {
	b.config.Scale = scale
	return b
}

// WithFPS sets the target frame rate.
func (b *ConfigBuilder) WithFPS(fps float64) *ConfigBuilder {
	b.config.FPS = fps
	return b
}

// WithMaxFrames caps the number of captured frames.
func (b *ConfigBuilder) WithMaxFrames(n int) *ConfigBuilder {
	b.config.MaxFrames = n
	return b
}

// WithCaptureMode selects the capture strategy.
func (b *ConfigBuilder) WithCaptureMode(m pipeline.CaptureMode) *ConfigBuilder {
	b.config.CaptureMode = string(m)
	return b
}

// WithPath forces a conversion path.
func (b *ConfigBuilder) WithPath(p pipeline.ConversionPath) *ConfigBuilder {
	b.config.ForcePath = string(p)
	return b
}

// WithoutFallback disables demotion to more conservative paths.
func (b *ConfigBuilder) WithoutFallback() *ConfigBuilder {
	b.config.DisableFallback = true
	return b
}

// WithEncodeTimeout sets the hard encode deadline.
func (b *ConfigBuilder) WithEncodeTimeout(d time.Duration) *ConfigBuilder {
	b.config.EncodeTimeout = d
	return b
}

// WithWorkers sets the palette encoder worker count. 0 sizes by CPU.
func (b *ConfigBuilder) WithWorkers(n int) *ConfigBuilder {
	b.config.Workers = n
	return b
}

// WithFFmpegPath sets the ffmpeg executable.
func (b *ConfigBuilder) WithFFmpegPath(path string) *ConfigBuilder {
	b.config.FFmpeg.Path = path
	return b
}

// WithSourceBackend selects auto, ffmpeg or chrome frame sources.
func (b *ConfigBuilder) WithSourceBackend(backend string) *ConfigBuilder {
	b.config.Source.Backend = backend
	return b
}

// WithChromePath sets the Chrome executable.
func (b *ConfigBuilder) WithChromePath(path string) *ConfigBuilder {
	b.config.Source.ChromePath = path
	return b
}

// WithHeadless sets whether Chrome runs headless.
func (b *ConfigBuilder) WithHeadless(headless bool) *ConfigBuilder {
	b.config.Source.Headless = headless
	return b
}

// WithSessionDir persists strategy history under dir.
func (b *ConfigBuilder) WithSessionDir(dir string) *ConfigBuilder {
	b.config.SessionDir = dir
	return b
}

// WithDebug enables debug output into dir.
func (b *ConfigBuilder) WithDebug(dir string) *ConfigBuilder {
	b.config.Debug = true
	if dir != "" {
		b.config.DebugDir = dir
	}
	return b
}

// Build returns the constructed config.Config.
func (b *ConfigBuilder) Build() config.Config {
	return b.config
}
