package pipeline

import (
	"fmt"
	"image"
	"math"
	"strings"
	"time"
)

// =============================================================================
// Request Types
// =============================================================================

// OutputFormat is the target container of a conversion.
type OutputFormat string

const (
	FormatGIF   OutputFormat = "gif"
	FormatWebP  OutputFormat = "webp"
	FormatVideo OutputFormat = "mp4"
)

// AllFormats lists every output format in a stable order.
var AllFormats = []OutputFormat{FormatGIF, FormatWebP, FormatVideo}

// ParseOutputFormat parses a format name. "video" is accepted as an alias of mp4.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gif":
		return FormatGIF, nil
	case "webp":
		return FormatWebP, nil
	case "mp4", "video":
		return FormatVideo, nil
	}
	return "", fmt.Errorf("unknown output format %q", s)
}

// Extension returns the file extension including the leading dot.
func (f OutputFormat) Extension() string {
	return "." + string(f)
}

// QualityTier selects encoder and budget presets.
type QualityTier string

const (
	QualityLow    QualityTier = "low"
	QualityMedium QualityTier = "medium"
	QualityHigh   QualityTier = "high"
)

// ParseQuality parses a quality tier name, defaulting to medium.
func ParseQuality(s string) QualityTier {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return QualityLow
	case "high":
		return QualityHigh
	default:
		return QualityMedium
	}
}

// ConversionPath identifies one of the three decode/encode routes.
type ConversionPath string

const (
	PathHardware ConversionPath = "hardware"
	PathHybrid   ConversionPath = "hybrid"
	PathSoftware ConversionPath = "software"
)

// FallbackOrder is the fixed demotion order of conversion paths.
var FallbackOrder = []ConversionPath{PathHardware, PathHybrid, PathSoftware}

// ParsePath parses a path name. An empty string yields an empty path.
func ParsePath(s string) (ConversionPath, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return "", nil
	case "hardware", "hw":
		return PathHardware, nil
	case "hybrid":
		return PathHybrid, nil
	case "software", "sw":
		return PathSoftware, nil
	}
	return "", fmt.Errorf("unknown conversion path %q", s)
}

// Demotions returns p followed by every more conservative path.
func (p ConversionPath) Demotions() []ConversionPath {
	for i, candidate := range FallbackOrder {
		if candidate == p {
			out := make([]ConversionPath, len(FallbackOrder)-i)
			copy(out, FallbackOrder[i:])
			return out
		}
	}
	return nil
}

// CaptureMode selects the frame capture strategy.
type CaptureMode string

const (
	CaptureAuto           CaptureMode = "auto"
	CaptureDemuxer        CaptureMode = "demuxer"
	CaptureTrackProcessor CaptureMode = "track-processor"
	CaptureFrameCallback  CaptureMode = "frame-callback"
	CaptureSeek           CaptureMode = "seek"
)

// ParseCaptureMode parses a capture mode name, defaulting to auto.
func ParseCaptureMode(s string) (CaptureMode, error) {
	switch m := CaptureMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return CaptureAuto, nil
	case CaptureAuto, CaptureDemuxer, CaptureTrackProcessor, CaptureFrameCallback, CaptureSeek:
		return m, nil
	}
	return "", fmt.Errorf("unknown capture mode %q", s)
}

// ConversionRequest describes one conversion job.
type ConversionRequest struct {
	Source    string
	Format    OutputFormat
	Quality   QualityTier
	Scale     float64 // 0 or 1 keeps the source size
	TargetFPS float64 // 0 = default
	MaxFrames int     // 0 = no cap

	CaptureMode     CaptureMode
	ForcePath       ConversionPath // empty = automatic selection
	DisableFallback bool
}

// EffectiveScale returns the scale factor clamped to (0, 1].
func (r ConversionRequest) EffectiveScale() float64 {
	if r.Scale <= 0 || r.Scale > 1 {
		return 1
	}
	return r.Scale
}

// VideoMetadata describes the source video.
type VideoMetadata struct {
	Codec     string  `json:"codec"`
	Container string  `json:"container"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	Duration  float64 `json:"duration"` // seconds, <= 0 means unknown
	FrameRate float64 `json:"frameRate"`
	Bitrate   int64   `json:"bitrate"`
}

// HasDuration reports whether the duration is known.
func (m VideoMetadata) HasDuration() bool {
	return m.Duration > 0
}

// DurationTime returns the duration as a time.Duration, or 0 if unknown.
func (m VideoMetadata) DurationTime() time.Duration {
	if !m.HasDuration() {
		return 0
	}
	return time.Duration(m.Duration * float64(time.Second))
}

// ScaledSize returns the output dimensions for the given scale, rounded to even numbers.
func (m VideoMetadata) ScaledSize(scale float64) (int, int) {
	w := int(math.Round(float64(m.Width) * scale))
	h := int(math.Round(float64(m.Height) * scale))
	w -= w % 2
	h -= h % 2
	if w < 2 {
		w = 2
	}
	if h < 2 {
		h = 2
	}
	return w, h
}

// =============================================================================
// Encoder Types
// =============================================================================

// EncoderCapabilities is the static description an encoder registers with.
type EncoderCapabilities struct {
	Formats              []OutputFormat
	WorkerCapable        bool
	RequiresSharedMemory bool
	MaxFrames            int // 0 = no ceiling
	MaxDimension         int // 0 = no ceiling
	PerformanceScore     float64
}

// Supports reports whether the encoder can produce the format.
func (c EncoderCapabilities) Supports(f OutputFormat) bool {
	for _, candidate := range c.Formats {
		if candidate == f {
			return true
		}
	}
	return false
}

// Fits reports whether a job of the given size is within the encoder ceilings.
func (c EncoderCapabilities) Fits(frames, width, height int) bool {
	if c.MaxFrames > 0 && frames > c.MaxFrames {
		return false
	}
	if c.MaxDimension > 0 && (width > c.MaxDimension || height > c.MaxDimension) {
		return false
	}
	return true
}

// Frame is one sampled, decoded video frame.
type Frame struct {
	Index     int
	Timestamp time.Duration
	Image     image.Image
}

// =============================================================================
// History Types
// =============================================================================

// FailurePhase classifies where a failed run broke down.
type FailurePhase string

const (
	PhaseNone   FailurePhase = "none"
	PhaseDecode FailurePhase = "decode"
	PhaseEncode FailurePhase = "encode"
	PhaseOther  FailurePhase = "other"
)

// ConversionRecord is the write-once outcome of one conversion run.
type ConversionRecord struct {
	Codec        string         `json:"codec"`
	Format       OutputFormat   `json:"format"`
	Path         ConversionPath `json:"path"`
	CaptureMode  CaptureMode    `json:"captureMode,omitempty"`
	Encoder      string         `json:"encoder,omitempty"`
	DurationMs   int64          `json:"durationMs"`
	Success      bool           `json:"success"`
	FailurePhase FailurePhase   `json:"failurePhase"`
	Timestamp    time.Time      `json:"timestamp"`
}

// Cancelled reports whether the record describes a user cancellation.
func (r ConversionRecord) Cancelled() bool {
	return !r.Success && r.FailurePhase == PhaseNone
}

// ConversionHistory aggregates records of one (codec, format) pair.
type ConversionHistory struct {
	Codec         string
	Format        OutputFormat
	Total         int
	SuccessRate   float64
	AvgSuccessMs  float64
	PreferredPath ConversionPath // empty when no path has succeeded
}

// StrategyRecommendation is a learned path suggestion.
type StrategyRecommendation struct {
	Path          ConversionPath
	Confidence    float64
	Samples       int
	AvgDurationMs float64
}

// =============================================================================
// Result Types
// =============================================================================

// AttemptInfo summarizes one path attempt inside a run.
type AttemptInfo struct {
	Path        ConversionPath `json:"path"`
	Encoder     string         `json:"encoder,omitempty"`
	CaptureMode CaptureMode    `json:"captureMode,omitempty"`
	Frames      int            `json:"frames"`
	DurationMs  int64          `json:"durationMs"`
	Phase       FailurePhase   `json:"phase"`
	Error       string         `json:"error,omitempty"`
}

// ConversionResult is the successful outcome of a run.
type ConversionResult struct {
	RunID       string
	Data        []byte
	Format      OutputFormat
	Path        ConversionPath
	Encoder     string
	CaptureMode CaptureMode
	Frames      int
	Width       int
	Height      int
	Duration    time.Duration
	Attempts    []AttemptInfo
}
