// Package ffprobe reads video metadata of any container ffmpeg can open.
package ffprobe

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/user/vidloop/pkg/adapters/ffmpeg"
	"github.com/user/vidloop/pkg/pipeline"
	"github.com/user/vidloop/pkg/ports"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNoVideoStream is returned when the source has no video stream.
var ErrNoVideoStream = errors.New("ffprobe: no video stream")

type output struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		CodecName    string `json:"codec_name"`
		CodecTag     string `json:"codec_tag_string"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
		RFrameRate   string `json:"r_frame_rate"`
		Duration     string `json:"duration"`
		BitRate      string `json:"bit_rate"`
	} `json:"streams"`
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
		BitRate    string `json:"bit_rate"`
	} `json:"format"`
}

// Prober implements ports.MetadataProber with ffprobe.
type Prober struct {
	runner *ffmpeg.Runner
	logger ports.Logger
}

// New creates a prober running the ffprobe executable at path.
func New(path string, logger ports.Logger) *Prober {
	return &Prober{
		runner: ffmpeg.NewRunner(path, logger),
		logger: logger.WithComponent("ffprobe"),
	}
}

// Probe implements ports.MetadataProber.
func (p *Prober) Probe(ctx context.Context, src string) (pipeline.VideoMetadata, error) {
	out, err := p.runner.Output(ctx,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		"-select_streams", "v:0",
		src,
	)
	if err != nil {
		return pipeline.VideoMetadata{}, fmt.Errorf("ffprobe %s: %w", src, err)
	}
	meta, err := Parse(out, src)
	if err != nil {
		return meta, err
	}
	p.logger.Debug("Probed %s: %s in %s %dx%d %.2fs", src, meta.Codec, meta.Container, meta.Width, meta.Height, meta.Duration)
	return meta, nil
}

// Parse converts ffprobe JSON output into metadata.
func Parse(data []byte, src string) (pipeline.VideoMetadata, error) {
	var out output
	if err := json.Unmarshal(data, &out); err != nil {
		return pipeline.VideoMetadata{}, fmt.Errorf("parse ffprobe output: %w", err)
	}

	for _, s := range out.Streams {
		if s.CodecType != "" && s.CodecType != "video" {
			continue
		}
		meta := pipeline.VideoMetadata{
			Codec:     s.CodecName,
			Container: container(out.Format.FormatName, src),
			Width:     s.Width,
			Height:    s.Height,
			Duration:  parseFloat(s.Duration),
			FrameRate: parseRate(s.AvgFrameRate),
			Bitrate:   int64(parseFloat(out.Format.BitRate)),
		}
		if meta.Duration <= 0 {
			meta.Duration = parseFloat(out.Format.Duration)
		}
		if meta.FrameRate <= 0 {
			meta.FrameRate = parseRate(s.RFrameRate)
		}
		if meta.Bitrate <= 0 {
			meta.Bitrate = int64(parseFloat(s.BitRate))
		}
		return meta, nil
	}
	return pipeline.VideoMetadata{}, ErrNoVideoStream
}

// container picks the demuxer name matching the file extension from a
// list such as "mov,mp4,m4a,3gp,3g2,mj2".
func container(formatName, src string) string {
	names := strings.Split(formatName, ",")
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(src)), ".")
	for _, n := range names {
		if n == ext {
			return n
		}
	}
	if names[0] == "matroska" && ext == "mkv" {
		return "mkv"
	}
	return names[0]
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

// parseRate parses "30000/1001" style rationals.
func parseRate(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		return parseFloat(s)
	}
	d := parseFloat(den)
	if d == 0 {
		return 0
	}
	return parseFloat(num) / d
}

var _ ports.MetadataProber = (*Prober)(nil)
