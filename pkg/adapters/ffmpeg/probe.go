package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/user/vidloop/pkg/codec"
	"github.com/user/vidloop/pkg/pipeline"
)

// Build describes what the local ffmpeg build supports.
type Build struct {
	HWAccels []string
	Encoders map[string]bool
	Decoders map[string]bool
}

// hardwareDecoders are decoder names that imply hardware decode of a family
// regardless of the generic hwaccel list.
var hardwareDecoders = map[codec.Family][]string{
	codec.FamilyH264: {"h264_cuvid", "h264_qsv", "h264_v4l2m2m", "h264_mediacodec"},
	codec.FamilyHEVC: {"hevc_cuvid", "hevc_qsv", "hevc_v4l2m2m", "hevc_mediacodec"},
	codec.FamilyVP8:  {"vp8_cuvid", "vp8_qsv", "vp8_v4l2m2m"},
	codec.FamilyVP9:  {"vp9_cuvid", "vp9_qsv", "vp9_v4l2m2m"},
	codec.FamilyAV1:  {"av1_cuvid", "av1_qsv", "av1_mediacodec"},
}

// softwareDecoders are the generic decoders hwaccel methods attach to.
var softwareDecoders = map[codec.Family][]string{
	codec.FamilyH264: {"h264"},
	codec.FamilyHEVC: {"hevc"},
	codec.FamilyVP8:  {"vp8"},
	codec.FamilyVP9:  {"vp9"},
	codec.FamilyAV1:  {"av1"},
}

// formatEncoders lists encoders able to produce each output format.
var formatEncoders = map[pipeline.OutputFormat][]string{
	pipeline.FormatGIF:   {"gif"},
	pipeline.FormatWebP:  {"libwebp_anim", "libwebp"},
	pipeline.FormatVideo: {"libx264", "h264_nvenc", "h264_qsv", "h264_vaapi", "h264_videotoolbox", "h264_mf", "libopenh264"},
}

// BuildFunc returns the probed ffmpeg build.
type BuildFunc func(ctx context.Context) (Build, error)

// CachedBuild probes the runner once and reuses the result, including a failure.
func CachedBuild(runner *Runner) BuildFunc {
	var (
		once  sync.Once
		build Build
		err   error
	)
	return func(ctx context.Context) (Build, error) {
		once.Do(func() {
			build, err = runner.ProbeBuild(ctx)
		})
		return build, err
	}
}

// ProbeBuild queries the hwaccels, encoders and decoders of the ffmpeg build.
func (r *Runner) ProbeBuild(ctx context.Context) (Build, error) {
	b := Build{}
	out, err := r.Output(ctx, "-hide_banner", "-hwaccels")
	if err != nil {
		return b, fmt.Errorf("list hwaccels: %w", err)
	}
	b.HWAccels = ParseHWAccels(out)

	if out, err = r.Output(ctx, "-hide_banner", "-encoders"); err != nil {
		return b, fmt.Errorf("list encoders: %w", err)
	}
	b.Encoders = ParseCodecList(out)

	if out, err = r.Output(ctx, "-hide_banner", "-decoders"); err != nil {
		return b, fmt.Errorf("list decoders: %w", err)
	}
	b.Decoders = ParseCodecList(out)
	return b, nil
}

// ParseHWAccels parses `ffmpeg -hwaccels` output.
func ParseHWAccels(out []byte) []string {
	var methods []string
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasSuffix(line, ":") {
			continue
		}
		methods = append(methods, line)
	}
	return methods
}

// ParseCodecList parses `ffmpeg -encoders` or `-decoders` output into a set
// of video codec names.
func ParseCodecList(out []byte) map[string]bool {
	names := make(map[string]bool)
	listing := false
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "---") {
			listing = true
			continue
		}
		if !listing {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 || !strings.HasPrefix(fields[0], "V") {
			continue
		}
		names[fields[1]] = true
	}
	return names
}

// HardwareDecode returns the families the build can decode with hardware help.
func (b Build) HardwareDecode() map[string]bool {
	out := make(map[string]bool)
	generic := len(b.HWAccels) > 0
	for _, family := range codec.Families {
		for _, name := range hardwareDecoders[family] {
			if b.Decoders[name] {
				out[string(family)] = true
			}
		}
		if generic {
			for _, name := range softwareDecoders[family] {
				if b.Decoders[name] {
					out[string(family)] = true
				}
			}
		}
	}
	return out
}

// FormatEncode returns the output formats the build can encode.
func (b Build) FormatEncode() map[pipeline.OutputFormat]bool {
	out := make(map[pipeline.OutputFormat]bool)
	for format, names := range formatEncoders {
		for _, name := range names {
			if b.Encoders[name] {
				out[format] = true
				break
			}
		}
	}
	return out
}

// FirstEncoder returns the first encoder of the build able to produce format.
func (b Build) FirstEncoder(format pipeline.OutputFormat) (string, bool) {
	for _, name := range formatEncoders[format] {
		if b.Encoders[name] {
			return name, true
		}
	}
	return "", false
}
