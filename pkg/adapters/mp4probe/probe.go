// Package mp4probe reads metadata and the video sample index of ISO-BMFF
// files (mp4, mov, m4v) with mp4ff, without decoding any media.
package mp4probe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Eyevinn/mp4ff/mp4"

	"github.com/user/vidloop/pkg/pipeline"
	"github.com/user/vidloop/pkg/ports"
)

var (
	// ErrNotMP4 is returned for files that are not ISO-BMFF.
	ErrNotMP4 = errors.New("mp4probe: not an mp4 file")
	// ErrNoVideoTrack is returned when the file has no video track.
	ErrNoVideoTrack = errors.New("mp4probe: no video track")
)

// Supported reports whether the path has an ISO-BMFF extension.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4", ".m4v", ".mov":
		return true
	}
	return false
}

// Prober implements ports.MetadataProber for ISO-BMFF files.
type Prober struct {
	logger ports.Logger
}

// New creates a new Prober.
func New(logger ports.Logger) *Prober {
	return &Prober{logger: logger.WithComponent("mp4probe")}
}

// Probe implements ports.MetadataProber.
func (p *Prober) Probe(ctx context.Context, src string) (pipeline.VideoMetadata, error) {
	if !Supported(src) {
		return pipeline.VideoMetadata{}, fmt.Errorf("%w: %s", ErrNotMP4, src)
	}
	info, err := os.Stat(src)
	if err != nil {
		return pipeline.VideoMetadata{}, err
	}
	tr, err := p.open(src)
	if err != nil {
		return pipeline.VideoMetadata{}, err
	}

	meta := pipeline.VideoMetadata{
		Codec:     tr.codec,
		Container: container(src, tr.brand),
		Width:     tr.width,
		Height:    tr.height,
	}
	if tr.timescale > 0 && tr.duration > 0 {
		meta.Duration = float64(tr.duration) / float64(tr.timescale)
	}
	if meta.Duration > 0 {
		meta.FrameRate = float64(len(tr.samples)) / meta.Duration
		meta.Bitrate = int64(float64(info.Size()*8) / meta.Duration)
	}
	p.logger.Debug("Probed %s: %s %dx%d %.2fs %.2f fps", src, meta.Codec, meta.Width, meta.Height, meta.Duration, meta.FrameRate)
	return meta, nil
}

// SampleIndex returns the video samples of the file in presentation order.
func (p *Prober) SampleIndex(ctx context.Context, src string) ([]ports.SampleInfo, error) {
	tr, err := p.open(src)
	if err != nil {
		return nil, err
	}
	return buildIndex(tr.samples, tr.timescale), nil
}

// sample is the timing of one sample in track timescale units.
type sample struct {
	decodeTime uint64
	ctsOffset  int32
	sync       bool
}

type track struct {
	codec     string
	brand     string
	width     int
	height    int
	timescale uint32
	duration  uint64
	samples   []sample
}

func (p *Prober) open(src string) (*track, error) {
	f, err := os.Open(src)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	file, err := mp4.DecodeFile(f, mp4.WithDecodeMode(mp4.DecModeLazyMdat))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotMP4, err)
	}

	moov := file.Moov
	if file.IsFragmented() && file.Init != nil {
		moov = file.Init.Moov
	}
	if moov == nil {
		return nil, fmt.Errorf("%w: no moov box", ErrNotMP4)
	}

	trak := videoTrak(moov)
	if trak == nil {
		return nil, ErrNoVideoTrack
	}

	tr := &track{timescale: trak.Mdia.Mdhd.Timescale, duration: trak.Mdia.Mdhd.Duration}
	if file.Ftyp != nil {
		tr.brand = file.Ftyp.MajorBrand()
	}
	describe(tr, trak)

	if file.IsFragmented() {
		if err := fragmentSamples(tr, file, trak.Tkhd.TrackID); err != nil {
			return nil, err
		}
	} else {
		progressiveSamples(tr, trak.Mdia.Minf.Stbl)
	}

	if tr.duration == 0 && moov.Mvhd != nil && moov.Mvhd.Timescale > 0 && tr.timescale > 0 {
		tr.duration = moov.Mvhd.Duration * uint64(tr.timescale) / uint64(moov.Mvhd.Timescale)
	}
	return tr, nil
}

func videoTrak(moov *mp4.MoovBox) *mp4.TrakBox {
	for _, trak := range moov.Traks {
		if trak.Mdia == nil || trak.Mdia.Hdlr == nil || trak.Mdia.Mdhd == nil {
			continue
		}
		if trak.Mdia.Hdlr.HandlerType != "vide" {
			continue
		}
		if trak.Mdia.Minf == nil || trak.Mdia.Minf.Stbl == nil || trak.Mdia.Minf.Stbl.Stsd == nil {
			continue
		}
		return trak
	}
	return nil
}

// describe fills codec and size from the first visual sample entry.
func describe(tr *track, trak *mp4.TrakBox) {
	for _, child := range trak.Mdia.Minf.Stbl.Stsd.Children {
		tr.codec = child.Type()
		if vse, ok := child.(*mp4.VisualSampleEntryBox); ok {
			tr.width, tr.height = int(vse.Width), int(vse.Height)
		}
		break
	}
	if (tr.width == 0 || tr.height == 0) && trak.Tkhd != nil {
		tr.width = int(uint32(trak.Tkhd.Width) >> 16)
		tr.height = int(uint32(trak.Tkhd.Height) >> 16)
	}
}

func progressiveSamples(tr *track, stbl *mp4.StblBox) {
	if stbl.Stts == nil || stbl.Stsz == nil {
		return
	}
	n := stbl.Stsz.GetNrSamples()
	tr.samples = make([]sample, 0, n)
	for nr := uint32(1); nr <= n; nr++ {
		dt, _ := stbl.Stts.GetDecodeTime(nr)
		s := sample{decodeTime: dt, sync: stbl.Stss == nil || stbl.Stss.IsSyncSample(nr)}
		if stbl.Ctts != nil {
			s.ctsOffset = stbl.Ctts.GetCompositionTimeOffset(nr)
		}
		tr.samples = append(tr.samples, s)
	}
}

func fragmentSamples(tr *track, file *mp4.File, trackID uint32) error {
	var trex *mp4.TrexBox
	if mvex := file.Init.Moov.Mvex; mvex != nil {
		for _, t := range mvex.Trexs {
			if t.TrackID == trackID {
				trex = t
				break
			}
		}
	}

	var end uint64
	for _, seg := range file.Segments {
		for _, frag := range seg.Fragments {
			if frag.Moof == nil {
				continue
			}
			samples, err := frag.GetFullSamples(trex)
			if err != nil {
				return fmt.Errorf("read fragment samples: %w", err)
			}
			for _, fs := range samples {
				tr.samples = append(tr.samples, sample{
					decodeTime: fs.DecodeTime,
					ctsOffset:  fs.CompositionTimeOffset,
					sync:       fs.IsSync(),
				})
				if e := fs.DecodeTime + uint64(fs.Dur); e > end {
					end = e
				}
			}
		}
	}
	if tr.duration == 0 {
		tr.duration = end
	}
	return nil
}

// buildIndex converts sample timing into presentation-ordered entries.
func buildIndex(samples []sample, timescale uint32) []ports.SampleInfo {
	if timescale == 0 {
		return nil
	}
	out := make([]ports.SampleInfo, 0, len(samples))
	for _, s := range samples {
		pts := int64(s.decodeTime) + int64(s.ctsOffset)
		if pts < 0 {
			pts = 0
		}
		out = append(out, ports.SampleInfo{
			PTS:  time.Duration(pts) * time.Second / time.Duration(timescale),
			Sync: s.sync,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PTS < out[j].PTS })
	return out
}

func container(src, brand string) string {
	if brand == "qt  " {
		return "mov"
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(src)), ".")
	if ext == "" {
		return "mp4"
	}
	return ext
}

var _ ports.MetadataProber = (*Prober)(nil)
