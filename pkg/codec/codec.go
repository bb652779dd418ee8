// Package codec normalizes vendor codec strings into a closed set of families.
package codec

import "strings"

// Family is a normalized codec family.
type Family string

const (
	FamilyH264  Family = "h264"
	FamilyHEVC  Family = "hevc"
	FamilyVP8   Family = "vp8"
	FamilyVP9   Family = "vp9"
	FamilyAV1   Family = "av1"
	FamilyOther Family = "other"
)

// Families lists the known families, "other" excluded.
var Families = []Family{FamilyH264, FamilyHEVC, FamilyVP8, FamilyVP9, FamilyAV1}

var prefixes = []struct {
	prefix string
	family Family
}{
	{"avc", FamilyH264},
	{"h264", FamilyH264},
	{"h.264", FamilyH264},
	{"x264", FamilyH264},
	{"hevc", FamilyHEVC},
	{"hvc1", FamilyHEVC},
	{"hev1", FamilyHEVC},
	{"h265", FamilyHEVC},
	{"h.265", FamilyHEVC},
	{"x265", FamilyHEVC},
	{"vp08", FamilyVP8},
	{"vp8", FamilyVP8},
	{"vp09", FamilyVP9},
	{"vp9", FamilyVP9},
	{"av01", FamilyAV1},
	{"av1", FamilyAV1},
	{"libaom", FamilyAV1},
	{"libdav1d", FamilyAV1},
}

// Normalize maps a codec identifier ("avc1.64001f", "hvc1", "vp09.00.10.08", "av1") to its family.
func Normalize(s string) Family {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return FamilyOther
	}
	for _, p := range prefixes {
		if strings.HasPrefix(s, p.prefix) {
			return p.family
		}
	}
	return FamilyOther
}

// IsComplex reports whether the family is one of the high-entropy codecs
// that decode slowly enough to need longer seek timeouts and CPU palette encoding.
func (f Family) IsComplex() bool {
	switch f {
	case FamilyHEVC, FamilyVP9, FamilyAV1:
		return true
	}
	return false
}

func (f Family) String() string {
	return string(f)
}

// DemuxableContainer reports whether the container kind can be demuxed on the hardware path.
func DemuxableContainer(container string) bool {
	switch strings.ToLower(strings.TrimPrefix(container, ".")) {
	case "mp4", "mov", "m4v", "webm", "mkv", "matroska":
		return true
	}
	return false
}
