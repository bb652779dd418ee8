package ports

import (
	"image"
)

// DebugSink abstracts debug output for intermediate results.
// It allows saving intermediate processing results for debugging purposes.
type DebugSink interface {
	// Enabled returns true if debug output is enabled.
	Enabled() bool

	// SaveFrame saves a captured frame.
	SaveFrame(index int, img image.Image) error

	// SaveReportJSON saves the run report as JSON.
	SaveReportJSON(data []byte) error

	// SaveHistoryJSON saves the strategy history snapshot as JSON.
	SaveHistoryJSON(data []byte) error
}
