package capture

import (
	"fmt"

	"github.com/user/vidloop/pkg/pipeline"
)

const (
	// MinCompleteFrames is the absolute floor of an acceptable capture.
	MinCompleteFrames = 10
	// MinCompleteRatio is the fractional floor of an acceptable capture.
	MinCompleteRatio = 0.5
)

// CheckCompleteness rejects captures that fall below both floors.
// A capture is incomplete only when it misses both of them.
func CheckCompleteness(captured, expected int) error {
	if captured == 0 {
		return pipeline.ErrNoFrames
	}
	if expected <= 0 {
		return nil
	}
	if captured < MinCompleteFrames && float64(captured) < MinCompleteRatio*float64(expected) {
		return fmt.Errorf("%w: %d of %d frames", pipeline.ErrCaptureIncomplete, captured, expected)
	}
	return nil
}
