package pipeline

import (
	"context"
	"errors"
	"fmt"
)

// Error taxonomy shared by capture adapters, encoders and the orchestrator.
var (
	ErrCancelled           = errors.New("conversion cancelled")
	ErrCaptureIncomplete   = errors.New("capture incomplete")
	ErrCaptureStalled      = errors.New("capture stalled")
	ErrNoFrames            = errors.New("no frames captured")
	ErrEncoderUnavailable  = errors.New("encoder unavailable")
	ErrEncodeTimeout       = errors.New("encode timed out")
	ErrEncodeFailed        = errors.New("encode failed")
	ErrDecodeBackendFailed = errors.New("decode backend failed")

	// ErrSoftwareBackend wraps every non-cancellation failure of the
	// Software path. It classifies as PhaseOther whatever it wraps.
	ErrSoftwareBackend = errors.New("software backend failed")
)

// IsCancellation reports whether err represents a cancelled run.
func IsCancellation(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}

// Classify maps an error onto the phase recorded in history.
// Cancellations map to PhaseNone so they never count as learned failures.
func Classify(err error) FailurePhase {
	switch {
	case err == nil, IsCancellation(err):
		return PhaseNone
	case errors.Is(err, ErrSoftwareBackend):
		return PhaseOther
	case errors.Is(err, ErrEncodeTimeout), errors.Is(err, ErrEncodeFailed), errors.Is(err, ErrEncoderUnavailable):
		return PhaseEncode
	case errors.Is(err, ErrCaptureIncomplete), errors.Is(err, ErrCaptureStalled), errors.Is(err, ErrNoFrames),
		errors.Is(err, ErrDecodeBackendFailed):
		return PhaseDecode
	default:
		return PhaseOther
	}
}

// ConversionError is the single typed error returned for a failed run.
type ConversionError struct {
	Path     ConversionPath
	Phase    FailurePhase
	Attempts []AttemptInfo
	Err      error
}

func (e *ConversionError) Error() string {
	if e.Phase == PhaseNone {
		return fmt.Sprintf("%s path: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("%s path failed during %s: %v", e.Path, e.Phase, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}
