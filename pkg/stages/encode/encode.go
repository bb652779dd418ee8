// Package encode implements the frame encoding stage.
package encode

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/user/vidloop/pkg/metrics"
	"github.com/user/vidloop/pkg/pipeline"
	"github.com/user/vidloop/pkg/ports"
	"github.com/user/vidloop/pkg/workerpool"
)

// Input is what the encode stage consumes.
type Input struct {
	Frames  []pipeline.Frame
	Encoder ports.Encoder
	Options ports.EncodeOptions
	// Timeout is the hard deadline of the Encode call. 0 disables it.
	Timeout time.Duration
}

// Result is the encoded output.
type Result struct {
	Data    []byte
	Encoder string
	Elapsed time.Duration
}

// Stage runs one encoder under a hard deadline.
type Stage struct {
	logger ports.Logger
}

// NewStage creates a new encode stage.
func NewStage(logger ports.Logger) *Stage {
	return &Stage{
		logger: logger.WithComponent("encode"),
	}
}

// Execute encodes all frames. A deadline miss returns ErrEncodeTimeout even
// when the encoder ignores ctx; the encoder is expected to release its worker
// or process once ctx is done.
func (s *Stage) Execute(ctx context.Context, input Input) (Result, error) {
	result := Result{}
	if input.Encoder == nil {
		return result, fmt.Errorf("%w: no encoder", pipeline.ErrEncoderUnavailable)
	}
	result.Encoder = input.Encoder.Name()

	if len(input.Frames) == 0 {
		return result, fmt.Errorf("%w: no frames to encode", pipeline.ErrNoFrames)
	}

	opts := input.Options
	if opts.Width == 0 || opts.Height == 0 {
		bounds := input.Frames[0].Image.Bounds()
		opts.Width, opts.Height = bounds.Dx(), bounds.Dy()
	}

	encodeCtx, cancel := ctx, context.CancelFunc(func() {})
	if input.Timeout > 0 {
		encodeCtx, cancel = context.WithTimeout(ctx, input.Timeout)
	}
	defer cancel()

	s.logger.Debug("Encoding %d frames at %.1f fps with %s", len(input.Frames), opts.FPS, result.Encoder)
	start := time.Now()

	type encoded struct {
		data []byte
		err  error
	}
	done := make(chan encoded, 1)
	go func() {
		data, err := input.Encoder.Encode(encodeCtx, input.Frames, opts)
		done <- encoded{data, err}
	}()

	var out encoded
	select {
	case out = <-done:
	case <-encodeCtx.Done():
		select {
		case out = <-done:
		default:
			out.err = encodeCtx.Err()
		}
	}
	result.Elapsed = time.Since(start)
	metrics.EncodeDuration.WithLabelValues(result.Encoder).Observe(result.Elapsed.Seconds())

	if out.err != nil {
		return result, s.classify(ctx, encodeCtx, result.Encoder, input.Timeout, out.err)
	}
	if len(out.data) == 0 {
		return result, fmt.Errorf("%w: %s produced no output", pipeline.ErrEncodeFailed, result.Encoder)
	}

	result.Data = out.data
	s.logger.Debug("Encoded %d bytes in %d ms", len(out.data), result.Elapsed.Milliseconds())
	return result, nil
}

func (s *Stage) classify(parent, encodeCtx context.Context, name string, timeout time.Duration, err error) error {
	switch {
	case parent.Err() != nil || pipeline.IsCancellation(err):
		return fmt.Errorf("%w: %w", pipeline.ErrCancelled, err)
	case errors.Is(encodeCtx.Err(), context.DeadlineExceeded):
		metrics.EncodeTimeoutsTotal.WithLabelValues(name).Inc()
		s.logger.Warn("Encoder %s exceeded %s", name, timeout)
		return fmt.Errorf("%w: %s after %s", pipeline.ErrEncodeTimeout, name, timeout)
	case errors.Is(err, workerpool.ErrTaskTimeout) && !errors.Is(err, pipeline.ErrEncodeTimeout):
		// A frame worker missed its own deadline.
		metrics.EncodeTimeoutsTotal.WithLabelValues(name).Inc()
		return fmt.Errorf("%w: %s: %w", pipeline.ErrEncodeTimeout, name, err)
	case errors.Is(err, pipeline.ErrEncodeTimeout), errors.Is(err, pipeline.ErrEncodeFailed), errors.Is(err, pipeline.ErrEncoderUnavailable):
		return err
	default:
		return fmt.Errorf("%w: %s: %w", pipeline.ErrEncodeFailed, name, err)
	}
}

var _ pipeline.Stage[Input, Result] = (*Stage)(nil)
