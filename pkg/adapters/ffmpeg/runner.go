package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/user/vidloop/pkg/pipeline"
	"github.com/user/vidloop/pkg/ports"
)

// stderrTail bounds the stderr kept for error messages.
const stderrTail = 4 << 10

// ErrFailed is returned when the process exits with a non-zero status.
var ErrFailed = errors.New("ffmpeg: process failed")

// interruptSignatures are the stderr lines ffmpeg prints when it stops on a signal.
var interruptSignatures = []string{
	"Exiting normally, received signal",
	"received signal 2",
	"received signal 15",
	"Immediate exit requested",
}

// IsInterrupted reports whether ffmpeg output says the process was stopped by a signal.
func IsInterrupted(stderr string) bool {
	for _, sig := range interruptSignatures {
		if strings.Contains(stderr, sig) {
			return true
		}
	}
	return false
}

// Runner executes one binary with context-bound lifetime.
type Runner struct {
	path   string
	logger ports.Logger
	// WaitDelay bounds how long Wait lingers for I/O after the process is killed.
	WaitDelay time.Duration
}

// NewRunner creates a runner for the executable at path.
func NewRunner(path string, logger ports.Logger) *Runner {
	return &Runner{
		path:      path,
		logger:    logger.WithComponent("ffmpeg"),
		WaitDelay: 2 * time.Second,
	}
}

// Path returns the executable path.
func (r *Runner) Path() string {
	return r.path
}

// Run executes the binary. stdin and stdout may be nil. The process is
// killed when ctx is done; cancellation and signal interrupts return an
// error wrapping pipeline.ErrCancelled.
func (r *Runner) Run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	cmd := r.command(ctx, args)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	var stderr tailBuffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	return r.result(ctx, err, stderr.String())
}

// Output runs the binary and returns its stdout.
func (r *Runner) Output(ctx context.Context, args ...string) ([]byte, error) {
	var out bytes.Buffer
	if err := r.Run(ctx, args, nil, &out); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// Start launches the binary with a stdout pipe. The returned wait func must
// be called after the pipe is drained or abandoned.
func (r *Runner) Start(ctx context.Context, args []string) (io.ReadCloser, func() error, error) {
	cmd := r.command(ctx, args)
	var stderr tailBuffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("start %s: %w", r.path, err)
	}
	wait := func() error {
		return r.result(ctx, cmd.Wait(), stderr.String())
	}
	return stdout, wait, nil
}

func (r *Runner) command(ctx context.Context, args []string) *exec.Cmd {
	r.logger.Debug("Running %s %s", r.path, strings.Join(args, " "))
	cmd := exec.CommandContext(ctx, r.path, args...)
	cmd.WaitDelay = r.WaitDelay
	return cmd
}

func (r *Runner) result(ctx context.Context, err error, stderr string) error {
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return fmt.Errorf("%w: %w", pipeline.ErrCancelled, ctx.Err())
	case IsInterrupted(stderr):
		return fmt.Errorf("%w: ffmpeg interrupted by signal", pipeline.ErrCancelled)
	default:
		return fmt.Errorf("%w: %w\nstderr: %s", ErrFailed, err, strings.TrimSpace(stderr))
	}
}

// tailBuffer keeps the last stderrTail bytes written to it.
type tailBuffer struct {
	buf []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - stderrTail; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	return string(b.buf)
}
