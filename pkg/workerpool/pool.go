// Package workerpool runs tasks on a fixed set of long-lived workers with a
// per-task hard deadline. A worker that misses its deadline is terminated and
// replaced so a wedged task never blocks the pool.
package workerpool

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/user/vidloop/pkg/metrics"
	"github.com/user/vidloop/pkg/ports"
)

// ErrTaskTimeout is returned when a task exceeds the pool deadline.
var ErrTaskTimeout = errors.New("workerpool: task timed out")

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("workerpool: closed")

// Worker processes one task at a time.
type Worker[In, Out any] interface {
	Process(ctx context.Context, in In) (Out, error)
	// Terminate releases the worker. It may be called while Process is running.
	Terminate()
}

// Factory creates the worker for slot id.
type Factory[In, Out any] func(id int) Worker[In, Out]

// Pool dispatches tasks to workers through a queue of free slot indexes.
type Pool[In, Out any] struct {
	factory Factory[In, Out]
	timeout time.Duration
	logger  ports.Logger

	mu      sync.Mutex
	workers []Worker[In, Out]
	closed  bool

	free chan int
}

// New creates a pool of size workers. A timeout <= 0 disables the deadline.
func New[In, Out any](size int, timeout time.Duration, factory Factory[In, Out], logger ports.Logger) *Pool[In, Out] {
	if size < 1 {
		size = 1
	}
	p := &Pool[In, Out]{
		factory: factory,
		timeout: timeout,
		logger:  logger.WithComponent("workerpool"),
		workers: make([]Worker[In, Out], size),
		free:    make(chan int, size),
	}
	for i := 0; i < size; i++ {
		p.workers[i] = factory(i)
		p.free <- i
	}
	return p
}

// Size returns the number of worker slots.
func (p *Pool[In, Out]) Size() int {
	return cap(p.free)
}

// Submit runs one task on the next free worker and waits for it.
func (p *Pool[In, Out]) Submit(ctx context.Context, in In) (Out, error) {
	var zero Out

	var idx int
	select {
	case idx = <-p.free:
	case <-ctx.Done():
		return zero, ctx.Err()
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.free <- idx
		return zero, ErrClosed
	}
	w := p.workers[idx]
	p.mu.Unlock()

	taskCtx, cancel := ctx, context.CancelFunc(func() {})
	if p.timeout > 0 {
		taskCtx, cancel = context.WithTimeout(ctx, p.timeout)
	}
	defer cancel()

	type result struct {
		out Out
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := w.Process(taskCtx, in)
		done <- result{out, err}
	}()

	select {
	case r := <-done:
		p.free <- idx
		return r.out, p.taskErr(ctx, taskCtx, r.err)
	case <-taskCtx.Done():
	}

	// The result may have landed together with the deadline.
	select {
	case r := <-done:
		p.free <- idx
		return r.out, p.taskErr(ctx, taskCtx, r.err)
	default:
	}

	p.respawn(idx, w)
	p.free <- idx
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	p.logger.Warn("Worker %d exceeded %s, replaced", idx, p.timeout)
	return zero, ErrTaskTimeout
}

// Map runs every input through the pool, at most Size at a time, and returns
// outputs in input order. The first error cancels the remaining tasks.
func (p *Pool[In, Out]) Map(ctx context.Context, inputs []In) ([]Out, error) {
	outs := make([]Out, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.Size())
	for i, in := range inputs {
		i, in := i, in
		g.Go(func() error {
			out, err := p.Submit(gctx, in)
			if err != nil {
				return err
			}
			outs[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outs, nil
}

// Close terminates every worker.
func (p *Pool[In, Out]) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	for _, w := range p.workers {
		w.Terminate()
	}
}

// taskErr reports a worker that gave up on its own deadline as ErrTaskTimeout.
func (p *Pool[In, Out]) taskErr(ctx, taskCtx context.Context, err error) error {
	if err != nil && ctx.Err() == nil && errors.Is(taskCtx.Err(), context.DeadlineExceeded) {
		return ErrTaskTimeout
	}
	return err
}

func (p *Pool[In, Out]) respawn(idx int, old Worker[In, Out]) {
	old.Terminate()
	metrics.WorkerRespawnsTotal.Inc()

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.workers[idx] = p.factory(idx)
	}
}
