// Package registry ranks pluggable encoders per output format and caches
// their availability.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/user/vidloop/pkg/expiring"
	"github.com/user/vidloop/pkg/metrics"
	"github.com/user/vidloop/pkg/pipeline"
	"github.com/user/vidloop/pkg/ports"
)

// DefaultAvailabilityTTL lets a transient availability failure heal without a restart.
const DefaultAvailabilityTTL = 30 * time.Minute

const (
	specialistBonus = 1.2
	workerBonus     = 1.1
)

// ErrNotFound is returned when no registered encoder can serve a format.
// It also matches pipeline.ErrEncoderUnavailable.
var ErrNotFound = errors.New("registry: encoder not found")

// Preferences adjust the pick among ranked candidates.
type Preferences struct {
	// PreferWorkers substitutes the best worker-capable candidate for the top pick.
	PreferWorkers bool
	// Prefer names a candidate to use whenever it is available.
	Prefer string
}

// Candidate is a ranked encoder.
type Candidate struct {
	Encoder   ports.Encoder
	Score     float64
	Available bool
}

// Registry maps output formats to the best available encoder.
type Registry struct {
	mu       sync.RWMutex
	encoders map[string]ports.Encoder
	order    []string

	availability *expiring.Cache[string, bool]
	logger       ports.Logger
}

// New creates an empty registry. A ttl <= 0 uses DefaultAvailabilityTTL.
func New(logger ports.Logger, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultAvailabilityTTL
	}
	return &Registry{
		encoders:     make(map[string]ports.Encoder),
		availability: expiring.New[string, bool](ttl),
		logger:       logger.WithComponent("registry"),
	}
}

// SetClock replaces the availability cache time source. Used by tests.
func (r *Registry) SetClock(now func() time.Time) {
	r.availability.SetClock(now)
}

// Register adds an encoder. Registering the same name again replaces it.
func (r *Registry) Register(enc ports.Encoder) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := enc.Name()
	if _, exists := r.encoders[name]; exists {
		r.logger.Warn("Encoder %s re-registered, replacing previous registration", name)
		r.availability.Invalidate(name)
	} else {
		r.order = append(r.order, name)
	}
	r.encoders[name] = enc
	r.logger.Debug("Registered encoder %s (score %.1f)", name, enc.Capabilities().PerformanceScore)
}

// Encoders returns every registered encoder in registration order.
func (r *Registry) Encoders() []ports.Encoder {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ports.Encoder, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.encoders[name])
	}
	return out
}

// Lookup returns the encoder registered under name.
func (r *Registry) Lookup(name string) (ports.Encoder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	enc, ok := r.encoders[name]
	return enc, ok
}

// Score computes the ranking score of an encoder for ranking.
func Score(caps pipeline.EncoderCapabilities) float64 {
	score := caps.PerformanceScore
	if len(caps.Formats) == 1 {
		score *= specialistBonus
	}
	if caps.WorkerCapable {
		score *= workerBonus
	}
	return score
}

// Rank returns every encoder supporting the format, best first, with availability resolved.
func (r *Registry) Rank(ctx context.Context, format pipeline.OutputFormat) []Candidate {
	var candidates []Candidate
	for _, enc := range r.Encoders() {
		caps := enc.Capabilities()
		if !caps.Supports(format) {
			continue
		}
		candidates = append(candidates, Candidate{
			Encoder:   enc,
			Score:     Score(caps),
			Available: r.isAvailable(ctx, enc),
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	return candidates
}

// GetEncoder returns the best available encoder for the format.
func (r *Registry) GetEncoder(ctx context.Context, format pipeline.OutputFormat, prefs Preferences) (ports.Encoder, error) {
	ranked := r.Rank(ctx, format)
	if len(ranked) == 0 {
		r.logger.Debug("No encoder registered for %s", format)
		return nil, fmt.Errorf("%w: %w: no encoder registered for %s", ErrNotFound, pipeline.ErrEncoderUnavailable, format)
	}

	var available []Candidate
	var attempted []string
	for _, c := range ranked {
		attempted = append(attempted, c.Encoder.Name())
		if c.Available {
			available = append(available, c)
		}
	}
	if len(available) == 0 {
		r.logger.Warn("No available encoder for %s (tried %s)", format, strings.Join(attempted, ", "))
		return nil, fmt.Errorf("%w: %w: all %s encoders unavailable (%s)", ErrNotFound, pipeline.ErrEncoderUnavailable, format, strings.Join(attempted, ", "))
	}

	if prefs.Prefer != "" {
		for _, c := range available {
			if c.Encoder.Name() == prefs.Prefer {
				r.logger.Debug("Using preferred encoder %s for %s", prefs.Prefer, format)
				return c.Encoder, nil
			}
		}
		r.logger.Debug("Preferred encoder %s unavailable for %s", prefs.Prefer, format)
	}

	top := available[0]
	if prefs.PreferWorkers && !top.Encoder.Capabilities().WorkerCapable {
		for _, c := range available[1:] {
			if c.Encoder.Capabilities().WorkerCapable {
				r.logger.Debug("Worker preference selects %s over %s", c.Encoder.Name(), top.Encoder.Name())
				return c.Encoder, nil
			}
		}
	}

	r.logger.Debug("Selected encoder %s for %s (score %.2f)", top.Encoder.Name(), format, top.Score)
	return top.Encoder, nil
}

// HasEncoder reports whether GetEncoder would succeed for the format.
func (r *Registry) HasEncoder(ctx context.Context, format pipeline.OutputFormat) bool {
	_, err := r.GetEncoder(ctx, format, Preferences{})
	return err == nil
}

// Invalidate drops the cached availability of one encoder so the next lookup probes again.
func (r *Registry) Invalidate(name string) {
	r.availability.Invalidate(name)
}

// MarkFailed caches the encoder as unavailable for the rest of the TTL window.
func (r *Registry) MarkFailed(name string) {
	r.logger.Debug("Marking encoder %s unavailable", name)
	r.availability.Set(name, false)
}

func (r *Registry) isAvailable(ctx context.Context, enc ports.Encoder) bool {
	name := enc.Name()
	if ok, cached := r.availability.Get(name); cached {
		return ok
	}
	ok := enc.IsAvailable(ctx)
	r.availability.Set(name, ok)
	metrics.EncoderAvailabilityChecks.WithLabelValues(name, fmt.Sprintf("%t", ok)).Inc()
	return ok
}

// Dispose releases every registered encoder.
func (r *Registry) Dispose() error {
	var errs []error
	for _, enc := range r.Encoders() {
		if err := enc.Dispose(); err != nil {
			errs = append(errs, fmt.Errorf("dispose %s: %w", enc.Name(), err))
		}
	}
	return errors.Join(errs...)
}
