// Package progress maps weighted phases with arbitrary sub-progress onto a
// single monotonic 0-100 percentage.
package progress

import (
	"fmt"
	"math"
	"sync"
)

// Phase is a named share of the overall work.
type Phase struct {
	Name   string
	Weight float64
}

type span struct {
	name       string
	start, end float64
}

// Reporter emits strictly increasing integer percentages.
// A Reporter is safe for concurrent use.
type Reporter struct {
	mu       sync.Mutex
	spans    []span
	current  *span
	last     int
	onChange func(percent int)
	onStatus func(phase, status string)
}

// New creates a reporter. Either callback may be nil.
func New(onChange func(percent int), onStatus func(phase, status string)) *Reporter {
	return &Reporter{
		last:     -1,
		onChange: onChange,
		onStatus: onStatus,
	}
}

// DefinePhases allocates contiguous ranges proportional to weight.
// Redefining phases keeps the last emitted value, so output stays monotonic.
func (r *Reporter) DefinePhases(phases ...Phase) {
	r.mu.Lock()
	defer r.mu.Unlock()

	total := 0.0
	for _, p := range phases {
		if p.Weight > 0 {
			total += p.Weight
		}
	}

	r.spans = r.spans[:0]
	r.current = nil
	if total == 0 {
		return
	}

	pos := 0.0
	for _, p := range phases {
		w := math.Max(p.Weight, 0)
		start := pos
		pos += w / total * 100
		r.spans = append(r.spans, span{name: p.Name, start: start, end: pos})
	}
}

// StartPhase makes name the active phase and reports its start percentage.
// It panics if the phase was never defined.
func (r *Reporter) StartPhase(name, status string) {
	r.mu.Lock()
	var found *span
	for i := range r.spans {
		if r.spans[i].name == name {
			found = &r.spans[i]
			break
		}
	}
	if found == nil {
		r.mu.Unlock()
		panic(fmt.Sprintf("progress: phase %q is not defined", name))
	}
	r.current = found
	emit, value := r.advance(found.start)
	r.mu.Unlock()

	if status != "" && r.onStatus != nil {
		r.onStatus(name, status)
	}
	if emit && r.onChange != nil {
		r.onChange(value)
	}
}

// Report maps fraction (clamped to [0,1]) into the active phase.
// Calling Report without an active phase is a programming error and panics.
func (r *Reporter) Report(fraction float64) {
	r.mu.Lock()
	if r.current == nil {
		r.mu.Unlock()
		panic("progress: Report called with no active phase")
	}
	if math.IsNaN(fraction) {
		fraction = 0
	}
	fraction = math.Min(math.Max(fraction, 0), 1)
	value := r.current.start + (r.current.end-r.current.start)*fraction
	emit, rounded := r.advance(value)
	r.mu.Unlock()

	if emit && r.onChange != nil {
		r.onChange(rounded)
	}
}

// Complete forces 100 and clears the active phase.
func (r *Reporter) Complete() {
	r.mu.Lock()
	r.current = nil
	emit, value := r.advance(100)
	r.mu.Unlock()

	if emit && r.onChange != nil {
		r.onChange(value)
	}
}

// Last returns the last emitted percentage, or -1 before the first emission.
func (r *Reporter) Last() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// advance must be called with mu held.
func (r *Reporter) advance(value float64) (bool, int) {
	rounded := int(math.Round(value))
	if rounded > 100 {
		rounded = 100
	}
	if rounded <= r.last {
		return false, r.last
	}
	r.last = rounded
	return true, rounded
}
