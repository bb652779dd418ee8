package orchestrator

import (
	"context"
	"sync"
)

// sequence is the run generation counter. Every Convert and Cancel bumps the
// generation; a run whose generation is no longer current is stale and must
// not emit progress, write debug output or publish results.
type sequence struct {
	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
}

// begin starts a new generation, cancelling the previous run.
func (s *sequence) begin(cancel context.CancelFunc) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	s.cancel = cancel
	return s.gen
}

// bump invalidates the current run.
func (s *sequence) bump() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
}

func (s *sequence) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen == gen
}

// end releases the cancel func of gen if it is still current.
func (s *sequence) end(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == gen {
		s.cancel = nil
	}
}
