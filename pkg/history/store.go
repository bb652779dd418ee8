// Package history keeps a session-scoped ledger of conversion outcomes and
// derives path recommendations from it.
package history

import (
	"fmt"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"github.com/user/vidloop/pkg/codec"
	"github.com/user/vidloop/pkg/metrics"
	"github.com/user/vidloop/pkg/pipeline"
	"github.com/user/vidloop/pkg/ports"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// StorageKey is the session storage key. The version suffix changes with SchemaVersion.
	StorageKey = "vidloop.strategy-history.v2"

	// SchemaVersion is written alongside the records; a mismatch on load discards the store.
	SchemaVersion = 2

	// DefaultCapacity is the ring buffer size.
	DefaultCapacity = 50

	// ConfidenceSamples is the attempt count at which sample sufficiency saturates.
	ConfidenceSamples = 5
)

type persisted struct {
	Version int                         `json:"version"`
	Records []pipeline.ConversionRecord `json:"records"`
}

// Store is an append-only ring buffer of conversion records.
type Store struct {
	mu       sync.RWMutex
	records  []pipeline.ConversionRecord
	capacity int
	storage  ports.SessionStorage
	logger   ports.Logger
}

// New creates a store backed by storage and loads any persisted records.
// A nil storage keeps records in memory only.
func New(storage ports.SessionStorage, logger ports.Logger) *Store {
	s := &Store{
		capacity: DefaultCapacity,
		storage:  storage,
		logger:   logger.WithComponent("history"),
	}
	s.load()
	return s
}

func (s *Store) load() {
	if s.storage == nil {
		return
	}
	raw, ok, err := s.storage.Get(StorageKey)
	if err != nil {
		s.logger.Warn("Failed to load strategy history: %s", err)
		return
	}
	if !ok {
		return
	}

	var p persisted
	if err := json.Unmarshal([]byte(raw), &p); err != nil || p.Version != SchemaVersion {
		s.logger.Warn("Discarding strategy history with unexpected schema")
		if err := s.storage.Delete(StorageKey); err != nil {
			s.logger.Warn("Failed to delete strategy history: %s", err)
		}
		return
	}

	if len(p.Records) > s.capacity {
		p.Records = p.Records[len(p.Records)-s.capacity:]
	}
	s.records = p.Records
	metrics.HistoryRecords.Set(float64(len(s.records)))
	s.logger.Debug("Loaded %d history records", len(s.records))
}

// Record appends an entry, evicting the oldest beyond capacity, and persists the store.
func (s *Store) Record(rec pipeline.ConversionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, rec)
	if over := len(s.records) - s.capacity; over > 0 {
		s.records = append(s.records[:0:0], s.records[over:]...)
	}
	metrics.HistoryRecords.Set(float64(len(s.records)))
	s.logger.Debug("Recorded %s/%s on %s path (success=%t)", rec.Codec, rec.Format, rec.Path, rec.Success)

	return s.persist()
}

// persist must be called with mu held.
func (s *Store) persist() error {
	if s.storage == nil {
		return nil
	}
	data, err := json.Marshal(persisted{Version: SchemaVersion, Records: s.records})
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	if err := s.storage.Set(StorageKey, string(data)); err != nil {
		return fmt.Errorf("persist history: %w", err)
	}
	return nil
}

// Records returns a copy of every record, oldest first.
func (s *Store) Records() []pipeline.ConversionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]pipeline.ConversionRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Clear drops every record and the persisted copy.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	metrics.HistoryRecords.Set(0)
	if s.storage == nil {
		return nil
	}
	return s.storage.Delete(StorageKey)
}

// MarshalJSON exports the current records for debug output.
func (s *Store) MarshalJSON() ([]byte, error) {
	return json.Marshal(persisted{Version: SchemaVersion, Records: s.Records()})
}

// matching returns the learnable records for the (codec family, format) pair.
// Cancellations are excluded: they say nothing about the path.
func (s *Store) matching(codecName string, format pipeline.OutputFormat) []pipeline.ConversionRecord {
	family := codec.Normalize(codecName)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []pipeline.ConversionRecord
	for _, r := range s.records {
		if r.Format != format || codec.Normalize(r.Codec) != family || r.Cancelled() {
			continue
		}
		out = append(out, r)
	}
	return out
}
