// Package expiring provides a small TTL cache shared by the encoder registry
// and the capability provider.
package expiring

import (
	"sync"
	"time"
)

// Entry is a cached value with the time it was inserted.
type Entry[V any] struct {
	Value      V
	InsertedAt time.Time
}

// IsValid reports whether the entry is still fresh at now.
func (e Entry[V]) IsValid(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.InsertedAt) < ttl
}

// Cache is a concurrency-safe map whose entries expire after a TTL.
type Cache[K comparable, V any] struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[K]Entry[V]
}

// New creates a cache with the given TTL.
func New[K comparable, V any](ttl time.Duration) *Cache[K, V] {
	return &Cache[K, V]{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[K]Entry[V]),
	}
}

// SetClock replaces the time source. Used by tests.
func (c *Cache[K, V]) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// TTL returns the configured time-to-live.
func (c *Cache[K, V]) TTL() time.Duration {
	return c.ttl
}

// Get returns the value if present and not expired.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || !e.IsValid(c.now(), c.ttl) {
		var zero V
		return zero, false
	}
	return e.Value, true
}

// Set stores a value stamped with the current time.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = Entry[V]{Value: value, InsertedAt: c.now()}
}

// Invalidate drops a single entry.
func (c *Cache[K, V]) Invalidate(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear drops every entry.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[K]Entry[V])
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Value is a single expiring value.
type Value[V any] struct {
	cache *Cache[struct{}, V]
}

// NewValue creates an expiring single value.
func NewValue[V any](ttl time.Duration) *Value[V] {
	return &Value[V]{cache: New[struct{}, V](ttl)}
}

// SetClock replaces the time source. Used by tests.
func (v *Value[V]) SetClock(now func() time.Time) { v.cache.SetClock(now) }

// Get returns the value if fresh.
func (v *Value[V]) Get() (V, bool) { return v.cache.Get(struct{}{}) }

// Set stores the value.
func (v *Value[V]) Set(value V) { v.cache.Set(struct{}{}, value) }

// Invalidate drops the value.
func (v *Value[V]) Invalidate() { v.cache.Invalidate(struct{}{}) }
