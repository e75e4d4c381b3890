// Package cache provides the process-wide key-value cache used for menu and
// settings snapshots and for the derivative dispatch lock.
//
// Entries are lazily populated on read-miss and explicitly deleted on every
// write to their source data; they are never updated in place.
package cache

import (
	"fmt"
	"sync"
	"time"
)

// Cache is a string-keyed store with TTL. Set and Delete are the only
// mutating operations and must be atomic.
type Cache interface {
	// Get returns the value for key and whether a live entry exists.
	Get(key string) (any, bool)

	// Set stores value under key for ttl.
	Set(key string, value any, ttl time.Duration)

	// Add stores value only when no live entry exists for key, reporting
	// whether it did. This is the set-if-absent primitive behind the
	// dispatch lock.
	Add(key string, value any, ttl time.Duration) bool

	// Delete removes the entry for key, if any.
	Delete(key string)
}

// GetOrLoad returns the cached value for key, invoking loader and caching its
// result for ttl on a miss. Concurrent readers repopulating the same key may
// each invoke loader; the last writer wins the slot, which is acceptable
// because loaders are pure with respect to the same underlying snapshot.
func GetOrLoad[T any](c Cache, key string, ttl time.Duration, loader func() (T, error)) (T, error) {
	if v, ok := c.Get(key); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
		// A foreign value under our key: drop it and reload.
		c.Delete(key)
	}

	var zero T
	v, err := loader()
	if err != nil {
		return zero, fmt.Errorf("cache loader for %q: %w", key, err)
	}
	c.Set(key, v, ttl)
	return v, nil
}

type entry struct {
	value     any
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Memory is an in-process Cache with lazy expiry.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

// NewMemory creates an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// NewMemoryWithClock creates a cache with a custom clock, for tests.
func NewMemoryWithClock(now func() time.Time) *Memory {
	return &Memory{
		entries: make(map[string]entry),
		now:     now,
	}
}

func (m *Memory) Get(key string) (any, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if e.expired(m.now()) {
		m.Delete(key)
		return nil, false
	}
	return e.value, true
}

func (m *Memory) Set(key string, value any, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry{value: value, expiresAt: m.deadline(ttl)}
}

func (m *Memory) Add(key string, value any, ttl time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[key]; ok && !e.expired(m.now()) {
		return false
	}
	m.entries[key] = entry{value: value, expiresAt: m.deadline(ttl)}
	return true
}

func (m *Memory) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
}

func (m *Memory) deadline(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return m.now().Add(ttl)
}
