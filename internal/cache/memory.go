package cache

import (
	"sync"
	"time"
)

// Memory is a process-local TTL cache for point-in-time snapshots
// (workspace directory, dynamic keyword map). Concurrent fetches may
// overwrite each other; the last write wins, which is fine because every
// value is a snapshot of the same origin.
type Memory[T any] struct {
	mu      sync.RWMutex
	value   T
	setAt   time.Time
	ttl     time.Duration
	present bool
	now     func() time.Time
}

// NewMemory creates a TTL cache. ttl <= 0 means entries never expire.
func NewMemory[T any](ttl time.Duration) *Memory[T] {
	return &Memory[T]{ttl: ttl, now: time.Now}
}

// Get returns the cached value and whether it is present and fresh.
func (m *Memory[T]) Get() (T, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.present {
		var zero T
		return zero, false
	}
	if m.ttl > 0 && m.now().Sub(m.setAt) >= m.ttl {
		var zero T
		return zero, false
	}
	return m.value, true
}

// Set stores a new snapshot.
func (m *Memory[T]) Set(v T) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = v
	m.setAt = m.now()
	m.present = true
}

// Invalidate clears the cache.
func (m *Memory[T]) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	var zero T
	m.value = zero
	m.present = false
}

// localDedupe is the in-process fallback used when Redis is not configured.
// Bounded, so webhook storms cannot exhaust memory.
type localDedupe struct {
	mu      sync.Mutex
	seen    map[string]time.Time
	maxKeys int
	now     func() time.Time
}

func newLocalDedupe(maxKeys int) *localDedupe {
	return &localDedupe{seen: make(map[string]time.Time), maxKeys: maxKeys, now: time.Now}
}

// setIfNotExists records key with a deadline and reports whether it was new.
func (d *localDedupe) setIfNotExists(key string, ttl time.Duration) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if deadline, ok := d.seen[key]; ok && now.Before(deadline) {
		return false
	}

	if len(d.seen) >= d.maxKeys {
		for k, deadline := range d.seen {
			if now.After(deadline) {
				delete(d.seen, k)
			}
		}
		// Hard eviction if pruning expired entries was not enough.
		for len(d.seen) >= d.maxKeys {
			for k := range d.seen {
				delete(d.seen, k)
				break
			}
		}
	}

	d.seen[key] = now.Add(ttl)
	return true
}
