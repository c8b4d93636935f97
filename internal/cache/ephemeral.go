package cache

import (
	"strings"
	"sync"
	"time"
)

// DefaultEphemeralTTL applies when Set is called with a non-positive ttl.
const DefaultEphemeralTTL = 5 * time.Minute

type ephemeralEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// Ephemeral is a process-local TTL cache. Expiry is lazy: an expired entry is
// deleted when it is next read. There is no background sweep.
type Ephemeral[V any] struct {
	mu         sync.Mutex
	entries    map[string]ephemeralEntry[V]
	defaultTTL time.Duration
	now        func() time.Time
}

// EphemeralOption configures an Ephemeral cache.
type EphemeralOption[V any] func(*Ephemeral[V])

// WithClock replaces the wall clock, for tests.
func WithClock[V any](now func() time.Time) EphemeralOption[V] {
	return func(e *Ephemeral[V]) {
		e.now = now
	}
}

// NewEphemeral creates a cache whose entries live defaultTTL unless Set is
// given another ttl.
func NewEphemeral[V any](defaultTTL time.Duration, opts ...EphemeralOption[V]) *Ephemeral[V] {
	if defaultTTL <= 0 {
		defaultTTL = DefaultEphemeralTTL
	}
	e := &Ephemeral[V]{
		entries:    make(map[string]ephemeralEntry[V]),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Get returns the value stored at key if it has not expired.
func (e *Ephemeral[V]) Get(key string) (V, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var zero V
	entry, ok := e.entries[key]
	if !ok {
		return zero, false
	}
	if !e.now().Before(entry.expiresAt) {
		delete(e.entries, key)
		return zero, false
	}
	return entry.value, true
}

// Set stores value at key for ttl, or the default TTL when ttl <= 0.
func (e *Ephemeral[V]) Set(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = e.defaultTTL
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.entries[key] = ephemeralEntry[V]{value: value, expiresAt: e.now().Add(ttl)}
}

// Delete removes keys. Missing keys are ignored.
func (e *Ephemeral[V]) Delete(keys ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, key := range keys {
		delete(e.entries, key)
	}
}

// DeletePrefix removes every key starting with prefix and returns how many
// were removed.
func (e *Ephemeral[V]) DeletePrefix(prefix string) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := 0
	for key := range e.entries {
		if strings.HasPrefix(key, prefix) {
			delete(e.entries, key)
			n++
		}
	}
	return n
}

// Len returns the number of stored entries, including expired ones that have
// not been read since they expired.
func (e *Ephemeral[V]) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.entries)
}
