// Package cache provides a small in-memory TTL cache for computed results.
// Entries expire lazily: an expired entry is removed on the next lookup
// rather than by a background sweep.
package cache

import (
	"sync"
	"time"
)

// Clock returns the current time. Injected so tests control expiry.
type Clock func() time.Time

type entry[T any] struct {
	value    T
	storedAt time.Time
}

// Cache is a concurrency-safe TTL cache keyed by string.
type Cache[T any] struct {
	mu      sync.RWMutex
	entries map[string]entry[T]
	ttl     time.Duration
	clock   Clock
}

// Option configures a Cache.
type Option[T any] func(*Cache[T])

// WithClock overrides the time source.
func WithClock[T any](clock Clock) Option[T] {
	return func(c *Cache[T]) {
		c.clock = clock
	}
}

// New creates a cache whose entries live for ttl. A non-positive ttl
// disables caching: Get always misses.
func New[T any](ttl time.Duration, opts ...Option[T]) *Cache[T] {
	c := &Cache[T]{
		entries: make(map[string]entry[T]),
		ttl:     ttl,
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached value for key and whether it is still fresh. An
// expired entry is removed before reporting a miss.
func (c *Cache[T]) Get(key string) (T, bool) {
	var zero T
	if c.ttl <= 0 {
		return zero, false
	}

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return zero, false
	}
	if c.clock().Sub(e.storedAt) >= c.ttl {
		c.mu.Lock()
		// Re-check under the write lock: a concurrent Put may have
		// refreshed the entry since the read.
		if cur, ok := c.entries[key]; ok && cur.storedAt.Equal(e.storedAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return zero, false
	}
	return e.value, true
}

// Put stores value under key, resetting its expiry.
func (c *Cache[T]) Put(key string, value T) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[key] = entry[T]{value: value, storedAt: c.clock()}
	c.mu.Unlock()
}

// Delete removes key so the next read recomputes.
func (c *Cache[T]) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Purge drops every entry whose TTL has elapsed and returns how many were
// removed. Callers with long-lived caches run this periodically to bound
// memory; reads never require it.
func (c *Cache[T]) Purge() int {
	now := c.clock()

	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for key, e := range c.entries {
		if now.Sub(e.storedAt) >= c.ttl {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of stored entries, fresh or not.
func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
