// Package cache provides a typed TTL cache backed by patrickmn/go-cache.
package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// InMemory is a thread-safe in-memory cache with TTL. A nil store means
// caching is disabled: Get always misses and Set drops the value.
type InMemory[T any] struct {
	store *gocache.Cache
}

// New creates a new in-memory cache with the given TTL. Expired entries are
// purged every two TTLs. A ttl of zero or less disables caching.
func New[T any](ttl time.Duration) *InMemory[T] {
	if ttl <= 0 {
		return &InMemory[T]{}
	}
	return &InMemory[T]{store: gocache.New(ttl, 2*ttl)}
}

// Get retrieves a value from the cache. Returns false if not found, expired
// or stored under a different type.
func (c *InMemory[T]) Get(key string) (T, bool) {
	var zero T
	if c.store == nil {
		return zero, false
	}
	raw, ok := c.store.Get(key)
	if !ok {
		return zero, false
	}
	v, ok := raw.(T)
	if !ok {
		return zero, false
	}
	return v, true
}

// Set stores a value in the cache with the configured TTL.
func (c *InMemory[T]) Set(key string, value T) {
	if c.store == nil {
		return
	}
	c.store.SetDefault(key, value)
}

// Delete removes a value from the cache.
func (c *InMemory[T]) Delete(key string) {
	if c.store == nil {
		return
	}
	c.store.Delete(key)
}

// Flush drops every entry.
func (c *InMemory[T]) Flush() {
	if c.store == nil {
		return
	}
	c.store.Flush()
}

// Len returns the number of stored entries, including expired ones not yet purged.
func (c *InMemory[T]) Len() int {
	if c.store == nil {
		return 0
	}
	return c.store.ItemCount()
}
