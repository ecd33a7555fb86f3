// AmparaWeb - Personal Safety Location Monitoring
// Copyright 2026 Argemiro Silva
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/argemirosilva/amparaweb-sub002

// Package cache provides the in-memory data structures backing the location
// pipeline: a TTL map cache for geocode results and an insertion-order FIFO
// cache for road-snap results. Both are process-local and reset on restart;
// there is deliberately no durable or cross-instance storage.
package cache

import (
	"sync"
	"time"
)

// entry is a cached value with its expiration deadline.
type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTL is a thread-safe in-memory cache whose entries expire after a fixed
// duration. Expired entries are treated as absent on Get and removed either
// lazily on access or in bulk by Sweep.
//
// Unlike a cache that spawns its own cleanup goroutine, TTL leaves sweeping
// to the caller (the pipeline janitor service), keeping goroutine lifecycle
// in one supervised place.
type TTL[V any] struct {
	mu      sync.RWMutex
	entries map[string]entry[V]
	ttl     time.Duration

	hits   int64
	misses int64
}

// NewTTL creates a TTL cache. Entries expire ttl after insertion.
func NewTTL[V any](ttl time.Duration) *TTL[V] {
	return &TTL[V]{
		entries: make(map[string]entry[V]),
		ttl:     ttl,
	}
}

// Get retrieves a value by key. An entry past its deadline is removed and
// reported as absent.
func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, exists := c.entries[key]
	c.mu.RUnlock()

	var zero V
	if !exists {
		c.recordMiss()
		return zero, false
	}

	if time.Now().After(e.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have refreshed it.
		if cur, ok := c.entries[key]; ok && time.Now().After(cur.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		c.recordMiss()
		return zero, false
	}

	c.recordHit()
	return e.value, true
}

// Set stores a value with the cache's TTL. An existing entry for the key is
// replaced atomically; entries are never mutated in place.
func (c *TTL[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry[V]{
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// Delete removes a specific entry. No-op for absent keys.
func (c *TTL[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear removes all entries.
func (c *TTL[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry[V])
}

// Sweep removes all expired entries and returns how many were evicted.
func (c *TTL[V]) Sweep() int {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	evicted := 0
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
			evicted++
		}
	}
	return evicted
}

// Len returns the current number of entries, expired or not.
func (c *TTL[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns the hit and miss counts observed so far.
func (c *TTL[V]) Stats() (hits, misses int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}

func (c *TTL[V]) recordHit() {
	c.mu.Lock()
	c.hits++
	c.mu.Unlock()
}

func (c *TTL[V]) recordMiss() {
	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
}
