// AmparaWeb - Personal Safety Location Monitoring
// Copyright 2026 Argemiro Silva
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/argemirosilva/amparaweb-sub002

package cache

import (
	"container/list"
	"sync"
)

// FIFO is a thread-safe bounded cache that evicts in insertion order: when
// full, the oldest-inserted entry is removed regardless of how recently it
// was read. This is intentionally not an LRU — accessing an entry does not
// move it, and re-setting an existing key does not refresh its position.
// Entries have no TTL.
type FIFO[V any] struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	order    *list.List // front = oldest inserted

	hits   int64
	misses int64
}

type fifoEntry[V any] struct {
	key   string
	value V
}

// NewFIFO creates a FIFO cache holding at most capacity entries.
func NewFIFO[V any](capacity int) *FIFO[V] {
	if capacity <= 0 {
		capacity = 500
	}
	return &FIFO[V]{
		capacity: capacity,
		items:    make(map[string]*list.Element, capacity),
		order:    list.New(),
	}
}

// Get retrieves a value by key. Reads do not affect eviction order.
func (c *FIFO[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, exists := c.items[key]
	if !exists {
		c.misses++
		return zero, false
	}

	c.hits++
	return el.Value.(*fifoEntry[V]).value, true
}

// Set stores a value. A new key may evict the oldest-inserted entry; an
// existing key is updated in place, keeping its original insertion position.
func (c *FIFO[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, exists := c.items[key]; exists {
		el.Value.(*fifoEntry[V]).value = value
		return
	}

	if c.order.Len() >= c.capacity {
		oldest := c.order.Front()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.items, oldest.Value.(*fifoEntry[V]).key)
		}
	}

	c.items[key] = c.order.PushBack(&fifoEntry[V]{key: key, value: value})
}

// Len returns the current number of entries.
func (c *FIFO[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats returns the hit and miss counts observed so far.
func (c *FIFO[V]) Stats() (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
