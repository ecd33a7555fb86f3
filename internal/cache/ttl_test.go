// AmparaWeb - Personal Safety Location Monitoring
// Copyright 2026 Argemiro Silva
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/argemirosilva/amparaweb-sub002

package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestTTL_SetGet(t *testing.T) {
	c := NewTTL[string](time.Minute)

	c.Set("a", "first")
	c.Set("b", "second")

	if v, ok := c.Get("a"); !ok || v != "first" {
		t.Errorf("Get(a) = (%q, %v), want (first, true)", v, ok)
	}
	if v, ok := c.Get("b"); !ok || v != "second" {
		t.Errorf("Get(b) = (%q, %v), want (second, true)", v, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Error("expected miss for absent key")
	}
}

func TestTTL_ExpiredEntryIsAbsent(t *testing.T) {
	c := NewTTL[string](30 * time.Millisecond)

	c.Set("a", "value")
	if _, ok := c.Get("a"); !ok {
		t.Fatal("expected fresh entry to be present")
	}

	time.Sleep(50 * time.Millisecond)

	if _, ok := c.Get("a"); ok {
		t.Error("expected expired entry to be reported absent")
	}
	// Lazy removal on access.
	if c.Len() != 0 {
		t.Errorf("Len() = %d after expired Get, want 0", c.Len())
	}
}

func TestTTL_SetReplacesEntry(t *testing.T) {
	c := NewTTL[string](time.Minute)

	c.Set("a", "old")
	c.Set("a", "new")

	if v, _ := c.Get("a"); v != "new" {
		t.Errorf("Get(a) = %q after replace, want new", v)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestTTL_Sweep(t *testing.T) {
	c := NewTTL[int](25 * time.Millisecond)

	c.Set("a", 1)
	c.Set("b", 2)
	time.Sleep(40 * time.Millisecond)
	c.Set("c", 3)

	evicted := c.Sweep()
	if evicted != 2 {
		t.Errorf("Sweep() = %d, want 2", evicted)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d after sweep, want 1", c.Len())
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("fresh entry should survive sweep")
	}
}

func TestTTL_Stats(t *testing.T) {
	c := NewTTL[int](time.Minute)

	c.Set("a", 1)
	c.Get("a")
	c.Get("a")
	c.Get("missing")

	hits, misses := c.Stats()
	if hits != 2 || misses != 1 {
		t.Errorf("Stats() = (%d, %d), want (2, 1)", hits, misses)
	}
}

func TestTTL_ConcurrentAccess(t *testing.T) {
	c := NewTTL[int](time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("key-%d", n%5)
			for j := 0; j < 100; j++ {
				c.Set(key, j)
				c.Get(key)
			}
		}(i)
	}
	wg.Wait()

	if c.Len() != 5 {
		t.Errorf("Len() = %d after concurrent writes, want 5", c.Len())
	}
}
