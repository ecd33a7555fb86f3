// AmparaWeb - Personal Safety Location Monitoring
// Copyright 2026 Argemiro Silva
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/argemirosilva/amparaweb-sub002

package cache

import (
	"fmt"
	"testing"
)

func TestFIFO_SetGet(t *testing.T) {
	c := NewFIFO[string](3)

	c.Set("a", "1")
	c.Set("b", "2")

	if v, ok := c.Get("a"); !ok || v != "1" {
		t.Errorf("Get(a) = (%q, %v), want (1, true)", v, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Error("expected miss for absent key")
	}
}

func TestFIFO_EvictsOldestInserted(t *testing.T) {
	c := NewFIFO[int](3)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	// Read "a" heavily; FIFO must still evict it first.
	for i := 0; i < 10; i++ {
		c.Get("a")
	}

	c.Set("d", 4)

	if _, ok := c.Get("a"); ok {
		t.Error("expected oldest-inserted 'a' to be evicted despite recent reads")
	}
	for _, key := range []string{"b", "c", "d"} {
		if _, ok := c.Get(key); !ok {
			t.Errorf("expected %q to be present", key)
		}
	}
	if c.Len() != 3 {
		t.Errorf("Len() = %d, want 3", c.Len())
	}
}

func TestFIFO_UpdateKeepsInsertionPosition(t *testing.T) {
	c := NewFIFO[int](2)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("a", 10) // update, not re-insert

	c.Set("c", 3) // must evict "a" (still oldest by insertion)

	if _, ok := c.Get("a"); ok {
		t.Error("expected updated 'a' to keep its insertion position and be evicted")
	}
	if v, ok := c.Get("b"); !ok || v != 2 {
		t.Errorf("Get(b) = (%d, %v), want (2, true)", v, ok)
	}
}

func TestFIFO_EvictionSequence(t *testing.T) {
	c := NewFIFO[int](500)

	for i := 0; i < 600; i++ {
		c.Set(fmt.Sprintf("k%d", i), i)
	}

	if c.Len() != 500 {
		t.Fatalf("Len() = %d, want 500", c.Len())
	}
	// First 100 inserted must be gone, the rest present.
	if _, ok := c.Get("k99"); ok {
		t.Error("expected k99 to be evicted")
	}
	if _, ok := c.Get("k100"); !ok {
		t.Error("expected k100 to be present")
	}
	if _, ok := c.Get("k599"); !ok {
		t.Error("expected k599 to be present")
	}
}

func TestFIFO_DefaultCapacity(t *testing.T) {
	c := NewFIFO[int](0)

	for i := 0; i < 501; i++ {
		c.Set(fmt.Sprintf("k%d", i), i)
	}
	if c.Len() != 500 {
		t.Errorf("Len() = %d with default capacity, want 500", c.Len())
	}
}
