package engine

import (
	"fmt"
	"testing"
)

func TestRecencyCache_AddContains(t *testing.T) {
	c := NewRecencyCache(3)

	if c.Contains("a") {
		t.Error("empty cache should not contain anything")
	}
	c.Add("a")
	if !c.Contains("a") {
		t.Error("cache should contain added id")
	}

	c.Add("a")
	if c.Len() != 1 {
		t.Errorf("duplicate add changed size: %d", c.Len())
	}

	c.Add("")
	if c.Len() != 1 || c.Contains("") {
		t.Error("empty id must be ignored")
	}
}

func TestRecencyCache_EvictsOldestFirst(t *testing.T) {
	c := NewRecencyCache(3)
	for _, id := range []string{"a", "b", "c"} {
		c.Add(id)
	}

	c.Add("d")
	if c.Contains("a") {
		t.Error("oldest entry should be evicted at capacity")
	}
	for _, id := range []string{"b", "c", "d"} {
		if !c.Contains(id) {
			t.Errorf("entry %q missing after eviction", id)
		}
	}
	if c.Len() != 3 {
		t.Errorf("size = %d, want 3", c.Len())
	}
}

func TestRecencyCache_BoundedUnderChurn(t *testing.T) {
	c := NewRecencyCache(100)
	for i := 0; i < 10_000; i++ {
		c.Add(fmt.Sprintf("msg_%d", i))
	}
	if c.Len() != 100 {
		t.Errorf("size = %d after churn, want 100", c.Len())
	}
	if !c.Contains("msg_9999") {
		t.Error("newest entry missing")
	}
	if c.Contains("msg_0") {
		t.Error("ancient entry survived")
	}
}
