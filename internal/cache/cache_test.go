package cache

import (
	"testing"
	"time"
)

// fakeClock returns a Clock backed by a mutable instant.
func fakeClock(start time.Time) (Clock, func(time.Duration)) {
	now := start
	clock := func() time.Time { return now }
	advance := func(d time.Duration) { now = now.Add(d) }
	return clock, advance
}

func TestCache_HitWithinTTL(t *testing.T) {
	clock, advance := fakeClock(time.Unix(1700000000, 0))
	c := New[string](time.Minute, WithClock[string](clock))

	c.Put("k", "v")
	advance(30 * time.Second)

	got, ok := c.Get("k")
	if !ok {
		t.Fatal("expected hit within TTL")
	}
	if got != "v" {
		t.Errorf("got %q, want v", got)
	}
}

func TestCache_MissAfterTTL(t *testing.T) {
	clock, advance := fakeClock(time.Unix(1700000000, 0))
	c := New[string](time.Minute, WithClock[string](clock))

	c.Put("k", "v")
	advance(time.Minute)

	if _, ok := c.Get("k"); ok {
		t.Fatal("expected miss after TTL elapsed")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry should be removed on lookup, len = %d", c.Len())
	}
}

func TestCache_PutResetsExpiry(t *testing.T) {
	clock, advance := fakeClock(time.Unix(1700000000, 0))
	c := New[int](time.Minute, WithClock[int](clock))

	c.Put("k", 1)
	advance(45 * time.Second)
	c.Put("k", 2)
	advance(45 * time.Second)

	got, ok := c.Get("k")
	if !ok {
		t.Fatal("expected hit after refresh")
	}
	if got != 2 {
		t.Errorf("got %d, want 2", got)
	}
}

func TestCache_Delete(t *testing.T) {
	clock, _ := fakeClock(time.Unix(1700000000, 0))
	c := New[string](time.Minute, WithClock[string](clock))

	c.Put("k", "v")
	c.Delete("k")

	if _, ok := c.Get("k"); ok {
		t.Fatal("expected miss after delete")
	}
}

func TestCache_ZeroTTLDisables(t *testing.T) {
	c := New[string](0)

	c.Put("k", "v")
	if _, ok := c.Get("k"); ok {
		t.Fatal("expected zero-TTL cache to always miss")
	}
	if c.Len() != 0 {
		t.Errorf("expected no stored entries, got %d", c.Len())
	}
}

func TestCache_Purge(t *testing.T) {
	clock, advance := fakeClock(time.Unix(1700000000, 0))
	c := New[string](time.Minute, WithClock[string](clock))

	c.Put("old", "a")
	advance(45 * time.Second)
	c.Put("fresh", "b")
	advance(30 * time.Second)

	if removed := c.Purge(); removed != 1 {
		t.Errorf("purge removed %d, want 1", removed)
	}
	if _, ok := c.Get("fresh"); !ok {
		t.Error("fresh entry should survive purge")
	}
	if c.Len() != 1 {
		t.Errorf("len after purge: got %d, want 1", c.Len())
	}
}

func TestCache_IndependentKeys(t *testing.T) {
	clock, _ := fakeClock(time.Unix(1700000000, 0))
	c := New[int](time.Minute, WithClock[int](clock))

	c.Put("a", 1)
	c.Put("b", 2)

	if got, _ := c.Get("a"); got != 1 {
		t.Errorf("a: got %d, want 1", got)
	}
	if got, _ := c.Get("b"); got != 2 {
		t.Errorf("b: got %d, want 2", got)
	}
}
