package cache

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func TestLRUCacheExpiry(t *testing.T) {
	clk := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](4, time.Minute).WithClock(clk.now)

	c.Set("a", "1")
	if v, ok := c.Get("a"); !ok || v != "1" {
		t.Fatalf("expected hit, got %q %v", v, ok)
	}

	clk.t = clk.t.Add(61 * time.Second)
	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected entry to expire")
	}
	if c.Size() != 0 {
		t.Fatalf("expired entry should be removed on read")
	}
}

func TestLRUCacheEvictsOldest(t *testing.T) {
	c := NewLRUCache[int](2, time.Hour)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a") // a becomes most recent
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatalf("b should have been evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("a should survive")
	}
	if c.Size() != 2 {
		t.Fatalf("size: %d", c.Size())
	}

	c.Delete("a")
	if _, ok := c.Get("a"); ok || c.Size() != 1 {
		t.Fatalf("delete failed")
	}
}

func TestManagerCleanNow(t *testing.T) {
	clk := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	c := NewLRUCache[int](10, time.Minute).WithClock(clk.now)
	c.Set("a", 1)
	c.Set("b", 2)

	m := NewManager()
	m.Register(c)
	m.StartCleanup(time.Hour)
	defer m.Stop()

	if n := m.CleanNow(); n != 0 {
		t.Fatalf("nothing should expire yet, cleaned %d", n)
	}
	clk.t = clk.t.Add(2 * time.Minute)
	if n := m.CleanNow(); n != 2 {
		t.Fatalf("expected 2 evictions, got %d", n)
	}
}

func TestStats(t *testing.T) {
	clk := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	c := NewLRUCache[int](2, time.Minute).WithClock(clk.now)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3) // evicts a

	clk.t = clk.t.Add(2 * time.Minute)
	c.Get("b") // expired on read
	c.CleanExpired()

	want := Stats{Entries: 0, Evicted: 1, Expired: 2}
	if got := c.Stats(); got != want {
		t.Fatalf("stats: got %+v want %+v", got, want)
	}

	m := NewManager()
	m.Register(c)
	other := NewLRUCache[int](4, time.Hour)
	other.Set("x", 1)
	m.Register(other)
	if got := m.Stats(); got.Entries != 1 || got.Evicted != 1 || got.Expired != 2 {
		t.Fatalf("manager stats: %+v", got)
	}
}
