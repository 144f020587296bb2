package cache

import (
	"fmt"
	"testing"
	"time"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestCache(size int, ttl time.Duration) (*LRUCache[[]byte], *clock) {
	clk := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[[]byte](size, ttl)
	c.now = clk.now
	return c, clk
}

func TestLRUCacheEviction(t *testing.T) {
	c, _ := newTestCache(3, time.Hour)

	for i := 1; i <= 3; i++ {
		c.Set(fmt.Sprintf("session:%d", i), []byte{byte(i)})
	}
	// Touch 1 so 2 becomes the least recently used.
	if _, ok := c.Get("session:1"); !ok {
		t.Fatal("expected hit for session:1")
	}
	c.Set("session:4", []byte{4})

	if _, ok := c.Get("session:2"); ok {
		t.Error("session:2 should have been evicted")
	}
	for _, key := range []string{"session:1", "session:3", "session:4"} {
		if _, ok := c.Get(key); !ok {
			t.Errorf("%s should still be cached", key)
		}
	}
	if c.Size() != 3 {
		t.Errorf("Size() = %d, want 3", c.Size())
	}
}

func TestLRUCacheTTL(t *testing.T) {
	c, clk := newTestCache(10, time.Minute)
	c.Set("a", []byte("x"))
	c.Set("b", []byte("y"))

	clk.t = clk.t.Add(30 * time.Second)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("entry should be alive within TTL")
	}

	clk.t = clk.t.Add(time.Minute)
	if _, ok := c.Get("a"); ok {
		t.Error("entry should expire after TTL")
	}
	if n := c.CleanExpired(); n != 1 {
		t.Errorf("CleanExpired() = %d, want 1", n)
	}
	if c.Size() != 0 {
		t.Errorf("Size() = %d, want 0", c.Size())
	}
}

func TestLRUCacheOverwriteAndDelete(t *testing.T) {
	c, _ := newTestCache(2, time.Hour)
	c.Set("k", []byte("old"))
	c.Set("k", []byte("new"))
	if v, _ := c.Get("k"); string(v) != "new" {
		t.Errorf("Get() = %q, want new", v)
	}
	c.Delete("k")
	c.Delete("missing")
	if _, ok := c.Get("k"); ok {
		t.Error("deleted key should miss")
	}
}

func TestLRUCacheDeletePrefix(t *testing.T) {
	c, _ := newTestCache(10, time.Hour)
	c.Set("report:1:a", nil)
	c.Set("report:1:b", nil)
	c.Set("report:12:a", nil)

	if n := c.DeletePrefix("report:1:"); n != 2 {
		t.Errorf("DeletePrefix() = %d, want 2", n)
	}
	if _, ok := c.Get("report:12:a"); !ok {
		t.Error("report:12 must survive the report:1 prefix")
	}
}

func TestLRUCacheStats(t *testing.T) {
	c, _ := newTestCache(2, time.Hour)
	c.Set("a", nil)
	c.Get("a")
	c.Get("b")

	s := c.Stats()
	if s.Hits != 1 || s.Misses != 1 || s.Size != 1 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestManagerCleanNow(t *testing.T) {
	c, clk := newTestCache(5, time.Second)
	c.Set("a", nil)
	clk.t = clk.t.Add(2 * time.Second)

	m := NewManager()
	m.Register(c)
	if n := m.CleanNow(); n != 1 {
		t.Errorf("CleanNow() = %d, want 1", n)
	}

	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()
}

func TestManagerStopWithoutStart(t *testing.T) {
	m := NewManager()
	m.Stop()
}
