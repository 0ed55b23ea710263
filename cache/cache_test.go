package cache

import (
	"slices"
	"testing"
	"time"
)

type clock struct {
	t time.Time
}

func (c *clock) now() time.Time {
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func newCache(ttl map[string]time.Duration) (*ResultCache, *clock) {
	clk := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	return New(ttl, WithClock(clk.now)), clk
}

func TestGetExpiresAfterTTL(t *testing.T) {
	c, clk := newCache(map[string]time.Duration{"players": 150 * time.Millisecond})

	c.Set(" Players ", nil, []int{1, 2})
	if v, ok := c.Get("players", nil); !ok || len(v.([]int)) != 2 {
		t.Fatalf("expected a hit with normalized type, got %v ok=%v", v, ok)
	}

	clk.advance(149 * time.Millisecond)
	if _, ok := c.Get("PLAYERS", nil); !ok {
		t.Fatalf("entry should still be live")
	}

	clk.advance(time.Millisecond)
	if _, ok := c.Get("players", nil); ok {
		t.Fatalf("entry should expire exactly at its TTL")
	}
	if len(c.Snapshot()) != 0 {
		t.Fatalf("expired entry should be gone")
	}
}

func TestZeroTTLNeverExpires(t *testing.T) {
	c, clk := newCache(nil)
	c.Set("state", "k", "LOBBY")

	clk.advance(24 * time.Hour)
	if v, ok := c.Get("state", "k"); !ok || v != "LOBBY" {
		t.Fatalf("expected the value to survive, got %v ok=%v", v, ok)
	}
}

func TestSetTTLClampsNegative(t *testing.T) {
	c, _ := newCache(map[string]time.Duration{"hud": -time.Second})
	if d := c.TTL("hud"); d != 0 {
		t.Fatalf("expected 0, got %v", d)
	}
	c.SetTTL("HUD", 2*time.Second)
	if d := c.TTL("hud"); d != 2*time.Second {
		t.Fatalf("expected 2s, got %v", d)
	}
	c.SetTTL("hud", -5*time.Second)
	if d := c.TTL("hud"); d != 0 {
		t.Fatalf("expected negative TTL clamped to 0, got %v", d)
	}
}

func TestInvalidate(t *testing.T) {
	c, _ := newCache(nil)
	c.Set("tasks", 1, "a")
	c.Set("tasks", 2, "b")
	c.Set("colors", nil, "c")

	c.Invalidate([]string{"Tasks"}, 1)
	if _, ok := c.Get("tasks", 1); ok {
		t.Fatalf("subkey 1 should be gone")
	}
	if _, ok := c.Get("tasks", 2); !ok {
		t.Fatalf("subkey 2 should survive")
	}

	c.Invalidate([]string{"tasks"}, nil)
	if _, ok := c.Get("tasks", 2); ok {
		t.Fatalf("every tasks subkey should be gone")
	}
	if _, ok := c.Get("colors", nil); !ok {
		t.Fatalf("other types should survive")
	}

	c.Invalidate(nil, nil)
	if len(c.Types()) != 0 {
		t.Fatalf("expected an empty cache, got %v", c.Types())
	}
}

func TestSnapshotFiltersTypes(t *testing.T) {
	c, clk := newCache(map[string]time.Duration{"players": time.Second})
	c.Set("players", nil, 3)
	c.Set("tasks", 7, "t7")
	c.Set("session", "state", "SHIP")

	snap := c.Snapshot("tasks", "session")
	if len(snap) != 2 || snap["tasks"][7] != "t7" || snap["session"]["state"] != "SHIP" {
		t.Fatalf("unexpected snapshot %v", snap)
	}
	if !slices.Equal(c.Types(), []string{"players", "session", "tasks"}) {
		t.Fatalf("unexpected types %v", c.Types())
	}

	clk.advance(time.Second)
	if _, ok := c.Snapshot()["players"]; ok {
		t.Fatalf("expired players should not be in the snapshot")
	}
}

func TestFetch(t *testing.T) {
	c, _ := newCache(nil)
	calls := 0
	load := func() int {
		calls++
		return 42
	}

	if v := Fetch(c, "colors", nil, load); v != 42 {
		t.Fatalf("expected 42, got %d", v)
	}
	if v := Fetch(c, "colors", nil, load); v != 42 || calls != 1 {
		t.Fatalf("second fetch should hit the cache, calls=%d", calls)
	}

	c.Set("colors", nil, "wrong type")
	if v := Fetch(c, "colors", nil, load); v != 42 || calls != 2 {
		t.Fatalf("mistyped entry should be reloaded, calls=%d", calls)
	}
}

func TestTypesSkipsExpiredEntries(t *testing.T) {
	c, clk := newCache(map[string]time.Duration{"players": 100 * time.Millisecond})
	c.Set("players", nil, 1)
	c.Set("state", nil, "LOBBY")

	if got := c.Types(); !slices.Equal(got, []string{"players", "state"}) {
		t.Fatalf("unexpected types %v", got)
	}
	clk.advance(100 * time.Millisecond)
	if got := c.Types(); !slices.Equal(got, []string{"state"}) {
		t.Fatalf("expired type should not be listed, got %v", got)
	}
}
