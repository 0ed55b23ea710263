// Package cache memoizes resolver results for a short, per-type time window.
package cache

import (
	"maps"
	"slices"
	"strings"
	"sync"
	"time"
)

type key struct {
	typ string
	sub any
}

type entry struct {
	expires time.Time
	value   any
}

// ResultCache stores values under (type, subkey). Each type has its own TTL;
// a TTL of zero keeps values until they are invalidated. Expired entries are
// dropped when they are next looked at. Subkeys must be comparable.
type ResultCache struct {
	mu    sync.Mutex
	ttl   map[string]time.Duration
	store map[key]entry
	now   func() time.Time
}

type Option func(*ResultCache)

func WithClock(now func() time.Time) Option {
	return func(c *ResultCache) {
		c.now = now
	}
}

func New(ttl map[string]time.Duration, opts ...Option) *ResultCache {
	c := &ResultCache{
		ttl:   make(map[string]time.Duration, len(ttl)),
		store: make(map[key]entry),
		now:   time.Now,
	}
	for typ, d := range ttl {
		c.ttl[normalize(typ)] = max(0, d)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func normalize(typ string) string {
	return strings.ToLower(strings.TrimSpace(typ))
}

// SetTTL changes the lifetime of a type. Negative durations become zero.
func (c *ResultCache) SetTTL(typ string, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ttl[normalize(typ)] = max(0, d)
}

func (c *ResultCache) TTL(typ string) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ttl[normalize(typ)]
}

// expired assumes the mutex is held
func (c *ResultCache) expired(typ string, e entry, now time.Time) bool {
	return c.ttl[typ] > 0 && !now.Before(e.expires)
}

func (c *ResultCache) Get(typ string, sub any) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := key{normalize(typ), sub}
	e, ok := c.store[k]
	if !ok {
		return nil, false
	}
	if c.expired(k.typ, e, c.now()) {
		delete(c.store, k)
		return nil, false
	}
	return e.value, true
}

func (c *ResultCache) Set(typ string, sub any, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := key{normalize(typ), sub}
	var expires time.Time
	if ttl := c.ttl[k.typ]; ttl > 0 {
		expires = c.now().Add(ttl)
	}
	c.store[k] = entry{expires: expires, value: value}
}

// Invalidate drops entries of the given types. A nil sub drops every subkey
// of those types; no types drops everything.
func (c *ResultCache) Invalidate(types []string, sub any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(types) == 0 {
		clear(c.store)
		return
	}
	wanted := make(map[string]bool, len(types))
	for _, typ := range types {
		wanted[normalize(typ)] = true
	}
	maps.DeleteFunc(c.store, func(k key, _ entry) bool {
		return wanted[k.typ] && (sub == nil || k.sub == sub)
	})
}

// Snapshot returns the live entries grouped by type, optionally restricted
// to the given types. Expired entries are dropped on the way.
func (c *ResultCache) Snapshot(types ...string) map[string]map[any]any {
	c.mu.Lock()
	defer c.mu.Unlock()

	var wanted map[string]bool
	if len(types) > 0 {
		wanted = make(map[string]bool, len(types))
		for _, typ := range types {
			wanted[normalize(typ)] = true
		}
	}

	now := c.now()
	out := make(map[string]map[any]any)
	for k, e := range c.store {
		if wanted != nil && !wanted[k.typ] {
			continue
		}
		if c.expired(k.typ, e, now) {
			delete(c.store, k)
			continue
		}
		if out[k.typ] == nil {
			out[k.typ] = make(map[any]any)
		}
		out[k.typ][k.sub] = e.value
	}
	return out
}

// Types lists the types that currently hold live entries. Expired entries
// are dropped on the way.
func (c *ResultCache) Types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	seen := make(map[string]bool)
	for k, e := range c.store {
		if c.expired(k.typ, e, now) {
			delete(c.store, k)
			continue
		}
		seen[k.typ] = true
	}
	return slices.Sorted(maps.Keys(seen))
}

// Fetch returns the cached value of type T, or calls load and caches its result
func Fetch[T any](c *ResultCache, typ string, sub any, load func() T) T {
	if v, ok := c.Get(typ, sub); ok {
		if t, ok := v.(T); ok {
			return t
		}
	}
	v := load()
	c.Set(typ, sub, v)
	return v
}
