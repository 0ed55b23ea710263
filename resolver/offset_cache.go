package resolver

import "ilmem/process"

type offsetKey[K comparable] struct {
	arch  process.Arch
	field K
}

// OffsetCache remembers a validated byte offset per architecture and logical
// field. An offset that stops validating is evicted and searched again.
type OffsetCache[K comparable] struct {
	m map[offsetKey[K]]uint64
}

func NewOffsetCache[K comparable]() *OffsetCache[K] {
	return &OffsetCache[K]{m: make(map[offsetKey[K]]uint64)}
}

func (c *OffsetCache[K]) Get(arch process.Arch, field K) (uint64, bool) {
	off, ok := c.m[offsetKey[K]{arch, field}]
	return off, ok
}

func (c *OffsetCache[K]) Set(arch process.Arch, field K, off uint64) {
	c.m[offsetKey[K]{arch, field}] = off
}

func (c *OffsetCache[K]) Invalidate(arch process.Arch, field K) {
	delete(c.m, offsetKey[K]{arch, field})
}

func (c *OffsetCache[K]) Reset() {
	clear(c.m)
}

// Resolve returns the cached offset while valid accepts it. Otherwise it
// tries candidates in order and caches the first one valid accepts.
func (c *OffsetCache[K]) Resolve(arch process.Arch, field K, candidates []uint64, valid func(off uint64) bool) (uint64, bool) {
	if off, ok := c.Get(arch, field); ok {
		if valid(off) {
			return off, true
		}
		c.Invalidate(arch, field)
	}

	for _, off := range candidates {
		if valid(off) {
			c.Set(arch, field, off)
			return off, true
		}
	}
	return 0, false
}

// Stride lists offsets from start up to end (exclusive) at the given step
func Stride(start, end, step uint64) []uint64 {
	var out []uint64
	for off := start; off < end; off += step {
		out = append(out, off)
	}
	return out
}
