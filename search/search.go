// Package search finds pointer paths from an object to a known value. It is
// how field offsets of a new game build are rediscovered: start at an object
// whose contents are known (the local player, the game data) and look for the
// value shown on screen.
package search

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"ilmem/process"
)

// Searcher holds configuration for the search
type Searcher struct {
	MaxStructSize uint64
	MaxDepth      int
	MinAlignment  uint64
	MaxResults    int
	Deadline      time.Time
	SearchFor     func([]byte) bool
	now           func() time.Time
}

type Option func(*Searcher)

func WithMaxStructSize(size uint64) Option {
	return func(s *Searcher) {
		s.MaxStructSize = size
	}
}

func WithMaxDepth(depth int) Option {
	return func(s *Searcher) {
		s.MaxDepth = depth
	}
}

func WithMinAlignment(align uint64) Option {
	return func(s *Searcher) {
		s.MinAlignment = max(1, align)
	}
}

func WithMaxResults(n int) Option {
	return func(s *Searcher) {
		s.MaxResults = n
	}
}

// WithDeadline stops the search once now reaches deadline
func WithDeadline(deadline time.Time, now func() time.Time) Option {
	return func(s *Searcher) {
		s.Deadline = deadline
		s.now = now
	}
}

// WithBytes searches for an exact byte sequence
func WithBytes(want []byte) Option {
	return func(s *Searcher) {
		s.SearchFor = func(data []byte) bool {
			return bytes.HasPrefix(data, want)
		}
	}
}

// WithU8 matches single bytes, such as a color id or a player id
func WithU8(v uint8) Option {
	return WithBytes([]byte{v})
}

func WithU32(v uint32) Option {
	return WithBytes(binary.LittleEndian.AppendUint32(nil, v))
}

// WithF32 matches a float within eps, which suits positions
func WithF32(v, eps float32) Option {
	return func(s *Searcher) {
		s.SearchFor = func(data []byte) bool {
			if len(data) < 4 {
				return false
			}
			f := math.Float32frombits(binary.LittleEndian.Uint32(data))
			return !math.IsNaN(float64(f)) && math.Abs(float64(f-v)) <= float64(eps)
		}
	}
}

// Result is one path to the target. Path follows process.ReadPath: every
// offset but the last is a pointer field, the last is the value's offset.
type Result struct {
	Path []uint64
	Addr process.ProcessMemoryAddress
}

func (r Result) String() string {
	s := ""
	for i, off := range r.Path {
		if i > 0 {
			s += " -> "
		}
		s += fmt.Sprintf("+0x%x", off)
	}
	return fmt.Sprintf("%s @ 0x%x", s, uint64(r.Addr))
}

var ErrNoTarget = errors.New("no search target specified")

// Search walks the pointer graph below base breadth-first and returns every
// path ending at a match. Each object is read as one MaxStructSize block and
// visited once; pointer slots are followed when their target is readable.
func Search(mem process.MemoryReader, arch process.Arch, base process.ProcessMemoryAddress, options ...Option) ([]Result, error) {
	s := &Searcher{
		MaxStructSize: 0x100,
		MaxDepth:      3,
		MinAlignment:  4,
		now:           time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	if s.SearchFor == nil {
		return nil, ErrNoTarget
	}

	type node struct {
		addr process.ProcessMemoryAddress
		path []uint64
	}

	ptrSize := uint64(arch.PointerSize())
	visited := map[process.ProcessMemoryAddress]bool{base: true}
	queue := []node{{addr: base}}
	var results []Result

	for depth := 0; len(queue) > 0 && depth <= s.MaxDepth; depth++ {
		var next []node
		for _, n := range queue {
			if !s.Deadline.IsZero() && !s.now().Before(s.Deadline) {
				return results, nil
			}

			data, err := mem.ReadMemory(n.addr, process.ProcessMemorySize(s.MaxStructSize))
			if err != nil {
				continue
			}

			for off := uint64(0); off < uint64(len(data)); off += s.MinAlignment {
				if s.SearchFor(data[off:]) {
					results = append(results, Result{Path: append(append([]uint64(nil), n.path...), off), Addr: n.addr.Add(off)})
					if s.MaxResults > 0 && len(results) >= s.MaxResults {
						return results, nil
					}
				}

				if depth == s.MaxDepth || off%ptrSize != 0 || off+ptrSize > uint64(len(data)) {
					continue
				}
				p := process.DecodePointer(data[off:], arch)
				if p.IsNull() || visited[p] {
					continue
				}
				if _, err := mem.ReadMemory(p, process.ProcessMemorySize(ptrSize)); err != nil {
					continue
				}
				visited[p] = true
				next = append(next, node{addr: p, path: append(append([]uint64(nil), n.path...), off)})
			}
		}
		queue = next
	}
	return results, nil
}
