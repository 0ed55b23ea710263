package accessor

import (
	"iter"

	"ilmem/process"
	"ilmem/process/memory_map"
)

const (
	// a failed query skips ahead by one allocation granule
	queryFailureStep = 0x10000
	maxQueries       = 1 << 20
)

// walk queries the address space from 0 upwards and yields regions matching keep.
// It stops at the architecture's top user address, after maxRegions matches or
// after maxQueries queries, whichever comes first.
func (a *Accessor) walk(keep func(memory_map.MemoryMapItem) bool) iter.Seq[memory_map.MemoryMapItem] {
	return func(yield func(memory_map.MemoryMapItem) bool) {
		limit := uint64(a.arch.MaxUserAddress())
		yielded := 0

		addr := uint64(0)
		for q := 0; q < maxQueries && addr < limit && yielded < a.maxRegions; q++ {
			item, err := a.proc.QueryRegion(process.ProcessMemoryAddress(addr))
			if err != nil || item.Size == 0 {
				addr += queryFailureStep
				continue
			}

			if keep(item) {
				yielded++
				if !yield(item) {
					return
				}
			}

			next := item.End()
			if next <= addr {
				return
			}
			addr = next
		}
	}
}

// CommittedReadableRegions yields committed regions that are readable and not guard pages
func (a *Accessor) CommittedReadableRegions() iter.Seq[memory_map.MemoryMapItem] {
	return a.walk(memory_map.MemoryMapItem.IsReadable)
}

// HeapRegions yields committed read-write regions
func (a *Accessor) HeapRegions() iter.Seq[memory_map.MemoryMapItem] {
	return a.walk(memory_map.MemoryMapItem.IsHeap)
}
