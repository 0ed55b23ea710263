package il2cpp

import (
	"ilmem/process"
)

// MaxDictEntries bounds how many dictionary entries are inspected
const MaxDictEntries = 16

// ListHeader is the decoded header of a List<T>
type ListHeader struct {
	Items process.ProcessMemoryAddress
	Count int
}

// ReadListHeader decodes the items array pointer and the element count of a List<T>
func (s *Scanner) ReadListHeader(list process.ProcessMemoryAddress) (ListHeader, bool) {
	if list.IsNull() {
		return ListHeader{}, false
	}
	fields := s.Fields(list)

	items, err := s.mem.ReadPtr(fields)
	if err != nil || items.IsNull() {
		return ListHeader{}, false
	}
	count, err := s.mem.ReadI32(fields.Add(s.ptrSize()))
	if err != nil || count < 0 {
		return ListHeader{}, false
	}
	return ListHeader{Items: items, Count: int(count)}, true
}

// ReadList returns the non-null elements of a List<T> of references. Lists
// claiming more than ceiling elements are rejected as misidentified.
func (s *Scanner) ReadList(list process.ProcessMemoryAddress, ceiling int) []process.ProcessMemoryAddress {
	h, ok := s.ReadListHeader(list)
	if !ok || h.Count > ceiling {
		return nil
	}
	return s.ReadArray(h.Items, h.Count)
}

// ReadArray returns the non-null elements of a managed reference array
func (s *Scanner) ReadArray(arr process.ProcessMemoryAddress, count int) []process.ProcessMemoryAddress {
	if arr.IsNull() || count <= 0 {
		return nil
	}
	out := make([]process.ProcessMemoryAddress, 0, count)
	for _, p := range s.readSlots(arr.Add(s.arch.VectorOffset()), uint64(count)*s.ptrSize()) {
		if !p.IsNull() {
			out = append(out, p)
		}
	}
	return out
}

// DictHeader is the decoded header of a Dictionary<int, T>
type DictHeader struct {
	Entries process.ProcessMemoryAddress
	Count   int
}

// Plausible reports whether the header looks like a small live dictionary
func (h DictHeader) Plausible() bool {
	return !h.Entries.IsNull() && h.Count > 0 && h.Count <= MaxDictEntries
}

func (s *Scanner) ReadDictHeader(dict process.ProcessMemoryAddress) (DictHeader, bool) {
	if dict.IsNull() {
		return DictHeader{}, false
	}
	fields := s.Fields(dict)

	entries, err := s.mem.ReadPtr(fields.Add(s.arch.DictEntriesOffset()))
	if err != nil {
		return DictHeader{}, false
	}
	count, err := s.mem.ReadI32(fields.Add(s.arch.DictCountOffset()))
	if err != nil {
		return DictHeader{}, false
	}
	return DictHeader{Entries: entries, Count: int(count)}, true
}

// DictLookup finds the value stored under key in a Dictionary<int, T>.
// Free entries (negative hash) are skipped without reading their key.
func (s *Scanner) DictLookup(dict process.ProcessMemoryAddress, key int32) (process.ProcessMemoryAddress, bool) {
	h, ok := s.ReadDictHeader(dict)
	if !ok || h.Entries.IsNull() || h.Count <= 0 {
		return 0, false
	}

	first := h.Entries.Add(s.arch.VectorOffset())
	for i := range min(h.Count, MaxDictEntries) {
		entry := first.Add(uint64(i) * s.arch.DictEntrySize())

		hash, err := s.mem.ReadI32(entry)
		if err != nil || hash < 0 {
			continue
		}
		k, err := s.mem.ReadI32(entry.Add(s.arch.DictKeyOffset()))
		if err != nil || k != key {
			continue
		}
		v, err := s.mem.ReadPtr(entry.Add(s.arch.DictValueOffset()))
		if err != nil {
			return 0, false
		}
		return v, true
	}
	return 0, false
}

// First runs strategies in order and returns the first non-zero result
func First[T comparable](strategies ...func() T) T {
	var zero T
	for _, strategy := range strategies {
		if v := strategy(); v != zero {
			return v
		}
	}
	return zero
}
