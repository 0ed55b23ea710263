package memory_map

import (
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"
)

// Region state values as reported by VirtualQueryEx
const (
	MEM_COMMIT  = 0x1000
	MEM_RESERVE = 0x2000
	MEM_FREE    = 0x10000
)

// Page protection values
const (
	PAGE_NOACCESS          = 0x01
	PAGE_READONLY          = 0x02
	PAGE_READWRITE         = 0x04
	PAGE_WRITECOPY         = 0x08
	PAGE_EXECUTE           = 0x10
	PAGE_EXECUTE_READ      = 0x20
	PAGE_EXECUTE_READWRITE = 0x40
	PAGE_EXECUTE_WRITECOPY = 0x80
	PAGE_GUARD             = 0x100
)

// MemoryMapItem represents a memory region in a process's address space
type MemoryMapItem struct {
	Address uint64 `json:"address"` // The starting address of the memory region
	Size    uint   `json:"size"`    // The size of the memory region in bytes
	State   uint32 `json:"state"`   // MEM_COMMIT, MEM_RESERVE or MEM_FREE
	Protect uint32 `json:"protect"` // PAGE_* protection
	Perms   string `json:"perms"`   // Permissions (e.g., "r-xp" for read, execute, private)
	Path    string `json:"path,omitempty"`
}

// String returns a string representation of the memory map item
func (mmItem MemoryMapItem) String() string {
	return fmt.Sprintf("Address: %x, Size: %s, Perms: %s, Protect: 0x%x", mmItem.Address, humanize.IBytes(uint64(mmItem.Size)), mmItem.Perms, mmItem.Protect)
}

func (mmItem MemoryMapItem) End() uint64 {
	return mmItem.Address + uint64(mmItem.Size)
}

func (mmItem MemoryMapItem) Contains(addr uint64) bool {
	return addr >= mmItem.Address && addr < mmItem.End()
}

func (mmItem MemoryMapItem) IsCommitted() bool {
	return mmItem.State == MEM_COMMIT
}

func (mmItem MemoryMapItem) baseProtect() uint32 {
	return mmItem.Protect & 0xFF
}

func (mmItem MemoryMapItem) IsGuard() bool {
	return mmItem.Protect&PAGE_GUARD != 0
}

// IsReadable reports a committed region whose protection permits reads and is not a guard page
func (mmItem MemoryMapItem) IsReadable() bool {
	if !mmItem.IsCommitted() || mmItem.IsGuard() {
		return false
	}
	switch mmItem.baseProtect() {
	case PAGE_READONLY, PAGE_READWRITE, PAGE_WRITECOPY, PAGE_EXECUTE_READ, PAGE_EXECUTE_READWRITE, PAGE_EXECUTE_WRITECOPY:
		return true
	}
	return false
}

func (mmItem MemoryMapItem) IsWritable() bool {
	if !mmItem.IsCommitted() || mmItem.IsGuard() {
		return false
	}
	switch mmItem.baseProtect() {
	case PAGE_READWRITE, PAGE_WRITECOPY, PAGE_EXECUTE_READWRITE, PAGE_EXECUTE_WRITECOPY:
		return true
	}
	return false
}

// IsHeap reports a committed read-write region, where managed objects live
func (mmItem MemoryMapItem) IsHeap() bool {
	return mmItem.IsWritable()
}

// ProtectFromPerms maps a /proc maps permission string onto a PAGE_* value
func ProtectFromPerms(perms string) uint32 {
	r := len(perms) > 0 && perms[0] == 'r'
	w := len(perms) > 1 && perms[1] == 'w'
	x := len(perms) > 2 && perms[2] == 'x'

	switch {
	case r && w && x:
		return PAGE_EXECUTE_READWRITE
	case r && x:
		return PAGE_EXECUTE_READ
	case r && w:
		return PAGE_READWRITE
	case r:
		return PAGE_READONLY
	case x:
		return PAGE_EXECUTE
	}
	return PAGE_NOACCESS
}

// PermsFromProtect renders a PAGE_* value in /proc maps style
func PermsFromProtect(protect uint32) string {
	item := MemoryMapItem{State: MEM_COMMIT, Protect: protect}
	perms := []byte("---p")
	if item.IsReadable() {
		perms[0] = 'r'
	}
	if item.IsWritable() {
		perms[1] = 'w'
	}
	switch protect & 0xFF {
	case PAGE_EXECUTE, PAGE_EXECUTE_READ, PAGE_EXECUTE_READWRITE, PAGE_EXECUTE_WRITECOPY:
		perms[2] = 'x'
	}
	return string(perms)
}

// SortByAddress orders a memory map for FindRegion
func SortByAddress(memoryMap []MemoryMapItem) {
	sort.Slice(memoryMap, func(i, j int) bool {
		return memoryMap[i].Address < memoryMap[j].Address
	})
}

// FindRegion returns the region containing addr. memoryMap must be sorted by address.
func FindRegion(addr uint64, memoryMap []MemoryMapItem) *MemoryMapItem {
	i := sort.Search(len(memoryMap), func(i int) bool {
		return memoryMap[i].End() > addr
	})
	if i < len(memoryMap) && memoryMap[i].Address <= addr {
		return &memoryMap[i]
	}

	return nil
}

// QuerySorted answers a VirtualQueryEx-style question from a sorted map. Unmapped
// addresses yield a MEM_FREE item covering the gap to the next region, or to the
// top of the address space when no region follows.
func QuerySorted(addr uint64, memoryMap []MemoryMapItem) MemoryMapItem {
	i := sort.Search(len(memoryMap), func(i int) bool {
		return memoryMap[i].End() > addr
	})
	if i < len(memoryMap) && memoryMap[i].Address <= addr {
		return memoryMap[i]
	}

	end := ^uint64(0)
	if i < len(memoryMap) {
		end = memoryMap[i].Address
	}
	return MemoryMapItem{
		Address: addr,
		Size:    uint(end - addr),
		State:   MEM_FREE,
		Protect: PAGE_NOACCESS,
		Perms:   "---p",
	}
}
