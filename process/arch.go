package process

import "fmt"

// Arch is the pointer width of a target, in bytes.
type Arch int

const (
	ArchUnknown Arch = 0
	Arch32      Arch = 4
	Arch64      Arch = 8
)

func (a Arch) PointerSize() int {
	return int(a)
}

func (a Arch) Is64() bool {
	return a == Arch64
}

func (a Arch) Valid() bool {
	return a == Arch32 || a == Arch64
}

// HeaderSize is the distance between an object's start and its first field.
func (a Arch) HeaderSize() uint64 {
	if a.Is64() {
		return 0x10
	}
	return 0x8
}

// VectorOffset is the distance between an array object's start and its first element.
func (a Arch) VectorOffset() uint64 {
	if a.Is64() {
		return 0x20
	}
	return 0x10
}

// Dictionary<K,V> field layout: buckets, entries, count.
func (a Arch) DictEntriesOffset() uint64 {
	return uint64(a)
}

func (a Arch) DictCountOffset() uint64 {
	return 2 * uint64(a)
}

// DictEntrySize covers {hashCode int32, next int32, key int32, value ptr} with alignment.
func (a Arch) DictEntrySize() uint64 {
	if a.Is64() {
		return 0x18
	}
	return 0x10
}

func (a Arch) DictKeyOffset() uint64 {
	return 0x8
}

func (a Arch) DictValueOffset() uint64 {
	if a.Is64() {
		return 0x10
	}
	return 0xC
}

// MaxUserAddress bounds region enumeration.
func (a Arch) MaxUserAddress() ProcessMemoryAddress {
	if a.Is64() {
		return 0x7FFFFFFFFFFF
	}
	return 0x7FFFFFFF
}

func (a Arch) String() string {
	switch a {
	case Arch32:
		return "x86"
	case Arch64:
		return "x64"
	}
	return fmt.Sprintf("arch(%d)", int(a))
}
