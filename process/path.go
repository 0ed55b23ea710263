package process

import (
	"encoding/binary"
	"fmt"
	"unsafe"
)

// MemoryReader is the minimal read capability shared by backends and the accessor
type MemoryReader interface {
	ReadMemory(addr ProcessMemoryAddress, size ProcessMemorySize) ([]byte, error)
}

// DecodePointer decodes a little-endian pointer of the given width from b
func DecodePointer(b []byte, arch Arch) ProcessMemoryAddress {
	if arch.Is64() {
		return ProcessMemoryAddress(binary.LittleEndian.Uint64(b))
	}
	return ProcessMemoryAddress(binary.LittleEndian.Uint32(b))
}

// ReadPointer reads one pointer of the target's width
func ReadPointer(r MemoryReader, arch Arch, addr ProcessMemoryAddress) (ProcessMemoryAddress, error) {
	data, err := r.ReadMemory(addr, ProcessMemorySize(arch.PointerSize()))
	if err != nil {
		return 0, err
	}
	return DecodePointer(data, arch), nil
}

// ReadPath reads a value of type T at the end of a pointer path.
// It starts at base, adds the first offset, reads a pointer, adds the next offset, reads a pointer, etc.
// The last offset is added to the final pointer, and then T is read from that address.
// If offsets is empty, it reads T from base.
func ReadPath[T any](r MemoryReader, arch Arch, base ProcessMemoryAddress, offsets ...uint64) (T, error) {
	var zero T
	currentAddr := base

	for i := 0; i < len(offsets)-1; i++ {
		ptrAddr := currentAddr.Add(offsets[i])

		ptrVal, err := ReadPointer(r, arch, ptrAddr)
		if err != nil {
			return zero, fmt.Errorf("failed to read pointer at offset %d (addr 0x%x): %w", i, ptrAddr, err)
		}

		if ptrVal == 0 {
			return zero, fmt.Errorf("pointer at offset %d (addr 0x%x) is null: %w", i, ptrAddr, ErrInvalidPointer)
		}

		currentAddr = ptrVal
	}

	finalAddr := currentAddr
	if len(offsets) > 0 {
		finalAddr = currentAddr.Add(offsets[len(offsets)-1])
	}

	val, err := Read[T](r, finalAddr)
	if err != nil {
		return zero, fmt.Errorf("failed to read final value at 0x%x: %w", finalAddr, err)
	}

	return val, nil
}

// Read reads a single fixed-size value of type T. T must not contain Go pointers.
func Read[T any](r MemoryReader, addr ProcessMemoryAddress) (T, error) {
	var t T
	size := ProcessMemorySize(unsafe.Sizeof(t))
	if size == 0 {
		return t, nil
	}

	data, err := r.ReadMemory(addr, size)
	if err != nil {
		return t, err
	}

	copyTo(&t, data)
	return t, nil
}

// copyTo copies bytes to *T
func copyTo[T any](dst *T, src []byte) {
	size := int(unsafe.Sizeof(*dst))
	if len(src) < size {
		return
	}

	dstBytes := unsafe.Slice((*byte)(unsafe.Pointer(dst)), size)
	copy(dstBytes, src)
}
