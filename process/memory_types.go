package process

import (
	"fmt"
)

// ProcessMemoryAddress represents a memory address within a process
type ProcessMemoryAddress uint64

func (pma ProcessMemoryAddress) ToString() string {
	return fmt.Sprintf("0x%X", uint64(pma))
}

func (pma ProcessMemoryAddress) String() string {
	return pma.ToString()
}

// Add returns the address offset by off bytes
func (pma ProcessMemoryAddress) Add(off uint64) ProcessMemoryAddress {
	return pma + ProcessMemoryAddress(off)
}

// IsNull reports whether the address is the null sentinel
func (pma ProcessMemoryAddress) IsNull() bool {
	return pma == 0
}

// ProcessMemorySize represents a size of memory region
type ProcessMemorySize uint

func (pms ProcessMemorySize) ToString() string {
	return fmt.Sprintf("%d bytes", uint(pms))
}
