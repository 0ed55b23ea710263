package process

import (
	"time"

	"ilmem/process/memory_map"
)

// Process is the interface that defines operations for interacting with a system process
type Process interface {
	// Open opens a process with the given PID for memory operations
	Open(pid ProcessID) error

	// Close closes the process and releases resources
	Close() error

	// GetPID returns the process ID
	GetPID() ProcessID

	// ModuleBase returns the load address of the named module, matched case-insensitively
	ModuleBase(name string) (ProcessMemoryAddress, error)

	// QueryRegion describes the region containing addr. When addr falls in unmapped
	// space the returned item is a free region extending to the next mapping.
	QueryRegion(addr ProcessMemoryAddress) (memory_map.MemoryMapItem, error)

	// ReadMemory reads memory from the process at the specified address
	ReadMemory(addr ProcessMemoryAddress, size ProcessMemorySize) ([]byte, error)

	// WriteMemory writes data to the process memory at the specified address
	WriteMemory(addr ProcessMemoryAddress, data []byte) error
}

// ThreadHandle identifies a thread created in a remote process
type ThreadHandle uintptr

// RemoteExecutor is implemented by backends able to allocate memory and start threads in the target
type RemoteExecutor interface {
	AllocMemory(size ProcessMemorySize) (ProcessMemoryAddress, error)
	FreeMemory(addr ProcessMemoryAddress) error
	CreateRemoteThread(start, param ProcessMemoryAddress) (ThreadHandle, error)
	// WaitThread waits for the thread to exit and returns its exit code
	WaitThread(h ThreadHandle, timeout time.Duration) (uint32, error)
}

// ArchReporter is implemented by backends that can ask the OS for the target's pointer width
type ArchReporter interface {
	ReportedArch() (Arch, error)
}

// Wow64Reporter is implemented by backends that can run the WOW64 compatibility check
type Wow64Reporter interface {
	IsWow64() (bool, error)
}
