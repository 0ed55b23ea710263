package process

// ProcessID represents a unique identifier for a process
type ProcessID int

// ProcessInfo contains basic information about a process
type ProcessInfo struct {
	PID  ProcessID // Process ID
	PPID ProcessID // Parent Process ID
	Name string    // Process name as reported by the OS
	Exe  string    // Path to the executable, may be empty when access is denied
}

// Module describes one loaded image inside a process
type Module struct {
	Name string
	Base ProcessMemoryAddress
	Size ProcessMemorySize
}
