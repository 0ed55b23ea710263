// Package process provides the foreign-memory vocabulary shared by every backend
package process

import "errors"

var (
	// ErrProcessNotFound is returned at attach time when no process matches the requested name.
	ErrProcessNotFound = errors.New("process not found")

	// ErrMemoryRead is returned when a page is not committed, not readable, guarded,
	// or when the OS read itself fails.
	ErrMemoryRead = errors.New("memory read failed")

	// ErrAddressNotMapped is returned when a memory address is not found within any mapped region of a process.
	ErrAddressNotMapped = errors.New("address not mapped")

	// ErrProcessNotOpen is returned when an operation requiring an open process is attempted
	// before the process has been successfully opened or after it has been closed.
	ErrProcessNotOpen = errors.New("process not open")

	ErrInvalidPointer = errors.New("invalid pointer read")

	// ErrUnsupported is returned by backends that cannot perform a remote-execution primitive.
	ErrUnsupported = errors.New("operation not supported by backend")

	ErrArchitectureUnknown = errors.New("architecture could not be determined")

	ErrModuleNotFound = errors.New("module not found")
)
