//go:build !windows && !linux

package accessor

import (
	"fmt"
	"runtime"

	"ilmem/process"
)

func newBackend() (process.Process, error) {
	return nil, fmt.Errorf("no live backend for %s: %w", runtime.GOOS, process.ErrUnsupported)
}
