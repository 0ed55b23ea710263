//go:build windows

package accessor

import (
	"ilmem/process"
	"ilmem/process_windows"
)

func newBackend() (process.Process, error) {
	return process_windows.New(), nil
}
