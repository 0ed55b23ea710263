//go:build linux

package accessor

import (
	"ilmem/process"
	"ilmem/process_linux"
)

func newBackend() (process.Process, error) {
	return process_linux.New(), nil
}
