//go:build linux

package process_linux

import (
	"fmt"

	"ilmem/process"
	"ilmem/process/memory_map"

	"golang.org/x/sys/unix"
)

// regionCheck snapshots the pid and the region holding addr under the lock
func (p *LinuxProcess) regionCheck(addr process.ProcessMemoryAddress) (process.ProcessID, *memory_map.MemoryMapItem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pid == 0 {
		return 0, nil, process.ErrProcessNotOpen
	}
	item := p.regionFor(addr)
	if item == nil {
		return 0, nil, fmt.Errorf("0x%x: %w", uint64(addr), process.ErrAddressNotMapped)
	}
	return p.pid, item, nil
}

// ReadMemory copies size bytes out of the target with one process_vm_readv
// call. A short transfer is a failed read; the target may have unmapped the
// range since the maps were parsed.
func (p *LinuxProcess) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	if size == 0 {
		return []byte{}, nil
	}

	pid, item, err := p.regionCheck(addr)
	if err != nil {
		return nil, err
	}
	if !item.IsReadable() {
		return nil, fmt.Errorf("0x%x in %s region: %w", uint64(addr), item.Perms, process.ErrMemoryRead)
	}

	buf := make([]byte, size)
	n, err := unix.ProcessVMReadv(int(pid),
		[]unix.Iovec{{Base: &buf[0], Len: uint64(size)}},
		[]unix.RemoteIovec{{Base: uintptr(addr), Len: int(size)}},
		0)
	if err != nil {
		return nil, fmt.Errorf("process_vm_readv 0x%x: %v: %w", uint64(addr), err, process.ErrMemoryRead)
	}
	if n != int(size) {
		return nil, fmt.Errorf("process_vm_readv 0x%x: %d of %d bytes: %w", uint64(addr), n, size, process.ErrMemoryRead)
	}
	return buf, nil
}

// WriteMemory copies data into a writable region of the target
func (p *LinuxProcess) WriteMemory(addr process.ProcessMemoryAddress, data []byte) error {
	if len(data) == 0 {
		return nil
	}

	pid, item, err := p.regionCheck(addr)
	if err != nil {
		return err
	}
	if !item.IsWritable() {
		return fmt.Errorf("region at 0x%x is %s, not writable", item.Address, item.Perms)
	}

	local := append([]byte(nil), data...)
	n, err := unix.ProcessVMWritev(int(pid),
		[]unix.Iovec{{Base: &local[0], Len: uint64(len(local))}},
		[]unix.RemoteIovec{{Base: uintptr(addr), Len: len(local)}},
		0)
	if err != nil {
		return fmt.Errorf("process_vm_writev 0x%x: %w", uint64(addr), err)
	}
	if n != len(data) {
		return fmt.Errorf("process_vm_writev 0x%x: wrote %d of %d bytes", uint64(addr), n, len(data))
	}
	return nil
}
