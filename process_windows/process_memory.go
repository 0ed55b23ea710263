//go:build windows

package process_windows

import (
	"fmt"
	"unsafe"

	"ilmem/process"
	"ilmem/process/memory_map"

	"golang.org/x/sys/windows"
)

func (p *WindowsProcess) QueryRegion(addr process.ProcessMemoryAddress) (memory_map.MemoryMapItem, error) {
	handle, err := p.openHandle()
	if err != nil {
		return memory_map.MemoryMapItem{}, err
	}

	var mbi windows.MemoryBasicInformation
	if err := windows.VirtualQueryEx(handle, uintptr(addr), &mbi, unsafe.Sizeof(mbi)); err != nil {
		return memory_map.MemoryMapItem{}, fmt.Errorf("VirtualQueryEx 0x%x failed: %w", addr, err)
	}

	return memory_map.MemoryMapItem{
		Address: uint64(mbi.BaseAddress),
		Size:    uint(mbi.RegionSize),
		State:   mbi.State,
		Protect: mbi.Protect,
		Perms:   memory_map.PermsFromProtect(mbi.Protect),
	}, nil
}

func (p *WindowsProcess) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	if size == 0 {
		return []byte{}, nil
	}

	handle, err := p.openHandle()
	if err != nil {
		return nil, err
	}

	buf := make([]byte, size)
	var bytesRead uintptr
	if err := windows.ReadProcessMemory(handle, uintptr(addr), &buf[0], uintptr(size), &bytesRead); err != nil {
		return nil, fmt.Errorf("ReadProcessMemory 0x%x failed: %v: %w", addr, err, process.ErrMemoryRead)
	}

	if bytesRead != uintptr(size) {
		return nil, fmt.Errorf("read incomplete: expected %d, got %d: %w", size, bytesRead, process.ErrMemoryRead)
	}

	return buf, nil
}

func (p *WindowsProcess) WriteMemory(addr process.ProcessMemoryAddress, data []byte) error {
	if len(data) == 0 {
		return nil
	}

	handle, err := p.openHandle()
	if err != nil {
		return err
	}

	var written uintptr
	if err := windows.WriteProcessMemory(handle, uintptr(addr), &data[0], uintptr(len(data)), &written); err != nil {
		return fmt.Errorf("WriteProcessMemory 0x%x failed: %w", addr, err)
	}
	if written != uintptr(len(data)) {
		return fmt.Errorf("write incomplete: expected %d, got %d", len(data), written)
	}
	return nil
}
