//go:build windows

package process_windows

import (
	"fmt"
	"time"
	"unsafe"

	"ilmem/process"

	"golang.org/x/sys/windows"
)

var (
	modkernel32            = windows.NewLazySystemDLL("kernel32.dll")
	procVirtualAllocEx     = modkernel32.NewProc("VirtualAllocEx")
	procVirtualFreeEx      = modkernel32.NewProc("VirtualFreeEx")
	procCreateRemoteThread = modkernel32.NewProc("CreateRemoteThread")
	procGetExitCodeThread  = modkernel32.NewProc("GetExitCodeThread")
)

const (
	MEM_COMMIT             = 0x1000
	MEM_RESERVE            = 0x2000
	MEM_RELEASE            = 0x8000
	PAGE_EXECUTE_READWRITE = 0x40

	waitObject0 = 0x0
	waitTimeout = 0x102
)

func (p *WindowsProcess) AllocMemory(size process.ProcessMemorySize) (process.ProcessMemoryAddress, error) {
	handle, err := p.openHandle()
	if err != nil {
		return 0, err
	}

	addr, _, callErr := procVirtualAllocEx.Call(uintptr(handle), 0, uintptr(size), MEM_COMMIT|MEM_RESERVE, PAGE_EXECUTE_READWRITE)
	if addr == 0 {
		return 0, fmt.Errorf("VirtualAllocEx failed: %v", callErr)
	}
	p.log.Debugln("allocated", size, "bytes at", process.ProcessMemoryAddress(addr).ToString())
	return process.ProcessMemoryAddress(addr), nil
}

func (p *WindowsProcess) FreeMemory(addr process.ProcessMemoryAddress) error {
	handle, err := p.openHandle()
	if err != nil {
		return err
	}

	ret, _, callErr := procVirtualFreeEx.Call(uintptr(handle), uintptr(addr), 0, MEM_RELEASE)
	if ret == 0 {
		return fmt.Errorf("VirtualFreeEx failed: %v", callErr)
	}
	return nil
}

func (p *WindowsProcess) CreateRemoteThread(start, param process.ProcessMemoryAddress) (process.ThreadHandle, error) {
	handle, err := p.openHandle()
	if err != nil {
		return 0, err
	}

	th, _, callErr := procCreateRemoteThread.Call(uintptr(handle), 0, 0, uintptr(start), uintptr(param), 0, 0)
	if th == 0 {
		return 0, fmt.Errorf("CreateRemoteThread failed: %v", callErr)
	}
	return process.ThreadHandle(th), nil
}

// WaitThread waits for the thread, returns its exit code and closes the handle
func (p *WindowsProcess) WaitThread(h process.ThreadHandle, timeout time.Duration) (uint32, error) {
	th := windows.Handle(h)
	defer windows.CloseHandle(th)

	ms := uint32(windows.INFINITE)
	if timeout >= 0 {
		ms = uint32(timeout.Milliseconds())
	}

	event, err := windows.WaitForSingleObject(th, ms)
	if err != nil {
		return 0, fmt.Errorf("WaitForSingleObject failed: %w", err)
	}
	if event == waitTimeout {
		return 0, fmt.Errorf("remote thread did not exit within %s", timeout)
	}
	if event != waitObject0 {
		return 0, fmt.Errorf("WaitForSingleObject returned 0x%x", event)
	}

	var code uint32
	ret, _, callErr := procGetExitCodeThread.Call(uintptr(th), uintptr(unsafe.Pointer(&code)))
	if ret == 0 {
		return 0, fmt.Errorf("GetExitCodeThread failed: %v", callErr)
	}
	return code, nil
}
