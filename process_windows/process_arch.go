//go:build windows

package process_windows

import (
	"ilmem/process"

	"golang.org/x/sys/windows"
)

const (
	IMAGE_FILE_MACHINE_UNKNOWN = 0x0
	IMAGE_FILE_MACHINE_I386    = 0x014c
	IMAGE_FILE_MACHINE_ARMNT   = 0x01c4
	IMAGE_FILE_MACHINE_AMD64   = 0x8664
	IMAGE_FILE_MACHINE_ARM64   = 0xaa64
)

func machineArch(machine uint16) process.Arch {
	switch machine {
	case IMAGE_FILE_MACHINE_I386, IMAGE_FILE_MACHINE_ARMNT:
		return process.Arch32
	case IMAGE_FILE_MACHINE_AMD64, IMAGE_FILE_MACHINE_ARM64:
		return process.Arch64
	}
	return process.ArchUnknown
}

// ReportedArch asks IsWow64Process2 for the process and native machine types.
// A process machine of UNKNOWN means the process is not running under WOW64.
func (p *WindowsProcess) ReportedArch() (process.Arch, error) {
	handle, err := p.openHandle()
	if err != nil {
		return process.ArchUnknown, err
	}

	var processMachine, nativeMachine uint16
	if err := windows.IsWow64Process2(handle, &processMachine, &nativeMachine); err != nil {
		return process.ArchUnknown, err
	}

	machine := processMachine
	if machine == IMAGE_FILE_MACHINE_UNKNOWN {
		machine = nativeMachine
	}

	arch := machineArch(machine)
	if arch == process.ArchUnknown {
		return arch, process.ErrArchitectureUnknown
	}
	return arch, nil
}

func (p *WindowsProcess) IsWow64() (bool, error) {
	handle, err := p.openHandle()
	if err != nil {
		return false, err
	}

	var wow64 bool
	if err := windows.IsWow64Process(handle, &wow64); err != nil {
		return false, err
	}
	return wow64, nil
}
