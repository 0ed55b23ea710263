package accessor

import (
	"encoding/binary"
	"fmt"
	"strconv"

	"ilmem/process"
)

const (
	peMagic32 = 0x10b
	peMagic64 = 0x20b
)

// DetectArch decides the target's pointer width. It asks the OS first, then
// runs the WOW64 check, then probes the module image. The first conclusive
// answer wins; the returned string names it.
func DetectArch(proc process.Process, base process.ProcessMemoryAddress) (process.Arch, string, error) {
	if r, ok := proc.(process.ArchReporter); ok {
		if arch, err := r.ReportedArch(); err == nil && arch.Valid() {
			return arch, "os", nil
		}
	}

	if r, ok := proc.(process.Wow64Reporter); ok {
		if wow, err := r.IsWow64(); err == nil {
			if wow {
				return process.Arch32, "wow64", nil
			}
			// a native process on a 64-bit host; only provable from a 64-bit reader
			if strconv.IntSize == 64 {
				return process.Arch64, "wow64", nil
			}
		}
	}

	arch, err := probeArch(proc, base)
	if err != nil {
		return process.ArchUnknown, "", err
	}
	return arch, "probe", nil
}

// probeArch treats a module mapped above 4 GiB as 64-bit. Otherwise it reads
// the optional-header magic of the mapped image.
func probeArch(r process.MemoryReader, base process.ProcessMemoryAddress) (process.Arch, error) {
	if uint64(base)>>32 != 0 {
		return process.Arch64, nil
	}

	dos, err := r.ReadMemory(base, 0x40)
	if err != nil {
		return process.ArchUnknown, fmt.Errorf("probe DOS header: %w: %w", process.ErrArchitectureUnknown, err)
	}
	if dos[0] != 'M' || dos[1] != 'Z' {
		return process.ArchUnknown, fmt.Errorf("probe: no image at %s: %w", base.ToString(), process.ErrArchitectureUnknown)
	}

	nt := base.Add(uint64(binary.LittleEndian.Uint32(dos[0x3C:])))
	hdr, err := r.ReadMemory(nt, 26)
	if err != nil {
		return process.ArchUnknown, fmt.Errorf("probe NT header: %w: %w", process.ErrArchitectureUnknown, err)
	}

	switch binary.LittleEndian.Uint16(hdr[24:]) {
	case peMagic64:
		return process.Arch64, nil
	case peMagic32:
		return process.Arch32, nil
	}
	return process.ArchUnknown, process.ErrArchitectureUnknown
}
