// Package pe resolves exported function addresses of a module mapped in a foreign
// process. It reads the loaded image through a process.MemoryReader and never
// touches the file on disk.
package pe

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"ilmem/process"
)

var (
	ErrBadImage       = errors.New("not a PE image")
	ErrExportNotFound = errors.New("export not found")
)

const (
	optionalHeaderOffset = 24 // Signature + IMAGE_FILE_HEADER
	magicPE32            = 0x10b
	magicPE32Plus        = 0x20b
	dataDirectoryPE32    = 96
	dataDirectoryPE32P   = 112

	namesChunk   = 0x400 // name RVAs fetched per read
	nameChunk    = 64
	maxNameBytes = 512
)

// ExportDirectory is the subset of IMAGE_EXPORT_DIRECTORY needed for name lookups
type ExportDirectory struct {
	RVA                   uint32
	Size                  uint32
	NumberOfFunctions     uint32
	NumberOfNames         uint32
	AddressOfFunctions    uint32
	AddressOfNames        uint32
	AddressOfNameOrdinals uint32
}

func readU16(r process.MemoryReader, addr process.ProcessMemoryAddress) (uint16, error) {
	b, err := r.ReadMemory(addr, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func readU32(r process.MemoryReader, addr process.ProcessMemoryAddress) (uint32, error) {
	b, err := r.ReadMemory(addr, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadExportDirectory validates the DOS and NT headers and returns the export directory
func ReadExportDirectory(r process.MemoryReader, base process.ProcessMemoryAddress) (ExportDirectory, error) {
	var dir ExportDirectory

	dos, err := r.ReadMemory(base, 0x40)
	if err != nil {
		return dir, fmt.Errorf("read DOS header: %w", err)
	}
	if dos[0] != 'M' || dos[1] != 'Z' {
		return dir, fmt.Errorf("%w: missing MZ", ErrBadImage)
	}

	nt := base.Add(uint64(binary.LittleEndian.Uint32(dos[0x3C:])))
	sig, err := r.ReadMemory(nt, 4)
	if err != nil {
		return dir, fmt.Errorf("read NT signature: %w", err)
	}
	if !bytes.Equal(sig, []byte{'P', 'E', 0, 0}) {
		return dir, fmt.Errorf("%w: missing PE signature", ErrBadImage)
	}

	opt := nt.Add(optionalHeaderOffset)
	magic, err := readU16(r, opt)
	if err != nil {
		return dir, fmt.Errorf("read optional header magic: %w", err)
	}

	var dataDir process.ProcessMemoryAddress
	switch magic {
	case magicPE32:
		dataDir = opt.Add(dataDirectoryPE32)
	case magicPE32Plus:
		dataDir = opt.Add(dataDirectoryPE32P)
	default:
		return dir, fmt.Errorf("%w: optional header magic 0x%x", ErrBadImage, magic)
	}

	entry, err := r.ReadMemory(dataDir, 8)
	if err != nil {
		return dir, fmt.Errorf("read export data directory: %w", err)
	}
	dir.RVA = binary.LittleEndian.Uint32(entry)
	dir.Size = binary.LittleEndian.Uint32(entry[4:])
	if dir.RVA == 0 {
		return dir, fmt.Errorf("%w: module has no export directory", ErrExportNotFound)
	}

	exp, err := r.ReadMemory(base.Add(uint64(dir.RVA)), 40)
	if err != nil {
		return dir, fmt.Errorf("read export directory: %w", err)
	}
	dir.NumberOfFunctions = binary.LittleEndian.Uint32(exp[20:])
	dir.NumberOfNames = binary.LittleEndian.Uint32(exp[24:])
	dir.AddressOfFunctions = binary.LittleEndian.Uint32(exp[28:])
	dir.AddressOfNames = binary.LittleEndian.Uint32(exp[32:])
	dir.AddressOfNameOrdinals = binary.LittleEndian.Uint32(exp[36:])

	return dir, nil
}

// readCString reads a NUL-terminated ASCII string in small chunks
func readCString(r process.MemoryReader, addr process.ProcessMemoryAddress) (string, error) {
	var out []byte
	for len(out) < maxNameBytes {
		chunk, err := r.ReadMemory(addr.Add(uint64(len(out))), nameChunk)
		if err != nil {
			// the name may end right before an unmapped page, retry bytewise
			chunk, err = r.ReadMemory(addr.Add(uint64(len(out))), 1)
			if err != nil {
				return "", err
			}
		}
		if i := bytes.IndexByte(chunk, 0); i >= 0 {
			return string(append(out, chunk[:i]...)), nil
		}
		out = append(out, chunk...)
	}
	return string(out), nil
}

// ExportAddress returns the absolute address of the export with the given name.
// Forwarded exports are reported as not found.
func ExportAddress(r process.MemoryReader, base process.ProcessMemoryAddress, name string) (process.ProcessMemoryAddress, error) {
	dir, err := ReadExportDirectory(r, base)
	if err != nil {
		return 0, err
	}

	names := base.Add(uint64(dir.AddressOfNames))
	for start := uint32(0); start < dir.NumberOfNames; start += namesChunk {
		count := min(namesChunk, dir.NumberOfNames-start)
		raw, err := r.ReadMemory(names.Add(uint64(start)*4), process.ProcessMemorySize(count*4))
		if err != nil {
			return 0, fmt.Errorf("read name table: %w", err)
		}

		for i := range count {
			nameRVA := binary.LittleEndian.Uint32(raw[i*4:])
			candidate, err := readCString(r, base.Add(uint64(nameRVA)))
			if err != nil || candidate != name {
				continue
			}

			index := start + i
			ordinal, err := readU16(r, base.Add(uint64(dir.AddressOfNameOrdinals)+uint64(index)*2))
			if err != nil {
				return 0, fmt.Errorf("read ordinal: %w", err)
			}
			if uint32(ordinal) >= dir.NumberOfFunctions {
				return 0, fmt.Errorf("%w: ordinal %d out of range", ErrBadImage, ordinal)
			}

			funcRVA, err := readU32(r, base.Add(uint64(dir.AddressOfFunctions)+uint64(ordinal)*4))
			if err != nil {
				return 0, fmt.Errorf("read function RVA: %w", err)
			}
			if funcRVA >= dir.RVA && funcRVA < dir.RVA+dir.Size {
				return 0, fmt.Errorf("%w: %s is forwarded", ErrExportNotFound, name)
			}
			return base.Add(uint64(funcRVA)), nil
		}
	}

	return 0, fmt.Errorf("%w: %s", ErrExportNotFound, name)
}
