package textview

import (
	"encoding/binary"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"ilmem/process/memory_map"

	"github.com/Moonlight-Companies/gologger/coloransi"
)

// Annotator names a pointer-sized value, or returns "" when it means nothing
type Annotator func(v uint64) string

// DumpOptions controls Dump. PointerSize is 4 or 8; zero means 8.
type DumpOptions struct {
	Base        uint64
	PointerSize int
	Annotate    Annotator
	Color       bool
}

// Dump writes data one pointer-sized slot per line: address, offset from the
// start, raw bytes, printable text and the annotation of the slot's value
//
//	0000000011001010  +0x010  00 10 00 10 00 00 00 00  ........  module+0x1000
func Dump(w io.Writer, data []byte, opts DumpOptions) error {
	size := opts.PointerSize
	if size != 4 {
		size = 8
	}

	for off := 0; off+size <= len(data); off += size {
		slot := data[off : off+size]

		var v uint64
		if size == 4 {
			v = uint64(binary.LittleEndian.Uint32(slot))
		} else {
			v = binary.LittleEndian.Uint64(slot)
		}

		hex := make([]string, size)
		for i, b := range slot {
			hex[i] = fmt.Sprintf("%02x", b)
			if opts.Color && b == 0 {
				hex[i] = coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, hex[i])
			}
		}

		var note string
		if opts.Annotate != nil {
			note = opts.Annotate(v)
		}
		if note != "" && opts.Color {
			note = coloransi.Color(coloransi.ColorOrange, coloransi.ColorPurple, note)
		}

		line := fmt.Sprintf("%016x  +0x%03x  %s  %s  %s", opts.Base+uint64(off), off, strings.Join(hex, " "), printable(slot), note)
		if _, err := fmt.Fprintln(w, strings.TrimRight(line, " ")); err != nil {
			return err
		}
	}
	return nil
}

func printable(b []byte) string {
	out := make([]byte, len(b))
	for i, c := range b {
		if c >= 0x20 && c < 0x7f {
			out[i] = c
		} else {
			out[i] = '.'
		}
	}
	return string(out)
}

// RegionAnnotator labels values that fall inside one of the regions. Values
// inside a file-backed region are shown as file+offset.
func RegionAnnotator(regions []memory_map.MemoryMapItem) Annotator {
	return func(v uint64) string {
		if v == 0 {
			return ""
		}
		for _, r := range regions {
			if !r.Contains(v) {
				continue
			}
			if r.Path != "" {
				return fmt.Sprintf("%s+0x%x", filepath.Base(r.Path), v-r.Address)
			}
			if r.Perms != "" {
				return "-> " + r.Perms
			}
			return fmt.Sprintf("-> protect 0x%x", r.Protect)
		}
		return ""
	}
}
