package pe

import (
	"errors"
	"testing"

	"ilmem/process"
	"ilmem/process/memory_map"
	"ilmem/process_blob"
)

const imageBase = process.ProcessMemoryAddress(0x10000000)

func buildImage(t *testing.T, magic uint16) *process_blob.ProcessBlob {
	t.Helper()

	p := process_blob.NewProcessBlob(process.Arch64)
	p.Map(imageBase, 0x2000, memory_map.PAGE_READONLY)

	p.Put(imageBase, []byte{'M', 'Z'})
	p.PutU32(imageBase+0x3C, 0x80)
	p.Put(imageBase+0x80, []byte{'P', 'E', 0, 0})
	opt := imageBase + 0x80 + optionalHeaderOffset
	p.PutU16(opt, magic)

	dataDir := opt + dataDirectoryPE32
	if magic == magicPE32Plus {
		dataDir = opt + dataDirectoryPE32P
	}
	p.PutU32(dataDir, 0x1000)
	p.PutU32(dataDir+4, 0x100)

	exp := imageBase + 0x1000
	p.PutU32(exp+20, 2)
	p.PutU32(exp+24, 2)
	p.PutU32(exp+28, 0x1100)
	p.PutU32(exp+32, 0x1200)
	p.PutU32(exp+36, 0x1300)

	p.PutU32(imageBase+0x1100, 0x1800)
	p.PutU32(imageBase+0x1104, 0x1900)

	p.PutU32(imageBase+0x1200, 0x1400)
	p.PutU32(imageBase+0x1204, 0x1440)
	p.Put(imageBase+0x1400, append([]byte("il2cpp_domain_get"), 0))
	p.Put(imageBase+0x1440, append([]byte("il2cpp_thread_attach"), 0))

	p.PutU16(imageBase+0x1300, 1)
	p.PutU16(imageBase+0x1302, 0)
	return p
}

func TestExportAddress(t *testing.T) {
	for _, magic := range []uint16{magicPE32, magicPE32Plus} {
		p := buildImage(t, magic)

		addr, err := ExportAddress(p, imageBase, "il2cpp_domain_get")
		if err != nil {
			t.Fatalf("magic 0x%x: ExportAddress: %v", magic, err)
		}
		if addr != imageBase+0x1900 {
			t.Fatalf("magic 0x%x: il2cpp_domain_get = %s, want %s", magic, addr.ToString(), (imageBase + 0x1900).ToString())
		}

		addr, err = ExportAddress(p, imageBase, "il2cpp_thread_attach")
		if err != nil {
			t.Fatalf("magic 0x%x: ExportAddress: %v", magic, err)
		}
		if addr != imageBase+0x1800 {
			t.Fatalf("magic 0x%x: il2cpp_thread_attach = %s", magic, addr.ToString())
		}
	}
}

func TestExportAddressNotFound(t *testing.T) {
	p := buildImage(t, magicPE32Plus)

	addr, err := ExportAddress(p, imageBase, "il2cpp_domain")
	if !errors.Is(err, ErrExportNotFound) {
		t.Fatalf("expected ErrExportNotFound, got %v", err)
	}
	if addr != 0 {
		t.Fatalf("expected null address, got %s", addr.ToString())
	}
}

func TestExportAddressBadImage(t *testing.T) {
	p := buildImage(t, magicPE32Plus)
	p.Put(imageBase, []byte{'Z', 'M'})

	if _, err := ExportAddress(p, imageBase, "il2cpp_domain_get"); !errors.Is(err, ErrBadImage) {
		t.Fatalf("expected ErrBadImage, got %v", err)
	}
}
