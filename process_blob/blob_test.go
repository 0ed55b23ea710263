package process_blob

import (
	"errors"
	"testing"

	"ilmem/process"
	"ilmem/process/memory_map"
)

func TestReadWriteRespectProtection(t *testing.T) {
	p := NewProcessBlob(process.Arch32)
	p.Map(0x1000, 0x100, memory_map.PAGE_READONLY)
	p.Map(0x2000, 0x100, memory_map.PAGE_READWRITE)
	p.Map(0x3000, 0x100, memory_map.PAGE_NOACCESS)

	p.PutPointer(0x1010, 0xdeadbeef)
	b, err := p.ReadMemory(0x1010, 4)
	if err != nil || process.DecodePointer(b, process.Arch32) != 0xdeadbeef {
		t.Fatalf("expected the put pointer, got %x err=%v", b, err)
	}

	if err := p.WriteMemory(0x1000, []byte{1}); !errors.Is(err, process.ErrMemoryRead) {
		t.Fatalf("read-only region should refuse writes, got %v", err)
	}
	if err := p.WriteMemory(0x2000, []byte{7}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if b, _ := p.ReadMemory(0x2000, 1); b[0] != 7 {
		t.Fatalf("expected the written byte, got %x", b)
	}

	if _, err := p.ReadMemory(0x3000, 1); !errors.Is(err, process.ErrMemoryRead) {
		t.Fatalf("no-access region should refuse reads, got %v", err)
	}
	if _, err := p.ReadMemory(0x10f0, 0x20); !errors.Is(err, process.ErrAddressNotMapped) {
		t.Fatalf("read across a region end should fail, got %v", err)
	}
	if _, err := p.ReadMemory(0x4000, 1); !errors.Is(err, process.ErrAddressNotMapped) {
		t.Fatalf("unmapped read should fail, got %v", err)
	}
}

func TestReadCount(t *testing.T) {
	p := NewProcessBlob(process.Arch64)
	p.Map(0x1000, 0x100, memory_map.PAGE_READWRITE)

	p.PutU64(0x1000, 1)
	if p.ReadCount() != 0 {
		t.Fatalf("puts must not count as reads")
	}
	p.ReadMemory(0x1000, 8)
	p.ReadMemory(0x5000, 8)
	if n := p.ReadCount(); n != 2 {
		t.Fatalf("expected 2 reads, got %d", n)
	}
	p.ResetReadCount()
	if p.ReadCount() != 0 {
		t.Fatalf("reset should zero the counter")
	}
}

func TestOverlappingMapPanics(t *testing.T) {
	p := NewProcessBlob(process.Arch64)
	p.Map(0x1000, 0x100, memory_map.PAGE_READWRITE)

	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic")
		}
	}()
	p.Map(0x10f0, 0x100, memory_map.PAGE_READWRITE)
}

func TestSnapshotReload(t *testing.T) {
	p := NewProcessBlob(process.Arch64)
	p.Name = "Game.exe"
	p.Open(1234)
	p.Map(0x10000000, 0x1000, memory_map.PAGE_EXECUTE_READ)
	p.AddModule("GameAssembly.dll", 0x10000000, 0x1000)
	p.Map(0x20000000, 0x100, memory_map.PAGE_READWRITE)
	p.PutPointer(0x20000008, 0x10000040)

	dir := t.TempDir()
	if err := p.Save(dir); err != nil {
		t.Fatalf("save: %v", err)
	}
	q, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if q.Arch() != process.Arch64 || q.GetPID() != 1234 || q.Name != "Game.exe" {
		t.Fatalf("metadata not restored: %v %d %q", q.Arch(), q.GetPID(), q.Name)
	}
	if base, err := q.ModuleBase("gameassembly.dll"); err != nil || base != 0x10000000 {
		t.Fatalf("module base: 0x%x err=%v", uint64(base), err)
	}
	b, err := q.ReadMemory(0x20000008, 8)
	if err != nil || process.DecodePointer(b, process.Arch64) != 0x10000040 {
		t.Fatalf("region contents not restored: %x err=%v", b, err)
	}
	if item, _ := q.QueryRegion(0x10000010); !item.IsReadable() || item.IsHeap() {
		t.Fatalf("module region protection not restored: %+v", item)
	}
}
