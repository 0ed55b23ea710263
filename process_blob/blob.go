package process_blob

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"ilmem/process"
	"ilmem/process/memory_map"
)

type region struct {
	item memory_map.MemoryMapItem
	data []byte
}

// ProcessBlob is an in-memory process made of sparse regions. It backs offline
// snapshots and synthetic targets, and counts every ReadMemory call.
type ProcessBlob struct {
	mu      sync.Mutex
	pid     process.ProcessID
	Name    string
	arch    process.Arch
	regions []region
	modules []process.Module
	reads   int
}

var _ process.Process = (*ProcessBlob)(nil)
var _ process.ArchReporter = (*ProcessBlob)(nil)

// NewProcessBlob creates an empty blob process for a target of the given width
func NewProcessBlob(arch process.Arch) *ProcessBlob {
	return &ProcessBlob{arch: arch}
}

func (p *ProcessBlob) Arch() process.Arch {
	return p.arch
}

// Map adds a zero-filled committed region
func (p *ProcessBlob) Map(addr process.ProcessMemoryAddress, size process.ProcessMemorySize, protect uint32) {
	p.MapData(addr, make([]byte, size), protect)
}

// MapData adds a committed region holding data. Overlapping an existing region panics.
func (p *ProcessBlob) MapData(addr process.ProcessMemoryAddress, data []byte, protect uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()

	item := memory_map.MemoryMapItem{
		Address: uint64(addr),
		Size:    uint(len(data)),
		State:   memory_map.MEM_COMMIT,
		Protect: protect,
		Perms:   memory_map.PermsFromProtect(protect),
	}
	for _, r := range p.regions {
		if item.Address < r.item.End() && r.item.Address < item.End() {
			panic(fmt.Sprintf("region %s overlaps %s", item, r.item))
		}
	}

	p.regions = append(p.regions, region{item: item, data: data})
	sort.Slice(p.regions, func(i, j int) bool {
		return p.regions[i].item.Address < p.regions[j].item.Address
	})
}

func (p *ProcessBlob) AddModule(name string, base process.ProcessMemoryAddress, size process.ProcessMemorySize) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.modules = append(p.modules, process.Module{Name: name, Base: base, Size: size})
}

func (p *ProcessBlob) Modules() []process.Module {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]process.Module(nil), p.modules...)
}

func (p *ProcessBlob) Open(pid process.ProcessID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pid = pid
	return nil
}

func (p *ProcessBlob) Close() error {
	return nil
}

func (p *ProcessBlob) GetPID() process.ProcessID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pid
}

func (p *ProcessBlob) ModuleBase(name string) (process.ProcessMemoryAddress, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range p.modules {
		if strings.EqualFold(m.Name, name) {
			return m.Base, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", process.ErrModuleNotFound, name)
}

func (p *ProcessBlob) ReportedArch() (process.Arch, error) {
	if !p.arch.Valid() {
		return process.ArchUnknown, process.ErrArchitectureUnknown
	}
	return p.arch, nil
}

func (p *ProcessBlob) items() []memory_map.MemoryMapItem {
	out := make([]memory_map.MemoryMapItem, len(p.regions))
	for i, r := range p.regions {
		out[i] = r.item
	}
	return out
}

// GetMemoryMap returns a copy of the region list
func (p *ProcessBlob) GetMemoryMap() []memory_map.MemoryMapItem {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.items()
}

func (p *ProcessBlob) QueryRegion(addr process.ProcessMemoryAddress) (memory_map.MemoryMapItem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return memory_map.QuerySorted(uint64(addr), p.items()), nil
}

func (p *ProcessBlob) find(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) (*region, uint64, error) {
	i := sort.Search(len(p.regions), func(i int) bool {
		return p.regions[i].item.End() > uint64(addr)
	})
	if i >= len(p.regions) || p.regions[i].item.Address > uint64(addr) {
		return nil, 0, process.ErrAddressNotMapped
	}
	r := &p.regions[i]
	offset := uint64(addr) - r.item.Address
	if offset+uint64(size) > uint64(len(r.data)) {
		return nil, 0, fmt.Errorf("read of %d bytes at 0x%x crosses region end: %w", size, addr, process.ErrAddressNotMapped)
	}
	return r, offset, nil
}

func (p *ProcessBlob) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reads++

	r, offset, err := p.find(addr, size)
	if err != nil {
		return nil, err
	}
	if !r.item.IsReadable() {
		return nil, fmt.Errorf("region 0x%x not readable: %w", r.item.Address, process.ErrMemoryRead)
	}

	result := make([]byte, size)
	copy(result, r.data[offset:offset+uint64(size)])
	return result, nil
}

func (p *ProcessBlob) WriteMemory(addr process.ProcessMemoryAddress, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	r, offset, err := p.find(addr, process.ProcessMemorySize(len(data)))
	if err != nil {
		return err
	}
	if !r.item.IsWritable() {
		return fmt.Errorf("region 0x%x not writable: %w", r.item.Address, process.ErrMemoryRead)
	}
	copy(r.data[offset:], data)
	return nil
}

// ReadCount returns how many ReadMemory calls the blob has served
func (p *ProcessBlob) ReadCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reads
}

func (p *ProcessBlob) ResetReadCount() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reads = 0
}

// Put writes raw bytes regardless of protection and without counting. It is
// meant for building synthetic images.
func (p *ProcessBlob) Put(addr process.ProcessMemoryAddress, data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	r, offset, err := p.find(addr, process.ProcessMemorySize(len(data)))
	if err != nil {
		panic(fmt.Sprintf("put at 0x%x: %v", addr, err))
	}
	copy(r.data[offset:], data)
}

func (p *ProcessBlob) PutPointer(addr, value process.ProcessMemoryAddress) {
	if p.arch.Is64() {
		p.PutU64(addr, uint64(value))
		return
	}
	p.PutU32(addr, uint32(value))
}

func (p *ProcessBlob) PutU64(addr process.ProcessMemoryAddress, v uint64) {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	p.Put(addr, b)
}

func (p *ProcessBlob) PutU32(addr process.ProcessMemoryAddress, v uint32) {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	p.Put(addr, b)
}

func (p *ProcessBlob) PutI32(addr process.ProcessMemoryAddress, v int32) {
	p.PutU32(addr, uint32(v))
}

func (p *ProcessBlob) PutU16(addr process.ProcessMemoryAddress, v uint16) {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	p.Put(addr, b)
}

func (p *ProcessBlob) PutU8(addr process.ProcessMemoryAddress, v uint8) {
	p.Put(addr, []byte{v})
}

func (p *ProcessBlob) PutF32(addr process.ProcessMemoryAddress, v float32) {
	p.PutU32(addr, math.Float32bits(v))
}
