// Package il2cpp finds managed objects in a foreign IL2CPP process. Every
// object starts with a pointer to its class descriptor, and every primitive
// here is built on that. Primitives never fail: a read error anywhere turns
// into a zero address, false or an empty slice.
package il2cpp

import (
	"fmt"
	"iter"
	"sync"
	"time"

	"ilmem/process"
	"ilmem/process/memory_map"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

// Memory is the accessor surface the scanner needs
type Memory interface {
	Arch() process.Arch
	ModuleBase() process.ProcessMemoryAddress
	ReadBytes(addr process.ProcessMemoryAddress, n int) ([]byte, error)
	ReadPtr(addr process.ProcessMemoryAddress) (process.ProcessMemoryAddress, error)
	ReadU8(addr process.ProcessMemoryAddress) (uint8, error)
	ReadU32(addr process.ProcessMemoryAddress) (uint32, error)
	ReadI32(addr process.ProcessMemoryAddress) (int32, error)
	HeapRegions() iter.Seq[memory_map.MemoryMapItem]
}

// Region is a span of the target address space
type Region struct {
	Base process.ProcessMemoryAddress
	Size uint64
}

func (r Region) End() process.ProcessMemoryAddress {
	return r.Base.Add(r.Size)
}

const (
	defaultChunkSize   = 0x10000
	fallbackChunkSize  = 0x1000
	classMethodSpan    = 0x10000
	fieldPtrLimit      = 512
	defaultHeapLimit   = 16
	methodWindowMargin = 0x100000
)

// DefaultStaticFieldCandidates are tried in order by StaticFieldsPtr
var DefaultStaticFieldCandidates = []uint64{0xB8, 0xB0, 0xD8, 0xD0, 0x5C}

// xrefBackOffsets are field offsets at which a string pointer may sit inside a button object
var xrefBackOffsets = []uint64{0x20, 0x28, 0x30, 0x38, 0x40, 0x48, 0x50, 0x60, 0x70, 0x80}

// Scanner caches class and static-field lookups for one attached session
type Scanner struct {
	mem  Memory
	arch process.Arch
	log  *logger.Logger

	staticCandidates []uint64
	windowStart      uint64
	windowSize       uint64
	windowCount      int
	codeSpan         uint64
	maxRegions       int
	chunkSize        int
	now              func() time.Time

	mu      sync.Mutex
	classes map[uint64]process.ProcessMemoryAddress
	statics map[process.ProcessMemoryAddress]process.ProcessMemoryAddress
}

// Option configures a Scanner
type Option func(*Scanner)

func WithStaticFieldCandidates(offsets ...uint64) Option {
	return func(s *Scanner) {
		s.staticCandidates = append([]uint64(nil), offsets...)
	}
}

// WithHeapWindows sets the module-relative windows scanned when no regions are given
func WithHeapWindows(start, size uint64, count int) Option {
	return func(s *Scanner) {
		s.windowStart = start
		s.windowSize = size
		s.windowCount = count
	}
}

// WithCodeSpan sets how far past the module base class descriptors are expected
func WithCodeSpan(span uint64) Option {
	return func(s *Scanner) {
		s.codeSpan = span
	}
}

func WithMaxRegions(n int) Option {
	return func(s *Scanner) {
		s.maxRegions = n
	}
}

func WithChunkSize(n int) Option {
	return func(s *Scanner) {
		s.chunkSize = n
	}
}

// WithClock replaces time.Now for deadline checks
func WithClock(now func() time.Time) Option {
	return func(s *Scanner) {
		s.now = now
	}
}

func NewScanner(mem Memory, opts ...Option) *Scanner {
	s := &Scanner{
		mem:              mem,
		arch:             mem.Arch(),
		staticCandidates: DefaultStaticFieldCandidates,
		windowStart:      0x01000000,
		windowSize:       0x01000000,
		windowCount:      4,
		codeSpan:         0x05000000,
		maxRegions:       4096,
		chunkSize:        defaultChunkSize,
		now:              time.Now,
		classes:          make(map[uint64]process.ProcessMemoryAddress),
		statics:          make(map[process.ProcessMemoryAddress]process.ProcessMemoryAddress),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.chunkSize -= s.chunkSize % s.arch.PointerSize()
	if s.chunkSize <= 0 {
		s.chunkSize = defaultChunkSize
	}
	s.log = logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, fmt.Sprintf("il2cpp-%s", s.arch)))
	return s
}

func (s *Scanner) Arch() process.Arch {
	return s.arch
}

func (s *Scanner) Memory() Memory {
	return s.mem
}

// Reset drops the class and static-field caches
func (s *Scanner) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.classes = make(map[uint64]process.ProcessMemoryAddress)
	s.statics = make(map[process.ProcessMemoryAddress]process.ProcessMemoryAddress)
}

func (s *Scanner) expired(deadline time.Time) bool {
	return !deadline.IsZero() && !s.now().Before(deadline)
}

func (s *Scanner) ptrSize() uint64 {
	return uint64(s.arch.PointerSize())
}

// Fields returns the address of an object's first field
func (s *Scanner) Fields(obj process.ProcessMemoryAddress) process.ProcessMemoryAddress {
	return obj.Add(s.arch.HeaderSize())
}

// ClassOf reads an object's class pointer, 0 on failure
func (s *Scanner) ClassOf(obj process.ProcessMemoryAddress) process.ProcessMemoryAddress {
	if obj.IsNull() {
		return 0
	}
	k, err := s.mem.ReadPtr(obj)
	if err != nil {
		return 0
	}
	return k
}

// IsInstance reports whether obj's class pointer equals klass
func (s *Scanner) IsInstance(obj, klass process.ProcessMemoryAddress) bool {
	return !klass.IsNull() && s.ClassOf(obj) == klass
}

// ClassFromTypeInfo returns the class pointer stored at module base + rva
func (s *Scanner) ClassFromTypeInfo(rva uint64) process.ProcessMemoryAddress {
	if rva == 0 {
		return 0
	}

	s.mu.Lock()
	k, ok := s.classes[rva]
	s.mu.Unlock()
	if ok {
		return k
	}

	k, err := s.mem.ReadPtr(s.mem.ModuleBase().Add(rva))
	if err != nil || k.IsNull() {
		return 0
	}

	s.mu.Lock()
	s.classes[rva] = k
	s.mu.Unlock()
	return k
}

// StaticFieldsPtr tries each candidate offset inside the class descriptor and
// returns the first non-null pointer
func (s *Scanner) StaticFieldsPtr(klass process.ProcessMemoryAddress) process.ProcessMemoryAddress {
	if klass.IsNull() {
		return 0
	}

	s.mu.Lock()
	sf, ok := s.statics[klass]
	s.mu.Unlock()
	if ok {
		return sf
	}

	for _, off := range s.staticCandidates {
		p, err := s.mem.ReadPtr(klass.Add(off))
		if err != nil || p.IsNull() {
			continue
		}
		s.mu.Lock()
		s.statics[klass] = p
		s.mu.Unlock()
		return p
	}
	return 0
}

// readSlots decodes the pointer-sized slots of [base, base+span). When the
// span cannot be read at once it falls back to one read per slot, leaving
// unreadable slots zero.
func (s *Scanner) readSlots(base process.ProcessMemoryAddress, span uint64) []process.ProcessMemoryAddress {
	step := s.ptrSize()
	n := int(span / step)
	if n <= 0 {
		return nil
	}

	slots := make([]process.ProcessMemoryAddress, n)
	if data, err := s.mem.ReadBytes(base, n*int(step)); err == nil {
		for i := range n {
			slots[i] = process.DecodePointer(data[uint64(i)*step:], s.arch)
		}
		return slots
	}

	for i := range n {
		if p, err := s.mem.ReadPtr(base.Add(uint64(i) * step)); err == nil {
			slots[i] = p
		}
	}
	return slots
}

// ScanFieldsForClass walks [base, base+span) at pointer stride and returns the
// first slot whose pointee is an instance of klass, together with the object
func (s *Scanner) ScanFieldsForClass(base process.ProcessMemoryAddress, span uint64, klass process.ProcessMemoryAddress) (obj, slot process.ProcessMemoryAddress) {
	if base.IsNull() || klass.IsNull() {
		return 0, 0
	}
	for i, p := range s.readSlots(base, span) {
		if p.IsNull() {
			continue
		}
		if s.ClassOf(p) == klass {
			return p, base.Add(uint64(i) * s.ptrSize())
		}
	}
	return 0, 0
}

// ScanFieldsForPtrValue returns the first slot in [base, base+span) holding target
func (s *Scanner) ScanFieldsForPtrValue(base process.ProcessMemoryAddress, span uint64, target process.ProcessMemoryAddress) process.ProcessMemoryAddress {
	if base.IsNull() || target.IsNull() {
		return 0
	}
	for i, p := range s.readSlots(base, span) {
		if p == target {
			return base.Add(uint64(i) * s.ptrSize())
		}
	}
	return 0
}

// ObjectFieldsContainsPtr reports whether any field slot of obj within span
// (at least 0x40 bytes) holds target
func (s *Scanner) ObjectFieldsContainsPtr(obj, target process.ProcessMemoryAddress, span uint64) bool {
	if obj.IsNull() {
		return false
	}
	return !s.ScanFieldsForPtrValue(s.Fields(obj), max(0x40, span), target).IsNull()
}

// ScanObjectFieldPtrs lists the non-null field values of obj within span (at
// least 0x100 bytes), capped at 512 entries
func (s *Scanner) ScanObjectFieldPtrs(obj process.ProcessMemoryAddress, span uint64) []process.ProcessMemoryAddress {
	if obj.IsNull() {
		return nil
	}
	var out []process.ProcessMemoryAddress
	for _, p := range s.readSlots(s.Fields(obj), max(0x100, span)) {
		if p.IsNull() {
			continue
		}
		out = append(out, p)
		if len(out) >= fieldPtrLimit {
			break
		}
	}
	return out
}

// ClassHasMethods scans the class descriptor region for the given method
// addresses and accepts at least min(2, len(methods)) hits
func (s *Scanner) ClassHasMethods(klass process.ProcessMemoryAddress, methods []process.ProcessMemoryAddress) bool {
	if klass.IsNull() || len(methods) == 0 {
		return false
	}
	need := min(2, len(methods))

	hits := 0
	step := s.ptrSize()
	for off := uint64(0); off < classMethodSpan; off += uint64(s.chunkSize) {
		size := min(uint64(s.chunkSize), classMethodSpan-off)
		data, err := s.mem.ReadBytes(klass.Add(off), int(size))
		if err != nil {
			continue
		}
		for i := uint64(0); i+step <= uint64(len(data)); i += step {
			p := process.DecodePointer(data[i:], s.arch)
			for _, m := range methods {
				if p == m {
					hits++
					break
				}
			}
			if hits >= need {
				return true
			}
		}
	}
	return false
}

// HeapWindows returns the default scan windows relative to the module base
func (s *Scanner) HeapWindows() []Region {
	base := s.mem.ModuleBase()
	out := make([]Region, 0, s.windowCount)
	for i := range s.windowCount {
		out = append(out, Region{Base: base.Add(s.windowStart + uint64(i)*s.windowSize), Size: s.windowSize})
	}
	return out
}

func (s *Scanner) heapRegions() []Region {
	var out []Region
	for item := range s.mem.HeapRegions() {
		out = append(out, Region{Base: process.ProcessMemoryAddress(item.Address), Size: uint64(item.Size)})
		if len(out) >= s.maxRegions {
			break
		}
	}
	return out
}

// scanRegions reads regions chunk by chunk and calls visit for every aligned
// slot. The deadline is checked before each chunk, so an expired deadline
// performs no reads. Visitors that read per slot check it again themselves. An unreadable chunk is retried page by page. visit
// returns false to stop. It reports whether the scan ran to completion.
func (s *Scanner) scanRegions(regions []Region, deadline time.Time, visit func(slot, value process.ProcessMemoryAddress) bool) bool {
	step := s.ptrSize()

	// readChunk returns false when visit asked to stop
	readChunk := func(addr process.ProcessMemoryAddress, size uint64) (bool, error) {
		data, err := s.mem.ReadBytes(addr, int(size))
		if err != nil {
			return true, err
		}
		for i := uint64(0); i+step <= uint64(len(data)); i += step {
			if !visit(addr.Add(i), process.DecodePointer(data[i:], s.arch)) {
				return false, nil
			}
		}
		return true, nil
	}

	for _, r := range regions {
		end := r.End()
		for cur := r.Base; cur < end; cur = cur.Add(uint64(s.chunkSize)) {
			if s.expired(deadline) {
				return false
			}
			size := min(uint64(s.chunkSize), uint64(end-cur))

			more, err := readChunk(cur, size)
			if !more {
				return false
			}
			if err == nil || size <= fallbackChunkSize {
				continue
			}

			for sub := uint64(0); sub < size; sub += fallbackChunkSize {
				if s.expired(deadline) {
					return false
				}
				if more, _ := readChunk(cur.Add(sub), min(fallbackChunkSize, size-sub)); !more {
					return false
				}
			}
		}
	}
	return true
}

// ScanHeapForClassInstances returns addresses whose first slot equals klass.
// With no regions it scans the module-relative heap windows. It stops at limit
// hits (16 when limit <= 0) or when the deadline passes, returning what it has.
func (s *Scanner) ScanHeapForClassInstances(klass process.ProcessMemoryAddress, regions []Region, limit int, deadline time.Time) []process.ProcessMemoryAddress {
	if klass.IsNull() {
		return nil
	}
	if limit <= 0 {
		limit = defaultHeapLimit
	}
	if regions == nil {
		regions = s.HeapWindows()
	}

	var found []process.ProcessMemoryAddress
	complete := s.scanRegions(regions, deadline, func(slot, value process.ProcessMemoryAddress) bool {
		if value == klass {
			found = append(found, slot)
		}
		return len(found) < limit
	})
	if !complete && len(found) < limit {
		s.log.Debugln("Heap scan for class", klass.ToString(), "stopped at deadline with", len(found), "hits")
	}
	return found
}

// FindObjectByMethodSignature scans the heap for an object whose class lies in
// the module's code window and carries the given methods. It is the most
// expensive primitive here.
func (s *Scanner) FindObjectByMethodSignature(methods []process.ProcessMemoryAddress, deadline time.Time) process.ProcessMemoryAddress {
	if len(methods) == 0 || s.expired(deadline) {
		return 0
	}

	base := s.mem.ModuleBase()
	top := base.Add(s.codeSpan)
	for _, m := range methods {
		top = max(top, m.Add(methodWindowMargin))
	}

	verdicts := make(map[process.ProcessMemoryAddress]bool)
	var hit process.ProcessMemoryAddress
	s.scanRegions(s.heapRegions(), deadline, func(slot, value process.ProcessMemoryAddress) bool {
		if value < base || value >= top {
			return true
		}
		ok, seen := verdicts[value]
		if !seen {
			if s.expired(deadline) {
				return false
			}
			ok = s.ClassHasMethods(value, methods)
			verdicts[value] = ok
		}
		if ok {
			hit = slot
			return false
		}
		return true
	})
	return hit
}

// FindButtonByStringXref finds a slot holding strVA, then tries each plausible
// field offset backwards to an object start whose class is one of classes
func (s *Scanner) FindButtonByStringXref(strVA process.ProcessMemoryAddress, classes []process.ProcessMemoryAddress, deadline time.Time) process.ProcessMemoryAddress {
	if strVA.IsNull() || len(classes) == 0 {
		return 0
	}

	header := s.arch.HeaderSize()
	var hit process.ProcessMemoryAddress
	s.scanRegions(s.HeapWindows(), deadline, func(slot, value process.ProcessMemoryAddress) bool {
		if value != strVA {
			return true
		}
		if s.expired(deadline) {
			return false
		}
		for _, off := range xrefBackOffsets {
			if uint64(slot) < off+header {
				continue
			}
			obj := slot - process.ProcessMemoryAddress(off+header)
			k := s.ClassOf(obj)
			for _, c := range classes {
				if k == c {
					hit = obj
					return false
				}
			}
		}
		return true
	})
	return hit
}
