// Package resolver reconstructs players, tasks, HUD widgets and the session
// state of the attached game by composing the il2cpp scanner primitives.
// Every resolution is a cheapest-first chain of strategies; a failed read
// anywhere yields "not found" rather than an error.
package resolver

import (
	"fmt"
	"time"

	"ilmem/config"
	"ilmem/il2cpp"
	"ilmem/metadata"
	"ilmem/process"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

// Memory is the accessor surface used by the resolver
type Memory interface {
	il2cpp.Memory
	process.MemoryReader
	ReadU16(addr process.ProcessMemoryAddress) (uint16, error)
	ReadF32(addr process.ProcessMemoryAddress) (float32, error)
}

type field int

const (
	fieldColorDict field = iota
	fieldCachedData
	fieldReportActive
	fieldRoleType
)

// Session is one attached-process context. It owns every pointer and offset
// cache; none of them outlive it. A Session is not safe for concurrent use.
type Session struct {
	mem  Memory
	scan *il2cpp.Scanner
	meta *metadata.Index
	cfg  config.Config
	off  config.Offsets
	arch process.Arch
	log  *logger.Logger
	now  func() time.Time

	classes map[string]process.ProcessMemoryAddress
	offsets *OffsetCache[field]

	hud            process.ProcessMemoryAddress
	reportButton   process.ProcessMemoryAddress
	lastReportScan time.Time

	players    []PlayerData
	localID    int
	hasLocalID bool
}

type Option func(*Session)

// WithClock replaces time.Now for budgets, throttles and timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// NewSession builds a session over an attached accessor. meta may be an
// index that failed to load; resolution then relies on configured RVAs.
func NewSession(mem Memory, meta *metadata.Index, cfg config.Config, opts ...Option) *Session {
	s := &Session{
		mem:     mem,
		meta:    meta,
		cfg:     cfg,
		off:     cfg.Offsets,
		arch:    mem.Arch(),
		now:     time.Now,
		classes: make(map[string]process.ProcessMemoryAddress),
		offsets: NewOffsetCache[field](),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.meta == nil {
		s.meta = metadata.New()
	}

	s.scan = il2cpp.NewScanner(mem,
		il2cpp.WithStaticFieldCandidates(config.Uint64s(s.off.StaticFieldCandidates)...),
		il2cpp.WithHeapWindows(uint64(s.off.HeapWindowStart), uint64(s.off.HeapWindowSize), s.off.HeapWindowCount),
		il2cpp.WithCodeSpan(uint64(s.off.ModuleCodeSpan)),
		il2cpp.WithMaxRegions(cfg.MaxRegions),
		il2cpp.WithClock(s.now),
	)
	s.log = logger.NewLogger(coloransi.Color(coloransi.ColorOrange, coloransi.ColorPurple, fmt.Sprintf("session-%s", s.arch)))
	return s
}

func (s *Session) Arch() process.Arch {
	return s.arch
}

func (s *Session) Scanner() *il2cpp.Scanner {
	return s.scan
}

// Reset clears every cache of the session
func (s *Session) Reset() {
	s.scan.Reset()
	clear(s.classes)
	s.offsets.Reset()
	s.hud = 0
	s.reportButton = 0
	s.lastReportScan = time.Time{}
	s.players = nil
	s.localID = 0
	s.hasLocalID = false
}

func (s *Session) fields(obj process.ProcessMemoryAddress) process.ProcessMemoryAddress {
	return s.scan.Fields(obj)
}

func (s *Session) ptrSize() uint64 {
	return uint64(s.arch.PointerSize())
}

func (s *Session) readPtr(addr process.ProcessMemoryAddress) process.ProcessMemoryAddress {
	p, err := s.mem.ReadPtr(addr)
	if err != nil {
		return 0
	}
	return p
}

func (s *Session) readU8(addr process.ProcessMemoryAddress) (uint8, bool) {
	v, err := s.mem.ReadU8(addr)
	return v, err == nil
}

func (s *Session) readI32(addr process.ProcessMemoryAddress) (int32, bool) {
	v, err := s.mem.ReadI32(addr)
	return v, err == nil
}

func (s *Session) readU32(addr process.ProcessMemoryAddress) (uint32, bool) {
	v, err := s.mem.ReadU32(addr)
	return v, err == nil
}

// ClassByName resolves a class through the metadata index
func (s *Session) ClassByName(name string) process.ProcessMemoryAddress {
	if k, ok := s.classes[name]; ok {
		return k
	}
	k := s.scan.ClassFromTypeInfo(s.meta.TypeInfoRVAByName(name))
	if !k.IsNull() {
		s.classes[name] = k
	}
	return k
}

// class prefers the configured RVA and falls back to a metadata name lookup
func (s *Session) class(rva config.Offset, name string) process.ProcessMemoryAddress {
	return il2cpp.First(
		func() process.ProcessMemoryAddress { return s.scan.ClassFromTypeInfo(uint64(rva)) },
		func() process.ProcessMemoryAddress { return s.ClassByName(name) },
	)
}

// staticBlocks lists the static-field blocks of klass: the configured offset
// first, then the scanner's candidate search
func (s *Session) staticBlocks(klass process.ProcessMemoryAddress) []process.ProcessMemoryAddress {
	if klass.IsNull() {
		return nil
	}
	var out []process.ProcessMemoryAddress
	if sf := s.readPtr(klass.Add(uint64(s.off.ClassStaticFields))); !sf.IsNull() {
		out = append(out, sf)
	}
	if sf := s.scan.StaticFieldsPtr(klass); !sf.IsNull() && (len(out) == 0 || out[0] != sf) {
		out = append(out, sf)
	}
	return out
}

// staticInstance reads a singleton pointer at off in the first static block holding one
func (s *Session) staticInstance(klass process.ProcessMemoryAddress, off uint64) process.ProcessMemoryAddress {
	for _, sf := range s.staticBlocks(klass) {
		if p := s.readPtr(sf.Add(off)); !p.IsNull() {
			return p
		}
	}
	return 0
}

func (s *Session) deadline(budget time.Duration) time.Time {
	return s.now().Add(budget)
}

func (s *Session) expired(deadline time.Time) bool {
	return !s.now().Before(deadline)
}
