// Package accessor attaches to a target process and exposes page-checked typed
// reads, region enumeration and export lookup over any process.Process backend.
package accessor

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"ilmem/pe"
	"ilmem/process"
	"ilmem/process/memory_map"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

// DefaultMaxRegions bounds region enumeration when no other limit is set
const DefaultMaxRegions = 4096

// Accessor is one attached session with a target. The pointer width and module
// base are fixed at attach time.
type Accessor struct {
	proc       process.Process
	name       string
	module     string
	base       process.ProcessMemoryAddress
	arch       process.Arch
	archSource string
	maxRegions int
	log        *logger.Logger

	mu        sync.Mutex
	region    memory_map.MemoryMapItem
	hasRegion bool
}

// Attach finds the process by name, opens it with the platform backend and
// resolves module. It fails with process.ErrProcessNotFound when nothing matches.
func Attach(name, module string) (*Accessor, error) {
	info, err := process.FindFirstProcessByName(name)
	if err != nil {
		return nil, err
	}

	proc, err := newBackend()
	if err != nil {
		return nil, err
	}
	if err := proc.Open(info.PID); err != nil {
		return nil, fmt.Errorf("open %s (pid %d): %w", info.Name, info.PID, err)
	}

	a, err := AttachProcess(proc, module)
	if err != nil {
		proc.Close()
		return nil, err
	}
	a.name = info.Name
	return a, nil
}

// AttachProcess wraps an already opened backend
func AttachProcess(proc process.Process, module string) (*Accessor, error) {
	base, err := proc.ModuleBase(module)
	if err != nil {
		return nil, fmt.Errorf("module base: %w", err)
	}

	a := &Accessor{
		proc:       proc,
		module:     module,
		base:       base,
		maxRegions: DefaultMaxRegions,
		log:        logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, fmt.Sprintf("accessor-%d", proc.GetPID()))),
	}

	arch, source, err := DetectArch(proc, base)
	if err != nil {
		return nil, err
	}
	a.arch = arch
	a.archSource = source

	a.log.Infoln("Attached", module, "at", base.ToString(), "arch", arch.String(), "via", source)
	return a, nil
}

func (a *Accessor) Close() error {
	a.invalidateRegion()
	return a.proc.Close()
}

func (a *Accessor) Process() process.Process {
	return a.proc
}

// Name is the process name matched by Attach, empty for AttachProcess
func (a *Accessor) Name() string {
	return a.name
}

func (a *Accessor) PID() process.ProcessID {
	return a.proc.GetPID()
}

func (a *Accessor) Arch() process.Arch {
	return a.arch
}

// ArchSource names the signal that decided the pointer width
func (a *Accessor) ArchSource() string {
	return a.archSource
}

func (a *Accessor) Module() string {
	return a.module
}

func (a *Accessor) ModuleBase() process.ProcessMemoryAddress {
	return a.base
}

// SetMaxRegions changes the region enumeration bound. Non-positive values restore the default.
func (a *Accessor) SetMaxRegions(n int) {
	if n <= 0 {
		n = DefaultMaxRegions
	}
	a.maxRegions = n
}

func (a *Accessor) invalidateRegion() {
	a.mu.Lock()
	a.hasRegion = false
	a.mu.Unlock()
}

// checkReadable verifies every page of [addr, addr+size) is committed, readable and not guarded
func (a *Accessor) checkReadable(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) error {
	end := uint64(addr) + uint64(size)
	if end < uint64(addr) {
		return fmt.Errorf("read at %s wraps the address space: %w", addr.ToString(), process.ErrMemoryRead)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	cur := uint64(addr)
	for cur < end {
		if a.hasRegion && a.region.Contains(cur) {
			cur = a.region.End()
			continue
		}

		item, err := a.proc.QueryRegion(process.ProcessMemoryAddress(cur))
		if err != nil {
			a.hasRegion = false
			return fmt.Errorf("query 0x%x: %w: %w", cur, process.ErrMemoryRead, err)
		}
		if !item.Contains(cur) || !item.IsReadable() {
			a.hasRegion = false
			return fmt.Errorf("page at 0x%x not readable (state 0x%x, protect 0x%x): %w", cur, item.State, item.Protect, process.ErrMemoryRead)
		}

		a.region = item
		a.hasRegion = true
		cur = item.End()
	}
	return nil
}

// ReadMemory is the checked read every typed accessor goes through
func (a *Accessor) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	if addr.IsNull() {
		return nil, fmt.Errorf("read at null: %w", process.ErrInvalidPointer)
	}
	if err := a.checkReadable(addr, size); err != nil {
		return nil, err
	}

	data, err := a.proc.ReadMemory(addr, size)
	if err != nil {
		a.invalidateRegion()
		if errors.Is(err, process.ErrMemoryRead) {
			return nil, err
		}
		return nil, fmt.Errorf("read %d bytes at %s: %w: %w", size, addr.ToString(), process.ErrMemoryRead, err)
	}
	if len(data) < int(size) {
		return nil, fmt.Errorf("short read at %s (%d of %d): %w", addr.ToString(), len(data), size, process.ErrMemoryRead)
	}
	return data, nil
}

func (a *Accessor) ReadBytes(addr process.ProcessMemoryAddress, n int) ([]byte, error) {
	if n <= 0 {
		return nil, nil
	}
	return a.ReadMemory(addr, process.ProcessMemorySize(n))
}

// ReadPtr reads one pointer of the session's width
func (a *Accessor) ReadPtr(addr process.ProcessMemoryAddress) (process.ProcessMemoryAddress, error) {
	return process.ReadPointer(a, a.arch, addr)
}

func (a *Accessor) ReadU8(addr process.ProcessMemoryAddress) (uint8, error) {
	return process.Read[uint8](a, addr)
}

func (a *Accessor) ReadU16(addr process.ProcessMemoryAddress) (uint16, error) {
	b, err := a.ReadMemory(addr, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (a *Accessor) ReadU32(addr process.ProcessMemoryAddress) (uint32, error) {
	b, err := a.ReadMemory(addr, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (a *Accessor) ReadI32(addr process.ProcessMemoryAddress) (int32, error) {
	v, err := a.ReadU32(addr)
	return int32(v), err
}

func (a *Accessor) ReadF32(addr process.ProcessMemoryAddress) (float32, error) {
	v, err := a.ReadU32(addr)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// ReadPointerChain adds each offset to the current address and dereferences it.
// A null link fails with process.ErrInvalidPointer.
func (a *Accessor) ReadPointerChain(base process.ProcessMemoryAddress, offsets ...uint64) (process.ProcessMemoryAddress, error) {
	cur := base
	for i, off := range offsets {
		next, err := a.ReadPtr(cur.Add(off))
		if err != nil {
			return 0, fmt.Errorf("link %d at %s: %w", i, cur.Add(off).ToString(), err)
		}
		if next.IsNull() {
			return 0, fmt.Errorf("link %d at %s is null: %w", i, cur.Add(off).ToString(), process.ErrInvalidPointer)
		}
		cur = next
	}
	return cur, nil
}

// WriteBytes writes through the backend without page checks
func (a *Accessor) WriteBytes(addr process.ProcessMemoryAddress, data []byte) error {
	if err := a.proc.WriteMemory(addr, data); err != nil {
		return fmt.Errorf("write %d bytes at %s: %w", len(data), addr.ToString(), err)
	}
	return nil
}

func (a *Accessor) executor() (process.RemoteExecutor, error) {
	re, ok := a.proc.(process.RemoteExecutor)
	if !ok {
		return nil, process.ErrUnsupported
	}
	return re, nil
}

func (a *Accessor) Alloc(size process.ProcessMemorySize) (process.ProcessMemoryAddress, error) {
	re, err := a.executor()
	if err != nil {
		return 0, fmt.Errorf("alloc: %w", err)
	}
	return re.AllocMemory(size)
}

func (a *Accessor) Free(addr process.ProcessMemoryAddress) error {
	re, err := a.executor()
	if err != nil {
		return fmt.Errorf("free: %w", err)
	}
	return re.FreeMemory(addr)
}

func (a *Accessor) CreateRemoteThread(start, param process.ProcessMemoryAddress) (process.ThreadHandle, error) {
	re, err := a.executor()
	if err != nil {
		return 0, fmt.Errorf("create remote thread: %w", err)
	}
	return re.CreateRemoteThread(start, param)
}

// WaitThread waits for a remote thread. A negative timeout waits forever.
func (a *Accessor) WaitThread(h process.ThreadHandle, timeout time.Duration) (uint32, error) {
	re, err := a.executor()
	if err != nil {
		return 0, fmt.Errorf("wait thread: %w", err)
	}
	return re.WaitThread(h, timeout)
}

// ExportAddress resolves an export of the attached module, or of another module when named
func (a *Accessor) ExportAddress(name string, module ...string) (process.ProcessMemoryAddress, error) {
	base := a.base
	if len(module) > 0 && module[0] != "" {
		b, err := a.proc.ModuleBase(module[0])
		if err != nil {
			return 0, err
		}
		base = b
	}
	return pe.ExportAddress(a, base, name)
}
