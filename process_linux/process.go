//go:build linux

package process_linux

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"ilmem/process"
	"ilmem/process/memory_map"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

// maps are re-read at most this often when an address misses the cached map
const memoryMapRefreshInterval = time.Second

// LinuxProcess implements the process.Process interface for Wine and Proton targets
type LinuxProcess struct {
	pid       process.ProcessID
	log       *logger.Logger
	mm        []memory_map.MemoryMapItem
	mmUpdated time.Time
	mu        sync.Mutex
}

var _ process.Process = (*LinuxProcess)(nil)

// New creates a new LinuxProcess instance
func New() process.Process {
	return &LinuxProcess{
		log: logger.NewLogger(coloransi.Color(coloransi.Red, coloransi.ColorOrange, "process-not-open")),
	}
}

// NewWithPID creates a new LinuxProcess instance and opens it with the given PID
func NewWithPID(pid process.ProcessID) (process.Process, error) {
	p := New()
	if err := p.Open(pid); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *LinuxProcess) Open(pid process.ProcessID) error {
	procPath := fmt.Sprintf("/proc/%d", pid)
	if _, err := os.Stat(procPath); os.IsNotExist(err) {
		return fmt.Errorf("process with PID %d does not exist: %w", pid, process.ErrProcessNotFound)
	}

	p.mu.Lock()
	p.pid = pid
	p.log = logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, fmt.Sprintf("process-%d", pid)))
	p.mu.Unlock()

	if err := p.UpdateMemoryMap(); err != nil {
		return fmt.Errorf("failed to initialize memory map: %w", err)
	}

	p.log.Infoln("Process opened")

	return nil
}

func (p *LinuxProcess) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.pid = 0
	p.mm = nil

	p.log = logger.NewLogger(coloransi.Color(coloransi.Red, coloransi.ColorOrange, "process-not-open"))
	p.log.Infoln("Process closed")

	return nil
}

// GetPID returns the process ID
func (p *LinuxProcess) GetPID() process.ProcessID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pid
}

func (p *LinuxProcess) UpdateMemoryMap() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.updateMemoryMapInternal()
}

// updateMemoryMapInternal assumes the mutex is held
func (p *LinuxProcess) updateMemoryMapInternal() error {
	if p.pid == 0 {
		return process.ErrProcessNotOpen
	}

	mm, err := memory_map.ReadMemoryMap(int(p.pid))
	if err != nil {
		return fmt.Errorf("failed to read memory map: %w", err)
	}

	p.mm = mm
	p.mmUpdated = time.Now()
	return nil
}

// regionFor finds the mapping containing addr, refreshing a stale map once on a miss.
// Assumes the mutex is held.
func (p *LinuxProcess) regionFor(addr process.ProcessMemoryAddress) *memory_map.MemoryMapItem {
	if item := memory_map.FindRegion(uint64(addr), p.mm); item != nil {
		return item
	}
	if time.Since(p.mmUpdated) < memoryMapRefreshInterval {
		return nil
	}
	if err := p.updateMemoryMapInternal(); err != nil {
		p.log.Warn("Failed to refresh memory map: ", err)
		return nil
	}
	return memory_map.FindRegion(uint64(addr), p.mm)
}

func (p *LinuxProcess) QueryRegion(addr process.ProcessMemoryAddress) (memory_map.MemoryMapItem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pid == 0 {
		return memory_map.MemoryMapItem{}, process.ErrProcessNotOpen
	}
	p.regionFor(addr)
	return memory_map.QuerySorted(uint64(addr), p.mm), nil
}

// ModuleBase returns the lowest mapping whose backing file name matches. Wine maps
// PE images from their on-disk path, so the DLL name identifies the module.
func (p *LinuxProcess) ModuleBase(name string) (process.ProcessMemoryAddress, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pid == 0 {
		return 0, process.ErrProcessNotOpen
	}

	for _, item := range p.mm {
		if item.Path == "" {
			continue
		}
		base := filepath.Base(strings.ReplaceAll(item.Path, "\\", "/"))
		if strings.EqualFold(base, name) {
			return process.ProcessMemoryAddress(item.Address), nil
		}
	}
	return 0, fmt.Errorf("%w: %s", process.ErrModuleNotFound, name)
}
