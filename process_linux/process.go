//go:build linux

package process_linux

import (
	"fmt"
	"os"
	"sync"

	"memsync/process"
	"memsync/process/memory_map"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	ps "github.com/shirou/gopsutil/v3/process"
)

// LinuxProcess implements the process.Process interface for Linux systems
type LinuxProcess struct {
	process.Reader

	pid     process.ProcessID
	log     *logger.Logger
	mm      []memory_map.MemoryMapItem
	lo, hi  process.ProcessMemoryAddress
	exports map[string]map[string]uint64 // module path -> symbol -> st_value
	mu      sync.Mutex
}

// New creates a new LinuxProcess instance
func New() *LinuxProcess {
	p := &LinuxProcess{
		log:     logger.NewLogger(coloransi.Color(coloransi.Red, coloransi.ColorOrange, "process-not-open")),
		exports: make(map[string]map[string]uint64),
	}
	p.Reader = process.NewReader(p)
	return p
}

// NewWithPID creates a new LinuxProcess instance and opens it with the given PID
func NewWithPID(pid process.ProcessID) (*LinuxProcess, error) {
	p := New()
	if err := p.Open(pid); err != nil {
		return nil, err
	}
	return p, nil
}

// OpenByName attaches to the lowest PID whose name equals name.
func OpenByName(name string) (*LinuxProcess, error) {
	info, err := FindProcessByName(name)
	if err != nil {
		return nil, err
	}
	return NewWithPID(info.PID)
}

func (p *LinuxProcess) Open(pid process.ProcessID) error {
	// Check if process exists
	procPath := fmt.Sprintf("/proc/%d", pid)
	if _, err := os.Stat(procPath); os.IsNotExist(err) {
		return fmt.Errorf("process with PID %d does not exist: %w", pid, process.ErrProcessNotFound)
	}

	p.mu.Lock()
	p.pid = pid
	p.log = logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, fmt.Sprintf("process-%d", pid)))
	p.exports = make(map[string]map[string]uint64)
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

	p.log.Infoln("Closing process")

	p.pid = 0
	p.mm = nil
	p.lo, p.hi = 0, 0
	p.exports = make(map[string]map[string]uint64)

	p.log = logger.NewLogger(coloransi.Color(coloransi.Red, coloransi.ColorOrange, "process-not-open"))

	return nil
}

// GetPID returns the process ID
func (p *LinuxProcess) GetPID() process.ProcessID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pid
}

// IsAlive reports whether the attached PID still exists.
func (p *LinuxProcess) IsAlive() bool {
	pid := p.GetPID()
	if pid == 0 {
		return false
	}
	ok, err := ps.PidExists(int32(pid))
	return err == nil && ok
}

func (p *LinuxProcess) UpdateMemoryMap() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pid == 0 {
		return process.ErrProcessNotOpen
	}

	mm, err := memoryMapHelper.ReadMemoryMap(int(p.pid))
	if err != nil {
		return fmt.Errorf("failed to read memory map: %w", err)
	}

	// FindRegion requires the memory map to be sorted by address
	memory_map.Sort(mm)

	lo, hi := memory_map.Bounds(mm)
	p.mm = mm
	p.lo, p.hi = process.ProcessMemoryAddress(lo), process.ProcessMemoryAddress(hi)
	return nil
}

func (p *LinuxProcess) IsValidAddress(addr process.ProcessMemoryAddress) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if addr <= 0x10000 {
		return false
	}

	if item := memory_map.FindRegion(uint64(addr), p.mm); item != nil {
		return isReadablePerms(item.Perms)
	}

	return false
}

// AddressRange returns the span between the lowest and highest mapping seen
// on the last memory map refresh.
func (p *LinuxProcess) AddressRange() (min, max process.ProcessMemoryAddress) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lo, p.hi
}

// inRange reports whether [addr, addr+size) lies inside the address range.
// The target allocates after the map was read, so individual reads are only
// checked against the overall span and the syscall decides the rest.
func (p *LinuxProcess) inRange(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	end := addr.Add(size)
	return addr > 0x10000 && addr >= p.lo && end <= p.hi && end >= addr
}

func (p *LinuxProcess) GetMemoryMap() ([]memory_map.MemoryMapItem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pid == 0 {
		return nil, process.ErrProcessNotOpen
	}

	// Make a copy of the memory map to prevent external modification
	result := make([]memory_map.MemoryMapItem, len(p.mm))
	copy(result, p.mm)

	return result, nil
}

// Helper functions for checking permissions using the Linux memory map
var memoryMapHelper = memory_map.NewLinuxMemoryMap()

// Helper function to check if memory region has read permissions
func isReadablePerms(perms string) bool {
	return memoryMapHelper.IsReadablePerms(perms)
}
