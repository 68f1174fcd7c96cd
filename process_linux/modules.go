//go:build linux

package process_linux

import (
	"debug/elf"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"memsync/process"
	"memsync/process/memory_map"
)

// ModuleRegion returns the mapped span of the named image. The memory map is
// refreshed once when the module is not found, since libraries may load late.
func (p *LinuxProcess) ModuleRegion(name string) (process.Module, error) {
	if m, ok := p.moduleFromMap(name); ok {
		return m, nil
	}
	if err := p.UpdateMemoryMap(); err != nil {
		return process.Module{}, err
	}
	if m, ok := p.moduleFromMap(name); ok {
		return m, nil
	}
	return process.Module{}, fmt.Errorf("%s: %w", name, process.ErrModuleNotFound)
}

func (p *LinuxProcess) ModuleBase(name string) (process.ProcessMemoryAddress, error) {
	m, err := p.ModuleRegion(name)
	if err != nil {
		return 0, err
	}
	return m.Base, nil
}

func (p *LinuxProcess) moduleFromMap(name string) (process.Module, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start, end, path, ok := memory_map.ModuleSpan(name, p.mm)
	if !ok {
		return process.Module{}, false
	}
	return process.Module{
		Name: name,
		Path: path,
		Base: process.ProcessMemoryAddress(start),
		Size: process.ProcessMemorySize(end - start),
	}, true
}

// ModuleExport resolves a dynamic symbol of the named module to its address in
// the target. Symbol tables are read from the file on disk and cached per path.
func (p *LinuxProcess) ModuleExport(name, symbol string) (process.ProcessMemoryAddress, error) {
	m, err := p.ModuleRegion(name)
	if err != nil {
		return 0, err
	}

	p.mu.Lock()
	syms, cached := p.exports[m.Path]
	pid := p.pid
	p.mu.Unlock()

	if !cached {
		syms, err = readExports(pid, m.Path)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", name, err)
		}
		p.mu.Lock()
		p.exports[m.Path] = syms
		p.mu.Unlock()
	}

	value, ok := syms[symbol]
	if !ok {
		return 0, fmt.Errorf("%s!%s: %w", name, symbol, process.ErrSymbolNotFound)
	}
	return m.Base + process.ProcessMemoryAddress(value), nil
}

// readExports returns defined dynamic symbols relative to the lowest PT_LOAD
// segment, so adding the module base yields the runtime address.
func readExports(pid process.ProcessID, path string) (map[string]uint64, error) {
	f, err := openImage(pid, path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lowest uint64 = math.MaxUint64
	for _, prog := range f.Progs {
		if prog.Type == elf.PT_LOAD && prog.Vaddr < lowest {
			lowest = prog.Vaddr
		}
	}
	if lowest == math.MaxUint64 {
		lowest = 0
	}
	lowest &^= 0xFFF

	dyn, err := f.DynamicSymbols()
	if err != nil {
		return nil, fmt.Errorf("failed to read dynamic symbols of %s: %w", path, err)
	}

	syms := make(map[string]uint64, len(dyn))
	for _, s := range dyn {
		if s.Section == elf.SHN_UNDEF || s.Value == 0 {
			continue
		}
		syms[s.Name] = s.Value - lowest
	}
	return syms, nil
}

// openImage prefers the target's view of the file system, which differs from
// ours when the game runs inside a container runtime.
func openImage(pid process.ProcessID, path string) (*elf.File, error) {
	rooted := filepath.Join(fmt.Sprintf("/proc/%d/root", pid), path)
	if _, err := os.Stat(rooted); err == nil {
		if f, err := elf.Open(rooted); err == nil {
			return f, nil
		}
	}
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image %s: %w", path, err)
	}
	return f, nil
}
