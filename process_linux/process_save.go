//go:build linux

package process_linux

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"memsync/process"
	"memsync/process/memory_map"
	"memsync/process_blob"
)

// maxSavedRegion bounds the size of a single saved region
const maxSavedRegion = 100 * 1024 * 1024

// Save writes the memory map, every readable region and the module list to
// dirname in the layout process_blob.Load reads. Each listed symbol is
// resolved in every module that exports it.
func (p *LinuxProcess) Save(dirname string, symbols ...string) error {
	if err := os.MkdirAll(dirname, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	pid := p.GetPID()
	if pid == 0 {
		return process.ErrProcessNotOpen
	}

	p.log.Infoln("Saving process to directory:", dirname)

	if err := p.UpdateMemoryMap(); err != nil {
		return fmt.Errorf("failed to update memory map: %w", err)
	}
	mm, err := p.GetMemoryMap()
	if err != nil {
		return err
	}

	metadata := process_blob.Metadata{
		PID:     pid,
		Name:    "unknown",
		Exports: make(process_blob.Exports),
	}
	if info, err := findProcessByPID(pid); err == nil {
		metadata.Name = info.Name
	}

	for _, name := range moduleNames(mm) {
		m, err := p.ModuleRegion(name)
		if err != nil {
			continue
		}
		metadata.Modules = append(metadata.Modules, m)
		for _, symbol := range symbols {
			if addr, err := p.ModuleExport(name, symbol); err == nil {
				if metadata.Exports[name] == nil {
					metadata.Exports[name] = make(map[string]process.ProcessMemoryAddress)
				}
				metadata.Exports[name][symbol] = addr
			}
		}
	}

	if err := writeJSON(filepath.Join(dirname, process_blob.MetadataFile), metadata); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dirname, process_blob.MemoryMapFile), mm); err != nil {
		return err
	}

	saved, skipped, failed := 0, 0, 0
	for _, region := range mm {
		if !isReadablePerms(region.Perms) || region.Size > maxSavedRegion {
			skipped++
			continue
		}

		data, err := p.ReadMemory(process.ProcessMemoryAddress(region.Address), process.ProcessMemorySize(region.Size))
		if err != nil {
			p.log.Debugln("Failed to read memory region at", fmt.Sprintf("%x", region.Address), ":", err)
			failed++
			continue
		}

		filename := filepath.Join(dirname, process_blob.BlobFileName(region.Address, region.Size))
		if err := os.WriteFile(filename, data, 0644); err != nil {
			return fmt.Errorf("failed to write memory file for region at %x: %w", region.Address, err)
		}
		saved++
	}

	p.log.Infoln("Process dump saved:", saved, "regions saved,", skipped, "skipped,", failed, "unreadable")

	return nil
}

// moduleNames lists the distinct file names of shared objects in the map.
func moduleNames(mm []memory_map.MemoryMapItem) []string {
	seen := make(map[string]bool)
	var names []string
	for _, item := range mm {
		if item.Path == "" || item.Path[0] != '/' {
			continue
		}
		name := filepath.Base(item.Path)
		if filepath.Ext(name) != ".so" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}
