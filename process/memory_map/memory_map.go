package memory_map

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// MemoryMapItem represents a memory region in a process's address space
type MemoryMapItem struct {
	Address uint64 `json:"address"` // The starting address of the memory region
	Size    uint   `json:"size"`    // The size of the memory region in bytes
	Perms   string `json:"perms"`   // Permissions (e.g., "r-xp" for read, execute, private)
	Path    string `json:"path"`    // Backing file, empty for anonymous mappings
}

// String returns a string representation of the memory map item
func (mmItem MemoryMapItem) String() string {
	return fmt.Sprintf("Address: %x, Size: %d, Perms: %s, Path: %s", mmItem.Address, mmItem.Size, mmItem.Perms, mmItem.Path)
}

// End returns the first address past the region.
func (mmItem MemoryMapItem) End() uint64 {
	return mmItem.Address + uint64(mmItem.Size)
}

func (mmItem MemoryMapItem) IsReadable() bool {
	return len(mmItem.Perms) > 0 && mmItem.Perms[0] == 'r'
}

func (mmItem MemoryMapItem) IsWritable() bool {
	return len(mmItem.Perms) > 1 && mmItem.Perms[1] == 'w'
}

// MemoryMap defines the interface for operations related to a process's memory map
type MemoryMap interface {
	// ReadMemoryMap reads and parses the memory map for a process
	ReadMemoryMap(pid int) ([]MemoryMapItem, error)

	// IsReadablePerms checks if a memory region has read permissions
	IsReadablePerms(perms string) bool

	// IsWritablePerms checks if a memory region has write permissions
	IsWritablePerms(perms string) bool

	// IsExecutablePerms checks if a memory region has execute permissions
	IsExecutablePerms(perms string) bool
}

// Helper functions for working with memory maps

// Sort orders the map by address, which FindRegion requires.
func Sort(memoryMap []MemoryMapItem) {
	sort.Slice(memoryMap, func(i, j int) bool {
		return memoryMap[i].Address < memoryMap[j].Address
	})
}

// FindRegion returns the region containing addr using a binary search.
// The memory map must be sorted by address.
func FindRegion(addr uint64, memoryMap []MemoryMapItem) *MemoryMapItem {
	i := sort.Search(len(memoryMap), func(i int) bool {
		return memoryMap[i].End() > addr
	})
	if i < len(memoryMap) && memoryMap[i].Address <= addr {
		return &memoryMap[i]
	}

	return nil
}

// Bounds returns the lowest start and highest end over all regions.
func Bounds(memoryMap []MemoryMapItem) (lo, hi uint64) {
	for i, item := range memoryMap {
		if i == 0 || item.Address < lo {
			lo = item.Address
		}
		if item.End() > hi {
			hi = item.End()
		}
	}
	return lo, hi
}

// MatchesModule reports whether a mapping path belongs to the module name.
// Versioned sonames match their unversioned name: libSDL3.so.0 is libSDL3.so.
func MatchesModule(path, name string) bool {
	if path == "" {
		return false
	}
	base := filepath.Base(path)
	if base == name {
		return true
	}
	version, ok := strings.CutPrefix(base, name+".")
	if !ok || version == "" {
		return false
	}
	for _, c := range version {
		if (c < '0' || c > '9') && c != '.' {
			return false
		}
	}
	return true
}

// ModuleSpan returns the span covered by every mapping whose backing file
// belongs to the module name, plus the full path of that file.
func ModuleSpan(name string, memoryMap []MemoryMapItem) (start, end uint64, path string, ok bool) {
	for _, item := range memoryMap {
		if !MatchesModule(item.Path, name) {
			continue
		}
		if !ok || item.Address < start {
			start = item.Address
		}
		if item.End() > end {
			end = item.End()
		}
		path = item.Path
		ok = true
	}
	return start, end, path, ok
}
