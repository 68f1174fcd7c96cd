package process_blob

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"memsync/process"
	"memsync/process/memory_map"
)

// On-disk layout of a saved process
const (
	MetadataFile  = "metadata.json"
	MemoryMapFile = "process_memory_map.json"
)

// BlobFileName names the file holding the bytes of one region.
func BlobFileName(addr uint64, size uint) string {
	return fmt.Sprintf("blob_0x%x_%d.bin", addr, size)
}

// Exports maps module name to symbol name to absolute address.
type Exports map[string]map[string]process.ProcessMemoryAddress

// Metadata describes a saved process beyond its raw memory.
type Metadata struct {
	PID     process.ProcessID `json:"pid"`
	Name    string            `json:"name"`
	Modules []process.Module  `json:"modules,omitempty"`
	Exports Exports           `json:"exports,omitempty"`
}

// Load reads a directory written by a live process Save into a new Image.
// Regions whose blob file is absent stay mapped but unreadable.
func Load(dirname string) (*Image, error) {
	metadataBytes, err := os.ReadFile(filepath.Join(dirname, MetadataFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var metadata Metadata
	if err := json.Unmarshal(metadataBytes, &metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	mmBytes, err := os.ReadFile(filepath.Join(dirname, MemoryMapFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read memory map: %w", err)
	}

	var mm []memory_map.MemoryMapItem
	if err := json.Unmarshal(mmBytes, &mm); err != nil {
		return nil, fmt.Errorf("failed to unmarshal memory map: %w", err)
	}

	img := NewImage(metadata.PID)
	img.name = metadata.Name

	for _, region := range mm {
		filename := filepath.Join(dirname, BlobFileName(region.Address, region.Size))
		data, err := os.ReadFile(filename)
		if os.IsNotExist(err) {
			// Blob not saved (e.g. too large or not readable)
			img.MapRegion(region, nil)
			img.Unreadable(process.ProcessMemoryAddress(region.Address), process.ProcessMemorySize(region.Size))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read blob %s: %w", filename, err)
		}
		img.MapRegion(region, data)
	}

	for _, m := range metadata.Modules {
		img.AddModule(m)
	}
	for module, syms := range metadata.Exports {
		for symbol, addr := range syms {
			img.AddExport(module, symbol, addr)
		}
	}

	return img, nil
}
