package process

import (
	"memsync/process/memory_map"
)

// Process is the interface that defines operations for interacting with a system process.
// Every read and write is a single bounded attempt; implementations never retry.
type Process interface {
	// Open opens a process with the given PID for memory operations
	Open(pid ProcessID) error

	// Close closes the process and releases resources
	Close() error

	// GetPID returns the process ID
	GetPID() ProcessID

	// IsAlive reports whether the attached process is still running
	IsAlive() bool

	// UpdateMemoryMap refreshes the memory map for the process
	UpdateMemoryMap() error

	// GetMemoryMap returns a copy of the current memory map
	GetMemoryMap() ([]memory_map.MemoryMapItem, error)

	// IsValidAddress checks if the given memory address is valid and readable
	IsValidAddress(addr ProcessMemoryAddress) bool

	// AddressRange returns the lowest and highest mapped addresses of the target
	AddressRange() (min, max ProcessMemoryAddress)

	// ReadMemory reads memory from the process at the specified address
	ReadMemory(addr ProcessMemoryAddress, size ProcessMemorySize) ([]byte, error)

	// WriteMemory writes data to the process memory at the specified address
	WriteMemory(addr ProcessMemoryAddress, data []byte) error

	// Module lookups
	ModuleResolver

	// Typed memory reading operations
	ProcessRead
}

// ModuleResolver resolves loaded images of the target by file name.
type ModuleResolver interface {
	// ModuleBase returns the base address of a loaded module
	ModuleBase(name string) (ProcessMemoryAddress, error)

	// ModuleRegion returns the full mapped span of a loaded module
	ModuleRegion(name string) (Module, error)

	// ModuleExport returns the absolute address of a symbol exported by a module
	ModuleExport(name, symbol string) (ProcessMemoryAddress, error)
}

// ProcessRead defines typed read operations for process memory
type ProcessRead interface {
	// ReadUINT8 reads an unsigned 8-bit integer from the specified address
	ReadUINT8(addr ProcessMemoryAddress) (uint8, error)

	// ReadUINT16 reads an unsigned 16-bit integer from the specified address
	ReadUINT16(addr ProcessMemoryAddress) (uint16, error)

	// ReadUINT32 reads an unsigned 32-bit integer from the specified address
	ReadUINT32(addr ProcessMemoryAddress) (uint32, error)

	// ReadUINT64 reads an unsigned 64-bit integer from the specified address
	ReadUINT64(addr ProcessMemoryAddress) (uint64, error)

	// ReadINT16 reads a signed 16-bit integer from the specified address
	ReadINT16(addr ProcessMemoryAddress) (int16, error)

	// ReadINT32 reads a signed 32-bit integer from the specified address
	ReadINT32(addr ProcessMemoryAddress) (int32, error)

	// ReadINT64 reads a signed 64-bit integer from the specified address
	ReadINT64(addr ProcessMemoryAddress) (int64, error)

	// ReadFLOAT32 reads a 32-bit floating point number from the specified address
	ReadFLOAT32(addr ProcessMemoryAddress) (float32, error)

	// ReadNTS reads a null-terminated string from the specified address with a maximum length
	ReadNTS(addr ProcessMemoryAddress, maxLength ProcessMemorySize) (string, error)

	// ReadPOINTER reads a pointer value from the specified address
	ReadPOINTER(addr ProcessMemoryAddress) (ProcessMemoryAddress, error)

	// ReadPOINTER2 reads a pointer value from the specified address, zero on error
	ReadPOINTER2(addr ProcessMemoryAddress) ProcessMemoryAddress
}

// MemoryReader is the raw read primitive the typed helpers are built on.
type MemoryReader interface {
	ReadMemory(addr ProcessMemoryAddress, size ProcessMemorySize) ([]byte, error)
}
