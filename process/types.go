package process

import "fmt"

// ProcessID represents a unique identifier for a process
type ProcessID int

// ProcessInfo contains basic information about a process
type ProcessInfo struct {
	PID  ProcessID // Process ID
	Name string    // Process name
	Exe  string    // Path to the executable, best effort
}

// Module is a binary image loaded in the target process.
type Module struct {
	Name string               // File name, e.g. libclient.so
	Path string               // Full path as reported by the memory map
	Base ProcessMemoryAddress // Lowest mapped address of the image
	Size ProcessMemorySize    // Span from Base to the end of the last mapping
}

// End returns the first address past the module.
func (m Module) End() ProcessMemoryAddress {
	return m.Base + ProcessMemoryAddress(m.Size)
}

// Contains reports whether addr lies inside the module.
func (m Module) Contains(addr ProcessMemoryAddress) bool {
	return addr >= m.Base && addr < m.End()
}

func (m Module) String() string {
	return fmt.Sprintf("%s@%s+%#x", m.Name, m.Base.ToString(), uint(m.Size))
}
