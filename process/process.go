// Package process defines the narrow access port used to observe and patch
// the memory of another process.
package process

import "errors"

// The concrete implementations live in:
// - process_linux: a live target attached through process_vm_readv/writev
// - process_blob: a synthetic in-memory image used by tests and offline tools

var (
	// ErrAddressNotMapped is returned when a memory address is not found within any mapped region of a process.
	ErrAddressNotMapped = errors.New("address not mapped")

	// ErrProcessNotOpen is returned when an operation requiring an open process is attempted
	// before the process has been successfully opened or after it has been closed.
	ErrProcessNotOpen = errors.New("process not open")

	ErrInvalidPointer = errors.New("invalid pointer read")

	// ErrProcessNotFound is returned when no running process matches a name.
	ErrProcessNotFound = errors.New("process not found")

	// ErrModuleNotFound is returned when a module is not loaded in the target.
	ErrModuleNotFound = errors.New("module not found")

	// ErrSymbolNotFound is returned when a module does not export a symbol.
	ErrSymbolNotFound = errors.New("symbol not found")
)
