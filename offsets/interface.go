package offsets

import (
	"errors"
	"fmt"
	"strings"

	"memsync/process"
	"memsync/signature"
)

var ErrInterfaceNotFound = errors.New("interface not found")

// InterfaceLayout describes the factory registry reached from an exported
// CreateInterface. CreateInterface starts with a jump to the real lookup
// function, which loads the registry head through a RIP-relative mov.
type InterfaceLayout struct {
	Export        string                    `mapstructure:"export"`
	JumpOperand   int                       `mapstructure:"jump_operand"`
	JumpLength    int                       `mapstructure:"jump_length"`
	HeadSkip      process.ProcessMemorySize `mapstructure:"head_skip"`
	HeadOperand   int                       `mapstructure:"head_operand"`
	HeadLength    int                       `mapstructure:"head_length"`
	EntryCreate   process.ProcessMemorySize `mapstructure:"entry_create"`
	EntryName     process.ProcessMemorySize `mapstructure:"entry_name"`
	EntryNext     process.ProcessMemorySize `mapstructure:"entry_next"`
	CreateOperand int                       `mapstructure:"create_operand"`
	CreateLength  int                       `mapstructure:"create_length"`
	MaxEntries    int                       `mapstructure:"max_entries"`
}

func DefaultInterfaceLayout() InterfaceLayout {
	return InterfaceLayout{
		Export:        "CreateInterface",
		JumpOperand:   1,
		JumpLength:    5,
		HeadSkip:      0x10,
		HeadOperand:   3,
		HeadLength:    7,
		EntryCreate:   0x00,
		EntryName:     0x08,
		EntryNext:     0x10,
		CreateOperand: 3,
		CreateLength:  7,
		MaxEntries:    4096,
	}
}

// InterfaceAddress returns the instance registered in module under a name
// starting with factory, e.g. "VEngineCvar0" matches "VEngineCvar007".
func InterfaceAddress(proc process.Process, module, factory string, layout InterfaceLayout) (process.ProcessMemoryAddress, error) {
	create, err := proc.ModuleExport(module, layout.Export)
	if err != nil {
		return 0, err
	}

	lookup, err := signature.RelativeAddress(proc, create, layout.JumpOperand, layout.JumpLength)
	if err != nil {
		return 0, fmt.Errorf("%s!%s: %w", module, layout.Export, err)
	}
	headRef, err := signature.RelativeAddress(proc, lookup.Add(layout.HeadSkip), layout.HeadOperand, layout.HeadLength)
	if err != nil {
		return 0, fmt.Errorf("%s registry: %w", module, err)
	}
	entry, err := proc.ReadPOINTER(headRef)
	if err != nil {
		return 0, fmt.Errorf("%s registry head: %w", module, err)
	}

	for n := 0; entry != 0 && n < layout.MaxEntries; n++ {
		namePtr, err := proc.ReadPOINTER(entry.Add(layout.EntryName))
		if err != nil {
			return 0, fmt.Errorf("%s registry entry %s: %w", module, entry.ToString(), err)
		}
		name, err := proc.ReadNTS(namePtr, 128)
		if err == nil && strings.HasPrefix(name, factory) {
			fn, err := proc.ReadPOINTER(entry.Add(layout.EntryCreate))
			if err != nil {
				return 0, fmt.Errorf("%s create function: %w", name, err)
			}
			return signature.RelativeAddress(proc, fn, layout.CreateOperand, layout.CreateLength)
		}

		if entry, err = proc.ReadPOINTER(entry.Add(layout.EntryNext)); err != nil {
			return 0, fmt.Errorf("%s registry: %w", module, err)
		}
	}

	return 0, fmt.Errorf("%s in %s: %w", factory, module, ErrInterfaceNotFound)
}
