package signature

import (
	"fmt"

	"memsync/process"

	"golang.org/x/arch/x86/x86asm"
)

// maxInstructionLength is the architectural limit for one x86 instruction
const maxInstructionLength = 15

// Decode disassembles the 64-bit instruction at addr. Reads are shortened
// when the instruction sits at the end of a mapping.
func Decode(mem process.MemoryReader, addr process.ProcessMemoryAddress) (x86asm.Inst, error) {
	var data []byte
	var err error
	for n := maxInstructionLength; n > 0; n-- {
		if data, err = mem.ReadMemory(addr, process.ProcessMemorySize(n)); err == nil {
			break
		}
	}
	if err != nil {
		return x86asm.Inst{}, fmt.Errorf("read instruction at %s: %w", addr.ToString(), err)
	}

	inst, err := x86asm.Decode(data, 64)
	if err != nil {
		return x86asm.Inst{}, fmt.Errorf("decode instruction at %s: %w", addr.ToString(), err)
	}
	return inst, nil
}

// InstructionLength returns the encoded length of the instruction at addr.
func InstructionLength(mem process.MemoryReader, addr process.ProcessMemoryAddress) (int, error) {
	inst, err := Decode(mem, addr)
	if err != nil {
		return 0, err
	}
	return inst.Len, nil
}
