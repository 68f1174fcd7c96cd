package signature

import (
	"encoding/binary"
	"fmt"

	"memsync/process"
)

// ChunkSize bounds a single read issued while scanning.
var ChunkSize process.ProcessMemorySize = 1 << 20

// Region is a span of target memory.
type Region struct {
	Start process.ProcessMemoryAddress
	Size  process.ProcessMemorySize
}

// ModuleRegion returns the region covered by a loaded module.
func ModuleRegion(m process.Module) Region {
	return Region{Start: m.Base, Size: m.Size}
}

// MinReadSize is the smallest piece a failing chunk is split into. Memory
// is unreadable at page granularity.
var MinReadSize process.ProcessMemorySize = 0x1000

// Scan returns the lowest address in r where p matches. The region is read
// in chunks that overlap by Len()-1 bytes. A chunk that cannot be read is
// split in halves down to MinReadSize, so only its unreadable pieces are
// treated as containing no match.
func Scan(mem process.MemoryReader, p Pattern, r Region) (process.ProcessMemoryAddress, error) {
	if p.Len() == 0 {
		return 0, ErrEmptyPattern
	}
	var found process.ProcessMemoryAddress
	ok := false
	walk(mem, p, r, func(addr process.ProcessMemoryAddress) bool {
		found, ok = addr, true
		return false
	})
	if !ok {
		return 0, ErrNotFound
	}
	return found, nil
}

// ScanAll returns every address in r where p matches, lowest first, stopping
// after limit matches when limit is positive.
func ScanAll(mem process.MemoryReader, p Pattern, r Region, limit int) ([]process.ProcessMemoryAddress, error) {
	if p.Len() == 0 {
		return nil, ErrEmptyPattern
	}
	var out []process.ProcessMemoryAddress
	walk(mem, p, r, func(addr process.ProcessMemoryAddress) bool {
		out = append(out, addr)
		return limit <= 0 || len(out) < limit
	})
	return out, nil
}

// walk calls fn for every match in r in address order until fn returns
// false.
func walk(mem process.MemoryReader, p Pattern, r Region, fn func(process.ProcessMemoryAddress) bool) {
	overlap := process.ProcessMemorySize(p.Len() - 1)
	chunk := ChunkSize
	if chunk <= overlap {
		chunk = overlap + 1
	}

	s := scanner{mem: mem, p: p, overlap: overlap, fn: fn}
	for off := process.ProcessMemorySize(0); off+overlap < r.Size; off += chunk {
		own := chunk
		if off+own > r.Size {
			own = r.Size - off
		}
		n := own + overlap
		if off+n > r.Size {
			n = r.Size - off
		}
		if !s.scan(r.Start.Add(off), own, n) {
			return
		}
	}
}

type scanner struct {
	mem     process.MemoryReader
	p       Pattern
	overlap process.ProcessMemorySize
	fn      func(process.ProcessMemoryAddress) bool
}

// scan searches n bytes at start for matches starting in the first own
// bytes. It reports false once fn asked to stop.
func (s *scanner) scan(start process.ProcessMemoryAddress, own, n process.ProcessMemorySize) bool {
	if n < process.ProcessMemorySize(s.p.Len()) {
		return true
	}

	data, err := s.mem.ReadMemory(start, n)
	if err != nil {
		if own <= MinReadSize || own < 2 {
			return true
		}
		left := own / 2
		leftN := min(left+s.overlap, n)
		return s.scan(start, left, leftN) && s.scan(start.Add(left), own-left, n-left)
	}

	// Matches starting past own belong to the next piece
	for base := 0; ; {
		i := Find(data[base:], s.p)
		if i < 0 || process.ProcessMemorySize(base+i) >= own {
			return true
		}
		if !s.fn(start.Add(process.ProcessMemorySize(base + i))) {
			return false
		}
		base += i + 1
	}
}

// ScanModule scans the full mapped span of the named module.
func ScanModule(proc process.Process, p Pattern, module string) (process.ProcessMemoryAddress, error) {
	m, err := proc.ModuleRegion(module)
	if err != nil {
		return 0, err
	}
	addr, err := Scan(proc, p, ModuleRegion(m))
	if err != nil {
		return 0, fmt.Errorf("%s in %s: %w", p, module, err)
	}
	return addr, nil
}

// RelativeAddress resolves a RIP-relative operand: the address of the next
// instruction plus the signed 32-bit displacement at instr+operandOffset.
func RelativeAddress(mem process.MemoryReader, instr process.ProcessMemoryAddress, operandOffset, instrLen int) (process.ProcessMemoryAddress, error) {
	data, err := mem.ReadMemory(instr+process.ProcessMemoryAddress(operandOffset), 4)
	if err != nil {
		return 0, fmt.Errorf("displacement at %s+%d: %w", instr.ToString(), operandOffset, err)
	}
	disp := int64(int32(binary.LittleEndian.Uint32(data)))
	return process.ProcessMemoryAddress(int64(instr) + int64(instrLen) + disp), nil
}

// Resolve scans module for p and resolves the operand at operandOffset.
// An instrLen of 0 decodes the matched instruction to find its length.
func Resolve(proc process.Process, p Pattern, module string, operandOffset, instrLen int) (process.ProcessMemoryAddress, error) {
	instr, err := ScanModule(proc, p, module)
	if err != nil {
		return 0, err
	}
	if instrLen == 0 {
		if instrLen, err = InstructionLength(proc, instr); err != nil {
			return 0, err
		}
	}
	return RelativeAddress(proc, instr, operandOffset, instrLen)
}
