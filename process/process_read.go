package process

import (
	"encoding/binary"
	"math"
)

// Reader implements ProcessRead on top of any MemoryReader. Process
// implementations embed it instead of repeating the typed decoders.
type Reader struct {
	mem MemoryReader
}

var _ ProcessRead = Reader{}

// NewReader returns a Reader decoding little-endian values read from mem.
func NewReader(mem MemoryReader) Reader {
	return Reader{mem: mem}
}

// ReadUINT8 reads an unsigned 8-bit integer from the specified address
func (r Reader) ReadUINT8(addr ProcessMemoryAddress) (uint8, error) {
	data, err := r.mem.ReadMemory(addr, 1)
	if err != nil {
		return 0, err
	}
	return data[0], nil
}

// ReadUINT16 reads an unsigned 16-bit integer from the specified address
func (r Reader) ReadUINT16(addr ProcessMemoryAddress) (uint16, error) {
	data, err := r.mem.ReadMemory(addr, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(data), nil
}

// ReadUINT32 reads an unsigned 32-bit integer from the specified address
func (r Reader) ReadUINT32(addr ProcessMemoryAddress) (uint32, error) {
	data, err := r.mem.ReadMemory(addr, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(data), nil
}

// ReadUINT64 reads an unsigned 64-bit integer from the specified address
func (r Reader) ReadUINT64(addr ProcessMemoryAddress) (uint64, error) {
	data, err := r.mem.ReadMemory(addr, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(data), nil
}

// ReadINT16 reads a signed 16-bit integer from the specified address
func (r Reader) ReadINT16(addr ProcessMemoryAddress) (int16, error) {
	v, err := r.ReadUINT16(addr)
	return int16(v), err
}

// ReadINT32 reads a signed 32-bit integer from the specified address
func (r Reader) ReadINT32(addr ProcessMemoryAddress) (int32, error) {
	v, err := r.ReadUINT32(addr)
	return int32(v), err
}

// ReadINT64 reads a signed 64-bit integer from the specified address
func (r Reader) ReadINT64(addr ProcessMemoryAddress) (int64, error) {
	v, err := r.ReadUINT64(addr)
	return int64(v), err
}

// ReadFLOAT32 reads a 32-bit floating point number from the specified address
func (r Reader) ReadFLOAT32(addr ProcessMemoryAddress) (float32, error) {
	v, err := r.ReadUINT32(addr)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// ReadNTS reads a null-terminated string from the specified address with a maximum length.
// Strings that end close to a region boundary are retried with a short read.
func (r Reader) ReadNTS(addr ProcessMemoryAddress, maxLength ProcessMemorySize) (string, error) {
	if maxLength == 0 {
		return "", nil
	}

	data, err := r.mem.ReadMemory(addr, maxLength)
	if err != nil {
		if maxLength <= 32 {
			return "", err
		}
		if data, err = r.mem.ReadMemory(addr, 32); err != nil {
			return "", err
		}
	}

	// Find the null terminator
	for i, b := range data {
		if b == 0 {
			return string(data[:i]), nil
		}
	}

	// If no null terminator found, return the whole buffer as string
	return string(data), nil
}

// ReadPOINTER reads a pointer value from the specified address
func (r Reader) ReadPOINTER(addr ProcessMemoryAddress) (ProcessMemoryAddress, error) {
	if addr == 0 {
		return 0, ErrInvalidPointer
	}
	v, err := r.ReadUINT64(addr)
	return ProcessMemoryAddress(v), err
}

// ReadPOINTER2 reads a pointer value from the specified address, zero on error
func (r Reader) ReadPOINTER2(addr ProcessMemoryAddress) ProcessMemoryAddress {
	ptr, err := r.ReadPOINTER(addr)
	if err != nil {
		return 0
	}
	return ptr
}
