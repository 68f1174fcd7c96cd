// Package schematest lays out a synthetic reflection registry inside a
// process_blob.Image.
package schematest

import (
	"encoding/binary"

	"memsync/process"
	"memsync/process_blob"
	"memsync/schema"
)

// Field is one reflected field.
type Field struct {
	Name   string
	Offset int32
}

// Builder allocates registry structures from a bump heap.
type Builder struct {
	Image  *process_blob.Image
	Layout schema.Layout

	next, end process.ProcessMemoryAddress
}

// New maps a writable heap of size bytes at base for the registry.
func New(img *process_blob.Image, layout schema.Layout, base process.ProcessMemoryAddress, size process.ProcessMemorySize) *Builder {
	img.Map(base, size, "rw-p", "")
	return &Builder{Image: img, Layout: layout, next: base + 0x100, end: base.Add(size)}
}

// Alloc returns size zeroed bytes aligned to 16.
func (b *Builder) Alloc(size process.ProcessMemorySize) process.ProcessMemoryAddress {
	addr := b.next
	b.next = (addr.Add(size) + 15) &^ 15
	if b.next > b.end {
		panic("schematest: heap exhausted")
	}
	return addr
}

// String stores a NUL terminated string.
func (b *Builder) String(s string) process.ProcessMemoryAddress {
	addr := b.Alloc(process.ProcessMemorySize(len(s) + 1))
	b.Image.PutNTS(addr, s)
	return addr
}

// Class writes a class descriptor with the given fields.
func (b *Builder) Class(name string, size int32, fields ...Field) process.ProcessMemoryAddress {
	addr := b.ClassWithCount(name, size, int16(len(fields)))
	if len(fields) == 0 {
		return addr
	}

	array := b.Alloc(b.Layout.FieldStride * process.ProcessMemorySize(len(fields)))
	for i, f := range fields {
		entry := array.Add(b.Layout.FieldStride * process.ProcessMemorySize(i))
		b.Image.PutPOINTER(entry.Add(b.Layout.FieldName), b.String(f.Name))
		b.Image.PutINT32(entry.Add(b.Layout.FieldOffset), f.Offset)
	}
	b.Image.PutPOINTER(addr.Add(b.Layout.ClassFields), array)
	return addr
}

// ClassWithCount writes a class descriptor whose field count is count but
// whose field array pointer is left null.
func (b *Builder) ClassWithCount(name string, size int32, count int16) process.ProcessMemoryAddress {
	addr := b.Alloc(b.Layout.ClassFields + 8)
	b.Image.PutPOINTER(addr.Add(b.Layout.ClassName), b.String(name))
	b.Image.PutINT32(addr.Add(b.Layout.ClassSize), size)
	b.Image.PutINT16(addr.Add(b.Layout.ClassFieldCount), count)
	return addr
}

// Scope writes a scope whose buckets hold the given chains of class
// addresses and whose overflow list holds overflow, in order.
func (b *Builder) Scope(name string, buckets map[int][]process.ProcessMemoryAddress, overflow ...process.ProcessMemoryAddress) process.ProcessMemoryAddress {
	l := b.Layout
	size := l.ClassTable + l.Buckets + l.BucketStride*process.ProcessMemorySize(l.BucketCount)
	addr := b.Alloc(size)

	nameBytes := append([]byte(name), 0)
	b.Image.PutBytes(addr.Add(l.ScopeName), nameBytes)

	table := addr.Add(l.ClassTable)
	for i, classes := range buckets {
		bucket := table.Add(l.Buckets + l.BucketStride*process.ProcessMemorySize(i))
		b.Image.PutPOINTER(bucket.Add(l.BucketFirst), b.list(classes, l.ElementNext, l.ElementData))
	}
	b.Image.PutPOINTER(table.Add(l.FreeList), b.list(overflow, l.BlobNext, l.BlobData))
	return addr
}

func (b *Builder) list(classes []process.ProcessMemoryAddress, next, data process.ProcessMemorySize) process.ProcessMemoryAddress {
	var head process.ProcessMemoryAddress
	for i := len(classes) - 1; i >= 0; i-- {
		node := b.Alloc(0x20)
		b.Image.PutPOINTER(node.Add(data), classes[i])
		b.Image.PutPOINTER(node.Add(next), head)
		head = node
	}
	return head
}

// Root writes the registry root listing scopes.
func (b *Builder) Root(scopes ...process.ProcessMemoryAddress) process.ProcessMemoryAddress {
	root := b.Alloc(b.Layout.ScopeArray + 8)
	array := b.Alloc(process.ProcessMemorySize(8*len(scopes) + 8))
	for i, s := range scopes {
		b.Image.PutPOINTER(array.Add(process.ProcessMemorySize(8*i)), s)
	}
	b.Image.PutINT32(root.Add(b.Layout.ScopeCount), int32(len(scopes)))
	b.Image.PutPOINTER(root.Add(b.Layout.ScopeArray), array)
	return root
}

// Module maps an executable image named module at base whose code contains
// the default registry reference pointing at root.
func (b *Builder) Module(module string, base, root process.ProcessMemoryAddress) {
	b.Image.Map(base, 0x1000, "r-xp", "/game/bin/linuxsteamrt64/"+module)

	code := []byte{
		0x48, 0x8D, 0x3D, 0, 0, 0, 0,
		0xE8, 0, 0, 0, 0,
		0x48, 0x8B, 0xBD, 0, 0, 0, 0,
		0x31, 0xF6,
		0xE8, 0, 0, 0, 0,
		0xE9,
	}
	instr := base + 0x200
	binary.LittleEndian.PutUint32(code[3:], uint32(int32(int64(root)-int64(instr+7))))
	b.Image.PutBytes(instr, code)
}
