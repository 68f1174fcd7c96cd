package schema

import (
	"fmt"

	"memsync/process"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

// Build locates the registry root in module and walks every scope.
// Only a missing root fails the walk.
func Build(proc process.Process, module string, layout Layout) (*Registry, error) {
	root, err := Root(proc, module, layout)
	if err != nil {
		return nil, err
	}
	return Walk(proc, root, layout), nil
}

// Walk reads the registry at root. Unreadable or implausible entries skip
// their own branch and are counted in Stats.
func Walk(proc process.Process, root process.ProcessMemoryAddress, layout Layout) *Registry {
	w := &walker{
		proc:   proc,
		layout: layout,
		log:    logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "schema")),
		reg:    &Registry{scopes: make(map[string]*Scope)},
	}
	w.min, w.max = proc.AddressRange()
	w.walk(root)
	w.log.Infoln("Walked registry:", w.reg.Stats.Scopes, "scopes,", w.reg.Stats.Classes, "classes,", w.reg.Stats.Fields, "fields,", w.reg.Stats.Skipped, "skipped")
	return w.reg
}

type walker struct {
	proc     process.Process
	layout   Layout
	log      *logger.Logger
	min, max process.ProcessMemoryAddress
	reg      *Registry
}

func (w *walker) plausible(addr process.ProcessMemoryAddress) bool {
	return addr != 0 && addr > w.min && addr < w.max
}

func (w *walker) skip(what string, addr process.ProcessMemoryAddress, err error) {
	w.reg.Stats.Skipped++
	w.log.Debugln("skip", what, addr.ToString(), err)
}

func (w *walker) walk(root process.ProcessMemoryAddress) {
	count, err := w.proc.ReadINT32(root.Add(w.layout.ScopeCount))
	if err != nil {
		w.skip("root", root, err)
		return
	}
	if count < 0 || int(count) > w.layout.MaxScopes {
		w.skip("root", root, fmt.Errorf("scope count %d", count))
		return
	}
	array, err := w.proc.ReadPOINTER(root.Add(w.layout.ScopeArray))
	if err != nil {
		w.skip("root", root, err)
		return
	}

	for i := 0; i < int(count); i++ {
		slot := array.Add(process.ProcessMemorySize(i * 8))
		addr, err := w.proc.ReadPOINTER(slot)
		if err != nil || !w.plausible(addr) {
			w.skip("scope slot", slot, err)
			continue
		}
		w.scope(addr)
	}
}

func (w *walker) scope(addr process.ProcessMemoryAddress) {
	name, err := w.proc.ReadNTS(addr.Add(w.layout.ScopeName), w.layout.NameLength)
	if err != nil || name == "" {
		w.skip("scope", addr, err)
		return
	}

	s, ok := w.reg.scopes[name]
	if !ok {
		s = &Scope{Name: name, classes: make(map[string]*Class)}
		w.reg.scopes[name] = s
		w.reg.Stats.Scopes++
	}

	table := addr.Add(w.layout.ClassTable)

	buckets := table.Add(w.layout.Buckets)
	for i := 0; i < w.layout.BucketCount; i++ {
		bucket := buckets.Add(w.layout.BucketStride * process.ProcessMemorySize(i))
		element, err := w.proc.ReadUINT64(bucket.Add(w.layout.BucketFirst))
		if err != nil {
			w.skip("bucket", bucket, err)
			continue
		}
		w.chain(s, process.ProcessMemoryAddress(element), w.layout.ElementNext, w.layout.ElementData)
	}

	// Overflow list, read after the buckets so its entries win on collision
	blob, err := w.proc.ReadUINT64(table.Add(w.layout.FreeList))
	if err != nil {
		w.skip("free list", table, err)
		return
	}
	w.chain(s, process.ProcessMemoryAddress(blob), w.layout.BlobNext, w.layout.BlobData)
}

// chain follows a singly linked list of {next, data} nodes.
func (w *walker) chain(s *Scope, node process.ProcessMemoryAddress, next, data process.ProcessMemorySize) {
	for n := 0; node != 0; n++ {
		if n >= w.layout.MaxChain {
			w.skip("chain", node, fmt.Errorf("longer than %d", w.layout.MaxChain))
			return
		}

		ptr, err := w.proc.ReadUINT64(node.Add(data))
		if err != nil {
			w.skip("node", node, err)
			return
		}
		if class := process.ProcessMemoryAddress(ptr); w.plausible(class) {
			if c, ok := w.class(class); ok {
				if _, seen := s.classes[c.Name]; !seen {
					w.reg.Stats.Classes++
				}
				s.classes[c.Name] = c
			}
		}

		following, err := w.proc.ReadUINT64(node.Add(next))
		if err != nil {
			w.skip("node", node, err)
			return
		}
		node = process.ProcessMemoryAddress(following)
	}
}

func (w *walker) class(addr process.ProcessMemoryAddress) (*Class, bool) {
	namePtr, err := w.proc.ReadPOINTER(addr.Add(w.layout.ClassName))
	if err != nil {
		w.skip("class", addr, err)
		return nil, false
	}
	name, err := w.proc.ReadNTS(namePtr, w.layout.NameLength)
	if err != nil || name == "" {
		w.skip("class", addr, err)
		return nil, false
	}
	size, err := w.proc.ReadINT32(addr.Add(w.layout.ClassSize))
	if err != nil {
		w.skip("class", addr, err)
		return nil, false
	}

	c := &Class{Name: name, Size: size, Fields: make(map[string]process.ProcessMemorySize)}

	count, err := w.proc.ReadINT16(addr.Add(w.layout.ClassFieldCount))
	if err != nil || count < 0 || int(count) > w.layout.MaxFieldCount {
		w.skip("fields of "+name, addr, err)
		return c, true
	}
	if count == 0 {
		return c, true
	}

	fields, err := w.proc.ReadPOINTER(addr.Add(w.layout.ClassFields))
	if err != nil {
		w.skip("fields of "+name, addr, err)
		return c, true
	}

	for i := 0; i < int(count); i++ {
		field := fields.Add(w.layout.FieldStride * process.ProcessMemorySize(i))
		fieldName, offset, err := w.field(field)
		if err != nil {
			w.skip("field of "+name, field, err)
			continue
		}
		c.Fields[fieldName] = offset
		w.reg.Stats.Fields++
	}
	return c, true
}

func (w *walker) field(addr process.ProcessMemoryAddress) (string, process.ProcessMemorySize, error) {
	namePtr, err := w.proc.ReadPOINTER(addr.Add(w.layout.FieldName))
	if err != nil {
		return "", 0, err
	}
	name, err := w.proc.ReadNTS(namePtr, w.layout.NameLength)
	if err != nil {
		return "", 0, err
	}
	if name == "" {
		return "", 0, fmt.Errorf("empty field name")
	}
	offset, err := w.proc.ReadINT32(addr.Add(w.layout.FieldOffset))
	if err != nil {
		return "", 0, err
	}
	if offset < 0 {
		return "", 0, fmt.Errorf("negative offset %d", offset)
	}
	return name, process.ProcessMemorySize(offset), nil
}
