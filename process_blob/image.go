package process_blob

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"sync"

	"memsync/process"
	"memsync/process/memory_map"
)

// Image is a sparse in-memory process. It serves saved dumps and lets tests
// lay out synthetic game memory, then inspect what was written back.
type Image struct {
	process.Reader

	mu         sync.Mutex
	pid        process.ProcessID
	name       string
	alive      bool
	regions    []region
	holes      []span
	modules    map[string]process.Module
	exports    Exports
	writes     []Write
	failWrites bool
}

type region struct {
	item memory_map.MemoryMapItem
	data []byte
}

type span struct {
	lo, hi process.ProcessMemoryAddress
}

func (s span) overlaps(lo, hi process.ProcessMemoryAddress) bool {
	return lo < s.hi && s.lo < hi
}

// Write records one successful WriteMemory call.
type Write struct {
	Addr process.ProcessMemoryAddress
	Data []byte
}

var _ process.Process = (*Image)(nil)

// NewImage returns an empty, alive image reporting pid.
func NewImage(pid process.ProcessID) *Image {
	img := &Image{
		pid:     pid,
		alive:   true,
		modules: make(map[string]process.Module),
		exports: make(Exports),
	}
	img.Reader = process.NewReader(img)
	return img
}

// Name returns the process name recorded in a loaded dump.
func (img *Image) Name() string {
	return img.name
}

// Map adds a zero-filled region and returns its backing slice.
func (img *Image) Map(addr process.ProcessMemoryAddress, size process.ProcessMemorySize, perms, path string) []byte {
	data := make([]byte, size)
	img.MapRegion(memory_map.MemoryMapItem{
		Address: uint64(addr),
		Size:    uint(size),
		Perms:   perms,
		Path:    path,
	}, data)
	return data
}

// MapRegion adds a region backed by data. A nil data maps the range without
// contents, so reads inside it fail.
func (img *Image) MapRegion(item memory_map.MemoryMapItem, data []byte) {
	img.mu.Lock()
	defer img.mu.Unlock()

	img.regions = append(img.regions, region{item: item, data: data})
	sort.Slice(img.regions, func(i, j int) bool {
		return img.regions[i].item.Address < img.regions[j].item.Address
	})
}

// Unreadable makes every access overlapping [addr, addr+size) fail.
func (img *Image) Unreadable(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) {
	img.mu.Lock()
	defer img.mu.Unlock()
	img.holes = append(img.holes, span{lo: addr, hi: addr.Add(size)})
}

// AddModule registers a loaded image by name.
func (img *Image) AddModule(m process.Module) {
	img.mu.Lock()
	defer img.mu.Unlock()
	img.modules[m.Name] = m
}

// AddExport registers an exported symbol of module at an absolute address.
func (img *Image) AddExport(module, symbol string, addr process.ProcessMemoryAddress) {
	img.mu.Lock()
	defer img.mu.Unlock()
	if img.exports[module] == nil {
		img.exports[module] = make(map[string]process.ProcessMemoryAddress)
	}
	img.exports[module][symbol] = addr
}

// SetAlive changes what IsAlive reports.
func (img *Image) SetAlive(alive bool) {
	img.mu.Lock()
	defer img.mu.Unlock()
	img.alive = alive
}

// FailWrites makes every following WriteMemory call fail.
func (img *Image) FailWrites(fail bool) {
	img.mu.Lock()
	defer img.mu.Unlock()
	img.failWrites = fail
}

// Writes returns the writes recorded since the last ResetWrites.
func (img *Image) Writes() []Write {
	img.mu.Lock()
	defer img.mu.Unlock()
	out := make([]Write, len(img.writes))
	copy(out, img.writes)
	return out
}

func (img *Image) ResetWrites() {
	img.mu.Lock()
	defer img.mu.Unlock()
	img.writes = nil
}

// Metadata describes the image in the form Save records it. Modules are
// ordered by name.
func (img *Image) Metadata() Metadata {
	img.mu.Lock()
	defer img.mu.Unlock()

	meta := Metadata{PID: img.pid, Name: img.name, Exports: make(Exports)}
	for _, m := range img.modules {
		meta.Modules = append(meta.Modules, m)
	}
	sort.Slice(meta.Modules, func(i, j int) bool { return meta.Modules[i].Name < meta.Modules[j].Name })
	for module, syms := range img.exports {
		meta.Exports[module] = make(map[string]process.ProcessMemoryAddress, len(syms))
		for symbol, addr := range syms {
			meta.Exports[module][symbol] = addr
		}
	}
	return meta
}

// Typed setters. They bypass write recording and permission checks.

func (img *Image) PutBytes(addr process.ProcessMemoryAddress, data []byte) {
	img.mu.Lock()
	defer img.mu.Unlock()
	if err := img.copyLocked(addr, data, true, false); err != nil {
		panic(fmt.Sprintf("process_blob: put at %s: %v", addr.ToString(), err))
	}
}

func (img *Image) PutUINT16(addr process.ProcessMemoryAddress, v uint16) {
	img.PutBytes(addr, binary.LittleEndian.AppendUint16(nil, v))
}

func (img *Image) PutINT16(addr process.ProcessMemoryAddress, v int16) {
	img.PutUINT16(addr, uint16(v))
}

func (img *Image) PutUINT32(addr process.ProcessMemoryAddress, v uint32) {
	img.PutBytes(addr, binary.LittleEndian.AppendUint32(nil, v))
}

func (img *Image) PutINT32(addr process.ProcessMemoryAddress, v int32) {
	img.PutUINT32(addr, uint32(v))
}

func (img *Image) PutUINT64(addr process.ProcessMemoryAddress, v uint64) {
	img.PutBytes(addr, binary.LittleEndian.AppendUint64(nil, v))
}

func (img *Image) PutPOINTER(addr, v process.ProcessMemoryAddress) {
	img.PutUINT64(addr, uint64(v))
}

func (img *Image) PutFLOAT32(addr process.ProcessMemoryAddress, v float32) {
	img.PutUINT32(addr, math.Float32bits(v))
}

// PutNTS stores s followed by a NUL byte.
func (img *Image) PutNTS(addr process.ProcessMemoryAddress, s string) {
	img.PutBytes(addr, append([]byte(s), 0))
}

// Process implementation

func (img *Image) Open(pid process.ProcessID) error {
	img.mu.Lock()
	defer img.mu.Unlock()
	img.pid = pid
	img.alive = true
	return nil
}

func (img *Image) Close() error {
	img.SetAlive(false)
	return nil
}

func (img *Image) GetPID() process.ProcessID {
	img.mu.Lock()
	defer img.mu.Unlock()
	return img.pid
}

func (img *Image) IsAlive() bool {
	img.mu.Lock()
	defer img.mu.Unlock()
	return img.alive
}

func (img *Image) UpdateMemoryMap() error {
	return nil // Memory map only changes through Map
}

func (img *Image) GetMemoryMap() ([]memory_map.MemoryMapItem, error) {
	img.mu.Lock()
	defer img.mu.Unlock()
	result := make([]memory_map.MemoryMapItem, len(img.regions))
	for i, r := range img.regions {
		result[i] = r.item
	}
	return result, nil
}

func (img *Image) IsValidAddress(addr process.ProcessMemoryAddress) bool {
	img.mu.Lock()
	defer img.mu.Unlock()
	r := img.findLocked(addr)
	return r != nil && r.data != nil && r.item.IsReadable()
}

func (img *Image) AddressRange() (min, max process.ProcessMemoryAddress) {
	img.mu.Lock()
	defer img.mu.Unlock()
	if len(img.regions) == 0 {
		return 0, 0
	}
	min = process.ProcessMemoryAddress(img.regions[0].item.Address)
	for _, r := range img.regions {
		if end := process.ProcessMemoryAddress(r.item.End()); end > max {
			max = end
		}
	}
	return min, max
}

func (img *Image) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	if size == 0 {
		return []byte{}, nil
	}
	img.mu.Lock()
	defer img.mu.Unlock()

	buf := make([]byte, size)
	if err := img.copyLocked(addr, buf, false, false); err != nil {
		return nil, err
	}
	return buf, nil
}

func (img *Image) WriteMemory(addr process.ProcessMemoryAddress, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	img.mu.Lock()
	defer img.mu.Unlock()

	if img.failWrites {
		return fmt.Errorf("write at %s: %w", addr.ToString(), process.ErrAddressNotMapped)
	}
	if err := img.copyLocked(addr, data, true, true); err != nil {
		return err
	}

	recorded := make([]byte, len(data))
	copy(recorded, data)
	img.writes = append(img.writes, Write{Addr: addr, Data: recorded})
	return nil
}

func (img *Image) ModuleRegion(name string) (process.Module, error) {
	img.mu.Lock()
	defer img.mu.Unlock()
	if m, ok := img.modules[name]; ok {
		return m, nil
	}

	mm := make([]memory_map.MemoryMapItem, len(img.regions))
	for i, r := range img.regions {
		mm[i] = r.item
	}
	start, end, path, ok := memory_map.ModuleSpan(name, mm)
	if !ok {
		return process.Module{}, fmt.Errorf("%s: %w", name, process.ErrModuleNotFound)
	}
	return process.Module{
		Name: name,
		Path: path,
		Base: process.ProcessMemoryAddress(start),
		Size: process.ProcessMemorySize(end - start),
	}, nil
}

func (img *Image) ModuleBase(name string) (process.ProcessMemoryAddress, error) {
	m, err := img.ModuleRegion(name)
	if err != nil {
		return 0, err
	}
	return m.Base, nil
}

func (img *Image) ModuleExport(name, symbol string) (process.ProcessMemoryAddress, error) {
	if _, err := img.ModuleRegion(name); err != nil {
		return 0, err
	}
	img.mu.Lock()
	defer img.mu.Unlock()
	addr, ok := img.exports[name][symbol]
	if !ok {
		return 0, fmt.Errorf("%s!%s: %w", name, symbol, process.ErrSymbolNotFound)
	}
	return addr, nil
}

func (img *Image) findLocked(addr process.ProcessMemoryAddress) *region {
	i := sort.Search(len(img.regions), func(i int) bool {
		return img.regions[i].item.End() > uint64(addr)
	})
	if i < len(img.regions) && img.regions[i].item.Address <= uint64(addr) {
		return &img.regions[i]
	}
	return nil
}

// copyLocked moves bytes between buf and the image. Accesses may span
// adjacent regions but never a gap or an unreadable hole.
func (img *Image) copyLocked(addr process.ProcessMemoryAddress, buf []byte, toImage, checkPerms bool) error {
	end := addr.Add(process.ProcessMemorySize(len(buf)))
	if end < addr {
		return fmt.Errorf("access at %s wraps: %w", addr.ToString(), process.ErrAddressNotMapped)
	}
	for _, h := range img.holes {
		if h.overlaps(addr, end) {
			return fmt.Errorf("access at %s: %w", addr.ToString(), process.ErrAddressNotMapped)
		}
	}

	done := 0
	for cur := addr; cur < end; {
		r := img.findLocked(cur)
		if r == nil || r.data == nil {
			return fmt.Errorf("access at %s: %w", cur.ToString(), process.ErrAddressNotMapped)
		}
		if checkPerms && !r.item.IsWritable() {
			return fmt.Errorf("write at %s: region %s is not writable", cur.ToString(), r.item.Perms)
		}
		off := uint64(cur) - r.item.Address
		if off >= uint64(len(r.data)) {
			return fmt.Errorf("access at %s: %w", cur.ToString(), process.ErrAddressNotMapped)
		}
		var n int
		if toImage {
			n = copy(r.data[off:], buf[done:])
		} else {
			n = copy(buf[done:], r.data[off:])
		}
		done += n
		cur = cur.Add(process.ProcessMemorySize(n))
	}
	return nil
}
