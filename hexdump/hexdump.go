// Package hexdump renders memory for the command line tools. Lines are
// labeled with their target address, a highlighted span marks a match and
// aligned quadwords that land in a mapped region are tagged as pointers.
package hexdump

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"memsync/process/memory_map"

	"github.com/Moonlight-Companies/gologger/coloransi"
)

type Options struct {
	// Start is the address of data[0]
	Start uint64
	// Width is the number of bytes per line, a multiple of 8
	Width int
	// Highlight marks data[HighlightFrom:HighlightTo]
	HighlightFrom, HighlightTo int
	// MemoryMap enables pointer tagging
	MemoryMap []memory_map.MemoryMapItem
	Color     bool
}

func DefaultOptions() Options {
	return Options{Width: 16, Color: true}
}

// Dump writes data to w, one line per Width bytes.
func Dump(w io.Writer, data []byte, opts Options) error {
	if opts.Width <= 0 || opts.Width%8 != 0 {
		opts.Width = 16
	}
	for off := 0; off < len(data); off += opts.Width {
		end := min(off+opts.Width, len(data))
		if _, err := io.WriteString(w, line(data, off, end, opts)+"\n"); err != nil {
			return err
		}
	}
	return nil
}

func String(data []byte, opts Options) string {
	var buf bytes.Buffer
	_ = Dump(&buf, data, opts)
	return buf.String()
}

func line(data []byte, off, end int, opts Options) string {
	var sb strings.Builder
	sb.WriteString(paint(opts, coloransi.Cyan, fmt.Sprintf("%016x", opts.Start+uint64(off))))
	sb.WriteString("  ")

	for i := off; i < off+opts.Width; i++ {
		if i > off && (i-off)%8 == 0 {
			sb.WriteByte(' ')
		}
		if i >= end {
			sb.WriteString("   ")
			continue
		}
		sb.WriteString(hexByte(data[i], i, opts))
		sb.WriteByte(' ')
	}

	sb.WriteString(" |")
	for i := off; i < end; i++ {
		c := data[i]
		if c < 0x20 || c > 0x7e {
			c = '.'
		}
		if opts.highlighted(i) {
			sb.WriteString(paint(opts, coloransi.Yellow, string(c)))
		} else {
			sb.WriteByte(c)
		}
	}
	sb.WriteByte('|')

	if tags := pointers(data, off, end, opts); len(tags) > 0 {
		sb.WriteString("  ")
		sb.WriteString(paint(opts, coloransi.BrightBlue, strings.Join(tags, " ")))
	}
	return sb.String()
}

func hexByte(b byte, i int, opts Options) string {
	s := fmt.Sprintf("%02x", b)
	switch {
	case opts.highlighted(i):
		return paint(opts, coloransi.Yellow, s)
	case b == 0:
		return paint(opts, coloransi.BrightBlack, s)
	default:
		return s
	}
}

func (o Options) highlighted(i int) bool {
	return i >= o.HighlightFrom && i < o.HighlightTo
}

// pointers lists the aligned quadwords of the line that point into the
// memory map, as "+off->addr".
func pointers(data []byte, off, end int, opts Options) []string {
	if len(opts.MemoryMap) == 0 {
		return nil
	}
	var tags []string
	for i := off; i+8 <= end; i++ {
		if (opts.Start+uint64(i))%8 != 0 {
			continue
		}
		v := binary.LittleEndian.Uint64(data[i:])
		if v == 0 || memory_map.FindRegion(v, opts.MemoryMap) == nil {
			continue
		}
		tags = append(tags, fmt.Sprintf("+%x->%x", i, v))
	}
	return tags
}

func paint(opts Options, c coloransi.ColorCode, s string) string {
	if !opts.Color {
		return s
	}
	return coloransi.Foreground(c, s)
}
