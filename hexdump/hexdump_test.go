package hexdump

import (
	"encoding/binary"
	"strings"
	"testing"

	"memsync/process/memory_map"

	"github.com/google/go-cmp/cmp"
)

func TestDumpPlain(t *testing.T) {
	data := []byte("ABCDEFGHIJKLMNOPQR\x00\x01")

	got := String(data, Options{Start: 0x1000, Width: 16})
	want := "0000000000001000  41 42 43 44 45 46 47 48  49 4a 4b 4c 4d 4e 4f 50  |ABCDEFGHIJKLMNOP|\n" +
		"0000000000001010  51 52 00 01                                       |QR..|\n"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("dump mismatch (-want +got):\n%s", diff)
	}
}

func TestDumpDefaultsWidth(t *testing.T) {
	got := String(make([]byte, 32), Options{Width: 5})
	if n := strings.Count(got, "\n"); n != 2 {
		t.Errorf("expected 2 lines, got %d:\n%s", n, got)
	}
}

func TestDumpHighlight(t *testing.T) {
	got := String([]byte("AB"), Options{Width: 8, HighlightFrom: 1, HighlightTo: 2, Color: true})

	if !strings.Contains(got, "41 \033[33m42\033[0m ") {
		t.Errorf("match byte not highlighted: %q", got)
	}
	if !strings.Contains(got, "|A\033[33mB\033[0m|") {
		t.Errorf("match char not highlighted: %q", got)
	}
}

func TestDumpPointers(t *testing.T) {
	mm := []memory_map.MemoryMapItem{{Address: 0x2000, Size: 0x100, Perms: "rw-p"}}
	data := make([]byte, 16)
	binary.LittleEndian.PutUint64(data[0:], 0x9999)
	binary.LittleEndian.PutUint64(data[8:], 0x2010)

	got := String(data, Options{Start: 0x1000, Width: 16, MemoryMap: mm})
	if !strings.HasSuffix(got, "|  +8->2010\n") {
		t.Errorf("pointer not tagged: %q", got)
	}
	if strings.Contains(got, "->9999") {
		t.Errorf("unmapped value tagged: %q", got)
	}
}
