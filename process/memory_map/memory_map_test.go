//go:build linux

package memory_map

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseMapsLine(t *testing.T) {
	item, ok := parseMapsLine("7f1c2a000000-7f1c2a021000 r-xp 00000000 08:01 1234    /opt/game/bin/linuxsteamrt64/libclient.so")
	if !ok {
		t.Fatal("expected line to parse")
	}

	want := MemoryMapItem{
		Address: 0x7f1c2a000000,
		Size:    0x21000,
		Perms:   "r-xp",
		Path:    "/opt/game/bin/linuxsteamrt64/libclient.so",
	}
	if diff := cmp.Diff(want, item); diff != "" {
		t.Fatalf("parseMapsLine() mismatch (-want +got):\n%s", diff)
	}

	anon, ok := parseMapsLine("7ffd1000-7ffd2000 rw-p 00000000 00:00 0")
	if !ok || anon.Path != "" {
		t.Fatalf("anonymous mapping parsed as %+v, ok=%v", anon, ok)
	}

	if _, ok := parseMapsLine("garbage"); ok {
		t.Fatal("expected garbage to be rejected")
	}
}

func TestFindRegionAndBounds(t *testing.T) {
	mm := []MemoryMapItem{
		{Address: 0x3000, Size: 0x1000, Perms: "rw-p"},
		{Address: 0x1000, Size: 0x1000, Perms: "r--p"},
	}
	Sort(mm)

	if r := FindRegion(0x1800, mm); r == nil || r.Address != 0x1000 {
		t.Fatalf("expected region 0x1000, got %v", r)
	}
	if r := FindRegion(0x2800, mm); r != nil {
		t.Fatalf("expected gap to miss, got %v", r)
	}
	if r := FindRegion(0x4000, mm); r != nil {
		t.Fatalf("expected end to be exclusive, got %v", r)
	}

	lo, hi := Bounds(mm)
	if lo != 0x1000 || hi != 0x4000 {
		t.Fatalf("expected bounds 0x1000-0x4000 - got %#x-%#x", lo, hi)
	}
}

func TestModuleSpan(t *testing.T) {
	mm := []MemoryMapItem{
		{Address: 0x10000, Size: 0x1000, Perms: "r--p", Path: "/lib/libengine2.so"},
		{Address: 0x11000, Size: 0x4000, Perms: "r-xp", Path: "/lib/libengine2.so"},
		{Address: 0x15000, Size: 0x1000, Perms: "rw-p", Path: "/lib/libengine2.so"},
		{Address: 0x20000, Size: 0x1000, Perms: "r--p", Path: "/lib/libtier0.so"},
	}

	start, end, path, ok := ModuleSpan("libengine2.so", mm)
	if !ok {
		t.Fatal("expected module to be found")
	}
	if start != 0x10000 || end != 0x16000 || path != "/lib/libengine2.so" {
		t.Fatalf("unexpected span %#x-%#x %s", start, end, path)
	}

	if _, _, _, ok := ModuleSpan("libclient.so", mm); ok {
		t.Fatal("expected missing module")
	}
}

func TestMatchesModule(t *testing.T) {
	tests := []struct {
		path, name string
		want       bool
	}{
		{"/game/bin/libSDL3.so.0", "libSDL3.so", true},
		{"/game/bin/libSDL3.so.0", "libSDL3.so.0", true},
		{"/game/bin/libclient.so", "libclient.so", true},
		{"/game/bin/libclient.so", "libclient", false},
		{"/game/bin/libclient_extra.so", "libclient.so", false},
		{"", "libclient.so", false},
	}
	for _, tt := range tests {
		if got := MatchesModule(tt.path, tt.name); got != tt.want {
			t.Errorf("MatchesModule(%q, %q) = %v, want %v", tt.path, tt.name, got, tt.want)
		}
	}
}
