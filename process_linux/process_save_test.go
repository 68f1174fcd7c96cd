//go:build linux

package process_linux

import (
	"testing"

	"memsync/process/memory_map"

	"github.com/google/go-cmp/cmp"
)

func TestModuleNames(t *testing.T) {
	mm := []memory_map.MemoryMapItem{
		{Address: 0x1000, Path: "/game/bin/linuxsteamrt64/libtier0.so"},
		{Address: 0x2000, Path: "/game/bin/linuxsteamrt64/libtier0.so"},
		{Address: 0x3000, Path: "/game/csgo/bin/linuxsteamrt64/libclient.so"},
		{Address: 0x4000, Path: "[heap]"},
		{Address: 0x5000, Path: ""},
		{Address: 0x6000, Path: "/usr/lib/locale/locale-archive"},
	}

	want := []string{"libclient.so", "libtier0.so"}
	if diff := cmp.Diff(want, moduleNames(mm)); diff != "" {
		t.Fatalf("moduleNames mismatch (-want +got):\n%s", diff)
	}
}
