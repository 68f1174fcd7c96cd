package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"memsync/hexdump"
	"memsync/process"
	"memsync/process_blob"
	"memsync/table"

	"github.com/spf13/pflag"
)

func main() {
	fromFlag := pflag.String("from", "", "Directory containing the dump")
	addrFlag := pflag.String("addr", "", "Address to read from (hex), or module+offset such as libclient.so+0x1000")
	sizeFlag := pflag.Int("size", 256, "Number of bytes to hexdump")
	mapFlag := pflag.Bool("map", false, "Print the full memory map")
	pflag.Parse()

	if *fromFlag == "" {
		fmt.Println("Error: --from is required")
		pflag.Usage()
		os.Exit(1)
	}

	img, err := process_blob.Load(*fromFlag)
	if err != nil {
		fmt.Printf("Error loading dump from %s: %v\n", *fromFlag, err)
		os.Exit(1)
	}
	mm, _ := img.GetMemoryMap()

	fmt.Printf("Loaded dump of %s (pid %d), %d regions\n", img.Name(), img.GetPID(), len(mm))

	if *addrFlag == "" {
		if *mapFlag {
			t := table.New(
				table.Column{Header: "Start"},
				table.Column{Header: "End"},
				table.Column{Header: "Perms"},
				table.Column{Header: "Size", Right: true},
				table.Column{Header: "Path"},
			)
			for _, r := range mm {
				t.Addf("%016x\t%016x\t%s\t%d\t%s", r.Address, r.End(), r.Perms, r.Size, r.Path)
			}
			_ = t.Render(os.Stdout)
			return
		}
		printModules(img)
		return
	}

	addr, err := parseAddress(img, *addrFlag)
	if err != nil {
		fmt.Printf("Error parsing address: %v\n", err)
		os.Exit(1)
	}

	data, err := img.ReadMemory(addr, process.ProcessMemorySize(*sizeFlag))
	if err != nil {
		fmt.Printf("Error reading memory at %s: %v\n", addr.ToString(), err)
		os.Exit(1)
	}

	fmt.Printf("\nHexdump at %s (%d bytes):\n", addr.ToString(), *sizeFlag)
	opts := hexdump.DefaultOptions()
	opts.Start = uint64(addr)
	opts.MemoryMap = mm
	_ = hexdump.Dump(os.Stdout, data, opts)
}

// printModules lists the recorded modules with their exports.
func printModules(img *process_blob.Image) {
	meta := img.Metadata()
	t := table.New(
		table.Column{Header: "Module"},
		table.Column{Header: "Base"},
		table.Column{Header: "Size", Right: true},
		table.Column{Header: "Exports"},
	)
	for _, m := range meta.Modules {
		var exports []string
		for symbol, addr := range meta.Exports[m.Name] {
			exports = append(exports, fmt.Sprintf("%s@+0x%x", symbol, uint64(addr-m.Base)))
		}
		sort.Strings(exports)
		t.Addf("%s\t%s\t0x%x\t%s", m.Name, m.Base.ToString(), uint64(m.Size), strings.Join(exports, " "))
	}
	_ = t.Render(os.Stdout)
}

func parseAddress(img *process_blob.Image, s string) (process.ProcessMemoryAddress, error) {
	module, off, ok := strings.Cut(s, "+")
	if !ok {
		off, module = s, ""
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(off, "0x"), 16, 64)
	if err != nil {
		return 0, err
	}
	if module == "" {
		return process.ProcessMemoryAddress(v), nil
	}
	base, err := img.ModuleBase(module)
	if err != nil {
		return 0, err
	}
	return base + process.ProcessMemoryAddress(v), nil
}
