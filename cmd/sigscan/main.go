package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"memsync/hexdump"
	"memsync/process"
	"memsync/process/memory_map"
	"memsync/signature"

	"github.com/spf13/pflag"
	"golang.org/x/arch/x86/x86asm"
)

func main() {
	pidFlag := pflag.Int("pid", 0, "Process ID to attach to")
	nameFlag := pflag.String("name", "", "Process name to attach to")
	fromFlag := pflag.String("from", "", "Scan a dump saved by process_dump_save instead of a live process")
	patternFlag := pflag.String("pattern", "", "Signature to scan for (e.g. '48 8B 05 ? ? ? ?')")
	moduleFlag := pflag.String("module", "", "Only scan this module (e.g. libclient.so); default is every executable mapping")
	limitFlag := pflag.Int("limit", 16, "Stop after this many matches (0 for no limit)")
	operandFlag := pflag.Int("operand", 0, "Resolve the RIP-relative displacement at this offset of each match")
	lengthFlag := pflag.Int("length", 0, "Instruction length for --operand (0 decodes the instruction)")
	contextFlag := pflag.Int("context", 16, "Bytes of context dumped around each match")
	colorFlag := pflag.Bool("color", true, "Colorize the hex dump")
	pflag.Parse()

	if *pidFlag == 0 && *nameFlag == "" && *fromFlag == "" {
		fmt.Println("Error: one of --pid, --name or --from is required")
		pflag.Usage()
		os.Exit(1)
	}

	pattern, err := signature.Parse(*patternFlag)
	if err != nil {
		fmt.Printf("Error parsing pattern: %v\n", err)
		os.Exit(1)
	}

	proc, err := openTarget(*fromFlag, *pidFlag, *nameFlag)
	if err != nil {
		fmt.Printf("Error opening target: %v\n", err)
		os.Exit(1)
	}
	defer proc.Close()

	mm, err := proc.GetMemoryMap()
	if err != nil {
		fmt.Printf("Error reading memory map: %v\n", err)
		os.Exit(1)
	}

	regions, err := scanRegions(proc, mm, *moduleFlag)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Scanning %d regions of process %d for: %s\n", len(regions), proc.GetPID(), pattern)

	var matches []process.ProcessMemoryAddress
	for _, r := range regions {
		limit := 0
		if *limitFlag > 0 {
			limit = *limitFlag - len(matches)
		}
		found, err := signature.ScanAll(proc, pattern, r, limit)
		if err != nil {
			fmt.Printf("Error scanning: %v\n", err)
			os.Exit(1)
		}
		matches = append(matches, found...)
		if *limitFlag > 0 && len(matches) >= *limitFlag {
			break
		}
	}

	fmt.Printf("Found %d matches\n", len(matches))

	opts := hexdump.DefaultOptions()
	opts.Color = *colorFlag
	opts.MemoryMap = mm
	for _, match := range matches {
		fmt.Printf("\n%s %s\n", match.ToString(), location(mm, match))

		if inst, err := signature.Decode(proc, match); err == nil {
			fmt.Printf("  %s\n", x86asm.IntelSyntax(inst, uint64(match), nil))
		}

		if *operandFlag > 0 {
			var err error
			length := *lengthFlag
			if length == 0 {
				length, err = signature.InstructionLength(proc, match)
			}
			if err == nil {
				var target process.ProcessMemoryAddress
				if target, err = signature.RelativeAddress(proc, match, *operandFlag, length); err == nil {
					fmt.Printf("  -> %s %s\n", target.ToString(), location(mm, target))
				}
			}
			if err != nil {
				fmt.Printf("  -> %v\n", err)
			}
		}

		dumpAround(proc, match, pattern.Len(), *contextFlag, opts)
	}
}

// scanRegions returns the span of module, or every executable mapping.
func scanRegions(proc process.Process, mm []memory_map.MemoryMapItem, module string) ([]signature.Region, error) {
	if module != "" {
		m, err := proc.ModuleRegion(module)
		if err != nil {
			return nil, err
		}
		return []signature.Region{signature.ModuleRegion(m)}, nil
	}

	var regions []signature.Region
	for _, item := range mm {
		if !item.IsReadable() || !strings.Contains(item.Perms, "x") {
			continue
		}
		regions = append(regions, signature.Region{
			Start: process.ProcessMemoryAddress(item.Address),
			Size:  process.ProcessMemorySize(item.Size),
		})
	}
	return regions, nil
}

// location names the mapping holding addr as file+offset.
func location(mm []memory_map.MemoryMapItem, addr process.ProcessMemoryAddress) string {
	item := memory_map.FindRegion(uint64(addr), mm)
	switch {
	case item == nil:
		return "(unmapped)"
	case item.Path == "":
		return fmt.Sprintf("(anonymous %s)", item.Perms)
	}

	// Offsets are relative to the lowest mapping of the same file
	base := item.Address
	for _, other := range mm {
		if other.Path == item.Path && other.Address < base {
			base = other.Address
		}
	}
	return fmt.Sprintf("(%s+0x%x)", filepath.Base(item.Path), uint64(addr)-base)
}

func dumpAround(proc process.Process, match process.ProcessMemoryAddress, length, context int, opts hexdump.Options) {
	start := match - process.ProcessMemoryAddress(context)
	size := process.ProcessMemorySize(context*2 + length)

	data, err := proc.ReadMemory(start, size)
	if err != nil {
		// Context may cross into an unmapped page; fall back to the match
		start, size = match, process.ProcessMemorySize(length)
		if data, err = proc.ReadMemory(start, size); err != nil {
			fmt.Printf("  %v\n", err)
			return
		}
	}

	opts.Start = uint64(start)
	opts.HighlightFrom = int(match - start)
	opts.HighlightTo = opts.HighlightFrom + length
	_ = hexdump.Dump(os.Stdout, data, opts)
}
