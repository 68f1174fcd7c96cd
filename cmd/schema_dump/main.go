package main

import (
	"context"
	"fmt"
	"os"

	"memsync/config"
	"memsync/offsets"
	"memsync/schema"
	"memsync/table"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/pflag"
)

func main() {
	config.RegisterFlags(pflag.CommandLine)
	pidFlag := pflag.Int("pid", 0, "Process ID to attach to (default: find --process by name)")
	fromFlag := pflag.String("from", "", "Read a dump saved by process_dump_save instead of a live process")
	scopeFlag := pflag.String("scope", "", "Scope to list (default: the client module)")
	classFlag := pflag.StringSlice("class", nil, "Print the fields of these classes")
	offsetsFlag := pflag.Bool("offsets", false, "Resolve and print the full offset table")
	pflag.Parse()

	cctx, err := config.NewContext(config.ConfigDir(pflag.CommandLine))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load(cctx, pflag.CommandLine)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	proc, err := openTarget(*fromFlag, *pidFlag, cfg.Process.Name)
	if err != nil {
		fmt.Printf("Error opening target: %v\n", err)
		os.Exit(1)
	}
	defer proc.Close()

	rc := cfg.Resolver(cctx)

	if *offsetsFlag {
		resolver := offsets.NewResolver(rc, offsets.NewDumperSource(rc.Source.LocalCache, rc.Source))
		t, err := resolver.Resolve(context.Background(), proc)
		if err != nil {
			fmt.Printf("Error resolving offsets: %v\n", err)
			os.Exit(1)
		}
		spew.Dump(t)
		return
	}

	reg, err := schema.Build(proc, rc.Modules.Schema, rc.Schema)
	if err != nil {
		fmt.Printf("Error walking schema registry: %v\n", err)
		os.Exit(1)
	}

	name := *scopeFlag
	if name == "" {
		name = rc.Modules.Client
	}
	scope, err := reg.Scope(name)
	if err != nil {
		fmt.Printf("Error: %v (scopes: %v)\n", err, reg.Scopes())
		os.Exit(1)
	}

	if len(*classFlag) == 0 {
		t := table.New(
			table.Column{Header: "Class"},
			table.Column{Header: "Size", Right: true},
			table.Column{Header: "Fields", Right: true},
		)
		for _, cn := range scope.Classes() {
			c, _ := scope.Class(cn)
			t.Addf("%s\t0x%X\t%d", c.Name, c.Size, len(c.Fields))
		}
		_ = t.Render(os.Stdout)
		fmt.Printf("\n%d classes in %s (%d scopes, %d skipped)\n", t.Len(), name, reg.Stats.Scopes, reg.Stats.Skipped)
		return
	}

	for _, cn := range *classFlag {
		c, err := scope.Class(cn)
		if err != nil {
			fmt.Printf("%v\n\n", err)
			continue
		}
		fmt.Printf("%s (size 0x%X)\n", c.Name, c.Size)
		t := table.New(
			table.Column{Header: "Field"},
			table.Column{Header: "Offset", Right: true, Format: func(s string) string {
				return coloransi.Foreground(coloransi.Green, s)
			}},
		)
		for _, fn := range c.FieldNames() {
			t.Addf("%s\t0x%X", fn, uint(c.Fields[fn]))
		}
		_ = t.Render(os.Stdout)
		fmt.Println()
	}
}
