// Package offsets builds the Table of addresses and field offsets for one
// attachment to the target, combining signature scans, the reflection
// registry and an external symbol source.
package offsets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"memsync/process"
	"memsync/schema"
	"memsync/signature"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"github.com/davecgh/go-spew/spew"
)

// ErrMandatory wraps every failure that prevents a Table from being built.
var ErrMandatory = errors.New("mandatory offset unresolved")

// Resolver turns a Config into a Table for an attached process. It never
// writes to the target.
type Resolver struct {
	Config Config
	Source Source // may be nil

	log *logger.Logger
}

func NewResolver(cfg Config, src Source) *Resolver {
	return &Resolver{
		Config: cfg,
		Source: src,
		log:    logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "offsets")),
	}
}

// resolution carries the state of one Resolve call.
type resolution struct {
	*Resolver
	proc  process.Process
	table Table

	symbols       SymbolTable
	symbolsErr    error
	symbolsLoaded bool
}

// Resolve builds a fresh Table. The returned error wraps ErrMandatory when
// a required module, interface, pointer or field is missing.
func (r *Resolver) Resolve(ctx context.Context, proc process.Process) (*Table, error) {
	start := time.Now()
	res := &resolution{Resolver: r, proc: proc}

	steps := []func(context.Context) error{
		res.libraries,
		res.interfaces,
		res.direct,
		res.auxiliary,
		res.fields,
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			return nil, err
		}
	}

	t := res.table
	r.log.Infoln("Skin offsets: item_id_high", fmt.Sprintf("0x%X", uint(t.Skin.ItemIDHigh)),
		"fallback_paint_kit", fmt.Sprintf("0x%X", uint(t.Skin.FallbackPaintKit)),
		"fallback_seed", fmt.Sprintf("0x%X", uint(t.Skin.FallbackSeed)),
		"fallback_wear", fmt.Sprintf("0x%X", uint(t.Skin.FallbackWear)),
		"fallback_stattrak", fmt.Sprintf("0x%X", uint(t.Skin.FallbackStatTrak)))
	r.log.Debugln("Offsets resolved in", time.Since(start), "\n"+spew.Sdump(t))

	return &t, nil
}

func mandatory(what string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrMandatory, what, err)
}

func (res *resolution) libraries(context.Context) error {
	m := res.Config.Modules
	lib := &res.table.Library
	for _, mod := range []struct {
		name string
		dst  *process.ProcessMemoryAddress
	}{
		{m.Client, &lib.Client},
		{m.Engine, &lib.Engine},
		{m.Tier0, &lib.Tier0},
		{m.Input, &lib.Input},
		{m.SDL, &lib.SDL},
		{m.Schema, &lib.Schema},
	} {
		base, err := res.proc.ModuleBase(mod.name)
		if err != nil {
			return mandatory("module "+mod.name, err)
		}
		*mod.dst = base
	}
	return nil
}

func (res *resolution) interfaces(context.Context) error {
	c := res.Config.Interfaces
	m := res.Config.Modules
	iface := &res.table.Interface

	for _, i := range []struct {
		module, factory string
		dst             *process.ProcessMemoryAddress
	}{
		{m.Engine, c.Resource, &iface.Resource},
		{m.Tier0, c.Cvar, &iface.Cvar},
		{m.Input, c.Input, &iface.Input},
	} {
		addr, err := InterfaceAddress(res.proc, i.module, i.factory, c.Layout)
		if err != nil {
			return mandatory("interface "+i.factory, err)
		}
		*i.dst = addr
	}

	list, err := res.proc.ReadPOINTER(iface.Resource.Add(c.EntityList))
	if err != nil {
		return mandatory("entity list", err)
	}
	iface.Entity = list.Add(c.EntitySkip)
	return nil
}

// loadSymbols consults the source at most once per resolution.
func (res *resolution) loadSymbols(ctx context.Context) (SymbolTable, error) {
	if !res.symbolsLoaded {
		res.symbolsLoaded = true
		if res.Source == nil {
			res.symbolsErr = ErrNoSource
		} else {
			res.symbols, res.symbolsErr = res.Source.Symbols(ctx)
		}
	}
	return res.symbols, res.symbolsErr
}

// pointerStrategies lists scan, symbol and, for optional pointers, constant
// strategies for a global in module.
func (res *resolution) pointerStrategies(module string, base process.ProcessMemoryAddress, p Pointer, required bool) []Strategy {
	var strategies []Strategy
	for i, spec := range p.Patterns {
		spec := spec
		strategies = append(strategies, Strategy{
			Name: fmt.Sprintf("pattern %d", i+1),
			Try: func(context.Context) (uint64, error) {
				pattern, err := signature.Parse(spec.Pattern)
				if err != nil {
					return 0, err
				}
				addr, err := signature.Resolve(res.proc, pattern, module, spec.Operand, spec.Length)
				return uint64(addr), err
			},
		})
	}
	if len(p.Symbols) > 0 {
		strategies = append(strategies, Strategy{
			Name: "symbol source",
			Try: func(ctx context.Context) (uint64, error) {
				table, err := res.loadSymbols(ctx)
				if err != nil {
					return 0, err
				}
				v, err := table.Lookup(p.SymbolModules, p.Symbols)
				if err != nil {
					return 0, err
				}
				return uint64(base) + v, nil
			},
		})
	}
	if !required && p.Fallback != 0 {
		strategies = append(strategies, Strategy{
			Name: "hardcoded",
			Try: func(context.Context) (uint64, error) {
				res.log.Warn("Using hardcoded fallback", fmt.Sprintf("0x%X", p.Fallback), "for", module)
				return uint64(base) + p.Fallback, nil
			},
		})
	}
	return strategies
}

func (res *resolution) direct(ctx context.Context) error {
	lib := res.table.Library
	m := res.Config.Modules

	v, via, err := FirstOf(ctx, res.pointerStrategies(m.Client, lib.Client, res.Config.LocalPlayer, true)...)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return mandatory("local player", err)
	}
	res.table.Direct.LocalPlayer = process.ProcessMemoryAddress(v)
	res.log.Debugln("local player via", via)

	v, via, err = FirstOf(ctx, res.pointerStrategies(m.Engine, lib.Engine, res.Config.NetworkClient, false)...)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		res.log.Warn("Network client unavailable:", err)
		return nil
	}
	res.table.Direct.NetworkClient = process.ProcessMemoryAddress(v)
	res.log.Debugln("network client via", via)
	return nil
}

// auxiliary resolves plain values. The symbol source is only read here when
// an earlier step already loaded it; otherwise the constant applies.
func (res *resolution) auxiliary(ctx context.Context) error {
	aux := res.Config.DeltaTick
	strategies := []Strategy{{
		Name: "symbol source",
		Try: func(context.Context) (uint64, error) {
			if !res.symbolsLoaded || res.symbolsErr != nil {
				return 0, ErrNoSource
			}
			return res.symbols.Lookup(aux.SymbolModules, aux.Symbols)
		},
	}}
	if aux.Fallback != 0 {
		strategies = append(strategies, Constant("hardcoded", aux.Fallback))
	}

	v, via, err := FirstOf(ctx, strategies...)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		res.log.Warn("Delta tick unavailable:", err)
		return nil
	}
	res.table.NetworkClient.DeltaTick = process.ProcessMemorySize(v)
	res.log.Debugln("delta tick via", via)
	return nil
}

func (res *resolution) fields(context.Context) error {
	reg, err := schema.Build(res.proc, res.Config.Modules.Schema, res.Config.Schema)
	if err != nil {
		return mandatory("schema", err)
	}
	name := res.Config.Fields.Scope
	if name == "" {
		name = res.Config.Modules.Client
	}
	scope, err := reg.Scope(name)
	if err != nil {
		return mandatory("schema", err)
	}
	return bindFields(scope, res.Config.Fields, &res.table, res.log)
}
