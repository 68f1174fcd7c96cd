// Package offsetstest builds a synthetic target process that the default
// offsets.Config resolves against, plus helpers to populate its game world.
package offsetstest

import (
	"encoding/binary"
	"strings"

	"memsync/offsets"
	"memsync/process"
	"memsync/process_blob"
	"memsync/schema/schematest"
	"memsync/signature"
)

const (
	HeapBase   process.ProcessMemoryAddress = 0x7f0000000000
	HeapSize   process.ProcessMemorySize    = 0x800000
	ModuleBase process.ProcessMemoryAddress = 0x7f0010000000
	moduleSpan process.ProcessMemorySize    = 0x100000
	codeSize   process.ProcessMemorySize    = 0x10000
	dataSize   process.ProcessMemorySize    = 0x10000
)

// Offsets of every reflected field, keyed "Class.field".
var Fields = map[string]int32{
	"CBasePlayerController.m_hPawn":               0x60C,
	"C_CSPlayerPawn.m_pClippingWeapon":            0x13A0,
	"C_BasePlayerPawn.m_pWeaponServices":          0x11A8,
	"CPlayer_WeaponServices.m_hMyWeapons":         0x40,
	"C_EconEntity.m_AttributeManager":             0x1098,
	"C_AttributeContainer.m_Item":                 0x50,
	"C_EconItemView.m_iItemDefinitionIndex":       0x1BA,
	"C_EconItemView.m_iEntityQuality":             0x1BC,
	"C_EconItemView.m_iItemIDHigh":                0x1D0,
	"C_EconItemView.m_iItemIDLow":                 0x1D4,
	"C_EconItemView.m_iAccountID":                 0x1D8,
	"C_EconItemView.m_bInitialized":               0x1E8,
	"C_EconItemView.m_AttributeList":              0x208,
	"C_EconItemView.m_NetworkedDynamicAttributes": 0x280,
	"C_EconItemView.m_szCustomName":               0x2F8,
	"C_EconEntity.m_OriginalOwnerXuidLow":         0x15F0,
	"C_EconEntity.m_OriginalOwnerXuidHigh":        0x15F4,
	"C_EconEntity.m_nFallbackPaintKit":            0x15F8,
	"C_EconEntity.m_nFallbackSeed":                0x15FC,
	"C_EconEntity.m_flFallbackWear":               0x1600,
	"C_EconEntity.m_nFallbackStatTrak":            0x1604,
}

// IdentitySize is the reflected size of CEntityIdentity.
const IdentitySize = 0x78

// Options alter the generated target.
type Options struct {
	// NetworkClientPattern embeds the n-th (1 based) network client
	// pattern of the default config, 0 embeds none
	NetworkClientPattern int
	// OmitLocalPlayer leaves the local player pattern out of the client
	OmitLocalPlayer bool
	// OmitFields drops "Class.field" entries from the registry
	OmitFields []string
	// OmitModule leaves a module unmapped
	OmitModule string
}

// Target is a synthetic game process.
type Target struct {
	Image    *process_blob.Image
	Config   offsets.Config
	Registry *schematest.Builder

	Bases map[string]process.ProcessMemoryAddress

	LocalPlayerGlobal   process.ProcessMemoryAddress
	NetworkClientGlobal process.ProcessMemoryAddress
	NetworkClient       process.ProcessMemoryAddress
	Resource            process.ProcessMemoryAddress
	Cvar                process.ProcessMemoryAddress
	Input               process.ProcessMemoryAddress
	EntityList          process.ProcessMemoryAddress

	chunks map[int]process.ProcessMemoryAddress
}

// New builds a target with every module, interface and field present.
func New(opts Options) *Target {
	cfg := offsets.DefaultConfig()
	img := process_blob.NewImage(4242)

	t := &Target{
		Image:    img,
		Config:   cfg,
		Registry: schematest.New(img, cfg.Schema, HeapBase, HeapSize),
		Bases:    make(map[string]process.ProcessMemoryAddress),
		chunks:   make(map[int]process.ProcessMemoryAddress),
	}

	m := cfg.Modules
	names := []string{m.Client, m.Engine, m.Tier0, m.Input, m.SDL, m.Schema}
	for i, name := range names {
		base := ModuleBase + process.ProcessMemoryAddress(moduleSpan)*process.ProcessMemoryAddress(i)
		t.Bases[name] = base
		if name == opts.OmitModule || name == m.Schema {
			continue
		}
		path := "/game/bin/linuxsteamrt64/" + name
		if name == m.SDL {
			path += ".0"
		}
		img.Map(base, codeSize, "r-xp", path)
		img.Map(base.Add(codeSize), dataSize, "rw-p", path)
	}

	t.interfaces(opts)
	t.globals(opts)
	t.registry(opts)
	return t
}

func (t *Target) code(module string) process.ProcessMemoryAddress {
	return t.Bases[module]
}

func (t *Target) data(module string) process.ProcessMemoryAddress {
	return t.Bases[module].Add(codeSize)
}

// Alloc returns zeroed heap memory.
func (t *Target) Alloc(size process.ProcessMemorySize) process.ProcessMemoryAddress {
	return t.Registry.Alloc(size)
}

// putRelative writes instruction bytes at site with a displacement at
// operand such that the instruction of length n refers to target.
func (t *Target) putRelative(site process.ProcessMemoryAddress, code []byte, operand, n int, target process.ProcessMemoryAddress) {
	buf := append([]byte(nil), code...)
	binary.LittleEndian.PutUint32(buf[operand:], uint32(int32(int64(target)-int64(site)-int64(n))))
	t.Image.PutBytes(site, buf)
}

// patternBytes renders a pattern with wildcards as zero bytes.
func patternBytes(pattern string) []byte {
	p := signature.MustParse(pattern)
	return p.AOB().Pattern
}

func (t *Target) interfaces(opts Options) {
	c := t.Config.Interfaces
	m := t.Config.Modules

	for _, iface := range []struct {
		module  string
		factory string
		dst     *process.ProcessMemoryAddress
	}{
		{m.Engine, c.Resource, &t.Resource},
		{m.Tier0, c.Cvar, &t.Cvar},
		{m.Input, c.Input, &t.Input},
	} {
		if iface.module == opts.OmitModule {
			continue
		}
		*iface.dst = t.Alloc(0x100)
		t.factoryRegistry(iface.module, []string{"SomethingElse001", iface.factory + "01", "Trailing002"}, 1, *iface.dst)
	}

	if t.Resource != 0 {
		list := t.Alloc(c.EntitySkip + 8*entityChunks)
		t.Image.PutPOINTER(t.Resource.Add(c.EntityList), list)
		t.EntityList = list.Add(c.EntitySkip)
	}
}

// factoryRegistry lays out CreateInterface, its lookup function and a
// registry whose entry at index match creates instance.
func (t *Target) factoryRegistry(module string, names []string, match int, instance process.ProcessMemoryAddress) {
	l := t.Config.Interfaces.Layout
	code := t.code(module)
	create := code + 0x100
	lookup := code + 0x200
	headRef := t.data(module) + 0x100

	t.Image.AddExport(module, l.Export, create)
	t.putRelative(create, []byte{0xE9, 0, 0, 0, 0}, l.JumpOperand, l.JumpLength, lookup)
	// mov rax, [rip+head]
	t.putRelative(lookup.Add(l.HeadSkip), []byte{0x48, 0x8B, 0x05, 0, 0, 0, 0}, l.HeadOperand, l.HeadLength, headRef)

	var head process.ProcessMemoryAddress
	for i := len(names) - 1; i >= 0; i-- {
		fn := code + 0x300 + process.ProcessMemoryAddress(i*0x10)
		target := t.Alloc(0x10)
		if i == match {
			target = instance
		}
		// lea rax, [rip+instance]; ret
		t.putRelative(fn, []byte{0x48, 0x8D, 0x05, 0, 0, 0, 0, 0xC3}, l.CreateOperand, l.CreateLength, target)

		entry := t.Alloc(0x18)
		t.Image.PutPOINTER(entry.Add(l.EntryCreate), fn)
		t.Image.PutPOINTER(entry.Add(l.EntryName), t.Registry.String(names[i]))
		t.Image.PutPOINTER(entry.Add(l.EntryNext), head)
		head = entry
	}
	t.Image.PutPOINTER(headRef, head)
}

func (t *Target) globals(opts Options) {
	m := t.Config.Modules

	if m.Client != opts.OmitModule {
		t.LocalPlayerGlobal = t.data(m.Client) + 0x200
		if !opts.OmitLocalPlayer {
			spec := t.Config.LocalPlayer.Patterns[0]
			t.putRelative(t.code(m.Client)+0x1000, patternBytes(spec.Pattern), spec.Operand, spec.Length, t.LocalPlayerGlobal)
		}
	}

	if m.Engine != opts.OmitModule {
		t.NetworkClientGlobal = t.data(m.Engine) + 0x300
		t.NetworkClient = t.Alloc(0x400)
		t.Image.PutPOINTER(t.NetworkClientGlobal, t.NetworkClient)
		if n := opts.NetworkClientPattern; n > 0 {
			spec := t.Config.NetworkClient.Patterns[n-1]
			t.putRelative(t.code(m.Engine)+0x1000, patternBytes(spec.Pattern), spec.Operand, spec.Length, t.NetworkClientGlobal)
		}
	}
}

func (t *Target) registry(opts Options) {
	omit := make(map[string]bool)
	for _, f := range opts.OmitFields {
		omit[f] = true
	}

	byClass := make(map[string][]schematest.Field)
	for key, off := range Fields {
		if omit[key] {
			continue
		}
		class, field, _ := strings.Cut(key, ".")
		byClass[class] = append(byClass[class], schematest.Field{Name: field, Offset: off})
	}
	if _, ok := byClass["C_EconItemView"]; !ok {
		byClass["C_EconItemView"] = nil
	}

	b := t.Registry
	buckets := make(map[int][]process.ProcessMemoryAddress)
	var overflow []process.ProcessMemoryAddress
	i := 0
	for class, fields := range byClass {
		addr := b.Class(class, 0x100, fields...)
		if class == "C_EconEntity" {
			overflow = append(overflow, addr)
		} else {
			buckets[i%b.Layout.BucketCount] = append(buckets[i%b.Layout.BucketCount], addr)
		}
		i++
	}
	buckets[77] = append(buckets[77], b.Class("CEntityIdentity", IdentitySize))

	client := b.Scope(t.Config.Modules.Client, buckets, overflow...)
	engine := b.Scope(t.Config.Modules.Engine, map[int][]process.ProcessMemoryAddress{
		1: {b.Class("CNetworkGameClient", 0x400)},
	})
	root := b.Root(engine, client)

	if t.Config.Modules.Schema != opts.OmitModule {
		b.Module(t.Config.Modules.Schema, t.Bases[t.Config.Modules.Schema], root)
	}
}

// Field returns the configured offset of "Class.field".
func Field(key string) process.ProcessMemorySize {
	return process.ProcessMemorySize(Fields[key])
}

// ExpectedTable is the Table Resolve should produce for a target built
// with a network client pattern and no omissions.
func (t *Target) ExpectedTable() offsets.Table {
	m := t.Config.Modules
	return offsets.Table{
		Library: offsets.Library{
			Client: t.Bases[m.Client],
			Engine: t.Bases[m.Engine],
			Tier0:  t.Bases[m.Tier0],
			Input:  t.Bases[m.Input],
			SDL:    t.Bases[m.SDL],
			Schema: t.Bases[m.Schema],
		},
		Interface: offsets.Interface{
			Resource: t.Resource,
			Cvar:     t.Cvar,
			Input:    t.Input,
			Entity:   t.EntityList,
		},
		Direct: offsets.Direct{
			LocalPlayer:   t.LocalPlayerGlobal,
			NetworkClient: t.NetworkClientGlobal,
		},
		Controller:     offsets.Controller{Pawn: Field("CBasePlayerController.m_hPawn")},
		Pawn:           offsets.Pawn{Weapon: Field("C_CSPlayerPawn.m_pClippingWeapon"), WeaponServices: Field("C_BasePlayerPawn.m_pWeaponServices")},
		WeaponServices: offsets.WeaponServices{Weapons: Field("CPlayer_WeaponServices.m_hMyWeapons")},
		Weapon: offsets.Weapon{
			AttributeManager:    Field("C_EconEntity.m_AttributeManager"),
			Item:                Field("C_AttributeContainer.m_Item"),
			ItemDefinitionIndex: Field("C_EconItemView.m_iItemDefinitionIndex"),
		},
		EntityIdentity: offsets.EntityIdentity{Size: IdentitySize},
		Skin: offsets.Skin{
			ItemIDHigh:            Field("C_EconItemView.m_iItemIDHigh"),
			ItemIDLow:             Field("C_EconItemView.m_iItemIDLow"),
			AccountID:             Field("C_EconItemView.m_iAccountID"),
			EntityQuality:         Field("C_EconItemView.m_iEntityQuality"),
			Initialized:           Field("C_EconItemView.m_bInitialized"),
			AttributeList:         Field("C_EconItemView.m_AttributeList"),
			NetworkedDynamicAttrs: Field("C_EconItemView.m_NetworkedDynamicAttributes"),
			CustomName:            Field("C_EconItemView.m_szCustomName"),
			FallbackPaintKit:      Field("C_EconEntity.m_nFallbackPaintKit"),
			FallbackSeed:          Field("C_EconEntity.m_nFallbackSeed"),
			FallbackWear:          Field("C_EconEntity.m_flFallbackWear"),
			FallbackStatTrak:      Field("C_EconEntity.m_nFallbackStatTrak"),
			OriginalOwnerXuidLow:  Field("C_EconEntity.m_OriginalOwnerXuidLow"),
			OriginalOwnerXuidHigh: Field("C_EconEntity.m_OriginalOwnerXuidHigh"),
		},
		NetworkClient: offsets.NetworkClient{DeltaTick: process.ProcessMemorySize(t.Config.DeltaTick.Fallback)},
	}
}
