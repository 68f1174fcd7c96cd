package schema_test

import (
	"errors"
	"testing"

	"memsync/process"
	"memsync/process_blob"
	"memsync/schema"
	"memsync/schema/schematest"

	"github.com/go-test/deep"
)

const (
	heapBase   = 0x7f0000000000
	moduleBase = 0x7f0000800000
)

func newBuilder() *schematest.Builder {
	img := process_blob.NewImage(1)
	return schematest.New(img, schema.DefaultLayout(), heapBase, 0x80000)
}

func fields(r *schema.Registry, scope, class string) map[string]process.ProcessMemorySize {
	s, err := r.Scope(scope)
	if err != nil {
		return nil
	}
	c, err := s.Class(class)
	if err != nil {
		return nil
	}
	return c.Fields
}

func TestWalkMergesBucketsAndOverflow(t *testing.T) {
	b := newBuilder()

	pawnOld := b.Class("C_CSPlayerPawn", 0x1000, schematest.Field{Name: "m_pClippingWeapon", Offset: 0x10})
	pawnNew := b.Class("C_CSPlayerPawn", 0x2000,
		schematest.Field{Name: "m_pClippingWeapon", Offset: 0x20},
		schematest.Field{Name: "m_pWeaponServices", Offset: 0x30},
	)
	controller := b.Class("CBasePlayerController", 0x800, schematest.Field{Name: "m_hPawn", Offset: 0x60C})
	item := b.Class("C_EconItemView", 0x400,
		schematest.Field{Name: "m_iItemIDHigh", Offset: 0x1D0},
		schematest.Field{Name: "m_iItemIDHigh", Offset: 0x1D4},
	)
	broken := b.ClassWithCount("CBroken", 0x44, -3)
	huge := b.ClassWithCount("CHuge", 0x88, 20001)

	client := b.Scope("libclient.so",
		map[int][]process.ProcessMemoryAddress{
			3:    {pawnOld, controller},
			1023: {item, 0},
		},
		broken, pawnNew, huge,
	)
	engine := b.Scope("libengine2.so", map[int][]process.ProcessMemoryAddress{
		0: {b.Class("CEntityIdentity", 0x78)},
	})
	root := b.Root(client, engine)

	reg := schema.Walk(b.Image, root, b.Layout)

	if diff := deep.Equal([]string{"libclient.so", "libengine2.so"}, reg.Scopes()); diff != nil {
		t.Fatal(diff)
	}

	s, err := reg.Scope("libclient.so")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"CBasePlayerController", "CBroken", "CHuge", "C_CSPlayerPawn", "C_EconItemView"}
	if diff := deep.Equal(want, s.Classes()); diff != nil {
		t.Fatal(diff)
	}

	// Overflow entry overwrites the bucket entry
	pawn, _ := s.Class("C_CSPlayerPawn")
	if pawn.Size != 0x2000 {
		t.Fatalf("expected overflow size 0x2000, got %#x", pawn.Size)
	}
	wantPawn := map[string]process.ProcessMemorySize{"m_pClippingWeapon": 0x20, "m_pWeaponServices": 0x30}
	if diff := deep.Equal(wantPawn, fields(reg, "libclient.so", "C_CSPlayerPawn")); diff != nil {
		t.Fatal(diff)
	}

	// Repeated field names keep the last one
	if off, err := s.Field("C_EconItemView", "m_iItemIDHigh"); err != nil || off != 0x1D4 {
		t.Fatalf("m_iItemIDHigh = %#x, %v", off, err)
	}

	// Implausible counts keep the size with no fields
	for name, size := range map[string]int32{"CBroken": 0x44, "CHuge": 0x88} {
		c, err := s.Class(name)
		if err != nil {
			t.Fatal(err)
		}
		if c.Size != size || len(c.Fields) != 0 {
			t.Fatalf("%s: size %#x fields %v", name, c.Size, c.Fields)
		}
	}

	ident, err := reg.Scope("libengine2.so")
	if err != nil {
		t.Fatal(err)
	}
	if c, err := ident.Class("CEntityIdentity"); err != nil || c.Size != 0x78 {
		t.Fatalf("CEntityIdentity = %v, %v", c, err)
	}

	if reg.Stats.Scopes != 2 || reg.Stats.Classes != 6 {
		t.Fatalf("unexpected stats %+v", reg.Stats)
	}
}

func TestWalkSkipsBrokenBranches(t *testing.T) {
	b := newBuilder()

	good := b.Class("CGood", 8, schematest.Field{Name: "m_a", Offset: 4})

	// A class whose name pointer leads nowhere
	lost := b.Alloc(0x40)
	b.Image.PutPOINTER(lost.Add(b.Layout.ClassName), 0x1234)

	// A class with one unreadable field name among good ones
	partial := b.Class("CPartial", 16,
		schematest.Field{Name: "m_x", Offset: 0},
		schematest.Field{Name: "m_y", Offset: 8},
	)
	array, _ := b.Image.ReadPOINTER(partial.Add(b.Layout.ClassFields))
	b.Image.PutPOINTER(array.Add(b.Layout.FieldName), 0x10)

	// Data pointers outside the address range are ignored
	scope := b.Scope("libclient.so", map[int][]process.ProcessMemoryAddress{
		0: {lost, 0xdead, good},
	}, 0xffffffffffff0000, partial)

	// The second scope slot points at unmapped memory
	root := b.Root(scope, heapBase+0x7fff0)

	reg := schema.Walk(b.Image, root, b.Layout)

	s, err := reg.Scope("libclient.so")
	if err != nil {
		t.Fatal(err)
	}
	if diff := deep.Equal([]string{"CGood", "CPartial"}, s.Classes()); diff != nil {
		t.Fatal(diff)
	}
	if diff := deep.Equal(map[string]process.ProcessMemorySize{"m_y": 8}, fields(reg, "libclient.so", "CPartial")); diff != nil {
		t.Fatal(diff)
	}
	if reg.Stats.Skipped == 0 {
		t.Fatal("expected skipped branches to be counted")
	}

	if _, err := s.Field("CGood", "m_missing"); !errors.Is(err, schema.ErrFieldNotFound) {
		t.Fatalf("expected ErrFieldNotFound, got %v", err)
	}
	if _, err := s.Class("CMissing"); !errors.Is(err, schema.ErrClassNotFound) {
		t.Fatalf("expected ErrClassNotFound, got %v", err)
	}
	if _, err := reg.Scope("libmissing.so"); !errors.Is(err, schema.ErrScopeNotFound) {
		t.Fatalf("expected ErrScopeNotFound, got %v", err)
	}
}

func TestBuildLocatesRoot(t *testing.T) {
	b := newBuilder()
	scope := b.Scope("libclient.so", map[int][]process.ProcessMemoryAddress{
		7: {b.Class("C_EconEntity", 0x100, schematest.Field{Name: "m_AttributeManager", Offset: 0x1098})},
	})
	root := b.Root(scope)
	b.Module("libschemasystem.so", moduleBase, root)

	reg, err := schema.Build(b.Image, "libschemasystem.so", b.Layout)
	if err != nil {
		t.Fatal(err)
	}
	s, _ := reg.Scope("libclient.so")
	if off, err := s.Field("C_EconEntity", "m_AttributeManager"); err != nil || off != 0x1098 {
		t.Fatalf("m_AttributeManager = %#x, %v", off, err)
	}

	empty := process_blob.NewImage(1)
	empty.Map(moduleBase, 0x1000, "r-xp", "/lib/libschemasystem.so")
	if _, err := schema.Build(empty, "libschemasystem.so", b.Layout); !errors.Is(err, schema.ErrRegistryNotFound) {
		t.Fatalf("expected ErrRegistryNotFound, got %v", err)
	}
}
