package offsets_test

import (
	"context"
	"errors"
	"testing"

	"memsync/offsets"
	"memsync/offsets/offsetstest"

	"github.com/google/go-cmp/cmp"
)

type staticSource struct {
	table offsets.SymbolTable
	err   error
	calls int
}

func (s *staticSource) Symbols(context.Context) (offsets.SymbolTable, error) {
	s.calls++
	return s.table, s.err
}

func resolve(t *testing.T, tg *offsetstest.Target, src offsets.Source) (*offsets.Table, error) {
	t.Helper()
	return offsets.NewResolver(tg.Config, src).Resolve(context.Background(), tg.Image)
}

func TestResolveFullTarget(t *testing.T) {
	tg := offsetstest.New(offsetstest.Options{NetworkClientPattern: 1})

	table, err := resolve(t, tg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(tg.ExpectedTable(), *table); diff != "" {
		t.Fatalf("table mismatch (-want +got):\n%s", diff)
	}
	if w := tg.Image.Writes(); len(w) != 0 {
		t.Fatalf("resolve wrote to the target: %v", w)
	}
}

func TestResolveNetworkClientLaterPattern(t *testing.T) {
	for _, n := range []int{2, 3, 4} {
		tg := offsetstest.New(offsetstest.Options{NetworkClientPattern: n})
		table, err := resolve(t, tg, nil)
		if err != nil {
			t.Fatalf("pattern %d: %v", n, err)
		}
		if table.Direct.NetworkClient != tg.NetworkClientGlobal {
			t.Errorf("pattern %d: network client %s, want %s", n,
				table.Direct.NetworkClient.ToString(), tg.NetworkClientGlobal.ToString())
		}
	}
}

func TestResolveNetworkClientFromSymbols(t *testing.T) {
	tg := offsetstest.New(offsetstest.Options{})
	engine := tg.Bases[tg.Config.Modules.Engine]
	src := &staticSource{table: offsets.SymbolTable{
		"libengine2.so": {
			"dwNetworkGameClient":                 uint64(tg.NetworkClientGlobal - engine),
			"dwNetworkGameClient_clientTickCount": 0x170,
			"dwNetworkGameClient_deltaTick":       0x160,
		},
	}}

	table, err := resolve(t, tg, src)
	if err != nil {
		t.Fatal(err)
	}
	if table.Direct.NetworkClient != tg.NetworkClientGlobal {
		t.Errorf("network client %s, want %s", table.Direct.NetworkClient.ToString(), tg.NetworkClientGlobal.ToString())
	}
	if table.NetworkClient.DeltaTick != 0x160 {
		t.Errorf("delta tick 0x%x, want 0x160", table.NetworkClient.DeltaTick)
	}
	if src.calls != 1 {
		t.Errorf("source consulted %d times, want 1", src.calls)
	}
}

func TestResolveDeltaTickIgnoresClientTickCount(t *testing.T) {
	tg := offsetstest.New(offsetstest.Options{})
	engine := tg.Bases[tg.Config.Modules.Engine]
	src := &staticSource{table: offsets.SymbolTable{
		"libengine2.so": {
			"dwNetworkGameClient":                 uint64(tg.NetworkClientGlobal - engine),
			"dwNetworkGameClient_clientTickCount": 0x170,
		},
	}}

	table, err := resolve(t, tg, src)
	if err != nil {
		t.Fatal(err)
	}
	if table.NetworkClient.DeltaTick != 0x158 {
		t.Errorf("delta tick 0x%x, want fallback 0x158", table.NetworkClient.DeltaTick)
	}
}

func TestResolveNetworkClientHardcoded(t *testing.T) {
	tg := offsetstest.New(offsetstest.Options{})
	src := &staticSource{err: offsets.ErrNoSource}

	table, err := resolve(t, tg, src)
	if err != nil {
		t.Fatal(err)
	}
	want := tg.Bases[tg.Config.Modules.Engine] + 0x8EB538
	if table.Direct.NetworkClient != want {
		t.Errorf("network client %s, want %s", table.Direct.NetworkClient.ToString(), want.ToString())
	}
	if table.NetworkClient.DeltaTick != 0x158 {
		t.Errorf("delta tick 0x%x, want 0x158", table.NetworkClient.DeltaTick)
	}
}

func TestResolveDeltaTickSkipsUnloadedSource(t *testing.T) {
	tg := offsetstest.New(offsetstest.Options{NetworkClientPattern: 1})
	src := &staticSource{table: offsets.SymbolTable{
		"libengine2.so": {"dwNetworkGameClient_deltaTick": 0x160},
	}}

	table, err := resolve(t, tg, src)
	if err != nil {
		t.Fatal(err)
	}
	if src.calls != 0 {
		t.Errorf("source consulted %d times, want 0", src.calls)
	}
	if table.NetworkClient.DeltaTick != 0x158 {
		t.Errorf("delta tick 0x%x, want 0x158", table.NetworkClient.DeltaTick)
	}
}

func TestResolveLocalPlayerRequired(t *testing.T) {
	tg := offsetstest.New(offsetstest.Options{NetworkClientPattern: 1, OmitLocalPlayer: true})

	_, err := resolve(t, tg, &staticSource{err: offsets.ErrNoSource})
	if !errors.Is(err, offsets.ErrMandatory) {
		t.Fatalf("got %v, want ErrMandatory", err)
	}

	client := tg.Bases[tg.Config.Modules.Client]
	src := &staticSource{table: offsets.SymbolTable{
		"client.dll": {"dwLocalPlayerController": uint64(tg.LocalPlayerGlobal - client)},
	}}
	table, err := resolve(t, tg, src)
	if err != nil {
		t.Fatal(err)
	}
	if table.Direct.LocalPlayer != tg.LocalPlayerGlobal {
		t.Errorf("local player %s, want %s", table.Direct.LocalPlayer.ToString(), tg.LocalPlayerGlobal.ToString())
	}
}

func TestResolveMandatoryFailures(t *testing.T) {
	tests := []struct {
		name string
		opts offsetstest.Options
	}{
		{"missing module", offsetstest.Options{OmitModule: "libSDL3.so"}},
		{"missing interface module", offsetstest.Options{OmitModule: "libinputsystem.so"}},
		{"missing schema module", offsetstest.Options{OmitModule: "libschemasystem.so"}},
		{"missing required field", offsetstest.Options{OmitFields: []string{"CBasePlayerController.m_hPawn"}}},
		{"missing item index", offsetstest.Options{OmitFields: []string{"C_EconItemView.m_iItemDefinitionIndex"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.NetworkClientPattern = 1
			tg := offsetstest.New(tt.opts)
			table, err := resolve(t, tg, nil)
			if !errors.Is(err, offsets.ErrMandatory) {
				t.Fatalf("got %v, want ErrMandatory", err)
			}
			if table != nil {
				t.Fatal("partial table returned")
			}
		})
	}
}

func TestResolveOptionalFieldUnavailable(t *testing.T) {
	tg := offsetstest.New(offsetstest.Options{
		NetworkClientPattern: 1,
		OmitFields:           []string{"C_EconEntity.m_nFallbackSeed", "C_EconItemView.m_szCustomName"},
	})

	table, err := resolve(t, tg, nil)
	if err != nil {
		t.Fatal(err)
	}

	want := tg.ExpectedTable()
	want.Skin.FallbackSeed = offsets.Unavailable
	want.Skin.CustomName = offsets.Unavailable
	if diff := cmp.Diff(want, *table); diff != "" {
		t.Fatalf("table mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveFieldRebound(t *testing.T) {
	tg := offsetstest.New(offsetstest.Options{NetworkClientPattern: 1})
	tg.Config.Fields.Bindings["skin_custom_name"] = offsets.FieldRef{Class: "C_EconItemView", Field: "m_AttributeList"}

	table, err := resolve(t, tg, nil)
	if err != nil {
		t.Fatal(err)
	}

	want := tg.ExpectedTable()
	want.Skin.CustomName = offsetstest.Field("C_EconItemView.m_AttributeList")
	if diff := cmp.Diff(want, *table); diff != "" {
		t.Fatalf("table mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveFieldBindingFailures(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*offsets.Fields)
		want   error
	}{
		{"unbound required slot", func(f *offsets.Fields) { delete(f.Bindings, "weapon_item") }, offsets.ErrFieldNotConfigured},
		{"renamed required field", func(f *offsets.Fields) {
			f.Bindings["controller_pawn"] = offsets.FieldRef{Class: "CBasePlayerController", Field: "m_hOldPawn"}
		}, offsets.ErrMandatory},
		{"unknown scope", func(f *offsets.Fields) { f.Scope = "libnothing.so" }, offsets.ErrMandatory},
		{"scope without the classes", func(f *offsets.Fields) { f.Scope = "libengine2.so" }, offsets.ErrMandatory},
		{"unknown identity class", func(f *offsets.Fields) { f.IdentityClass = "CEntityInstance" }, offsets.ErrMandatory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tg := offsetstest.New(offsetstest.Options{NetworkClientPattern: 1})
			tt.modify(&tg.Config.Fields)

			table, err := resolve(t, tg, nil)
			if !errors.Is(err, tt.want) || !errors.Is(err, offsets.ErrMandatory) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
			if table != nil {
				t.Fatal("partial table returned")
			}
		})
	}
}

func TestResolveOptionalSlotUnbound(t *testing.T) {
	tg := offsetstest.New(offsetstest.Options{NetworkClientPattern: 1})
	delete(tg.Config.Fields.Bindings, "skin_fallback_wear")

	table, err := resolve(t, tg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if table.Skin.FallbackWear != offsets.Unavailable {
		t.Fatalf("fallback wear %#x, want unavailable", table.Skin.FallbackWear)
	}
}

func TestResolveCanceled(t *testing.T) {
	tg := offsetstest.New(offsetstest.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := offsets.NewResolver(tg.Config, nil).Resolve(ctx, tg.Image)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}

func TestItemView(t *testing.T) {
	tg := offsetstest.New(offsetstest.Options{NetworkClientPattern: 1})
	table := tg.ExpectedTable()
	w := tg.NewWeapon(7)
	if got := table.ItemView(w); got != offsetstest.ItemView(w) {
		t.Fatalf("item view %s, want %s", got.ToString(), offsetstest.ItemView(w).ToString())
	}
}
