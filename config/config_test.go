package config_test

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"memsync/config"
	"memsync/offsets"
	"memsync/skins"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"
)

func newContext(t *testing.T) *config.Context {
	t.Helper()
	ctx, err := config.NewContext(filepath.Join(t.TempDir(), "memsync"))
	if err != nil {
		t.Fatal(err)
	}
	return ctx
}

func TestDefault(t *testing.T) {
	cfg := config.Default()
	if cfg.Enabled {
		t.Error("patch loop enabled by default")
	}
	if cfg.Engine.TickInterval != 10*time.Millisecond || cfg.Engine.AttachBackoff != 5*time.Second {
		t.Errorf("engine timings %v/%v", cfg.Engine.TickInterval, cfg.Engine.AttachBackoff)
	}
	if cfg.Offsets.Fallback.NetworkClient != 0x8EB538 || cfg.Offsets.Fallback.DeltaTick != 0x158 {
		t.Errorf("fallbacks %#x/%#x", cfg.Offsets.Fallback.NetworkClient, cfg.Offsets.Fallback.DeltaTick)
	}
	if len(cfg.Skins) != len(skins.Categories()) {
		t.Fatalf("%d skin entries, want %d", len(cfg.Skins), len(skins.Categories()))
	}
	for key, skin := range cfg.Skins {
		if diff := cmp.Diff(skins.DefaultSkin(), skin); diff != "" {
			t.Errorf("%s (-want +got):\n%s", key, diff)
		}
	}
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := config.Load(newContext(t), nil)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(config.Default(), cfg); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func TestWriteLoadRoundTrip(t *testing.T) {
	ctx := newContext(t)

	want := config.Default()
	want.Enabled = true
	want.Engine.TickInterval = 20 * time.Millisecond
	want.Engine.ForceFullUpdate = true
	want.Offsets.Mirrors = []string{"http://localhost/offsets.json"}
	want.Offsets.Fallback.NetworkClient = 0x900000
	want.Offsets.Patterns.NetworkClient = want.Offsets.Patterns.NetworkClient[3:]
	want.Offsets.Layout.BucketCount = 512
	want.Offsets.Fields.Scope = "libclient_test.so"
	want.Offsets.Fields.Bindings["skin_custom_name"] = offsets.FieldRef{Class: "C_EconItemView", Field: "m_szCustomNameOverride"}
	want.Skins["ak47"] = skins.Skin{Enabled: true, PaintKit: 44, Seed: 661, Wear: 0.01, StatTrak: 1337}

	if err := config.Write(ctx, want); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(ctx.ConfigFile()); err != nil {
		t.Fatal(err)
	}

	got, err := config.Load(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func TestWriteDurationsAsText(t *testing.T) {
	ctx := newContext(t)
	cfg := config.Default()
	cfg.Engine.AttachBackoff = 1500 * time.Millisecond

	if err := config.Write(ctx, cfg); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(ctx.ConfigFile())
	if err != nil {
		t.Fatal(err)
	}
	for _, line := range []string{`attach_backoff = "1.5s"`, `tick_interval = "10ms"`, `class = "C_EconItemView"`} {
		if !strings.Contains(string(data), line) {
			t.Errorf("written file lacks %s:\n%s", line, data)
		}
	}
}

func TestLoadPartialFile(t *testing.T) {
	ctx := newContext(t)
	data := "enabled = true\n\n[skins.awp]\nenabled = true\npaint_kit = 344\n"
	if err := os.WriteFile(ctx.ConfigFile(), []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := skins.DefaultSkin()
	want.Enabled = true
	want.PaintKit = 344
	if diff := cmp.Diff(want, cfg.Skins["awp"]); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
	if cfg.Engine.TickInterval != 10*time.Millisecond {
		t.Fatalf("tick interval %v lost its default", cfg.Engine.TickInterval)
	}
}

func TestLoadInvalidFile(t *testing.T) {
	ctx := newContext(t)
	if err := os.WriteFile(ctx.ConfigFile(), []byte("enabled = = ["), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := config.Load(ctx, nil); err == nil {
		t.Fatal("invalid file loaded")
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("MEMSYNC_ENGINE_TICK_INTERVAL", "25ms")
	t.Setenv("MEMSYNC_SKINS_AWP_PAINT_KIT", "344")
	t.Setenv("MEMSYNC_ENABLED", "true")

	cfg, err := config.Load(newContext(t), nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Engine.TickInterval != 25*time.Millisecond {
		t.Errorf("tick interval %v", cfg.Engine.TickInterval)
	}
	if cfg.Skins["awp"].PaintKit != 344 {
		t.Errorf("awp paint kit %d", cfg.Skins["awp"].PaintKit)
	}
	if !cfg.Enabled {
		t.Error("enabled not overridden")
	}
}

func TestLoadFlags(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.RegisterFlags(fs)
	if err := fs.Parse([]string{"--process", "cs2_linux", "--config-dir", "/tmp/x"}); err != nil {
		t.Fatal(err)
	}
	if dir := config.ConfigDir(fs); dir != "/tmp/x" {
		t.Fatalf("config dir %q", dir)
	}

	cfg, err := config.Load(newContext(t), fs)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Process.Name != "cs2_linux" {
		t.Fatalf("process %q", cfg.Process.Name)
	}
	if cfg.Debug {
		t.Fatal("unset flag overrode debug")
	}
}

func TestContext(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	ctx, err := config.NewContext(dir)
	if err != nil {
		t.Fatal(err)
	}
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		t.Fatalf("base dir not created: %v", err)
	}
	if got := ctx.Path("offsets.json"); got != filepath.Join(dir, "offsets.json") {
		t.Errorf("relative path %q", got)
	}
	if got := ctx.Path("/var/cache/offsets.json"); got != "/var/cache/offsets.json" {
		t.Errorf("absolute path %q", got)
	}
	if got := ctx.ConfigFile(); got != filepath.Join(dir, "memsync.toml") {
		t.Errorf("config file %q", got)
	}
}

func TestDefaultBaseDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	t.Setenv("HOME", "/home/someone")
	if got := config.DefaultBaseDir(); got != "/xdg/memsync" {
		t.Errorf("with XDG_CONFIG_HOME: %q", got)
	}

	t.Setenv("XDG_CONFIG_HOME", "")
	if got := config.DefaultBaseDir(); got != "/home/someone/.config/memsync" {
		t.Errorf("with HOME: %q", got)
	}
}

func TestResolverConfig(t *testing.T) {
	ctx := newContext(t)
	cfg := config.Default()
	cfg.Offsets.Fallback.DeltaTick = 0x160
	cfg.Offsets.Fields.IdentityClass = "CEntityIdentityV2"

	oc := cfg.Resolver(ctx)
	if oc.Source.LocalCache != filepath.Join(ctx.BaseDir, "offsets.json") {
		t.Errorf("local cache %q", oc.Source.LocalCache)
	}
	if oc.DeltaTick.Fallback != 0x160 {
		t.Errorf("delta tick fallback %#x", oc.DeltaTick.Fallback)
	}
	if diff := cmp.Diff(cfg.Offsets.Patterns.NetworkClient, oc.NetworkClient.Patterns); diff != "" {
		t.Errorf("patterns (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(cfg.Offsets.Fields, oc.Fields); diff != "" {
		t.Errorf("fields (-want +got):\n%s", diff)
	}
}

func TestState(t *testing.T) {
	cfg := config.Default()
	cfg.Skins["m4_a1"] = skins.Skin{Enabled: true, PaintKit: 1}
	cfg.Skins["bogus"] = skins.Skin{Enabled: true, PaintKit: 1}
	cfg.Skins["zzz"] = skins.Skin{}

	state, unknown := cfg.State()
	sort.Strings(unknown)
	if diff := cmp.Diff([]string{"bogus", "zzz"}, unknown); diff != "" {
		t.Fatalf("unknown keys (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]skins.Category{skins.M4A1}, state.Configured()); diff != "" {
		t.Fatalf("configured (-want +got):\n%s", diff)
	}
}
