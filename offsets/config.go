package offsets

import (
	"time"

	"memsync/process"
	"memsync/schema"
)

// Modules names the loaded images by role.
type Modules struct {
	Client string `mapstructure:"client"`
	Engine string `mapstructure:"engine"`
	Tier0  string `mapstructure:"tier0"`
	Input  string `mapstructure:"input"`
	SDL    string `mapstructure:"sdl"`
	Schema string `mapstructure:"schema"`
}

// Interfaces names the factories looked up in the engine, tier0 and input
// modules.
type Interfaces struct {
	Resource string `mapstructure:"resource"`
	Cvar     string `mapstructure:"cvar"`
	Input    string `mapstructure:"input"`

	// The entity list is read(resource+EntityList)+EntitySkip
	EntityList process.ProcessMemorySize `mapstructure:"entity_list"`
	EntitySkip process.ProcessMemorySize `mapstructure:"entity_skip"`

	Layout InterfaceLayout `mapstructure:"layout"`
}

// PatternSpec is one alternative signature for a global. Operand is the
// offset of the 32-bit displacement, Length the instruction length or 0 to
// decode it.
type PatternSpec struct {
	Pattern string `mapstructure:"pattern"`
	Operand int    `mapstructure:"operand"`
	Length  int    `mapstructure:"length"`
}

// Pointer describes how to find a global: patterns in priority order, then
// the symbol source, then Fallback as an offset from the module base.
// Required pointers never use Fallback.
type Pointer struct {
	Patterns      []PatternSpec `mapstructure:"patterns"`
	SymbolModules []string      `mapstructure:"symbol_modules"`
	Symbols       []string      `mapstructure:"symbols"`
	Fallback      uint64        `mapstructure:"fallback"`
}

// Aux describes a plain value taken from the symbol source or Fallback.
type Aux struct {
	SymbolModules []string `mapstructure:"symbol_modules"`
	Symbols       []string `mapstructure:"symbols"`
	Fallback      uint64   `mapstructure:"fallback"`
}

// SourceConfig configures the symbol source chain.
type SourceConfig struct {
	LocalCache string        `mapstructure:"local_cache"`
	Mirrors    []string      `mapstructure:"mirrors"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// Config is everything the resolver needs to know about one target build.
type Config struct {
	Modules       Modules       `mapstructure:"modules"`
	Interfaces    Interfaces    `mapstructure:"interfaces"`
	LocalPlayer   Pointer       `mapstructure:"local_player"`
	NetworkClient Pointer       `mapstructure:"network_client"`
	DeltaTick     Aux           `mapstructure:"delta_tick"`
	Source        SourceConfig  `mapstructure:"source"`
	Schema        schema.Layout `mapstructure:"schema"`
	Fields        Fields        `mapstructure:"fields"`
}

var engineSymbolModules = []string{"libengine2.so", "engine2.dll"}

// DefaultConfig matches the current Linux build of the target.
func DefaultConfig() Config {
	return Config{
		Modules: Modules{
			Client: "libclient.so",
			Engine: "libengine2.so",
			Tier0:  "libtier0.so",
			Input:  "libinputsystem.so",
			SDL:    "libSDL3.so",
			Schema: "libschemasystem.so",
		},
		Interfaces: Interfaces{
			Resource:   "GameResourceServiceClientV0",
			Cvar:       "VEngineCvar0",
			Input:      "InputSystemVersion0",
			EntityList: 0x50,
			EntitySkip: 0x10,
			Layout:     DefaultInterfaceLayout(),
		},
		LocalPlayer: Pointer{
			Patterns: []PatternSpec{
				{Pattern: "48 83 3D ? ? ? ? 00 0F 95 C0 C3", Operand: 3, Length: 8},
			},
			SymbolModules: []string{"libclient.so", "client.dll"},
			Symbols:       []string{"dwLocalPlayerController"},
		},
		NetworkClient: Pointer{
			Patterns: []PatternSpec{
				{Pattern: "48 89 3D ? ? ? ? 48 8D 15 ? ? ? ? 48 8B 05", Operand: 3, Length: 7},
				{Pattern: "48 89 3D ? ? ? ? 48 8D 15", Operand: 3, Length: 7},
				{Pattern: "48 89 1D ? ? ? ? 49 8B 04 24", Operand: 3, Length: 7},
				{Pattern: "4C 8B 0D ? ? ? ? 4C 8B D2", Operand: 3, Length: 7},
			},
			SymbolModules: engineSymbolModules,
			Symbols:       []string{"dwNetworkGameClient"},
			Fallback:      0x8EB538,
		},
		DeltaTick: Aux{
			SymbolModules: engineSymbolModules,
			Symbols:       []string{"dwNetworkGameClient_deltaTick"},
			Fallback:      0x158,
		},
		Source: SourceConfig{
			LocalCache: "offsets.json",
			Mirrors: []string{
				"https://raw.githubusercontent.com/sezzyaep/CS2-OFFSETS/main/offsets.json",
				"https://raw.githubusercontent.com/hxuanyu/cs2-dumper/main/output/linux/offsets.json",
				"https://raw.githubusercontent.com/a2x/cs2-dumper/main/output/linux/offsets.json",
			},
			CacheTTL: 10 * time.Minute,
			Timeout:  5 * time.Second,
		},
		Schema: schema.DefaultLayout(),
		Fields: DefaultFields(),
	}
}
