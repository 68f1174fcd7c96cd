// Package config loads the memsync.toml configuration through viper.
// Every key can be overridden from the environment as
// MEMSYNC_<SECTION>_<KEY>, e.g. MEMSYNC_ENGINE_TICK_INTERVAL=20ms.
package config

import (
	"time"

	"memsync/offsets"
	"memsync/schema"
	"memsync/skins"
)

// Config is the full configuration of a run.
type Config struct {
	// Master switch for the patch loop.
	Enabled bool `mapstructure:"enabled"`
	// Log every tick report.
	Debug bool `mapstructure:"debug"`

	Process Process `mapstructure:"process"`
	Engine  Engine  `mapstructure:"engine"`
	Offsets Offsets `mapstructure:"offsets"`

	// Desired state keyed by category, e.g. "ak47" or "m4_a1".
	Skins map[string]skins.Skin `mapstructure:"skins"`
}

type Process struct {
	// Name of the target process.
	Name    string          `mapstructure:"name"`
	Modules offsets.Modules `mapstructure:"modules"`
}

type Engine struct {
	TickInterval      time.Duration `mapstructure:"tick_interval"`
	AttachBackoff     time.Duration `mapstructure:"attach_backoff"`
	MaxContainer      int           `mapstructure:"max_container"`
	ToggleInitialized bool          `mapstructure:"toggle_initialized"`
	// Invalidate the delta tick once per attachment after the first patch.
	ForceFullUpdate bool `mapstructure:"force_full_update"`
}

// Offsets holds everything coupled to a specific target build.
type Offsets struct {
	// Symbol table cache, relative to the base directory.
	LocalCache string        `mapstructure:"local_cache"`
	Mirrors    []string      `mapstructure:"mirrors"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
	Timeout    time.Duration `mapstructure:"timeout"`

	Fallback   Fallback           `mapstructure:"fallback"`
	Patterns   Patterns           `mapstructure:"patterns"`
	Interfaces offsets.Interfaces `mapstructure:"interfaces"`
	Layout     schema.Layout      `mapstructure:"layout"`
	Fields     offsets.Fields     `mapstructure:"fields"`
}

// Fallback constants are module relative and only used when every other
// strategy failed.
type Fallback struct {
	NetworkClient uint64 `mapstructure:"network_client"`
	DeltaTick     uint64 `mapstructure:"delta_tick"`
}

type Patterns struct {
	LocalPlayer   []offsets.PatternSpec `mapstructure:"local_player"`
	NetworkClient []offsets.PatternSpec `mapstructure:"network_client"`
}

// Default mirrors the defaults of the offsets and skins packages. Every
// category is present and disabled so the written file is easy to edit.
func Default() *Config {
	oc := offsets.DefaultConfig()
	opts := skins.DefaultOptions()

	cfg := &Config{
		Process: Process{
			Name:    "cs2",
			Modules: oc.Modules,
		},
		Engine: Engine{
			TickInterval:      10 * time.Millisecond,
			AttachBackoff:     5 * time.Second,
			MaxContainer:      opts.MaxContainer,
			ToggleInitialized: opts.ToggleInitialized,
		},
		Offsets: Offsets{
			LocalCache: oc.Source.LocalCache,
			Mirrors:    oc.Source.Mirrors,
			CacheTTL:   oc.Source.CacheTTL,
			Timeout:    oc.Source.Timeout,
			Fallback: Fallback{
				NetworkClient: oc.NetworkClient.Fallback,
				DeltaTick:     oc.DeltaTick.Fallback,
			},
			Patterns: Patterns{
				LocalPlayer:   oc.LocalPlayer.Patterns,
				NetworkClient: oc.NetworkClient.Patterns,
			},
			Interfaces: oc.Interfaces,
			Layout:     oc.Schema,
			Fields:     oc.Fields,
		},
		Skins: make(map[string]skins.Skin),
	}
	for _, c := range skins.Categories() {
		cfg.Skins[c.Key()] = skins.DefaultSkin()
	}
	return cfg
}

// Resolver returns the offsets configuration, with the symbol cache placed
// under the context's base directory.
func (c *Config) Resolver(ctx *Context) offsets.Config {
	oc := offsets.DefaultConfig()
	oc.Modules = c.Process.Modules
	oc.Interfaces = c.Offsets.Interfaces
	oc.LocalPlayer.Patterns = c.Offsets.Patterns.LocalPlayer
	oc.NetworkClient.Patterns = c.Offsets.Patterns.NetworkClient
	oc.NetworkClient.Fallback = c.Offsets.Fallback.NetworkClient
	oc.DeltaTick.Fallback = c.Offsets.Fallback.DeltaTick
	oc.Source = offsets.SourceConfig{
		LocalCache: ctx.Path(c.Offsets.LocalCache),
		Mirrors:    c.Offsets.Mirrors,
		CacheTTL:   c.Offsets.CacheTTL,
		Timeout:    c.Offsets.Timeout,
	}
	oc.Schema = c.Offsets.Layout
	oc.Fields = c.Offsets.Fields
	return oc
}

// State converts the skins section. Unknown keys are returned separately.
func (c *Config) State() (skins.State, []string) {
	state := make(skins.State)
	var unknown []string
	for key, skin := range c.Skins {
		category, ok := skins.ParseCategory(key)
		if !ok {
			unknown = append(unknown, key)
			continue
		}
		state[category] = skin
	}
	return state, unknown
}

func (c *Config) ChangerOptions() skins.Options {
	return skins.Options{
		MaxContainer:      c.Engine.MaxContainer,
		ToggleInitialized: c.Engine.ToggleInitialized,
	}
}
