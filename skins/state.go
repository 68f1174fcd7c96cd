package skins

import (
	"sort"
)

// statTrakQuality is the entity quality that shows the kill counter
const statTrakQuality = 9

// Skin is the desired cosmetic state of one category.
type Skin struct {
	Enabled  bool    `mapstructure:"enabled"`
	PaintKit int32   `mapstructure:"paint_kit"`
	Seed     int32   `mapstructure:"seed"`
	Wear     float32 `mapstructure:"wear"`
	StatTrak int32   `mapstructure:"stattrak"` // -1 disables the counter
}

// DefaultSkin is a disabled entry without a counter.
func DefaultSkin() Skin {
	return Skin{StatTrak: -1}
}

// Active reports whether the entry should be applied.
func (s Skin) Active() bool {
	return s.Enabled && s.PaintKit > 0
}

// Quality is the entity quality matching the counter setting.
func (s Skin) Quality() int32 {
	if s.StatTrak >= 0 {
		return statTrakQuality
	}
	return 0
}

// State is the desired state for every category.
type State map[Category]Skin

// For returns the entry for c if it is active.
func (s State) For(c Category) (Skin, bool) {
	skin, ok := s[c]
	if !ok || !skin.Active() {
		return Skin{}, false
	}
	return skin, true
}

// Configured lists the active categories in declaration order.
func (s State) Configured() []Category {
	var out []Category
	for c, skin := range s {
		if skin.Active() {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
