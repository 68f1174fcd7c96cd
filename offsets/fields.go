package offsets

import (
	"errors"
	"fmt"

	"memsync/process"
	"memsync/schema"

	"github.com/Moonlight-Companies/gologger/logger"
)

// ErrFieldNotConfigured means a Table slot has no class and field bound.
var ErrFieldNotConfigured = errors.New("field not configured")

// FieldRef names a reflected field.
type FieldRef struct {
	Class string `mapstructure:"class"`
	Field string `mapstructure:"field"`
}

func (r FieldRef) String() string {
	return r.Class + "." + r.Field
}

// Fields maps Table slots to reflected fields of one scope.
type Fields struct {
	// Scope defaults to the client module
	Scope         string              `mapstructure:"scope"`
	// IdentityClass supplies the stride of the entity list chunks
	IdentityClass string              `mapstructure:"identity_class"`
	Bindings      map[string]FieldRef `mapstructure:"bindings"`
}

// fieldSlot is a Table slot filled from a binding of the same name.
type fieldSlot struct {
	name     string
	required bool
	dst      func(*Table) *process.ProcessMemorySize
}

var fieldSlots = []fieldSlot{
	{"controller_pawn", true, func(t *Table) *process.ProcessMemorySize { return &t.Controller.Pawn }},
	{"pawn_weapon", true, func(t *Table) *process.ProcessMemorySize { return &t.Pawn.Weapon }},
	{"pawn_weapon_services", true, func(t *Table) *process.ProcessMemorySize { return &t.Pawn.WeaponServices }},
	{"weapon_services_weapons", true, func(t *Table) *process.ProcessMemorySize { return &t.WeaponServices.Weapons }},
	{"weapon_attribute_manager", true, func(t *Table) *process.ProcessMemorySize { return &t.Weapon.AttributeManager }},
	{"weapon_item", true, func(t *Table) *process.ProcessMemorySize { return &t.Weapon.Item }},
	{"weapon_item_definition_index", true, func(t *Table) *process.ProcessMemorySize { return &t.Weapon.ItemDefinitionIndex }},

	{"skin_item_id_high", false, func(t *Table) *process.ProcessMemorySize { return &t.Skin.ItemIDHigh }},
	{"skin_item_id_low", false, func(t *Table) *process.ProcessMemorySize { return &t.Skin.ItemIDLow }},
	{"skin_account_id", false, func(t *Table) *process.ProcessMemorySize { return &t.Skin.AccountID }},
	{"skin_entity_quality", false, func(t *Table) *process.ProcessMemorySize { return &t.Skin.EntityQuality }},
	{"skin_initialized", false, func(t *Table) *process.ProcessMemorySize { return &t.Skin.Initialized }},
	{"skin_attribute_list", false, func(t *Table) *process.ProcessMemorySize { return &t.Skin.AttributeList }},
	{"skin_networked_dynamic_attributes", false, func(t *Table) *process.ProcessMemorySize { return &t.Skin.NetworkedDynamicAttrs }},
	{"skin_custom_name", false, func(t *Table) *process.ProcessMemorySize { return &t.Skin.CustomName }},
	{"skin_fallback_paint_kit", false, func(t *Table) *process.ProcessMemorySize { return &t.Skin.FallbackPaintKit }},
	{"skin_fallback_seed", false, func(t *Table) *process.ProcessMemorySize { return &t.Skin.FallbackSeed }},
	{"skin_fallback_wear", false, func(t *Table) *process.ProcessMemorySize { return &t.Skin.FallbackWear }},
	{"skin_fallback_stattrak", false, func(t *Table) *process.ProcessMemorySize { return &t.Skin.FallbackStatTrak }},
	{"skin_original_owner_xuid_low", false, func(t *Table) *process.ProcessMemorySize { return &t.Skin.OriginalOwnerXuidLow }},
	{"skin_original_owner_xuid_high", false, func(t *Table) *process.ProcessMemorySize { return &t.Skin.OriginalOwnerXuidHigh }},
}

// DefaultFields binds every slot to the field names of the current build.
func DefaultFields() Fields {
	return Fields{
		IdentityClass: "CEntityIdentity",
		Bindings: map[string]FieldRef{
			"controller_pawn":              {"CBasePlayerController", "m_hPawn"},
			"pawn_weapon":                  {"C_CSPlayerPawn", "m_pClippingWeapon"},
			"pawn_weapon_services":         {"C_BasePlayerPawn", "m_pWeaponServices"},
			"weapon_services_weapons":      {"CPlayer_WeaponServices", "m_hMyWeapons"},
			"weapon_attribute_manager":     {"C_EconEntity", "m_AttributeManager"},
			"weapon_item":                  {"C_AttributeContainer", "m_Item"},
			"weapon_item_definition_index": {"C_EconItemView", "m_iItemDefinitionIndex"},

			"skin_item_id_high":                 {"C_EconItemView", "m_iItemIDHigh"},
			"skin_item_id_low":                  {"C_EconItemView", "m_iItemIDLow"},
			"skin_account_id":                   {"C_EconItemView", "m_iAccountID"},
			"skin_entity_quality":               {"C_EconItemView", "m_iEntityQuality"},
			"skin_initialized":                  {"C_EconItemView", "m_bInitialized"},
			"skin_attribute_list":               {"C_EconItemView", "m_AttributeList"},
			"skin_networked_dynamic_attributes": {"C_EconItemView", "m_NetworkedDynamicAttributes"},
			"skin_custom_name":                  {"C_EconItemView", "m_szCustomName"},
			"skin_fallback_paint_kit":           {"C_EconEntity", "m_nFallbackPaintKit"},
			"skin_fallback_seed":                {"C_EconEntity", "m_nFallbackSeed"},
			"skin_fallback_wear":                {"C_EconEntity", "m_flFallbackWear"},
			"skin_fallback_stattrak":            {"C_EconEntity", "m_nFallbackStatTrak"},
			"skin_original_owner_xuid_low":      {"C_EconEntity", "m_OriginalOwnerXuidLow"},
			"skin_original_owner_xuid_high":     {"C_EconEntity", "m_OriginalOwnerXuidHigh"},
		},
	}
}

func bindFields(scope *schema.Scope, fields Fields, t *Table, log *logger.Logger) error {
	for _, slot := range fieldSlots {
		ref, ok := fields.Bindings[slot.name]
		var off process.ProcessMemorySize
		err := ErrFieldNotConfigured
		if ok {
			if off, err = scope.Field(ref.Class, ref.Field); err != nil {
				err = fmt.Errorf("%s: %w", ref, err)
			}
		}
		if err != nil {
			if slot.required {
				return mandatory(slot.name, err)
			}
			log.Warn("Optional field unavailable:", slot.name, err)
			off = Unavailable
		}
		*slot.dst(t) = off
	}

	identity, err := scope.Class(fields.IdentityClass)
	if err != nil {
		return mandatory(fields.IdentityClass, err)
	}
	if identity.Size <= 0 {
		return mandatory(fields.IdentityClass, fmt.Errorf("invalid class size %d", identity.Size))
	}
	t.EntityIdentity.Size = process.ProcessMemorySize(identity.Size)
	return nil
}
