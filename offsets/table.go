package offsets

import (
	"memsync/process"
)

// Unavailable marks an optional offset that could not be resolved. Every
// consumer checks for it before using the offset.
const Unavailable process.ProcessMemorySize = 0

// Table is the resolved set of addresses and offsets for one attachment.
// It is built once by Resolve and never modified afterwards.
type Table struct {
	Library        Library
	Interface      Interface
	Direct         Direct
	Controller     Controller
	Pawn           Pawn
	WeaponServices WeaponServices
	Weapon         Weapon
	EntityIdentity EntityIdentity
	Skin           Skin
	NetworkClient  NetworkClient
}

// Library holds module base addresses.
type Library struct {
	Client process.ProcessMemoryAddress
	Engine process.ProcessMemoryAddress
	Tier0  process.ProcessMemoryAddress
	Input  process.ProcessMemoryAddress
	SDL    process.ProcessMemoryAddress
	Schema process.ProcessMemoryAddress
}

type Interface struct {
	Resource process.ProcessMemoryAddress
	Cvar     process.ProcessMemoryAddress
	Input    process.ProcessMemoryAddress
	// Entity is the first chunk pointer of the entity list
	Entity process.ProcessMemoryAddress
}

// Direct holds addresses of globals found by signature.
type Direct struct {
	LocalPlayer   process.ProcessMemoryAddress
	NetworkClient process.ProcessMemoryAddress // 0 when unavailable
}

type Controller struct {
	Pawn process.ProcessMemorySize // m_hPawn
}

type Pawn struct {
	Weapon         process.ProcessMemorySize // m_pClippingWeapon
	WeaponServices process.ProcessMemorySize // m_pWeaponServices
}

type WeaponServices struct {
	Weapons process.ProcessMemorySize // m_hMyWeapons
}

type Weapon struct {
	AttributeManager    process.ProcessMemorySize // C_EconEntity.m_AttributeManager
	Item                process.ProcessMemorySize // C_AttributeContainer.m_Item
	ItemDefinitionIndex process.ProcessMemorySize // C_EconItemView.m_iItemDefinitionIndex
}

type EntityIdentity struct {
	Size process.ProcessMemorySize
}

// Skin holds the optional cosmetic fields. Offsets on the item view are
// relative to weapon+AttributeManager+Item, the rest to the weapon.
type Skin struct {
	ItemIDHigh            process.ProcessMemorySize
	ItemIDLow             process.ProcessMemorySize
	AccountID             process.ProcessMemorySize
	EntityQuality         process.ProcessMemorySize
	Initialized           process.ProcessMemorySize
	AttributeList         process.ProcessMemorySize
	NetworkedDynamicAttrs process.ProcessMemorySize
	CustomName            process.ProcessMemorySize

	FallbackPaintKit      process.ProcessMemorySize
	FallbackSeed          process.ProcessMemorySize
	FallbackWear          process.ProcessMemorySize
	FallbackStatTrak      process.ProcessMemorySize
	OriginalOwnerXuidLow  process.ProcessMemorySize
	OriginalOwnerXuidHigh process.ProcessMemorySize
}

type NetworkClient struct {
	DeltaTick process.ProcessMemorySize
}

// ItemView returns the address of the item view embedded in a weapon.
func (t *Table) ItemView(weapon process.ProcessMemoryAddress) process.ProcessMemoryAddress {
	return weapon.Add(t.Weapon.AttributeManager + t.Weapon.Item)
}
