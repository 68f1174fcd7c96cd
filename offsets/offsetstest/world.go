package offsetstest

import (
	"memsync/process"
)

const (
	entityChunks = 64
	chunkEntries = 512
	// Serial bits above the index mask, as live handles carry them
	handleSerial = 0x2A << 15

	weaponSize   = 0x1800
	pawnSize     = 0x1400
	servicesSize = 0x100
)

// Handle returns an entity handle for index.
func Handle(index int) int32 {
	return int32(handleSerial | index)
}

// SetEntity stores entity at index of the entity list, allocating the
// chunk on first use.
func (t *Target) SetEntity(index int, entity process.ProcessMemoryAddress) {
	chunk := index / chunkEntries
	base, ok := t.chunks[chunk]
	if !ok {
		base = t.Alloc(IdentitySize * chunkEntries)
		t.chunks[chunk] = base
		t.Image.PutPOINTER(t.EntityList.Add(process.ProcessMemorySize(8*chunk)), base)
	}
	t.Image.PutPOINTER(base.Add(process.ProcessMemorySize(IdentitySize*(index%chunkEntries))), entity)
}

// ItemView returns the item view embedded in weapon.
func ItemView(weapon process.ProcessMemoryAddress) process.ProcessMemoryAddress {
	return weapon.Add(Field("C_EconEntity.m_AttributeManager") + Field("C_AttributeContainer.m_Item"))
}

// NewWeapon allocates a weapon entity of the given definition index with a
// live item id.
func (t *Target) NewWeapon(def uint16) process.ProcessMemoryAddress {
	w := t.Alloc(weaponSize)
	item := ItemView(w)
	t.Image.PutUINT16(item.Add(Field("C_EconItemView.m_iItemDefinitionIndex")), def)
	t.Image.PutINT32(item.Add(Field("C_EconItemView.m_iItemIDHigh")), 0x1234)
	t.Image.PutINT32(item.Add(Field("C_EconItemView.m_iItemIDLow")), 0x5678)
	t.Image.PutINT32(w.Add(Field("C_EconEntity.m_nFallbackStatTrak")), -1)
	return w
}

// NewPawn allocates a pawn holding active and owning the weapons behind
// handles.
func (t *Target) NewPawn(active process.ProcessMemoryAddress, handles ...int32) process.ProcessMemoryAddress {
	pawn := t.Alloc(pawnSize)
	services := t.Alloc(servicesSize)
	t.Image.PutPOINTER(pawn.Add(Field("C_CSPlayerPawn.m_pClippingWeapon")), active)
	t.Image.PutPOINTER(pawn.Add(Field("C_BasePlayerPawn.m_pWeaponServices")), services)

	vector := services.Add(Field("CPlayer_WeaponServices.m_hMyWeapons"))
	t.Image.PutINT32(vector, int32(len(handles)))
	if len(handles) > 0 {
		data := t.Alloc(process.ProcessMemorySize(4 * len(handles)))
		for i, h := range handles {
			t.Image.PutINT32(data.Add(process.ProcessMemorySize(4*i)), h)
		}
		t.Image.PutPOINTER(vector.Add(8), data)
	}
	return pawn
}

// SetLocalController points the local player global at a new controller
// whose pawn handle is pawnHandle.
func (t *Target) SetLocalController(pawnHandle int32) process.ProcessMemoryAddress {
	controller := t.Alloc(0x800)
	t.Image.PutINT32(controller.Add(Field("CBasePlayerController.m_hPawn")), pawnHandle)
	t.Image.PutPOINTER(t.LocalPlayerGlobal, controller)
	return controller
}

// Player is a local player assembled by Spawn.
type Player struct {
	Controller process.ProcessMemoryAddress
	Pawn       process.ProcessMemoryAddress
	Active     process.ProcessMemoryAddress
	Weapons    []process.ProcessMemoryAddress
}

// Spawn creates a local player holding the first of defs and owning all of
// them. Entities are placed at indices 1 for the pawn and 100 onwards for
// the weapons.
func (t *Target) Spawn(defs ...uint16) Player {
	var p Player
	var handles []int32
	for i, def := range defs {
		w := t.NewWeapon(def)
		t.SetEntity(100+i, w)
		p.Weapons = append(p.Weapons, w)
		handles = append(handles, Handle(100+i))
	}
	if len(p.Weapons) > 0 {
		p.Active = p.Weapons[0]
	}
	p.Pawn = t.NewPawn(p.Active, handles...)
	t.SetEntity(1, p.Pawn)
	p.Controller = t.SetLocalController(Handle(1))
	return p
}
