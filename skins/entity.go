package skins

import (
	"errors"
	"fmt"

	"memsync/offsets"
	"memsync/process"
)

var (
	ErrNoPlayer = errors.New("no local player")
	ErrNoEntity = errors.New("entity slot empty")
)

const (
	handleIndexMask = 0x7FFF
	chunkShift      = 9
	chunkMask       = 0x1FF
)

// Entity resolves an entity handle through the entity list. The list is a
// table of chunk pointers, each chunk holding 512 identities.
func Entity(proc process.Process, t *offsets.Table, handle int32) (process.ProcessMemoryAddress, error) {
	index := uint64(uint32(handle)) & handleIndexMask

	chunk, err := proc.ReadPOINTER(t.Interface.Entity.Add(process.ProcessMemorySize(8 * (index >> chunkShift))))
	if err != nil {
		return 0, fmt.Errorf("entity chunk %d: %w", index>>chunkShift, err)
	}
	if chunk == 0 {
		return 0, ErrNoEntity
	}

	entity, err := proc.ReadPOINTER(chunk.Add(t.EntityIdentity.Size * process.ProcessMemorySize(index&chunkMask)))
	if err != nil {
		return 0, fmt.Errorf("entity %d: %w", index, err)
	}
	if entity == 0 {
		return 0, ErrNoEntity
	}
	return entity, nil
}

// LocalPawn follows the local controller to its pawn. ErrNoPlayer means
// there is currently nothing to patch, such as in the main menu.
func LocalPawn(proc process.Process, t *offsets.Table) (process.ProcessMemoryAddress, error) {
	controller, err := proc.ReadPOINTER(t.Direct.LocalPlayer)
	if err != nil {
		return 0, fmt.Errorf("local controller: %w", err)
	}
	if controller == 0 {
		return 0, ErrNoPlayer
	}

	handle, err := proc.ReadINT32(controller.Add(t.Controller.Pawn))
	if err != nil {
		return 0, fmt.Errorf("pawn handle: %w", err)
	}
	if handle == -1 {
		return 0, ErrNoPlayer
	}

	pawn, err := Entity(proc, t, handle)
	if errors.Is(err, ErrNoEntity) {
		return 0, ErrNoPlayer
	}
	return pawn, err
}
