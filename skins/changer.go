// Package skins keeps the desired cosmetic state applied to the local
// player's weapons. Every tick re-derives the player from the local
// controller, compares what the target holds and rewrites only what
// drifted.
package skins

import (
	"encoding/binary"
	"errors"
	"fmt"

	"memsync/offsets"
	"memsync/process"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

// ErrUnsupported means the table lacks the offsets the patcher needs.
var ErrUnsupported = errors.New("skin offsets unavailable")

const (
	noItemID       int32  = -1
	ownerAccountID uint32 = 1
	ownerXuidLow   uint32 = 1
	ownerXuidHigh  uint32 = 0
)

type Options struct {
	// MaxContainer bounds the weapon vector; larger counts are treated as
	// garbage and the vector is skipped
	MaxContainer int
	// ToggleInitialized flips the item's initialized flag after a patch so
	// the target rebuilds its visuals
	ToggleInitialized bool
}

func DefaultOptions() Options {
	return Options{MaxContainer: 64, ToggleInitialized: true}
}

// Report summarizes one tick.
type Report struct {
	Visited   int // weapon instances inspected
	Patched   int
	Converged int // already in the desired state
	Failed    int
	Writes    int
}

func (r Report) String() string {
	return fmt.Sprintf("visited=%d patched=%d converged=%d failed=%d writes=%d",
		r.Visited, r.Patched, r.Converged, r.Failed, r.Writes)
}

// Changer applies a State to the target. It keeps no memory of previous
// ticks; everything is read back from the target.
type Changer struct {
	Options

	log *logger.Logger
}

func NewChanger(opts Options) *Changer {
	return &Changer{
		Options: opts,
		log:     logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "skins")),
	}
}

// tick carries the state of one ApplyTick call.
type tick struct {
	*Changer
	proc   process.Process
	t      *offsets.Table
	state  State
	report Report
}

// ApplyTick converges the active weapon and then every other owned weapon.
// Failures on one weapon are counted and do not stop the others; the
// returned error only reports that the player could not be reached.
func (c *Changer) ApplyTick(proc process.Process, t *offsets.Table, state State) (Report, error) {
	if t.Skin.ItemIDHigh == offsets.Unavailable || t.Skin.FallbackPaintKit == offsets.Unavailable {
		return Report{}, ErrUnsupported
	}

	tk := &tick{Changer: c, proc: proc, t: t, state: state}

	pawn, err := LocalPawn(proc, t)
	if err != nil {
		return tk.report, err
	}

	active, err := proc.ReadPOINTER(pawn.Add(t.Pawn.Weapon))
	if err != nil {
		return tk.report, fmt.Errorf("active weapon: %w", err)
	}
	if active != 0 {
		tk.visit(active)
	}

	handles, err := tk.weapons(pawn)
	if err != nil {
		return tk.report, err
	}
	for _, h := range handles {
		weapon, err := Entity(proc, t, h)
		if errors.Is(err, ErrNoEntity) {
			continue
		}
		if err != nil {
			tk.report.Failed++
			c.log.Debugln("Weapon handle", h, ":", err)
			continue
		}
		if weapon == active {
			continue
		}
		tk.visit(weapon)
	}

	return tk.report, nil
}

// weapons reads the owned weapon handles. An implausible vector yields no
// handles.
func (tk *tick) weapons(pawn process.ProcessMemoryAddress) ([]int32, error) {
	services, err := tk.proc.ReadPOINTER(pawn.Add(tk.t.Pawn.WeaponServices))
	if err != nil {
		return nil, fmt.Errorf("weapon services: %w", err)
	}
	if services == 0 {
		return nil, nil
	}

	vector := services.Add(tk.t.WeaponServices.Weapons)
	count, err := tk.proc.ReadINT32(vector)
	if err != nil {
		return nil, fmt.Errorf("weapon count: %w", err)
	}
	data, err := tk.proc.ReadPOINTER(vector.Add(8))
	if err != nil {
		return nil, fmt.Errorf("weapon data: %w", err)
	}
	if count <= 0 || int(count) > tk.MaxContainer || data == 0 {
		return nil, nil
	}

	raw, err := tk.proc.ReadMemory(data, process.ProcessMemorySize(4*count))
	if err != nil {
		return nil, fmt.Errorf("weapon handles: %w", err)
	}
	handles := make([]int32, count)
	for i := range handles {
		handles[i] = int32(binary.LittleEndian.Uint32(raw[4*i:]))
	}
	return handles, nil
}

func (tk *tick) visit(weapon process.ProcessMemoryAddress) {
	tk.report.Visited++
	item := tk.t.ItemView(weapon)

	def, err := tk.proc.ReadUINT16(item.Add(tk.t.Weapon.ItemDefinitionIndex))
	if err != nil {
		tk.fail(weapon, err)
		return
	}
	category := Classify(def)
	if category == Unknown {
		return
	}
	skin, ok := tk.state.For(category)
	if !ok {
		return
	}

	fields := tk.cosmetics(weapon, item, skin)
	converged, err := tk.converged(item, fields)
	if err != nil {
		tk.fail(weapon, err)
		return
	}
	if converged {
		tk.report.Converged++
		return
	}

	tk.log.Infoln("Applying skin:", weapon.ToString(), category.String(), "paint kit", skin.PaintKit)
	if err := tk.patch(item, fields); err != nil {
		tk.fail(weapon, err)
		return
	}
	tk.report.Patched++
}

func (tk *tick) fail(weapon process.ProcessMemoryAddress, err error) {
	tk.report.Failed++
	tk.log.Debugln("Weapon", weapon.ToString(), ":", err)
}

// field is one cosmetic value as it should appear in the target.
type field struct {
	addr process.ProcessMemoryAddress
	data []byte
}

// cosmetics lists the desired fields in write order, leaving out those
// whose offset is unavailable.
func (tk *tick) cosmetics(weapon, item process.ProcessMemoryAddress, skin Skin) []field {
	s := tk.t.Skin
	var out []field
	add := func(base process.ProcessMemoryAddress, off process.ProcessMemorySize, data []byte) {
		if off != offsets.Unavailable {
			out = append(out, field{addr: base.Add(off), data: data})
		}
	}

	add(weapon, s.FallbackPaintKit, process.Bytes(skin.PaintKit))
	add(weapon, s.FallbackSeed, process.Bytes(skin.Seed))
	add(weapon, s.FallbackWear, process.Bytes(skin.Wear))
	add(weapon, s.FallbackStatTrak, process.Bytes(skin.StatTrak))
	add(item, s.AccountID, process.Bytes(ownerAccountID))
	add(item, s.EntityQuality, process.Bytes(skin.Quality()))
	add(weapon, s.OriginalOwnerXuidLow, process.Bytes(ownerXuidLow))
	add(weapon, s.OriginalOwnerXuidHigh, process.Bytes(ownerXuidHigh))
	return out
}

// converged reports whether the item ids hold the sentinel and every
// cosmetic field already holds its desired value.
func (tk *tick) converged(item process.ProcessMemoryAddress, fields []field) (bool, error) {
	s := tk.t.Skin
	ids := []process.ProcessMemorySize{s.ItemIDHigh}
	if s.ItemIDLow != offsets.Unavailable {
		ids = append(ids, s.ItemIDLow)
	}
	for _, off := range ids {
		v, err := tk.proc.ReadINT32(item.Add(off))
		if err != nil {
			return false, err
		}
		if v != noItemID {
			return false, nil
		}
	}

	for _, f := range fields {
		cur, err := tk.proc.ReadMemory(f.addr, process.ProcessMemorySize(len(f.data)))
		if err != nil {
			return false, err
		}
		if string(cur) != string(f.data) {
			return false, nil
		}
	}
	return true, nil
}

// patch detaches the item from the inventory, writes the cosmetics and
// makes sure the detachment survived them, retrying that once.
func (tk *tick) patch(item process.ProcessMemoryAddress, fields []field) error {
	s := tk.t.Skin
	sentinel := process.Bytes(noItemID)
	high := item.Add(s.ItemIDHigh)

	if s.ItemIDLow != offsets.Unavailable {
		if err := tk.write(item.Add(s.ItemIDLow), sentinel); err != nil {
			return err
		}
	}
	if err := tk.write(high, sentinel); err != nil {
		return err
	}

	for _, f := range fields {
		if err := tk.write(f.addr, f.data); err != nil {
			return err
		}
	}

	// Cosmetic writes can make the target recompute the item id
	if err := tk.write(high, sentinel); err != nil {
		return err
	}
	v, err := tk.proc.ReadINT32(high)
	if err != nil {
		return err
	}
	if v != noItemID {
		if err := tk.write(high, sentinel); err != nil {
			return err
		}
	}

	if tk.ToggleInitialized && s.Initialized != offsets.Unavailable {
		flag := item.Add(s.Initialized)
		if err := tk.write(flag, []byte{0}); err != nil {
			return err
		}
		if err := tk.write(flag, []byte{1}); err != nil {
			return err
		}
	}
	return nil
}

func (tk *tick) write(addr process.ProcessMemoryAddress, data []byte) error {
	if err := tk.proc.WriteMemory(addr, data); err != nil {
		return err
	}
	tk.report.Writes++
	return nil
}

// ForceFullUpdate makes the target request a full snapshot from the server
// by invalidating the network client's delta tick.
func ForceFullUpdate(proc process.Process, t *offsets.Table) error {
	if t.Direct.NetworkClient == 0 || t.NetworkClient.DeltaTick == offsets.Unavailable {
		return fmt.Errorf("force full update: %w", ErrUnsupported)
	}
	client, err := proc.ReadPOINTER(t.Direct.NetworkClient)
	if err != nil {
		return fmt.Errorf("network client: %w", err)
	}
	if client == 0 {
		return errors.New("network client not initialized")
	}
	return process.Write(proc, client.Add(t.NetworkClient.DeltaTick), int32(-1))
}
