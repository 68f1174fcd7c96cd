package skins

// Category is the cosmetic slot an item definition index maps to.
type Category int

const (
	Unknown Category = iota

	Knife

	// Pistols
	Cz75A
	Deagle
	DualBerettas
	FiveSeven
	Glock
	P2000
	P250
	Revolver
	Tec9
	Usp

	// SMGs
	Bizon
	Mac10
	Mp5Sd
	Mp7
	Mp9
	P90
	Ump45

	// LMGs
	M249
	Negev

	// Shotguns
	Mag7
	Nova
	Sawedoff
	Xm1014

	// Rifles
	Ak47
	Aug
	Famas
	Galilar
	M4A4
	M4A1
	Sg556

	// Snipers
	Awp
	G3SG1
	Scar20
	Ssg08

	Taser

	// Grenades
	Flashbang
	HeGrenade
	Smoke
	Molotov
	Decoy
	Incendiary

	C4

	numCategories
)

type categoryInfo struct {
	key, display string
}

var categories = [numCategories]categoryInfo{
	Unknown:      {"unknown", "Unknown"},
	Knife:        {"knife", "Knife"},
	Cz75A:        {"cz75_a", "CZ75-Auto"},
	Deagle:       {"deagle", "Desert Eagle"},
	DualBerettas: {"dual_berettas", "Dual Berettas"},
	FiveSeven:    {"five_seven", "Five-SeveN"},
	Glock:        {"glock", "Glock-18"},
	P2000:        {"p2000", "P2000"},
	P250:         {"p250", "P250"},
	Revolver:     {"revolver", "R8 Revolver"},
	Tec9:         {"tec9", "Tec-9"},
	Usp:          {"usp", "USP-S"},
	Bizon:        {"bizon", "PP-Bizon"},
	Mac10:        {"mac10", "MAC-10"},
	Mp5Sd:        {"mp5_sd", "MP5-SD"},
	Mp7:          {"mp7", "MP7"},
	Mp9:          {"mp9", "MP9"},
	P90:          {"p90", "P90"},
	Ump45:        {"ump45", "UMP-45"},
	M249:         {"m249", "M249"},
	Negev:        {"negev", "Negev"},
	Mag7:         {"mag7", "MAG-7"},
	Nova:         {"nova", "Nova"},
	Sawedoff:     {"sawedoff", "Sawed-Off"},
	Xm1014:       {"xm1014", "XM1014"},
	Ak47:         {"ak47", "AK-47"},
	Aug:          {"aug", "AUG"},
	Famas:        {"famas", "FAMAS"},
	Galilar:      {"galilar", "Galil AR"},
	M4A4:         {"m4_a4", "M4A4"},
	M4A1:         {"m4_a1", "M4A1-S"},
	Sg556:        {"sg556", "SG 553"},
	Awp:          {"awp", "AWP"},
	G3SG1:        {"g3_sg1", "G3SG1"},
	Scar20:       {"scar20", "SCAR-20"},
	Ssg08:        {"ssg08", "SSG 08"},
	Taser:        {"taser", "Zeus x27"},
	Flashbang:    {"flashbang", "Flashbang"},
	HeGrenade:    {"he_grenade", "HE Grenade"},
	Smoke:        {"smoke", "Smoke Grenade"},
	Molotov:      {"molotov", "Molotov Cocktail"},
	Decoy:        {"decoy", "Decoy Grenade"},
	Incendiary:   {"incendiary", "Incendiary Grenade"},
	C4:           {"c4", "C4 Explosive"},
}

// definitions maps item definition indices to categories. Every knife
// model shares one slot.
var definitions = map[uint16]Category{
	1: Deagle, 2: DualBerettas, 3: FiveSeven, 4: Glock,
	7: Ak47, 8: Aug, 9: Awp, 10: Famas, 11: G3SG1, 13: Galilar, 14: M249,
	16: M4A4, 17: Mac10, 19: P90,
	23: Mp5Sd, 24: Ump45, 25: Xm1014, 26: Bizon, 27: Mag7, 28: Negev,
	29: Sawedoff, 30: Tec9, 31: Taser, 32: P2000, 33: Mp7, 34: Mp9,
	35: Nova, 36: P250, 38: Scar20, 39: Sg556, 40: Ssg08,
	41: Knife, 42: Knife,
	43: Flashbang, 44: HeGrenade, 45: Smoke, 46: Molotov, 47: Decoy,
	48: Incendiary, 49: C4,
	59: Knife, 60: M4A1, 61: Usp, 63: Cz75A, 64: Revolver, 80: Knife,
	500: Knife, 505: Knife, 506: Knife, 507: Knife, 508: Knife, 509: Knife,
	512: Knife, 514: Knife, 515: Knife, 516: Knife, 519: Knife, 520: Knife,
	522: Knife, 523: Knife,
}

// Classify returns the category of an item definition index, or Unknown.
func Classify(index uint16) Category {
	return definitions[index]
}

func (c Category) valid() bool {
	return c >= 0 && c < numCategories
}

// String returns the in-game display name.
func (c Category) String() string {
	if !c.valid() {
		return categories[Unknown].display
	}
	return categories[c].display
}

// Key returns the configuration key, e.g. "m4_a1".
func (c Category) Key() string {
	if !c.valid() {
		return categories[Unknown].key
	}
	return categories[c].key
}

// ParseCategory maps a configuration key back to its category.
func ParseCategory(key string) (Category, bool) {
	for c := Knife; c < numCategories; c++ {
		if categories[c].key == key {
			return c, true
		}
	}
	return Unknown, false
}

// Categories lists every known category in declaration order.
func Categories() []Category {
	out := make([]Category, 0, numCategories-1)
	for c := Knife; c < numCategories; c++ {
		out = append(out, c)
	}
	return out
}
