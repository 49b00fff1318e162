package cards

import "fmt"

type Kind uint8

const (
	KindCreature Kind = iota
	KindSpell
)

func (k Kind) String() string {
	switch k {
	case KindCreature:
		return "creature"
	case KindSpell:
		return "spell"
	default:
		return "unknown"
	}
}

// Definition is the static data of a card.
type Definition struct {
	Name      string `json:"name"`
	Kind      Kind   `json:"kind"`
	Cost      int    `json:"cost"`
	Power     int    `json:"power,omitempty"`
	Toughness int    `json:"toughness,omitempty"`
	// Damage dealt by a spell to its target.
	Damage int `json:"damage,omitempty"`
	// NeedsTarget is set for spells that cannot be cast without a target.
	NeedsTarget bool `json:"needsTarget,omitempty"`
}

var catalog = map[string]Definition{
	"squire":     {Name: "squire", Kind: KindCreature, Cost: 1, Power: 1, Toughness: 1},
	"wolf":       {Name: "wolf", Kind: KindCreature, Cost: 2, Power: 2, Toughness: 2},
	"ogre":       {Name: "ogre", Kind: KindCreature, Cost: 3, Power: 3, Toughness: 3},
	"troll":      {Name: "troll", Kind: KindCreature, Cost: 4, Power: 4, Toughness: 5},
	"dragon":     {Name: "dragon", Kind: KindCreature, Cost: 6, Power: 6, Toughness: 6},
	"bolt":       {Name: "bolt", Kind: KindSpell, Cost: 1, Damage: 3, NeedsTarget: true},
	"fireball":   {Name: "fireball", Kind: KindSpell, Cost: 4, Damage: 5, NeedsTarget: true},
	"wall":       {Name: "wall", Kind: KindCreature, Cost: 2, Power: 0, Toughness: 5},
	"berserker":  {Name: "berserker", Kind: KindCreature, Cost: 3, Power: 5, Toughness: 1},
	"shieldbear": {Name: "shieldbear", Kind: KindCreature, Cost: 5, Power: 4, Toughness: 7},
}

// Lookup returns the definition of the named card.
func Lookup(name string) (Definition, error) {
	def, ok := catalog[name]
	if !ok {
		return Definition{}, fmt.Errorf("unknown card %q", name)
	}
	return def, nil
}

// DefaultDeck returns the deck list every participant plays with.
func DefaultDeck() []string {
	return []string{
		"squire", "squire", "squire",
		"wolf", "wolf", "wolf",
		"wall", "wall",
		"ogre", "ogre", "ogre",
		"berserker", "berserker",
		"troll", "troll",
		"shieldbear",
		"dragon",
		"bolt", "bolt",
		"fireball",
	}
}
