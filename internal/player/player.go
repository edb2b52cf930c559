// Package player defines the loadout a collaborator hands to every roll. The
// core never stores player state; it reads exactly what the caller supplies,
// so the loadout is one explicit struct rather than a bag of options.
package player

import "sort"

// PerkSet holds the ids of owned perks and augments.
type PerkSet map[string]struct{}

// NewPerkSet builds a set from perk ids, ignoring blanks.
func NewPerkSet(ids ...string) PerkSet {
	set := make(PerkSet, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		set[id] = struct{}{}
	}
	return set
}

// Has reports ownership. A blank id is always owned: catalog rows without a
// gate pass unconditionally.
func (s PerkSet) Has(id string) bool {
	if id == "" {
		return true
	}
	_, ok := s[id]
	return ok
}

// Names returns the owned ids in sorted order for stable snapshots.
func (s PerkSet) Names() []string {
	if len(s) == 0 {
		return nil
	}
	names := make([]string, 0, len(s))
	for id := range s {
		names = append(names, id)
	}
	sort.Strings(names)
	return names
}

// Loadout is the full set of player-derived inputs a roll consumes. The zero
// value is a neutral player once Normalized applies the multiplicative
// defaults. Rolls treat the loadout as read-only.
type Loadout struct {
	// Luck shifts rarity before weighting; positive favors good outcomes.
	Luck float64
	// Perks gates catalog rows and triggers perk-specific boosts.
	Perks PerkSet
	// RarityOverrides multiplies base rarities by id (perk sources; event
	// sources merge in at the world layer).
	RarityOverrides map[string]float64
	// ValueBonus adds flat value into the modifier multiplier.
	ValueBonus float64
	// ModChance scales modifier roll probability and pool weight. Neutral
	// is 1; zero on the wire means "unset".
	ModChance float64
	// GuaranteedMods are modifier ids granted before any random roll.
	GuaranteedMods []string
	// EventRate multiplies world-event trial chance. Neutral is 1.
	EventRate float64
}

// Normalized returns a copy with multiplicative fields defaulted to 1 when
// unset and clamped at 0 when negative. Maps and slices are shared, not
// copied.
func (l Loadout) Normalized() Loadout {
	if l.ModChance == 0 {
		l.ModChance = 1
	} else if l.ModChance < 0 {
		l.ModChance = 0
	}
	if l.EventRate == 0 {
		l.EventRate = 1
	} else if l.EventRate < 0 {
		l.EventRate = 0
	}
	return l
}
