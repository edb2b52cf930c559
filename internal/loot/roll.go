package loot

import (
	"drift-and-dredge/server/internal/player"
	"drift-and-dredge/server/internal/rarity"
)

// Sampler tuning shared by the drop tables. Size and relic picks clamp
// rarity at 1; the modifier pool clamps at 0.1 so very common modifiers
// keep distinct weights.
const (
	dropBaseWeight = 100
	sizeFloor      = 1
	modifierFloor  = 0.1
	relicFloor     = 1
	goodFactor     = 0.1
	badFactor      = 0.05

	// One luck point adds 5% to the modifier-count chance.
	luckChanceStep = 0.05
	// Base chance of rolling exactly one / exactly two modifiers.
	oneModifierBase = 0.4
	twoModifierBase = 0.15

	// Stacked negative modifiers never push the multiplier below this.
	valueFloor = 0.1
)

// Drop is one fully assembled salvage result.
type Drop struct {
	Relic      Relic          `json:"relic"`
	Size       rarity.Entry   `json:"size"`
	Modifiers  []rarity.Entry `json:"modifiers,omitempty"`
	Multiplier float64        `json:"multiplier"`
	Value      float64        `json:"value"`
}

// RollSizeClass draws one size class. Luck favors classes above the neutral
// 1x multiplier and suppresses those below it; the neutral class itself is
// luck-invariant. Consumes exactly one draw.
func RollSizeClass(sizes []rarity.Entry, lo player.Loadout, r rarity.Rand) rarity.Entry {
	lo = lo.Normalized()
	candidates := rarity.EligibleCandidates(sizes, lo.Perks.Has)
	ctx := rarity.Context[rarity.Entry]{
		Luck: lo.Luck,
		Good: func(e rarity.Entry) bool { return e.Value > 1 },
		Bad:  func(e rarity.Entry) bool { return e.Value < 1 },
		Options: rarity.Options{
			BaseWeight: dropBaseWeight,
			Floor:      sizeFloor,
			Scale:      1,
			GoodFactor: goodFactor,
			BadFactor:  badFactor,
			Overrides:  lo.RarityOverrides,
		},
	}
	size, ok := rarity.Pick(candidates, ctx, r)
	if !ok && len(sizes) > 0 {
		return sizes[0]
	}
	return size
}

// RollModifiers assembles the modifier stack for one drop. Guaranteed ids
// come first (unknown ids are skipped, duplicates collapse, gating does not
// apply to grants). A single draw then decides how many random modifiers to
// add on top; each is sampled without replacement from the eligible pool.
// ModChance scales both the count chances and the pool weights, never the
// rarities themselves.
func RollModifiers(mods []rarity.Entry, lo player.Loadout, r rarity.Rand) []rarity.Entry {
	lo = lo.Normalized()
	picked := make([]rarity.Entry, 0, len(lo.GuaranteedMods)+2)
	taken := make(map[string]struct{}, len(lo.GuaranteedMods)+2)
	for _, id := range lo.GuaranteedMods {
		if _, dup := taken[id]; dup {
			continue
		}
		entry, ok := findEntry(mods, id)
		if !ok {
			continue
		}
		taken[id] = struct{}{}
		picked = append(picked, entry)
	}

	luckChance := 1 + lo.Luck*luckChanceStep
	oneChance := oneModifierBase * lo.ModChance * luckChance
	twoChance := twoModifierBase * lo.ModChance * luckChance
	var count int
	switch d := r.Float64(); {
	case d < oneChance:
		count = 1
	case d < oneChance+twoChance:
		count = 2
	}
	if count == 0 {
		return picked
	}

	pool := make([]rarity.Candidate[rarity.Entry], 0, len(mods))
	for _, cand := range rarity.EligibleCandidates(mods, lo.Perks.Has) {
		if _, dup := taken[cand.ID]; dup {
			continue
		}
		pool = append(pool, cand)
	}
	ctx := rarity.Context[rarity.Entry]{
		Luck: lo.Luck,
		Good: func(e rarity.Entry) bool { return e.Value > 0 },
		Bad:  func(e rarity.Entry) bool { return e.Value < 0 },
		Options: rarity.Options{
			BaseWeight: dropBaseWeight,
			Floor:      modifierFloor,
			Scale:      lo.ModChance,
			GoodFactor: goodFactor,
			BadFactor:  badFactor,
			Overrides:  lo.RarityOverrides,
		},
	}
	for len(picked) < len(taken)+count && len(pool) > 0 {
		idx, ok := rarity.PickIndex(pool, ctx, r)
		if !ok {
			break
		}
		picked = append(picked, pool[idx].Item)
		pool = append(pool[:idx], pool[idx+1:]...)
	}
	return picked
}

// RollRelic draws the drop's identity. Luck favors relics whose base value
// sits above the catalog median; no relic is ever suppressed. Consumes
// exactly one draw.
func RollRelic(relics []Relic, lo player.Loadout, r rarity.Rand) Relic {
	if len(relics) == 0 {
		return Relic{}
	}
	lo = lo.Normalized()
	median := medianBaseValue(relics)
	candidates := make([]rarity.Candidate[Relic], 0, len(relics))
	for _, relic := range relics {
		if relic.Rarity <= 0 {
			continue
		}
		candidates = append(candidates, rarity.Candidate[Relic]{Item: relic, ID: relic.ID, Rarity: relic.Rarity})
	}
	ctx := rarity.Context[Relic]{
		Luck: lo.Luck,
		Good: func(relic Relic) bool { return relic.BaseValue > median },
		Options: rarity.Options{
			BaseWeight: dropBaseWeight,
			Floor:      relicFloor,
			Scale:      1,
			GoodFactor: goodFactor,
			Overrides:  lo.RarityOverrides,
		},
	}
	relic, ok := rarity.Pick(candidates, ctx, r)
	if !ok {
		return relics[0]
	}
	return relic
}

// ModifierMultiplier folds a modifier stack and flat bonus into the value
// multiplier, floored at 0.1 however deep the negatives stack.
func ModifierMultiplier(mods []rarity.Entry, valueBonus float64) float64 {
	total := 1 + valueBonus
	for _, mod := range mods {
		total += mod.Value
	}
	if total < valueFloor {
		return valueFloor
	}
	return total
}

// ComposeMultiplier applies the size class on top of the floored modifier
// multiplier. The floor binds before the size scales, so a runt drop can
// legitimately land below 0.1x overall.
func ComposeMultiplier(size rarity.Entry, mods []rarity.Entry, valueBonus float64) float64 {
	return size.Value * ModifierMultiplier(mods, valueBonus)
}

// BuildDrop assembles the final drop. Tag factors (from active world
// events) multiply the value once per matching relic tag; unknown tags are
// neutral.
func BuildDrop(relic Relic, size rarity.Entry, mods []rarity.Entry, valueBonus float64, tagFactors map[string]float64) Drop {
	multiplier := ComposeMultiplier(size, mods, valueBonus)
	value := relic.BaseValue * multiplier
	for _, tag := range relic.Tags {
		if factor, ok := tagFactors[tag]; ok {
			value *= factor
		}
	}
	return Drop{
		Relic:      relic,
		Size:       size,
		Modifiers:  mods,
		Multiplier: multiplier,
		Value:      value,
	}
}
