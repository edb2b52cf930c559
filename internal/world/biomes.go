package world

import (
	"fmt"

	"drift-and-dredge/server/internal/player"
	"drift-and-dredge/server/internal/rarity"
)

// Biome ids referenced by perks and event effects.
const (
	BiomeShoreline  = "shoreline"
	BiomeKelpForest = "kelp-forest"
	BiomeRustFlats  = "rust-flats"
	BiomeGlassReef  = "glass-reef"
	BiomeNeonCity   = "neon-city"
)

// PerkNeonAttunement doubles the selection weight of its target biome.
const PerkNeonAttunement = "neon-attunement"

const (
	biomeBaseWeight = 100
	boostPerkFactor = 2
)

// Biome is one destination in the round rotation. LuckBoost is stored as
// data per row rather than derived from thresholds, so designers can tune
// tiers independently. EventRate and EventDuration scale the scheduler while
// the biome is current.
type Biome struct {
	ID            string  `json:"id" jsonschema:"title=Biome id,pattern=^[a-z0-9-]+$"`
	Name          string  `json:"name" jsonschema:"description=Display name"`
	Rarity        float64 `json:"rarity" jsonschema:"minimum=0,description=Larger is rarer; selection weight is the inverse"`
	LuckBoost     float64 `json:"luckBoost,omitempty" jsonschema:"minimum=0,description=Per-point luck weight boost for rare-tier rows"`
	EventRate     float64 `json:"eventRate" jsonschema:"description=Multiplies world-event trial chance while current"`
	EventDuration float64 `json:"eventDuration" jsonschema:"description=Scales tick-scoped event durations while current"`
	BoostPerk     string  `json:"boostPerk,omitempty" jsonschema:"description=Perk id that doubles this row's selection weight"`
}

// DefaultBiomes returns the built-in rotation table in declaration order.
func DefaultBiomes() []Biome {
	return []Biome{
		{ID: BiomeShoreline, Name: "Shoreline", Rarity: 1, EventRate: 1, EventDuration: 1},
		{ID: BiomeKelpForest, Name: "Kelp Forest", Rarity: 2, EventRate: 1.1, EventDuration: 1},
		{ID: BiomeRustFlats, Name: "Rust Flats", Rarity: 4, EventRate: 0.9, EventDuration: 1},
		{ID: BiomeGlassReef, Name: "Glass Reef", Rarity: 8, LuckBoost: 0.05, EventRate: 1.25, EventDuration: 1.2},
		{ID: BiomeNeonCity, Name: "Neon City", Rarity: 25, LuckBoost: 0.1, EventRate: 1.5, EventDuration: 1.5, BoostPerk: PerkNeonAttunement},
	}
}

// ValidateBiomes checks a biome catalog the way world construction does:
// non-empty, unique ids, non-negative rarity and luck boost, positive event
// multipliers.
func ValidateBiomes(biomes []Biome) error {
	if len(biomes) == 0 {
		return fmt.Errorf("biome catalog must define at least one biome")
	}
	seen := make(map[string]struct{}, len(biomes))
	for _, biome := range biomes {
		if biome.ID == "" {
			return fmt.Errorf("biome id must be provided")
		}
		if _, dup := seen[biome.ID]; dup {
			return fmt.Errorf("duplicate biome id %q", biome.ID)
		}
		seen[biome.ID] = struct{}{}
		if biome.Rarity < 0 {
			return fmt.Errorf("biome %q: rarity must not be negative", biome.ID)
		}
		if biome.LuckBoost < 0 {
			return fmt.Errorf("biome %q: luck boost must not be negative", biome.ID)
		}
		if biome.EventRate <= 0 {
			return fmt.Errorf("biome %q: event rate must be positive", biome.ID)
		}
		if biome.EventDuration <= 0 {
			return fmt.Errorf("biome %q: event duration must be positive", biome.ID)
		}
	}
	return nil
}

// validateBiomeTiers enforces the two-tier boost contract against the run
// thresholds: a row at or above the deep threshold must boost at least as
// strongly as every row in the rare tier below it.
func validateBiomeTiers(biomes []Biome, cfg Config) error {
	maxRare := 0.0
	for _, biome := range biomes {
		if biome.Rarity >= cfg.RareBiomeThreshold && biome.Rarity < cfg.DeepBiomeThreshold && biome.LuckBoost > maxRare {
			maxRare = biome.LuckBoost
		}
	}
	for _, biome := range biomes {
		if biome.Rarity >= cfg.DeepBiomeThreshold && biome.LuckBoost < maxRare {
			return fmt.Errorf("biome %q: deep-tier luck boost %v undercuts the rare tier's %v", biome.ID, biome.LuckBoost, maxRare)
		}
	}
	return nil
}

// biomeWeights computes selection weights in declaration order. Weight
// starts at the inverse rarity; rare-tier biomes gain their stored luck
// boost scaled by effective luck, and an owned boost perk doubles its
// target. Weights clamp at zero so extreme negative luck cannot corrupt
// the walk.
func (w *World) biomeWeights(effLuck float64, perks player.PerkSet) []float64 {
	weights := make([]float64, len(w.biomes))
	for i, biome := range w.biomes {
		denom := biome.Rarity
		if denom < 1 {
			denom = 1
		}
		weight := biomeBaseWeight / denom
		if biome.Rarity >= w.config.RareBiomeThreshold {
			weight *= 1 + effLuck*biome.LuckBoost
		}
		if biome.BoostPerk != "" && len(perks) > 0 && perks.Has(biome.BoostPerk) {
			weight *= boostPerkFactor
		}
		if weight < 0 {
			weight = 0
		}
		weights[i] = weight
	}
	return weights
}

// AdvanceRound rolls the biome for the given round and records it as
// current. Pity feeds back into the luck term: every full window of
// consecutive common biomes grants one bonus luck point, and landing in the
// rare tier resets the streak. Consumes exactly one draw from the biome
// stream.
func (w *World) AdvanceRound(round int, lo player.Loadout) Biome {
	if w == nil {
		return Biome{}
	}
	lo = lo.Normalized()
	effLuck := lo.Luck + w.biomePity.LuckBonus(w.config.PityWindow)
	weights := w.biomeWeights(effLuck, lo.Perks)

	idx := rarity.PickWeighted(weights, w.biomeRand)
	if idx < 0 {
		idx = 0
	}
	chosen := w.biomes[idx]
	if chosen.Rarity < w.config.RareBiomeThreshold {
		w.biomePity.Miss()
	} else {
		w.biomePity.Hit()
	}
	w.biome = chosen
	w.round = round

	w.appendOutcome(journalKindBiome, w.tick, round, chosen.ID, chosen.Rarity)
	w.logBiomeChange(chosen, round, effLuck)
	return chosen
}

// Biome returns the current biome.
func (w *World) Biome() Biome {
	if w == nil {
		return Biome{}
	}
	return w.biome
}

// Round returns the last round advanced to.
func (w *World) Round() int {
	if w == nil {
		return 0
	}
	return w.round
}
