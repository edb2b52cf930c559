// Package loot rolls salvage drops. A drop is a relic identity plus a size
// class and a stack of value modifiers; every table is a declaration-ordered
// rarity catalog sampled through the shared weighting engine. All rolls are
// pure over (catalog, loadout, stream) and never fail once the catalog has
// validated.
package loot

import (
	"fmt"
	"sort"

	"drift-and-dredge/server/internal/rarity"
)

// Size class ids, from scrap-bin to once-a-season.
const (
	SizeRunt     = "runt"
	SizeMeager   = "meager"
	SizeStandard = "standard"
	SizeBulky    = "bulky"
	SizeMassive  = "massive"
	SizeTitanic  = "titanic"
)

// Modifier ids referenced by perks and guarantees.
const (
	ModifierMuseumGrade = "museum-grade"
	ModifierAncient     = "ancient"
)

// PerkDeepSense unlocks the ancient modifier for random rolls.
const PerkDeepSense = "deep-sense"

// Relic is one salvageable artifact definition. Tags connect it to world
// event value effects.
type Relic struct {
	ID        string   `json:"id" jsonschema:"title=Relic id,pattern=^[a-z0-9-]+$"`
	Name      string   `json:"name" jsonschema:"description=Display name"`
	BaseValue float64  `json:"baseValue" jsonschema:"description=Currency value before multipliers"`
	Rarity    float64  `json:"rarity" jsonschema:"minimum=0,description=Larger is rarer; zero is unreachable by sampling"`
	Tags      []string `json:"tags,omitempty" jsonschema:"description=Quality tags matched by event value factors"`
}

// Catalog bundles the three drop tables. Slice order is declaration order
// and drives the sampler walk, so overlays must preserve it.
type Catalog struct {
	SizeClasses []rarity.Entry
	Modifiers   []rarity.Entry
	Relics      []Relic
}

// DefaultCatalog returns the built-in drop tables.
func DefaultCatalog() Catalog {
	return Catalog{
		SizeClasses: []rarity.Entry{
			{ID: SizeRunt, Value: 0.4, Rarity: 3},
			{ID: SizeMeager, Value: 0.7, Rarity: 2},
			{ID: SizeStandard, Value: 1, Rarity: 1},
			{ID: SizeBulky, Value: 1.4, Rarity: 5},
			{ID: SizeMassive, Value: 2.2, Rarity: 25},
			{ID: SizeTitanic, Value: 4, Rarity: 120},
		},
		Modifiers: []rarity.Entry{
			{ID: "waterlogged", Value: -0.4, Rarity: 3},
			{ID: "barnacle-crusted", Value: -0.25, Rarity: 2},
			{ID: "polished", Value: 0.25, Rarity: 4},
			{ID: "reinforced", Value: 0.5, Rarity: 8},
			{ID: "gilded", Value: 1, Rarity: 20},
			{ID: "pristine", Value: 1.5, Rarity: 45},
			{ID: ModifierAncient, Value: 2.5, Rarity: 90, RequiredPerk: PerkDeepSense},
			// Rarity 0: reachable only through a guarantee.
			{ID: ModifierMuseumGrade, Value: 4, Rarity: 0},
		},
		Relics: []Relic{
			{ID: "tin-scrap", Name: "Tin Scrap", BaseValue: 4, Rarity: 1, Tags: []string{"metal", "scrap"}},
			{ID: "glass-float", Name: "Glass Float", BaseValue: 9, Rarity: 2, Tags: []string{"glass"}},
			{ID: "brass-sextant", Name: "Brass Sextant", BaseValue: 25, Rarity: 5, Tags: []string{"metal", "instrument"}},
			{ID: "porcelain-figure", Name: "Porcelain Figure", BaseValue: 40, Rarity: 9, Tags: []string{"ceramic"}},
			{ID: "chrono-compass", Name: "Chrono Compass", BaseValue: 110, Rarity: 24, Tags: []string{"instrument", "anomalous"}},
			{ID: "leviathan-scale", Name: "Leviathan Scale", BaseValue: 320, Rarity: 70, Tags: []string{"organic", "anomalous"}},
		},
	}
}

// Validate checks every table before a run starts. Rolls assume a validated
// catalog and never re-check.
func (c Catalog) Validate() error {
	if len(c.SizeClasses) == 0 {
		return fmt.Errorf("loot catalog must define at least one size class")
	}
	if len(c.Modifiers) == 0 {
		return fmt.Errorf("loot catalog must define at least one modifier")
	}
	if len(c.Relics) == 0 {
		return fmt.Errorf("loot catalog must define at least one relic")
	}
	seen := make(map[string]struct{}, len(c.SizeClasses))
	for _, entry := range c.SizeClasses {
		if entry.ID == "" {
			return fmt.Errorf("size class id must be provided")
		}
		if _, dup := seen[entry.ID]; dup {
			return fmt.Errorf("duplicate size class id %q", entry.ID)
		}
		seen[entry.ID] = struct{}{}
		if entry.Value <= 0 {
			return fmt.Errorf("size class %q: value must be positive", entry.ID)
		}
		if entry.Rarity < 0 {
			return fmt.Errorf("size class %q: rarity must not be negative", entry.ID)
		}
	}
	seen = make(map[string]struct{}, len(c.Modifiers))
	for _, entry := range c.Modifiers {
		if entry.ID == "" {
			return fmt.Errorf("modifier id must be provided")
		}
		if _, dup := seen[entry.ID]; dup {
			return fmt.Errorf("duplicate modifier id %q", entry.ID)
		}
		seen[entry.ID] = struct{}{}
		if entry.Rarity < 0 {
			return fmt.Errorf("modifier %q: rarity must not be negative", entry.ID)
		}
	}
	seen = make(map[string]struct{}, len(c.Relics))
	for _, relic := range c.Relics {
		if relic.ID == "" {
			return fmt.Errorf("relic id must be provided")
		}
		if _, dup := seen[relic.ID]; dup {
			return fmt.Errorf("duplicate relic id %q", relic.ID)
		}
		seen[relic.ID] = struct{}{}
		if relic.BaseValue <= 0 {
			return fmt.Errorf("relic %q: base value must be positive", relic.ID)
		}
		if relic.Rarity < 0 {
			return fmt.Errorf("relic %q: rarity must not be negative", relic.ID)
		}
	}
	return nil
}

// Modifier fetches a modifier definition by id.
func (c Catalog) Modifier(id string) (rarity.Entry, bool) {
	return findEntry(c.Modifiers, id)
}

// RelicByID fetches a relic definition by id.
func (c Catalog) RelicByID(id string) (Relic, bool) {
	for _, relic := range c.Relics {
		if relic.ID == id {
			return relic, true
		}
	}
	return Relic{}, false
}

func findEntry(entries []rarity.Entry, id string) (rarity.Entry, bool) {
	for _, entry := range entries {
		if entry.ID == id {
			return entry, true
		}
	}
	return rarity.Entry{}, false
}

func medianBaseValue(relics []Relic) float64 {
	if len(relics) == 0 {
		return 0
	}
	values := make([]float64, len(relics))
	for i, relic := range relics {
		values[i] = relic.BaseValue
	}
	sort.Float64s(values)
	mid := len(values) / 2
	if len(values)%2 == 1 {
		return values[mid]
	}
	return (values[mid-1] + values[mid]) / 2
}
