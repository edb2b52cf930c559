// Package shop restocks kiosks from rarity-weighted catalogs. One engine
// serves every kiosk kind; perk and augment kiosks differ only in data.
// Stock rolls are luck-neutral: rarity ratios and event overrides decide,
// player luck does not reach the shelf. Purchases, pricing curves, and
// unlock evaluation live outside this package.
package shop

import (
	"fmt"
	"math"

	"drift-and-dredge/server/internal/player"
	"drift-and-dredge/server/internal/rarity"
	"drift-and-dredge/server/internal/world"
)

// Kind names one kiosk catalog.
type Kind string

const (
	KioskPerks    Kind = "perks"
	KioskAugments Kind = "augments"
)

const (
	stockBaseWeight  = 100.0
	stockRarityFloor = 1.0
)

// Perk and augment ids sold by the built-in kiosks. PerkTideReader gates the
// scavengers-eye row the way loot gates its ancient modifier.
const (
	PerkTideReader        = "tide-reader"
	PerkBallastDiscipline = "ballast-discipline"
	PerkScavengersEye     = "scavengers-eye"
	PerkMuseumContacts    = "museum-contacts"

	AugmentLuckyKeel      = "lucky-keel"
	AugmentMagnetDredge   = "magnet-dredge"
	AugmentSiltFilters    = "silt-filters"
	AugmentEchoSounder    = "echo-sounder"
	AugmentAbyssalBallast = "abyssal-ballast"
	AugmentPrototypeWinch = "prototype-winch"
)

// StockEntry is one sellable catalog row. Rarity zero marks rows granted by
// unlocks only, never stocked at random. RequiredPerk hides a row until the
// prerequisite is owned.
type StockEntry struct {
	ID           string  `json:"id" jsonschema:"title=Stock id,pattern=^[a-z0-9-]+$"`
	Name         string  `json:"name" jsonschema:"description=Display name"`
	BasePrice    float64 `json:"basePrice" jsonschema:"description=Price before event factors"`
	Rarity       float64 `json:"rarity" jsonschema:"minimum=0,description=Larger is rarer; zero is unlock-only"`
	RequiredPerk string  `json:"requiredPerk,omitempty" jsonschema:"description=Perk id required before the row is stocked"`
}

// Kiosk is one named catalog plus its default shelf size.
type Kiosk struct {
	Kind    Kind         `json:"kind" jsonschema:"title=Kiosk kind,pattern=^[a-z0-9-]+$"`
	Name    string       `json:"name" jsonschema:"description=Display name"`
	Slots   int          `json:"slots" jsonschema:"minimum=1,description=Default shelf size per restock"`
	Entries []StockEntry `json:"entries" jsonschema:"description=Sellable rows in declaration order"`
}

// StockItem is one rolled shelf position: the entry copy and the price after
// active event effects.
type StockItem struct {
	Entry StockEntry `json:"entry"`
	Price int        `json:"price"`
}

// Engine rolls kiosk stock. It is stateless between calls; the caller owns
// the stream so restocks advance deterministically with the run.
type Engine struct {
	kiosks []Kiosk
	byKind map[Kind]int
}

// DefaultKiosks returns the built-in kiosk catalogs in declaration order.
func DefaultKiosks() []Kiosk {
	return []Kiosk{
		{
			Kind: KioskPerks, Name: "Harbor Licenses", Slots: 3,
			Entries: []StockEntry{
				{ID: PerkBallastDiscipline, Name: "Ballast Discipline", BasePrice: 60, Rarity: 1},
				{ID: PerkTideReader, Name: "Tide Reader", BasePrice: 90, Rarity: 2},
				{ID: "deep-sense", Name: "Deep Sense", BasePrice: 140, Rarity: 4},
				{ID: "neon-attunement", Name: "Neon Attunement", BasePrice: 220, Rarity: 6},
				{ID: PerkScavengersEye, Name: "Scavenger's Eye", BasePrice: 310, Rarity: 8, RequiredPerk: PerkTideReader},
				{ID: PerkMuseumContacts, Name: "Museum Contacts", BasePrice: 500, Rarity: 0},
			},
		},
		{
			Kind: KioskAugments, Name: "Dockside Refits", Slots: 2,
			Entries: []StockEntry{
				{ID: AugmentSiltFilters, Name: "Silt Filters", BasePrice: 80, Rarity: 1},
				{ID: AugmentLuckyKeel, Name: "Lucky Keel", BasePrice: 150, Rarity: 3},
				{ID: AugmentMagnetDredge, Name: "Magnet Dredge", BasePrice: 180, Rarity: 4},
				{ID: AugmentEchoSounder, Name: "Echo Sounder", BasePrice: 260, Rarity: 7},
				{ID: AugmentAbyssalBallast, Name: "Abyssal Ballast", BasePrice: 340, Rarity: 9, RequiredPerk: "deep-sense"},
				{ID: AugmentPrototypeWinch, Name: "Prototype Winch", BasePrice: 620, Rarity: 0},
			},
		},
	}
}

// ValidateKiosks checks the kiosk catalogs the way engine construction does:
// non-empty, unique kinds, positive slots, and per kiosk unique entry ids
// with non-negative rarity and positive prices.
func ValidateKiosks(kiosks []Kiosk) error {
	if len(kiosks) == 0 {
		return fmt.Errorf("shop must define at least one kiosk")
	}
	kinds := make(map[Kind]struct{}, len(kiosks))
	for _, kiosk := range kiosks {
		if kiosk.Kind == "" {
			return fmt.Errorf("kiosk kind must be provided")
		}
		if _, dup := kinds[kiosk.Kind]; dup {
			return fmt.Errorf("duplicate kiosk kind %q", kiosk.Kind)
		}
		kinds[kiosk.Kind] = struct{}{}
		if kiosk.Slots <= 0 {
			return fmt.Errorf("kiosk %q: slots must be positive", kiosk.Kind)
		}
		if len(kiosk.Entries) == 0 {
			return fmt.Errorf("kiosk %q: must define at least one entry", kiosk.Kind)
		}
		seen := make(map[string]struct{}, len(kiosk.Entries))
		for _, entry := range kiosk.Entries {
			if entry.ID == "" {
				return fmt.Errorf("kiosk %q: entry id must be provided", kiosk.Kind)
			}
			if _, dup := seen[entry.ID]; dup {
				return fmt.Errorf("kiosk %q: duplicate entry id %q", kiosk.Kind, entry.ID)
			}
			seen[entry.ID] = struct{}{}
			if entry.Rarity < 0 {
				return fmt.Errorf("kiosk %q: entry %q: rarity must not be negative", kiosk.Kind, entry.ID)
			}
			if entry.BasePrice <= 0 {
				return fmt.Errorf("kiosk %q: entry %q: base price must be positive", kiosk.Kind, entry.ID)
			}
		}
	}
	return nil
}

// NewEngine validates the kiosk catalogs and builds the lookup. A nil slice
// installs the defaults.
func NewEngine(kiosks []Kiosk) (*Engine, error) {
	if kiosks == nil {
		kiosks = DefaultKiosks()
	}
	if err := ValidateKiosks(kiosks); err != nil {
		return nil, err
	}
	byKind := make(map[Kind]int, len(kiosks))
	for i, kiosk := range kiosks {
		byKind[kiosk.Kind] = i
	}
	copied := make([]Kiosk, len(kiosks))
	copy(copied, kiosks)
	for i := range copied {
		copied[i].Entries = append([]StockEntry(nil), copied[i].Entries...)
	}
	return &Engine{kiosks: copied, byKind: byKind}, nil
}

// Kiosks returns copies of the catalogs in declaration order.
func (e *Engine) Kiosks() []Kiosk {
	if e == nil {
		return nil
	}
	out := make([]Kiosk, len(e.kiosks))
	copy(out, e.kiosks)
	for i := range out {
		out[i].Entries = append([]StockEntry(nil), out[i].Entries...)
	}
	return out
}

// Kiosk returns the catalog for a kind.
func (e *Engine) Kiosk(kind Kind) (Kiosk, bool) {
	if e == nil {
		return Kiosk{}, false
	}
	idx, ok := e.byKind[kind]
	if !ok {
		return Kiosk{}, false
	}
	kiosk := e.kiosks[idx]
	kiosk.Entries = append([]StockEntry(nil), kiosk.Entries...)
	return kiosk, true
}

// Roll restocks one kiosk: n distinct picks without replacement from the
// eligible rows, in a luck-neutral context with event rarity overrides
// applied. Rarity-zero rows and rows gated on an unowned perk never reach the
// shelf. n <= 0 uses the kiosk's slot count; a drained pool ends the roll
// early. Prices carry the merged event price factor, rounded to whole
// currency. An unknown kind returns nil; stock rolls never fail.
func (e *Engine) Roll(kind Kind, n int, lo player.Loadout, bundle world.EffectBundle, r rarity.Rand) []StockItem {
	if e == nil || r == nil {
		return nil
	}
	idx, ok := e.byKind[kind]
	if !ok {
		return nil
	}
	kiosk := e.kiosks[idx]
	if n <= 0 {
		n = kiosk.Slots
	}

	pool := make([]rarity.Candidate[StockEntry], 0, len(kiosk.Entries))
	for _, entry := range kiosk.Entries {
		if entry.Rarity <= 0 {
			continue
		}
		if entry.RequiredPerk != "" && !lo.Perks.Has(entry.RequiredPerk) {
			continue
		}
		pool = append(pool, rarity.Candidate[StockEntry]{Item: entry, ID: entry.ID, Rarity: entry.Rarity})
	}

	factor := bundle.PriceFactor
	if factor <= 0 {
		factor = 1
	}
	ctx := rarity.Context[StockEntry]{
		Options: rarity.Options{
			BaseWeight: stockBaseWeight,
			Floor:      stockRarityFloor,
			Scale:      1,
			Overrides:  bundle.RarityOverrides,
		},
	}

	stock := make([]StockItem, 0, n)
	for len(stock) < n && len(pool) > 0 {
		picked, ok := rarity.PickIndex(pool, ctx, r)
		if !ok {
			break
		}
		entry := pool[picked].Item
		stock = append(stock, StockItem{
			Entry: entry,
			Price: int(math.Round(entry.BasePrice * factor)),
		})
		pool = append(pool[:picked], pool[picked+1:]...)
	}
	if len(stock) == 0 {
		return nil
	}
	return stock
}
