// Package world owns one salvage run: the seeded random streams, the biome
// rotation, the event scheduler, and the drop rollers bound to them. A World
// is created per run and accessed from a single goroutine; collaborators
// supply the current tick, round, and player loadout on every call, and the
// world never reads the wall clock.
package world

import (
	"context"

	"drift-and-dredge/server/internal/journal"
	"drift-and-dredge/server/internal/loot"
	"drift-and-dredge/server/internal/pity"
	"drift-and-dredge/server/internal/player"
	"drift-and-dredge/server/internal/rarity"
	"drift-and-dredge/server/internal/rng"
	"drift-and-dredge/server/logging"
	dropslog "drift-and-dredge/server/logging/drops"
	worldlog "drift-and-dredge/server/logging/worldevents"
)

// Named streams derived from the run seed. Every subsystem draws from its
// own stream so adding draws to one never perturbs the others.
const (
	streamAttributes = "attributes"
	streamModifiers  = "modifiers"
	streamRelics     = "relics"
	streamBiomes     = "biomes"
	streamEvents     = "events"
)

const (
	journalKindDrop       = journal.KindDrop
	journalKindBiome      = journal.KindBiome
	journalKindEventStart = journal.KindEventStart
	journalKindEventEnd   = journal.KindEventEnd
)

// Deps bundles runtime dependencies and catalog data required to construct
// a World. Zero fields fall back to defaults.
type Deps struct {
	Publisher logging.Publisher
	Loot      loot.Catalog
	Biomes    []Biome
	Events    []Event
	// Journal retention; zero values use the journal package defaults.
	JournalCapacity   int
	JournalMaxTickAge uint64
}

// World is the deterministic core of one run.
type World struct {
	config Config
	source *rng.Source

	attributeRand rarity.Rand
	modifierRand  rarity.Rand
	relicRand     rarity.Rand
	biomeRand     rarity.Rand
	eventRand     rarity.Rand

	lootTables loot.Catalog
	biomes     []Biome
	events     []Event

	biome     Biome
	round     int
	tick      uint64
	biomePity pity.Counter
	eventPity pity.Counter
	active    []ActiveEvent
	eventSeq  int

	publisher logging.Publisher
	journal   *journal.Journal
}

// New constructs a world with normalized configuration, validated catalogs,
// and streams derived from the seed. Catalog problems surface here, once;
// rolls and ticks never fail afterwards.
func New(cfg Config, deps Deps) (*World, error) {
	normalized := cfg.normalized()

	tables := deps.Loot
	if len(tables.SizeClasses) == 0 && len(tables.Modifiers) == 0 && len(tables.Relics) == 0 {
		tables = loot.DefaultCatalog()
	}
	if err := tables.Validate(); err != nil {
		return nil, err
	}
	tables.SizeClasses = append([]rarity.Entry(nil), tables.SizeClasses...)
	tables.Modifiers = append([]rarity.Entry(nil), tables.Modifiers...)
	tables.Relics = append([]loot.Relic(nil), tables.Relics...)

	biomes := deps.Biomes
	if biomes == nil {
		biomes = DefaultBiomes()
	}
	if err := ValidateBiomes(biomes); err != nil {
		return nil, err
	}
	if err := validateBiomeTiers(biomes, normalized); err != nil {
		return nil, err
	}
	biomes = append([]Biome(nil), biomes...)

	events := deps.Events
	if events == nil {
		events = DefaultEvents()
	}
	if err := ValidateEvents(events); err != nil {
		return nil, err
	}
	events = append([]Event(nil), events...)

	publisher := deps.Publisher
	if publisher == nil {
		publisher = logging.NopPublisher()
	}

	source := rng.NewSource(normalized.Seed)
	return &World{
		config:        normalized,
		source:        source,
		attributeRand: source.Stream(streamAttributes),
		modifierRand:  source.Stream(streamModifiers),
		relicRand:     source.Stream(streamRelics),
		biomeRand:     source.Stream(streamBiomes),
		eventRand:     source.Stream(streamEvents),
		lootTables:    tables,
		biomes:        biomes,
		events:        events,
		biome:         biomes[0],
		publisher:     publisher,
		journal:       journal.New(deps.JournalCapacity, deps.JournalMaxTickAge),
	}, nil
}

// RollDrop rolls one complete drop under the current biome and active event
// effects: relic identity, size class, and modifier stack, each from its own
// stream. An active ItemOverride replaces the relic sample without consuming
// a draw.
func (w *World) RollDrop(lo player.Loadout) loot.Drop {
	if w == nil {
		return loot.Drop{}
	}
	lo = lo.Normalized()
	bundle := w.MergedEffects()
	rolling := lo
	rolling.RarityOverrides = multiplyFactors(lo.RarityOverrides, bundle.RarityOverrides)

	var relic loot.Relic
	if bundle.ItemOverride != "" {
		relic, _ = w.lootTables.RelicByID(bundle.ItemOverride)
	}
	if relic.ID == "" {
		relic = loot.RollRelic(w.lootTables.Relics, rolling, w.relicRand)
	}
	size := loot.RollSizeClass(w.lootTables.SizeClasses, rolling, w.attributeRand)
	mods := loot.RollModifiers(w.lootTables.Modifiers, rolling, w.modifierRand)

	drop := loot.BuildDrop(relic, size, mods, lo.ValueBonus, bundle.TagValueFactors)
	w.appendOutcome(journalKindDrop, w.tick, w.round, drop.Relic.ID, drop.Value)
	w.logDrop(drop)
	return drop
}

// RollSizeClass draws a size class from the attribute stream with event
// overrides merged in.
func (w *World) RollSizeClass(lo player.Loadout) rarity.Entry {
	if w == nil {
		return rarity.Entry{}
	}
	return loot.RollSizeClass(w.lootTables.SizeClasses, w.withEventOverrides(lo), w.attributeRand)
}

// RollModifiers draws a modifier stack from the modifier stream with event
// overrides merged in.
func (w *World) RollModifiers(lo player.Loadout) []rarity.Entry {
	if w == nil {
		return nil
	}
	return loot.RollModifiers(w.lootTables.Modifiers, w.withEventOverrides(lo), w.modifierRand)
}

// RollRelic draws a relic from the relic stream with event overrides merged
// in. ItemOverride does not apply here; forcing is a whole-drop concern.
func (w *World) RollRelic(lo player.Loadout) loot.Relic {
	if w == nil {
		return loot.Relic{}
	}
	return loot.RollRelic(w.lootTables.Relics, w.withEventOverrides(lo), w.relicRand)
}

func (w *World) withEventOverrides(lo player.Loadout) player.Loadout {
	lo = lo.Normalized()
	bundle := w.MergedEffects()
	lo.RarityOverrides = multiplyFactors(lo.RarityOverrides, bundle.RarityOverrides)
	return lo
}

// Config returns the normalized run configuration.
func (w *World) Config() Config {
	if w == nil {
		return Config{}
	}
	return w.config
}

// Seed returns the original seed text.
func (w *World) Seed() string {
	if w == nil {
		return ""
	}
	return w.source.Original()
}

// SeedValue returns the 32-bit seed the streams derive from.
func (w *World) SeedValue() uint32 {
	if w == nil {
		return 0
	}
	return w.source.Value()
}

// Tick returns the last tick handed to TickEvents.
func (w *World) Tick() uint64 {
	if w == nil {
		return 0
	}
	return w.tick
}

// PityStreaks reports the current biome and event pity streaks.
func (w *World) PityStreaks() (biome int, event int) {
	if w == nil {
		return 0, 0
	}
	return w.biomePity.Streak(), w.eventPity.Streak()
}

// BiomeCatalog returns a copy of the biome table.
func (w *World) BiomeCatalog() []Biome {
	if w == nil {
		return nil
	}
	return append([]Biome(nil), w.biomes...)
}

// EventCatalog returns a copy of the event table.
func (w *World) EventCatalog() []Event {
	if w == nil {
		return nil
	}
	return append([]Event(nil), w.events...)
}

// LootCatalog returns the validated drop tables.
func (w *World) LootCatalog() loot.Catalog {
	if w == nil {
		return loot.Catalog{}
	}
	return w.lootTables
}

// SnapshotOutcomes returns the retained outcome records without consuming
// them.
func (w *World) SnapshotOutcomes() []journal.Record {
	if w == nil {
		return nil
	}
	return w.journal.Snapshot()
}

// DrainOutcomes returns and clears the retained outcome records.
func (w *World) DrainOutcomes() []journal.Record {
	if w == nil {
		return nil
	}
	return w.journal.Drain()
}

// JournalStats reports journal counters for diagnostics.
func (w *World) JournalStats() journal.Stats {
	if w == nil {
		return journal.Stats{}
	}
	return w.journal.Stats()
}

func (w *World) appendOutcome(kind journal.Kind, tick uint64, round int, subject string, value float64) {
	if w.journal == nil {
		return
	}
	w.journal.Append(journal.Record{Kind: kind, Tick: tick, Round: round, Subject: subject, Value: value})
}

func (w *World) worldRef() logging.EntityRef {
	return logging.EntityRef{ID: w.source.Original(), Kind: logging.EntityKindWorld}
}

func (w *World) logDrop(drop loot.Drop) {
	modifierIDs := make([]string, len(drop.Modifiers))
	for i, mod := range drop.Modifiers {
		modifierIDs[i] = mod.ID
	}
	dropslog.Rolled(context.Background(), w.publisher, w.tick, w.worldRef(), dropslog.RolledPayload{
		RelicID:     drop.Relic.ID,
		SizeClass:   drop.Size.ID,
		ModifierIDs: modifierIDs,
		Multiplier:  drop.Multiplier,
		Value:       drop.Value,
		Biome:       w.biome.ID,
	}, nil)
}

func (w *World) logBiomeChange(biome Biome, round int, effLuck float64) {
	worldlog.BiomeChanged(context.Background(), w.publisher, w.tick, w.worldRef(), worldlog.BiomeChangedPayload{
		BiomeID:       biome.ID,
		Round:         round,
		Rarity:        biome.Rarity,
		EffectiveLuck: effLuck,
		PityStreak:    w.biomePity.Streak(),
	}, nil)
}

func (w *World) logEventStart(active ActiveEvent, tick uint64) {
	worldlog.EventStarted(context.Background(), w.publisher, tick, w.worldRef(), worldlog.EventStartedPayload{
		Instance: active.Instance,
		EventID:  active.Event.ID,
		Biome:    w.biome.ID,
		EndTick:  active.EndTick,
		EndRound: active.EndRound,
	}, nil)
}

func (w *World) logEventEnd(active ActiveEvent, tick uint64) {
	worldlog.EventEnded(context.Background(), w.publisher, tick, w.worldRef(), worldlog.EventEndedPayload{
		Instance: active.Instance,
		EventID:  active.Event.ID,
	}, nil)
}
