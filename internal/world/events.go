package world

import (
	"fmt"
	"math"

	"drift-and-dredge/server/internal/player"
)

// Event ids in the built-in schedule.
const (
	EventGlimmerTide = "glimmer-tide"
	EventRustStorm   = "rust-storm"
	EventBlackMarket = "black-market"
	EventDeepCurrent = "deep-current"
)

// One luck point adds 5% to each event trial, mirroring the modifier-count
// boost.
const eventLuckStep = 0.05

// Event is one schedulable world event. Exactly one of DurationTicks and
// DurationRounds is positive: tick-scoped events expire on the simulated
// clock (scaled by the biome's EventDuration), round-scoped events when
// enough rounds pass (never scaled).
type Event struct {
	ID             string       `json:"id" jsonschema:"title=Event id,pattern=^[a-z0-9-]+$"`
	Name           string       `json:"name" jsonschema:"description=Display name"`
	Rarity         float64      `json:"rarity" jsonschema:"minimum=0,description=Larger is rarer; trial chance is the inverse"`
	DurationTicks  int          `json:"durationTicks,omitempty" jsonschema:"minimum=0,description=Lifetime in ticks; exclusive with durationRounds"`
	DurationRounds int          `json:"durationRounds,omitempty" jsonschema:"minimum=0,description=Lifetime in rounds; exclusive with durationTicks"`
	Effects        EffectBundle `json:"effects" jsonschema:"description=Effects applied while an instance is active"`
}

// ActiveEvent is one running instance. Instance ids are deterministic
// ("event-<n>" in activation order) so two runs with the same seed and
// script journal identically.
type ActiveEvent struct {
	Instance   string `json:"instance"`
	Event      Event  `json:"event"`
	StartTick  uint64 `json:"startTick"`
	EndTick    uint64 `json:"endTick,omitempty"`
	StartRound int    `json:"startRound"`
	EndRound   int    `json:"endRound,omitempty"`
}

func (a ActiveEvent) expired(tick uint64, round int) bool {
	if a.Event.DurationTicks > 0 {
		return tick >= a.EndTick
	}
	return round >= a.EndRound
}

// DefaultEvents returns the built-in schedule in declaration order.
func DefaultEvents() []Event {
	return []Event{
		{
			ID: EventGlimmerTide, Name: "Glimmer Tide", Rarity: 120, DurationTicks: 600,
			Effects: EffectBundle{TagValueFactors: map[string]float64{"anomalous": 1.75, "glass": 1.25}},
		},
		{
			ID: EventRustStorm, Name: "Rust Storm", Rarity: 200, DurationTicks: 900,
			Effects: EffectBundle{
				RarityOverrides: map[string]float64{"tin-scrap": 0.5, "brass-sextant": 0.75},
				TagValueFactors: map[string]float64{"metal": 1.4},
			},
		},
		{
			ID: EventBlackMarket, Name: "Black Market", Rarity: 350, DurationRounds: 2,
			Effects: EffectBundle{
				PriceFactor:     0.6,
				RarityOverrides: map[string]float64{"chrono-compass": 0.5},
			},
		},
		{
			ID: EventDeepCurrent, Name: "Deep Current", Rarity: 600, DurationTicks: 1500,
			Effects: EffectBundle{PriceFactor: 1.25, ItemOverride: "leviathan-scale"},
		},
	}
}

// ValidateEvents checks an event catalog the way world construction does:
// non-empty, unique ids, non-negative rarity, exactly one duration per event.
func ValidateEvents(events []Event) error {
	if len(events) == 0 {
		return fmt.Errorf("event catalog must define at least one event")
	}
	seen := make(map[string]struct{}, len(events))
	for _, event := range events {
		if event.ID == "" {
			return fmt.Errorf("event id must be provided")
		}
		if _, dup := seen[event.ID]; dup {
			return fmt.Errorf("duplicate event id %q", event.ID)
		}
		seen[event.ID] = struct{}{}
		if event.Rarity < 0 {
			return fmt.Errorf("event %q: rarity must not be negative", event.ID)
		}
		ticks := event.DurationTicks > 0
		rounds := event.DurationRounds > 0
		if ticks == rounds {
			return fmt.Errorf("event %q: exactly one of durationTicks and durationRounds must be positive", event.ID)
		}
	}
	return nil
}

// TickEvents advances the scheduler by one simulated tick: expired
// instances end first, then, only when nothing remains active, each event
// definition gets one Bernoulli trial in declaration order and the first
// success activates. Dry ticks feed the pity streak; an activation resets
// it. At most one instance is ever active.
func (w *World) TickEvents(tick uint64, round int, lo player.Loadout) {
	if w == nil {
		return
	}
	w.tick = tick
	lo = lo.Normalized()

	kept := w.active[:0]
	for _, active := range w.active {
		if active.expired(tick, round) {
			w.appendOutcome(journalKindEventEnd, tick, round, active.Instance, 0)
			w.logEventEnd(active, tick)
			continue
		}
		kept = append(kept, active)
	}
	w.active = kept
	if len(w.active) > 0 {
		return
	}

	w.eventPity.Miss()
	luckMult := 1 + lo.Luck*eventLuckStep
	for _, def := range w.events {
		denom := def.Rarity
		if denom < 1 {
			denom = 1
		}
		chance := (1/denom + w.eventPity.ChanceBonus(w.config.EventPityStep)) *
			w.biome.EventRate * lo.EventRate * luckMult
		if w.eventRand.Float64() >= chance {
			continue
		}
		w.activateEvent(def, tick, round)
		w.eventPity.Hit()
		return
	}
}

func (w *World) activateEvent(def Event, tick uint64, round int) {
	w.eventSeq++
	active := ActiveEvent{
		Instance:   fmt.Sprintf("event-%d", w.eventSeq),
		Event:      def,
		StartTick:  tick,
		StartRound: round,
	}
	if def.DurationTicks > 0 {
		scaled := int(math.Round(float64(def.DurationTicks) * w.biome.EventDuration))
		if scaled < 1 {
			scaled = 1
		}
		active.EndTick = tick + uint64(scaled)
	} else {
		active.EndRound = round + def.DurationRounds
	}
	w.active = append(w.active, active)

	w.appendOutcome(journalKindEventStart, tick, round, active.Instance, def.Rarity)
	w.logEventStart(active, tick)
}

// ActiveEvents returns copies of the running instances in activation order.
func (w *World) ActiveEvents() []ActiveEvent {
	if w == nil || len(w.active) == 0 {
		return nil
	}
	out := make([]ActiveEvent, len(w.active))
	copy(out, w.active)
	return out
}
