package server

import (
	"drift-and-dredge/server/internal/journal"
	"drift-and-dredge/server/internal/loot"
	"drift-and-dredge/server/internal/player"
	"drift-and-dredge/server/internal/shop"
	"drift-and-dredge/server/internal/world"
)

type joinResponse struct {
	Ver     int                         `json:"ver"`
	ID      string                      `json:"id"`
	RunID   string                      `json:"runId"`
	Seed    string                      `json:"seed"`
	Tick    uint64                      `json:"t"`
	Round   int                         `json:"round"`
	Biome   world.Biome                 `json:"biome"`
	Config  world.Config                `json:"config"`
	Loadout loadoutPayload              `json:"loadout"`
	Kiosks  []shop.Kiosk                `json:"kiosks,omitempty"`
	Stock   map[string][]shop.StockItem `json:"stock,omitempty"`
	Journal []journal.Record            `json:"journal,omitempty"`
}

// stateMessage is the per-tick broadcast. Drops, Stock, and Outcomes carry
// only what this tick produced; the rest is a full snapshot of the run.
type stateMessage struct {
	Ver          int                 `json:"ver"`
	Type         string              `json:"type"`
	RunID        string              `json:"runId,omitempty"`
	Tick         uint64              `json:"t"`
	Round        int                 `json:"round"`
	Biome        world.Biome         `json:"biome"`
	ActiveEvents []world.ActiveEvent `json:"activeEvents,omitempty"`
	BiomeStreak  int                 `json:"biomeStreak"`
	EventStreak  int                 `json:"eventStreak"`
	Drops        []dropResult        `json:"drops,omitempty"`
	Stock        []stockResult       `json:"stock,omitempty"`
	Outcomes     []journal.Record    `json:"outcomes,omitempty"`
	Sequence     uint64              `json:"sequence"`
	ServerTime   int64               `json:"serverTime"`
}

// dropResult pairs a rolled drop with the session that dredged it.
type dropResult struct {
	Actor string    `json:"actor"`
	Drop  loot.Drop `json:"drop"`
}

// stockResult is one restocked shelf.
type stockResult struct {
	Kiosk string           `json:"kiosk"`
	Items []shop.StockItem `json:"items"`
}

// loadoutPayload is the wire form of a session loadout. Perks flatten to a
// sorted id list so snapshots stay byte-stable.
type loadoutPayload struct {
	Luck            float64            `json:"luck"`
	Perks           []string           `json:"perks,omitempty"`
	ValueBonus      float64            `json:"valueBonus,omitempty"`
	ModChance       float64            `json:"modChance,omitempty"`
	EventRate       float64            `json:"eventRate,omitempty"`
	GuaranteedMods  []string           `json:"guaranteedMods,omitempty"`
	RarityOverrides map[string]float64 `json:"rarityOverrides,omitempty"`
}

func loadoutWire(lo player.Loadout) loadoutPayload {
	return loadoutPayload{
		Luck:            lo.Luck,
		Perks:           lo.Perks.Names(),
		ValueBonus:      lo.ValueBonus,
		ModChance:       lo.ModChance,
		EventRate:       lo.EventRate,
		GuaranteedMods:  lo.GuaranteedMods,
		RarityOverrides: lo.RarityOverrides,
	}
}

type diagnosticsSession struct {
	Ver           int    `json:"ver"`
	ID            string `json:"id"`
	LastHeartbeat int64  `json:"lastHeartbeat"`
	RTTMillis     int64  `json:"rttMillis"`
	JoinedTick    uint64 `json:"joinedTick"`
}
