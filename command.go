package server

import "time"

// CommandType enumerates the staged client commands.
type CommandType string

const (
	CommandDredge    CommandType = "Dredge"
	CommandAdvance   CommandType = "Advance"
	CommandConfigure CommandType = "Configure"
	CommandRestock   CommandType = "Restock"
)

// LoadoutPatch updates a session loadout field-by-field. Nil pointers and
// empty slices leave the current value alone; AddPerks and RemovePerks are
// applied in that order, and GuaranteedMods and RarityOverrides replace
// wholesale when present.
type LoadoutPatch struct {
	Luck            *float64           `json:"luck,omitempty"`
	ValueBonus      *float64           `json:"valueBonus,omitempty"`
	ModChance       *float64           `json:"modChance,omitempty"`
	EventRate       *float64           `json:"eventRate,omitempty"`
	AddPerks        []string           `json:"addPerks,omitempty"`
	RemovePerks     []string           `json:"removePerks,omitempty"`
	GuaranteedMods  []string           `json:"guaranteedMods,omitempty"`
	RarityOverrides map[string]float64 `json:"rarityOverrides,omitempty"`
}

// ConfigureCommand carries a loadout patch for the issuing session.
type ConfigureCommand struct {
	Patch LoadoutPatch `json:"patch"`
}

// RestockCommand re-rolls one kiosk shelf. Zero Slots uses the kiosk
// default.
type RestockCommand struct {
	Kiosk string `json:"kiosk"`
	Slots int    `json:"slots,omitempty"`
}

// Command represents an intent captured for processing on the next tick.
type Command struct {
	OriginTick uint64            `json:"originTick"`
	ActorID    string            `json:"actorId"`
	Type       CommandType       `json:"type"`
	IssuedAt   time.Time         `json:"issuedAt"`
	Configure  *ConfigureCommand `json:"configure,omitempty"`
	Restock    *RestockCommand   `json:"restock,omitempty"`
}
