package world

import "strings"

const (
	DefaultSeed               = "drift"
	DefaultRareBiomeThreshold = 6.0
	DefaultDeepBiomeThreshold = 20.0
	DefaultPityWindow         = 5
	DefaultEventPityStep      = 0.001
)

// Config carries the run-level tuning knobs. Catalog data travels separately
// through Deps; everything here is a scalar an operator may override.
type Config struct {
	Seed string `json:"seed"`
	// RareBiomeThreshold marks the rarity at which a biome counts as rare:
	// luck boosts apply from here up and the pity streak resets on arrival.
	RareBiomeThreshold float64 `json:"rareBiomeThreshold"`
	// DeepBiomeThreshold marks the rarest tier, used for catalog validation
	// of per-biome luck boosts.
	DeepBiomeThreshold float64 `json:"deepBiomeThreshold"`
	// PityWindow is how many consecutive common biomes grant one bonus
	// luck point.
	PityWindow int `json:"pityWindow"`
	// EventPityStep is the additive per-tick chance bonus per dry tick.
	EventPityStep float64 `json:"eventPityStep"`
}

func (cfg Config) normalized() Config {
	normalized := cfg
	normalized.Seed = strings.TrimSpace(normalized.Seed)
	if normalized.Seed == "" {
		normalized.Seed = DefaultSeed
	}
	if normalized.RareBiomeThreshold <= 0 {
		normalized.RareBiomeThreshold = DefaultRareBiomeThreshold
	}
	if normalized.DeepBiomeThreshold <= 0 {
		normalized.DeepBiomeThreshold = DefaultDeepBiomeThreshold
	}
	if normalized.DeepBiomeThreshold < normalized.RareBiomeThreshold {
		normalized.DeepBiomeThreshold = normalized.RareBiomeThreshold
	}
	if normalized.PityWindow <= 0 {
		normalized.PityWindow = DefaultPityWindow
	}
	if normalized.EventPityStep <= 0 {
		normalized.EventPityStep = DefaultEventPityStep
	}
	return normalized
}

// Normalized exposes the defaulting rules for callers that need to inspect
// the effective configuration.
func (cfg Config) Normalized() Config {
	return cfg.normalized()
}

func DefaultConfig() Config {
	return Config{
		Seed:               DefaultSeed,
		RareBiomeThreshold: DefaultRareBiomeThreshold,
		DeepBiomeThreshold: DefaultDeepBiomeThreshold,
		PityWindow:         DefaultPityWindow,
		EventPityStep:      DefaultEventPityStep,
	}
}
