package catalog

import (
	"drift-and-dredge/server/internal/loot"
	"drift-and-dredge/server/internal/rarity"
	"drift-and-dredge/server/internal/shop"
	"drift-and-dredge/server/internal/world"
)

// Document models the JSON contract for designer-authored catalog overlays.
// It is shared with the schema generator so editor tooling can validate
// config/catalogs.json. The loader additionally accepts each catalog as an
// object keyed by row id; the schema models the canonical array format.
type Document struct {
	SizeClasses []rarity.Entry `json:"sizeClasses,omitempty" jsonschema:"title=Size classes,description=Size multipliers in declaration order"`
	Modifiers   []rarity.Entry `json:"modifiers,omitempty" jsonschema:"title=Modifiers,description=Stacking value modifiers in declaration order"`
	Relics      []loot.Relic   `json:"relics,omitempty" jsonschema:"title=Relics,description=Drop identities in declaration order"`
	Biomes      []world.Biome  `json:"biomes,omitempty" jsonschema:"title=Biomes,description=Round destinations in declaration order"`
	Events      []world.Event  `json:"events,omitempty" jsonschema:"title=Events,description=Schedulable world events in declaration order"`
	Kiosks      []shop.Kiosk   `json:"kiosks,omitempty" jsonschema:"title=Kiosks,description=Shop catalogs in declaration order"`
}
