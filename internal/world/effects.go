package world

// EffectBundle is the closed set of effects a world event can carry. Each
// field merges one fixed way; there is no open-ended effect vocabulary, so
// consumers can switch on exactly these four behaviors.
type EffectBundle struct {
	// PriceFactor multiplies kiosk prices. Zero means unset (neutral).
	PriceFactor float64 `json:"priceFactor,omitempty" jsonschema:"minimum=0,description=Kiosk price multiplier; zero means unset"`
	// RarityOverrides multiplies catalog rarities by id.
	RarityOverrides map[string]float64 `json:"rarityOverrides,omitempty" jsonschema:"description=Rarity multipliers keyed by catalog row id"`
	// ItemOverride forces the relic identity of every drop while active.
	ItemOverride string `json:"itemOverride,omitempty" jsonschema:"description=Relic id forced onto every drop"`
	// TagValueFactors multiplies drop value once per matching relic tag.
	TagValueFactors map[string]float64 `json:"tagValueFactors,omitempty" jsonschema:"description=Value multipliers keyed by relic tag"`
}

// NeutralEffects is the identity bundle.
func NeutralEffects() EffectBundle {
	return EffectBundle{PriceFactor: 1}
}

// merge folds another bundle into this one. Factors multiply, override maps
// multiply per key, and a later ItemOverride wins.
func (b EffectBundle) merge(other EffectBundle) EffectBundle {
	if other.PriceFactor > 0 {
		if b.PriceFactor <= 0 {
			b.PriceFactor = 1
		}
		b.PriceFactor *= other.PriceFactor
	}
	b.RarityOverrides = multiplyFactors(b.RarityOverrides, other.RarityOverrides)
	if other.ItemOverride != "" {
		b.ItemOverride = other.ItemOverride
	}
	b.TagValueFactors = multiplyFactors(b.TagValueFactors, other.TagValueFactors)
	return b
}

// multiplyFactors merges factor maps multiplicatively into a fresh map,
// leaving both inputs untouched.
func multiplyFactors(base, extra map[string]float64) map[string]float64 {
	if len(extra) == 0 {
		return base
	}
	merged := make(map[string]float64, len(base)+len(extra))
	for id, factor := range base {
		merged[id] = factor
	}
	for id, factor := range extra {
		if existing, ok := merged[id]; ok {
			merged[id] = existing * factor
		} else {
			merged[id] = factor
		}
	}
	return merged
}

// MergedEffects folds the bundles of every active event, oldest activation
// first, into one effective bundle.
func (w *World) MergedEffects() EffectBundle {
	merged := NeutralEffects()
	if w == nil {
		return merged
	}
	for _, active := range w.active {
		merged = merged.merge(active.Event.Effects)
	}
	return merged
}
