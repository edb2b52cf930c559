// Package rarity implements the weighted-catalog selection engine shared by
// drop rolls, biome picks, and kiosk stock. Catalog rows carry a rarity value
// (larger = rarer, zero = never sampled); selection weight is derived from
// the inverse of the luck-adjusted rarity. Every consumer — size classes,
// modifiers, relics, shop stock — is the same algorithm over different data.
package rarity

// Entry is one immutable catalog row. Value is the row's effect payload
// (a size multiplier, a stacking value bonus, a base price — meaning is the
// owning catalog's). Rarity zero marks rows reachable only through a
// guarantee or unlock, never through sampling. RequiredPerk, when set, gates
// random eligibility on an owned perk or augment.
type Entry struct {
	ID           string  `json:"id" jsonschema:"title=Entry id,pattern=^[a-z0-9-]+$,description=Catalog row identifier"`
	Value        float64 `json:"value" jsonschema:"description=Row payload interpreted by the owning catalog"`
	Rarity       float64 `json:"rarity" jsonschema:"minimum=0,description=Larger is rarer; zero is guarantee-only"`
	RequiredPerk string  `json:"requiredPerk,omitempty" jsonschema:"description=Perk id gating random eligibility"`
}

// Candidate pairs an arbitrary catalog item with the identity and rarity the
// sampler needs. Candidate order is catalog declaration order and is part of
// the determinism contract: ties and walk order follow the slice.
type Candidate[T any] struct {
	Item   T
	ID     string
	Rarity float64
}

// Rand is the single-draw dependency of the sampler. *rng.Stream satisfies
// it; tests inject scripted values.
type Rand interface {
	Float64() float64
}

// Options is the closed set of numeric knobs for one sampling context.
// There are no optional shorthands: every caller states all of them.
type Options struct {
	// BaseWeight is the numerator of the rarity-to-weight inversion.
	BaseWeight float64
	// Floor clamps the adjusted rarity before inversion, guarding division
	// by zero and sign flips from extreme luck.
	Floor float64
	// Scale multiplies every computed weight. It amplifies the whole
	// catalog against an external alternative (e.g. "no modifier") without
	// distorting ratios between rows.
	Scale float64
	// GoodFactor and BadFactor convert luck into rarity adjustments for
	// rows the classifiers mark as favorable or unfavorable.
	GoodFactor float64
	BadFactor  float64
	// Overrides multiplies the base rarity of specific rows by id before
	// any luck adjustment (perk and event effects).
	Overrides map[string]float64
}

// Context carries the luck model for one pick. Nil classifiers mean the
// catalog has no luck-sensitive rows.
type Context[T any] struct {
	Luck float64
	Good func(T) bool
	Bad  func(T) bool
	Options
}

const minRarityFloor = 1e-9

// EligibleCandidates filters a catalog to its randomly samplable rows,
// preserving declaration order. Rarity-zero rows (guarantee-only) and rows
// whose RequiredPerk the owns predicate rejects are dropped. A nil predicate
// admits only ungated rows.
func EligibleCandidates(entries []Entry, owns func(string) bool) []Candidate[Entry] {
	candidates := make([]Candidate[Entry], 0, len(entries))
	for _, entry := range entries {
		if entry.Rarity <= 0 {
			continue
		}
		if entry.RequiredPerk != "" {
			if owns == nil || !owns(entry.RequiredPerk) {
				continue
			}
		}
		candidates = append(candidates, Candidate[Entry]{Item: entry, ID: entry.ID, Rarity: entry.Rarity})
	}
	return candidates
}

// Weights computes the selection weight of every candidate in declaration
// order. The two-step order is a contract: luck adjusts rarity first, then
// weight is derived from the adjusted rarity. Deriving weight first and
// applying luck to it yields a different probability curve.
func Weights[T any](candidates []Candidate[T], ctx Context[T]) []float64 {
	weights := make([]float64, len(candidates))
	for i, cand := range candidates {
		rarity := cand.Rarity
		if factor, ok := ctx.Overrides[cand.ID]; ok {
			rarity *= factor
		}
		if ctx.Luck > 0 && ctx.Good != nil && ctx.Good(cand.Item) {
			rarity /= 1 + ctx.Luck*ctx.GoodFactor
		}
		if ctx.Bad != nil && ctx.Bad(cand.Item) {
			rarity *= 1 + ctx.Luck*ctx.BadFactor
		}
		floor := ctx.Floor
		if floor <= 0 {
			floor = minRarityFloor
		}
		if rarity < floor {
			rarity = floor
		}
		weights[i] = ctx.BaseWeight / rarity * ctx.Scale
	}
	return weights
}

// PickIndex selects a candidate index. Degenerate input — an empty list or a
// non-positive weight total — falls back to index 0 with ok=false instead of
// failing; rolls never error.
func PickIndex[T any](candidates []Candidate[T], ctx Context[T], r Rand) (int, bool) {
	if len(candidates) == 0 {
		return 0, false
	}
	weights := Weights(candidates, ctx)
	idx := PickWeighted(weights, r)
	if idx < 0 {
		return 0, false
	}
	return idx, true
}

// Pick selects a candidate and returns a copy of its item.
func Pick[T any](candidates []Candidate[T], ctx Context[T], r Rand) (T, bool) {
	var zero T
	if len(candidates) == 0 {
		return zero, false
	}
	idx, ok := PickIndex(candidates, ctx, r)
	if !ok {
		return candidates[0].Item, false
	}
	return candidates[idx].Item, true
}

// PickWeighted walks precomputed weights in declaration order, subtracting
// each from a draw scaled to the weight total, and selects the first index
// where the remainder drops to zero or below. A non-positive total returns
// -1. Floating-point drift that leaves a positive remainder after the walk
// resolves to the final index.
func PickWeighted(weights []float64, r Rand) int {
	if len(weights) == 0 {
		return -1
	}
	var total float64
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return -1
	}
	remainder := r.Float64() * total
	for i, w := range weights {
		remainder -= w
		if remainder <= 0 {
			return i
		}
	}
	return len(weights) - 1
}
