// Package catalog loads designer-authored overlays for the built-in game
// catalogs. Built-ins are Go data and their declaration order is the
// determinism contract; an overlay file replaces whole catalog kinds without
// touching the others. Both list forms are accepted: arrays keep their
// element order, objects keep the author's key order (keys are never
// sorted — a reordered file is a different catalog).
package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/iancoleman/orderedmap"

	"drift-and-dredge/server/internal/loot"
	"drift-and-dredge/server/internal/rarity"
	"drift-and-dredge/server/internal/shop"
	"drift-and-dredge/server/internal/world"
)

// Kind names one replaceable catalog in an overlay document.
type Kind string

const (
	KindSizeClasses Kind = "sizeClasses"
	KindModifiers   Kind = "modifiers"
	KindRelics      Kind = "relics"
	KindBiomes      Kind = "biomes"
	KindEvents      Kind = "events"
	KindKiosks      Kind = "kiosks"
)

var knownKinds = map[Kind]struct{}{
	KindSizeClasses: {},
	KindModifiers:   {},
	KindRelics:      {},
	KindBiomes:      {},
	KindEvents:      {},
	KindKiosks:      {},
}

// Bundle is the resolved product: every catalog the run consumes, in final
// order, validated.
type Bundle struct {
	Loot   loot.Catalog
	Biomes []world.Biome
	Events []world.Event
	Kiosks []shop.Kiosk
}

func defaultBundle() Bundle {
	return Bundle{
		Loot:   loot.DefaultCatalog(),
		Biomes: world.DefaultBiomes(),
		Events: world.DefaultEvents(),
		Kiosks: shop.DefaultKiosks(),
	}
}

func (b Bundle) clone() Bundle {
	out := Bundle{
		Loot: loot.Catalog{
			SizeClasses: append([]rarity.Entry(nil), b.Loot.SizeClasses...),
			Modifiers:   append([]rarity.Entry(nil), b.Loot.Modifiers...),
			Relics:      append([]loot.Relic(nil), b.Loot.Relics...),
		},
		Biomes: append([]world.Biome(nil), b.Biomes...),
		Events: append([]world.Event(nil), b.Events...),
		Kiosks: append([]shop.Kiosk(nil), b.Kiosks...),
	}
	for i := range out.Loot.Relics {
		out.Loot.Relics[i].Tags = append([]string(nil), b.Loot.Relics[i].Tags...)
	}
	for i := range out.Events {
		out.Events[i].Effects = cloneEffects(b.Events[i].Effects)
	}
	for i := range out.Kiosks {
		out.Kiosks[i].Entries = append([]shop.StockEntry(nil), b.Kiosks[i].Entries...)
	}
	return out
}

func cloneEffects(effects world.EffectBundle) world.EffectBundle {
	effects.RarityOverrides = cloneFactorMap(effects.RarityOverrides)
	effects.TagValueFactors = cloneFactorMap(effects.TagValueFactors)
	return effects
}

func cloneFactorMap(src map[string]float64) map[string]float64 {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]float64, len(src))
	for id, factor := range src {
		dst[id] = factor
	}
	return dst
}

type source interface {
	Load() ([]byte, error)
	Path() string
}

type fileSource struct {
	path string
}

func (f fileSource) Load() ([]byte, error) {
	return os.ReadFile(f.path)
}

func (f fileSource) Path() string {
	return f.path
}

// DefaultPaths returns the canonical overlay locations relative to the
// server module root. Missing files are skipped at load time, so both
// candidates may be passed unconditionally.
func DefaultPaths() []string {
	candidates := []string{
		filepath.Join("config", "catalogs.json"),
		filepath.Join("..", "config", "catalogs.json"),
	}
	paths := make([]string, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, candidate := range candidates {
		cleaned := filepath.Clean(candidate)
		if _, dup := seen[cleaned]; dup {
			continue
		}
		seen[cleaned] = struct{}{}
		paths = append(paths, cleaned)
	}
	return paths
}

// Resolver merges overlay sources over the built-in catalogs into one
// validated bundle. Call Reload to pick up on-disk changes.
type Resolver struct {
	mu      sync.RWMutex
	sources []source
	bundle  Bundle
}

// Load constructs a Resolver backed by the given overlay file paths. Blank
// paths are dropped; missing files are skipped on every load.
func Load(paths ...string) (*Resolver, error) {
	sources := make([]source, 0, len(paths))
	for _, path := range paths {
		trimmed := strings.TrimSpace(path)
		if trimmed == "" {
			continue
		}
		sources = append(sources, fileSource{path: trimmed})
	}
	return NewResolver(sources...)
}

// NewResolver constructs a Resolver from arbitrary sources. Tests supply
// in-memory sources while production code uses file paths.
func NewResolver(sources ...source) (*Resolver, error) {
	r := &Resolver{sources: append([]source(nil), sources...)}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload re-reads every source over the built-in defaults. Later sources
// replace catalog kinds set by earlier ones. The bundle swaps atomically:
// a failed reload leaves the previous bundle in place.
func (r *Resolver) Reload() error {
	if r == nil {
		return nil
	}
	merged := defaultBundle()
	for _, src := range r.sources {
		data, err := src.Load()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("catalog: failed loading %s: %w", src.Path(), err)
		}
		if err := applyOverlay(&merged, data); err != nil {
			return fmt.Errorf("catalog: failed parsing %s: %w", src.Path(), err)
		}
	}
	if err := validateBundle(merged); err != nil {
		return fmt.Errorf("catalog: %w", err)
	}

	r.mu.Lock()
	r.bundle = merged
	r.mu.Unlock()
	return nil
}

// Bundle returns a deep copy of the resolved catalogs.
func (r *Resolver) Bundle() Bundle {
	if r == nil {
		return defaultBundle()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.bundle.clone()
}

func validateBundle(b Bundle) error {
	if err := b.Loot.Validate(); err != nil {
		return err
	}
	if err := world.ValidateBiomes(b.Biomes); err != nil {
		return err
	}
	if err := world.ValidateEvents(b.Events); err != nil {
		return err
	}
	return shop.ValidateKiosks(b.Kiosks)
}

func applyOverlay(bundle *Bundle, data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}
	var kinds map[Kind]json.RawMessage
	if err := json.Unmarshal(trimmed, &kinds); err != nil {
		return err
	}
	for kind := range kinds {
		if _, known := knownKinds[kind]; !known {
			return fmt.Errorf("unknown catalog kind %q", kind)
		}
	}

	if raw, ok := kinds[KindSizeClasses]; ok {
		rows, err := decodeRows(raw, entryKey, entryWithKey)
		if err != nil {
			return fmt.Errorf("%s: %w", KindSizeClasses, err)
		}
		bundle.Loot.SizeClasses = rows
	}
	if raw, ok := kinds[KindModifiers]; ok {
		rows, err := decodeRows(raw, entryKey, entryWithKey)
		if err != nil {
			return fmt.Errorf("%s: %w", KindModifiers, err)
		}
		bundle.Loot.Modifiers = rows
	}
	if raw, ok := kinds[KindRelics]; ok {
		rows, err := decodeRows(raw,
			func(r loot.Relic) string { return r.ID },
			func(r loot.Relic, key string) loot.Relic { r.ID = key; return r })
		if err != nil {
			return fmt.Errorf("%s: %w", KindRelics, err)
		}
		bundle.Loot.Relics = rows
	}
	if raw, ok := kinds[KindBiomes]; ok {
		rows, err := decodeRows(raw,
			func(b world.Biome) string { return b.ID },
			func(b world.Biome, key string) world.Biome { b.ID = key; return b })
		if err != nil {
			return fmt.Errorf("%s: %w", KindBiomes, err)
		}
		bundle.Biomes = rows
	}
	if raw, ok := kinds[KindEvents]; ok {
		rows, err := decodeRows(raw,
			func(e world.Event) string { return e.ID },
			func(e world.Event, key string) world.Event { e.ID = key; return e })
		if err != nil {
			return fmt.Errorf("%s: %w", KindEvents, err)
		}
		bundle.Events = rows
	}
	if raw, ok := kinds[KindKiosks]; ok {
		rows, err := decodeRows(raw,
			func(k shop.Kiosk) string { return string(k.Kind) },
			func(k shop.Kiosk, key string) shop.Kiosk { k.Kind = shop.Kind(key); return k })
		if err != nil {
			return fmt.Errorf("%s: %w", KindKiosks, err)
		}
		bundle.Kiosks = rows
	}
	return nil
}

func entryKey(e rarity.Entry) string {
	return e.ID
}

func entryWithKey(e rarity.Entry, key string) rarity.Entry {
	e.ID = key
	return e
}

// decodeRows parses one catalog list. Array form keeps element order. Object
// form iterates keys in author order via orderedmap; each key doubles as the
// row id and must match an explicit one.
func decodeRows[T any](raw json.RawMessage, keyOf func(T) string, withKey func(T, string) T) ([]T, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	switch trimmed[0] {
	case '[':
		var rows []T
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return nil, err
		}
		return rows, nil
	case '{':
		object := orderedmap.New()
		if err := json.Unmarshal(trimmed, object); err != nil {
			return nil, err
		}
		keys := object.Keys()
		rows := make([]T, 0, len(keys))
		for _, key := range keys {
			value, _ := object.Get(key)
			encoded, err := json.Marshal(value)
			if err != nil {
				return nil, fmt.Errorf("row %q: %w", key, err)
			}
			var row T
			if err := json.Unmarshal(encoded, &row); err != nil {
				return nil, fmt.Errorf("row %q: %w", key, err)
			}
			switch id := keyOf(row); {
			case id == "":
				row = withKey(row, key)
			case id != key:
				return nil, fmt.Errorf("row id %q does not match key %q", id, key)
			}
			rows = append(rows, row)
		}
		return rows, nil
	default:
		return nil, fmt.Errorf("unexpected json token %q", string(trimmed[:1]))
	}
}
