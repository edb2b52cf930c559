package drops

import (
	"context"

	"drift-and-dredge/server/logging"
)

const (
	// EventRolled is emitted for every completed drop roll.
	EventRolled logging.EventType = "drops.rolled"
)

// RolledPayload captures the assembled drop.
type RolledPayload struct {
	RelicID     string   `json:"relicId"`
	SizeClass   string   `json:"sizeClass"`
	ModifierIDs []string `json:"modifierIds,omitempty"`
	Multiplier  float64  `json:"multiplier"`
	Value       float64  `json:"value"`
	Biome       string   `json:"biome,omitempty"`
}

// Rolled publishes a drop roll event.
func Rolled(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload RolledPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventRolled,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryEconomy,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}
