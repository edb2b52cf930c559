package worldevents

import (
	"context"

	"drift-and-dredge/server/logging"
)

const (
	// EventBiomeChanged is emitted when a round lands in a new biome.
	EventBiomeChanged logging.EventType = "worldevents.biome_changed"
	// EventStartedType is emitted when a world event activates.
	EventStartedType logging.EventType = "worldevents.started"
	// EventEndedType is emitted when a world event expires.
	EventEndedType logging.EventType = "worldevents.ended"
)

// BiomeChangedPayload captures the biome roll outcome.
type BiomeChangedPayload struct {
	BiomeID       string  `json:"biomeId"`
	Round         int     `json:"round"`
	Rarity        float64 `json:"rarity"`
	EffectiveLuck float64 `json:"effectiveLuck"`
	PityStreak    int     `json:"pityStreak"`
}

// EventStartedPayload captures an activation.
type EventStartedPayload struct {
	Instance string `json:"instance"`
	EventID  string `json:"eventId"`
	Biome    string `json:"biome,omitempty"`
	EndTick  uint64 `json:"endTick,omitempty"`
	EndRound int    `json:"endRound,omitempty"`
}

// EventEndedPayload captures an expiry.
type EventEndedPayload struct {
	Instance string `json:"instance"`
	EventID  string `json:"eventId"`
}

// BiomeChanged publishes a biome transition event.
func BiomeChanged(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload BiomeChangedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventBiomeChanged,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryRun,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// EventStarted publishes a world event activation.
func EventStarted(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload EventStartedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventStartedType,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryRun,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// EventEnded publishes a world event expiry.
func EventEnded(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload EventEndedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventEndedType,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryRun,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}
