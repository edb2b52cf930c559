package lifecycle

import (
	"context"

	"drift-and-dredge/server/logging"
)

const (
	// EventRunStarted is emitted when a run's world is constructed.
	EventRunStarted logging.EventType = "lifecycle.run_started"
	// EventPlayerJoined is emitted when a player session attaches.
	EventPlayerJoined logging.EventType = "lifecycle.player_joined"
	// EventPlayerDisconnected is emitted when a player session detaches.
	EventPlayerDisconnected logging.EventType = "lifecycle.player_disconnected"
)

// RunStartedPayload captures the seed a run was created with.
type RunStartedPayload struct {
	RunID     string `json:"runId"`
	Seed      string `json:"seed"`
	SeedValue uint32 `json:"seedValue"`
}

// PlayerJoinedPayload captures join metadata.
type PlayerJoinedPayload struct {
	RunID string `json:"runId"`
}

// PlayerDisconnectedPayload captures the reason a session ended.
type PlayerDisconnectedPayload struct {
	Reason string `json:"reason"`
}

// RunStarted publishes a run creation event.
func RunStarted(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload RunStartedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventRunStarted,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: "lifecycle",
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// PlayerJoined publishes a session join event.
func PlayerJoined(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload PlayerJoinedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventPlayerJoined,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: "lifecycle",
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// PlayerDisconnected publishes a session detach event.
func PlayerDisconnected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload PlayerDisconnectedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventPlayerDisconnected,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: "lifecycle",
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}
