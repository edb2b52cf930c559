package network

import (
	"context"

	"drift-and-dredge/server/logging"
)

const (
	// EventCommandRejected is emitted when a client command cannot be applied.
	EventCommandRejected logging.EventType = "network.command_rejected"
	// EventUpgradeFailed is emitted when a websocket upgrade fails.
	EventUpgradeFailed logging.EventType = "network.upgrade_failed"
)

// CommandRejectedPayload captures why a command was refused.
type CommandRejectedPayload struct {
	Command string `json:"command"`
	Reason  string `json:"reason"`
}

// UpgradeFailedPayload captures a failed websocket handshake.
type UpgradeFailedPayload struct {
	RemoteAddr string `json:"remoteAddr"`
	Error      string `json:"error"`
}

// CommandRejected publishes a warning for a refused client command.
func CommandRejected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload CommandRejectedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventCommandRejected,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: "network",
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// UpgradeFailed publishes a warning for a failed websocket upgrade.
func UpgradeFailed(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload UpgradeFailedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventUpgradeFailed,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: "network",
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}
