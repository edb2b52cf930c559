package server

import "time"

const (
	ProtocolVersion = 1

	writeWait         = 10 * time.Second
	defaultTickRate   = 15 // ticks per second
	heartbeatInterval = 2 * time.Second
	disconnectAfter   = 3 * heartbeatInterval

	// defaultCatchupMaxTicks bounds how far a late tick may stretch its
	// delta before the loop clamps instead of simulating the backlog.
	defaultCatchupMaxTicks = 4

	commandQueueCapacity      = 256
	commandQueuePerActorLimit = 8
	commandQueueWarningStep   = 64
)

// HeartbeatInterval reports the cadence clients are expected to ping at.
func HeartbeatInterval() time.Duration {
	return heartbeatInterval
}
