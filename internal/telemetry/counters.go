package telemetry

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"
)

// RunCounters tracks hot-path statistics for one server process. All fields
// are atomics: the simulation loop writes while HTTP handlers snapshot.
type RunCounters struct {
	bytesSent          atomic.Uint64
	messagesSent       atomic.Uint64
	lastBroadcastBytes atomic.Uint64
	tickDurationMillis atomic.Int64
	commandsProcessed  atomic.Uint64
	commandsRejected   atomic.Uint64
	dropsRolled        atomic.Uint64
	eventsStarted      atomic.Uint64
	journalRetained    atomic.Uint64
	journalAppended    atomic.Uint64
	journalPruned      atomic.Uint64
	debug              bool
}

// RunSnapshot is the JSON shape served by /diagnostics.
type RunSnapshot struct {
	BytesSent          uint64 `json:"bytesSent"`
	MessagesSent       uint64 `json:"messagesSent"`
	LastBroadcastBytes uint64 `json:"lastBroadcastBytes"`
	TickDurationMillis int64  `json:"tickDurationMillis"`
	CommandsProcessed  uint64 `json:"commandsProcessed"`
	CommandsRejected   uint64 `json:"commandsRejected"`
	DropsRolled        uint64 `json:"dropsRolled"`
	EventsStarted      uint64 `json:"eventsStarted"`
	JournalRetained    uint64 `json:"journalRetained"`
	JournalAppended    uint64 `json:"journalAppended"`
	JournalPruned      uint64 `json:"journalPruned"`
}

// NewRunCounters builds counters; DEBUG_TELEMETRY=1 echoes each tick to
// stdout for local profiling.
func NewRunCounters() *RunCounters {
	c := &RunCounters{}
	if os.Getenv("DEBUG_TELEMETRY") == "1" {
		c.debug = true
	}
	return c
}

// RecordBroadcast accumulates one state broadcast fan-out.
func (c *RunCounters) RecordBroadcast(bytes, sessions int) {
	if c == nil {
		return
	}
	if bytes < 0 {
		bytes = 0
	}
	if sessions < 0 {
		sessions = 0
	}
	c.bytesSent.Add(uint64(bytes) * uint64(sessions))
	c.messagesSent.Add(uint64(sessions))
	c.lastBroadcastBytes.Store(uint64(bytes))
}

// RecordTickDuration stores the latest simulation step cost.
func (c *RunCounters) RecordTickDuration(duration time.Duration) {
	if c == nil {
		return
	}
	millis := duration.Milliseconds()
	if millis < 0 {
		millis = 0
	}
	c.tickDurationMillis.Store(millis)
	if c.debug {
		fmt.Printf("[telemetry] tick=%dms lastBroadcast=%dB totalSent=%dB\n",
			millis, c.lastBroadcastBytes.Load(), c.bytesSent.Load())
	}
}

// RecordCommand counts one queued command, accepted or rejected.
func (c *RunCounters) RecordCommand(accepted bool) {
	if c == nil {
		return
	}
	if accepted {
		c.commandsProcessed.Add(1)
		return
	}
	c.commandsRejected.Add(1)
}

// RecordDrop counts one rolled drop.
func (c *RunCounters) RecordDrop() {
	if c == nil {
		return
	}
	c.dropsRolled.Add(1)
}

// RecordEventStart counts one world-event activation.
func (c *RunCounters) RecordEventStart() {
	if c == nil {
		return
	}
	c.eventsStarted.Add(1)
}

// RecordJournal mirrors the outcome journal's retention stats.
func (c *RunCounters) RecordJournal(retained int, appended, pruned uint64) {
	if c == nil {
		return
	}
	if retained < 0 {
		retained = 0
	}
	c.journalRetained.Store(uint64(retained))
	c.journalAppended.Store(appended)
	c.journalPruned.Store(pruned)
}

// DebugEnabled reports whether per-tick echoing is on.
func (c *RunCounters) DebugEnabled() bool {
	return c != nil && c.debug
}

// Snapshot copies every counter.
func (c *RunCounters) Snapshot() RunSnapshot {
	if c == nil {
		return RunSnapshot{}
	}
	return RunSnapshot{
		BytesSent:          c.bytesSent.Load(),
		MessagesSent:       c.messagesSent.Load(),
		LastBroadcastBytes: c.lastBroadcastBytes.Load(),
		TickDurationMillis: c.tickDurationMillis.Load(),
		CommandsProcessed:  c.commandsProcessed.Load(),
		CommandsRejected:   c.commandsRejected.Load(),
		DropsRolled:        c.dropsRolled.Load(),
		EventsStarted:      c.eventsStarted.Load(),
		JournalRetained:    c.journalRetained.Load(),
		JournalAppended:    c.journalAppended.Load(),
		JournalPruned:      c.journalPruned.Load(),
	}
}
