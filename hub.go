package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"drift-and-dredge/server/internal/catalog"
	"drift-and-dredge/server/internal/journal"
	"drift-and-dredge/server/internal/loot"
	"drift-and-dredge/server/internal/player"
	"drift-and-dredge/server/internal/rarity"
	"drift-and-dredge/server/internal/rng"
	"drift-and-dredge/server/internal/shop"
	"drift-and-dredge/server/internal/telemetry"
	"drift-and-dredge/server/internal/world"
	"drift-and-dredge/server/logging"
	loglifecycle "drift-and-dredge/server/logging/lifecycle"
	lognetwork "drift-and-dredge/server/logging/network"
	logshop "drift-and-dredge/server/logging/shop"
)

// Command reject reasons shared with the transport layer.
const (
	CommandRejectUnknownActor   = "unknown_actor"
	CommandRejectQueueLimit     = "queue_limit"
	CommandRejectQueueFull      = "queue_full"
	CommandRejectInvalidKiosk   = "invalid_kiosk"
	CommandRejectInvalidPayload = "invalid_payload"
)

var errNoConnection = errors.New("subscriber has no connection")

// HubConfig tunes the tick loop, the command queue, and the underlying run.
type HubConfig struct {
	TickRate        int
	CatchupMaxTicks int
	CommandCapacity int
	PerActorLimit   int
	WarningStep     int

	// World seeds the first run; Catalogs overrides the built-in tables
	// when non-zero.
	World    world.Config
	Catalogs catalog.Bundle

	JournalCapacity   int
	JournalMaxTickAge uint64

	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
	Publisher logging.Publisher
	Clock     logging.Clock
}

// DefaultHubConfig returns the tuning the server boots with.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		TickRate:        defaultTickRate,
		CatchupMaxTicks: defaultCatchupMaxTicks,
		CommandCapacity: commandQueueCapacity,
		PerActorLimit:   commandQueuePerActorLimit,
		WarningStep:     commandQueueWarningStep,
		World:           world.DefaultConfig(),
	}
}

// session is the per-player boundary state. Loadouts live here, outside the
// deterministic core; the world only ever sees them as roll inputs.
type session struct {
	id            string
	loadout       player.Loadout
	lastHeartbeat time.Time
	lastRTT       time.Duration
	joinedTick    uint64
}

type subscriber struct {
	conn           *websocket.Conn
	mu             sync.Mutex
	lastCommandSeq atomic.Uint64
}

// WriteMessage serializes writes to the underlying connection.
func (s *subscriber) WriteMessage(messageType int, data []byte) error {
	if s == nil || s.conn == nil {
		return errNoConnection
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(messageType, data)
}

func (s *subscriber) Close() {
	if s == nil || s.conn == nil {
		return
	}
	s.conn.Close()
}

// StoreLastCommandSeq records the newest acknowledged client command.
func (s *subscriber) StoreLastCommandSeq(seq uint64) {
	if s == nil {
		return
	}
	s.lastCommandSeq.Store(seq)
}

// LastCommandSeq reports the newest acknowledged client command.
func (s *subscriber) LastCommandSeq() uint64 {
	if s == nil {
		return 0
	}
	return s.lastCommandSeq.Load()
}

// Hub owns sessions, the staged command queue, and the deterministic run
// core. All world access is serialized under its mutex; determinism inside
// the core depends on call order alone, so the hub is the only place wall
// clocks and sockets are allowed to exist.
type Hub struct {
	mu          sync.Mutex
	config      HubConfig
	world       *world.World
	shop        *shop.Engine
	shopRands   map[shop.Kind]rarity.Rand
	stock       map[shop.Kind][]shop.StockItem
	sessions    map[string]*session
	subscribers map[string]*subscriber
	runID       string

	lastOutcomeSeq uint64

	tick     atomic.Uint64
	sequence atomic.Uint64

	queueMu       sync.Mutex
	buffer        *commandBuffer
	perActorCount map[string]int
	dropCounts    map[string]uint64

	counters  *telemetry.RunCounters
	publisher logging.Publisher
	logger    telemetry.Logger
	clock     logging.Clock
}

// NewHubWithConfig constructs a hub and its first run. Catalog problems
// surface here, once.
func NewHubWithConfig(cfg HubConfig) (*Hub, error) {
	if cfg.TickRate <= 0 {
		cfg.TickRate = defaultTickRate
	}
	if cfg.CatchupMaxTicks <= 0 {
		cfg.CatchupMaxTicks = defaultCatchupMaxTicks
	}
	if cfg.CommandCapacity <= 0 {
		cfg.CommandCapacity = commandQueueCapacity
	}
	if cfg.PerActorLimit <= 0 {
		cfg.PerActorLimit = commandQueuePerActorLimit
	}
	if cfg.WarningStep < 0 {
		cfg.WarningStep = 0
	}
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.WrapLogger(log.Default())
	}
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = logging.ClockFunc(time.Now)
	}

	h := &Hub{
		config:        cfg,
		sessions:      make(map[string]*session),
		subscribers:   make(map[string]*subscriber),
		perActorCount: make(map[string]int),
		dropCounts:    make(map[string]uint64),
		buffer:        newCommandBuffer(cfg.CommandCapacity, cfg.Metrics),
		counters:      telemetry.NewRunCounters(),
		publisher:     publisher,
		logger:        logger,
		clock:         clock,
	}

	h.mu.Lock()
	err := h.resetLocked(cfg.World)
	h.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("hub: %w", err)
	}
	return h, nil
}

// resetLocked builds a fresh world, shop streams, and run id. Sessions and
// their loadouts survive a reset; shelves and the staged queue do not.
func (h *Hub) resetLocked(cfg world.Config) error {
	bundle := h.config.Catalogs
	w, err := world.New(cfg, world.Deps{
		Publisher:         h.publisher,
		Loot:              bundle.Loot,
		Biomes:            bundle.Biomes,
		Events:            bundle.Events,
		JournalCapacity:   h.config.JournalCapacity,
		JournalMaxTickAge: h.config.JournalMaxTickAge,
	})
	if err != nil {
		return err
	}
	engine, err := shop.NewEngine(bundle.Kiosks)
	if err != nil {
		return err
	}

	h.world = w
	h.shop = engine
	shopSource := rng.NewSource(w.Seed())
	kiosks := engine.Kiosks()
	h.shopRands = make(map[shop.Kind]rarity.Rand, len(kiosks))
	h.stock = make(map[shop.Kind][]shop.StockItem, len(kiosks))
	for _, kiosk := range kiosks {
		h.shopRands[kiosk.Kind] = shopSource.Stream("shop:" + string(kiosk.Kind))
	}
	h.runID = uuid.New().String()
	h.lastOutcomeSeq = 0
	h.tick.Store(0)
	h.drainCommands()

	loglifecycle.RunStarted(context.Background(), h.publisher, 0, h.runRef(), loglifecycle.RunStartedPayload{
		RunID:     h.runID,
		Seed:      w.Seed(),
		SeedValue: w.SeedValue(),
	}, nil)
	return nil
}

// Join registers a new session and returns the full run snapshot.
func (h *Hub) Join() joinResponse {
	id := uuid.New().String()
	now := h.clock.Now()

	h.mu.Lock()
	sess := &session{id: id, lastHeartbeat: now, joinedTick: h.tick.Load()}
	h.sessions[id] = sess
	tick := h.tick.Load()
	response := joinResponse{
		Ver:     ProtocolVersion,
		ID:      id,
		RunID:   h.runID,
		Seed:    h.world.Seed(),
		Tick:    tick,
		Round:   h.world.Round(),
		Biome:   h.world.Biome(),
		Config:  h.world.Config(),
		Loadout: loadoutWire(sess.loadout),
		Kiosks:  h.shop.Kiosks(),
		Stock:   h.stockWireLocked(),
		Journal: h.world.SnapshotOutcomes(),
	}
	h.mu.Unlock()

	loglifecycle.PlayerJoined(context.Background(), h.publisher, tick, playerRef(id), loglifecycle.PlayerJoinedPayload{RunID: response.RunID}, nil)
	return response
}

// Subscribe associates a WebSocket connection with an existing session.
func (h *Hub) Subscribe(playerID string, conn *websocket.Conn) (*subscriber, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sess, ok := h.sessions[playerID]
	if !ok {
		return nil, false
	}
	sess.lastHeartbeat = h.clock.Now()

	if existing, ok := h.subscribers[playerID]; ok {
		existing.Close()
	}
	sub := &subscriber{conn: conn}
	h.subscribers[playerID] = sub
	return sub, true
}

// Disconnect removes a session and closes any active subscriber connection.
func (h *Hub) Disconnect(playerID string) bool {
	h.mu.Lock()
	sub, subOK := h.subscribers[playerID]
	if subOK {
		delete(h.subscribers, playerID)
	}
	_, sessOK := h.sessions[playerID]
	if sessOK {
		delete(h.sessions, playerID)
	}
	tick := h.tick.Load()
	h.mu.Unlock()

	if subOK {
		sub.Close()
	}
	if sessOK {
		loglifecycle.PlayerDisconnected(context.Background(), h.publisher, tick, playerRef(playerID), loglifecycle.PlayerDisconnectedPayload{Reason: "client_disconnect"}, nil)
	}
	return sessOK
}

// UpdateHeartbeat records the most recent heartbeat time and RTT for a
// session.
func (h *Hub) UpdateHeartbeat(playerID string, receivedAt time.Time, clientSent int64) (time.Duration, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sess, ok := h.sessions[playerID]
	if !ok {
		return 0, false
	}
	sess.lastHeartbeat = receivedAt

	var rtt time.Duration
	if clientSent > 0 {
		clientTime := time.UnixMilli(clientSent)
		if clientTime.Before(receivedAt.Add(5 * time.Second)) {
			rtt = receivedAt.Sub(clientTime)
			if rtt < 0 {
				rtt = 0
			}
			sess.lastRTT = rtt
		}
	}
	return sess.lastRTT, true
}

// QueueDredge stages one drop roll for the session.
func (h *Hub) QueueDredge(actorID string) (Command, bool, string) {
	return h.queueCommand(Command{ActorID: actorID, Type: CommandDredge})
}

// QueueAdvance stages a round advance, surfacing the next biome on the
// following tick.
func (h *Hub) QueueAdvance(actorID string) (Command, bool, string) {
	return h.queueCommand(Command{ActorID: actorID, Type: CommandAdvance})
}

// QueueConfigure stages a loadout patch for the session.
func (h *Hub) QueueConfigure(actorID string, patch LoadoutPatch) (Command, bool, string) {
	return h.queueCommand(Command{ActorID: actorID, Type: CommandConfigure, Configure: &ConfigureCommand{Patch: patch}})
}

// QueueRestock stages a kiosk shelf re-roll. Unknown kiosks reject before
// entering the queue.
func (h *Hub) QueueRestock(actorID, kiosk string, slots int) (Command, bool, string) {
	h.mu.Lock()
	_, known := h.shop.Kiosk(shop.Kind(kiosk))
	tick := h.tick.Load()
	h.mu.Unlock()
	if !known {
		h.rejectCommand(Command{ActorID: actorID, Type: CommandRestock}, CommandRejectInvalidKiosk, tick)
		return Command{}, false, CommandRejectInvalidKiosk
	}
	return h.queueCommand(Command{ActorID: actorID, Type: CommandRestock, Restock: &RestockCommand{Kiosk: kiosk, Slots: slots}})
}

func (h *Hub) queueCommand(cmd Command) (Command, bool, string) {
	h.mu.Lock()
	_, ok := h.sessions[cmd.ActorID]
	tick := h.tick.Load()
	h.mu.Unlock()
	if !ok {
		h.rejectCommand(cmd, CommandRejectUnknownActor, tick)
		return Command{}, false, CommandRejectUnknownActor
	}

	cmd.OriginTick = tick
	cmd.IssuedAt = h.clock.Now()
	if ok, reason := h.enqueueCommand(cmd); !ok {
		return Command{}, false, reason
	}
	return cmd, true, ""
}

// enqueueCommand stages a command, enforcing per-actor throttling and
// buffer capacity.
func (h *Hub) enqueueCommand(cmd Command) (bool, string) {
	reason := ""
	var dropCount uint64
	h.queueMu.Lock()
	if h.config.PerActorLimit > 0 && cmd.ActorID != "" {
		count := h.perActorCount[cmd.ActorID]
		if count >= h.config.PerActorLimit {
			reason = CommandRejectQueueLimit
			dropCount = h.incrementDropLocked(cmd.ActorID)
		} else {
			h.perActorCount[cmd.ActorID] = count + 1
		}
	}
	if reason == "" {
		if !h.buffer.Push(cmd) {
			reason = CommandRejectQueueFull
			dropCount = h.incrementDropLocked(cmd.ActorID)
		} else if h.config.WarningStep > 0 {
			length := h.buffer.Len()
			if length >= h.config.WarningStep && length%h.config.WarningStep == 0 {
				h.queueMu.Unlock()
				h.logger.Printf("[backpressure] command queue depth %d", length)
				return true, ""
			}
		}
	}
	h.queueMu.Unlock()
	if reason != "" {
		h.reportDrop(reason, cmd, dropCount)
		return false, reason
	}
	return true, ""
}

func (h *Hub) drainCommands() []Command {
	h.queueMu.Lock()
	defer h.queueMu.Unlock()
	commands := h.buffer.Drain()
	if len(h.perActorCount) > 0 {
		h.perActorCount = make(map[string]int)
	}
	return commands
}

func (h *Hub) incrementDropLocked(actorID string) uint64 {
	if actorID == "" {
		return 0
	}
	count := h.dropCounts[actorID] + 1
	h.dropCounts[actorID] = count
	return count
}

func (h *Hub) reportDrop(reason string, cmd Command, count uint64) {
	h.counters.RecordCommand(false)
	if count > 0 && count&(count-1) == 0 {
		h.logger.Printf(
			"[backpressure] dropping command actor=%s type=%s reason=%s count=%d limit=%d",
			cmd.ActorID,
			cmd.Type,
			reason,
			count,
			h.config.PerActorLimit,
		)
	}
}

func (h *Hub) rejectCommand(cmd Command, reason string, tick uint64) {
	h.counters.RecordCommand(false)
	lognetwork.CommandRejected(context.Background(), h.publisher, tick, playerRef(cmd.ActorID), lognetwork.CommandRejectedPayload{
		Command: string(cmd.Type),
		Reason:  reason,
	}, nil)
}

// advance runs a single simulation tick: staged commands apply in arrival
// order, then event trials run, then timed-out sessions drop.
func (h *Hub) advance(now time.Time) (stateMessage, []*subscriber) {
	h.mu.Lock()

	tick := h.tick.Add(1)
	commands := h.drainCommands()

	var drops []dropResult
	var stock []stockResult
	for _, cmd := range commands {
		sess, ok := h.sessions[cmd.ActorID]
		if !ok {
			h.rejectCommand(cmd, CommandRejectUnknownActor, tick)
			continue
		}
		switch cmd.Type {
		case CommandConfigure:
			if cmd.Configure == nil {
				h.rejectCommand(cmd, CommandRejectInvalidPayload, tick)
				continue
			}
			sess.loadout = applyLoadoutPatch(sess.loadout, cmd.Configure.Patch)
		case CommandDredge:
			drop := h.world.RollDrop(sess.loadout)
			h.counters.RecordDrop()
			drops = append(drops, dropResult{Actor: cmd.ActorID, Drop: drop})
		case CommandAdvance:
			h.world.AdvanceRound(h.world.Round()+1, sess.loadout)
		case CommandRestock:
			if cmd.Restock == nil {
				h.rejectCommand(cmd, CommandRejectInvalidPayload, tick)
				continue
			}
			kind := shop.Kind(cmd.Restock.Kiosk)
			kiosk, ok := h.shop.Kiosk(kind)
			if !ok {
				h.rejectCommand(cmd, CommandRejectInvalidKiosk, tick)
				continue
			}
			slots := cmd.Restock.Slots
			if slots <= 0 {
				slots = kiosk.Slots
			}
			effects := h.world.MergedEffects()
			items := h.shop.Roll(kind, slots, sess.loadout, effects, h.shopRands[kind])
			h.stock[kind] = items
			stock = append(stock, stockResult{Kiosk: string(kind), Items: items})
			ids := make([]string, 0, len(items))
			for _, item := range items {
				ids = append(ids, item.Entry.ID)
			}
			logshop.StockRolled(context.Background(), h.publisher, tick, playerRef(cmd.ActorID), logshop.StockRolledPayload{
				Kiosk:       string(kind),
				ItemIDs:     ids,
				PriceFactor: effects.PriceFactor,
			}, nil)
		default:
			h.rejectCommand(cmd, CommandRejectInvalidPayload, tick)
			continue
		}
		h.counters.RecordCommand(true)
	}

	h.world.TickEvents(tick, h.world.Round(), h.crewLoadoutLocked())

	outcomes := h.outcomesSinceLocked()
	for _, record := range outcomes {
		if record.Kind == journal.KindEventStart {
			h.counters.RecordEventStart()
		}
	}
	stats := h.world.JournalStats()
	h.counters.RecordJournal(stats.Retained, stats.Appended, stats.PrunedCapacity+stats.PrunedAge)

	toClose := h.pruneSessionsLocked(now, tick)

	msg := h.snapshotMessageLocked(now)
	msg.Tick = tick
	msg.Drops = drops
	msg.Stock = stock
	msg.Outcomes = outcomes
	msg.Sequence = h.sequence.Add(1)
	h.mu.Unlock()

	return msg, toClose
}

// crewLoadoutLocked folds every session into the loadout that drives world
// event trials: luck adds, event rates multiply, perks union. Sums and
// products are order-independent, so map iteration cannot perturb the
// deterministic core.
func (h *Hub) crewLoadoutLocked() player.Loadout {
	crew := player.Loadout{}
	if len(h.sessions) == 0 {
		return crew
	}
	eventRate := 1.0
	var perks player.PerkSet
	var overrides map[string]float64
	for _, sess := range h.sessions {
		lo := sess.loadout.Normalized()
		crew.Luck += lo.Luck
		eventRate *= lo.EventRate
		if len(lo.Perks) > 0 {
			if perks == nil {
				perks = make(player.PerkSet, len(lo.Perks))
			}
			for id := range lo.Perks {
				perks[id] = struct{}{}
			}
		}
		for id, factor := range lo.RarityOverrides {
			if overrides == nil {
				overrides = make(map[string]float64, len(lo.RarityOverrides))
			}
			if current, ok := overrides[id]; ok {
				overrides[id] = current * factor
			} else {
				overrides[id] = factor
			}
		}
	}
	crew.EventRate = eventRate
	crew.Perks = perks
	crew.RarityOverrides = overrides
	return crew
}

// outcomesSinceLocked returns the journal records appended since the last
// broadcast without draining retention.
func (h *Hub) outcomesSinceLocked() []journal.Record {
	snapshot := h.world.SnapshotOutcomes()
	if len(snapshot) == 0 {
		return nil
	}
	first := len(snapshot)
	for first > 0 && snapshot[first-1].Sequence > h.lastOutcomeSeq {
		first--
	}
	delta := snapshot[first:]
	if len(delta) == 0 {
		return nil
	}
	h.lastOutcomeSeq = delta[len(delta)-1].Sequence
	return delta
}

func (h *Hub) pruneSessionsLocked(now time.Time, tick uint64) []*subscriber {
	var toClose []*subscriber
	for id, sess := range h.sessions {
		if now.Sub(sess.lastHeartbeat) <= disconnectAfter {
			continue
		}
		if sub, ok := h.subscribers[id]; ok {
			toClose = append(toClose, sub)
			delete(h.subscribers, id)
		}
		delete(h.sessions, id)
		h.logger.Printf("disconnecting %s due to heartbeat timeout", id)
		loglifecycle.PlayerDisconnected(context.Background(), h.publisher, tick, playerRef(id), loglifecycle.PlayerDisconnectedPayload{Reason: "heartbeat_timeout"}, nil)
	}
	return toClose
}

func (h *Hub) snapshotMessageLocked(now time.Time) stateMessage {
	biomeStreak, eventStreak := h.world.PityStreaks()
	return stateMessage{
		Ver:          ProtocolVersion,
		Type:         "state",
		RunID:        h.runID,
		Tick:         h.tick.Load(),
		Round:        h.world.Round(),
		Biome:        h.world.Biome(),
		ActiveEvents: h.world.ActiveEvents(),
		BiomeStreak:  biomeStreak,
		EventStreak:  eventStreak,
		Sequence:     h.sequence.Load(),
		ServerTime:   now.UnixMilli(),
	}
}

// MarshalSnapshot renders the current run state for a fresh subscriber.
func (h *Hub) MarshalSnapshot() ([]byte, error) {
	h.mu.Lock()
	msg := h.snapshotMessageLocked(h.clock.Now())
	h.mu.Unlock()
	return json.Marshal(msg)
}

// BroadcastSnapshot pushes the current run state outside the tick cadence,
// typically after a reset.
func (h *Hub) BroadcastSnapshot() {
	h.mu.Lock()
	msg := h.snapshotMessageLocked(h.clock.Now())
	h.mu.Unlock()
	h.broadcastState(msg)
}

// broadcastState sends one state payload to every subscriber, dropping any
// whose connection has gone bad.
func (h *Hub) broadcastState(msg stateMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Printf("failed to marshal state message: %v", err)
		return
	}

	h.mu.Lock()
	subs := make(map[string]*subscriber, len(h.subscribers))
	for id, sub := range h.subscribers {
		subs[id] = sub
	}
	h.mu.Unlock()

	h.counters.RecordBroadcast(len(data), len(subs))
	for id, sub := range subs {
		if err := sub.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Printf("failed to send update to %s: %v", id, err)
			h.Disconnect(id)
		}
	}
}

// RunSimulation drives the fixed-rate tick loop until the stop channel
// closes. Late wakeups catch up with extra ticks, bounded by
// CatchupMaxTicks so a long stall never fast-forwards the run.
func (h *Hub) RunSimulation(stop <-chan struct{}) {
	tickRate := h.config.TickRate
	ticker := time.NewTicker(time.Second / time.Duration(tickRate))
	defer ticker.Stop()

	budget := 1.0 / float64(tickRate)
	last := h.clock.Now()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			now := h.clock.Now()
			dt := now.Sub(last).Seconds()
			last = now

			steps := 1
			if dt > budget {
				steps = int(dt/budget + 0.5)
				if steps > h.config.CatchupMaxTicks {
					steps = h.config.CatchupMaxTicks
				}
				if steps < 1 {
					steps = 1
				}
			}
			for i := 0; i < steps; i++ {
				start := h.clock.Now()
				msg, toClose := h.advance(now)
				h.counters.RecordTickDuration(h.clock.Now().Sub(start))
				for _, sub := range toClose {
					sub.Close()
				}
				h.broadcastState(msg)
			}
		}
	}
}

// ResetWorld rebuilds the run from the provided configuration. Sessions and
// loadouts survive; the world, shelves, and staged commands start over.
func (h *Hub) ResetWorld(cfg world.Config) error {
	h.mu.Lock()
	err := h.resetLocked(cfg)
	h.mu.Unlock()
	return err
}

// CurrentConfig reports the normalized configuration of the active run.
func (h *Hub) CurrentConfig() world.Config {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.world.Config()
}

// RunID reports the active run's boundary identifier.
func (h *Hub) RunID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.runID
}

// Tick reports the latest completed tick.
func (h *Hub) Tick() uint64 {
	return h.tick.Load()
}

// TickRate reports the configured ticks per second.
func (h *Hub) TickRate() int {
	return h.config.TickRate
}

// Kiosks lists the active shop catalogs.
func (h *Hub) Kiosks() []shop.Kiosk {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.shop.Kiosks()
}

// BiomeCatalog lists the active biome table.
func (h *Hub) BiomeCatalog() []world.Biome {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.world.BiomeCatalog()
}

// EventCatalog lists the active world event table.
func (h *Hub) EventCatalog() []world.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.world.EventCatalog()
}

// LootCatalog returns the active drop tables.
func (h *Hub) LootCatalog() loot.Catalog {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.world.LootCatalog()
}

// DiagnosticsSnapshot exposes session heartbeat data for the diagnostics
// endpoint.
func (h *Hub) DiagnosticsSnapshot() []diagnosticsSession {
	h.mu.Lock()
	defer h.mu.Unlock()

	sessions := make([]diagnosticsSession, 0, len(h.sessions))
	for _, sess := range h.sessions {
		sessions = append(sessions, diagnosticsSession{
			Ver:           ProtocolVersion,
			ID:            sess.id,
			LastHeartbeat: sess.lastHeartbeat.UnixMilli(),
			RTTMillis:     sess.lastRTT.Milliseconds(),
			JoinedTick:    sess.joinedTick,
		})
	}
	return sessions
}

// TelemetrySnapshot reports the run counters.
func (h *Hub) TelemetrySnapshot() telemetry.RunSnapshot {
	return h.counters.Snapshot()
}

// JournalStats reports journal retention counters.
func (h *Hub) JournalStats() journal.Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.world.JournalStats()
}

// RecordTelemetryBroadcast accumulates an out-of-band send, such as the
// initial snapshot written during a subscribe.
func (h *Hub) RecordTelemetryBroadcast(bytes, sessions int) {
	h.counters.RecordBroadcast(bytes, sessions)
}

// seedSession registers a bare session without the join handshake, letting
// tests pick stable actor ids.
func (h *Hub) seedSession(id string, now time.Time) *session {
	h.mu.Lock()
	defer h.mu.Unlock()
	sess := &session{id: id, lastHeartbeat: now, joinedTick: h.tick.Load()}
	h.sessions[id] = sess
	return sess
}

func (h *Hub) runRef() logging.EntityRef {
	return logging.EntityRef{ID: h.runID, Kind: logging.EntityKindWorld}
}

func playerRef(id string) logging.EntityRef {
	return logging.EntityRef{ID: id, Kind: logging.EntityKindPlayer}
}

func (h *Hub) stockWireLocked() map[string][]shop.StockItem {
	if len(h.stock) == 0 {
		return nil
	}
	stock := make(map[string][]shop.StockItem, len(h.stock))
	for kind, items := range h.stock {
		if len(items) == 0 {
			continue
		}
		stock[string(kind)] = items
	}
	if len(stock) == 0 {
		return nil
	}
	return stock
}

// applyLoadoutPatch merges a patch into a loadout copy. Perk edits rebuild
// the set so older snapshots keep their view.
func applyLoadoutPatch(lo player.Loadout, patch LoadoutPatch) player.Loadout {
	if patch.Luck != nil {
		lo.Luck = *patch.Luck
	}
	if patch.ValueBonus != nil {
		lo.ValueBonus = *patch.ValueBonus
	}
	if patch.ModChance != nil {
		lo.ModChance = *patch.ModChance
	}
	if patch.EventRate != nil {
		lo.EventRate = *patch.EventRate
	}
	if len(patch.AddPerks) > 0 || len(patch.RemovePerks) > 0 {
		perks := make(player.PerkSet, len(lo.Perks)+len(patch.AddPerks))
		for id := range lo.Perks {
			perks[id] = struct{}{}
		}
		for _, id := range patch.AddPerks {
			if id != "" {
				perks[id] = struct{}{}
			}
		}
		for _, id := range patch.RemovePerks {
			delete(perks, id)
		}
		lo.Perks = perks
	}
	if patch.GuaranteedMods != nil {
		lo.GuaranteedMods = append([]string(nil), patch.GuaranteedMods...)
	}
	if patch.RarityOverrides != nil {
		overrides := make(map[string]float64, len(patch.RarityOverrides))
		for id, factor := range patch.RarityOverrides {
			overrides[id] = factor
		}
		lo.RarityOverrides = overrides
	}
	return lo
}
