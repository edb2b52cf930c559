package server

import (
	"strings"
	"testing"
	"time"

	"drift-and-dredge/server/internal/player"
	"drift-and-dredge/server/internal/world"
)

func newTestHub(t *testing.T, seed string) *Hub {
	t.Helper()
	cfg := DefaultHubConfig()
	if seed != "" {
		cfg.World.Seed = seed
	}
	hub, err := NewHubWithConfig(cfg)
	if err != nil {
		t.Fatalf("failed to build hub: %v", err)
	}
	return hub
}

func TestQueueRejectsUnknownActor(t *testing.T) {
	hub := newTestHub(t, "queue-unknown")

	if _, ok, reason := hub.QueueDredge("ghost"); ok || reason != CommandRejectUnknownActor {
		t.Fatalf("expected unknown actor reject, got ok=%v reason=%q", ok, reason)
	}
	if snapshot := hub.TelemetrySnapshot(); snapshot.CommandsRejected != 1 {
		t.Fatalf("expected 1 rejected command, got %d", snapshot.CommandsRejected)
	}
}

func TestEnqueueCommandEnforcesPerActorLimit(t *testing.T) {
	hub := newTestHub(t, "queue-limit")
	baseTime := time.Unix(0, 0).UTC()
	hub.seedSession("crew-1", baseTime)

	limit := hub.config.PerActorLimit
	for i := 0; i < limit; i++ {
		if _, ok, reason := hub.QueueDredge("crew-1"); !ok {
			t.Fatalf("expected command %d to queue, got reject %q", i+1, reason)
		}
	}
	if _, ok, reason := hub.QueueDredge("crew-1"); ok || reason != CommandRejectQueueLimit {
		t.Fatalf("expected queue limit reject, got ok=%v reason=%q", ok, reason)
	}

	msg, _ := hub.advance(baseTime.Add(time.Second))
	if len(msg.Drops) != limit {
		t.Fatalf("expected %d drops after drain, got %d", limit, len(msg.Drops))
	}

	// Draining on advance frees the actor's budget again.
	if _, ok, reason := hub.QueueDredge("crew-1"); !ok {
		t.Fatalf("expected queueing to recover after drain, got reject %q", reason)
	}

	snapshot := hub.TelemetrySnapshot()
	if snapshot.CommandsProcessed != uint64(limit) {
		t.Fatalf("expected %d processed commands, got %d", limit, snapshot.CommandsProcessed)
	}
	if snapshot.CommandsRejected != 1 {
		t.Fatalf("expected 1 rejected command, got %d", snapshot.CommandsRejected)
	}
}

func TestAdvanceAppliesStagedCommands(t *testing.T) {
	hub := newTestHub(t, "staged-commands")
	baseTime := time.Unix(0, 0).UTC()
	sess := hub.seedSession("crew-1", baseTime)

	luck := 5.0
	if _, ok, reason := hub.QueueConfigure("crew-1", LoadoutPatch{Luck: &luck, AddPerks: []string{"tide-reader"}}); !ok {
		t.Fatalf("expected configure to queue, got reject %q", reason)
	}
	if _, ok, reason := hub.QueueDredge("crew-1"); !ok {
		t.Fatalf("expected dredge to queue, got reject %q", reason)
	}

	msg, toClose := hub.advance(baseTime.Add(time.Second))
	if len(toClose) != 0 {
		t.Fatalf("expected no pruned subscribers, got %d", len(toClose))
	}
	if msg.Tick != 1 || msg.Sequence != 1 {
		t.Fatalf("expected first tick and sequence, got tick %d sequence %d", msg.Tick, msg.Sequence)
	}
	if sess.loadout.Luck != 5 || !sess.loadout.Perks.Has("tide-reader") {
		t.Fatalf("expected configure applied before the dredge, got %+v", sess.loadout)
	}
	if len(msg.Drops) != 1 || msg.Drops[0].Actor != "crew-1" {
		t.Fatalf("expected one drop for crew-1, got %+v", msg.Drops)
	}
	if msg.Drops[0].Drop.Value <= 0 {
		t.Fatalf("expected a positive drop value, got %f", msg.Drops[0].Drop.Value)
	}
	if len(msg.Outcomes) == 0 {
		t.Fatalf("expected the drop to appear in broadcast outcomes")
	}
}

func TestAdvanceRoundSurfacesNewBiome(t *testing.T) {
	hub := newTestHub(t, "advance-round")
	baseTime := time.Unix(0, 0).UTC()
	hub.seedSession("crew-1", baseTime)

	if _, ok, reason := hub.QueueAdvance("crew-1"); !ok {
		t.Fatalf("expected advance to queue, got reject %q", reason)
	}

	msg, _ := hub.advance(baseTime.Add(time.Second))
	if msg.Round != 1 {
		t.Fatalf("expected round 1 after advance, got %d", msg.Round)
	}
	if msg.Biome.ID == "" {
		t.Fatalf("expected a current biome in the broadcast")
	}
}

func TestAdvancePrunesHeartbeatTimeouts(t *testing.T) {
	hub := newTestHub(t, "heartbeat-prune")
	baseTime := time.Unix(0, 0).UTC()
	hub.seedSession("crew-1", baseTime)

	if sessions := hub.DiagnosticsSnapshot(); len(sessions) != 1 {
		t.Fatalf("expected one session before pruning, got %d", len(sessions))
	}

	hub.advance(baseTime.Add(disconnectAfter + time.Second))

	if sessions := hub.DiagnosticsSnapshot(); len(sessions) != 0 {
		t.Fatalf("expected session pruned after heartbeat timeout, got %d", len(sessions))
	}
	if hub.Disconnect("crew-1") {
		t.Fatalf("expected disconnect of a pruned session to report false")
	}
}

func TestUpdateHeartbeatTracksRTT(t *testing.T) {
	hub := newTestHub(t, "heartbeat-rtt")
	received := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	hub.seedSession("crew-1", received)

	rtt, ok := hub.UpdateHeartbeat("crew-1", received, received.Add(-250*time.Millisecond).UnixMilli())
	if !ok || rtt != 250*time.Millisecond {
		t.Fatalf("expected 250ms RTT, got %v ok=%v", rtt, ok)
	}

	if _, ok := hub.UpdateHeartbeat("ghost", received, 0); ok {
		t.Fatalf("expected unknown session heartbeat to report false")
	}

	// Client clocks past the skew guard keep the previous reading.
	rtt, ok = hub.UpdateHeartbeat("crew-1", received, received.Add(10*time.Second).UnixMilli())
	if !ok || rtt != 250*time.Millisecond {
		t.Fatalf("expected skewed heartbeat to keep previous RTT, got %v", rtt)
	}
}

func TestQueueRestockRejectsUnknownKiosk(t *testing.T) {
	hub := newTestHub(t, "restock-unknown")
	hub.seedSession("crew-1", time.Unix(0, 0).UTC())

	if _, ok, reason := hub.QueueRestock("crew-1", "bait", 1); ok || reason != CommandRejectInvalidKiosk {
		t.Fatalf("expected invalid kiosk reject, got ok=%v reason=%q", ok, reason)
	}
}

func TestRestockFillsShelvesDeterministically(t *testing.T) {
	roll := func(t *testing.T) []string {
		t.Helper()
		hub := newTestHub(t, "restock-twin")
		baseTime := time.Unix(0, 0).UTC()
		hub.seedSession("crew-1", baseTime)

		if _, ok, reason := hub.QueueRestock("crew-1", "perks", 0); !ok {
			t.Fatalf("expected restock to queue, got reject %q", reason)
		}
		msg, _ := hub.advance(baseTime.Add(time.Second))
		if len(msg.Stock) != 1 || msg.Stock[0].Kiosk != "perks" {
			t.Fatalf("expected one perks stock roll, got %+v", msg.Stock)
		}

		items := msg.Stock[0].Items
		if len(items) != 3 {
			t.Fatalf("expected the default 3 shelf slots, got %d", len(items))
		}
		seen := make(map[string]struct{}, len(items))
		ids := make([]string, 0, len(items))
		for _, item := range items {
			if item.Price <= 0 {
				t.Fatalf("expected a positive price for %q, got %d", item.Entry.ID, item.Price)
			}
			if _, dup := seen[item.Entry.ID]; dup {
				t.Fatalf("expected distinct shelf entries, got duplicate %q", item.Entry.ID)
			}
			seen[item.Entry.ID] = struct{}{}
			ids = append(ids, item.Entry.ID)
		}
		return ids
	}

	first := roll(t)
	second := roll(t)
	if strings.Join(first, ",") != strings.Join(second, ",") {
		t.Fatalf("expected identical shelves for one seed, got %v and %v", first, second)
	}
}

func TestJoinSnapshotCarriesRunState(t *testing.T) {
	hub := newTestHub(t, "join-snapshot")

	response := hub.Join()
	if response.ID == "" {
		t.Fatalf("expected a session id")
	}
	if response.Ver != ProtocolVersion {
		t.Fatalf("expected protocol version %d, got %d", ProtocolVersion, response.Ver)
	}
	if response.RunID != hub.RunID() {
		t.Fatalf("expected run id %q, got %q", hub.RunID(), response.RunID)
	}
	if response.Seed != "join-snapshot" {
		t.Fatalf("expected seed %q, got %q", "join-snapshot", response.Seed)
	}
	if response.Round != 0 || response.Biome.ID != world.BiomeShoreline {
		t.Fatalf("expected the pre-departure shoreline, got round %d biome %q", response.Round, response.Biome.ID)
	}
	if response.Config.PityWindow <= 0 {
		t.Fatalf("expected a normalized config in the join snapshot, got %+v", response.Config)
	}
	if len(response.Kiosks) != 2 {
		t.Fatalf("expected both default kiosks, got %d", len(response.Kiosks))
	}
	if len(response.Journal) != 0 {
		t.Fatalf("expected an empty journal at tick 0, got %d records", len(response.Journal))
	}

	second := hub.Join()
	if second.ID == response.ID {
		t.Fatalf("expected distinct session ids, got %q twice", second.ID)
	}
	if sessions := hub.DiagnosticsSnapshot(); len(sessions) != 2 {
		t.Fatalf("expected two sessions after two joins, got %d", len(sessions))
	}
}

func TestResetWorldKeepsSessionsAndRestartsRun(t *testing.T) {
	hub := newTestHub(t, "reset-before")
	baseTime := time.Unix(0, 0).UTC()
	hub.seedSession("crew-1", baseTime)
	hub.advance(baseTime.Add(time.Second))

	if _, ok, reason := hub.QueueDredge("crew-1"); !ok {
		t.Fatalf("expected dredge to queue, got reject %q", reason)
	}

	before := hub.RunID()
	cfg := hub.CurrentConfig()
	cfg.Seed = "reset-after"
	if err := hub.ResetWorld(cfg); err != nil {
		t.Fatalf("failed to reset world: %v", err)
	}

	if hub.RunID() == before {
		t.Fatalf("expected a fresh run id after reset")
	}
	if hub.Tick() != 0 {
		t.Fatalf("expected tick reset to 0, got %d", hub.Tick())
	}
	if got := hub.CurrentConfig().Seed; got != "reset-after" {
		t.Fatalf("expected seed %q, got %q", "reset-after", got)
	}
	if sessions := hub.DiagnosticsSnapshot(); len(sessions) != 1 {
		t.Fatalf("expected session to survive the reset, got %d", len(sessions))
	}

	// Commands staged before the reset belong to the old run.
	msg, _ := hub.advance(baseTime.Add(2 * time.Second))
	if len(msg.Drops) != 0 {
		t.Fatalf("expected staged commands dropped on reset, got %d drops", len(msg.Drops))
	}
}

func TestCrewLoadoutFoldsSessions(t *testing.T) {
	hub := newTestHub(t, "crew-fold")
	baseTime := time.Unix(0, 0).UTC()

	first := hub.seedSession("crew-1", baseTime)
	second := hub.seedSession("crew-2", baseTime)

	luckA, rateA := 2.0, 2.0
	luckB, rateB := 3.0, 1.5
	first.loadout = applyLoadoutPatch(first.loadout, LoadoutPatch{Luck: &luckA, EventRate: &rateA, AddPerks: []string{"tide-reader"}})
	second.loadout = applyLoadoutPatch(second.loadout, LoadoutPatch{Luck: &luckB, EventRate: &rateB, AddPerks: []string{"deep-sense"}})

	hub.mu.Lock()
	crew := hub.crewLoadoutLocked()
	hub.mu.Unlock()

	if crew.Luck != 5 {
		t.Fatalf("expected crew luck 5, got %f", crew.Luck)
	}
	if crew.EventRate != 3 {
		t.Fatalf("expected crew event rate 3, got %f", crew.EventRate)
	}
	if !crew.Perks.Has("tide-reader") || !crew.Perks.Has("deep-sense") {
		t.Fatalf("expected the perk union, got %v", crew.Perks.Names())
	}
}

func TestApplyLoadoutPatch(t *testing.T) {
	luck := 4.0
	modChance := 0.5

	lo := player.Loadout{}
	lo = applyLoadoutPatch(lo, LoadoutPatch{
		Luck:            &luck,
		ModChance:       &modChance,
		AddPerks:        []string{"tide-reader", "deep-sense"},
		GuaranteedMods:  []string{"barnacled"},
		RarityOverrides: map[string]float64{"pearl-drift": 2},
	})
	if lo.Luck != 4 || lo.ModChance != 0.5 {
		t.Fatalf("expected scalar fields patched, got %+v", lo)
	}
	if !lo.Perks.Has("tide-reader") || !lo.Perks.Has("deep-sense") {
		t.Fatalf("expected perks added, got %v", lo.Perks.Names())
	}

	lo = applyLoadoutPatch(lo, LoadoutPatch{RemovePerks: []string{"deep-sense"}})
	if lo.Perks.Has("deep-sense") {
		t.Fatalf("expected deep-sense removed, got %v", lo.Perks.Names())
	}
	if !lo.Perks.Has("tide-reader") {
		t.Fatalf("expected tide-reader kept, got %v", lo.Perks.Names())
	}
	if len(lo.GuaranteedMods) != 1 || lo.GuaranteedMods[0] != "barnacled" {
		t.Fatalf("expected guaranteed mods kept, got %v", lo.GuaranteedMods)
	}

	// A nil map leaves overrides alone; an empty one clears them.
	lo = applyLoadoutPatch(lo, LoadoutPatch{})
	if len(lo.RarityOverrides) != 1 {
		t.Fatalf("expected overrides kept on an empty patch, got %v", lo.RarityOverrides)
	}
	lo = applyLoadoutPatch(lo, LoadoutPatch{RarityOverrides: map[string]float64{}})
	if len(lo.RarityOverrides) != 0 {
		t.Fatalf("expected overrides cleared, got %v", lo.RarityOverrides)
	}
}
