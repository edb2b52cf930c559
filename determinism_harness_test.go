package server

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"testing"
	"time"

	"drift-and-dredge/server/internal/journal"
)

const (
	determinismHarnessSeed      = "idiom-harness-drift"
	determinismHarnessActorID   = "determinism-crew"
	determinismHarnessTickCount = 8

	determinismHarnessDredges  = 6
	determinismHarnessRestocks = 2
	determinismHarnessAdvances = 2
)

type harnessTick struct {
	Commands []Command
}

type harnessBaseline struct {
	Seed            string
	Ticks           int
	StateChecksum   string
	JournalChecksum string
	TotalDrops      int
	TotalStockRolls int
	TotalOutcomes   int
}

// TestDeterminismHarnessIsReproducible replays the same scripted run twice
// and demands byte-identical broadcast and journal streams. The script mixes
// every command type so a regression anywhere in the staged pipeline moves
// the checksum.
func TestDeterminismHarnessIsReproducible(t *testing.T) {
	first := runDeterminismHarness(t)
	second := runDeterminismHarness(t)

	if first != second {
		t.Fatalf("expected identical baselines across runs, got %+v and %+v", first, second)
	}
	if first.Ticks != determinismHarnessTickCount {
		t.Fatalf("expected %d ticks, got %d", determinismHarnessTickCount, first.Ticks)
	}
	if first.TotalDrops != determinismHarnessDredges {
		t.Fatalf("expected %d drops from the script, got %d", determinismHarnessDredges, first.TotalDrops)
	}
	if first.TotalStockRolls != determinismHarnessRestocks {
		t.Fatalf("expected %d stock rolls from the script, got %d", determinismHarnessRestocks, first.TotalStockRolls)
	}
	// Each dredge journals a drop and each round advance journals a biome
	// record; event records only add to that floor.
	if floor := determinismHarnessDredges + determinismHarnessAdvances; first.TotalOutcomes < floor {
		t.Fatalf("expected at least %d journal outcomes, got %d", floor, first.TotalOutcomes)
	}
	t.Logf(
		"determinism baseline: seed=%s state=%s journal=%s drops=%d stock=%d outcomes=%d",
		first.Seed,
		first.StateChecksum,
		first.JournalChecksum,
		first.TotalDrops,
		first.TotalStockRolls,
		first.TotalOutcomes,
	)
}

func runDeterminismHarness(t *testing.T) harnessBaseline {
	t.Helper()

	cfg := DefaultHubConfig()
	cfg.World.Seed = determinismHarnessSeed
	hub, err := NewHubWithConfig(cfg)
	if err != nil {
		t.Fatalf("failed to build hub: %v", err)
	}

	baseTime := time.Unix(0, 0).UTC()
	hub.seedSession(determinismHarnessActorID, baseTime)

	script := buildDeterminismHarnessScript()
	tickDuration := time.Second / time.Duration(hub.TickRate())
	current := baseTime

	stateHasher := sha256.New()
	totalDrops := 0
	totalStock := 0
	totalOutcomes := 0

	for idx, tick := range script {
		issueAt := current
		for _, template := range tick.Commands {
			cmd := cloneHarnessCommand(template)
			if cmd.ActorID == "" {
				cmd.ActorID = determinismHarnessActorID
			}
			cmd.OriginTick = hub.tick.Load()
			if cmd.IssuedAt.IsZero() {
				cmd.IssuedAt = issueAt
			}
			if ok, reason := hub.enqueueCommand(cmd); !ok {
				t.Fatalf("failed to enqueue command for tick %d: %s", idx+1, reason)
			}
		}

		current = current.Add(tickDuration)
		msg, toClose := hub.advance(current)
		if len(toClose) != 0 {
			t.Fatalf("expected no pruned subscribers on tick %d, got %d", idx+1, len(toClose))
		}

		envelope := struct {
			Tick     uint64           `json:"tick"`
			Round    int              `json:"round"`
			Biome    string           `json:"biome"`
			Drops    []dropResult     `json:"drops,omitempty"`
			Stock    []stockResult    `json:"stock,omitempty"`
			Outcomes []journal.Record `json:"outcomes,omitempty"`
		}{
			Tick:     msg.Tick,
			Round:    msg.Round,
			Biome:    msg.Biome.ID,
			Drops:    msg.Drops,
			Stock:    msg.Stock,
			Outcomes: msg.Outcomes,
		}
		stateHasher.Write(marshalHarnessPayload(t, envelope))
		totalDrops += len(msg.Drops)
		totalStock += len(msg.Stock)
		totalOutcomes += len(msg.Outcomes)
	}

	journalHasher := sha256.New()
	journalHasher.Write(marshalHarnessPayload(t, hub.world.SnapshotOutcomes()))

	return harnessBaseline{
		Seed:            determinismHarnessSeed,
		Ticks:           len(script),
		StateChecksum:   hex.EncodeToString(stateHasher.Sum(nil)),
		JournalChecksum: hex.EncodeToString(journalHasher.Sum(nil)),
		TotalDrops:      totalDrops,
		TotalStockRolls: totalStock,
		TotalOutcomes:   totalOutcomes,
	}
}

// buildDeterminismHarnessScript covers the full command surface: a loadout
// patch, dredges alone and doubled up, restocks on both kiosks, and two
// round advances.
func buildDeterminismHarnessScript() []harnessTick {
	luck := 2.0
	eventRate := 3.0

	return []harnessTick{
		{Commands: []Command{
			{
				Type: CommandConfigure,
				Configure: &ConfigureCommand{Patch: LoadoutPatch{
					Luck:      &luck,
					EventRate: &eventRate,
					AddPerks:  []string{"tide-reader"},
				}},
			},
		}},
		{Commands: []Command{
			{Type: CommandDredge},
		}},
		{Commands: []Command{
			{Type: CommandDredge},
			{Type: CommandRestock, Restock: &RestockCommand{Kiosk: "perks"}},
		}},
		{Commands: []Command{
			{Type: CommandAdvance},
		}},
		{Commands: []Command{
			{Type: CommandDredge},
			{Type: CommandDredge},
		}},
		{Commands: []Command{
			{Type: CommandRestock, Restock: &RestockCommand{Kiosk: "augments", Slots: 2}},
		}},
		{Commands: []Command{
			{Type: CommandAdvance},
			{Type: CommandDredge},
		}},
		{Commands: []Command{
			{Type: CommandDredge},
		}},
	}
}

func cloneHarnessCommand(cmd Command) Command {
	clone := cmd
	if cmd.Configure != nil {
		payload := *cmd.Configure
		clone.Configure = &payload
	}
	if cmd.Restock != nil {
		payload := *cmd.Restock
		clone.Restock = &payload
	}
	return clone
}

func marshalHarnessPayload(t *testing.T, payload any) []byte {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal harness payload: %v", err)
	}
	return data
}
