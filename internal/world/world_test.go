package world

import (
	"context"
	"testing"

	"graveward/internal/combat"
	"graveward/internal/entity"
	"graveward/internal/items"
	"graveward/internal/platform/errors"
	"graveward/internal/stats"
	logginglifecycle "graveward/logging/lifecycle"
	"graveward/logging/sinks"
)

type respawnRecorder struct {
	victims []entity.ID
}

func (r *respawnRecorder) OnRespawn(victim entity.ID) {
	r.victims = append(r.victims, victim)
}

func newTestWorld(t *testing.T, cfg Config) (*World, *respawnRecorder, *sinks.Memory) {
	t.Helper()
	catalog, err := stats.NewCatalogStore("", nil)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	respawns := &respawnRecorder{}
	events := sinks.NewMemory()
	w, err := New(cfg, Deps{Catalog: catalog, Respawns: respawns, Publisher: events})
	if err != nil {
		t.Fatalf("new world: %v", err)
	}
	return w, respawns, events
}

func kill(w *World, id entity.ID, tick uint64) {
	w.Vitals().Apply(id, combat.DamageOutcome{
		ID:     combat.OutcomeID{Attacker: 999, Tick: tick},
		Hit:    true,
		Amount: 10_000,
	})
}

func TestNewRequiresCatalog(t *testing.T) {
	if _, err := New(DefaultConfig(), Deps{}); !errors.HasCode(err, errors.CodeInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestSpawnPlayerAppliesGraceAndTemplateHealth(t *testing.T) {
	w, _, events := newTestWorld(t, DefaultConfig())
	ctx := context.Background()
	if err := w.SpawnPlayer(ctx, 1, "adventurer", entity.Position{X: 3, Y: 4}, 10); err != nil {
		t.Fatalf("spawn: %v", err)
	}

	state, ok := w.PlayerState(1)
	if !ok || !state.Connected || !state.AutoRetaliate {
		t.Fatalf("expected connected auto-retaliating player, got %+v", state)
	}
	if state.ProtectedUntil != 15 {
		t.Fatalf("expected grace until tick 15, got %d", state.ProtectedUntil)
	}
	current, max, _ := w.Vitals().Health(1)
	if current != 60 || max != 60 {
		t.Fatalf("expected 60/60 health, got %d/%d", current, max)
	}
	if got := len(events.OfType(logginglifecycle.EventEntitySpawned)); got != 1 {
		t.Fatalf("expected one spawn event, got %d", got)
	}
	if _, ok := w.NPCState(1); ok {
		t.Fatalf("expected player to be absent from the npc directory")
	}
}

func TestSpawnRejectsUnknownTemplateAndZeroID(t *testing.T) {
	w, _, _ := newTestWorld(t, DefaultConfig())
	ctx := context.Background()
	if err := w.SpawnNPC(ctx, 5, "dragon", entity.Position{}, 0); !errors.HasCode(err, errors.CodeNotFound) {
		t.Fatalf("expected not found for unknown template, got %v", err)
	}
	if err := w.SpawnNPC(ctx, 0, "goblin", entity.Position{}, 0); !errors.HasCode(err, errors.CodeInvalidArgument) {
		t.Fatalf("expected invalid argument for zero id, got %v", err)
	}
	if err := w.SpawnPlayer(ctx, 6, "adventurer", entity.Position{}, 0); err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if err := w.SpawnNPC(ctx, 6, "goblin", entity.Position{}, 0); !errors.HasCode(err, errors.CodeInvalidState) {
		t.Fatalf("expected invalid state when reusing a player id, got %v", err)
	}
}

func TestNPCStateFollowsTemplate(t *testing.T) {
	w, _, _ := newTestWorld(t, DefaultConfig())
	ctx := context.Background()
	if err := w.SpawnNPC(ctx, 20, "goblin", entity.Position{}, 0); err != nil {
		t.Fatalf("spawn goblin: %v", err)
	}
	if err := w.SpawnNPC(ctx, 21, "training_dummy", entity.Position{}, 0); err != nil {
		t.Fatalf("spawn dummy: %v", err)
	}
	goblin, _ := w.NPCState(20)
	if !goblin.Aggressive || !goblin.Attackable {
		t.Fatalf("expected aggressive attackable goblin, got %+v", goblin)
	}
	dummy, _ := w.NPCState(21)
	if dummy.Aggressive || !dummy.Attackable {
		t.Fatalf("expected passive attackable dummy, got %+v", dummy)
	}
	if _, ok := w.PlayerState(20); ok {
		t.Fatalf("expected npc to be absent from the player directory")
	}
}

func TestCombatantStatsReturnsTemplateSnapshot(t *testing.T) {
	w, _, _ := newTestWorld(t, DefaultConfig())
	if err := w.SpawnPlayer(context.Background(), 1, "archer", entity.Position{}, 0); err != nil {
		t.Fatalf("spawn: %v", err)
	}
	snapshot, err := w.CombatantStats(1)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if snapshot.Style != stats.StyleRanged || snapshot.AttackRange != 7 {
		t.Fatalf("expected ranged archer with range 7, got %+v", snapshot)
	}
	snapshot.Levels.Ranged = 1
	again, _ := w.CombatantStats(1)
	if again.Levels.Ranged != 70 {
		t.Fatalf("expected snapshots not to alias, got ranged %d", again.Levels.Ranged)
	}
	if _, err := w.CombatantStats(404); !errors.HasCode(err, errors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestInRangeUsesStyleReach(t *testing.T) {
	w, _, _ := newTestWorld(t, DefaultConfig())
	ctx := context.Background()
	_ = w.SpawnPlayer(ctx, 1, "archer", entity.Position{X: 0, Y: 0}, 0)
	_ = w.SpawnNPC(ctx, 2, "goblin", entity.Position{X: 5, Y: 2}, 0)
	_ = w.SpawnNPC(ctx, 3, "goblin", entity.Position{X: 1, Y: 1}, 0)
	_ = w.SpawnNPC(ctx, 4, "goblin", entity.Position{X: 1, Y: 1, Plane: 1}, 0)

	if !w.InRange(1, 2, stats.StyleRanged) {
		t.Fatalf("expected goblin at distance 5 to be within ranged reach 7")
	}
	if w.InRange(1, 2, stats.StyleSlash) {
		t.Fatalf("expected goblin at distance 5 to be outside melee reach")
	}
	if !w.InRange(1, 3, stats.StyleSlash) {
		t.Fatalf("expected diagonal neighbour to be within melee reach")
	}
	if w.InRange(1, 4, stats.StyleRanged) {
		t.Fatalf("expected a different plane to be unreachable")
	}
	if w.InRange(1, 404, stats.StyleRanged) {
		t.Fatalf("expected unknown target to be out of range")
	}
}

func TestPursuitClearsOnMove(t *testing.T) {
	w, _, _ := newTestWorld(t, DefaultConfig())
	_ = w.SpawnPlayer(context.Background(), 1, "adventurer", entity.Position{}, 0)
	if err := w.SetPursuing(1, true); err != nil {
		t.Fatalf("pursue: %v", err)
	}
	if !w.IsPursuing(1) {
		t.Fatalf("expected pursuit to be recorded")
	}
	if err := w.MoveTo(1, entity.Position{X: 2}); err != nil {
		t.Fatalf("move: %v", err)
	}
	if w.IsPursuing(1) {
		t.Fatalf("expected move to clear pursuit")
	}
	if pos, _ := w.Position(1); pos.X != 2 {
		t.Fatalf("expected position x=2, got %+v", pos)
	}
	if err := w.MoveTo(404, entity.Position{}); !errors.HasCode(err, errors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRespawnRestoresHealthAndNotifiesLoot(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RespawnPoint = entity.Position{X: 50, Y: 50}
	w, respawns, events := newTestWorld(t, cfg)
	ctx := context.Background()
	_ = w.SpawnPlayer(ctx, 1, "adventurer", entity.Position{X: 3}, 0)

	if err := w.Respawn(ctx, 1, 20); !errors.HasCode(err, errors.CodeInvalidState) {
		t.Fatalf("expected living entity to refuse respawn, got %v", err)
	}

	kill(w, 1, 20)
	if err := w.Respawn(ctx, 1, 30); err != nil {
		t.Fatalf("respawn: %v", err)
	}
	current, max, _ := w.Vitals().Health(1)
	if current != max {
		t.Fatalf("expected full health after respawn, got %d/%d", current, max)
	}
	if len(respawns.victims) != 1 || respawns.victims[0] != 1 {
		t.Fatalf("expected loot to hear about the respawn, got %v", respawns.victims)
	}
	if pos, _ := w.Position(1); pos != cfg.RespawnPoint {
		t.Fatalf("expected player at respawn point, got %+v", pos)
	}
	state, _ := w.PlayerState(1)
	if state.ProtectedUntil != 40 {
		t.Fatalf("expected respawn grace until tick 40, got %d", state.ProtectedUntil)
	}
	if got := len(events.OfType(logginglifecycle.EventEntityRespawned)); got != 1 {
		t.Fatalf("expected one respawn event, got %d", got)
	}
}

func TestNPCRespawnsAtSpawnTile(t *testing.T) {
	w, _, _ := newTestWorld(t, DefaultConfig())
	ctx := context.Background()
	spawn := entity.Position{X: 7, Y: 9}
	_ = w.SpawnNPC(ctx, 2, "goblin", spawn, 0)
	_ = w.MoveTo(2, entity.Position{X: 1})
	kill(w, 2, 5)
	if err := w.Respawn(ctx, 2, 6); err != nil {
		t.Fatalf("respawn: %v", err)
	}
	if pos, _ := w.Position(2); pos != spawn {
		t.Fatalf("expected npc back at %+v, got %+v", spawn, pos)
	}
}

func TestDisconnectKeepsInventory(t *testing.T) {
	w, _, _ := newTestWorld(t, DefaultConfig())
	ctx := context.Background()
	_ = w.SpawnPlayer(ctx, 1, "adventurer", entity.Position{}, 0)
	_ = w.Give(1, items.Item{ID: "sword-1", Type: "sword", Quantity: 1})
	if !w.Disconnect(ctx, 1, 3, "client_closed") {
		t.Fatalf("expected disconnect to succeed")
	}
	state, _ := w.PlayerState(1)
	if state.Connected {
		t.Fatalf("expected player to be disconnected")
	}
	_ = w.SpawnPlayer(ctx, 1, "adventurer", entity.Position{}, 10)
	carried, _ := w.Inventory(1)
	if !carried.Contains("sword-1") {
		t.Fatalf("expected reconnecting player to keep the sword, got %+v", carried)
	}
	if w.Disconnect(ctx, 404, 3, "client_closed") {
		t.Fatalf("expected unknown entity disconnect to report false")
	}
}
