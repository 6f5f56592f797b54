package combat

import (
	"context"
	"fmt"
	"sync"

	"graveward/internal/entity"
	"graveward/internal/stats"
	"graveward/logging/sinks"
)

type fakeStats struct {
	byID map[entity.ID]stats.CombatantStats
}

func (f *fakeStats) CombatantStats(id entity.ID) (stats.CombatantStats, error) {
	s, ok := f.byID[id]
	if !ok {
		return stats.CombatantStats{}, fmt.Errorf("no stats for %d", id)
	}
	return s, nil
}

type fakeMovement struct {
	outOfRange map[entity.ID]bool
	pursuing   map[entity.ID]bool
	positions  map[entity.ID]entity.Position
}

func newFakeMovement() *fakeMovement {
	return &fakeMovement{
		outOfRange: make(map[entity.ID]bool),
		pursuing:   make(map[entity.ID]bool),
		positions:  make(map[entity.ID]entity.Position),
	}
}

func (f *fakeMovement) Position(id entity.ID) (entity.Position, bool) {
	pos, ok := f.positions[id]
	return pos, ok
}

func (f *fakeMovement) InRange(attacker, _ entity.ID, _ stats.Style) bool {
	return !f.outOfRange[attacker]
}

func (f *fakeMovement) IsPursuing(id entity.ID) bool {
	return f.pursuing[id]
}

type fakePlayers struct {
	states map[entity.ID]PlayerState
}

func (f *fakePlayers) PlayerState(id entity.ID) (PlayerState, bool) {
	s, ok := f.states[id]
	return s, ok
}

type fakeNPCs struct {
	states map[entity.ID]NPCState
}

func (f *fakeNPCs) NPCState(id entity.ID) (NPCState, bool) {
	s, ok := f.states[id]
	return s, ok
}

type fakeDeathSink struct {
	mu       sync.Mutex
	notices  []DeathNotice
	failures int
}

func (f *fakeDeathSink) OnDeath(_ context.Context, notice DeathNotice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return fmt.Errorf("record store unavailable")
	}
	f.notices = append(f.notices, notice)
	return nil
}

func (f *fakeDeathSink) recorded() []DeathNotice {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]DeathNotice(nil), f.notices...)
}

// hitRoller always hits and deals min(damage, maxHit). Every hit consumes
// exactly two draws: the accuracy draw then the damage draw.
type hitRoller struct {
	damage int64
	calls  int
}

func (r *hitRoller) Int63n(n int64) int64 {
	r.calls++
	if r.calls%2 == 1 {
		return 0
	}
	if r.damage >= n {
		return n - 1
	}
	return r.damage
}

// missRoller always misses.
type missRoller struct{}

func (missRoller) Int63n(n int64) int64 { return n - 1 }

func baseStats() stats.CombatantStats {
	return stats.CombatantStats{
		Levels:           stats.Levels{Attack: 50, Strength: 50, Defence: 50, Ranged: 1, Magic: 1, Hitpoints: 50},
		AttackSpeedTicks: 4,
		AttackRange:      1,
		Style:            stats.StyleSlash,
	}.WithMaxHits()
}

type harness struct {
	orch     *Orchestrator
	vitals   *Vitals
	players  *fakePlayers
	npcs     *fakeNPCs
	stats    *fakeStats
	movement *fakeMovement
	deaths   *fakeDeathSink
	events   *sinks.Memory
	tick     uint64
}

func newHarness(cfg Config, roller Roller) *harness {
	h := &harness{
		vitals:   NewVitals(0),
		players:  &fakePlayers{states: make(map[entity.ID]PlayerState)},
		npcs:     &fakeNPCs{states: make(map[entity.ID]NPCState)},
		stats:    &fakeStats{byID: make(map[entity.ID]stats.CombatantStats)},
		movement: newFakeMovement(),
		deaths:   &fakeDeathSink{},
		events:   sinks.NewMemory(),
	}
	handlers := NewHandlers().
		Register(entity.KindPlayer, &PlayerHandler{Vitals: h.vitals, Players: h.players}).
		Register(entity.KindNPC, &NPCHandler{Vitals: h.vitals, NPCs: h.npcs})
	guard := NewGuard(GuardConfig{StaleAfterTicks: 100}, GuardDeps{Publisher: h.events})
	h.orch = NewOrchestrator(cfg, Deps{
		Stats:     h.stats,
		Movement:  h.movement,
		Handlers:  handlers,
		Guard:     guard,
		Deaths:    h.deaths,
		Publisher: h.events,
		Roller:    roller,
	})
	return h
}

func (h *harness) addPlayer(id entity.ID, hp int, s stats.CombatantStats) {
	h.players.states[id] = PlayerState{Connected: true, AutoRetaliate: true}
	h.stats.byID[id] = s
	h.vitals.Register(id, hp)
}

func (h *harness) addNPC(id entity.ID, hp int, s stats.CombatantStats, aggressive bool) {
	h.npcs.states[id] = NPCState{Aggressive: aggressive, Attackable: true}
	h.stats.byID[id] = s
	h.vitals.Register(id, hp)
}

func (h *harness) attack(attacker entity.ID, attackerKind entity.Kind, target entity.ID, targetKind entity.Kind) (Verdict, error) {
	return h.orch.RequestAttack(context.Background(), AttackRequest{
		AttackerID:   attacker,
		AttackerKind: attackerKind,
		TargetID:     target,
		TargetKind:   targetKind,
		Tick:         h.tick,
		Origin:       OriginClient,
	})
}

func (h *harness) step() {
	h.tick++
	_ = h.orch.Tick(context.Background(), h.tick)
}
