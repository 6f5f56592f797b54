// Package world holds the in-memory entity registry the combat core talks
// to: who exists, where they stand, what they carry and how they respawn.
package world

import (
	"context"
	"sort"
	"sync"

	"graveward/internal/combat"
	"graveward/internal/entity"
	"graveward/internal/items"
	"graveward/internal/platform/errors"
	"graveward/internal/stats"
	"graveward/internal/telemetry"
	"graveward/logging"
	logginglifecycle "graveward/logging/lifecycle"
)

// RespawnListener is told when a victim starts a new life. The loot manager
// implements it.
type RespawnListener interface {
	OnRespawn(victim entity.ID)
}

// RespawnListenerFunc adapts a function into a RespawnListener.
type RespawnListenerFunc func(victim entity.ID)

func (f RespawnListenerFunc) OnRespawn(victim entity.ID) {
	if f != nil {
		f(victim)
	}
}

// Deps bundles the collaborators of a World.
type Deps struct {
	Catalog   *stats.CatalogStore
	Vitals    *combat.Vitals
	Respawns  RespawnListener
	Publisher logging.Publisher
	Logger    telemetry.Logger
}

type actor struct {
	id       entity.ID
	kind     entity.Kind
	template string
	spawn    entity.Position
	position entity.Position

	connected      bool
	autoRetaliate  bool
	protectedUntil uint64
	pursuing       bool

	inventory []items.Item
}

func (a *actor) ref() entity.Ref {
	return entity.Ref{ID: a.id, Kind: a.kind}
}

// World is safe for concurrent use. Combat reads it from the simulation loop
// while loot workers and HTTP handlers touch inventories concurrently.
type World struct {
	cfg  Config
	deps Deps

	mu     sync.RWMutex
	actors map[entity.ID]*actor

	respawnMu sync.Mutex
	respawns  map[entity.ID]uint64
}

func New(cfg Config, deps Deps) (*World, error) {
	if deps.Catalog == nil {
		return nil, errors.New(errors.CodeInvalidArgument, "world requires a stats catalog")
	}
	if deps.Vitals == nil {
		deps.Vitals = combat.NewVitals(0)
	}
	if deps.Publisher == nil {
		deps.Publisher = logging.NopPublisher()
	}
	return &World{
		cfg:    cfg.normalized(),
		deps:   deps,
		actors:   make(map[entity.ID]*actor),
		respawns: make(map[entity.ID]uint64),
	}, nil
}

// Vitals exposes the health registry shared with the combat handlers.
func (w *World) Vitals() *combat.Vitals {
	return w.deps.Vitals
}

// SpawnPlayer connects a player built from the named template. Players start
// with their spawn grace active.
func (w *World) SpawnPlayer(ctx context.Context, id entity.ID, template string, pos entity.Position, tick uint64) error {
	return w.spawn(ctx, id, entity.KindPlayer, template, pos, tick, w.cfg.SpawnProtectionTicks)
}

// SpawnNPC places a non-player combatant built from the named template.
func (w *World) SpawnNPC(ctx context.Context, id entity.ID, template string, pos entity.Position, tick uint64) error {
	return w.spawn(ctx, id, entity.KindNPC, template, pos, tick, 0)
}

func (w *World) spawn(ctx context.Context, id entity.ID, kind entity.Kind, template string, pos entity.Position, tick, grace uint64) error {
	if id == 0 {
		return errors.New(errors.CodeInvalidArgument, "entity id must be non-zero")
	}
	tmpl, ok := w.deps.Catalog.Current().Template(template)
	if !ok {
		return errors.WithMetadata(errors.CodeNotFound, "unknown template", map[string]string{"template": template})
	}

	w.mu.Lock()
	if existing, exists := w.actors[id]; exists && existing.kind != kind {
		w.mu.Unlock()
		return errors.WithMetadata(errors.CodeInvalidState, "entity id already used", map[string]string{"entity": id.String()})
	}
	a := &actor{
		id:             id,
		kind:           kind,
		template:       template,
		spawn:          pos,
		position:       pos,
		connected:      true,
		autoRetaliate:  kind == entity.KindPlayer,
		protectedUntil: protectedUntil(tick, grace),
	}
	if previous, exists := w.actors[id]; exists {
		a.inventory = previous.inventory
	}
	w.actors[id] = a
	w.mu.Unlock()

	w.deps.Vitals.Register(id, tmpl.Stats.Levels.Hitpoints)
	logginglifecycle.EntitySpawned(ctx, w.deps.Publisher, tick, a.ref().Log(), logginglifecycle.SpawnPayload{
		X:         pos.X,
		Y:         pos.Y,
		Plane:     pos.Plane,
		Template:  template,
		Hitpoints: tmpl.Stats.Levels.Hitpoints,
	}, nil)
	return nil
}

func protectedUntil(tick, grace uint64) uint64 {
	if grace == 0 {
		return 0
	}
	return tick + grace
}

// Disconnect marks a player as gone. Combat must be told separately through
// the orchestrator.
func (w *World) Disconnect(ctx context.Context, id entity.ID, tick uint64, reason string) bool {
	w.mu.Lock()
	a, ok := w.actors[id]
	if ok {
		a.connected = false
		a.pursuing = false
	}
	w.mu.Unlock()
	if !ok {
		return false
	}
	logginglifecycle.EntityDisconnected(ctx, w.deps.Publisher, tick, a.ref().Log(), logginglifecycle.DisconnectedPayload{Reason: reason}, nil)
	return true
}

// Respawn starts a new life for a dead entity: health is restored, the
// entity returns to its respawn tile with a fresh grace and the loot manager
// stops treating the previous death as current.
func (w *World) Respawn(ctx context.Context, id entity.ID, tick uint64) error {
	current, _, ok := w.deps.Vitals.Health(id)
	if !ok {
		return errors.WithMetadata(errors.CodeNotFound, "unknown entity", map[string]string{"entity": id.String()})
	}
	if current > 0 {
		return errors.WithMetadata(errors.CodeInvalidState, "entity is alive", map[string]string{"entity": id.String()})
	}

	w.mu.Lock()
	a, ok := w.actors[id]
	if !ok {
		w.mu.Unlock()
		return errors.WithMetadata(errors.CodeNotFound, "unknown entity", map[string]string{"entity": id.String()})
	}
	if a.kind == entity.KindPlayer {
		a.position = w.cfg.RespawnPoint
	} else {
		a.position = a.spawn
	}
	a.pursuing = false
	a.protectedUntil = protectedUntil(tick, w.cfg.RespawnProtectionTicks)
	pos := a.position
	ref := a.ref()
	template := a.template
	w.mu.Unlock()

	if w.deps.Respawns != nil {
		w.deps.Respawns.OnRespawn(id)
	}
	w.deps.Vitals.Restore(id)
	_, max, _ := w.deps.Vitals.Health(id)
	logginglifecycle.EntityRespawned(ctx, w.deps.Publisher, tick, ref.Log(), logginglifecycle.SpawnPayload{
		X:         pos.X,
		Y:         pos.Y,
		Plane:     pos.Plane,
		Template:  template,
		Hitpoints: max,
	}, nil)
	w.logf("world: entity %s respawned at tick %d", id, tick)
	return nil
}

// SetAutoRetaliate toggles whether a player fights back when attacked.
func (w *World) SetAutoRetaliate(id entity.ID, enabled bool) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	a, ok := w.actors[id]
	if !ok || a.kind != entity.KindPlayer {
		return false
	}
	a.autoRetaliate = enabled
	return true
}

// PlayerState implements combat.PlayerDirectory.
func (w *World) PlayerState(id entity.ID) (combat.PlayerState, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	a, ok := w.actors[id]
	if !ok || a.kind != entity.KindPlayer {
		return combat.PlayerState{}, false
	}
	return combat.PlayerState{
		Connected:      a.connected,
		AutoRetaliate:  a.autoRetaliate,
		ProtectedUntil: a.protectedUntil,
	}, true
}

// NPCState implements combat.NPCDirectory. Aggression and attackability come
// from the template in the current catalog, so a catalog reload applies to
// living NPCs.
func (w *World) NPCState(id entity.ID) (combat.NPCState, bool) {
	w.mu.RLock()
	a, ok := w.actors[id]
	var template string
	var until uint64
	if ok {
		ok = a.kind == entity.KindNPC
		template = a.template
		until = a.protectedUntil
	}
	w.mu.RUnlock()
	if !ok {
		return combat.NPCState{}, false
	}
	tmpl, found := w.deps.Catalog.Current().Template(template)
	if !found {
		return combat.NPCState{ProtectedUntil: until}, true
	}
	return combat.NPCState{
		Aggressive:     tmpl.Aggressive,
		Attackable:     tmpl.Attackable,
		ProtectedUntil: until,
	}, true
}

// CombatantStats implements combat.StatsProvider with a fresh template copy.
func (w *World) CombatantStats(id entity.ID) (stats.CombatantStats, error) {
	w.mu.RLock()
	a, ok := w.actors[id]
	var template string
	if ok {
		template = a.template
	}
	w.mu.RUnlock()
	if !ok {
		return stats.CombatantStats{}, errors.WithMetadata(errors.CodeNotFound, "unknown entity", map[string]string{"entity": id.String()})
	}
	tmpl, found := w.deps.Catalog.Current().Template(template)
	if !found {
		return stats.CombatantStats{}, errors.WithMetadata(errors.CodeNotFound, "template no longer in catalog", map[string]string{"template": template})
	}
	return tmpl.Stats, nil
}

// Kind reports the kind of a registered entity.
func (w *World) Kind(id entity.ID) (entity.Kind, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	a, ok := w.actors[id]
	if !ok {
		return entity.KindUnknown, false
	}
	return a.kind, true
}

// Entities lists every registered entity ordered by id.
func (w *World) Entities() []entity.Ref {
	w.mu.RLock()
	refs := make([]entity.Ref, 0, len(w.actors))
	for _, a := range w.actors {
		refs = append(refs, a.ref())
	}
	w.mu.RUnlock()
	sort.Slice(refs, func(i, j int) bool { return refs[i].ID < refs[j].ID })
	return refs
}

func (w *World) lookup(id entity.ID) (*actor, error) {
	a, ok := w.actors[id]
	if !ok {
		return nil, errors.WithMetadata(errors.CodeNotFound, "unknown entity", map[string]string{"entity": id.String()})
	}
	return a, nil
}

func (w *World) logf(format string, args ...any) {
	if w.deps.Logger != nil {
		w.deps.Logger.Printf(format, args...)
	}
}
