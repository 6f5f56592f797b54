package combat

import "graveward/internal/entity"

// PlayerState is what the player directory knows about a connected player.
type PlayerState struct {
	Connected     bool
	AutoRetaliate bool
	// ProtectedUntil is the last tick of the spawn or loading grace. Zero
	// means no grace.
	ProtectedUntil uint64
}

// PlayerDirectory is implemented by the player registry.
type PlayerDirectory interface {
	PlayerState(id entity.ID) (PlayerState, bool)
}

// PlayerHandler applies damage to players.
type PlayerHandler struct {
	Vitals  *Vitals
	Players PlayerDirectory
	// CurrentTick lets ApplyDamage honour spawn grace without a tick argument.
	CurrentTick func() uint64
}

func (h *PlayerHandler) state(id entity.ID) (PlayerState, bool) {
	if h == nil || h.Players == nil {
		return PlayerState{}, false
	}
	return h.Players.PlayerState(id)
}

func (h *PlayerHandler) ApplyDamage(target entity.ID, outcome DamageOutcome) int {
	state, ok := h.state(target)
	if !ok || !state.Connected {
		return 0
	}
	if h.IsProtected(target, h.now(outcome)) {
		return 0
	}
	return h.Vitals.Apply(target, outcome)
}

func (h *PlayerHandler) now(outcome DamageOutcome) uint64 {
	if h.CurrentTick != nil {
		return h.CurrentTick()
	}
	return outcome.ID.Tick
}

func (h *PlayerHandler) Health(target entity.ID) int {
	if h == nil || h.Vitals == nil {
		return 0
	}
	current, _, _ := h.Vitals.Health(target)
	return current
}

func (h *PlayerHandler) IsAlive(target entity.ID) bool {
	if _, ok := h.state(target); !ok {
		return false
	}
	return h.Health(target) > 0
}

func (h *PlayerHandler) CanRetaliate(target entity.ID) bool {
	state, ok := h.state(target)
	return ok && state.Connected && state.AutoRetaliate && h.IsAlive(target)
}

// IsAttackable reports whether target is a connected, living player.
// Disconnected players are removed from combat, not left as punching bags.
func (h *PlayerHandler) IsAttackable(target entity.ID) bool {
	state, ok := h.state(target)
	return ok && state.Connected && h.IsAlive(target)
}

func (h *PlayerHandler) IsProtected(target entity.ID, tick uint64) bool {
	state, ok := h.state(target)
	return ok && inGrace(state.ProtectedUntil, tick)
}
