package combat

import "graveward/internal/entity"

// NPCState is what the NPC directory knows about a non-player combatant.
type NPCState struct {
	Aggressive bool
	Attackable bool
	// ProtectedUntil is the last tick of the respawn grace. Zero
	// means no grace.
	ProtectedUntil uint64
}

type NPCDirectory interface {
	NPCState(id entity.ID) (NPCState, bool)
}

// NPCHandler applies damage to non-player combatants.
type NPCHandler struct {
	Vitals      *Vitals
	NPCs        NPCDirectory
	CurrentTick func() uint64
}

func (h *NPCHandler) state(id entity.ID) (NPCState, bool) {
	if h == nil || h.NPCs == nil {
		return NPCState{}, false
	}
	return h.NPCs.NPCState(id)
}

func (h *NPCHandler) ApplyDamage(target entity.ID, outcome DamageOutcome) int {
	state, ok := h.state(target)
	if !ok || !state.Attackable {
		return 0
	}
	tick := outcome.ID.Tick
	if h.CurrentTick != nil {
		tick = h.CurrentTick()
	}
	if h.IsProtected(target, tick) {
		return 0
	}
	return h.Vitals.Apply(target, outcome)
}

func (h *NPCHandler) Health(target entity.ID) int {
	if h == nil || h.Vitals == nil {
		return 0
	}
	current, _, _ := h.Vitals.Health(target)
	return current
}

func (h *NPCHandler) IsAlive(target entity.ID) bool {
	if _, ok := h.state(target); !ok {
		return false
	}
	return h.Health(target) > 0
}

// CanRetaliate reports whether the NPC fights back. Only aggressive NPCs do.
func (h *NPCHandler) CanRetaliate(target entity.ID) bool {
	state, ok := h.state(target)
	return ok && state.Aggressive && h.IsAlive(target)
}

func (h *NPCHandler) IsAttackable(target entity.ID) bool {
	state, ok := h.state(target)
	return ok && state.Attackable && h.IsAlive(target)
}

func (h *NPCHandler) IsProtected(target entity.ID, tick uint64) bool {
	state, ok := h.state(target)
	return ok && inGrace(state.ProtectedUntil, tick)
}
