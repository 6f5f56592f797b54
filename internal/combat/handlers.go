package combat

import (
	"graveward/internal/entity"
)

// Damageable is implemented once per entity kind. The orchestrator only
// talks to entities through it.
type Damageable interface {
	// ApplyDamage applies outcome to target and returns the damage actually
	// dealt. It is idempotent per outcome id and applies 0 to dead or
	// protected targets.
	ApplyDamage(target entity.ID, outcome DamageOutcome) int
	Health(target entity.ID) int
	IsAlive(target entity.ID) bool
	CanRetaliate(target entity.ID) bool
	IsAttackable(target entity.ID) bool
	IsProtected(target entity.ID, tick uint64) bool
}

// Handlers maps entity kinds onto their Damageable implementation.
type Handlers struct {
	byKind map[entity.Kind]Damageable
}

func NewHandlers() *Handlers {
	return &Handlers{byKind: make(map[entity.Kind]Damageable)}
}

// Register installs handler for kind, replacing any previous one.
func (h *Handlers) Register(kind entity.Kind, handler Damageable) *Handlers {
	h.byKind[kind] = handler
	return h
}

// For returns the handler of kind. Unknown kinds get a handler that treats
// every entity as unattackable.
func (h *Handlers) For(kind entity.Kind) Damageable {
	if h != nil {
		if handler, ok := h.byKind[kind]; ok && handler != nil {
			return handler
		}
	}
	return unknownHandler{}
}

type unknownHandler struct{}

func (unknownHandler) ApplyDamage(entity.ID, DamageOutcome) int { return 0 }
func (unknownHandler) Health(entity.ID) int                     { return 0 }
func (unknownHandler) IsAlive(entity.ID) bool                   { return false }
func (unknownHandler) CanRetaliate(entity.ID) bool              { return false }
func (unknownHandler) IsAttackable(entity.ID) bool              { return false }
func (unknownHandler) IsProtected(entity.ID, uint64) bool       { return false }

// inGrace reports whether tick falls inside a grace ending at until. An
// until of zero is the unset value and never protects.
func inGrace(until, tick uint64) bool {
	return until != 0 && tick <= until
}
