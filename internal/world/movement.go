package world

import (
	"graveward/internal/entity"
	"graveward/internal/stats"
)

// Position implements combat.MovementProvider.
func (w *World) Position(id entity.ID) (entity.Position, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	a, ok := w.actors[id]
	if !ok {
		return entity.Position{}, false
	}
	return a.position, true
}

// MoveTo teleports an entity to pos and clears any pursuit. Path execution
// happens outside the combat core; callers report the tiles they reach.
func (w *World) MoveTo(id entity.ID, pos entity.Position) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	a, err := w.lookup(id)
	if err != nil {
		return err
	}
	a.position = pos
	a.pursuing = false
	return nil
}

// SetPursuing records whether an entity is walking toward its target.
func (w *World) SetPursuing(id entity.ID, pursuing bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	a, err := w.lookup(id)
	if err != nil {
		return err
	}
	a.pursuing = pursuing
	return nil
}

// IsPursuing implements combat.MovementProvider.
func (w *World) IsPursuing(id entity.ID) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	a, ok := w.actors[id]
	return ok && a.pursuing
}

// InRange reports whether target is within the attacker's reach for style.
// Melee styles reach adjacent tiles only; ranged and magic use the
// template's attack range.
func (w *World) InRange(attacker, target entity.ID, style stats.Style) bool {
	w.mu.RLock()
	from, okFrom := w.actors[attacker]
	to, okTo := w.actors[target]
	var distance int
	var template string
	if okFrom && okTo {
		distance = from.position.Distance(to.position)
		template = from.template
	}
	w.mu.RUnlock()
	if !okFrom || !okTo || distance == entity.Unreachable {
		return false
	}
	reach := 1
	if !style.IsMelee() {
		if tmpl, found := w.deps.Catalog.Current().Template(template); found {
			reach = tmpl.Stats.AttackRange
		}
	}
	return distance <= reach
}
