package combat

import (
	"sync"

	"graveward/internal/entity"
)

// Vitals stores health pools and remembers which outcomes each pool has
// absorbed, so that replaying an outcome never applies damage twice.
type Vitals struct {
	mu         sync.Mutex
	pools      map[entity.ID]*pool
	memoryTick uint64
}

type pool struct {
	health  int
	max     int
	applied map[OutcomeID]struct{}
}

// NewVitals creates an empty registry. memoryTicks bounds how long applied
// outcome ids are kept; zero uses the session default.
func NewVitals(memoryTicks uint64) *Vitals {
	if memoryTicks == 0 {
		memoryTicks = DefaultConfig().DamageMemoryTicks
	}
	return &Vitals{pools: make(map[entity.ID]*pool), memoryTick: memoryTicks}
}

// Register creates or resets a pool at full health.
func (v *Vitals) Register(id entity.ID, maxHealth int) {
	if maxHealth < 1 {
		maxHealth = 1
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pools[id] = &pool{health: maxHealth, max: maxHealth, applied: make(map[OutcomeID]struct{})}
}

// Restore refills an existing pool, e.g. on respawn. Applied outcome ids are
// kept so that late replays stay no-ops.
func (v *Vitals) Restore(id entity.ID) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	p, ok := v.pools[id]
	if !ok {
		return false
	}
	p.health = p.max
	return true
}

func (v *Vitals) Remove(id entity.ID) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.pools, id)
}

func (v *Vitals) Health(id entity.ID) (current, max int, ok bool) {
	if v == nil {
		return 0, 0, false
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	p, exists := v.pools[id]
	if !exists {
		return 0, 0, false
	}
	return p.health, p.max, true
}

// Apply subtracts outcome.Amount from the pool of id and returns the damage
// actually applied. Misses, unknown or dead pools and repeated outcome ids
// apply nothing.
func (v *Vitals) Apply(id entity.ID, outcome DamageOutcome) int {
	if v == nil {
		return 0
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	p, ok := v.pools[id]
	if !ok || p.health <= 0 {
		return 0
	}
	if _, seen := p.applied[outcome.ID]; seen {
		return 0
	}
	p.applied[outcome.ID] = struct{}{}
	v.prune(p, outcome.ID.Tick)
	if !outcome.Hit || outcome.Amount <= 0 {
		return 0
	}
	applied := outcome.Amount
	if applied > p.health {
		applied = p.health
	}
	p.health -= applied
	return applied
}

func (v *Vitals) prune(p *pool, tick uint64) {
	if tick <= v.memoryTick || len(p.applied) < 8 {
		return
	}
	horizon := tick - v.memoryTick
	for id := range p.applied {
		if id.Tick < horizon {
			delete(p.applied, id)
		}
	}
}
