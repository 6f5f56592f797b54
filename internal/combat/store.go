package combat

import (
	"sort"

	"graveward/internal/entity"
)

// SessionStore holds at most one session per entity. It is owned by the
// simulation loop and is not safe for concurrent use.
type SessionStore struct {
	sessions map[entity.ID]*Session
	active   []*Session
	dirty    bool
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[entity.ID]*Session)}
}

// Create stores s unless the entity already has a session, in which case the
// existing session is returned with false.
func (st *SessionStore) Create(s Session) (*Session, bool) {
	if existing, ok := st.sessions[s.EntityID]; ok {
		return existing, false
	}
	stored := s
	st.sessions[s.EntityID] = &stored
	st.dirty = true
	return &stored, true
}

func (st *SessionStore) Get(id entity.ID) (*Session, bool) {
	s, ok := st.sessions[id]
	return s, ok
}

// Active returns every session in ascending entity id order. The returned
// slice is reused between calls and rebuilt only after Create or Remove;
// callers must not retain it across mutations.
func (st *SessionStore) Active() []*Session {
	if !st.dirty {
		return st.active
	}
	st.active = st.active[:0]
	for _, s := range st.sessions {
		st.active = append(st.active, s)
	}
	sort.Slice(st.active, func(i, j int) bool {
		return st.active[i].EntityID < st.active[j].EntityID
	})
	st.dirty = false
	return st.active
}

func (st *SessionStore) Remove(id entity.ID) bool {
	if _, ok := st.sessions[id]; !ok {
		return false
	}
	delete(st.sessions, id)
	st.dirty = true
	return true
}

func (st *SessionStore) Len() int {
	return len(st.sessions)
}

// Targeting returns the ids of sessions whose target is id, ascending. It
// does not touch the reusable Active view.
func (st *SessionStore) Targeting(id entity.ID) []entity.ID {
	var attackers []entity.ID
	for attacker, s := range st.sessions {
		if s.TargetID == id {
			attackers = append(attackers, attacker)
		}
	}
	sort.Slice(attackers, func(i, j int) bool { return attackers[i] < attackers[j] })
	return attackers
}
