package combat

import (
	"graveward/internal/entity"
	"graveward/internal/stats"
)

// State is the lifecycle position of a session.
type State uint8

const (
	StateIdle State = iota
	StateEngaged
	StateCooling
	StateResolving
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateEngaged:
		return "engaged"
	case StateCooling:
		return "cooling"
	case StateResolving:
		return "resolving"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// EndReason explains why a session reached StateEnded.
type EndReason string

const (
	EndReasonDeath         EndReason = "death"
	EndReasonTimeout       EndReason = "timeout"
	EndReasonDisengage     EndReason = "disengage"
	EndReasonFlee          EndReason = "flee"
	EndReasonDisconnect    EndReason = "disconnect"
	EndReasonInvalidTarget EndReason = "invalid_target"
	EndReasonNoTarget      EndReason = "no_target"
)

// Session is the live combat relationship of one entity with its target.
// Sessions are only mutated on the simulation loop.
type Session struct {
	EntityID            entity.ID
	EntityKind          entity.Kind
	TargetID            entity.ID
	TargetKind          entity.Kind
	Style               stats.Style
	AttackIntervalTicks uint64
	NextAttackTick      uint64
	CombatExpiryTick    uint64
	LastDamageDealt     int

	State          State
	StartedTick    uint64
	TargetLostTick uint64
	PursuitTicks   uint64
	Retaliation    bool
}

func (s *Session) ref() entity.Ref {
	return entity.Ref{ID: s.EntityID, Kind: s.EntityKind}
}

func (s *Session) targetRef() entity.Ref {
	return entity.Ref{ID: s.TargetID, Kind: s.TargetKind}
}

// loseTarget clears the target and starts the no-target grace period.
func (s *Session) loseTarget(tick uint64) {
	if s.TargetID == 0 {
		return
	}
	s.TargetID = 0
	s.TargetKind = entity.KindUnknown
	s.TargetLostTick = tick
}
