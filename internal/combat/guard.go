package combat

import (
	"context"
	"fmt"
	"sync"

	"graveward/internal/entity"
	"graveward/internal/platform/errors"
	"graveward/internal/telemetry"
	"graveward/logging"
	loggingcombat "graveward/logging/combat"
)

// Action is the kind of inbound request.
type Action string

const (
	ActionAttack    Action = "attack"
	ActionEat       Action = "eat"
	ActionFlee      Action = "flee"
	ActionDisengage Action = "disengage"
)

func (a Action) Valid() bool {
	switch a {
	case ActionAttack, ActionEat, ActionFlee, ActionDisengage:
		return true
	default:
		return false
	}
}

// Origin tells whether a request came from a client or from the server itself.
type Origin string

const (
	OriginClient Origin = "client"
	OriginServer Origin = "server"
)

// Request is an inbound action awaiting validation.
type Request struct {
	ID         string
	EntityID   entity.ID
	EntityKind entity.Kind
	TargetID   entity.ID
	Tick       uint64
	Action     Action
	Origin     Origin
}

// RejectReason classifies a guard denial.
type RejectReason string

const (
	RejectStale        RejectReason = "stale"
	RejectOverRate     RejectReason = "over_rate"
	RejectUnauthorized RejectReason = "unauthorized"
)

// Verdict is the guard's answer for one request.
type Verdict struct {
	Allowed bool         `json:"allowed"`
	Reason  RejectReason `json:"reason,omitempty"`
}

func allow() Verdict {
	return Verdict{Allowed: true}
}

func reject(reason RejectReason) Verdict {
	return Verdict{Reason: reason}
}

// Err converts a rejection into a domain error. Allowed verdicts return nil.
func (v Verdict) Err() error {
	if v.Allowed {
		return nil
	}
	return errors.WithMetadata(errors.CodeRejectedRequest, fmt.Sprintf("request rejected: %s", v.Reason), map[string]string{"reason": string(v.Reason)})
}

// CooldownFunc reports the cooldown in ticks for an entity's action, usually
// derived from weapon speed. Returning false falls back to the configured
// per-action cooldown.
type CooldownFunc func(id entity.ID, action Action) (uint64, bool)

// WeaponCooldowns rate-limits attacks by the attacker's weapon speed. Other
// actions and combatants without stats use the configured cooldown.
func WeaponCooldowns(provider StatsProvider) CooldownFunc {
	return func(id entity.ID, action Action) (uint64, bool) {
		if action != ActionAttack || provider == nil {
			return 0, false
		}
		s, err := provider.CombatantStats(id)
		if err != nil || s.AttackSpeedTicks == 0 {
			return 0, false
		}
		return s.AttackSpeedTicks, true
	}
}

type GuardDeps struct {
	Publisher logging.Publisher
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
	Cooldown  CooldownFunc
}

// Guard validates inbound requests before they reach the simulation. It
// keeps per-entity state that must be dropped on disconnect.
type Guard struct {
	cfg  GuardConfig
	deps GuardDeps

	mu         sync.Mutex
	lastTick   map[entity.ID]map[Action]uint64
	rejections map[entity.ID]uint64
}

func NewGuard(cfg GuardConfig, deps GuardDeps) *Guard {
	if deps.Publisher == nil {
		deps.Publisher = logging.NopPublisher()
	}
	return &Guard{
		cfg:        cfg.normalized(),
		deps:       deps,
		lastTick:   make(map[entity.ID]map[Action]uint64),
		rejections: make(map[entity.ID]uint64),
	}
}

// Check validates req against the authoritative current tick. Accepted
// requests consume the entity's cooldown for that action; rejections are
// logged and counted.
func (g *Guard) Check(ctx context.Context, req Request, currentTick uint64) Verdict {
	verdict := g.evaluate(req, currentTick)
	if !verdict.Allowed {
		g.recordRejection(ctx, req, currentTick, verdict.Reason)
	}
	return verdict
}

func (g *Guard) evaluate(req Request, currentTick uint64) Verdict {
	if req.EntityID == 0 || !req.Action.Valid() {
		return reject(RejectUnauthorized)
	}
	switch req.Origin {
	case OriginServer:
	case OriginClient:
		if req.Tick > currentTick+g.cfg.FutureToleranceTicks {
			return reject(RejectUnauthorized)
		}
	default:
		return reject(RejectUnauthorized)
	}

	if req.Tick < currentTick && currentTick-req.Tick > g.cfg.StaleAfterTicks {
		return reject(RejectStale)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if req.Origin == OriginClient {
		if last, ok := g.lastTick[req.EntityID][req.Action]; ok {
			if currentTick-last < g.cooldown(req.EntityID, req.Action) {
				return reject(RejectOverRate)
			}
		}
	}
	actions := g.lastTick[req.EntityID]
	if actions == nil {
		actions = make(map[Action]uint64, 1)
		g.lastTick[req.EntityID] = actions
	}
	actions[req.Action] = currentTick
	return allow()
}

func (g *Guard) cooldown(id entity.ID, action Action) uint64 {
	if g.deps.Cooldown != nil {
		if ticks, ok := g.deps.Cooldown(id, action); ok {
			return ticks
		}
	}
	return g.cfg.Cooldowns[action]
}

func (g *Guard) recordRejection(ctx context.Context, req Request, currentTick uint64, reason RejectReason) {
	g.mu.Lock()
	count := g.rejections[req.EntityID] + 1
	g.rejections[req.EntityID] = count
	g.mu.Unlock()

	if g.deps.Metrics != nil {
		g.deps.Metrics.Add("guard_rejections_total", 1)
		g.deps.Metrics.Add("guard_rejections_"+string(reason), 1)
	}
	if g.deps.Logger != nil && count&(count-1) == 0 {
		g.deps.Logger.Printf("[guard] rejecting %s from entity=%d reason=%s count=%d", req.Action, req.EntityID, reason, count)
	}
	loggingcombat.RequestRejected(ctx, g.deps.Publisher, currentTick,
		entity.Ref{ID: req.EntityID, Kind: req.EntityKind}.Log(),
		req.ID,
		loggingcombat.RequestRejectedPayload{
			Action:      string(req.Action),
			Origin:      string(req.Origin),
			Reason:      string(reason),
			RequestTick: req.Tick,
			Rejections:  count,
		},
		nil,
	)
}

// RejectionCount reports how many requests of id were rejected so far.
func (g *Guard) RejectionCount(id entity.ID) uint64 {
	if g == nil {
		return 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rejections[id]
}

// RemoveOnDisconnect drops every piece of state held for id.
func (g *Guard) RemoveOnDisconnect(id entity.ID) {
	if g == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.lastTick, id)
	delete(g.rejections, id)
}
