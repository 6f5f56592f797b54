package combat

import (
	"context"
	"fmt"
	"sync/atomic"

	"graveward/internal/entity"
	"graveward/internal/platform/errors"
	"graveward/internal/stats"
	"graveward/internal/telemetry"
	"graveward/logging"
	loggingcombat "graveward/logging/combat"
	loggingsimulation "graveward/logging/simulation"
)

// StatsProvider returns a fresh snapshot of an entity's combat stats.
type StatsProvider interface {
	CombatantStats(id entity.ID) (stats.CombatantStats, error)
}

// MovementProvider answers position and range questions. Pathing itself is
// not the orchestrator's concern.
type MovementProvider interface {
	Position(id entity.ID) (entity.Position, bool)
	InRange(attacker, target entity.ID, style stats.Style) bool
	IsPursuing(id entity.ID) bool
}

// DeathNotice is handed to the death sink once per death.
type DeathNotice struct {
	Victim   entity.Ref
	Killer   entity.Ref
	Position entity.Position
	Tick     uint64
}

// DeathSink receives finalised deaths. The loot manager implements it.
type DeathSink interface {
	OnDeath(ctx context.Context, notice DeathNotice) error
}

// AttackRequest asks for attacker to start (or switch to) fighting target.
type AttackRequest struct {
	RequestID    string
	AttackerID   entity.ID
	AttackerKind entity.Kind
	TargetID     entity.ID
	TargetKind   entity.Kind
	Tick         uint64
	Origin       Origin
	// Style overrides the attacker's default style when set.
	Style *stats.Style
}

func (r AttackRequest) guardRequest() Request {
	return Request{
		ID:         r.RequestID,
		EntityID:   r.AttackerID,
		EntityKind: r.AttackerKind,
		TargetID:   r.TargetID,
		Tick:       r.Tick,
		Action:     ActionAttack,
		Origin:     r.Origin,
	}
}

// Deps bundles the collaborators of the orchestrator.
type Deps struct {
	Stats     StatsProvider
	Movement  MovementProvider
	Handlers  *Handlers
	Guard     *Guard
	Deaths    DeathSink
	Publisher logging.Publisher
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
	Roller    Roller
}

type pendingDeath struct {
	notice DeathNotice
}

// Orchestrator owns every combat session and advances them once per tick.
// All methods except IsInCombat and the Submit helpers must be called from
// the simulation loop.
type Orchestrator struct {
	cfg   Config
	deps  Deps
	store *SessionStore
	queue *CommandQueue

	tick    uint64
	scratch []*Session
	dying   map[entity.ID]struct{}
	deaths  []pendingDeath
	retry   []pendingDeath

	snapshotDirty bool
	inCombat      atomic.Pointer[map[entity.ID]struct{}]
}

func NewOrchestrator(cfg Config, deps Deps) *Orchestrator {
	cfg = cfg.normalized()
	if deps.Publisher == nil {
		deps.Publisher = logging.NopPublisher()
	}
	if deps.Handlers == nil {
		deps.Handlers = NewHandlers()
	}
	if deps.Guard == nil {
		deps.Guard = NewGuard(DefaultGuardConfig(), GuardDeps{Publisher: deps.Publisher, Logger: deps.Logger, Metrics: deps.Metrics})
	}
	if deps.Roller == nil {
		deps.Roller = NewDeterministicRoller(cfg.Seed, "combat")
	}
	o := &Orchestrator{
		cfg:   cfg,
		deps:  deps,
		store: NewSessionStore(),
		queue: NewCommandQueue(cfg.CommandCapacity, cfg.PerActorLimit, deps.Metrics),
		dying: make(map[entity.ID]struct{}),
	}
	empty := make(map[entity.ID]struct{})
	o.inCombat.Store(&empty)
	return o
}

// Queue exposes the inbound command queue.
func (o *Orchestrator) Queue() *CommandQueue {
	return o.queue
}

// CurrentTick returns the tick the orchestrator last processed.
func (o *Orchestrator) CurrentTick() uint64 {
	return o.tick
}

// Session returns a copy of the session of id.
func (o *Orchestrator) Session(id entity.ID) (Session, bool) {
	s, ok := o.store.Get(id)
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// IsInCombat reports whether id has a session. It reads the snapshot
// published after the last tick or inbound operation and is safe from any
// goroutine.
func (o *Orchestrator) IsInCombat(id entity.ID) bool {
	if o == nil {
		return false
	}
	snapshot := o.inCombat.Load()
	if snapshot == nil {
		return false
	}
	_, ok := (*snapshot)[id]
	return ok
}

// RequestAttack validates req and starts or retargets the attacker's session.
// A guard rejection is returned as a verdict with a REJECTED_REQUEST error;
// an illegal target yields an allowed verdict with an INVALID_STATE error.
func (o *Orchestrator) RequestAttack(ctx context.Context, req AttackRequest) (Verdict, error) {
	verdict := o.deps.Guard.Check(ctx, req.guardRequest(), o.tick)
	if !verdict.Allowed {
		return verdict, verdict.Err()
	}
	defer o.publishSnapshot()

	if req.TargetID == 0 || req.TargetID == req.AttackerID {
		return verdict, errors.New(errors.CodeInvalidState, "attack needs a target other than the attacker")
	}
	attacker := o.deps.Handlers.For(req.AttackerKind)
	if !attacker.IsAlive(req.AttackerID) {
		return verdict, errors.WithMetadata(errors.CodeInvalidState, "attacker is not alive", map[string]string{"attacker": req.AttackerID.String()})
	}
	target := o.deps.Handlers.For(req.TargetKind)
	if !target.IsAttackable(req.TargetID) {
		return verdict, errors.WithMetadata(errors.CodeInvalidState, "target is not attackable", map[string]string{"target": req.TargetID.String()})
	}
	if target.IsProtected(req.TargetID, o.tick) {
		return verdict, errors.WithMetadata(errors.CodeInvalidState, "target is protected", map[string]string{"target": req.TargetID.String()})
	}

	if existing, ok := o.store.Get(req.AttackerID); ok {
		if req.Style != nil && req.Style.Valid() {
			existing.Style = *req.Style
		}
		// Repeating an attack on the current target must not keep an
		// unreachable session alive; only a new target restarts the timeout.
		if existing.TargetID == req.TargetID {
			return verdict, nil
		}
		existing.TargetID = req.TargetID
		existing.TargetKind = req.TargetKind
		existing.TargetLostTick = 0
		existing.PursuitTicks = 0
		existing.Retaliation = false
		existing.CombatExpiryTick = o.tick + o.cfg.CombatTimeoutTicks
		existing.State = StateEngaged
		return verdict, nil
	}

	attackerStats, err := o.snapshot(req.AttackerID)
	if err != nil {
		return verdict, errors.Wrap(errors.CodeInvalidState, "attacker stats unavailable", err)
	}
	style := attackerStats.Style
	if req.Style != nil && req.Style.Valid() {
		style = *req.Style
	}
	o.startSession(ctx, Session{
		EntityID:            req.AttackerID,
		EntityKind:          req.AttackerKind,
		TargetID:            req.TargetID,
		TargetKind:          req.TargetKind,
		Style:               style,
		AttackIntervalTicks: o.interval(attackerStats),
		NextAttackTick:      o.tick,
	}, req.RequestID)
	return verdict, nil
}

// RequestDisengage ends the session of id. It reports whether a session existed.
func (o *Orchestrator) RequestDisengage(ctx context.Context, id entity.ID) bool {
	return o.endOwn(ctx, id, EndReasonDisengage)
}

func (o *Orchestrator) endOwn(ctx context.Context, id entity.ID, reason EndReason) bool {
	s, ok := o.store.Get(id)
	if !ok {
		return false
	}
	o.end(ctx, s, reason)
	o.publishSnapshot()
	return true
}

// Disconnect tears down everything held for id: its own session, the target
// of sessions aimed at it and its guard state.
func (o *Orchestrator) Disconnect(ctx context.Context, id entity.ID) {
	if s, ok := o.store.Get(id); ok {
		o.end(ctx, s, EndReasonDisconnect)
	}
	for _, attacker := range o.store.Targeting(id) {
		if s, ok := o.store.Get(attacker); ok {
			s.loseTarget(o.tick)
		}
	}
	o.deps.Guard.RemoveOnDisconnect(id)
	o.queue.Forget(id)
	o.publishSnapshot()
}

// Tick applies staged commands and advances every session, in ascending
// entity id order. Deaths are finalised after all sessions ran so entities
// scheduled in the same tick strike simultaneously.
func (o *Orchestrator) Tick(ctx context.Context, tick uint64) error {
	o.tick = tick
	o.applyCommands(ctx)

	o.scratch = append(o.scratch[:0], o.store.Active()...)
	for _, s := range o.scratch {
		if s.State == StateEnded {
			continue
		}
		o.advance(ctx, s, tick)
	}
	for i := range o.scratch {
		o.scratch[i] = nil
	}

	o.finaliseDeaths(ctx, tick)
	o.publishSnapshot()
	if o.deps.Metrics != nil {
		o.deps.Metrics.Store("combat_sessions_active", uint64(o.store.Len()))
	}
	return nil
}

func (o *Orchestrator) advance(ctx context.Context, s *Session, tick uint64) {
	if s.TargetID == 0 {
		if tick-s.TargetLostTick >= o.cfg.NoTargetGraceTicks {
			o.end(ctx, s, EndReasonNoTarget)
			return
		}
		if s.NextAttackTick <= tick {
			s.NextAttackTick = tick + 1
		}
		s.State = StateCooling
		return
	}

	attackerHandler := o.deps.Handlers.For(s.EntityKind)
	if !attackerHandler.IsAlive(s.EntityID) && !o.isDying(s.EntityID) {
		o.end(ctx, s, EndReasonDeath)
		return
	}
	targetHandler := o.deps.Handlers.For(s.TargetKind)
	if o.isDying(s.TargetID) {
		return
	}
	if !targetHandler.IsAttackable(s.TargetID) || targetHandler.IsProtected(s.TargetID, tick) {
		o.end(ctx, s, EndReasonInvalidTarget)
		return
	}

	if tick < s.NextAttackTick {
		s.State = StateCooling
		if tick >= s.CombatExpiryTick {
			o.end(ctx, s, EndReasonTimeout)
		}
		return
	}

	s.State = StateResolving
	if o.deps.Movement != nil && !o.deps.Movement.InRange(s.EntityID, s.TargetID, s.Style) {
		o.outOfRange(ctx, s, tick)
		return
	}

	attackerStats, err := o.snapshot(s.EntityID)
	if err != nil {
		o.logf("[combat] stats unavailable for attacker=%d: %v", s.EntityID, err)
		o.end(ctx, s, EndReasonInvalidTarget)
		return
	}
	defenderStats, err := o.snapshot(s.TargetID)
	if err != nil {
		o.logf("[combat] stats unavailable for target=%d: %v", s.TargetID, err)
		o.end(ctx, s, EndReasonInvalidTarget)
		return
	}

	outcome := Resolve(attackerStats, defenderStats, s.Style, o.deps.Roller)
	outcome.ID = OutcomeID{Attacker: s.EntityID, Tick: tick}
	applied := targetHandler.ApplyDamage(s.TargetID, outcome)
	health := targetHandler.Health(s.TargetID)
	fatal := applied > 0 && health <= 0

	s.LastDamageDealt = applied
	s.NextAttackTick = tick + s.AttackIntervalTicks
	s.CombatExpiryTick = tick + o.cfg.CombatTimeoutTicks
	s.PursuitTicks = 0
	s.State = StateEngaged

	o.add("combat_attacks_total", 1)
	if outcome.Hit {
		o.add("combat_hits_total", 1)
	}
	loggingcombat.AttackResolved(ctx, o.deps.Publisher, tick, s.ref().Log(), s.targetRef().Log(), loggingcombat.AttackResolvedPayload{
		Style:        s.Style.String(),
		Hit:          outcome.Hit,
		Amount:       outcome.Amount,
		Applied:      applied,
		MaxHit:       outcome.MaxHit,
		TargetHealth: health,
		Fatal:        fatal,
	}, nil)

	if fatal {
		o.markDying(s, tick)
		return
	}
	o.retaliate(ctx, s, targetHandler, tick)
}

// outOfRange extends the expiry while the attacker pursues, up to the leash.
func (o *Orchestrator) outOfRange(ctx context.Context, s *Session, tick uint64) {
	if o.deps.Movement.IsPursuing(s.EntityID) && s.PursuitTicks < o.cfg.LeashTicks {
		extend := o.cfg.PursuitExtendTicks
		if remaining := o.cfg.LeashTicks - s.PursuitTicks; extend > remaining {
			extend = remaining
		}
		s.CombatExpiryTick += extend
		s.PursuitTicks += extend
	}
	if tick >= s.CombatExpiryTick {
		o.end(ctx, s, EndReasonTimeout)
		return
	}
	s.NextAttackTick = tick + 1
	s.State = StateEngaged
}

func (o *Orchestrator) retaliate(ctx context.Context, s *Session, targetHandler Damageable, tick uint64) {
	if !o.cfg.AutoRetaliate || !targetHandler.CanRetaliate(s.TargetID) {
		return
	}
	if _, busy := o.store.Get(s.TargetID); busy {
		return
	}
	defenderStats, err := o.snapshot(s.TargetID)
	if err != nil {
		return
	}
	interval := o.interval(defenderStats)
	o.startSession(ctx, Session{
		EntityID:            s.TargetID,
		EntityKind:          s.TargetKind,
		TargetID:            s.EntityID,
		TargetKind:          s.EntityKind,
		Style:               defenderStats.Style,
		AttackIntervalTicks: interval,
		NextAttackTick:      tick + (interval+1)/2,
		Retaliation:         true,
	}, "")
}

func (o *Orchestrator) startSession(ctx context.Context, s Session, commandID string) {
	s.State = StateEngaged
	s.StartedTick = o.tick
	s.CombatExpiryTick = s.NextAttackTick + o.cfg.CombatTimeoutTicks
	stored, created := o.store.Create(s)
	if !created {
		return
	}
	o.snapshotDirty = true
	o.add("combat_sessions_started_total", 1)
	var extra map[string]any
	if commandID != "" {
		extra = map[string]any{"commandId": commandID}
	}
	loggingcombat.SessionStarted(ctx, o.deps.Publisher, o.tick, stored.ref().Log(), stored.targetRef().Log(), loggingcombat.SessionStartedPayload{
		Style:               stored.Style.String(),
		AttackIntervalTicks: stored.AttackIntervalTicks,
		FirstAttackTick:     stored.NextAttackTick,
		ExpiryTick:          stored.CombatExpiryTick,
		Retaliation:         stored.Retaliation,
	}, extra)
}

func (o *Orchestrator) end(ctx context.Context, s *Session, reason EndReason) {
	if s.State == StateEnded {
		return
	}
	s.State = StateEnded
	o.store.Remove(s.EntityID)
	o.snapshotDirty = true
	o.add("combat_sessions_ended_"+string(reason), 1)
	loggingcombat.SessionEnded(ctx, o.deps.Publisher, o.tick, s.ref().Log(), s.targetRef().Log(), loggingcombat.SessionEndedPayload{
		Reason:        string(reason),
		DurationTicks: o.tick - s.StartedTick,
	}, nil)
}

func (o *Orchestrator) markDying(s *Session, tick uint64) {
	if o.isDying(s.TargetID) {
		return
	}
	o.dying[s.TargetID] = struct{}{}
	notice := DeathNotice{
		Victim: s.targetRef(),
		Killer: s.ref(),
		Tick:   tick,
	}
	if o.deps.Movement != nil {
		if pos, ok := o.deps.Movement.Position(s.TargetID); ok {
			notice.Position = pos
		}
	}
	o.deaths = append(o.deaths, pendingDeath{notice: notice})
}

func (o *Orchestrator) isDying(id entity.ID) bool {
	_, ok := o.dying[id]
	return ok
}

// finaliseDeaths ends every session touching a victim and hands each death to
// the sink exactly once. Sink failures keep the notice for the next tick.
func (o *Orchestrator) finaliseDeaths(ctx context.Context, tick uint64) {
	for _, death := range o.deaths {
		victim := death.notice.Victim.ID
		if s, ok := o.store.Get(victim); ok {
			o.end(ctx, s, EndReasonDeath)
		}
		for _, attacker := range o.store.Targeting(victim) {
			if s, ok := o.store.Get(attacker); ok {
				o.end(ctx, s, EndReasonDeath)
			}
		}
		o.add("combat_deaths_total", 1)
	}

	pending := append(o.retry[:0:0], o.retry...)
	pending = append(pending, o.deaths...)
	o.retry = o.retry[:0]
	for _, death := range pending {
		if err := o.notifyDeath(ctx, death.notice); err != nil {
			o.retry = append(o.retry, death)
		}
	}

	o.deaths = o.deaths[:0]
	clear(o.dying)
}

func (o *Orchestrator) notifyDeath(ctx context.Context, notice DeathNotice) error {
	if o.deps.Deaths == nil {
		return nil
	}
	err := o.deps.Deaths.OnDeath(ctx, notice)
	if err == nil || errors.HasCode(err, errors.CodeDuplicateDeath) {
		return nil
	}
	o.logf("[combat] death of %s %d at tick %d not recorded, will retry: %v", notice.Victim.Kind, notice.Victim.ID, notice.Tick, err)
	o.add("combat_death_retries_total", 1)
	return err
}

// PendingDeaths reports how many deaths are waiting for a retry.
func (o *Orchestrator) PendingDeaths() int {
	return len(o.retry)
}

func (o *Orchestrator) applyCommands(ctx context.Context) {
	for _, cmd := range o.queue.Drain() {
		switch cmd.Type {
		case CommandAttack:
			verdict, err := o.RequestAttack(ctx, cmd.Attack)
			cmd.reply(CommandResult{Verdict: verdict, Err: err})
		case CommandDisengage:
			verdict := o.deps.Guard.Check(ctx, cmd.Request, o.tick)
			if verdict.Allowed {
				if !o.RequestDisengage(ctx, cmd.Request.EntityID) {
					cmd.reply(CommandResult{Verdict: verdict, Err: errors.New(errors.CodeNotFound, "entity is not in combat")})
					continue
				}
			}
			cmd.reply(CommandResult{Verdict: verdict, Err: verdict.Err()})
		case CommandDisconnect:
			o.Disconnect(ctx, cmd.Request.EntityID)
			cmd.reply(CommandResult{Verdict: allow()})
		case CommandAction:
			cmd.reply(o.applyAction(ctx, cmd.Request))
		default:
			cmd.reply(CommandResult{Err: errors.New(errors.CodeInvalidArgument, fmt.Sprintf("unknown command %q", cmd.Type))})
		}
	}
}

// applyAction rate-limits eat and flee requests. Flee leaves combat; eating
// is carried out by the inventory owner once the guard lets it through.
func (o *Orchestrator) applyAction(ctx context.Context, req Request) CommandResult {
	if req.Action != ActionEat && req.Action != ActionFlee {
		return CommandResult{Err: errors.WithMetadata(errors.CodeInvalidArgument, "unsupported action", map[string]string{"action": string(req.Action)})}
	}
	verdict := o.deps.Guard.Check(ctx, req, o.tick)
	if !verdict.Allowed {
		return CommandResult{Verdict: verdict, Err: verdict.Err()}
	}
	if req.Action == ActionFlee && !o.endOwn(ctx, req.EntityID, EndReasonFlee) {
		return CommandResult{Verdict: verdict, Err: errors.New(errors.CodeNotFound, "entity is not in combat")}
	}
	return CommandResult{Verdict: verdict}
}

// Stage queues cmd for the next tick. It never blocks.
func (o *Orchestrator) Stage(ctx context.Context, cmd Command) error {
	ok, reason, drops := o.queue.Push(cmd)
	if ok {
		return nil
	}
	actor := cmd.actor()
	if o.deps.Logger != nil && drops > 0 && drops&(drops-1) == 0 {
		o.deps.Logger.Printf("[backpressure] dropping command actor=%d type=%s count=%d limit=%d", actor, cmd.Type, drops, o.cfg.PerActorLimit)
	}
	loggingsimulation.CommandDropped(ctx, o.deps.Publisher, o.tick, entity.Ref{ID: actor}.Log(), loggingsimulation.CommandDroppedPayload{
		Command: string(cmd.Type),
		Reason:  reason,
		Count:   drops,
	}, nil)
	return errors.WithMetadata(errors.CodeRejectedRequest, "command queue rejected request", map[string]string{"reason": reason})
}

// Submit stages cmd and waits for the loop to apply it. It is the entry point
// for network goroutines.
func (o *Orchestrator) Submit(ctx context.Context, cmd Command) (CommandResult, error) {
	reply := make(chan CommandResult, 1)
	cmd.Reply = reply
	if err := o.Stage(ctx, cmd); err != nil {
		return CommandResult{Verdict: reject(RejectOverRate), Err: err}, err
	}
	select {
	case result := <-reply:
		return result, result.Err
	case <-ctx.Done():
		return CommandResult{}, ctx.Err()
	}
}

func (o *Orchestrator) publishSnapshot() {
	if !o.snapshotDirty {
		return
	}
	o.snapshotDirty = false
	active := o.store.Active()
	snapshot := make(map[entity.ID]struct{}, len(active))
	for _, s := range active {
		snapshot[s.EntityID] = struct{}{}
	}
	o.inCombat.Store(&snapshot)
}

func (o *Orchestrator) snapshot(id entity.ID) (stats.CombatantStats, error) {
	if o.deps.Stats == nil {
		return stats.CombatantStats{}, errors.New(errors.CodeNotFound, "no stats provider configured")
	}
	return o.deps.Stats.CombatantStats(id)
}

func (o *Orchestrator) interval(s stats.CombatantStats) uint64 {
	if s.AttackSpeedTicks > 0 {
		return s.AttackSpeedTicks
	}
	return o.cfg.DefaultAttackIntervalTicks
}

func (o *Orchestrator) add(key string, delta uint64) {
	if o.deps.Metrics != nil {
		o.deps.Metrics.Add(key, delta)
	}
}

func (o *Orchestrator) logf(format string, args ...any) {
	if o.deps.Logger != nil {
		o.deps.Logger.Printf(format, args...)
	}
}
