// Package loot turns deaths into durable death records and serializes the
// claims made against them.
package loot

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"graveward/internal/combat"
	"graveward/internal/entity"
	"graveward/internal/platform/errors"
	"graveward/internal/telemetry"
	"graveward/logging"
	loggingdeath "graveward/logging/death"
)

const tracerName = "graveward/internal/loot"

// Deps bundles the collaborators of the manager.
type Deps struct {
	Store     RecordStore
	Inventory InventoryProvider
	Publisher logging.Publisher
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
	Tracer    trace.Tracer
}

// Manager owns every open death record. Each record has a worker goroutine
// that applies claims and sweeps one at a time; readers get copies.
type Manager struct {
	cfg    Config
	deps   Deps
	tracer trace.Tracer

	deathMu sync.Mutex

	mu       sync.Mutex
	records  map[string]*recordState
	byVictim map[entity.ID]*recordState

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

type recordState struct {
	id     string
	victim entity.ID
	tick   uint64
	// record is only touched by the worker once it runs.
	record DeathRecord
	view   atomic.Pointer[DeathRecord]
	// respawned is guarded by Manager.mu.
	respawned bool
	jobs      chan func() bool
	quit      chan struct{}
}

func (s *recordState) publish() {
	snapshot := s.record.Clone()
	s.view.Store(&snapshot)
}

func NewManager(cfg Config, deps Deps) (*Manager, error) {
	if deps.Store == nil {
		return nil, errors.New(errors.CodeInvalidArgument, "loot manager needs a record store")
	}
	if deps.Inventory == nil {
		return nil, errors.New(errors.CodeInvalidArgument, "loot manager needs an inventory provider")
	}
	if deps.Publisher == nil {
		deps.Publisher = logging.NopPublisher()
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	return &Manager{
		cfg:      cfg.normalized(),
		deps:     deps,
		tracer:   tracer,
		records:  make(map[string]*recordState),
		byVictim: make(map[entity.ID]*recordState),
		stop:     make(chan struct{}),
	}, nil
}

// OnDeath records the death described by notice. It implements
// combat.DeathSink.
func (m *Manager) OnDeath(ctx context.Context, notice combat.DeathNotice) error {
	_, err := m.RecordDeath(ctx, notice)
	return err
}

// RecordDeath snapshots the victim's carried items, persists the record and
// only then clears the items. Any failure leaves the victim's items as they
// were and returns a TRANSACTION_FAILED error. A second death of the same
// victim before OnRespawn is refused with DUPLICATE_DEATH.
func (m *Manager) RecordDeath(ctx context.Context, notice combat.DeathNotice) (DeathRecord, error) {
	victim := notice.Victim
	ctx, span := m.tracer.Start(ctx, "loot.OnDeath", trace.WithAttributes(
		attribute.Int64("victim.id", int64(victim.ID)),
		attribute.String("victim.kind", victim.Kind.String()),
		attribute.Int64("killer.id", int64(notice.Killer.ID)),
		attribute.Int64("tick", int64(notice.Tick)),
	))
	defer span.End()

	if victim.ID == 0 {
		return DeathRecord{}, errors.New(errors.CodeInvalidArgument, "death notice without a victim")
	}

	m.deathMu.Lock()
	defer m.deathMu.Unlock()

	id := RecordID(victim.ID, notice.Tick)
	span.SetAttributes(attribute.String("record.id", id))
	if existing := m.openRecordOf(victim.ID, id); existing != "" {
		span.SetAttributes(attribute.Bool("duplicate", true))
		return DeathRecord{}, errors.WithMetadata(errors.CodeDuplicateDeath, "victim already has an open death record", map[string]string{
			"record": existing,
		})
	}

	manifest, err := m.deps.Inventory.SnapshotCarriedItems(ctx, victim.ID)
	if err != nil {
		return DeathRecord{}, m.failDeath(ctx, span, notice, id, "snapshot", err)
	}

	record := DeathRecord{
		ID:                id,
		VictimID:          victim.ID,
		VictimKind:        victim.Kind,
		KillerID:          notice.Killer.ID,
		KillerKind:        notice.Killer.Kind,
		Position:          notice.Position,
		TimestampTick:     notice.Tick,
		ItemManifest:      manifest.Clone(),
		ClaimWindowExpiry: notice.Tick + m.cfg.ClaimWindowTicks,
		ExpiresAtTick:     notice.Tick + m.cfg.CleanupTicks,
	}
	if killer := notice.Killer; killer.ID != 0 && killer.ID != victim.ID && killer.Kind == entity.KindPlayer {
		record.ProtectedClaimantID = killer.ID
	}

	if err := m.deps.Store.Put(ctx, record); err != nil {
		return DeathRecord{}, m.failDeath(ctx, span, notice, id, "persist", err)
	}
	if err := m.deps.Inventory.ClearCarriedItems(ctx, victim.ID); err != nil {
		closed := record.Clone()
		closed.Closed = true
		if closeErr := m.deps.Store.Put(ctx, closed); closeErr != nil {
			m.logf("[loot] compensating close of %s failed: %v", id, closeErr)
		}
		return DeathRecord{}, m.failDeath(ctx, span, notice, id, "clear", err)
	}

	m.track(record, false)
	m.add("loot_deaths_total", 1)
	m.add("loot_items_recorded_total", uint64(len(record.ItemManifest)))

	var killerRef *logging.EntityRef
	if notice.Killer.ID != 0 {
		ref := notice.Killer.Log()
		killerRef = &ref
	}
	loggingdeath.DeathOccurred(ctx, m.deps.Publisher, notice.Tick, victim.Log(), killerRef, loggingdeath.DeathOccurredPayload{
		RecordID:          id,
		Position:          logPosition(notice.Position),
		ItemCount:         len(record.ItemManifest),
		ClaimWindowExpiry: record.ClaimWindowExpiry,
		ExpiresAtTick:     record.ExpiresAtTick,
	}, nil)
	return record.Clone(), nil
}

func (m *Manager) openRecordOf(victim entity.ID, id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; ok {
		return id
	}
	if state := m.byVictim[victim]; state != nil && !state.respawned {
		return state.id
	}
	return ""
}

func (m *Manager) failDeath(ctx context.Context, span trace.Span, notice combat.DeathNotice, id, stage string, cause error) error {
	span.RecordError(cause)
	span.SetStatus(otelcodes.Error, stage)
	m.add("loot_death_failures_total", 1)
	m.logf("[loot] death of %d at tick %d failed at %s: %v", notice.Victim.ID, notice.Tick, stage, cause)
	loggingdeath.TransactionFailed(ctx, m.deps.Publisher, notice.Tick, notice.Victim.Log(), loggingdeath.TransactionFailedPayload{
		RecordID: id,
		Stage:    stage,
		Error:    cause.Error(),
	}, nil)
	return errors.WrapWithMetadata(errors.CodeTransactionFailed, "death transaction failed", map[string]string{
		"record": id,
		"stage":  stage,
	}, cause)
}

// track registers record and starts its worker.
func (m *Manager) track(record DeathRecord, respawned bool) *recordState {
	state := &recordState{
		id:        record.ID,
		victim:    record.VictimID,
		tick:      record.TimestampTick,
		record:    record.Clone(),
		respawned: respawned,
		jobs:      make(chan func() bool, m.cfg.ClaimQueueDepth),
		quit:      make(chan struct{}),
	}
	state.publish()

	m.mu.Lock()
	m.records[record.ID] = state
	if current := m.byVictim[record.VictimID]; current == nil || current.tick <= record.TimestampTick {
		m.byVictim[record.VictimID] = state
	}
	open := len(m.records)
	m.mu.Unlock()

	if m.deps.Metrics != nil {
		m.deps.Metrics.Store("loot_records_open", uint64(open))
	}
	m.wg.Add(1)
	go m.run(state)
	return state
}

func (m *Manager) run(state *recordState) {
	defer m.wg.Done()
	defer close(state.quit)
	for {
		select {
		case <-m.stop:
			return
		case job := <-state.jobs:
			if job() {
				return
			}
		}
	}
}

// forget drops a closed record from the open set. It runs on the record's
// worker right before the worker exits.
func (m *Manager) forget(state *recordState) {
	m.mu.Lock()
	delete(m.records, state.id)
	if m.byVictim[state.victim] == state {
		delete(m.byVictim, state.victim)
	}
	open := len(m.records)
	m.mu.Unlock()
	if m.deps.Metrics != nil {
		m.deps.Metrics.Store("loot_records_open", uint64(open))
	}
}

// submit hands job to the worker of state. It fails when the record has
// been closed or ctx ends first.
func (m *Manager) submit(ctx context.Context, state *recordState, job func() bool) error {
	select {
	case state.jobs <- job:
		return nil
	case <-state.quit:
		return errors.New(errors.CodeRecordGone, "death record is closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) lookup(id string) *recordState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[id]
}

// OnRespawn starts a new life for victim. Its open record stays claimable
// but no longer blocks the next death.
func (m *Manager) OnRespawn(victim entity.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if state := m.byVictim[victim]; state != nil {
		state.respawned = true
	}
}

// ActiveDeathRecord returns a copy of the latest open record of victim.
func (m *Manager) ActiveDeathRecord(victim entity.ID) (DeathRecord, bool) {
	m.mu.Lock()
	state := m.byVictim[victim]
	m.mu.Unlock()
	return viewOf(state)
}

// Record returns a copy of the open record id.
func (m *Manager) Record(id string) (DeathRecord, bool) {
	return viewOf(m.lookup(id))
}

func viewOf(state *recordState) (DeathRecord, bool) {
	if state == nil {
		return DeathRecord{}, false
	}
	view := state.view.Load()
	if view == nil {
		return DeathRecord{}, false
	}
	return view.Clone(), true
}

// OpenRecords lists the ids of every open record in ascending order.
func (m *Manager) OpenRecords() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.records))
	for id := range m.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (m *Manager) openStates() []*recordState {
	m.mu.Lock()
	defer m.mu.Unlock()
	states := make([]*recordState, 0, len(m.records))
	for _, state := range m.records {
		states = append(states, state)
	}
	sort.Slice(states, func(i, j int) bool { return states[i].id < states[j].id })
	return states
}

// Recover reloads open records after a restart and resumes their pending
// grants. Recovered victims count as respawned.
func (m *Manager) Recover(ctx context.Context) (int, error) {
	records, err := m.deps.Store.ListOpen(ctx)
	if err != nil {
		return 0, errors.Wrap(errors.CodeTransactionFailed, "list open death records", err)
	}
	recovered := 0
	for _, record := range records {
		if m.lookup(record.ID) != nil {
			continue
		}
		state := m.track(record, true)
		recovered++
		if len(record.PendingGrants) == 0 {
			continue
		}
		if err := m.submit(ctx, state, func() bool {
			m.retryGrants(context.WithoutCancel(ctx), state, record.TimestampTick)
			state.publish()
			return false
		}); err != nil {
			return recovered, err
		}
	}
	if recovered > 0 {
		m.logf("[loot] recovered %d open death records", recovered)
	}
	return recovered, nil
}

// Close stops every record worker. Records stay in the store.
func (m *Manager) Close(ctx context.Context) error {
	m.stopOnce.Do(func() { close(m.stop) })
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) stopped() bool {
	select {
	case <-m.stop:
		return true
	default:
		return false
	}
}

func (m *Manager) add(key string, delta uint64) {
	if m.deps.Metrics != nil {
		m.deps.Metrics.Add(key, delta)
	}
}

func (m *Manager) logf(format string, args ...any) {
	if m.deps.Logger != nil {
		m.deps.Logger.Printf(format, args...)
	}
}

func logPosition(p entity.Position) loggingdeath.Position {
	return loggingdeath.Position{X: p.X, Y: p.Y, Plane: p.Plane}
}

func recordRef(id string) logging.EntityRef {
	return logging.EntityRef{ID: id, Kind: logging.EntityKindDeathRecord}
}
