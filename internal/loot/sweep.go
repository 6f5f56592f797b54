package loot

import (
	"context"

	loggingdeath "graveward/logging/death"
)

// Sweep advances every open record to tick: it announces lapsed claim
// windows once, retries pending grants and closes records whose cleanup
// deadline passed. It waits for every record worker to finish.
func (m *Manager) Sweep(ctx context.Context, tick uint64) error {
	states := m.openStates()
	done := make([]chan struct{}, 0, len(states))
	submitted := make([]*recordState, 0, len(states))
	work := context.WithoutCancel(ctx)
	for _, state := range states {
		finished := make(chan struct{})
		err := m.submit(ctx, state, func() bool {
			defer close(finished)
			if m.sweep(work, state, tick) {
				m.forget(state)
				return true
			}
			return false
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		done = append(done, finished)
		submitted = append(submitted, state)
	}
	for i, finished := range done {
		select {
		case <-finished:
		case <-submitted[i].quit:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// sweep runs on the record worker and reports whether the record closed.
func (m *Manager) sweep(ctx context.Context, state *recordState, tick uint64) bool {
	defer state.publish()

	if !state.record.WindowAnnounced && tick >= state.record.ClaimWindowExpiry {
		next := state.record.Clone()
		next.WindowAnnounced = true
		state.record = next
		if err := m.deps.Store.Put(ctx, next); err != nil {
			m.logf("[loot] persist window expiry of %s failed: %v", next.ID, err)
		}
		loggingdeath.ClaimWindowExpired(ctx, m.deps.Publisher, tick, recordRef(next.ID), loggingdeath.ClaimWindowExpiredPayload{
			RecordID:  next.ID,
			Remaining: len(next.Unclaimed()),
		}, nil)
	}

	if len(state.record.PendingGrants) > 0 {
		m.retryGrants(ctx, state, tick)
	}

	if tick < state.record.ExpiresAtTick || len(state.record.PendingGrants) > 0 {
		return false
	}
	closed := state.record.Clone()
	closed.Closed = true
	if err := m.deps.Store.Put(ctx, closed); err != nil {
		m.logf("[loot] closing %s failed, will retry: %v", closed.ID, err)
		return false
	}
	state.record = closed
	m.add("loot_records_closed_total", 1)
	loggingdeath.RecordClosed(ctx, m.deps.Publisher, tick, recordRef(closed.ID), loggingdeath.RecordClosedPayload{
		RecordID:  closed.ID,
		Unclaimed: len(closed.Unclaimed()),
	}, nil)
	return true
}
