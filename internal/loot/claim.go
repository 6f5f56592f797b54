package loot

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"graveward/internal/entity"
	"graveward/internal/items"
	loggingdeath "graveward/logging/death"
)

// ClaimStatus is the outcome of one claim. Conflicts are statuses, not errors.
type ClaimStatus string

const (
	ClaimGranted      ClaimStatus = "granted"
	ClaimNotAvailable ClaimStatus = "not_available"
	ClaimProtected    ClaimStatus = "protected"
	ClaimNoCapacity   ClaimStatus = "no_capacity"
	ClaimGone         ClaimStatus = "gone"
	ClaimUnknownItem  ClaimStatus = "unknown_item"
	ClaimFailed       ClaimStatus = "failed"
)

// ClaimRequest asks for one item of a death record.
type ClaimRequest struct {
	RequestID    string      `json:"requestId,omitempty"`
	RecordID     string      `json:"recordId"`
	ClaimantID   entity.ID   `json:"claimantId"`
	ClaimantKind entity.Kind `json:"claimantKind"`
	ItemID       string      `json:"itemId"`
	Tick         uint64      `json:"tick"`
}

type ClaimResult struct {
	Status   ClaimStatus `json:"status"`
	RecordID string      `json:"recordId"`
	ItemID   string      `json:"itemId"`
	Item     *items.Item `json:"item,omitempty"`
	// Pending is set when the item is claimed but the inventory hand-off
	// has not succeeded yet; Sweep retries it.
	Pending bool  `json:"pending,omitempty"`
	Err     error `json:"-"`
}

// Claim queues req on the worker of its record and waits for the outcome.
// Claims against one record never run concurrently.
func (m *Manager) Claim(ctx context.Context, req ClaimRequest) ClaimResult {
	ctx, span := m.tracer.Start(ctx, "loot.Claim", trace.WithAttributes(
		attribute.String("record.id", req.RecordID),
		attribute.String("item.id", req.ItemID),
		attribute.Int64("claimant.id", int64(req.ClaimantID)),
	))
	defer span.End()

	result := m.claim(ctx, req)
	span.SetAttributes(attribute.String("claim.status", string(result.Status)))
	if result.Err != nil {
		span.RecordError(result.Err)
		span.SetStatus(otelcodes.Error, string(result.Status))
	}
	m.add("loot_claims_"+string(result.Status), 1)
	return result
}

func (m *Manager) claim(ctx context.Context, req ClaimRequest) ClaimResult {
	base := ClaimResult{RecordID: req.RecordID, ItemID: req.ItemID}
	state := m.lookup(req.RecordID)
	if state == nil {
		base.Status = ClaimGone
		m.rejected(ctx, req, base.Status)
		return base
	}

	reply := make(chan ClaimResult, 1)
	work := context.WithoutCancel(ctx)
	err := m.submit(ctx, state, func() bool {
		reply <- m.applyClaim(work, state, req)
		return false
	})
	if err != nil {
		return m.abandoned(ctx, req, base, err)
	}

	select {
	case result := <-reply:
		return result
	case <-state.quit:
		select {
		case result := <-reply:
			return result
		default:
		}
		return m.abandoned(ctx, req, base, nil)
	case <-ctx.Done():
		base.Status = ClaimFailed
		base.Err = ctx.Err()
		return base
	}
}

func (m *Manager) abandoned(ctx context.Context, req ClaimRequest, base ClaimResult, err error) ClaimResult {
	switch {
	case ctx.Err() != nil:
		base.Status = ClaimFailed
		base.Err = ctx.Err()
	case m.stopped():
		base.Status = ClaimFailed
		base.Err = err
	default:
		base.Status = ClaimGone
		m.rejected(ctx, req, base.Status)
	}
	return base
}

// applyClaim runs on the record worker.
func (m *Manager) applyClaim(ctx context.Context, state *recordState, req ClaimRequest) ClaimResult {
	record := state.record
	result := ClaimResult{RecordID: record.ID, ItemID: req.ItemID}

	reject := func(status ClaimStatus, err error) ClaimResult {
		result.Status = status
		result.Err = err
		m.rejected(ctx, req, status)
		return result
	}

	if record.Closed || req.Tick >= record.ExpiresAtTick {
		return reject(ClaimGone, nil)
	}
	item, ok := record.ItemManifest.Find(req.ItemID)
	if !ok {
		return reject(ClaimUnknownItem, nil)
	}
	if record.IsClaimed(item.ID) {
		return reject(ClaimNotAvailable, nil)
	}
	if record.ProtectedAt(req.Tick) && req.ClaimantID != record.ProtectedClaimantID {
		return reject(ClaimProtected, nil)
	}
	fits, err := m.deps.Inventory.HasCapacity(ctx, req.ClaimantID, item)
	if err != nil {
		m.logf("[loot] capacity check for %d on %s failed: %v", req.ClaimantID, record.ID, err)
		return reject(ClaimFailed, err)
	}
	if !fits {
		return reject(ClaimNoCapacity, nil)
	}

	next := record.Clone()
	next.ClaimedItemIDs = append(next.ClaimedItemIDs, item.ID)
	next.PendingGrants = append(next.PendingGrants, PendingGrant{ItemID: item.ID, ClaimantID: req.ClaimantID})
	if err := m.deps.Store.Put(ctx, next); err != nil {
		m.transactionFailed(ctx, req.Tick, record, "claim", err)
		return reject(ClaimFailed, err)
	}
	state.record = next
	state.publish()

	granted := m.settle(ctx, state, len(next.PendingGrants)-1, req.Tick)
	state.publish()

	result.Status = ClaimGranted
	result.Item = &item
	result.Pending = !granted
	extra := map[string]any{}
	if req.RequestID != "" {
		extra["commandId"] = req.RequestID
	}
	if result.Pending {
		extra["pending"] = true
	}
	loggingdeath.ItemClaimed(ctx, m.deps.Publisher, req.Tick, entity.Ref{ID: req.ClaimantID, Kind: req.ClaimantKind}.Log(), loggingdeath.ItemClaimedPayload{
		RecordID: record.ID,
		ItemID:   item.ID,
		ItemType: item.Type,
		Quantity: item.Quantity,
	}, extra)
	return result
}

// settle hands the pending grant at index to the inventory. On success the
// grant is dropped from the record; on failure its attempt count grows and it
// stays for the next retry. It runs on the record worker.
func (m *Manager) settle(ctx context.Context, state *recordState, index int, tick uint64) bool {
	record := state.record
	if index < 0 || index >= len(record.PendingGrants) {
		return false
	}
	grant := record.PendingGrants[index]
	item, ok := record.ItemManifest.Find(grant.ItemID)
	if !ok {
		return false
	}

	next := record.Clone()
	if err := m.deps.Inventory.GrantItem(ctx, grant.ClaimantID, item); err != nil {
		next.PendingGrants[index].Attempts++
		state.record = next
		m.add("loot_grant_failures_total", 1)
		m.logf("[loot] grant of %s from %s to %d failed (attempt %d): %v", item.ID, record.ID, grant.ClaimantID, next.PendingGrants[index].Attempts, err)
		m.transactionFailed(ctx, tick, record, "grant", err)
		if putErr := m.deps.Store.Put(ctx, next); putErr != nil {
			m.logf("[loot] persist attempt count of %s failed: %v", record.ID, putErr)
		}
		return false
	}

	next.PendingGrants = append(next.PendingGrants[:index:index], next.PendingGrants[index+1:]...)
	state.record = next
	if err := m.deps.Store.Put(ctx, next); err != nil {
		m.logf("[loot] persist settled grant of %s on %s failed: %v", item.ID, record.ID, err)
	}
	return true
}

// retryGrants settles every pending grant of state, oldest first.
func (m *Manager) retryGrants(ctx context.Context, state *recordState, tick uint64) {
	for i := 0; i < len(state.record.PendingGrants); {
		m.add("loot_grant_retries_total", 1)
		if m.settle(ctx, state, i, tick) {
			continue
		}
		i++
	}
}

func (m *Manager) rejected(ctx context.Context, req ClaimRequest, status ClaimStatus) {
	loggingdeath.ClaimRejected(ctx, m.deps.Publisher, req.Tick, entity.Ref{ID: req.ClaimantID, Kind: req.ClaimantKind}.Log(), loggingdeath.ClaimRejectedPayload{
		RecordID: req.RecordID,
		ItemID:   req.ItemID,
		Status:   string(status),
	}, nil)
}

func (m *Manager) transactionFailed(ctx context.Context, tick uint64, record DeathRecord, stage string, err error) {
	loggingdeath.TransactionFailed(ctx, m.deps.Publisher, tick, recordRef(record.ID), loggingdeath.TransactionFailedPayload{
		RecordID: record.ID,
		Stage:    stage,
		Error:    err.Error(),
	}, nil)
}
