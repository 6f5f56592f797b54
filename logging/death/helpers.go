package death

import (
	"context"

	"graveward/logging"
)

const (
	// EventDeathOccurred is emitted once a death record has been committed.
	EventDeathOccurred logging.EventType = "death.occurred"
	// EventItemClaimed is emitted when an item id is appended to a record's claimed set.
	EventItemClaimed logging.EventType = "death.item_claimed"
	// EventClaimRejected is emitted when a claim does not take the item.
	EventClaimRejected logging.EventType = "death.claim_rejected"
	// EventClaimWindowExpired is emitted once per record when protection lapses.
	EventClaimWindowExpired logging.EventType = "death.claim_window_expired"
	// EventRecordClosed is emitted when a record's cleanup deadline passes.
	EventRecordClosed logging.EventType = "death.record_closed"
	// EventTransactionFailed is emitted when a death or grant could not be committed.
	EventTransactionFailed logging.EventType = "death.transaction_failed"
)

type Position struct {
	X     int `json:"x"`
	Y     int `json:"y"`
	Plane int `json:"plane"`
}

type DeathOccurredPayload struct {
	RecordID          string   `json:"recordId"`
	Position          Position `json:"position"`
	ItemCount         int      `json:"itemCount"`
	ClaimWindowExpiry uint64   `json:"claimWindowExpiry"`
	ExpiresAtTick     uint64   `json:"expiresAtTick"`
}

type ItemClaimedPayload struct {
	RecordID string `json:"recordId"`
	ItemID   string `json:"itemId"`
	ItemType string `json:"itemType,omitempty"`
	Quantity int    `json:"quantity"`
}

type ClaimRejectedPayload struct {
	RecordID string `json:"recordId"`
	ItemID   string `json:"itemId"`
	Status   string `json:"status"`
}

type ClaimWindowExpiredPayload struct {
	RecordID  string `json:"recordId"`
	Remaining int    `json:"remaining"`
}

type RecordClosedPayload struct {
	RecordID  string `json:"recordId"`
	Unclaimed int    `json:"unclaimed"`
}

type TransactionFailedPayload struct {
	RecordID string `json:"recordId"`
	Stage    string `json:"stage"`
	Error    string `json:"error"`
}

// DeathOccurred publishes a committed death. The killer, when known, is the only target.
func DeathOccurred(ctx context.Context, pub logging.Publisher, tick uint64, victim logging.EntityRef, killer *logging.EntityRef, payload DeathOccurredPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	var targets []logging.EntityRef
	if killer != nil {
		targets = []logging.EntityRef{*killer}
	}
	publish(ctx, pub, EventDeathOccurred, tick, victim, targets, logging.SeverityInfo, payload, extra)
}

// ItemClaimed publishes a successful claim by claimant.
func ItemClaimed(ctx context.Context, pub logging.Publisher, tick uint64, claimant logging.EntityRef, payload ItemClaimedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	publish(ctx, pub, EventItemClaimed, tick, claimant, nil, logging.SeverityInfo, payload, extra)
}

func ClaimRejected(ctx context.Context, pub logging.Publisher, tick uint64, claimant logging.EntityRef, payload ClaimRejectedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	publish(ctx, pub, EventClaimRejected, tick, claimant, nil, logging.SeverityDebug, payload, extra)
}

func ClaimWindowExpired(ctx context.Context, pub logging.Publisher, tick uint64, record logging.EntityRef, payload ClaimWindowExpiredPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	publish(ctx, pub, EventClaimWindowExpired, tick, record, nil, logging.SeverityInfo, payload, extra)
}

func RecordClosed(ctx context.Context, pub logging.Publisher, tick uint64, record logging.EntityRef, payload RecordClosedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	publish(ctx, pub, EventRecordClosed, tick, record, nil, logging.SeverityInfo, payload, extra)
}

func TransactionFailed(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload TransactionFailedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	publish(ctx, pub, EventTransactionFailed, tick, actor, nil, logging.SeverityError, payload, extra)
}

func publish(ctx context.Context, pub logging.Publisher, eventType logging.EventType, tick uint64, actor logging.EntityRef, targets []logging.EntityRef, severity logging.Severity, payload any, extra map[string]any) {
	pub.Publish(ctx, logging.Event{
		Type:     eventType,
		Tick:     tick,
		Actor:    actor,
		Targets:  targets,
		Severity: severity,
		Category: logging.CategoryDeath,
		Payload:  payload,
		Extra:    extra,
	})
}
