package combat

import (
	"context"

	"graveward/logging"
)

const (
	// EventSessionStarted is emitted when an entity enters combat with a target.
	EventSessionStarted logging.EventType = "combat.session_started"
	// EventAttackResolved is emitted for every swing, hit or miss.
	EventAttackResolved logging.EventType = "combat.attack_resolved"
	// EventSessionEnded is emitted when a session is removed from the store.
	EventSessionEnded logging.EventType = "combat.session_ended"
	// EventRequestRejected is emitted when the guard denies an inbound request.
	EventRequestRejected logging.EventType = "combat.request_rejected"
)

// SessionStartedPayload describes a freshly engaged session.
type SessionStartedPayload struct {
	Style               string `json:"style"`
	AttackIntervalTicks uint64 `json:"attackIntervalTicks"`
	FirstAttackTick     uint64 `json:"firstAttackTick"`
	ExpiryTick          uint64 `json:"expiryTick"`
	Retaliation         bool   `json:"retaliation,omitempty"`
}

// AttackResolvedPayload captures the outcome of a single resolution.
type AttackResolvedPayload struct {
	Style        string `json:"style"`
	Hit          bool   `json:"hit"`
	Amount       int    `json:"amount"`
	Applied      int    `json:"applied"`
	MaxHit       int    `json:"maxHit"`
	TargetHealth int    `json:"targetHealth"`
	Fatal        bool   `json:"fatal,omitempty"`
}

// SessionEndedPayload records why and after how long a session ended.
type SessionEndedPayload struct {
	Reason        string `json:"reason"`
	DurationTicks uint64 `json:"durationTicks"`
}

// RequestRejectedPayload is kept for anti-automation auditing.
type RequestRejectedPayload struct {
	Action      string `json:"action"`
	Origin      string `json:"origin"`
	Reason      string `json:"reason"`
	RequestTick uint64 `json:"requestTick"`
	Rejections  uint64 `json:"rejections"`
}

// SessionStarted publishes a combat start event.
func SessionStarted(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, target logging.EntityRef, payload SessionStartedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSessionStarted,
		Tick:     tick,
		Actor:    actor,
		Targets:  []logging.EntityRef{target},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryCombat,
		Payload:  payload,
		Extra:    extra,
	})
}

// AttackResolved publishes the result of one attack against a single target.
func AttackResolved(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, target logging.EntityRef, payload AttackResolvedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	severity := logging.SeverityDebug
	if payload.Fatal {
		severity = logging.SeverityInfo
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventAttackResolved,
		Tick:     tick,
		Actor:    actor,
		Targets:  []logging.EntityRef{target},
		Severity: severity,
		Category: logging.CategoryCombat,
		Payload:  payload,
		Extra:    extra,
	})
}

// SessionEnded publishes a combat end event. The target ref may be empty when
// the session had lost its target.
func SessionEnded(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, target logging.EntityRef, payload SessionEndedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	var targets []logging.EntityRef
	if target.ID != "" {
		targets = []logging.EntityRef{target}
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSessionEnded,
		Tick:     tick,
		Actor:    actor,
		Targets:  targets,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryCombat,
		Payload:  payload,
		Extra:    extra,
	})
}

// RequestRejected publishes a guard denial.
func RequestRejected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, commandID string, payload RequestRejectedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:      EventRequestRejected,
		Tick:      tick,
		Actor:     actor,
		Severity:  logging.SeverityWarn,
		Category:  logging.CategoryCombat,
		Payload:   payload,
		Extra:     extra,
		CommandID: commandID,
	})
}
