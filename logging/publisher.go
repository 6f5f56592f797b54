package logging

import (
	"context"
	"maps"
	"strings"
	"time"
)

type EventType string

// Severity orders events from debug to error.
type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarn
	SeverityError
)

var severityNames = [...]string{
	SeverityDebug: "debug",
	SeverityInfo:  "info",
	SeverityWarn:  "warn",
	SeverityError: "error",
}

func (s Severity) String() string {
	if s < 0 || int(s) >= len(severityNames) {
		return "unknown"
	}
	return severityNames[s]
}

// ParseSeverity maps a configured level name onto a Severity. Unknown names
// yield SeverityInfo.
func ParseSeverity(value string) Severity {
	name := strings.ToLower(strings.TrimSpace(value))
	if name == "warning" {
		return SeverityWarn
	}
	for severity, candidate := range severityNames {
		if candidate == name {
			return Severity(severity)
		}
	}
	return SeverityInfo
}

type EntityKind string

const (
	EntityKindUnknown     EntityKind = "unknown"
	EntityKindPlayer      EntityKind = "player"
	EntityKindNPC         EntityKind = "npc"
	EntityKindDeathRecord EntityKind = "death_record"
	EntityKindWorld       EntityKind = "world"
)

// EntityRef names the subject of an event. Ids are strings so that death
// records and entities share one shape.
type EntityRef struct {
	ID   string     `json:"id"`
	Kind EntityKind `json:"kind"`
}

const (
	CategoryCombat     = "combat"
	CategoryDeath      = "death"
	CategorySimulation = "simulation"
	CategoryLifecycle  = "lifecycle"
	CategorySystem     = "system"
)

// Event is one gameplay fact. Tick is the simulation tick it happened on;
// Time is stamped by the router when left zero.
type Event struct {
	Type      EventType      `json:"type"`
	Tick      uint64         `json:"tick"`
	Time      time.Time      `json:"time"`
	Actor     EntityRef      `json:"actor"`
	Targets   []EntityRef    `json:"targets,omitempty"`
	Severity  Severity       `json:"severity"`
	Category  string         `json:"category,omitempty"`
	Payload   any            `json:"payload,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
	TraceID   string         `json:"traceId,omitempty"`
	CommandID string         `json:"commandId,omitempty"`
}

// Clone copies the slices and maps of the event. Payloads are shared and
// must be treated as immutable once published.
func (e Event) Clone() Event {
	if e.Targets != nil {
		e.Targets = append([]EntityRef(nil), e.Targets...)
	}
	e.Extra = maps.Clone(e.Extra)
	return e
}

func (e Event) WithExtra(key string, value any) Event {
	e = e.Clone()
	if e.Extra == nil {
		e.Extra = make(map[string]any, 1)
	}
	e.Extra[key] = value
	return e
}

// withDefaults returns a copy of e carrying every field the event does not
// already set.
func (e Event) withDefaults(fields map[string]any) Event {
	if len(fields) == 0 {
		return e
	}
	e = e.Clone()
	if e.Extra == nil {
		e.Extra = make(map[string]any, len(fields))
	}
	for key, value := range fields {
		if _, set := e.Extra[key]; !set {
			e.Extra[key] = value
		}
	}
	return e
}

type Publisher interface {
	Publish(ctx context.Context, event Event)
}

type PublisherFunc func(ctx context.Context, event Event)

func (f PublisherFunc) Publish(ctx context.Context, event Event) {
	if f != nil {
		f(ctx, event)
	}
}

// NopPublisher discards every event.
func NopPublisher() Publisher {
	return PublisherFunc(nil)
}

// WithFields decorates every event published through p with fields. Values
// already present on an event win.
func WithFields(p Publisher, fields map[string]any) Publisher {
	if p == nil {
		return NopPublisher()
	}
	if len(fields) == 0 {
		return p
	}
	fields = maps.Clone(fields)
	return PublisherFunc(func(ctx context.Context, event Event) {
		p.Publish(ctx, event.withDefaults(fields))
	})
}
