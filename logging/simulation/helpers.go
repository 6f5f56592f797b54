package simulation

import (
	"context"

	"graveward/logging"
)

const (
	// EventTickOverrun is emitted when the host stalled past one or more tick intervals.
	EventTickOverrun logging.EventType = "simulation.tick_overrun"
	// EventClockHalted is emitted when a tick listener fails and the clock stops.
	EventClockHalted logging.EventType = "simulation.clock_halted"
	// EventCommandDropped is emitted when the command queue refuses a staged command.
	EventCommandDropped logging.EventType = "simulation.command_dropped"
)

// TickOverrunPayload captures how far behind the clock fell.
type TickOverrunPayload struct {
	SkippedIntervals uint64 `json:"skippedIntervals"`
	LagMillis        int64  `json:"lagMillis"`
	IntervalMillis   int64  `json:"intervalMillis"`
}

type ClockHaltedPayload struct {
	Error string `json:"error"`
}

type CommandDroppedPayload struct {
	Command string `json:"command"`
	Reason  string `json:"reason"`
	Count   uint64 `json:"count"`
}

// TickOverrun publishes a warning when ticks fire late.
func TickOverrun(ctx context.Context, pub logging.Publisher, tick uint64, payload TickOverrunPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventTickOverrun,
		Tick:     tick,
		Actor:    logging.EntityRef{Kind: logging.EntityKindWorld},
		Severity: logging.SeverityWarn,
		Category: logging.CategorySimulation,
		Payload:  payload,
		Extra:    extra,
	})
}

// ClockHalted publishes the fatal clock stop.
func ClockHalted(ctx context.Context, pub logging.Publisher, tick uint64, payload ClockHaltedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventClockHalted,
		Tick:     tick,
		Actor:    logging.EntityRef{Kind: logging.EntityKindWorld},
		Severity: logging.SeverityError,
		Category: logging.CategorySimulation,
		Payload:  payload,
		Extra:    extra,
	})
}

// CommandDropped publishes a rejected enqueue for the given actor.
func CommandDropped(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload CommandDroppedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventCommandDropped,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategorySimulation,
		Payload:  payload,
		Extra:    extra,
	})
}
