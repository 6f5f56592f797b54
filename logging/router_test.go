package logging_test

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace"

	"graveward/logging"
	"graveward/logging/sinks"
)

func TestRouterDeliversEventsInOrder(t *testing.T) {
	cfg := logging.DefaultConfig()
	cfg.EnabledSinks = []string{"memory"}
	cfg.MinimumSeverity = logging.SeverityDebug
	cfg.Fields = map[string]any{"service": "graveward"}
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	memory := sinks.NewMemory()

	router, err := logging.NewRouter(cfg, logging.ClockFunc(func() time.Time { return fixed }), nil, map[string]logging.Sink{"memory": memory})
	if err != nil {
		t.Fatalf("unexpected router error: %v", err)
	}
	for i := uint64(1); i <= 3; i++ {
		router.Publish(context.Background(), logging.Event{Type: "test.event", Tick: i})
	}
	if err := router.Close(context.Background()); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}

	events := memory.Events()
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	for i, event := range events {
		if event.Tick != uint64(i+1) {
			t.Fatalf("expected tick %d at position %d, got %d", i+1, i, event.Tick)
		}
		if !event.Time.Equal(fixed) {
			t.Fatalf("expected router clock to stamp events, got %v", event.Time)
		}
		if event.Extra["service"] != "graveward" {
			t.Fatalf("expected default field on event, got %v", event.Extra)
		}
	}
	if stats := router.Stats(); stats.EventsTotal != 3 {
		t.Fatalf("expected 3 events counted, got %d", stats.EventsTotal)
	}
}

func TestRouterFiltersBelowMinimumSeverity(t *testing.T) {
	cfg := logging.DefaultConfig()
	cfg.EnabledSinks = []string{"memory"}
	cfg.MinimumSeverity = logging.SeverityWarn
	memory := sinks.NewMemory()

	router, err := logging.NewRouter(cfg, nil, nil, map[string]logging.Sink{"memory": memory})
	if err != nil {
		t.Fatalf("unexpected router error: %v", err)
	}
	router.Publish(context.Background(), logging.Event{Type: "debug.event", Severity: logging.SeverityDebug})
	router.Publish(context.Background(), logging.Event{Type: "warn.event", Severity: logging.SeverityWarn})
	if err := router.Close(context.Background()); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}

	events := memory.Events()
	if len(events) != 1 || events[0].Type != "warn.event" {
		t.Fatalf("expected only the warn event, got %+v", events)
	}
}

func TestRouterRejectsConfigWithoutEnabledSinks(t *testing.T) {
	cfg := logging.DefaultConfig()
	cfg.EnabledSinks = []string{"console"}
	if _, err := logging.NewRouter(cfg, nil, nil, map[string]logging.Sink{"memory": sinks.NewMemory()}); err == nil {
		t.Fatalf("expected error when no provided sink is enabled")
	}
}

func TestWithFieldsKeepsEventValues(t *testing.T) {
	memory := sinks.NewMemory()
	pub := logging.WithFields(memory, map[string]any{"shard": "a", "zone": "north"})
	pub.Publish(context.Background(), logging.Event{Type: "test.fields", Extra: map[string]any{"zone": "south"}})

	events := memory.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Extra["zone"] != "south" {
		t.Fatalf("expected event value to win, got %v", events[0].Extra["zone"])
	}
	if events[0].Extra["shard"] != "a" {
		t.Fatalf("expected decorated field, got %v", events[0].Extra)
	}
}

func TestParseSeverity(t *testing.T) {
	cases := map[string]logging.Severity{
		"debug":   logging.SeverityDebug,
		" WARN ":  logging.SeverityWarn,
		"warning": logging.SeverityWarn,
		"error":   logging.SeverityError,
		"":        logging.SeverityInfo,
		"verbose": logging.SeverityInfo,
	}
	for input, want := range cases {
		if got := logging.ParseSeverity(input); got != want {
			t.Fatalf("expected %q to parse as %s, got %s", input, want, got)
		}
	}
}

func TestRouterFiltersCategories(t *testing.T) {
	cfg := logging.DefaultConfig()
	cfg.EnabledSinks = []string{"memory"}
	cfg.Categories = []string{logging.CategoryDeath}
	memory := sinks.NewMemory()

	router, err := logging.NewRouter(cfg, nil, nil, map[string]logging.Sink{"memory": memory})
	if err != nil {
		t.Fatalf("unexpected router error: %v", err)
	}
	router.Publish(context.Background(), logging.Event{Type: "combat.attack_resolved", Category: logging.CategoryCombat, Severity: logging.SeverityInfo})
	router.Publish(context.Background(), logging.Event{Type: "death.occurred", Category: logging.CategoryDeath, Severity: logging.SeverityInfo})
	if err := router.Close(context.Background()); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}

	events := memory.Events()
	if len(events) != 1 || events[0].Type != "death.occurred" {
		t.Fatalf("expected only the death event, got %+v", events)
	}
	if stats := router.Stats(); stats.FilteredTotal != 1 {
		t.Fatalf("expected 1 filtered event, got %d", stats.FilteredTotal)
	}
}

func TestRouterStampsTraceIDFromContext(t *testing.T) {
	cfg := logging.DefaultConfig()
	cfg.EnabledSinks = []string{"memory"}
	memory := sinks.NewMemory()
	router, err := logging.NewRouter(cfg, nil, nil, map[string]logging.Sink{"memory": memory})
	if err != nil {
		t.Fatalf("unexpected router error: %v", err)
	}

	traceID := trace.TraceID{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10}
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     trace.SpanID{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	router.Publish(ctx, logging.Event{Type: "death.occurred", Severity: logging.SeverityInfo})
	router.Publish(context.Background(), logging.Event{Type: "death.item_claimed", Severity: logging.SeverityInfo})
	if err := router.Close(context.Background()); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}

	events := memory.Events()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].TraceID != traceID.String() {
		t.Fatalf("expected trace id %s, got %q", traceID, events[0].TraceID)
	}
	if events[1].TraceID != "" {
		t.Fatalf("expected no trace id without a span, got %q", events[1].TraceID)
	}
}

type failingSink struct {
	closed bool
}

func (s *failingSink) Write(logging.Event) error { return errors.New("disk full") }

func (s *failingSink) Close(context.Context) error {
	s.closed = true
	return nil
}

func TestRouterIsolatesFailingSink(t *testing.T) {
	cfg := logging.DefaultConfig()
	cfg.EnabledSinks = []string{"broken", "memory"}
	cfg.MaxRetryDelay = time.Millisecond
	memory := sinks.NewMemory()
	broken := &failingSink{}

	router, err := logging.NewRouter(cfg, nil, log.New(io.Discard, "", 0), map[string]logging.Sink{"broken": broken, "memory": memory})
	if err != nil {
		t.Fatalf("unexpected router error: %v", err)
	}
	for i := uint64(1); i <= 4; i++ {
		router.Publish(context.Background(), logging.Event{Type: "test.event", Tick: i, Severity: logging.SeverityInfo})
	}
	if err := router.Close(context.Background()); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}

	if got := len(memory.Events()); got != 4 {
		t.Fatalf("expected the healthy sink to get 4 events, got %d", got)
	}
	stats := router.Stats()
	if stats.Sinks["broken"].Failed == 0 || stats.Sinks["broken"].Written != 0 {
		t.Fatalf("expected failures on the broken sink, got %+v", stats.Sinks["broken"])
	}
	if stats.Sinks["memory"].Written != 4 {
		t.Fatalf("expected 4 writes on memory sink, got %+v", stats.Sinks["memory"])
	}
	if !broken.closed {
		t.Fatalf("expected the broken sink to be closed")
	}
}
