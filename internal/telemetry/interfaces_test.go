package telemetry

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWrapZapLiftsComponentPrefix(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := WrapZap(zap.New(core))
	logger.Printf("[tick] tick %d overran", 7)
	logger.Printf("plain %s", "message")

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Message != "tick 7 overran" {
		t.Fatalf("unexpected message %q", entries[0].Message)
	}
	if got := entries[0].ContextMap()["component"]; got != "tick" {
		t.Fatalf("expected component field tick, got %v", got)
	}
	if entries[1].Message != "plain message" {
		t.Fatalf("unexpected message %q", entries[1].Message)
	}
	if _, ok := entries[1].ContextMap()["component"]; ok {
		t.Fatalf("expected no component on unprefixed message")
	}

	WrapZap(nil).Printf("ignored")
}

func TestSplitComponentIgnoresVerbsAndSpaces(t *testing.T) {
	cases := map[string]string{
		"[loot] recovered":   "loot",
		"[%s] dynamic":       "",
		"[two words] nope":   "",
		"[] empty":           "",
		"no bracket at all":  "",
		"[unterminated oops": "",
	}
	for input, want := range cases {
		if got, _ := splitComponent(input); got != want {
			t.Fatalf("expected %q to yield component %q, got %q", input, want, got)
		}
	}
}

func TestCountersAsMetrics(t *testing.T) {
	counters := &Counters{}
	metrics := WrapMetrics(counters)

	metrics.Add("test_counter", 2)
	metrics.Store("test_counter", 5)
	metrics.Add("test_counter", 3)

	if got := counters.Snapshot()["test_counter"]; got != 8 {
		t.Fatalf("unexpected metric value: %d", got)
	}
	if got := counters.Value("missing"); got != 0 {
		t.Fatalf("expected missing counter to read 0, got %d", got)
	}

	nop := WrapMetrics(nil)
	nop.Add("ignored", 1)
	nop.Store("ignored", 1)
}

func TestNewZapLoggerRejectsUnknownFormat(t *testing.T) {
	if _, err := NewZapLogger("info", "xml"); err == nil {
		t.Fatalf("expected error for unsupported format")
	}
	if _, err := NewZapLogger("loud", "json"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
	logger, err := NewZapLogger("debug", "json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_ = logger.Sync()
}
