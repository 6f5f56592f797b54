package sinks

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"graveward/logging"
)

// jsonLine is the on-disk shape of one event. Severity is written by name so
// that log processors need no enum table.
type jsonLine struct {
	Type      logging.EventType   `json:"type"`
	Tick      uint64              `json:"tick"`
	Time      time.Time           `json:"time"`
	Severity  string              `json:"severity"`
	Category  string              `json:"category,omitempty"`
	Actor     *logging.EntityRef  `json:"actor,omitempty"`
	Targets   []logging.EntityRef `json:"targets,omitempty"`
	Payload   any                 `json:"payload,omitempty"`
	Extra     map[string]any      `json:"extra,omitempty"`
	TraceID   string              `json:"traceId,omitempty"`
	CommandID string              `json:"commandId,omitempty"`
}

func toJSONLine(event logging.Event) jsonLine {
	line := jsonLine{
		Type:      event.Type,
		Tick:      event.Tick,
		Time:      event.Time.UTC(),
		Severity:  event.Severity.String(),
		Category:  event.Category,
		Targets:   event.Targets,
		Payload:   event.Payload,
		Extra:     event.Extra,
		TraceID:   event.TraceID,
		CommandID: event.CommandID,
	}
	if event.Actor.ID != "" {
		actor := event.Actor
		line.Actor = &actor
	}
	return line
}

// JSON appends newline-delimited events to a writer. Output is buffered and
// flushed on an interval, or after every event when the interval is zero.
type JSON struct {
	mu      sync.Mutex
	buf     *bufio.Writer
	enc     *json.Encoder
	closer  io.Closer
	eager   bool
	stop    chan struct{}
	stopped sync.Once
}

func NewJSON(w io.Writer, flushInterval time.Duration) *JSON {
	if w == nil {
		w = io.Discard
	}
	buf := bufio.NewWriter(w)
	s := &JSON{
		buf:   buf,
		enc:   json.NewEncoder(buf),
		eager: flushInterval <= 0,
		stop:  make(chan struct{}),
	}
	if closer, ok := w.(io.Closer); ok {
		s.closer = closer
	}
	if !s.eager {
		go s.flushEvery(flushInterval)
	}
	return s
}

// OpenJSONFile appends to path, creating its directory when missing.
func OpenJSONFile(path string, flushInterval time.Duration) (*JSON, error) {
	if path == "" {
		return nil, fmt.Errorf("json sink: file path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("json sink: create directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("json sink: open %s: %w", path, err)
	}
	return NewJSON(file, flushInterval), nil
}

func (s *JSON) Write(event logging.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(toJSONLine(event)); err != nil {
		return err
	}
	if s.eager {
		return s.buf.Flush()
	}
	return nil
}

func (s *JSON) flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Flush()
}

func (s *JSON) flushEvery(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			_ = s.flush()
		}
	}
}

// Close flushes pending output and closes the underlying writer when it is
// closable.
func (s *JSON) Close(context.Context) error {
	s.stopped.Do(func() { close(s.stop) })
	if err := s.flush(); err != nil {
		return err
	}
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
