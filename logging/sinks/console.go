package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"graveward/logging"
)

// Console writes one key=value line per event, e.g.
//
//	12:04:05.120 WARN  combat.request_rejected tick=41 actor=player:7 reason="over_rate"
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsole(w io.Writer) *Console {
	if w == nil {
		w = io.Discard
	}
	return &Console{w: w}
}

func (s *Console) Write(event logging.Event) error {
	var b strings.Builder
	stamp := event.Time
	if stamp.IsZero() {
		stamp = time.Now()
	}
	fmt.Fprintf(&b, "%s %-5s %s tick=%d", stamp.Format("15:04:05.000"), strings.ToUpper(event.Severity.String()), event.Type, event.Tick)
	if actor := formatRef(event.Actor); actor != "" {
		b.WriteString(" actor=" + actor)
	}
	if len(event.Targets) > 0 {
		refs := make([]string, 0, len(event.Targets))
		for _, target := range event.Targets {
			refs = append(refs, formatRef(target))
		}
		b.WriteString(" targets=" + strings.Join(refs, ","))
	}
	writePayload(&b, event.Payload)
	for _, key := range slices.Sorted(maps.Keys(event.Extra)) {
		fmt.Fprintf(&b, " %s=%v", key, event.Extra[key])
	}
	if event.CommandID != "" {
		b.WriteString(" command=" + event.CommandID)
	}
	if event.TraceID != "" {
		b.WriteString(" trace=" + event.TraceID)
	}
	b.WriteByte('\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := io.WriteString(s.w, b.String())
	return err
}

func (s *Console) Close(context.Context) error {
	return nil
}

func formatRef(ref logging.EntityRef) string {
	switch {
	case ref.ID == "":
		return ""
	case ref.Kind == "" || ref.Kind == logging.EntityKindUnknown:
		return ref.ID
	case ref.Kind == logging.EntityKindDeathRecord:
		return "record:" + ref.ID
	default:
		return string(ref.Kind) + ":" + ref.ID
	}
}

// writePayload flattens the top-level payload fields into key=value pairs.
// Payloads that do not encode to a JSON object are written whole.
func writePayload(b *strings.Builder, payload any) {
	if payload == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		fmt.Fprintf(b, " payload=%v", payload)
		return
	}
	var fields map[string]json.RawMessage
	if json.Unmarshal(data, &fields) != nil {
		fmt.Fprintf(b, " payload=%s", data)
		return
	}
	for _, key := range slices.Sorted(maps.Keys(fields)) {
		fmt.Fprintf(b, " %s=%s", key, fields[key])
	}
}
