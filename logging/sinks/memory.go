package sinks

import (
	"context"
	"sync"

	"graveward/logging"
)

// Memory records events for tests. It doubles as a logging.Publisher so
// components can be tested without a router.
type Memory struct {
	mu     sync.RWMutex
	events []logging.Event
}

func NewMemory() *Memory {
	return &Memory{}
}

func (s *Memory) Write(event logging.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event.Clone())
	return nil
}

func (s *Memory) Publish(_ context.Context, event logging.Event) {
	_ = s.Write(event)
}

// Events returns every recorded event in publication order.
func (s *Memory) Events() []logging.Event {
	return s.Filter(nil)
}

// OfType returns the recorded events of one type, in order.
func (s *Memory) OfType(eventType logging.EventType) []logging.Event {
	return s.Filter(func(event logging.Event) bool { return event.Type == eventType })
}

// Filter returns the recorded events keep accepts. A nil keep accepts all.
func (s *Memory) Filter(keep func(logging.Event) bool) []logging.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := make([]logging.Event, 0, len(s.events))
	for _, event := range s.events {
		if keep == nil || keep(event) {
			matched = append(matched, event.Clone())
		}
	}
	return matched
}

func (s *Memory) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

func (s *Memory) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}

func (s *Memory) Close(context.Context) error {
	return nil
}
