package telemetry

import (
	"sync"
	"sync/atomic"
)

// Counters is a concurrency-safe registry of named uint64 counters.
type Counters struct {
	values sync.Map // string -> *atomic.Uint64
}

func (c *Counters) counter(key string) *atomic.Uint64 {
	if existing, ok := c.values.Load(key); ok {
		return existing.(*atomic.Uint64)
	}
	actual, _ := c.values.LoadOrStore(key, new(atomic.Uint64))
	return actual.(*atomic.Uint64)
}

func (c *Counters) Add(key string, delta uint64) {
	if c == nil || key == "" {
		return
	}
	c.counter(key).Add(delta)
}

func (c *Counters) Store(key string, value uint64) {
	if c == nil || key == "" {
		return
	}
	c.counter(key).Store(value)
}

func (c *Counters) Value(key string) uint64 {
	if c == nil {
		return 0
	}
	if existing, ok := c.values.Load(key); ok {
		return existing.(*atomic.Uint64).Load()
	}
	return 0
}

// Snapshot copies every counter into a plain map.
func (c *Counters) Snapshot() map[string]uint64 {
	snapshot := make(map[string]uint64)
	if c == nil {
		return snapshot
	}
	c.values.Range(func(key, value any) bool {
		snapshot[key.(string)] = value.(*atomic.Uint64).Load()
		return true
	})
	return snapshot
}
