package logging

import (
	"context"
	"errors"
	"fmt"
	"log"
	"maps"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"
)

type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	return f()
}

// SystemClock reports wall-clock time.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

type Sink interface {
	Write(Event) error
	Close(context.Context) error
}

// Router delivers published events to named sinks. Publish never blocks the
// simulation: a full queue drops the event, and a slow sink only loses its
// own backlog.
type Router struct {
	cfg      Config
	clock    Clock
	fallback *log.Logger
	queue    chan Event
	outlets  []*outlet
	done     chan struct{}
	closed   atomic.Bool
	wg       sync.WaitGroup

	delivered atomic.Uint64
	dropped   atomic.Uint64
	filtered  atomic.Uint64
	quietTill atomic.Int64
}

type RouterStats struct {
	EventsTotal   uint64               `json:"eventsTotal"`
	DroppedTotal  uint64               `json:"droppedTotal"`
	FilteredTotal uint64               `json:"filteredTotal"`
	Sinks         map[string]SinkStats `json:"sinks,omitempty"`
}

type SinkStats struct {
	Written uint64 `json:"written"`
	Failed  uint64 `json:"failed"`
	Dropped uint64 `json:"dropped"`
}

// NewRouter starts a router over the sinks enabled in cfg. Sinks are
// attached in name order.
func NewRouter(cfg Config, clock Clock, fallback *log.Logger, sinks map[string]Sink) (*Router, error) {
	cfg = cfg.normalized()
	if clock == nil {
		clock = SystemClock{}
	}
	if fallback == nil {
		fallback = log.New(os.Stderr, "[logging] ", log.LstdFlags)
	}

	r := &Router{
		cfg:      cfg,
		clock:    clock,
		fallback: fallback,
		queue:    make(chan Event, cfg.BufferSize),
		done:     make(chan struct{}),
	}
	for _, name := range slices.Sorted(maps.Keys(sinks)) {
		sink := sinks[name]
		if sink == nil || (len(cfg.EnabledSinks) > 0 && !cfg.HasSink(name)) {
			continue
		}
		r.outlets = append(r.outlets, &outlet{
			name:     name,
			sink:     sink,
			events:   make(chan Event, cfg.SinkBuffer),
			fallback: fallback,
			maxDelay: cfg.MaxRetryDelay,
		})
	}
	if len(sinks) > 0 && len(r.outlets) == 0 {
		return nil, errors.New("logging: no enabled sinks")
	}

	r.wg.Add(1 + len(r.outlets))
	go r.dispatch()
	for _, o := range r.outlets {
		go func() {
			defer r.wg.Done()
			o.run(r.done)
		}()
	}
	return r, nil
}

// Publish queues event. Events below the minimum severity or outside the
// configured categories are counted and discarded. When ctx carries a
// recording span its trace id is attached.
func (r *Router) Publish(ctx context.Context, event Event) {
	if r == nil || event.Type == "" || r.closed.Load() {
		return
	}
	if !r.cfg.Routes(event) {
		r.filtered.Add(1)
		return
	}
	if event.TraceID == "" && ctx != nil {
		if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
			event.TraceID = sc.TraceID().String()
		}
	}
	select {
	case r.queue <- event:
	default:
		r.dropped.Add(1)
		r.warnDrop(event)
	}
}

func (r *Router) warnDrop(event Event) {
	now := r.clock.Now().UnixNano()
	quiet := r.quietTill.Load()
	if now < quiet || !r.quietTill.CompareAndSwap(quiet, now+r.cfg.DropWarnInterval.Nanoseconds()) {
		return
	}
	r.fallback.Printf("queue full, dropping event type=%s tick=%d (dropped so far: %d)", event.Type, event.Tick, r.dropped.Load())
}

func (r *Router) dispatch() {
	defer r.wg.Done()
	defer func() {
		for _, o := range r.outlets {
			close(o.events)
		}
	}()
	for {
		select {
		case event := <-r.queue:
			r.deliver(event)
		case <-r.done:
			for {
				select {
				case event := <-r.queue:
					r.deliver(event)
				default:
					return
				}
			}
		}
	}
}

func (r *Router) deliver(event Event) {
	if event.Time.IsZero() {
		event.Time = r.clock.Now()
	}
	event = event.withDefaults(r.cfg.Fields)
	r.delivered.Add(1)
	for _, o := range r.outlets {
		o.offer(event.Clone())
	}
}

// Close stops accepting events, flushes what is queued and closes every
// sink. Sink close errors are joined.
func (r *Router) Close(ctx context.Context) error {
	if r == nil || !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(r.done)
	flushed := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(flushed)
	}()
	select {
	case <-flushed:
	case <-ctx.Done():
		return ctx.Err()
	}
	var errs []error
	for _, o := range r.outlets {
		if err := o.sink.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close sink %s: %w", o.name, err))
		}
	}
	return errors.Join(errs...)
}

func (r *Router) Stats() RouterStats {
	if r == nil {
		return RouterStats{}
	}
	stats := RouterStats{
		EventsTotal:   r.delivered.Load(),
		DroppedTotal:  r.dropped.Load(),
		FilteredTotal: r.filtered.Load(),
		Sinks:         make(map[string]SinkStats, len(r.outlets)),
	}
	for _, o := range r.outlets {
		stats.Sinks[o.name] = SinkStats{
			Written: o.written.Load(),
			Failed:  o.failed.Load(),
			Dropped: o.dropped.Load(),
		}
	}
	return stats
}

// Sink returns the attached sink called name, or nil.
func (r *Router) Sink(name string) Sink {
	for _, o := range r.outlets {
		if o.name == name {
			return o.sink
		}
	}
	return nil
}

// outlet feeds one sink from its own backlog so a failing sink cannot
// stall the others.
type outlet struct {
	name     string
	sink     Sink
	events   chan Event
	fallback *log.Logger
	maxDelay time.Duration

	written atomic.Uint64
	failed  atomic.Uint64
	dropped atomic.Uint64
}

func (o *outlet) offer(event Event) {
	select {
	case o.events <- event:
	default:
		if n := o.dropped.Add(1); n&(n-1) == 0 {
			o.fallback.Printf("sink %s backlog full, dropped %d events (latest type=%s)", o.name, n, event.Type)
		}
	}
}

// run writes events until the channel closes. After a failure it pauses
// with exponential backoff; the pause is skipped once the router closes.
func (o *outlet) run(done <-chan struct{}) {
	streak := 0
	for event := range o.events {
		if err := o.sink.Write(event); err != nil {
			o.failed.Add(1)
			streak++
			delay := o.backoff(streak)
			o.fallback.Printf("sink %s failed: %v (retry in %s)", o.name, err, delay)
			o.pause(delay, done)
			continue
		}
		o.written.Add(1)
		streak = 0
	}
}

func (o *outlet) backoff(streak int) time.Duration {
	delay := 250 * time.Millisecond << min(streak-1, 8)
	return min(delay, o.maxDelay)
}

func (o *outlet) pause(delay time.Duration, done <-chan struct{}) {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-done:
	}
}
