// Package tick provides the fixed-interval simulation clock. It is the only
// time source of the combat core.
package tick

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"graveward/internal/platform/errors"
	"graveward/internal/telemetry"
	"graveward/logging"
	loggingsimulation "graveward/logging/simulation"
)

const (
	// DefaultInterval is the reference cadence.
	DefaultInterval = 600 * time.Millisecond

	metricTicks         = "tick_total"
	metricSkipped       = "tick_skipped_intervals_total"
	metricListenerError = "tick_listener_errors_total"
)

// ErrClockHalted is matched (via errors.Is) by every error returned once a
// listener has failed.
var ErrClockHalted = errors.New(errors.CodeClockHalted, "tick clock halted")

// Listener is invoked once per tick in subscription order. A non-nil error
// halts the clock.
type Listener func(ctx context.Context, tick uint64) error

type Config struct {
	Interval time.Duration
}

func DefaultConfig() Config {
	return Config{Interval: DefaultInterval}
}

func (c Config) normalized() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	return c
}

// Deps carries the infrastructure the clock reports through.
type Deps struct {
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
	Publisher logging.Publisher
	Clock     logging.Clock
}

type subscription struct {
	name     string
	listener Listener
}

// Clock advances a monotonically increasing tick counter.
type Clock struct {
	cfg  Config
	deps Deps

	current atomic.Uint64

	stepMu    sync.Mutex
	listeners []subscription
	haltErr   error
	lastFire  time.Time
}

func New(cfg Config, deps Deps) *Clock {
	if deps.Publisher == nil {
		deps.Publisher = logging.NopPublisher()
	}
	if deps.Clock == nil {
		deps.Clock = logging.SystemClock{}
	}
	return &Clock{cfg: cfg.normalized(), deps: deps}
}

// Interval reports the configured tick duration.
func (c *Clock) Interval() time.Duration {
	if c == nil {
		return 0
	}
	return c.cfg.Interval
}

// CurrentTick returns the last tick that started. It is safe from any goroutine.
func (c *Clock) CurrentTick() uint64 {
	if c == nil {
		return 0
	}
	return c.current.Load()
}

// Subscribe registers a listener. Subscriptions must happen before Run.
func (c *Clock) Subscribe(name string, listener Listener) {
	if c == nil || listener == nil {
		return
	}
	c.stepMu.Lock()
	defer c.stepMu.Unlock()
	c.listeners = append(c.listeners, subscription{name: name, listener: listener})
}

// Err returns the halt cause, if any.
func (c *Clock) Err() error {
	if c == nil {
		return nil
	}
	c.stepMu.Lock()
	defer c.stepMu.Unlock()
	return c.haltErr
}

// Step advances exactly one tick and runs every listener synchronously.
func (c *Clock) Step(ctx context.Context) (uint64, error) {
	if c == nil {
		return 0, ErrClockHalted
	}
	c.stepMu.Lock()
	defer c.stepMu.Unlock()
	if c.haltErr != nil {
		return c.current.Load(), c.haltErr
	}

	next := c.current.Add(1)
	c.add(metricTicks, 1)
	for _, sub := range c.listeners {
		if err := sub.listener(ctx, next); err != nil {
			c.halt(ctx, next, sub.name, err)
			return next, c.haltErr
		}
	}
	return next, nil
}

func (c *Clock) halt(ctx context.Context, tick uint64, name string, cause error) {
	c.haltErr = errors.WrapWithMetadata(
		errors.CodeClockHalted,
		fmt.Sprintf("tick %d: listener %s failed", tick, name),
		map[string]string{"listener": name, "tick": fmt.Sprint(tick)},
		cause,
	)
	c.add(metricListenerError, 1)
	if c.deps.Logger != nil {
		c.deps.Logger.Printf("[tick] halting at tick %d: listener %s: %v", tick, name, cause)
	}
	loggingsimulation.ClockHalted(ctx, c.deps.Publisher, tick, loggingsimulation.ClockHaltedPayload{Error: cause.Error()}, map[string]any{"listener": name})
}

// Run drives the clock until ctx is cancelled or a listener fails. When the
// host stalls past several intervals only the next tick fires; the missed
// intervals are reported, never replayed.
func (c *Clock) Run(ctx context.Context) error {
	if c == nil {
		return ErrClockHalted
	}
	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	c.stepMu.Lock()
	c.lastFire = c.deps.Clock.Now()
	c.stepMu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := c.fire(ctx, c.deps.Clock.Now()); err != nil {
				return err
			}
		}
	}
}

// fire runs one tick for a timer wake-up observed at now.
func (c *Clock) fire(ctx context.Context, now time.Time) error {
	c.stepMu.Lock()
	elapsed := now.Sub(c.lastFire)
	c.lastFire = now
	c.stepMu.Unlock()

	if skipped := c.skippedIntervals(elapsed); skipped > 0 {
		c.add(metricSkipped, skipped)
		if c.deps.Logger != nil {
			c.deps.Logger.Printf("[tick] host stalled for %s, skipping %d interval(s)", elapsed, skipped)
		}
		loggingsimulation.TickOverrun(ctx, c.deps.Publisher, c.CurrentTick()+1, loggingsimulation.TickOverrunPayload{
			SkippedIntervals: skipped,
			LagMillis:        elapsed.Milliseconds(),
			IntervalMillis:   c.cfg.Interval.Milliseconds(),
		}, nil)
	}

	_, err := c.Step(ctx)
	return err
}

func (c *Clock) skippedIntervals(elapsed time.Duration) uint64 {
	if elapsed < 2*c.cfg.Interval {
		return 0
	}
	return uint64(elapsed/c.cfg.Interval) - 1
}

func (c *Clock) add(key string, delta uint64) {
	if c.deps.Metrics != nil {
		c.deps.Metrics.Add(key, delta)
	}
}
