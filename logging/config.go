package logging

import (
	"slices"
	"time"
)

// Config selects the sinks and events a Router delivers.
type Config struct {
	EnabledSinks []string
	// Categories restricts routing to these event categories; empty routes
	// every category.
	Categories      []string
	MinimumSeverity Severity
	// BufferSize is the router queue length. SinkBuffer is the backlog of
	// each sink; zero derives it from BufferSize.
	BufferSize int
	SinkBuffer int
	// Fields are added to every event that does not set them itself.
	Fields map[string]any
	JSON   JSONConfig
	// DropWarnInterval rate-limits the fallback warning about dropped events.
	DropWarnInterval time.Duration
	// MaxRetryDelay caps the pause after consecutive sink failures.
	MaxRetryDelay time.Duration
}

type JSONConfig struct {
	FilePath      string
	FlushInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		EnabledSinks:     []string{"console"},
		MinimumSeverity:  SeverityInfo,
		BufferSize:       512,
		DropWarnInterval: 5 * time.Second,
		MaxRetryDelay:    30 * time.Second,
		JSON:             JSONConfig{FlushInterval: 2 * time.Second},
	}
}

func (c Config) HasSink(name string) bool {
	return slices.Contains(c.EnabledSinks, name)
}

// Routes reports whether event passes the severity and category filters.
func (c Config) Routes(event Event) bool {
	if event.Severity < c.MinimumSeverity {
		return false
	}
	return len(c.Categories) == 0 || slices.Contains(c.Categories, event.Category)
}

func (c Config) normalized() Config {
	defaults := DefaultConfig()
	if c.BufferSize <= 0 {
		c.BufferSize = defaults.BufferSize
	}
	if c.SinkBuffer <= 0 {
		c.SinkBuffer = min(max(c.BufferSize, 32), 1024)
	}
	if c.DropWarnInterval <= 0 {
		c.DropWarnInterval = defaults.DropWarnInterval
	}
	if c.MaxRetryDelay <= 0 {
		c.MaxRetryDelay = defaults.MaxRetryDelay
	}
	return c
}
