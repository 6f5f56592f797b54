package loot

// Config holds the loot timing tunables, in ticks.
type Config struct {
	// ClaimWindowTicks is how long only the killer may claim.
	ClaimWindowTicks uint64
	// CleanupTicks is how long a record stays claimable after the death.
	CleanupTicks uint64
	// ClaimQueueDepth bounds the claims buffered per record.
	ClaimQueueDepth int
}

func DefaultConfig() Config {
	return Config{
		ClaimWindowTicks: 100,
		CleanupTicks:     300,
		ClaimQueueDepth:  64,
	}
}

func (c Config) normalized() Config {
	defaults := DefaultConfig()
	if c.ClaimWindowTicks == 0 {
		c.ClaimWindowTicks = defaults.ClaimWindowTicks
	}
	if c.CleanupTicks == 0 {
		c.CleanupTicks = defaults.CleanupTicks
	}
	if c.CleanupTicks < c.ClaimWindowTicks {
		c.CleanupTicks = c.ClaimWindowTicks
	}
	if c.ClaimQueueDepth <= 0 {
		c.ClaimQueueDepth = defaults.ClaimQueueDepth
	}
	return c
}
