package combat

// Config tunes session lifecycle. All durations are in ticks.
type Config struct {
	// CombatTimeoutTicks is how long a session survives without a landed attack.
	CombatTimeoutTicks uint64
	// NoTargetGraceTicks is how long a session may exist without a target.
	NoTargetGraceTicks uint64
	// PursuitExtendTicks is added to the expiry each tick the attacker is
	// out of range but pursuing.
	PursuitExtendTicks uint64
	// LeashTicks caps the total expiry extension granted by pursuit.
	LeashTicks uint64
	// AutoRetaliate lets defenders without a session fight back.
	AutoRetaliate bool
	// DamageMemoryTicks bounds how long applied outcome ids are remembered.
	DamageMemoryTicks uint64
	// DefaultAttackIntervalTicks is used when a combatant reports no speed.
	DefaultAttackIntervalTicks uint64
	// CommandCapacity and PerActorLimit size the inbound command queue.
	CommandCapacity int
	PerActorLimit   int
	// Seed roots the deterministic damage RNG.
	Seed string
}

func DefaultConfig() Config {
	return Config{
		CombatTimeoutTicks:         16,
		NoTargetGraceTicks:         2,
		PursuitExtendTicks:         1,
		LeashTicks:                 8,
		AutoRetaliate:              true,
		DamageMemoryTicks:          32,
		DefaultAttackIntervalTicks: 4,
		CommandCapacity:            1024,
		PerActorLimit:              8,
		Seed:                       "graveward",
	}
}

func (c Config) normalized() Config {
	defaults := DefaultConfig()
	if c.CombatTimeoutTicks == 0 {
		c.CombatTimeoutTicks = defaults.CombatTimeoutTicks
	}
	if c.DamageMemoryTicks == 0 {
		c.DamageMemoryTicks = defaults.DamageMemoryTicks
	}
	if c.DefaultAttackIntervalTicks == 0 {
		c.DefaultAttackIntervalTicks = defaults.DefaultAttackIntervalTicks
	}
	if c.CommandCapacity <= 0 {
		c.CommandCapacity = defaults.CommandCapacity
	}
	if c.PerActorLimit < 0 {
		c.PerActorLimit = 0
	}
	if c.Seed == "" {
		c.Seed = defaults.Seed
	}
	return c
}

// GuardConfig tunes request validation.
type GuardConfig struct {
	// StaleAfterTicks rejects requests whose tick is older than this.
	StaleAfterTicks uint64
	// FutureToleranceTicks is how far ahead a client may claim to be.
	FutureToleranceTicks uint64
	// Cooldowns holds per-action fallback cooldowns; attack cooldowns come
	// from the combatant's weapon speed when available.
	Cooldowns map[Action]uint64
}

func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		StaleAfterTicks:      5,
		FutureToleranceTicks: 1,
		Cooldowns: map[Action]uint64{
			ActionAttack:    1,
			ActionEat:       3,
			ActionFlee:      1,
			ActionDisengage: 1,
		},
	}
}

func (c GuardConfig) normalized() GuardConfig {
	defaults := DefaultGuardConfig()
	if c.StaleAfterTicks == 0 {
		c.StaleAfterTicks = defaults.StaleAfterTicks
	}
	cooldowns := make(map[Action]uint64, len(defaults.Cooldowns))
	for action, ticks := range defaults.Cooldowns {
		cooldowns[action] = ticks
	}
	for action, ticks := range c.Cooldowns {
		cooldowns[action] = ticks
	}
	c.Cooldowns = cooldowns
	return c
}
