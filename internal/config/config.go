// Package config loads the server configuration: built-in defaults, then an
// optional TOML file, then GRAVEWARD_* environment overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"

	"graveward/internal/combat"
	"graveward/internal/deathstore"
	"graveward/internal/entity"
	"graveward/internal/loot"
	"graveward/internal/tick"
	"graveward/internal/world"
	"graveward/logging"
)

type Config struct {
	Server        ServerConfig        `toml:"server"`
	Simulation    SimulationConfig    `toml:"simulation"`
	Combat        CombatConfig        `toml:"combat"`
	Guard         GuardConfig         `toml:"guard"`
	Loot          LootConfig          `toml:"loot"`
	Storage       StorageConfig       `toml:"storage"`
	World         WorldConfig         `toml:"world"`
	Stats         StatsConfig         `toml:"stats"`
	Logging       LoggingConfig       `toml:"logging"`
	Observability ObservabilityConfig `toml:"observability"`
}

type ServerConfig struct {
	BindAddress    string   `toml:"bind_address" env:"GRAVEWARD_BIND_ADDRESS"`
	// AllowedOrigins lists websocket origins; empty allows any.
	AllowedOrigins []string `toml:"allowed_origins" env:"GRAVEWARD_ALLOWED_ORIGINS" envSeparator:","`
}

type SimulationConfig struct {
	TickInterval    time.Duration `toml:"tick_interval" env:"GRAVEWARD_TICK_INTERVAL"`
	CommandCapacity int           `toml:"command_capacity" env:"GRAVEWARD_COMMAND_CAPACITY"`
	PerActorLimit   int           `toml:"per_actor_limit" env:"GRAVEWARD_PER_ACTOR_LIMIT"`
	Seed            string        `toml:"seed" env:"GRAVEWARD_SEED"`
}

type CombatConfig struct {
	TimeoutTicks       uint64 `toml:"timeout_ticks" env:"GRAVEWARD_COMBAT_TIMEOUT_TICKS"`
	NoTargetGraceTicks uint64 `toml:"no_target_grace_ticks" env:"GRAVEWARD_NO_TARGET_GRACE_TICKS"`
	PursuitExtendTicks uint64 `toml:"pursuit_extend_ticks" env:"GRAVEWARD_PURSUIT_EXTEND_TICKS"`
	LeashTicks         uint64 `toml:"leash_ticks" env:"GRAVEWARD_LEASH_TICKS"`
	AutoRetaliate      bool   `toml:"auto_retaliate" env:"GRAVEWARD_AUTO_RETALIATE"`
	DamageMemoryTicks  uint64 `toml:"damage_memory_ticks" env:"GRAVEWARD_DAMAGE_MEMORY_TICKS"`
}

type GuardConfig struct {
	StaleAfterTicks      uint64            `toml:"stale_after_ticks" env:"GRAVEWARD_STALE_AFTER_TICKS"`
	FutureToleranceTicks uint64            `toml:"future_tolerance_ticks" env:"GRAVEWARD_FUTURE_TOLERANCE_TICKS"`
	Cooldowns            map[string]uint64 `toml:"cooldowns"`
}

type LootConfig struct {
	ClaimWindowTicks uint64 `toml:"claim_window_ticks" env:"GRAVEWARD_CLAIM_WINDOW_TICKS"`
	CleanupTicks     uint64 `toml:"cleanup_ticks" env:"GRAVEWARD_CLEANUP_TICKS"`
	ClaimQueueDepth  int    `toml:"claim_queue_depth" env:"GRAVEWARD_CLAIM_QUEUE_DEPTH"`
}

type StorageConfig struct {
	Backend string `toml:"backend" env:"GRAVEWARD_STORAGE_BACKEND"`
	Path    string `toml:"path" env:"GRAVEWARD_STORAGE_PATH"`
}

type WorldConfig struct {
	InventorySlots         int         `toml:"inventory_slots" env:"GRAVEWARD_INVENTORY_SLOTS"`
	SpawnProtectionTicks   uint64      `toml:"spawn_protection_ticks" env:"GRAVEWARD_SPAWN_PROTECTION_TICKS"`
	RespawnProtectionTicks uint64      `toml:"respawn_protection_ticks" env:"GRAVEWARD_RESPAWN_PROTECTION_TICKS"`
	RespawnX               int         `toml:"respawn_x" env:"GRAVEWARD_RESPAWN_X"`
	RespawnY               int         `toml:"respawn_y" env:"GRAVEWARD_RESPAWN_Y"`
	RespawnPlane           int         `toml:"respawn_plane" env:"GRAVEWARD_RESPAWN_PLANE"`
	// NPCRespawnTicks delays NPC respawns after death; zero leaves them dead.
	NPCRespawnTicks        uint64      `toml:"npc_respawn_ticks" env:"GRAVEWARD_NPC_RESPAWN_TICKS"`
	NPCs                   []NPCConfig `toml:"npcs"`
}

// NPCConfig places one NPC at startup.
type NPCConfig struct {
	ID       uint64 `toml:"id"`
	Template string `toml:"template"`
	X        int    `toml:"x"`
	Y        int    `toml:"y"`
	Plane    int    `toml:"plane"`
}

type StatsConfig struct {
	CatalogPath string `toml:"catalog_path" env:"GRAVEWARD_CATALOG_PATH"`
	Watch       bool   `toml:"watch" env:"GRAVEWARD_CATALOG_WATCH"`
}

type LoggingConfig struct {
	Level      string        `toml:"level" env:"GRAVEWARD_LOG_LEVEL"`
	Format     string        `toml:"format" env:"GRAVEWARD_LOG_FORMAT"`
	Sinks      []string      `toml:"sinks" env:"GRAVEWARD_LOG_SINKS" envSeparator:","`
	JSONPath   string        `toml:"json_path" env:"GRAVEWARD_LOG_JSON_PATH"`
	BufferSize int           `toml:"buffer_size" env:"GRAVEWARD_LOG_BUFFER_SIZE"`
	EventLevel string        `toml:"event_level" env:"GRAVEWARD_EVENT_LEVEL"`
	// Categories limits which event categories reach the sinks; empty keeps all.
	Categories []string      `toml:"categories" env:"GRAVEWARD_EVENT_CATEGORIES" envSeparator:","`
	FlushEvery time.Duration `toml:"flush_interval" env:"GRAVEWARD_LOG_FLUSH_INTERVAL"`
}

type ObservabilityConfig struct {
	OTelEndpoint string `toml:"otel_endpoint" env:"GRAVEWARD_OTEL_ENDPOINT"`
	ServiceName  string `toml:"service_name" env:"GRAVEWARD_SERVICE_NAME"`
	EnablePprof  bool   `toml:"enable_pprof" env:"GRAVEWARD_ENABLE_PPROF"`
}

// Load reads path (skipped when empty), applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	cfg := defaults()
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	combatDefaults := combat.DefaultConfig()
	guardDefaults := combat.DefaultGuardConfig()
	lootDefaults := loot.DefaultConfig()
	worldDefaults := world.DefaultConfig()
	cooldowns := make(map[string]uint64, len(guardDefaults.Cooldowns))
	for action, ticks := range guardDefaults.Cooldowns {
		cooldowns[string(action)] = ticks
	}
	return &Config{
		Server: ServerConfig{
			BindAddress: ":8080",
		},
		Simulation: SimulationConfig{
			TickInterval:    tick.DefaultInterval,
			CommandCapacity: combatDefaults.CommandCapacity,
			PerActorLimit:   combatDefaults.PerActorLimit,
			Seed:            combatDefaults.Seed,
		},
		Combat: CombatConfig{
			TimeoutTicks:       combatDefaults.CombatTimeoutTicks,
			NoTargetGraceTicks: combatDefaults.NoTargetGraceTicks,
			PursuitExtendTicks: combatDefaults.PursuitExtendTicks,
			LeashTicks:         combatDefaults.LeashTicks,
			AutoRetaliate:      combatDefaults.AutoRetaliate,
			DamageMemoryTicks:  combatDefaults.DamageMemoryTicks,
		},
		Guard: GuardConfig{
			StaleAfterTicks:      guardDefaults.StaleAfterTicks,
			FutureToleranceTicks: guardDefaults.FutureToleranceTicks,
			Cooldowns:            cooldowns,
		},
		Loot: LootConfig{
			ClaimWindowTicks: lootDefaults.ClaimWindowTicks,
			CleanupTicks:     lootDefaults.CleanupTicks,
			ClaimQueueDepth:  lootDefaults.ClaimQueueDepth,
		},
		Storage: StorageConfig{
			Backend: deathstore.BackendBolt,
			Path:    "data/deaths.db",
		},
		World: WorldConfig{
			InventorySlots:         worldDefaults.InventorySlots,
			SpawnProtectionTicks:   worldDefaults.SpawnProtectionTicks,
			RespawnProtectionTicks: worldDefaults.RespawnProtectionTicks,
			NPCRespawnTicks:        25,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			Sinks:      []string{"console"},
			BufferSize: 512,
			EventLevel: "info",
			FlushEvery: 2 * time.Second,
		},
		Observability: ObservabilityConfig{
			ServiceName: "graveward",
		},
	}
}

func (c *Config) validate() error {
	if c.Simulation.TickInterval <= 0 {
		return fmt.Errorf("simulation.tick_interval must be positive")
	}
	switch c.Storage.Backend {
	case deathstore.BackendBolt, deathstore.BackendSQLite:
		if strings.TrimSpace(c.Storage.Path) == "" {
			return fmt.Errorf("storage.path is required for backend %q", c.Storage.Backend)
		}
	case deathstore.BackendMemory:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	for action := range c.Guard.Cooldowns {
		if !combat.Action(action).Valid() {
			return fmt.Errorf("unknown guard cooldown action %q", action)
		}
	}
	if c.Loot.CleanupTicks < c.Loot.ClaimWindowTicks {
		return fmt.Errorf("loot.cleanup_ticks must not be shorter than loot.claim_window_ticks")
	}
	seen := make(map[uint64]struct{}, len(c.World.NPCs))
	for _, npc := range c.World.NPCs {
		if npc.ID == 0 || strings.TrimSpace(npc.Template) == "" {
			return fmt.Errorf("world.npcs entries need an id and a template")
		}
		if _, dup := seen[npc.ID]; dup {
			return fmt.Errorf("world.npcs id %d is listed twice", npc.ID)
		}
		seen[npc.ID] = struct{}{}
	}
	switch strings.ToLower(c.Logging.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("unknown logging.format %q", c.Logging.Format)
	}
	return nil
}

func (c *Config) TickConfig() tick.Config {
	return tick.Config{Interval: c.Simulation.TickInterval}
}

func (c *Config) CombatConfig() combat.Config {
	cfg := combat.DefaultConfig()
	cfg.CombatTimeoutTicks = c.Combat.TimeoutTicks
	cfg.NoTargetGraceTicks = c.Combat.NoTargetGraceTicks
	cfg.PursuitExtendTicks = c.Combat.PursuitExtendTicks
	cfg.LeashTicks = c.Combat.LeashTicks
	cfg.AutoRetaliate = c.Combat.AutoRetaliate
	cfg.DamageMemoryTicks = c.Combat.DamageMemoryTicks
	cfg.CommandCapacity = c.Simulation.CommandCapacity
	cfg.PerActorLimit = c.Simulation.PerActorLimit
	cfg.Seed = c.Simulation.Seed
	return cfg
}

func (c *Config) GuardConfig() combat.GuardConfig {
	cooldowns := make(map[combat.Action]uint64, len(c.Guard.Cooldowns))
	for action, ticks := range c.Guard.Cooldowns {
		cooldowns[combat.Action(action)] = ticks
	}
	return combat.GuardConfig{
		StaleAfterTicks:      c.Guard.StaleAfterTicks,
		FutureToleranceTicks: c.Guard.FutureToleranceTicks,
		Cooldowns:            cooldowns,
	}
}

func (c *Config) LootConfig() loot.Config {
	return loot.Config{
		ClaimWindowTicks: c.Loot.ClaimWindowTicks,
		CleanupTicks:     c.Loot.CleanupTicks,
		ClaimQueueDepth:  c.Loot.ClaimQueueDepth,
	}
}

func (c *Config) WorldConfig() world.Config {
	return world.Config{
		InventorySlots:         c.World.InventorySlots,
		SpawnProtectionTicks:   c.World.SpawnProtectionTicks,
		RespawnProtectionTicks: c.World.RespawnProtectionTicks,
		RespawnPoint: entity.Position{
			X:     c.World.RespawnX,
			Y:     c.World.RespawnY,
			Plane: c.World.RespawnPlane,
		},
		NPCRespawnTicks: c.World.NPCRespawnTicks,
	}
}

// EventConfig returns the event router configuration.
func (c *Config) EventConfig() logging.Config {
	cfg := logging.DefaultConfig()
	if len(c.Logging.Sinks) > 0 {
		cfg.EnabledSinks = append([]string(nil), c.Logging.Sinks...)
	}
	if c.Logging.BufferSize > 0 {
		cfg.BufferSize = c.Logging.BufferSize
	}
	cfg.MinimumSeverity = logging.ParseSeverity(c.Logging.EventLevel)
	cfg.Categories = append([]string(nil), c.Logging.Categories...)
	cfg.JSON.FilePath = c.Logging.JSONPath
	if c.Logging.FlushEvery > 0 {
		cfg.JSON.FlushInterval = c.Logging.FlushEvery
	}
	cfg.Fields = map[string]any{"service": c.Observability.ServiceName}
	return cfg
}
