package world

import "graveward/internal/entity"

// Config controls spawning and inventory limits.
type Config struct {
	// InventorySlots is the number of distinct item instances an entity may carry.
	InventorySlots int
	// SpawnProtectionTicks is the grace after a player joins.
	SpawnProtectionTicks uint64
	// RespawnProtectionTicks is the grace after any respawn.
	RespawnProtectionTicks uint64
	// RespawnPoint is where players reappear. NPCs return to their spawn tile.
	RespawnPoint entity.Position
	// NPCRespawnTicks delays NPC respawns after death. Zero leaves dead NPCs
	// for the operator to respawn.
	NPCRespawnTicks uint64
}

func DefaultConfig() Config {
	return Config{
		InventorySlots:         28,
		SpawnProtectionTicks:   5,
		RespawnProtectionTicks: 10,
	}
}

func (c Config) normalized() Config {
	if c.InventorySlots <= 0 {
		c.InventorySlots = DefaultConfig().InventorySlots
	}
	return c
}
