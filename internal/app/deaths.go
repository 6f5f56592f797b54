package app

import (
	"context"

	"graveward/internal/combat"
	"graveward/internal/platform/errors"
)

// deathFanout hands a finalised death to the loot manager and, once the
// death record exists, lets the world queue an NPC respawn.
type deathFanout struct {
	loot  combat.DeathSink
	world combat.DeathSink
}

func (d deathFanout) OnDeath(ctx context.Context, notice combat.DeathNotice) error {
	if err := d.loot.OnDeath(ctx, notice); err != nil && !errors.HasCode(err, errors.CodeDuplicateDeath) {
		return err
	}
	return d.world.OnDeath(ctx, notice)
}
