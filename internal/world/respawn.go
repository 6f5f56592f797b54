package world

import (
	"context"
	"sort"

	"graveward/internal/combat"
	"graveward/internal/entity"
)

// OnDeath implements combat.DeathSink so the world can queue NPC respawns.
// It runs alongside the loot manager and never fails the death.
func (w *World) OnDeath(_ context.Context, notice combat.DeathNotice) error {
	if notice.Victim.Kind != entity.KindNPC || w.cfg.NPCRespawnTicks == 0 {
		return nil
	}
	w.ScheduleRespawn(notice.Victim.ID, notice.Tick+w.cfg.NPCRespawnTicks)
	return nil
}

// ScheduleRespawn queues id for RespawnDue at dueTick. A later call replaces
// the earlier due tick.
func (w *World) ScheduleRespawn(id entity.ID, dueTick uint64) {
	w.respawnMu.Lock()
	defer w.respawnMu.Unlock()
	w.respawns[id] = dueTick
}

// RespawnDue respawns every queued entity whose due tick has been reached,
// in ascending id order, and returns the ids that came back.
func (w *World) RespawnDue(ctx context.Context, tick uint64) []entity.ID {
	w.respawnMu.Lock()
	var due []entity.ID
	for id, at := range w.respawns {
		if tick >= at {
			due = append(due, id)
			delete(w.respawns, id)
		}
	}
	w.respawnMu.Unlock()
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool { return due[i] < due[j] })

	respawned := due[:0]
	for _, id := range due {
		if err := w.Respawn(ctx, id, tick); err != nil {
			w.logf("world: scheduled respawn of %s failed: %v", id, err)
			continue
		}
		respawned = append(respawned, id)
	}
	return respawned
}
