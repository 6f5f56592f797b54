package lifecycle

import (
	"context"

	"graveward/logging"
)

const (
	// EventEntitySpawned is emitted when a player joins or an NPC is placed in the world.
	EventEntitySpawned logging.EventType = "lifecycle.entity_spawned"
	// EventEntityDisconnected is emitted when a player leaves the world.
	EventEntityDisconnected logging.EventType = "lifecycle.entity_disconnected"
	// EventEntityRespawned is emitted when a dead entity starts a new life.
	EventEntityRespawned logging.EventType = "lifecycle.entity_respawned"
)

// SpawnPayload captures spawn metadata.
type SpawnPayload struct {
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Plane     int    `json:"plane"`
	Template  string `json:"template,omitempty"`
	Hitpoints int    `json:"hitpoints"`
}

// DisconnectedPayload captures the reason an entity left.
type DisconnectedPayload struct {
	Reason string `json:"reason"`
}

// EntitySpawned publishes a spawn event.
func EntitySpawned(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload SpawnPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventEntitySpawned,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	})
}

// EntityDisconnected publishes a disconnect event.
func EntityDisconnected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload DisconnectedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventEntityDisconnected,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	})
}

// EntityRespawned publishes a respawn event.
func EntityRespawned(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload SpawnPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventEntityRespawned,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	})
}
