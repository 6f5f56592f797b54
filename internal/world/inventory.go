package world

import (
	"context"
	"slices"

	"graveward/internal/entity"
	"graveward/internal/items"
	"graveward/internal/platform/errors"
)

// Give places an item in an entity's inventory, e.g. a starting kit. It
// follows the same slot and idempotence rules as GrantItem.
func (w *World) Give(id entity.ID, item items.Item) error {
	return w.GrantItem(context.Background(), id, item)
}

// Inventory returns a copy of what an entity carries.
func (w *World) Inventory(id entity.ID) (items.Manifest, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	a, ok := w.actors[id]
	if !ok {
		return nil, false
	}
	return items.Manifest(a.inventory).Clone(), true
}

// SnapshotCarriedItems implements loot.InventoryProvider.
func (w *World) SnapshotCarriedItems(ctx context.Context, id entity.ID) (items.Manifest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	a, err := w.lookup(id)
	if err != nil {
		return nil, err
	}
	return items.Manifest(a.inventory).Clone(), nil
}

// ClearCarriedItems implements loot.InventoryProvider.
func (w *World) ClearCarriedItems(ctx context.Context, id entity.ID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	a, err := w.lookup(id)
	if err != nil {
		return err
	}
	a.inventory = nil
	return nil
}

// HasCapacity implements loot.InventoryProvider. An item the entity already
// holds needs no new slot.
func (w *World) HasCapacity(ctx context.Context, id entity.ID, item items.Item) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	a, err := w.lookup(id)
	if err != nil {
		return false, err
	}
	return hasRoom(a.inventory, item, w.cfg.InventorySlots), nil
}

// GrantItem implements loot.InventoryProvider. Granting an item instance the
// entity already holds is a no-op, which makes resumed grants safe.
func (w *World) GrantItem(ctx context.Context, id entity.ID, item items.Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if item.ID == "" {
		return errors.New(errors.CodeInvalidArgument, "item id is required")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	a, err := w.lookup(id)
	if err != nil {
		return err
	}
	if holds(a.inventory, item.ID) {
		return nil
	}
	if !hasRoom(a.inventory, item, w.cfg.InventorySlots) {
		return errors.WithMetadata(errors.CodeInvalidState, "inventory full", map[string]string{
			"entity": id.String(),
			"item":   item.ID,
		})
	}
	a.inventory = append(a.inventory, item)
	return nil
}

func holds(inventory []items.Item, itemID string) bool {
	return slices.ContainsFunc(inventory, func(held items.Item) bool { return held.ID == itemID })
}

func hasRoom(inventory []items.Item, item items.Item, slots int) bool {
	return holds(inventory, item.ID) || len(inventory) < slots
}
