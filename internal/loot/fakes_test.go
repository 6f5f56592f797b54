package loot_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"graveward/internal/combat"
	"graveward/internal/entity"
	"graveward/internal/items"
	"graveward/internal/loot"
	"graveward/logging/sinks"
)

type fakeInventory struct {
	mu        sync.Mutex
	carried   map[entity.ID]items.Manifest
	capacity  map[entity.ID]int
	grantErrs int
	clearErr  error
	grants    int
}

func newFakeInventory() *fakeInventory {
	return &fakeInventory{
		carried:  make(map[entity.ID]items.Manifest),
		capacity: make(map[entity.ID]int),
	}
}

func (f *fakeInventory) give(id entity.ID, manifest ...items.Item) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.carried[id] = append(f.carried[id], manifest...)
}

func (f *fakeInventory) count(id entity.ID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.carried[id])
}

func (f *fakeInventory) SnapshotCarriedItems(_ context.Context, id entity.ID) (items.Manifest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.carried[id].Clone(), nil
}

func (f *fakeInventory) ClearCarriedItems(_ context.Context, id entity.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.clearErr != nil {
		return f.clearErr
	}
	delete(f.carried, id)
	return nil
}

func (f *fakeInventory) HasCapacity(_ context.Context, id entity.ID, _ items.Item) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	limit, ok := f.capacity[id]
	if !ok {
		return true, nil
	}
	return len(f.carried[id]) < limit, nil
}

func (f *fakeInventory) GrantItem(_ context.Context, id entity.ID, item items.Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.grantErrs > 0 {
		f.grantErrs--
		return fmt.Errorf("inventory offline")
	}
	if f.carried[id].Contains(item.ID) {
		return nil
	}
	f.carried[id] = append(f.carried[id], item)
	f.grants++
	return nil
}

func sword(id string) items.Item {
	return items.Item{ID: id, Type: "bronze_sword", Quantity: 1}
}

func testConfig() loot.Config {
	return loot.Config{ClaimWindowTicks: 5, CleanupTicks: 20, ClaimQueueDepth: 16}
}

func newManager(t testing.TB, inv loot.InventoryProvider, store loot.RecordStore, events *sinks.Memory) *loot.Manager {
	t.Helper()
	m, err := loot.NewManager(testConfig(), loot.Deps{Store: store, Inventory: inv, Publisher: events})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	t.Cleanup(func() { _ = m.Close(context.Background()) })
	return m
}

func deathOf(victim, killer entity.ID, tick uint64) combat.DeathNotice {
	notice := combat.DeathNotice{
		Victim:   entity.Ref{ID: victim, Kind: entity.KindPlayer},
		Position: entity.Position{X: 3, Y: 4},
		Tick:     tick,
	}
	if killer != 0 {
		notice.Killer = entity.Ref{ID: killer, Kind: entity.KindPlayer}
	}
	return notice
}
