package world

import (
	"context"
	"testing"

	"graveward/internal/entity"
	"graveward/internal/items"
	"graveward/internal/platform/errors"
)

func TestGrantItemIsIdempotentPerInstance(t *testing.T) {
	w, _, _ := newTestWorld(t, DefaultConfig())
	ctx := context.Background()
	_ = w.SpawnPlayer(ctx, 1, "adventurer", entity.Position{}, 0)
	sword := items.Item{ID: "sword-1", Type: "sword", Quantity: 1}

	for i := 0; i < 3; i++ {
		if err := w.GrantItem(ctx, 1, sword); err != nil {
			t.Fatalf("grant %d: %v", i, err)
		}
	}
	carried, _ := w.Inventory(1)
	if len(carried) != 1 {
		t.Fatalf("expected a single sword, got %+v", carried)
	}
}

func TestCapacityCountsSlots(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InventorySlots = 2
	w, _, _ := newTestWorld(t, cfg)
	ctx := context.Background()
	_ = w.SpawnPlayer(ctx, 1, "adventurer", entity.Position{}, 0)
	_ = w.Give(1, items.Item{ID: "a", Type: "coin", Quantity: 10})
	_ = w.Give(1, items.Item{ID: "b", Type: "coin", Quantity: 10})

	ok, err := w.HasCapacity(ctx, 1, items.Item{ID: "c"})
	if err != nil || ok {
		t.Fatalf("expected full inventory, got ok=%v err=%v", ok, err)
	}
	ok, _ = w.HasCapacity(ctx, 1, items.Item{ID: "a"})
	if !ok {
		t.Fatalf("expected a held item to need no new slot")
	}
	if err := w.GrantItem(ctx, 1, items.Item{ID: "c"}); !errors.HasCode(err, errors.CodeInvalidState) {
		t.Fatalf("expected grant into a full inventory to fail, got %v", err)
	}
	if _, err := w.HasCapacity(ctx, 404, items.Item{ID: "c"}); !errors.HasCode(err, errors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSnapshotThenClear(t *testing.T) {
	w, _, _ := newTestWorld(t, DefaultConfig())
	ctx := context.Background()
	_ = w.SpawnPlayer(ctx, 1, "adventurer", entity.Position{}, 0)
	_ = w.Give(1, items.Item{ID: "sword-1", Type: "sword", Quantity: 1})

	snapshot, err := w.SnapshotCarriedItems(ctx, 1)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if err := w.ClearCarriedItems(ctx, 1); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if !snapshot.Contains("sword-1") {
		t.Fatalf("expected snapshot to survive the clear, got %+v", snapshot)
	}
	carried, _ := w.Inventory(1)
	if len(carried) != 0 {
		t.Fatalf("expected empty inventory, got %+v", carried)
	}
}

func TestInventoryHonoursCancelledContext(t *testing.T) {
	w, _, _ := newTestWorld(t, DefaultConfig())
	_ = w.SpawnPlayer(context.Background(), 1, "adventurer", entity.Position{}, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := w.GrantItem(ctx, 1, items.Item{ID: "x"}); err == nil {
		t.Fatalf("expected cancelled context to fail the grant")
	}
}
