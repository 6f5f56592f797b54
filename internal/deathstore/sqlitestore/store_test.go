package sqlitestore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"graveward/internal/deathstore"
	"graveward/internal/entity"
	"graveward/internal/items"
	"graveward/internal/loot"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "deaths.sqlite")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return store, path
}

func sampleRecord(victim entity.ID, tick uint64) loot.DeathRecord {
	return loot.DeathRecord{
		ID:                  loot.RecordID(victim, tick),
		VictimID:            victim,
		VictimKind:          entity.KindPlayer,
		KillerID:            9,
		KillerKind:          entity.KindPlayer,
		Position:            entity.Position{X: 10, Y: -4, Plane: 1},
		TimestampTick:       tick,
		ItemManifest:        items.Manifest{{ID: "i1", Type: "rune_axe", Quantity: 1}},
		ClaimWindowExpiry:   tick + 5,
		ProtectedClaimantID: 9,
		ExpiresAtTick:       tick + 20,
	}
}

func TestStorePutGet(t *testing.T) {
	store, _ := openTestStore(t)
	defer store.Close()
	ctx := context.Background()

	record := sampleRecord(1, 10)
	record.ClaimedItemIDs = []string{"i1"}
	record.PendingGrants = []loot.PendingGrant{{ItemID: "i1", ClaimantID: 9, Attempts: 2}}
	if err := store.Put(ctx, record); err != nil {
		t.Fatalf("put record: %v", err)
	}

	loaded, err := store.Get(ctx, record.ID)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if loaded.VictimID != 1 || loaded.ProtectedClaimantID != 9 || loaded.Position != record.Position {
		t.Fatalf("unexpected record %+v", loaded)
	}
	if len(loaded.ItemManifest) != 1 || loaded.ItemManifest[0].Type != "rune_axe" {
		t.Fatalf("expected manifest to round trip, got %+v", loaded.ItemManifest)
	}
	if len(loaded.PendingGrants) != 1 || loaded.PendingGrants[0].Attempts != 2 {
		t.Fatalf("expected pending grant to round trip, got %+v", loaded.PendingGrants)
	}
}

func TestStoreGetMissing(t *testing.T) {
	store, _ := openTestStore(t)
	defer store.Close()

	if _, err := store.Get(context.Background(), "missing"); !errors.Is(err, deathstore.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStoreListOpenSkipsClosed(t *testing.T) {
	store, path := openTestStore(t)
	ctx := context.Background()

	first := sampleRecord(1, 10)
	second := sampleRecord(2, 12)
	for _, record := range []loot.DeathRecord{second, first} {
		if err := store.Put(ctx, record); err != nil {
			t.Fatalf("put record: %v", err)
		}
	}
	second.Closed = true
	if err := store.Put(ctx, second); err != nil {
		t.Fatalf("close record: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer reopened.Close()

	open, err := reopened.ListOpen(ctx)
	if err != nil {
		t.Fatalf("list open: %v", err)
	}
	if len(open) != 1 || open[0].ID != first.ID {
		t.Fatalf("expected only %s open, got %+v", first.ID, open)
	}
	closed, err := reopened.Get(ctx, second.ID)
	if err != nil || !closed.Closed {
		t.Fatalf("expected closed record to remain readable, got %+v %v", closed, err)
	}
}

func TestStoreRejectsEmptyID(t *testing.T) {
	store, _ := openTestStore(t)
	defer store.Close()
	if err := store.Put(context.Background(), loot.DeathRecord{}); err == nil {
		t.Fatalf("expected error for empty id")
	}
	if _, err := Open(" "); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	store, path := openTestStore(t)
	if err := store.Put(context.Background(), sampleRecord(3, 1)); err != nil {
		t.Fatalf("put record: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}
	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer reopened.Close()
	if _, err := reopened.Get(context.Background(), loot.RecordID(3, 1)); err != nil {
		t.Fatalf("expected record to survive reopen: %v", err)
	}
}

func TestUpMigrationSection(t *testing.T) {
	got := upMigration("-- +migrate Up\nCREATE TABLE a (id INT);\n-- +migrate Down\nDROP TABLE a;\n")
	if got != "\nCREATE TABLE a (id INT);\n" {
		t.Fatalf("unexpected up section %q", got)
	}
}
