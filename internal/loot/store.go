package loot

import (
	"context"
	"sort"
	"sync"

	"graveward/internal/deathstore"
	"graveward/internal/entity"
	"graveward/internal/items"
)

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -destination=./mocks/inventory_mock.go -package=mocks . InventoryProvider

// InventoryProvider is the inventory collaborator. Implementations must make
// GrantItem a no-op for an item instance the entity already holds so that
// resumed grants never duplicate items.
type InventoryProvider interface {
	SnapshotCarriedItems(ctx context.Context, id entity.ID) (items.Manifest, error)
	ClearCarriedItems(ctx context.Context, id entity.ID) error
	HasCapacity(ctx context.Context, id entity.ID, item items.Item) (bool, error)
	GrantItem(ctx context.Context, id entity.ID, item items.Item) error
}

// RecordStore persists death records. Put must be durable when it returns.
type RecordStore interface {
	Put(ctx context.Context, record DeathRecord) error
	Get(ctx context.Context, id string) (DeathRecord, error)
	ListOpen(ctx context.Context) ([]DeathRecord, error)
}

// MemoryStore keeps records in process memory. Tests and the memory storage
// backend use it.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]DeathRecord
	// PutErr, when set, is consulted before every Put; a non-nil result fails it.
	PutErr func(record DeathRecord) error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]DeathRecord)}
}

func (s *MemoryStore) Put(_ context.Context, record DeathRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.PutErr != nil {
		if err := s.PutErr(record); err != nil {
			return err
		}
	}
	s.records[record.ID] = record.Clone()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (DeathRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[id]
	if !ok {
		return DeathRecord{}, deathstore.ErrNotFound
	}
	return record.Clone(), nil
}

func (s *MemoryStore) ListOpen(_ context.Context) ([]DeathRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	open := make([]DeathRecord, 0, len(s.records))
	for _, record := range s.records {
		if !record.Closed {
			open = append(open, record.Clone())
		}
	}
	sort.Slice(open, func(i, j int) bool { return open[i].ID < open[j].ID })
	return open, nil
}
