// Package boltstore persists death records in a BoltDB file.
package boltstore

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"graveward/internal/deathstore"
	"graveward/internal/loot"
)

const (
	recordBucket = "death_records"
	openBucket   = "open_records"
)

// Store provides a BoltDB-backed death record store. Records are JSON
// documents keyed by record id; open records are also indexed so startup
// recovery does not scan closed history.
type Store struct {
	db *bbolt.DB
}

// Open opens a BoltDB-backed store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	db, err := bbolt.Open(cleanPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}

	store := &Store{db: db}
	if err := store.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying BoltDB database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Put writes record and updates the open index in one transaction.
func (s *Store) Put(ctx context.Context, record loot.DeathRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("death record id is required")
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal death record: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		records := tx.Bucket([]byte(recordBucket))
		open := tx.Bucket([]byte(openBucket))
		if records == nil || open == nil {
			return fmt.Errorf("death record buckets are missing")
		}
		key := recordKey(record.ID)
		if err := records.Put(key, payload); err != nil {
			return fmt.Errorf("put death record: %w", err)
		}
		if record.Closed {
			return open.Delete(key)
		}
		return open.Put(key, []byte{})
	})
}

// Get fetches a death record by id.
func (s *Store) Get(ctx context.Context, id string) (loot.DeathRecord, error) {
	if err := ctx.Err(); err != nil {
		return loot.DeathRecord{}, err
	}
	if s == nil || s.db == nil {
		return loot.DeathRecord{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(id) == "" {
		return loot.DeathRecord{}, fmt.Errorf("death record id is required")
	}

	var record loot.DeathRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(recordBucket))
		if bucket == nil {
			return fmt.Errorf("death record bucket is missing")
		}
		payload := bucket.Get(recordKey(id))
		if payload == nil {
			return deathstore.ErrNotFound
		}
		if err := json.Unmarshal(payload, &record); err != nil {
			return fmt.Errorf("unmarshal death record: %w", err)
		}
		return nil
	})
	if err != nil {
		return loot.DeathRecord{}, err
	}
	return record, nil
}

// ListOpen returns every open record in key order.
func (s *Store) ListOpen(ctx context.Context) ([]loot.DeathRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	var records []loot.DeathRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		open := tx.Bucket([]byte(openBucket))
		all := tx.Bucket([]byte(recordBucket))
		if open == nil || all == nil {
			return fmt.Errorf("death record buckets are missing")
		}
		return open.ForEach(func(key, _ []byte) error {
			payload := all.Get(key)
			if payload == nil {
				return nil
			}
			var record loot.DeathRecord
			if err := json.Unmarshal(payload, &record); err != nil {
				return fmt.Errorf("unmarshal death record %s: %w", key, err)
			}
			records = append(records, record)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{recordBucket, openBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create %s bucket: %w", name, err)
			}
		}
		return nil
	})
}

func recordKey(id string) []byte {
	return []byte(id)
}
