// Package sqlitestore persists death records in SQLite.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"graveward/internal/deathstore"
	"graveward/internal/deathstore/sqlitestore/migrations"
	"graveward/internal/loot"
)

// Store provides SQLite-backed death record persistence. The record is kept
// as a JSON payload next to the columns recovery filters on.
type Store struct {
	sqlDB *sql.DB
}

// Open opens the SQLite file at path and applies migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(FULL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if err := applyMigrations(context.Background(), sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Put inserts or replaces record.
func (s *Store) Put(ctx context.Context, record loot.DeathRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("death record id is required")
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal death record: %w", err)
	}

	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO death_records (
	id,
	victim_id,
	killer_id,
	timestamp_tick,
	expires_at_tick,
	closed,
	payload
) VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	closed = excluded.closed,
	expires_at_tick = excluded.expires_at_tick,
	payload = excluded.payload
`,
		record.ID,
		int64(record.VictimID),
		int64(record.KillerID),
		int64(record.TimestampTick),
		int64(record.ExpiresAtTick),
		boolToInt(record.Closed),
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("put death record: %w", err)
	}
	return nil
}

// Get fetches a death record by id.
func (s *Store) Get(ctx context.Context, id string) (loot.DeathRecord, error) {
	if err := ctx.Err(); err != nil {
		return loot.DeathRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return loot.DeathRecord{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(id) == "" {
		return loot.DeathRecord{}, fmt.Errorf("death record id is required")
	}

	var payload string
	err := s.sqlDB.QueryRowContext(ctx, `SELECT payload FROM death_records WHERE id = ?`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return loot.DeathRecord{}, deathstore.ErrNotFound
		}
		return loot.DeathRecord{}, fmt.Errorf("get death record: %w", err)
	}
	return decode(payload)
}

// ListOpen returns every open record ordered by id.
func (s *Store) ListOpen(ctx context.Context) ([]loot.DeathRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT payload
FROM death_records
WHERE closed = 0
ORDER BY id
`)
	if err != nil {
		return nil, fmt.Errorf("list open death records: %w", err)
	}
	defer rows.Close()

	var records []loot.DeathRecord
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan death record: %w", err)
		}
		record, err := decode(payload)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate death records: %w", err)
	}
	return records, nil
}

func decode(payload string) (loot.DeathRecord, error) {
	var record loot.DeathRecord
	if err := json.Unmarshal([]byte(payload), &record); err != nil {
		return loot.DeathRecord{}, fmt.Errorf("unmarshal death record: %w", err)
	}
	return record, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
