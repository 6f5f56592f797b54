package stats

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"graveward/internal/telemetry"
)

const reloadDebounce = 100 * time.Millisecond

// CatalogStore holds the active catalog and swaps it atomically on reload.
// Readers always see a complete catalog.
type CatalogStore struct {
	path    string
	logger  telemetry.Logger
	current atomic.Pointer[Catalog]
	reloads atomic.Uint64
}

// NewCatalogStore loads path, or the bundled catalog when path is empty.
func NewCatalogStore(path string, logger telemetry.Logger) (*CatalogStore, error) {
	store := &CatalogStore{path: path, logger: logger}
	var (
		catalog *Catalog
		err     error
	)
	if path == "" {
		catalog, err = DefaultCatalog()
	} else {
		catalog, err = LoadCatalog(path)
	}
	if err != nil {
		return nil, err
	}
	store.current.Store(catalog)
	return store, nil
}

func (s *CatalogStore) Current() *Catalog {
	if s == nil {
		return nil
	}
	return s.current.Load()
}

// Reloads reports how many successful reloads happened since start.
func (s *CatalogStore) Reloads() uint64 {
	if s == nil {
		return 0
	}
	return s.reloads.Load()
}

// Reload re-reads the catalog file. A broken file keeps the previous catalog.
func (s *CatalogStore) Reload() error {
	if s == nil || s.path == "" {
		return nil
	}
	catalog, err := LoadCatalog(s.path)
	if err != nil {
		return err
	}
	s.current.Store(catalog)
	s.reloads.Add(1)
	return nil
}

// Watch reloads the catalog whenever its file changes until ctx is done.
// It watches the parent directory so editors that replace the file by rename
// are picked up.
func (s *CatalogStore) Watch(ctx context.Context) error {
	if s == nil || s.path == "" {
		<-ctx.Done()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create catalog watcher: %w", err)
	}
	defer watcher.Close()

	target := filepath.Clean(s.path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}

	var last time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			now := time.Now()
			if now.Sub(last) < reloadDebounce {
				continue
			}
			last = now
			if err := s.Reload(); err != nil {
				s.logf("[stats] catalog reload failed, keeping previous: %v", err)
				continue
			}
			s.logf("[stats] catalog reloaded from %s", s.path)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logf("[stats] catalog watcher error: %v", err)
		}
	}
}

func (s *CatalogStore) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}
