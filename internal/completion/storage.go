package completion

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/amansuggest/internal/errors"
	"github.com/Aman-CERP/amansuggest/internal/store"
)

const (
	lockFileName       = ".lock"
	popularityFileName = "popularity.db"

	// DefaultCacheSize is the number of cached popularity lookups.
	DefaultCacheSize = 4096
)

// Storage is the suggester's on-disk state: the popularity database and the
// process lock on its directory. It outlives individual engines, so a
// refreshed engine can be created while the superseded one is still
// finishing its build.
type Storage struct {
	dir   string
	lock  *flock.Flock
	pop   *store.PopularityStore
	cache *lru.Cache[string, []store.PopularTerm]

	closeOnce sync.Once
	closeErr  error
}

// OpenStorage locks dir and opens the popularity database inside it. A dir
// held by another process is ERR_202.
func OpenStorage(dir string, cacheSize int) (*Storage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.InternalError("cannot create suggester directory", err)
	}

	lock := flock.New(filepath.Join(dir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, errors.InternalError("cannot lock suggester directory", err)
	}
	if !locked {
		return nil, errors.New(errors.ErrCodeStorageLocked, "suggester storage is in use by another process", nil).
			WithDetail("dir", dir).
			WithSuggestion("Stop the other amansuggest daemon or point data_root elsewhere")
	}

	pop, err := store.OpenPopularityStore(filepath.Join(dir, popularityFileName))
	if err != nil {
		_ = lock.Unlock()
		return nil, errors.Wrap(errors.ErrCodeEngineFailed, err)
	}

	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, []store.PopularTerm](cacheSize)
	if err != nil {
		_ = pop.Close()
		_ = lock.Unlock()
		return nil, errors.InternalError("cannot create popularity cache", err)
	}

	return &Storage{dir: dir, lock: lock, pop: pop, cache: cache}, nil
}

// Dir returns the locked directory.
func (s *Storage) Dir() string {
	return s.dir
}

func cacheKey(project, field, prefix string) string {
	return project + "\x00" + field + "\x00" + prefix
}

// popular returns the most popular terms of (project, field) starting with
// prefix, served from the cache when possible.
func (s *Storage) popular(ctx context.Context, project, field, prefix string, limit int) ([]store.PopularTerm, error) {
	key := cacheKey(project, field, prefix)
	if terms, ok := s.cache.Get(key); ok {
		return terms, nil
	}
	terms, err := s.pop.Top(ctx, project, field, prefix, limit)
	if err != nil {
		return nil, err
	}
	s.cache.Add(key, terms)
	return terms, nil
}

func (s *Storage) increment(ctx context.Context, project, field, term string, delta int64) (int64, error) {
	n, err := s.pop.Increment(ctx, project, field, term, delta)
	if err != nil {
		return 0, err
	}
	// Prefix keys cannot be matched cheaply to a term; counts change rarely.
	s.cache.Purge()
	return n, nil
}

func (s *Storage) deleteProject(ctx context.Context, project string) error {
	defer s.cache.Purge()
	return s.pop.DeleteProject(ctx, project)
}

// Close closes the database and releases the directory lock.
func (s *Storage) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		if err := s.pop.Close(); err != nil {
			errs = append(errs, err)
		}
		if err := s.lock.Unlock(); err != nil {
			errs = append(errs, fmt.Errorf("failed to release lock: %w", err))
		}
		s.closeErr = stderrors.Join(errs...)
	})
	return s.closeErr
}
