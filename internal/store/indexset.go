package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
	bolt "go.etcd.io/bbolt"
	"golang.org/x/sync/singleflight"

	"github.com/Aman-CERP/amansuggest/internal/errors"
	"github.com/Aman-CERP/amansuggest/internal/suggest"
)

// boltTimeout bounds how long opening an index waits for another process
// holding its lock.
const boltTimeout = "2s"

type openFunc func(project, dir string, create bool) (bleve.Index, error)

// IndexSet opens project indexes lazily and shares one handle per directory
// within the process. Lookups and the suggestion engine borrow readers from
// it; the indexer writes through it.
//
// Opening happens outside mu, so a slow or broken project never holds up
// acquisitions for the others. Concurrent opens of one directory share a
// single attempt.
type IndexSet struct {
	dirFor func(project string) string
	retry  errors.RetryConfig
	open   openFunc
	flight singleflight.Group

	mu      sync.Mutex
	indexes map[string]bleve.Index
	// opened records the directory each project's handle came from, so a
	// project whose path moved can have its old handle closed.
	opened map[string]string
	closed bool
}

// NewIndexSet returns an IndexSet resolving project names to directories
// with dirFor. The project "" is the root index.
func NewIndexSet(dirFor func(project string) string) *IndexSet {
	return &IndexSet{
		dirFor:  dirFor,
		retry:   errors.DefaultRetryConfig(),
		open:    openIndex,
		indexes: make(map[string]bleve.Index),
		opened:  make(map[string]string),
	}
}

// Acquire implements suggest.ReaderProvider. The reader is a point-in-time
// snapshot and must be released.
func (s *IndexSet) Acquire(project string) (*suggest.ReaderHandle, error) {
	idx, err := s.Open(context.Background(), project)
	if err != nil {
		return nil, err
	}

	adv, err := idx.Advanced()
	if err != nil {
		return nil, errors.IndexError(project, err)
	}
	reader, err := adv.Reader()
	if err != nil {
		return nil, errors.IndexError(project, err)
	}
	return suggest.NewReaderHandle(project, reader, reader.Close), nil
}

// Open returns the project's index, opening it on first use. A project
// without an index on disk is an error.
func (s *IndexSet) Open(ctx context.Context, project string) (bleve.Index, error) {
	return s.get(ctx, project, false)
}

// OpenOrCreate is Open, creating an empty index with the code mapping when
// none exists yet.
func (s *IndexSet) OpenOrCreate(ctx context.Context, project string) (bleve.Index, error) {
	return s.get(ctx, project, true)
}

func (s *IndexSet) get(ctx context.Context, project string, create bool) (bleve.Index, error) {
	dir := s.dirFor(project)

	if idx, err := s.cached(project, dir); idx != nil || err != nil {
		return idx, err
	}

	key := dir
	if create {
		key += "\x00create"
	}
	v, err, _ := s.flight.Do(key, func() (any, error) {
		return errors.RetryWithResult(ctx, s.retry, func() (bleve.Index, error) {
			// A concurrent flight for the same dir may have finished.
			if idx, err := s.cached(project, dir); idx != nil || err != nil {
				return idx, err
			}
			idx, err := s.open(project, dir, create)
			if err != nil {
				return nil, err
			}
			return s.store(project, dir, idx)
		})
	})
	if err != nil {
		return nil, err
	}
	return v.(bleve.Index), nil
}

// cached returns the open handle for dir, or nil when there is none.
func (s *IndexSet) cached(project, dir string) (bleve.Index, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errClosedSet(project)
	}
	idx := s.indexes[dir]
	if idx != nil {
		s.opened[project] = dir
	}
	return idx, nil
}

// store publishes a freshly opened handle. If another open won the race,
// or the set closed meanwhile, idx is closed instead.
func (s *IndexSet) store(project, dir string, idx bleve.Index) (bleve.Index, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = idx.Close()
		return nil, errClosedSet(project)
	}
	if existing, ok := s.indexes[dir]; ok {
		s.opened[project] = dir
		s.mu.Unlock()
		_ = idx.Close()
		return existing, nil
	}
	s.indexes[dir] = idx
	s.opened[project] = dir
	s.mu.Unlock()

	slog.Debug("Opened project index", slog.String("project", project), slog.String("dir", dir))
	return idx, nil
}

func errClosedSet(project string) error {
	return errors.New(errors.ErrCodeIndexUnavailable, "index set is closed", nil).
		WithDetail("project", project)
}

func openIndex(project, dir string, create bool) (bleve.Index, error) {
	idx, err := bleve.OpenUsing(dir, map[string]interface{}{"bolt_timeout": boltTimeout})
	if err == nil {
		return idx, nil
	}

	if stderrors.Is(err, bolt.ErrTimeout) {
		// The indexer or another process is writing; worth another try.
		return nil, errors.IndexLockedError(project, err).WithDetail("dir", dir)
	}
	if stderrors.Is(err, bleve.ErrorIndexPathDoesNotExist) || stderrors.Is(err, bleve.ErrorIndexMetaMissing) {
		if !create {
			return nil, errors.New(errors.ErrCodeUnknownProject,
				fmt.Sprintf("no index for project %q", project), err).WithDetail("dir", dir)
		}
		indexMapping, merr := NewIndexMapping()
		if merr != nil {
			return nil, errors.InternalError("cannot build index mapping", merr)
		}
		if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
			return nil, errors.InternalError("cannot create index directory", err)
		}
		idx, err = bleve.New(dir, indexMapping)
		if err != nil {
			return nil, errors.IndexError(project, err)
		}
		return idx, nil
	}

	return nil, errors.IndexError(project, err).WithDetail("dir", dir)
}

// Evict closes and forgets the project's index so a later Open sees a
// rebuilt or removed directory.
func (s *IndexSet) Evict(project string) error {
	dir := s.dirFor(project)

	s.mu.Lock()
	dirs := []string{dir}
	if prev, ok := s.opened[project]; ok && prev != dir {
		dirs = append(dirs, prev)
	}
	delete(s.opened, project)
	var evicted []bleve.Index
	for _, d := range dirs {
		if idx, ok := s.indexes[d]; ok {
			evicted = append(evicted, idx)
			delete(s.indexes, d)
		}
	}
	s.mu.Unlock()

	var errs []error
	for _, idx := range evicted {
		errs = append(errs, idx.Close())
	}
	return stderrors.Join(errs...)
}

// CloseStale closes handles whose project now resolves to a different
// directory, e.g. after its path or the data root changed. A directory
// still resolved by some project stays open.
func (s *IndexSet) CloseStale() error {
	s.mu.Lock()
	live := make(map[string]bool, len(s.opened))
	for project := range s.opened {
		live[s.dirFor(project)] = true
	}
	var stale []bleve.Index
	var dirs []string
	for project, dir := range s.opened {
		if live[dir] {
			continue
		}
		delete(s.opened, project)
		if idx, ok := s.indexes[dir]; ok {
			stale = append(stale, idx)
			dirs = append(dirs, dir)
			delete(s.indexes, dir)
		}
	}
	s.mu.Unlock()

	var errs []error
	for i, idx := range stale {
		slog.Debug("Closing index for moved project", slog.String("dir", dirs[i]))
		if err := idx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", dirs[i], err))
		}
	}
	return stderrors.Join(errs...)
}

// Close closes every open index.
func (s *IndexSet) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	for dir, idx := range s.indexes {
		if err := idx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", dir, err))
		}
	}
	s.indexes = nil
	s.opened = nil
	return stderrors.Join(errs...)
}
