package store

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/blevesearch/bleve/v2"
	index "github.com/blevesearch/bleve_index_api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/amansuggest/internal/errors"
)

func newTestIndexSet(t *testing.T) *IndexSet {
	t.Helper()
	root := t.TempDir()
	s := NewIndexSet(func(project string) string { return filepath.Join(root, "index", project) })
	s.retry.MaxRetries = 0
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func dictTerms(t *testing.T, r index.IndexReader, field string) map[string]uint64 {
	t.Helper()
	dict, err := r.FieldDict(field)
	require.NoError(t, err)
	defer dict.Close()

	out := map[string]uint64{}
	for {
		entry, err := dict.Next()
		require.NoError(t, err)
		if entry == nil {
			return out
		}
		out[entry.Term] = entry.Count
	}
}

func TestIndexSet_AcquireMissingProject(t *testing.T) {
	s := newTestIndexSet(t)

	_, err := s.Acquire("ghost")

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeUnknownProject, errors.GetCode(err))
}

func TestIndexSet_ReaderSeesIndexedTerms(t *testing.T) {
	// Given: a project with two documents
	s := newTestIndexSet(t)
	idx, err := s.OpenOrCreate(context.Background(), "p1")
	require.NoError(t, err)
	require.NoError(t, idx.Index("a.go", Document{Content: "parseRequest(req)", Path: "src/a.go"}))
	require.NoError(t, idx.Index("b.go", Document{Content: "parseRequest again", Path: "src/b.go"}))

	// When: acquiring a reader
	h, err := s.Acquire("p1")
	require.NoError(t, err)
	defer h.Release()

	// Then: the content dictionary holds whole identifiers and parts
	terms := dictTerms(t, h.Reader, FieldContent)
	assert.Equal(t, uint64(2), terms["parserequest"])
	assert.Equal(t, uint64(2), terms["parse"])
	assert.Equal(t, uint64(1), terms["req"])
	assert.Contains(t, dictTerms(t, h.Reader, FieldPath), "src")
}

func TestIndexSet_SharesHandlePerDirectory(t *testing.T) {
	s := newTestIndexSet(t)
	a, err := s.OpenOrCreate(context.Background(), "p1")
	require.NoError(t, err)

	b, err := s.Open(context.Background(), "p1")
	require.NoError(t, err)

	assert.Same(t, a, b)
}

func TestIndexSet_ClosedRejectsAcquire(t *testing.T) {
	s := newTestIndexSet(t)
	_, err := s.OpenOrCreate(context.Background(), "p1")
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.Acquire("p1")
	assert.Error(t, err)
}

func TestIndexSet_EvictReopens(t *testing.T) {
	s := newTestIndexSet(t)
	a, err := s.OpenOrCreate(context.Background(), "p1")
	require.NoError(t, err)

	require.NoError(t, s.Evict("p1"))
	b, err := s.Open(context.Background(), "p1")
	require.NoError(t, err)

	assert.NotSame(t, a, b)
	require.NoError(t, s.Evict("never-opened"))
}

func TestIndexSet_SlowProjectDoesNotBlockOthers(t *testing.T) {
	// Given: "good" on disk, and opening "bad" hangs until released
	s := newTestIndexSet(t)
	_, err := s.OpenOrCreate(context.Background(), "good")
	require.NoError(t, err)
	require.NoError(t, s.Evict("good"))

	entered := make(chan struct{})
	release := make(chan struct{})
	unblock := sync.OnceFunc(func() { close(release) })
	t.Cleanup(unblock)
	realOpen := s.open
	s.open = func(project, dir string, create bool) (bleve.Index, error) {
		if project == "bad" {
			close(entered)
			<-release
			return nil, errors.IndexError(project, stderrors.New("corrupt meta"))
		}
		return realOpen(project, dir, create)
	}

	badErr := make(chan error, 1)
	go func() {
		_, err := s.Acquire("bad")
		badErr <- err
	}()
	<-entered

	// When: acquiring "good" while "bad" is still opening
	goodErr := make(chan error, 1)
	go func() {
		h, err := s.Acquire("good")
		if err == nil {
			h.Release()
		}
		goodErr <- err
	}()

	// Then: "good" completes without waiting for "bad"
	select {
	case err := <-goodErr:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Acquire(good) waited behind Acquire(bad)")
	}

	unblock()
	err = <-badErr
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeIndexUnavailable, errors.GetCode(err))
}

func TestIndexSet_CorruptIndexIsNotRetried(t *testing.T) {
	// Given: an index directory with unreadable metadata
	s := newTestIndexSet(t)
	s.retry = errors.RetryConfig{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2}
	dir := s.dirFor("bad")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index_meta.json"), []byte("{not json"), 0o644))

	var calls atomic.Int32
	realOpen := s.open
	s.open = func(project, dir string, create bool) (bleve.Index, error) {
		calls.Add(1)
		return realOpen(project, dir, create)
	}

	// When: acquiring it
	_, err := s.Acquire("bad")

	// Then: it fails once, without retries
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeIndexUnavailable, errors.GetCode(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestIndexSet_RetriesLockedIndex(t *testing.T) {
	// Given: an index that is locked for the first two attempts
	s := newTestIndexSet(t)
	_, err := s.OpenOrCreate(context.Background(), "p1")
	require.NoError(t, err)
	require.NoError(t, s.Evict("p1"))

	s.retry = errors.RetryConfig{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2}
	var calls atomic.Int32
	realOpen := s.open
	s.open = func(project, dir string, create bool) (bleve.Index, error) {
		if calls.Add(1) <= 2 {
			return nil, errors.IndexLockedError(project, stderrors.New("timeout"))
		}
		return realOpen(project, dir, create)
	}

	// When: acquiring it
	h, err := s.Acquire("p1")

	// Then: the third attempt succeeds
	require.NoError(t, err)
	h.Release()
	assert.Equal(t, int32(3), calls.Load())
}

func TestIndexSet_CloseStaleAfterPathChange(t *testing.T) {
	// Given: two open projects
	root := t.TempDir()
	var mu sync.Mutex
	paths := map[string]string{"p1": "old", "keep": "keep"}
	s := NewIndexSet(func(project string) string {
		mu.Lock()
		defer mu.Unlock()
		return filepath.Join(root, paths[project])
	})
	s.retry.MaxRetries = 0
	t.Cleanup(func() { _ = s.Close() })

	oldIdx, err := s.OpenOrCreate(context.Background(), "p1")
	require.NoError(t, err)
	keepIdx, err := s.OpenOrCreate(context.Background(), "keep")
	require.NoError(t, err)

	// When: p1 moves and stale handles are closed
	mu.Lock()
	paths["p1"] = "new"
	mu.Unlock()
	require.NoError(t, s.CloseStale())

	// Then: the old handle is closed, the untouched one still serves
	_, err = oldIdx.DocCount()
	assert.ErrorIs(t, err, bleve.ErrorIndexClosed)
	_, err = keepIdx.DocCount()
	assert.NoError(t, err)

	newIdx, err := s.OpenOrCreate(context.Background(), "p1")
	require.NoError(t, err)
	assert.NotSame(t, oldIdx, newIdx)
	assert.DirExists(t, filepath.Join(root, "new"))
}

func TestPopularityStore_IncrementAndTop(t *testing.T) {
	p, err := OpenPopularityStore("")
	require.NoError(t, err)
	defer p.Close()
	ctx := context.Background()

	_, err = p.Increment(ctx, "p1", "content", "parse", 3)
	require.NoError(t, err)
	_, err = p.Increment(ctx, "p1", "content", "parser", 5)
	require.NoError(t, err)
	_, err = p.Increment(ctx, "p1", "content", "print", 9)
	require.NoError(t, err)
	got, err := p.Increment(ctx, "p1", "content", "parse", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(4), got)

	top, err := p.Top(ctx, "p1", "content", "par", 10)
	require.NoError(t, err)
	assert.Equal(t, []PopularTerm{{"parser", 5}, {"parse", 4}}, top)
}

func TestPopularityStore_NeverNegative(t *testing.T) {
	p, err := OpenPopularityStore("")
	require.NoError(t, err)
	defer p.Close()
	ctx := context.Background()

	got, err := p.Increment(ctx, "p1", "content", "x1", -5)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got)

	_, err = p.Increment(ctx, "p1", "content", "x1", 2)
	require.NoError(t, err)
	got, err = p.Increment(ctx, "p1", "content", "x1", -10)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got)
}

func TestPopularityStore_DeleteProjectAndPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "popularity.db")
	ctx := context.Background()

	p, err := OpenPopularityStore(path)
	require.NoError(t, err)
	_, err = p.Increment(ctx, "keep", "path", "src", 2)
	require.NoError(t, err)
	_, err = p.Increment(ctx, "drop", "path", "src", 2)
	require.NoError(t, err)
	require.NoError(t, p.DeleteProject(ctx, "drop"))
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	reopened, err := OpenPopularityStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	kept, err := reopened.Count(ctx, "keep", "path", "src")
	require.NoError(t, err)
	assert.Equal(t, int64(2), kept)
	dropped, err := reopened.Count(ctx, "drop", "path", "src")
	require.NoError(t, err)
	assert.Equal(t, int64(0), dropped)
}
