// Package indexer writes a source tree into a project's full-text index so
// the suggester has something to complete from.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/blevesearch/bleve/v2"

	"github.com/Aman-CERP/amansuggest/internal/errors"
	"github.com/Aman-CERP/amansuggest/internal/store"
)

// DefaultBatchSize is the number of documents per index batch.
const DefaultBatchSize = 200

// Options configure an Indexer.
type Options struct {
	BatchSize        int
	MaxFileSize      int64
	RespectGitignore bool
	SkipGenerated    bool
}

// DefaultOptions returns the options used by the CLI and daemon.
func DefaultOptions() Options {
	return Options{
		BatchSize:        DefaultBatchSize,
		MaxFileSize:      DefaultMaxFileSize,
		RespectGitignore: true,
		SkipGenerated:    true,
	}
}

// Stats summarize one indexing run.
type Stats struct {
	Project  string        `json:"project"`
	Indexed  int           `json:"indexed"`
	Removed  int           `json:"removed"`
	Duration time.Duration `json:"duration"`
}

// Indexer writes projects through a shared IndexSet.
type Indexer struct {
	indexes *store.IndexSet
	opts    Options
}

// New creates an Indexer.
func New(indexes *store.IndexSet, opts Options) *Indexer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	return &Indexer{indexes: indexes, opts: opts}
}

// Index (re)indexes every file under root into project's index. Documents
// for files that no longer exist are deleted.
func (ix *Indexer) Index(ctx context.Context, project, root string) (Stats, error) {
	started := time.Now()
	stats := Stats{Project: project}

	info, err := os.Stat(root)
	if err != nil {
		return stats, errors.ValidationError(fmt.Sprintf("cannot read source directory %s", root), err)
	}
	if !info.IsDir() {
		return stats, errors.ValidationError(fmt.Sprintf("%s is not a directory", root), nil)
	}

	idx, err := ix.indexes.OpenOrCreate(ctx, project)
	if err != nil {
		return stats, err
	}

	existing, err := documentIDs(idx)
	if err != nil {
		return stats, errors.IndexError(project, err)
	}

	batch := idx.NewBatch()
	flush := func() error {
		if batch.Size() == 0 {
			return nil
		}
		if err := idx.Batch(batch); err != nil {
			return errors.IndexError(project, err)
		}
		batch.Reset()
		return nil
	}

	w := &walker{
		root:        root,
		maxFileSize: ix.opts.MaxFileSize,
		gitignore:   ix.opts.RespectGitignore,
		skipGen:     ix.opts.SkipGenerated,
	}
	err = w.walk(ctx, func(f sourceFile) error {
		delete(existing, f.rel)
		if err := batch.Index(f.rel, store.Document{Content: string(f.content), Path: f.rel}); err != nil {
			return errors.IndexError(project, err)
		}
		stats.Indexed++
		if batch.Size() >= ix.opts.BatchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return stats, err
	}

	for id := range existing {
		batch.Delete(id)
		stats.Removed++
		if batch.Size() >= ix.opts.BatchSize {
			if err := flush(); err != nil {
				return stats, err
			}
		}
	}
	if err := flush(); err != nil {
		return stats, err
	}

	stats.Duration = time.Since(started)
	slog.Info("Indexed project",
		slog.String("project", project),
		slog.Int("indexed", stats.Indexed),
		slog.Int("removed", stats.Removed),
		slog.Duration("took", stats.Duration))
	return stats, nil
}

// documentIDs lists the external IDs currently in idx.
func documentIDs(idx bleve.Index) (map[string]struct{}, error) {
	adv, err := idx.Advanced()
	if err != nil {
		return nil, err
	}
	r, err := adv.Reader()
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	ids, err := r.DocIDReaderAll()
	if err != nil {
		return nil, err
	}
	defer func() { _ = ids.Close() }()

	out := make(map[string]struct{})
	for {
		internal, err := ids.Next()
		if err != nil {
			return nil, err
		}
		if internal == nil {
			return out, nil
		}
		ext, err := r.ExternalID(internal)
		if err != nil {
			return nil, err
		}
		out[ext] = struct{}{}
	}
}
