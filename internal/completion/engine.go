// Package completion implements the suggestion engine: sorted per-project
// term tables built from index dictionaries, ranked by document frequency
// plus most-popular counts.
package completion

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	index "github.com/blevesearch/bleve_index_api"
	"github.com/google/btree"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/amansuggest/internal/config"
	"github.com/Aman-CERP/amansuggest/internal/errors"
	"github.com/Aman-CERP/amansuggest/internal/store"
	"github.com/Aman-CERP/amansuggest/internal/suggest"
)

const (
	// scanLimit caps candidates taken from one project per lookup.
	scanLimit = 1000

	// popularityBoost weighs one most-popular hit against one document.
	popularityBoost = 10

	btreeDegree = 32

	// ctxCheckEvery is how many dictionary entries are read between
	// cancellation checks.
	ctxCheckEvery = 1024

	eventTimeout = 5 * time.Second
)

// Options tune an Engine.
type Options struct {
	MaxResults       int
	BuildTimeout     time.Duration
	AllowMostPopular bool
	// Fields get prebuilt term tables; lookups on other fields read the
	// index dictionary directly.
	Fields  []string
	Workers int
}

// OptionsFromConfig derives engine options from the suggester section.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MaxResults:       cfg.Suggester.MaxResults,
		BuildTimeout:     time.Duration(cfg.Suggester.BuildTerminationTimeout) * time.Second,
		AllowMostPopular: cfg.Suggester.AllowMostPopular,
		Fields:           store.Fields,
	}
}

// NewFactory returns a suggest.EngineFactory creating engines over storage
// that read project indexes from source.
func NewFactory(storage *Storage, source suggest.ReaderProvider) suggest.EngineFactory {
	return func(cfg *config.Config) (suggest.Engine, error) {
		return New(OptionsFromConfig(cfg), storage, source), nil
	}
}

type termEntry struct {
	term string
	freq uint64
}

func lessTerm(a, b termEntry) bool {
	return a.term < b.term
}

// termTable is one project's sorted terms per field.
type termTable map[string]*btree.BTreeG[termEntry]

// Engine is a suggest.Engine. All methods are safe for concurrent use.
type Engine struct {
	opts    Options
	storage *Storage
	source  suggest.ReaderProvider

	mu     sync.RWMutex
	tables map[string]termTable
	closed bool
}

// New creates an empty engine. Build fills it.
func New(opts Options, storage *Storage, source suggest.ReaderProvider) *Engine {
	if opts.MaxResults <= 0 {
		opts.MaxResults = 10
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if len(opts.Fields) == 0 {
		opts.Fields = store.Fields
	}
	return &Engine{
		opts:    opts,
		storage: storage,
		source:  source,
		tables:  make(map[string]termTable),
	}
}

// Build loads the term tables of every index. Failed projects are logged,
// skipped and reported together; the rest stay usable.
func (e *Engine) Build(ctx context.Context, indexes []suggest.ProjectIndex) error {
	return e.load(ctx, indexes)
}

// Rebuild reloads the given projects, replacing their tables.
func (e *Engine) Rebuild(ctx context.Context, indexes []suggest.ProjectIndex) error {
	return e.load(ctx, indexes)
}

func (e *Engine) load(ctx context.Context, indexes []suggest.ProjectIndex) error {
	if e.opts.BuildTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.BuildTimeout)
		defer cancel()
	}

	var (
		errMu sync.Mutex
		errs  []error
	)
	g := new(errgroup.Group)
	g.SetLimit(e.opts.Workers)

	for _, pi := range indexes {
		g.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			started := time.Now()
			table, err := e.buildTable(ctx, pi.Name)
			if err != nil {
				slog.Warn("Could not build suggester data",
					append(errors.LogAttrs(err), slog.String("project", pi.Name), slog.String("dir", pi.Dir))...)
				errMu.Lock()
				errs = append(errs, fmt.Errorf("project %q: %w", pi.Name, err))
				errMu.Unlock()
				return nil
			}
			if !e.publish(pi.Name, table) {
				return nil
			}
			slog.Debug("Built suggester data",
				slog.String("project", pi.Name),
				slog.Int("terms", table.len()),
				slog.Duration("took", time.Since(started)))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		errs = append(errs, err)
	}
	return stderrors.Join(errs...)
}

func (e *Engine) publish(project string, table termTable) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	e.tables[project] = table
	return true
}

func (t termTable) len() int {
	n := 0
	for _, tree := range t {
		n += tree.Len()
	}
	return n
}

func (e *Engine) buildTable(ctx context.Context, project string) (termTable, error) {
	h, err := e.source.Acquire(project)
	if err != nil {
		return nil, err
	}
	defer h.Release()

	table := make(termTable, len(e.opts.Fields))
	for _, field := range e.opts.Fields {
		tree := btree.NewG(btreeDegree, lessTerm)
		if err := readDict(ctx, h.Reader, field, nil, func(ent termEntry) bool {
			tree.ReplaceOrInsert(ent)
			return true
		}); err != nil {
			return nil, err
		}
		table[field] = tree
	}
	return table, nil
}

// readDict walks field's dictionary, restricted to prefix when non-nil,
// until fn returns false.
func readDict(ctx context.Context, r index.IndexReader, field string, prefix []byte, fn func(termEntry) bool) (err error) {
	var dict index.FieldDict
	if prefix != nil {
		dict, err = r.FieldDictPrefix(field, prefix)
	} else {
		dict, err = r.FieldDict(field)
	}
	if err != nil {
		return errors.Wrap(errors.ErrCodeIndexUnavailable, err)
	}
	defer func() {
		if cerr := dict.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	for n := 0; ; n++ {
		if n%ctxCheckEvery == 0 && ctx.Err() != nil {
			return ctx.Err()
		}
		entry, err := dict.Next()
		if err != nil {
			return errors.Wrap(errors.ErrCodeIndexUnavailable, err)
		}
		if entry == nil {
			return nil
		}
		if !fn(termEntry{term: entry.Term, freq: entry.Count}) {
			return nil
		}
	}
}

// Remove drops the projects' tables and most-popular data.
func (e *Engine) Remove(projects []string) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return errClosed()
	}
	for _, p := range projects {
		delete(e.tables, p)
	}
	e.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	var errs []error
	for _, p := range projects {
		if err := e.storage.deleteProject(ctx, p); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// Search completes q in every reader's project. Candidates come from the
// project's table, or the live dictionary when the project has none yet.
// With text terms present only terms co-occurring with all of them in some
// document are kept, scored by the number of such documents.
func (e *Engine) Search(ctx context.Context, readers []suggest.NamedReader, q suggest.Query, text suggest.TextQuery) ([]suggest.LookupResult, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, errClosed()
	}

	field := q.Field
	if field == "" {
		field = store.FieldContent
	}
	prefix := strings.ToLower(q.Prefix)

	merged := make(map[string]*suggest.LookupResult)
	for _, nr := range readers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cands, err := e.candidates(ctx, nr, field, prefix)
		if err != nil {
			slog.Warn("Suggester lookup failed for project",
				append(errors.LogAttrs(err), slog.String("project", nr.Project))...)
			continue
		}
		if len(text.Terms) > 0 {
			cands, err = cooccurring(ctx, nr.Reader, field, cands, text.Terms)
			if err != nil {
				slog.Warn("Suggester co-occurrence filter failed",
					append(errors.LogAttrs(err), slog.String("project", nr.Project))...)
				continue
			}
		}

		pop := e.popularity(ctx, nr.Project, field, prefix)
		for _, c := range cands {
			res, ok := merged[c.term]
			if !ok {
				res = &suggest.LookupResult{Phrase: c.term}
				merged[c.term] = res
			}
			res.Score += float64(c.freq) + popularityBoost*float64(pop[c.term])
			if nr.Project != "" {
				res.Projects = append(res.Projects, nr.Project)
			}
		}
	}

	results := make([]suggest.LookupResult, 0, len(merged))
	for _, r := range merged {
		results = append(results, *r)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Phrase < results[j].Phrase
	})
	if len(results) > e.opts.MaxResults {
		results = results[:e.opts.MaxResults]
	}
	return results, nil
}

func (e *Engine) candidates(ctx context.Context, nr suggest.NamedReader, field, prefix string) ([]termEntry, error) {
	e.mu.RLock()
	tree := e.tables[nr.Project][field]
	var out []termEntry
	if tree != nil {
		tree.AscendGreaterOrEqual(termEntry{term: prefix}, func(ent termEntry) bool {
			if !strings.HasPrefix(ent.term, prefix) {
				return false
			}
			out = append(out, ent)
			return len(out) < scanLimit
		})
	}
	e.mu.RUnlock()
	if tree != nil {
		return out, nil
	}

	err := readDict(ctx, nr.Reader, field, []byte(prefix), func(ent termEntry) bool {
		out = append(out, ent)
		return len(out) < scanLimit
	})
	return out, err
}

// cooccurring keeps the candidates found in at least one document that also
// contains every term, replacing their frequency with that document count.
func cooccurring(ctx context.Context, r index.IndexReader, field string, cands []termEntry, terms []suggest.Term) ([]termEntry, error) {
	var docs map[string]struct{}
	for _, t := range terms {
		tf := t.Field
		if tf == "" {
			tf = store.FieldContent
		}
		ids, err := termDocs(ctx, r, tf, strings.ToLower(t.Text), docs)
		if err != nil {
			return nil, err
		}
		docs = ids
		if len(docs) == 0 {
			return nil, nil
		}
	}

	out := cands[:0]
	for _, c := range cands {
		ids, err := termDocs(ctx, r, field, c.term, docs)
		if err != nil {
			return nil, err
		}
		if len(ids) > 0 {
			out = append(out, termEntry{term: c.term, freq: uint64(len(ids))})
		}
	}
	return out, nil
}

// termDocs returns the internal IDs of documents holding term in field,
// intersected with within when it is non-nil.
func termDocs(ctx context.Context, r index.IndexReader, field, term string, within map[string]struct{}) (map[string]struct{}, error) {
	tfr, err := r.TermFieldReader(ctx, []byte(term), field, false, false, false)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeIndexUnavailable, err)
	}
	defer tfr.Close()

	ids := make(map[string]struct{})
	var doc index.TermFieldDoc
	for {
		next, err := tfr.Next(&doc)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeIndexUnavailable, err)
		}
		if next == nil {
			return ids, nil
		}
		id := string(next.ID)
		if within != nil {
			if _, ok := within[id]; !ok {
				continue
			}
		}
		ids[id] = struct{}{}
	}
}

func (e *Engine) popularity(ctx context.Context, project, field, prefix string) map[string]int64 {
	if !e.opts.AllowMostPopular {
		return nil
	}
	terms, err := e.storage.popular(ctx, project, field, prefix, scanLimit)
	if err != nil {
		slog.Debug("Most-popular lookup failed", slog.String("project", project), slog.String("error", err.Error()))
		return nil
	}
	out := make(map[string]int64, len(terms))
	for _, t := range terms {
		out[t.Term] = t.Count
	}
	return out
}

// OnSearch counts each term of an executed search once per project. A
// search without structured terms counts the code terms of its text in the
// content field.
func (e *Engine) OnSearch(projects []string, text suggest.TextQuery) {
	if !e.opts.AllowMostPopular {
		return
	}
	terms := text.Terms
	if len(terms) == 0 {
		for _, t := range store.TokenizeCode(text.Text) {
			terms = append(terms, suggest.Term{Field: store.FieldContent, Text: t})
		}
	}
	if len(terms) == 0 {
		return
	}
	if len(projects) == 0 {
		projects = []string{""}
	}

	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	for _, p := range projects {
		for _, t := range terms {
			if err := e.IncreaseSearchCount(p, t, 1); err != nil {
				slog.Debug("Could not record search term",
					slog.String("project", p), slog.String("term", t.Text), slog.String("error", err.Error()))
			}
			if ctx.Err() != nil {
				return
			}
		}
	}
}

// IncreaseSearchCount adds weight to term's count in project.
func (e *Engine) IncreaseSearchCount(project string, term suggest.Term, weight int) error {
	if !e.opts.AllowMostPopular {
		return nil
	}
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return errClosed()
	}

	field := term.Field
	if field == "" {
		field = store.FieldContent
	}
	text := strings.ToLower(strings.TrimSpace(term.Text))
	if text == "" {
		return errors.ValidationError("empty term", nil)
	}

	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()
	_, err := e.storage.increment(ctx, project, field, text, int64(weight))
	return err
}

// Close drops the tables. The shared storage stays open.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.tables = nil
	return nil
}

func errClosed() error {
	return errors.New(errors.ErrCodeEngineFailed, "suggester engine is closed", nil)
}
