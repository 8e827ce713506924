package daemon

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/amansuggest/internal/api"
	"github.com/Aman-CERP/amansuggest/internal/completion"
	"github.com/Aman-CERP/amansuggest/internal/config"
	"github.com/Aman-CERP/amansuggest/internal/errors"
	"github.com/Aman-CERP/amansuggest/internal/indexer"
	"github.com/Aman-CERP/amansuggest/internal/store"
	"github.com/Aman-CERP/amansuggest/internal/suggest"
	"github.com/Aman-CERP/amansuggest/internal/watcher"
)

// Options are optional Daemon collaborators.
type Options struct {
	// ConfigPath enables reloading on edits. Empty disables the watcher.
	ConfigPath string

	// EngineFactory overrides the completion engine.
	EngineFactory suggest.EngineFactory

	// Watcher tunes configuration reloads.
	Watcher watcher.Options
}

// Daemon owns the process-wide resources: the project indexes, the
// suggester storage and service, and the RPC and HTTP listeners.
type Daemon struct {
	cfg     Config
	opts    Options
	pidFile *PIDFile

	indexes *store.IndexSet
	storage *completion.Storage
	svc     *suggest.Service
	indexer *indexer.Indexer
	server  *Server
	http    *http.Server

	// indexMu serializes index runs; bleve allows one writer per index.
	indexMu sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

// NewDaemon assembles a daemon for cfg. The suggester storage is opened
// here, so a second daemon on the same data root fails immediately.
func NewDaemon(appCfg *config.Config, dcfg Config, opts Options) (*Daemon, error) {
	if err := dcfg.Validate(); err != nil {
		return nil, errors.ConfigError("invalid daemon configuration", err)
	}
	if err := appCfg.Validate(); err != nil {
		return nil, err
	}

	d := &Daemon{
		cfg:     dcfg,
		opts:    opts,
		pidFile: NewPIDFile(dcfg.PIDPath),
	}
	// Index locations follow config reloads.
	d.indexes = store.NewIndexSet(func(project string) string {
		return d.svc.Config().IndexDir(project)
	})

	factory := opts.EngineFactory
	if factory == nil {
		storage, err := completion.OpenStorage(appCfg.SuggesterDir(), 0)
		if err != nil {
			_ = d.indexes.Close()
			return nil, err
		}
		d.storage = storage
		factory = completion.NewFactory(storage, d.indexes)
	}

	d.svc = suggest.NewService(appCfg, suggest.Deps{
		EngineFactory: factory,
		Readers:       d.indexes,
	})
	d.indexer = indexer.New(d.indexes, indexer.DefaultOptions())

	server, err := NewServer(dcfg.SocketPath)
	if err != nil {
		_ = d.closeResources()
		return nil, err
	}
	server.SetHandler(d)
	d.server = server

	if dcfg.HTTPAddr != "" {
		d.http = &http.Server{
			Addr:              dcfg.HTTPAddr,
			Handler:           api.NewHandler(d.svc),
			ReadHeaderTimeout: 10 * time.Second,
		}
	}
	return d, nil
}

// Service exposes the suggester, e.g. for in-process surfaces.
func (d *Daemon) Service() *suggest.Service {
	return d.svc
}

// Start runs the daemon until ctx is cancelled or a listener fails, then
// shuts everything down.
func (d *Daemon) Start(ctx context.Context) error {
	if err := d.cfg.EnsureDir(); err != nil {
		return err
	}
	var cw *watcher.ConfigWatcher
	if d.opts.ConfigPath != "" {
		w, err := watcher.New(d.opts.ConfigPath, reloadTarget{d}, d.opts.Watcher)
		if err != nil {
			return err
		}
		cw = w
	}
	if err := d.pidFile.Acquire(); err != nil {
		return err
	}
	defer func() {
		if err := d.pidFile.Remove(); err != nil {
			slog.Warn("Failed to remove PID file", slog.String("error", err.Error()))
		}
	}()

	d.svc.Start()
	slog.Info("Daemon started",
		slog.String("socket", d.cfg.SocketPath),
		slog.String("http", d.cfg.HTTPAddr))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return ignoreCancel(d.server.ListenAndServe(gctx))
	})

	if d.http != nil {
		g.Go(func() error {
			err := d.http.ListenAndServe()
			if stderrors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("http server: %w", err)
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), d.cfg.ShutdownGracePeriod)
			defer cancel()
			return d.http.Shutdown(shutdownCtx)
		})
	}

	if cw != nil {
		g.Go(func() error {
			return ignoreCancel(cw.Run(gctx))
		})
	}

	err := g.Wait()
	slog.Info("Daemon stopping")
	if cerr := d.Close(); cerr != nil {
		slog.Warn("Shutdown incomplete", slog.String("error", cerr.Error()))
	}
	return err
}

func ignoreCancel(err error) error {
	if stderrors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close stops the suggester, then releases storage and indexes. It is safe
// to call more than once.
func (d *Daemon) Close() error {
	d.closeOnce.Do(func() {
		if d.server != nil {
			_ = d.server.Close()
		}
		d.closeErr = d.closeResources()
	})
	return d.closeErr
}

func (d *Daemon) closeResources() error {
	var errs []error
	if err := d.svc.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close suggester: %w", err))
	}
	if d.storage != nil {
		if err := d.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close storage: %w", err))
		}
	}
	if err := d.indexes.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close indexes: %w", err))
	}
	return stderrors.Join(errs...)
}

// Suggest implements RequestHandler.
func (d *Daemon) Suggest(ctx context.Context, p SuggestParams) (SuggestResult, error) {
	cfg := d.svc.Config()
	start := time.Now()
	results := d.svc.GetSuggestions(ctx, p.Projects,
		suggest.Query{Field: p.Field, Prefix: p.Prefix}, api.ParseQueryText(p.Query))
	return api.NewReply(&cfg.Suggester, results, p.Query, time.Since(start)), nil
}

// SearchEvent implements RequestHandler.
func (d *Daemon) SearchEvent(p SearchEventParams) error {
	d.svc.OnSearch(p.Projects, api.ParseQueryText(p.Query))
	return nil
}

// Select implements RequestHandler.
func (d *Daemon) Select(p SelectParams) error {
	cfg := d.svc.Config()
	if !cfg.Suggester.AllowMostPopular {
		return errors.ValidationError("most popular tracking is disabled", nil)
	}
	if cfg.ProjectsEnabled && !cfg.HasProject(p.Project) {
		return errors.UnknownProjectError(p.Project)
	}
	d.svc.IncreaseSearchCount(p.Project, p.SelectedTerm(), p.Weight)
	return nil
}

// Refresh implements RequestHandler.
func (d *Daemon) Refresh(p RefreshParams) error {
	if p.Project == "" {
		d.svc.Refresh()
		return nil
	}
	if !d.svc.Config().HasProject(p.Project) {
		return errors.UnknownProjectError(p.Project)
	}
	d.svc.RefreshProject(p.Project)
	return nil
}

// Delete implements RequestHandler. Projects already gone from the
// configuration can still be dropped.
func (d *Daemon) Delete(p DeleteParams) error {
	d.svc.DeleteProject(p.Project)
	if err := d.indexes.Evict(p.Project); err != nil {
		slog.Warn("Failed to close project index",
			slog.String("project", p.Project),
			slog.String("error", err.Error()))
	}
	return nil
}

// Index implements RequestHandler. The project's suggester data is rebuilt
// once the index is written.
func (d *Daemon) Index(ctx context.Context, p IndexParams) (IndexResult, error) {
	cfg := d.svc.Config()
	project := p.Project
	if !cfg.ProjectsEnabled {
		project = ""
	} else if !cfg.HasProject(project) {
		return IndexResult{}, errors.UnknownProjectError(project).
			WithSuggestion("Add the project to the configuration file first")
	}

	d.indexMu.Lock()
	stats, err := d.indexer.Index(ctx, project, p.Path)
	d.indexMu.Unlock()
	if err != nil {
		return IndexResult{}, err
	}

	if project == "" {
		d.svc.Refresh()
	} else {
		d.svc.RefreshProject(project)
	}
	return stats, nil
}

// Status implements RequestHandler.
func (d *Daemon) Status() StatusResult {
	return StatusResult{
		HTTPAddr:  d.cfg.HTTPAddr,
		Suggester: d.svc.Status(),
	}
}

// reloadTarget applies configuration reloads to the service. Dropped or
// moved projects also release their index handle.
type reloadTarget struct {
	d *Daemon
}

func (t reloadTarget) Config() *config.Config { return t.d.svc.Config() }

func (t reloadTarget) SetConfig(cfg *config.Config) {
	if t.d.svc.Config().SuggesterDir() != cfg.SuggesterDir() {
		slog.Warn("data_root changed; suggester storage moves after a restart")
	}
	t.d.svc.SetConfig(cfg)
	// Projects whose path moved leave their old handle behind.
	if err := t.d.indexes.CloseStale(); err != nil {
		slog.Warn("Failed to close moved project index", slog.String("error", err.Error()))
	}
}

func (t reloadTarget) Refresh() { t.d.svc.Refresh() }

func (t reloadTarget) RefreshProject(project string) { t.d.svc.RefreshProject(project) }

func (t reloadTarget) DeleteProject(project string) {
	_ = t.d.Delete(DeleteParams{Project: project})
}

var (
	_ RequestHandler = (*Daemon)(nil)
	_ watcher.Target = reloadTarget{}
)
