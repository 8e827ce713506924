package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	"github.com/Aman-CERP/amansuggest/internal/config"
	"github.com/Aman-CERP/amansuggest/internal/errors"
)

// Target receives configuration changes. suggest.Service satisfies it.
type Target interface {
	Config() *config.Config
	SetConfig(cfg *config.Config)
	Refresh()
	RefreshProject(project string)
	DeleteProject(project string)
}

// Options configures a ConfigWatcher.
type Options struct {
	// DebounceWindow is the quiet period after the last event before a
	// reload. Default: 250ms
	DebounceWindow time.Duration

	// MinInterval is the steady-state spacing between reloads.
	// Default: 2s
	MinInterval time.Duration

	// Burst is how many reloads may run back to back. Default: 2
	Burst int

	// PollInterval is used when fsnotify is unavailable. Default: 5s
	PollInterval time.Duration

	// Load reads the configuration. Default: config.Load
	Load func(path string) (*config.Config, error)
}

// WithDefaults fills unset options.
func (o Options) WithDefaults() Options {
	if o.DebounceWindow <= 0 {
		o.DebounceWindow = 250 * time.Millisecond
	}
	if o.MinInterval <= 0 {
		o.MinInterval = 2 * time.Second
	}
	if o.Burst <= 0 {
		o.Burst = 2
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 5 * time.Second
	}
	if o.Load == nil {
		o.Load = config.Load
	}
	return o
}

// ConfigWatcher applies edits of a configuration file to a Target.
type ConfigWatcher struct {
	path    string
	target  Target
	opts    Options
	limiter *rate.Limiter

	// pending holds at most one queued reload.
	pending chan struct{}

	mu sync.Mutex // serializes reloads
}

// New creates a watcher for the configuration file at path.
func New(path string, target Target, opts Options) (*ConfigWatcher, error) {
	if path == "" {
		return nil, errors.ValidationError("config path is required", nil)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	opts = opts.WithDefaults()
	return &ConfigWatcher{
		path:    abs,
		target:  target,
		opts:    opts,
		limiter: rate.NewLimiter(rate.Every(opts.MinInterval), opts.Burst),
		pending: make(chan struct{}, 1),
	}, nil
}

// Path returns the watched file.
func (w *ConfigWatcher) Path() string {
	return w.path
}

// Run watches until ctx is cancelled.
func (w *ConfigWatcher) Run(ctx context.Context) error {
	deb := NewDebouncer(w.opts.DebounceWindow, w.enqueue)
	defer deb.Stop()

	fsw, err := fsnotify.NewWatcher()
	if err == nil {
		err = fsw.Add(filepath.Dir(w.path))
		if err != nil {
			_ = fsw.Close()
		}
	}

	errCh := make(chan error, 1)
	if err != nil {
		slog.Warn("fsnotify unavailable, polling config file",
			slog.String("path", w.path),
			slog.String("error", err.Error()))
		go func() { errCh <- w.poll(ctx, deb) }()
	} else {
		defer fsw.Close()
		go func() { errCh <- w.watch(ctx, fsw, deb) }()
	}

	slog.Info("Watching configuration", slog.String("path", w.path))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		case <-w.pending:
			if err := w.limiter.Wait(ctx); err != nil {
				return ctx.Err()
			}
			if _, err := w.Reload(); err != nil {
				slog.Warn("Ignoring configuration change", errors.LogAttrs(err)...)
			}
		}
	}
}

func (w *ConfigWatcher) enqueue() {
	select {
	case w.pending <- struct{}{}:
	default:
	}
}

func (w *ConfigWatcher) watch(ctx context.Context, fsw *fsnotify.Watcher, deb *Debouncer) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			// Removal alone is ignored; a replacing write follows.
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				deb.Trigger()
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("Config watcher error", slog.String("error", err.Error()))
		}
	}
}

func (w *ConfigWatcher) poll(ctx context.Context, deb *Debouncer) error {
	last := modTime(w.path)
	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			mt := modTime(w.path)
			if !mt.IsZero() && !mt.Equal(last) {
				last = mt
				deb.Trigger()
			}
		}
	}
}

func modTime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

// Reload reads the file and applies it to the target. An invalid file is
// returned as an error and leaves the target untouched.
func (w *ConfigWatcher) Reload() (Changes, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	cfg, err := w.opts.Load(w.path)
	if err != nil {
		return Changes{}, err
	}
	ch := Apply(w.target, cfg)
	if !ch.Empty() {
		slog.Info("Configuration reloaded",
			slog.Bool("global", ch.Global),
			slog.Any("refreshed", ch.Refresh),
			slog.Any("removed", ch.Remove))
	}
	if ch.Server {
		slog.Warn("Server settings changed; restart the daemon to apply them")
	}
	return ch, nil
}

// Apply moves target to cfg with the least rebuilding the difference
// allows.
func Apply(target Target, cfg *config.Config) Changes {
	ch := Diff(target.Config(), cfg)
	if ch.Empty() {
		return ch
	}

	target.SetConfig(cfg)
	// Removals go first: a full refresh replaces the engine, and only the
	// current one can drop a project's stored data.
	for _, name := range ch.Remove {
		target.DeleteProject(name)
	}
	if ch.Global {
		target.Refresh()
		return ch
	}
	for _, name := range ch.Refresh {
		if cfg.Projects[name].IsIndexed() {
			target.RefreshProject(name)
		} else {
			target.DeleteProject(name)
		}
	}
	return ch
}
