package suggest

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/Aman-CERP/amansuggest/internal/config"
	"github.com/Aman-CERP/amansuggest/internal/errors"
	"github.com/Aman-CERP/amansuggest/internal/schedule"
)

// Deps are the collaborators a Service drives.
type Deps struct {
	EngineFactory EngineFactory
	Readers       ReaderProvider

	// Optional; default to cron, runtime timers and time.Now.
	Calculator schedule.Calculator
	Timers     schedule.Scheduler
	Now        func() time.Time
}

// Service orchestrates the suggestion engine lifecycle.
//
// Lock order is mu before schedMu. The engine field is non-nil only while
// state is Ready; a build in flight keeps its engine private until done.
type Service struct {
	deps Deps
	cfg  atomic.Pointer[config.Config]

	// life is cancelled by Close so long-running rebuilds stop early.
	life       context.Context
	lifeCancel context.CancelFunc

	mu          sync.RWMutex
	state       State
	engine      Engine
	gen         uint64
	cancelBuild context.CancelFunc
	lastBuild   time.Time
	buildTime   time.Duration

	schedMu       sync.Mutex
	job           schedule.Job
	nextRun       time.Time
	schedDisabled bool
	schedClosed   bool

	wg sync.WaitGroup
}

// NewService creates a Service in the Uninitialized state. Call Start to
// begin the first build.
func NewService(cfg *config.Config, deps Deps) *Service {
	if deps.Calculator == nil {
		deps.Calculator = schedule.NewCronCalculator()
	}
	if deps.Timers == nil {
		deps.Timers = schedule.TimerScheduler{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	s := &Service{deps: deps}
	s.life, s.lifeCancel = context.WithCancel(context.Background())
	s.cfg.Store(cfg.Clone())
	return s
}

// Start spawns the initial build if the suggester is enabled. It returns
// without waiting; lookups return nothing until the build completes.
func (s *Service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Uninitialized {
		return
	}
	s.initLocked()
}

// SetConfig replaces the configuration snapshot used by later operations.
// It does not rebuild; call Refresh for that.
func (s *Service) SetConfig(cfg *config.Config) {
	s.cfg.Store(cfg.Clone())
}

// Config returns the current configuration snapshot. Callers must not
// modify it.
func (s *Service) Config() *config.Config {
	return s.cfg.Load()
}

// State returns the current lifecycle state.
func (s *Service) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// initLocked creates a fresh engine and builds it in the background.
// Caller holds mu for writing and state is Uninitialized.
func (s *Service) initLocked() {
	cfg := s.cfg.Load()
	if !cfg.Suggester.Enabled {
		slog.Info("Suggester disabled")
		return
	}

	eng, err := s.deps.EngineFactory(cfg)
	if err != nil {
		slog.Error("Could not create suggester", errors.LogAttrs(err)...)
		return
	}

	ctx, cancel := context.WithCancel(s.life)
	s.cancelBuild = cancel
	s.state = Initializing

	gen := s.gen
	s.wg.Add(1)
	go s.build(ctx, cancel, gen, eng, cfg)
}

func (s *Service) build(ctx context.Context, cancel context.CancelFunc, gen uint64, eng Engine, cfg *config.Config) {
	defer s.wg.Done()
	defer cancel()

	started := s.deps.Now()
	indexes := projectIndexes(cfg)
	slog.Info("Building suggester", slog.Int("indexes", len(indexes)))

	if err := eng.Build(ctx, indexes); err != nil {
		// Whatever was built stays usable; the next rebuild fills the gaps.
		slog.Warn("Suggester build incomplete", errors.LogAttrs(err)...)
	}

	s.mu.Lock()
	if s.gen != gen || s.state != Initializing {
		s.mu.Unlock()
		slog.Debug("Discarding superseded suggester build", slog.Uint64("generation", gen))
		if err := eng.Close(); err != nil {
			slog.Warn("Could not close superseded suggester", slog.String("error", err.Error()))
		}
		return
	}
	s.engine = eng
	s.state = Ready
	s.cancelBuild = nil
	s.lastBuild = s.deps.Now()
	s.buildTime = s.lastBuild.Sub(started)
	took := s.buildTime
	s.mu.Unlock()

	slog.Info("Suggester ready", slog.Duration("took", took))
	s.scheduleRebuild(gen)
}

// projectIndexes lists the indexes a full build covers: every indexed
// project, or the root index when projects are disabled.
func projectIndexes(cfg *config.Config) []ProjectIndex {
	if !cfg.ProjectsEnabled {
		return []ProjectIndex{{Name: "", Dir: cfg.IndexRoot()}}
	}
	names := cfg.IndexedProjects()
	indexes := make([]ProjectIndex, 0, len(names))
	for _, name := range names {
		indexes = append(indexes, ProjectIndex{Name: name, Dir: cfg.IndexDir(name)})
	}
	return indexes
}

// GetSuggestions returns completions for q across projects. It returns an
// empty result while the engine is not Ready and never fails the whole
// request because one project's index is unavailable.
func (s *Service) GetSuggestions(ctx context.Context, projects []string, q Query, text TextQuery) []LookupResult {
	cfg := s.cfg.Load()
	sc := &cfg.Suggester

	if utf8.RuneCountInString(q.Prefix) < sc.MinChars {
		return nil
	}
	if !sc.FieldAllowed(q.Field) {
		slog.Debug("Suggestions for field not allowed", slog.String("field", q.Field))
		return nil
	}
	if !sc.AllowComplexQueries && len(text.Terms) > 0 {
		return nil
	}
	projects = lookupProjects(projects, sc)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state != Ready {
		return nil
	}

	readers, release := collectReaders(s.deps.Readers, cfg.ProjectsEnabled, projects)
	defer release()

	results, err := s.engine.Search(ctx, readers, q, text)
	if err != nil {
		slog.Warn("Suggester search failed", errors.LogAttrs(err)...)
		return nil
	}
	return results
}

// lookupProjects drops disallowed and duplicate projects and caps the
// remainder at max_projects, keeping request order.
func lookupProjects(projects []string, sc *config.SuggesterConfig) []string {
	out := make([]string, 0, len(projects))
	seen := make(map[string]struct{}, len(projects))
	for _, p := range projects {
		if _, dup := seen[p]; dup || !sc.ProjectAllowed(p) {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
		if len(out) >= sc.MaxProjects {
			break
		}
	}
	return out
}

// OnSearch feeds an executed search into most-popular statistics.
func (s *Service) OnSearch(projects []string, text TextQuery) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state != Ready {
		slog.Debug("Suggester not initialized, ignoring search event", slog.String("query", text.Text))
		return
	}
	s.engine.OnSearch(projects, text)
}

// IncreaseSearchCount adds weight to term's most-popular count in project.
func (s *Service) IncreaseSearchCount(project string, term Term, weight int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state != Ready {
		return
	}
	if err := s.engine.IncreaseSearchCount(project, term, weight); err != nil {
		slog.Warn("Could not increase search count",
			append(errors.LogAttrs(err), slog.String("project", project))...)
	}
}

// Refresh discards the engine and builds a new one from the current
// configuration. The build runs in the background; the next automatic
// rebuild is armed once it finishes.
func (s *Service) Refresh() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Closed {
		slog.Debug("Suggester closed, ignoring refresh")
		return
	}
	slog.Debug("Refreshing suggester for new configuration")

	s.gen++
	s.schedMu.Lock()
	s.stopJobLocked()
	s.schedMu.Unlock()

	if s.cancelBuild != nil {
		s.cancelBuild()
		s.cancelBuild = nil
	}
	if s.engine != nil {
		if err := s.engine.Close(); err != nil {
			slog.Warn("Could not close suggester", slog.String("error", err.Error()))
		}
		s.engine = nil
	}
	s.state = Uninitialized
	s.initLocked()
}

// RefreshProject rebuilds one project's data in place. With projects
// disabled that is the root index.
func (s *Service) RefreshProject(project string) {
	cfg := s.cfg.Load()
	if !cfg.HasProject(project) {
		slog.Warn("Cannot refresh suggester because project was not found", slog.String("project", project))
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state != Ready {
		slog.Debug("Cannot refresh project because suggester is not initialized", slog.String("project", project))
		return
	}
	idx := []ProjectIndex{{Name: project, Dir: cfg.IndexDir(project)}}
	if !cfg.ProjectsEnabled {
		// Projects share the root index, whose data lives under "".
		idx = projectIndexes(cfg)
	}
	if err := s.engine.Rebuild(s.life, idx); err != nil {
		slog.Warn("Suggester project rebuild failed",
			append(errors.LogAttrs(err), slog.String("project", project))...)
	}
}

// DeleteProject drops project's data from the engine.
func (s *Service) DeleteProject(project string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state != Ready {
		slog.Debug("Cannot remove project because suggester is not initialized", slog.String("project", project))
		return
	}
	if err := s.engine.Remove([]string{project}); err != nil {
		slog.Warn("Could not remove project from suggester",
			append(errors.LogAttrs(err), slog.String("project", project))...)
	}
}

// Close stops scheduling, closes the engine and waits for background
// builds. Calling it again is a no-op.
func (s *Service) Close() error {
	s.lifeCancel()

	s.mu.Lock()
	if s.state == Closed {
		s.mu.Unlock()
		return nil
	}

	s.gen++
	s.schedMu.Lock()
	s.schedClosed = true
	s.stopJobLocked()
	s.schedMu.Unlock()

	if s.cancelBuild != nil {
		s.cancelBuild()
		s.cancelBuild = nil
	}

	var err error
	if s.engine != nil {
		err = s.engine.Close()
		s.engine = nil
	}
	s.state = Closed
	s.mu.Unlock()

	s.wg.Wait()
	return err
}

// Status reports the lifecycle and schedule state.
func (s *Service) Status() Status {
	cfg := s.cfg.Load()

	s.mu.RLock()
	st := Status{
		State:           s.state,
		Enabled:         cfg.Suggester.Enabled,
		ProjectsEnabled: cfg.ProjectsEnabled,
		Projects:        len(cfg.IndexedProjects()),
		RebuildCron:     cfg.Suggester.Cron(),
		LastBuildTime:   s.buildTime,
	}
	if !s.lastBuild.IsZero() {
		t := s.lastBuild
		st.LastBuild = &t
	}
	s.mu.RUnlock()

	s.schedMu.Lock()
	if s.job != nil {
		t := s.nextRun
		st.NextRebuild = &t
	}
	st.ScheduleDisabled = s.schedDisabled
	s.schedMu.Unlock()

	return st
}
