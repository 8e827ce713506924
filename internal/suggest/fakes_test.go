package suggest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/amansuggest/internal/config"
	"github.com/Aman-CERP/amansuggest/internal/schedule"
)

// fakeEngine records calls and flags any use after Close.
type fakeEngine struct {
	gate chan struct{}

	closed        atomic.Bool
	closeCalls    atomic.Int32
	useAfterClose atomic.Int32
	searchErr     error
	panicOnSearch bool

	mu         sync.Mutex
	built      []ProjectIndex
	rebuilds   [][]ProjectIndex
	removed    []string
	searches   []string
	increments []string
}

func (e *fakeEngine) touch() {
	if e.closed.Load() {
		e.useAfterClose.Add(1)
	}
}

func (e *fakeEngine) Build(ctx context.Context, indexes []ProjectIndex) error {
	if e.gate != nil {
		select {
		case <-e.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	e.mu.Lock()
	e.built = indexes
	e.mu.Unlock()
	return nil
}

func (e *fakeEngine) Rebuild(_ context.Context, indexes []ProjectIndex) error {
	e.touch()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rebuilds = append(e.rebuilds, indexes)
	return nil
}

func (e *fakeEngine) Remove(projects []string) error {
	e.touch()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.removed = append(e.removed, projects...)
	return nil
}

func (e *fakeEngine) Search(_ context.Context, readers []NamedReader, q Query, _ TextQuery) ([]LookupResult, error) {
	e.touch()
	if e.panicOnSearch {
		panic("engine exploded")
	}
	if e.searchErr != nil {
		return nil, e.searchErr
	}
	out := make([]LookupResult, 0, len(readers))
	for _, r := range readers {
		out = append(out, LookupResult{Phrase: q.Prefix + "@" + r.Project, Projects: []string{r.Project}})
	}
	return out, nil
}

func (e *fakeEngine) OnSearch(_ []string, text TextQuery) {
	e.touch()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.searches = append(e.searches, text.Text)
}

func (e *fakeEngine) IncreaseSearchCount(project string, term Term, weight int) error {
	e.touch()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.increments = append(e.increments, fmt.Sprintf("%s:%s:%s:%d", project, term.Field, term.Text, weight))
	return nil
}

func (e *fakeEngine) Close() error {
	e.closeCalls.Add(1)
	e.closed.Store(true)
	return nil
}

func (e *fakeEngine) rebuildCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.rebuilds)
}

// fakeFactory hands out fakeEngines; the first one waits on gate if set.
type fakeFactory struct {
	gate chan struct{}
	err  error

	mu      sync.Mutex
	engines []*fakeEngine
}

func (f *fakeFactory) create(_ *config.Config) (Engine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	e := &fakeEngine{}
	if len(f.engines) == 0 {
		e.gate = f.gate
	}
	f.engines = append(f.engines, e)
	return e, nil
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.engines)
}

func (f *fakeFactory) engine(i int) *fakeEngine {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.engines[i]
}

// fakeReaders lends nil readers and counts acquire/release.
type fakeReaders struct {
	fail map[string]bool

	acquired atomic.Int32
	released atomic.Int32

	mu       sync.Mutex
	projects []string
}

func (r *fakeReaders) Acquire(project string) (*ReaderHandle, error) {
	if r.fail[project] {
		return nil, fmt.Errorf("index for %s is locked", project)
	}
	r.acquired.Add(1)
	r.mu.Lock()
	r.projects = append(r.projects, project)
	r.mu.Unlock()
	return NewReaderHandle(project, nil, func() error {
		r.released.Add(1)
		return nil
	}), nil
}

func (r *fakeReaders) acquiredProjects() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.projects...)
}

// fakeScheduler records jobs instead of arming timers; tests fire them.
type fakeScheduler struct {
	mu      sync.Mutex
	jobs    []*fakeJob
	maxLive int
}

type fakeJob struct {
	owner   *fakeScheduler
	delay   time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func (j *fakeJob) Stop() bool {
	j.owner.mu.Lock()
	defer j.owner.mu.Unlock()
	if j.stopped || j.fired {
		return false
	}
	j.stopped = true
	return true
}

func (f *fakeScheduler) AfterFunc(d time.Duration, fn func()) schedule.Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	j := &fakeJob{owner: f, delay: d, fn: fn}
	f.jobs = append(f.jobs, j)
	if n := f.liveLocked(); n > f.maxLive {
		f.maxLive = n
	}
	return j
}

func (f *fakeScheduler) liveLocked() int {
	n := 0
	for _, j := range f.jobs {
		if !j.stopped && !j.fired {
			n++
		}
	}
	return n
}

func (f *fakeScheduler) live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.liveLocked()
}

func (f *fakeScheduler) maxLiveJobs() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxLive
}

func (f *fakeScheduler) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.jobs)
}

func (f *fakeScheduler) job(i int) *fakeJob {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.jobs[i]
}

func (f *fakeScheduler) isStopped(i int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.jobs[i].stopped
}

// fireLatest runs the newest live job on the calling goroutine.
func (f *fakeScheduler) fireLatest(t *testing.T) {
	t.Helper()
	f.mu.Lock()
	var j *fakeJob
	for i := len(f.jobs) - 1; i >= 0; i-- {
		if !f.jobs[i].stopped && !f.jobs[i].fired {
			j = f.jobs[i]
			break
		}
	}
	require.NotNil(t, j, "no live job to fire")
	j.fired = true
	f.mu.Unlock()
	j.fn()
}

// failingCalculator always reports that no next run can be computed.
type failingCalculator struct {
	calls atomic.Int32
}

func (c *failingCalculator) NextRun(string, time.Time) (time.Duration, bool, error) {
	c.calls.Add(1)
	return 0, false, fmt.Errorf("no next execution")
}

func (c *failingCalculator) Validate(string) error { return nil }

type harness struct {
	svc     *Service
	factory *fakeFactory
	readers *fakeReaders
	sched   *fakeScheduler
}

func configProject(indexed *bool) config.Project {
	return config.Project{Indexed: indexed}
}

var elevenPM = time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	cfg := config.NewConfig()
	cfg.DataRoot = "/data"
	cfg.Projects = map[string]config.Project{"p1": {}, "p2": {}}
	return cfg
}

func newHarness(t *testing.T, cfg *config.Config, opts ...func(*Deps, *fakeFactory)) *harness {
	t.Helper()
	h := &harness{
		factory: &fakeFactory{},
		readers: &fakeReaders{fail: map[string]bool{}},
		sched:   &fakeScheduler{},
	}
	deps := Deps{
		EngineFactory: h.factory.create,
		Readers:       h.readers,
		Timers:        h.sched,
		Now:           func() time.Time { return elevenPM },
	}
	for _, opt := range opts {
		opt(&deps, h.factory)
	}
	h.svc = NewService(cfg, deps)
	t.Cleanup(func() { _ = h.svc.Close() })
	return h
}

func (h *harness) waitReady(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool { return h.svc.State() == Ready }, 2*time.Second, time.Millisecond)
}

func (h *harness) waitJobs(t *testing.T, total int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.sched.total() == total }, 2*time.Second, time.Millisecond)
}
