package suggest

import (
	"log/slog"

	"github.com/Aman-CERP/amansuggest/internal/errors"
)

// scheduleRebuild arms the next automatic rebuild for generation gen. It
// does nothing if gen was superseded, the engine is not Ready, scheduling
// was shut down, or a previous schedule computation failed.
func (s *Service) scheduleRebuild(gen uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.gen != gen || s.state != Ready {
		return
	}
	cron := s.cfg.Load().Suggester.Cron()

	s.schedMu.Lock()
	defer s.schedMu.Unlock()

	if s.schedClosed || s.schedDisabled {
		return
	}
	s.stopJobLocked()

	now := s.deps.Now()
	delay, ok, err := s.deps.Calculator.NextRun(cron, now)
	if err != nil {
		s.schedDisabled = true
		slog.Error("Cannot determine next suggester rebuild, automatic rebuild disabled",
			errors.LogAttrs(err)...)
		return
	}
	if !ok {
		slog.Info("Suggester rebuild not scheduled")
		return
	}

	slog.Info("Scheduling suggester rebuild", slog.Duration("in", delay))
	s.nextRun = now.Add(delay)
	s.job = s.deps.Timers.AfterFunc(delay, func() { s.runScheduledRebuild(gen) })
}

// runScheduledRebuild rebuilds every index in place, then re-arms. The next
// run is computed only after this one finishes, so runs never overlap.
func (s *Service) runScheduledRebuild(gen uint64) {
	if !s.rebuildAll(gen) {
		return
	}
	s.scheduleRebuild(gen)
}

func (s *Service) rebuildAll(gen uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.gen != gen || s.state != Ready {
		return false
	}

	s.schedMu.Lock()
	s.job = nil
	s.schedMu.Unlock()

	indexes := projectIndexes(s.cfg.Load())
	slog.Info("Rebuilding suggester", slog.Int("indexes", len(indexes)))
	if err := s.engine.Rebuild(s.life, indexes); err != nil {
		slog.Warn("Scheduled suggester rebuild failed", errors.LogAttrs(err)...)
	}
	return true
}

// stopJobLocked cancels the pending job, if any. Caller holds schedMu.
func (s *Service) stopJobLocked() {
	if s.job == nil {
		return
	}
	s.job.Stop()
	s.job = nil
}
