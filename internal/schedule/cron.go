// Package schedule computes automatic rebuild times from cron expressions
// and arms cancellable one-shot timers for them.
package schedule

import (
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Aman-CERP/amansuggest/internal/errors"
)

// Calculator turns a cron expression into the delay until its next run.
type Calculator interface {
	// NextRun returns the delay from now until the next scheduled run.
	// ok is false when expr is empty (automatic rebuild disabled).
	NextRun(expr string, now time.Time) (delay time.Duration, ok bool, err error)

	// Validate rejects expressions that do not parse.
	Validate(expr string) error
}

// CronCalculator parses standard 5-field cron expressions
// (minute hour day-of-month month day-of-week) plus descriptors like @daily.
type CronCalculator struct{}

// NewCronCalculator returns the default Calculator.
func NewCronCalculator() *CronCalculator {
	return &CronCalculator{}
}

// Validate implements Calculator. An empty expression is valid and means
// "no automatic rebuild".
func (c *CronCalculator) Validate(expr string) error {
	if expr == "" {
		return nil
	}
	if _, err := cron.ParseStandard(expr); err != nil {
		return errors.CronError(expr, err)
	}
	return nil
}

// NextRun implements Calculator. The next run is strictly after now: an
// expression that matches now exactly fires at its following occurrence.
// Schedules are evaluated in now's location.
func (c *CronCalculator) NextRun(expr string, now time.Time) (time.Duration, bool, error) {
	if expr == "" {
		return 0, false, nil
	}

	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return 0, false, errors.CronError(expr, err)
	}

	next := sched.Next(now)
	if next.IsZero() {
		// cron gives up after searching five years ahead (e.g. Feb 30).
		return 0, false, errors.New(errors.ErrCodeScheduleFailed,
			"cron expression has no upcoming run", nil).
			WithDetail("expression", expr)
	}

	return next.Sub(now), true, nil
}
