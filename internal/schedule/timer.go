package schedule

import "time"

// Job is a pending one-shot run.
type Job interface {
	// Stop cancels the run. It returns false if the run already fired or
	// was already stopped; a run in progress is not interrupted.
	Stop() bool
}

// Scheduler arms one-shot jobs.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Job
}

// TimerScheduler arms jobs on the runtime timer heap.
type TimerScheduler struct{}

// AfterFunc implements Scheduler.
func (TimerScheduler) AfterFunc(d time.Duration, fn func()) Job {
	return time.AfterFunc(d, fn)
}
