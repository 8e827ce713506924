package suggest

import (
	"fmt"
	"time"
)

// State is the lifecycle state of a Service.
type State int

const (
	// Uninitialized: no engine. Disabled services stay here.
	Uninitialized State = iota
	// Initializing: a build is in flight; lookups return nothing.
	Initializing
	// Ready: the engine serves lookups.
	Ready
	// Closed is terminal.
	Closed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// MarshalText lets State print as its name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name written by MarshalText.
func (s *State) UnmarshalText(text []byte) error {
	for st := Uninitialized; st <= Closed; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown suggester state %q", text)
}

// Status is a point-in-time snapshot for status endpoints.
type Status struct {
	State            State         `json:"state"`
	Enabled          bool          `json:"enabled"`
	ProjectsEnabled  bool          `json:"projects_enabled"`
	Projects         int           `json:"projects"`
	RebuildCron      string        `json:"rebuild_cron,omitempty"`
	NextRebuild      *time.Time    `json:"next_rebuild,omitempty"`
	ScheduleDisabled bool          `json:"schedule_disabled,omitempty"`
	LastBuild        *time.Time    `json:"last_build,omitempty"`
	LastBuildTime    time.Duration `json:"last_build_ns,omitempty"`
}
