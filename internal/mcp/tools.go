package mcp

import (
	"time"

	"github.com/Aman-CERP/amansuggest/internal/api"
	"github.com/Aman-CERP/amansuggest/internal/daemon"
)

// SuggestInput defines the input schema for the suggest tool.
type SuggestInput struct {
	Prefix   string   `json:"prefix" jsonschema:"the partial term to complete"`
	Field    string   `json:"field,omitempty" jsonschema:"index field to complete in: content (default) or path"`
	Projects []string `json:"projects,omitempty" jsonschema:"projects to search, default all"`
	Query    string   `json:"query,omitempty" jsonschema:"rest of the search, e.g. 'path:src handler', to rank terms that co-occur with it"`
}

// SuggestOutput defines the output schema for the suggest tool.
type SuggestOutput struct {
	Suggestions []api.Suggestion `json:"suggestions" jsonschema:"completions, best first"`
}

// StatusInput defines the input schema for the suggester_status tool (no parameters).
type StatusInput struct{}

// StatusOutput defines the output schema for the suggester_status tool.
type StatusOutput struct {
	State            string `json:"state" jsonschema:"uninitialized, initializing, ready or closed"`
	Enabled          bool   `json:"enabled"`
	Projects         int    `json:"projects" jsonschema:"number of indexed projects"`
	RebuildCron      string `json:"rebuild_cron,omitempty" jsonschema:"automatic rebuild schedule, empty when off"`
	NextRebuild      string `json:"next_rebuild,omitempty" jsonschema:"RFC3339 time of the next automatic rebuild"`
	ScheduleDisabled bool   `json:"schedule_disabled,omitempty"`
	LastBuild        string `json:"last_build,omitempty" jsonschema:"RFC3339 time the last build finished"`
	Uptime           string `json:"uptime,omitempty"`
}

func newStatusOutput(st *daemon.StatusResult) StatusOutput {
	out := StatusOutput{
		State:            st.Suggester.State.String(),
		Enabled:          st.Suggester.Enabled,
		Projects:         st.Suggester.Projects,
		RebuildCron:      st.Suggester.RebuildCron,
		ScheduleDisabled: st.Suggester.ScheduleDisabled,
		Uptime:           st.Uptime,
	}
	if st.Suggester.NextRebuild != nil {
		out.NextRebuild = st.Suggester.NextRebuild.Format(time.RFC3339)
	}
	if st.Suggester.LastBuild != nil {
		out.LastBuild = st.Suggester.LastBuild.Format(time.RFC3339)
	}
	return out
}
