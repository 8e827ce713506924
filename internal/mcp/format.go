package mcp

import (
	"fmt"
	"strings"

	"github.com/Aman-CERP/amansuggest/internal/api"
	"github.com/Aman-CERP/amansuggest/internal/daemon"
)

// FormatSuggestions renders completions as markdown.
func FormatSuggestions(prefix string, suggestions []api.Suggestion) string {
	if len(suggestions) == 0 {
		return fmt.Sprintf("No suggestions for \"%s\"", prefix)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Suggestions for \"%s\"\n\n", prefix)
	for i, s := range suggestions {
		fmt.Fprintf(&sb, "%d. `%s`", i+1, s.Phrase)
		if s.Score != nil {
			fmt.Fprintf(&sb, " (score %.0f)", *s.Score)
		}
		if len(s.Projects) > 0 {
			fmt.Fprintf(&sb, " in %s", strings.Join(s.Projects, ", "))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// FormatStatus renders the daemon status as markdown.
func FormatStatus(st *daemon.StatusResult) string {
	var sb strings.Builder
	sb.WriteString("## Suggester Status\n\n")
	fmt.Fprintf(&sb, "- State: %s\n", st.Suggester.State)
	fmt.Fprintf(&sb, "- Enabled: %t\n", st.Suggester.Enabled)
	fmt.Fprintf(&sb, "- Projects: %d\n", st.Suggester.Projects)

	if st.Suggester.RebuildCron != "" {
		fmt.Fprintf(&sb, "- Rebuild schedule: `%s`", st.Suggester.RebuildCron)
		if st.Suggester.NextRebuild != nil {
			fmt.Fprintf(&sb, " (next %s)", st.Suggester.NextRebuild.Format("2006-01-02 15:04 MST"))
		}
		sb.WriteString("\n")
	} else {
		sb.WriteString("- Rebuild schedule: off\n")
	}
	if st.Suggester.ScheduleDisabled {
		sb.WriteString("- Automatic rebuild disabled after a scheduling failure\n")
	}
	if st.Suggester.LastBuild != nil {
		fmt.Fprintf(&sb, "- Last build: %s (%s)\n",
			st.Suggester.LastBuild.Format("2006-01-02 15:04 MST"), st.Suggester.LastBuildTime)
	}
	if st.Uptime != "" {
		fmt.Fprintf(&sb, "- Daemon uptime: %s\n", st.Uptime)
	}
	return sb.String()
}
