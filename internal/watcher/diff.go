package watcher

import (
	"reflect"
	"slices"

	"github.com/Aman-CERP/amansuggest/internal/config"
)

// Changes is what a reload must do to bring the suggester in line with a
// new configuration.
type Changes struct {
	// Global is set when settings shared by every project changed, which
	// needs a full rebuild.
	Global bool
	// Refresh lists projects that were added or changed.
	Refresh []string
	// Remove lists projects that disappeared.
	Remove []string
	// Server is set when the server section changed; it only takes effect
	// after a restart.
	Server bool
}

// Empty reports whether nothing relevant changed.
func (c Changes) Empty() bool {
	return !c.Global && !c.Server && len(c.Refresh) == 0 && len(c.Remove) == 0
}

// Diff compares two configurations.
func Diff(old, cur *config.Config) Changes {
	var ch Changes
	if old.DataRoot != cur.DataRoot ||
		old.ProjectsEnabled != cur.ProjectsEnabled ||
		!reflect.DeepEqual(old.Suggester, cur.Suggester) {
		ch.Global = true
	}
	ch.Server = old.Server != cur.Server

	for name, p := range cur.Projects {
		prev, ok := old.Projects[name]
		if !ok || !reflect.DeepEqual(prev, p) {
			ch.Refresh = append(ch.Refresh, name)
		}
	}
	for name := range old.Projects {
		if _, ok := cur.Projects[name]; !ok {
			ch.Remove = append(ch.Remove, name)
		}
	}
	slices.Sort(ch.Refresh)
	slices.Sort(ch.Remove)
	return ch
}

