// Package api serves the suggester over HTTP and shapes the replies every
// surface (HTTP, daemon socket, MCP) returns.
package api

import (
	"strings"
	"time"

	"github.com/Aman-CERP/amansuggest/internal/config"
	"github.com/Aman-CERP/amansuggest/internal/suggest"
)

// Suggestion is one entry of a Reply. Optional parts are dropped according
// to the suggester's show_* settings.
type Suggestion struct {
	Phrase   string   `json:"phrase"`
	Projects []string `json:"projects,omitempty"`
	Score    *float64 `json:"score,omitempty"`
}

// Reply answers a suggestion request.
type Reply struct {
	Suggestions []Suggestion `json:"suggestions"`
	QueryText   string       `json:"query_text,omitempty"`
	// TimeMillis is set only when show_time is enabled.
	TimeMillis *int64 `json:"time_ms,omitempty"`
}

// NewReply shapes engine results for callers.
func NewReply(sc *config.SuggesterConfig, results []suggest.LookupResult, queryText string, took time.Duration) Reply {
	r := Reply{
		Suggestions: make([]Suggestion, 0, len(results)),
		QueryText:   queryText,
	}
	for _, res := range results {
		s := Suggestion{Phrase: res.Phrase}
		if sc.ShowProjects {
			s.Projects = res.Projects
		}
		if sc.ShowScores {
			score := res.Score
			s.Score = &score
		}
		r.Suggestions = append(r.Suggestions, s)
	}
	if sc.ShowTime {
		ms := took.Milliseconds()
		r.TimeMillis = &ms
	}
	return r
}

// ParseQueryText splits the rest of a search into field:value terms and
// free text.
func ParseQueryText(q string) suggest.TextQuery {
	var (
		text  suggest.TextQuery
		words []string
	)
	for _, tok := range strings.Fields(q) {
		field, value, ok := strings.Cut(tok, ":")
		if ok && field != "" && value != "" {
			text.Terms = append(text.Terms, suggest.Term{Field: field, Text: value})
			continue
		}
		words = append(words, tok)
	}
	text.Text = strings.Join(words, " ")
	return text
}

// ConfigView is the public part of the suggester configuration, as the web
// UI needs it to decide when to ask for suggestions.
type ConfigView struct {
	Enabled             bool     `json:"enabled"`
	MaxResults          int      `json:"max_results"`
	MinChars            int      `json:"min_chars"`
	AllowedProjects     []string `json:"allowed_projects,omitempty"`
	MaxProjects         int      `json:"max_projects"`
	AllowedFields       []string `json:"allowed_fields,omitempty"`
	AllowComplexQueries bool     `json:"allow_complex_queries"`
	AllowMostPopular    bool     `json:"allow_most_popular"`
	ShowScores          bool     `json:"show_scores"`
	ShowProjects        bool     `json:"show_projects"`
	ShowTime            bool     `json:"show_time"`
	RebuildCron         string   `json:"rebuild_cron,omitempty"`
}

// NewConfigView copies the exposed settings.
func NewConfigView(sc *config.SuggesterConfig) ConfigView {
	return ConfigView{
		Enabled:             sc.Enabled,
		MaxResults:          sc.MaxResults,
		MinChars:            sc.MinChars,
		AllowedProjects:     sc.AllowedProjects,
		MaxProjects:         sc.MaxProjects,
		AllowedFields:       sc.AllowedFields,
		AllowComplexQueries: sc.AllowComplexQueries,
		AllowMostPopular:    sc.AllowMostPopular,
		ShowScores:          sc.ShowScores,
		ShowProjects:        sc.ShowProjects,
		ShowTime:            sc.ShowTime,
		RebuildCron:         sc.Cron(),
	}
}
