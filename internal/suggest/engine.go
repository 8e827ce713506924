// Package suggest keeps a suggestion engine available to concurrent lookups
// while rebuilding it on demand and on a cron schedule.
//
// Service owns the single engine handle. Lookups and per-project maintenance
// share a read lock; Refresh and Close take the write lock, so a lookup sees
// either the old engine or the fully built new one, never one being closed.
package suggest

import (
	"context"

	index "github.com/blevesearch/bleve_index_api"

	"github.com/Aman-CERP/amansuggest/internal/config"
)

// Query is the partial term being completed.
type Query struct {
	// Field is the index field the prefix belongs to (e.g. "content", "path").
	Field  string `json:"field"`
	Prefix string `json:"prefix"`
}

// Term is a complete field:value pair from a search.
type Term struct {
	Field string `json:"field"`
	Text  string `json:"text"`
}

// TextQuery is the rest of the user's search around the completed term.
type TextQuery struct {
	Text  string `json:"text,omitempty"`
	Terms []Term `json:"terms,omitempty"`
}

// LookupResult is one suggestion.
type LookupResult struct {
	Phrase   string   `json:"phrase"`
	Projects []string `json:"projects,omitempty"`
	Score    float64  `json:"score"`
}

// ProjectIndex names one project's index directory. Name is "" for the
// single root index when projects are disabled.
type ProjectIndex struct {
	Name string
	Dir  string
}

// NamedReader is a borrowed index reader for one project.
type NamedReader struct {
	Project string
	Reader  index.IndexReader
}

// Engine builds and queries the completion data. Implementations synchronize
// internally; Service only guarantees that no method runs while the engine
// is being closed.
type Engine interface {
	Build(ctx context.Context, indexes []ProjectIndex) error
	Rebuild(ctx context.Context, indexes []ProjectIndex) error
	Remove(projects []string) error
	Search(ctx context.Context, readers []NamedReader, q Query, text TextQuery) ([]LookupResult, error)
	OnSearch(projects []string, text TextQuery)
	IncreaseSearchCount(project string, term Term, weight int) error
	Close() error
}

// EngineFactory creates an engine bound to cfg's suggester directory.
type EngineFactory func(cfg *config.Config) (Engine, error)
