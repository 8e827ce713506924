package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// PopularTerm is a term with its most-popular count.
type PopularTerm struct {
	Term  string
	Count int64
}

// PopularityStore persists how often each (project, field, term) was
// searched or picked. Counts never go below zero.
type PopularityStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	closed bool
}

// OpenPopularityStore opens the SQLite database at path. An empty path
// gives an in-memory store.
func OpenPopularityStore(path string) (*PopularityStore, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: a single writer, and :memory: stays one database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	if path != "" {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	const schema = `
	CREATE TABLE IF NOT EXISTS popularity (
		project TEXT NOT NULL,
		field   TEXT NOT NULL,
		term    TEXT NOT NULL,
		count   INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (project, field, term)
	) WITHOUT ROWID;`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &PopularityStore{db: db}, nil
}

// Increment adds delta (which may be negative) to the term's count and
// returns the new value.
func (p *PopularityStore) Increment(ctx context.Context, project, field, term string, delta int64) (int64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return 0, fmt.Errorf("popularity store is closed")
	}

	var count int64
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO popularity (project, field, term, count) VALUES (?, ?, ?, MAX(?, 0))
		ON CONFLICT (project, field, term) DO UPDATE SET count = MAX(popularity.count + ?, 0)
		RETURNING count`,
		project, field, term, delta, delta).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to increment %s/%s/%s: %w", project, field, term, err)
	}
	return count, nil
}

// Count returns the term's count, zero if unknown.
func (p *PopularityStore) Count(ctx context.Context, project, field, term string) (int64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return 0, fmt.Errorf("popularity store is closed")
	}

	var count int64
	err := p.db.QueryRowContext(ctx,
		`SELECT count FROM popularity WHERE project = ? AND field = ? AND term = ?`,
		project, field, term).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read count: %w", err)
	}
	return count, nil
}

// Top returns up to limit terms starting with prefix, most popular first.
func (p *PopularityStore) Top(ctx context.Context, project, field, prefix string, limit int) ([]PopularTerm, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, fmt.Errorf("popularity store is closed")
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT term, count FROM popularity
		WHERE project = ? AND field = ? AND substr(term, 1, ?) = ? AND count > 0
		ORDER BY count DESC, term ASC
		LIMIT ?`,
		project, field, len([]rune(prefix)), prefix, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query popular terms: %w", err)
	}
	defer rows.Close()

	var out []PopularTerm
	for rows.Next() {
		var pt PopularTerm
		if err := rows.Scan(&pt.Term, &pt.Count); err != nil {
			return nil, fmt.Errorf("failed to scan popular term: %w", err)
		}
		out = append(out, pt)
	}
	return out, rows.Err()
}

// DeleteProject drops every count for project.
func (p *PopularityStore) DeleteProject(ctx context.Context, project string) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return fmt.Errorf("popularity store is closed")
	}

	if _, err := p.db.ExecContext(ctx, `DELETE FROM popularity WHERE project = ?`, project); err != nil {
		return fmt.Errorf("failed to delete project %s: %w", project, err)
	}
	return nil
}

// Close closes the database.
func (p *PopularityStore) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.db.Close()
}
