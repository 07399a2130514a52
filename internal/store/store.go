// Package store provides the SQLite storage layer for notisum.
//
// All pipeline data lives in a single SQLite database file:
// - Normalized, sanitized notification events with a processed flag
// - Generated summaries with importance levels
// Both tables are subject to the same retention sweep.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// DefaultDBPath is the default database location.
const DefaultDBPath = "~/.notisum/notisum.db"

// DefaultRetention is how long events and summaries are kept before purge.
const DefaultRetention = 7 * 24 * time.Hour

// Event is one normalized, sanitized notification attributed to a source.
// Immutable after insert except for the processed flag, which flips to
// true once the event has contributed to a summary.
type Event struct {
	ID          string
	SourceID    string
	SourceLabel string
	Title       string
	Body        string
	ArrivedAt   time.Time
	Persistent  bool
	Processed   bool
}

// Summary is the condensed output produced for a batch of events.
// Importance is always in [1,5]. Immutable after insert.
type Summary struct {
	ID          string
	SourceID    string
	SourceLabel string
	Title       string
	Body        string
	Importance  int
	CreatedAt   time.Time
}

// Stats holds observability counts about the store.
type Stats struct {
	EventCount       int64
	SummaryCount     int64
	UnprocessedCount int64
	DBSizeBytes      int64
}

// Config holds configuration for NewStore.
type Config struct {
	DBPath string
}

// Store defines the persistence interface the pipeline depends on.
type Store interface {
	// Events
	InsertEvent(ctx context.Context, e *Event) error
	HasEvent(ctx context.Context, id string) (bool, error)
	FindRecentDuplicate(ctx context.Context, sourceID, title, body string, since time.Time) (bool, error)
	EventsBySource(ctx context.Context, sourceID string, since time.Time, limit int) ([]*Event, error)
	RecentEvents(ctx context.Context, limit int) ([]*Event, error)
	Unprocessed(ctx context.Context, limit int) ([]*Event, error)
	MarkProcessed(ctx context.Context, ids []string) error
	CountEvents(ctx context.Context) (int64, error)

	// Summaries
	InsertSummary(ctx context.Context, s *Summary) error
	RecentSummaries(ctx context.Context, limit int) ([]*Summary, error)
	SummariesBySource(ctx context.Context, sourceID string, limit int) ([]*Summary, error)
	HighImportanceSummaries(ctx context.Context, minImportance, limit int) ([]*Summary, error)
	CountSummaries(ctx context.Context) (int64, error)

	// Maintenance
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (events, summaries int64, err error)
	Stats(ctx context.Context) (*Stats, error)
	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewStore creates a new SQLite-backed Store.
// Pass ":memory:" for in-memory databases (testing).
func NewStore(cfg Config) (Store, error) {
	if cfg.DBPath == "" {
		cfg.DBPath = expandPath(DefaultDBPath)
	}

	// Create parent directory for non-memory databases
	if cfg.DBPath != ":memory:" {
		dir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Verify connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Enable WAL mode and foreign keys
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{
		db:     db,
		dbPath: cfg.DBPath,
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// GetDB exposes the raw database handle for callers that need direct queries.
func (s *SQLiteStore) GetDB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Stats returns current database statistics.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	queries := []struct {
		query string
		dest  *int64
	}{
		{"SELECT COUNT(*) FROM events", &stats.EventCount},
		{"SELECT COUNT(*) FROM summaries", &stats.SummaryCount},
		{"SELECT COUNT(*) FROM events WHERE processed = 0", &stats.UnprocessedCount},
	}

	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("querying stats (%s): %w", q.query, err)
		}
	}

	// DB size (only meaningful for file-based DBs)
	if s.dbPath != ":memory:" {
		var pageCount, pageSize int64
		s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount)
		s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		stats.DBSizeBytes = pageCount * pageSize
	}

	return stats, nil
}

// expandPath expands ~ to home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
