package store

import "fmt"

// migrate creates all tables and indexes if they don't exist.
// All statements are idempotent; there is no separate version table yet.
func (s *SQLiteStore) migrate() error {
	statements := []string{
		// Normalized notification events
		`CREATE TABLE IF NOT EXISTS events (
			id           TEXT PRIMARY KEY,
			source_id    TEXT NOT NULL,
			source_label TEXT NOT NULL,
			title        TEXT NOT NULL DEFAULT '',
			body         TEXT NOT NULL DEFAULT '',
			arrived_at   DATETIME NOT NULL,
			persistent   INTEGER NOT NULL DEFAULT 0,
			processed    INTEGER NOT NULL DEFAULT 0
		)`,

		// Per-source recency scans drive dedup and batch gathering
		`CREATE INDEX IF NOT EXISTS idx_events_source_arrived
			ON events(source_id, arrived_at DESC)`,

		// The low-frequency sweep scans by processed flag
		`CREATE INDEX IF NOT EXISTS idx_events_processed
			ON events(processed, arrived_at)`,

		// Generated summaries
		`CREATE TABLE IF NOT EXISTS summaries (
			id           TEXT PRIMARY KEY,
			source_id    TEXT NOT NULL,
			source_label TEXT NOT NULL,
			title        TEXT NOT NULL,
			body         TEXT NOT NULL,
			importance   INTEGER NOT NULL,
			created_at   DATETIME NOT NULL,
			CHECK (importance BETWEEN 1 AND 5)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_summaries_created
			ON summaries(created_at DESC)`,

		`CREATE INDEX IF NOT EXISTS idx_summaries_importance
			ON summaries(importance DESC, created_at DESC)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	return nil
}
