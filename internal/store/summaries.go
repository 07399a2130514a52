package store

import (
	"context"
	"fmt"
	"time"
)

// InsertSummary inserts a new summary. Importance must already be
// clamped to [1,5] by the gateway; the schema CHECK enforces it again.
func (s *SQLiteStore) InsertSummary(ctx context.Context, sum *Summary) error {
	if sum.ID == "" {
		return fmt.Errorf("summary id cannot be empty")
	}
	if sum.Importance < 1 || sum.Importance > 5 {
		return fmt.Errorf("summary importance %d out of range [1,5]", sum.Importance)
	}
	if sum.CreatedAt.IsZero() {
		sum.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO summaries (id, source_id, source_label, title, body, importance, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sum.ID, sum.SourceID, sum.SourceLabel, sum.Title, sum.Body, sum.Importance, sum.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting summary: %w", err)
	}
	return nil
}

// RecentSummaries returns the newest summaries across all sources.
func (s *SQLiteStore) RecentSummaries(ctx context.Context, limit int) ([]*Summary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_id, source_label, title, body, importance, created_at
		 FROM summaries
		 ORDER BY created_at DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying recent summaries: %w", err)
	}
	defer rows.Close()
	return scanSummaries(rows)
}

// SummariesBySource returns the newest summaries for one source.
func (s *SQLiteStore) SummariesBySource(ctx context.Context, sourceID string, limit int) ([]*Summary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_id, source_label, title, body, importance, created_at
		 FROM summaries
		 WHERE source_id = ?
		 ORDER BY created_at DESC
		 LIMIT ?`,
		sourceID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying summaries by source: %w", err)
	}
	defer rows.Close()
	return scanSummaries(rows)
}

// HighImportanceSummaries returns summaries at or above minImportance,
// most important and newest first. Used for the priority display surface.
func (s *SQLiteStore) HighImportanceSummaries(ctx context.Context, minImportance, limit int) ([]*Summary, error) {
	if minImportance <= 0 {
		minImportance = 4
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_id, source_label, title, body, importance, created_at
		 FROM summaries
		 WHERE importance >= ?
		 ORDER BY importance DESC, created_at DESC
		 LIMIT ?`,
		minImportance, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying high importance summaries: %w", err)
	}
	defer rows.Close()
	return scanSummaries(rows)
}

// CountSummaries returns the total number of stored summaries.
func (s *SQLiteStore) CountSummaries(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM summaries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting summaries: %w", err)
	}
	return n, nil
}

func scanSummaries(rows rowScanner) ([]*Summary, error) {
	var summaries []*Summary
	for rows.Next() {
		sum := &Summary{}
		if err := rows.Scan(&sum.ID, &sum.SourceID, &sum.SourceLabel, &sum.Title,
			&sum.Body, &sum.Importance, &sum.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning summary: %w", err)
		}
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}
