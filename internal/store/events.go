package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// InsertEvent inserts a new event. The caller is expected to have run
// dedup checks first; an exact-ID collision is still rejected here by
// the primary key so a race between two deliveries cannot double-insert.
func (s *SQLiteStore) InsertEvent(ctx context.Context, e *Event) error {
	if e.ID == "" {
		return fmt.Errorf("event id cannot be empty")
	}
	if e.Title == "" && e.Body == "" {
		return fmt.Errorf("event %s has no usable text", e.ID)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (id, source_id, source_label, title, body, arrived_at, persistent, processed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.SourceID, e.SourceLabel, e.Title, e.Body, e.ArrivedAt.UTC(), boolToInt(e.Persistent), boolToInt(e.Processed),
	)
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}
	return nil
}

// HasEvent reports whether an event with the given ID already exists.
func (s *SQLiteStore) HasEvent(ctx context.Context, id string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM events WHERE id = ?`, id,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking event existence: %w", err)
	}
	return n > 0, nil
}

// FindRecentDuplicate reports whether the source already has an event
// with identical title and body arrived at or after since. Sources
// re-deliver the same notification on unrelated system triggers; this
// is the near-duplicate half of the dedup guard.
func (s *SQLiteStore) FindRecentDuplicate(ctx context.Context, sourceID, title, body string, since time.Time) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM events
		 WHERE source_id = ? AND title = ? AND body = ? AND arrived_at >= ?`,
		sourceID, title, body, since.UTC(),
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking recent duplicate: %w", err)
	}
	return n > 0, nil
}

// EventsBySource returns events for one source arrived at or after since,
// newest first, capped at limit.
func (s *SQLiteStore) EventsBySource(ctx context.Context, sourceID string, since time.Time, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_id, source_label, title, body, arrived_at, persistent, processed
		 FROM events
		 WHERE source_id = ? AND arrived_at >= ?
		 ORDER BY arrived_at DESC
		 LIMIT ?`,
		sourceID, since.UTC(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying events by source: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// RecentEvents returns the newest events across all sources.
func (s *SQLiteStore) RecentEvents(ctx context.Context, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_id, source_label, title, body, arrived_at, persistent, processed
		 FROM events
		 ORDER BY arrived_at DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying recent events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// Unprocessed returns events that have not yet contributed to a summary,
// newest first. This feeds the low-frequency sweep safety net.
func (s *SQLiteStore) Unprocessed(ctx context.Context, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_id, source_label, title, body, arrived_at, persistent, processed
		 FROM events
		 WHERE processed = 0
		 ORDER BY arrived_at DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying unprocessed events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// MarkProcessed flips the processed flag for the given event IDs.
func (s *SQLiteStore) MarkProcessed(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE events SET processed = 1 WHERE id IN (%s)`, placeholders),
		args...,
	)
	if err != nil {
		return fmt.Errorf("marking events processed: %w", err)
	}
	return nil
}

// CountEvents returns the total number of stored events.
func (s *SQLiteStore) CountEvents(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting events: %w", err)
	}
	return n, nil
}

// PurgeOlderThan deletes events and summaries that arrived before cutoff.
// Returns the number of rows removed from each table.
func (s *SQLiteStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, int64, error) {
	evRes, err := s.db.ExecContext(ctx,
		`DELETE FROM events WHERE arrived_at < ?`, cutoff.UTC(),
	)
	if err != nil {
		return 0, 0, fmt.Errorf("purging events: %w", err)
	}
	evCount, _ := evRes.RowsAffected()

	sumRes, err := s.db.ExecContext(ctx,
		`DELETE FROM summaries WHERE created_at < ?`, cutoff.UTC(),
	)
	if err != nil {
		return evCount, 0, fmt.Errorf("purging summaries: %w", err)
	}
	sumCount, _ := sumRes.RowsAffected()

	return evCount, sumCount, nil
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanEvents(rows rowScanner) ([]*Event, error) {
	var events []*Event
	for rows.Next() {
		e := &Event{}
		var persistent, processed int
		if err := rows.Scan(&e.ID, &e.SourceID, &e.SourceLabel, &e.Title, &e.Body,
			&e.ArrivedAt, &persistent, &processed); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		e.Persistent = persistent != 0
		e.Processed = processed != 0
		events = append(events, e)
	}
	return events, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
