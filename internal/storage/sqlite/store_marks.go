package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// FetchMark returns when the listing keyed by key was last fetched, if ever.
func (s *Store) FetchMark(ctx context.Context, key string) (time.Time, bool, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT last_fetched_at FROM fetch_marks WHERE key = ?", key)

	var fetchedAt int64
	if err := row.Scan(&fetchedAt); err != nil {
		if err == sql.ErrNoRows {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("get fetch mark: %w", err)
	}
	return fromMillis(fetchedAt), true, nil
}

// PutFetchMark records a completed listing fetch.
func (s *Store) PutFetchMark(ctx context.Context, key string, fetchedAt time.Time) error {
	if err := requireFetchedAt("fetch mark", fetchedAt); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO fetch_marks (key, last_fetched_at)
VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET last_fetched_at = excluded.last_fetched_at
`, key, toMillis(fetchedAt))
	if err != nil {
		return fmt.Errorf("put fetch mark %s: %w", key, err)
	}
	return nil
}

// DeleteFetchMark forces the next listing read for key to refetch.
func (s *Store) DeleteFetchMark(ctx context.Context, key string) error {
	if _, err := s.sqlDB.ExecContext(ctx, "DELETE FROM fetch_marks WHERE key = ?", key); err != nil {
		return fmt.Errorf("delete fetch mark: %w", err)
	}
	return nil
}

// DeleteAllFetchMarks clears every listing mark.
func (s *Store) DeleteAllFetchMarks(ctx context.Context) error {
	if _, err := s.sqlDB.ExecContext(ctx, "DELETE FROM fetch_marks"); err != nil {
		return fmt.Errorf("delete all fetch marks: %w", err)
	}
	return nil
}
