package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/louisbranch/bookclub/internal/storage"
)

const discussionColumns = "id, session_id, title, date, location, last_fetched_at"

// GetDiscussion loads one cached discussion by id.
func (s *Store) GetDiscussion(ctx context.Context, id string) (storage.DiscussionRow, bool, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT "+discussionColumns+" FROM discussions WHERE id = ?", id)

	discussion, err := scanDiscussion(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return storage.DiscussionRow{}, false, nil
		}
		return storage.DiscussionRow{}, false, fmt.Errorf("get discussion: %w", err)
	}
	return discussion, true, nil
}

// ListDiscussionsForSession returns the cached discussions of one session in
// date order.
func (s *Store) ListDiscussionsForSession(ctx context.Context, sessionID string) ([]storage.DiscussionRow, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		"SELECT "+discussionColumns+" FROM discussions WHERE session_id = ? ORDER BY date, id", sessionID)
	if err != nil {
		return nil, fmt.Errorf("list discussions: %w", err)
	}
	defer rows.Close()

	discussions := []storage.DiscussionRow{}
	for rows.Next() {
		discussion, err := scanDiscussion(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan discussion: %w", err)
		}
		discussions = append(discussions, discussion)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate discussions: %w", err)
	}
	return discussions, nil
}

// UpsertDiscussion writes one discussion row, replacing any prior row with
// its id.
func (s *Store) UpsertDiscussion(ctx context.Context, row storage.DiscussionRow) error {
	return upsertDiscussion(ctx, s.sqlDB, row)
}

// ReplaceSessionDiscussions swaps the cached discussions of a session in one
// transaction.
func (s *Store) ReplaceSessionDiscussions(ctx context.Context, sessionID string, rows []storage.DiscussionRow) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM discussions WHERE session_id = ?", sessionID); err != nil {
			return fmt.Errorf("clear session discussions: %w", err)
		}
		for _, row := range rows {
			if row.Discussion.SessionID == nil || *row.Discussion.SessionID != sessionID {
				return fmt.Errorf("discussion %s does not belong to session %s", row.Discussion.ID, sessionID)
			}
			if err := upsertDiscussion(ctx, tx, row); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteDiscussion removes one cached discussion.
func (s *Store) DeleteDiscussion(ctx context.Context, id string) error {
	if _, err := s.sqlDB.ExecContext(ctx, "DELETE FROM discussions WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete discussion: %w", err)
	}
	return nil
}

// DeleteAllDiscussions clears the discussion cache.
func (s *Store) DeleteAllDiscussions(ctx context.Context) error {
	if _, err := s.sqlDB.ExecContext(ctx, "DELETE FROM discussions"); err != nil {
		return fmt.Errorf("delete all discussions: %w", err)
	}
	return nil
}

func upsertDiscussion(ctx context.Context, exec execContexter, row storage.DiscussionRow) error {
	if err := requireFetchedAt("discussion", row.LastFetchedAt); err != nil {
		return err
	}
	_, err := exec.ExecContext(ctx, `
INSERT INTO discussions (id, session_id, title, date, location, last_fetched_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    session_id = excluded.session_id,
    title = excluded.title,
    date = excluded.date,
    location = excluded.location,
    last_fetched_at = excluded.last_fetched_at
`,
		row.Discussion.ID,
		nullString(row.Discussion.SessionID),
		row.Discussion.Title,
		toMillis(row.Discussion.Date),
		row.Discussion.Location,
		toMillis(row.LastFetchedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert discussion %s: %w", row.Discussion.ID, err)
	}
	return nil
}

func scanDiscussion(scan func(dest ...any) error) (storage.DiscussionRow, error) {
	var row storage.DiscussionRow
	var sessionID sql.NullString
	var date, lastFetchedAt int64
	if err := scan(
		&row.Discussion.ID,
		&sessionID,
		&row.Discussion.Title,
		&date,
		&row.Discussion.Location,
		&lastFetchedAt,
	); err != nil {
		return storage.DiscussionRow{}, err
	}
	row.Discussion.SessionID = stringPtr(sessionID)
	row.Discussion.Date = fromMillis(date)
	row.LastFetchedAt = fromMillis(lastFetchedAt)
	return row, nil
}
