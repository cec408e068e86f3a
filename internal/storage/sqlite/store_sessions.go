package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/louisbranch/bookclub/internal/storage"
)

const sessionColumns = "id, club_id, book_id, started_at, ends_at, active, last_fetched_at"

// GetSession loads one cached session by id.
func (s *Store) GetSession(ctx context.Context, id string) (storage.SessionRow, bool, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT "+sessionColumns+" FROM sessions WHERE id = ?", id)

	session, err := scanSession(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return storage.SessionRow{}, false, nil
		}
		return storage.SessionRow{}, false, fmt.Errorf("get session: %w", err)
	}
	return session, true, nil
}

// ListSessionsForClub returns the cached sessions of one club, newest first.
func (s *Store) ListSessionsForClub(ctx context.Context, clubID string) ([]storage.SessionRow, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		"SELECT "+sessionColumns+" FROM sessions WHERE club_id = ? ORDER BY started_at DESC, id", clubID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []storage.SessionRow{}
	for rows.Next() {
		session, err := scanSession(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// UpsertSession writes one session row, replacing any prior row with its id.
func (s *Store) UpsertSession(ctx context.Context, row storage.SessionRow) error {
	return upsertSession(ctx, s.sqlDB, row)
}

// ReplaceClubSessions swaps the cached sessions of a club in one transaction.
func (s *Store) ReplaceClubSessions(ctx context.Context, clubID string, rows []storage.SessionRow) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM sessions WHERE club_id = ?", clubID); err != nil {
			return fmt.Errorf("clear club sessions: %w", err)
		}
		for _, row := range rows {
			if row.Session.ClubID != clubID {
				return fmt.Errorf("session %s belongs to club %s, not %s", row.Session.ID, row.Session.ClubID, clubID)
			}
			if err := upsertSession(ctx, tx, row); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteSession removes one cached session.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	if _, err := s.sqlDB.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteAllSessions clears the session cache.
func (s *Store) DeleteAllSessions(ctx context.Context) error {
	if _, err := s.sqlDB.ExecContext(ctx, "DELETE FROM sessions"); err != nil {
		return fmt.Errorf("delete all sessions: %w", err)
	}
	return nil
}

func upsertSession(ctx context.Context, exec execContexter, row storage.SessionRow) error {
	if err := requireFetchedAt("session", row.LastFetchedAt); err != nil {
		return err
	}
	active := 0
	if row.Session.Active {
		active = 1
	}
	_, err := exec.ExecContext(ctx, `
INSERT INTO sessions (id, club_id, book_id, started_at, ends_at, active, last_fetched_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    club_id = excluded.club_id,
    book_id = excluded.book_id,
    started_at = excluded.started_at,
    ends_at = excluded.ends_at,
    active = excluded.active,
    last_fetched_at = excluded.last_fetched_at
`,
		row.Session.ID,
		row.Session.ClubID,
		nullString(row.Session.BookID),
		toMillis(row.Session.StartedAt),
		toMillis(row.Session.EndsAt),
		active,
		toMillis(row.LastFetchedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert session %s: %w", row.Session.ID, err)
	}
	return nil
}

func scanSession(scan func(dest ...any) error) (storage.SessionRow, error) {
	var row storage.SessionRow
	var bookID sql.NullString
	var startedAt, endsAt, lastFetchedAt int64
	var active int
	if err := scan(
		&row.Session.ID,
		&row.Session.ClubID,
		&bookID,
		&startedAt,
		&endsAt,
		&active,
		&lastFetchedAt,
	); err != nil {
		return storage.SessionRow{}, err
	}
	row.Session.BookID = stringPtr(bookID)
	row.Session.StartedAt = fromMillis(startedAt)
	row.Session.EndsAt = fromMillis(endsAt)
	row.Session.Active = active != 0
	row.LastFetchedAt = fromMillis(lastFetchedAt)
	return row, nil
}
