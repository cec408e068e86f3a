package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/louisbranch/bookclub/internal/storage"
)

const clubColumns = "id, server_id, name, discord_channel_id, founded_at, last_fetched_at"

// GetClub loads one cached club by id. Relations on the returned club are
// never populated here; child listings have their own store reads.
func (s *Store) GetClub(ctx context.Context, id string) (storage.ClubRow, bool, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT "+clubColumns+" FROM clubs WHERE id = ?", id)

	club, err := scanClub(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return storage.ClubRow{}, false, nil
		}
		return storage.ClubRow{}, false, fmt.Errorf("get club: %w", err)
	}
	return club, true, nil
}

// ListClubs returns every cached club.
func (s *Store) ListClubs(ctx context.Context) ([]storage.ClubRow, error) {
	return s.queryClubs(ctx, "SELECT "+clubColumns+" FROM clubs ORDER BY name, id")
}

// ListClubsForServer returns the cached clubs hosted on one server.
func (s *Store) ListClubsForServer(ctx context.Context, serverID string) ([]storage.ClubRow, error) {
	return s.queryClubs(ctx,
		"SELECT "+clubColumns+" FROM clubs WHERE server_id = ? ORDER BY name, id", serverID)
}

func (s *Store) queryClubs(ctx context.Context, query string, args ...any) ([]storage.ClubRow, error) {
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list clubs: %w", err)
	}
	defer rows.Close()

	clubs := []storage.ClubRow{}
	for rows.Next() {
		club, err := scanClub(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan club: %w", err)
		}
		clubs = append(clubs, club)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate clubs: %w", err)
	}
	return clubs, nil
}

// UpsertClub writes one club row, replacing any prior row with its id.
func (s *Store) UpsertClub(ctx context.Context, row storage.ClubRow) error {
	return upsertClub(ctx, s.sqlDB, row)
}

// UpsertClubs writes a batch of club rows atomically.
func (s *Store) UpsertClubs(ctx context.Context, rows []storage.ClubRow) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, row := range rows {
			if err := upsertClub(ctx, tx, row); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteClub removes one cached club; its join rows cascade away with it.
func (s *Store) DeleteClub(ctx context.Context, id string) error {
	if _, err := s.sqlDB.ExecContext(ctx, "DELETE FROM clubs WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete club: %w", err)
	}
	return nil
}

// DeleteAllClubs clears the club cache and, via cascade, every membership.
func (s *Store) DeleteAllClubs(ctx context.Context) error {
	if _, err := s.sqlDB.ExecContext(ctx, "DELETE FROM clubs"); err != nil {
		return fmt.Errorf("delete all clubs: %w", err)
	}
	return nil
}

func upsertClub(ctx context.Context, exec execContexter, row storage.ClubRow) error {
	if err := requireFetchedAt("club", row.LastFetchedAt); err != nil {
		return err
	}
	_, err := exec.ExecContext(ctx, `
INSERT INTO clubs (id, server_id, name, discord_channel_id, founded_at, last_fetched_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    server_id = excluded.server_id,
    name = excluded.name,
    discord_channel_id = excluded.discord_channel_id,
    founded_at = excluded.founded_at,
    last_fetched_at = excluded.last_fetched_at
`,
		row.Club.ID,
		nullString(row.Club.ServerID),
		row.Club.Name,
		row.Club.DiscordChannelID,
		toMillis(row.Club.FoundedAt),
		toMillis(row.LastFetchedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert club %s: %w", row.Club.ID, err)
	}
	return nil
}

func scanClub(scan func(dest ...any) error) (storage.ClubRow, error) {
	var row storage.ClubRow
	var serverID sql.NullString
	var foundedAt int64
	var lastFetchedAt int64
	if err := scan(
		&row.Club.ID,
		&serverID,
		&row.Club.Name,
		&row.Club.DiscordChannelID,
		&foundedAt,
		&lastFetchedAt,
	); err != nil {
		return storage.ClubRow{}, err
	}
	row.Club.ServerID = stringPtr(serverID)
	row.Club.FoundedAt = fromMillis(foundedAt)
	row.LastFetchedAt = fromMillis(lastFetchedAt)
	return row, nil
}
