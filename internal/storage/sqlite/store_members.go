package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/louisbranch/bookclub/internal/domain"
	"github.com/louisbranch/bookclub/internal/storage"
)

const memberColumns = "id, user_id, name, handle, avatar_path, books_read, created_at, last_fetched_at"

// GetMember loads one cached member by id.
func (s *Store) GetMember(ctx context.Context, id string) (storage.MemberRow, bool, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT "+memberColumns+" FROM members WHERE id = ?", id)

	member, err := scanMember(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return storage.MemberRow{}, false, nil
		}
		return storage.MemberRow{}, false, fmt.Errorf("get member: %w", err)
	}
	return member, true, nil
}

// UpsertMember writes one member row, replacing any prior row with its id.
func (s *Store) UpsertMember(ctx context.Context, row storage.MemberRow) error {
	return upsertMember(ctx, s.sqlDB, row)
}

// UpsertMembers writes a batch of member rows atomically.
func (s *Store) UpsertMembers(ctx context.Context, rows []storage.MemberRow) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, row := range rows {
			if err := upsertMember(ctx, tx, row); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteMember removes one cached member; join rows cascade away with it.
func (s *Store) DeleteMember(ctx context.Context, id string) error {
	if _, err := s.sqlDB.ExecContext(ctx, "DELETE FROM members WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete member: %w", err)
	}
	return nil
}

// DeleteAllMembers clears the member cache and every membership via cascade.
func (s *Store) DeleteAllMembers(ctx context.Context) error {
	if _, err := s.sqlDB.ExecContext(ctx, "DELETE FROM members"); err != nil {
		return fmt.Errorf("delete all members: %w", err)
	}
	return nil
}

// ListClubMemberships returns the cached roster of one club with per-club
// roles from the join rows.
func (s *Store) ListClubMemberships(ctx context.Context, clubID string) ([]storage.MembershipRow, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT m.id, m.user_id, m.name, m.handle, m.avatar_path, m.books_read, m.created_at, m.last_fetched_at, cm.role
FROM club_members cm
JOIN members m ON m.id = cm.member_id
WHERE cm.club_id = ?
ORDER BY m.handle, m.id
`, clubID)
	if err != nil {
		return nil, fmt.Errorf("list club memberships: %w", err)
	}
	defer rows.Close()

	memberships := []storage.MembershipRow{}
	for rows.Next() {
		var membership storage.MembershipRow
		var userID sql.NullString
		var createdAt, lastFetchedAt int64
		var role string
		if err := rows.Scan(
			&membership.Member.Member.ID,
			&userID,
			&membership.Member.Member.Name,
			&membership.Member.Member.Handle,
			&membership.Member.Member.AvatarPath,
			&membership.Member.Member.BooksRead,
			&createdAt,
			&lastFetchedAt,
			&role,
		); err != nil {
			return nil, fmt.Errorf("scan club membership: %w", err)
		}
		parsed, ok := domain.ParseClubRole(role)
		if !ok {
			return nil, fmt.Errorf("club %s member %s has invalid role %q", clubID, membership.Member.Member.ID, role)
		}
		membership.Member.Member.UserID = stringPtr(userID)
		membership.Member.Member.CreatedAt = fromMillis(createdAt)
		membership.Member.LastFetchedAt = fromMillis(lastFetchedAt)
		membership.Role = parsed
		memberships = append(memberships, membership)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate club memberships: %w", err)
	}
	return memberships, nil
}

// UpsertClubMember writes one join row, updating the role on conflict.
func (s *Store) UpsertClubMember(ctx context.Context, clubID, memberID string, role domain.ClubRole) error {
	return upsertClubMember(ctx, s.sqlDB, clubID, memberID, role)
}

// ReplaceClubMemberships swaps the entire cached roster of a club in one
// transaction: member rows are upserted first so the join rows they back
// never dangle.
func (s *Store) ReplaceClubMemberships(ctx context.Context, clubID string, rows []storage.MembershipRow) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, membership := range rows {
			if err := upsertMember(ctx, tx, membership.Member); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM club_members WHERE club_id = ?", clubID); err != nil {
			return fmt.Errorf("clear club memberships: %w", err)
		}
		for _, membership := range rows {
			if err := upsertClubMember(ctx, tx, clubID, membership.Member.Member.ID, membership.Role); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteClubMember removes one join row without touching the member itself.
func (s *Store) DeleteClubMember(ctx context.Context, clubID, memberID string) error {
	if _, err := s.sqlDB.ExecContext(ctx,
		"DELETE FROM club_members WHERE club_id = ? AND member_id = ?", clubID, memberID); err != nil {
		return fmt.Errorf("delete club member: %w", err)
	}
	return nil
}

// DeleteAllClubMembers clears every join row.
func (s *Store) DeleteAllClubMembers(ctx context.Context) error {
	if _, err := s.sqlDB.ExecContext(ctx, "DELETE FROM club_members"); err != nil {
		return fmt.Errorf("delete all club members: %w", err)
	}
	return nil
}

func upsertMember(ctx context.Context, exec execContexter, row storage.MemberRow) error {
	if err := requireFetchedAt("member", row.LastFetchedAt); err != nil {
		return err
	}
	_, err := exec.ExecContext(ctx, `
INSERT INTO members (id, user_id, name, handle, avatar_path, books_read, created_at, last_fetched_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    user_id = excluded.user_id,
    name = excluded.name,
    handle = excluded.handle,
    avatar_path = excluded.avatar_path,
    books_read = excluded.books_read,
    created_at = excluded.created_at,
    last_fetched_at = excluded.last_fetched_at
`,
		row.Member.ID,
		nullString(row.Member.UserID),
		row.Member.Name,
		row.Member.Handle,
		row.Member.AvatarPath,
		row.Member.BooksRead,
		toMillis(row.Member.CreatedAt),
		toMillis(row.LastFetchedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert member %s: %w", row.Member.ID, err)
	}
	return nil
}

func upsertClubMember(ctx context.Context, exec execContexter, clubID, memberID string, role domain.ClubRole) error {
	if _, ok := domain.ParseClubRole(string(role)); !ok {
		return fmt.Errorf("invalid club role %q", role)
	}
	_, err := exec.ExecContext(ctx, `
INSERT INTO club_members (club_id, member_id, role)
VALUES (?, ?, ?)
ON CONFLICT(club_id, member_id) DO UPDATE SET role = excluded.role
`, clubID, memberID, string(role))
	if err != nil {
		return fmt.Errorf("upsert club member %s/%s: %w", clubID, memberID, err)
	}
	return nil
}

func scanMember(scan func(dest ...any) error) (storage.MemberRow, error) {
	var row storage.MemberRow
	var userID sql.NullString
	var createdAt, lastFetchedAt int64
	if err := scan(
		&row.Member.ID,
		&userID,
		&row.Member.Name,
		&row.Member.Handle,
		&row.Member.AvatarPath,
		&row.Member.BooksRead,
		&createdAt,
		&lastFetchedAt,
	); err != nil {
		return storage.MemberRow{}, err
	}
	row.Member.UserID = stringPtr(userID)
	row.Member.CreatedAt = fromMillis(createdAt)
	row.LastFetchedAt = fromMillis(lastFetchedAt)
	return row, nil
}
