package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/louisbranch/bookclub/internal/storage"
)

const serverColumns = "id, name, icon_url, member_count, last_fetched_at"

// GetServer loads one cached server by id.
func (s *Store) GetServer(ctx context.Context, id string) (storage.ServerRow, bool, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT "+serverColumns+" FROM servers WHERE id = ?", id)

	server, err := scanServer(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return storage.ServerRow{}, false, nil
		}
		return storage.ServerRow{}, false, fmt.Errorf("get server: %w", err)
	}
	return server, true, nil
}

// ListServers returns every cached server.
func (s *Store) ListServers(ctx context.Context) ([]storage.ServerRow, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		"SELECT "+serverColumns+" FROM servers ORDER BY name, id")
	if err != nil {
		return nil, fmt.Errorf("list servers: %w", err)
	}
	defer rows.Close()

	servers := []storage.ServerRow{}
	for rows.Next() {
		server, err := scanServer(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan server: %w", err)
		}
		servers = append(servers, server)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate servers: %w", err)
	}
	return servers, nil
}

// UpsertServer writes one server row, replacing any prior row with its id.
func (s *Store) UpsertServer(ctx context.Context, row storage.ServerRow) error {
	return upsertServer(ctx, s.sqlDB, row)
}

// UpsertServers writes a batch of server rows atomically.
func (s *Store) UpsertServers(ctx context.Context, rows []storage.ServerRow) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, row := range rows {
			if err := upsertServer(ctx, tx, row); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteServer removes one cached server.
func (s *Store) DeleteServer(ctx context.Context, id string) error {
	if _, err := s.sqlDB.ExecContext(ctx, "DELETE FROM servers WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete server: %w", err)
	}
	return nil
}

// DeleteAllServers clears the server cache.
func (s *Store) DeleteAllServers(ctx context.Context) error {
	if _, err := s.sqlDB.ExecContext(ctx, "DELETE FROM servers"); err != nil {
		return fmt.Errorf("delete all servers: %w", err)
	}
	return nil
}

func upsertServer(ctx context.Context, exec execContexter, row storage.ServerRow) error {
	if err := requireFetchedAt("server", row.LastFetchedAt); err != nil {
		return err
	}
	_, err := exec.ExecContext(ctx, `
INSERT INTO servers (id, name, icon_url, member_count, last_fetched_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    name = excluded.name,
    icon_url = excluded.icon_url,
    member_count = excluded.member_count,
    last_fetched_at = excluded.last_fetched_at
`,
		row.Server.ID,
		row.Server.Name,
		row.Server.IconURL,
		row.Server.MemberCount,
		toMillis(row.LastFetchedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert server %s: %w", row.Server.ID, err)
	}
	return nil
}

func scanServer(scan func(dest ...any) error) (storage.ServerRow, error) {
	var row storage.ServerRow
	var lastFetchedAt int64
	if err := scan(
		&row.Server.ID,
		&row.Server.Name,
		&row.Server.IconURL,
		&row.Server.MemberCount,
		&lastFetchedAt,
	); err != nil {
		return storage.ServerRow{}, err
	}
	row.LastFetchedAt = fromMillis(lastFetchedAt)
	return row, nil
}
