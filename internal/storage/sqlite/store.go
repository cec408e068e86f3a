package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/louisbranch/bookclub/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/bookclub/internal/storage"
	"github.com/louisbranch/bookclub/internal/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store implements storage.Store over a single SQLite file.
type Store struct {
	sqlDB             *sql.DB
	migrationsApplied int
}

var _ storage.Store = (*Store)(nil)

// Open opens the cache database and applies bundled migrations. Opening and
// schema evolution stay in one place: the store is not usable until every
// pending migration has committed, and a migration failure aborts Open with
// the on-disk schema left at its prior version.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	applied, err := sqlitemigrate.Apply(context.Background(), sqlDB, migrations.FS)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{sqlDB: sqlDB, migrationsApplied: applied}, nil
}

// MigrationsApplied reports how many migrations Open ran; zero means the
// schema was already current.
func (s *Store) MigrationsApplied() int {
	return s.migrationsApplied
}

// Close releases the underlying SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Stats counts cached rows per kind.
func (s *Store) Stats(ctx context.Context) (storage.Stats, error) {
	var stats storage.Stats
	counts := []struct {
		table string
		dst   *int
	}{
		{"servers", &stats.Servers},
		{"clubs", &stats.Clubs},
		{"members", &stats.Members},
		{"club_members", &stats.Memberships},
		{"sessions", &stats.Sessions},
		{"books", &stats.Books},
		{"discussions", &stats.Discussions},
	}
	for _, count := range counts {
		row := s.sqlDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+count.table)
		if err := row.Scan(count.dst); err != nil {
			return storage.Stats{}, fmt.Errorf("count %s: %w", count.table, err)
		}
	}
	return stats, nil
}

// execContexter is satisfied by *sql.DB and *sql.Tx so single-row writes can
// run standalone or inside a replace transaction.
type execContexter interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// withTx runs fn inside one transaction, rolling back on error or panic.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if commitErr := tx.Commit(); commitErr != nil {
			err = fmt.Errorf("commit transaction: %w", commitErr)
		}
	}()

	err = fn(tx)
	return
}

// toMillis normalizes timestamps into millisecond precision for storage.
func toMillis(value time.Time) int64 {
	if value.IsZero() {
		return 0
	}
	return value.UTC().UnixMilli()
}

// fromMillis restores millisecond precision and keeps UTC normalization.
func fromMillis(value int64) time.Time {
	if value == 0 {
		return time.Time{}
	}
	return time.UnixMilli(value).UTC()
}

func nullString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func stringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	v := value.String
	return &v
}

// requireFetchedAt guards the invariant that persisted rows always carry a
// fetch timestamp.
func requireFetchedAt(kind string, fetchedAt time.Time) error {
	if fetchedAt.IsZero() {
		return fmt.Errorf("%s row requires a last fetched timestamp", kind)
	}
	return nil
}
