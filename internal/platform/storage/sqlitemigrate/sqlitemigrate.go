// Package sqlitemigrate applies embedded, versioned SQL migrations to a
// SQLite database.
//
// Migrations are named NNN_description.sql and form a strict chain: version
// N+1 only ever runs against a version-N schema, never skipping ahead. Each
// file executes inside a single transaction with foreign keys disabled on the
// migration connection, which is what allows the drop-and-rebuild technique
// SQLite requires for column removal without cascading deletes into tables
// that reference the one being rebuilt. A foreign_key_check runs before
// commit so a rebuild can never leave dangling references behind.
package sqlitemigrate

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
	"time"
)

const migrationTable = "schema_migrations"

type migrationFile struct {
	name    string
	version int
}

// Apply executes every pending migration from migrationFS in version order
// and reports how many ran. Already-applied migrations are skipped via the
// schema_migrations ledger, so replaying the same set is a no-op returning
// zero. A failed migration rolls back and leaves both the ledger and the
// schema at the pre-migration version.
func Apply(ctx context.Context, sqlDB *sql.DB, migrationFS fs.FS) (int, error) {
	if sqlDB == nil {
		return 0, fmt.Errorf("sql db is required")
	}

	files, err := listMigrations(migrationFS)
	if err != nil {
		return 0, err
	}

	if _, err := sqlDB.ExecContext(ctx, fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    name TEXT PRIMARY KEY,
    version INTEGER NOT NULL,
    applied_at INTEGER NOT NULL
);
`, migrationTable)); err != nil {
		return 0, fmt.Errorf("ensure migration table: %w", err)
	}

	applied, err := appliedVersions(ctx, sqlDB)
	if err != nil {
		return 0, err
	}

	// Schema changes must not interleave with other writers, and the
	// foreign_keys pragma is connection-scoped, so every pending migration
	// runs on one dedicated connection.
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire migration connection: %w", err)
	}
	defer func() {
		_, _ = conn.ExecContext(ctx, "PRAGMA foreign_keys = ON")
		_ = conn.Close()
	}()

	if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return 0, fmt.Errorf("disable foreign keys for migration: %w", err)
	}

	ran := 0
	for _, file := range files {
		if applied[file.version] {
			continue
		}

		content, err := fs.ReadFile(migrationFS, file.name)
		if err != nil {
			return ran, fmt.Errorf("read migration %s: %w", file.name, err)
		}

		if err := applyOne(ctx, conn, file, string(content)); err != nil {
			return ran, err
		}
		ran++
	}

	return ran, nil
}

func applyOne(ctx context.Context, conn *sql.Conn, file migrationFile, content string) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration transaction %s: %w", file.name, err)
	}

	if _, err := tx.ExecContext(ctx, content); err != nil {
		if !IsAlreadyExistsError(err) {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", file.name, err)
		}
	}

	if err := checkForeignKeys(ctx, tx); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("verify migration %s: %w", file.name, err)
	}

	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf("INSERT OR IGNORE INTO %s (name, version, applied_at) VALUES (?, ?, ?)", migrationTable),
		file.name,
		file.version,
		time.Now().UTC().UnixMilli(),
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record migration %s: %w", file.name, err)
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", file.version)); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("bump schema version %s: %w", file.name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", file.name, err)
	}

	return nil
}

func checkForeignKeys(ctx context.Context, tx *sql.Tx) error {
	rows, err := tx.QueryContext(ctx, "PRAGMA foreign_key_check")
	if err != nil {
		return fmt.Errorf("foreign key check: %w", err)
	}
	defer rows.Close()

	if rows.Next() {
		return fmt.Errorf("foreign key violations after migration")
	}
	return rows.Err()
}

func listMigrations(migrationFS fs.FS) ([]migrationFile, error) {
	entries, err := fs.ReadDir(migrationFS, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	var files []migrationFile
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		version, err := parseVersion(entry.Name())
		if err != nil {
			return nil, err
		}
		files = append(files, migrationFile{name: entry.Name(), version: version})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].version < files[j].version })

	for i, file := range files {
		if file.version != i+1 {
			return nil, fmt.Errorf("migration chain has a gap: expected version %d, found %s", i+1, file.name)
		}
	}

	return files, nil
}

func parseVersion(name string) (int, error) {
	prefix, _, found := strings.Cut(name, "_")
	if !found {
		return 0, fmt.Errorf("migration %s lacks a NNN_ version prefix", name)
	}
	version, err := strconv.Atoi(prefix)
	if err != nil || version < 1 {
		return 0, fmt.Errorf("migration %s has an invalid version prefix", name)
	}
	return version, nil
}

func appliedVersions(ctx context.Context, sqlDB *sql.DB) (map[int]bool, error) {
	rows, err := sqlDB.QueryContext(ctx, "SELECT version FROM "+migrationTable)
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan applied migration: %w", err)
		}
		applied[version] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applied migrations: %w", err)
	}
	return applied, nil
}

// IsAlreadyExistsError reports whether this error indicates idempotent DDL
// success, such as re-adding a column a half-recorded run already added.
func IsAlreadyExistsError(err error) bool {
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "already exists") || strings.Contains(value, "duplicate column name")
}
