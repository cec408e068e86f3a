package sqlitemigrate

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "migrate.db")
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func queryInt64(t *testing.T, db *sql.DB, query string) int64 {
	t.Helper()
	var value int64
	if err := db.QueryRow(query).Scan(&value); err != nil {
		t.Fatalf("query %q: %v", query, err)
	}
	return value
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name).Scan(&count)
	if err != nil {
		t.Fatalf("check table %s: %v", name, err)
	}
	return count > 0
}

func TestApplyRecordsApplied(t *testing.T) {
	db := openTestDB(t)

	migrations := fstest.MapFS{
		"001_create.sql": &fstest.MapFile{
			Data: []byte("CREATE TABLE items(id TEXT PRIMARY KEY);"),
		},
	}

	applied, err := Apply(context.Background(), db, migrations)
	if err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	if applied != 1 {
		t.Fatalf("applied = %d, want 1", applied)
	}

	if rows := queryInt64(t, db, "SELECT COUNT(*) FROM schema_migrations"); rows != 1 {
		t.Fatalf("expected 1 migration row, got %d", rows)
	}
	if !tableExists(t, db, "items") {
		t.Fatal("expected applied table to exist")
	}
	if version := queryInt64(t, db, "PRAGMA user_version"); version != 1 {
		t.Fatalf("expected user_version 1, got %d", version)
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	db := openTestDB(t)

	migrations := fstest.MapFS{
		"001_create.sql": &fstest.MapFile{
			Data: []byte("CREATE TABLE items(id TEXT PRIMARY KEY);"),
		},
		"002_add_column.sql": &fstest.MapFile{
			Data: []byte("ALTER TABLE items ADD COLUMN label TEXT;"),
		},
	}

	applied, err := Apply(context.Background(), db, migrations)
	if err != nil {
		t.Fatalf("apply initial migrations: %v", err)
	}
	if applied != 2 {
		t.Fatalf("applied = %d, want 2", applied)
	}

	applied, err = Apply(context.Background(), db, migrations)
	if err != nil {
		t.Fatalf("re-apply migrations should be idempotent: %v", err)
	}
	if applied != 0 {
		t.Fatalf("replay applied = %d, want 0", applied)
	}

	if rows := queryInt64(t, db, "SELECT COUNT(*) FROM schema_migrations"); rows != 2 {
		t.Fatalf("expected 2 migration rows after replay, got %d", rows)
	}
}

func TestApplyRollsBackFailedMigration(t *testing.T) {
	db := openTestDB(t)

	bad := fstest.MapFS{
		"001_bad.sql": &fstest.MapFile{
			Data: []byte("CREATE TABLE things(id TEXT PRIMARY KEY);\nCREAT TABLE broken(id INT);"),
		},
	}
	if _, err := Apply(context.Background(), db, bad); err == nil {
		t.Fatal("expected bad migration to fail")
	}

	if rows := queryInt64(t, db, "SELECT COUNT(*) FROM schema_migrations"); rows != 0 {
		t.Fatalf("expected failed migration to stay unrecorded, got %d rows", rows)
	}
	if tableExists(t, db, "things") {
		t.Fatal("expected failed migration to roll back its statements")
	}

	good := fstest.MapFS{
		"001_bad.sql": &fstest.MapFile{
			Data: []byte("CREATE TABLE things(id TEXT PRIMARY KEY);"),
		},
	}
	if _, err := Apply(context.Background(), db, good); err != nil {
		t.Fatalf("apply corrected migration: %v", err)
	}
	if !tableExists(t, db, "things") {
		t.Fatal("expected corrected migration to apply")
	}
}

func TestApplyRejectsVersionGaps(t *testing.T) {
	db := openTestDB(t)

	migrations := fstest.MapFS{
		"001_create.sql": &fstest.MapFile{
			Data: []byte("CREATE TABLE items(id TEXT PRIMARY KEY);"),
		},
		"003_skip.sql": &fstest.MapFile{
			Data: []byte("ALTER TABLE items ADD COLUMN label TEXT;"),
		},
	}

	if _, err := Apply(context.Background(), db, migrations); err == nil {
		t.Fatal("expected gap in migration chain to be rejected")
	}
}

func TestApplyRebuildPreservesReferencingRows(t *testing.T) {
	db := openTestDB(t)

	base := fstest.MapFS{
		"001_create.sql": &fstest.MapFile{
			Data: []byte(`
CREATE TABLE parents(id TEXT PRIMARY KEY, extra TEXT NOT NULL DEFAULT '');
CREATE TABLE children(
    parent_id TEXT NOT NULL REFERENCES parents(id) ON DELETE CASCADE,
    name TEXT NOT NULL
);
INSERT INTO parents (id, extra) VALUES ('p1', 'drop me');
INSERT INTO children (parent_id, name) VALUES ('p1', 'c1');
`),
		},
	}
	if _, err := Apply(context.Background(), db, base); err != nil {
		t.Fatalf("apply base migration: %v", err)
	}

	rebuild := fstest.MapFS{
		"001_create.sql": base["001_create.sql"],
		"002_rebuild.sql": &fstest.MapFile{
			Data: []byte(`
CREATE TABLE parents_new(id TEXT PRIMARY KEY);
INSERT INTO parents_new (id) SELECT id FROM parents;
DROP TABLE parents;
ALTER TABLE parents_new RENAME TO parents;
`),
		},
	}
	if _, err := Apply(context.Background(), db, rebuild); err != nil {
		t.Fatalf("apply rebuild migration: %v", err)
	}

	// The cascade must not fire during the rebuild: children survive.
	if rows := queryInt64(t, db, "SELECT COUNT(*) FROM children"); rows != 1 {
		t.Fatalf("expected child row to survive parent rebuild, got %d", rows)
	}
}
