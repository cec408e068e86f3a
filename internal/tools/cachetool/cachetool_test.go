package cachetool

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/louisbranch/bookclub/internal/domain"
	"github.com/louisbranch/bookclub/internal/storage"
	"github.com/louisbranch/bookclub/internal/storage/sqlite"
)

func seedCache(t *testing.T, path string) {
	t.Helper()
	store, err := sqlite.Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	}()

	fetchedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := store.UpsertBook(context.Background(), storage.BookRow{
		Book:          domain.Book{ID: "book-1", Title: "Dune", Author: "Frank Herbert"},
		LastFetchedAt: fetchedAt,
	}); err != nil {
		t.Fatalf("seed book: %v", err)
	}
}

func TestParseConfigFlags(t *testing.T) {
	fs := flag.NewFlagSet("cachetool", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-stats", "-json", "-cache-path", "custom.db", "-timeout", "30s"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if !cfg.Stats || !cfg.JSONOutput {
		t.Fatalf("flags not applied: %+v", cfg)
	}
	if cfg.CachePath != "custom.db" {
		t.Fatalf("cache path = %q, want custom.db", cfg.CachePath)
	}
	if cfg.Timeout != 30*time.Second {
		t.Fatalf("timeout = %s, want 30s", cfg.Timeout)
	}
}

func TestRunRequiresAnAction(t *testing.T) {
	err := Run(context.Background(), Config{CachePath: filepath.Join(t.TempDir(), "bookclub.db")}, nil, nil)
	if err == nil {
		t.Fatal("expected error when no action flag is set")
	}
}

func TestRunMigrateCreatesSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bookclub.db")

	var out bytes.Buffer
	if err := Run(context.Background(), Config{CachePath: path, Migrate: true}, &out, nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "applied 3 migrations") {
		t.Fatalf("output missing applied migration count: %q", out.String())
	}

	// Replaying against the migrated database has nothing left to do.
	out.Reset()
	if err := Run(context.Background(), Config{CachePath: path, Migrate: true}, &out, nil); err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if !strings.Contains(out.String(), "schema up to date") {
		t.Fatalf("output missing up-to-date confirmation: %q", out.String())
	}

	// The database must now be at the latest schema version.
	store, err := sqlite.Open(path)
	if err != nil {
		t.Fatalf("reopen migrated cache: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}
}

func TestRunStatsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bookclub.db")
	seedCache(t, path)

	var out bytes.Buffer
	if err := Run(context.Background(), Config{CachePath: path, Stats: true, JSONOutput: true}, &out, nil); err != nil {
		t.Fatalf("run: %v", err)
	}

	var stats storage.Stats
	if err := json.Unmarshal(out.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Books != 1 {
		t.Fatalf("books = %d, want 1", stats.Books)
	}
}

func TestRunClearThenStats(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bookclub.db")
	seedCache(t, path)

	var out bytes.Buffer
	if err := Run(context.Background(), Config{CachePath: path, Clear: true, Stats: true}, &out, nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "cache cleared") {
		t.Fatalf("output missing clear confirmation: %q", out.String())
	}
	if !strings.Contains(out.String(), "books:       0") {
		t.Fatalf("output missing zeroed stats: %q", out.String())
	}
}
