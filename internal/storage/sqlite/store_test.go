package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/bookclub/internal/domain"
	"github.com/louisbranch/bookclub/internal/storage"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bookclub.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	})
	return store
}

func assertTableExists(t *testing.T, sqlDB *sql.DB, name string) {
	t.Helper()
	var count int
	err := sqlDB.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name).Scan(&count)
	if err != nil {
		t.Fatalf("check table %s: %v", name, err)
	}
	if count == 0 {
		t.Fatalf("expected table %s to exist", name)
	}
}

func strPtr(v string) *string {
	return &v
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("")
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestOpenRunsMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bookclub.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	})

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer func() {
		_ = sqlDB.Close()
	}()

	for _, table := range []string{"servers", "clubs", "members", "club_members", "sessions", "books", "discussions", "fetch_marks"} {
		assertTableExists(t, sqlDB, table)
	}

	var version int64
	if err := sqlDB.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("read user_version: %v", err)
	}
	if version != 3 {
		t.Fatalf("user_version = %d, want 3", version)
	}
}

func TestServerRoundTrip(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	fetchedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	row := storage.ServerRow{
		Server: domain.Server{
			ID:          "srv-1",
			Name:        "Fiction Friends",
			IconURL:     "https://cdn.example/srv-1.png",
			MemberCount: 42,
		},
		LastFetchedAt: fetchedAt,
	}
	if err := store.UpsertServer(ctx, row); err != nil {
		t.Fatalf("upsert server: %v", err)
	}

	got, found, err := store.GetServer(ctx, "srv-1")
	if err != nil {
		t.Fatalf("get server: %v", err)
	}
	if !found {
		t.Fatal("expected server row")
	}
	if got.Server != row.Server {
		t.Fatalf("server = %+v, want %+v", got.Server, row.Server)
	}
	if !got.LastFetchedAt.Equal(fetchedAt) {
		t.Fatalf("lastFetchedAt = %s, want %s", got.LastFetchedAt, fetchedAt)
	}

	_, found, err = store.GetServer(ctx, "srv-missing")
	if err != nil {
		t.Fatalf("get missing server: %v", err)
	}
	if found {
		t.Fatal("expected cache miss for unknown id")
	}

	if err := store.DeleteAllServers(ctx); err != nil {
		t.Fatalf("delete all servers: %v", err)
	}
	servers, err := store.ListServers(ctx)
	if err != nil {
		t.Fatalf("list servers: %v", err)
	}
	if len(servers) != 0 {
		t.Fatalf("expected empty server cache, got %d rows", len(servers))
	}
}

func TestUpsertRejectsZeroFetchTimestamp(t *testing.T) {
	store := openStore(t)

	err := store.UpsertServer(context.Background(), storage.ServerRow{
		Server: domain.Server{ID: "srv-1", Name: "No Timestamp"},
	})
	if err == nil {
		t.Fatal("expected zero last-fetched timestamp to be rejected")
	}
}

func TestUpsertIsFullReplace(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	first := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := store.UpsertBook(ctx, storage.BookRow{
		Book: domain.Book{
			ID:       "book-1",
			Title:    "Original",
			Author:   "Someone",
			ImageURL: strPtr("https://covers.example/1.jpg"),
		},
		LastFetchedAt: first,
	}); err != nil {
		t.Fatalf("upsert book: %v", err)
	}

	// Second write carries no image: the replace must null it, not keep it.
	second := first.Add(time.Hour)
	if err := store.UpsertBook(ctx, storage.BookRow{
		Book:          domain.Book{ID: "book-1", Title: "Revised", Author: "Someone"},
		LastFetchedAt: second,
	}); err != nil {
		t.Fatalf("re-upsert book: %v", err)
	}

	got, found, err := store.GetBook(ctx, "book-1")
	if err != nil {
		t.Fatalf("get book: %v", err)
	}
	if !found {
		t.Fatal("expected book row")
	}
	if got.Book.Title != "Revised" {
		t.Fatalf("title = %q, want %q", got.Book.Title, "Revised")
	}
	if got.Book.ImageURL != nil {
		t.Fatalf("expected image url cleared, got %q", *got.Book.ImageURL)
	}
	if !got.LastFetchedAt.Equal(second) {
		t.Fatalf("lastFetchedAt = %s, want %s", got.LastFetchedAt, second)
	}
}

func TestMembershipCascadeOnMemberDelete(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	fetchedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := store.UpsertClub(ctx, storage.ClubRow{
		Club:          domain.Club{ID: "club-1", Name: "Mystery Mondays"},
		LastFetchedAt: fetchedAt,
	}); err != nil {
		t.Fatalf("upsert club: %v", err)
	}
	if err := store.UpsertMember(ctx, storage.MemberRow{
		Member:        domain.Member{ID: "mem-1", Name: "Alice", Handle: "alice"},
		LastFetchedAt: fetchedAt,
	}); err != nil {
		t.Fatalf("upsert member: %v", err)
	}
	if err := store.UpsertClubMember(ctx, "club-1", "mem-1", domain.RoleOwner); err != nil {
		t.Fatalf("upsert club member: %v", err)
	}

	if err := store.DeleteMember(ctx, "mem-1"); err != nil {
		t.Fatalf("delete member: %v", err)
	}

	memberships, err := store.ListClubMemberships(ctx, "club-1")
	if err != nil {
		t.Fatalf("list memberships: %v", err)
	}
	if len(memberships) != 0 {
		t.Fatalf("expected cascade to remove join rows, got %d", len(memberships))
	}
}

func TestMembershipCascadeOnClubDelete(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	fetchedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := store.UpsertClub(ctx, storage.ClubRow{
		Club:          domain.Club{ID: "club-1", Name: "Mystery Mondays"},
		LastFetchedAt: fetchedAt,
	}); err != nil {
		t.Fatalf("upsert club: %v", err)
	}
	if err := store.UpsertMember(ctx, storage.MemberRow{
		Member:        domain.Member{ID: "mem-1", Name: "Alice", Handle: "alice"},
		LastFetchedAt: fetchedAt,
	}); err != nil {
		t.Fatalf("upsert member: %v", err)
	}
	if err := store.UpsertClubMember(ctx, "club-1", "mem-1", domain.RoleAdmin); err != nil {
		t.Fatalf("upsert club member: %v", err)
	}

	if err := store.DeleteClub(ctx, "club-1"); err != nil {
		t.Fatalf("delete club: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Memberships != 0 {
		t.Fatalf("expected cascade to remove join rows, got %d", stats.Memberships)
	}
	if stats.Members != 1 {
		t.Fatalf("expected member row to survive club delete, got %d", stats.Members)
	}
}

func TestReplaceClubMembershipsSwapsRoster(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	fetchedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := store.UpsertClub(ctx, storage.ClubRow{
		Club:          domain.Club{ID: "club-1", Name: "Mystery Mondays"},
		LastFetchedAt: fetchedAt,
	}); err != nil {
		t.Fatalf("upsert club: %v", err)
	}

	roster := func(ids ...string) []storage.MembershipRow {
		rows := make([]storage.MembershipRow, 0, len(ids))
		for _, id := range ids {
			rows = append(rows, storage.MembershipRow{
				Member: storage.MemberRow{
					Member:        domain.Member{ID: id, Name: id, Handle: id},
					LastFetchedAt: fetchedAt,
				},
				Role: domain.RoleMember,
			})
		}
		return rows
	}

	if err := store.ReplaceClubMemberships(ctx, "club-1", roster("mem-1", "mem-2")); err != nil {
		t.Fatalf("replace memberships: %v", err)
	}
	if err := store.ReplaceClubMemberships(ctx, "club-1", roster("mem-2", "mem-3")); err != nil {
		t.Fatalf("replace memberships again: %v", err)
	}

	memberships, err := store.ListClubMemberships(ctx, "club-1")
	if err != nil {
		t.Fatalf("list memberships: %v", err)
	}
	if len(memberships) != 2 {
		t.Fatalf("expected replaced roster of 2, got %d", len(memberships))
	}
	gotIDs := []string{memberships[0].Member.Member.ID, memberships[1].Member.Member.ID}
	if gotIDs[0] != "mem-2" || gotIDs[1] != "mem-3" {
		t.Fatalf("roster = %v, want [mem-2 mem-3]", gotIDs)
	}
}

func TestReplaceClubSessionsRejectsForeignRows(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	fetchedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	err := store.ReplaceClubSessions(ctx, "club-1", []storage.SessionRow{{
		Session:       domain.Session{ID: "sess-1", ClubID: "club-2"},
		LastFetchedAt: fetchedAt,
	}})
	if err == nil {
		t.Fatal("expected session from another club to be rejected")
	}
}

func TestFetchMarkDistinguishesEmptyFromNeverFetched(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	_, found, err := store.FetchMark(ctx, storage.ClubSessionsMark("club-1"))
	if err != nil {
		t.Fatalf("fetch mark: %v", err)
	}
	if found {
		t.Fatal("expected no mark before any listing fetch")
	}

	fetchedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := store.PutFetchMark(ctx, storage.ClubSessionsMark("club-1"), fetchedAt); err != nil {
		t.Fatalf("put fetch mark: %v", err)
	}

	mark, found, err := store.FetchMark(ctx, storage.ClubSessionsMark("club-1"))
	if err != nil {
		t.Fatalf("fetch mark after put: %v", err)
	}
	if !found {
		t.Fatal("expected mark after listing fetch")
	}
	if !mark.Equal(fetchedAt) {
		t.Fatalf("mark = %s, want %s", mark, fetchedAt)
	}

	sessions, err := store.ListSessionsForClub(ctx, "club-1")
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(sessions) != 0 {
		t.Fatalf("expected loaded-but-empty listing, got %d rows", len(sessions))
	}
}
