package storage

import (
	"context"
	"time"

	"github.com/louisbranch/bookclub/internal/domain"
)

// ServerRow is a cached server plus its freshness metadata. LastFetchedAt is
// set on every write-through and is never zero for a persisted row.
type ServerRow struct {
	Server        domain.Server
	LastFetchedAt time.Time
}

// ClubRow is a cached club plus its freshness metadata.
type ClubRow struct {
	Club          domain.Club
	LastFetchedAt time.Time
}

// MemberRow is a cached member plus its freshness metadata.
type MemberRow struct {
	Member        domain.Member
	LastFetchedAt time.Time
}

// MembershipRow joins a cached member to a club with the role scoped to that
// pair.
type MembershipRow struct {
	Member MemberRow
	Role   domain.ClubRole
}

// SessionRow is a cached session plus its freshness metadata.
type SessionRow struct {
	Session       domain.Session
	LastFetchedAt time.Time
}

// BookRow is a cached book plus its freshness metadata.
type BookRow struct {
	Book          domain.Book
	LastFetchedAt time.Time
}

// DiscussionRow is a cached discussion plus its freshness metadata.
type DiscussionRow struct {
	Discussion    domain.Discussion
	LastFetchedAt time.Time
}

// Stats counts cached rows per kind, for the maintenance CLI.
type Stats struct {
	Servers     int
	Clubs       int
	Members     int
	Memberships int
	Sessions    int
	Books       int
	Discussions int
}

// ServerStore persists cached servers.
type ServerStore interface {
	GetServer(ctx context.Context, id string) (ServerRow, bool, error)
	ListServers(ctx context.Context) ([]ServerRow, error)
	UpsertServer(ctx context.Context, row ServerRow) error
	UpsertServers(ctx context.Context, rows []ServerRow) error
	DeleteServer(ctx context.Context, id string) error
	DeleteAllServers(ctx context.Context) error
}

// ClubStore persists cached clubs.
type ClubStore interface {
	GetClub(ctx context.Context, id string) (ClubRow, bool, error)
	ListClubs(ctx context.Context) ([]ClubRow, error)
	ListClubsForServer(ctx context.Context, serverID string) ([]ClubRow, error)
	UpsertClub(ctx context.Context, row ClubRow) error
	UpsertClubs(ctx context.Context, rows []ClubRow) error
	DeleteClub(ctx context.Context, id string) error
	DeleteAllClubs(ctx context.Context) error
}

// MemberStore persists cached members.
type MemberStore interface {
	GetMember(ctx context.Context, id string) (MemberRow, bool, error)
	UpsertMember(ctx context.Context, row MemberRow) error
	UpsertMembers(ctx context.Context, rows []MemberRow) error
	DeleteMember(ctx context.Context, id string) error
	DeleteAllMembers(ctx context.Context) error
}

// MembershipStore persists the club-member join rows. Deleting a club or a
// member cascades to its join rows; orphaned memberships never persist.
type MembershipStore interface {
	ListClubMemberships(ctx context.Context, clubID string) ([]MembershipRow, error)
	UpsertClubMember(ctx context.Context, clubID, memberID string, role domain.ClubRole) error
	// ReplaceClubMemberships atomically replaces all join rows for a club,
	// upserting the member rows the memberships reference first.
	ReplaceClubMemberships(ctx context.Context, clubID string, rows []MembershipRow) error
	DeleteClubMember(ctx context.Context, clubID, memberID string) error
	DeleteAllClubMembers(ctx context.Context) error
}

// SessionStore persists cached sessions.
type SessionStore interface {
	GetSession(ctx context.Context, id string) (SessionRow, bool, error)
	ListSessionsForClub(ctx context.Context, clubID string) ([]SessionRow, error)
	UpsertSession(ctx context.Context, row SessionRow) error
	// ReplaceClubSessions atomically replaces the cached sessions of a club.
	ReplaceClubSessions(ctx context.Context, clubID string, rows []SessionRow) error
	DeleteSession(ctx context.Context, id string) error
	DeleteAllSessions(ctx context.Context) error
}

// BookStore persists cached books.
type BookStore interface {
	GetBook(ctx context.Context, id string) (BookRow, bool, error)
	ListBooks(ctx context.Context) ([]BookRow, error)
	UpsertBook(ctx context.Context, row BookRow) error
	UpsertBooks(ctx context.Context, rows []BookRow) error
	DeleteBook(ctx context.Context, id string) error
	DeleteAllBooks(ctx context.Context) error
}

// DiscussionStore persists cached discussions.
type DiscussionStore interface {
	GetDiscussion(ctx context.Context, id string) (DiscussionRow, bool, error)
	ListDiscussionsForSession(ctx context.Context, sessionID string) ([]DiscussionRow, error)
	UpsertDiscussion(ctx context.Context, row DiscussionRow) error
	// ReplaceSessionDiscussions atomically replaces the cached discussions of
	// a session.
	ReplaceSessionDiscussions(ctx context.Context, sessionID string, rows []DiscussionRow) error
	DeleteDiscussion(ctx context.Context, id string) error
	DeleteAllDiscussions(ctx context.Context) error
}

// FetchMarkStore records when a whole collection or child listing was last
// fetched. Marks let the cache tell "loaded, empty" apart from "never
// queried": an absent mark means the listing was never fetched, a present
// mark with no rows means the backend returned an empty list.
type FetchMarkStore interface {
	FetchMark(ctx context.Context, key string) (time.Time, bool, error)
	PutFetchMark(ctx context.Context, key string, fetchedAt time.Time) error
	DeleteFetchMark(ctx context.Context, key string) error
	DeleteAllFetchMarks(ctx context.Context) error
}

// Store is the full persisted cache contract a repository set composes over.
type Store interface {
	ServerStore
	ClubStore
	MemberStore
	MembershipStore
	SessionStore
	BookStore
	DiscussionStore
	FetchMarkStore

	Stats(ctx context.Context) (Stats, error)
	Close() error
}
