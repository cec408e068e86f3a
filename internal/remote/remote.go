// Package remote declares the backend collaborator contracts the cache layer
// fetches through.
//
// Transport, authentication, and wire encoding are entirely the
// implementation's concern; the cache only sees domain values and the error
// taxonomy below. Fetches that expand child listings express the expansion
// through domain.Relation, so a fetch without expansions leaves relations
// not-requested.
package remote

import (
	"context"
	"fmt"

	"github.com/louisbranch/bookclub/internal/domain"
)

// ErrorKind categorizes remote failures. The cache layer's only decision
// point is whether a stale fallback exists, so kinds pass through to callers
// untouched; retry policy belongs to the client or the caller.
type ErrorKind string

const (
	KindNetwork  ErrorKind = "network"
	KindNotFound ErrorKind = "not_found"
	KindServer   ErrorKind = "server"
	KindAuth     ErrorKind = "auth"
)

// Error is a categorized remote failure.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ServerClient fetches Discord servers. Servers are joined through Discord
// itself, so the app never writes them.
type ServerClient interface {
	FetchServer(ctx context.Context, id string) (domain.Server, error)
	FetchServers(ctx context.Context) ([]domain.Server, error)
}

// ClubClient fetches and mutates clubs. FetchClub may expand the member
// roster and session list.
type ClubClient interface {
	FetchClub(ctx context.Context, id string) (domain.Club, error)
	FetchClubs(ctx context.Context) ([]domain.Club, error)
	FetchClubsForServer(ctx context.Context, serverID string) ([]domain.Club, error)
	FetchClubMembers(ctx context.Context, clubID string) ([]domain.Membership, error)
	CreateClub(ctx context.Context, club domain.Club) (domain.Club, error)
	UpdateClub(ctx context.Context, club domain.Club) (domain.Club, error)
	DeleteClub(ctx context.Context, id string) error

	AddMember(ctx context.Context, clubID, memberID string, role domain.ClubRole) error
	UpdateMemberRole(ctx context.Context, clubID, memberID string, role domain.ClubRole) error
	RemoveMember(ctx context.Context, clubID, memberID string) error
}

// MemberClient fetches and mutates member profiles.
type MemberClient interface {
	FetchMember(ctx context.Context, id string) (domain.Member, error)
	UpdateMember(ctx context.Context, member domain.Member) (domain.Member, error)
	DeleteMember(ctx context.Context, id string) error
}

// SessionClient fetches and mutates reading sessions. FetchSession may
// expand the discussion list.
type SessionClient interface {
	FetchSession(ctx context.Context, id string) (domain.Session, error)
	FetchSessionsForClub(ctx context.Context, clubID string) ([]domain.Session, error)
	CreateSession(ctx context.Context, session domain.Session) (domain.Session, error)
	UpdateSession(ctx context.Context, session domain.Session) (domain.Session, error)
	DeleteSession(ctx context.Context, id string) error
}

// BookClient fetches and mutates catalog books.
type BookClient interface {
	FetchBook(ctx context.Context, id string) (domain.Book, error)
	FetchBooks(ctx context.Context) ([]domain.Book, error)
	CreateBook(ctx context.Context, book domain.Book) (domain.Book, error)
}

// DiscussionClient fetches and mutates discussion meetups.
type DiscussionClient interface {
	FetchDiscussion(ctx context.Context, id string) (domain.Discussion, error)
	FetchDiscussionsForSession(ctx context.Context, sessionID string) ([]domain.Discussion, error)
	CreateDiscussion(ctx context.Context, discussion domain.Discussion) (domain.Discussion, error)
	UpdateDiscussion(ctx context.Context, discussion domain.Discussion) (domain.Discussion, error)
	DeleteDiscussion(ctx context.Context, id string) error
}
