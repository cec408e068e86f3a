package domain

import "time"

// ClubRole is a member's role scoped to a single club. Roles live on the
// club-member pair, never on the member itself: the same person can own one
// club and be a plain member of another.
type ClubRole string

const (
	RoleOwner  ClubRole = "owner"
	RoleAdmin  ClubRole = "admin"
	RoleMember ClubRole = "member"
)

// ParseClubRole validates a stored or remote role string.
func ParseClubRole(value string) (ClubRole, bool) {
	switch ClubRole(value) {
	case RoleOwner, RoleAdmin, RoleMember:
		return ClubRole(value), true
	default:
		return "", false
	}
}

// Server is a Discord server hosting one or more clubs.
type Server struct {
	ID          string
	Name        string
	IconURL     string
	MemberCount int
}

// Club is a reading club, optionally tied to a server and a Discord channel.
type Club struct {
	ID               string
	ServerID         *string
	Name             string
	DiscordChannelID string
	FoundedAt        time.Time

	// Members and Sessions are populated only when the originating fetch
	// expanded them.
	Members  Relation[Membership]
	Sessions Relation[Session]
}

// Member is a club participant. UserID links the member to an auth account
// when one exists; members created by club owners on others' behalf have none.
type Member struct {
	ID         string
	UserID     *string
	Name       string
	Handle     string
	AvatarPath string
	BooksRead  int
	CreatedAt  time.Time
}

// Membership pairs a member with their role in one club.
type Membership struct {
	Member Member
	Role   ClubRole
}

// Session is one reading cycle of a club around a single book.
type Session struct {
	ID        string
	ClubID    string
	BookID    *string
	StartedAt time.Time
	EndsAt    time.Time
	Active    bool

	Discussions Relation[Discussion]
}

// Book is a catalog entry referenced by sessions.
type Book struct {
	ID               string
	Title            string
	Author           string
	Year             int
	PageCount        int
	ImageURL         *string
	ExternalGoogleID *string
}

// Discussion is a scheduled meetup attached to a session.
type Discussion struct {
	ID        string
	SessionID *string
	Title     string
	Date      time.Time
	Location  string
}
