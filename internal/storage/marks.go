package storage

// Fetch mark keys for collection-level listings. Child listings scope the key
// by the parent id so invalidating one club's roster leaves the others alone.
const (
	ServersMark = "servers"
	ClubsMark   = "clubs"
	BooksMark   = "books"
)

// ClubMembershipsMark keys the member roster listing of one club.
func ClubMembershipsMark(clubID string) string {
	return "club_members:" + clubID
}

// ClubSessionsMark keys the session listing of one club.
func ClubSessionsMark(clubID string) string {
	return "club_sessions:" + clubID
}

// ServerClubsMark keys the club listing of one server.
func ServerClubsMark(serverID string) string {
	return "server_clubs:" + serverID
}

// SessionDiscussionsMark keys the discussion listing of one session.
func SessionDiscussionsMark(sessionID string) string {
	return "session_discussions:" + sessionID
}
