package cache

import "time"

// Kind identifies a cached entity kind for TTL lookup and fetch marks.
type Kind string

const (
	KindServer     Kind = "server"
	KindClub       Kind = "club"
	KindMember     Kind = "member"
	KindSession    Kind = "session"
	KindBook       Kind = "book"
	KindDiscussion Kind = "discussion"
)

// TTLs are inversely tied to how often the underlying data changes: servers
// and books are near-immutable, sessions turn over within a day.
var defaultTTLs = map[Kind]time.Duration{
	KindServer:     7 * 24 * time.Hour,
	KindBook:       7 * 24 * time.Hour,
	KindClub:       24 * time.Hour,
	KindMember:     24 * time.Hour,
	KindSession:    6 * time.Hour,
	KindDiscussion: 6 * time.Hour,
}

// TTLFor returns the default TTL for a kind. Unknown kinds get the most
// conservative table entry so a miscategorized row refreshes early rather
// than lingering.
func TTLFor(kind Kind) time.Duration {
	if ttl, ok := defaultTTLs[kind]; ok {
		return ttl
	}
	return 6 * time.Hour
}
