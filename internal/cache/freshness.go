// Package cache holds the freshness policy and per-kind TTL table that decide
// when cached rows must be refreshed from the backend.
package cache

import "time"

// Policy judges cached rows against a TTL. The clock is injected so tests can
// pin time; Stale never reads ambient time directly.
type Policy struct {
	Now func() time.Time
}

// NewPolicy returns a policy backed by the wall clock.
func NewPolicy() Policy {
	return Policy{Now: time.Now}
}

// Stale reports whether a row last fetched at lastFetchedAt has outlived ttl.
// A nil timestamp means the row was never fetched and is always stale. A row
// exactly at the TTL boundary is still fresh.
func (p Policy) Stale(lastFetchedAt *time.Time, ttl time.Duration) bool {
	if lastFetchedAt == nil {
		return true
	}
	return p.Now().Sub(*lastFetchedAt) > ttl
}

// Fresh is the negation of Stale, including the never-fetched case.
func (p Policy) Fresh(lastFetchedAt *time.Time, ttl time.Duration) bool {
	return !p.Stale(lastFetchedAt, ttl)
}
