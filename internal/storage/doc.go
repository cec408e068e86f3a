// Package storage declares persistence contracts for the offline cache.
//
// Rows wrap domain entities with the fetch timestamp the freshness policy
// evaluates. The cache is derived data: every row can be rebuilt from the
// backend, and the store is never the source of truth for club state.
package storage
