// Package sqlite provides the persisted cache adapter backed by SQLite.
//
// The store owns derived data only: every row can be rebuilt from backend
// fetches, so the schema favors rebuild-friendly migrations over historical
// fidelity. A single database file per install backs all entity kinds.
package sqlite
