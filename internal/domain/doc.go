// Package domain defines the canonical entities of the book club app.
//
// Entities mirror what the backend serves: Discord-style servers, the clubs
// hosted on them, members and their per-club roles, reading sessions, books,
// and discussion meetups. Cached persistence metadata (such as fetch
// timestamps) never appears here; it belongs to the storage layer.
package domain
