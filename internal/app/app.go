// Package app wires the persisted cache, the backend clients, and the
// per-kind repositories into one unit the embedding process owns.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/louisbranch/bookclub/internal/cache"
	"github.com/louisbranch/bookclub/internal/platform/config"
	"github.com/louisbranch/bookclub/internal/remote"
	"github.com/louisbranch/bookclub/internal/repository"
	"github.com/louisbranch/bookclub/internal/storage"
	"github.com/louisbranch/bookclub/internal/storage/sqlite"
)

// Clients bundles the backend collaborators, one per entity kind.
type Clients struct {
	Servers     remote.ServerClient
	Clubs       remote.ClubClient
	Members     remote.MemberClient
	Sessions    remote.SessionClient
	Books       remote.BookClient
	Discussions remote.DiscussionClient
}

// App owns the cache store and exposes one repository per entity kind.
type App struct {
	Servers     *repository.ServerRepository
	Clubs       *repository.ClubRepository
	Members     *repository.MemberRepository
	Sessions    *repository.SessionRepository
	Books       *repository.BookRepository
	Discussions *repository.DiscussionRepository

	store             storage.Store
	log               *zap.Logger
	migrationsApplied int
}

// New opens the cache at cfg.CachePath, migrating it as needed, and builds
// the repository set. TTL overrides from the config replace the per-kind
// defaults when set.
func New(cfg config.Config, clients Clients, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	store, err := sqlite.Open(cfg.CachePath)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	policy := cache.NewPolicy()
	return &App{
		Servers:     repository.NewServerRepository(store, clients.Servers, policy, cfg.ServerTTL, log),
		Clubs:       repository.NewClubRepository(store, clients.Clubs, policy, cfg.ClubTTL, log),
		Members:     repository.NewMemberRepository(store, clients.Members, policy, cfg.MemberTTL, log),
		Sessions:    repository.NewSessionRepository(store, clients.Sessions, policy, cfg.SessionTTL, log),
		Books:       repository.NewBookRepository(store, clients.Books, policy, cfg.BookTTL, log),
		Discussions: repository.NewDiscussionRepository(store, clients.Discussions, policy, cfg.DiscussionTTL, log),
		store:             store,
		log:               log,
		migrationsApplied: store.MigrationsApplied(),
	}, nil
}

// MigrationsApplied reports how many schema migrations New ran when opening
// the cache; zero means the schema was already current.
func (a *App) MigrationsApplied() int {
	return a.migrationsApplied
}

// Stats reports cached row counts per kind.
func (a *App) Stats(ctx context.Context) (storage.Stats, error) {
	return a.store.Stats(ctx)
}

// ClearCache wipes every cached row and listing mark, the sign-out path.
// Order matters: join rows cascade away with their clubs before members go.
func (a *App) ClearCache(ctx context.Context) error {
	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"clubs", a.store.DeleteAllClubs},
		{"members", a.store.DeleteAllMembers},
		{"sessions", a.store.DeleteAllSessions},
		{"discussions", a.store.DeleteAllDiscussions},
		{"books", a.store.DeleteAllBooks},
		{"servers", a.store.DeleteAllServers},
		{"fetch marks", a.store.DeleteAllFetchMarks},
	}
	for _, step := range steps {
		if err := step.fn(ctx); err != nil {
			return fmt.Errorf("clear %s: %w", step.name, err)
		}
	}
	a.log.Info("cache cleared")
	return nil
}

// Close releases the underlying cache database.
func (a *App) Close() error {
	return a.store.Close()
}

// NewLogger builds a production zap logger at the given level. Unknown
// levels fall back to info.
func NewLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		parsed = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(parsed)
	log, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return log, nil
}
