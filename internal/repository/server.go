package repository

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/louisbranch/bookclub/internal/cache"
	"github.com/louisbranch/bookclub/internal/domain"
	"github.com/louisbranch/bookclub/internal/remote"
	"github.com/louisbranch/bookclub/internal/storage"
)

type serverStore interface {
	storage.ServerStore
	storage.FetchMarkStore
}

// ServerRepository serves Discord servers. Servers change rarely and are
// never written from the app, so this is the most static of the caches.
type ServerRepository struct {
	store  serverStore
	client remote.ServerClient
	policy cache.Policy
	ttl    time.Duration
	log    *zap.Logger
	tracer trace.Tracer
}

func NewServerRepository(store serverStore, client remote.ServerClient, policy cache.Policy, ttl time.Duration, log *zap.Logger) *ServerRepository {
	return &ServerRepository{
		store:  store,
		client: client,
		policy: ensurePolicy(policy),
		ttl:    ensureTTL(ttl, cache.KindServer),
		log:    ensureLogger(log),
		tracer: tracer(),
	}
}

func (r *ServerRepository) GetByID(ctx context.Context, id string) (domain.Server, error) {
	ctx, span := r.tracer.Start(ctx, "server.get_by_id",
		trace.WithAttributes(attribute.String("server.id", id)))
	defer span.End()

	server, result, err := getByID(ctx, r.policy, r.ttl, r.log, cache.KindServer, id,
		func(ctx context.Context) (domain.Server, time.Time, bool, error) {
			row, found, err := r.store.GetServer(ctx, id)
			return row.Server, row.LastFetchedAt, found, err
		},
		func(ctx context.Context) (domain.Server, error) {
			return r.client.FetchServer(ctx, id)
		},
		func(ctx context.Context, server domain.Server, now time.Time) error {
			return r.store.UpsertServer(ctx, storage.ServerRow{Server: server, LastFetchedAt: now})
		},
	)
	finishSpan(span, result, err)
	return server, err
}

func (r *ServerRepository) List(ctx context.Context) ([]domain.Server, error) {
	ctx, span := r.tracer.Start(ctx, "server.list")
	defer span.End()

	servers, result, err := getList(ctx, r.policy, r.ttl, r.log, cache.KindServer, storage.ServersMark,
		func(ctx context.Context) (time.Time, bool, error) {
			return r.store.FetchMark(ctx, storage.ServersMark)
		},
		func(ctx context.Context) ([]domain.Server, error) {
			rows, err := r.store.ListServers(ctx)
			if err != nil {
				return nil, err
			}
			servers := make([]domain.Server, 0, len(rows))
			for _, row := range rows {
				servers = append(servers, row.Server)
			}
			return servers, nil
		},
		r.client.FetchServers,
		r.writeServerListing,
	)
	finishSpan(span, result, err)
	return servers, err
}

// writeServerListing replaces the cached listing: rows the backend no longer
// returns are pruned so a fresh read never resurrects them.
func (r *ServerRepository) writeServerListing(ctx context.Context, servers []domain.Server, now time.Time) error {
	fetched := make(map[string]bool, len(servers))
	rows := make([]storage.ServerRow, 0, len(servers))
	for _, server := range servers {
		fetched[server.ID] = true
		rows = append(rows, storage.ServerRow{Server: server, LastFetchedAt: now})
	}
	if err := r.store.UpsertServers(ctx, rows); err != nil {
		return err
	}

	existing, err := r.store.ListServers(ctx)
	if err != nil {
		return err
	}
	for _, row := range existing {
		if fetched[row.Server.ID] {
			continue
		}
		if err := r.store.DeleteServer(ctx, row.Server.ID); err != nil {
			return fmt.Errorf("prune server %s: %w", row.Server.ID, err)
		}
	}
	return r.store.PutFetchMark(ctx, storage.ServersMark, now)
}

// Invalidate drops one cached server so the next read refetches it.
func (r *ServerRepository) Invalidate(ctx context.Context, id string) error {
	return r.store.DeleteServer(ctx, id)
}

// InvalidateAll drops every cached server and the listing mark.
func (r *ServerRepository) InvalidateAll(ctx context.Context) error {
	if err := r.store.DeleteAllServers(ctx); err != nil {
		return err
	}
	return r.store.DeleteFetchMark(ctx, storage.ServersMark)
}
