package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/louisbranch/bookclub/internal/cache"
	"github.com/louisbranch/bookclub/internal/domain"
	"github.com/louisbranch/bookclub/internal/remote"
	"github.com/louisbranch/bookclub/internal/storage"
)

type discussionStore interface {
	storage.DiscussionStore
	storage.FetchMarkStore
}

// DiscussionRepository serves discussion meetups.
type DiscussionRepository struct {
	store  discussionStore
	client remote.DiscussionClient
	policy cache.Policy
	ttl    time.Duration
	log    *zap.Logger
	tracer trace.Tracer
}

func NewDiscussionRepository(store discussionStore, client remote.DiscussionClient, policy cache.Policy, ttl time.Duration, log *zap.Logger) *DiscussionRepository {
	return &DiscussionRepository{
		store:  store,
		client: client,
		policy: ensurePolicy(policy),
		ttl:    ensureTTL(ttl, cache.KindDiscussion),
		log:    ensureLogger(log),
		tracer: tracer(),
	}
}

func (r *DiscussionRepository) GetByID(ctx context.Context, id string) (domain.Discussion, error) {
	ctx, span := r.tracer.Start(ctx, "discussion.get_by_id",
		trace.WithAttributes(attribute.String("discussion.id", id)))
	defer span.End()

	discussion, result, err := getByID(ctx, r.policy, r.ttl, r.log, cache.KindDiscussion, id,
		func(ctx context.Context) (domain.Discussion, time.Time, bool, error) {
			row, found, err := r.store.GetDiscussion(ctx, id)
			return row.Discussion, row.LastFetchedAt, found, err
		},
		func(ctx context.Context) (domain.Discussion, error) {
			return r.client.FetchDiscussion(ctx, id)
		},
		func(ctx context.Context, discussion domain.Discussion, now time.Time) error {
			return r.store.UpsertDiscussion(ctx, storage.DiscussionRow{Discussion: discussion, LastFetchedAt: now})
		},
	)
	finishSpan(span, result, err)
	return discussion, err
}

// ListForSession serves one session's discussions in date order.
func (r *DiscussionRepository) ListForSession(ctx context.Context, sessionID string) ([]domain.Discussion, error) {
	ctx, span := r.tracer.Start(ctx, "discussion.list_for_session",
		trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer span.End()

	mark := storage.SessionDiscussionsMark(sessionID)
	discussions, result, err := getList(ctx, r.policy, r.ttl, r.log, cache.KindDiscussion, mark,
		func(ctx context.Context) (time.Time, bool, error) {
			return r.store.FetchMark(ctx, mark)
		},
		func(ctx context.Context) ([]domain.Discussion, error) {
			rows, err := r.store.ListDiscussionsForSession(ctx, sessionID)
			if err != nil {
				return nil, err
			}
			discussions := make([]domain.Discussion, 0, len(rows))
			for _, row := range rows {
				discussions = append(discussions, row.Discussion)
			}
			return discussions, nil
		},
		func(ctx context.Context) ([]domain.Discussion, error) {
			return r.client.FetchDiscussionsForSession(ctx, sessionID)
		},
		func(ctx context.Context, discussions []domain.Discussion, now time.Time) error {
			rows := make([]storage.DiscussionRow, 0, len(discussions))
			for _, discussion := range discussions {
				rows = append(rows, storage.DiscussionRow{Discussion: discussion, LastFetchedAt: now})
			}
			if err := r.store.ReplaceSessionDiscussions(ctx, sessionID, rows); err != nil {
				return err
			}
			return r.store.PutFetchMark(ctx, mark, now)
		},
	)
	finishSpan(span, result, err)
	return discussions, err
}

// Create schedules a discussion remotely and caches the authoritative result.
func (r *DiscussionRepository) Create(ctx context.Context, discussion domain.Discussion) (domain.Discussion, error) {
	ctx, span := r.tracer.Start(ctx, "discussion.create")
	defer span.End()

	if discussion.ID == "" {
		discussion.ID = uuid.NewString()
	}
	created, err := r.client.CreateDiscussion(ctx, discussion)
	if err != nil {
		span.RecordError(err)
		return domain.Discussion{}, err
	}
	row := storage.DiscussionRow{Discussion: created, LastFetchedAt: r.policy.Now()}
	if err := r.store.UpsertDiscussion(ctx, row); err != nil {
		span.RecordError(err)
		return domain.Discussion{}, err
	}
	if created.SessionID != nil {
		if err := r.store.DeleteFetchMark(ctx, storage.SessionDiscussionsMark(*created.SessionID)); err != nil {
			span.RecordError(err)
			return domain.Discussion{}, err
		}
	}
	return created, nil
}

// Update sends changed fields to the backend and caches the result.
func (r *DiscussionRepository) Update(ctx context.Context, discussion domain.Discussion) (domain.Discussion, error) {
	ctx, span := r.tracer.Start(ctx, "discussion.update",
		trace.WithAttributes(attribute.String("discussion.id", discussion.ID)))
	defer span.End()

	updated, err := r.client.UpdateDiscussion(ctx, discussion)
	if err != nil {
		span.RecordError(err)
		return domain.Discussion{}, err
	}
	row := storage.DiscussionRow{Discussion: updated, LastFetchedAt: r.policy.Now()}
	if err := r.store.UpsertDiscussion(ctx, row); err != nil {
		span.RecordError(err)
		return domain.Discussion{}, err
	}
	return updated, nil
}

// Delete cancels the discussion remotely and drops the cached row.
func (r *DiscussionRepository) Delete(ctx context.Context, id string) error {
	ctx, span := r.tracer.Start(ctx, "discussion.delete",
		trace.WithAttributes(attribute.String("discussion.id", id)))
	defer span.End()

	if err := r.client.DeleteDiscussion(ctx, id); err != nil {
		span.RecordError(err)
		return err
	}
	if err := r.store.DeleteDiscussion(ctx, id); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// Invalidate drops one cached discussion so the next read refetches it.
func (r *DiscussionRepository) Invalidate(ctx context.Context, id string) error {
	return r.store.DeleteDiscussion(ctx, id)
}

// InvalidateAll drops every cached discussion.
func (r *DiscussionRepository) InvalidateAll(ctx context.Context) error {
	return r.store.DeleteAllDiscussions(ctx)
}
