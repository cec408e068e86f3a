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

type sessionStore interface {
	storage.SessionStore
	storage.DiscussionStore
	storage.FetchMarkStore
}

// SessionRepository serves reading sessions. Session fetches may arrive with
// the discussion list expanded; the write-through persists it alongside.
type SessionRepository struct {
	store  sessionStore
	client remote.SessionClient
	policy cache.Policy
	ttl    time.Duration
	log    *zap.Logger
	tracer trace.Tracer
}

func NewSessionRepository(store sessionStore, client remote.SessionClient, policy cache.Policy, ttl time.Duration, log *zap.Logger) *SessionRepository {
	return &SessionRepository{
		store:  store,
		client: client,
		policy: ensurePolicy(policy),
		ttl:    ensureTTL(ttl, cache.KindSession),
		log:    ensureLogger(log),
		tracer: tracer(),
	}
}

func (r *SessionRepository) GetByID(ctx context.Context, id string) (domain.Session, error) {
	ctx, span := r.tracer.Start(ctx, "session.get_by_id",
		trace.WithAttributes(attribute.String("session.id", id)))
	defer span.End()

	session, result, err := getByID(ctx, r.policy, r.ttl, r.log, cache.KindSession, id,
		func(ctx context.Context) (domain.Session, time.Time, bool, error) {
			row, found, err := r.store.GetSession(ctx, id)
			return row.Session, row.LastFetchedAt, found, err
		},
		func(ctx context.Context) (domain.Session, error) {
			return r.client.FetchSession(ctx, id)
		},
		r.writeSession,
	)
	finishSpan(span, result, err)
	return session, err
}

// ListForClub serves one club's sessions, newest first.
func (r *SessionRepository) ListForClub(ctx context.Context, clubID string) ([]domain.Session, error) {
	ctx, span := r.tracer.Start(ctx, "session.list_for_club",
		trace.WithAttributes(attribute.String("club.id", clubID)))
	defer span.End()

	mark := storage.ClubSessionsMark(clubID)
	sessions, result, err := getList(ctx, r.policy, r.ttl, r.log, cache.KindSession, mark,
		func(ctx context.Context) (time.Time, bool, error) {
			return r.store.FetchMark(ctx, mark)
		},
		func(ctx context.Context) ([]domain.Session, error) {
			rows, err := r.store.ListSessionsForClub(ctx, clubID)
			if err != nil {
				return nil, err
			}
			sessions := make([]domain.Session, 0, len(rows))
			for _, row := range rows {
				sessions = append(sessions, row.Session)
			}
			return sessions, nil
		},
		func(ctx context.Context) ([]domain.Session, error) {
			return r.client.FetchSessionsForClub(ctx, clubID)
		},
		func(ctx context.Context, sessions []domain.Session, now time.Time) error {
			rows := make([]storage.SessionRow, 0, len(sessions))
			for _, session := range sessions {
				rows = append(rows, storage.SessionRow{Session: session, LastFetchedAt: now})
			}
			if err := r.store.ReplaceClubSessions(ctx, clubID, rows); err != nil {
				return err
			}
			return r.store.PutFetchMark(ctx, mark, now)
		},
	)
	finishSpan(span, result, err)
	return sessions, err
}

// Create starts a new session remotely and caches the authoritative result.
func (r *SessionRepository) Create(ctx context.Context, session domain.Session) (domain.Session, error) {
	ctx, span := r.tracer.Start(ctx, "session.create",
		trace.WithAttributes(attribute.String("club.id", session.ClubID)))
	defer span.End()

	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	created, err := r.client.CreateSession(ctx, session)
	if err != nil {
		span.RecordError(err)
		return domain.Session{}, err
	}
	if err := r.writeSession(ctx, created, r.policy.Now()); err != nil {
		span.RecordError(err)
		return domain.Session{}, err
	}
	// The club's session listing changed shape; force a refetch.
	if err := r.store.DeleteFetchMark(ctx, storage.ClubSessionsMark(created.ClubID)); err != nil {
		span.RecordError(err)
		return domain.Session{}, err
	}
	return created, nil
}

// Update sends changed session fields to the backend and caches the result.
func (r *SessionRepository) Update(ctx context.Context, session domain.Session) (domain.Session, error) {
	ctx, span := r.tracer.Start(ctx, "session.update",
		trace.WithAttributes(attribute.String("session.id", session.ID)))
	defer span.End()

	updated, err := r.client.UpdateSession(ctx, session)
	if err != nil {
		span.RecordError(err)
		return domain.Session{}, err
	}
	if err := r.writeSession(ctx, updated, r.policy.Now()); err != nil {
		span.RecordError(err)
		return domain.Session{}, err
	}
	return updated, nil
}

// Delete ends the session remotely and drops the cached row plus its
// discussion mark.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	ctx, span := r.tracer.Start(ctx, "session.delete",
		trace.WithAttributes(attribute.String("session.id", id)))
	defer span.End()

	if err := r.client.DeleteSession(ctx, id); err != nil {
		span.RecordError(err)
		return err
	}
	if err := r.Invalidate(ctx, id); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// Invalidate drops one cached session and its discussion listing mark.
func (r *SessionRepository) Invalidate(ctx context.Context, id string) error {
	if err := r.store.DeleteSession(ctx, id); err != nil {
		return err
	}
	return r.store.DeleteFetchMark(ctx, storage.SessionDiscussionsMark(id))
}

// InvalidateAll drops every cached session.
func (r *SessionRepository) InvalidateAll(ctx context.Context) error {
	return r.store.DeleteAllSessions(ctx)
}

func (r *SessionRepository) writeSession(ctx context.Context, session domain.Session, now time.Time) error {
	if err := r.store.UpsertSession(ctx, storage.SessionRow{Session: session, LastFetchedAt: now}); err != nil {
		return err
	}
	if discussions, ok := session.Discussions.Items(); ok {
		rows := make([]storage.DiscussionRow, 0, len(discussions))
		for _, discussion := range discussions {
			rows = append(rows, storage.DiscussionRow{Discussion: discussion, LastFetchedAt: now})
		}
		if err := r.store.ReplaceSessionDiscussions(ctx, session.ID, rows); err != nil {
			return err
		}
		if err := r.store.PutFetchMark(ctx, storage.SessionDiscussionsMark(session.ID), now); err != nil {
			return err
		}
	}
	return nil
}
