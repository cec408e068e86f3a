package repository

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/louisbranch/bookclub/internal/cache"
	"github.com/louisbranch/bookclub/internal/domain"
	"github.com/louisbranch/bookclub/internal/remote"
	"github.com/louisbranch/bookclub/internal/storage"
)

type memberStore interface {
	storage.MemberStore
	storage.FetchMarkStore
}

// MemberRepository serves member profiles. Rosters are the club repository's
// concern; this one deals in individual members only.
type MemberRepository struct {
	store  memberStore
	client remote.MemberClient
	policy cache.Policy
	ttl    time.Duration
	log    *zap.Logger
	tracer trace.Tracer
}

func NewMemberRepository(store memberStore, client remote.MemberClient, policy cache.Policy, ttl time.Duration, log *zap.Logger) *MemberRepository {
	return &MemberRepository{
		store:  store,
		client: client,
		policy: ensurePolicy(policy),
		ttl:    ensureTTL(ttl, cache.KindMember),
		log:    ensureLogger(log),
		tracer: tracer(),
	}
}

func (r *MemberRepository) GetByID(ctx context.Context, id string) (domain.Member, error) {
	ctx, span := r.tracer.Start(ctx, "member.get_by_id",
		trace.WithAttributes(attribute.String("member.id", id)))
	defer span.End()

	member, result, err := getByID(ctx, r.policy, r.ttl, r.log, cache.KindMember, id,
		func(ctx context.Context) (domain.Member, time.Time, bool, error) {
			row, found, err := r.store.GetMember(ctx, id)
			return row.Member, row.LastFetchedAt, found, err
		},
		func(ctx context.Context) (domain.Member, error) {
			return r.client.FetchMember(ctx, id)
		},
		func(ctx context.Context, member domain.Member, now time.Time) error {
			return r.store.UpsertMember(ctx, storage.MemberRow{Member: member, LastFetchedAt: now})
		},
	)
	finishSpan(span, result, err)
	return member, err
}

// Update sends the changed profile to the backend and caches the
// authoritative result. Roster reads join against the member row, so the
// update is visible to cached rosters without touching their marks.
func (r *MemberRepository) Update(ctx context.Context, member domain.Member) (domain.Member, error) {
	ctx, span := r.tracer.Start(ctx, "member.update",
		trace.WithAttributes(attribute.String("member.id", member.ID)))
	defer span.End()

	updated, err := r.client.UpdateMember(ctx, member)
	if err != nil {
		span.RecordError(err)
		return domain.Member{}, err
	}
	row := storage.MemberRow{Member: updated, LastFetchedAt: r.policy.Now()}
	if err := r.store.UpsertMember(ctx, row); err != nil {
		span.RecordError(err)
		return domain.Member{}, err
	}
	return updated, nil
}

// Delete removes the member remotely and drops the cached row. Join rows in
// any club roster cascade away with it.
func (r *MemberRepository) Delete(ctx context.Context, id string) error {
	ctx, span := r.tracer.Start(ctx, "member.delete",
		trace.WithAttributes(attribute.String("member.id", id)))
	defer span.End()

	if err := r.client.DeleteMember(ctx, id); err != nil {
		span.RecordError(err)
		return err
	}
	if err := r.store.DeleteMember(ctx, id); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// Invalidate drops one cached member so the next read refetches it.
func (r *MemberRepository) Invalidate(ctx context.Context, id string) error {
	return r.store.DeleteMember(ctx, id)
}

// InvalidateAll drops every cached member.
func (r *MemberRepository) InvalidateAll(ctx context.Context) error {
	return r.store.DeleteAllMembers(ctx)
}
