package repository

import (
	"context"
	"fmt"
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

type clubStore interface {
	storage.ClubStore
	storage.MembershipStore
	storage.SessionStore
	storage.FetchMarkStore
}

// ClubRepository serves clubs and their member rosters. Club fetches may
// arrive with expanded members or sessions; the write-through persists those
// child listings together with the club row so a later child read hits.
type ClubRepository struct {
	store  clubStore
	client remote.ClubClient
	policy cache.Policy
	ttl    time.Duration
	log    *zap.Logger
	tracer trace.Tracer
}

func NewClubRepository(store clubStore, client remote.ClubClient, policy cache.Policy, ttl time.Duration, log *zap.Logger) *ClubRepository {
	return &ClubRepository{
		store:  store,
		client: client,
		policy: ensurePolicy(policy),
		ttl:    ensureTTL(ttl, cache.KindClub),
		log:    ensureLogger(log),
		tracer: tracer(),
	}
}

func (r *ClubRepository) GetByID(ctx context.Context, id string) (domain.Club, error) {
	ctx, span := r.tracer.Start(ctx, "club.get_by_id",
		trace.WithAttributes(attribute.String("club.id", id)))
	defer span.End()

	club, result, err := getByID(ctx, r.policy, r.ttl, r.log, cache.KindClub, id,
		func(ctx context.Context) (domain.Club, time.Time, bool, error) {
			row, found, err := r.store.GetClub(ctx, id)
			return row.Club, row.LastFetchedAt, found, err
		},
		func(ctx context.Context) (domain.Club, error) {
			return r.client.FetchClub(ctx, id)
		},
		r.writeClub,
	)
	finishSpan(span, result, err)
	return club, err
}

func (r *ClubRepository) List(ctx context.Context) ([]domain.Club, error) {
	ctx, span := r.tracer.Start(ctx, "club.list")
	defer span.End()

	clubs, result, err := getList(ctx, r.policy, r.ttl, r.log, cache.KindClub, storage.ClubsMark,
		func(ctx context.Context) (time.Time, bool, error) {
			return r.store.FetchMark(ctx, storage.ClubsMark)
		},
		func(ctx context.Context) ([]domain.Club, error) {
			rows, err := r.store.ListClubs(ctx)
			if err != nil {
				return nil, err
			}
			return clubRowsToDomain(rows), nil
		},
		r.client.FetchClubs,
		func(ctx context.Context, clubs []domain.Club, now time.Time) error {
			return r.writeClubListing(ctx, storage.ClubsMark, r.store.ListClubs, clubs, now)
		},
	)
	finishSpan(span, result, err)
	return clubs, err
}

// ListForServer serves the clubs hosted by one Discord server.
func (r *ClubRepository) ListForServer(ctx context.Context, serverID string) ([]domain.Club, error) {
	ctx, span := r.tracer.Start(ctx, "club.list_for_server",
		trace.WithAttributes(attribute.String("server.id", serverID)))
	defer span.End()

	mark := storage.ServerClubsMark(serverID)
	readAll := func(ctx context.Context) ([]storage.ClubRow, error) {
		return r.store.ListClubsForServer(ctx, serverID)
	}
	clubs, result, err := getList(ctx, r.policy, r.ttl, r.log, cache.KindClub, mark,
		func(ctx context.Context) (time.Time, bool, error) {
			return r.store.FetchMark(ctx, mark)
		},
		func(ctx context.Context) ([]domain.Club, error) {
			rows, err := readAll(ctx)
			if err != nil {
				return nil, err
			}
			return clubRowsToDomain(rows), nil
		},
		func(ctx context.Context) ([]domain.Club, error) {
			return r.client.FetchClubsForServer(ctx, serverID)
		},
		func(ctx context.Context, clubs []domain.Club, now time.Time) error {
			return r.writeClubListing(ctx, mark, readAll, clubs, now)
		},
	)
	finishSpan(span, result, err)
	return clubs, err
}

// Members serves the member roster of one club, freshness keyed by the
// roster's own fetch mark rather than the club row's.
func (r *ClubRepository) Members(ctx context.Context, clubID string) ([]domain.Membership, error) {
	ctx, span := r.tracer.Start(ctx, "club.members",
		trace.WithAttributes(attribute.String("club.id", clubID)))
	defer span.End()

	mark := storage.ClubMembershipsMark(clubID)
	memberships, result, err := getList(ctx, r.policy, r.ttl, r.log, cache.KindMember, mark,
		func(ctx context.Context) (time.Time, bool, error) {
			return r.store.FetchMark(ctx, mark)
		},
		func(ctx context.Context) ([]domain.Membership, error) {
			rows, err := r.store.ListClubMemberships(ctx, clubID)
			if err != nil {
				return nil, err
			}
			return membershipRowsToDomain(rows), nil
		},
		func(ctx context.Context) ([]domain.Membership, error) {
			return r.client.FetchClubMembers(ctx, clubID)
		},
		func(ctx context.Context, memberships []domain.Membership, now time.Time) error {
			// Join rows reference the club row. When the club itself is not
			// cached yet the fetched roster is served without writing it
			// through; no mark is set, so the next read refetches.
			_, found, err := r.store.GetClub(ctx, clubID)
			if err != nil {
				return err
			}
			if !found {
				return nil
			}
			if err := r.store.ReplaceClubMemberships(ctx, clubID, membershipsToRows(memberships, now)); err != nil {
				return err
			}
			return r.store.PutFetchMark(ctx, mark, now)
		},
	)
	finishSpan(span, result, err)
	return memberships, err
}

// Create sends a new club to the backend and caches the authoritative result.
// The id is minted client-side so retries stay idempotent.
func (r *ClubRepository) Create(ctx context.Context, club domain.Club) (domain.Club, error) {
	ctx, span := r.tracer.Start(ctx, "club.create")
	defer span.End()

	if club.ID == "" {
		club.ID = uuid.NewString()
	}
	created, err := r.client.CreateClub(ctx, club)
	if err != nil {
		span.RecordError(err)
		return domain.Club{}, err
	}
	if err := r.writeClub(ctx, created, r.policy.Now()); err != nil {
		span.RecordError(err)
		return domain.Club{}, err
	}
	// Listing membership changed; the stale marks would hide the new club.
	if err := r.invalidateListings(ctx, created.ServerID); err != nil {
		span.RecordError(err)
		return domain.Club{}, err
	}
	return created, nil
}

// Update sends changed fields to the backend and caches the authoritative
// result.
func (r *ClubRepository) Update(ctx context.Context, club domain.Club) (domain.Club, error) {
	ctx, span := r.tracer.Start(ctx, "club.update",
		trace.WithAttributes(attribute.String("club.id", club.ID)))
	defer span.End()

	updated, err := r.client.UpdateClub(ctx, club)
	if err != nil {
		span.RecordError(err)
		return domain.Club{}, err
	}
	if err := r.writeClub(ctx, updated, r.policy.Now()); err != nil {
		span.RecordError(err)
		return domain.Club{}, err
	}
	return updated, nil
}

// Delete removes the club remotely, then drops the cached row and every
// child listing mark scoped to it. Join rows go with the row via cascade.
func (r *ClubRepository) Delete(ctx context.Context, id string) error {
	ctx, span := r.tracer.Start(ctx, "club.delete",
		trace.WithAttributes(attribute.String("club.id", id)))
	defer span.End()

	row, found, err := r.store.GetClub(ctx, id)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if err := r.client.DeleteClub(ctx, id); err != nil {
		span.RecordError(err)
		return err
	}
	if err := r.Invalidate(ctx, id); err != nil {
		span.RecordError(err)
		return err
	}
	var serverID *string
	if found {
		serverID = row.Club.ServerID
	}
	if err := r.invalidateListings(ctx, serverID); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// AddMember adds a member to the club remotely and invalidates the cached
// roster so the next roster read refetches it.
func (r *ClubRepository) AddMember(ctx context.Context, clubID, memberID string, role domain.ClubRole) error {
	ctx, span := r.tracer.Start(ctx, "club.add_member",
		trace.WithAttributes(attribute.String("club.id", clubID), attribute.String("member.id", memberID)))
	defer span.End()

	if err := r.client.AddMember(ctx, clubID, memberID, role); err != nil {
		span.RecordError(err)
		return err
	}
	return r.store.DeleteFetchMark(ctx, storage.ClubMembershipsMark(clubID))
}

// UpdateMemberRole changes one membership's role remotely and invalidates
// the cached roster.
func (r *ClubRepository) UpdateMemberRole(ctx context.Context, clubID, memberID string, role domain.ClubRole) error {
	ctx, span := r.tracer.Start(ctx, "club.update_member_role",
		trace.WithAttributes(attribute.String("club.id", clubID), attribute.String("member.id", memberID)))
	defer span.End()

	if err := r.client.UpdateMemberRole(ctx, clubID, memberID, role); err != nil {
		span.RecordError(err)
		return err
	}
	return r.store.DeleteFetchMark(ctx, storage.ClubMembershipsMark(clubID))
}

// RemoveMember removes a membership remotely, drops the cached join row, and
// invalidates the roster mark.
func (r *ClubRepository) RemoveMember(ctx context.Context, clubID, memberID string) error {
	ctx, span := r.tracer.Start(ctx, "club.remove_member",
		trace.WithAttributes(attribute.String("club.id", clubID), attribute.String("member.id", memberID)))
	defer span.End()

	if err := r.client.RemoveMember(ctx, clubID, memberID); err != nil {
		span.RecordError(err)
		return err
	}
	if err := r.store.DeleteClubMember(ctx, clubID, memberID); err != nil {
		span.RecordError(err)
		return err
	}
	return r.store.DeleteFetchMark(ctx, storage.ClubMembershipsMark(clubID))
}

// Invalidate drops one cached club and the listing marks scoped under it.
func (r *ClubRepository) Invalidate(ctx context.Context, id string) error {
	if err := r.store.DeleteClub(ctx, id); err != nil {
		return err
	}
	if err := r.store.DeleteFetchMark(ctx, storage.ClubMembershipsMark(id)); err != nil {
		return err
	}
	return r.store.DeleteFetchMark(ctx, storage.ClubSessionsMark(id))
}

// InvalidateAll drops every cached club and the collection mark. Join rows
// cascade away with their clubs.
func (r *ClubRepository) InvalidateAll(ctx context.Context) error {
	if err := r.store.DeleteAllClubs(ctx); err != nil {
		return err
	}
	return r.store.DeleteFetchMark(ctx, storage.ClubsMark)
}

func (r *ClubRepository) invalidateListings(ctx context.Context, serverID *string) error {
	if err := r.store.DeleteFetchMark(ctx, storage.ClubsMark); err != nil {
		return err
	}
	if serverID == nil {
		return nil
	}
	return r.store.DeleteFetchMark(ctx, storage.ServerClubsMark(*serverID))
}

// writeClub persists the club row and any child listings the fetch expanded.
// An unexpanded relation leaves the cached children untouched.
func (r *ClubRepository) writeClub(ctx context.Context, club domain.Club, now time.Time) error {
	if err := r.store.UpsertClub(ctx, storage.ClubRow{Club: club, LastFetchedAt: now}); err != nil {
		return err
	}
	if memberships, ok := club.Members.Items(); ok {
		if err := r.store.ReplaceClubMemberships(ctx, club.ID, membershipsToRows(memberships, now)); err != nil {
			return err
		}
		if err := r.store.PutFetchMark(ctx, storage.ClubMembershipsMark(club.ID), now); err != nil {
			return err
		}
	}
	if sessions, ok := club.Sessions.Items(); ok {
		rows := make([]storage.SessionRow, 0, len(sessions))
		for _, session := range sessions {
			rows = append(rows, storage.SessionRow{Session: session, LastFetchedAt: now})
		}
		if err := r.store.ReplaceClubSessions(ctx, club.ID, rows); err != nil {
			return err
		}
		if err := r.store.PutFetchMark(ctx, storage.ClubSessionsMark(club.ID), now); err != nil {
			return err
		}
	}
	return nil
}

func (r *ClubRepository) writeClubListing(
	ctx context.Context,
	mark string,
	readAll func(context.Context) ([]storage.ClubRow, error),
	clubs []domain.Club,
	now time.Time,
) error {
	fetched := make(map[string]bool, len(clubs))
	for _, club := range clubs {
		fetched[club.ID] = true
		if err := r.writeClub(ctx, club, now); err != nil {
			return err
		}
	}

	existing, err := readAll(ctx)
	if err != nil {
		return err
	}
	for _, row := range existing {
		if fetched[row.Club.ID] {
			continue
		}
		if err := r.Invalidate(ctx, row.Club.ID); err != nil {
			return fmt.Errorf("prune club %s: %w", row.Club.ID, err)
		}
	}
	return r.store.PutFetchMark(ctx, mark, now)
}

func clubRowsToDomain(rows []storage.ClubRow) []domain.Club {
	clubs := make([]domain.Club, 0, len(rows))
	for _, row := range rows {
		clubs = append(clubs, row.Club)
	}
	return clubs
}

func membershipRowsToDomain(rows []storage.MembershipRow) []domain.Membership {
	memberships := make([]domain.Membership, 0, len(rows))
	for _, row := range rows {
		memberships = append(memberships, domain.Membership{Member: row.Member.Member, Role: row.Role})
	}
	return memberships
}

func membershipsToRows(memberships []domain.Membership, now time.Time) []storage.MembershipRow {
	rows := make([]storage.MembershipRow, 0, len(memberships))
	for _, membership := range memberships {
		rows = append(rows, storage.MembershipRow{
			Member: storage.MemberRow{Member: membership.Member, LastFetchedAt: now},
			Role:   membership.Role,
		})
	}
	return rows
}
