// Package repository implements cache-aside access to every entity kind.
//
// A repository is the single source a caller uses to obtain an entity; it
// hides whether the data came from the persisted cache or the backend. Reads
// check the cache, judge freshness, fetch remotely on miss or staleness,
// write the result through, and fall back to stale rows when the backend is
// unreachable. Writes are never cached: they go straight to the backend and
// invalidate affected rows so the next read refetches.
package repository

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/louisbranch/bookclub/internal/cache"
)

const tracerName = "github.com/louisbranch/bookclub/internal/repository"

// outcome labels how a read was satisfied, for spans and debug logs.
type outcome string

const (
	outcomeHit           outcome = "hit"
	outcomeRefreshed     outcome = "refreshed"
	outcomeStaleFallback outcome = "stale_fallback"
)

func tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

func finishSpan(span trace.Span, result outcome, err error) {
	if err != nil {
		span.RecordError(err)
		return
	}
	span.SetAttributes(attribute.String("cache.outcome", string(result)))
}

// getByID is the cache-aside read for a single row. The write-through only
// runs after fetch returned a fully mapped entity, so a cancelled or failed
// fetch never leaves a partial row behind.
func getByID[E any](
	ctx context.Context,
	policy cache.Policy,
	ttl time.Duration,
	log *zap.Logger,
	kind cache.Kind,
	id string,
	read func(context.Context) (E, time.Time, bool, error),
	fetch func(context.Context) (E, error),
	write func(context.Context, E, time.Time) error,
) (E, outcome, error) {
	var zero E

	cached, fetchedAt, found, err := read(ctx)
	if err != nil {
		return zero, "", fmt.Errorf("read %s cache: %w", kind, err)
	}
	if found && policy.Fresh(&fetchedAt, ttl) {
		log.Debug("serving fresh cached row",
			zap.String("kind", string(kind)),
			zap.String("id", id))
		return cached, outcomeHit, nil
	}

	fetched, err := fetch(ctx)
	if err != nil {
		if found {
			// Freshness is a performance concern, not a correctness gate:
			// a stale row beats an error when the backend is unreachable.
			log.Debug("serving stale row after remote failure",
				zap.String("kind", string(kind)),
				zap.String("id", id),
				zap.Error(err))
			return cached, outcomeStaleFallback, nil
		}
		return zero, "", err
	}

	now := policy.Now()
	if err := write(ctx, fetched, now); err != nil {
		return zero, "", fmt.Errorf("write %s through: %w", kind, err)
	}
	log.Debug("refreshed row from remote",
		zap.String("kind", string(kind)),
		zap.String("id", id),
		zap.Bool("was_cached", found))
	return fetched, outcomeRefreshed, nil
}

// getList is the cache-aside read for a listing. The fetch mark carries the
// listing's own freshness, which also keeps "loaded, empty" distinct from
// "never fetched".
func getList[E any](
	ctx context.Context,
	policy cache.Policy,
	ttl time.Duration,
	log *zap.Logger,
	kind cache.Kind,
	markKey string,
	mark func(context.Context) (time.Time, bool, error),
	readAll func(context.Context) ([]E, error),
	fetchAll func(context.Context) ([]E, error),
	write func(context.Context, []E, time.Time) error,
) ([]E, outcome, error) {
	markedAt, found, err := mark(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("read %s listing mark: %w", kind, err)
	}
	if found && policy.Fresh(&markedAt, ttl) {
		cached, err := readAll(ctx)
		if err != nil {
			return nil, "", fmt.Errorf("read %s listing cache: %w", kind, err)
		}
		log.Debug("serving fresh cached listing",
			zap.String("kind", string(kind)),
			zap.String("mark", markKey))
		return cached, outcomeHit, nil
	}

	fetched, err := fetchAll(ctx)
	if err != nil {
		if found {
			cached, readErr := readAll(ctx)
			if readErr != nil {
				return nil, "", fmt.Errorf("read %s listing cache: %w", kind, readErr)
			}
			log.Debug("serving stale listing after remote failure",
				zap.String("kind", string(kind)),
				zap.String("mark", markKey),
				zap.Error(err))
			return cached, outcomeStaleFallback, nil
		}
		return nil, "", err
	}

	now := policy.Now()
	if err := write(ctx, fetched, now); err != nil {
		return nil, "", fmt.Errorf("write %s listing through: %w", kind, err)
	}
	log.Debug("refreshed listing from remote",
		zap.String("kind", string(kind)),
		zap.String("mark", markKey),
		zap.Bool("was_cached", found))
	return fetched, outcomeRefreshed, nil
}

func ensureLogger(log *zap.Logger) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log
}

func ensurePolicy(policy cache.Policy) cache.Policy {
	if policy.Now == nil {
		policy.Now = time.Now
	}
	return policy
}

func ensureTTL(ttl time.Duration, kind cache.Kind) time.Duration {
	if ttl <= 0 {
		return cache.TTLFor(kind)
	}
	return ttl
}
