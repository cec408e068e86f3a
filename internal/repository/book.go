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

type bookStore interface {
	storage.BookStore
	storage.FetchMarkStore
}

// BookRepository serves the book catalog. Books are immutable once created,
// which is why the catalog carries the longest TTL.
type BookRepository struct {
	store  bookStore
	client remote.BookClient
	policy cache.Policy
	ttl    time.Duration
	log    *zap.Logger
	tracer trace.Tracer
}

func NewBookRepository(store bookStore, client remote.BookClient, policy cache.Policy, ttl time.Duration, log *zap.Logger) *BookRepository {
	return &BookRepository{
		store:  store,
		client: client,
		policy: ensurePolicy(policy),
		ttl:    ensureTTL(ttl, cache.KindBook),
		log:    ensureLogger(log),
		tracer: tracer(),
	}
}

func (r *BookRepository) GetByID(ctx context.Context, id string) (domain.Book, error) {
	ctx, span := r.tracer.Start(ctx, "book.get_by_id",
		trace.WithAttributes(attribute.String("book.id", id)))
	defer span.End()

	book, result, err := getByID(ctx, r.policy, r.ttl, r.log, cache.KindBook, id,
		func(ctx context.Context) (domain.Book, time.Time, bool, error) {
			row, found, err := r.store.GetBook(ctx, id)
			return row.Book, row.LastFetchedAt, found, err
		},
		func(ctx context.Context) (domain.Book, error) {
			return r.client.FetchBook(ctx, id)
		},
		func(ctx context.Context, book domain.Book, now time.Time) error {
			return r.store.UpsertBook(ctx, storage.BookRow{Book: book, LastFetchedAt: now})
		},
	)
	finishSpan(span, result, err)
	return book, err
}

func (r *BookRepository) List(ctx context.Context) ([]domain.Book, error) {
	ctx, span := r.tracer.Start(ctx, "book.list")
	defer span.End()

	books, result, err := getList(ctx, r.policy, r.ttl, r.log, cache.KindBook, storage.BooksMark,
		func(ctx context.Context) (time.Time, bool, error) {
			return r.store.FetchMark(ctx, storage.BooksMark)
		},
		func(ctx context.Context) ([]domain.Book, error) {
			rows, err := r.store.ListBooks(ctx)
			if err != nil {
				return nil, err
			}
			books := make([]domain.Book, 0, len(rows))
			for _, row := range rows {
				books = append(books, row.Book)
			}
			return books, nil
		},
		r.client.FetchBooks,
		r.writeBookListing,
	)
	finishSpan(span, result, err)
	return books, err
}

// Create adds a book to the catalog remotely and caches the authoritative
// result.
func (r *BookRepository) Create(ctx context.Context, book domain.Book) (domain.Book, error) {
	ctx, span := r.tracer.Start(ctx, "book.create")
	defer span.End()

	if book.ID == "" {
		book.ID = uuid.NewString()
	}
	created, err := r.client.CreateBook(ctx, book)
	if err != nil {
		span.RecordError(err)
		return domain.Book{}, err
	}
	row := storage.BookRow{Book: created, LastFetchedAt: r.policy.Now()}
	if err := r.store.UpsertBook(ctx, row); err != nil {
		span.RecordError(err)
		return domain.Book{}, err
	}
	if err := r.store.DeleteFetchMark(ctx, storage.BooksMark); err != nil {
		span.RecordError(err)
		return domain.Book{}, err
	}
	return created, nil
}

// Invalidate drops one cached book so the next read refetches it.
func (r *BookRepository) Invalidate(ctx context.Context, id string) error {
	return r.store.DeleteBook(ctx, id)
}

// InvalidateAll drops the whole cached catalog and its listing mark.
func (r *BookRepository) InvalidateAll(ctx context.Context) error {
	if err := r.store.DeleteAllBooks(ctx); err != nil {
		return err
	}
	return r.store.DeleteFetchMark(ctx, storage.BooksMark)
}

func (r *BookRepository) writeBookListing(ctx context.Context, books []domain.Book, now time.Time) error {
	fetched := make(map[string]bool, len(books))
	rows := make([]storage.BookRow, 0, len(books))
	for _, book := range books {
		fetched[book.ID] = true
		rows = append(rows, storage.BookRow{Book: book, LastFetchedAt: now})
	}
	if err := r.store.UpsertBooks(ctx, rows); err != nil {
		return err
	}

	existing, err := r.store.ListBooks(ctx)
	if err != nil {
		return err
	}
	for _, row := range existing {
		if fetched[row.Book.ID] {
			continue
		}
		if err := r.store.DeleteBook(ctx, row.Book.ID); err != nil {
			return fmt.Errorf("prune book %s: %w", row.Book.ID, err)
		}
	}
	return r.store.PutFetchMark(ctx, storage.BooksMark, now)
}
