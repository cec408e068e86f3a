package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/louisbranch/bookclub/internal/storage"
)

const bookColumns = "id, title, author, year, page_count, image_url, external_google_id, last_fetched_at"

// GetBook loads one cached book by id.
func (s *Store) GetBook(ctx context.Context, id string) (storage.BookRow, bool, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT "+bookColumns+" FROM books WHERE id = ?", id)

	book, err := scanBook(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return storage.BookRow{}, false, nil
		}
		return storage.BookRow{}, false, fmt.Errorf("get book: %w", err)
	}
	return book, true, nil
}

// ListBooks returns every cached book.
func (s *Store) ListBooks(ctx context.Context) ([]storage.BookRow, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		"SELECT "+bookColumns+" FROM books ORDER BY title, id")
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	books := []storage.BookRow{}
	for rows.Next() {
		book, err := scanBook(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, book)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate books: %w", err)
	}
	return books, nil
}

// UpsertBook writes one book row, replacing any prior row with its id.
func (s *Store) UpsertBook(ctx context.Context, row storage.BookRow) error {
	return upsertBook(ctx, s.sqlDB, row)
}

// UpsertBooks writes a batch of book rows atomically.
func (s *Store) UpsertBooks(ctx context.Context, rows []storage.BookRow) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, row := range rows {
			if err := upsertBook(ctx, tx, row); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteBook removes one cached book.
func (s *Store) DeleteBook(ctx context.Context, id string) error {
	if _, err := s.sqlDB.ExecContext(ctx, "DELETE FROM books WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	return nil
}

// DeleteAllBooks clears the book cache.
func (s *Store) DeleteAllBooks(ctx context.Context) error {
	if _, err := s.sqlDB.ExecContext(ctx, "DELETE FROM books"); err != nil {
		return fmt.Errorf("delete all books: %w", err)
	}
	return nil
}

func upsertBook(ctx context.Context, exec execContexter, row storage.BookRow) error {
	if err := requireFetchedAt("book", row.LastFetchedAt); err != nil {
		return err
	}
	_, err := exec.ExecContext(ctx, `
INSERT INTO books (id, title, author, year, page_count, image_url, external_google_id, last_fetched_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    title = excluded.title,
    author = excluded.author,
    year = excluded.year,
    page_count = excluded.page_count,
    image_url = excluded.image_url,
    external_google_id = excluded.external_google_id,
    last_fetched_at = excluded.last_fetched_at
`,
		row.Book.ID,
		row.Book.Title,
		row.Book.Author,
		row.Book.Year,
		row.Book.PageCount,
		nullString(row.Book.ImageURL),
		nullString(row.Book.ExternalGoogleID),
		toMillis(row.LastFetchedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert book %s: %w", row.Book.ID, err)
	}
	return nil
}

func scanBook(scan func(dest ...any) error) (storage.BookRow, error) {
	var row storage.BookRow
	var imageURL, externalGoogleID sql.NullString
	var lastFetchedAt int64
	if err := scan(
		&row.Book.ID,
		&row.Book.Title,
		&row.Book.Author,
		&row.Book.Year,
		&row.Book.PageCount,
		&imageURL,
		&externalGoogleID,
		&lastFetchedAt,
	); err != nil {
		return storage.BookRow{}, err
	}
	row.Book.ImageURL = stringPtr(imageURL)
	row.Book.ExternalGoogleID = stringPtr(externalGoogleID)
	row.LastFetchedAt = fromMillis(lastFetchedAt)
	return row, nil
}
