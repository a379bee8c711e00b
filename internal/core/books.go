package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/JonMunkholm/shelf/internal/airtable"
	"github.com/JonMunkholm/shelf/internal/airtable/client"
	"github.com/JonMunkholm/shelf/internal/logging"
	"github.com/JonMunkholm/shelf/internal/openlibrary"
	"golang.org/x/sync/errgroup"
)

// Table names the ISBN import writes to.
const (
	BooksTable   = "Books"
	AuthorsTable = "Authors"
)

// BookAuthor is an author linked to a newly added book.
type BookAuthor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AddBookByISBN looks the book up on OpenLibrary, links its authors
// (creating the missing ones) and stores it in the Books table.
// The returned record has its author field replaced by id/name pairs.
func (s *Service) AddBookByISBN(ctx context.Context, isbn string) (airtable.RawRecord, error) {
	if s.opts.Books == nil {
		return airtable.RawRecord{}, errors.New("book lookup is not configured")
	}
	if err := s.imports.Acquire(ctx); err != nil {
		return airtable.RawRecord{}, fmt.Errorf("add book: %w", err)
	}
	defer s.imports.Release()

	logger := logging.WithFields(ctx, "isbn", isbn)

	book, err := s.opts.Books.BookByISBN(ctx, isbn)
	if err != nil {
		return airtable.RawRecord{}, fmt.Errorf("add book: %w", err)
	}

	authors := s.findOrCreateAuthors(ctx, book.Authors)

	authorIDs := make([]string, 0, len(authors))
	for _, a := range authors {
		authorIDs = append(authorIDs, a.ID)
	}

	created, err := s.fetcher.CreateRecords(ctx, BooksTable, []map[string]any{bookFields(book, authorIDs, s.opts.CustomerID)})
	if err != nil {
		return airtable.RawRecord{}, fmt.Errorf("add book: %w", err)
	}
	if len(created) == 0 {
		return airtable.RawRecord{}, fmt.Errorf("add book: airtable returned no record")
	}

	rec := created[0]
	if rec.Fields == nil {
		rec.Fields = map[string]any{}
	}
	rec.Fields["author"] = authors

	logger.Info("book added", "record_id", rec.ID, "title", book.Title, "authors", len(authors))
	return rec, nil
}

func bookFields(book *openlibrary.Book, authorIDs []string, customerID string) map[string]any {
	fields := map[string]any{
		"title":        book.Title,
		"author":       authorIDs,
		"coverPhoto":   []map[string]string{{"url": book.Cover.Large}},
		"synopsis":     string(book.Description),
		"ISBN10":       first(book.Identifiers.ISBN10),
		"ISBN13":       first(book.Identifiers.ISBN13),
		"openlibrary":  first(book.Identifiers.OpenLibrary),
		"publish_date": book.PublishDate,
		"publishers":   book.PublisherNames(),
	}
	if book.NumberOfPages > 0 {
		fields["number_of_pages"] = book.NumberOfPages
	}
	if customerID != "" {
		fields["customer"] = []string{customerID}
	}
	return fields
}

// ImportStatus reports how many ISBN imports are running.
func (s *Service) ImportStatus() ImportLimiterStatus {
	return s.imports.Status()
}

// WaitForImports blocks until running imports finish or ctx is done.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.imports.WaitForDrain(ctx)
}

// findOrCreateAuthors resolves every author concurrently, keeping the book's
// author order. Authors that cannot be resolved are logged and left out.
func (s *Service) findOrCreateAuthors(ctx context.Context, refs []openlibrary.AuthorRef) []BookAuthor {
	results := make([]*BookAuthor, len(refs))

	var g errgroup.Group
	for i, ref := range refs {
		g.Go(func() error {
			a, err := s.findOrCreateAuthor(ctx, ref)
			if err != nil {
				logging.FromContext(ctx).Warn("author not linked", "author", ref.Name, "error", err)
				return nil
			}
			results[i] = &a
			return nil
		})
	}
	g.Wait()

	authors := make([]BookAuthor, 0, len(refs))
	for _, a := range results {
		if a != nil {
			authors = append(authors, *a)
		}
	}
	return authors
}

func (s *Service) findOrCreateAuthor(ctx context.Context, ref openlibrary.AuthorRef) (BookAuthor, error) {
	key := ref.Key()
	if key == "" {
		return BookAuthor{}, fmt.Errorf("author %q has no openlibrary key", ref.Name)
	}

	existing, err := s.fetcher.FindOne(ctx, AuthorsTable, client.FieldEquals("openlibrary_key", "/authors/"+key))
	if err == nil {
		return BookAuthor{ID: existing.ID, Name: fieldString(existing.Fields, "name")}, nil
	}
	if !errors.Is(err, client.ErrNotFound) {
		return BookAuthor{}, err
	}

	author, err := s.opts.Books.Author(ctx, key)
	if err != nil {
		return BookAuthor{}, err
	}

	photos := make([]map[string]string, 0, len(author.Photos))
	for _, p := range author.Photos {
		photos = append(photos, map[string]string{"url": p.URL})
	}

	created, err := s.fetcher.CreateRecords(ctx, AuthorsTable, []map[string]any{{
		"name":            author.Name,
		"photos":          photos,
		"bio":             author.Bio,
		"openlibrary_key": author.Key,
	}})
	if err != nil {
		return BookAuthor{}, err
	}
	if len(created) == 0 {
		return BookAuthor{}, fmt.Errorf("author %s: airtable returned no record", key)
	}

	return BookAuthor{ID: created[0].ID, Name: fieldString(created[0].Fields, "name")}, nil
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func fieldString(fields map[string]any, name string) string {
	v, _ := fields[name].(string)
	return v
}
