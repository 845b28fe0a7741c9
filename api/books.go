package api

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"vulnlib/library"
)

// BooksClient wraps /books and the nested reviews.
type BooksClient struct {
	c *Client
}

func bookQuery(q library.BookQuery) url.Values {
	v := url.Values{}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Category != "" {
		v.Set("category", q.Category)
	}
	if q.Author != "" {
		v.Set("author", q.Author)
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	return v
}

// List returns one page of the catalog. The server pages by 12.
func (b *BooksClient) List(ctx context.Context, q library.BookQuery) (*library.BookPage, error) {
	var page library.BookPage
	req := &Request{Query: bookQuery(q)}
	if err := b.c.Do(ctx, "/books", req, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Get returns a single book with its full detail.
func (b *BooksClient) Get(ctx context.Context, id string) (*library.Book, error) {
	var book library.Book
	if err := b.c.Do(ctx, "/books"+pathID(id), nil, &book); err != nil {
		return nil, err
	}
	return &book, nil
}

// Create adds a book. Librarian or admin only.
func (b *BooksClient) Create(ctx context.Context, in library.BookInput) (*library.Result, error) {
	var res library.Result
	if err := b.c.Do(ctx, "/books", &Request{Method: http.MethodPost, Body: in}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Update replaces the given fields of a book.
func (b *BooksClient) Update(ctx context.Context, id string, in library.BookInput) (*library.Result, error) {
	var res library.Result
	if err := b.c.Do(ctx, "/books"+pathID(id), &Request{Method: http.MethodPut, Body: in}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Delete removes a book.
func (b *BooksClient) Delete(ctx context.Context, id string) (*library.Result, error) {
	var res library.Result
	if err := b.c.Do(ctx, "/books"+pathID(id), &Request{Method: http.MethodDelete}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Reviews lists the reviews of a book.
func (b *BooksClient) Reviews(ctx context.Context, bookID string) ([]library.Review, error) {
	var env struct {
		Reviews []library.Review `json:"reviews"`
	}
	if err := b.c.Do(ctx, "/books"+pathID(bookID)+"/reviews", nil, &env); err != nil {
		return nil, err
	}
	return env.Reviews, nil
}

// AddReview posts a review of a book.
func (b *BooksClient) AddReview(ctx context.Context, bookID string, in library.ReviewInput) (*library.Result, error) {
	var res library.Result
	req := &Request{Method: http.MethodPost, Body: in}
	if err := b.c.Do(ctx, "/books"+pathID(bookID)+"/reviews", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Import uploads a CSV with title, author, isbn, category and description
// columns. notes end up in the audit log.
func (b *BooksClient) Import(ctx context.Context, filename string, csv io.Reader, notes string) (*library.Result, error) {
	var res library.Result
	up := &Upload{Field: "file", Filename: filename, Content: csv}
	if notes != "" {
		up.Fields = map[string]string{"notes": notes}
	}
	if err := b.c.Upload(ctx, "/books/import", up, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// UploadFile attaches a file (cover, digital copy) to a book.
func (b *BooksClient) UploadFile(ctx context.Context, bookID, filename string, content io.Reader) (*library.Result, error) {
	var res library.Result
	up := &Upload{Field: "file", Filename: filename, Content: content}
	if err := b.c.Upload(ctx, "/books"+pathID(bookID)+"/upload", up, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
