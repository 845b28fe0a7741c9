package library

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
)

// BookSource pages through the remote catalog. *api.BooksClient satisfies it.
type BookSource interface {
	List(ctx context.Context, q BookQuery) (*BookPage, error)
}

// DefaultLookupCacheSize bounds the in-memory book lookups.
const DefaultLookupCacheSize = 256

// CatalogManager is a thin façade over the Database, keeping CLI code simple.
// Lookups go through an LRU in front of SQLite.
type CatalogManager struct {
	db     *Database
	lookup *lru.Cache[string, *Book]
	Log    zerolog.Logger
}

// NewCatalogManager opens (or creates) the SQLite cache at dbPath.
func NewCatalogManager(dbPath string, cacheSize int) (*CatalogManager, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultLookupCacheSize
	}
	db, err := NewDatabase(dbPath)
	if err != nil {
		return nil, err
	}
	cache, err := lru.New[string, *Book](cacheSize)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create lookup cache: %w", err)
	}
	return &CatalogManager{db: db, lookup: cache, Log: zerolog.Nop()}, nil
}

// Close closes the underlying database.
func (cm *CatalogManager) Close() error { return cm.db.Close() }

// SyncStats summarises one Sync run.
type SyncStats struct {
	Pages  int
	Books  int
	Pruned int64
	At     time.Time
}

// Sync copies every page matching q into the cache. An unfiltered sync also
// prunes books that disappeared from the remote catalog.
func (cm *CatalogManager) Sync(ctx context.Context, src BookSource, q BookQuery) (SyncStats, error) {
	stats := SyncStats{At: time.Now().UTC()}
	q.Page = 1
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		page, err := src.List(ctx, q)
		if err != nil {
			return stats, fmt.Errorf("fetch page %d: %w", q.Page, err)
		}
		if err := cm.db.UpsertBooks(page.Books, stats.At); err != nil {
			return stats, err
		}
		stats.Pages++
		stats.Books += len(page.Books)
		cm.Log.Debug().Int("page", q.Page).Int("pages", page.Pages).Int("books", len(page.Books)).Msg("synced page")

		if q.Page >= page.Pages || len(page.Books) == 0 {
			break
		}
		q.Page++
	}

	if q.Search == "" && q.Category == "" && q.Author == "" {
		pruned, err := cm.db.PruneBefore(stats.At)
		if err != nil {
			return stats, fmt.Errorf("prune stale books: %w", err)
		}
		stats.Pruned = pruned
	}
	if err := cm.db.SetLastSync(stats.At); err != nil {
		return stats, err
	}
	cm.lookup.Purge()
	cm.Log.Info().Int("books", stats.Books).Int("pages", stats.Pages).Int64("pruned", stats.Pruned).Msg("catalog synced")
	return stats, nil
}

// ------------------ Book helpers ------------------

// GetBook returns a cached book, ErrNotCached when it was never synced.
func (cm *CatalogManager) GetBook(id string) (*Book, error) {
	if b, ok := cm.lookup.Get(id); ok {
		return b, nil
	}
	b, err := cm.db.GetBook(id)
	if err != nil {
		return nil, err
	}
	cm.lookup.Add(id, b)
	return b, nil
}

func (cm *CatalogManager) GetAllBooks() ([]*Book, error) { return cm.db.GetAllBooks() }

func (cm *CatalogManager) SearchBooks(q string) ([]*Book, error) { return cm.db.SearchBooks(q) }

func (cm *CatalogManager) CountBooks() (int, error) { return cm.db.CountBooks() }

func (cm *CatalogManager) LastSync() (time.Time, error) { return cm.db.LastSync() }

// ------------------ Utilities ------------------

// Paginate slices books into the page-th window of size items.
func Paginate(books []*Book, page, size int) ([]*Book, PageState) {
	if size <= 0 {
		size = len(books)
	}
	total := 0
	if size > 0 {
		total = (len(books) + size - 1) / size
	}
	if page < 1 {
		page = 1
	}
	if total > 0 && page > total {
		page = total
	}
	start := (page - 1) * size
	if start >= len(books) {
		return []*Book{}, PageState{Current: page, Total: total}
	}
	end := start + size
	if end > len(books) {
		end = len(books)
	}
	return books[start:end], PageState{Current: page, Total: total}
}

// PrettyBook formats a book for lists.
func PrettyBook(b *Book) string {
	return fmt.Sprintf("%-36s %-30.30s %-25.25s %3d/%-3d", b.ID, b.Title, b.Author, b.AvailableCopies, b.TotalCopies)
}
