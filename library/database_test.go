package library

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func tempDB(t *testing.T) *Database {
	t.Helper()
	dir := t.TempDir()
	db, err := NewDatabase(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("new db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleBooks() []Book {
	return []Book{
		{ID: "b1", Title: "Dune", Author: "Frank Herbert", Category: "Science Fiction", Description: "Spice and sand", AvailableCopies: 1, TotalCopies: 3},
		{ID: "b2", Title: "Emma", Author: "Jane Austen", Category: "Classic", AvailableCopies: 0, TotalCopies: 1},
		{ID: "b3", Title: "Neuromancer", Author: "William Gibson", Category: "Science Fiction", Description: "Cyberspace", AvailableCopies: 2, TotalCopies: 2},
	}
}

func TestUpsertAndGetBook(t *testing.T) {
	db := tempDB(t)
	created := NewTimestamp(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	books := sampleBooks()
	books[0].CreatedAt = created

	if err := db.UpsertBooks(books, time.Now()); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	b, err := db.GetBook("b1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if b.Title != "Dune" || b.TotalCopies != 3 || b.Category != "Science Fiction" {
		t.Fatalf("unexpected book: %+v", b)
	}
	if !b.CreatedAt.Equal(created.Time) {
		t.Fatalf("created_at = %v, want %v", b.CreatedAt, created)
	}

	// Second upsert updates in place.
	books[0].AvailableCopies = 0
	if err := db.UpsertBooks(books[:1], time.Now()); err != nil {
		t.Fatalf("upsert again: %v", err)
	}
	b, _ = db.GetBook("b1")
	if b.AvailableCopies != 0 {
		t.Fatalf("availability not updated: %d", b.AvailableCopies)
	}
	if n, _ := db.CountBooks(); n != 3 {
		t.Fatalf("want 3 books, got %d", n)
	}
}

func TestGetMissingBook(t *testing.T) {
	db := tempDB(t)
	_, err := db.GetBook("nope")
	if !errors.Is(err, ErrNotCached) {
		t.Fatalf("want ErrNotCached, got %v", err)
	}
}

func TestSearchBooks(t *testing.T) {
	db := tempDB(t)
	if err := db.UpsertBooks(sampleBooks(), time.Now()); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	tests := []struct {
		query string
		want  int
	}{
		{"Herbert", 1},
		{"cyberspace", 1},
		{"Emma", 1},
		{"   ", 0},
		{"tolkien", 0},
	}
	for _, tt := range tests {
		res, err := db.SearchBooks(tt.query)
		if err != nil {
			t.Fatalf("search %q: %v", tt.query, err)
		}
		if len(res) != tt.want {
			t.Errorf("search %q: want %d results, got %d", tt.query, tt.want, len(res))
		}
	}
}

func TestSearchSurvivesPunctuation(t *testing.T) {
	db := tempDB(t)
	if err := db.UpsertBooks(sampleBooks(), time.Now()); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, err := db.SearchBooks(`dune" OR (`); err != nil {
		t.Fatalf("search with punctuation: %v", err)
	}
}

func TestPruneBefore(t *testing.T) {
	db := tempDB(t)
	old := time.Now().Add(-time.Hour)
	if err := db.UpsertBooks(sampleBooks(), old); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	now := time.Now()
	if err := db.UpsertBooks(sampleBooks()[:1], now); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	n, err := db.PruneBefore(now)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 2 {
		t.Fatalf("want 2 pruned, got %d", n)
	}
	all, _ := db.GetAllBooks()
	if len(all) != 1 || all[0].ID != "b1" {
		t.Fatalf("unexpected survivors: %v", all)
	}
}

func TestLastSync(t *testing.T) {
	db := tempDB(t)
	ts, err := db.LastSync()
	if err != nil || !ts.IsZero() {
		t.Fatalf("fresh db: %v %v", ts, err)
	}
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	if err := db.SetLastSync(at); err != nil {
		t.Fatalf("set: %v", err)
	}
	ts, err = db.LastSync()
	if err != nil || !ts.Equal(at) {
		t.Fatalf("got %v %v", ts, err)
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	db, err := NewDatabase(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := db.UpsertBooks(sampleBooks(), time.Now()); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	db.Close()

	db, err = NewDatabase(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()
	for _, id := range []string{"b1", "b2", "b3"} {
		if _, err := db.GetBook(id); err != nil {
			t.Fatalf("book %s lost after reopen: %v", id, err)
		}
	}
}
