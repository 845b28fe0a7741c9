package library

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotCached is returned when a book is not in the local cache.
var ErrNotCached = errors.New("book not in local cache")

// Database is the local SQLite copy of the remote catalog.
type Database struct {
	db  *sql.DB
	fts bool

	upsertBookStmt *sql.Stmt
}

// NewDatabase opens (or creates) the SQLite database at dbPath, applies schema
// migrations, and prepares common statements.
func NewDatabase(dbPath string) (*Database, error) {
	// Ensure directory exists so first-run succeeds.
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	database := &Database{db: db, fts: ftsAvailable(db)}
	if err := database.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}
	return database, nil
}

// Close releases prepared statements and closes the DB.
func (d *Database) Close() error {
	if d.upsertBookStmt != nil {
		d.upsertBookStmt.Close()
	}
	return d.db.Close()
}

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

const schemaVersion = 1

func applyMigrations(db *sql.DB) error {
	// WAL improves write concurrency.
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return err
	}

	var current int
	_ = db.QueryRow(`SELECT value FROM meta WHERE key='schema_version';`).Scan(&current)
	if current >= schemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS books (
            id TEXT PRIMARY KEY,
            title TEXT NOT NULL,
            author TEXT NOT NULL,
            isbn TEXT NOT NULL DEFAULT '',
            category TEXT NOT NULL DEFAULT '',
            description TEXT NOT NULL DEFAULT '',
            cover_url TEXT NOT NULL DEFAULT '',
            year_published INTEGER NOT NULL DEFAULT 0,
            available_copies INTEGER NOT NULL DEFAULT 0,
            total_copies INTEGER NOT NULL DEFAULT 0,
            tags TEXT NOT NULL DEFAULT '',
            created_at DATETIME,
            synced_at DATETIME NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_books_synced ON books(synced_at);`,
		`INSERT INTO meta(key,value) VALUES('schema_version',?)
            ON CONFLICT(key) DO UPDATE SET value=excluded.value;`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt, schemaVersion); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	// FTS5 is only compiled in with the sqlite_fts5 build tag; search falls
	// back to LIKE without it.
	fts := []string{
		`CREATE VIRTUAL TABLE IF NOT EXISTS books_fts USING fts5(
            title, author, description, content='books', content_rowid='rowid'
        );`,
		`CREATE TRIGGER IF NOT EXISTS trg_books_ai AFTER INSERT ON books BEGIN
            INSERT INTO books_fts(rowid,title,author,description) VALUES(new.rowid,new.title,new.author,new.description);
        END;`,
		`CREATE TRIGGER IF NOT EXISTS trg_books_ad AFTER DELETE ON books BEGIN
            INSERT INTO books_fts(books_fts,rowid,title,author,description) VALUES('delete',old.rowid,old.title,old.author,old.description);
        END;`,
		`CREATE TRIGGER IF NOT EXISTS trg_books_au AFTER UPDATE ON books BEGIN
            INSERT INTO books_fts(books_fts,rowid,title,author,description) VALUES('delete',old.rowid,old.title,old.author,old.description);
            INSERT INTO books_fts(rowid,title,author,description) VALUES(new.rowid,new.title,new.author,new.description);
        END;`,
	}
	for _, stmt := range fts {
		if _, err := db.Exec(stmt); err != nil {
			if strings.Contains(err.Error(), "no such module") {
				return nil
			}
			return fmt.Errorf("create search index: %w", err)
		}
	}
	return nil
}

func ftsAvailable(db *sql.DB) bool {
	var name string
	err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='books_fts'`).Scan(&name)
	return err == nil
}

// ---------------------------------------------------------------------------
// Prepared statements
// ---------------------------------------------------------------------------

func (d *Database) prepareStatements() error {
	var err error
	d.upsertBookStmt, err = d.db.Prepare(`
        INSERT INTO books(id,title,author,isbn,category,description,cover_url,year_published,
                          available_copies,total_copies,tags,created_at,synced_at)
        VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)
        ON CONFLICT(id) DO UPDATE SET
            title=excluded.title, author=excluded.author, isbn=excluded.isbn,
            category=excluded.category, description=excluded.description,
            cover_url=excluded.cover_url, year_published=excluded.year_published,
            available_copies=excluded.available_copies, total_copies=excluded.total_copies,
            tags=excluded.tags, created_at=excluded.created_at, synced_at=excluded.synced_at`)
	return err
}

// ---------------------------------------------------------------------------
// Books
// ---------------------------------------------------------------------------

const bookColumns = `id,title,author,isbn,category,description,cover_url,year_published,
    available_copies,total_copies,tags,created_at`

// UpsertBooks stores books in one transaction, stamping them with syncedAt.
func (d *Database) UpsertBooks(books []Book, syncedAt time.Time) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt := tx.Stmt(d.upsertBookStmt)
	for _, b := range books {
		var created any
		if !b.CreatedAt.IsZero() {
			created = b.CreatedAt.UTC()
		}
		if _, err := stmt.Exec(b.ID, b.Title, b.Author, b.ISBN, b.Category, b.Description, b.CoverURL,
			b.YearPublished, b.AvailableCopies, b.TotalCopies, b.Tags, created, syncedAt.UTC()); err != nil {
			return fmt.Errorf("upsert book %s: %w", b.ID, err)
		}
	}
	return tx.Commit()
}

// PruneBefore drops books last synced before t, i.e. gone from the remote
// catalog since.
func (d *Database) PruneBefore(t time.Time) (int64, error) {
	res, err := d.db.Exec(`DELETE FROM books WHERE synced_at < ?`, t.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(r rowScanner) (*Book, error) {
	var (
		b       Book
		created sql.NullTime
	)
	if err := r.Scan(&b.ID, &b.Title, &b.Author, &b.ISBN, &b.Category, &b.Description, &b.CoverURL,
		&b.YearPublished, &b.AvailableCopies, &b.TotalCopies, &b.Tags, &created); err != nil {
		return nil, err
	}
	if created.Valid {
		b.CreatedAt = NewTimestamp(created.Time.UTC())
	}
	return &b, nil
}

func (d *Database) GetBook(id string) (*Book, error) {
	b, err := scanBook(d.db.QueryRow(`SELECT `+bookColumns+` FROM books WHERE id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotCached, id)
	}
	return b, err
}

// GetAllBooks returns every cached book ordered by title.
func (d *Database) GetAllBooks() ([]*Book, error) {
	return d.queryBooks(`SELECT ` + bookColumns + ` FROM books ORDER BY title COLLATE NOCASE, id`)
}

// SearchBooks matches q against title, author and description, through
// FTS5 when it is available.
func (d *Database) SearchBooks(q string) ([]*Book, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []*Book{}, nil
	}
	if d.fts {
		return d.queryBooks(`
            SELECT b.id,b.title,b.author,b.isbn,b.category,b.description,b.cover_url,b.year_published,
                   b.available_copies,b.total_copies,b.tags,b.created_at
            FROM books_fts fts
            JOIN books b ON b.rowid = fts.rowid
            WHERE books_fts MATCH ?
            ORDER BY rank;`, ftsQuery(q))
	}
	like := "%" + q + "%"
	return d.queryBooks(`SELECT `+bookColumns+` FROM books
        WHERE title LIKE ? OR author LIKE ? OR description LIKE ?
        ORDER BY title COLLATE NOCASE, id`, like, like, like)
}

// ftsQuery quotes each term so punctuation in user input is not parsed as
// FTS5 syntax.
func ftsQuery(q string) string {
	terms := strings.Fields(q)
	for i, t := range terms {
		terms[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(terms, " ")
}

func (d *Database) queryBooks(query string, args ...any) ([]*Book, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	books := []*Book{}
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

// CountBooks returns how many books are cached.
func (d *Database) CountBooks() (int, error) {
	var n int
	err := d.db.QueryRow(`SELECT COUNT(*) FROM books`).Scan(&n)
	return n, err
}

// ---------------------------------------------------------------------------
// Meta
// ---------------------------------------------------------------------------

const lastSyncKey = "last_sync"

func (d *Database) SetLastSync(t time.Time) error {
	_, err := d.db.Exec(`INSERT INTO meta(key,value) VALUES(?,?)
        ON CONFLICT(key) DO UPDATE SET value=excluded.value`, lastSyncKey, t.UTC().Format(time.RFC3339Nano))
	return err
}

// LastSync returns the time of the last completed sync, zero if none.
func (d *Database) LastSync() (time.Time, error) {
	var v string
	err := d.db.QueryRow(`SELECT value FROM meta WHERE key=?`, lastSyncKey).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339Nano, v)
}
