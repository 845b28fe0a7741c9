package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"vulnlib/api"
	"vulnlib/config"
	"vulnlib/library"
	"vulnlib/session"
)

func main() {
	var upload bool
	var notes string
	cmd := &cobra.Command{
		Use:           "import_books [FILE.csv]",
		Short:         "Load books from a CSV into the VulnLib catalog",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "books.csv"
			if len(args) == 1 {
				path = args[0]
			}
			client, err := newClient()
			if err != nil {
				return err
			}
			if upload {
				return uploadFile(cmd.Context(), client, path, notes)
			}
			return importRows(cmd.Context(), client, path)
		},
	}
	cmd.Flags().BoolVar(&upload, "upload", false, "send the file to the server's bulk import instead of creating books one by one")
	cmd.Flags().StringVar(&notes, "notes", "", "note recorded with a bulk import")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newClient builds an API client that reuses the CLI's saved session.
func newClient() (*api.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	zerolog.TimeFieldFormat = time.RFC3339
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(cfg.LogLevel).With().Timestamp().Logger()

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client, err := api.New(cfg.BaseURL, api.WithPrefix(cfg.APIPrefix), api.WithCookieJar(jar), api.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	if err := restoreSession(session.NewStore(cfg.SessionFile, cfg.SessionKey), jar, client.BaseURL()); err != nil {
		return nil, err
	}
	return client, nil
}

// restoreSession loads the cookies the CLI saved for server into jar.
func restoreSession(store *session.Store, jar http.CookieJar, server *url.URL) error {
	sess, err := store.LoadFor(server)
	switch {
	case errors.Is(err, session.ErrNoSession):
		return errors.New("not logged in; run `vulnlib login` as a librarian first")
	case errors.Is(err, session.ErrOtherServer):
		return fmt.Errorf("%w; run `vulnlib login --url %s` first", err, server)
	case err != nil:
		return err
	}
	sess.Restore(jar, server)
	return nil
}

func uploadFile(ctx context.Context, client *api.Client, path, notes string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	fmt.Printf("Uploading %s...\n", path)
	res, err := client.Books.Import(ctx, filepath.Base(path), f, notes)
	if err != nil {
		return err
	}
	fmt.Println(res.Message)
	return nil
}

// importRows creates one book per CSV row. The header names the columns;
// title and author are required, isbn, category, description, year and
// copies are optional.
func importRows(ctx context.Context, client *api.Client, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := readBooks(f)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	fmt.Printf("Importing %d books from %s...\n", len(rows), path)

	successCount := 0
	errorCount := 0
	for _, in := range rows {
		fmt.Printf("Importing: %s by %s... ", in.Title, in.Author)
		res, err := client.Books.Create(ctx, in)
		if err != nil {
			fmt.Printf("ERROR - %v\n", err)
			errorCount++
			continue
		}
		fmt.Printf("SUCCESS (ID: %s)\n", res.BookID)
		successCount++
	}

	fmt.Printf("\nImport complete!\n")
	fmt.Printf("Successfully imported: %d books\n", successCount)
	fmt.Printf("Errors: %d\n", errorCount)
	if errorCount > 0 {
		return fmt.Errorf("%d books failed", errorCount)
	}
	return nil
}

func readBooks(r io.Reader) ([]library.BookInput, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := map[string]int{}
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"title", "author"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("missing %q column", required)
		}
	}

	var books []library.BookInput
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		get := func(name string) string {
			if i, ok := cols[name]; ok && i < len(rec) {
				return strings.TrimSpace(rec[i])
			}
			return ""
		}
		in := library.BookInput{
			Title:       get("title"),
			Author:      get("author"),
			ISBN:        get("isbn"),
			Category:    get("category"),
			Description: get("description"),
		}
		if in.Title == "" || in.Author == "" {
			return nil, fmt.Errorf("line %d: title and author are required", line)
		}
		if v := get("year"); v != "" {
			if in.YearPublished, err = strconv.Atoi(v); err != nil {
				return nil, fmt.Errorf("line %d: bad year %q", line, v)
			}
		}
		copies := 1
		if v := get("copies"); v != "" {
			if copies, err = strconv.Atoi(v); err != nil || copies < 1 {
				return nil, fmt.Errorf("line %d: bad copies %q", line, v)
			}
		}
		in.SetCopies(copies)
		books = append(books, in)
	}
	return books, nil
}
