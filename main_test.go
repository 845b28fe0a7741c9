package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vulnlib/ui"
)

type cliResult struct {
	out, errOut string
	err         error
}

// runCLI runs one vulnlib invocation against srv with state kept in dir.
func runCLI(t *testing.T, srv *httptest.Server, dir, stdin string, args ...string) cliResult {
	t.Helper()
	return runCLIWithInput(t, srv, dir, strings.NewReader(stdin), args...)
}

func runCLIWithInput(t *testing.T, srv *httptest.Server, dir string, in io.Reader, args ...string) cliResult {
	t.Helper()
	t.Setenv("VULNLIB_URL", srv.URL)
	t.Setenv("VULNLIB_API_PREFIX", "/api")
	t.Setenv("VULNLIB_SESSION_FILE", filepath.Join(dir, "session.json"))
	t.Setenv("VULNLIB_SESSION_KEY", "")
	t.Setenv("VULNLIB_CACHE_DB", filepath.Join(dir, "cache.db"))
	t.Setenv("VULNLIB_TOAST_DURATION", "1h")
	t.Setenv("VULNLIB_PAGE_SIZE", "12")
	t.Setenv("LOG_LEVEL", "disabled")

	var out, errOut bytes.Buffer
	a := &app{out: &out, errOut: &errOut, in: in}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&errOut)
	err := root.ExecuteContext(context.Background())
	if err != nil {
		a.report(err)
	}
	a.toasts.Close()
	return cliResult{out: out.String(), errOut: errOut.String(), err: err}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func fakeBackend(t *testing.T) *httptest.Server {
	t.Helper()
	books := []map[string]any{
		{"id": "b1", "title": "Dune", "author": "Frank Herbert", "category": "Science Fiction", "available_copies": 1, "total_copies": 2},
		{"id": "b2", "title": "Emma", "author": "Jane Austen", "available_copies": 0, "total_copies": 1},
	}
	loggedIn := func(r *http.Request) bool {
		c, err := r.Cookie("session")
		return err == nil && c.Value == "abc"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var creds map[string]string
		json.NewDecoder(r.Body).Decode(&creds)
		if creds["password"] != "secret" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "Invalid password"})
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc", Path: "/"})
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Logged in successfully"})
	})
	mux.HandleFunc("POST /api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Logged out"})
	})
	mux.HandleFunc("GET /api/admin/users", func(w http.ResponseWriter, r *http.Request) {
		if !loggedIn(r) {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Authentication required"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"users": []map[string]any{
			{"id": "u0", "username": "root", "role": "admin"},
			{"id": "u1", "username": "alice", "role": "librarian"},
		}})
	})
	mux.HandleFunc("GET /api/users/{id}/loans", func(w http.ResponseWriter, r *http.Request) {
		if !loggedIn(r) {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Authentication required"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"loans": []map[string]any{
			{"id": "l1", "book_id": "b1", "book_title": "Dune", "status": "approved", "requested_at": "2024-03-01T10:00:00"},
		}})
	})
	mux.HandleFunc("GET /api/books", func(w http.ResponseWriter, r *http.Request) {
		found := books
		if q := strings.ToLower(r.URL.Query().Get("search")); q != "" {
			found = nil
			for _, b := range books {
				if strings.Contains(strings.ToLower(b["title"].(string)), q) {
					found = append(found, b)
				}
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"books": found, "total": len(found), "page": 1, "pages": 1})
	})
	mux.HandleFunc("GET /api/books/{id}", func(w http.ResponseWriter, r *http.Request) {
		switch r.PathValue("id") {
		case "b1":
			writeJSON(w, http.StatusOK, books[0])
		case "broken":
			w.Header().Set("Content-Type", "text/html")
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("<html><title>500 Internal Server Error</title></html>"))
		default:
			writeJSON(w, http.StatusNotFound, map[string]any{"message": "Book not found"})
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestBooksList(t *testing.T) {
	srv := fakeBackend(t)
	res := runCLI(t, srv, t.TempDir(), "", "books", "list")
	if res.err != nil {
		t.Fatalf("books list: %v\n%s", res.err, res.errOut)
	}
	for _, want := range []string{"Dune", "Science Fiction · Available · 1/2", "Emma", "Uncategorized · Not Available · 0/1"} {
		if !strings.Contains(res.out, want) {
			t.Errorf("output missing %q:\n%s", want, res.out)
		}
	}
	if strings.Contains(res.out, "Prev") || strings.Contains(res.out, "Next") {
		t.Errorf("single page should have no pagination:\n%s", res.out)
	}
}

func TestServerMessageIsShown(t *testing.T) {
	srv := fakeBackend(t)
	res := runCLI(t, srv, t.TempDir(), "", "books", "get", "missing")
	if res.err == nil {
		t.Fatalf("expected failure")
	}
	if !strings.Contains(res.errOut, "Error: Book not found") {
		t.Fatalf("server message not shown:\n%s", res.errOut)
	}
}

func TestUnexpectedErrorIsGeneric(t *testing.T) {
	srv := fakeBackend(t)
	res := runCLI(t, srv, t.TempDir(), "", "books", "get", "broken")
	if res.err == nil {
		t.Fatalf("expected failure")
	}
	if !strings.Contains(res.errOut, genericFailure) {
		t.Fatalf("generic notification missing:\n%s", res.errOut)
	}
}

func TestUsageErrors(t *testing.T) {
	srv := fakeBackend(t)
	res := runCLI(t, srv, t.TempDir(), "", "books", "get")
	if res.err == nil || !strings.Contains(res.errOut, "usage: vulnlib books get BOOK_ID") {
		t.Fatalf("unexpected result %v\n%s", res.err, res.errOut)
	}
	res = runCLI(t, srv, t.TempDir(), "", "books", "list", "--nope")
	if res.err == nil || strings.Contains(res.errOut, genericFailure) {
		t.Fatalf("flag error should be shown as is:\n%s", res.errOut)
	}
}

func TestLoginSessionPersists(t *testing.T) {
	srv := fakeBackend(t)
	dir := t.TempDir()

	res := runCLI(t, srv, dir, "wrong\n", "login", "-u", "alice")
	if res.err == nil || !strings.Contains(res.errOut, "Invalid password") {
		t.Fatalf("bad password should fail: %v\n%s", res.err, res.errOut)
	}

	res = runCLI(t, srv, dir, "secret\n", "login", "-u", "alice")
	if res.err != nil {
		t.Fatalf("login: %v\n%s", res.err, res.errOut)
	}
	if !strings.Contains(res.errOut, "Logged in successfully") {
		t.Fatalf("no success toast:\n%s", res.errOut)
	}

	res = runCLI(t, srv, dir, "", "whoami")
	if res.err != nil || !strings.Contains(res.out, "alice (role librarian, id u1)") {
		t.Fatalf("whoami: %v\n%s%s", res.err, res.out, res.errOut)
	}

	res = runCLI(t, srv, dir, "", "users", "loans")
	if res.err != nil || !strings.Contains(res.out, "Dune") {
		t.Fatalf("users loans with saved cookie: %v\n%s%s", res.err, res.out, res.errOut)
	}

	res = runCLI(t, srv, dir, "", "logout")
	if res.err != nil {
		t.Fatalf("logout: %v", res.err)
	}
	res = runCLI(t, srv, dir, "", "whoami")
	if res.err == nil || !strings.Contains(res.errOut, "not logged in") {
		t.Fatalf("whoami after logout: %v\n%s", res.err, res.errOut)
	}
}

func TestLoginFromPipedStdin(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.WriteString("alice\nsecret\n"); err != nil {
		t.Fatal(err)
	}
	w.Close()
	stdin := os.Stdin
	os.Stdin = r
	t.Cleanup(func() {
		os.Stdin = stdin
		r.Close()
	})

	srv := fakeBackend(t)
	dir := t.TempDir()
	res := runCLIWithInput(t, srv, dir, os.Stdin, "login")
	if res.err != nil {
		t.Fatalf("login: %v\n%s", res.err, res.errOut)
	}
	if !strings.Contains(res.errOut, "Username: ") || !strings.Contains(res.errOut, "Password: ") {
		t.Fatalf("prompts missing:\n%s", res.errOut)
	}
	res = runCLI(t, srv, dir, "", "whoami")
	if res.err != nil || !strings.Contains(res.out, "alice (role librarian") {
		t.Fatalf("whoami: %v\n%s%s", res.err, res.out, res.errOut)
	}
}

func TestURLFlagFixesBadEnv(t *testing.T) {
	srv := fakeBackend(t)
	t.Setenv("VULNLIB_URL", "localhost:5000")
	t.Setenv("VULNLIB_SESSION_FILE", filepath.Join(t.TempDir(), "session.json"))
	t.Setenv("LOG_LEVEL", "disabled")
	var out, errOut bytes.Buffer
	a := &app{out: &out, errOut: &errOut, in: strings.NewReader("")}
	root := newRootCmd(a)
	root.SetArgs([]string{"--url", srv.URL, "books", "list"})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("--url should override VULNLIB_URL: %v", err)
	}
	a.toasts.Close()
	if !strings.Contains(out.String(), "Dune") {
		t.Fatalf("listing missing:\n%s", out.String())
	}
}

// bookWriter accepts book creates and updates and keeps the last body.
func bookWriter(t *testing.T) (*httptest.Server, *map[string]any) {
	t.Helper()
	body := map[string]any{}
	mux := http.NewServeMux()
	save := func(w http.ResponseWriter, r *http.Request) {
		body = map[string]any{}
		json.NewDecoder(r.Body).Decode(&body)
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Saved", "book_id": "b9"})
	}
	mux.HandleFunc("POST /api/books", save)
	mux.HandleFunc("PUT /api/books/{id}", save)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &body
}

func TestBooksCreateSendsCopies(t *testing.T) {
	srv, body := bookWriter(t)
	res := runCLI(t, srv, t.TempDir(), "", "books", "create", "--title", "Dune", "--author", "Frank Herbert", "--copies", "3")
	if res.err != nil {
		t.Fatalf("create: %v\n%s", res.err, res.errOut)
	}
	if (*body)["total_copies"] != 3.0 || (*body)["available_copies"] != 3.0 {
		t.Fatalf("want 3/3 copies, sent %v", *body)
	}

	res = runCLI(t, srv, t.TempDir(), "", "books", "create", "--title", "Emma", "--author", "Jane Austen")
	if res.err != nil {
		t.Fatalf("create: %v\n%s", res.err, res.errOut)
	}
	if (*body)["total_copies"] != 1.0 || (*body)["available_copies"] != 1.0 {
		t.Fatalf("want 1/1 copies by default, sent %v", *body)
	}
}

func TestBooksUpdateZeroAvailable(t *testing.T) {
	srv, body := bookWriter(t)
	res := runCLI(t, srv, t.TempDir(), "", "books", "update", "b1", "--available", "0")
	if res.err != nil {
		t.Fatalf("update: %v\n%s", res.err, res.errOut)
	}
	if v, ok := (*body)["available_copies"]; !ok || v != 0.0 {
		t.Fatalf("available_copies=0 not sent: %v", *body)
	}
	if _, ok := (*body)["total_copies"]; ok || len(*body) != 1 {
		t.Fatalf("only the changed field should be sent: %v", *body)
	}

	res = runCLI(t, srv, t.TempDir(), "", "books", "update", "b1")
	if res.err == nil || !strings.Contains(res.errOut, "nothing to update") {
		t.Fatalf("empty update should be refused: %v\n%s", res.err, res.errOut)
	}
}

func TestCacheSyncAndSearch(t *testing.T) {
	srv := fakeBackend(t)
	dir := t.TempDir()

	res := runCLI(t, srv, dir, "", "cache", "sync")
	if res.err != nil {
		t.Fatalf("sync: %v\n%s", res.err, res.errOut)
	}
	if !strings.Contains(res.errOut, "Synced 2 books from 1 pages") {
		t.Fatalf("unexpected toast:\n%s", res.errOut)
	}

	res = runCLI(t, srv, dir, "", "cache", "search", "herbert")
	if res.err != nil || !strings.Contains(res.out, "Dune") || strings.Contains(res.out, "Emma") {
		t.Fatalf("search: %v\n%s", res.err, res.out)
	}

	res = runCLI(t, srv, dir, "", "cache", "status")
	if res.err != nil || !strings.Contains(res.out, "2 cached books") {
		t.Fatalf("status: %v\n%s", res.err, res.out)
	}
}

func TestShell(t *testing.T) {
	srv := fakeBackend(t)
	res := runCLI(t, srv, t.TempDir(), "list\nbook b1\nnext\nbogus\nexit\n", "shell")
	if res.err != nil {
		t.Fatalf("shell: %v\n%s", res.err, res.errOut)
	}
	for _, want := range []string{"Welcome to VulnLib, guest!", "Emma", "id b1", "No such page.", "Unknown command.", "Goodbye!"} {
		if !strings.Contains(res.out, want) {
			t.Errorf("shell output missing %q:\n%s", want, res.out)
		}
	}
}

func TestShellSearchBeforeExit(t *testing.T) {
	srv := fakeBackend(t)
	for name, stdin := range map[string]string{
		"exit":         "search emma\nexit\n",
		"end of input": "search emma\n",
	} {
		res := runCLI(t, srv, t.TempDir(), stdin, "shell")
		if res.err != nil {
			t.Fatalf("%s: shell: %v\n%s", name, res.err, res.errOut)
		}
		if !strings.Contains(res.out, ui.MarkOpen+"Emma"+ui.MarkClose) {
			t.Errorf("%s: search results missing:\n%s", name, res.out)
		}
		if strings.Contains(res.out, "Dune") {
			t.Errorf("%s: unfiltered listing shown:\n%s", name, res.out)
		}
	}
}
