package api

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"reflect"
	"strings"
	"testing"
	"time"

	"vulnlib/library"
)

type recorded struct {
	method      string
	path        string
	query       string
	contentType string
	body        []byte
}

// recorder answers every request with reply and remembers the last one.
func recorder(t *testing.T, reply string) (*Client, *recorded) {
	t.Helper()
	rec := &recorded{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		rec.method = r.Method
		rec.path = r.URL.EscapedPath()
		rec.query = r.URL.RawQuery
		rec.contentType = r.Header.Get("Content-Type")
		rec.body, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(reply))
	})
	return c, rec
}

func credentials(user, pass string) library.Credentials {
	return library.Credentials{Username: user, Password: pass}
}

func decodeJSON(t *testing.T, data []byte) any {
	t.Helper()
	if len(data) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("request body is not JSON: %q", data)
	}
	return v
}

func TestResourceEndpoints(t *testing.T) {
	due := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		call     func(ctx context.Context, c *Client) error
		method   string
		path     string
		query    string
		wantBody string
	}{
		{"login", func(ctx context.Context, c *Client) error {
			_, err := c.Auth.Login(ctx, credentials("alice", "secret"))
			return err
		}, "POST", "/api/auth/login", "", `{"username":"alice","password":"secret"}`},
		{"register", func(ctx context.Context, c *Client) error {
			_, err := c.Auth.Register(ctx, library.UserInput{Username: "bob", Email: "b@x.io", Password: "pw"})
			return err
		}, "POST", "/api/auth/register", "", `{"username":"bob","email":"b@x.io","password":"pw"}`},
		{"logout", func(ctx context.Context, c *Client) error {
			_, err := c.Auth.Logout(ctx)
			return err
		}, "POST", "/api/auth/logout", "", ``},
		{"list books", func(ctx context.Context, c *Client) error {
			_, err := c.Books.List(ctx, library.BookQuery{Search: "dune", Page: 3})
			return err
		}, "GET", "/api/books", "page=3&search=dune", ``},
		{"list books without params", func(ctx context.Context, c *Client) error {
			_, err := c.Books.List(ctx, library.BookQuery{})
			return err
		}, "GET", "/api/books", "", ``},
		{"get book", func(ctx context.Context, c *Client) error {
			_, err := c.Books.Get(ctx, "b1")
			return err
		}, "GET", "/api/books/b1", "", ``},
		{"get book escapes id", func(ctx context.Context, c *Client) error {
			_, err := c.Books.Get(ctx, "a/b")
			return err
		}, "GET", "/api/books/a%2Fb", "", ``},
		{"create book", func(ctx context.Context, c *Client) error {
			in := library.BookInput{Title: "Dune", Author: "Herbert"}
			in.SetCopies(2)
			_, err := c.Books.Create(ctx, in)
			return err
		}, "POST", "/api/books", "", `{"title":"Dune","author":"Herbert","total_copies":2,"available_copies":2}`},
		{"update book", func(ctx context.Context, c *Client) error {
			_, err := c.Books.Update(ctx, "b1", library.BookInput{Category: "SF"})
			return err
		}, "PUT", "/api/books/b1", "", `{"category":"SF"}`},
		{"update book to no available copies", func(ctx context.Context, c *Client) error {
			zero := 0
			_, err := c.Books.Update(ctx, "b1", library.BookInput{AvailableCopies: &zero})
			return err
		}, "PUT", "/api/books/b1", "", `{"available_copies":0}`},
		{"delete book", func(ctx context.Context, c *Client) error {
			_, err := c.Books.Delete(ctx, "b1")
			return err
		}, "DELETE", "/api/books/b1", "", ``},
		{"reviews", func(ctx context.Context, c *Client) error {
			_, err := c.Books.Reviews(ctx, "b1")
			return err
		}, "GET", "/api/books/b1/reviews", "", ``},
		{"add review", func(ctx context.Context, c *Client) error {
			_, err := c.Books.AddReview(ctx, "b1", library.ReviewInput{UserID: "u1", Rating: 5, Comment: "great"})
			return err
		}, "POST", "/api/books/b1/reviews", "", `{"user_id":"u1","rating":5,"comment":"great"}`},
		{"get user", func(ctx context.Context, c *Client) error {
			_, err := c.Users.Get(ctx, "u1")
			return err
		}, "GET", "/api/users/u1", "", ``},
		{"update user", func(ctx context.Context, c *Client) error {
			_, err := c.Users.Update(ctx, "u1", map[string]any{"email": "new@x.io"})
			return err
		}, "PUT", "/api/users/u1", "", `{"email":"new@x.io"}`},
		{"user loans", func(ctx context.Context, c *Client) error {
			_, err := c.Users.Loans(ctx, "u1")
			return err
		}, "GET", "/api/users/u1/loans", "", ``},
		{"user fines", func(ctx context.Context, c *Client) error {
			_, err := c.Users.Fines(ctx, "u1")
			return err
		}, "GET", "/api/users/u1/fines", "", ``},
		{"pay fine", func(ctx context.Context, c *Client) error {
			_, err := c.Users.PayFine(ctx, "u1", library.FinePayment{FineID: "f1", Amount: 3.5})
			return err
		}, "POST", "/api/users/u1/fines/pay", "", `{"fine_id":"f1","amount":3.5}`},
		{"wishlist", func(ctx context.Context, c *Client) error {
			_, err := c.Users.Wishlist(ctx, "u1")
			return err
		}, "GET", "/api/users/u1/wishlist", "", ``},
		{"add to wishlist", func(ctx context.Context, c *Client) error {
			_, err := c.Users.AddToWishlist(ctx, "u1", "b1")
			return err
		}, "POST", "/api/users/u1/wishlist", "", `{"book_id":"b1"}`},
		{"remove from wishlist", func(ctx context.Context, c *Client) error {
			_, err := c.Users.RemoveFromWishlist(ctx, "u1", "w9")
			return err
		}, "DELETE", "/api/users/u1/wishlist/w9", "", ``},
		{"create loan", func(ctx context.Context, c *Client) error {
			_, err := c.Loans.Create(ctx, library.LoanRequest{
				BookID:   "b1",
				FromDate: library.NewTimestamp(due.AddDate(0, 0, -14)),
				ToDate:   library.NewTimestamp(due),
			})
			return err
		}, "POST", "/api/loans", "", `{"book_id":"b1","from_date":"2024-03-01T00:00:00","to_date":"2024-03-15T00:00:00"}`},
		{"approve loan", func(ctx context.Context, c *Client) error {
			_, err := c.Loans.Approve(ctx, "l1")
			return err
		}, "PUT", "/api/loans/l1/approve", "", `{}`},
		{"extend loan", func(ctx context.Context, c *Client) error {
			_, err := c.Loans.Extend(ctx, "l1", 7, "")
			return err
		}, "POST", "/api/loans/l1/extend", "", `{"days":7}`},
		{"extend loan with reason", func(ctx context.Context, c *Client) error {
			_, err := c.Loans.Extend(ctx, "l1", 3, "travel")
			return err
		}, "POST", "/api/loans/l1/extend", "", `{"days":3,"reason":"travel"}`},
		{"return loan", func(ctx context.Context, c *Client) error {
			_, err := c.Loans.Return(ctx, "l1", due)
			return err
		}, "PUT", "/api/loans/l1/return", "", `{"return_date":"2024-03-15T00:00:00"}`},
		{"return loan now", func(ctx context.Context, c *Client) error {
			_, err := c.Loans.Return(ctx, "l1", time.Time{})
			return err
		}, "PUT", "/api/loans/l1/return", "", `{}`},
		{"pending loans", func(ctx context.Context, c *Client) error {
			_, err := c.Loans.Pending(ctx)
			return err
		}, "GET", "/api/loans/pending", "", ``},
		{"all loans", func(ctx context.Context, c *Client) error {
			_, err := c.Loans.All(ctx)
			return err
		}, "GET", "/api/loans/all", "", ``},
		{"extensions", func(ctx context.Context, c *Client) error {
			_, err := c.Loans.Extensions(ctx)
			return err
		}, "GET", "/api/loans/extensions", "", ``},
		{"admin users", func(ctx context.Context, c *Client) error {
			_, err := c.Admin.Users(ctx)
			return err
		}, "GET", "/api/admin/users", "", ``},
		{"admin create user", func(ctx context.Context, c *Client) error {
			_, err := c.Admin.CreateUser(ctx, library.UserInput{Username: "lib", Email: "l@x.io", Password: "pw", Role: "librarian"})
			return err
		}, "POST", "/api/admin/users", "", `{"username":"lib","email":"l@x.io","password":"pw","role":"librarian"}`},
		{"admin update user", func(ctx context.Context, c *Client) error {
			_, err := c.Admin.UpdateUser(ctx, "u2", library.UserInput{Role: "admin"})
			return err
		}, "PUT", "/api/admin/users/u2", "", `{"role":"admin"}`},
		{"admin delete user", func(ctx context.Context, c *Client) error {
			_, err := c.Admin.DeleteUser(ctx, "u2")
			return err
		}, "DELETE", "/api/admin/users/u2", "", ``},
		{"admin logs", func(ctx context.Context, c *Client) error {
			_, err := c.Admin.Logs(ctx)
			return err
		}, "GET", "/api/admin/logs", "", ``},
		{"clean database", func(ctx context.Context, c *Client) error {
			_, err := c.Admin.CleanDatabase(ctx)
			return err
		}, "POST", "/api/admin/db/clean", "", ``},
		{"scheduler status", func(ctx context.Context, c *Client) error {
			_, err := c.Admin.SchedulerStatus(ctx)
			return err
		}, "GET", "/api/admin/scheduler/status", "", ``},
		{"configure scheduler", func(ctx context.Context, c *Client) error {
			_, err := c.Admin.ConfigureScheduler(ctx, 24)
			return err
		}, "POST", "/api/admin/scheduler/configure", "", `{"hours":24}`},
		{"disable scheduler", func(ctx context.Context, c *Client) error {
			_, err := c.Admin.DisableScheduler(ctx)
			return err
		}, "POST", "/api/admin/scheduler/disable", "", ``},
		{"loan report", func(ctx context.Context, c *Client) error {
			_, err := c.Reports.Loans(ctx, 2024, 3)
			return err
		}, "GET", "/api/reports/loans", "month=03&year=2024", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := recorder(t, `{"success":true,"message":"ok"}`)
			if err := tt.call(context.Background(), c); err != nil {
				t.Fatalf("call: %v", err)
			}
			if rec.method != tt.method {
				t.Errorf("method = %s, want %s", rec.method, tt.method)
			}
			if rec.path != tt.path {
				t.Errorf("path = %s, want %s", rec.path, tt.path)
			}
			if rec.query != tt.query {
				t.Errorf("query = %q, want %q", rec.query, tt.query)
			}
			got := decodeJSON(t, rec.body)
			want := decodeJSON(t, []byte(tt.wantBody))
			if !reflect.DeepEqual(got, want) {
				t.Errorf("body = %s, want %s", rec.body, tt.wantBody)
			}
		})
	}
}

func TestListBooksDecodesPage(t *testing.T) {
	c, _ := recorder(t, `{
		"books": [
			{"id":"b1","title":"Dune","author":"Frank Herbert","category":null,"available_copies":0,"total_copies":3,"cover_url":null},
			{"id":"b2","title":"Emma","author":"Jane Austen","category":"Classic","available_copies":2,"total_copies":2}
		],
		"total": 14, "page": 2, "pages": 2
	}`)

	page, err := c.Books.List(context.Background(), library.BookQuery{Page: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Books) != 2 || page.Total != 14 {
		t.Fatalf("unexpected page: %+v", page)
	}
	if page.Books[0].Available() || !page.Books[1].Available() {
		t.Fatalf("availability mismatch")
	}
	if st := page.State(); st.Current != 2 || st.Total != 2 || !st.Valid() {
		t.Fatalf("state = %+v", st)
	}
}

func TestUserLoansDecodeNaiveTimestamps(t *testing.T) {
	c, _ := recorder(t, `{"loans":[{
		"id":"l1","book_id":"b1","book_title":"Dune",
		"requested_at":"2024-03-01T09:30:00.123456",
		"approved_at":null,
		"due_date":"2024-03-15T09:30:00",
		"returned_at":null,
		"status":"pending","notes":null
	}]}`)

	loans, err := c.Users.Loans(context.Background(), "u1")
	if err != nil {
		t.Fatalf("loans: %v", err)
	}
	if len(loans) != 1 {
		t.Fatalf("want 1 loan, got %d", len(loans))
	}
	l := loans[0]
	if l.RequestedAt.Day() != 1 || l.DueDate.Day() != 15 || !l.ApprovedAt.IsZero() {
		t.Fatalf("timestamps decoded wrong: %+v", l)
	}
	if l.Status != library.LoanPending {
		t.Fatalf("status = %q", l.Status)
	}
}

func TestImportSendsMultipart(t *testing.T) {
	c, rec := recorder(t, `{"success":true,"message":"Imported 2 books"}`)
	csv := "title,author\nDune,Herbert\nEmma,Austen\n"

	res, err := c.Books.Import(context.Background(), "books.csv", strings.NewReader(csv), "spring batch")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if res.Message != "Imported 2 books" {
		t.Fatalf("message = %q", res.Message)
	}
	if rec.path != "/api/books/import" || rec.method != http.MethodPost {
		t.Fatalf("hit %s %s", rec.method, rec.path)
	}

	mediaType, params, err := mime.ParseMediaType(rec.contentType)
	if err != nil || mediaType != "multipart/form-data" {
		t.Fatalf("content type = %q", rec.contentType)
	}
	form, err := multipart.NewReader(strings.NewReader(string(rec.body)), params["boundary"]).ReadForm(1 << 20)
	if err != nil {
		t.Fatalf("read form: %v", err)
	}
	if form.Value["notes"][0] != "spring batch" {
		t.Fatalf("notes = %v", form.Value["notes"])
	}
	fh := form.File["file"][0]
	if fh.Filename != "books.csv" {
		t.Fatalf("filename = %q", fh.Filename)
	}
	f, _ := fh.Open()
	defer f.Close()
	data, _ := io.ReadAll(f)
	if string(data) != csv {
		t.Fatalf("file content = %q", data)
	}
}

func TestUploadAvatarUsesAvatarField(t *testing.T) {
	c, rec := recorder(t, `{"success":true,"message":"Avatar uploaded successfully","filename":"me.png"}`)
	res, err := c.Users.UploadAvatar(context.Background(), "me.png", strings.NewReader("png"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if res.Filename != "me.png" {
		t.Fatalf("filename = %q", res.Filename)
	}
	if !strings.Contains(string(rec.body), `name="avatar"; filename="me.png"`) {
		t.Fatalf("avatar field missing from body")
	}
}

func TestSlipDownload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/loans/l1/slip" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"message":"not found"}`))
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", "attachment; filename=loan_l1.pdf")
		w.Write([]byte("%PDF-1.4 fake"))
	})

	slip, err := c.Loans.Slip(context.Background(), "l1")
	if err != nil {
		t.Fatalf("slip: %v", err)
	}
	if slip.Filename != "loan_l1.pdf" || slip.ContentType != "application/pdf" {
		t.Fatalf("unexpected slip: %+v", slip)
	}
	if !strings.HasPrefix(string(slip.Data), "%PDF") {
		t.Fatalf("data = %q", slip.Data)
	}

	_, err = c.Loans.Slip(context.Background(), "nope")
	if err == nil || err.Error() != "not found" {
		t.Fatalf("missing slip error = %v", err)
	}
}
