package library

// Book is the catalog record served by /api/books. Availability is owned by
// the backend; the client only displays it.
type Book struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	ISBN            string    `json:"isbn,omitempty"`
	Category        string    `json:"category,omitempty"`
	Description     string    `json:"description,omitempty"`
	CoverURL        string    `json:"cover_url,omitempty"`
	YearPublished   int       `json:"year_published,omitempty"`
	AvailableCopies int       `json:"available_copies"`
	TotalCopies     int       `json:"total_copies"`
	Tags            string    `json:"tags,omitempty"`
	CreatedAt       Timestamp `json:"created_at,omitempty"`
}

// Available reports whether at least one copy can be borrowed.
func (b *Book) Available() bool { return b.AvailableCopies > 0 }

// BookInput is the payload for creating or updating a book. The copy counts
// are pointers so an update can set them to zero; nil leaves them out.
type BookInput struct {
	Title           string `json:"title,omitempty"`
	Author          string `json:"author,omitempty"`
	ISBN            string `json:"isbn,omitempty"`
	Category        string `json:"category,omitempty"`
	Description     string `json:"description,omitempty"`
	CoverURL        string `json:"cover_url,omitempty"`
	MetadataURL     string `json:"metadata_url,omitempty"`
	YearPublished   int    `json:"year_published,omitempty"`
	TotalCopies     *int   `json:"total_copies,omitempty"`
	AvailableCopies *int   `json:"available_copies,omitempty"`
	Tags            string `json:"tags,omitempty"`
}

// SetCopies sets both counts to n, as for a book nobody has borrowed yet.
// The server defaults a missing available count to 1.
func (in *BookInput) SetCopies(n int) {
	total, avail := n, n
	in.TotalCopies, in.AvailableCopies = &total, &avail
}

// BookQuery filters /api/books. Zero values are left out of the query string.
type BookQuery struct {
	Search   string
	Category string
	Author   string
	Page     int
}

// BookPage is one page of the catalog listing.
type BookPage struct {
	Books []Book `json:"books"`
	Total int    `json:"total"`
	Page  int    `json:"page"`
	Pages int    `json:"pages"`
}

// State returns the pagination state of the page.
func (p *BookPage) State() PageState {
	return PageState{Current: p.Page, Total: p.Pages}
}

// PageState tracks where a paginated listing stands.
type PageState struct {
	Current int
	Total   int
}

// Valid reports whether 1 <= Current <= Total when there is at least one page.
func (s PageState) Valid() bool {
	if s.Total < 0 || s.Current < 1 {
		return false
	}
	return s.Total == 0 || s.Current <= s.Total
}

// Review is a member's rating of a book.
type Review struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username,omitempty"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt Timestamp `json:"created_at,omitempty"`
}

// ReviewInput is the payload for /api/books/{id}/reviews.
type ReviewInput struct {
	UserID  string `json:"user_id,omitempty"`
	Rating  int    `json:"rating"`
	Comment string `json:"comment,omitempty"`
}

// Loan status values as reported by the backend.
const (
	LoanPending  = "pending"
	LoanApproved = "approved"
	LoanReturned = "returned"
	LoanOverdue  = "overdue"
)

// Loan is a borrowing request and its lifecycle timestamps.
type Loan struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id,omitempty"`
	Username    string    `json:"username,omitempty"`
	BookID      string    `json:"book_id"`
	BookTitle   string    `json:"book_title,omitempty"`
	RequestedAt Timestamp `json:"requested_at,omitempty"`
	ApprovedAt  Timestamp `json:"approved_at,omitempty"`
	DueDate     Timestamp `json:"due_date,omitempty"`
	ReturnedAt  Timestamp `json:"returned_at,omitempty"`
	Status      string    `json:"status,omitempty"`
	Notes       string    `json:"notes,omitempty"`
}

// LoanRequest asks to borrow a book between two dates.
type LoanRequest struct {
	BookID   string    `json:"book_id"`
	FromDate Timestamp `json:"from_date"`
	ToDate   Timestamp `json:"to_date"`
}

// LoanExtension is an entry of the extension audit trail.
type LoanExtension struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id,omitempty"`
	Username  string    `json:"username,omitempty"`
	LoanID    string    `json:"loan_id"`
	Details   string    `json:"details,omitempty"`
	CreatedAt Timestamp `json:"created_at,omitempty"`
	IPAddress string    `json:"ip_address,omitempty"`
}

// LoanReportRow is a row of the monthly loan report.
type LoanReportRow struct {
	LoanID      string `json:"loan_id"`
	UserID      string `json:"user_id"`
	BookID      string `json:"book_id"`
	RequestedAt string `json:"requested_at"`
	Status      string `json:"status"`
	BookTitle   string `json:"book_title"`
	Username    string `json:"username"`
}

// Fine is money owed for a late return.
type Fine struct {
	ID        string    `json:"id"`
	Amount    float64   `json:"amount"`
	Reason    string    `json:"reason,omitempty"`
	Status    string    `json:"status"`
	CreatedAt Timestamp `json:"created_at,omitempty"`
	PaidAt    Timestamp `json:"paid_at,omitempty"`
}

// Paid reports whether the fine was settled.
func (f *Fine) Paid() bool { return f.Status == "paid" }

// FinePayment is the payload for /api/users/{id}/fines/pay.
type FinePayment struct {
	FineID string  `json:"fine_id"`
	Amount float64 `json:"amount"`
}

// WishlistItem links a user to a book they want.
type WishlistItem struct {
	ID         string    `json:"id"`
	BookID     string    `json:"book_id"`
	BookTitle  string    `json:"book_title,omitempty"`
	BookAuthor string    `json:"book_author,omitempty"`
	CreatedAt  Timestamp `json:"created_at,omitempty"`
}

// Roles known to the backend.
const (
	RoleMember    = "member"
	RoleLibrarian = "librarian"
	RoleAdmin     = "admin"
)

// User is an account as listed by the admin endpoints.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	Role      string    `json:"role,omitempty"`
	Avatar    string    `json:"avatar,omitempty"`
	CreatedAt Timestamp `json:"created_at,omitempty"`
}

// UserInput creates or updates an account. Password is only sent when set.
type UserInput struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`
	Role     string `json:"role,omitempty"`
}

// Credentials log a user in.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuditLog is an entry of /api/admin/logs.
type AuditLog struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id,omitempty"`
	Action       string    `json:"action"`
	ResourceType string    `json:"resource_type,omitempty"`
	ResourceID   string    `json:"resource_id,omitempty"`
	Details      string    `json:"details,omitempty"`
	IPAddress    string    `json:"ip_address,omitempty"`
	CreatedAt    Timestamp `json:"created_at,omitempty"`
}

// SchedulerStatus describes the automatic database cleanup schedule.
type SchedulerStatus struct {
	Success     bool   `json:"success"`
	Enabled     string `json:"scheduler_enabled"`
	NextCleanup string `json:"next_cleanup"`
}

// Result is the generic acknowledgement returned by mutating endpoints.
type Result struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Redirect string `json:"redirect,omitempty"`
	BookID   string `json:"book_id,omitempty"`
	LoanID   string `json:"loan_id,omitempty"`
	ReviewID string `json:"review_id,omitempty"`
	UserID   string `json:"user_id,omitempty"`
	Filename string `json:"filename,omitempty"`
}
