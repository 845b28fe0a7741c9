package api

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"vulnlib/library"
)

// LoansClient wraps /loans.
type LoansClient struct {
	c *Client
}

// Create submits a loan request for the logged-in user.
func (l *LoansClient) Create(ctx context.Context, in library.LoanRequest) (*library.Result, error) {
	var res library.Result
	if err := l.c.Do(ctx, "/loans", &Request{Method: http.MethodPost, Body: in}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Approve moves a pending loan to approved.
func (l *LoansClient) Approve(ctx context.Context, loanID string) (*library.Result, error) {
	var res library.Result
	req := &Request{Method: http.MethodPut, Body: struct{}{}}
	if err := l.c.Do(ctx, "/loans"+pathID(loanID)+"/approve", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

type extendBody struct {
	Days   int    `json:"days"`
	Reason string `json:"reason,omitempty"`
}

// Extend pushes the due date back by days. reason may be empty.
func (l *LoansClient) Extend(ctx context.Context, loanID string, days int, reason string) (*library.Result, error) {
	var res library.Result
	req := &Request{Method: http.MethodPost, Body: extendBody{Days: days, Reason: reason}}
	if err := l.c.Do(ctx, "/loans"+pathID(loanID)+"/extend", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Return marks a loan returned at returnDate. A zero returnDate lets the
// server use its own clock.
func (l *LoansClient) Return(ctx context.Context, loanID string, returnDate time.Time) (*library.Result, error) {
	var res library.Result
	body := map[string]any{"return_date": library.NewTimestamp(returnDate)}
	if returnDate.IsZero() {
		body = map[string]any{}
	}
	req := &Request{Method: http.MethodPut, Body: body}
	if err := l.c.Do(ctx, "/loans"+pathID(loanID)+"/return", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (l *LoansClient) list(ctx context.Context, endpoint string) ([]library.Loan, error) {
	var env struct {
		Loans []library.Loan `json:"loans"`
	}
	if err := l.c.Do(ctx, endpoint, nil, &env); err != nil {
		return nil, err
	}
	return env.Loans, nil
}

// Pending lists loans awaiting approval.
func (l *LoansClient) Pending(ctx context.Context) ([]library.Loan, error) {
	return l.list(ctx, "/loans/pending")
}

// All lists every loan, newest first. Librarian or admin only.
func (l *LoansClient) All(ctx context.Context) ([]library.Loan, error) {
	return l.list(ctx, "/loans/all")
}

// Extensions lists the latest extension requests from the audit trail.
func (l *LoansClient) Extensions(ctx context.Context) ([]library.LoanExtension, error) {
	var env struct {
		Extensions []library.LoanExtension `json:"extensions"`
	}
	if err := l.c.Do(ctx, "/loans/extensions", nil, &env); err != nil {
		return nil, err
	}
	return env.Extensions, nil
}

// Slip is a downloaded loan slip document.
type Slip struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Slip downloads the PDF slip of a loan.
func (l *LoansClient) Slip(ctx context.Context, loanID string) (*Slip, error) {
	endpoint := "/loans" + pathID(loanID) + "/slip"
	resp, err := l.c.Fetch(ctx, endpoint, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, l.c.fail(endpoint, &NetworkError{Endpoint: endpoint, Err: err})
	}
	slip := &Slip{
		Filename:    fmt.Sprintf("loan_%s.pdf", loanID),
		ContentType: resp.Header.Get("Content-Type"),
		Data:        data,
	}
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		slip.Filename = params["filename"]
	}
	return slip, nil
}
