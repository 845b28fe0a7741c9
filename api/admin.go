package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"vulnlib/library"
)

// AdminClient wraps /admin. Every call needs an admin session except
// Users, which the backend hands to any logged-in user.
type AdminClient struct {
	c *Client
}

// Users lists all accounts.
func (a *AdminClient) Users(ctx context.Context) ([]library.User, error) {
	var env struct {
		Users []library.User `json:"users"`
	}
	if err := a.c.Do(ctx, "/admin/users", nil, &env); err != nil {
		return nil, err
	}
	return env.Users, nil
}

// CreateUser adds an account with any role.
func (a *AdminClient) CreateUser(ctx context.Context, in library.UserInput) (*library.Result, error) {
	var res library.Result
	if err := a.c.Do(ctx, "/admin/users", &Request{Method: http.MethodPost, Body: in}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// UpdateUser changes the non-empty fields of in.
func (a *AdminClient) UpdateUser(ctx context.Context, userID string, in library.UserInput) (*library.Result, error) {
	var res library.Result
	req := &Request{Method: http.MethodPut, Body: in}
	if err := a.c.Do(ctx, "/admin/users"+pathID(userID), req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// DeleteUser removes an account.
func (a *AdminClient) DeleteUser(ctx context.Context, userID string) (*library.Result, error) {
	var res library.Result
	req := &Request{Method: http.MethodDelete}
	if err := a.c.Do(ctx, "/admin/users"+pathID(userID), req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Logs returns the latest 100 audit entries.
func (a *AdminClient) Logs(ctx context.Context) ([]library.AuditLog, error) {
	var env struct {
		Logs []library.AuditLog `json:"logs"`
	}
	if err := a.c.Do(ctx, "/admin/logs", nil, &env); err != nil {
		return nil, err
	}
	return env.Logs, nil
}

// CleanDatabase wipes every table and reseeds the demo data.
func (a *AdminClient) CleanDatabase(ctx context.Context) (*library.Result, error) {
	var res library.Result
	if err := a.c.Do(ctx, "/admin/db/clean", &Request{Method: http.MethodPost}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// SchedulerStatus reports the automatic cleanup schedule.
func (a *AdminClient) SchedulerStatus(ctx context.Context) (*library.SchedulerStatus, error) {
	var st library.SchedulerStatus
	if err := a.c.Do(ctx, "/admin/scheduler/status", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// ConfigureScheduler runs the cleanup every hours hours. The server accepts
// 1 to 168.
func (a *AdminClient) ConfigureScheduler(ctx context.Context, hours int) (*library.Result, error) {
	var res library.Result
	req := &Request{Method: http.MethodPost, Body: map[string]int{"hours": hours}}
	if err := a.c.Do(ctx, "/admin/scheduler/configure", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// DisableScheduler turns the automatic cleanup off.
func (a *AdminClient) DisableScheduler(ctx context.Context) (*library.Result, error) {
	var res library.Result
	if err := a.c.Do(ctx, "/admin/scheduler/disable", &Request{Method: http.MethodPost}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ReportsClient wraps /reports.
type ReportsClient struct {
	c *Client
}

// Loans returns the loans requested in the given month.
func (r *ReportsClient) Loans(ctx context.Context, year, month int) ([]library.LoanReportRow, error) {
	var env struct {
		Loans []library.LoanReportRow `json:"loans"`
	}
	q := url.Values{}
	q.Set("year", strconv.Itoa(year))
	q.Set("month", monthParam(month))
	if err := r.c.Do(ctx, "/reports/loans", &Request{Query: q}, &env); err != nil {
		return nil, err
	}
	return env.Loans, nil
}

// monthParam zero-pads the month: the server compares it with strftime('%m').
func monthParam(month int) string {
	if month < 10 && month >= 0 {
		return "0" + strconv.Itoa(month)
	}
	return strconv.Itoa(month)
}
