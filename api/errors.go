package api

import (
	"errors"
	"fmt"
	"strings"
)

// RequestError is a non-2xx response. Message is the server-supplied
// "message" field, or "HTTP <status>" when the body had none.
type RequestError struct {
	Endpoint string
	Status   int
	Message  string
}

func (e *RequestError) Error() string { return e.Message }

// NetworkError is a transport failure: DNS, refused connection, reset,
// cancelled context.
type NetworkError struct {
	Endpoint string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("request %s: %v", e.Endpoint, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ParseError is a response whose body is not JSON. Title holds the <title>
// of an HTML error page when there was one.
type ParseError struct {
	Endpoint    string
	Status      int
	ContentType string
	Title       string
	Err         error
}

func (e *ParseError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "parse %s response (HTTP %d", e.Endpoint, e.Status)
	if e.ContentType != "" {
		fmt.Fprintf(&sb, ", %s", e.ContentType)
	}
	sb.WriteString(")")
	if e.Title != "" {
		fmt.Fprintf(&sb, ": %s", e.Title)
	}
	if e.Err != nil {
		fmt.Fprintf(&sb, ": %v", e.Err)
	}
	return sb.String()
}

func (e *ParseError) Unwrap() error { return e.Err }

// StatusCode returns the HTTP status carried by err, or 0 for transport
// failures and foreign errors.
func StatusCode(err error) int {
	var re *RequestError
	if errors.As(err, &re) {
		return re.Status
	}
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Status
	}
	return 0
}

// IsStatus reports whether err carries the given HTTP status.
func IsStatus(err error, status int) bool {
	return StatusCode(err) == status
}

// IsUnauthorized reports a 401 from the backend, which is how it refuses
// anonymous or under-privileged callers.
func IsUnauthorized(err error) bool {
	return IsStatus(err, 401)
}
