package ui

import (
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

const (
	dateLayout     = "Jan 2, 2006"
	dateTimeLayout = "Jan 2, 2006, 03:04 PM"
)

// FormatDate renders t like "Mar 5, 2024". The zero time renders as "-".
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(dateLayout)
}

// FormatDateTime renders t like "Mar 5, 2024, 02:30 PM".
func FormatDateTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(dateTimeLayout)
}

// RelativeTime renders t against now, e.g. "3 days ago" or "2 weeks from now".
func RelativeTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

// NewUUID returns a random version 4 UUID string.
func NewUUID() string { return uuid.NewString() }
