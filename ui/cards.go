package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"vulnlib/library"
)

// Empty listing copy.
const (
	NoBooksTitle = "No books found"
	NoBooksHint  = "Try adjusting your search criteria"
)

// Category returns the book's category, "Uncategorized" when it has none.
func Category(b *library.Book) string {
	if b.Category == "" {
		return "Uncategorized"
	}
	return b.Category
}

// Availability is "Available" when a copy can be borrowed.
func Availability(b *library.Book) string {
	if b.Available() {
		return "Available"
	}
	return "Not Available"
}

// Copies renders "available/total".
func Copies(b *library.Book) string {
	return fmt.Sprintf("%d/%d", b.AvailableCopies, b.TotalCopies)
}

// BookCard renders a book as a short block:
//
//	Dune
//	  Frank Herbert
//	  Science Fiction · Available · 1/3
//	  id 3f6c...
//
// terms, when not empty, are highlighted in title and author.
func BookCard(b *library.Book, terms string) string {
	var sb strings.Builder
	sb.WriteString(Highlight(b.Title, terms, MarkOpen, MarkClose))
	sb.WriteString("\n  ")
	sb.WriteString(Highlight(b.Author, terms, MarkOpen, MarkClose))
	fmt.Fprintf(&sb, "\n  %s · %s · %s", Category(b), Availability(b), Copies(b))
	if b.CoverURL != "" {
		fmt.Fprintf(&sb, "\n  cover %s", b.CoverURL)
	}
	fmt.Fprintf(&sb, "\n  id %s\n", b.ID)
	return sb.String()
}

// RenderBooks writes a card per book, or the empty-listing message.
func RenderBooks(w io.Writer, books []library.Book, terms string) error {
	if len(books) == 0 {
		_, err := fmt.Fprintf(w, "%s\n%s\n", NoBooksTitle, NoBooksHint)
		return err
	}
	for i := range books {
		if _, err := fmt.Fprintln(w, BookCard(&books[i], terms)); err != nil {
			return err
		}
	}
	return nil
}

// RenderBookTable writes one row per book under a header.
func RenderBookTable(w io.Writer, books []*library.Book) error {
	if len(books) == 0 {
		_, err := fmt.Fprintf(w, "%s\n%s\n", NoBooksTitle, NoBooksHint)
		return err
	}
	fmt.Fprintf(w, "%-36s %-30s %-25s %-16s %s\n", "ID", "Title", "Author", "Category", "Copies")
	fmt.Fprintln(w, strings.Repeat("-", 120))
	for _, b := range books {
		if _, err := fmt.Fprintf(w, "%-36s %-30.30s %-25.25s %-16.16s %s\n",
			b.ID, b.Title, b.Author, Category(b), Copies(b)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%s %s\n", humanize.Comma(int64(len(books))), plural(len(books), "book", "books"))
	return err
}

// RenderLoans writes one row per loan with its due date relative to now.
func RenderLoans(w io.Writer, loans []library.Loan) error {
	if len(loans) == 0 {
		_, err := fmt.Fprintln(w, "No loans.")
		return err
	}
	fmt.Fprintf(w, "%-36s %-30s %-10s %-14s %s\n", "ID", "Book", "Status", "Requested", "Due")
	fmt.Fprintln(w, strings.Repeat("-", 110))
	for _, l := range loans {
		title := l.BookTitle
		if title == "" {
			title = l.BookID
		}
		due := "-"
		if !l.DueDate.IsZero() {
			due = FormatDate(l.DueDate.Time) + " (" + RelativeTime(l.DueDate.Time) + ")"
		}
		if _, err := fmt.Fprintf(w, "%-36s %-30.30s %-10s %-14s %s\n",
			l.ID, title, l.Status, FormatDate(l.RequestedAt.Time), due); err != nil {
			return err
		}
	}
	return nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
