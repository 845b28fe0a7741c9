package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"vulnlib/library"
	"vulnlib/ui"
)

// shell is the interactive catalog browser. Listing state is shared with
// the debounced search, which runs on its own goroutine.
type shell struct {
	a   *app
	ctx context.Context

	mu     sync.Mutex
	query  library.BookQuery
	pager  *ui.Pager
	search *ui.Debouncer[string]
}

func newShellCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Browse the catalog interactively",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := &shell{a: a, ctx: cmd.Context()}
			s.pager = &ui.Pager{OnPage: s.goTo}
			s.search = ui.NewDebouncer(ui.DefaultSearchDelay, s.runSearch)
			defer s.search.Stop()
			return s.run()
		},
	}
}

func (s *shell) printHelp() {
	fmt.Fprintln(s.a.out, "Available commands:")
	fmt.Fprintln(s.a.out, "  Browse:  list [category], search <terms>, next, prev, page <n>")
	fmt.Fprintln(s.a.out, "  Books:   book <id>, reviews <id>, borrow <id> [days], wish <id>")
	fmt.Fprintln(s.a.out, "  Offline: offline <terms>")
	fmt.Fprintln(s.a.out, "  Toasts:  toasts, dismiss <id>")
	fmt.Fprintln(s.a.out, "  System:  help, exit")
}

func (s *shell) run() error {
	who := "guest"
	if s.a.sess != nil {
		who = s.a.sess.Username
	}
	fmt.Fprintf(s.a.out, "Welcome to VulnLib, %s!\n", who)
	s.printHelp()

	for {
		line, err := s.a.prompt.Line("\n> ")
		if errors.Is(err, io.EOF) {
			s.search.Flush()
			return nil
		}
		if err != nil {
			return err
		}
		if s.ctx.Err() != nil {
			return nil
		}
		cmd, arg, _ := strings.Cut(line, " ")
		arg = strings.TrimSpace(arg)

		switch strings.ToLower(cmd) {
		case "":
		case "help", "?":
			s.printHelp()
		case "list":
			s.fail(s.load(library.BookQuery{Category: arg, Page: 1}))
		case "search":
			// Typing several searches in a row only fetches the last one.
			s.search.Call(arg)
		case "next":
			s.turn((*ui.Pager).Next)
		case "prev":
			s.turn((*ui.Pager).Prev)
		case "page":
			n, err := strconv.Atoi(arg)
			if err != nil {
				fmt.Fprintf(s.a.out, "Invalid page: %s\n", arg)
				continue
			}
			s.turn(func(p *ui.Pager) bool { return p.Click(n) })
		case "book":
			s.fail(s.handleBook(arg))
		case "reviews":
			s.fail(s.handleReviews(arg))
		case "borrow":
			s.fail(s.handleBorrow(arg))
		case "wish":
			s.fail(s.handleWish(arg))
		case "offline":
			s.fail(s.handleOffline(arg))
		case "toasts":
			s.handleToasts()
		case "dismiss":
			if !s.a.toasts.Dismiss(arg) {
				fmt.Fprintf(s.a.out, "No toast %s\n", arg)
			}
		case "exit", "quit":
			// A search typed just before leaving still gets its results.
			s.search.Flush()
			fmt.Fprintln(s.a.out, "Goodbye!")
			return nil
		default:
			fmt.Fprintln(s.a.out, "Unknown command. Type help for the list of commands.")
		}
	}
}

// fail reports err without leaving the shell.
func (s *shell) fail(err error) {
	if err != nil {
		s.a.report(err)
	}
}

// turn clicks a copy of the pager so the fetch runs without holding mu.
func (s *shell) turn(click func(p *ui.Pager) bool) {
	s.mu.Lock()
	p := *s.pager
	s.mu.Unlock()
	if p.Total == 0 {
		fmt.Fprintln(s.a.out, "Nothing listed yet. Try list or search.")
		return
	}
	if !click(&p) {
		fmt.Fprintln(s.a.out, "No such page.")
	}
}

func (s *shell) runSearch(terms string) {
	s.fail(s.load(library.BookQuery{Search: terms, Page: 1}))
}

func (s *shell) goTo(page int) {
	s.mu.Lock()
	q := s.query
	s.mu.Unlock()
	q.Page = page
	s.fail(s.load(q))
}

// load fetches one page for q and redraws the listing.
func (s *shell) load(q library.BookQuery) error {
	ctx, cancel := context.WithTimeout(s.ctx, 30*time.Second)
	defer cancel()
	page, err := s.a.client.Books.List(ctx, q)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.query = q
	st := page.State()
	s.pager.Current, s.pager.Total = st.Current, st.Total
	if err := ui.RenderBooks(s.a.out, page.Books, q.Search); err != nil {
		return err
	}
	return ui.RenderPagination(s.a.out, st.Current, st.Total)
}

func (s *shell) handleBook(id string) error {
	if id == "" {
		return usagef("usage: book <id>")
	}
	b, err := s.a.client.Books.Get(s.ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprint(s.a.out, ui.BookCard(b, ""))
	if b.Description != "" {
		fmt.Fprintf(s.a.out, "\n%s\n", b.Description)
	}
	return nil
}

func (s *shell) handleReviews(id string) error {
	if id == "" {
		return usagef("usage: reviews <id>")
	}
	reviews, err := s.a.client.Books.Reviews(s.ctx, id)
	if err != nil {
		return err
	}
	if len(reviews) == 0 {
		fmt.Fprintln(s.a.out, "No reviews yet.")
	}
	for _, r := range reviews {
		fmt.Fprintf(s.a.out, "%s  %s: %s\n", stars(r.Rating), r.Username, r.Comment)
	}
	return nil
}

func (s *shell) handleBorrow(arg string) error {
	id, daysArg, _ := strings.Cut(arg, " ")
	if id == "" {
		return usagef("usage: borrow <id> [days]")
	}
	days := 14
	if daysArg != "" {
		n, err := strconv.Atoi(strings.TrimSpace(daysArg))
		if err != nil || n <= 0 {
			return usagef("days must be a positive number, got %q", daysArg)
		}
		days = n
	}
	start := time.Now().UTC().Truncate(24 * time.Hour)
	res, err := s.a.client.Loans.Create(s.ctx, library.LoanRequest{
		BookID:   id,
		FromDate: library.NewTimestamp(start),
		ToDate:   library.NewTimestamp(start.AddDate(0, 0, days)),
	})
	if err != nil {
		return err
	}
	s.a.ok(res, "Loan requested")
	return nil
}

func (s *shell) handleWish(id string) error {
	if id == "" {
		return usagef("usage: wish <id>")
	}
	userID, err := s.a.userID("")
	if err != nil {
		return err
	}
	res, err := s.a.client.Users.AddToWishlist(s.ctx, userID, id)
	if err != nil {
		return err
	}
	s.a.ok(res, "Added to wishlist")
	return nil
}

func (s *shell) handleOffline(terms string) error {
	mgr, err := s.a.openCache()
	if err != nil {
		return err
	}
	defer mgr.Close()
	books, err := mgr.SearchBooks(terms)
	if err != nil {
		return err
	}
	slice, st := library.Paginate(books, 1, s.a.cfg.PageSize)
	if err := ui.RenderBookTable(s.a.out, slice); err != nil {
		return err
	}
	if st.Total > 1 {
		fmt.Fprintf(s.a.out, "showing the first %d of %d matches\n", len(slice), len(books))
	}
	return nil
}

func (s *shell) handleToasts() {
	active := s.a.toasts.Active()
	if len(active) == 0 {
		fmt.Fprintln(s.a.out, "No notifications.")
		return
	}
	for _, t := range active {
		left := time.Until(t.Shown.Add(t.Duration)).Round(time.Second)
		fmt.Fprintf(s.a.out, "%s  %-7s %s (%s left)\n", t.ID, t.Severity.Title(), t.Message, left)
	}
}
