package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"vulnlib/library"
	"vulnlib/ui"
)

// openCache opens the local catalog copy.
func (a *app) openCache() (*library.CatalogManager, error) {
	mgr, err := library.NewCatalogManager(a.cfg.CacheDB, library.DefaultLookupCacheSize)
	if err != nil {
		return nil, fmt.Errorf("open cache %s: %w", a.cfg.CacheDB, err)
	}
	mgr.Log = a.log.With().Str("component", "cache").Logger()
	return mgr, nil
}

func newCacheCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "cache", Short: "Offline copy of the catalog"}

	var q library.BookQuery
	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Download the catalog into the local cache",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr, err := a.openCache()
			if err != nil {
				return err
			}
			defer mgr.Close()

			loading := ui.NewLoading(a.out)
			loading.Show("Syncing catalog...")
			stats, err := mgr.Sync(cmd.Context(), a.client.Books, q)
			loading.Hide()
			if err != nil {
				return err
			}
			a.toasts.Success(fmt.Sprintf("Synced %s books from %d pages, removed %d",
				humanize.Comma(int64(stats.Books)), stats.Pages, stats.Pruned))
			return nil
		},
	}
	syncCmd.Flags().StringVar(&q.Category, "category", "", "only sync one category")
	syncCmd.Flags().StringVar(&q.Author, "author", "", "only sync one author")

	var page int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List cached books",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr, err := a.openCache()
			if err != nil {
				return err
			}
			defer mgr.Close()
			books, err := mgr.GetAllBooks()
			if err != nil {
				return err
			}
			slice, st := library.Paginate(books, page, a.cfg.PageSize)
			if err := ui.RenderBookTable(a.out, slice); err != nil {
				return err
			}
			if err := ui.RenderPagination(a.out, st.Current, st.Total); err != nil {
				return err
			}
			return a.printLastSync(mgr)
		},
	}
	listCmd.Flags().IntVarP(&page, "page", "p", 1, "page number")

	searchCmd := &cobra.Command{
		Use:   "search QUERY...",
		Short: "Search cached books offline",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return usagef("usage: %s QUERY...", cmd.CommandPath())
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := a.openCache()
			if err != nil {
				return err
			}
			defer mgr.Close()
			query := strings.Join(args, " ")
			books, err := mgr.SearchBooks(query)
			if err != nil {
				return err
			}
			if len(books) == 0 {
				fmt.Fprintf(a.out, "%s\n%s\n", ui.NoBooksTitle, ui.NoBooksHint)
				return nil
			}
			for _, b := range books {
				fmt.Fprint(a.out, ui.BookCard(b, query))
			}
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show how fresh the cache is",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr, err := a.openCache()
			if err != nil {
				return err
			}
			defer mgr.Close()
			n, err := mgr.CountBooks()
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s cached books in %s\n", humanize.Comma(int64(n)), a.cfg.CacheDB)
			return a.printLastSync(mgr)
		},
	}

	showCmd := &cobra.Command{
		Use:   "show BOOK_ID",
		Short: "Show a cached book",
		Args:  exactArgs(1, "BOOK_ID"),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := a.openCache()
			if err != nil {
				return err
			}
			defer mgr.Close()
			b, err := mgr.GetBook(args[0])
			if err != nil {
				return usagef("%v", err)
			}
			fmt.Fprintln(a.out, library.PrettyBook(b))
			return nil
		},
	}

	cmd.AddCommand(syncCmd, listCmd, searchCmd, statusCmd, showCmd)
	return cmd
}

func (a *app) printLastSync(mgr *library.CatalogManager) error {
	last, err := mgr.LastSync()
	if err != nil {
		return err
	}
	if last.IsZero() {
		fmt.Fprintln(a.out, "never synced; run `vulnlib cache sync`")
		return nil
	}
	fmt.Fprintf(a.out, "last synced %s\n", ui.RelativeTime(last))
	return nil
}
