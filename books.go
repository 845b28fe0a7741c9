package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"vulnlib/library"
	"vulnlib/ui"
)

func newBooksCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "books", Short: "Browse and manage the catalog"}
	cmd.AddCommand(
		newBooksListCmd(a),
		newBooksGetCmd(a),
		newBooksCreateCmd(a),
		newBooksUpdateCmd(a),
		newBooksDeleteCmd(a),
		newBooksReviewsCmd(a),
		newBooksReviewCmd(a),
		newBooksImportCmd(a),
		newBooksUploadCmd(a),
	)
	return cmd
}

func newBooksListCmd(a *app) *cobra.Command {
	var q library.BookQuery
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List one page of the catalog",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			page, err := a.client.Books.List(cmd.Context(), q)
			if err != nil {
				return err
			}
			if err := ui.RenderBooks(a.out, page.Books, q.Search); err != nil {
				return err
			}
			st := page.State()
			if err := ui.RenderPagination(a.out, st.Current, st.Total); err != nil {
				return err
			}
			if page.Total > 0 {
				fmt.Fprintf(a.out, "page %d of %d, %d books\n", st.Current, st.Total, page.Total)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&q.Search, "search", "s", "", "match title, author or ISBN")
	cmd.Flags().StringVar(&q.Category, "category", "", "exact category")
	cmd.Flags().StringVar(&q.Author, "author", "", "author substring")
	cmd.Flags().IntVarP(&q.Page, "page", "p", 1, "page number")
	return cmd
}

func newBooksGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get BOOK_ID",
		Short: "Show a book",
		Args:  exactArgs(1, "BOOK_ID"),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.client.Books.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(a.out, ui.BookCard(b, ""))
			if b.ISBN != "" {
				fmt.Fprintf(a.out, "  isbn %s\n", b.ISBN)
			}
			if b.YearPublished > 0 {
				fmt.Fprintf(a.out, "  published %d\n", b.YearPublished)
			}
			if b.Description != "" {
				fmt.Fprintf(a.out, "\n%s\n", b.Description)
			}
			return nil
		},
	}
}

// bookFlags binds the editable book fields to cmd.
func bookFlags(cmd *cobra.Command, in *library.BookInput) {
	f := cmd.Flags()
	f.StringVar(&in.Title, "title", "", "title")
	f.StringVar(&in.Author, "author", "", "author")
	f.StringVar(&in.ISBN, "isbn", "", "ISBN")
	f.StringVar(&in.Category, "category", "", "category")
	f.StringVar(&in.Description, "description", "", "description")
	f.StringVar(&in.CoverURL, "cover-url", "", "cover image URL")
	f.StringVar(&in.MetadataURL, "metadata-url", "", "URL the server fetches extra metadata from")
	f.StringVar(&in.Tags, "tags", "", "comma separated tags")
	f.IntVar(&in.YearPublished, "year", 0, "year published")
}

func newBooksCreateCmd(a *app) *cobra.Command {
	var (
		in     library.BookInput
		copies int
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Add a book (librarian)",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if copies < 1 {
				return usagef("--copies must be at least 1")
			}
			form := ui.NewForm(
				&ui.Field{Name: "title", Label: "Title", Value: in.Title, Required: true},
				&ui.Field{Name: "author", Label: "Author", Value: in.Author, Required: true},
			)
			if err := a.fill(form); err != nil {
				return err
			}
			data := form.Serialize()
			in.Title, in.Author = data["title"], data["author"]
			in.SetCopies(copies)
			res, err := a.client.Books.Create(cmd.Context(), in)
			if err != nil {
				return err
			}
			a.ok(res, "Book created")
			if res.BookID != "" {
				fmt.Fprintln(a.out, res.BookID)
			}
			return nil
		},
	}
	bookFlags(cmd, &in)
	cmd.Flags().IntVar(&copies, "copies", 1, "total copies, all available")
	return cmd
}

func newBooksUpdateCmd(a *app) *cobra.Command {
	var (
		in                library.BookInput
		copies, available int
	)
	cmd := &cobra.Command{
		Use:   "update BOOK_ID",
		Short: "Change fields of a book (librarian)",
		Args:  exactArgs(1, "BOOK_ID"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("copies") {
				in.TotalCopies = &copies
			}
			if cmd.Flags().Changed("available") {
				in.AvailableCopies = &available
			}
			if copies < 0 || available < 0 {
				return usagef("copy counts cannot be negative")
			}
			if in == (library.BookInput{}) {
				return usagef("nothing to update; pass at least one field flag")
			}
			res, err := a.client.Books.Update(cmd.Context(), args[0], in)
			if err != nil {
				return err
			}
			a.ok(res, "Book updated")
			return nil
		},
	}
	bookFlags(cmd, &in)
	cmd.Flags().IntVar(&copies, "copies", 0, "total copies")
	cmd.Flags().IntVar(&available, "available", 0, "available copies")
	return cmd
}

func newBooksDeleteCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete BOOK_ID",
		Short: "Remove a book (librarian)",
		Args:  exactArgs(1, "BOOK_ID"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes && !a.prompt.Confirm(fmt.Sprintf("Delete book %s?", args[0]), nil) {
				a.toasts.Info("Cancelled")
				return nil
			}
			res, err := a.client.Books.Delete(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			a.ok(res, "Book deleted")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func newBooksReviewsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reviews BOOK_ID",
		Short: "List the reviews of a book",
		Args:  exactArgs(1, "BOOK_ID"),
		RunE: func(cmd *cobra.Command, args []string) error {
			reviews, err := a.client.Books.Reviews(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(reviews) == 0 {
				fmt.Fprintln(a.out, "No reviews yet.")
				return nil
			}
			for _, r := range reviews {
				who := r.Username
				if who == "" {
					who = r.UserID
				}
				fmt.Fprintf(a.out, "%s  %s (%s)\n", stars(r.Rating), who, ui.FormatDate(r.CreatedAt.Time))
				if r.Comment != "" {
					fmt.Fprintf(a.out, "    %s\n", r.Comment)
				}
			}
			return nil
		},
	}
}

func stars(rating int) string {
	rating = max(0, min(5, rating))
	s := ""
	for i := 0; i < 5; i++ {
		if i < rating {
			s += "★"
		} else {
			s += "☆"
		}
	}
	return s
}

func newBooksReviewCmd(a *app) *cobra.Command {
	var in library.ReviewInput
	cmd := &cobra.Command{
		Use:   "review BOOK_ID RATING [COMMENT]",
		Short: "Review a book",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) < 2 || len(args) > 3 {
				return usagef("usage: %s BOOK_ID RATING [COMMENT]", cmd.CommandPath())
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			rating, err := strconv.Atoi(args[1])
			if err != nil || rating < 1 || rating > 5 {
				return usagef("rating must be 1 to 5, got %q", args[1])
			}
			in.Rating = rating
			if len(args) == 3 {
				in.Comment = args[2]
			}
			if in.UserID == "" && a.sess != nil {
				in.UserID = a.sess.UserID
			}
			res, err := a.client.Books.AddReview(cmd.Context(), args[0], in)
			if err != nil {
				return err
			}
			a.ok(res, "Review added")
			return nil
		},
	}
	cmd.Flags().StringVar(&in.UserID, "user", "", "review as this user id")
	return cmd
}

func newBooksImportCmd(a *app) *cobra.Command {
	var notes string
	cmd := &cobra.Command{
		Use:   "import FILE.csv",
		Short: "Bulk import books from a CSV (librarian)",
		Args:  exactArgs(1, "FILE.csv"),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return usagef("%v", err)
			}
			defer f.Close()
			res, err := a.client.Books.Import(cmd.Context(), filepath.Base(args[0]), f, notes)
			if err != nil {
				return err
			}
			a.ok(res, "Books imported")
			return nil
		},
	}
	cmd.Flags().StringVar(&notes, "notes", "", "note recorded with the import")
	return cmd
}

func newBooksUploadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "upload BOOK_ID FILE",
		Short: "Attach a file to a book (librarian)",
		Args:  exactArgs(2, "BOOK_ID", "FILE"),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[1])
			if err != nil {
				return usagef("%v", err)
			}
			defer f.Close()
			res, err := a.client.Books.UploadFile(cmd.Context(), args[0], filepath.Base(args[1]), f)
			if err != nil {
				return err
			}
			a.ok(res, "File uploaded")
			if res.Filename != "" {
				fmt.Fprintln(a.out, res.Filename)
			}
			return nil
		},
	}
}
