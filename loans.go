package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"vulnlib/library"
	"vulnlib/ui"
)

const dateFlagLayout = "2006-01-02"

func newLoansCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "loans", Short: "Request, approve, extend and return loans"}
	cmd.AddCommand(
		newLoansRequestCmd(a),
		&cobra.Command{
			Use:   "approve LOAN_ID",
			Short: "Approve a pending loan (librarian)",
			Args:  exactArgs(1, "LOAN_ID"),
			RunE: func(cmd *cobra.Command, args []string) error {
				res, err := a.client.Loans.Approve(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				a.ok(res, "Loan approved")
				return nil
			},
		},
		newLoansExtendCmd(a),
		newLoansReturnCmd(a),
		&cobra.Command{
			Use:   "pending",
			Short: "List loans awaiting approval",
			Args:  exactArgs(0),
			RunE: func(cmd *cobra.Command, _ []string) error {
				loans, err := a.client.Loans.Pending(cmd.Context())
				if err != nil {
					return err
				}
				return ui.RenderLoans(a.out, loans)
			},
		},
		&cobra.Command{
			Use:   "all",
			Short: "List every loan, newest first (librarian)",
			Args:  exactArgs(0),
			RunE: func(cmd *cobra.Command, _ []string) error {
				loans, err := a.client.Loans.All(cmd.Context())
				if err != nil {
					return err
				}
				return ui.RenderLoans(a.out, loans)
			},
		},
		&cobra.Command{
			Use:   "extensions",
			Short: "Show the loan extension history (librarian)",
			Args:  exactArgs(0),
			RunE: func(cmd *cobra.Command, _ []string) error {
				exts, err := a.client.Loans.Extensions(cmd.Context())
				if err != nil {
					return err
				}
				if len(exts) == 0 {
					fmt.Fprintln(a.out, "No extensions.")
					return nil
				}
				for _, e := range exts {
					fmt.Fprintf(a.out, "%s  loan %s by %s: %s\n", ui.FormatDateTime(e.CreatedAt.Time), e.LoanID, e.Username, e.Details)
				}
				return nil
			},
		},
		newLoansSlipCmd(a),
	)
	return cmd
}

func parseDate(flag, value string) (time.Time, error) {
	t, err := time.ParseInLocation(dateFlagLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, usagef("--%s must look like %s, got %q", flag, dateFlagLayout, value)
	}
	return t, nil
}

func newLoansRequestCmd(a *app) *cobra.Command {
	var from, to string
	var days int
	cmd := &cobra.Command{
		Use:   "request BOOK_ID",
		Short: "Ask to borrow a book",
		Args:  exactArgs(1, "BOOK_ID"),
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now().UTC().Truncate(24 * time.Hour)
			if from != "" {
				t, err := parseDate("from", from)
				if err != nil {
					return err
				}
				start = t
			}
			end := start.AddDate(0, 0, days)
			if to != "" {
				t, err := parseDate("to", to)
				if err != nil {
					return err
				}
				end = t
			}
			if !end.After(start) {
				return usagef("the loan must end after it starts")
			}
			res, err := a.client.Loans.Create(cmd.Context(), library.LoanRequest{
				BookID:   args[0],
				FromDate: library.NewTimestamp(start),
				ToDate:   library.NewTimestamp(end),
			})
			if err != nil {
				return err
			}
			a.ok(res, "Loan requested")
			if res.LoanID != "" {
				fmt.Fprintln(a.out, res.LoanID)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "first day, YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&to, "to", "", "last day, YYYY-MM-DD")
	cmd.Flags().IntVar(&days, "days", 14, "loan length when --to is not given")
	return cmd
}

func newLoansExtendCmd(a *app) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "extend LOAN_ID DAYS",
		Short: "Push the due date back",
		Args:  exactArgs(2, "LOAN_ID", "DAYS"),
		RunE: func(cmd *cobra.Command, args []string) error {
			days, err := strconv.Atoi(args[1])
			if err != nil || days <= 0 {
				return usagef("days must be a positive number, got %q", args[1])
			}
			res, err := a.client.Loans.Extend(cmd.Context(), args[0], days, reason)
			if err != nil {
				return err
			}
			a.ok(res, "Loan extended")
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "why the extension is needed")
	return cmd
}

func newLoansReturnCmd(a *app) *cobra.Command {
	var on string
	cmd := &cobra.Command{
		Use:   "return LOAN_ID",
		Short: "Mark a loan returned",
		Args:  exactArgs(1, "LOAN_ID"),
		RunE: func(cmd *cobra.Command, args []string) error {
			var when time.Time
			if on != "" {
				t, err := parseDate("on", on)
				if err != nil {
					return err
				}
				when = t
			}
			res, err := a.client.Loans.Return(cmd.Context(), args[0], when)
			if err != nil {
				return err
			}
			a.ok(res, "Loan returned successfully")
			return nil
		},
	}
	cmd.Flags().StringVar(&on, "on", "", "return date, YYYY-MM-DD (default now, server clock)")
	return cmd
}

func newLoansSlipCmd(a *app) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "slip LOAN_ID",
		Short: "Download the PDF slip of a loan",
		Args:  exactArgs(1, "LOAN_ID"),
		RunE: func(cmd *cobra.Command, args []string) error {
			slip, err := a.client.Loans.Slip(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			path := filepath.Join(dir, filepath.Base(slip.Filename))
			if err := os.WriteFile(path, slip.Data, 0o644); err != nil {
				return fmt.Errorf("save slip: %w", err)
			}
			a.toasts.Success("Saved " + path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "directory to save the slip in")
	return cmd
}
