package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"vulnlib/library"
	"vulnlib/ui"
)

func newUsersCmd(a *app) *cobra.Command {
	var user string
	cmd := &cobra.Command{Use: "users", Short: "Profile, loans, fines and wishlist of a user"}
	cmd.PersistentFlags().StringVar(&user, "user", "", "user id (default: the logged-in user)")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "get",
			Short: "Show the profile",
			Args:  exactArgs(0),
			RunE: func(cmd *cobra.Command, _ []string) error {
				id, err := a.userID(user)
				if err != nil {
					return err
				}
				u, err := a.client.Users.Get(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "%s <%s>\n  role %s\n  id %s\n", u.Username, u.Email, u.Role, u.ID)
				if u.Avatar != "" {
					fmt.Fprintf(a.out, "  avatar %s\n", u.Avatar)
				}
				if !u.CreatedAt.IsZero() {
					fmt.Fprintf(a.out, "  member since %s\n", ui.FormatDate(u.CreatedAt.Time))
				}
				return nil
			},
		},
		newUsersUpdateCmd(a, &user),
		&cobra.Command{
			Use:   "loans",
			Short: "List the user's loans",
			Args:  exactArgs(0),
			RunE: func(cmd *cobra.Command, _ []string) error {
				id, err := a.userID(user)
				if err != nil {
					return err
				}
				loans, err := a.client.Users.Loans(cmd.Context(), id)
				if err != nil {
					return err
				}
				return ui.RenderLoans(a.out, loans)
			},
		},
		&cobra.Command{
			Use:   "fines",
			Short: "List the user's fines",
			Args:  exactArgs(0),
			RunE: func(cmd *cobra.Command, _ []string) error {
				id, err := a.userID(user)
				if err != nil {
					return err
				}
				fines, err := a.client.Users.Fines(cmd.Context(), id)
				if err != nil {
					return err
				}
				if len(fines) == 0 {
					fmt.Fprintln(a.out, "No fines.")
					return nil
				}
				var owed float64
				for _, f := range fines {
					fmt.Fprintf(a.out, "%-36s $%-8s %-7s %s (%s)\n", f.ID, humanize.FormatFloat("#,###.##", f.Amount),
						f.Status, f.Reason, ui.FormatDate(f.CreatedAt.Time))
					if !f.Paid() {
						owed += f.Amount
					}
				}
				fmt.Fprintf(a.out, "outstanding $%s\n", humanize.FormatFloat("#,###.##", owed))
				return nil
			},
		},
		&cobra.Command{
			Use:   "pay-fine FINE_ID AMOUNT",
			Short: "Pay a fine",
			Args:  exactArgs(2, "FINE_ID", "AMOUNT"),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := a.userID(user)
				if err != nil {
					return err
				}
				amount, err := strconv.ParseFloat(args[1], 64)
				if err != nil || amount <= 0 {
					return usagef("amount must be a positive number, got %q", args[1])
				}
				res, err := a.client.Users.PayFine(cmd.Context(), id, library.FinePayment{FineID: args[0], Amount: amount})
				if err != nil {
					return err
				}
				a.ok(res, "Fine payment processed")
				return nil
			},
		},
		&cobra.Command{
			Use:   "wishlist",
			Short: "List the wishlist",
			Args:  exactArgs(0),
			RunE: func(cmd *cobra.Command, _ []string) error {
				id, err := a.userID(user)
				if err != nil {
					return err
				}
				items, err := a.client.Users.Wishlist(cmd.Context(), id)
				if err != nil {
					return err
				}
				if len(items) == 0 {
					fmt.Fprintln(a.out, "Your wishlist is empty.")
					return nil
				}
				for _, it := range items {
					fmt.Fprintf(a.out, "%-36s %-30.30s %-25.25s added %s\n", it.ID, it.BookTitle, it.BookAuthor,
						ui.RelativeTime(it.CreatedAt.Time))
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "wish BOOK_ID",
			Short: "Add a book to the wishlist",
			Args:  exactArgs(1, "BOOK_ID"),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := a.userID(user)
				if err != nil {
					return err
				}
				res, err := a.client.Users.AddToWishlist(cmd.Context(), id, args[0])
				if err != nil {
					return err
				}
				a.ok(res, "Added to wishlist")
				return nil
			},
		},
		&cobra.Command{
			Use:   "unwish ITEM_ID",
			Short: "Remove an entry from the wishlist",
			Args:  exactArgs(1, "ITEM_ID"),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := a.userID(user)
				if err != nil {
					return err
				}
				res, err := a.client.Users.RemoveFromWishlist(cmd.Context(), id, args[0])
				if err != nil {
					return err
				}
				a.ok(res, "Removed from wishlist")
				return nil
			},
		},
		&cobra.Command{
			Use:   "avatar FILE",
			Short: "Upload a profile picture for the logged-in user",
			Args:  exactArgs(1, "FILE"),
			RunE: func(cmd *cobra.Command, args []string) error {
				f, err := os.Open(args[0])
				if err != nil {
					return usagef("%v", err)
				}
				defer f.Close()
				res, err := a.client.Users.UploadAvatar(cmd.Context(), filepath.Base(args[0]), f)
				if err != nil {
					return err
				}
				a.ok(res, "Avatar uploaded successfully")
				return nil
			},
		},
	)
	return cmd
}

func newUsersUpdateCmd(a *app, user *string) *cobra.Command {
	var username, email string
	var changePassword bool
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Change username, e-mail or password",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := a.userID(*user)
			if err != nil {
				return err
			}
			fields := map[string]any{}
			if username != "" {
				fields["username"] = username
			}
			if email != "" {
				fields["email"] = email
			}
			if changePassword {
				pw, err := a.secret("New password: ")
				if err != nil {
					return fmt.Errorf("read password: %w", err)
				}
				if pw == "" {
					return usagef("password cannot be empty")
				}
				fields["password"] = pw
			}
			if len(fields) == 0 {
				return usagef("nothing to update; pass --username, --email or --password")
			}
			res, err := a.client.Users.Update(cmd.Context(), id, fields)
			if err != nil {
				return err
			}
			if name, ok := fields["username"].(string); ok && a.sess != nil && id == a.sess.UserID {
				a.sess.Username = name
			}
			a.ok(res, "Profile updated successfully")
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "new username")
	cmd.Flags().StringVar(&email, "email", "", "new e-mail address")
	cmd.Flags().BoolVar(&changePassword, "password", false, "prompt for a new password")
	return cmd
}
