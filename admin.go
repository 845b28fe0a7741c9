package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"vulnlib/library"
	"vulnlib/ui"
)

func newAdminCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "admin", Short: "User management, audit log and maintenance"}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "users",
			Short: "List every account",
			Args:  exactArgs(0),
			RunE: func(cmd *cobra.Command, _ []string) error {
				users, err := a.client.Admin.Users(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "%-36s %-20s %-30s %-10s %s\n", "ID", "Username", "Email", "Role", "Created")
				for _, u := range users {
					fmt.Fprintf(a.out, "%-36s %-20s %-30s %-10s %s\n", u.ID, u.Username, u.Email, u.Role, ui.FormatDate(u.CreatedAt.Time))
				}
				return nil
			},
		},
		newAdminCreateUserCmd(a),
		newAdminUpdateUserCmd(a),
		newAdminDeleteUserCmd(a),
		&cobra.Command{
			Use:   "logs",
			Short: "Show the audit log",
			Args:  exactArgs(0),
			RunE: func(cmd *cobra.Command, _ []string) error {
				logs, err := a.client.Admin.Logs(cmd.Context())
				if err != nil {
					return err
				}
				for _, l := range logs {
					fmt.Fprintf(a.out, "%s  %-16s %-8s %-36s %s %s\n", ui.FormatDateTime(l.CreatedAt.Time), l.Action,
						l.ResourceType, l.ResourceID, l.IPAddress, l.Details)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "clean-db",
			Short: "Run the database cleanup now",
			Args:  exactArgs(0),
			RunE: func(cmd *cobra.Command, _ []string) error {
				if !a.prompt.Confirm("Clean the database?", nil) {
					a.toasts.Info("Cancelled")
					return nil
				}
				res, err := a.client.Admin.CleanDatabase(cmd.Context())
				if err != nil {
					return err
				}
				a.ok(res, "Database cleaned")
				return nil
			},
		},
		newAdminSchedulerCmd(a),
	)
	return cmd
}

func userInputFlags(cmd *cobra.Command, in *library.UserInput) {
	cmd.Flags().StringVar(&in.Username, "username", "", "account name")
	cmd.Flags().StringVar(&in.Email, "email", "", "e-mail address")
	cmd.Flags().StringVar(&in.Role, "role", "", "member, librarian or admin")
}

func validRole(role string) bool {
	switch role {
	case "", library.RoleMember, library.RoleLibrarian, library.RoleAdmin:
		return true
	}
	return false
}

func newAdminCreateUserCmd(a *app) *cobra.Command {
	var in library.UserInput
	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create an account with any role",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !validRole(in.Role) {
				return usagef("unknown role %q", in.Role)
			}
			form := ui.NewForm(
				&ui.Field{Name: "username", Label: "Username", Value: in.Username, Required: true},
				&ui.Field{Name: "email", Label: "Email", Value: in.Email, Required: true},
				&ui.Field{Name: "password", Label: "Password", Required: true, Secret: true},
			)
			if err := a.fill(form); err != nil {
				return err
			}
			data := form.Serialize()
			in.Username, in.Email, in.Password = data["username"], data["email"], data["password"]
			if in.Role == "" {
				in.Role = library.RoleMember
			}
			res, err := a.client.Admin.CreateUser(cmd.Context(), in)
			if err != nil {
				return err
			}
			a.ok(res, "User created")
			return nil
		},
	}
	userInputFlags(cmd, &in)
	return cmd
}

func newAdminUpdateUserCmd(a *app) *cobra.Command {
	var in library.UserInput
	var changePassword bool
	cmd := &cobra.Command{
		Use:   "update-user USER_ID",
		Short: "Change an account",
		Args:  exactArgs(1, "USER_ID"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !validRole(in.Role) {
				return usagef("unknown role %q", in.Role)
			}
			if changePassword {
				pw, err := a.secret("New password: ")
				if err != nil {
					return fmt.Errorf("read password: %w", err)
				}
				in.Password = pw
			}
			if in == (library.UserInput{}) {
				return usagef("nothing to update")
			}
			res, err := a.client.Admin.UpdateUser(cmd.Context(), args[0], in)
			if err != nil {
				return err
			}
			a.ok(res, "User updated")
			return nil
		},
	}
	userInputFlags(cmd, &in)
	cmd.Flags().BoolVar(&changePassword, "password", false, "prompt for a new password")
	return cmd
}

func newAdminDeleteUserCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete-user USER_ID",
		Short: "Delete an account",
		Args:  exactArgs(1, "USER_ID"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes && !a.prompt.Confirm(fmt.Sprintf("Delete user %s?", args[0]), nil) {
				a.toasts.Info("Cancelled")
				return nil
			}
			res, err := a.client.Admin.DeleteUser(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			a.ok(res, "User deleted")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func newAdminSchedulerCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "scheduler", Short: "Automatic database cleanup"}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "Show whether the cleanup runs and when next",
			Args:  exactArgs(0),
			RunE: func(cmd *cobra.Command, _ []string) error {
				st, err := a.client.Admin.SchedulerStatus(cmd.Context())
				if err != nil {
					return err
				}
				next := st.NextCleanup
				if ts, err := library.ParseTimestamp(next); err == nil {
					next = ui.FormatDateTime(ts.Time) + " (" + ui.RelativeTime(ts.Time) + ")"
				}
				fmt.Fprintf(a.out, "enabled: %s\nnext cleanup: %s\n", st.Enabled, next)
				return nil
			},
		},
		&cobra.Command{
			Use:   "set HOURS",
			Short: "Run the cleanup every HOURS hours",
			Args:  exactArgs(1, "HOURS"),
			RunE: func(cmd *cobra.Command, args []string) error {
				hours, err := strconv.Atoi(args[0])
				if err != nil || hours <= 0 {
					return usagef("hours must be a positive number, got %q", args[0])
				}
				res, err := a.client.Admin.ConfigureScheduler(cmd.Context(), hours)
				if err != nil {
					return err
				}
				a.ok(res, fmt.Sprintf("Cleanup scheduled every %d hours", hours))
				return nil
			},
		},
		&cobra.Command{
			Use:   "disable",
			Short: "Stop the automatic cleanup",
			Args:  exactArgs(0),
			RunE: func(cmd *cobra.Command, _ []string) error {
				res, err := a.client.Admin.DisableScheduler(cmd.Context())
				if err != nil {
					return err
				}
				a.ok(res, "Scheduler disabled")
				return nil
			},
		},
	)
	return cmd
}

func newReportsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "reports", Short: "Usage reports"}
	now := time.Now()
	var year, month int
	loans := &cobra.Command{
		Use:   "loans",
		Short: "Loans requested in one month",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if month < 1 || month > 12 {
				return usagef("month must be 1 to 12, got %d", month)
			}
			rows, err := a.client.Reports.Loans(cmd.Context(), year, month)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s %d: %d loans\n", time.Month(month), year, len(rows))
			for _, r := range rows {
				fmt.Fprintf(a.out, "%-36s %-20s %-30.30s %-10s %s\n", r.LoanID, r.Username, r.BookTitle, r.Status, r.RequestedAt)
			}
			return nil
		},
	}
	loans.Flags().IntVar(&year, "year", now.Year(), "year")
	loans.Flags().IntVar(&month, "month", int(now.Month()), "month, 1 to 12")
	cmd.AddCommand(loans)
	return cmd
}
