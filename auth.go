package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"vulnlib/library"
	"vulnlib/session"
	"vulnlib/ui"
)

func newLoginCmd(a *app) *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and remember the session",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			form := ui.NewForm(
				&ui.Field{Name: "username", Label: "Username", Value: username, Required: true},
				&ui.Field{Name: "password", Label: "Password", Required: true, Secret: true},
			)
			if err := a.fill(form); err != nil {
				return err
			}
			data := form.Serialize()
			return a.login(cmd.Context(), data["username"], data["password"])
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "account name")
	return cmd
}

// login authenticates and stores the new session.
func (a *app) login(ctx context.Context, username, password string) error {
	res, err := a.client.Auth.Login(ctx, library.Credentials{Username: username, Password: password})
	if err != nil {
		return err
	}
	a.sess = &session.Session{Username: username}
	a.resolveIdentity(ctx)
	a.sess.Capture(a.client.Jar(), a.client.BaseURL())
	if err := a.store.Save(a.sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	a.loggedOut = false
	a.ok(res, "Logged in successfully")
	return nil
}

// resolveIdentity fills in id and role. The API has no "current user"
// endpoint, so this only works for accounts that may list users.
func (a *app) resolveIdentity(ctx context.Context) {
	users, err := a.client.Admin.Users(ctx)
	if err != nil {
		a.log.Debug().Err(err).Msg("cannot resolve user id; pass --user where needed")
		return
	}
	for _, u := range users {
		if u.Username == a.sess.Username {
			a.sess.UserID = u.ID
			a.sess.Role = u.Role
			return
		}
	}
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := a.client.Auth.Logout(cmd.Context())
			if clearErr := a.store.Clear(); clearErr != nil {
				return clearErr
			}
			a.sess = nil
			a.loggedOut = true
			if err != nil {
				return err
			}
			a.ok(res, "Logged out")
			return nil
		},
	}
}

func newRegisterCmd(a *app) *cobra.Command {
	var username, email string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a member account",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			form := ui.NewForm(
				&ui.Field{Name: "username", Label: "Username", Value: username, Required: true},
				&ui.Field{Name: "email", Label: "Email", Value: email, Required: true},
				&ui.Field{Name: "password", Label: "Password", Required: true, Secret: true},
			)
			if err := a.fill(form); err != nil {
				return err
			}
			data := form.Serialize()
			res, err := a.client.Auth.Register(cmd.Context(), library.UserInput{
				Username: data["username"],
				Email:    data["email"],
				Password: data["password"],
			})
			if err != nil {
				return err
			}
			a.ok(res, "Registration successful")
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "account name")
	cmd.Flags().StringVar(&email, "email", "", "e-mail address")
	return cmd
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.sess == nil {
				return session.ErrNoSession
			}
			id := a.sess.UserID
			if id == "" {
				id = "unknown"
			}
			fmt.Fprintf(a.out, "%s (role %s, id %s) on %s\n", a.sess.Username, a.sess.Role, id, a.sess.Server)
			fmt.Fprintf(a.out, "session saved %s\n", ui.RelativeTime(a.sess.SavedAt))
			return nil
		},
	}
}

// fill prompts for missing values and validates the form.
func (a *app) fill(form *ui.Form) error {
	if err := a.prompt.Fill(form); err != nil {
		return err
	}
	if !form.Validate() {
		names := ""
		for i, f := range form.Invalid() {
			if i > 0 {
				names += ", "
			}
			names += f.Label
		}
		return usagef("required: %s", names)
	}
	return nil
}
