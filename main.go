package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http/cookiejar"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"vulnlib/api"
	"vulnlib/config"
	"vulnlib/library"
	"vulnlib/session"
	"vulnlib/ui"
)

const genericFailure = "An unexpected error occurred. Please try again."

// app is the state shared by every command of one invocation.
type app struct {
	cfg    *config.Config
	log    zerolog.Logger
	client *api.Client
	store  *session.Store
	sess   *session.Session
	toasts *ui.Notifier
	prompt *ui.Prompter
	out    io.Writer
	errOut io.Writer
	in     io.Reader

	urlFlag      string
	logLevelFlag string
	loggedOut    bool
}

// usageError is a mistake on the command line. Its message is shown as is.
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// readPassword securely reads a password with masking
func readPassword(w io.Writer, fd int, prompt string) (string, error) {
	fmt.Fprint(w, prompt)
	bytePassword, err := term.ReadPassword(fd)
	if err != nil {
		return "", err
	}
	fmt.Fprintln(w) // Add newline after password input
	return strings.TrimSpace(string(bytePassword)), nil
}

// secret reads a value without echo when attached to a terminal, and as a
// plain line otherwise.
func (a *app) secret(prompt string) (string, error) {
	if a.prompt.ReadSecret != nil {
		return a.prompt.ReadSecret(prompt)
	}
	return a.prompt.Line(prompt)
}

func main() {
	a := &app{out: os.Stdout, errOut: os.Stderr, in: os.Stdin}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(a).ExecuteContext(ctx)
	stop()
	if err != nil {
		a.report(err)
		a.toasts.Close()
		os.Exit(1)
	}
	a.toasts.Close()
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "vulnlib",
		Short:         "Command-line client for the VulnLib library service",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.persist()
		},
	}
	root.PersistentFlags().StringVar(&a.urlFlag, "url", "", "server base URL (overrides VULNLIB_URL)")
	root.PersistentFlags().StringVar(&a.logLevelFlag, "log-level", "", "log level (overrides LOG_LEVEL)")
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{msg: err.Error()}
	})

	root.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newRegisterCmd(a),
		newWhoamiCmd(a),
		newBooksCmd(a),
		newUsersCmd(a),
		newLoansCmd(a),
		newAdminCmd(a),
		newReportsCmd(a),
		newCacheCmd(a),
		newShellCmd(a),
	)
	return root
}

// setup loads config, logging, the saved session and the API client.
func (a *app) setup() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if a.urlFlag != "" {
		cfg.BaseURL = a.urlFlag
	}
	if a.logLevelFlag != "" {
		lvl, err := zerolog.ParseLevel(strings.ToLower(a.logLevelFlag))
		if err != nil {
			return usagef("invalid --log-level %q", a.logLevelFlag)
		}
		cfg.LogLevel = lvl
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	zerolog.TimeFieldFormat = time.RFC3339
	a.log = zerolog.New(zerolog.ConsoleWriter{Out: a.errOut, TimeFormat: time.Kitchen}).
		Level(cfg.LogLevel).With().Timestamp().Logger()

	a.toasts = ui.NewNotifier(a.errOut, cfg.ToastDuration)
	a.prompt = ui.NewPrompter(a.in, a.errOut)
	// Piped input stays with the prompter's scanner, which may already have
	// buffered the lines a direct read would need.
	if f, ok := a.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd := int(f.Fd())
		a.prompt.ReadSecret = func(prompt string) (string, error) {
			return readPassword(a.errOut, fd, prompt)
		}
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return fmt.Errorf("create cookie jar: %w", err)
	}
	a.client, err = api.New(cfg.BaseURL,
		api.WithPrefix(cfg.APIPrefix),
		api.WithCookieJar(jar),
		api.WithUserAgent("vulnlib-cli"),
		api.WithLogger(a.log),
	)
	if err != nil {
		return err
	}

	a.store = session.NewStore(cfg.SessionFile, cfg.SessionKey)
	a.sess, err = a.store.LoadFor(a.client.BaseURL())
	switch {
	case errors.Is(err, session.ErrNoSession):
		a.sess = nil
	case errors.Is(err, session.ErrOtherServer):
		a.log.Debug().Err(err).Msg("not replaying saved session")
		a.sess = nil
	case err != nil:
		a.log.Warn().Err(err).Str("file", a.store.Path()).Msg("ignoring saved session")
		a.sess = nil
	default:
		a.sess.Restore(jar, a.client.BaseURL())
	}
	return nil
}

// persist writes back cookies the server may have rotated.
func (a *app) persist() error {
	if a.loggedOut || a.sess == nil || a.client == nil {
		return nil
	}
	a.sess.Capture(a.client.Jar(), a.client.BaseURL())
	if !a.sess.LoggedIn() {
		return nil
	}
	if err := a.store.Save(a.sess); err != nil {
		a.log.Warn().Err(err).Msg("could not save session")
	}
	return nil
}

// report turns a failed command into a notification. Server messages are
// shown verbatim; anything unexpected gets the generic text and the detail
// goes to the log.
func (a *app) report(err error) {
	if a.toasts == nil {
		a.toasts = ui.NewNotifier(a.errOut, 0)
	}
	var (
		reqErr   *api.RequestError
		usageErr *usageError
	)
	switch {
	case errors.As(err, &reqErr):
		a.toasts.Error(reqErr.Message)
		if api.IsUnauthorized(err) {
			a.toasts.Info("Log in with `vulnlib login` and try again.")
		}
	case errors.As(err, &usageErr):
		a.toasts.Warning(usageErr.msg)
	case strings.HasPrefix(err.Error(), "unknown command"):
		a.toasts.Warning(err.Error())
	case errors.Is(err, session.ErrNoSession), errors.Is(err, context.Canceled):
		a.toasts.Warning(err.Error())
	default:
		a.log.Error().Err(err).Msg("command failed")
		a.toasts.Error(genericFailure)
	}
}

// ok shows a success toast for res, falling back to fallback when the server
// sent no message.
func (a *app) ok(res *library.Result, fallback string) {
	msg := fallback
	if res != nil && res.Message != "" {
		msg = res.Message
	}
	a.toasts.Success(msg)
}

// userID picks the --user flag, then the logged-in user.
func (a *app) userID(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if a.sess != nil && a.sess.UserID != "" {
		return a.sess.UserID, nil
	}
	if a.sess == nil {
		return "", session.ErrNoSession
	}
	return "", usagef("your user id is unknown; pass --user")
}

// exactArgs is cobra.ExactArgs with a usageError.
func exactArgs(n int, names ...string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return usagef("usage: %s %s", cmd.CommandPath(), strings.Join(names, " "))
		}
		return nil
	}
}
