package commands

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/widgetstore/wsq/internal/auth"
	"github.com/widgetstore/wsq/internal/output"
	"github.com/widgetstore/wsq/internal/session"
)

// NewAuthCmd creates the auth command group.
func NewAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage authentication",
		Long:  "Manage widget store authentication including login, logout, and status.",
	}

	cmd.AddCommand(
		newAuthLoginCmd(),
		newAuthCallbackCmd(),
		newAuthLogoutCmd(),
		newAuthStatusCmd(),
		newAuthTokenCmd(),
	)

	return cmd
}

func newAuthLoginCmd() *cobra.Command {
	var noBrowser bool
	var wait bool
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the widget store",
		Long: "Start the browser-delegated sign-in flow. The login completes out of band:\n" +
			"the browser hands the result back through the note-taking app's protocol\n" +
			"handler (or `wsq auth callback`). Use --wait to block until that happens.",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFromCmd(cmd)
			if err != nil {
				return err
			}

			loginURL, err := app.Auth.StartLogin(cmd.Context(), auth.LoginOptions{NoBrowser: noBrowser})
			if err != nil {
				return err
			}

			if !wait {
				return app.OK(map[string]string{
					"status":    "pending",
					"login_url": loginURL,
				}, output.WithSummary("Complete the sign-in in your browser, then run: wsq auth callback <url>"))
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			ok, err := app.Session.Watch(ctx, func(s *session.Settings) bool {
				return s.Authenticated()
			})
			if err != nil {
				if ctx.Err() == context.DeadlineExceeded {
					return output.ErrProtocol("Timed out waiting for the sign-in to complete")
				}
				return err
			}
			if !ok {
				return output.ErrProtocol("Sign-in did not complete")
			}

			return app.OK(map[string]string{
				"status": "signed_in",
			}, output.WithSummary("Signed in"))
		},
	}

	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "Don't open browser automatically")
	cmd.Flags().BoolVar(&wait, "wait", false, "Block until the out-of-band callback lands")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "How long --wait blocks before giving up")

	return cmd
}

func newAuthCallbackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "callback <url | key=value...>",
		Short: "Consume a sign-in callback",
		Long: "Consume the callback the provider delivered to the OS protocol handler.\n" +
			"Accepts the full callback URL or the raw key=value parameters.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFromCmd(cmd)
			if err != nil {
				return err
			}

			params, err := parseCallbackArgs(args)
			if err != nil {
				return output.ErrUsageHint("Could not parse callback", err.Error())
			}

			cb, err := auth.ParseCallback(params)
			if err != nil {
				// Reject before the manager ever sees the payload.
				app.Notify.Notify("Sign-in failed: missing required parameters")
				return output.ErrProtocol(err.Error())
			}

			if !app.Auth.HandleCallback(cmd.Context(), cb) {
				return output.ErrProtocol("Sign-in callback was not accepted")
			}

			return app.OK(app.Auth.User(), output.WithSummary("Signed in"))
		},
	}
}

// parseCallbackArgs turns either a callback URL (custom scheme or https)
// or key=value pairs into a flat parameter map.
func parseCallbackArgs(args []string) (map[string]string, error) {
	params := make(map[string]string)

	if len(args) == 1 && strings.Contains(args[0], "://") {
		u, err := url.Parse(args[0])
		if err != nil {
			return nil, err
		}
		query := u.RawQuery
		// Hash-routed URLs carry the query in the fragment.
		if query == "" && u.Fragment != "" {
			if idx := strings.IndexByte(u.Fragment, '?'); idx >= 0 {
				query = u.Fragment[idx+1:]
			}
		}
		values, err := url.ParseQuery(query)
		if err != nil {
			return nil, err
		}
		for k := range values {
			params[k] = values.Get(k)
		}
		return params, nil
	}

	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, &auth.MissingFieldError{Field: arg}
		}
		params[k] = v
	}
	return params, nil
}

func newAuthLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear stored credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFromCmd(cmd)
			if err != nil {
				return err
			}

			if err := app.Auth.Logout(); err != nil {
				return err
			}

			return app.OK(map[string]string{
				"status": "signed_out",
			}, output.WithSummary("Signed out"))
		},
	}
}

func newAuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show authentication status",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFromCmd(cmd)
			if err != nil {
				return err
			}

			status := map[string]any{
				"authenticated": app.Auth.IsAuthenticated(),
				"env":           app.Config.Env(),
				"dev_mode":      app.Config.DevMode,
			}
			summary := "Not signed in"
			if user := app.Auth.User(); user != nil {
				status["user"] = user
				summary = "Signed in as " + user.DisplayName()
			} else if app.Auth.IsAuthenticated() {
				summary = "Signed in (profile unknown)"
			}

			return app.OK(status, output.WithSummary(summary))
		},
	}
}

func newAuthTokenCmd() *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a usable access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFromCmd(cmd)
			if err != nil {
				return err
			}

			var token string
			if refresh {
				token, err = app.Auth.RefreshAccessToken(cmd.Context())
			} else {
				token, err = app.Auth.AccessToken(cmd.Context())
			}
			if err != nil {
				if err == auth.ErrNotAuthenticated {
					return output.ErrAuth("Not signed in")
				}
				return err
			}

			return app.OK(map[string]string{"access_token": token})
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "Force a refresh exchange")

	return cmd
}
