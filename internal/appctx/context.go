// Package appctx provides application context helpers.
package appctx

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/widgetstore/wsq/internal/api"
	"github.com/widgetstore/wsq/internal/auth"
	"github.com/widgetstore/wsq/internal/config"
	"github.com/widgetstore/wsq/internal/output"
	"github.com/widgetstore/wsq/internal/session"
)

// contextKey is a private type for context keys.
type contextKey string

const appKey contextKey = "app"

// App holds the shared application context for all commands.
type App struct {
	Config  *config.Config
	Session *session.Store
	Auth    *auth.Manager
	API     *api.Client
	Output  *output.Writer
	Notify  output.Notifier

	// Flags holds the global flag values
	Flags GlobalFlags
}

// GlobalFlags holds values for global CLI flags.
type GlobalFlags struct {
	// Output format flags
	JSON    bool
	YAML    bool
	Quiet   bool
	IDsOnly bool
	Count   bool
	JQ      string

	// Environment flags
	EnvName string
	Dev     bool
	DevSet  bool // whether --dev was passed at all
	DataDir string

	// Behavior flags
	Verbose int
}

// NewApp creates a new App with the given configuration. Session-persisted
// environment values (env name, dev mode written by a login callback or
// `config set`) overlay config defaults, but never env vars or flags.
func NewApp(cfg *config.Config) *App {
	store := session.NewStore(cfg.DataDir)

	if settings, err := store.Load(); err == nil {
		if _, set := cfg.Sources["env_name"]; !set && settings.EnvName != "" {
			cfg.EnvName = settings.EnvName
			cfg.Sources["env_name"] = string(config.SourceSession)
		}
		if _, set := cfg.Sources["dev_mode"]; !set && settings.DevMode {
			cfg.DevMode = settings.DevMode
			cfg.Sources["dev_mode"] = string(config.SourceSession)
		}
	}

	notify := output.NewNotifier()
	httpClient := &http.Client{Timeout: 30 * time.Second}
	authMgr := auth.NewManager(cfg, store, httpClient, notify)
	apiClient := api.NewClient(cfg, authMgr)

	return &App{
		Config:  cfg,
		Session: store,
		Auth:    authMgr,
		API:     apiClient,
		Output:  output.New(output.DefaultOptions()),
		Notify:  notify,
	}
}

// ApplyFlags resolves output and logging behavior from the global flags.
func (a *App) ApplyFlags() {
	opts := output.DefaultOptions()
	switch a.Config.Format {
	case "json":
		opts.Format = output.FormatJSON
	case "yaml":
		opts.Format = output.FormatYAML
	case "quiet":
		opts.Format = output.FormatQuiet
	}
	switch {
	case a.Flags.Quiet:
		opts.Format = output.FormatQuiet
	case a.Flags.YAML:
		opts.Format = output.FormatYAML
	case a.Flags.IDsOnly:
		opts.Format = output.FormatIDs
	case a.Flags.Count:
		opts.Format = output.FormatCount
	case a.Flags.JSON:
		opts.Format = output.FormatJSON
	}
	opts.JQ = a.Flags.JQ
	a.Output = output.New(opts)

	if a.Flags.Verbose > 0 {
		debugLogger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		a.API.SetLogger(debugLogger)
	}
}

// OK outputs a success response.
func (a *App) OK(data any, opts ...output.ResponseOption) error {
	return a.Output.OK(data, opts...)
}

// WithApp stores the app in the context.
func WithApp(ctx context.Context, app *App) context.Context {
	return context.WithValue(ctx, appKey, app)
}

// FromContext retrieves the app from the context, or nil.
func FromContext(ctx context.Context) *App {
	app, _ := ctx.Value(appKey).(*App)
	return app
}
