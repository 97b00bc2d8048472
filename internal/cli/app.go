package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/dyike/QuantPilot/config"
	"github.com/dyike/QuantPilot/internal/api"
	"github.com/dyike/QuantPilot/internal/cache"
	"github.com/dyike/QuantPilot/internal/chat"
	"github.com/dyike/QuantPilot/internal/clipboard"
	"github.com/dyike/QuantPilot/internal/guard"
	"github.com/dyike/QuantPilot/internal/logging"
	"github.com/dyike/QuantPilot/internal/session"
	"github.com/dyike/QuantPilot/internal/settings"
	"github.com/dyike/QuantPilot/internal/storage"
	"github.com/dyike/QuantPilot/internal/storage/sqlite"
)

var (
	errLoginRequired = errors.New("login required")
	errForbidden     = errors.New("insufficient permission")
)

// App owns everything a command needs. It is built once per invocation in
// the root command's PersistentPreRunE and closed by the release func
// NewRootCmd returns.
type App struct {
	cfg      config.Config
	manager  *config.Manager
	logger   *zap.Logger
	session  *session.Store
	client   *api.Client
	guard    *guard.Guard
	history  *sqlite.Store
	mirror   *storage.Mirror
	settings *settings.Editor
	chat     *chat.Store
	klines   *cache.KLineCache
	out      io.Writer
}

type appOptions struct {
	configDir string
	debug     bool
}

func newApp(opts appOptions, out io.Writer) (*App, error) {
	mgr, err := config.NewManager(config.WithConfigDir(opts.configDir))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg := mgr.Get()
	cfg.ApplyEnv()
	if opts.debug {
		cfg.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	logger, err := logging.New(cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &App{cfg: cfg, manager: mgr, logger: logger, out: out}
	closeOnErr := func(err error) (*App, error) {
		a.Close()
		return nil, err
	}

	a.session, err = session.Open(cfg.SessionDBPath())
	if err != nil {
		return closeOnErr(err)
	}

	a.client = api.New(&a.cfg, a.session,
		api.WithLogger(logger),
		api.WithRedirector(func(path string) {
			DisplayError(out, fmt.Errorf("session expired, run 'quantpilot login' (%s)", path))
		}),
	)
	a.guard = guard.New(a.session, a.client.Auth,
		guard.WithTimeout(cfg.VerifyTimeout.Std()),
		guard.WithLogger(logger),
	)

	a.history, err = storage.OpenHistory(&a.cfg)
	if err != nil {
		return closeOnErr(fmt.Errorf("open history: %w", err))
	}
	a.mirror, err = storage.NewMirror(a.history, logger)
	if err != nil {
		return closeOnErr(err)
	}

	a.settings, err = settings.NewEditor(mgr)
	if err != nil {
		return closeOnErr(err)
	}

	a.chat = chat.New(a.client.Chat,
		chat.WithFavorites(a.client.Favorites),
		chat.WithRecorder(a.mirror),
		chat.WithSettings(a.settings),
		chat.WithClipboard(clipboard.New(nil, out)),
		chat.WithExportDir(cfg.ExportDir),
		chat.WithLogger(logger),
	)
	a.klines = cache.New(filepath.Join(cfg.DataDir, "market"), cache.WithLogger(logger))
	return a, nil
}

// Close flushes the history mirror and releases the local stores.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.mirror != nil {
		a.mirror.Close()
	}
	if a.history != nil {
		_ = a.history.Close()
	}
	if a.session != nil {
		_ = a.session.Close()
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// watchConfig follows edits to the config file until ctx is done and feeds
// the new assistant settings to the editor.
func (a *App) watchConfig(ctx context.Context) {
	if a.manager == nil {
		return
	}
	err := a.manager.Watch(ctx, func(cfg config.Config) {
		applied := a.settings != nil && a.settings.Reload(cfg.AI)
		a.logger.Info("config reloaded",
			zap.String("api_base_url", cfg.APIBaseURL),
			zap.Bool("ai_settings_applied", applied),
		)
	})
	if err != nil {
		a.logger.Warn("config watch unavailable", zap.Error(err))
	}
}

// requireRoute runs the session guard for path and turns a redirect into an
// error the command can return.
func (a *App) requireRoute(ctx context.Context, path string) error {
	route, ok := guard.Lookup(guard.DefaultRoutes(), path)
	if !ok {
		return fmt.Errorf("unknown route %s", path)
	}
	d := a.guard.Resolve(ctx, route)
	switch d.Outcome {
	case guard.Proceed:
		if d.Degraded {
			DisplayInfo(a.out, "Session could not be verified, continuing with the saved login")
		}
		return nil
	case guard.RedirectToLogin:
		return fmt.Errorf("%w: run 'quantpilot login' (then return to %s)", errLoginRequired, d.Redirect)
	case guard.RedirectToLanding:
		return fmt.Errorf("%w for %s, try %s", errForbidden, route.Title, d.Target)
	default:
		return fmt.Errorf("navigation to %s was superseded", path)
	}
}
