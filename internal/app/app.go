package app

import (
	"context"
	"io"
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/specialistvlad/gridhost/internal/ctxlog"
	"github.com/specialistvlad/gridhost/internal/deployer"
	"github.com/specialistvlad/gridhost/internal/dispatch"
	"github.com/specialistvlad/gridhost/internal/registry"
	"github.com/specialistvlad/gridhost/internal/runmode"
	"github.com/specialistvlad/gridhost/internal/semantic"
	"github.com/specialistvlad/gridhost/internal/session"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	config   *Config
	state    *runmode.State
	registry *registry.Registry
	scope    *semantic.Scope
	sessions *session.Manager
	dispatch *dispatch.Dispatcher
	deployer *deployer.Deployer

	healthServer *echo.Echo
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger, registry and
// session manager. When no modules are given the core modules are used.
func NewApp(outW io.Writer, cfg *Config, modules ...semantic.Module) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	logger.Debug("Logger configured successfully.")

	mode := runmode.Server
	if cfg.Mode == ModeRun {
		mode = runmode.RunFile
	}
	state := runmode.New(mode)

	if len(modules) == 0 {
		modules = coreModules(logger)
	}
	scope := semantic.NewGlobalScope(modules...)
	logger.Debug("Native modules registered.", "count", len(modules), "functions", len(scope.FunctionNames()))

	reg := registry.New()
	sessions := session.NewManager(session.ManagerConfig{
		MaxInactiveInterval: cfg.SessionTimeout,
		Shards:              cfg.SessionShards,
	})

	return &App{
		outW:     outW,
		logger:   logger,
		config:   cfg,
		state:    state,
		registry: reg,
		scope:    scope,
		sessions: sessions,
		dispatch: dispatch.New(sessions),
		deployer: deployer.New(deployer.Config{
			Registry:  reg,
			State:     state,
			Scope:     scope,
			Extension: cfg.Extension,
		}),
	}
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// State returns the runtime mode holder.
func (a *App) State() *runmode.State {
	return a.state
}

// Sessions returns the session manager.
func (a *App) Sessions() *session.Manager {
	return a.sessions
}

func (a *App) context(ctx context.Context) context.Context {
	return ctxlog.WithLogger(ctx, a.logger)
}
