package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/specialistvlad/gridhost/internal/executor"
	"github.com/specialistvlad/gridhost/internal/runmode"
	"github.com/specialistvlad/gridhost/internal/server"
	"github.com/specialistvlad/gridhost/internal/watcher"
)

// ErrStartupFailed is returned when a single-file run ends in ERROR mode.
var ErrStartupFailed = errors.New("startup failed")

// Run executes the configured lifecycle until it completes or ctx is
// cancelled.
func (a *App) Run(ctx context.Context) error {
	ctx = a.context(ctx)
	a.logger.Debug("App.Run method started.", "mode", a.config.Mode, "runtime_mode", a.state.Mode())

	if a.config.HealthcheckPort > 0 {
		a.startHealthcheckServer(a.config.HealthcheckPort)
		defer func() { _ = a.closeHealthcheckServer(context.WithoutCancel(ctx)) }()
	}

	var err error
	switch a.config.Mode {
	case ModeRun:
		err = a.runFile(ctx)
	default:
		err = a.serve(ctx)
	}

	a.logger.Debug("App.Run method finished.", "runtime_mode", a.state.Mode())
	return err
}

// serve deploys the source directory and hosts the result.
func (a *App) serve(ctx context.Context) error {
	if err := a.deployer.DeployDir(ctx, a.config.SourceDir); err != nil {
		return err
	}
	return a.host(ctx, a.config.Watch)
}

// runFile deploys one file and either invokes its main function or hosts its
// services.
func (a *App) runFile(ctx context.Context) error {
	_, err := a.deployer.DeployFile(ctx, a.config.File)
	if a.state.Is(runmode.Error) {
		return fmt.Errorf("%w: %s: %w", ErrStartupFailed, a.config.File, err)
	}

	entry, ok := a.state.MainFunction()
	if !ok {
		a.logger.Info("No main function, hosting services.", "file", a.config.File)
		return a.host(ctx, false)
	}

	a.logger.Info("🚀 Invoking main function.", "file", entry.File.Name, "args", len(a.config.Args))
	result, err := executor.InvokeStrings(ctx, a.scope, entry.Function, a.config.Args)
	if err != nil {
		return fmt.Errorf("running %s: %w", entry.File.Name, err)
	}
	out, err := executor.FormatResult(result)
	if err != nil {
		return err
	}
	if out != "" {
		fmt.Fprintln(a.outW, out)
	}
	a.logger.Info("🏁 Execution finished.")
	return nil
}

// host runs the HTTP host, the session sweeper and, when watch is set, the
// source directory watcher until ctx is cancelled.
func (a *App) host(ctx context.Context, watch bool) error {
	if err := a.sessions.StartSweeper(ctx, a.config.SessionSweep); err != nil {
		return err
	}
	defer a.sessions.Stop()

	if watch {
		w, err := watcher.New(a.config.SourceDir, a.deployer.Extension(), a.deployer)
		if err != nil {
			return err
		}
		defer w.Close()
		go func() {
			if err := w.Run(ctx); err != nil {
				a.logger.Error("Source watcher stopped.", "error", err)
			}
		}()
	}

	srv := server.New(ctx, server.Config{
		Address:    a.config.Address,
		Registry:   a.registry,
		Dispatcher: a.dispatch,
		Scope:      a.scope,
	})
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		if err := srv.Shutdown(context.WithoutCancel(ctx)); err != nil {
			return fmt.Errorf("shutting down http host: %w", err)
		}
		return <-errCh
	}
}
