// Package deployer turns source artifacts into deployed applications.
//
// Every deployment runs the same pipeline: extension check, read, parse,
// semantic analysis, then either entry-point selection (single-file runs) or
// service registration. A failure is contained to the artifact being
// processed; in RUN_FILE mode it also switches the runtime mode to ERROR so
// startup does not continue with nothing to run.
package deployer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/specialistvlad/gridhost/internal/ctxlog"
	"github.com/specialistvlad/gridhost/internal/fsutil"
	"github.com/specialistvlad/gridhost/internal/model"
	"github.com/specialistvlad/gridhost/internal/registry"
	"github.com/specialistvlad/gridhost/internal/runmode"
	"github.com/specialistvlad/gridhost/internal/semantic"
)

const (
	// DefaultExtension is the recognized source-file extension.
	DefaultExtension = ".hcl"
	// DefaultPackageName holds files that declare no package.
	DefaultPackageName = "default"
	// MainFunctionName is the entry point looked up in RUN_FILE mode.
	MainFunctionName = semantic.EntryPointName
)

var (
	// ErrUnsupportedArtifact is returned for files without the recognized extension.
	ErrUnsupportedArtifact = errors.New("unsupported artifact")
	// ErrMissingEntryPoint is returned in RUN_FILE mode for a file with neither
	// a main function nor services.
	ErrMissingEntryPoint = errors.New("missing entry point")
	// ErrInvalidDirectory is returned when the source directory cannot be scanned.
	ErrInvalidDirectory = errors.New("invalid source directory")
)

// Artifact is a source file submitted for deployment.
type Artifact struct {
	// Name is the file name and the registry key of the resulting application.
	Name string
	Data []byte
}

// Parser turns source bytes into a file model.
type Parser interface {
	Parse(src []byte, fileName string) (*model.File, error)
}

// Analyzer checks a parsed file against the global scope.
type Analyzer interface {
	Analyze(ctx context.Context, file *model.File, scope *semantic.Scope) error
}

// Config holds the collaborators of a Deployer.
type Config struct {
	Registry *registry.Registry
	State    *runmode.State
	Scope    *semantic.Scope
	// Parser defaults to model.Parser.
	Parser Parser
	// Analyzer defaults to semantic.Analyzer.
	Analyzer Analyzer
	// Extension defaults to DefaultExtension.
	Extension string
}

// Deployer runs the deployment pipeline. It is safe for concurrent use.
type Deployer struct {
	registry  *registry.Registry
	state     *runmode.State
	scope     *semantic.Scope
	parser    Parser
	analyzer  Analyzer
	extension string
}

// New creates a Deployer. Registry, State and Scope are required.
func New(cfg Config) *Deployer {
	if cfg.Parser == nil {
		cfg.Parser = model.Parser{}
	}
	if cfg.Analyzer == nil {
		cfg.Analyzer = semantic.Analyzer{}
	}
	if cfg.Extension == "" {
		cfg.Extension = DefaultExtension
	}
	return &Deployer{
		registry:  cfg.Registry,
		state:     cfg.State,
		scope:     cfg.Scope,
		parser:    cfg.Parser,
		analyzer:  cfg.Analyzer,
		extension: cfg.Extension,
	}
}

// Extension returns the recognized source-file extension.
func (d *Deployer) Extension() string { return d.extension }

// Deploy deploys an artifact handed over by the host container. It is a
// no-op unless the runtime mode is SERVER. The artifact name is returned on
// every path since it is the registry key; the error is informational and
// has already been logged.
func (d *Deployer) Deploy(ctx context.Context, a Artifact) (string, error) {
	if !d.state.Is(runmode.Server) {
		ctxlog.FromContext(ctx).Debug("Ignoring deploy outside server mode.", "artifact", a.Name, "mode", d.state.Mode())
		return a.Name, nil
	}
	return d.deploy(ctx, a)
}

// Update replaces a deployed artifact: it undeploys the application keyed by
// the artifact name and deploys the new contents. Like Deploy it is gated on
// SERVER mode and always returns the artifact name.
func (d *Deployer) Update(ctx context.Context, a Artifact) (string, error) {
	if !d.state.Is(runmode.Server) {
		ctxlog.FromContext(ctx).Debug("Ignoring update outside server mode.", "artifact", a.Name, "mode", d.state.Mode())
		return a.Name, nil
	}
	d.Undeploy(ctx, a.Name)
	return d.deploy(ctx, a)
}

// Undeploy removes the application registered under key. It is a no-op
// unless the runtime mode is SERVER. A missing application is logged as a
// warning.
func (d *Deployer) Undeploy(ctx context.Context, key string) string {
	logger := ctxlog.FromContext(ctx).With("artifact", key)
	if !d.state.Is(runmode.Server) {
		logger.Debug("Ignoring undeploy outside server mode.", "mode", d.state.Mode())
		return key
	}
	if !d.registry.UnregisterApplication(key) {
		logger.Warn("No application to undeploy.")
		return key
	}
	logger.Info("Application undeployed.")
	return key
}

// DeployFile reads and deploys the file at path in the current runtime mode.
// It is the startup entry point for both serving and single-file runs.
func (d *Deployer) DeployFile(ctx context.Context, path string) (string, error) {
	name := filepath.Base(path)
	if !fsutil.HasExtension(name, d.extension) {
		return d.fail(ctx, name, fmt.Errorf("%w: %s does not have the %s extension", ErrUnsupportedArtifact, name, d.extension))
	}
	a, err := ReadArtifact(path)
	if err != nil {
		return d.fail(ctx, name, err)
	}
	return d.deploy(ctx, a)
}

// DeployDir deploys every source file found directly inside dir. A failing
// file is logged and skipped. A directory that cannot be scanned sets the
// runtime mode to ERROR.
func (d *Deployer) DeployDir(ctx context.Context, dir string) error {
	logger := ctxlog.FromContext(ctx).With("dir", dir)

	info, err := os.Stat(dir)
	if err == nil && !info.IsDir() {
		err = fmt.Errorf("not a directory")
	}
	var files []string
	if err == nil {
		files, err = fsutil.ListFilesByExtension(dir, d.extension)
	}
	if err != nil {
		d.state.SetMode(runmode.Error)
		logger.Error("Cannot scan source directory.", "error", err)
		return fmt.Errorf("%w %s: %w", ErrInvalidDirectory, dir, err)
	}

	if len(files) == 0 {
		logger.Warn("No source files found.", "extension", d.extension)
		return nil
	}

	deployed := 0
	for _, f := range files {
		if _, err := d.DeployFile(ctx, f); err == nil {
			deployed++
		}
	}
	logger.Info("Source directory deployed.", "deployed", deployed, "failed", len(files)-deployed)
	return nil
}

// ReadArtifact loads the file at path as an Artifact named after its base name.
func ReadArtifact(path string) (Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Artifact{}, fmt.Errorf("reading artifact %s: %w", path, err)
	}
	return Artifact{Name: filepath.Base(path), Data: data}, nil
}

// deploy runs the pipeline for a in the current runtime mode.
func (d *Deployer) deploy(ctx context.Context, a Artifact) (string, error) {
	logger := ctxlog.FromContext(ctx).With("artifact", a.Name)

	if !fsutil.HasExtension(a.Name, d.extension) {
		return d.fail(ctx, a.Name, fmt.Errorf("%w: %s does not have the %s extension", ErrUnsupportedArtifact, a.Name, d.extension))
	}

	file, err := d.parser.Parse(a.Data, a.Name)
	if err != nil {
		return d.fail(ctx, a.Name, err)
	}
	if err := d.analyzer.Analyze(ctx, file, d.scope); err != nil {
		return d.fail(ctx, a.Name, err)
	}

	if d.state.Is(runmode.RunFile) {
		if fn, ok := file.Function(MainFunctionName); ok {
			d.state.SetMainFunction(file, fn)
			logger.Info("Entry point selected.", "function", fn.Name)
			return a.Name, nil
		}
		if len(file.Services) == 0 {
			return d.fail(ctx, a.Name, fmt.Errorf("%w: %s declares neither a %q function nor any service", ErrMissingEntryPoint, a.Name, MainFunctionName))
		}
	}

	pkgName := file.PackageName
	if pkgName == "" {
		pkgName = DefaultPackageName
	}
	d.registry.PutFile(a.Name, pkgName, file)

	logger.Info("Application deployed.", "package", pkgName, "services", len(file.Services))
	return a.Name, nil
}

// fail logs a failed deployment and, in RUN_FILE mode, switches to ERROR.
// The artifact name is still returned as the key.
func (d *Deployer) fail(ctx context.Context, name string, err error) (string, error) {
	logger := ctxlog.FromContext(ctx)
	if d.state.Is(runmode.RunFile) {
		d.state.SetMode(runmode.Error)
		logger.Error("Deployment failed, switching to error mode.", "artifact", name, "error", err)
	} else {
		logger.Error("Deployment failed, artifact skipped.", "artifact", name, "error", err)
	}
	return name, err
}
