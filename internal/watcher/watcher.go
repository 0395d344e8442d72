// Package watcher hot-deploys source artifacts by following file system
// events in the source directory.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/specialistvlad/gridhost/internal/ctxlog"
	"github.com/specialistvlad/gridhost/internal/deployer"
	"github.com/specialistvlad/gridhost/internal/fsutil"
)

// Target receives the container hooks driven by file events.
type Target interface {
	Deploy(ctx context.Context, a deployer.Artifact) (string, error)
	Update(ctx context.Context, a deployer.Artifact) (string, error)
	Undeploy(ctx context.Context, key string) string
}

// Watcher maps file events in one directory onto deploy, update and
// undeploy calls.
type Watcher struct {
	dir       string
	extension string
	target    Target
	fsw       *fsnotify.Watcher
}

// New starts watching dir. Only files ending with extension are handled.
func New(dir, extension string, target Target) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}
	return &Watcher{dir: dir, extension: extension, target: target, fsw: fsw}, nil
}

// Run processes events until ctx is cancelled or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx).With("dir", w.dir)
	logger.Info("Watching source directory for changes.", "extension", w.extension)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			logger.Error("File watcher error.", "error", err)
		}
	}
}

// Close stops watching. Run returns once the event channels are drained.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) {
	name := filepath.Base(ev.Name)
	if !fsutil.HasExtension(name, w.extension) {
		return
	}
	logger := ctxlog.FromContext(ctx).With("artifact", name, "op", ev.Op.String())
	logger.Debug("Source file event received.")

	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		w.target.Undeploy(ctx, name)
	case ev.Has(fsnotify.Create):
		if a, ok := w.read(ctx, ev.Name); ok {
			_, _ = w.target.Deploy(ctx, a)
		}
	case ev.Has(fsnotify.Write):
		if a, ok := w.read(ctx, ev.Name); ok {
			_, _ = w.target.Update(ctx, a)
		}
	}
}

func (w *Watcher) read(ctx context.Context, path string) (deployer.Artifact, bool) {
	info, err := os.Stat(path)
	if err == nil && info.IsDir() {
		return deployer.Artifact{}, false
	}
	a, err := deployer.ReadArtifact(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			ctxlog.FromContext(ctx).Error("Cannot read changed source file.", "path", path, "error", err)
		}
		return deployer.Artifact{}, false
	}
	return a, true
}
