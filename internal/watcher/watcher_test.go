package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/specialistvlad/gridhost/internal/deployer"
	"github.com/specialistvlad/gridhost/internal/registry"
	"github.com/specialistvlad/gridhost/internal/runmode"
	"github.com/specialistvlad/gridhost/internal/semantic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingTarget struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingTarget) record(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *recordingTarget) Deploy(_ context.Context, a deployer.Artifact) (string, error) {
	r.record("deploy " + a.Name + " " + string(a.Data))
	return a.Name, nil
}

func (r *recordingTarget) Update(_ context.Context, a deployer.Artifact) (string, error) {
	r.record("update " + a.Name + " " + string(a.Data))
	return a.Name, nil
}

func (r *recordingTarget) Undeploy(_ context.Context, key string) string {
	r.record("undeploy " + key)
	return key
}

func TestHandle(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "app.hcl")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	target := &recordingTarget{}
	w := &Watcher{dir: dir, extension: ".hcl", target: target}
	ctx := context.Background()

	w.handle(ctx, fsnotify.Event{Name: src, Op: fsnotify.Create})
	w.handle(ctx, fsnotify.Event{Name: src, Op: fsnotify.Write})
	w.handle(ctx, fsnotify.Event{Name: src, Op: fsnotify.Chmod})
	w.handle(ctx, fsnotify.Event{Name: filepath.Join(dir, "notes.txt"), Op: fsnotify.Write})
	w.handle(ctx, fsnotify.Event{Name: filepath.Join(dir, "gone.hcl"), Op: fsnotify.Write})
	w.handle(ctx, fsnotify.Event{Name: src, Op: fsnotify.Rename})
	w.handle(ctx, fsnotify.Event{Name: src, Op: fsnotify.Remove})

	assert.Equal(t, []string{
		"deploy app.hcl x",
		"update app.hcl x",
		"undeploy app.hcl",
		"undeploy app.hcl",
	}, target.calls)
}

func TestWatcher_HotDeploy(t *testing.T) {
	dir := t.TempDir()
	reg := registry.New()
	d := deployer.New(deployer.Config{
		Registry: reg,
		State:    runmode.New(runmode.Server),
		Scope:    semantic.NewGlobalScope(),
	})

	w, err := New(dir, d.Extension(), d)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		_ = w.Close()
		<-done
	})

	path := filepath.Join(dir, "greeter.hcl")
	write := func(basePath string) {
		src := `service "greeter" {
  base_path = "` + basePath + `"
  resource "hello" { path = "/hello" }
}`
		require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	}

	write("/v1")
	require.Eventually(t, func() bool {
		_, ok := reg.Match("GET", "/v1/hello")
		return ok
	}, 5*time.Second, 20*time.Millisecond)

	write("/v2")
	require.Eventually(t, func() bool {
		_, oldOK := reg.Match("GET", "/v1/hello")
		_, newOK := reg.Match("GET", "/v2/hello")
		return !oldOK && newOK
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	require.NoError(t, os.Remove(path))
	require.Eventually(t, func() bool { return reg.Len() == 0 }, 5*time.Second, 20*time.Millisecond)
}

func TestWatcher_AtomicSaveChangingPackage(t *testing.T) {
	dir := t.TempDir()
	reg := registry.New()
	d := deployer.New(deployer.Config{
		Registry: reg,
		State:    runmode.New(runmode.Server),
		Scope:    semantic.NewGlobalScope(),
	})

	source := func(pkg, basePath string) []byte {
		return []byte(`package = "` + pkg + `"
service "greeter" {
  base_path = "` + basePath + `"
  resource "hello" { path = "/hello" }
}`)
	}
	path := filepath.Join(dir, "greeter.hcl")
	require.NoError(t, os.WriteFile(path, source("a", "/v1"), 0o644))
	_, err := d.Deploy(context.Background(), deployer.Artifact{Name: "greeter.hcl", Data: source("a", "/v1")})
	require.NoError(t, err)

	w, err := New(dir, d.Extension(), d)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		_ = w.Close()
		<-done
	})

	tmp := filepath.Join(dir, ".greeter.swp")
	require.NoError(t, os.WriteFile(tmp, source("b", "/v2"), 0o644))
	require.NoError(t, os.Rename(tmp, path))

	require.Eventually(t, func() bool {
		_, newOK := reg.Match("GET", "/v2/hello")
		return newOK
	}, 5*time.Second, 20*time.Millisecond)

	assert.Equal(t, []string{"* /v2/hello"}, reg.Routes())
	app, ok := reg.Application("greeter.hcl")
	require.True(t, ok)
	assert.Len(t, app.Packages(), 1)
}

func TestNew_MissingDirectory(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing"), ".hcl", &recordingTarget{})
	assert.Error(t, err)
}
