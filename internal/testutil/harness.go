// Package testutil runs a complete gridhost instance for integration tests.
package testutil

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/gridhost/internal/app"
)

// Host is a running gridhost instance serving a temporary source directory.
type Host struct {
	App     *app.App
	Logs    *app.SafeBuffer
	Dir     string
	BaseURL string
	// Client keeps cookies between requests, like a browser.
	Client *http.Client
}

// FreeAddress returns a loopback address with a port that was free a moment ago.
func FreeAddress(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

// StartHost writes files into a temporary source directory and serves it
// until the test ends. Options adjust the configuration before startup.
func StartHost(t *testing.T, files map[string]string, options ...func(*app.Config)) *Host {
	t.Helper()

	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}

	cfg := &app.Config{
		Mode:      app.ModeServe,
		SourceDir: dir,
		Address:   FreeAddress(t),
		LogFormat: "text",
	}
	for _, o := range options {
		o(cfg)
	}

	testApp, logs := app.SetupAppTest(t, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- testApp.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(10 * time.Second):
			t.Error("host did not shut down")
		}
	})

	require.Eventually(t, func() bool {
		conn, err := net.Dial("tcp", cfg.Address)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}, 5*time.Second, 20*time.Millisecond, "host never started listening")

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &Host{
		App:     testApp,
		Logs:    logs,
		Dir:     dir,
		BaseURL: "http://" + cfg.Address,
		Client:  &http.Client{Jar: jar, Timeout: 5 * time.Second},
	}
}

// Do sends a request with the host's client and returns the response with
// its body read.
func (h *Host) Do(t *testing.T, method, path, body string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(method, h.BaseURL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := h.Client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(b)
}

// Get is Do with GET and no body.
func (h *Host) Get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	return h.Do(t, http.MethodGet, path, "")
}

// WriteSource creates or replaces a file in the source directory.
func (h *Host) WriteSource(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(h.Dir, name), []byte(content), 0o644))
}
