package deployment

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/gridhost/internal/app"
	"github.com/specialistvlad/gridhost/internal/runmode"
	"github.com/specialistvlad/gridhost/internal/testutil"
)

const greeter = `
service "greeter" {
  base_path = "/greeter"

  resource "hello" {
    method = "GET"
    path   = "/hello"
    body   = "hello ${lookup(request.query, "name", "stranger")}"
  }

  resource "create" {
    method = "POST"
    path   = "/"
    status = 201
    body   = jsondecode(request.body)
  }
}
`

// Test for: one broken artifact does not stop the others from being served
func TestDeployment_BrokenArtifactIsSkipped(t *testing.T) {
	// --- Arrange ---
	host := testutil.StartHost(t, map[string]string{
		"greeter.hcl": greeter,
		"broken.hcl":  `service "broken" {`,
		"unknown.hcl": `
service "u" {
  resource "r" {
    path = "/u"
    body = missing()
  }
}`,
		"notes.txt": "not a source file",
	})

	// --- Act ---
	resp, body := host.Get(t, "/greeter/hello?name=gopher")

	// --- Assert ---
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hello gopher", body)
	assert.Equal(t, "text/plain; charset=utf-8", resp.Header.Get("Content-Type"))

	resp, body = host.Do(t, http.MethodPost, "/greeter/", `{"a":[1,2]}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.JSONEq(t, `{"a":[1,2]}`, body)

	resp, _ = host.Get(t, "/u")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	assert.Equal(t, 1, host.App.Registry().Len())
	assert.Equal(t, runmode.Server, host.App.State().Mode())
	logs := host.Logs.String()
	assert.Contains(t, logs, "Deployment failed, artifact skipped.")
	assert.Contains(t, logs, "deployed=1 failed=2")
}

// Test for: a single file without main is hosted like a service directory
func TestDeployment_RunFileHostsServices(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "greeter.hcl")
	require.NoError(t, os.WriteFile(path, []byte(greeter), 0o644))

	host := testutil.StartHost(t, nil, func(c *app.Config) {
		c.Mode = app.ModeRun
		c.File = path
	})

	_, body := host.Get(t, "/greeter/hello")
	assert.Equal(t, "hello stranger", body)
	assert.Equal(t, runmode.RunFile, host.App.State().Mode())
}

// Test for: a single file with main runs once and exits
func TestDeployment_RunFileInvokesMain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sum.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`
function "main" {
  param "a" { type = number }
  param "b" { type = number }
  result = { sum = a + b, parity = (a + b) % 2 == 0 ? "even" : "odd" }
}
`), 0o644))

	a, logs := app.SetupAppTest(t, &app.Config{Mode: app.ModeRun, File: path, Args: []string{"2", "5"}})
	require.NoError(t, a.Run(context.Background()))

	var printed string
	for _, line := range strings.Split(logs.String(), "\n") {
		if strings.HasPrefix(line, "{") {
			printed = line
		}
	}
	assert.JSONEq(t, `{"sum":7,"parity":"odd"}`, printed)
}
