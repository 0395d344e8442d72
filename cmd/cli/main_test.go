package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/gridhost/internal/app"
	"github.com/specialistvlad/gridhost/internal/cli"
)

func TestRun_File(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	filePath := filepath.Join(t.TempDir(), "main.hcl")
	src := `
function "main" {
  param "who" { type = string }
  result = "hello ${upper(who)}"
}
`
	require.NoError(t, os.WriteFile(filePath, []byte(src), 0o600))
	out := &bytes.Buffer{}

	// --- Act ---
	err := run(context.Background(), out, []string{"run", "--log-level", "error", filePath, "gopher"})

	// --- Assert ---
	require.NoError(t, err)
	require.Equal(t, "hello GOPHER\n", out.String())
}

func TestRun_FileStartupFailure(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// A syntax error switches the runtime mode to ERROR during startup.
	invalidHCL := `
		function "main" {
			result = "unterminated
	`
	filePath := filepath.Join(t.TempDir(), "main.hcl")
	require.NoError(t, os.WriteFile(filePath, []byte(invalidHCL), 0o600))
	out := &bytes.Buffer{}

	// --- Act ---
	runErr := run(context.Background(), out, []string{"run", filePath})

	// --- Assert ---
	require.Error(t, runErr)
	require.ErrorIs(t, runErr, app.ErrStartupFailed)
	require.Contains(t, out.String(), "Deployment failed, switching to error mode.")
}

func TestRun_ShouldExit(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// The "-h" (help) flag should cause cli.Parse to return `shouldExit=true`.
	out := &bytes.Buffer{}

	// --- Act ---
	err := run(context.Background(), out, []string{"-h"})

	// --- Assert ---
	require.NoError(t, err, "run() should return a nil error when shouldExit is true")
	require.Contains(t, out.String(), "Usage:", "Expected help text to be printed to the output buffer")
}

func TestRun_ParseError(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	out := &bytes.Buffer{}

	// --- Act ---
	err := run(context.Background(), out, []string{"serve", "--this-is-not-a-valid-flag"})

	// --- Assert ---
	require.Error(t, err, "run() should return an error when argument parsing fails")
	var exitErr *cli.ExitError
	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, 2, exitErr.Code)
	require.Contains(t, err.Error(), "unknown flag: --this-is-not-a-valid-flag")
}
