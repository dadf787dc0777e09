package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupProject creates an isolated project dir, chdirs into it, and
// pins the environment so tests never touch the developer's machine
// state or download models.
func setupProject(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })

	// Mark the project root so FindProjectRoot stops here.
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0o755))

	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SEMDEX_EMBEDDER", "static")
	t.Setenv("SEMDEX_SHARD_COUNT", "2")
	t.Setenv("SEMDEX_TELEMETRY", "false")

	return dir
}

// runCommand executes the CLI with args and returns combined output.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var buf bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := NewRootCmd()

	want := []string{
		"init", "index", "search", "watch", "serve",
		"status", "stats", "clear", "doctor", "logs", "version",
	}
	have := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		have[sub.Name()] = true
	}
	for _, name := range want {
		assert.True(t, have[name], "missing subcommand %q", name)
	}
}

func TestRootCmd_Help(t *testing.T) {
	out, err := runCommand(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "semdex")
	assert.Contains(t, out, "search")
}

func TestVersionCommand(t *testing.T) {
	out, err := runCommand(t, "version", "--short")
	require.NoError(t, err)
	assert.Contains(t, out, "dev")

	out, err = runCommand(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "semdex")
}

func TestVersionCommand_JSON(t *testing.T) {
	out, err := runCommand(t, "version", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"version"`)
	assert.Contains(t, out, `"go_version"`)
}
