package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoctorCommand(t *testing.T) {
	setupProject(t)

	out, err := runCommand(t, "doctor")
	require.NoError(t, err)
	assert.Contains(t, out, "semdex system check")
	assert.Contains(t, out, "Status:")
}

func TestDoctorCommand_ValidateWithoutIndex(t *testing.T) {
	setupProject(t)

	out, err := runCommand(t, "doctor", "--validate")
	require.NoError(t, err)
	assert.Contains(t, out, "no index to validate")
}

func TestDoctorCommand_ValidateCleanIndex(t *testing.T) {
	dir := setupProject(t)
	writeSource(t, dir)

	_, err := runCommand(t, "index", "--skip-check", "--plain")
	require.NoError(t, err)

	out, err := runCommand(t, "doctor", "--validate")
	require.NoError(t, err)
	assert.Contains(t, out, "index consistency check")
	assert.Contains(t, out, "no inconsistencies")
}

func TestDoctorCommand_GoroutineDump(t *testing.T) {
	setupProject(t)

	path := filepath.Join(t.TempDir(), "goroutines.txt")
	_, err := runCommand(t, "doctor", "--goroutines", path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "goroutine")
}

func TestLogsCommand_Path(t *testing.T) {
	setupProject(t)

	// No log file yet: logs must fail with a pointer to --debug.
	_, err := runCommand(t, "logs")
	require.Error(t, err)

	// A --debug run creates the file; logs then finds it.
	_, err = runCommand(t, "version", "--debug")
	require.NoError(t, err)

	out, err := runCommand(t, "logs", "--path")
	require.NoError(t, err)
	assert.Contains(t, out, "semdex.log")

	out, err = runCommand(t, "logs", "-n", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "debug_logging_enabled")
}
