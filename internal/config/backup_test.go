package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeUserConfig(t *testing.T, content string) string {
	t.Helper()
	path := GetUserConfigPath()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestBackupUserConfig_NoConfig(t *testing.T) {
	isolateUserConfig(t)
	path, err := BackupUserConfig()
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestBackupUserConfig_CreatesTimestampedCopy(t *testing.T) {
	isolateUserConfig(t)
	writeUserConfig(t, "version: 1\n")

	backupPath, err := BackupUserConfig()
	require.NoError(t, err)
	require.NotEmpty(t, backupPath)

	data, err := os.ReadFile(backupPath)
	require.NoError(t, err)
	assert.Equal(t, "version: 1\n", string(data))
}

func TestListUserConfigBackups_NewestFirst(t *testing.T) {
	isolateUserConfig(t)
	configPath := writeUserConfig(t, "version: 1\n")

	old := configPath + BackupSuffix + ".20240101-000000"
	newer := configPath + BackupSuffix + ".20240601-000000"
	require.NoError(t, os.WriteFile(old, []byte("old"), 0o644))
	require.NoError(t, os.WriteFile(newer, []byte("new"), 0o644))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))

	backups, err := ListUserConfigBackups()
	require.NoError(t, err)
	require.Len(t, backups, 2)
	assert.Equal(t, newer, backups[0])
}

func TestBackupUserConfig_PrunesBeyondMax(t *testing.T) {
	isolateUserConfig(t)
	configPath := writeUserConfig(t, "version: 1\n")

	// Seed MaxBackups existing backups with distinct ages.
	for i := 0; i < MaxBackups; i++ {
		path := configPath + BackupSuffix + ".2024010" + string(rune('1'+i)) + "-000000"
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
		ts := time.Now().Add(-time.Duration(MaxBackups-i) * time.Hour)
		require.NoError(t, os.Chtimes(path, ts, ts))
	}

	_, err := BackupUserConfig()
	require.NoError(t, err)

	backups, err := ListUserConfigBackups()
	require.NoError(t, err)
	assert.Len(t, backups, MaxBackups)
}

func TestRestoreUserConfig(t *testing.T) {
	isolateUserConfig(t)
	configPath := writeUserConfig(t, "version: 2\n")

	backupPath, err := BackupUserConfig()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(configPath, []byte("version: 3\n"), 0o644))
	require.NoError(t, RestoreUserConfig(backupPath))

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Equal(t, "version: 2\n", string(data))
}

func TestRestoreUserConfig_MissingBackup(t *testing.T) {
	isolateUserConfig(t)
	err := RestoreUserConfig(filepath.Join(t.TempDir(), "nope.bak"))
	require.Error(t, err)
}
