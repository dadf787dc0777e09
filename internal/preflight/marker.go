package preflight

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// MarkerFile records that preflight checks passed for a storage dir,
// so routine commands skip the full check battery.
const MarkerFile = ".preflight-ok"

// NeedsCheck reports whether preflight should run for storageDir.
func NeedsCheck(storageDir string) bool {
	_, err := os.Stat(filepath.Join(storageDir, MarkerFile))
	return os.IsNotExist(err)
}

// MarkPassed writes the marker with the current timestamp.
func MarkPassed(storageDir string) error {
	if err := os.MkdirAll(storageDir, 0o755); err != nil {
		return fmt.Errorf("create storage dir for marker: %w", err)
	}
	content := []byte(time.Now().Format(time.RFC3339))
	return os.WriteFile(filepath.Join(storageDir, MarkerFile), content, 0o644)
}

// ClearMarker forces a re-check on the next run. Missing is fine.
func ClearMarker(storageDir string) error {
	err := os.Remove(filepath.Join(storageDir, MarkerFile))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove preflight marker: %w", err)
	}
	return nil
}

// MarkerAge returns how long ago checks passed, or zero when unknown.
func MarkerAge(storageDir string) time.Duration {
	content, err := os.ReadFile(filepath.Join(storageDir, MarkerFile))
	if err != nil {
		return 0
	}
	t, err := time.Parse(time.RFC3339, string(content))
	if err != nil {
		return 0
	}
	return time.Since(t)
}
