package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/semdex/internal/search"
	"github.com/Aman-CERP/semdex/internal/watcher"
	"github.com/Aman-CERP/semdex/pkg/engine"
)

// Watcher integration tests: real fsnotify events against a real
// directory, and the watcher -> engine path the watch command uses.

func startWatcher(t *testing.T, dir string) *watcher.Watcher {
	t.Helper()

	w, err := watcher.New(dir, watcher.Options{
		Debounce:   100 * time.Millisecond,
		BufferSize: 100,
	}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = w.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		_ = w.Stop()
	})

	// Give the recursive watch registration a moment to land.
	time.Sleep(200 * time.Millisecond)
	return w
}

// waitForEvent drains batches until an event matching op and path
// arrives or the timeout expires.
func waitForEvent(t *testing.T, w *watcher.Watcher, op watcher.Op, path string) bool {
	t.Helper()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case batch, ok := <-w.Events():
			if !ok {
				return false
			}
			for _, e := range batch {
				if e.Op == op && e.Path == path {
					return true
				}
			}
		case <-deadline:
			return false
		}
	}
}

func TestWatcher_FileCreated_EmitsEvent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	dir := t.TempDir()
	w := startWatcher(t, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.go"), []byte("package test"), 0o644))

	assert.True(t, waitForEvent(t, w, watcher.OpCreate, "test.go"),
		"expected a create event for test.go")
}

func TestWatcher_FileModified_EmitsEvent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	dir := t.TempDir()
	existing := filepath.Join(dir, "existing.go")
	require.NoError(t, os.WriteFile(existing, []byte("package test"), 0o644))

	w := startWatcher(t, dir)

	require.NoError(t, os.WriteFile(existing, []byte("package test\n\nfunc main() {}"), 0o644))

	assert.True(t, waitForEvent(t, w, watcher.OpModify, "existing.go"),
		"expected a modify event for existing.go")
}

func TestWatcher_FileDeleted_EmitsEvent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	dir := t.TempDir()
	doomed := filepath.Join(dir, "todelete.go")
	require.NoError(t, os.WriteFile(doomed, []byte("package test"), 0o644))

	w := startWatcher(t, dir)

	require.NoError(t, os.Remove(doomed))

	assert.True(t, waitForEvent(t, w, watcher.OpDelete, "todelete.go"),
		"expected a delete event for todelete.go")
}

func TestWatcher_NewFileInNewDir_EmitsEvent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	dir := t.TempDir()
	w := startWatcher(t, dir)

	// New subdirectories must be picked up without a restart.
	sub := filepath.Join(dir, "pkg")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(sub, "util.go"), []byte("package pkg"), 0o644))

	assert.True(t, waitForEvent(t, w, watcher.OpCreate, "pkg/util.go"),
		"expected a create event for pkg/util.go")
}

// rejectFilter drops every path. Used to verify filtered paths never
// produce events.
type rejectFilter struct{}

func (rejectFilter) Includes(string, bool) bool { return false }

func TestWatcher_FilteredPaths_NoEvents(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	dir := t.TempDir()
	w, err := watcher.New(dir, watcher.Options{
		Debounce:   100 * time.Millisecond,
		BufferSize: 100,
	}, rejectFilter{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = w.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		_ = w.Stop()
	})
	time.Sleep(200 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.log"), []byte("noise"), 0o644))

	select {
	case batch := <-w.Events():
		for _, e := range batch {
			assert.NotEqual(t, "ignored.log", e.Path, "filtered path must not emit events")
		}
	case <-time.After(1 * time.Second):
		// No events is the expected outcome.
	}
}

// TestWatcher_ToEngine_IndexesChanges drives watcher batches into the
// engine the way the watch command does: content read relative to the
// watch root, deletes routed as deletions.
func TestWatcher_ToEngine_IndexesChanges(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	dir := t.TempDir()
	eng := newTestEngine(t)
	ctx := context.Background()

	w := startWatcher(t, dir)

	target := filepath.Join(dir, "billing.py")
	content := "def charge_invoice(invoice):\n    # invoice charging lives only here\n    return gateway.charge(invoice.total)\n"
	require.NoError(t, os.WriteFile(target, []byte(content), 0o644))

	require.True(t, waitForEvent(t, w, watcher.OpCreate, "billing.py"))

	text := content
	require.NoError(t, eng.OnFileChange(ctx, engine.FileChange{
		Path:    "billing.py",
		Type:    engine.ChangeAdded,
		Content: &text,
	}))

	results, err := eng.HybridSearch(ctx, "invoice charging", search.Options{TopK: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "billing.py", results[0].FilePath)

	// Delete propagates the same way.
	require.NoError(t, os.Remove(target))
	require.True(t, waitForEvent(t, w, watcher.OpDelete, "billing.py"))

	require.NoError(t, eng.OnFileChange(ctx, engine.FileChange{
		Path: "billing.py",
		Type: engine.ChangeDeleted,
	}))

	stats, err := eng.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalFiles)
}
