package profiling

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsEnabled(t *testing.T) {
	assert.False(t, Options{}.Enabled())
	assert.True(t, Options{CPUPath: "cpu.prof"}.Enabled())
	assert.True(t, Options{HeapPath: "heap.prof"}.Enabled())
	assert.True(t, Options{TracePath: "trace.out"}.Enabled())
}

func TestSession_CPUAndHeap(t *testing.T) {
	dir := t.TempDir()
	cpuPath := filepath.Join(dir, "cpu.prof")
	heapPath := filepath.Join(dir, "heap.prof")

	s, err := Start(Options{CPUPath: cpuPath, HeapPath: heapPath})
	require.NoError(t, err)

	sum := 0
	for i := 0; i < 1_000_000; i++ {
		sum += i
	}
	_ = sum

	require.NoError(t, s.Stop())

	for _, path := range []string{cpuPath, heapPath} {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}
}

func TestSession_Trace(t *testing.T) {
	tracePath := filepath.Join(t.TempDir(), "trace.out")

	s, err := Start(Options{TracePath: tracePath})
	require.NoError(t, err)
	require.NoError(t, s.Stop())

	info, err := os.Stat(tracePath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestSession_StartFailsOnBadPath(t *testing.T) {
	_, err := Start(Options{CPUPath: filepath.Join(t.TempDir(), "missing", "cpu.prof")})
	require.Error(t, err)

	// A failed start must not leave profiling running.
	s, err := Start(Options{CPUPath: filepath.Join(t.TempDir(), "cpu.prof")})
	require.NoError(t, err)
	require.NoError(t, s.Stop())
}

func TestSession_NilStop(t *testing.T) {
	var s *Session
	require.NoError(t, s.Stop())
}

func TestWriteGoroutines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "goroutines.txt")
	require.NoError(t, WriteGoroutines(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "goroutine")
}
