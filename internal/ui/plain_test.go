package ui

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPlain(t *testing.T) (*PlainRenderer, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	r := NewPlainRenderer(NewConfig(&buf))
	require.NoError(t, r.Start(context.Background()))
	return r, &buf
}

func TestPlainRenderer_ProgressLines(t *testing.T) {
	r, buf := newPlain(t)

	r.UpdateProgress(ProgressEvent{Stage: StageScanning, Message: "walking project"})
	r.UpdateProgress(ProgressEvent{Stage: StageEmbedding, Current: 3, Total: 10, CurrentFile: "pkg/a.go"})

	out := buf.String()
	assert.Contains(t, out, "[SCAN] walking project")
	assert.Contains(t, out, "[EMBED] 3/10 pkg/a.go")
}

func TestPlainRenderer_SilentWithoutContent(t *testing.T) {
	r, buf := newPlain(t)
	r.UpdateProgress(ProgressEvent{Stage: StageChunking})
	assert.Empty(t, buf.String())
}

func TestPlainRenderer_Errors(t *testing.T) {
	r, buf := newPlain(t)

	r.AddError(ErrorEvent{File: "bad.go", Err: errors.New("parse failed")})
	r.AddError(ErrorEvent{Err: errors.New("slow backend"), IsWarn: true})

	out := buf.String()
	assert.Contains(t, out, "ERROR: bad.go: parse failed")
	assert.Contains(t, out, "WARN: slow backend")
}

func TestPlainRenderer_Complete(t *testing.T) {
	r, buf := newPlain(t)

	r.Complete(CompletionStats{
		Files:    12,
		Chunks:   84,
		Duration: 3200 * time.Millisecond,
		Errors:   1,
		Warnings: 2,
		Embedder: EmbedderInfo{Provider: "static", Model: "static-v1", Dimensions: 256},
	})
	require.NoError(t, r.Stop())

	out := buf.String()
	assert.Contains(t, out, "Indexed 12 files (84 chunks) in 3.2s")
	assert.Contains(t, out, "(1 errors, 2 warnings)")
	assert.Contains(t, out, "Embedder: static (static-v1, 256 dimensions)")
}

func TestPlainRenderer_CompleteWithoutIssues(t *testing.T) {
	r, buf := newPlain(t)
	r.Complete(CompletionStats{Files: 1, Chunks: 2, Duration: time.Second})
	assert.NotContains(t, buf.String(), "errors")
}
