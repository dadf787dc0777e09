package chunk

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowChunker_SmallContent_SingleChunk(t *testing.T) {
	chunker := NewWindowChunker(DefaultOptions())

	chunks, err := chunker.Chunk(context.Background(), "a.py", "print('hello')\n")

	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "a.py", chunks[0].FilePath)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, "print('hello')\n", chunks[0].Content)
	assert.Equal(t, 1, chunks[0].StartLine)
}

func TestWindowChunker_EmptyContent_NoChunks(t *testing.T) {
	chunker := NewWindowChunker(DefaultOptions())

	chunks, err := chunker.Chunk(context.Background(), "empty.txt", "   \n\t\n")

	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestWindowChunker_LargeContent_OverlappingWindows(t *testing.T) {
	// 50 lines of ~100 chars each = ~5000 chars, well past one window.
	var sb strings.Builder
	for i := 0; i < 50; i++ {
		sb.WriteString(strings.Repeat("x", 95))
		sb.WriteString("\n")
	}
	content := sb.String()

	chunker := NewWindowChunker(Options{MaxChunkSize: 1000, Overlap: 100})
	chunks, err := chunker.Chunk(context.Background(), "big.txt", content)

	require.NoError(t, err)
	require.Greater(t, len(chunks), 1, "5000 chars must produce multiple 1000-char windows")

	for i, c := range chunks {
		assert.Equal(t, i, c.Index, "indices must be sequential")
		assert.LessOrEqual(t, len(c.Content), 1000+MinChunkSize, "chunk %d exceeds size bound", i)
	}

	// Consecutive chunks share overlapping content.
	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1].Content
		tail := prev[len(prev)-50:]
		assert.Contains(t, chunks[i].Content, tail,
			"chunk %d should start inside chunk %d's tail", i, i-1)
	}
}

func TestWindowChunker_Deterministic(t *testing.T) {
	content := strings.Repeat("the quick brown fox jumps over the lazy dog\n", 200)
	chunker := NewWindowChunker(DefaultOptions())

	first, err := chunker.Chunk(context.Background(), "f.txt", content)
	require.NoError(t, err)

	for run := 0; run < 5; run++ {
		again, err := chunker.Chunk(context.Background(), "f.txt", content)
		require.NoError(t, err)
		assert.Equal(t, first, again, "identical input must yield identical chunks")
	}
}

func TestWindowChunker_SnapsToNewlines(t *testing.T) {
	// Lines of 80 chars; windows should end on a line boundary.
	content := strings.Repeat(strings.Repeat("a", 79)+"\n", 100)

	chunker := NewWindowChunker(Options{MaxChunkSize: 1000, Overlap: 100})
	chunks, err := chunker.Chunk(context.Background(), "lines.txt", content)

	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for i, c := range chunks[:len(chunks)-1] {
		assert.True(t, strings.HasSuffix(c.Content, "\n"),
			"chunk %d should end at a line boundary", i)
	}
}

func TestWindowChunker_LineNumbers(t *testing.T) {
	content := "one\ntwo\nthree\nfour\n"
	chunker := NewWindowChunker(DefaultOptions())

	chunks, err := chunker.Chunk(context.Background(), "n.txt", content)

	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, 4, chunks[0].EndLine)
}

func TestChunk_Key(t *testing.T) {
	c := Chunk{FilePath: "pkg/a.go", Index: 3}
	assert.Equal(t, "pkg/a.go#3", c.Key())
}
