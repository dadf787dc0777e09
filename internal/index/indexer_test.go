package index

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/semdex/internal/chunk"
	"github.com/Aman-CERP/semdex/internal/embed"
	semerrors "github.com/Aman-CERP/semdex/internal/errors"
	"github.com/Aman-CERP/semdex/internal/pool"
	"github.com/Aman-CERP/semdex/internal/store"
)

func newTestIndexer(t *testing.T, workers int) *Indexer {
	t.Helper()

	st, err := store.Open(t.TempDir(), store.Options{
		ShardCount: 4,
		Dimensions: embed.StaticDimensions,
		Model:      "static",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	lexical, err := store.NewLexicalIndex("", store.DefaultLexicalConfig(), "sqlite")
	require.NoError(t, err)
	t.Cleanup(func() { _ = lexical.Close() })

	embedder := embed.NewStaticEmbedder()
	t.Cleanup(func() { _ = embedder.Close() })

	chunker := chunk.NewWindowChunker(chunk.Options{MaxChunkSize: 500, Overlap: 50})
	return New(chunker, embedder, st, lexical, pool.New(workers))
}

func TestIndexer_IndexFileRoundTrip(t *testing.T) {
	ix := newTestIndexer(t, 2)
	ctx := context.Background()

	n, err := ix.IndexFile(ctx, "auth.go", "func validateUserToken(token string) error { return nil }")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stats, err := ix.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalFiles)
	assert.Equal(t, 1, stats.TotalChunks)
}

func TestIndexer_ReindexShrinkingFileLeavesNoOrphans(t *testing.T) {
	ix := newTestIndexer(t, 2)
	ctx := context.Background()

	big := strings.Repeat("some code line that fills the buffer\n", 60)
	n, err := ix.IndexFile(ctx, "big.go", big)
	require.NoError(t, err)
	require.Greater(t, n, 1, "fixture must produce multiple chunks")

	n, err = ix.IndexFile(ctx, "big.go", "tiny now")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stats, err := ix.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalChunks, "old chunks must be gone")

	ids, err := ix.lexical.AllIDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"big.go#0"}, ids, "lexical index must shrink too")
}

func TestIndexer_DeleteFileRemovesAllTrace(t *testing.T) {
	ix := newTestIndexer(t, 2)
	ctx := context.Background()

	_, err := ix.IndexFile(ctx, "gone.go", "func soonToBeDeleted() {}")
	require.NoError(t, err)

	require.NoError(t, ix.DeleteFile(ctx, "gone.go"))

	stats, err := ix.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalChunks)

	ids, err := ix.lexical.AllIDs()
	require.NoError(t, err)
	assert.Empty(t, ids)

	// Deleting again is a no-op.
	require.NoError(t, ix.DeleteFile(ctx, "gone.go"))
}

func TestIndexer_EmptyContentRemovesFile(t *testing.T) {
	ix := newTestIndexer(t, 2)
	ctx := context.Background()

	_, err := ix.IndexFile(ctx, "shrink.go", "func original() {}")
	require.NoError(t, err)

	n, err := ix.IndexFile(ctx, "shrink.go", "")
	require.NoError(t, err)
	assert.Zero(t, n)

	stats, err := ix.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalChunks)
}

func TestIndexer_IndexFiles_BulkWithProgress(t *testing.T) {
	ix := newTestIndexer(t, 2)
	ctx := context.Background()

	files := make([]File, 10)
	for i := range files {
		files[i] = File{
			Path:    fmt.Sprintf("pkg/file%d.go", i),
			Content: fmt.Sprintf("func handler%d() { process(%d) }", i, i),
		}
	}

	var mu sync.Mutex
	var calls []int
	result, err := ix.IndexFiles(ctx, files, func(current, total int, currentFile string) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 10, total)
		assert.NotEmpty(t, currentFile)
		calls = append(calls, current)
	})

	require.NoError(t, err)
	assert.Equal(t, 10, result.FilesProcessed)
	assert.Empty(t, result.Failed)
	assert.GreaterOrEqual(t, result.TotalChunks, 10)
	assert.Len(t, calls, 10, "one progress call per file")

	stats, err := ix.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, stats.TotalFiles)
}

func TestIndexer_IndexFiles_PerFileFailureDoesNotAbortSiblings(t *testing.T) {
	ix := newTestIndexer(t, 2)
	ix.embedder = &failingEmbedder{Embedder: ix.embedder}
	ctx := context.Background()

	files := []File{
		{Path: "good1.go", Content: "func one() {}"},
		{Path: "bad.go", Content: "func two() {}"},
		{Path: "good2.go", Content: "func three() {}"},
	}

	result, err := ix.IndexFiles(ctx, files, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, result.FilesProcessed)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "bad.go", result.Failed[0].Path)

	stats, err := ix.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalFiles)
}

func TestIndexer_ValidationErrors(t *testing.T) {
	ix := newTestIndexer(t, 2)
	ctx := context.Background()

	_, err := ix.IndexFile(ctx, "", "content")
	assert.Equal(t, semerrors.ErrCodeInvalidPath, semerrors.GetCode(err))

	err = ix.DeleteFile(ctx, "")
	assert.Equal(t, semerrors.ErrCodeInvalidPath, semerrors.GetCode(err))

	_, err = ix.IndexFiles(ctx, nil, nil)
	assert.Equal(t, semerrors.ErrCodeEmptyFileList, semerrors.GetCode(err))

	_, err = ix.IndexFiles(ctx, []File{{Path: "", Content: "x"}}, nil)
	assert.Equal(t, semerrors.ErrCodeInvalidPath, semerrors.GetCode(err))
}

func TestIndexer_Clear(t *testing.T) {
	ix := newTestIndexer(t, 2)
	ctx := context.Background()

	_, err := ix.IndexFiles(ctx, []File{
		{Path: "a.go", Content: "alpha content"},
		{Path: "b.go", Content: "beta content"},
	}, nil)
	require.NoError(t, err)

	require.NoError(t, ix.Clear(ctx))

	stats, err := ix.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalChunks)
	assert.Zero(t, ix.lexical.Stats().DocumentCount)
}

func TestIndexer_ConcurrentDifferentFiles(t *testing.T) {
	ix := newTestIndexer(t, 4)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := ix.IndexFile(ctx, fmt.Sprintf("c%d.go", i), fmt.Sprintf("func c%d() {}", i))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	stats, err := ix.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, stats.TotalFiles)
}

// failingEmbedder fails EmbedBatch for the marker file's content.
type failingEmbedder struct {
	embed.Embedder
}

func (f *failingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	for _, text := range texts {
		if strings.Contains(text, "two") {
			return nil, semerrors.New(semerrors.ErrCodeEmbedFailed, "injected failure", nil)
		}
	}
	return f.Embedder.EmbedBatch(ctx, texts)
}
