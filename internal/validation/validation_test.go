package validation

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/Aman-CERP/semdex/internal/store"
)

const testDims = 8

func testVector(seed int) []float32 {
	v := make([]float32, testDims)
	for i := range v {
		v[i] = float32((seed+i)%7) + 0.5
	}
	return v
}

func openTestStore(t *testing.T, dir string) *store.ShardedStore {
	t.Helper()
	st, err := store.Open(dir, store.Options{
		ShardCount: 2,
		Dimensions: testDims,
		Model:      "static-test",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func openTestLexical(t *testing.T) store.LexicalIndex {
	t.Helper()
	lex, err := store.NewLexicalIndex("", store.DefaultLexicalConfig(), "sqlite")
	require.NoError(t, err)
	t.Cleanup(func() { _ = lex.Close() })
	return lex
}

// indexFile puts one single-chunk file into its owning shard and the
// lexical index.
func indexFile(t *testing.T, st *store.ShardedStore, lex store.LexicalIndex, path, content string) {
	t.Helper()
	ctx := context.Background()

	shardID := st.ShardFor(path)
	rec := store.Record{FilePath: path, ChunkIndex: 0, Content: content, Embedding: testVector(len(path))}
	require.NoError(t, st.Upsert(ctx, shardID, []store.Record{rec}))
	if lex != nil {
		require.NoError(t, lex.Index(ctx, []store.Document{{ID: rec.Key(), Content: content}}))
	}
}

func TestRun_CleanIndex(t *testing.T) {
	st := openTestStore(t, t.TempDir())
	lex := openTestLexical(t)

	for i := 0; i < 5; i++ {
		path := fmt.Sprintf("pkg/file%d.go", i)
		indexFile(t, st, lex, path, "func handler() error { return nil }")
	}

	report, err := Run(context.Background(), st, lex)
	require.NoError(t, err)

	assert.True(t, report.Clean())
	assert.Equal(t, 2, report.Shards)
	assert.Equal(t, 5, report.Records)
	assert.Equal(t, 5, report.GraphKeys)
	assert.Equal(t, 5, report.LexicalDocs)
}

func TestRun_LexicalDrift(t *testing.T) {
	st := openTestStore(t, t.TempDir())
	lex := openTestLexical(t)
	ctx := context.Background()

	indexFile(t, st, lex, "ok.go", "func fine() {}")

	// In the store but never indexed lexically.
	indexFile(t, st, nil, "unindexed.go", "func missing() {}")

	// In the lexical index with no backing record.
	require.NoError(t, lex.Index(ctx, []store.Document{{ID: "stale.go#0", Content: "leftover"}}))

	report, err := Run(ctx, st, lex)
	require.NoError(t, err)
	require.Len(t, report.Issues, 2)

	assert.Equal(t, IssueLexicalMissing, report.Issues[0].Kind)
	assert.Equal(t, "unindexed.go#0", report.Issues[0].Key)
	assert.Equal(t, IssueLexicalOrphan, report.Issues[1].Kind)
	assert.Equal(t, "stale.go#0", report.Issues[1].Key)
}

func TestRun_MisplacedRecord(t *testing.T) {
	st := openTestStore(t, t.TempDir())
	ctx := context.Background()

	path := "drifter.go"
	wrongShard := (st.ShardFor(path) + 1) % st.ShardCount()
	rec := store.Record{FilePath: path, ChunkIndex: 0, Content: "x", Embedding: testVector(1)}
	require.NoError(t, st.Upsert(ctx, wrongShard, []store.Record{rec}))

	report, err := Run(ctx, st, nil)
	require.NoError(t, err)
	require.Len(t, report.Issues, 1)
	assert.Equal(t, IssueMisplaced, report.Issues[0].Kind)
	assert.Equal(t, wrongShard, report.Issues[0].Shard)
}

func TestRun_GraphDrift(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	st := openTestStore(t, dir)
	indexFile(t, st, nil, "kept.go", "func kept() {}")
	indexFile(t, st, nil, "dropped.go", "func dropped() {}")
	require.NoError(t, st.Close())

	// Tamper with the record databases behind the snapshots: delete one
	// record (its graph key becomes an orphan) and insert another (it
	// is missing from the graph). Rebuild only triggers when a snapshot
	// is absent or corrupt, so the drift survives reopening.
	droppedShard := st.ShardFor("dropped.go")
	tamper(t, dir, droppedShard, `DELETE FROM records WHERE file_path = 'dropped.go'`)

	sneakedShard := st.ShardFor("sneaked.go")
	blob := strings.Repeat("00", testDims*4)
	tamper(t, dir, sneakedShard, fmt.Sprintf(
		`INSERT INTO records(file_path, chunk_index, content, embedding) VALUES ('sneaked.go', 0, 'x', x'%s')`, blob))

	reopened := openTestStore(t, dir)
	report, err := Run(ctx, reopened, nil)
	require.NoError(t, err)

	kinds := map[IssueKind]string{}
	for _, issue := range report.Issues {
		kinds[issue.Kind] = issue.Key
	}
	assert.Equal(t, "dropped.go#0", kinds[IssueGraphOrphan])
	assert.Equal(t, "sneaked.go#0", kinds[IssueGraphMissing])
}

// tamper runs one statement directly against a shard's records DB.
func tamper(t *testing.T, dir string, shardID int, stmt string) {
	t.Helper()
	path := filepath.Join(dir, "shards", fmt.Sprintf("%03d", shardID), "records.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	_, err = db.Exec(stmt)
	require.NoError(t, err)
}

func TestRun_NilLexicalSkipsLexicalChecks(t *testing.T) {
	st := openTestStore(t, t.TempDir())
	indexFile(t, st, nil, "solo.go", "func solo() {}")

	report, err := Run(context.Background(), st, nil)
	require.NoError(t, err)
	assert.True(t, report.Clean())
	assert.Zero(t, report.LexicalDocs)
}

func TestRender(t *testing.T) {
	clean := &Report{Shards: 2, Records: 3, GraphKeys: 3, LexicalDocs: 3}
	var buf bytes.Buffer
	Render(&buf, clean)
	assert.Contains(t, buf.String(), "no inconsistencies")

	dirty := &Report{
		Shards: 2,
		Issues: []Issue{{Kind: IssueGraphOrphan, Shard: 1, Key: "gone.go#0"}},
	}
	buf.Reset()
	Render(&buf, dirty)
	out := buf.String()
	assert.Contains(t, out, "1 issue(s)")
	assert.Contains(t, out, "graph_orphan in shard 1: gone.go#0")
}
