package mcpserver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/semdex/internal/config"
	semerrors "github.com/Aman-CERP/semdex/internal/errors"
	"github.com/Aman-CERP/semdex/pkg/engine"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := config.NewConfig()
	cfg.Embeddings.Provider = "static"
	cfg.Store.ShardCount = 2
	cfg.Performance.IndexWorkers = 2
	cfg.Telemetry.Enabled = false

	eng := engine.New(cfg, t.TempDir())
	require.NoError(t, eng.Initialize(context.Background()))
	t.Cleanup(func() { _ = eng.Close() })

	srv, err := New(eng, nil)
	require.NoError(t, err)
	return srv
}

func TestNew_RequiresEngine(t *testing.T) {
	_, err := New(nil, nil)
	require.Error(t, err)
}

func TestListTools(t *testing.T) {
	srv := newTestServer(t)

	tools := srv.ListTools()
	require.Len(t, tools, 3)

	names := make([]string, len(tools))
	for i, tool := range tools {
		names[i] = tool.Name
		assert.NotEmpty(t, tool.Description)
	}
	assert.Equal(t, []string{"search", "index_status", "stats"}, names)
}

func TestInfo(t *testing.T) {
	srv := newTestServer(t)
	name, _ := srv.Info()
	assert.Equal(t, "semdex", name)
}

func TestSearchHandler(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	_, err := srv.engine.IndexFile(ctx, "auth/token.go",
		"func ValidateToken(raw string) error { return verifySignature(raw) }")
	require.NoError(t, err)
	_, err = srv.engine.IndexFile(ctx, "store/cache.go",
		"type Cache struct { entries map[string][]byte }")
	require.NoError(t, err)

	_, out, err := srv.searchHandler(ctx, nil, SearchInput{Query: "validate token signature"})
	require.NoError(t, err)
	require.NotEmpty(t, out.Results)
	assert.Equal(t, "auth/token.go", out.Results[0].FilePath)
	assert.Positive(t, out.Results[0].Score)
	assert.NotEmpty(t, out.Results[0].Content)
}

func TestSearchHandler_EmptyQuery(t *testing.T) {
	srv := newTestServer(t)

	for _, query := range []string{"", "   \t"} {
		_, _, err := srv.searchHandler(context.Background(), nil, SearchInput{Query: query})
		var rpcErr *RPCError
		require.ErrorAs(t, err, &rpcErr)
		assert.Equal(t, ErrCodeInvalidParams, rpcErr.Code)
	}
}

func TestSearchHandler_LimitClamped(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	_, err := srv.engine.IndexFile(ctx, "main.go", "package main")
	require.NoError(t, err)

	// An absurd limit must not error, just clamp.
	_, out, err := srv.searchHandler(ctx, nil, SearchInput{Query: "main", Limit: 10000})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(out.Results), maxSearchLimit)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, defaultSearchLimit, clampLimit(0))
	assert.Equal(t, defaultSearchLimit, clampLimit(-5))
	assert.Equal(t, 25, clampLimit(25))
	assert.Equal(t, maxSearchLimit, clampLimit(500))
}

func TestIndexStatusHandler(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	_, err := srv.engine.IndexFile(ctx, "a.go", "package a\n\nfunc A() {}")
	require.NoError(t, err)

	_, out, err := srv.indexStatusHandler(ctx, nil, IndexStatusInput{})
	require.NoError(t, err)
	assert.Equal(t, "ready", out.State)
	assert.Equal(t, "static", out.Provider)
	assert.Equal(t, 2, out.ShardCount)
	assert.Equal(t, 1, out.TotalFiles)
	assert.Positive(t, out.TotalChunks)
	assert.Nil(t, out.Indexing)
}

func TestStatsHandler(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	_, err := srv.engine.IndexFile(ctx, "b.go", "package b")
	require.NoError(t, err)

	_, out, err := srv.statsHandler(ctx, nil, StatsInput{})
	require.NoError(t, err)
	assert.Equal(t, 1, out.TotalFiles)
	assert.Positive(t, out.TotalChunks)
	assert.Nil(t, out.Queries, "telemetry disabled in test config")
}

func TestRun_UnknownTransport(t *testing.T) {
	srv := newTestServer(t)
	err := srv.Run(context.Background(), "grpc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown transport")
}

func TestMapError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"nil", nil, 0},
		{"deadline", context.DeadlineExceeded, ErrCodeTimeout},
		{"canceled", context.Canceled, ErrCodeTimeout},
		{"validation", semerrors.New(semerrors.ErrCodeQueryEmpty, "query is empty", nil), ErrCodeInvalidParams},
		{"embedding", semerrors.New(semerrors.ErrCodeEmbedFailed, "backend refused", nil), ErrCodeEmbeddingFailed},
		{"store closed", semerrors.New(semerrors.ErrCodeStoreClosed, "store is closed", nil), ErrCodeIndexNotReady},
		{"shard io", semerrors.New(semerrors.ErrCodeShardIO, "shard write failed", nil), ErrCodeInternalError},
		{"init", semerrors.New(semerrors.ErrCodeBackendUnavailable, "no backend", nil), ErrCodeIndexNotReady},
		{"plain error", assert.AnError, ErrCodeInternalError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mapped := MapError(tc.err)
			if tc.err == nil {
				assert.Nil(t, mapped)
				return
			}
			require.NotNil(t, mapped)
			assert.Equal(t, tc.code, mapped.Code)
		})
	}
}

func TestMapError_IncludesSuggestion(t *testing.T) {
	err := semerrors.New(semerrors.ErrCodeBackendUnavailable, "embedding backend unavailable", nil).
		WithSuggestion("Run 'semdex doctor' to check backend availability.")

	mapped := MapError(err)
	require.NotNil(t, mapped)
	assert.Contains(t, mapped.Message, "semdex doctor")
}

func TestMapError_PassesThroughRPCError(t *testing.T) {
	orig := NewInvalidParamsError("bad input")
	mapped := MapError(orig)
	assert.Same(t, orig, mapped)
}
