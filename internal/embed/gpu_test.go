package embed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	semerrors "github.com/Aman-CERP/semdex/internal/errors"
)

// fakeSidecar serves the sidecar HTTP API. Each text embeds to a vector of
// its byte length so order can be checked.
func fakeSidecar(t *testing.T, dims int, embedStatus int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sidecarHealthResponse{Status: "healthy"})
	})
	mux.HandleFunc("/models", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"models":{"` + DefaultGPUModel + `":{"dimensions":` + itoa(dims) + `}}}`))
	})
	mux.HandleFunc("/embed_batch", func(w http.ResponseWriter, r *http.Request) {
		if embedStatus != 0 {
			http.Error(w, "sidecar exploded", embedStatus)
			return
		}
		var req sidecarEmbedBatchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		embeddings := make([][]float64, len(req.Texts))
		for i, text := range req.Texts {
			vec := make([]float64, dims)
			vec[0] = float64(len(text))
			embeddings[i] = vec
		}
		_ = json.NewEncoder(w).Encode(sidecarEmbedBatchResponse{Embeddings: embeddings})
	})

	return httptest.NewServer(mux)
}

func itoa(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func newTestGPU(srv *httptest.Server) *GPUEmbedder {
	cfg := DefaultGPUConfig()
	cfg.Endpoint = srv.URL
	cfg.SkipProbe = true
	return NewGPUEmbedder(cfg)
}

func TestGPUEmbedder_Initialize_DetectsDimensions(t *testing.T) {
	srv := fakeSidecar(t, 128, 0)
	defer srv.Close()

	e := newTestGPU(srv)
	defer e.Close()

	require.NoError(t, e.Initialize(context.Background()))
	assert.Equal(t, 128, e.ModelInfo().Dimensions)
	require.NoError(t, e.Initialize(context.Background()), "Initialize must be idempotent")
}

func TestGPUEmbedder_Initialize_SidecarDown(t *testing.T) {
	srv := fakeSidecar(t, 768, 0)
	srv.Close() // nobody listening

	e := newTestGPU(srv)
	defer e.Close()

	err := e.Initialize(context.Background())
	require.Error(t, err)
	assert.Equal(t, semerrors.ErrCodeBackendUnavailable, semerrors.GetCode(err))
}

func TestGPUEmbedder_EmbedBatch_PreservesOrder(t *testing.T) {
	srv := fakeSidecar(t, 8, 0)
	defer srv.Close()

	e := newTestGPU(srv)
	defer e.Close()
	require.NoError(t, e.Initialize(context.Background()))

	texts := []string{"a", "bb", "ccc", "dddd"}
	vectors, err := e.EmbedBatch(context.Background(), texts)

	require.NoError(t, err)
	require.Len(t, vectors, len(texts))
	for i, text := range texts {
		assert.Equal(t, float32(len(text)), vectors[i][0], "slot %d", i)
	}
}

func TestGPUEmbedder_CircuitOpensAfterRepeatedFailures(t *testing.T) {
	srv := fakeSidecar(t, 8, http.StatusInternalServerError)
	defer srv.Close()

	e := newTestGPU(srv)
	defer e.Close()

	// Default breaker opens after 5 failures.
	for i := 0; i < 5; i++ {
		_, err := e.Embed(context.Background(), "text")
		require.Error(t, err)
		assert.False(t, errors.Is(err, semerrors.ErrCircuitOpen), "attempt %d still reaches the sidecar", i+1)
	}

	_, err := e.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.ErrorIs(t, err, semerrors.ErrCircuitOpen, "sixth call must fail fast without a request")
}

func TestGPUEmbedder_ClosedErrors(t *testing.T) {
	srv := fakeSidecar(t, 8, 0)
	defer srv.Close()

	e := newTestGPU(srv)
	require.NoError(t, e.Close())
	require.NoError(t, e.Close())

	_, err := e.EmbedBatch(context.Background(), []string{"text"})
	assert.Equal(t, semerrors.ErrCodeEmbedderClosed, semerrors.GetCode(err))
	assert.False(t, e.Available(context.Background()))
}
