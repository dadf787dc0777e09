package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	semerrors "github.com/Aman-CERP/semdex/internal/errors"
)

// GPU sidecar defaults.
const (
	DefaultSidecarEndpoint = "http://localhost:8756"
	DefaultGPUModel        = "nomic-embed-text-v1.5"
	DefaultGPUDimensions   = 768
	DefaultGPUMaxTokens    = 2048
)

// GPUConfig configures the GPU-local sidecar backend.
type GPUConfig struct {
	// Endpoint is the sidecar address (default http://localhost:8756).
	Endpoint string

	// Model names the GGUF artifact the sidecar serves.
	Model string

	// ModelDir is where model artifacts live; used by Initialize to ensure
	// the artifact exists before health-checking the sidecar.
	ModelDir string

	WarmTimeout time.Duration
	ColdTimeout time.Duration

	// SkipProbe skips the GPU runtime probe (for testing against httptest).
	SkipProbe bool
}

// DefaultGPUConfig returns GPU sidecar defaults.
func DefaultGPUConfig() GPUConfig {
	return GPUConfig{
		Endpoint:    DefaultSidecarEndpoint,
		Model:       DefaultGPUModel,
		WarmTimeout: DefaultWarmTimeout,
		ColdTimeout: DefaultColdTimeout,
	}
}

// GPUEmbedder generates embeddings through a localhost sidecar process
// that owns the GPU. Calls run through a circuit breaker so a dead sidecar
// degrades fast instead of timing out request by request. The first call
// after idle gets the cold timeout since the sidecar may need to reload
// weights.
type GPUEmbedder struct {
	client  *http.Client
	config  GPUConfig
	breaker *semerrors.CircuitBreaker

	mu          sync.RWMutex
	initialized bool
	closed      bool
	dims        int
	lastCall    time.Time
}

var _ Embedder = (*GPUEmbedder)(nil)

// Sidecar API shapes.
type sidecarHealthResponse struct {
	Status string `json:"status"`
}

type sidecarModelsResponse struct {
	Models map[string]struct {
		Dimensions int `json:"dimensions"`
	} `json:"models"`
}

type sidecarEmbedRequest struct {
	Text  string `json:"text"`
	Model string `json:"model"`
}

type sidecarEmbedResponse struct {
	Embedding []float64 `json:"embedding"`
}

type sidecarEmbedBatchRequest struct {
	Texts []string `json:"texts"`
	Model string   `json:"model"`
}

type sidecarEmbedBatchResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

// NewGPUEmbedder creates a GPU sidecar embedder. No probing happens until
// Initialize.
func NewGPUEmbedder(cfg GPUConfig) *GPUEmbedder {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultSidecarEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGPUModel
	}
	if cfg.WarmTimeout <= 0 {
		cfg.WarmTimeout = DefaultWarmTimeout
	}
	if cfg.ColdTimeout <= 0 {
		cfg.ColdTimeout = DefaultColdTimeout
	}

	// No http.Client.Timeout: per-request context timeouts drive the
	// warm/cold distinction, and a static client timeout would override them.
	client := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     30 * time.Second,
		},
	}

	return &GPUEmbedder{
		client:  client,
		config:  cfg,
		breaker: semerrors.NewCircuitBreaker("gpu-sidecar"),
		dims:    DefaultGPUDimensions,
	}
}

// Initialize probes the GPU runtime, health-checks the sidecar, and reads
// model dimensions. Idempotent.
func (e *GPUEmbedder) Initialize(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return semerrors.New(semerrors.ErrCodeEmbedderClosed, "gpu embedder is closed", nil)
	}
	if e.initialized {
		return nil
	}

	if !e.config.SkipProbe {
		if err := ProbeGPURuntime(); err != nil {
			return semerrors.New(semerrors.ErrCodeGPURuntimeMissing,
				"no GPU runtime library found", err).
				WithSuggestion("use embeddings.provider=remote or =static instead")
		}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := e.healthCheck(checkCtx); err != nil {
		return semerrors.New(semerrors.ErrCodeBackendUnavailable,
			"gpu sidecar unreachable", err).
			WithSuggestion("start the embedding sidecar, or use embeddings.provider=remote")
	}

	if dims, err := e.modelDimensions(checkCtx); err == nil && dims > 0 {
		e.dims = dims
	}

	e.initialized = true
	slog.Debug("gpu_embedder_initialized",
		slog.String("endpoint", e.config.Endpoint),
		slog.String("model", e.config.Model),
		slog.Int("dimensions", e.dims))
	return nil
}

// healthCheck verifies the sidecar answers /health.
func (e *GPUEmbedder) healthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.config.Endpoint+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("connect to sidecar: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("sidecar unhealthy (status %d): %s", resp.StatusCode, string(body))
	}

	var health sidecarHealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return fmt.Errorf("decode health response: %w", err)
	}
	if health.Status != "healthy" {
		return fmt.Errorf("sidecar status: %s", health.Status)
	}
	return nil
}

// modelDimensions asks /models for the configured model's vector width.
func (e *GPUEmbedder) modelDimensions(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.config.Endpoint+"/models", nil)
	if err != nil {
		return 0, err
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("list models: status %d", resp.StatusCode)
	}

	var result sidecarModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, err
	}
	if model, ok := result.Models[e.config.Model]; ok {
		return model.Dimensions, nil
	}
	return 0, fmt.Errorf("model %s not served by sidecar", e.config.Model)
}

// Embed generates an embedding for a single text.
func (e *GPUEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for texts in input order.
func (e *GPUEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, semerrors.New(semerrors.ErrCodeEmbedderClosed, "gpu embedder is closed", nil)
	}
	e.mu.RUnlock()

	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	info := e.ModelInfo()
	prepared := make([]string, len(texts))
	for i, t := range texts {
		prepared[i] = truncate(t, info)
	}

	timeout := e.callTimeout()
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	vectors, err := semerrors.CircuitExecuteWithResult(e.breaker, func() ([][]float32, error) {
		return e.doEmbedBatch(callCtx, prepared)
	}, func() ([][]float32, error) {
		return nil, semerrors.ErrCircuitOpen
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, semerrors.New(semerrors.ErrCodeEmbedFailed, "gpu sidecar embedding failed", err)
	}

	e.mu.Lock()
	e.lastCall = time.Now()
	e.mu.Unlock()

	return vectors, nil
}

// callTimeout returns the cold timeout when the sidecar has likely
// unloaded the model, the warm timeout otherwise.
func (e *GPUEmbedder) callTimeout() time.Duration {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.lastCall.IsZero() || time.Since(e.lastCall) > modelIdleThreshold {
		return e.config.ColdTimeout
	}
	return e.config.WarmTimeout
}

// doEmbedBatch performs the actual /embed_batch call.
func (e *GPUEmbedder) doEmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(sidecarEmbedBatchRequest{Texts: texts, Model: e.config.Model})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.Endpoint+"/embed_batch", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sidecar request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("sidecar embedding failed (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result sidecarEmbedBatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(result.Embeddings))
	}

	vectors := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		vec := make([]float32, len(emb))
		for j, v := range emb {
			vec[j] = float32(v)
		}
		vectors[i] = vec
	}
	return vectors, nil
}

// ModelInfo returns static metadata.
func (e *GPUEmbedder) ModelInfo() ModelInfo {
	e.mu.RLock()
	dims := e.dims
	e.mu.RUnlock()
	return ModelInfo{
		Name:       e.config.Model,
		Dimensions: dims,
		MaxTokens:  DefaultGPUMaxTokens,
	}
}

// Available reports whether the sidecar answers a health check right now.
func (e *GPUEmbedder) Available(ctx context.Context) bool {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return false
	}
	e.mu.RUnlock()

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return e.healthCheck(checkCtx) == nil
}

// Close releases resources. Safe to call multiple times.
func (e *GPUEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	if transport, ok := e.client.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
	return nil
}
