package embed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	semerrors "github.com/Aman-CERP/semdex/internal/errors"
)

// Remote backend defaults.
const (
	DefaultRemoteModel      = "text-embedding-3-small"
	DefaultRemoteDimensions = 1536
	DefaultRemoteMaxTokens  = 8192

	// DefaultInitialBackoff seeds both backoff schedules: exponential
	// (initial << attempt) for rate limits, linear (initial * attempt) for
	// transient errors.
	DefaultInitialBackoff = 500 * time.Millisecond
)

// RemoteConfig configures the OpenAI-compatible remote backend.
type RemoteConfig struct {
	// BaseURL points at an OpenAI-compatible embeddings API. Empty uses
	// the OpenAI default; Ollama serves one at http://localhost:11434/v1.
	BaseURL string

	// APIKey authenticates requests. Empty falls back to OPENAI_API_KEY;
	// self-hosted endpoints accept any non-empty placeholder.
	APIKey string

	Model      string
	Dimensions int // 0 auto-detects from the first embedding

	BatchSize      int // texts per sub-batch
	MaxConcurrency int // sub-batches in flight at once
	MaxRetries     int // attempts beyond the first

	// RequestsPerSecond paces outbound requests. 0 disables pacing.
	RequestsPerSecond float64

	InitialBackoff time.Duration
}

// DefaultRemoteConfig returns remote backend defaults.
func DefaultRemoteConfig() RemoteConfig {
	return RemoteConfig{
		Model:          DefaultRemoteModel,
		BatchSize:      DefaultBatchSize,
		MaxConcurrency: DefaultMaxBatchConcurrency,
		MaxRetries:     DefaultMaxRetries,
		InitialBackoff: DefaultInitialBackoff,
	}
}

// RemoteEmbedder generates embeddings through an OpenAI-compatible API.
// Large batches are split into bounded sub-batches embedded concurrently;
// results merge back into input order regardless of completion order.
type RemoteEmbedder struct {
	client  openai.Client
	config  RemoteConfig
	limiter *rate.Limiter

	mu          sync.RWMutex
	initialized bool
	closed      bool
	dims        int
}

var _ Embedder = (*RemoteEmbedder)(nil)

// NewRemoteEmbedder creates a remote embedder. No network traffic happens
// until Initialize.
func NewRemoteEmbedder(cfg RemoteConfig) *RemoteEmbedder {
	if cfg.Model == "" {
		cfg.Model = DefaultRemoteModel
	}
	if cfg.BatchSize <= 0 || cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultMaxBatchConcurrency
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = DefaultInitialBackoff
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	// The SDK retries internally by default; disable that so the backoff
	// policy here is the only one in play.
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	e := &RemoteEmbedder{
		client: openai.NewClient(opts...),
		config: cfg,
		dims:   cfg.Dimensions,
	}
	if cfg.RequestsPerSecond > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return e
}

// Initialize validates credentials and detects dimensions with a one-text
// probe. Idempotent: subsequent calls are no-ops.
func (e *RemoteEmbedder) Initialize(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return semerrors.New(semerrors.ErrCodeEmbedderClosed, "remote embedder is closed", nil)
	}
	if e.initialized {
		return nil
	}

	if e.config.APIKey == "" && e.config.BaseURL == "" {
		return semerrors.New(semerrors.ErrCodeCredentialsMissing,
			"remote embedder requires an API key (set OPENAI_API_KEY or embeddings.remote_base_url)", nil).
			WithSuggestion("export OPENAI_API_KEY, or point remote_base_url at a local OpenAI-compatible server")
	}

	vectors, err := e.embedSubBatch(ctx, []string{"dimension probe"})
	if err != nil {
		return semerrors.New(semerrors.ErrCodeBackendUnavailable,
			"remote embedding API unreachable", err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return semerrors.New(semerrors.ErrCodeBackendUnavailable,
			"remote embedding API returned an empty probe vector", nil)
	}

	if e.dims == 0 {
		e.dims = len(vectors[0])
	} else if e.dims != len(vectors[0]) {
		return semerrors.New(semerrors.ErrCodeDimensionMismatch,
			fmt.Sprintf("configured dimensions %d but model %s returns %d", e.dims, e.config.Model, len(vectors[0])), nil)
	}

	e.initialized = true
	slog.Debug("remote_embedder_initialized",
		slog.String("model", e.config.Model),
		slog.String("base_url", e.config.BaseURL),
		slog.Int("dimensions", e.dims))
	return nil
}

// Embed generates an embedding for a single text.
func (e *RemoteEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for texts, preserving input order. Texts
// are truncated to the model budget, split into sub-batches of BatchSize,
// and embedded with at most MaxConcurrency sub-batches in flight.
func (e *RemoteEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, semerrors.New(semerrors.ErrCodeEmbedderClosed, "remote embedder is closed", nil)
	}
	e.mu.RUnlock()

	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	info := e.ModelInfo()
	prepared := make([]string, len(texts))
	for i, t := range texts {
		trimmed := truncate(t, info)
		if strings.TrimSpace(trimmed) == "" {
			// The API rejects empty input; a single space embeds to a
			// near-zero vector and keeps slot alignment.
			trimmed = " "
		}
		prepared[i] = trimmed
	}

	results := make([][]float32, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.MaxConcurrency)

	for start := 0; start < len(prepared); start += e.config.BatchSize {
		end := start + e.config.BatchSize
		if end > len(prepared) {
			end = len(prepared)
		}
		offset, sub := start, prepared[start:end]

		g.Go(func() error {
			vectors, err := e.embedWithRetry(gctx, sub)
			if err != nil {
				return err
			}
			// Sub-batches complete in any order; the offset puts each
			// vector back in its input slot.
			for i, v := range vectors {
				results[offset+i] = v
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// embedWithRetry applies the backend retry policy around one sub-batch:
// exponential backoff on rate limits, linear backoff on transient errors,
// immediate failure on authentication errors.
func (e *RemoteEmbedder) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error

	for attempt := 0; attempt <= e.config.MaxRetries; attempt++ {
		if attempt > 0 {
			var delay time.Duration
			if isRateLimited(lastErr) {
				delay = e.config.InitialBackoff << (attempt - 1)
			} else {
				delay = e.config.InitialBackoff * time.Duration(attempt)
			}

			slog.Debug("remote_embed_retry",
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				slog.String("error", lastErr.Error()))

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		vectors, err := e.embedSubBatch(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		lastErr = err

		if isAuthError(err) {
			return nil, semerrors.New(semerrors.ErrCodeAuthFailed,
				"remote embedding API rejected credentials", err)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	code := semerrors.ErrCodeEmbedFailed
	if isRateLimited(lastErr) {
		code = semerrors.ErrCodeRateLimited
	}
	return nil, semerrors.New(code,
		fmt.Sprintf("remote embedding failed after %d attempts", e.config.MaxRetries+1), lastErr)
}

// embedSubBatch performs one API call for up to BatchSize texts.
func (e *RemoteEmbedder) embedSubBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(e.config.Model),
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	// The API tags each vector with its input index; trust that over
	// response order.
	vectors := make([][]float32, len(texts))
	for _, item := range resp.Data {
		idx := int(item.Index)
		if idx < 0 || idx >= len(vectors) {
			return nil, fmt.Errorf("embedding index %d out of range", idx)
		}
		vec := make([]float32, len(item.Embedding))
		for j, v := range item.Embedding {
			vec[j] = float32(v)
		}
		vectors[idx] = vec
	}
	return vectors, nil
}

// ModelInfo returns static metadata.
func (e *RemoteEmbedder) ModelInfo() ModelInfo {
	e.mu.RLock()
	dims := e.dims
	e.mu.RUnlock()
	if dims == 0 {
		dims = DefaultRemoteDimensions
	}
	return ModelInfo{
		Name:       e.config.Model,
		Dimensions: dims,
		MaxTokens:  DefaultRemoteMaxTokens,
	}
}

// Available reports whether the backend can serve embeddings right now.
func (e *RemoteEmbedder) Available(ctx context.Context) bool {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return false
	}
	initialized := e.initialized
	e.mu.RUnlock()

	if initialized {
		return true
	}

	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err := e.embedSubBatch(probeCtx, []string{"availability probe"})
	return err == nil
}

// Close releases resources. Safe to call multiple times.
func (e *RemoteEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// isRateLimited reports whether err is an HTTP 429 from the API.
func isRateLimited(err error) bool {
	var apiErr *openai.Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests
}

// isAuthError reports whether err is an HTTP 401/403 from the API.
func isAuthError(err error) bool {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden
}
