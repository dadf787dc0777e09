// Package embed turns text into fixed-length vectors via interchangeable
// backends: a GPU-local sidecar, an OpenAI-compatible remote API, and a
// deterministic CPU fallback. All backends share one interface and one
// behavioral contract; the factory picks a backend from configuration and
// probes a fallback chain in auto mode.
package embed

import (
	"context"
	"math"
	"time"
)

// Batch limits shared by all backends.
const (
	// MaxBatchSize bounds texts per sub-batch (prevents memory exhaustion).
	MaxBatchSize = 256

	// DefaultBatchSize is the default sub-batch size for EmbedBatch.
	DefaultBatchSize = 32

	// DefaultMaxBatchConcurrency bounds sub-batches in flight at once.
	DefaultMaxBatchConcurrency = 4

	// DefaultMaxRetries bounds retry attempts per embedding call.
	DefaultMaxRetries = 3

	// CharsPerToken approximates tokens from character count.
	CharsPerToken = 4
)

// ModelInfo is static metadata about an embedder's model. No side effects:
// it must be answerable without touching the backend.
type ModelInfo struct {
	Name       string
	Dimensions int
	MaxTokens  int
}

// MaxChars is the deterministic truncation bound derived from MaxTokens.
func (m ModelInfo) MaxChars() int {
	return m.MaxTokens * CharsPerToken
}

// Embedder generates vector embeddings for text.
//
// Contract shared by every backend:
//   - Initialize is idempotent and returns an initialization error
//     (ERR_1xx) when the backend is unusable; callers treat that as a
//     recoverable "embedder unavailable" state, not a crash.
//   - EmbedBatch returns exactly len(texts) vectors in input order, even
//     when sub-batches complete out of order.
//   - Input longer than the model's token budget is truncated
//     deterministically, never dropped.
//   - Close is safe to call more than once.
type Embedder interface {
	Initialize(ctx context.Context) error
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	ModelInfo() ModelInfo
	Available(ctx context.Context) bool
	Close() error
}

// Backend timeouts. The sidecar's first call may need to load model
// weights, so cold calls get a longer budget than warm ones.
const (
	DefaultWarmTimeout = 60 * time.Second
	DefaultColdTimeout = 180 * time.Second

	// modelIdleThreshold is how long without a call before the sidecar is
	// assumed to have unloaded the model.
	modelIdleThreshold = 5 * time.Minute
)

// truncate deterministically bounds text to the model's character budget.
// Same input always produces the same truncation.
func truncate(text string, info ModelInfo) string {
	maxChars := info.MaxChars()
	if maxChars <= 0 || len(text) <= maxChars {
		return text
	}
	return text[:maxChars]
}

// normalizeVector normalizes a vector to unit length. Zero vectors are
// returned as-is.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}
