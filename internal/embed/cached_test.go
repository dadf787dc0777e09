package embed

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEmbedder wraps the static embedder and counts backend calls.
type countingEmbedder struct {
	*StaticEmbedder
	embeds  atomic.Int64
	batches atomic.Int64
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.embeds.Add(1)
	return c.StaticEmbedder.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.batches.Add(int64(len(texts)))
	return c.StaticEmbedder.EmbedBatch(ctx, texts)
}

func TestCachedEmbedder_RepeatedQueryHitsCache(t *testing.T) {
	inner := &countingEmbedder{StaticEmbedder: NewStaticEmbedder()}
	cached := NewCachedEmbedder(inner, 16)
	defer cached.Close()

	first, err := cached.Embed(context.Background(), "find the user session handler")
	require.NoError(t, err)
	assert.EqualValues(t, 1, inner.embeds.Load())

	second, err := cached.Embed(context.Background(), "find the user session handler")
	require.NoError(t, err)
	assert.EqualValues(t, 1, inner.embeds.Load(), "second call must be served from cache")
	assert.Equal(t, first, second)
}

func TestCachedEmbedder_BatchEmbedsOnlyMisses(t *testing.T) {
	inner := &countingEmbedder{StaticEmbedder: NewStaticEmbedder()}
	cached := NewCachedEmbedder(inner, 16)
	defer cached.Close()

	_, err := cached.Embed(context.Background(), "alpha")
	require.NoError(t, err)

	vectors, err := cached.EmbedBatch(context.Background(), []string{"alpha", "beta", "gamma"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.EqualValues(t, 2, inner.batches.Load(), "only the two misses hit the backend")

	// Order preserved: each slot matches a direct embed of its text.
	direct, err := inner.StaticEmbedder.Embed(context.Background(), "beta")
	require.NoError(t, err)
	assert.Equal(t, direct, vectors[1])
}

func TestCachedEmbedder_PassesThroughMetadata(t *testing.T) {
	inner := NewStaticEmbedder()
	cached := NewCachedEmbedder(inner, 0) // 0 falls back to the default size
	defer cached.Close()

	assert.Equal(t, inner.ModelInfo(), cached.ModelInfo())
	assert.True(t, cached.Available(context.Background()))
	assert.Same(t, inner, cached.Inner())
}
