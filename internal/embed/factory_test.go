package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/semdex/internal/config"
)

func TestParseProvider(t *testing.T) {
	tests := []struct {
		in   string
		want Provider
	}{
		{"gpu", ProviderGPU},
		{"remote", ProviderRemote},
		{"static", ProviderStatic},
		{"auto", ProviderAuto},
		{"  GPU ", ProviderGPU},
		{"", ProviderAuto},
		{"onnx", ProviderAuto},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseProvider(tt.in), "%q", tt.in)
	}
}

func TestNew_StaticProvider(t *testing.T) {
	cfg := config.NewConfig().Embeddings
	cfg.Provider = "static"

	e, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer e.Close()

	cached, ok := e.(*CachedEmbedder)
	require.True(t, ok, "embedder should be cache-wrapped by default")
	_, ok = cached.Inner().(*StaticEmbedder)
	assert.True(t, ok)

	vec, err := e.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Len(t, vec, StaticDimensions)
}

func TestNew_NegativeCacheSizeDisablesCache(t *testing.T) {
	cfg := config.NewConfig().Embeddings
	cfg.Provider = "static"
	cfg.CacheSize = -1

	e, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer e.Close()

	_, ok := e.(*StaticEmbedder)
	assert.True(t, ok, "negative cache size should skip the cache wrapper")
}

func TestNew_ExplicitRemoteWithoutCredentialsFails(t *testing.T) {
	cfg := config.NewConfig().Embeddings
	cfg.Provider = "remote"
	t.Setenv("OPENAI_API_KEY", "")

	_, err := New(context.Background(), cfg)
	require.Error(t, err, "explicit provider selection must not fall back")
}
