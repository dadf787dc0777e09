package embed

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/Aman-CERP/semdex/internal/config"
	semerrors "github.com/Aman-CERP/semdex/internal/errors"
)

// Provider selects an embedding backend.
type Provider string

const (
	// ProviderGPU uses the GPU-local embedding sidecar.
	ProviderGPU Provider = "gpu"

	// ProviderRemote uses an OpenAI-compatible embeddings API.
	ProviderRemote Provider = "remote"

	// ProviderStatic uses deterministic hash-based CPU embeddings.
	ProviderStatic Provider = "static"

	// ProviderAuto probes gpu, then remote, then static, taking the first
	// backend whose Initialize succeeds.
	ProviderAuto Provider = "auto"
)

// ParseProvider converts a config string to a Provider. Empty and unknown
// values mean auto.
func ParseProvider(s string) Provider {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gpu":
		return ProviderGPU
	case "remote":
		return ProviderRemote
	case "static":
		return ProviderStatic
	default:
		return ProviderAuto
	}
}

// ValidProviders lists accepted provider names.
func ValidProviders() []string {
	return []string{string(ProviderGPU), string(ProviderRemote), string(ProviderStatic), string(ProviderAuto)}
}

// New creates and initializes an embedder from configuration.
//
// An explicitly selected provider does not fall back: if it cannot
// initialize, the error surfaces so the user learns their chosen backend
// is broken instead of silently indexing with a different model. Auto mode
// probes gpu -> remote -> static and takes the first that initializes;
// static always succeeds, so auto never fails.
//
// The returned embedder is wrapped with an LRU cache unless CacheSize is
// negative.
func New(ctx context.Context, cfg config.EmbeddingsConfig) (Embedder, error) {
	provider := ParseProvider(cfg.Provider)

	var embedder Embedder
	var err error

	switch provider {
	case ProviderGPU:
		embedder, err = initGPU(ctx, cfg)
	case ProviderRemote:
		embedder, err = initRemote(ctx, cfg)
	case ProviderStatic:
		embedder, err = initStatic(ctx)
	default:
		embedder, err = initAuto(ctx, cfg)
	}
	if err != nil {
		return nil, err
	}

	if cfg.CacheSize >= 0 {
		embedder = NewCachedEmbedder(embedder, cfg.CacheSize)
	}
	return embedder, nil
}

// initAuto probes backends in preference order. Probe failures are logged
// at debug and the chain moves on; only total exhaustion errors, which
// cannot happen while static is in the chain.
func initAuto(ctx context.Context, cfg config.EmbeddingsConfig) (Embedder, error) {
	if gpu, err := initGPU(ctx, cfg); err == nil {
		slog.Info("embedder_selected", slog.String("provider", "gpu"))
		return gpu, nil
	} else {
		slog.Debug("embedder_probe_failed",
			slog.String("provider", "gpu"),
			slog.String("error", err.Error()))
	}

	if remote, err := initRemote(ctx, cfg); err == nil {
		slog.Info("embedder_selected", slog.String("provider", "remote"))
		return remote, nil
	} else {
		slog.Debug("embedder_probe_failed",
			slog.String("provider", "remote"),
			slog.String("error", err.Error()))
	}

	slog.Info("embedder_selected", slog.String("provider", "static"))
	return initStatic(ctx)
}

func initGPU(ctx context.Context, cfg config.EmbeddingsConfig) (Embedder, error) {
	gpuCfg := DefaultGPUConfig()
	if cfg.SidecarEndpoint != "" {
		gpuCfg.Endpoint = cfg.SidecarEndpoint
	}
	if cfg.Model != "" {
		gpuCfg.Model = cfg.Model
	}

	e := NewGPUEmbedder(gpuCfg)
	initCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := e.Initialize(initCtx); err != nil {
		_ = e.Close()
		return nil, err
	}
	return e, nil
}

func initRemote(ctx context.Context, cfg config.EmbeddingsConfig) (Embedder, error) {
	remoteCfg := DefaultRemoteConfig()
	remoteCfg.BaseURL = cfg.RemoteBaseURL
	remoteCfg.Dimensions = cfg.Dimensions
	if cfg.Model != "" {
		remoteCfg.Model = cfg.Model
	}
	if cfg.BatchSize > 0 {
		remoteCfg.BatchSize = cfg.BatchSize
	}
	if cfg.MaxBatchConcurrency > 0 {
		remoteCfg.MaxConcurrency = cfg.MaxBatchConcurrency
	}
	if cfg.MaxRetries > 0 {
		remoteCfg.MaxRetries = cfg.MaxRetries
	}
	remoteCfg.RequestsPerSecond = cfg.RequestsPerSecond

	e := NewRemoteEmbedder(remoteCfg)
	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := e.Initialize(initCtx); err != nil {
		_ = e.Close()
		return nil, err
	}
	return e, nil
}

func initStatic(ctx context.Context) (Embedder, error) {
	e := NewStaticEmbedder()
	if err := e.Initialize(ctx); err != nil {
		return nil, semerrors.New(semerrors.ErrCodeBackendUnavailable, "static embedder failed to initialize", err)
	}
	return e, nil
}
