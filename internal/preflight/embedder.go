package preflight

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Aman-CERP/semdex/internal/embed"
	semerrors "github.com/Aman-CERP/semdex/internal/errors"
)

// MinModelDiskSpaceBytes is the space a model artifact download needs.
const MinModelDiskSpaceBytes = uint64(1.5 * 1024 * 1024 * 1024)

// CheckEmbedder verifies the configured embedding backend can actually
// initialize. Not required: auto mode always has the static fallback,
// and an explicit backend failure degrades the engine rather than
// blocking the doctor.
func (c *Checker) CheckEmbedder(ctx context.Context) Result {
	r := Result{Name: "embedder", Required: false}

	provider := embed.ParseProvider(c.cfg.Embeddings.Provider)
	if provider == embed.ProviderStatic {
		r.Status = StatusPass
		r.Message = "static embedder (deterministic, no backend needed)"
		return r
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	emb, err := embed.New(checkCtx, c.cfg.Embeddings)
	if err != nil {
		r.Status = StatusFail
		r.Message = fmt.Sprintf("%s backend unavailable: %v", provider, err)
		var engErr *semerrors.EngineError
		if errors.As(err, &engErr) && engErr.Suggestion != "" {
			r.Details = engErr.Suggestion
		}
		return r
	}
	defer func() { _ = emb.Close() }()

	info := emb.ModelInfo()
	if !emb.Available(checkCtx) {
		r.Status = StatusWarn
		r.Message = fmt.Sprintf("backend initialized but is not responding (model %s)", info.Name)
		return r
	}

	r.Status = StatusPass
	r.Message = fmt.Sprintf("%s via %s (%d dimensions)", info.Name, provider, info.Dimensions)
	return r
}

// CheckModelArtifact reports whether the local model file for the GPU
// backend is already downloaded. Missing is a warning: the first index
// run downloads it.
func (c *Checker) CheckModelArtifact() Result {
	r := Result{Name: "model_artifact", Required: false}

	provider := embed.ParseProvider(c.cfg.Embeddings.Provider)
	if provider == embed.ProviderRemote || provider == embed.ProviderStatic {
		r.Status = StatusPass
		r.Message = fmt.Sprintf("not needed for the %s backend", provider)
		return r
	}

	mgr := embed.NewModelManager(embed.DefaultModelsDir())
	if mgr.ModelExists() {
		r.Status = StatusPass
		r.Message = "model downloaded"
		r.Details = "path: " + mgr.ModelPath()
		return r
	}

	r.Status = StatusWarn
	r.Message = "model not downloaded yet (fetched on first index)"
	r.Details = fmt.Sprintf("download needs ~%s under %s", formatBytes(MinModelDiskSpaceBytes), embed.DefaultModelsDir())
	return r
}
