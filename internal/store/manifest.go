package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	semerrors "github.com/Aman-CERP/semdex/internal/errors"
)

// manifestFile sits at the storage root and pins the parameters the index
// was created with. Opening with a different embedder or shard layout is an
// error, not a silent corruption.
const manifestFile = "manifest.json"

// Manifest records the index-creation parameters.
type Manifest struct {
	Dimensions int       `json:"dimensions"`
	Model      string    `json:"model"`
	ShardCount int       `json:"shard_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// ReadManifest loads the manifest pinning the index parameters, or
// (nil, nil) when the index has not been created yet. Doctor checks use
// this to compare an existing index against the current configuration.
func ReadManifest(dir string) (*Manifest, error) {
	return loadManifest(dir)
}

// loadManifest reads the manifest from dir. Returns (nil, nil) when none
// exists yet.
func loadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, semerrors.New(semerrors.ErrCodeShardIO, "read index manifest", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, semerrors.New(semerrors.ErrCodeCorruptIndex, "index manifest is not valid JSON", err).
			WithSuggestion("run 'semdex clear --force' and re-index")
	}
	return &m, nil
}

// saveManifest writes the manifest atomically (temp file + rename).
func saveManifest(dir string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return semerrors.New(semerrors.ErrCodeInternal, "marshal index manifest", err)
	}

	path := filepath.Join(dir, manifestFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return semerrors.New(semerrors.ErrCodeShardIO, "write index manifest", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return semerrors.New(semerrors.ErrCodeShardIO, "rename index manifest", err)
	}
	return nil
}

// verify checks a loaded manifest against the opening parameters.
func (m *Manifest) verify(dimensions int, model string, shardCount int) error {
	if m.Dimensions != dimensions {
		return semerrors.New(semerrors.ErrCodeDimensionMismatch,
			fmt.Sprintf("index built with %d-dimension vectors, embedder produces %d", m.Dimensions, dimensions), nil).
			WithSuggestion("run 'semdex clear --force' and re-index with the current embedder")
	}
	if model != "" && m.Model != model {
		return semerrors.New(semerrors.ErrCodeManifestMismatch,
			fmt.Sprintf("index built with model %q, embedder is %q", m.Model, model), nil).
			WithSuggestion("run 'semdex clear --force' and re-index with the current embedder")
	}
	if m.ShardCount != shardCount {
		return semerrors.New(semerrors.ErrCodeManifestMismatch,
			fmt.Sprintf("index built with %d shards, configured for %d", m.ShardCount, shardCount), nil).
			WithSuggestion("restore store.shard_count or run 'semdex clear --force' to re-shard")
	}
	return nil
}
