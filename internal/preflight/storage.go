package preflight

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Aman-CERP/semdex/internal/embed"
	"github.com/Aman-CERP/semdex/internal/store"
)

// CheckStorageWritable verifies the storage directory can be created
// and written.
func (c *Checker) CheckStorageWritable(storageDir string) Result {
	r := Result{Name: "storage_writable", Required: true}

	if err := os.MkdirAll(storageDir, 0o755); err != nil {
		r.Status = StatusFail
		r.Message = fmt.Sprintf("cannot create %s: %v", storageDir, err)
		return r
	}

	probe := filepath.Join(storageDir, ".write-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		r.Status = StatusFail
		r.Message = fmt.Sprintf("cannot write to %s: %v", storageDir, err)
		return r
	}
	_ = os.Remove(probe)

	r.Status = StatusPass
	r.Message = storageDir + " is writable"
	return r
}

// CheckManifest compares an existing index against the current
// configuration. A mismatch is a hard failure: opening the store would
// refuse anyway, and the fix (re-index or restore the config) needs a
// human decision.
func (c *Checker) CheckManifest(storageDir string) Result {
	r := Result{Name: "index_manifest", Required: true}

	m, err := store.ReadManifest(storageDir)
	if err != nil {
		r.Status = StatusFail
		r.Message = fmt.Sprintf("manifest unreadable: %v", err)
		r.Details = "run 'semdex clear --force' and re-index"
		return r
	}
	if m == nil {
		r.Status = StatusPass
		r.Message = "no index yet"
		return r
	}

	if c.cfg.Store.ShardCount > 0 && m.ShardCount != c.cfg.Store.ShardCount {
		r.Status = StatusFail
		r.Message = fmt.Sprintf("index has %d shards, config wants %d", m.ShardCount, c.cfg.Store.ShardCount)
		r.Details = "restore store.shard_count or run 'semdex clear --force' to re-shard"
		return r
	}

	cfgModel := c.cfg.Embeddings.Model
	provider := embed.ParseProvider(c.cfg.Embeddings.Provider)
	if cfgModel != "" && provider != embed.ProviderAuto && m.Model != cfgModel {
		r.Status = StatusFail
		r.Message = fmt.Sprintf("index built with model %q, config wants %q", m.Model, cfgModel)
		r.Details = "run 'semdex clear --force' and re-index with the new model"
		return r
	}

	r.Status = StatusPass
	r.Message = fmt.Sprintf("compatible (%d shards, model %s, %d dimensions)", m.ShardCount, m.Model, m.Dimensions)
	return r
}
