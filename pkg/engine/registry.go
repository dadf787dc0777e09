package engine

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/Aman-CERP/semdex/internal/config"
	semerrors "github.com/Aman-CERP/semdex/internal/errors"
)

// Registry tracks one engine per storage path so independent indexes can
// coexist in a process (daemon, MCP server) without package globals.
// Paths are normalized to absolute before lookup.
type Registry struct {
	mu      sync.Mutex
	engines map[string]*Engine
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{engines: make(map[string]*Engine)}
}

// Open returns the engine for storageDir, initializing a new one on first
// use. Subsequent calls with the same (absolute) path return the same
// instance.
func (r *Registry) Open(ctx context.Context, cfg *config.Config, storageDir string) (*Engine, error) {
	abs, err := filepath.Abs(storageDir)
	if err != nil {
		return nil, semerrors.New(semerrors.ErrCodeInvalidPath, "resolve storage dir: "+storageDir, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if eng, ok := r.engines[abs]; ok {
		return eng, nil
	}

	eng := New(cfg, abs)
	if err := eng.Initialize(ctx); err != nil {
		_ = eng.Close()
		return nil, err
	}
	r.engines[abs] = eng
	return eng, nil
}

// Get returns the engine for storageDir without creating one.
func (r *Registry) Get(storageDir string) (*Engine, bool) {
	abs, err := filepath.Abs(storageDir)
	if err != nil {
		return nil, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	eng, ok := r.engines[abs]
	return eng, ok
}

// Close shuts down and removes the engine for storageDir. Unknown paths
// are a no-op.
func (r *Registry) Close(storageDir string) error {
	abs, err := filepath.Abs(storageDir)
	if err != nil {
		return semerrors.New(semerrors.ErrCodeInvalidPath, "resolve storage dir: "+storageDir, err)
	}

	r.mu.Lock()
	eng, ok := r.engines[abs]
	delete(r.engines, abs)
	r.mu.Unlock()

	if !ok {
		return nil
	}
	return eng.Close()
}

// CloseAll shuts down every registered engine, returning the first error.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	engines := make([]*Engine, 0, len(r.engines))
	for _, eng := range r.engines {
		engines = append(engines, eng)
	}
	r.engines = make(map[string]*Engine)
	r.mu.Unlock()

	var firstErr error
	for _, eng := range engines {
		if err := eng.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
