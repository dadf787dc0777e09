// Package engine is the public facade over the semdex pipeline: it owns
// the embedder, the sharded vector store, the lexical index, the worker
// pools, and telemetry, and exposes indexing and search as one coherent
// lifecycle (initialize, index, search, close) plus an event stream.
package engine

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Aman-CERP/semdex/internal/chunk"
	"github.com/Aman-CERP/semdex/internal/config"
	"github.com/Aman-CERP/semdex/internal/embed"
	semerrors "github.com/Aman-CERP/semdex/internal/errors"
	"github.com/Aman-CERP/semdex/internal/index"
	"github.com/Aman-CERP/semdex/internal/pool"
	"github.com/Aman-CERP/semdex/internal/search"
	"github.com/Aman-CERP/semdex/internal/store"
	"github.com/Aman-CERP/semdex/internal/telemetry"
)

// State is the engine lifecycle state.
type State string

const (
	StateInitializing State = "initializing"
	StateReady        State = "ready"
	StateDegraded     State = "degraded"
	StateIndexing     State = "indexing"
	StateClosed       State = "closed"
)

// indexTaskTimeout is the per-shard task budget for bulk indexing. Index
// tasks embed every chunk of a shard's file group, so they get a far
// longer leash than search tasks.
const indexTaskTimeout = 10 * time.Minute

// ChangeType classifies a file change event.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeDeleted  ChangeType = "deleted"
)

// FileChange is one filesystem change routed into the engine, typically
// from the watcher. Content nil means read the file from disk.
type FileChange struct {
	Path    string
	Type    ChangeType
	Content *string
}

// Status is a point-in-time view of the engine.
type Status struct {
	State       State  `json:"state"`
	Reason      string `json:"reason,omitempty"` // why not ready, when degraded
	Provider    string `json:"provider,omitempty"`
	Model       string `json:"model,omitempty"`
	Dimensions  int    `json:"dimensions,omitempty"`
	ShardCount  int    `json:"shard_count,omitempty"`
	TotalFiles  int    `json:"total_files"`
	TotalChunks int    `json:"total_chunks"`

	// Indexing is the current bulk run, nil when none is in flight.
	Indexing *index.ProgressSnapshot `json:"indexing,omitempty"`
}

// Engine wires the full pipeline behind a single facade.
type Engine struct {
	cfg        *config.Config
	storageDir string

	mu     sync.Mutex
	state  State
	reason string

	embedder embed.Embedder
	store    *store.ShardedStore
	lexical  store.LexicalIndex
	indexer  *index.Indexer
	searcher *search.Searcher
	metrics  *telemetry.QueryMetrics

	events *broadcaster
	bulk   *index.Progress
}

// New creates an uninitialized engine rooted at storageDir. Call
// Initialize before indexing or searching.
func New(cfg *config.Config, storageDir string) *Engine {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	return &Engine{
		cfg:        cfg,
		storageDir: storageDir,
		state:      StateInitializing,
		events:     newBroadcaster(),
	}
}

// Initialize builds the embedder, opens the store and lexical index, and
// wires the pools. Idempotent: a ready engine returns immediately. On
// failure the engine stays degraded with a reason, so Status can explain
// why searches are unavailable, and Initialize may be retried.
func (e *Engine) Initialize(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StateReady, StateIndexing:
		return nil
	case StateClosed:
		return semerrors.New(semerrors.ErrCodeStoreClosed, "engine is closed", nil)
	}

	embedder, err := embed.New(ctx, e.cfg.Embeddings)
	if err != nil {
		e.state = StateDegraded
		e.reason = unavailableReason(err)
		e.events.publish(Event{Type: EventError, Message: e.reason})
		return err
	}
	info := embedder.ModelInfo()

	st, err := store.Open(e.storageDir, store.Options{
		ShardCount:    e.cfg.Store.ShardCount,
		Dimensions:    info.Dimensions,
		Model:         info.Name,
		SQLiteCacheMB: e.cfg.Store.SQLiteCacheMB,
	})
	if err != nil {
		_ = embedder.Close()
		e.state = StateDegraded
		e.reason = unavailableReason(err)
		e.events.publish(Event{Type: EventError, Message: e.reason})
		return err
	}

	var lexical store.LexicalIndex
	if e.cfg.Search.LexicalWeight > 0 {
		base := store.LexicalIndexBasePath(e.storageDir)
		backend := e.cfg.Search.LexicalBackend
		if detected := store.DetectLexicalBackend(base); detected != "" {
			// An existing index pins the backend regardless of config.
			backend = string(detected)
		}
		lexical, err = store.NewLexicalIndex(base, store.DefaultLexicalConfig(), backend)
		if err != nil {
			_ = st.Close()
			_ = embedder.Close()
			e.state = StateDegraded
			e.reason = unavailableReason(err)
			e.events.publish(Event{Type: EventError, Message: e.reason})
			return err
		}
	}

	chunker := chunk.New(chunk.ModeAuto, chunk.Options{
		MaxChunkSize: e.cfg.Search.ChunkSize,
		Overlap:      e.cfg.Search.ChunkOverlap,
	})

	workers := e.cfg.Performance.IndexWorkers
	indexPool := pool.New(workers, pool.WithTaskTimeout(indexTaskTimeout))
	searchPool := pool.New(workers)

	e.embedder = embedder
	e.store = st
	e.lexical = lexical
	e.indexer = index.New(chunker, embedder, st, lexical, indexPool)
	e.searcher = search.New(embedder, st, lexical, searchPool, e.cfg.Search.LexicalWeight)

	if e.cfg.Telemetry.Enabled {
		ms, merr := telemetry.OpenMetricsStore(filepath.Join(e.storageDir, telemetry.MetricsFileName))
		if merr != nil {
			// Telemetry is best-effort; searches work without it.
			slog.Warn("telemetry_unavailable", slog.String("error", merr.Error()))
		} else {
			e.metrics = telemetry.NewQueryMetricsWithConfig(ms, telemetry.Config{
				FlushInterval: e.cfg.TelemetryFlushInterval(),
			})
			e.searcher.SetRecorder(e.metrics)
		}
	}

	e.state = StateReady
	e.reason = ""
	slog.Info("engine_ready",
		slog.String("provider", string(embed.ParseProvider(e.cfg.Embeddings.Provider))),
		slog.String("model", info.Name),
		slog.Int("dimensions", info.Dimensions),
		slog.Int("shards", e.cfg.Store.ShardCount))
	e.events.publish(Event{Type: EventReady, Message: info.Name})
	return nil
}

// unavailableReason maps an initialization failure to the human-readable
// reason surfaced by Status.
func unavailableReason(err error) string {
	switch semerrors.GetCode(err) {
	case semerrors.ErrCodeCredentialsMissing, semerrors.ErrCodeAuthFailed:
		return "embedding credentials missing or rejected"
	case semerrors.ErrCodeModelMissing, semerrors.ErrCodeModelDownload:
		return "embedding model not available yet (download pending)"
	case semerrors.ErrCodeGPURuntimeMissing, semerrors.ErrCodeBackendUnavailable:
		return "embedding backend unreachable"
	case semerrors.ErrCodeManifestMismatch, semerrors.ErrCodeDimensionMismatch:
		return "existing index is incompatible with the configured model"
	default:
		return err.Error()
	}
}

// requireReady returns the component error for ops that need a live engine.
func (e *Engine) requireReady() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StateReady, StateIndexing, StateDegraded:
		if e.indexer == nil {
			return semerrors.New(semerrors.ErrCodeBackendUnavailable, "engine is not initialized: "+e.reason, nil).
				WithSuggestion("call Initialize first")
		}
		return nil
	case StateClosed:
		return semerrors.New(semerrors.ErrCodeStoreClosed, "engine is closed", nil)
	default:
		return semerrors.New(semerrors.ErrCodeBackendUnavailable, "engine is not initialized", nil).
			WithSuggestion("call Initialize first")
	}
}

// Events returns a channel of engine events. Each call creates an
// independent subscription; the channel closes when the engine closes.
// Slow consumers lose events rather than stalling the engine.
func (e *Engine) Events() <-chan Event {
	return e.events.subscribe()
}

// IndexFile indexes one file's content, replacing any previous version.
func (e *Engine) IndexFile(ctx context.Context, path, content string) (int, error) {
	if err := e.requireReady(); err != nil {
		return 0, err
	}
	chunks, err := e.indexer.IndexFile(ctx, path, content)
	if err != nil {
		e.events.publish(Event{Type: EventError, Path: path, Message: err.Error()})
		return 0, err
	}
	e.events.publish(Event{Type: EventFileIndexed, Path: path})
	return chunks, nil
}

// IndexFiles bulk-indexes files through the worker pool, moving the
// engine to the indexing state for the duration and streaming progress
// events. Per-file failures are collected in the result, not fatal.
func (e *Engine) IndexFiles(ctx context.Context, files []index.File) (*index.BulkResult, error) {
	if err := e.requireReady(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.state == StateIndexing {
		e.mu.Unlock()
		return nil, semerrors.New(semerrors.ErrCodeInvalidInput, "a bulk indexing run is already in progress", nil)
	}
	prev := e.state
	e.state = StateIndexing
	e.bulk = index.NewProgress(len(files))
	bulk := e.bulk
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		// A concurrent Close wins the state transition.
		if e.state == StateIndexing {
			e.state = prev
		}
		e.bulk = nil
		e.mu.Unlock()
	}()

	e.events.publish(Event{Type: EventIndexingStart, Progress: snapshotPtr(bulk)})

	result, err := e.indexer.IndexFiles(ctx, files, func(current, total int, currentFile string) {
		bulk.Update(current, total, currentFile)
		e.events.publish(Event{Type: EventIndexingProgress, Path: currentFile, Progress: snapshotPtr(bulk)})
	})
	if err != nil {
		bulk.SetError(err.Error())
		e.events.publish(Event{Type: EventError, Message: err.Error(), Progress: snapshotPtr(bulk)})
		return nil, err
	}

	for range result.Failed {
		bulk.AddFailure()
	}
	bulk.SetDone()

	if err := e.store.Save(); err != nil {
		slog.Warn("store_save_failed", slog.String("error", err.Error()))
	}

	e.events.publish(Event{Type: EventIndexingComplete, Progress: snapshotPtr(bulk)})
	return result, nil
}

func snapshotPtr(p *index.Progress) *index.ProgressSnapshot {
	snap := p.Snapshot()
	return &snap
}

// DeleteFile removes a file from the index. Unindexed paths are a no-op.
func (e *Engine) DeleteFile(ctx context.Context, path string) error {
	if err := e.requireReady(); err != nil {
		return err
	}
	if err := e.indexer.DeleteFile(ctx, path); err != nil {
		return err
	}
	e.events.publish(Event{Type: EventFileDeleted, Path: path})
	return nil
}

// OnFileChange routes a watcher event into the index. For added and
// modified files the content is read from disk unless provided; a file
// that vanished between the event and the read is treated as deleted.
func (e *Engine) OnFileChange(ctx context.Context, change FileChange) error {
	switch change.Type {
	case ChangeDeleted:
		return e.DeleteFile(ctx, change.Path)

	case ChangeAdded, ChangeModified:
		content := ""
		if change.Content != nil {
			content = *change.Content
		} else {
			data, err := os.ReadFile(change.Path)
			if os.IsNotExist(err) {
				return e.DeleteFile(ctx, change.Path)
			}
			if err != nil {
				return semerrors.New(semerrors.ErrCodeInvalidPath, "read changed file: "+change.Path, err)
			}
			content = string(data)
		}
		_, err := e.IndexFile(ctx, change.Path, content)
		return err

	default:
		return semerrors.New(semerrors.ErrCodeInvalidInput, "unknown change type: "+string(change.Type), nil)
	}
}

// Search runs a semantic query.
func (e *Engine) Search(ctx context.Context, query string, opts search.Options) ([]search.Result, error) {
	if err := e.requireReady(); err != nil {
		return nil, err
	}
	return e.searcher.Search(ctx, query, e.withSearchDefaults(opts))
}

// HybridSearch runs a semantic query blended with the lexical signal.
func (e *Engine) HybridSearch(ctx context.Context, query string, opts search.Options) ([]search.Result, error) {
	if err := e.requireReady(); err != nil {
		return nil, err
	}
	return e.searcher.HybridSearch(ctx, query, e.withSearchDefaults(opts))
}

func (e *Engine) withSearchDefaults(opts search.Options) search.Options {
	if opts.TopK <= 0 && e.cfg.Search.MaxResults > 0 {
		opts.TopK = e.cfg.Search.MaxResults
	}
	if opts.MinScore == 0 {
		opts.MinScore = e.cfg.Search.MinScore
	}
	return opts
}

// Stats reports aggregate index counts.
func (e *Engine) Stats(ctx context.Context) (store.IndexStats, error) {
	if err := e.requireReady(); err != nil {
		return store.IndexStats{}, err
	}
	return e.indexer.Stats(ctx)
}

// Metrics returns the telemetry snapshot, or nil when telemetry is off.
func (e *Engine) Metrics() *telemetry.Snapshot {
	e.mu.Lock()
	m := e.metrics
	e.mu.Unlock()
	if m == nil {
		return nil
	}
	return m.Snapshot()
}

// Status reports the engine state. A degraded engine carries the reason
// it is unavailable; a ready engine with zero files is simply empty.
func (e *Engine) Status(ctx context.Context) Status {
	e.mu.Lock()
	st := Status{
		State:  e.state,
		Reason: e.reason,
	}
	if e.bulk != nil {
		st.Indexing = snapshotPtr(e.bulk)
	}
	embedder := e.embedder
	vstore := e.store
	indexer := e.indexer
	e.mu.Unlock()

	if embedder != nil {
		info := embedder.ModelInfo()
		st.Provider = string(embed.ParseProvider(e.cfg.Embeddings.Provider))
		st.Model = info.Name
		st.Dimensions = info.Dimensions
	}
	if vstore != nil {
		st.ShardCount = vstore.ShardCount()
	}
	if indexer != nil {
		if stats, err := indexer.Stats(ctx); err == nil {
			st.TotalFiles = stats.TotalFiles
			st.TotalChunks = stats.TotalChunks
		}
	}
	return st
}

// StorageDir returns the engine's storage root.
func (e *Engine) StorageDir() string {
	return e.storageDir
}

// Clear wipes all indexed data but keeps the engine ready.
func (e *Engine) Clear(ctx context.Context) error {
	if err := e.requireReady(); err != nil {
		return err
	}
	return e.indexer.Clear(ctx)
}

// Close flushes and releases everything. Idempotent.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.state == StateClosed {
		e.mu.Unlock()
		return nil
	}
	e.state = StateClosed
	metrics := e.metrics
	lexical := e.lexical
	vstore := e.store
	embedder := e.embedder
	e.mu.Unlock()

	var firstErr error
	if metrics != nil {
		if err := metrics.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if lexical != nil {
		if err := lexical.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if vstore != nil {
		if err := vstore.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if embedder != nil {
		if err := embedder.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	e.events.close()
	slog.Info("engine_closed", slog.String("storage_dir", e.storageDir))
	return firstErr
}
