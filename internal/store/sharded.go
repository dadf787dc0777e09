package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	semerrors "github.com/Aman-CERP/semdex/internal/errors"
)

// DefaultShardCount fixes the shard set size when none is configured.
const DefaultShardCount = 8

// Options configures a ShardedStore at open time.
type Options struct {
	// ShardCount fixes the number of shards. Only honored at index
	// creation; an existing index keeps its manifest value.
	ShardCount int

	// Dimensions is the embedder's vector width.
	Dimensions int

	// Model names the embedding model, pinned in the manifest.
	Model string

	// SQLiteCacheMB sizes each shard's SQLite page cache.
	SQLiteCacheMB int
}

// ShardedStore is the sharded vector store. Each shard holds the records of
// the files hashed to it; queries inside this component never cross shards,
// the searcher merges per-shard result lists.
//
// Per-shard locks serialize access to a shard while letting operations on
// different shards run concurrently, matching the worker pool's
// one-worker-per-shard dispatch.
type ShardedStore struct {
	dir      string
	manifest Manifest
	shards   []*shard
	locks    []sync.Mutex

	mu     sync.RWMutex
	closed bool
}

// Open opens or creates the sharded store under dir. A fresh directory
// writes a manifest pinning (dimensions, model, shardCount); reopening
// verifies the manifest and fails with a storage error on mismatch.
func Open(dir string, opts Options) (*ShardedStore, error) {
	if opts.ShardCount <= 0 {
		opts.ShardCount = DefaultShardCount
	}
	if opts.Dimensions <= 0 {
		return nil, semerrors.New(semerrors.ErrCodeInvalidInput, "store dimensions must be positive", nil)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, semerrors.New(semerrors.ErrCodeShardIO, "create storage directory", err)
	}

	existing, err := loadManifest(dir)
	if err != nil {
		return nil, err
	}

	var manifest Manifest
	if existing != nil {
		if err := existing.verify(opts.Dimensions, opts.Model, opts.ShardCount); err != nil {
			return nil, err
		}
		manifest = *existing
	} else {
		manifest = Manifest{
			Dimensions: opts.Dimensions,
			Model:      opts.Model,
			ShardCount: opts.ShardCount,
			CreatedAt:  time.Now().UTC(),
		}
		if err := saveManifest(dir, &manifest); err != nil {
			return nil, err
		}
	}

	shards := make([]*shard, manifest.ShardCount)
	for i := range shards {
		shardDir := filepath.Join(dir, "shards", fmt.Sprintf("%03d", i))
		sh, err := openShard(i, shardDir, DefaultHNSWConfig(manifest.Dimensions), opts.SQLiteCacheMB)
		if err != nil {
			for _, opened := range shards[:i] {
				_ = opened.close()
			}
			return nil, semerrors.New(semerrors.ErrCodeShardIO,
				fmt.Sprintf("open shard %d", i), err)
		}
		shards[i] = sh
	}

	slog.Debug("store_opened",
		slog.String("dir", dir),
		slog.Int("shards", manifest.ShardCount),
		slog.Int("dimensions", manifest.Dimensions))

	return &ShardedStore{
		dir:      dir,
		manifest: manifest,
		shards:   shards,
		locks:    make([]sync.Mutex, manifest.ShardCount),
	}, nil
}

// ShardCount returns the fixed shard set size.
func (s *ShardedStore) ShardCount() int {
	return s.manifest.ShardCount
}

// ShardFor maps a file path to its owning shard.
func (s *ShardedStore) ShardFor(filePath string) int {
	return ShardFor(filePath, s.manifest.ShardCount)
}

// Manifest returns a copy of the pinned index parameters.
func (s *ShardedStore) Manifest() Manifest {
	return s.manifest
}

// Dir returns the storage root.
func (s *ShardedStore) Dir() string {
	return s.dir
}

func (s *ShardedStore) checkShard(shardID int) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return semerrors.New(semerrors.ErrCodeStoreClosed, "store is closed", nil)
	}
	if shardID < 0 || shardID >= len(s.shards) {
		return semerrors.New(semerrors.ErrCodeInvalidShard,
			fmt.Sprintf("shard %d out of range [0,%d)", shardID, len(s.shards)), nil)
	}
	return nil
}

// Upsert writes records into one shard, replacing any record with the same
// (FilePath, ChunkIndex).
func (s *ShardedStore) Upsert(ctx context.Context, shardID int, records []Record) error {
	if err := s.checkShard(shardID); err != nil {
		return err
	}
	for _, rec := range records {
		if len(rec.Embedding) != s.manifest.Dimensions {
			return semerrors.New(semerrors.ErrCodeDimensionMismatch,
				fmt.Sprintf("record %s has %d-dimension embedding, index expects %d",
					rec.Key(), len(rec.Embedding), s.manifest.Dimensions), nil)
		}
	}

	s.locks[shardID].Lock()
	defer s.locks[shardID].Unlock()

	if err := s.shards[shardID].upsert(ctx, records); err != nil {
		return semerrors.New(semerrors.ErrCodeShardIO,
			fmt.Sprintf("upsert into shard %d", shardID), err)
	}
	return nil
}

// DeleteByFile removes all records for a file from one shard and returns
// the removed record keys so callers can purge the lexical index.
func (s *ShardedStore) DeleteByFile(ctx context.Context, shardID int, filePath string) ([]string, error) {
	if err := s.checkShard(shardID); err != nil {
		return nil, err
	}

	s.locks[shardID].Lock()
	defer s.locks[shardID].Unlock()

	keys, err := s.shards[shardID].deleteByFile(ctx, filePath)
	if err != nil {
		return nil, semerrors.New(semerrors.ErrCodeShardIO,
			fmt.Sprintf("delete %s from shard %d", filePath, shardID), err)
	}
	return keys, nil
}

// NearestNeighbors returns up to topK records from one shard with cosine
// similarity >= minScore, sorted descending, ties broken by file path then
// chunk index.
func (s *ShardedStore) NearestNeighbors(ctx context.Context, shardID int, query []float32, topK int, minScore float64) ([]ScoredRecord, error) {
	if err := s.checkShard(shardID); err != nil {
		return nil, err
	}
	if len(query) != s.manifest.Dimensions {
		return nil, semerrors.New(semerrors.ErrCodeDimensionMismatch,
			fmt.Sprintf("query has %d dimensions, index expects %d", len(query), s.manifest.Dimensions), nil)
	}

	s.locks[shardID].Lock()
	defer s.locks[shardID].Unlock()

	results, err := s.shards[shardID].nearest(ctx, query, topK, minScore)
	if err != nil {
		return nil, semerrors.New(semerrors.ErrCodeShardIO,
			fmt.Sprintf("search shard %d", shardID), err)
	}
	return results, nil
}

// ShardStats derives one shard's chunk and file counts.
func (s *ShardedStore) ShardStats(ctx context.Context, shardID int) (ShardStats, error) {
	if err := s.checkShard(shardID); err != nil {
		return ShardStats{}, err
	}

	s.locks[shardID].Lock()
	defer s.locks[shardID].Unlock()

	st, err := s.shards[shardID].stats(ctx)
	if err != nil {
		return ShardStats{}, semerrors.New(semerrors.ErrCodeShardIO,
			fmt.Sprintf("stats for shard %d", shardID), err)
	}
	return st, nil
}

// ShardRecordKeys lists one shard's record keys from SQLite, sorted.
// Consistency validation compares these against the graph and the
// lexical index.
func (s *ShardedStore) ShardRecordKeys(ctx context.Context, shardID int) ([]string, error) {
	if err := s.checkShard(shardID); err != nil {
		return nil, err
	}

	s.locks[shardID].Lock()
	defer s.locks[shardID].Unlock()

	keys, err := s.shards[shardID].recordKeys(ctx)
	if err != nil {
		return nil, semerrors.New(semerrors.ErrCodeShardIO,
			fmt.Sprintf("list record keys in shard %d", shardID), err)
	}
	return keys, nil
}

// ShardGraphKeys lists one shard's live HNSW keys, sorted.
func (s *ShardedStore) ShardGraphKeys(shardID int) ([]string, error) {
	if err := s.checkShard(shardID); err != nil {
		return nil, err
	}

	s.locks[shardID].Lock()
	defer s.locks[shardID].Unlock()
	return s.shards[shardID].graph.keys(), nil
}

// Stats aggregates chunk and file counts across all shards. File hashing
// pins every file to exactly one shard, so shard file counts sum cleanly.
func (s *ShardedStore) Stats(ctx context.Context) (IndexStats, error) {
	var total IndexStats
	for id := range s.shards {
		st, err := s.ShardStats(ctx, id)
		if err != nil {
			return IndexStats{}, err
		}
		total.TotalChunks += st.ChunkCount
		total.TotalFiles += st.FileCount
	}
	return total, nil
}

// FilePaths lists every indexed file across all shards, sorted.
func (s *ShardedStore) FilePaths(ctx context.Context) ([]string, error) {
	var all []string
	for id := range s.shards {
		if err := s.checkShard(id); err != nil {
			return nil, err
		}
		s.locks[id].Lock()
		paths, err := s.shards[id].filePaths(ctx)
		s.locks[id].Unlock()
		if err != nil {
			return nil, semerrors.New(semerrors.ErrCodeShardIO,
				fmt.Sprintf("list files in shard %d", id), err)
		}
		all = append(all, paths...)
	}
	sort.Strings(all)
	return all, nil
}

// Clear destroys all shard contents. The manifest survives so the index
// keeps its parameters.
func (s *ShardedStore) Clear(ctx context.Context) error {
	for id := range s.shards {
		if err := s.checkShard(id); err != nil {
			return err
		}
		s.locks[id].Lock()
		err := s.shards[id].clear(ctx)
		s.locks[id].Unlock()
		if err != nil {
			return semerrors.New(semerrors.ErrCodeShardIO,
				fmt.Sprintf("clear shard %d", id), err)
		}
	}
	slog.Info("store_cleared", slog.String("dir", s.dir))
	return nil
}

// Save checkpoints every shard database and persists graph snapshots.
func (s *ShardedStore) Save() error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return semerrors.New(semerrors.ErrCodeStoreClosed, "store is closed", nil)
	}
	s.mu.RUnlock()

	for id, sh := range s.shards {
		s.locks[id].Lock()
		err := sh.save()
		s.locks[id].Unlock()
		if err != nil {
			return semerrors.New(semerrors.ErrCodeShardIO,
				fmt.Sprintf("save shard %d", id), err)
		}
	}
	return nil
}

// Close saves and releases every shard. Safe to call multiple times.
func (s *ShardedStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	var firstErr error
	for id, sh := range s.shards {
		s.locks[id].Lock()
		if err := sh.save(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := sh.close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.locks[id].Unlock()
	}
	return firstErr
}

// sortScored orders results descending by score, ties broken by file path
// then chunk index so merged lists are deterministic under any worker
// scheduling.
func sortScored(results []ScoredRecord) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].FilePath != results[j].FilePath {
			return results[i].FilePath < results[j].FilePath
		}
		return results[i].ChunkIndex < results[j].ChunkIndex
	})
}
