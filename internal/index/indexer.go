// Package index turns file content into persisted, searchable records:
// chunk, embed, replace the file's record set in its owning shard, and
// mirror the chunks into the lexical index.
package index

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Aman-CERP/semdex/internal/chunk"
	"github.com/Aman-CERP/semdex/internal/embed"
	semerrors "github.com/Aman-CERP/semdex/internal/errors"
	"github.com/Aman-CERP/semdex/internal/pool"
	"github.com/Aman-CERP/semdex/internal/store"
)

// pathStripes sizes the striped per-path mutex set. Concurrent IndexFile
// calls on different files proceed in parallel; calls on the same file
// serialize.
const pathStripes = 64

// File is one unit of bulk-indexing input.
type File struct {
	Path    string
	Content string
}

// FileError records a per-file failure inside a bulk operation.
type FileError struct {
	Path string
	Err  error
}

func (fe FileError) Error() string {
	return fmt.Sprintf("%s: %v", fe.Path, fe.Err)
}

// BulkResult summarizes one IndexFiles call. Failed files never abort
// their siblings; they are collected here.
type BulkResult struct {
	TotalChunks    int
	FilesProcessed int
	Failed         []FileError
	Duration       time.Duration
}

// ProgressFunc receives (current, total, currentFile) as bulk indexing
// advances. current counts completed files, including failed ones.
type ProgressFunc func(current, total int, currentFile string)

// Indexer owns the file-to-records pipeline.
type Indexer struct {
	chunker  chunk.Chunker
	embedder embed.Embedder
	store    *store.ShardedStore
	lexical  store.LexicalIndex // nil disables the lexical mirror
	pool     *pool.Pool

	pathLocks [pathStripes]sync.Mutex
}

// New creates an Indexer. lexical may be nil when hybrid search is
// disabled.
func New(chunker chunk.Chunker, embedder embed.Embedder, st *store.ShardedStore, lexical store.LexicalIndex, p *pool.Pool) *Indexer {
	return &Indexer{
		chunker:  chunker,
		embedder: embedder,
		store:    st,
		lexical:  lexical,
		pool:     p,
	}
}

func (ix *Indexer) pathLock(filePath string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(filePath))
	return &ix.pathLocks[h.Sum32()%pathStripes]
}

// IndexFile chunks, embeds, and stores one file, replacing its previous
// record set. Returns the number of chunks written. Concurrent calls on
// different files are safe; calls on the same file serialize.
func (ix *Indexer) IndexFile(ctx context.Context, filePath, content string) (int, error) {
	if filePath == "" {
		return 0, semerrors.New(semerrors.ErrCodeInvalidPath, "file path must not be empty", nil)
	}

	lock := ix.pathLock(filePath)
	lock.Lock()
	defer lock.Unlock()

	return ix.indexLocked(ctx, filePath, content)
}

// indexLocked runs the pipeline; the caller holds the path lock.
func (ix *Indexer) indexLocked(ctx context.Context, filePath, content string) (int, error) {
	start := time.Now()

	chunks, err := ix.chunker.Chunk(ctx, filePath, content)
	if err != nil {
		return 0, err
	}

	shardID := ix.store.ShardFor(filePath)

	// A file that chunks to nothing is removed from the index entirely.
	if len(chunks) == 0 {
		if err := ix.removeFile(ctx, shardID, filePath); err != nil {
			return 0, err
		}
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := ix.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, err
	}

	// Delete-then-upsert keeps the one-record-per-(path,index) invariant
	// even when the new chunk set is smaller than the old one.
	removed, err := ix.store.DeleteByFile(ctx, shardID, filePath)
	if err != nil {
		return 0, err
	}

	records := make([]store.Record, len(chunks))
	docs := make([]store.Document, len(chunks))
	for i, c := range chunks {
		records[i] = store.Record{
			FilePath:   c.FilePath,
			ChunkIndex: c.Index,
			Content:    c.Content,
			Embedding:  vectors[i],
			ShardID:    shardID,
		}
		docs[i] = store.Document{ID: records[i].Key(), Content: c.Content}
	}

	if err := ix.store.Upsert(ctx, shardID, records); err != nil {
		return 0, err
	}

	if ix.lexical != nil {
		if len(removed) > 0 {
			if err := ix.lexical.Delete(ctx, removed); err != nil {
				return 0, semerrors.New(semerrors.ErrCodeShardIO, "purge lexical index", err)
			}
		}
		if err := ix.lexical.Index(ctx, docs); err != nil {
			return 0, semerrors.New(semerrors.ErrCodeShardIO, "update lexical index", err)
		}
	}

	slog.Debug("file_indexed",
		slog.String("path", filePath),
		slog.Int("shard", shardID),
		slog.Int("chunks", len(chunks)),
		slog.Duration("took", time.Since(start)))
	return len(chunks), nil
}

// IndexFiles bulk-indexes files grouped by owning shard, one pool task per
// shard so a shard's records are only ever written by one worker.
// Per-file failures land in BulkResult.Failed.
func (ix *Indexer) IndexFiles(ctx context.Context, files []File, onProgress ProgressFunc) (*BulkResult, error) {
	if len(files) == 0 {
		return nil, semerrors.New(semerrors.ErrCodeEmptyFileList, "no files to index", nil)
	}
	for _, f := range files {
		if f.Path == "" {
			return nil, semerrors.New(semerrors.ErrCodeInvalidPath, "file path must not be empty", nil)
		}
	}

	start := time.Now()
	total := len(files)
	var completed atomic.Int64

	byShard := make(map[int][]File)
	for _, f := range files {
		shardID := ix.store.ShardFor(f.Path)
		byShard[shardID] = append(byShard[shardID], f)
	}

	type shardOutcome struct {
		chunks    int
		processed int
		failed    []FileError
	}

	results, err := pool.Execute(ctx, ix.pool, ix.store.ShardCount(),
		func(taskCtx context.Context, shardID int) (shardOutcome, error) {
			var out shardOutcome
			for _, f := range byShard[shardID] {
				if taskCtx.Err() != nil {
					return out, taskCtx.Err()
				}

				lock := ix.pathLock(f.Path)
				lock.Lock()
				n, err := ix.indexLocked(taskCtx, f.Path, f.Content)
				lock.Unlock()

				current := int(completed.Add(1))
				if onProgress != nil {
					onProgress(current, total, f.Path)
				}

				if err != nil {
					out.failed = append(out.failed, FileError{Path: f.Path, Err: err})
					slog.Warn("bulk_index_file_failed",
						slog.String("path", f.Path),
						slog.String("error", err.Error()))
					continue
				}
				out.chunks += n
				out.processed++
			}
			return out, nil
		})
	if err != nil {
		return nil, err
	}

	result := &BulkResult{Duration: time.Since(start)}
	for _, r := range results {
		result.TotalChunks += r.Value.chunks
		result.FilesProcessed += r.Value.processed
		result.Failed = append(result.Failed, r.Value.failed...)
	}

	slog.Info("bulk_index_complete",
		slog.Int("files", result.FilesProcessed),
		slog.Int("chunks", result.TotalChunks),
		slog.Int("failed", len(result.Failed)),
		slog.Duration("took", result.Duration))
	return result, nil
}

// DeleteFile removes all trace of a file from the owning shard and the
// lexical index. Deleting an unindexed file is a no-op.
func (ix *Indexer) DeleteFile(ctx context.Context, filePath string) error {
	if filePath == "" {
		return semerrors.New(semerrors.ErrCodeInvalidPath, "file path must not be empty", nil)
	}

	lock := ix.pathLock(filePath)
	lock.Lock()
	defer lock.Unlock()

	return ix.removeFile(ctx, ix.store.ShardFor(filePath), filePath)
}

func (ix *Indexer) removeFile(ctx context.Context, shardID int, filePath string) error {
	removed, err := ix.store.DeleteByFile(ctx, shardID, filePath)
	if err != nil {
		return err
	}
	if ix.lexical != nil && len(removed) > 0 {
		if err := ix.lexical.Delete(ctx, removed); err != nil {
			return semerrors.New(semerrors.ErrCodeShardIO, "purge lexical index", err)
		}
	}
	if len(removed) > 0 {
		slog.Debug("file_deleted",
			slog.String("path", filePath),
			slog.Int("chunks", len(removed)))
	}
	return nil
}

// Clear destroys all indexed data across shards and the lexical index.
// Callers gate this behind explicit intent (the CLI requires --force).
func (ix *Indexer) Clear(ctx context.Context) error {
	if err := ix.store.Clear(ctx); err != nil {
		return err
	}
	if ix.lexical != nil {
		if err := ix.lexical.Clear(ctx); err != nil {
			return semerrors.New(semerrors.ErrCodeShardIO, "clear lexical index", err)
		}
	}
	return nil
}

// Stats aggregates chunk and file counts across shards.
func (ix *Indexer) Stats(ctx context.Context) (store.IndexStats, error) {
	return ix.store.Stats(ctx)
}
