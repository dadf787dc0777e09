// Package store provides the sharded persistence layer: per-shard SQLite
// record databases with HNSW vector graphs, plus the lexical keyword index
// used for hybrid blending.
package store

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
)

// Record is one embedded chunk as persisted in its owning shard.
// At most one live record exists per (FilePath, ChunkIndex) per shard.
type Record struct {
	FilePath   string
	ChunkIndex int
	Content    string
	Embedding  []float32
	ShardID    int
}

// Key returns the record identity "path#index", shared with the lexical
// index so deletions map 1:1 across both stores.
func (r Record) Key() string {
	return RecordKey(r.FilePath, r.ChunkIndex)
}

// RecordKey builds the canonical record key for a chunk.
func RecordKey(filePath string, chunkIndex int) string {
	return filePath + "#" + strconv.Itoa(chunkIndex)
}

// ParseRecordKey splits a record key back into path and chunk index.
// The separator is the last '#' since file paths may contain the character.
func ParseRecordKey(key string) (filePath string, chunkIndex int, err error) {
	sep := strings.LastIndex(key, "#")
	if sep < 0 {
		return "", 0, fmt.Errorf("malformed record key %q", key)
	}
	idx, err := strconv.Atoi(key[sep+1:])
	if err != nil {
		return "", 0, fmt.Errorf("malformed record key %q: %w", key, err)
	}
	return key[:sep], idx, nil
}

// ScoredRecord is a record with its similarity score for one query.
type ScoredRecord struct {
	Record
	Score float64
}

// IndexStats summarizes index contents. Always derived by querying shards,
// never stored redundantly.
type IndexStats struct {
	TotalChunks int
	TotalFiles  int
}

// ShardStats summarizes one shard's contents.
type ShardStats struct {
	ChunkCount int
	FileCount  int
}

// ShardFor maps a file path to its owning shard: fnv32(path) % shardCount.
// Every chunk of a file lands in the same shard.
func ShardFor(filePath string, shardCount int) int {
	if shardCount <= 0 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(filePath))
	return int(h.Sum32() % uint32(shardCount))
}

// HNSWConfig tunes the per-shard vector graph.
type HNSWConfig struct {
	// Dimensions is the vector width, fixed for the life of the index.
	Dimensions int

	// M is the max connections per layer.
	M int

	// EfSearch is the query-time search width.
	EfSearch int
}

// DefaultHNSWConfig returns graph defaults for the given vector width.
func DefaultHNSWConfig(dimensions int) HNSWConfig {
	return HNSWConfig{
		Dimensions: dimensions,
		M:          16,
		EfSearch:   64,
	}
}
