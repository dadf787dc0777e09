// Package chunk splits file content into overlapping, size-bounded text
// units. Chunking is deterministic: the same input always produces the
// same boundaries, contents, and count, which is what lets re-indexing
// fully replace a file's prior chunk set.
package chunk

import (
	"context"
	"fmt"
)

// Chunk size defaults. Sizes are measured in characters; token counts are
// approximated as chars/4 elsewhere in the pipeline.
const (
	DefaultMaxChunkSize = 2000
	DefaultOverlap      = 200

	// MinChunkSize is the smallest window the chunker will produce for
	// non-empty input. Tails shorter than this merge into the previous chunk.
	MinChunkSize = 100
)

// Chunk is a bounded slice of a file's text content, the unit of embedding
// and retrieval. Identity is (FilePath, Index); chunks are immutable once
// produced.
type Chunk struct {
	FilePath  string
	Index     int
	Content   string
	StartLine int // 1-indexed
	EndLine   int // Inclusive
}

// Key returns the record key used across the vector and lexical stores.
func (c Chunk) Key() string {
	return fmt.Sprintf("%s#%d", c.FilePath, c.Index)
}

// Chunker splits file content into chunks.
type Chunker interface {
	Chunk(ctx context.Context, filePath, content string) ([]Chunk, error)
}

// Options configures chunk boundaries.
type Options struct {
	// MaxChunkSize bounds a chunk's content length in characters.
	MaxChunkSize int

	// Overlap is how many trailing characters of one chunk reappear at the
	// head of the next, so a concept spanning a boundary stays retrievable.
	Overlap int
}

// DefaultOptions returns the default chunking options.
func DefaultOptions() Options {
	return Options{
		MaxChunkSize: DefaultMaxChunkSize,
		Overlap:      DefaultOverlap,
	}
}

// normalized clamps options to sane values so a zero Options is usable.
func (o Options) normalized() Options {
	if o.MaxChunkSize <= 0 {
		o.MaxChunkSize = DefaultMaxChunkSize
	}
	if o.Overlap < 0 {
		o.Overlap = 0
	}
	if o.Overlap >= o.MaxChunkSize {
		o.Overlap = o.MaxChunkSize / 4
	}
	return o
}
