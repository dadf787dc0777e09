package chunk

import (
	"context"
	"strings"
)

// newlineSnapTail is how far back from a window's end boundary we look for a
// newline to snap to, so chunks avoid splitting a line mid-token when a
// nearby line break exists.
const newlineSnapTail = 200

// WindowChunker splits content into overlapping fixed-size character
// windows. It is the default chunker and the fallback for languages the
// code chunker does not understand. Pure function of its input: it never
// errors and never consults the filesystem.
type WindowChunker struct {
	opts Options
}

// NewWindowChunker creates a window chunker with the given options.
func NewWindowChunker(opts Options) *WindowChunker {
	return &WindowChunker{opts: opts.normalized()}
}

// Chunk splits content into overlapping windows.
func (w *WindowChunker) Chunk(_ context.Context, filePath, content string) ([]Chunk, error) {
	if strings.TrimSpace(content) == "" {
		return []Chunk{}, nil
	}

	maxSize := w.opts.MaxChunkSize
	step := maxSize - w.opts.Overlap

	var chunks []Chunk
	start := 0
	for start < len(content) {
		end := start + maxSize
		if end >= len(content) {
			end = len(content)
		} else {
			// Snap the boundary to the nearest newline within the tail so we
			// don't cut a line in half when we can avoid it.
			if idx := strings.LastIndexByte(content[maxInt(start, end-newlineSnapTail):end], '\n'); idx >= 0 {
				end = maxInt(start, end-newlineSnapTail) + idx + 1
			}
		}

		// A short tail after this window would produce a fragment chunk;
		// absorb it into the current one instead.
		if len(content)-end < MinChunkSize && len(content)-end > 0 && len(content)-start <= maxSize+MinChunkSize {
			end = len(content)
		}

		chunks = append(chunks, Chunk{
			FilePath:  filePath,
			Index:     len(chunks),
			Content:   content[start:end],
			StartLine: lineAt(content, start),
			EndLine:   lineAt(content, end-1),
		})

		if end == len(content) {
			break
		}

		next := end - w.opts.Overlap
		if next <= start {
			next = start + step
		}
		start = next
	}

	return chunks, nil
}

// lineAt returns the 1-indexed line number of byte offset pos.
func lineAt(content string, pos int) int {
	if pos < 0 {
		pos = 0
	}
	if pos > len(content) {
		pos = len(content)
	}
	return 1 + strings.Count(content[:pos], "\n")
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
