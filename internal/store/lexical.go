package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Document is one record's text as fed to the lexical index. ID is the
// record key ("path#index"), so vector-store deletions map 1:1.
type Document struct {
	ID      string
	Content string
}

// LexicalResult is a single keyword match.
type LexicalResult struct {
	DocID        string
	Score        float64
	MatchedTerms []string
}

// LexicalStats summarizes the lexical index.
type LexicalStats struct {
	DocumentCount int
}

// LexicalIndex is the engine-level keyword index behind the hybrid blend.
type LexicalIndex interface {
	Index(ctx context.Context, docs []Document) error
	Search(ctx context.Context, query string, limit int) ([]LexicalResult, error)
	Delete(ctx context.Context, docIDs []string) error
	Clear(ctx context.Context) error
	AllIDs() ([]string, error)
	Stats() LexicalStats
	Save() error
	Close() error
}

// LexicalConfig configures tokenization for the lexical index.
type LexicalConfig struct {
	// StopWords are filtered out during tokenization.
	StopWords []string

	// MinTokenLength is the minimum token length to index.
	MinTokenLength int
}

// DefaultLexicalConfig returns the code-search defaults.
func DefaultLexicalConfig() LexicalConfig {
	return LexicalConfig{
		StopWords:      DefaultCodeStopWords,
		MinTokenLength: 2,
	}
}

// DefaultCodeStopWords are programming keywords and filler identifiers too
// common to carry signal.
var DefaultCodeStopWords = []string{
	"var", "let", "const", "func", "function", "def", "class",
	"return", "if", "else", "for", "while",
	"data", "result", "value", "item", "key", "err", "ctx", "tmp",
}

// LexicalBackend names a lexical index implementation.
type LexicalBackend string

const (
	// LexicalBackendSQLite uses SQLite FTS5 (default). WAL mode allows
	// concurrent multi-process access.
	LexicalBackendSQLite LexicalBackend = "sqlite"

	// LexicalBackendBleve uses Bleve v2. BoltDB holds an exclusive file
	// lock, so only one process can have the index open.
	LexicalBackendBleve LexicalBackend = "bleve"
)

// NewLexicalIndex creates a lexical index with the given backend. basePath
// is extension-less; the backend adds .db (SQLite) or .bleve (Bleve). An
// empty basePath creates an in-memory index for testing.
func NewLexicalIndex(basePath string, cfg LexicalConfig, backend string) (LexicalIndex, error) {
	switch LexicalBackend(backend) {
	case LexicalBackendSQLite, "":
		path := ""
		if basePath != "" {
			path = basePath + ".db"
		}
		return NewSQLiteLexicalIndex(path, cfg)

	case LexicalBackendBleve:
		path := ""
		if basePath != "" {
			path = basePath + ".bleve"
		}
		return NewBleveLexicalIndex(path, cfg)

	default:
		return nil, fmt.Errorf("unknown lexical backend %q (valid: sqlite, bleve)", backend)
	}
}

// DetectLexicalBackend inspects the file layout of an existing index.
// Returns empty when no index exists yet.
func DetectLexicalBackend(basePath string) LexicalBackend {
	if info, err := os.Stat(basePath + ".db"); err == nil && !info.IsDir() {
		return LexicalBackendSQLite
	}
	if info, err := os.Stat(basePath + ".bleve"); err == nil && info.IsDir() {
		return LexicalBackendBleve
	}
	return ""
}

// LexicalIndexBasePath returns the backend-agnostic base path under
// dataDir; the backend appends its own extension.
func LexicalIndexBasePath(dataDir string) string {
	return filepath.Join(dataDir, "lexical")
}

// LexicalIndexPath returns the on-disk path for a backend under dataDir.
func LexicalIndexPath(dataDir, backend string) string {
	base := LexicalIndexBasePath(dataDir)
	if LexicalBackend(backend) == LexicalBackendBleve {
		return base + ".bleve"
	}
	return base + ".db"
}
