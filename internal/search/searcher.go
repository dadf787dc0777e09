// Package search answers similarity queries: embed the query once, fan it
// out across shards through the worker pool, and merge per-shard top-K
// lists deterministically — optionally blended with a lexical signal.
package search

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/Aman-CERP/semdex/internal/embed"
	semerrors "github.com/Aman-CERP/semdex/internal/errors"
	"github.com/Aman-CERP/semdex/internal/pool"
	"github.com/Aman-CERP/semdex/internal/store"
)

const (
	// DefaultTopK is the result count when the caller does not specify one.
	DefaultTopK = 10

	// DefaultLexicalWeight is the lexical share of the hybrid blend.
	DefaultLexicalWeight = 0.35

	// hybridFetchFloor is the minimum widened per-shard fetch for hybrid
	// queries, so the lexical signal has candidates to promote.
	hybridFetchFloor = 20
)

// Options tunes one query.
type Options struct {
	// TopK bounds the merged result count. <= 0 uses DefaultTopK.
	TopK int

	// MinScore drops results below this cosine similarity, applied per
	// shard before merging.
	MinScore float64

	// LexicalWeight is the blend weight w in
	// score = (1-w)*semantic + w*lexicalNorm. <= 0 uses the searcher's
	// configured weight for HybridSearch.
	LexicalWeight float64
}

func (o Options) normalized(defaultWeight float64) Options {
	if o.TopK <= 0 {
		o.TopK = DefaultTopK
	}
	if o.LexicalWeight <= 0 {
		o.LexicalWeight = defaultWeight
	}
	return o
}

// Result is one ranked match.
type Result struct {
	FilePath     string
	ChunkIndex   int
	Content      string
	Score        float64
	Semantic     float64
	Lexical      float64
	MatchedTerms []string
}

// QueryRecorder receives per-query telemetry. Implementations must be
// cheap; they run on the query path.
type QueryRecorder interface {
	RecordQuery(kind string, query string, results int, took time.Duration)
}

// Searcher executes semantic and hybrid queries.
type Searcher struct {
	embedder embed.Embedder
	store    *store.ShardedStore
	lexical  store.LexicalIndex // nil disables hybrid blending
	pool     *pool.Pool
	weight   float64
	recorder QueryRecorder // nil disables telemetry
}

// New creates a Searcher. lexical may be nil; HybridSearch then degrades
// to semantic-only. weight <= 0 uses DefaultLexicalWeight.
func New(embedder embed.Embedder, st *store.ShardedStore, lexical store.LexicalIndex, p *pool.Pool, weight float64) *Searcher {
	if weight <= 0 {
		weight = DefaultLexicalWeight
	}
	return &Searcher{
		embedder: embedder,
		store:    st,
		lexical:  lexical,
		pool:     p,
		weight:   weight,
	}
}

// SetRecorder attaches a telemetry sink.
func (s *Searcher) SetRecorder(r QueryRecorder) {
	s.recorder = r
}

// Search runs a semantic-only query.
func (s *Searcher) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	start := time.Now()
	opts = opts.normalized(s.weight)

	if strings.TrimSpace(query) == "" {
		return nil, semerrors.New(semerrors.ErrCodeQueryEmpty, "search query must not be empty", nil)
	}

	scored, err := s.semanticCandidates(ctx, query, opts.TopK, opts.MinScore)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, opts.TopK)
	for _, rec := range scored {
		if len(results) == opts.TopK {
			break
		}
		results = append(results, Result{
			FilePath:   rec.FilePath,
			ChunkIndex: rec.ChunkIndex,
			Content:    rec.Content,
			Score:      rec.Score,
			Semantic:   rec.Score,
		})
	}

	took := time.Since(start)
	s.record("semantic", query, len(results), took)
	slog.Debug("search_complete",
		slog.String("kind", "semantic"),
		slog.Int("results", len(results)),
		slog.Duration("took", took))
	return results, nil
}

// HybridSearch blends the semantic ranking with a lexical signal. The
// per-shard fetch is widened so lexically strong candidates outside the
// narrow semantic top-K can surface. A lexical failure degrades to
// semantic-only with a warning, it never fails the query.
func (s *Searcher) HybridSearch(ctx context.Context, query string, opts Options) ([]Result, error) {
	start := time.Now()
	opts = opts.normalized(s.weight)

	if strings.TrimSpace(query) == "" {
		return nil, semerrors.New(semerrors.ErrCodeQueryEmpty, "search query must not be empty", nil)
	}

	fetch := opts.TopK * 2
	if fetch < hybridFetchFloor {
		fetch = hybridFetchFloor
	}

	// Lexical lookup runs concurrently with the shard fan-out; the error
	// is captured and inspected after both complete.
	var lexResults []store.LexicalResult
	var lexErr error
	lexDone := make(chan struct{})
	if s.lexical != nil {
		go func() {
			defer close(lexDone)
			lexResults, lexErr = s.lexical.Search(ctx, query, fetch)
		}()
	} else {
		close(lexDone)
	}

	scored, err := s.semanticCandidates(ctx, query, fetch, opts.MinScore)
	if err != nil {
		return nil, err
	}
	<-lexDone

	if lexErr != nil {
		slog.Warn("lexical_search_failed",
			slog.String("error", lexErr.Error()))
		lexResults = nil
	}

	blended := blend(scored, lexResults, opts.LexicalWeight)
	if len(blended) > opts.TopK {
		blended = blended[:opts.TopK]
	}

	took := time.Since(start)
	s.record("hybrid", query, len(blended), took)
	slog.Debug("search_complete",
		slog.String("kind", "hybrid"),
		slog.Int("results", len(blended)),
		slog.Duration("took", took))
	return blended, nil
}

// semanticCandidates embeds the query once and merges per-shard
// nearest-neighbor lists. minScore applies inside each shard, before the
// merge.
func (s *Searcher) semanticCandidates(ctx context.Context, query string, perShard int, minScore float64) ([]store.ScoredRecord, error) {
	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	results, err := pool.Execute(ctx, s.pool, s.store.ShardCount(),
		func(taskCtx context.Context, shardID int) ([]store.ScoredRecord, error) {
			return s.store.NearestNeighbors(taskCtx, shardID, vector, perShard, minScore)
		})
	if err != nil {
		return nil, err
	}

	var merged []store.ScoredRecord
	for _, r := range results {
		merged = append(merged, r.Value...)
	}
	sortScored(merged)
	return merged, nil
}

// blend combines semantic candidates with lexical scores:
// score = (1-w)*semantic + w*lexicalNorm, lexicalNorm being the per-query
// max-normalized lexical score. Candidates without a lexical match keep
// lexicalNorm = 0, so raising a result's lexical score can only raise its
// blended score — the blend is monotonic.
func blend(semantic []store.ScoredRecord, lexical []store.LexicalResult, weight float64) []Result {
	var maxLex float64
	for _, lr := range lexical {
		if lr.Score > maxLex {
			maxLex = lr.Score
		}
	}

	type lexEntry struct {
		norm  float64
		terms []string
	}
	lexByKey := make(map[string]lexEntry, len(lexical))
	if maxLex > 0 {
		for _, lr := range lexical {
			lexByKey[lr.DocID] = lexEntry{norm: lr.Score / maxLex, terms: lr.MatchedTerms}
		}
	}

	results := make([]Result, 0, len(semantic))
	for _, rec := range semantic {
		lex := lexByKey[rec.Key()]
		results = append(results, Result{
			FilePath:     rec.FilePath,
			ChunkIndex:   rec.ChunkIndex,
			Content:      rec.Content,
			Score:        (1-weight)*rec.Score + weight*lex.norm,
			Semantic:     rec.Score,
			Lexical:      lex.norm,
			MatchedTerms: lex.terms,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].FilePath != results[j].FilePath {
			return results[i].FilePath < results[j].FilePath
		}
		return results[i].ChunkIndex < results[j].ChunkIndex
	})
	return results
}

// sortScored orders candidates descending by score, ties broken by file
// path then chunk index, keeping merges deterministic under any worker
// scheduling.
func sortScored(records []store.ScoredRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].Score != records[j].Score {
			return records[i].Score > records[j].Score
		}
		if records[i].FilePath != records[j].FilePath {
			return records[i].FilePath < records[j].FilePath
		}
		return records[i].ChunkIndex < records[j].ChunkIndex
	})
}

func (s *Searcher) record(kind, query string, results int, took time.Duration) {
	if s.recorder != nil {
		s.recorder.RecordQuery(kind, query, results, took)
	}
}
