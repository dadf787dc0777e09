package mcpserver

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/semdex/internal/index"
	"github.com/Aman-CERP/semdex/internal/search"
)

// Search result limits enforced per tool call.
const (
	defaultSearchLimit = 10
	maxSearchLimit     = 50
)

// SearchInput defines the input schema for the search tool.
type SearchInput struct {
	Query         string  `json:"query" jsonschema:"the natural-language or keyword search query"`
	Limit         int     `json:"limit,omitempty" jsonschema:"maximum number of results, default 10, max 50"`
	MinScore      float64 `json:"min_score,omitempty" jsonschema:"drop results scoring below this threshold (0 to 1)"`
	LexicalWeight float64 `json:"lexical_weight,omitempty" jsonschema:"weight of the keyword score in hybrid ranking (0 disables keyword blending)"`
}

// SearchOutput defines the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResult `json:"results" jsonschema:"ranked search results"`
}

// SearchResult is a single hit with the hybrid score breakdown, so the
// assistant can tell a semantic match from a keyword match.
type SearchResult struct {
	FilePath     string   `json:"file_path" jsonschema:"file path relative to the project root"`
	ChunkIndex   int      `json:"chunk_index" jsonschema:"zero-based chunk position within the file"`
	Content      string   `json:"content" jsonschema:"matched content snippet"`
	Score        float64  `json:"score" jsonschema:"combined relevance score"`
	Semantic     float64  `json:"semantic,omitempty" jsonschema:"cosine similarity component"`
	Lexical      float64  `json:"lexical,omitempty" jsonschema:"keyword match component"`
	MatchedTerms []string `json:"matched_terms,omitempty" jsonschema:"query terms that matched in the keyword index"`
}

// IndexStatusInput defines the input schema for the index_status tool (no parameters).
type IndexStatusInput struct{}

// IndexStatusOutput defines the output schema for the index_status tool.
type IndexStatusOutput struct {
	State       string `json:"state" jsonschema:"engine state: ready, degraded, indexing, initializing, or closed"`
	Reason      string `json:"reason,omitempty" jsonschema:"why the engine is degraded, when it is"`
	Provider    string `json:"provider,omitempty" jsonschema:"active embedding provider"`
	Model       string `json:"model,omitempty" jsonschema:"active embedding model"`
	Dimensions  int    `json:"dimensions,omitempty" jsonschema:"embedding vector dimensions"`
	ShardCount  int    `json:"shard_count,omitempty"`
	TotalFiles  int    `json:"total_files"`
	TotalChunks int    `json:"total_chunks"`

	// Indexing is present while a bulk index run is in flight.
	Indexing *index.ProgressSnapshot `json:"indexing,omitempty"`
}

// StatsInput defines the input schema for the stats tool (no parameters).
type StatsInput struct{}

// StatsOutput defines the output schema for the stats tool.
type StatsOutput struct {
	TotalFiles  int `json:"total_files"`
	TotalChunks int `json:"total_chunks"`

	// Queries is present when local query telemetry is enabled.
	Queries *QueryStats `json:"queries,omitempty"`
}

// QueryStats summarizes local query telemetry since the collector started.
type QueryStats struct {
	TotalQueries      int64            `json:"total_queries"`
	ZeroResultCount   int64            `json:"zero_result_count"`
	ZeroResultPercent float64          `json:"zero_result_percent"`
	KindCounts        map[string]int64 `json:"kind_counts,omitempty"`
	TopTerms          []string         `json:"top_terms,omitempty"`
	Since             time.Time        `json:"since"`
}

func clampLimit(requested int) int {
	switch {
	case requested <= 0:
		return defaultSearchLimit
	case requested > maxSearchLimit:
		return maxSearchLimit
	default:
		return requested
	}
}

func (s *Server) searchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, SearchOutput{}, NewInvalidParamsError("query is required and must not be empty")
	}

	start := time.Now()
	requestID := newRequestID()
	limit := clampLimit(input.Limit)

	s.logger.Info("mcp_search_started",
		slog.String("request_id", requestID),
		slog.String("query", input.Query),
		slog.Int("limit", limit))

	opts := search.Options{
		TopK:          limit,
		MinScore:      input.MinScore,
		LexicalWeight: input.LexicalWeight,
	}

	results, err := s.engine.HybridSearch(ctx, input.Query, opts)
	if err != nil {
		s.logger.Error("mcp_search_failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()))
		return nil, SearchOutput{}, MapError(err)
	}

	s.logger.Info("mcp_search_completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", time.Since(start)),
		slog.Int("result_count", len(results)))

	out := SearchOutput{Results: make([]SearchResult, 0, len(results))}
	for _, r := range results {
		out.Results = append(out.Results, SearchResult{
			FilePath:     r.FilePath,
			ChunkIndex:   r.ChunkIndex,
			Content:      r.Content,
			Score:        r.Score,
			Semantic:     r.Semantic,
			Lexical:      r.Lexical,
			MatchedTerms: r.MatchedTerms,
		})
	}
	return nil, out, nil
}

func (s *Server) indexStatusHandler(ctx context.Context, _ *mcp.CallToolRequest, _ IndexStatusInput) (
	*mcp.CallToolResult,
	IndexStatusOutput,
	error,
) {
	st := s.engine.Status(ctx)

	out := IndexStatusOutput{
		State:       string(st.State),
		Reason:      st.Reason,
		Provider:    st.Provider,
		Model:       st.Model,
		Dimensions:  st.Dimensions,
		ShardCount:  st.ShardCount,
		TotalFiles:  st.TotalFiles,
		TotalChunks: st.TotalChunks,
		Indexing:    st.Indexing,
	}

	s.logger.Info("mcp_index_status",
		slog.String("state", out.State),
		slog.Int("total_files", out.TotalFiles),
		slog.Int("total_chunks", out.TotalChunks))

	return nil, out, nil
}

func (s *Server) statsHandler(ctx context.Context, _ *mcp.CallToolRequest, _ StatsInput) (
	*mcp.CallToolResult,
	StatsOutput,
	error,
) {
	stats, err := s.engine.Stats(ctx)
	if err != nil {
		return nil, StatsOutput{}, MapError(err)
	}

	out := StatsOutput{
		TotalFiles:  stats.TotalFiles,
		TotalChunks: stats.TotalChunks,
	}

	if snap := s.engine.Metrics(); snap != nil {
		qs := &QueryStats{
			TotalQueries:      snap.TotalQueries,
			ZeroResultCount:   snap.ZeroResultCount,
			ZeroResultPercent: snap.ZeroResultPercentage(),
			Since:             snap.Since,
		}
		if len(snap.KindCounts) > 0 {
			qs.KindCounts = make(map[string]int64, len(snap.KindCounts))
			for kind, count := range snap.KindCounts {
				qs.KindCounts[string(kind)] = count
			}
		}
		for _, term := range snap.TopTerms {
			qs.TopTerms = append(qs.TopTerms, term.Term)
		}
		out.Queries = qs
	}

	return nil, out, nil
}
