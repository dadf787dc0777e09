package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/semdex/internal/output"
	"github.com/Aman-CERP/semdex/internal/search"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit         int
	minScore      float64
	lexicalWeight float64
	semanticOnly  bool
	format        string // "text", "json"
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed codebase",
		Long: `Search the index with a hybrid of semantic similarity and keyword
matching. Multiple arguments are joined into one query.

Examples:
  semdex search "authentication middleware"
  semdex search "retry with backoff" -n 5
  semdex search "connection pool" --format json
  semdex search "error handling" --semantic-only`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd.Context(), cmd, query, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (default from config)")
	cmd.Flags().Float64Var(&opts.minScore, "min-score", 0, "Drop results scoring below this threshold")
	cmd.Flags().Float64Var(&opts.lexicalWeight, "lexical-weight", 0, "Override the keyword weight for this query")
	cmd.Flags().BoolVar(&opts.semanticOnly, "semantic-only", false, "Skip keyword blending, rank by similarity alone")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	eng, _, err := openEngine(ctx, projectRoot())
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	searchOpts := search.Options{
		TopK:          opts.limit,
		MinScore:      opts.minScore,
		LexicalWeight: opts.lexicalWeight,
	}

	var results []search.Result
	if opts.semanticOnly {
		results, err = eng.Search(ctx, query, searchOpts)
	} else {
		results, err = eng.HybridSearch(ctx, query, searchOpts)
	}
	if err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())
	if opts.format == "json" {
		return out.ResultsJSON(results)
	}
	out.Results(query, results)
	return nil
}
