package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/semdex/internal/output"
	"github.com/Aman-CERP/semdex/internal/telemetry"
)

func newStatsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index counts and query telemetry",
		Long: `Show aggregate index counts and, when telemetry is enabled, local
query metrics: volume by kind, zero-result rate, and frequent terms.
All telemetry is local; nothing leaves the machine.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStats(cmd.Context(), cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output stats as JSON")

	return cmd
}

func runStats(ctx context.Context, cmd *cobra.Command, jsonOutput bool) error {
	eng, _, err := openEngine(ctx, projectRoot())
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	stats, err := eng.Stats(ctx)
	if err != nil {
		return err
	}
	snap := eng.Metrics()

	if jsonOutput {
		payload := struct {
			TotalFiles  int                 `json:"total_files"`
			TotalChunks int                 `json:"total_chunks"`
			Queries     *telemetry.Snapshot `json:"queries,omitempty"`
		}{stats.TotalFiles, stats.TotalChunks, snap}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	}

	out := output.New(cmd.OutOrStdout())
	out.Statusf("", "Files:  %d", stats.TotalFiles)
	out.Statusf("", "Chunks: %d", stats.TotalChunks)

	if snap == nil {
		out.Newline()
		out.Status("", "Query telemetry is disabled (telemetry.enabled: false)")
		return nil
	}

	out.Newline()
	out.Statusf("", "Queries since %s", snap.Since.Format("2006-01-02 15:04"))
	out.Statusf("", "  Total:        %d", snap.TotalQueries)
	out.Statusf("", "  Zero results: %d (%.1f%%)", snap.ZeroResultCount, snap.ZeroResultPercentage())

	if len(snap.KindCounts) > 0 {
		out.Newline()
		out.Status("", "By kind:")
		for kind, count := range snap.KindCounts {
			out.Statusf("", "  %-10s %d", kind, count)
		}
	}

	if len(snap.TopTerms) > 0 {
		out.Newline()
		out.Status("", "Frequent terms:")
		for i, term := range snap.TopTerms {
			if i >= 10 {
				break
			}
			out.Statusf("", "  %-20s %d", term.Term, term.Count)
		}
	}

	if len(snap.ZeroResultQueries) > 0 {
		out.Newline()
		out.Statusf("", "Recent zero-result queries (%d):", len(snap.ZeroResultQueries))
		for _, q := range snap.ZeroResultQueries {
			out.Status("", fmt.Sprintf("  %q", q))
		}
	}

	return nil
}
