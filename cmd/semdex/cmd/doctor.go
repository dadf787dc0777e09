package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/semdex/internal/config"
	"github.com/Aman-CERP/semdex/internal/output"
	"github.com/Aman-CERP/semdex/internal/preflight"
	"github.com/Aman-CERP/semdex/internal/profiling"
	"github.com/Aman-CERP/semdex/internal/store"
	"github.com/Aman-CERP/semdex/internal/validation"
)

// doctorOptions holds CLI flags for doctor.
type doctorOptions struct {
	verbose    bool
	validate   bool
	goroutines string
}

func newDoctorCmd() *cobra.Command {
	var opts doctorOptions

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose environment and index problems",
		Long: `Run the full battery of system checks: disk space, memory, file
descriptors, storage writability, embedding backend reachability, and
index/config compatibility.

With --validate, additionally cross-check the index itself: record
databases against vector graphs and the lexical index. This opens the
index directly, so stop any running 'semdex watch' or 'semdex serve'
first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Show check details")
	cmd.Flags().BoolVar(&opts.validate, "validate", false, "Cross-check index consistency")
	cmd.Flags().StringVar(&opts.goroutines, "goroutines", "", "Write a goroutine dump to this file")

	return cmd
}

func runDoctor(ctx context.Context, cmd *cobra.Command, opts doctorOptions) error {
	out := output.New(cmd.OutOrStdout())
	root := projectRoot()

	cfg, err := config.Load(root)
	if err != nil {
		return err
	}
	storageDir := cfg.StorageDir(root)

	results := preflight.New(cfg).RunAll(ctx, root, storageDir)
	preflight.Render(cmd.OutOrStdout(), results, opts.verbose)

	// A fresh doctor run invalidates the cached marker so the next index
	// rechecks from the real results.
	if preflight.HasCriticalFailures(results) {
		_ = preflight.ClearMarker(storageDir)
	} else if err := preflight.MarkPassed(storageDir); err == nil && opts.verbose {
		out.Status("", "system check cached for routine commands")
	}

	if opts.goroutines != "" {
		if err := profiling.WriteGoroutines(opts.goroutines); err != nil {
			return err
		}
		out.Statusf("", "goroutine dump written to %s", opts.goroutines)
	}

	if opts.validate {
		out.Newline()
		if err := runValidate(ctx, cmd, cfg, storageDir); err != nil {
			return err
		}
	}

	if preflight.HasCriticalFailures(results) {
		return fmt.Errorf("system check failed")
	}
	return nil
}

// runValidate opens the index read-side directly and cross-checks it.
func runValidate(ctx context.Context, cmd *cobra.Command, cfg *config.Config, storageDir string) error {
	manifest, err := store.ReadManifest(storageDir)
	if err != nil {
		return err
	}
	if manifest == nil {
		output.New(cmd.OutOrStdout()).Status("", "no index to validate; run 'semdex index' first")
		return nil
	}

	st, err := store.Open(storageDir, store.Options{
		ShardCount:    manifest.ShardCount,
		Dimensions:    manifest.Dimensions,
		Model:         manifest.Model,
		SQLiteCacheMB: cfg.Store.SQLiteCacheMB,
	})
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	defer func() { _ = st.Close() }()

	var lex store.LexicalIndex
	base := store.LexicalIndexBasePath(storageDir)
	if backend := store.DetectLexicalBackend(base); backend != "" {
		lex, err = store.NewLexicalIndex(base, store.DefaultLexicalConfig(), string(backend))
		if err != nil {
			return fmt.Errorf("open lexical index: %w", err)
		}
		defer func() { _ = lex.Close() }()
	}

	report, err := validation.Run(ctx, st, lex)
	if err != nil {
		return err
	}
	validation.Render(cmd.OutOrStdout(), report)

	if len(report.Issues) > 0 {
		return fmt.Errorf("index validation found %d issue(s)", len(report.Issues))
	}
	return nil
}
