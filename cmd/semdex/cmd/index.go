package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/semdex/internal/config"
	"github.com/Aman-CERP/semdex/internal/index"
	"github.com/Aman-CERP/semdex/internal/preflight"
	"github.com/Aman-CERP/semdex/internal/scanner"
	"github.com/Aman-CERP/semdex/internal/ui"
	"github.com/Aman-CERP/semdex/pkg/engine"
)

// indexOptions holds CLI flags for index.
type indexOptions struct {
	force     bool
	skipCheck bool
	plain     bool
	noColor   bool
}

func newIndexCmd() *cobra.Command {
	var opts indexOptions

	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Build or update the index",
		Long: `Scan the project and index every included file.

Already-indexed files are replaced atomically, so re-running index
after edits is safe. Use --force to drop the existing index first,
which is required after changing the embedding model or shard count.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := projectRoot()
			if len(args) == 1 {
				root = args[0]
			}
			return runIndex(cmd.Context(), cmd, root, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.force, "force", "f", false, "Drop the existing index and rebuild from scratch")
	cmd.Flags().BoolVar(&opts.skipCheck, "skip-check", false, "Skip the cached system check")
	cmd.Flags().BoolVar(&opts.plain, "plain", false, "Plain-text progress output (no TUI)")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, root string, opts indexOptions) error {
	cfg, err := config.Load(root)
	if err != nil {
		return err
	}
	storageDir := cfg.StorageDir(root)

	if !opts.skipCheck && preflight.NeedsCheck(storageDir) {
		results := preflight.New(cfg).RunAll(ctx, root, storageDir)
		if preflight.HasCriticalFailures(results) {
			preflight.Render(cmd.ErrOrStderr(), results, false)
			return fmt.Errorf("system check failed; run 'semdex doctor' for details")
		}
		if err := preflight.MarkPassed(storageDir); err != nil {
			slog.Debug("preflight_marker_write_failed", slog.String("error", err.Error()))
		}
	}

	eng := engine.New(cfg, storageDir)
	if err := eng.Initialize(ctx); err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	if opts.force {
		if err := eng.Clear(ctx); err != nil {
			return fmt.Errorf("clear index: %w", err)
		}
	}

	renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
		ui.WithForcePlain(opts.plain),
		ui.WithNoColor(opts.noColor || ui.DetectNoColor()),
		ui.WithProjectDir(root),
	))
	if err := renderer.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = renderer.Stop() }()

	files, err := scanProject(ctx, cfg, root, renderer)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		renderer.Complete(ui.CompletionStats{})
		return nil
	}

	// Drive the renderer from engine events while the bulk run is in
	// flight. The subscription must exist before IndexFiles starts.
	events := eng.Events()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		forwardIndexEvents(events, renderer)
	}()

	result, err := eng.IndexFiles(ctx, files)

	// Closing the engine later closes the event channel; the forwarder
	// also exits on indexing-complete so a second run does not leak it.
	wg.Wait()

	if err != nil {
		return err
	}

	for _, fe := range result.Failed {
		renderer.AddError(ui.ErrorEvent{File: fe.Path, Err: fe.Err, IsWarn: true})
	}

	st := eng.Status(ctx)
	renderer.Complete(ui.CompletionStats{
		Files:    result.FilesProcessed,
		Chunks:   result.TotalChunks,
		Duration: result.Duration,
		Warnings: len(result.Failed),
		Embedder: ui.EmbedderInfo{
			Provider:   st.Provider,
			Model:      st.Model,
			Dimensions: st.Dimensions,
		},
	})
	return nil
}

// scanProject walks the tree, reads file contents, and reports scan
// progress on the renderer.
func scanProject(ctx context.Context, cfg *config.Config, root string, renderer ui.Renderer) ([]index.File, error) {
	sc, err := scanner.New(scanner.FromConfig(cfg, root))
	if err != nil {
		return nil, err
	}

	renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageScanning, Message: "scanning " + root})

	var files []index.File
	for res := range sc.Scan(ctx) {
		if res.Error != nil {
			return nil, res.Error
		}
		content, err := os.ReadFile(res.File.AbsPath)
		if err != nil {
			// Vanished between stat and read; skip like any other
			// unreadable file.
			renderer.AddError(ui.ErrorEvent{File: res.File.Path, Err: err, IsWarn: true})
			continue
		}
		files = append(files, index.File{Path: res.File.Path, Content: string(content)})
		renderer.UpdateProgress(ui.ProgressEvent{
			Stage:       ui.StageScanning,
			Current:     len(files),
			CurrentFile: res.File.Path,
		})
	}
	return files, nil
}

// forwardIndexEvents translates engine events into renderer updates
// until the bulk run completes or the channel closes.
func forwardIndexEvents(events <-chan engine.Event, renderer ui.Renderer) {
	for ev := range events {
		switch ev.Type {
		case engine.EventIndexingProgress:
			if ev.Progress != nil {
				renderer.UpdateProgress(ui.ProgressEvent{
					Stage:       ui.StageEmbedding,
					Current:     ev.Progress.FilesCompleted,
					Total:       ev.Progress.FilesTotal,
					CurrentFile: ev.Progress.CurrentFile,
				})
			}
		case engine.EventError:
			// During a bulk run an error event is terminal; per-file
			// failures come back in the result instead.
			renderer.AddError(ui.ErrorEvent{File: ev.Path, Err: fmt.Errorf("%s", ev.Message)})
			return
		case engine.EventIndexingComplete:
			return
		}
	}
}
