package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/semdex/internal/config"
	"github.com/Aman-CERP/semdex/internal/output"
	"github.com/Aman-CERP/semdex/internal/scanner"
	"github.com/Aman-CERP/semdex/internal/watcher"
	"github.com/Aman-CERP/semdex/pkg/engine"
)

func newWatchCmd() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the project and keep the index fresh",
		Long: `Watch the project tree and index file changes as they happen.
Bursts of events are debounced and coalesced, so a branch switch
touching hundreds of files results in one batch of updates.

Runs until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd.Context(), cmd, quiet)
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Log only errors, not individual file updates")

	return cmd
}

func runWatch(parent context.Context, cmd *cobra.Command, quiet bool) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := output.New(cmd.OutOrStdout())
	root := projectRoot()

	eng, cfg, err := openEngine(ctx, root)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	sc, err := scanner.New(scanner.FromConfig(cfg, root))
	if err != nil {
		return err
	}

	w, err := watcher.New(root, watcher.Options{Debounce: cfg.WatchDebounce()}, sc)
	if err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()

	// Start blocks for the life of the watch; its exit error ends the
	// command.
	startErr := make(chan error, 1)
	go func() { startErr <- w.Start(ctx) }()

	out.Statusf("", "watching %s (debounce %s, ctrl-c to stop)", root, cfg.WatchDebounce())

	for {
		select {
		case <-ctx.Done():
			out.Newline()
			out.Status("", "stopping")
			return nil

		case err := <-startErr:
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil

		case err, ok := <-w.Errors():
			if !ok {
				return nil
			}
			out.Errorf("watch: %v", err)

		case batch, ok := <-w.Events():
			if !ok {
				return nil
			}
			handleBatch(ctx, eng, w, root, batch, out, quiet)
		}
	}
}

// handleBatch applies one debounced batch of file events to the index.
// A change to the project config or a .gitignore rebuilds the watch
// filter so future events respect the new rules.
func handleBatch(ctx context.Context, eng *engine.Engine, w *watcher.Watcher, root string, batch []watcher.Event, out *output.Writer, quiet bool) {
	filterStale := false

	for _, ev := range batch {
		if ev.IsDir {
			continue
		}
		if isFilterFile(ev.Path) {
			filterStale = true
			continue
		}

		change := engine.FileChange{Path: ev.Path}
		switch ev.Op {
		case watcher.OpCreate:
			change.Type = engine.ChangeAdded
		case watcher.OpModify:
			change.Type = engine.ChangeModified
		case watcher.OpDelete:
			change.Type = engine.ChangeDeleted
		}

		// The index is keyed by root-relative paths; read the content
		// here so the engine never has to resolve them.
		if change.Type != engine.ChangeDeleted {
			data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(ev.Path)))
			if os.IsNotExist(err) {
				change.Type = engine.ChangeDeleted
			} else if err != nil {
				out.Errorf("%s: %v", ev.Path, err)
				continue
			} else {
				content := string(data)
				change.Content = &content
			}
		}

		if err := eng.OnFileChange(ctx, change); err != nil {
			out.Errorf("%s: %v", ev.Path, err)
			continue
		}
		if !quiet {
			out.Statusf("", "%-7s %s", ev.Op, ev.Path)
		}
	}

	if filterStale {
		refreshFilter(w, root, out)
	}
}

// isFilterFile reports paths whose content changes the set of watched
// files.
func isFilterFile(relPath string) bool {
	base := filepath.Base(relPath)
	return base == ".gitignore" ||
		base == config.ProjectConfigName ||
		base == config.ProjectConfigAltName
}

// refreshFilter rebuilds the scanner from the current config and
// gitignore state and swaps it into the running watcher.
func refreshFilter(w *watcher.Watcher, root string, out *output.Writer) {
	cfg, err := config.Load(root)
	if err != nil {
		out.Warningf("config reload failed, keeping old filter: %v", err)
		return
	}
	sc, err := scanner.New(scanner.FromConfig(cfg, root))
	if err != nil {
		out.Warningf("filter rebuild failed, keeping old filter: %v", err)
		return
	}
	w.SetFilter(sc)
	slog.Info("watch_filter_refreshed", slog.String("root", root))
}
