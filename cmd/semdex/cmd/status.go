package cmd

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/semdex/internal/ui"
	"github.com/Aman-CERP/semdex/pkg/engine"
)

func newStatusCmd() *cobra.Command {
	var jsonOutput bool
	var noColor bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index health and storage usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), cmd, jsonOutput, noColor)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output status as JSON")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	return cmd
}

func runStatus(ctx context.Context, cmd *cobra.Command, jsonOutput, noColor bool) error {
	root := projectRoot()
	eng, _, err := openEngine(ctx, root)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	st := eng.Status(ctx)
	sizes := measureStorage(eng.StorageDir())

	info := ui.StatusInfo{
		ProjectName:      filepath.Base(root),
		TotalFiles:       st.TotalFiles,
		TotalChunks:      st.TotalChunks,
		Shards:           st.ShardCount,
		LastIndexed:      sizes.lastIndexed,
		RecordsSize:      sizes.records,
		VectorSize:       sizes.vectors,
		LexicalSize:      sizes.lexical,
		TotalSize:        sizes.total,
		EmbedderProvider: st.Provider,
		EmbedderStatus:   embedderState(st),
		EmbedderModel:    st.Model,
	}

	renderer := ui.NewStatusRenderer(cmd.OutOrStdout(), noColor || ui.DetectNoColor())
	if jsonOutput {
		return renderer.RenderJSON(info)
	}
	return renderer.Render(info)
}

func embedderState(st engine.Status) string {
	switch st.State {
	case engine.StateReady, engine.StateIndexing:
		return "ready"
	case engine.StateDegraded:
		return "offline"
	default:
		return string(st.State)
	}
}

// storageSizes breaks the index footprint down by component.
type storageSizes struct {
	records     int64
	vectors     int64
	lexical     int64
	total       int64
	lastIndexed time.Time
}

// measureStorage walks the storage dir and attributes file sizes to the
// record databases, vector graphs, and lexical index. Missing dirs
// yield zeros.
func measureStorage(dir string) storageSizes {
	var sizes storageSizes

	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		size := info.Size()
		sizes.total += size

		name := d.Name()
		switch {
		case strings.HasPrefix(name, "records.db"):
			sizes.records += size
			if info.ModTime().After(sizes.lastIndexed) {
				sizes.lastIndexed = info.ModTime()
			}
		case strings.Contains(name, ".hnsw"):
			sizes.vectors += size
		case strings.HasPrefix(name, "lexical"):
			sizes.lexical += size
		}
		return nil
	})

	return sizes
}
