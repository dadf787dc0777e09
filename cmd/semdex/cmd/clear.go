package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/semdex/internal/output"
)

func newClearCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete the index",
		Long: `Delete every record, vector, and lexical document from the index.
The configuration is untouched; 'semdex index' rebuilds from scratch.

Destructive, so --force is required.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !force {
				return fmt.Errorf("clear deletes the entire index; re-run with --force to confirm")
			}
			return runClear(cmd.Context(), cmd)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Confirm deletion")

	return cmd
}

func runClear(ctx context.Context, cmd *cobra.Command) error {
	eng, _, err := openEngine(ctx, projectRoot())
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	if err := eng.Clear(ctx); err != nil {
		return err
	}

	output.New(cmd.OutOrStdout()).Success("index cleared")
	return nil
}
