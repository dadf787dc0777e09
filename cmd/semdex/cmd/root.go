// Package cmd provides the CLI commands for semdex.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/semdex/internal/config"
	"github.com/Aman-CERP/semdex/internal/logging"
	"github.com/Aman-CERP/semdex/internal/profiling"
	"github.com/Aman-CERP/semdex/pkg/engine"
	"github.com/Aman-CERP/semdex/pkg/version"
)

// Persistent flag state shared across subcommands.
var (
	debugMode    bool
	profileCPU   string
	profileMem   string
	profileTrace string

	profSession    *profiling.Session
	loggingCleanup func()
)

// NewRootCmd creates the root command for the semdex CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "semdex",
		Short: "Local-first semantic code search",
		Long: `semdex indexes a codebase into a local sharded vector store and
serves hybrid (semantic + keyword) search over it.

Everything runs locally: the index lives in .semdex/ inside the
project, and no code leaves the machine unless a remote embedding
provider is configured.

Typical flow:
  semdex init       write a starter .semdex.yaml
  semdex index      build the index
  semdex search     query it
  semdex watch      keep it fresh while editing
  semdex serve      expose it to AI assistants over MCP`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("semdex version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.semdex/logs/")
	cmd.PersistentFlags().StringVar(&profileCPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileMem, "profile-mem", "", "Write heap profile to file on exit")
	cmd.PersistentFlags().StringVar(&profileTrace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = startDiagnostics
	cmd.PersistentPostRunE = stopDiagnostics

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newClearCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// startDiagnostics starts debug logging and profiling when requested.
func startDiagnostics(_ *cobra.Command, _ []string) error {
	if debugMode {
		logger, cleanup, err := logging.Setup(logging.DebugConfig())
		if err != nil {
			return fmt.Errorf("setup debug logging: %w", err)
		}
		loggingCleanup = cleanup
		slog.SetDefault(logger)
		slog.Info("debug_logging_enabled",
			slog.String("log_file", logging.DefaultLogPath()),
			slog.String("version", version.Version))
	}

	opts := profiling.Options{
		CPUPath:   profileCPU,
		HeapPath:  profileMem,
		TracePath: profileTrace,
	}
	if opts.Enabled() {
		session, err := profiling.Start(opts)
		if err != nil {
			return fmt.Errorf("start profiling: %w", err)
		}
		profSession = session
	}

	return nil
}

// stopDiagnostics flushes profiles and closes the debug log.
func stopDiagnostics(_ *cobra.Command, _ []string) error {
	if err := profSession.Stop(); err != nil {
		return fmt.Errorf("stop profiling: %w", err)
	}
	profSession = nil

	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// projectRoot finds the enclosing project root, falling back to the
// working directory when no marker is found.
func projectRoot() string {
	root, err := config.FindProjectRoot(".")
	if err != nil {
		root, _ = os.Getwd()
	}
	return root
}

// openEngine loads configuration, creates the engine, and initializes it.
// The caller owns Close.
func openEngine(ctx context.Context, root string) (*engine.Engine, *config.Config, error) {
	cfg, err := config.Load(root)
	if err != nil {
		return nil, nil, err
	}

	eng := engine.New(cfg, cfg.StorageDir(root))
	if err := eng.Initialize(ctx); err != nil {
		_ = eng.Close()
		return nil, nil, err
	}
	return eng, cfg, nil
}
