package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/semdex/internal/config"
	"github.com/Aman-CERP/semdex/internal/logging"
	"github.com/Aman-CERP/semdex/internal/mcpserver"
)

func newServeCmd() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the index to AI assistants over MCP",
		Long: `Start the Model Context Protocol server on stdio, exposing search,
index_status, and stats tools.

Stdout carries the protocol stream, so all logging goes to the log
file only. Run 'semdex logs -f' in another terminal to follow it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), logLevel)
		},
	}

	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level for the server (default from config)")

	return cmd
}

func runServe(parent context.Context, logLevel string) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := projectRoot()

	// Logging must be rerouted before anything can write to stdout:
	// the MCP stream owns it exclusively.
	level := logLevel
	if level == "" {
		level = "info"
		if cfg, err := config.Load(root); err == nil {
			level = cfg.Server.LogLevel
		}
	}
	cleanup, err := logging.SetupMCPModeWithLevel(level)
	if err != nil {
		return err
	}
	defer cleanup()

	eng, cfg, err := openEngine(ctx, root)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	srv, err := mcpserver.New(eng, nil)
	if err != nil {
		return err
	}
	return srv.Run(ctx, cfg.Server.Transport)
}
