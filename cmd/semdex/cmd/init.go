package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/semdex/configs"
	"github.com/Aman-CERP/semdex/internal/config"
	"github.com/Aman-CERP/semdex/internal/output"
	"github.com/Aman-CERP/semdex/internal/preflight"
)

func newInitCmd() *cobra.Command {
	var force bool
	var user bool
	var skipCheck bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter configuration",
		Long: `Write a commented .semdex.yaml into the current project.

With --user, write the machine-level template to the user config
directory instead (the existing file is backed up first).

A system check runs once after project init; its result is cached so
routine commands skip it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if user {
				return runInitUser(cmd, force)
			}
			return runInitProject(cmd, force, skipCheck)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing config file")
	cmd.Flags().BoolVar(&user, "user", false, "Write the user config template instead of the project one")
	cmd.Flags().BoolVar(&skipCheck, "skip-check", false, "Skip the system check")

	return cmd
}

func runInitProject(cmd *cobra.Command, force, skipCheck bool) error {
	out := output.New(cmd.OutOrStdout())
	root, err := os.Getwd()
	if err != nil {
		return err
	}

	path := filepath.Join(root, config.ProjectConfigName)
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", config.ProjectConfigName)
	}

	if err := os.WriteFile(path, []byte(configs.ProjectConfigTemplate), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", config.ProjectConfigName, err)
	}
	out.Successf("wrote %s", config.ProjectConfigName)

	if skipCheck {
		return nil
	}

	cfg, err := config.Load(root)
	if err != nil {
		return err
	}
	storageDir := cfg.StorageDir(root)

	results := preflight.New(cfg).RunAll(cmd.Context(), root, storageDir)
	preflight.Render(cmd.OutOrStdout(), results, false)

	if preflight.HasCriticalFailures(results) {
		return fmt.Errorf("system check failed; run 'semdex doctor' for details")
	}
	if err := preflight.MarkPassed(storageDir); err == nil {
		out.Status("", "system check cached; 'semdex index' will skip it")
	}
	return nil
}

func runInitUser(cmd *cobra.Command, force bool) error {
	out := output.New(cmd.OutOrStdout())
	path := config.GetUserConfigPath()

	if _, err := os.Stat(path); err == nil {
		if !force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		backup, err := config.BackupUserConfig()
		if err != nil {
			return fmt.Errorf("back up user config: %w", err)
		}
		if backup != "" {
			out.Statusf("", "backed up existing config to %s", backup)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(configs.UserConfigTemplate), 0o644); err != nil {
		return fmt.Errorf("write user config: %w", err)
	}
	out.Successf("wrote %s", path)
	return nil
}
