package commands

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/vulntor/webprint/cmd/webprint/internal/format"
	"github.com/vulntor/webprint/pkg/appctx"
	"github.com/vulntor/webprint/pkg/config"
	"github.com/vulntor/webprint/pkg/fingerprint"
	"github.com/vulntor/webprint/pkg/logging"
	"github.com/vulntor/webprint/pkg/workspace"
)

const cliExecutable = "webprint"

// NewCommand constructs the top-level webprint CLI command, wiring global
// flags, configuration loading and shared workspace preparation.
func NewCommand() *cobra.Command {
	var (
		configFile        string
		workspaceDir      string
		workspaceDisabled bool
		logFile           *os.File
	)

	cmd := &cobra.Command{
		Use:   cliExecutable,
		Short: "Identify the technologies behind a website from captured page evidence",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			manager := config.NewManager()
			if err := manager.Load(cmd.Flags(), configFile); err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			cfg := manager.Get()

			if cfg.Log.File != "" {
				f, err := logging.OpenLogFile(cfg.Log.File)
				if err != nil {
					return err
				}
				logFile = f
			}
			if err := logging.ConfigureGlobalLogging(cfg.Log.Level, cfg.Log.Format); err != nil {
				return err
			}

			ctx := appctx.WithConfig(cmd.Context(), manager)

			if !workspaceDisabled {
				prepared, err := workspace.Prepare(workspaceDir)
				if err != nil {
					return fmt.Errorf("prepare workspace: %w", err)
				}
				ctx = workspace.WithContext(ctx, prepared)
				log.Debug().Str("workspace", prepared).Msg("workspace ready")
			} else {
				log.Debug().Msg("workspace disabled for this run")
			}

			cmd.SetContext(ctx)
			if root := cmd.Root(); root != nil && root != cmd {
				root.SetContext(ctx)
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if logFile != nil {
				return logFile.Close()
			}
			return nil
		},
	}

	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file path")
	cmd.PersistentFlags().StringVar(&workspaceDir, "workspace-dir", "", "Override workspace root directory")
	cmd.PersistentFlags().BoolVar(&workspaceDisabled, "no-workspace", false, "Disable workspace persistence for this run")

	config.BindFlags(cmd.PersistentFlags())

	cmd.AddGroup(&cobra.Group{ID: "scan", Title: "Scan Commands"})
	cmd.AddGroup(&cobra.Group{ID: "core", Title: "Core Commands"})

	cmd.AddCommand(newDetectCommand())
	cmd.AddCommand(newReportCommand())
	cmd.AddCommand(newCatalogCommand())
	cmd.AddCommand(newVersionCommand())

	return cmd
}

// Execute runs the CLI and returns the process exit code. Errors are printed
// in the configured output mode together with their suggestions.
func Execute() int {
	root := NewCommand()
	executed, err := root.ExecuteC()
	if err == nil {
		return 0
	}

	ctx := root.Context()
	if executed != nil && executed.Context() != nil {
		ctx = executed.Context()
	}
	cfg := appctx.ConfigOrDefault(ctx)
	f := format.New(os.Stdout, os.Stderr, format.ParseMode(cfg.Output.Format), cfg.Output.Color)
	_ = f.PrintError(err, fingerprint.Suggestions(err))
	return fingerprint.ExitCode(err)
}
