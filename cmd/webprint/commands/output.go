package commands

import (
	"github.com/spf13/cobra"

	"github.com/vulntor/webprint/cmd/webprint/internal/format"
	"github.com/vulntor/webprint/pkg/appctx"
	"github.com/vulntor/webprint/pkg/config"
)

// setup returns the loaded configuration and a formatter for cmd's output.
func setup(cmd *cobra.Command) (config.Config, format.Formatter, error) {
	cfg := appctx.ConfigOrDefault(cmd.Context())
	if err := format.ValidateMode(cfg.Output.Format); err != nil {
		return cfg, nil, err
	}
	f := format.New(cmd.OutOrStdout(), cmd.ErrOrStderr(), format.ParseMode(cfg.Output.Format), cfg.Output.Color)
	return cfg, f, nil
}
