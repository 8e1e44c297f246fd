package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/vulntor/webprint/cmd/webprint/internal/format"
	"github.com/vulntor/webprint/pkg/version"
)

func newVersionCommand() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, out, err := setup(cmd)
			if err != nil {
				return err
			}
			info := version.Get()
			if out.Mode() == format.ModeJSON {
				return out.PrintJSON(info)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s version: %s\n", cliExecutable, info.Version)
			if short {
				return nil
			}
			fmt.Fprintf(w, "Commit: %s\n", info.Commit)
			fmt.Fprintf(w, "Build Date: %s\n", info.BuildDate)
			fmt.Fprintf(w, "Go Version: %s\n", runtime.Version())
			fmt.Fprintf(w, "Platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&short, "short", "s", false, "Print only the version number")
	return cmd
}
