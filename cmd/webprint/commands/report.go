package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/vulntor/webprint/cmd/webprint/internal/format"
	"github.com/vulntor/webprint/pkg/fingerprint"
	"github.com/vulntor/webprint/pkg/report"
	"github.com/vulntor/webprint/pkg/workspace"
)

func newReportCommand() *cobra.Command {
	var (
		input      evidenceInput
		lighthouse string
		save       bool
	)

	cmd := &cobra.Command{
		Use:   "report <domain>",
		Short: "Build a scan report for a domain from captured evidence and an optional Lighthouse result",
		Example: `  webprint report example.com --html index.html --lighthouse lighthouse.json
  webprint report example.com --evidence page.json --save`,
		GroupID: "scan",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, out, err := setup(cmd)
			if err != nil {
				return err
			}
			domain := args[0]
			if input.pageURL == "" {
				input.pageURL = report.TargetURL(domain)
			}

			ev, err := input.load(cmd)
			if err != nil {
				return err
			}
			catalog, _, _, err := openCatalog(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			builder := report.NewBuilder(report.StaticCatalog{C: catalog}, log.Logger)
			builder.Engine = fingerprint.NewEngine(fingerprint.WithWorkers(cfg.Detect.Workers), fingerprint.WithLogger(log.Logger))
			builder.Resolver = fingerprint.NewResolver(cfg.Catalog.Overrides)
			if lighthouse != "" {
				builder.Auditor = report.LighthouseFile{Path: lighthouse}
			}
			if cfg.Detect.Telemetry != "" {
				tw, err := fingerprint.NewTelemetryWriter(cfg.Detect.Telemetry)
				if err != nil {
					return err
				}
				defer func() { _ = tw.Close() }()
				builder.Telemetry = tw
			}

			rep := builder.Build(cmd.Context(), domain, ev)

			if save {
				dir, ok := workspace.Path(cmd.Context(), workspace.ReportsDir)
				if !ok {
					return fingerprint.NewStorageDisabledError()
				}
				path, err := saveReport(dir, rep)
				if err != nil {
					return err
				}
				log.Info().Str("path", path).Msg("Report saved")
			}

			if out.Mode() == format.ModeJSON {
				return out.PrintJSON(rep)
			}
			rows := [][]string{
				{"ID", rep.ID},
				{"URL", rep.URL},
				{"Performance", score(rep.Performance)},
				{"SEO", score(rep.SEO)},
				{"Accessibility", score(rep.Accessibility)},
			}
			if err := out.PrintTable([]string{"Field", "Value"}, rows); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout())
			if len(rep.Tech) > 0 {
				if err := out.PrintTable([]string{"Technology", "Version", "Categories", "Confidence"}, format.TechnologyRows(rep.Tech)); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout())
			}
			return out.PrintSummary(format.DetectionSummary(rep.URL, rep.Tech, cfg.Output.Color))
		},
	}

	input.bind(cmd)
	cmd.Flags().StringVar(&lighthouse, "lighthouse", "", "Lighthouse JSON report to merge scores from")
	cmd.Flags().BoolVar(&save, "save", false, "Save the report to the workspace reports directory")
	return cmd
}

func saveReport(dir string, rep *report.Report) (string, error) {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, rep.ID+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

func score(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.0f", *v)
}
