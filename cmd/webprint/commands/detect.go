package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/vulntor/webprint/cmd/webprint/internal/format"
	"github.com/vulntor/webprint/pkg/fingerprint"
)

// detectResult is the JSON shape of the detect command.
type detectResult struct {
	URL          string                           `json:"url,omitempty"`
	Technologies []fingerprint.ResolvedTechnology `json:"technologies"`
}

func newDetectCommand() *cobra.Command {
	var input evidenceInput

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Detect technologies from captured page evidence",
		Example: `  webprint detect --evidence page.json
  webprint detect --html index.html --url https://example.com --header 'Server: nginx/1.25.3'
  cat page.json | webprint detect --evidence - -o json`,
		GroupID: "scan",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, out, err := setup(cmd)
			if err != nil {
				return err
			}

			ev, err := input.load(cmd)
			if err != nil {
				return err
			}

			catalog, _, _, err := openCatalog(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			engine := fingerprint.NewEngine(
				fingerprint.WithWorkers(cfg.Detect.Workers),
				fingerprint.WithLogger(log.Logger),
			)
			resolved := fingerprint.NewResolver(cfg.Catalog.Overrides).Resolve(engine.Detect(catalog, ev), catalog)

			if err := writeTelemetry(cfg.Detect.Telemetry, ev.URL, resolved); err != nil {
				log.Warn().Err(err).Msg("Failed to write telemetry")
			}

			if out.Mode() == format.ModeJSON {
				return out.PrintJSON(detectResult{URL: ev.URL, Technologies: resolved})
			}
			if len(resolved) > 0 {
				if err := out.PrintTable([]string{"Technology", "Version", "Categories", "Confidence"}, format.TechnologyRows(resolved)); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout())
			}
			target := ev.URL
			if target == "" {
				target = "page"
			}
			return out.PrintSummary(format.DetectionSummary(target, resolved, cfg.Output.Color))
		},
	}

	input.bind(cmd)
	return cmd
}

func writeTelemetry(path, target string, resolved []fingerprint.ResolvedTechnology) error {
	if path == "" {
		return nil
	}
	w, err := fingerprint.NewTelemetryWriter(path)
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()
	return w.WriteScan(target, resolved)
}
