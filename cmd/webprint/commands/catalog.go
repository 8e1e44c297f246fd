package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/vulntor/webprint/cmd/webprint/internal/format"
	"github.com/vulntor/webprint/pkg/fingerprint"
	"github.com/vulntor/webprint/pkg/fingerprint/catalogsync"
	"github.com/vulntor/webprint/pkg/fingerprint/catalogwatch"
)

// newCatalogCommand wires CLI helpers for fingerprint catalog management.
func newCatalogCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "catalog",
		Aliases: []string{"cat"},
		Short:   "Inspect, validate and sync the technology catalog",
		GroupID: "core",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newCatalogStatsCommand())
	cmd.AddCommand(newCatalogValidateCommand())
	cmd.AddCommand(newCatalogSyncCommand())
	cmd.AddCommand(newCatalogWatchCommand())

	return cmd
}

type statsResult struct {
	Origin string `json:"origin"`
	fingerprint.Stats
}

func newCatalogStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show technology, category and rule counts of the active catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, out, err := setup(cmd)
			if err != nil {
				return err
			}
			catalog, _, origin, err := openCatalog(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			stats := catalog.Stats()
			if out.Mode() == format.ModeJSON {
				return out.PrintJSON(statsResult{Origin: string(origin), Stats: stats})
			}

			signals := make([]string, 0, len(stats.Rules))
			for s := range stats.Rules {
				signals = append(signals, s)
			}
			sort.Strings(signals)
			rows := make([][]string, 0, len(signals))
			for _, s := range signals {
				rows = append(rows, []string{s, strconv.Itoa(stats.Rules[s])})
			}
			if err := out.PrintTable([]string{"Signal", "Rules"}, rows); err != nil {
				return err
			}
			return out.PrintSummary(fmt.Sprintf("%d technologies, %d categories (%s catalog)",
				stats.Technologies, stats.Categories, origin))
		},
	}
}

type validateResult struct {
	Valid     bool                               `json:"valid"`
	Origin    string                             `json:"origin"`
	Skipped   []string                           `json:"skipped,omitempty"`
	Anomalies []fingerprint.NormalizationAnomaly `json:"anomalies,omitempty"`
}

func newCatalogValidateCommand() *cobra.Command {
	var bundle string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Load the catalog and report skipped fragments and dropped fields",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, out, err := setup(cmd)
			if err != nil {
				return err
			}

			var (
				origin   = "bundle:" + bundle
				catalog  *fingerprint.Catalog
				skipped  []fingerprint.SkippedSource
				firstErr error
			)
			if bundle != "" {
				data, err := os.ReadFile(bundle)
				if err != nil {
					return err
				}
				if catalog, err = catalogsync.ParseBundle(bundle, data); err != nil {
					return err
				}
			} else {
				loader, o, err := catalogLoader(cfg, log.Logger)
				if err != nil {
					return err
				}
				var report *fingerprint.LoadReport
				if catalog, report, err = loader.Load(cmd.Context()); err != nil {
					return err
				}
				origin = string(o)
				skipped = report.Skipped
			}

			res := validateResult{Valid: len(skipped) == 0, Origin: origin, Anomalies: catalog.Anomalies()}
			for _, s := range skipped {
				res.Skipped = append(res.Skipped, s.Source)
				if firstErr == nil {
					firstErr = s.Err
				}
			}

			if out.Mode() == format.ModeJSON {
				if err := out.PrintJSON(res); err != nil {
					return err
				}
			} else {
				rows := make([][]string, 0, len(res.Anomalies)+len(skipped))
				for _, s := range skipped {
					rows = append(rows, []string{s.Source, "-", s.Err.Error()})
				}
				for _, a := range res.Anomalies {
					rows = append(rows, []string{a.Technology, a.Field, a.Reason})
				}
				if len(rows) > 0 {
					if err := out.PrintTable([]string{"Source", "Field", "Problem"}, rows); err != nil {
						return err
					}
				}
				if err := out.PrintSummary(fmt.Sprintf("%d technologies, %d skipped fragments, %d dropped fields",
					catalog.Len(), len(skipped), len(res.Anomalies))); err != nil {
					return err
				}
			}
			if firstErr != nil {
				return fmt.Errorf("%d catalog fragment(s) could not be loaded: %w", len(skipped), firstErr)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&bundle, "bundle", "", "Validate a catalog bundle file instead of the configured catalog")
	return cmd
}

func newCatalogSyncCommand() *cobra.Command {
	var (
		filePath string
		url      string
		dir      string
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync a catalog bundle from a remote or local source into the cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, out, err := setup(cmd)
			if err != nil {
				return err
			}
			if filePath == "" && url == "" {
				return fingerprint.NewSourceRequiredError()
			}
			if filePath != "" && url != "" {
				return fingerprint.NewSourceConflictError()
			}

			destination := dir
			if destination == "" {
				destination = cacheDir(cmd.Context(), cfg)
			}

			svc := catalogsync.Service{CacheDir: destination}
			if filePath != "" {
				svc.Source = catalogsync.FileSource{Path: filePath}
			} else {
				svc.Source = catalogsync.HTTPSource{URL: url}
			}

			catalog, err := svc.Sync(cmd.Context())
			if err != nil {
				return err
			}

			log.Info().Str("cache", destination).Int("technologies", catalog.Len()).Msg("catalog synced")
			if out.Mode() == format.ModeJSON {
				return out.PrintJSON(map[string]any{
					"success":      true,
					"cache":        filepath.Join(destination, catalogsync.CacheFileName),
					"technologies": catalog.Len(),
					"categories":   len(catalog.Taxonomy()),
				})
			}
			return out.PrintSummary(fmt.Sprintf("✓ Synced %d technologies into %s", catalog.Len(), destination))
		},
	}

	cmd.Flags().StringVar(&filePath, "file", "", "Load the catalog bundle from a local file")
	cmd.Flags().StringVar(&url, "url", "", "Download the catalog bundle from a URL")
	cmd.Flags().StringVar(&dir, "cache-dir", "", "Override catalog cache destination directory")

	return cmd
}

func newCatalogWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Reload the catalog directory whenever its files change",
		Long: `Loads the catalog from catalog.dir and rebuilds it whenever a fragment or the
category file changes. A rebuild that fails keeps the previous catalog.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := setup(cmd)
			if err != nil {
				return err
			}
			if cfg.Catalog.Dir == "" {
				return errors.New("catalog watch needs --catalog.dir")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			catalog, _, _, err := openCatalog(ctx, cfg)
			if err != nil {
				return err
			}
			holder := catalogwatch.NewHolder(catalog)

			reload := func(ctx context.Context) (*fingerprint.Catalog, error) {
				loader, _, err := catalogLoader(cfg, log.Logger)
				if err != nil {
					return nil, err
				}
				c, _, err := loader.Load(ctx)
				return c, err
			}
			dirs := []string{cfg.Catalog.Dir, filepath.Dir(cfg.Catalog.Categories)}
			w, err := catalogwatch.NewWatcher(holder, reload, dirs, log.Logger)
			if err != nil {
				return err
			}

			err = w.Start(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}
