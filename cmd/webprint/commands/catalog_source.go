package commands

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vulntor/webprint/pkg/config"
	"github.com/vulntor/webprint/pkg/fingerprint"
	"github.com/vulntor/webprint/pkg/fingerprint/catalogsync"
	"github.com/vulntor/webprint/pkg/workspace"
)

// catalogOrigin names where an opened catalog came from.
type catalogOrigin string

const (
	originCache    catalogOrigin = "cache"
	originDir      catalogOrigin = "dir"
	originEmbedded catalogOrigin = "embedded"
)

// cacheDir returns the synced catalog directory: the configured one, else
// the workspace cache. Empty when neither is available.
func cacheDir(ctx context.Context, cfg config.Config) string {
	if cfg.Catalog.Cache != "" {
		return cfg.Catalog.Cache
	}
	if p, ok := workspace.Path(ctx, workspace.CacheDir, "catalog"); ok {
		return p
	}
	return ""
}

// catalogLoader returns the Loader for the configured directory, or the
// embedded catalog when none is set.
func catalogLoader(cfg config.Config, logger zerolog.Logger) (*fingerprint.Loader, catalogOrigin, error) {
	if cfg.Catalog.Dir == "" {
		l := fingerprint.NewEmbeddedLoader(logger)
		l.Timeout = cfg.Catalog.Timeout
		return l, originEmbedded, nil
	}

	categories := cfg.Catalog.Categories
	if categories == "" {
		categories = filepath.Join(cfg.Catalog.Dir, "categories.json")
	}
	l, err := fingerprint.NewDirLoader(categories, cfg.Catalog.Dir, logger)
	if err != nil {
		return nil, "", err
	}
	l.Timeout = cfg.Catalog.Timeout
	return l, originDir, nil
}

// openCatalog picks the catalog in precedence order: synced cache, catalog
// directory, embedded catalog. A broken cache is logged and skipped.
func openCatalog(ctx context.Context, cfg config.Config) (*fingerprint.Catalog, *fingerprint.LoadReport, catalogOrigin, error) {
	logger := log.Logger.With().Str("component", "catalog").Logger()

	if cfg.Catalog.Dir == "" {
		if dir := cacheDir(ctx, cfg); dir != "" {
			catalog, err := catalogsync.LoadCached(ctx, dir)
			switch {
			case err == nil:
				logger.Debug().Str("cache", dir).Int("technologies", catalog.Len()).Msg("Using synced catalog")
				return catalog, &fingerprint.LoadReport{Technologies: catalog.Len(), Fragments: 1}, originCache, nil
			case errors.Is(err, fs.ErrNotExist):
			default:
				logger.Warn().Err(err).Str("cache", dir).Msg("Ignoring unreadable catalog cache")
			}
		}
	}

	loader, origin, err := catalogLoader(cfg, logger)
	if err != nil {
		return nil, nil, "", err
	}
	catalog, report, err := loader.Load(ctx)
	if err != nil {
		return nil, report, "", err
	}
	return catalog, report, origin, nil
}
