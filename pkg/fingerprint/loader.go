// Package fingerprint normalizes technology fingerprint catalogs, evaluates
// page evidence against them and resolves the matches into labelled results.
package fingerprint

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

//go:embed data/categories.json data/technologies/*.json
var embeddedCatalog embed.FS

// DefaultLoadTimeout bounds how long a single catalog source may take to load.
const DefaultLoadTimeout = 30 * time.Second

// Source loads the raw bytes of one catalog document.
type Source interface {
	Name() string
	Load(ctx context.Context) ([]byte, error)
}

// BytesSource serves an in-memory document.
type BytesSource struct {
	Label string
	Data  []byte
}

func (b BytesSource) Name() string { return b.Label }

func (b BytesSource) Load(_ context.Context) ([]byte, error) {
	return b.Data, nil
}

// FileSource reads a document from disk.
type FileSource struct {
	Path string
}

func (f FileSource) Name() string { return f.Path }

func (f FileSource) Load(ctx context.Context) ([]byte, error) {
	if f.Path == "" {
		return nil, errors.New("file path is empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(f.Path)
}

// fsSource reads a document from an fs.FS.
type fsSource struct {
	fsys fs.FS
	path string
}

func (s fsSource) Name() string { return "embedded:" + s.path }

func (s fsSource) Load(_ context.Context) ([]byte, error) {
	return fs.ReadFile(s.fsys, s.path)
}

var fragmentExts = map[string]struct{}{".json": {}, ".yaml": {}, ".yml": {}}

// DirSources returns one FileSource per JSON/YAML file in dir, ordered by file
// name. That order is the merge order, so later files win on duplicate names.
func DirSources(dir string) ([]Source, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read technologies directory: %w", err)
	}
	var sources []Source
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := fragmentExts[strings.ToLower(filepath.Ext(e.Name()))]; !ok {
			continue
		}
		sources = append(sources, FileSource{Path: filepath.Join(dir, e.Name())})
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].Name() < sources[j].Name() })
	return sources, nil
}

// EmbeddedSources returns the sources of the catalog shipped with the binary.
func EmbeddedSources() (Source, []Source) {
	categories := fsSource{fsys: embeddedCatalog, path: "data/categories.json"}
	entries, err := fs.ReadDir(embeddedCatalog, "data/technologies")
	if err != nil {
		return categories, nil
	}
	fragments := make([]Source, 0, len(entries))
	for _, e := range entries {
		fragments = append(fragments, fsSource{fsys: embeddedCatalog, path: path.Join("data/technologies", e.Name())})
	}
	return categories, fragments
}

// SkippedSource is a fragment left out of the catalog.
type SkippedSource struct {
	Source string
	Err    error
}

// LoadReport describes what a Loader merged.
type LoadReport struct {
	Technologies int
	Fragments    int
	Skipped      []SkippedSource
	Anomalies    []NormalizationAnomaly
	Duration     time.Duration
}

// Loader reads a taxonomy and technology fragments and builds a Catalog.
type Loader struct {
	Categories Source
	Fragments  []Source
	// Timeout applies to each source. Zero means DefaultLoadTimeout.
	Timeout time.Duration
	Logger  zerolog.Logger
}

// NewEmbeddedLoader returns a Loader for the built-in catalog.
func NewEmbeddedLoader(logger zerolog.Logger) *Loader {
	categories, fragments := EmbeddedSources()
	return &Loader{Categories: categories, Fragments: fragments, Logger: logger}
}

// NewDirLoader returns a Loader for an on-disk catalog: a categories document
// and a directory of technology fragments. The categories document is not
// read as a fragment when it lives in the same directory.
func NewDirLoader(categoriesFile, technologiesDir string, logger zerolog.Logger) (*Loader, error) {
	sources, err := DirSources(technologiesDir)
	if err != nil {
		return nil, err
	}
	fragments := sources[:0]
	for _, src := range sources {
		if filepath.Clean(src.Name()) == filepath.Clean(categoriesFile) {
			continue
		}
		fragments = append(fragments, src)
	}
	return &Loader{
		Categories: FileSource{Path: categoriesFile},
		Fragments:  fragments,
		Logger:     logger,
	}, nil
}

// Load builds the catalog. A taxonomy failure is returned as a
// *CatalogParseError matching ErrTaxonomyUnavailable. Fragment failures are
// logged, recorded in the report and skipped.
func (l *Loader) Load(ctx context.Context) (*Catalog, *LoadReport, error) {
	started := time.Now()
	report := &LoadReport{}

	if l.Categories == nil {
		return nil, report, &CatalogParseError{Source: "categories", Taxonomy: true, Err: errors.New("no category source configured")}
	}

	data, err := l.load(ctx, l.Categories)
	if err != nil {
		return nil, report, &CatalogParseError{Source: l.Categories.Name(), Taxonomy: true, Err: err}
	}
	taxonomy, err := ParseTaxonomy(data)
	if err != nil {
		return nil, report, &CatalogParseError{Source: l.Categories.Name(), Taxonomy: true, Err: err}
	}

	fragments := make([]Fragment, 0, len(l.Fragments))
	for _, src := range l.Fragments {
		if err := ctx.Err(); err != nil {
			return nil, report, err
		}

		data, err := l.load(ctx, src)
		if err == nil {
			var frag Fragment
			var anomalies []NormalizationAnomaly
			frag, anomalies, err = ParseFragment(src.Name(), data)
			if err == nil {
				fragments = append(fragments, frag)
				report.Anomalies = append(report.Anomalies, anomalies...)
				continue
			}
		}

		parseErr := &CatalogParseError{Source: src.Name(), Err: err}
		report.Skipped = append(report.Skipped, SkippedSource{Source: src.Name(), Err: parseErr})
		l.Logger.Warn().Err(err).Str("source", src.Name()).Msg("Skipping technology fragment")
	}

	l.logShadowed(fragments)

	catalog := BuildCatalog(taxonomy, fragments...)
	report.Technologies = catalog.Len()
	report.Fragments = len(fragments)
	report.Anomalies = append(report.Anomalies, catalog.Anomalies()...)
	report.Duration = time.Since(started)

	for _, a := range report.Anomalies {
		l.Logger.Debug().Str("anomaly", a.String()).Msg("Dropped malformed catalog field")
	}
	l.Logger.Info().
		Int("technologies", report.Technologies).
		Int("categories", len(taxonomy)).
		Int("fragments", report.Fragments).
		Int("skipped", len(report.Skipped)).
		Dur("took", report.Duration).
		Msg("Fingerprint catalog loaded")

	return catalog, report, nil
}

// load reads one source under the per-source timeout. Sources that ignore
// their context are abandoned when the timeout fires.
func (l *Loader) load(ctx context.Context, src Source) ([]byte, error) {
	timeout := l.Timeout
	if timeout <= 0 {
		timeout = DefaultLoadTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		data, err := src.Load(ctx)
		done <- result{data: data, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("load %s: %w", src.Name(), ctx.Err())
	case r := <-done:
		return r.data, r.err
	}
}

func (l *Loader) logShadowed(fragments []Fragment) {
	if l.Logger.GetLevel() > zerolog.DebugLevel {
		return
	}
	seen := make(map[string]string)
	for _, frag := range fragments {
		for name := range frag.Technologies {
			if prev, ok := seen[name]; ok {
				l.Logger.Debug().
					Str("technology", name).
					Str("previous", prev).
					Str("winner", frag.Source).
					Msg("Technology redefined by later fragment")
			}
			seen[name] = frag.Source
		}
	}
}
