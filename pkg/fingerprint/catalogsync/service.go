package catalogsync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"

	"github.com/vulntor/webprint/pkg/fingerprint"
)

// CacheFileName is the name of the synced catalog bundle inside a cache directory.
const CacheFileName = "catalog.cache"

const lockRetryDelay = 50 * time.Millisecond

// Source loads the raw catalog bundle bytes (YAML/JSON) from a backing store.
type Source interface {
	Load(ctx context.Context) ([]byte, error)
}

// Store persists the catalog bytes to a destination (e.g., workspace cache).
type Store interface {
	Save(ctx context.Context, data []byte) error
}

// Service orchestrates catalog synchronization.
type Service struct {
	Source   Source
	Store    Store
	CacheDir string
}

// Sync fetches the bundle from Source, validates it by building a catalog,
// and writes it using Store. The validated catalog is returned.
func (s Service) Sync(ctx context.Context) (*fingerprint.Catalog, error) {
	if s.Source == nil {
		return nil, errors.New("catalog source is not configured")
	}
	if s.Store == nil {
		if s.CacheDir == "" {
			return nil, fingerprint.NewStorageDisabledError()
		}
		s.Store = FileStore{Path: filepath.Join(s.CacheDir, CacheFileName)}
	}

	data, err := s.Source.Load(ctx)
	if err != nil {
		return nil, fingerprint.WrapSyncError(fmt.Errorf("load catalog: %w", err))
	}

	catalog, err := ParseBundle("sync", data)
	if err != nil {
		return nil, fmt.Errorf("validate catalog: %w", err)
	}

	if err := s.Store.Save(ctx, data); err != nil {
		return nil, fingerprint.WrapSyncError(fmt.Errorf("save catalog: %w", err))
	}
	return catalog, nil
}

// bundle is a whole catalog in one document.
type bundle struct {
	Categories   map[string]fingerprint.Category `yaml:"categories"`
	Technologies map[string]any                  `yaml:"technologies"`
}

// ParseBundle builds a catalog from a document of the form
//
//	{"categories": {"1": {"name": "CMS"}}, "technologies": {"WordPress": {...}}}
func ParseBundle(source string, data []byte) (*fingerprint.Catalog, error) {
	var b bundle
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, &fingerprint.CatalogParseError{Source: source, Err: fmt.Errorf("decode bundle: %w", err)}
	}
	if b.Categories == nil {
		return nil, &fingerprint.CatalogParseError{Source: source, Taxonomy: true, Err: errors.New("bundle has no categories")}
	}
	if len(b.Technologies) == 0 {
		return nil, &fingerprint.CatalogParseError{Source: source, Err: errors.New("bundle has no technologies")}
	}

	taxonomy := make(fingerprint.Taxonomy, len(b.Categories))
	for id, c := range b.Categories {
		c.ID = id
		taxonomy[id] = c
	}

	techData, err := yaml.Marshal(b.Technologies)
	if err != nil {
		return nil, &fingerprint.CatalogParseError{Source: source, Err: err}
	}
	frag, _, err := fingerprint.ParseFragment(source, techData)
	if err != nil {
		return nil, &fingerprint.CatalogParseError{Source: source, Err: err}
	}
	return fingerprint.BuildCatalog(taxonomy, frag), nil
}

// LoadCached builds the catalog stored in cacheDir. It returns an error
// wrapping fs.ErrNotExist when nothing has been synced yet.
func LoadCached(ctx context.Context, cacheDir string) (*fingerprint.Catalog, error) {
	if cacheDir == "" {
		return nil, errors.New("cache directory not specified")
	}
	path := filepath.Join(cacheDir, CacheFileName)
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryRLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("lock catalog cache: %w", err)
	}
	if locked {
		defer func() { _ = lock.Unlock() }()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cache: %w", err)
	}
	return ParseBundle(path, data)
}

// FileSource loads the catalog from a local file path.
type FileSource struct {
	Path string
}

func (f FileSource) Load(_ context.Context) ([]byte, error) {
	if f.Path == "" {
		return nil, errors.New("file path is empty")
	}
	return os.ReadFile(f.Path)
}

// HTTPSource downloads the catalog from a URL using the provided http.Client (or default).
type HTTPSource struct {
	URL    string
	Client *http.Client
}

func (h HTTPSource) Load(ctx context.Context) ([]byte, error) {
	if h.URL == "" {
		return nil, errors.New("url is empty")
	}
	client := h.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch catalog: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("unexpected status from catalog source: %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read catalog body: %w", err)
	}
	return data, nil
}

// FileStore writes the catalog bytes to a path on disk. Writers hold an
// exclusive lock on a sibling .lock file and replace the file atomically.
type FileStore struct {
	Path string
}

func (f FileStore) Save(ctx context.Context, data []byte) error {
	if f.Path == "" {
		return errors.New("file store path is empty")
	}
	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create catalog directory: %w", err)
	}

	lock := flock.New(f.Path + ".lock")
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("lock catalog cache: %w", err)
	}
	if !locked {
		return errors.New("catalog cache is locked by another process")
	}
	defer func() { _ = lock.Unlock() }()

	tmp, err := os.CreateTemp(dir, filepath.Base(f.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write catalog: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close catalog: %w", err)
	}
	if err := os.Rename(tmpName, f.Path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace catalog: %w", err)
	}
	return nil
}
