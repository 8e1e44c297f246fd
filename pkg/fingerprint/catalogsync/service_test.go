package catalogsync

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulntor/webprint/pkg/fingerprint"
)

const testBundle = `
categories:
  "22": {name: Web servers}
  "64": {name: Reverse proxies}
technologies:
  Caddy:
    cats: [22, 64]
    headers:
      Server: '^Caddy$'
  Nginx:
    cats: [22]
    headers:
      Server: 'nginx(?:/([\d.]+))?\;version:\1'
`

type memoryStore struct {
	saved []byte
	err   error
}

func (m *memoryStore) Save(_ context.Context, data []byte) error {
	if m.err != nil {
		return m.err
	}
	m.saved = append([]byte(nil), data...)
	return nil
}

type staticSource struct {
	data []byte
	err  error
}

func (s staticSource) Load(_ context.Context) ([]byte, error) { return s.data, s.err }

func TestParseBundle(t *testing.T) {
	catalog, err := ParseBundle("bundle", []byte(testBundle))
	require.NoError(t, err)

	assert.Equal(t, []string{"Caddy", "Nginx"}, catalog.Names())
	name, ok := catalog.Taxonomy().Name("64")
	require.True(t, ok)
	assert.Equal(t, "Reverse proxies", name)

	detections := fingerprint.Detect(catalog, fingerprint.Evidence{Headers: map[string][]string{"server": {"nginx/1.25.3"}}})
	require.Len(t, detections, 1)
	assert.Equal(t, "1.25.3", detections[0].Version)
}

func TestParseBundle_Errors(t *testing.T) {
	_, err := ParseBundle("bundle", []byte("technologies:\n  Caddy: {}\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, fingerprint.ErrTaxonomyUnavailable)

	_, err = ParseBundle("bundle", []byte("categories:\n  \"1\": {name: CMS}\n"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, fingerprint.ErrTaxonomyUnavailable)

	_, err = ParseBundle("bundle", []byte("categories: ["))
	require.Error(t, err)
	var parseErr *fingerprint.CatalogParseError
	assert.True(t, errors.As(err, &parseErr))
}

func TestService_Sync(t *testing.T) {
	store := &memoryStore{}
	svc := Service{Source: staticSource{data: []byte(testBundle)}, Store: store}

	catalog, err := svc.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, catalog.Len())
	assert.Equal(t, testBundle, string(store.saved))
}

func TestService_SyncInvalidBundleNotSaved(t *testing.T) {
	store := &memoryStore{}
	svc := Service{Source: staticSource{data: []byte("technologies: {}\n")}, Store: store}

	_, err := svc.Sync(context.Background())
	require.Error(t, err)
	assert.Nil(t, store.saved)
}

func TestService_SyncErrors(t *testing.T) {
	_, err := Service{}.Sync(context.Background())
	require.Error(t, err)

	_, err = Service{Source: staticSource{data: []byte(testBundle)}}.Sync(context.Background())
	assert.ErrorIs(t, err, fingerprint.ErrStorageDisabled)
	assert.Equal(t, 7, fingerprint.ExitCode(err))

	_, err = Service{Source: staticSource{err: errors.New("offline")}, Store: &memoryStore{}}.Sync(context.Background())
	require.Error(t, err)
	assert.Equal(t, "CATALOG_SYNC_FAILED", fingerprint.ErrorCode(err))

	_, err = Service{Source: staticSource{data: []byte(testBundle)}, Store: &memoryStore{err: errors.New("read-only")}}.Sync(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read-only")
}

func TestService_SyncToCacheDir(t *testing.T) {
	dir := t.TempDir()
	svc := Service{Source: staticSource{data: []byte(testBundle)}, CacheDir: dir}

	_, err := svc.Sync(context.Background())
	require.NoError(t, err)

	catalog, err := LoadCached(context.Background(), dir)
	require.NoError(t, err)
	_, ok := catalog.Get("Caddy")
	assert.True(t, ok)
}

func TestLoadCached_Missing(t *testing.T) {
	_, err := LoadCached(context.Background(), t.TempDir())
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)

	_, err = LoadCached(context.Background(), "")
	require.Error(t, err)
}

func TestFileSource_Load(t *testing.T) {
	_, err := FileSource{}.Load(context.Background())
	require.Error(t, err)

	p := filepath.Join(t.TempDir(), "bundle.yaml")
	require.NoError(t, os.WriteFile(p, []byte(testBundle), 0o644))
	data, err := FileSource{Path: p}.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testBundle, string(data))
}

func TestHTTPSource_Load(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(testBundle))
	}))
	defer srv.Close()

	data, err := HTTPSource{URL: srv.URL + "/catalog.yaml", Client: srv.Client()}.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testBundle, string(data))

	_, err = HTTPSource{URL: srv.URL + "/missing"}.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")

	_, err = HTTPSource{}.Load(context.Background())
	require.Error(t, err)
}

func TestFileStore_Save(t *testing.T) {
	require.Error(t, FileStore{}.Save(context.Background(), []byte("x")))

	dir := t.TempDir()
	p := filepath.Join(dir, "nested", CacheFileName)
	store := FileStore{Path: p}
	require.NoError(t, store.Save(context.Background(), []byte("first")))
	require.NoError(t, store.Save(context.Background(), []byte("second")))

	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(filepath.Dir(p))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp", "temporary files are cleaned up")
	}
}

func TestFileStore_SaveWaitsForLock(t *testing.T) {
	p := filepath.Join(t.TempDir(), CacheFileName)
	held := flock.New(p + ".lock")
	require.NoError(t, held.Lock())
	defer func() { _ = held.Unlock() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := FileStore{Path: p}.Save(ctx, []byte("x"))
	require.Error(t, err)

	_, statErr := os.Stat(p)
	assert.ErrorIs(t, statErr, fs.ErrNotExist)
}
