package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_Empty(t *testing.T) {
	resolved := Resolve(nil, nil)
	require.NotNil(t, resolved)
	assert.Empty(t, resolved)
}

func TestResolve_CloudflareLegacyID(t *testing.T) {
	catalog := loadEmbedded(t)

	detections := Detect(catalog, Evidence{Headers: map[string][]string{
		"server": {"cloudflare"},
		"cf-ray": {"8a1b2c3d4e5f-AMS"},
	}})
	resolved := Resolve(detections, catalog)

	require.Len(t, resolved, 1)
	assert.Equal(t, ResolvedTechnology{
		Name:       "Cloudflare",
		Legacy:     true,
		Categories: []string{"CDN"},
		Confidence: 100,
	}, resolved[0])
}

func TestResolver_NameChain(t *testing.T) {
	catalog := catalogFrom(t, `{
		"1221": {"cats": [31], "slug": "cloudflare"},
		"4242": {"cats": [22], "slug": "acme-proxy"},
		"5150": {"cats": [22]},
		"Nginx": {"cats": [22], "slug": "nginx"}
	}`)
	detections := []RawDetection{
		{Technology: "1221", Confidence: 100},
		{Technology: "4242", Confidence: 100},
		{Technology: "5150", Confidence: 100},
		{Technology: "Nginx", Confidence: 100},
	}

	resolved := NewResolver(map[string]string{"1221": "Cloudflare CDN", "5150": ""}).Resolve(detections, catalog)
	require.Len(t, resolved, 4)

	assert.Equal(t, "Cloudflare CDN", resolved[0].Name, "override beats the slug")
	assert.True(t, resolved[0].Legacy)
	assert.Equal(t, "acme-proxy", resolved[1].Name)
	assert.True(t, resolved[1].Legacy)
	assert.Equal(t, "5150", resolved[2].Name, "empty overrides are ignored")
	assert.True(t, resolved[2].Legacy)
	assert.Equal(t, "Nginx", resolved[3].Name, "non-numeric names are never renamed")
	assert.False(t, resolved[3].Legacy)
}

func TestResolve_CategoryChain(t *testing.T) {
	catalog := catalogFrom(t, `{
		"Demo": {"cats": [1, {"id": 11, "name": "Blogs"}, 999]}
	}`)

	resolved := Resolve([]RawDetection{{Technology: "Demo", Confidence: 90}}, catalog)
	require.Len(t, resolved, 1)
	assert.Equal(t, []string{"CMS", "Blogs", "999"}, resolved[0].Categories)
}

func TestResolve_UnknownTechnology(t *testing.T) {
	resolved := Resolve([]RawDetection{{Technology: "Ghost", Confidence: 70, Version: "5.1"}}, catalogFrom(t, `{}`))
	require.Len(t, resolved, 1)
	assert.Equal(t, ResolvedTechnology{Name: "Ghost", Categories: []string{}, Confidence: 70, Version: "5.1"}, resolved[0])
}

func TestResolve_MergesDuplicates(t *testing.T) {
	catalog := catalogFrom(t, `{"Nginx": {"cats": [22]}, "PHP": {"cats": [1]}}`)
	detections := []RawDetection{
		{Technology: "PHP", Confidence: 40, Version: "8.1.0"},
		{Technology: "Nginx", Confidence: 100},
		{Technology: "PHP", Confidence: 90, Version: "8.2.1"},
		{Technology: "PHP", Confidence: 60, Version: "8.0"},
		{Technology: "PHP", Confidence: 10, Version: "not-a-version"},
	}

	resolved := Resolve(detections, catalog)
	require.Len(t, resolved, 2)
	assert.Equal(t, "PHP", resolved[0].Name, "first detection order is kept")
	assert.Equal(t, 90, resolved[0].Confidence)
	assert.Equal(t, "8.2.1", resolved[0].Version)
	assert.Equal(t, "Nginx", resolved[1].Name)
}

func TestResolve_Deterministic(t *testing.T) {
	catalog := loadEmbedded(t)
	ev := Evidence{
		Headers: map[string][]string{"server": {"nginx/1.25.3"}, "x-powered-by": {"PHP/8.2.1"}},
		Meta:    map[string][]string{"generator": {"WordPress 6.4.2"}},
	}

	first := Resolve(Detect(catalog, ev), catalog)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Resolve(NewEngine(WithWorkers(3)).Detect(catalog, ev), catalog))
	}
}

func TestPreferVersion(t *testing.T) {
	tests := []struct {
		current, candidate, want string
	}{
		{"", "1.0", "1.0"},
		{"1.0", "", "1.0"},
		{"1.2.0", "1.10.0", "1.10.0"},
		{"2.0", "1.9", "2.0"},
		{"legacy", "2.0", "legacy"},
		{"2.0", "legacy", "2.0"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, preferVersion(tt.current, tt.candidate), "%q vs %q", tt.current, tt.candidate)
	}
}
