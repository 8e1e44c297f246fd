package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTaxonomy = Taxonomy{
	"1":  {ID: "1", Name: "CMS"},
	"22": {ID: "22", Name: "Web servers"},
	"31": {ID: "31", Name: "CDN"},
}

func mustFragment(t *testing.T, source, doc string) Fragment {
	t.Helper()
	frag, _, err := ParseFragment(source, []byte(doc))
	require.NoError(t, err)
	return frag
}

func TestParseFragment(t *testing.T) {
	frag, anomalies, err := ParseFragment("a.json", []byte(`{"Nginx": {"cats": [22]}, "Broken": "nope"}`))
	require.NoError(t, err)

	assert.Equal(t, "a.json", frag.Source)
	assert.Contains(t, frag.Technologies, "Nginx")
	assert.NotContains(t, frag.Technologies, "Broken")
	require.Len(t, anomalies, 1)
	assert.Equal(t, "Broken", anomalies[0].Technology)

	_, _, err = ParseFragment("b.json", []byte(`[1, 2]`))
	require.Error(t, err)
}

func TestBuildCatalog_LastFragmentWins(t *testing.T) {
	first := mustFragment(t, "a.json", `{"Nginx": {"cats": [22], "headers": {"Server": "nginx"}}, "PHP": {"url": "\\.php"}}`)
	second := mustFragment(t, "b.json", `{"Nginx": {"cats": [31], "html": "nginx-page"}}`)

	catalog := BuildCatalog(testTaxonomy, first, second)

	require.Equal(t, 2, catalog.Len())
	assert.Equal(t, []string{"Nginx", "PHP"}, catalog.Names())

	nginx, ok := catalog.Get("Nginx")
	require.True(t, ok)
	assert.Equal(t, []CategoryRef{{ID: "31"}}, nginx.Categories)
	assert.Empty(t, nginx.Headers, "definitions are replaced, not merged")
	assert.Len(t, nginx.HTML, 1)
}

func TestBuildCatalog_CompilesSignals(t *testing.T) {
	frag := mustFragment(t, "a.json", `{
		"Demo": {
			"cats": [1],
			"slug": "demo",
			"html": ["<demo>"],
			"script": "inline-demo",
			"scripts": ["bundle-demo"],
			"scriptSrc": "demo\\.js",
			"css": "\\.demo",
			"url": "/demo/",
			"meta": {"generator": "Demo"},
			"headers": {"X-Demo": "", "Server": "demo"},
			"js": {"Demo.version": "^(.+)$\\;version:\\1"},
			"versions": {"2": {"html": "<demo-v2>"}},
			"implies": "Other",
			"website": "https://demo.example"
		}
	}`)
	catalog := BuildCatalog(testTaxonomy, frag)

	demo, ok := catalog.Get("Demo")
	require.True(t, ok)
	assert.Equal(t, "demo", demo.Slug)
	assert.Len(t, demo.HTML, 1)
	assert.Len(t, demo.Script, 2)
	assert.Len(t, demo.ScriptSrc, 1)
	assert.Len(t, demo.CSS, 1)
	assert.Len(t, demo.URL, 1)
	require.Len(t, demo.Headers, 2)
	assert.Equal(t, "Server", demo.Headers[0].Key, "keyed rules are sorted by key")
	require.Len(t, demo.JSGlobals, 1)
	assert.Equal(t, "Demo.version", demo.JSGlobals[0].Key)
	require.Len(t, demo.Versions, 1)
	assert.Equal(t, "2", demo.Versions[0].Name)
	assert.Equal(t, "https://demo.example", demo.Extra["website"])
	assert.NotContains(t, demo.Extra, "implies")
	assert.True(t, demo.HasRules())
}

func TestBuildCatalog_BadPatternIsAnomaly(t *testing.T) {
	frag := mustFragment(t, "a.json", `{"Demo": {"html": ["([broken", "ok"]}}`)
	catalog := BuildCatalog(testTaxonomy, frag)

	demo, _ := catalog.Get("Demo")
	assert.Len(t, demo.HTML, 1)
	require.Len(t, catalog.Anomalies(), 1)
	assert.Equal(t, "html", catalog.Anomalies()[0].Field)
}

func TestCatalog_NilSafe(t *testing.T) {
	var c *Catalog
	assert.Equal(t, 0, c.Len())
	assert.Nil(t, c.Names())
	_, ok := c.Get("x")
	assert.False(t, ok)
	assert.Nil(t, c.Taxonomy())
	assert.Equal(t, 0, c.Stats().Technologies)
}

func TestCatalog_Stats(t *testing.T) {
	frag := mustFragment(t, "a.json", `{
		"A": {"headers": {"Server": "a"}, "html": ["x", "y"]},
		"B": {"meta": {"generator": "b"}, "versions": {"1": {"html": "z"}}}
	}`)
	stats := BuildCatalog(testTaxonomy, frag).Stats()

	assert.Equal(t, 2, stats.Technologies)
	assert.Equal(t, 3, stats.Categories)
	assert.Equal(t, 1, stats.Rules["headers"])
	assert.Equal(t, 3, stats.Rules["html"])
	assert.Equal(t, 1, stats.Rules["meta"])
}

func TestParseFragment_RepeatedJSONKeyKeepsLast(t *testing.T) {
	frag, anomalies, err := ParseFragment("dup.json", []byte(`{
		"Foo": {"cats": [1], "headers": {"X-Foo": "old"}},
		"Foo": {"cats": [22], "headers": {"X-Foo": "new"}}
	}`))
	require.NoError(t, err)
	assert.Empty(t, anomalies)

	foo, ok := BuildCatalog(testTaxonomy, frag).Get("Foo")
	require.True(t, ok)
	assert.Equal(t, []CategoryRef{{ID: "22"}}, foo.Categories)
	require.Len(t, foo.Headers, 1)
	assert.Equal(t, "new", foo.Headers[0].Rules[0].Pattern)
}

func TestParseFragment_YAML(t *testing.T) {
	frag, _, err := ParseFragment("a.yaml", []byte("Caddy:\n  cats: [22]\n  headers:\n    Server: caddy\n"))
	require.NoError(t, err)
	assert.Contains(t, frag.Technologies, "Caddy")
}
