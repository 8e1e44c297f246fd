package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTaxonomy(t *testing.T) {
	taxonomy, err := ParseTaxonomy([]byte(`{"1": {"name": "CMS", "priority": 1}, "31": {"name": "CDN"}}`))
	require.NoError(t, err)

	require.Len(t, taxonomy, 2)
	assert.Equal(t, Category{ID: "1", Name: "CMS", Priority: 1}, taxonomy["1"])

	name, ok := taxonomy.Name("31")
	require.True(t, ok)
	assert.Equal(t, "CDN", name)

	_, ok = taxonomy.Name("99")
	assert.False(t, ok)
}

func TestParseTaxonomy_YAML(t *testing.T) {
	taxonomy, err := ParseTaxonomy([]byte("22:\n  name: Web servers\n"))
	require.NoError(t, err)
	assert.Equal(t, "Web servers", taxonomy["22"].Name)
}

func TestParseTaxonomy_Errors(t *testing.T) {
	for name, doc := range map[string]string{
		"empty":     "   ",
		"not a map": `["CMS"]`,
		"truncated": `{"1": {"name": "CMS"`,
		"null":      "null",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseTaxonomy([]byte(doc))
			require.Error(t, err)
		})
	}
}

func TestTaxonomyFromMap(t *testing.T) {
	taxonomy, err := TaxonomyFromMap(map[string]any{"12": map[string]any{"name": "JavaScript frameworks", "priority": "8"}})
	require.NoError(t, err)
	assert.Equal(t, Category{ID: "12", Name: "JavaScript frameworks", Priority: 8}, taxonomy["12"])

	_, err = TaxonomyFromMap(map[string]any{"12": "JavaScript frameworks"})
	require.Error(t, err)
}

func TestParseCategoryRefs(t *testing.T) {
	refs := parseCategoryRefs([]any{1, "31", map[string]any{"id": 11, "name": "Blogs"}, nil, map[string]any{}})
	assert.Equal(t, []CategoryRef{{ID: "1"}, {ID: "31"}, {ID: "11", Name: "Blogs"}}, refs)

	assert.Equal(t, []CategoryRef{{ID: "22"}}, parseCategoryRefs(22))
	assert.Nil(t, parseCategoryRefs(nil))
}
