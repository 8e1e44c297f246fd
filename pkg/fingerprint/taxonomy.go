package fingerprint

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// Category is one entry of the category taxonomy.
type Category struct {
	ID       string `json:"id" yaml:"-"`
	Name     string `json:"name" yaml:"name"`
	Priority int    `json:"priority,omitempty" yaml:"priority"`
}

// Taxonomy maps a category identifier to its category. Identifiers are kept
// as strings; numeric identifiers use their decimal form.
type Taxonomy map[string]Category

// Name returns the display name of the category with the given identifier.
func (t Taxonomy) Name(id string) (string, bool) {
	c, ok := t[id]
	if !ok || c.Name == "" {
		return "", false
	}
	return c.Name, true
}

// ParseTaxonomy parses a categories document. JSON and YAML are both accepted:
//
//	{"1": {"name": "CMS", "priority": 1}, "12": {"name": "JavaScript frameworks"}}
func ParseTaxonomy(data []byte) (Taxonomy, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errors.New("category taxonomy is empty")
	}

	var raw map[string]Category
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode category taxonomy: %w", err)
	}
	if raw == nil {
		return nil, errors.New("category taxonomy is not a mapping")
	}

	taxonomy := make(Taxonomy, len(raw))
	for id, c := range raw {
		c.ID = id
		taxonomy[id] = c
	}
	return taxonomy, nil
}

// TaxonomyFromMap builds a taxonomy from an already decoded structure of the
// form id -> {name: string}.
func TaxonomyFromMap(raw map[string]any) (Taxonomy, error) {
	taxonomy := make(Taxonomy, len(raw))
	for id, v := range raw {
		entry, ok := asStringMap(v)
		if !ok {
			return nil, fmt.Errorf("category %q: expected mapping, got %T", id, v)
		}
		name, err := cast.ToStringE(entry["name"])
		if err != nil {
			return nil, fmt.Errorf("category %q: invalid name: %w", id, err)
		}
		taxonomy[id] = Category{
			ID:       id,
			Name:     name,
			Priority: cast.ToInt(entry["priority"]),
		}
	}
	return taxonomy, nil
}

// CategoryRef is a category reference attached to a technology. Catalogs
// reference categories by bare identifier or by an object carrying its own
// name.
type CategoryRef struct {
	ID   string
	Name string
}

// parseCategoryRefs accepts a single reference or a list of references, each a
// number, a string or a {id, name} mapping.
func parseCategoryRefs(v any) []CategoryRef {
	var items []any
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		items = t
	case []string:
		for _, s := range t {
			items = append(items, s)
		}
	case []int:
		for _, i := range t {
			items = append(items, i)
		}
	default:
		items = []any{t}
	}

	refs := make([]CategoryRef, 0, len(items))
	for _, item := range items {
		if m, ok := asStringMap(item); ok {
			ref := CategoryRef{
				ID:   cast.ToString(m["id"]),
				Name: cast.ToString(m["name"]),
			}
			if ref.ID == "" && ref.Name == "" {
				continue
			}
			refs = append(refs, ref)
			continue
		}
		id, err := cast.ToStringE(item)
		if err != nil || id == "" {
			continue
		}
		refs = append(refs, CategoryRef{ID: id})
	}
	return refs
}
