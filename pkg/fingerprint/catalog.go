package fingerprint

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// Fragment is one catalog source: technology name -> raw definition.
type Fragment struct {
	Source       string
	Technologies map[string]RawDefinition
}

// ParseFragment decodes a technology fragment (JSON or YAML object keyed by
// technology name). Entries that are not objects are reported as anomalies and
// left out. A JSON document that repeats a technology name keeps the last
// definition.
func ParseFragment(source string, data []byte) (Fragment, []NormalizationAnomaly, error) {
	var raw map[string]any
	if err := decodeDocument(data, &raw); err != nil {
		return Fragment{}, nil, fmt.Errorf("decode technologies: %w", err)
	}
	if raw == nil {
		return Fragment{}, nil, fmt.Errorf("technologies document is empty or not a mapping")
	}

	frag := Fragment{Source: source, Technologies: make(map[string]RawDefinition, len(raw))}
	var anomalies []NormalizationAnomaly
	for name, v := range raw {
		def, ok := asStringMap(v)
		if !ok {
			anomalies = append(anomalies, NormalizationAnomaly{
				Technology: name,
				Field:      "",
				Reason:     fmt.Sprintf("expected mapping, got %T", v),
			})
			continue
		}
		frag.Technologies[name] = def
	}
	return frag, anomalies, nil
}

// decodeDocument decodes JSON with encoding/json, which accepts repeated keys,
// and anything else as YAML.
func decodeDocument(data []byte, v any) error {
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return json.Unmarshal(trimmed, v)
	}
	return yaml.Unmarshal(data, v)
}

// Catalog is the merged, compiled set of technology definitions. It is
// immutable once built and safe for concurrent use.
type Catalog struct {
	technologies map[string]*Technology
	names        []string
	taxonomy     Taxonomy
	anomalies    []NormalizationAnomaly
}

// BuildCatalog merges fragments in order into one catalog. When several
// fragments define the same technology name, the last fragment wins.
func BuildCatalog(taxonomy Taxonomy, fragments ...Fragment) *Catalog {
	merged := make(map[string]RawDefinition)
	for _, frag := range fragments {
		for name, def := range frag.Technologies {
			merged[name] = def
		}
	}

	c := &Catalog{
		technologies: make(map[string]*Technology, len(merged)),
		taxonomy:     make(Taxonomy, len(taxonomy)),
	}
	for id, cat := range taxonomy {
		c.taxonomy[id] = cat
	}

	for name, raw := range merged {
		normalized, anomalies := NormalizeWithReport(name, raw)
		c.anomalies = append(c.anomalies, anomalies...)

		tech, anomalies := compileTechnology(name, normalized)
		c.anomalies = append(c.anomalies, anomalies...)

		c.technologies[name] = tech
		c.names = append(c.names, name)
	}
	sort.Strings(c.names)
	sort.SliceStable(c.anomalies, func(i, j int) bool {
		return c.anomalies[i].String() < c.anomalies[j].String()
	})
	return c
}

// Len returns the number of technologies in the catalog.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.names)
}

// Get returns the technology with the given name.
func (c *Catalog) Get(name string) (*Technology, bool) {
	if c == nil {
		return nil, false
	}
	tech, ok := c.technologies[name]
	return tech, ok
}

// Names returns the technology names in evaluation order.
func (c *Catalog) Names() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.names...)
}

// Each calls fn for every technology in evaluation order until fn returns false.
func (c *Catalog) Each(fn func(*Technology) bool) {
	if c == nil {
		return
	}
	for _, name := range c.names {
		if !fn(c.technologies[name]) {
			return
		}
	}
}

// Taxonomy returns the category taxonomy the catalog was built with.
func (c *Catalog) Taxonomy() Taxonomy {
	if c == nil {
		return nil
	}
	return c.taxonomy
}

// Anomalies returns the fields dropped while normalizing the catalog.
func (c *Catalog) Anomalies() []NormalizationAnomaly {
	if c == nil {
		return nil
	}
	return append([]NormalizationAnomaly(nil), c.anomalies...)
}

// Stats summarizes the catalog for diagnostics.
type Stats struct {
	Technologies int            `json:"technologies"`
	Categories   int            `json:"categories"`
	Rules        map[string]int `json:"rules"`
	Anomalies    int            `json:"anomalies"`
}

// Stats counts rules per signal type.
func (c *Catalog) Stats() Stats {
	s := Stats{Rules: make(map[string]int)}
	if c == nil {
		return s
	}
	s.Technologies = len(c.names)
	s.Categories = len(c.taxonomy)
	s.Anomalies = len(c.anomalies)
	c.Each(func(t *Technology) bool {
		countRules(t, s.Rules)
		return true
	})
	return s
}

func countRules(t *Technology, into map[string]int) {
	into[string(SignalHTML)] += len(t.HTML)
	into[string(SignalURL)] += len(t.URL)
	into[string(SignalScript)] += len(t.Script)
	into[string(SignalScriptSrc)] += len(t.ScriptSrc)
	into[string(SignalCSS)] += len(t.CSS)
	into[string(SignalJS)] += len(t.JS)
	for _, k := range t.JSGlobals {
		into[string(SignalJS)] += len(k.Rules)
	}
	for _, k := range t.Meta {
		into[string(SignalMeta)] += len(k.Rules)
	}
	for _, k := range t.Headers {
		into[string(SignalHeaders)] += len(k.Rules)
	}
	for _, v := range t.Versions {
		countRules(v, into)
	}
}
