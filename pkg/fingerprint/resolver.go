package fingerprint

import (
	"github.com/Masterminds/semver/v3"
)

// LegacyNames maps legacy numeric technology identifiers to display names.
// Older catalogs keyed some technologies by number only.
var LegacyNames = map[string]string{
	"1221": "Cloudflare",
}

// ResolvedTechnology is a labelled, categorized detection.
type ResolvedTechnology struct {
	Name       string   `json:"name"`
	Legacy     bool     `json:"isLegacy"`
	Categories []string `json:"categories"`
	Confidence int      `json:"confidence"`
	Version    string   `json:"version,omitempty"`
}

// Resolver turns raw detections into display results.
type Resolver struct {
	overrides map[string]string
}

// NewResolver creates a Resolver using LegacyNames extended by overrides.
// Entries in overrides take precedence.
func NewResolver(overrides map[string]string) *Resolver {
	merged := make(map[string]string, len(LegacyNames)+len(overrides))
	for id, name := range LegacyNames {
		merged[id] = name
	}
	for id, name := range overrides {
		if name != "" {
			merged[id] = name
		}
	}
	return &Resolver{overrides: merged}
}

var defaultResolver = NewResolver(nil)

// Resolve resolves detections with the built-in legacy name table.
func Resolve(detections []RawDetection, catalog *Catalog) []ResolvedTechnology {
	return defaultResolver.Resolve(detections, catalog)
}

// Resolve deduplicates detections by technology, keeping the highest
// confidence, and labels each one. Output follows the order of first
// detection. A record that cannot be looked up falls back to raw values; it
// never fails the batch.
func (r *Resolver) Resolve(detections []RawDetection, catalog *Catalog) []ResolvedTechnology {
	if len(detections) == 0 {
		return []ResolvedTechnology{}
	}

	type merged struct {
		confidence int
		version    string
	}
	order := make([]string, 0, len(detections))
	byName := make(map[string]*merged, len(detections))
	for _, d := range detections {
		m, ok := byName[d.Technology]
		if !ok {
			order = append(order, d.Technology)
			byName[d.Technology] = &merged{confidence: d.Confidence, version: d.Version}
			continue
		}
		if d.Confidence > m.confidence {
			m.confidence = d.Confidence
		}
		m.version = preferVersion(m.version, d.Version)
	}

	out := make([]ResolvedTechnology, 0, len(order))
	for _, name := range order {
		m := byName[name]
		tech, _ := catalog.Get(name)
		display, legacy := r.displayName(name, tech)
		out = append(out, ResolvedTechnology{
			Name:       display,
			Legacy:     legacy,
			Categories: categoryNames(tech, catalog.Taxonomy()),
			Confidence: clampConfidence(m.confidence),
			Version:    m.version,
		})
	}
	return out
}

// displayName applies the name chain: override for numeric names, then the
// definition slug, then the raw name.
func (r *Resolver) displayName(name string, tech *Technology) (string, bool) {
	if !isNumeric(name) {
		return name, false
	}
	if display, ok := r.overrides[name]; ok {
		return display, true
	}
	if tech != nil && tech.Slug != "" {
		return tech.Slug, true
	}
	return name, true
}

// categoryNames applies the category chain: taxonomy name, then the name
// embedded in the reference, then the raw identifier.
func categoryNames(tech *Technology, taxonomy Taxonomy) []string {
	names := []string{}
	if tech == nil {
		return names
	}
	for _, ref := range tech.Categories {
		if name, ok := taxonomy.Name(ref.ID); ok {
			names = append(names, name)
			continue
		}
		if ref.Name != "" {
			names = append(names, ref.Name)
			continue
		}
		names = append(names, ref.ID)
	}
	return names
}

// preferVersion keeps the higher semantic version, or the first non-empty one
// when either side does not parse.
func preferVersion(current, candidate string) string {
	if current == "" {
		return candidate
	}
	if candidate == "" || candidate == current {
		return current
	}
	cv, err := semver.NewVersion(current)
	if err != nil {
		return current
	}
	nv, err := semver.NewVersion(candidate)
	if err != nil {
		return current
	}
	if nv.GreaterThan(cv) {
		return candidate
	}
	return current
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
