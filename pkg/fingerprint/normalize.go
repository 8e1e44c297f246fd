package fingerprint

import (
	"fmt"
	"sort"

	"github.com/spf13/cast"
)

// RawDefinition is one technology entry as read from a catalog fragment.
// Values keep whatever shape the source declared.
type RawDefinition map[string]any

var (
	// arrayFields hold an ordered list of patterns.
	arrayFields = []string{"html", "url", "script", "scriptSrc", "scripts", "css"}
	// keyedFields are either a list of patterns or a name -> patterns mapping.
	keyedFields = []string{"meta", "js"}
	// relationalFields describe technology-to-technology edges. The matcher
	// evaluates each technology on its own, so they never survive normalization.
	relationalFields = []string{"requires", "requiresCategory", "implies", "excludes"}
)

const (
	fieldHeaders  = "headers"
	fieldVersions = "versions"
)

// NormalizationAnomaly records a field that had an unexpected shape and was
// dropped. It is informational only.
type NormalizationAnomaly struct {
	Technology string `json:"technology"`
	Field      string `json:"field"`
	Reason     string `json:"reason"`
}

func (a NormalizationAnomaly) String() string {
	if a.Technology == "" {
		return fmt.Sprintf("%s: %s", a.Field, a.Reason)
	}
	return fmt.Sprintf("%s.%s: %s", a.Technology, a.Field, a.Reason)
}

// Normalize converts a raw definition into the canonical evaluation shape:
//
//   - array fields become a non-empty []string or are removed
//   - meta/js become []string or map[string][]string
//   - header values become []string (header names keep their case)
//   - requires/implies/excludes are removed
//   - version sub-definitions are normalized recursively
//
// Unknown fields are copied unchanged. The input is never modified.
func Normalize(raw RawDefinition) RawDefinition {
	out, _ := NormalizeWithReport("", raw)
	return out
}

// NormalizeWithReport is Normalize that also returns the dropped fields.
func NormalizeWithReport(name string, raw RawDefinition) (RawDefinition, []NormalizationAnomaly) {
	n := normalizer{name: name}
	return n.definition(raw, ""), n.anomalies
}

type normalizer struct {
	name      string
	anomalies []NormalizationAnomaly
}

func (n *normalizer) drop(field, format string, args ...any) {
	n.anomalies = append(n.anomalies, NormalizationAnomaly{
		Technology: n.name,
		Field:      field,
		Reason:     fmt.Sprintf(format, args...),
	})
}

func (n *normalizer) definition(raw RawDefinition, prefix string) RawDefinition {
	out := make(RawDefinition, len(raw))
	for k, v := range raw {
		out[k] = v
	}

	for _, field := range relationalFields {
		delete(out, field)
	}

	for _, field := range arrayFields {
		v, ok := out[field]
		if !ok {
			continue
		}
		list, ok := toPatternList(v)
		if !ok {
			delete(out, field)
			n.drop(prefix+field, "expected string or list, got %T", v)
			continue
		}
		out[field] = list
	}

	for _, field := range keyedFields {
		v, ok := out[field]
		if !ok {
			continue
		}
		if list, ok := toPatternList(v); ok {
			out[field] = list
			continue
		}
		if keyed, ok := n.keyedPatterns(prefix+field, v); ok {
			out[field] = keyed
			continue
		}
		delete(out, field)
		n.drop(prefix+field, "expected string, list or mapping, got %T", v)
	}

	if v, ok := out[fieldHeaders]; ok {
		if keyed, ok := n.keyedPatterns(prefix+fieldHeaders, v); ok {
			out[fieldHeaders] = keyed
		} else {
			delete(out, fieldHeaders)
			n.drop(prefix+fieldHeaders, "expected mapping, got %T", v)
		}
	}

	if v, ok := out[fieldVersions]; ok {
		if versions, ok := n.versions(prefix+fieldVersions, v); ok {
			out[fieldVersions] = versions
		} else {
			delete(out, fieldVersions)
			n.drop(prefix+fieldVersions, "expected list or mapping, got %T", v)
		}
	}

	return out
}

// keyedPatterns converts a name -> pattern(s) mapping. Entries whose value is
// neither a string nor a list are dropped; an empty result drops the field.
func (n *normalizer) keyedPatterns(field string, v any) (map[string][]string, bool) {
	m, ok := asStringMap(v)
	if !ok {
		return nil, false
	}
	out := make(map[string][]string, len(m))
	for key, value := range m {
		if value == nil {
			// A bare key means "present with any value".
			out[key] = []string{""}
			continue
		}
		list, ok := toPatternList(value)
		if !ok {
			n.drop(field+"."+key, "expected string or list, got %T", value)
			continue
		}
		out[key] = list
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

func (n *normalizer) versions(field string, v any) (any, bool) {
	switch vs := v.(type) {
	case []any:
		out := make([]RawDefinition, 0, len(vs))
		for i, item := range vs {
			sub, ok := asStringMap(item)
			if !ok {
				n.drop(fmt.Sprintf("%s[%d]", field, i), "expected mapping, got %T", item)
				continue
			}
			out = append(out, n.definition(sub, fmt.Sprintf("%s[%d].", field, i)))
		}
		return out, len(out) > 0
	case []RawDefinition:
		out := make([]RawDefinition, 0, len(vs))
		for i, sub := range vs {
			out = append(out, n.definition(sub, fmt.Sprintf("%s[%d].", field, i)))
		}
		return out, len(out) > 0
	case map[string]RawDefinition:
		out := make(map[string]RawDefinition, len(vs))
		for key, sub := range vs {
			out[key] = n.definition(sub, field+"."+key+".")
		}
		return out, len(out) > 0
	}

	m, ok := asStringMap(v)
	if !ok {
		return nil, false
	}
	out := make(map[string]RawDefinition, len(m))
	for _, key := range sortedKeys(m) {
		sub, ok := asStringMap(m[key])
		if !ok {
			n.drop(field+"."+key, "expected mapping, got %T", m[key])
			continue
		}
		out[key] = n.definition(sub, field+"."+key+".")
	}
	return out, len(out) > 0
}

// toPatternList wraps a bare string into a one-element list and passes lists
// through. Scalar list elements are converted to strings; anything else in a
// list is skipped. An empty result is reported as not ok.
func toPatternList(v any) ([]string, bool) {
	switch t := v.(type) {
	case string:
		return []string{t}, true
	case []string:
		if len(t) == 0 {
			return nil, false
		}
		return append([]string(nil), t...), true
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if item == nil {
				continue
			}
			if _, isMap := asStringMap(item); isMap {
				continue
			}
			s, err := cast.ToStringE(item)
			if err != nil {
				continue
			}
			out = append(out, s)
		}
		if len(out) == 0 {
			return nil, false
		}
		return out, true
	}
	return nil, false
}

// asStringMap accepts both decoder map flavours (encoding/json produces
// map[string]any, YAML may produce map[any]any).
func asStringMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case RawDefinition:
		return m, true
	case map[string]any:
		return m, true
	case map[string]string:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[k] = val
		}
		return out, true
	case map[string][]string:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[k] = val
		}
		return out, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			key, err := cast.ToStringE(k)
			if err != nil {
				return nil, false
			}
			out[key] = val
		}
		return out, true
	}
	return nil, false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
