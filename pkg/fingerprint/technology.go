package fingerprint

import (
	"strconv"

	"github.com/spf13/cast"
)

// SignalType names the evidence channel a rule is evaluated against.
type SignalType string

const (
	SignalHeaders   SignalType = "headers"
	SignalMeta      SignalType = "meta"
	SignalScriptSrc SignalType = "scriptSrc"
	SignalScript    SignalType = "script"
	SignalHTML      SignalType = "html"
	SignalURL       SignalType = "url"
	SignalCSS       SignalType = "css"
	SignalJS        SignalType = "js"
)

// KeyedRules are the rules for one header, meta tag or JS global.
type KeyedRules struct {
	Key   string
	Rules []*Rule
}

// Technology is a normalized definition with every pattern parsed.
type Technology struct {
	Name       string
	Slug       string
	Categories []CategoryRef

	HTML      []*Rule
	URL       []*Rule
	Script    []*Rule // script and scripts
	ScriptSrc []*Rule
	CSS       []*Rule
	JS        []*Rule // JS property names
	JSGlobals []KeyedRules
	Meta      []KeyedRules
	Headers   []KeyedRules

	// Versions are version-specific sub-definitions. Their Name is the
	// version label.
	Versions []*Technology

	// Extra holds fields the matcher does not interpret.
	Extra map[string]any
}

var knownFields = map[string]struct{}{
	"name": {}, "slug": {}, "cats": {},
	"html": {}, "url": {}, "script": {}, "scripts": {}, "scriptSrc": {}, "css": {},
	"js": {}, "meta": {}, fieldHeaders: {}, fieldVersions: {},
}

// HasRules reports whether the technology, or one of its version variants,
// carries at least one rule.
func (t *Technology) HasRules() bool {
	if len(t.HTML)+len(t.URL)+len(t.Script)+len(t.ScriptSrc)+len(t.CSS)+len(t.JS)+
		len(t.JSGlobals)+len(t.Meta)+len(t.Headers) > 0 {
		return true
	}
	for _, v := range t.Versions {
		if v.HasRules() {
			return true
		}
	}
	return false
}

// compileTechnology turns a normalized definition into a Technology. Patterns
// that fail to parse are dropped and reported.
func compileTechnology(name string, def RawDefinition) (*Technology, []NormalizationAnomaly) {
	c := compiler{name: name}
	return c.technology(name, def, ""), c.anomalies
}

type compiler struct {
	name      string
	anomalies []NormalizationAnomaly
}

func (c *compiler) technology(name string, def RawDefinition, prefix string) *Technology {
	tech := &Technology{
		Name:       name,
		Slug:       cast.ToString(def["slug"]),
		Categories: parseCategoryRefs(def["cats"]),
		HTML:       c.rules(prefix+"html", def["html"]),
		URL:        c.rules(prefix+"url", def["url"]),
		ScriptSrc:  c.rules(prefix+"scriptSrc", def["scriptSrc"]),
		CSS:        c.rules(prefix+"css", def["css"]),
		Meta:       c.keyed(prefix+"meta", def["meta"]),
		Headers:    c.keyed(prefix+fieldHeaders, def[fieldHeaders]),
	}
	tech.Script = append(c.rules(prefix+"script", def["script"]), c.rules(prefix+"scripts", def["scripts"])...)

	switch js := def["js"].(type) {
	case []string:
		tech.JS = c.rules(prefix+"js", js)
	case map[string][]string:
		tech.JSGlobals = c.keyed(prefix+"js", js)
	}

	switch vs := def[fieldVersions].(type) {
	case []RawDefinition:
		for i, sub := range vs {
			label := cast.ToString(sub["version"])
			if label == "" {
				label = strconv.Itoa(i)
			}
			tech.Versions = append(tech.Versions, c.technology(label, sub, prefix+"versions."+label+"."))
		}
	case map[string]RawDefinition:
		for _, label := range sortedKeys(vs) {
			tech.Versions = append(tech.Versions, c.technology(label, vs[label], prefix+"versions."+label+"."))
		}
	}

	for k, v := range def {
		if _, known := knownFields[k]; known {
			continue
		}
		if tech.Extra == nil {
			tech.Extra = make(map[string]any)
		}
		tech.Extra[k] = v
	}
	return tech
}

func (c *compiler) rules(field string, v any) []*Rule {
	patterns, ok := v.([]string)
	if !ok || len(patterns) == 0 {
		return nil
	}
	rules := make([]*Rule, 0, len(patterns))
	for _, p := range patterns {
		rule, err := ParseRule(p)
		if err != nil {
			c.anomalies = append(c.anomalies, NormalizationAnomaly{
				Technology: c.name,
				Field:      field,
				Reason:     err.Error(),
			})
			continue
		}
		rules = append(rules, rule)
	}
	return rules
}

func (c *compiler) keyed(field string, v any) []KeyedRules {
	m, ok := v.(map[string][]string)
	if !ok || len(m) == 0 {
		return nil
	}
	out := make([]KeyedRules, 0, len(m))
	for _, key := range sortedKeys(m) {
		rules := c.rules(field+"."+key, m[key])
		if len(rules) == 0 {
			continue
		}
		out = append(out, KeyedRules{Key: key, Rules: rules})
	}
	return out
}
