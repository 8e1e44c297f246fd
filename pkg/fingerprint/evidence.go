package fingerprint

import (
	"encoding/json"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Evidence is what a collector observed about one page. Header and meta names
// are expected in lower case.
type Evidence struct {
	URL     string              `json:"url" yaml:"url" validate:"omitempty,url"`
	HTML    string              `json:"html" yaml:"html"`
	Headers map[string][]string `json:"headers" yaml:"headers"`
	Meta    map[string][]string `json:"meta" yaml:"meta"`
	Scripts []string            `json:"scripts" yaml:"scripts"`
	// CSS is inline or linked style text, when the collector captured it.
	CSS []string `json:"css,omitempty" yaml:"css"`
	// JS maps probed global variable names to their stringified values.
	JS map[string]string `json:"js,omitempty" yaml:"js"`
}

// ParseEvidence decodes and validates a JSON evidence bundle.
func ParseEvidence(data []byte) (Evidence, error) {
	var ev Evidence
	if err := json.Unmarshal(data, &ev); err != nil {
		return Evidence{}, NewEvidenceError(err)
	}
	if err := ev.Validate(); err != nil {
		return Evidence{}, err
	}
	return ev.Normalized(), nil
}

// Validate checks the bundle's fields.
func (e Evidence) Validate() error {
	if err := validate.Struct(e); err != nil {
		return NewEvidenceError(err)
	}
	return nil
}

// Normalized returns a copy with header and meta names lower-cased. Values
// under names that collide after folding are concatenated.
func (e Evidence) Normalized() Evidence {
	e.Headers = lowerKeys(e.Headers)
	e.Meta = lowerKeys(e.Meta)
	return e
}

// IsEmpty reports whether the bundle carries nothing to match against.
func (e Evidence) IsEmpty() bool {
	return e.URL == "" && e.HTML == "" && len(e.Headers) == 0 && len(e.Meta) == 0 &&
		len(e.Scripts) == 0 && len(e.CSS) == 0 && len(e.JS) == 0
}

func lowerKeys(in map[string][]string) map[string][]string {
	if in == nil {
		return nil
	}
	out := make(map[string][]string, len(in))
	for _, k := range sortedKeys(in) {
		lk := strings.ToLower(k)
		out[lk] = append(out[lk], in[k]...)
	}
	return out
}
