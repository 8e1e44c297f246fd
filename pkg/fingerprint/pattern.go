package fingerprint

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
)

// RuleKind tells how a Rule evaluates its pattern.
type RuleKind int

const (
	// RuleLiteral is a case-insensitive substring match.
	RuleLiteral RuleKind = iota
	// RuleRegex is a case-insensitive regular expression.
	RuleRegex
)

func (k RuleKind) String() string {
	if k == RuleRegex {
		return "regex"
	}
	return "literal"
}

const (
	defaultConfidence = 100
	directiveSep      = `\;`

	// regexp2 backtracks, so every fallback pattern gets a hard match budget.
	fallbackMatchTimeout = 100 * time.Millisecond
)

var (
	regexMetaChars = []string{`\`, "^", "$", ".", "|", "?", "*", "+", "(", "[", "{"}

	versionGroupRef = regexp.MustCompile(`\\(\d+)`)
	versionTernary  = regexp.MustCompile(`^(.*)\?(.*):(.*)$`)
)

// Rule is a signal pattern parsed once at catalog build time.
//
// Raw patterns use the `\;` directive suffixes of the technology catalog:
//
//	jquery[.-]([\d.]+)\.js\;version:\1\;confidence:50
type Rule struct {
	Kind       RuleKind
	Pattern    string // pattern with directives stripped
	Confidence int    // 0-100, default 100
	Version    string // version template, may reference groups as \N

	literal  string
	re       *regexp.Regexp
	fallback *regexp2.Regexp
}

// ParseRule parses a raw catalog pattern into a Rule.
func ParseRule(raw string) (*Rule, error) {
	parts := strings.Split(raw, directiveSep)
	rule := &Rule{
		Pattern:    parts[0],
		Confidence: defaultConfidence,
	}

	for _, directive := range parts[1:] {
		key, value, ok := strings.Cut(directive, ":")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "confidence":
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return nil, fmt.Errorf("invalid confidence %q: %w", value, err)
			}
			rule.Confidence = clampConfidence(n)
		case "version":
			rule.Version = value
		}
	}

	if rule.Pattern == "" || !hasRegexMeta(rule.Pattern) {
		rule.Kind = RuleLiteral
		rule.literal = strings.ToLower(rule.Pattern)
		return rule, nil
	}

	rule.Kind = RuleRegex
	if re, err := regexp.Compile("(?i)" + rule.Pattern); err == nil {
		rule.re = re
		return rule, nil
	}

	// RE2 rejects lookarounds and backreferences that the catalog uses.
	fallback, err := regexp2.Compile(rule.Pattern, regexp2.IgnoreCase|regexp2.ECMAScript)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", rule.Pattern, err)
	}
	fallback.MatchTimeout = fallbackMatchTimeout
	rule.fallback = fallback
	return rule, nil
}

// MustParseRule is like ParseRule but panics on error. Intended for tests and
// static tables.
func MustParseRule(raw string) *Rule {
	rule, err := ParseRule(raw)
	if err != nil {
		panic(err)
	}
	return rule
}

// Match reports whether value satisfies the rule and returns the resolved
// version, if the rule carries a version template.
func (r *Rule) Match(value string) (bool, string) {
	switch {
	case r.Pattern == "":
		return true, expandVersion(r.Version, nil)
	case r.Kind == RuleLiteral:
		if strings.Contains(strings.ToLower(value), r.literal) {
			return true, expandVersion(r.Version, []string{value})
		}
	case r.re != nil:
		if groups := r.re.FindStringSubmatch(value); groups != nil {
			return true, expandVersion(r.Version, groups)
		}
	case r.fallback != nil:
		m, err := r.fallback.FindStringMatch(value)
		if err != nil || m == nil {
			return false, ""
		}
		captured := m.Groups()
		groups := make([]string, len(captured))
		for i, g := range captured {
			groups[i] = g.String()
		}
		return true, expandVersion(r.Version, groups)
	}
	return false, ""
}

// expandVersion resolves an `a?b:c` ternary on the template, then substitutes
// \N references in the chosen branch. Captured text is never reparsed.
func expandVersion(template string, groups []string) string {
	if template == "" {
		return ""
	}

	out := template
	if m := versionTernary.FindStringSubmatch(template); m != nil {
		if substituteGroups(m[1], groups) != "" {
			out = m[2]
		} else {
			out = m[3]
		}
	}
	return strings.TrimSpace(substituteGroups(out, groups))
}

func substituteGroups(template string, groups []string) string {
	return versionGroupRef.ReplaceAllStringFunc(template, func(ref string) string {
		idx, err := strconv.Atoi(ref[1:])
		if err != nil || idx >= len(groups) {
			return ""
		}
		return groups[idx]
	})
}

func hasRegexMeta(pattern string) bool {
	for _, c := range regexMetaChars {
		if strings.Contains(pattern, c) {
			return true
		}
	}
	return false
}

func clampConfidence(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}
