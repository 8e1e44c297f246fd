package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRule_Directives(t *testing.T) {
	rule, err := ParseRule(`jquery[.-]([\d.]+)\.js\;version:\1\;confidence:50`)
	require.NoError(t, err)

	assert.Equal(t, RuleRegex, rule.Kind)
	assert.Equal(t, `jquery[.-]([\d.]+)\.js`, rule.Pattern)
	assert.Equal(t, 50, rule.Confidence)
	assert.Equal(t, `\1`, rule.Version)

	ok, version := rule.Match("/static/jquery-3.7.1.js")
	assert.True(t, ok)
	assert.Equal(t, "3.7.1", version)

	ok, _ = rule.Match("/static/jquery-3.7.1.min.js")
	assert.False(t, ok, "the pattern requires .js right after the version")
}

func TestParseRule_ConfidenceBounds(t *testing.T) {
	assert.Equal(t, 100, MustParseRule(`foo`).Confidence)
	assert.Equal(t, 100, MustParseRule(`foo\;confidence:250`).Confidence)
	assert.Equal(t, 0, MustParseRule(`foo\;confidence:-5`).Confidence)

	_, err := ParseRule(`foo\;confidence:high`)
	require.Error(t, err)
}

func TestParseRule_LiteralVersusRegex(t *testing.T) {
	tests := []struct {
		raw  string
		kind RuleKind
	}{
		{"wp-content", RuleLiteral},
		{"", RuleLiteral},
		{`^cloudflare$`, RuleRegex},
		{`wp\.com`, RuleRegex},
		{`foo(bar)?`, RuleRegex},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.kind, MustParseRule(tt.raw).Kind)
		})
	}
}

func TestRule_MatchIsCaseInsensitive(t *testing.T) {
	ok, _ := MustParseRule("WP-Content").Match("/WP-CONTENT/themes")
	assert.True(t, ok)

	ok, _ = MustParseRule(`^cloudflare$`).Match("CloudFlare")
	assert.True(t, ok)

	ok, _ = MustParseRule(`^cloudflare$`).Match("cloudflare-nginx")
	assert.False(t, ok)
}

func TestRule_EmptyPatternMatchesPresence(t *testing.T) {
	ok, version := MustParseRule("").Match("")
	assert.True(t, ok)
	assert.Empty(t, version)

	ok, _ = MustParseRule(`\;confidence:0`).Match("anything")
	assert.True(t, ok)
}

func TestParseRule_FallsBackForLookarounds(t *testing.T) {
	rule, err := ParseRule(`^React(?!\s+Native)\;confidence:25`)
	require.NoError(t, err)
	require.NotNil(t, rule.fallback, "lookahead needs the backtracking engine")
	assert.Nil(t, rule.re)

	ok, _ := rule.Match("React components for the web")
	assert.True(t, ok)
	ok, _ = rule.Match("React Native for mobile")
	assert.False(t, ok)
}

func TestParseRule_InvalidPattern(t *testing.T) {
	_, err := ParseRule(`([unclosed`)
	require.Error(t, err)
}

func TestExpandVersion(t *testing.T) {
	groups := []string{"whole", "1.2", ""}

	tests := []struct {
		template string
		want     string
	}{
		{"", ""},
		{`\1`, "1.2"},
		{`v\1`, "v1.2"},
		{`\9`, ""},
		{`\1?modern:legacy`, "modern"},
		{`\2?modern:legacy`, "legacy"},
		{"static", "static"},
		{`\1?\1:none`, "1.2"},
	}
	for _, tt := range tests {
		t.Run(tt.template, func(t *testing.T) {
			assert.Equal(t, tt.want, expandVersion(tt.template, groups))
		})
	}
}

func TestRule_CapturedTextIsNotATernary(t *testing.T) {
	rule := MustParseRule(`lib/(.*)\.js\;version:\1`)

	ok, version := rule.Match("lib/a?b:c.js")
	require.True(t, ok)
	assert.Equal(t, "a?b:c", version)
}
