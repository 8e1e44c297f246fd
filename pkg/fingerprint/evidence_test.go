package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvidence(t *testing.T) {
	ev, err := ParseEvidence([]byte(`{
		"url": "https://example.com/",
		"html": "<html></html>",
		"headers": {"Server": ["nginx"], "server": ["edge"]},
		"meta": {"Generator": ["WordPress 6.4"]},
		"scripts": ["/app.js"],
		"js": {"jQuery.fn.jquery": "3.7.1"}
	}`))
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/", ev.URL)
	assert.Equal(t, []string{"nginx", "edge"}, ev.Headers["server"])
	assert.Equal(t, []string{"WordPress 6.4"}, ev.Meta["generator"])
	assert.Equal(t, "3.7.1", ev.JS["jQuery.fn.jquery"])
	assert.False(t, ev.IsEmpty())
}

func TestParseEvidence_Invalid(t *testing.T) {
	for name, doc := range map[string]string{
		"malformed":   `{"url": `,
		"wrong type":  `{"headers": "nginx"}`,
		"invalid url": `{"url": "not a url"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseEvidence([]byte(doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidEvidence)
			assert.Equal(t, 2, ExitCode(err))
		})
	}
}

func TestEvidence_IsEmpty(t *testing.T) {
	assert.True(t, Evidence{}.IsEmpty())
	assert.True(t, Evidence{Headers: map[string][]string{}}.IsEmpty())
	assert.False(t, Evidence{Scripts: []string{"/a.js"}}.IsEmpty())
}

func TestEvidence_NormalizedCopies(t *testing.T) {
	ev := Evidence{Headers: map[string][]string{"X-Powered-By": {"PHP"}}}
	normalized := ev.Normalized()

	assert.Contains(t, normalized.Headers, "x-powered-by")
	assert.Contains(t, ev.Headers, "X-Powered-By")
	assert.Nil(t, normalized.Meta)
}
