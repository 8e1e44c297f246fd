package evidence

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulntor/webprint/pkg/fingerprint"
)

const page = `<!doctype html>
<html>
<head>
  <meta name="Generator" content="WordPress 6.4.2">
  <meta property="og:site_name" content="Example">
  <meta http-equiv="X-UA-Compatible" content="IE=edge">
  <meta charset="utf-8">
  <style>.bootstrap { color: red }</style>
  <style>   </style>
  <script src="/wp-includes/js/jquery/jquery.min.js?ver=3.7.1"></script>
  <script src=" "></script>
  <script>window.inline = true</script>
</head>
<body></body>
</html>`

func TestFromHTML(t *testing.T) {
	ev, err := FromHTML("https://example.com/", map[string][]string{
		"Server": {"nginx/1.25.3"},
		"server": {"edge"},
	}, []byte(page))
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/", ev.URL)
	assert.Equal(t, page, ev.HTML)
	assert.ElementsMatch(t, []string{"nginx/1.25.3", "edge"}, ev.Headers["server"])
	assert.Equal(t, []string{"WordPress 6.4.2"}, ev.Meta["generator"])
	assert.Equal(t, []string{"Example"}, ev.Meta["og:site_name"])
	assert.Equal(t, []string{"IE=edge"}, ev.Meta["x-ua-compatible"])
	assert.Len(t, ev.Meta, 3)
	assert.Equal(t, []string{"/wp-includes/js/jquery/jquery.min.js?ver=3.7.1"}, ev.Scripts)
	assert.Equal(t, []string{".bootstrap { color: red }"}, ev.CSS)
}

func TestFromHTML_InvalidURL(t *testing.T) {
	_, err := FromHTML("not a url", nil, []byte(page))
	require.Error(t, err)
	assert.ErrorIs(t, err, fingerprint.ErrInvalidEvidence)
}

func TestFromHTML_Detects(t *testing.T) {
	ev, err := FromHTML("https://example.com/", ParseHeaderLines([]string{"Server: nginx/1.25.3"}), []byte(page))
	require.NoError(t, err)

	catalog, _, err := fingerprint.NewEmbeddedLoader(zerolog.Nop()).Load(context.Background())
	require.NoError(t, err)

	names := make(map[string]string)
	for _, tech := range fingerprint.Resolve(fingerprint.Detect(catalog, ev), catalog) {
		names[tech.Name] = tech.Version
	}
	assert.Equal(t, "6.4.2", names["WordPress"])
	assert.Equal(t, "1.25.3", names["Nginx"])
	assert.Equal(t, "3.7.1", names["jQuery"])
}

func TestParseHeaderLines(t *testing.T) {
	headers := ParseHeaderLines([]string{
		"Server: nginx",
		"X-Powered-By:PHP/8.2",
		"Set-Cookie: a=1",
		"set-cookie: b=2",
		"Link: <https://example.com/wp-json/>; rel=\"https://api.w.org/\"",
		"garbage",
		": empty-name",
	})

	assert.Equal(t, []string{"nginx"}, headers["server"])
	assert.Equal(t, []string{"PHP/8.2"}, headers["x-powered-by"])
	assert.Equal(t, []string{"a=1", "b=2"}, headers["set-cookie"])
	assert.Equal(t, []string{`<https://example.com/wp-json/>; rel="https://api.w.org/"`}, headers["link"])
	assert.Len(t, headers, 4)
}
