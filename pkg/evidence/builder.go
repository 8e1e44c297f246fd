// Package evidence assembles fingerprint evidence from pages that were already
// captured, such as a saved HTML document and its response headers.
package evidence

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/vulntor/webprint/pkg/fingerprint"
)

// metaNameAttrs are the attributes that name a meta tag, in lookup order.
var metaNameAttrs = []string{"name", "property", "http-equiv"}

// FromHTML builds an evidence bundle from a page URL, its response headers and
// its HTML body. Meta tags, script sources and inline styles are extracted
// from the markup; header names are lower-cased.
func FromHTML(pageURL string, headers map[string][]string, body []byte) (fingerprint.Evidence, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return fingerprint.Evidence{}, fmt.Errorf("parse html: %w", err)
	}

	ev := fingerprint.Evidence{
		URL:     pageURL,
		HTML:    string(body),
		Headers: make(map[string][]string, len(headers)),
		Meta:    make(map[string][]string),
	}
	for name, values := range headers {
		key := strings.ToLower(name)
		ev.Headers[key] = append(ev.Headers[key], values...)
	}

	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		content, ok := s.Attr("content")
		if !ok {
			return
		}
		for _, attr := range metaNameAttrs {
			if name, ok := s.Attr(attr); ok && name != "" {
				key := strings.ToLower(name)
				ev.Meta[key] = append(ev.Meta[key], content)
				return
			}
		}
	})

	doc.Find("script[src]").Each(func(_ int, s *goquery.Selection) {
		if src := strings.TrimSpace(s.AttrOr("src", "")); src != "" {
			ev.Scripts = append(ev.Scripts, src)
		}
	})

	doc.Find("style").Each(func(_ int, s *goquery.Selection) {
		if css := strings.TrimSpace(s.Text()); css != "" {
			ev.CSS = append(ev.CSS, css)
		}
	})

	if err := ev.Validate(); err != nil {
		return fingerprint.Evidence{}, err
	}
	return ev, nil
}

// ParseHeaderLines parses "Name: value" lines into a header map with
// lower-cased names. Lines without a colon are ignored.
func ParseHeaderLines(lines []string) map[string][]string {
	headers := make(map[string][]string, len(lines))
	for _, line := range lines {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		headers[key] = append(headers[key], strings.TrimSpace(value))
	}
	return headers
}
