package analyzer

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractLinks walks anchor and link elements, resolves relative hrefs
// against the base URL, and returns the deduplicated set of validated,
// normalized onion URLs. Fragment-only, javascript:, mailto: and tel:
// hrefs are discarded before resolution.
func (a *Analyzer) ExtractLinks(doc *goquery.Document, baseRaw string) []string {
	base, err := url.Parse(baseRaw)
	if err != nil {
		a.logger.Warn().Err(err).Str("base_url", baseRaw).Msg("Failed to parse base URL for link resolution")
		base = nil
	}

	seen := make(map[string]bool)
	var links []string

	collect := func(href string) {
		href = strings.TrimSpace(href)
		if href == "" || skipHref(href) {
			return
		}

		resolved := resolveHref(href, base)
		if resolved == "" || !a.ValidateURL(resolved) {
			return
		}

		normalized, err := a.NormalizeURL(resolved)
		if err != nil {
			return
		}

		if !seen[normalized] {
			seen[normalized] = true
			links = append(links, normalized)
		}
	}

	doc.Find("a[href]").Each(func(i int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			collect(href)
		}
	})
	doc.Find("link[href]").Each(func(i int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			collect(href)
		}
	})

	return links
}

// skipHref filters pseudo-links before URL resolution
func skipHref(href string) bool {
	lower := strings.ToLower(href)
	return strings.HasPrefix(lower, "#") ||
		strings.HasPrefix(lower, "javascript:") ||
		strings.HasPrefix(lower, "mailto:") ||
		strings.HasPrefix(lower, "tel:") ||
		strings.HasPrefix(lower, "data:")
}

// resolveHref resolves a potentially relative href against the base URL
func resolveHref(href string, base *url.URL) string {
	if base == nil {
		if u, err := url.Parse(href); err == nil && u.IsAbs() {
			return u.String()
		}
		return ""
	}

	resolved, err := base.Parse(href)
	if err != nil {
		return ""
	}
	return resolved.String()
}
