package analyzer

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// maxQueryLength is the longest query string kept during normalization.
// Hidden-service session tokens and tracking blobs routinely exceed this;
// dropping them collapses otherwise identical pages into one canonical URL.
const maxQueryLength = 100

// ValidateURL reports whether raw is a crawlable hidden-service URL:
// http or https scheme, a host whose onion label is a valid v2 (16 char)
// or v3 (56 char) base32 address, and a path that is not a blocked
// file extension.
func (a *Analyzer) ValidateURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return false
	}

	host := strings.ToLower(u.Hostname())
	if !strings.HasSuffix(host, ".onion") {
		return false
	}
	if !validOnionLabel(host) {
		return false
	}

	if ext := strings.ToLower(path.Ext(u.Path)); ext != "" && a.ignoredExts[ext] {
		return false
	}

	return true
}

// validOnionLabel checks the label immediately before the .onion suffix:
// 16 base32 chars for v2 addresses, 56 for v3.
func validOnionLabel(host string) bool {
	labels := strings.Split(strings.TrimSuffix(host, ".onion"), ".")
	onionLabel := labels[len(labels)-1]

	if len(onionLabel) != 16 && len(onionLabel) != 56 {
		return false
	}
	for _, c := range onionLabel {
		if (c < 'a' || c > 'z') && (c < '2' || c > '7') {
			return false
		}
	}
	return true
}

// NormalizeURL canonicalizes a URL so visited-set membership and store keys
// are decided on one spelling. Fragments are dropped, oversized query
// strings are dropped, the host is lowercased, and directory-style paths
// get a trailing slash. Normalization is idempotent:
// NormalizeURL(NormalizeURL(u)) == NormalizeURL(u).
func (a *Analyzer) NormalizeURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", raw, err)
	}

	u.Fragment = ""
	if len(u.RawQuery) > maxQueryLength {
		u.RawQuery = ""
	}
	u.Host = strings.ToLower(u.Host)

	if u.Path == "" {
		u.Path = "/"
	} else if !strings.HasSuffix(u.Path, "/") {
		segments := strings.Split(u.Path, "/")
		last := segments[len(segments)-1]
		if !strings.Contains(last, ".") {
			u.Path += "/"
		}
	}

	return u.String(), nil
}

// Domain returns the lowercased netloc of a URL, or "" when unparsable.
func (a *Analyzer) Domain(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
