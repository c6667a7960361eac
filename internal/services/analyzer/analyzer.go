package analyzer

import (
	"strings"

	"github.com/ternarybob/arbor"
)

// Analyzer provides the pure content-analysis functions the crawl workers
// run over fetched pages: URL validation and canonicalization, link
// extraction, text and title extraction, language detection, category
// classification and tech-stack fingerprinting. It keeps no mutable state
// and is safe for concurrent use.
type Analyzer struct {
	logger      arbor.ILogger
	ignoredExts map[string]bool
}

// New creates an analyzer. ignoredExtensions are lowercase path suffixes
// (".png", ".zip", ...) whose URLs are rejected during validation.
func New(logger arbor.ILogger, ignoredExtensions []string) *Analyzer {
	exts := make(map[string]bool, len(ignoredExtensions))
	for _, ext := range ignoredExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts[ext] = true
	}

	return &Analyzer{
		logger:      logger,
		ignoredExts: exts,
	}
}

// collapseWhitespace flattens runs of whitespace (including newlines) into
// single spaces.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
