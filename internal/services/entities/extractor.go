package entities

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/umbra/internal/models"
)

// contextRadius is how many bytes either side of a hit are kept as context.
const contextRadius = 50

// highConfidenceFloor is the summary threshold for a confident match.
const highConfidenceFloor = 0.8

var contextFlattener = strings.NewReplacer("\r", " ", "\n", " ", "\t", " ")

// Extractor scans page text against the pattern catalog. It holds no
// mutable state and is safe for concurrent use by the crawl workers.
type Extractor struct {
	logger arbor.ILogger
}

// New creates an extractor
func New(logger arbor.ILogger) *Extractor {
	return &Extractor{logger: logger}
}

// Extract runs every catalog pattern over the text once and returns the
// deduplicated matches sorted by source position. Duplicates collapse on
// (subtype, lowercased value); the earliest occurrence wins. Confidence is
// the pattern's base value adjusted by the subtype validator.
func (e *Extractor) Extract(text string) []models.EntityMatch {
	if text == "" {
		return nil
	}

	seen := make(map[string]bool)
	var matches []models.EntityMatch

	for i := range catalog {
		p := &catalog[i]
		for _, loc := range p.Regexp.FindAllStringSubmatchIndex(text, -1) {
			start, end := loc[0], loc[1]
			if len(loc) >= 4 && loc[2] >= 0 {
				start, end = loc[2], loc[3]
			}

			m := models.EntityMatch{
				Type:      p.Type,
				Subtype:   p.Subtype,
				Value:     text[start:end],
				Context:   contextWindow(text, loc[0], loc[1]),
				Position:  start,
				Sensitive: p.Sensitive,
			}
			m.Confidence, m.Validated = validate(p.Subtype, m.Value, p.Confidence)

			if seen[m.Key()] {
				continue
			}
			seen[m.Key()] = true
			matches = append(matches, m)
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Position != matches[j].Position {
			return matches[i].Position < matches[j].Position
		}
		return matches[i].Subtype < matches[j].Subtype
	})

	if e.logger != nil && len(matches) > 0 {
		e.logger.Debug().
			Int("matches", len(matches)).
			Int("text_bytes", len(text)).
			Msg("Entity extraction complete")
	}
	return matches
}

// Summarize aggregates one extraction run for logging and API responses
func (e *Extractor) Summarize(matches []models.EntityMatch) models.ExtractionSummary {
	summary := models.ExtractionSummary{
		Total:     len(matches),
		ByType:    make(map[string]int),
		BySubtype: make(map[string]int),
	}
	for i := range matches {
		m := &matches[i]
		summary.ByType[m.Type]++
		summary.BySubtype[m.Subtype]++
		if m.Confidence >= highConfidenceFloor {
			summary.HighConfidence++
		}
		if m.Sensitive {
			summary.Sensitive++
		}
		if m.Validated {
			summary.Validated++
		}
	}
	return summary
}

// contextWindow returns up to contextRadius bytes either side of the hit,
// snapped to rune boundaries, with newlines flattened to spaces.
func contextWindow(text string, start, end int) string {
	from := start - contextRadius
	if from < 0 {
		from = 0
	}
	to := end + contextRadius
	if to > len(text) {
		to = len(text)
	}
	for from > 0 && !utf8.RuneStart(text[from]) {
		from--
	}
	for to < len(text) && !utf8.RuneStart(text[to]) {
		to++
	}
	return contextFlattener.Replace(text[from:to])
}
