package crawler

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/umbra/internal/models"
	"github.com/ternarybob/umbra/internal/services/entities"
)

const defaultReanalyzeLimit = 100

// Reanalyze re-runs extraction over cached bodies without another trip
// through the overlay network. With a domain it walks that domain's cache
// entries; otherwise it walks the most recent pages and reprocesses those
// that still have a cached body. Returns the number of pages updated.
func (e *Engine) Reanalyze(domain string, limit int) (int, error) {
	if e.cache == nil {
		return 0, fmt.Errorf("content cache is disabled; nothing to reanalyze")
	}
	if limit <= 0 {
		limit = defaultReanalyzeLimit
	}

	var cached []*models.CachedPage
	if domain != "" {
		entries, err := e.cache.ListByDomain(domain, limit)
		if err != nil {
			return 0, fmt.Errorf("list cached pages for %s: %w", domain, err)
		}
		cached = entries
	} else {
		pages, err := e.store.RecentPages(limit)
		if err != nil {
			return 0, fmt.Errorf("list recent pages: %w", err)
		}
		for _, page := range pages {
			entry, err := e.cache.Get(page.URL)
			if err != nil || entry == nil {
				continue
			}
			cached = append(cached, entry)
		}
	}

	updated := 0
	for _, entry := range cached {
		if e.reanalyzeOne(entry) {
			updated++
		}
	}

	e.logger.Info().
		Str("domain", domain).
		Int("candidates", len(cached)).
		Int("updated", updated).
		Msg("Reanalysis complete")
	return updated, nil
}

// reanalyzeOne reprocesses a single cached body: fresh title, text, links,
// entity matches and graph ingestion, then an upsert that recomputes the
// risk score. Discovered links are NOT dispatched; reanalysis never grows
// the frontier.
func (e *Engine) reanalyzeOne(entry *models.CachedPage) bool {
	if entry.ContentType != "" && !strings.Contains(entry.ContentType, "text/html") {
		return false
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(entry.Body))
	if err != nil {
		e.logger.Warn().Str("url", entry.URL).Err(err).Msg("Cached body unparsable")
		return false
	}

	page, err := e.store.GetPage(entry.URL)
	if err != nil {
		e.logger.Warn().Str("url", entry.URL).Err(err).Msg("Page lookup failed")
		return false
	}
	if page == nil {
		page = &models.Page{
			URL:       entry.URL,
			Domain:    entry.Domain,
			Status:    http.StatusOK,
			LastCrawl: entry.FetchedAt,
		}
	}

	title := e.analyzer.ExtractTitle(doc)
	text := e.analyzer.ExtractText(doc)

	page.Title = title
	page.Language = e.analyzer.DetectLanguage(text)
	page.Category = e.analyzer.Classify(title, text)
	page.Keywords = e.analyzer.ExtractKeywords(title, text)
	page.OnionLinks = e.analyzer.ExtractLinks(doc, entry.URL)
	page.ContentLength = len(entry.Body)

	matches := e.extractor.Extract(text)
	entities.ApplyToPage(page, matches)
	e.graph.IngestPage(matches, page.Domain, page.URL)

	if err := e.store.SavePage(page); err != nil {
		e.logger.Warn().Str("url", entry.URL).Err(err).Msg("Failed to save reanalyzed page")
		return false
	}
	return true
}
