package handlers

import (
	"bytes"
	"net/http"
	"sort"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/umbra/internal/interfaces"
	"github.com/ternarybob/umbra/internal/services/analyzer"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 500
)

// PageHandler serves the stored crawl results: pages, domain profiles,
// the live queue and the crawl timeline.
type PageHandler struct {
	pages    interfaces.PageStorage
	cache    interfaces.ContentCache
	engine   interfaces.CrawlEngine
	analyzer *analyzer.Analyzer
	logger   arbor.ILogger
}

// NewPageHandler creates a new PageHandler. Cache may be nil when the
// content cache is disabled.
func NewPageHandler(pages interfaces.PageStorage, cache interfaces.ContentCache, engine interfaces.CrawlEngine, textAnalyzer *analyzer.Analyzer, logger arbor.ILogger) *PageHandler {
	return &PageHandler{
		pages:    pages,
		cache:    cache,
		engine:   engine,
		analyzer: textAnalyzer,
		logger:   logger,
	}
}

// ListPagesHandler handles GET /api/pages?limit=&q=
// Without q it returns the most recently crawled pages; with q it runs a
// substring search over url, title and extracted text fields.
func (h *PageHandler) ListPagesHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	limit := QueryLimit(r, defaultPageLimit, maxPageLimit)
	query := r.URL.Query().Get("q")

	var (
		pages interface{}
		err   error
	)
	if query != "" {
		pages, err = h.pages.SearchPages(query, limit)
	} else {
		pages, err = h.pages.RecentPages(limit)
	}
	if err != nil {
		h.logger.Error().Err(err).Str("query", query).Msg("Failed to list pages")
		WriteError(w, http.StatusInternalServerError, "Failed to list pages")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"pages": pages,
		"limit": limit,
		"query": query,
	})
}

// PagesByDomainHandler handles GET /api/pages/by-domain?domain=&limit=
func (h *PageHandler) PagesByDomainHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	domain := r.URL.Query().Get("domain")
	if domain == "" {
		WriteError(w, http.StatusBadRequest, "Missing required parameter: domain")
		return
	}

	limit := QueryLimit(r, defaultPageLimit, maxPageLimit)
	pages, err := h.pages.PagesByDomain(domain, limit)
	if err != nil {
		h.logger.Error().Err(err).Str("domain", domain).Msg("Failed to list domain pages")
		WriteError(w, http.StatusInternalServerError, "Failed to list domain pages")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"domain": domain,
		"pages":  pages,
	})
}

// PageContentHandler handles GET /api/pages/content?url=&format=
// Formats: html (raw cached body), markdown, text. The body comes from the
// content cache, never from a live fetch.
func (h *PageHandler) PageContentHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	if h.cache == nil {
		WriteError(w, http.StatusServiceUnavailable, "Content cache is disabled")
		return
	}

	url := r.URL.Query().Get("url")
	if url == "" {
		WriteError(w, http.StatusBadRequest, "Missing required parameter: url")
		return
	}

	entry, err := h.cache.Get(url)
	if err != nil {
		h.logger.Error().Err(err).Str("url", url).Msg("Content cache lookup failed")
		WriteError(w, http.StatusInternalServerError, "Content cache lookup failed")
		return
	}
	if entry == nil {
		WriteError(w, http.StatusNotFound, "No cached content for URL")
		return
	}

	format := r.URL.Query().Get("format")
	switch format {
	case "", "html":
		contentType := entry.ContentType
		if contentType == "" {
			contentType = "text/html; charset=utf-8"
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		w.Write(entry.Body)

	case "markdown":
		converter := md.NewConverter(entry.Domain, true, nil)
		markdown, err := converter.ConvertString(string(entry.Body))
		if err != nil {
			h.logger.Warn().Err(err).Str("url", url).Msg("Markdown conversion failed")
			WriteError(w, http.StatusInternalServerError, "Markdown conversion failed")
			return
		}
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(markdown))

	case "text":
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(entry.Body))
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "Cached body unparsable")
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(h.analyzer.ExtractText(doc)))

	default:
		WriteError(w, http.StatusBadRequest, "Unknown format; expected html, markdown or text")
	}
}

// TimelineHandler handles GET /api/timeline?hours=
func (h *PageHandler) TimelineHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	hours := QueryInt(r, "hours", 24)
	if hours <= 0 {
		hours = 24
	}

	buckets, err := h.pages.TimelineBuckets(hours)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to build timeline")
		WriteError(w, http.StatusInternalServerError, "Failed to build timeline")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"hours":   hours,
		"buckets": buckets,
	})
}

// QueueHandler handles GET /api/queue?limit=&sort=priority|depth|recent
// The snapshot is taken without draining the frontier.
func (h *PageHandler) QueueHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	limit := QueryLimit(r, defaultPageLimit, maxPageLimit)
	entries := h.engine.QueueSnapshot(limit)

	sortKey := r.URL.Query().Get("sort")
	switch sortKey {
	case "", "priority":
		// Snapshot already comes back in pop order.
	case "depth":
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].Depth < entries[j].Depth
		})
	case "recent":
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].EnqueuedAt.After(entries[j].EnqueuedAt)
		})
	default:
		WriteError(w, http.StatusBadRequest, "Unknown sort; expected priority, depth or recent")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"queue": entries,
		"size":  h.engine.Stats().FrontierSize,
		"sort":  sortKey,
	})
}

// DomainsHandler handles GET /api/domains
// Profiles carry their policy and blacklist status when present.
func (h *PageHandler) DomainsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	profiles, err := h.pages.DomainProfiles()
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list domain profiles")
		WriteError(w, http.StatusInternalServerError, "Failed to list domain profiles")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"domains": profiles,
		"count":   len(profiles),
	})
}
