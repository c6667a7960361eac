package crawler

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"runtime"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/umbra/internal/interfaces"
	"github.com/ternarybob/umbra/internal/models"
	"github.com/ternarybob/umbra/internal/services/entities"
)

// maxBodyBytes caps how much of a response body is read; hidden services
// occasionally serve unbounded streams.
const maxBodyBytes = 2 << 20

// pathKeywords bump frontier priority when they appear in a link's path
var pathKeywords = []string{
	"market", "shop", "buy", "sell", "drug", "weapon",
	"hack", "leak", "dump", "card", "fraud", "exploit",
}

// worker is one member of the crawl pool. It owns its HTTP client and
// loops until the engine stops or the crawl runs dry.
func (e *Engine) worker(id int) {
	defer e.workerWG.Done()

	client := newTorClient(e.logger, e.proxyURL, e.requestTimeout(), e.config.SessionRecycle, &e.generation)
	defer client.Close()

	e.logger.Debug().Int("worker", id).Msg("Worker started")

	for {
		if e.stopRequested() {
			return
		}

		entry := e.frontier.Pop(e.queueTimeout())
		if entry == nil {
			if e.stopRequested() {
				return
			}
			// Sole idle worker looking at an empty frontier: the crawl
			// is finished.
			if !e.isPaused() && e.busy.Load() == 0 && e.frontier.Len() == 0 {
				e.autoStop()
				return
			}
			continue
		}

		e.busy.Add(1)
		e.processEntry(entry, client)
		e.busy.Add(-1)
	}
}

// processEntry crawls one URL end to end. Panics are contained here so a
// poisoned page can never take a worker down.
func (e *Engine) processEntry(entry *models.FrontierEntry, client *TorClient) {
	defer func() {
		if r := recover(); r != nil {
			e.errors.Add(1)
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			e.logger.Error().
				Str("url", entry.URL).
				Str("panic", fmt.Sprintf("%v", r)).
				Str("stack", string(buf[:n])).
				Msg("Worker recovered from panic")
		}
	}()

	domain := e.analyzer.Domain(entry.URL)

	if e.policies.Get(domain).Frozen() {
		e.skipped.Add(1)
		return
	}
	if blocked, err := e.domains.IsBlacklisted(domain); err == nil && blocked {
		e.skipped.Add(1)
		return
	}

	if err := e.limiter.Wait(e.runCtx, domain, e.domainDelay(domain)); err != nil {
		return
	}

	resp, err := e.fetchWithRetry(entry.URL, client)
	e.requests.Add(1)

	page := &models.Page{
		URL:       entry.URL,
		Domain:    domain,
		Depth:     entry.Depth,
		LastCrawl: time.Now(),
	}

	if err != nil {
		page.Error = err.Error()
		e.errors.Add(1)
		e.persist(page)
		e.evaluatePage(page, nil, "")
		e.finishURL(page)
		return
	}
	defer resp.Body.Close()

	page.Status = resp.StatusCode
	contentType := resp.Header.Get("Content-Type")

	if resp.StatusCode != http.StatusOK || !strings.Contains(contentType, "text/html") {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		if resp.StatusCode != http.StatusOK {
			page.Error = http.StatusText(resp.StatusCode)
			e.errors.Add(1)
		} else {
			e.success.Add(1)
		}
		e.persist(page)
		e.evaluatePage(page, nil, "")
		e.finishURL(page)
		return
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		page.Error = fmt.Sprintf("body read: %v", err)
		e.errors.Add(1)
		e.persist(page)
		e.evaluatePage(page, nil, "")
		e.finishURL(page)
		return
	}
	page.ContentLength = len(body)

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		// Unparseable HTML is still a crawled page; record it empty.
		e.parseErrors.Add(1)
		e.logger.Warn().Str("url", entry.URL).Err(err).Msg("Parse failed")
		e.persist(page)
		e.evaluatePage(page, nil, "")
		e.finishURL(page)
		return
	}

	title := e.analyzer.ExtractTitle(doc)
	text := e.analyzer.ExtractText(doc)
	links := e.analyzer.ExtractLinks(doc, entry.URL)

	page.Title = title
	page.Language = e.analyzer.DetectLanguage(text)
	page.Category = e.analyzer.Classify(title, text)
	page.Keywords = e.analyzer.ExtractKeywords(title, text)
	page.TechStack = e.analyzer.FingerprintTech(resp.Header, resp.Cookies())
	page.OnionLinks = links

	matches := e.extractor.Extract(text)
	entities.ApplyToPage(page, matches)

	e.graph.IngestPage(matches, domain, entry.URL)
	e.dispatchLinks(links, entry.Depth+1)
	e.persist(page)
	e.cacheBody(entry.URL, domain, contentType, body)
	e.success.Add(1)

	e.evaluatePage(page, matches, text)
	e.publish(interfaces.EventPageCrawled, map[string]interface{}{
		"url":        page.URL,
		"domain":     page.Domain,
		"title":      page.Title,
		"status":     page.Status,
		"risk_score": page.RiskScore,
		"entities":   len(matches),
	})
	e.finishURL(page)
}

// fetchWithRetry runs the transport retry loop. Only transport errors
// retry; any HTTP response, whatever its status, is a final answer.
func (e *Engine) fetchWithRetry(rawURL string, client *TorClient) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= e.config.MaxRetries; attempt++ {
		if attempt > 0 {
			e.retries.Add(1)
			select {
			case <-e.runCtx.Done():
				return nil, e.runCtx.Err()
			case <-time.After(backoffDelay(attempt)):
			}
		}

		resp, err := client.Fetch(e.runCtx, rawURL)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		e.logger.Debug().
			Str("url", rawURL).
			Int("attempt", attempt+1).
			Str("kind", string(classifyFailure(err))).
			Err(err).
			Msg("Fetch failed")
	}

	return nil, lastErr
}

// dispatchLinks validates and enqueues discovered links at depth
func (e *Engine) dispatchLinks(links []string, depth int) int {
	if e.isDraining() {
		return 0
	}

	added := 0
	for _, link := range links {
		if e.dispatch(link, depth, 0) {
			added++
		}
	}
	return added
}

// dispatch normalizes, validates and enqueues one URL. The visited check
// and insert happen under one lock; losing a race means someone else
// queued it first.
func (e *Engine) dispatch(rawURL string, depth int, extraBoost int) bool {
	normalized, err := e.analyzer.NormalizeURL(rawURL)
	if err != nil || !e.analyzer.ValidateURL(normalized) {
		return false
	}

	domain := e.analyzer.Domain(normalized)
	policy := e.policies.Get(domain)

	maxDepth := policy.MaxDepth
	if maxDepth <= 0 {
		maxDepth = e.config.MaxDepth
	}
	if maxDepth > 0 && depth > maxDepth {
		return false
	}

	e.visitedMu.Lock()
	if e.visited[normalized] || (e.config.MaxPages > 0 && len(e.visited) >= e.config.MaxPages) {
		e.visitedMu.Unlock()
		return false
	}
	e.visited[normalized] = true
	e.visitedMu.Unlock()

	priority := models.DefaultPriority + policy.PriorityBoost + extraBoost + pathKeywordBoost(normalized)
	return e.frontier.Push(models.FrontierEntry{
		URL:      normalized,
		Depth:    depth,
		Priority: priority,
	})
}

// pathKeywordBoost adds 5 per suspicious path keyword, capped at 15
func pathKeywordBoost(rawURL string) int {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return 0
	}
	path := strings.ToLower(parsed.Path)

	boost := 0
	for _, keyword := range pathKeywords {
		if strings.Contains(path, keyword) {
			boost += 5
			if boost >= 15 {
				break
			}
		}
	}
	return boost
}

// persist saves one page; storage failures are logged and the crawl
// continues.
func (e *Engine) persist(page *models.Page) {
	if err := e.store.SavePage(page); err != nil {
		e.logger.Warn().Str("url", page.URL).Err(err).Msg("Failed to persist page")
	}
}

// cacheBody stores the raw body when the content cache is enabled
func (e *Engine) cacheBody(pageURL, domain, contentType string, body []byte) {
	if e.cache == nil {
		return
	}
	err := e.cache.Put(&models.CachedPage{
		URL:         pageURL,
		Domain:      domain,
		ContentType: contentType,
		Body:        body,
		FetchedAt:   time.Now(),
	})
	if err != nil {
		e.logger.Warn().Str("url", pageURL).Err(err).Msg("Failed to cache body")
	}
}

// evaluatePage runs the alert triggers for one crawl outcome
func (e *Engine) evaluatePage(page *models.Page, matches []models.EntityMatch, text string) {
	if e.alerts == nil {
		return
	}
	e.alerts.Evaluate(interfaces.EvaluateInput{
		Content:   text,
		Entities:  matches,
		SiteType:  page.Category,
		RiskScore: page.RiskScore,
		Domain:    page.Domain,
		URL:       page.URL,
		Title:     page.Title,
	})
}

// finishURL updates per-URL bookkeeping shared by every outcome path
func (e *Engine) finishURL(page *models.Page) {
	if e.alerts != nil {
		e.alerts.CheckQueueMilestone(e.visitedCount())
	}

	if n := e.processed.Add(1); n%10 == 0 {
		e.publish(interfaces.EventCrawlProgress, e.Stats())
	}
}
