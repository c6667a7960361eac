package alerts

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/umbra/internal/interfaces"
	"github.com/ternarybob/umbra/internal/models"
	"github.com/ternarybob/umbra/internal/services/entities"
)

// ransomwareGroups are matched as plain substrings against lowercased
// page content.
var ransomwareGroups = []string{
	"lockbit", "alphv", "blackcat", "cl0p", "clop", "conti", "revil",
	"hive", "royal", "blackbasta", "black basta", "medusa", "akira", "ragnar",
}

// credentialIndicators mark a page as a credential dump when at least
// three distinct terms appear across entity values.
var credentialIndicators = []string{
	"password", "passwd", "credential", "combo", "dump",
	"leak", "database", "login", "stealer", "logs",
}

// knownC2Domains ships empty; deployments tracking active infrastructure
// fill it in.
var knownC2Domains = map[string]bool{}

const (
	credentialTermMin  = 3
	entityBurstMin     = 5
	mirrorTitleMinLen  = 12
	mirrorDomainCount  = 3 // the page's own domain plus two others
	riskAlertThreshold = 70
	burstPagesPerMin   = 100
	contentDeltaRatio  = 0.5
)

// pendingAlert is one trigger decision awaiting CreateAlert
type pendingAlert struct {
	severity    models.AlertSeverity
	trigger     string
	title       string
	description string
	actx        interfaces.AlertContext
}

// Evaluate runs every wired trigger against one crawled page and raises
// the alerts that fire, ordered CRITICAL first. Trigger state is read and
// updated under stateMu; alerts are created after it is released.
func (m *Manager) Evaluate(input interfaces.EvaluateInput) []*models.Alert {
	content := strings.ToLower(input.Content)
	domain := strings.ToLower(strings.TrimSpace(input.Domain))
	siteType := strings.ToLower(strings.TrimSpace(input.SiteType))
	page := interfaces.AlertContext{Domain: domain, URL: input.URL}

	var hits []pendingAlert

	if groups := matchSubstrings(content, ransomwareGroups); len(groups) > 0 {
		hits = append(hits, pendingAlert{
			severity:    models.SeverityCritical,
			trigger:     models.TriggerRansomwareGroup,
			title:       "Ransomware group mentioned",
			description: fmt.Sprintf("page content references %s", strings.Join(groups, ", ")),
			actx:        page.WithEntities(groups),
		})
	}

	if terms := credentialTerms(input.Entities); len(terms) >= credentialTermMin {
		hits = append(hits, pendingAlert{
			severity:    models.SeverityCritical,
			trigger:     models.TriggerCredentialsDump,
			title:       "Credential dump indicators",
			description: fmt.Sprintf("%d indicator terms in extracted entities: %s", len(terms), strings.Join(terms, ", ")),
			actx:        page.WithEntities(entityValues(input.Entities, entityBurstMin)),
		})
	}

	if indicator := matchIndicator(m.watch.internalIndicators(), content, input.Entities); indicator != "" {
		hits = append(hits, pendingAlert{
			severity:    models.SeverityCritical,
			trigger:     models.TriggerInternalDomain,
			title:       "Internal indicator sighted",
			description: fmt.Sprintf("watched indicator %q appears on this page", indicator),
			actx:        page.WithEntities([]string{indicator}),
		})
	}

	if knownC2Domains[domain] {
		hits = append(hits, pendingAlert{
			severity:    models.SeverityCritical,
			trigger:     models.TriggerKnownMalwareC2,
			title:       "Known C2 infrastructure",
			description: fmt.Sprintf("%s is on the known command-and-control list", domain),
			actx:        page,
		})
	}

	// The classifier emits leak_dump; breach_market is the external
	// vocabulary for the same thing.
	if siteType == "breach_market" || siteType == "leak_dump" {
		hits = append(hits, pendingAlert{
			severity:    models.SeverityHigh,
			trigger:     models.TriggerNewBreachSite,
			title:       "Breach or leak site",
			description: fmt.Sprintf("page classified as %s", siteType),
			actx:        page,
		})
	}

	if m.watch.isWatchedDomain(domain) {
		hits = append(hits, pendingAlert{
			severity:    models.SeverityHigh,
			trigger:     models.TriggerDomainInWatchlist,
			title:       "Watchlist domain crawled",
			description: fmt.Sprintf("%s is on the domain watchlist", domain),
			actx:        page,
		})
	}

	if len(input.Entities) >= entityBurstMin {
		hits = append(hits, pendingAlert{
			severity:    models.SeverityHigh,
			trigger:     models.TriggerMultiplePatterns,
			title:       fmt.Sprintf("%d entities on one page", len(input.Entities)),
			description: fmt.Sprintf("%s yielded %d entity matches in a single crawl", input.URL, len(input.Entities)),
			actx:        page.WithEntities(entityValues(input.Entities, entityBurstMin)),
		})
	}

	m.stateMu.Lock()
	mirrors := m.recordTitle(input.Title, domain)
	vendors := m.recordVendors(siteType, domain, input.Entities)
	burst := m.recordCrawl(time.Now())
	delta, changed := m.recordContentLength(input.URL, len(input.Content))
	providers := m.recordEmailProviders(input.Entities)
	patterns := m.recordSensitivePatterns(domain, input.Entities)
	m.stateMu.Unlock()

	if len(mirrors) > 0 {
		hits = append(hits, pendingAlert{
			severity:    models.SeverityHigh,
			trigger:     models.TriggerDomainMirrors,
			title:       "Possible mirror sites",
			description: fmt.Sprintf("title %q also seen on %s", input.Title, strings.Join(mirrors, ", ")),
			actx:        page.WithEntities(mirrors),
		})
	}

	if len(vendors) > 0 {
		hits = append(hits, pendingAlert{
			severity:    models.SeverityHigh,
			trigger:     models.TriggerNewVendor,
			title:       "New marketplace vendor handle",
			description: fmt.Sprintf("first sighting of %s on a marketplace page", strings.Join(vendors, ", ")),
			actx:        page.WithEntities(vendors),
		})
	}

	if burst > 0 {
		hits = append(hits, pendingAlert{
			severity:    models.SeverityMedium,
			trigger:     models.TriggerUnusualActivity,
			title:       "Crawl burst",
			description: fmt.Sprintf("%d pages evaluated inside one minute", burst),
			actx:        interfaces.AlertContext{Metadata: map[string]interface{}{"pages_per_minute": burst}},
		})
	}

	if changed {
		hits = append(hits, pendingAlert{
			severity:    models.SeverityMedium,
			trigger:     models.TriggerContentChanged,
			title:       "Page content changed",
			description: fmt.Sprintf("%s content length moved %.0f%% since the last crawl", input.URL, delta*100),
			actx:        page,
		})
	}

	for _, provider := range providers {
		hits = append(hits, pendingAlert{
			severity:    models.SeverityMedium,
			trigger:     models.TriggerNewEmailPattern,
			title:       "New email provider",
			description: fmt.Sprintf("first sighting of @%s addresses", provider),
			actx:        page.WithEntities([]string{provider}),
		})
	}

	if input.RiskScore >= riskAlertThreshold {
		hits = append(hits, pendingAlert{
			severity:    models.SeverityMedium,
			trigger:     models.TriggerHighRiskScore,
			title:       fmt.Sprintf("High risk page (score %d)", input.RiskScore),
			description: input.URL,
			actx:        page,
		})
	}

	if len(patterns) > 0 {
		hits = append(hits, pendingAlert{
			severity:    models.SeverityLow,
			trigger:     models.TriggerPatternDetected,
			title:       "Sensitive pattern on new domain",
			description: fmt.Sprintf("%s first seen on %s", strings.Join(patterns, ", "), domain),
			actx:        page.WithEntities(patterns),
		})
	}

	raised := make([]*models.Alert, 0, len(hits))
	for _, hit := range hits {
		if alert := m.CreateAlert(hit.severity, hit.trigger, hit.title, hit.description, hit.actx); alert != nil {
			raised = append(raised, alert)
		}
	}
	return raised
}

// recordTitle tracks which domains carry each page title and reports the
// other domains once a title spans enough of them, at most once per title.
// Caller holds stateMu.
func (m *Manager) recordTitle(title, domain string) []string {
	normalized := strings.ToLower(strings.TrimSpace(title))
	if len(normalized) < mirrorTitleMinLen || domain == "" {
		return nil
	}

	set := m.titleDomains[normalized]
	if set == nil {
		set = make(map[string]bool)
		m.titleDomains[normalized] = set
	}
	set[domain] = true

	if len(set) < mirrorDomainCount || m.mirrorAlerted[normalized] {
		return nil
	}
	m.mirrorAlerted[normalized] = true

	others := make([]string, 0, len(set)-1)
	for d := range set {
		if d != domain {
			others = append(others, d)
		}
	}
	sort.Strings(others)
	return others
}

// recordVendors returns handles not seen on any marketplace page before.
// Caller holds stateMu.
func (m *Manager) recordVendors(siteType, domain string, matches []models.EntityMatch) []string {
	if siteType != "marketplace" {
		return nil
	}

	var fresh []string
	for _, match := range matches {
		if match.Subtype != entities.SubtypeUsername && match.Subtype != entities.SubtypeTelegram {
			continue
		}
		handle := strings.ToLower(match.Value)
		if handle == "" || m.seenVendors[handle] {
			continue
		}
		m.seenVendors[handle] = true
		fresh = append(fresh, match.Value)
	}
	sort.Strings(fresh)
	return fresh
}

// recordCrawl maintains the rolling one-minute page counter and returns it
// when it crosses the burst threshold, at most once per minute. Caller
// holds stateMu.
func (m *Manager) recordCrawl(now time.Time) int {
	cutoff := now.Add(-time.Minute)
	kept := m.crawlTimes[:0]
	for _, t := range m.crawlTimes {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	m.crawlTimes = append(kept, now)

	if len(m.crawlTimes) <= burstPagesPerMin {
		return 0
	}
	if now.Sub(m.lastBurstAlert) < time.Minute {
		return 0
	}
	m.lastBurstAlert = now
	return len(m.crawlTimes)
}

// recordContentLength compares the page body length against the previous
// crawl of the same URL. Caller holds stateMu.
func (m *Manager) recordContentLength(url string, length int) (float64, bool) {
	previous, seen := m.contentLengths[url]
	m.contentLengths[url] = length
	if !seen || previous == 0 || length == 0 {
		return 0, false
	}

	delta := float64(length-previous) / float64(previous)
	if delta < 0 {
		delta = -delta
	}
	return delta, delta > contentDeltaRatio
}

// recordEmailProviders returns provider domains sighted for the first
// time. Caller holds stateMu.
func (m *Manager) recordEmailProviders(matches []models.EntityMatch) []string {
	var fresh []string
	for _, match := range matches {
		if match.Subtype != entities.SubtypeEmail {
			continue
		}
		at := strings.LastIndex(match.Value, "@")
		if at < 0 || at == len(match.Value)-1 {
			continue
		}
		provider := strings.ToLower(match.Value[at+1:])
		if m.seenProviders[provider] {
			continue
		}
		m.seenProviders[provider] = true
		fresh = append(fresh, provider)
	}
	sort.Strings(fresh)
	return fresh
}

// recordSensitivePatterns returns sensitive subtypes not seen on this
// domain before. Caller holds stateMu.
func (m *Manager) recordSensitivePatterns(domain string, matches []models.EntityMatch) []string {
	if domain == "" {
		return nil
	}

	var fresh []string
	for _, match := range matches {
		if !match.Sensitive {
			continue
		}
		key := domain + "|" + match.Subtype
		if m.seenPatterns[key] {
			continue
		}
		m.seenPatterns[key] = true
		fresh = append(fresh, match.Subtype)
	}
	sort.Strings(fresh)
	return fresh
}

func matchSubstrings(content string, needles []string) []string {
	var found []string
	for _, needle := range needles {
		if strings.Contains(content, needle) {
			found = append(found, needle)
		}
	}
	return found
}

// matchIndicator reports the first watched indicator appearing in the page
// content or any entity value. Indicators are stored lowercased.
func matchIndicator(indicators []string, content string, matches []models.EntityMatch) string {
	for _, indicator := range indicators {
		if indicator == "" {
			continue
		}
		if strings.Contains(content, indicator) {
			return indicator
		}
		for _, match := range matches {
			if strings.Contains(strings.ToLower(match.Value), indicator) {
				return indicator
			}
		}
	}
	return ""
}

// credentialTerms returns the distinct indicator terms present across
// entity values, sorted.
func credentialTerms(matches []models.EntityMatch) []string {
	found := make(map[string]bool)
	for _, match := range matches {
		value := strings.ToLower(match.Value)
		for _, term := range credentialIndicators {
			if strings.Contains(value, term) {
				found[term] = true
			}
		}
	}

	terms := make([]string, 0, len(found))
	for term := range found {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms
}

// entityValues snapshots up to limit entity values for alert context
func entityValues(matches []models.EntityMatch, limit int) []string {
	if limit <= 0 || limit > len(matches) {
		limit = len(matches)
	}
	values := make([]string, 0, limit)
	for _, match := range matches[:limit] {
		values = append(values, match.Value)
	}
	return values
}
