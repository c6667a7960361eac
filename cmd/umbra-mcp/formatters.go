package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/umbra/internal/models"
)

// formatSearchResults formats page search hits as markdown
func formatSearchResults(query string, pages []*models.Page) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Search Results for \"%s\" (%d results)\n\n", query, len(pages)))

	if len(pages) == 0 {
		sb.WriteString("No results found.\n")
		return sb.String()
	}

	for i, page := range pages {
		title := page.Title
		if title == "" {
			title = "(untitled)"
		}
		sb.WriteString(fmt.Sprintf("### %d. %s\n", i+1, title))
		sb.WriteString(fmt.Sprintf("**URL:** %s\n", page.URL))
		sb.WriteString(fmt.Sprintf("**Domain:** %s | **Status:** %d | **Depth:** %d | **Risk:** %d\n", page.Domain, page.Status, page.Depth, page.RiskScore))
		if page.Category != "" {
			sb.WriteString(fmt.Sprintf("**Category:** %s\n", page.Category))
		}
		if !page.LastCrawl.IsZero() {
			sb.WriteString(fmt.Sprintf("**Crawled:** %s\n", page.LastCrawl.UTC().Format(time.RFC3339)))
		}
		sb.WriteString("\n---\n\n")
	}

	return sb.String()
}

// formatPage formats a single page with its extracted intel as markdown
func formatPage(page *models.Page) string {
	var sb strings.Builder
	title := page.Title
	if title == "" {
		title = page.URL
	}
	sb.WriteString(fmt.Sprintf("# %s\n\n", title))
	sb.WriteString(fmt.Sprintf("**URL:** %s\n", page.URL))
	sb.WriteString(fmt.Sprintf("**Domain:** %s\n", page.Domain))
	sb.WriteString(fmt.Sprintf("**Status:** %d | **Depth:** %d | **Size:** %d bytes\n", page.Status, page.Depth, page.ContentLength))
	sb.WriteString(fmt.Sprintf("**Risk score:** %d\n", page.RiskScore))
	if page.Category != "" {
		sb.WriteString(fmt.Sprintf("**Category:** %s", page.Category))
		if page.Language != "" {
			sb.WriteString(fmt.Sprintf(" | **Language:** %s", page.Language))
		}
		sb.WriteString("\n")
	}
	if page.IntelFlag != "" {
		sb.WriteString(fmt.Sprintf("**Analyst flag:** %s\n", page.IntelFlag))
	}
	sb.WriteString(fmt.Sprintf("**Found:** %s", page.FoundAt.UTC().Format(time.RFC3339)))
	if !page.LastCrawl.IsZero() {
		sb.WriteString(fmt.Sprintf(" | **Crawled:** %s", page.LastCrawl.UTC().Format(time.RFC3339)))
	}
	sb.WriteString("\n")
	if page.Error != "" {
		sb.WriteString(fmt.Sprintf("**Fetch error:** %s\n", page.Error))
	}

	sb.WriteString("\n## Extracted Intelligence\n\n")
	wrote := false
	if len(page.Emails) > 0 {
		sb.WriteString(fmt.Sprintf("- **Emails (%d):** %s\n", len(page.Emails), strings.Join(page.Emails, ", ")))
		wrote = true
	}
	wrote = writeGrouped(&sb, "Crypto addresses", page.Cryptos) || wrote
	wrote = writeGrouped(&sb, "Secrets", page.Secrets) || wrote
	wrote = writeGrouped(&sb, "Social handles", page.Socials) || wrote
	if len(page.IPLeaks) > 0 {
		sb.WriteString(fmt.Sprintf("- **Leaked IPs (%d):** %s\n", len(page.IPLeaks), strings.Join(page.IPLeaks, ", ")))
		wrote = true
	}
	if len(page.TechStack) > 0 {
		sb.WriteString(fmt.Sprintf("- **Tech stack:** %s\n", strings.Join(page.TechStack, ", ")))
		wrote = true
	}
	if len(page.OnionLinks) > 0 {
		sb.WriteString(fmt.Sprintf("- **Outbound onion links:** %d\n", len(page.OnionLinks)))
		wrote = true
	}
	if len(page.Keywords) > 0 {
		sb.WriteString(fmt.Sprintf("- **Keywords:** %s\n", strings.Join(page.Keywords, ", ")))
		wrote = true
	}
	if !wrote {
		sb.WriteString("Nothing extracted from this page.\n")
	}

	return sb.String()
}

// writeGrouped renders one kind->values intel map, skipping empty groups
func writeGrouped(sb *strings.Builder, label string, groups map[string][]string) bool {
	if len(groups) == 0 {
		return false
	}
	kinds := make([]string, 0, len(groups))
	total := 0
	for kind, values := range groups {
		if len(values) == 0 {
			continue
		}
		kinds = append(kinds, kind)
		total += len(values)
	}
	if total == 0 {
		return false
	}
	sort.Strings(kinds)

	sb.WriteString(fmt.Sprintf("- **%s (%d):**\n", label, total))
	for _, kind := range kinds {
		sb.WriteString(fmt.Sprintf("  - %s: %s\n", kind, strings.Join(groups[kind], ", ")))
	}
	return true
}

// formatStats formats store and graph statistics as markdown
func formatStats(stats *models.StoreStats, graphStats models.GraphStats) string {
	var sb strings.Builder
	sb.WriteString("## Crawl Store\n\n")
	sb.WriteString(fmt.Sprintf("- **Pages stored:** %d (%d fetched OK, %d queued, %d failed)\n",
		stats.TotalPages, stats.SuccessPages, stats.QueuedPages, stats.ErrorPages))
	sb.WriteString(fmt.Sprintf("- **Distinct domains:** %d\n", stats.TotalDomains))
	sb.WriteString(fmt.Sprintf("- **Average risk score:** %.1f (%d pages at 70+)\n", stats.AvgRiskScore, stats.HighRiskPages))
	sb.WriteString(fmt.Sprintf("- **Indicators:** %d emails, %d crypto addresses, %d leaked secrets\n",
		stats.TotalEmails, stats.TotalCryptos, stats.TotalSecrets))

	sb.WriteString("\n## Entity Graph\n\n")
	sb.WriteString(fmt.Sprintf("- **Nodes:** %d | **Edges:** %d | **Domains:** %d\n",
		graphStats.Nodes, graphStats.Edges, graphStats.Domains))
	sb.WriteString(fmt.Sprintf("- **Cross-domain entities:** %d\n", graphStats.CrossDomain))

	if len(graphStats.ByType) > 0 {
		types := make([]string, 0, len(graphStats.ByType))
		for t := range graphStats.ByType {
			types = append(types, t)
		}
		sort.Strings(types)
		sb.WriteString("- **By type:**\n")
		for _, t := range types {
			sb.WriteString(fmt.Sprintf("  - %s: %d\n", t, graphStats.ByType[t]))
		}
	}

	return sb.String()
}

// formatAlerts formats an alert listing as markdown
func formatAlerts(severity string, unreadOnly bool, alerts []*models.Alert) string {
	var sb strings.Builder

	scope := "all severities"
	if severity != "" {
		scope = severity
	}
	if unreadOnly {
		scope += ", unacknowledged only"
	}
	sb.WriteString(fmt.Sprintf("## Alerts (%s, %d results)\n\n", scope, len(alerts)))

	if len(alerts) == 0 {
		sb.WriteString("No alerts found.\n")
		return sb.String()
	}

	for _, alert := range alerts {
		ack := ""
		if alert.Acknowledged {
			ack = " [ack]"
		}
		sb.WriteString(fmt.Sprintf("### %s %s%s\n", strings.ToUpper(string(alert.Severity)), alert.Title, ack))
		sb.WriteString(fmt.Sprintf("**ID:** %s | **Trigger:** %s | **Raised:** %s\n",
			alert.ID, alert.Trigger, alert.Timestamp.UTC().Format(time.RFC3339)))
		if alert.Domain != "" {
			sb.WriteString(fmt.Sprintf("**Domain:** %s\n", alert.Domain))
		}
		if alert.URL != "" {
			sb.WriteString(fmt.Sprintf("**URL:** %s\n", alert.URL))
		}
		sb.WriteString(fmt.Sprintf("\n%s\n", alert.Description))
		if len(alert.Entities) > 0 {
			sb.WriteString(fmt.Sprintf("\n**Entities:** %s\n", strings.Join(alert.Entities, ", ")))
		}
		sb.WriteString("\n---\n\n")
	}

	return sb.String()
}

// formatCrossDomain formats cross-domain entity hits as markdown
func formatCrossDomain(minDomains int, hits []models.CrossDomainEntity) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Cross-Domain Entities (seen on %d+ domains, %d results)\n\n", minDomains, len(hits)))

	if len(hits) == 0 {
		sb.WriteString("No entities span that many domains yet.\n")
		return sb.String()
	}

	for i, hit := range hits {
		sb.WriteString(fmt.Sprintf("### %d. %s `%s`\n", i+1, hit.Entity.Type, hit.Entity.Value))
		sb.WriteString(fmt.Sprintf("**Domains (%d):** %s\n", hit.DomainCount, strings.Join(hit.Domains, ", ")))
		sb.WriteString(fmt.Sprintf("**Score:** %.2f | **Occurrences:** %d\n", hit.Score, hit.Entity.OccurrenceCount))
		if hit.Interpretation != "" {
			sb.WriteString(fmt.Sprintf("\n%s\n", hit.Interpretation))
		}
		sb.WriteString("\n---\n\n")
	}

	return sb.String()
}
