package models

import "time"

// AlertSeverity bands gate webhook fanout and dashboard ordering
type AlertSeverity string

const (
	SeverityCritical AlertSeverity = "CRITICAL"
	SeverityHigh     AlertSeverity = "HIGH"
	SeverityMedium   AlertSeverity = "MEDIUM"
	SeverityLow      AlertSeverity = "LOW"
)

// Valid reports whether s is a known severity band
func (s AlertSeverity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// Trigger keys. The set is closed; the alert manager owns the evaluators.
const (
	TriggerRansomwareGroup     = "ransomware_group_mentioned"
	TriggerCredentialsDump     = "credentials_dump_detected"
	TriggerInternalDomain      = "internal_domain_found"
	TriggerKnownMalwareC2      = "known_malware_c2"
	TriggerWalletMajorTx       = "wallet_major_transaction"
	TriggerNewBreachSite       = "new_breach_site"
	TriggerDomainInWatchlist   = "domain_in_watchlist"
	TriggerMultiplePatterns    = "multiple_patterns_same_domain"
	TriggerDomainMirrors       = "domain_mirrors_found"
	TriggerNewVendor           = "new_marketplace_vendor"
	TriggerUnusualActivity     = "unusual_crawl_activity"
	TriggerContentChanged      = "domain_content_changed"
	TriggerNewEmailPattern     = "new_email_pattern"
	TriggerHighRiskScore       = "high_risk_score"
	TriggerCrawlerStatsUpdate  = "crawler_stats_update"
	TriggerPatternDetected     = "pattern_detected"
	TriggerDomainNewPage       = "domain_new_page"
	TriggerQueueMilestone      = "queue_milestone"
	TriggerNewDomainDiscovered = "new_domain_discovered" // declared but not wired to an evaluator
)

// Alert is an immutable event; only the acknowledged fields may change
// after creation.
type Alert struct {
	ID          string                 `json:"id"` // ALT-YYYYMMDDhhmmss-NNNNN, strictly increasing
	Severity    AlertSeverity          `json:"severity"`
	Trigger     string                 `json:"trigger"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Timestamp   time.Time              `json:"timestamp"`
	Domain      string                 `json:"domain,omitempty"`
	URL         string                 `json:"url,omitempty"`
	Entities    []string               `json:"entities,omitempty"` // snapshot of entity values at trigger time
	Metadata    map[string]interface{} `json:"metadata,omitempty"`

	Acknowledged   bool       `json:"acknowledged"`
	AcknowledgedBy string     `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
}

// Watchlists holds the analyst-maintained indicator sets consulted by the
// alert triggers. Loaded from a YAML file at startup.
type Watchlists struct {
	InternalDomains  []string `yaml:"internal_domains" json:"internal_domains"`
	WatchlistDomains []string `yaml:"watchlist_domains" json:"watchlist_domains"`
	WatchlistEmails  []string `yaml:"watchlist_emails" json:"watchlist_emails"`
	WatchlistWallets []string `yaml:"watchlist_wallets" json:"watchlist_wallets"`
}
