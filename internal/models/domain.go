package models

import "time"

// Domain policy statuses
const (
	DomainStatusNormal   = "normal"
	DomainStatusFrozen   = "frozen"
	DomainStatusPriority = "priority"
)

// DomainPolicy controls crawl behavior for one hidden-service domain.
// A frozen domain is never dispatched, regardless of frontier contents.
type DomainPolicy struct {
	Domain        string    `json:"domain"`
	Status        string    `json:"status"`
	TrustLevel    int       `json:"trust_level"`
	MaxDepth      int       `json:"max_depth"`  // 0 = engine default
	DelayMS       int       `json:"delay_ms"`   // 0 = engine default
	PriorityBoost int       `json:"priority_boost"`
	Notes         string    `json:"notes,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Frozen reports whether URLs from this domain may be dispatched
func (p *DomainPolicy) Frozen() bool {
	return p != nil && p.Status == DomainStatusFrozen
}

// DomainListEntry is one row of the domain allow/deny list
type DomainListEntry struct {
	Domain   string    `json:"domain"`
	ListType string    `json:"list_type"` // "blacklist" or "whitelist"
	Reason   string    `json:"reason,omitempty"`
	AddedAt  time.Time `json:"added_at"`
}

// DomainProfile is the aggregate view of a domain for the dashboard
type DomainProfile struct {
	Domain       string        `json:"domain"`
	PageCount    int           `json:"page_count"`
	SuccessCount int           `json:"success_count"`
	AvgRisk      float64       `json:"avg_risk"`
	MaxRisk      int           `json:"max_risk"`
	Categories   []string      `json:"categories,omitempty"`
	FirstSeen    time.Time     `json:"first_seen"`
	LastCrawl    time.Time     `json:"last_crawl"`
	Policy       *DomainPolicy `json:"policy,omitempty"`
	Blacklisted  bool          `json:"blacklisted"`
}
