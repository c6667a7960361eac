package models

import (
	"strings"
	"time"
)

const (
	// PageStatusQueued marks a URL that is known but not yet fetched
	PageStatusQueued = 0

	// MaxTitleLength is the longest title the store will persist
	MaxTitleLength = 200
)

// Intel review flags set by an analyst through the dashboard
const (
	IntelFlagNone          = ""
	IntelFlagImportant     = "important"
	IntelFlagFalsePositive = "false_positive"
)

// riskTitleKeywords are the title terms that raise the risk score.
// Each hit adds 5 points.
var riskTitleKeywords = []string{
	"market", "shop", "buy", "sell", "drug", "weapon",
	"hack", "leak", "dump", "card", "fraud", "exploit",
}

// Page represents one crawled hidden-service URL and everything extracted
// from it. Keyed by canonical URL; list and map fields are JSON-encoded in
// the store.
type Page struct {
	// Identity
	URL    string `json:"url"`
	Domain string `json:"domain"`

	// Fetch result
	Title         string `json:"title"`
	Status        int    `json:"status"` // 0 = queued, not yet fetched
	Depth         int    `json:"depth"`
	ContentLength int    `json:"content_length"`
	Error         string `json:"error,omitempty"`

	// Extracted intel
	Secrets    map[string][]string `json:"secrets"`    // kind -> values (aws_key, jwt, ...)
	Cryptos    map[string][]string `json:"cryptos"`    // coin -> addresses
	Socials    map[string][]string `json:"socials"`    // network -> handles
	Emails     []string            `json:"emails"`
	IPLeaks    []string            `json:"ip_leaks"`
	TechStack  []string            `json:"tech_stack"`
	OnionLinks []string            `json:"onion_links"`
	Language   string              `json:"language"`
	Category   string              `json:"category"`
	Keywords   []string            `json:"keywords"`
	RiskScore  int                 `json:"risk_score"`

	// Analyst review state
	IntelFlag string `json:"intel_flag,omitempty"`

	// Timestamps
	FoundAt   time.Time `json:"found_at"`
	LastCrawl time.Time `json:"last_crawl"`
}

// SecretCount returns the number of distinct secret kinds found on the page
func (p *Page) SecretCount() int {
	count := 0
	for _, values := range p.Secrets {
		if len(values) > 0 {
			count++
		}
	}
	return count
}

// CryptoTotal returns the total number of crypto addresses across all coins
func (p *Page) CryptoTotal() int {
	total := 0
	for _, addrs := range p.Cryptos {
		total += len(addrs)
	}
	return total
}

// HasPublicIPLeak reports whether any leaked IP is outside private ranges
func (p *Page) HasPublicIPLeak() bool {
	for _, ip := range p.IPLeaks {
		if !isPrivateIP(ip) {
			return true
		}
	}
	return false
}

// ComputeRiskScore derives the 0-100 risk score from the stored fields.
// The score is a pure function of the page so re-saving an identical page
// always yields the same value.
func (p *Page) ComputeRiskScore() int {
	score := 0

	if n := p.SecretCount(); n > 0 {
		score += minInt(10*n, 30)
	}
	if n := p.CryptoTotal(); n > 0 {
		score += minInt(2*n, 20)
	}
	score += minInt(len(p.Emails), 10)
	if p.HasPublicIPLeak() {
		score += 20
	}

	titleLower := strings.ToLower(p.Title)
	for _, keyword := range riskTitleKeywords {
		if strings.Contains(titleLower, keyword) {
			score += 5
		}
	}

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}

// ClampTitle truncates the title to the persisted maximum
func (p *Page) ClampTitle() {
	if len(p.Title) > MaxTitleLength {
		p.Title = p.Title[:MaxTitleLength]
	}
}

func isPrivateIP(ip string) bool {
	privatePrefixes := []string{
		"10.", "192.168.", "127.", "169.254.",
		"172.16.", "172.17.", "172.18.", "172.19.",
		"172.20.", "172.21.", "172.22.", "172.23.",
		"172.24.", "172.25.", "172.26.", "172.27.",
		"172.28.", "172.29.", "172.30.", "172.31.",
		"0.", "255.",
	}
	for _, prefix := range privatePrefixes {
		if strings.HasPrefix(ip, prefix) {
			return true
		}
	}
	return false
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
