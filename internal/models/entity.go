package models

import (
	"sort"
	"strings"
	"time"
)

// Pattern groups used by the extractor. Subtype strings are the stable keys
// shared with the graph and the alert triggers; renaming one breaks stored
// correlations.
const (
	EntityGroupCrypto   = "crypto"
	EntityGroupContact  = "contact"
	EntityGroupDocument = "document"
	EntityGroupSocial   = "social"
	EntityGroupUsername = "username"
	EntityGroupAddress  = "address"
	EntityGroupHash     = "hash"
)

// EntityMatch is a single extractor hit in a page's text
type EntityMatch struct {
	Type       string  `json:"type"`    // pattern group
	Subtype    string  `json:"subtype"` // stable pattern key (bitcoin, email, aws_key, ...)
	Value      string  `json:"value"`
	Context    string  `json:"context"` // +/- 50 chars around the match, newlines flattened
	Position   int     `json:"position"`
	Confidence float64 `json:"confidence"`
	Sensitive  bool    `json:"sensitive"`
	Validated  bool    `json:"validated"` // a validator ran and the value passed
}

// Key returns the dedupe identity for a match
func (m *EntityMatch) Key() string {
	return m.Subtype + ":" + strings.ToLower(m.Value)
}

// ExtractionSummary aggregates one extraction run
type ExtractionSummary struct {
	Total          int            `json:"total"`
	ByType         map[string]int `json:"by_type"`
	BySubtype      map[string]int `json:"by_subtype"`
	HighConfidence int            `json:"high_confidence"` // confidence >= 0.8
	Sensitive      int            `json:"sensitive"`
	Validated      int            `json:"validated"`
}

// Entity is a node in the correlation graph. Identity is (Type, lowercased
// Value); sightings that differ only in case collapse into one node.
type Entity struct {
	ID              string                 `json:"id"`
	Type            string                 `json:"type"` // subtype key
	Value           string                 `json:"value"`
	FirstSeen       time.Time              `json:"first_seen"`
	LastSeen        time.Time              `json:"last_seen"`
	OccurrenceCount int                    `json:"occurrence_count"`
	SourceDomains   map[string]bool        `json:"source_domains"`
	SourceURLs      map[string]bool        `json:"source_urls"`
	RiskScore       float64                `json:"risk_score"`
	Tags            []string               `json:"tags"`
	Confidence      float64                `json:"confidence"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
}

// EntityID builds the canonical node id for a (type, value) pair
func EntityID(entityType, value string) string {
	return entityType + ":" + strings.ToLower(strings.TrimSpace(value))
}

// DomainList returns the source domains as a sorted-stable slice for
// API responses
func (e *Entity) DomainList() []string {
	domains := make([]string, 0, len(e.SourceDomains))
	for d := range e.SourceDomains {
		domains = append(domains, d)
	}
	sort.Strings(domains)
	return domains
}

// URLList returns the source URLs as a slice
func (e *Entity) URLList() []string {
	urls := make([]string, 0, len(e.SourceURLs))
	for u := range e.SourceURLs {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls
}

// Edge kinds
const (
	EdgeKindCoOccurrence = "co-occurrence"
	EdgeKindSameDomain   = "same_domain"
	EdgeKindSamePage     = "same_page"
	EdgeKindLinked       = "linked"
)

// EdgeEvidenceLimit bounds the per-edge citation list
const EdgeEvidenceLimit = 10

// Edge is an undirected relation between two entities. The pair is stored
// in canonical order so lookup by (a,b) and (b,a) hits the same record.
type Edge struct {
	A               string    `json:"a"` // entity id, lexicographically <= B
	B               string    `json:"b"`
	Kind            string    `json:"kind"`
	Weight          float64   `json:"weight"`
	FirstSeen       time.Time `json:"first_seen"`
	LastSeen        time.Time `json:"last_seen"`
	OccurrenceCount int       `json:"occurrence_count"`
	Evidence        []string  `json:"evidence"` // last-N source URLs
}

// EdgeKey returns the canonical unordered pair key
func EdgeKey(a, b string) (string, string) {
	if a > b {
		return b, a
	}
	return a, b
}

// AddEvidence appends a citation, keeping only the most recent entries
func (e *Edge) AddEvidence(url string) {
	e.Evidence = append(e.Evidence, url)
	if len(e.Evidence) > EdgeEvidenceLimit {
		e.Evidence = e.Evidence[len(e.Evidence)-EdgeEvidenceLimit:]
	}
}

// Correlation is the scored relationship between two entities
type Correlation struct {
	EntityA          string   `json:"entity_a"`
	EntityB          string   `json:"entity_b"`
	Score            float64  `json:"score"`
	Confidence       float64  `json:"confidence"`
	RelationshipType string   `json:"relationship_type"`
	CommonDomains    []string `json:"common_domains"`
	CommonURLs       []string `json:"common_urls"`
	CommonNeighbors  []string `json:"common_neighbors"`
	Interpretation   string   `json:"interpretation"`
}

// CrossDomainEntity is one row of a cross-domain scan
type CrossDomainEntity struct {
	Entity         *Entity  `json:"entity"`
	DomainCount    int      `json:"domain_count"`
	Domains        []string `json:"domains"`
	Score          float64  `json:"score"`
	Interpretation string   `json:"interpretation"`
}

