package graph

import (
	"fmt"
	"sort"

	"github.com/ternarybob/umbra/internal/models"
)

// Correlation score bands
const (
	correlationCritical = 0.9
	correlationHigh     = 0.7
	correlationMedium   = 0.4
	correlationLow      = 0.2
)

// Correlate scores the relationship between two nodes. The score sums four
// capped contributions: shared domains, shared URLs, the direct edge weight
// and shared neighbors, clamped to 1.0. Confidence grows with how often both
// entities have been sighted.
func (g *Graph) Correlate(aID, bID string) (*models.Correlation, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	a, ok := g.nodes[aID]
	if !ok {
		return nil, fmt.Errorf("unknown entity %q", aID)
	}
	b, ok := g.nodes[bID]
	if !ok {
		return nil, fmt.Errorf("unknown entity %q", bID)
	}

	commonDomains := intersectKeys(a.SourceDomains, b.SourceDomains)
	commonURLs := intersectKeys(a.SourceURLs, b.SourceURLs)
	commonNeighbors := intersectKeys(g.adjacency[aID], g.adjacency[bID])

	score := capped(0.2*float64(len(commonDomains)), 0.6)
	score += capped(0.3*float64(len(commonURLs)), 0.9)
	score += capped(0.1*float64(len(commonNeighbors)), 0.3)

	relationship := "none"
	keyA, keyB := models.EdgeKey(aID, bID)
	if edge, ok := g.edges[keyA+"|"+keyB]; ok {
		score += 0.2 * edge.Weight
		relationship = edge.Kind
	} else if len(commonDomains) > 0 {
		relationship = models.EdgeKindSameDomain
	} else if len(commonNeighbors) > 0 {
		relationship = models.EdgeKindLinked
	}

	if score > 1 {
		score = 1
	}

	avgOccurrence := float64(a.OccurrenceCount+b.OccurrenceCount) / 2
	confidence := 0.5 + 0.1*avgOccurrence
	if confidence > 0.95 {
		confidence = 0.95
	}

	return &models.Correlation{
		EntityA:          aID,
		EntityB:          bID,
		Score:            score,
		Confidence:       confidence,
		RelationshipType: relationship,
		CommonDomains:    commonDomains,
		CommonURLs:       commonURLs,
		CommonNeighbors:  commonNeighbors,
		Interpretation:   interpretCorrelation(score),
	}, nil
}

// CorrelationBand maps a score to its severity band name
func CorrelationBand(score float64) string {
	switch {
	case score >= correlationCritical:
		return "CRITICAL"
	case score >= correlationHigh:
		return "HIGH"
	case score >= correlationMedium:
		return "MEDIUM"
	case score >= correlationLow:
		return "LOW"
	default:
		return "NONE"
	}
}

func interpretCorrelation(score float64) string {
	switch {
	case score >= correlationCritical:
		return "CRITICAL: entities are almost certainly operated together"
	case score >= correlationHigh:
		return "HIGH: entities frequently appear together"
	case score >= correlationMedium:
		return "MEDIUM: entities share context"
	case score >= correlationLow:
		return "LOW: limited shared context"
	default:
		return "NONE: no meaningful link"
	}
}

// CrossDomain returns entities sighted on at least minDomains distinct
// domains, widest spread first. minDomains below 2 is raised to 2.
func (g *Graph) CrossDomain(minDomains int) []models.CrossDomainEntity {
	if minDomains < 2 {
		minDomains = 2
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []models.CrossDomainEntity
	for _, node := range g.nodes {
		count := len(node.SourceDomains)
		if count < minDomains {
			continue
		}

		score := 0.3*float64(count-1) + 0.02*float64(node.OccurrenceCount)
		if score > 1 {
			score = 1
		}
		dup := copyEntity(node)
		out = append(out, models.CrossDomainEntity{
			Entity:         dup,
			DomainCount:    count,
			Domains:        dup.DomainList(),
			Score:          score,
			Interpretation: interpretSpread(score),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].DomainCount != out[j].DomainCount {
			return out[i].DomainCount > out[j].DomainCount
		}
		return out[i].Entity.ID < out[j].Entity.ID
	})
	return out
}

func interpretSpread(score float64) string {
	switch {
	case score >= 0.9:
		return "CRITICAL: entity spans many domains, likely a shared operator or service"
	case score >= 0.6:
		return "HIGH: entity reused across several domains"
	case score >= 0.3:
		return "MEDIUM: entity appears on multiple domains"
	default:
		return "LOW: entity mostly confined to one domain"
	}
}

// Correlations enumerates all scored pairs at or above minScore. Pairs are
// only considered when they share at least one domain, URL or edge, keeping
// the scan far below the full n-squared sweep.
func (g *Graph) Correlations(minScore float64) []models.Correlation {
	g.mu.RLock()
	candidate := make(map[string]bool)
	for key := range g.edges {
		candidate[key] = true
	}
	for _, ids := range g.domainIndex {
		ordered := make([]string, 0, len(ids))
		for id := range ids {
			ordered = append(ordered, id)
		}
		sort.Strings(ordered)
		for i := 0; i < len(ordered); i++ {
			for j := i + 1; j < len(ordered); j++ {
				candidate[ordered[i]+"|"+ordered[j]] = true
			}
		}
	}
	g.mu.RUnlock()

	var out []models.Correlation
	for key := range candidate {
		aID, bID := splitPairKey(key)
		if aID == "" || bID == "" {
			continue
		}
		correlation, err := g.Correlate(aID, bID)
		if err != nil {
			continue
		}
		if correlation.Score >= minScore {
			out = append(out, *correlation)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].EntityA != out[j].EntityA {
			return out[i].EntityA < out[j].EntityA
		}
		return out[i].EntityB < out[j].EntityB
	})
	return out
}

func intersectKeys(a, b map[string]bool) []string {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	var out []string
	for k := range small {
		if large[k] {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func capped(value, limit float64) float64 {
	if value > limit {
		return limit
	}
	return value
}

func splitPairKey(key string) (string, string) {
	for i := 0; i < len(key); i++ {
		if key[i] == '|' {
			return key[:i], key[i+1:]
		}
	}
	return "", ""
}
