package graph

import (
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/umbra/internal/models"
	"github.com/ternarybob/umbra/internal/services/entities"
)

// samePageEdgeCap bounds pairwise edge creation for a single page. Dump
// pages can carry thousands of distinct values; full pairwise expansion on
// those would swamp memory for little analytic value.
const samePageEdgeCap = 500

// Graph is the in-memory entity knowledge graph. Nodes are keyed by
// (type, lowercased value); edges are undirected co-occurrence relations.
// The graph is a projection of the page store and is refilled from it on
// startup, so it is never persisted itself.
type Graph struct {
	mu          sync.RWMutex
	nodes       map[string]*models.Entity
	edges       map[string]*models.Edge
	typeIndex   map[string]map[string]bool
	domainIndex map[string]map[string]bool
	adjacency   map[string]map[string]bool
	logger      arbor.ILogger
}

// New creates an empty graph
func New(logger arbor.ILogger) *Graph {
	return &Graph{
		nodes:       make(map[string]*models.Entity),
		edges:       make(map[string]*models.Edge),
		typeIndex:   make(map[string]map[string]bool),
		domainIndex: make(map[string]map[string]bool),
		adjacency:   make(map[string]map[string]bool),
		logger:      logger,
	}
}

// AddEntity records one sighting of (entityType, value) on sourceURL.
// Idempotent on identity: a second sighting updates occurrence count, seen
// times and source sets instead of creating a new node. Returns the node id.
func (g *Graph) AddEntity(entityType, value, sourceDomain, sourceURL string, metadata map[string]interface{}) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.addLocked(entityType, value, sourceDomain, sourceURL, 0.5, false, metadata)
}

func (g *Graph) addLocked(entityType, value, sourceDomain, sourceURL string, confidence float64, sensitive bool, metadata map[string]interface{}) string {
	id := models.EntityID(entityType, value)
	now := time.Now()

	node, ok := g.nodes[id]
	if !ok {
		node = &models.Entity{
			ID:            id,
			Type:          entityType,
			Value:         value,
			FirstSeen:     now,
			SourceDomains: make(map[string]bool),
			SourceURLs:    make(map[string]bool),
		}
		if sensitive {
			node.Tags = append(node.Tags, "sensitive")
		}
		g.nodes[id] = node

		if g.typeIndex[entityType] == nil {
			g.typeIndex[entityType] = make(map[string]bool)
		}
		g.typeIndex[entityType][id] = true
	}

	node.LastSeen = now
	node.OccurrenceCount++
	if confidence > node.Confidence {
		node.Confidence = confidence
	}
	if sourceDomain != "" {
		node.SourceDomains[sourceDomain] = true
		if g.domainIndex[sourceDomain] == nil {
			g.domainIndex[sourceDomain] = make(map[string]bool)
		}
		g.domainIndex[sourceDomain][id] = true
	}
	if sourceURL != "" {
		node.SourceURLs[sourceURL] = true
	}
	for k, v := range metadata {
		if node.Metadata == nil {
			node.Metadata = make(map[string]interface{})
		}
		node.Metadata[k] = v
	}
	node.RiskScore = nodeRisk(node, sensitive)

	return id
}

// nodeRisk derives a node's 0..1 risk from its confidence, sensitivity and
// domain spread.
func nodeRisk(node *models.Entity, sensitive bool) float64 {
	base := node.Confidence * 0.5
	if sensitive {
		base = node.Confidence
	}
	risk := base + 0.1*float64(len(node.SourceDomains)-1)
	if risk > 1 {
		risk = 1
	}
	if risk < 0 {
		risk = 0
	}
	return risk
}

// IngestPage adds every extracted match from one page and connects each
// unordered pair with a same-page edge. The whole page lands under a single
// lock acquisition, so readers never observe a partially ingested page.
// Returns the number of matches ingested.
func (g *Graph) IngestPage(matches []models.EntityMatch, domain, url string) int {
	if len(matches) == 0 {
		return 0
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	ids := make([]string, 0, len(matches))
	for i := range matches {
		m := &matches[i]
		meta := map[string]interface{}{"group": m.Type}
		id := g.addLocked(m.Subtype, m.Value, domain, url, m.Confidence, m.Sensitive, meta)
		ids = append(ids, id)
	}

	if len(ids) > samePageEdgeCap {
		if g.logger != nil {
			g.logger.Warn().
				Str("url", url).
				Int("entities", len(ids)).
				Msg("Entity count above pairwise edge cap, skipping co-occurrence edges")
		}
		return len(ids)
	}

	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			g.ensureEdgeLocked(ids[i], ids[j], models.EdgeKindSamePage, url)
		}
	}
	return len(ids)
}

func (g *Graph) ensureEdgeLocked(aID, bID, kind, url string) {
	if aID == bID {
		return
	}
	a, b := models.EdgeKey(aID, bID)
	key := a + "|" + b
	now := time.Now()

	edge, ok := g.edges[key]
	if !ok {
		edge = &models.Edge{
			A:         a,
			B:         b,
			Kind:      kind,
			Weight:    1.0,
			FirstSeen: now,
		}
		g.edges[key] = edge

		if g.adjacency[a] == nil {
			g.adjacency[a] = make(map[string]bool)
		}
		if g.adjacency[b] == nil {
			g.adjacency[b] = make(map[string]bool)
		}
		g.adjacency[a][b] = true
		g.adjacency[b][a] = true
	} else {
		edge.Weight += 0.1
	}

	edge.LastSeen = now
	edge.OccurrenceCount++
	edge.AddEvidence(url)
}

// Node returns a copy of the node, or false when the id is unknown
func (g *Graph) Node(id string) (*models.Entity, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	node, ok := g.nodes[id]
	if !ok {
		return nil, false
	}
	return copyEntity(node), true
}

// EdgeBetween returns a copy of the direct edge between two nodes, if any
func (g *Graph) EdgeBetween(aID, bID string) (*models.Edge, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	a, b := models.EdgeKey(aID, bID)
	edge, ok := g.edges[a+"|"+b]
	if !ok {
		return nil, false
	}
	return copyEdge(edge), true
}

// EntitiesByType returns up to limit nodes of one type, most recently seen
// first. limit <= 0 means no limit.
func (g *Graph) EntitiesByType(entityType string, limit int) []*models.Entity {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []*models.Entity
	for id := range g.typeIndex[entityType] {
		out = append(out, copyEntity(g.nodes[id]))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastSeen.Equal(out[j].LastSeen) {
			return out[i].LastSeen.After(out[j].LastSeen)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// EntitiesByDomain returns all nodes sighted on one domain
func (g *Graph) EntitiesByDomain(domain string) []*models.Entity {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []*models.Entity
	for id := range g.domainIndex[domain] {
		out = append(out, copyEntity(g.nodes[id]))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Connected walks the adjacency out from nodeID up to maxDepth hops and
// returns the reachable nodes, excluding the start node. typeFilter narrows
// the result to one type when non-empty. maxDepth below 1 is treated as 1.
func (g *Graph) Connected(nodeID, typeFilter string, maxDepth int) []*models.Entity {
	if maxDepth < 1 {
		maxDepth = 1
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.nodes[nodeID]; !ok {
		return nil
	}

	visited := map[string]bool{nodeID: true}
	frontier := []string{nodeID}
	var reached []string

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, id := range frontier {
			for neighbor := range g.adjacency[id] {
				if visited[neighbor] {
					continue
				}
				visited[neighbor] = true
				reached = append(reached, neighbor)
				next = append(next, neighbor)
			}
		}
		frontier = next
	}

	var out []*models.Entity
	for _, id := range reached {
		node := g.nodes[id]
		if typeFilter != "" && node.Type != typeFilter {
			continue
		}
		out = append(out, copyEntity(node))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Clusters enumerates connected components, largest first. Components are
// listed as sorted node id slices; when typeFilter is set, members of other
// types are dropped after traversal. Components smaller than minSize (after
// filtering) are dropped.
func (g *Graph) Clusters(typeFilter string, minSize int) [][]string {
	if minSize < 1 {
		minSize = 1
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	visited := make(map[string]bool, len(g.nodes))
	var clusters [][]string

	for id := range g.nodes {
		if visited[id] {
			continue
		}

		var members []string
		queue := []string{id}
		visited[id] = true
		for len(queue) > 0 {
			current := queue[0]
			queue = queue[1:]
			members = append(members, current)
			for neighbor := range g.adjacency[current] {
				if !visited[neighbor] {
					visited[neighbor] = true
					queue = append(queue, neighbor)
				}
			}
		}

		if typeFilter != "" {
			var filtered []string
			for _, m := range members {
				if g.nodes[m].Type == typeFilter {
					filtered = append(filtered, m)
				}
			}
			members = filtered
		}
		if len(members) >= minSize {
			sort.Strings(members)
			clusters = append(clusters, members)
		}
	}

	sort.Slice(clusters, func(i, j int) bool {
		if len(clusters[i]) != len(clusters[j]) {
			return len(clusters[i]) > len(clusters[j])
		}
		return clusters[i][0] < clusters[j][0]
	})
	return clusters
}

// Stats summarizes the graph for the dashboard
func (g *Graph) Stats() models.GraphStats {
	g.mu.RLock()
	defer g.mu.RUnlock()

	stats := models.GraphStats{
		Nodes:   len(g.nodes),
		Edges:   len(g.edges),
		Domains: len(g.domainIndex),
		ByType:  make(map[string]int, len(g.typeIndex)),
	}
	for entityType, ids := range g.typeIndex {
		stats.ByType[entityType] = len(ids)
	}
	for _, node := range g.nodes {
		if len(node.SourceDomains) >= 2 {
			stats.CrossDomain++
		}
	}
	return stats
}

// RebuildFromPages refills the graph from stored pages. Context and match
// positions are not persisted, so rebuilt nodes carry catalog confidence.
// Returns the node count after the rebuild.
func (g *Graph) RebuildFromPages(pages []*models.Page) int {
	for _, page := range pages {
		if page == nil {
			continue
		}
		matches := entities.MatchesFromPage(page)
		if len(matches) == 0 {
			continue
		}
		g.IngestPage(matches, page.Domain, page.URL)
	}

	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.logger != nil {
		g.logger.Info().
			Int("nodes", len(g.nodes)).
			Int("edges", len(g.edges)).
			Msg("Entity graph rebuilt from store")
	}
	return len(g.nodes)
}

// Clear drops every node and edge. Used by purge.
func (g *Graph) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.nodes = make(map[string]*models.Entity)
	g.edges = make(map[string]*models.Edge)
	g.typeIndex = make(map[string]map[string]bool)
	g.domainIndex = make(map[string]map[string]bool)
	g.adjacency = make(map[string]map[string]bool)
}

func copyEntity(node *models.Entity) *models.Entity {
	dup := *node
	dup.SourceDomains = make(map[string]bool, len(node.SourceDomains))
	for k, v := range node.SourceDomains {
		dup.SourceDomains[k] = v
	}
	dup.SourceURLs = make(map[string]bool, len(node.SourceURLs))
	for k, v := range node.SourceURLs {
		dup.SourceURLs[k] = v
	}
	if node.Tags != nil {
		dup.Tags = append([]string(nil), node.Tags...)
	}
	if node.Metadata != nil {
		dup.Metadata = make(map[string]interface{}, len(node.Metadata))
		for k, v := range node.Metadata {
			dup.Metadata[k] = v
		}
	}
	return &dup
}

func copyEdge(edge *models.Edge) *models.Edge {
	dup := *edge
	dup.Evidence = append([]string(nil), edge.Evidence...)
	return &dup
}
