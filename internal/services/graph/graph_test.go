package graph

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/umbra/internal/models"
)

func newTestGraph() *Graph {
	return New(arbor.NewLogger())
}

func match(subtype, value string) models.EntityMatch {
	return models.EntityMatch{Type: "test", Subtype: subtype, Value: value, Confidence: 0.9}
}

func TestAddEntity_IdentityCollapsesCase(t *testing.T) {
	g := newTestGraph()

	id1 := g.AddEntity("email", "Alice@Example.com", "aaa.onion", "http://aaa.onion/1", nil)
	id2 := g.AddEntity("email", "alice@example.com", "bbb.onion", "http://bbb.onion/2", nil)
	id3 := g.AddEntity("email", "ALICE@EXAMPLE.COM", "aaa.onion", "http://aaa.onion/3", nil)

	assert.Equal(t, id1, id2)
	assert.Equal(t, id1, id3)

	node, ok := g.Node(id1)
	require.True(t, ok)
	assert.Equal(t, 3, node.OccurrenceCount)
	assert.Len(t, node.SourceDomains, 2)
	assert.Len(t, node.SourceURLs, 3)

	stats := g.Stats()
	assert.Equal(t, 1, stats.Nodes)
}

func TestIngestPage_SamePageEdges(t *testing.T) {
	g := newTestGraph()

	url := "http://market.onion/contact"
	n := g.IngestPage([]models.EntityMatch{
		match("bitcoin", "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq"),
		match("email", "alice@example.com"),
	}, "market.onion", url)
	assert.Equal(t, 2, n)

	stats := g.Stats()
	assert.Equal(t, 2, stats.Nodes)
	assert.Equal(t, 1, stats.Edges)

	btcID := models.EntityID("bitcoin", "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq")
	emailID := models.EntityID("email", "alice@example.com")

	edge, ok := g.EdgeBetween(btcID, emailID)
	require.True(t, ok)
	assert.Equal(t, models.EdgeKindSamePage, edge.Kind)
	assert.Equal(t, 1.0, edge.Weight)
	assert.Equal(t, 1, edge.OccurrenceCount)
	assert.Equal(t, []string{url}, edge.Evidence)

	correlation, err := g.Correlate(btcID, emailID)
	require.NoError(t, err)
	assert.Equal(t, models.EdgeKindSamePage, correlation.RelationshipType)
}

func TestEdgeSymmetry(t *testing.T) {
	g := newTestGraph()

	g.IngestPage([]models.EntityMatch{
		match("email", "a@x.com"),
		match("email", "b@x.com"),
	}, "x.onion", "http://x.onion/")

	aID := models.EntityID("email", "a@x.com")
	bID := models.EntityID("email", "b@x.com")

	ab, okAB := g.EdgeBetween(aID, bID)
	ba, okBA := g.EdgeBetween(bID, aID)
	require.True(t, okAB)
	require.True(t, okBA)
	assert.Equal(t, ab.A, ba.A)
	assert.Equal(t, ab.B, ba.B)

	assert.Contains(t, g.Connected(aID, "", 1), mustNode(t, g, bID))
	assert.Contains(t, g.Connected(bID, "", 1), mustNode(t, g, aID))
}

func TestIngestPage_EdgeResighting(t *testing.T) {
	g := newTestGraph()

	page := []models.EntityMatch{
		match("email", "vendor@x.com"),
		match("bitcoin", "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa"),
	}
	g.IngestPage(page, "x.onion", "http://x.onion/1")
	g.IngestPage(page, "x.onion", "http://x.onion/2")
	g.IngestPage(page, "x.onion", "http://x.onion/3")

	edge, ok := g.EdgeBetween(
		models.EntityID("email", "vendor@x.com"),
		models.EntityID("bitcoin", "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa"),
	)
	require.True(t, ok)
	assert.InDelta(t, 1.2, edge.Weight, 1e-9)
	assert.Equal(t, 3, edge.OccurrenceCount)
	assert.Len(t, edge.Evidence, 3)
}

func TestEdgeEvidenceBounded(t *testing.T) {
	g := newTestGraph()

	page := []models.EntityMatch{
		match("email", "a@x.com"),
		match("email", "b@x.com"),
	}
	for i := 0; i < 15; i++ {
		g.IngestPage(page, "x.onion", fmt.Sprintf("http://x.onion/p%02d", i))
	}

	edge, ok := g.EdgeBetween(models.EntityID("email", "a@x.com"), models.EntityID("email", "b@x.com"))
	require.True(t, ok)
	assert.Len(t, edge.Evidence, models.EdgeEvidenceLimit)
	assert.Equal(t, "http://x.onion/p14", edge.Evidence[len(edge.Evidence)-1])
	assert.Equal(t, "http://x.onion/p05", edge.Evidence[0])
}

func TestClusters_DisjointComponents(t *testing.T) {
	g := newTestGraph()

	g.IngestPage([]models.EntityMatch{
		match("email", "a@x.com"),
		match("email", "b@x.com"),
		match("bitcoin", "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa"),
	}, "x.onion", "http://x.onion/")

	g.IngestPage([]models.EntityMatch{
		match("email", "c@y.com"),
		match("telegram", "vendor_c"),
	}, "y.onion", "http://y.onion/")

	clusters := g.Clusters("", 1)
	require.Len(t, clusters, 2)
	assert.Len(t, clusters[0], 3, "largest first")
	assert.Len(t, clusters[1], 2)

	seen := make(map[string]int)
	for _, cluster := range clusters {
		for _, id := range cluster {
			seen[id]++
		}
	}
	for id, n := range seen {
		assert.Equal(t, 1, n, "node %s in exactly one cluster", id)
	}

	// min size drops the small component
	clusters = g.Clusters("", 3)
	require.Len(t, clusters, 1)

	// type filter keeps traversal but trims membership
	emailClusters := g.Clusters("email", 1)
	require.Len(t, emailClusters, 2)
	assert.Len(t, emailClusters[0], 2)
	assert.Len(t, emailClusters[1], 1)
}

func TestCorrelate_Bounds(t *testing.T) {
	g := newTestGraph()

	page := []models.EntityMatch{
		match("email", "a@x.com"),
		match("email", "b@x.com"),
	}
	// many resightings push every contribution to its cap
	for i := 0; i < 30; i++ {
		g.IngestPage(page, fmt.Sprintf("d%02d.onion", i), fmt.Sprintf("http://d%02d.onion/p", i))
	}

	correlation, err := g.Correlate(
		models.EntityID("email", "a@x.com"),
		models.EntityID("email", "b@x.com"),
	)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, correlation.Score, 0.0)
	assert.LessOrEqual(t, correlation.Score, 1.0)
	assert.GreaterOrEqual(t, correlation.Confidence, 0.5)
	assert.LessOrEqual(t, correlation.Confidence, 0.95)
	assert.Equal(t, 1.0, correlation.Score)
	assert.Equal(t, 0.95, correlation.Confidence)
	assert.Contains(t, correlation.Interpretation, "CRITICAL")

	// single shared sighting stays low but inside bounds
	h := newTestGraph()
	h.AddEntity("email", "solo@x.com", "x.onion", "http://x.onion/", nil)
	h.AddEntity("email", "other@y.com", "y.onion", "http://y.onion/", nil)
	weak, err := h.Correlate(
		models.EntityID("email", "solo@x.com"),
		models.EntityID("email", "other@y.com"),
	)
	require.NoError(t, err)
	assert.Equal(t, 0.0, weak.Score)
	assert.InDelta(t, 0.6, weak.Confidence, 1e-9)
	assert.Equal(t, "none", weak.RelationshipType)
}

func TestCorrelate_UnknownNode(t *testing.T) {
	g := newTestGraph()
	g.AddEntity("email", "a@x.com", "x.onion", "http://x.onion/", nil)

	_, err := g.Correlate(models.EntityID("email", "a@x.com"), "email:ghost@x.com")
	assert.Error(t, err)
}

func TestCrossDomain_FiveDomains(t *testing.T) {
	g := newTestGraph()

	for i := 0; i < 5; i++ {
		domain := fmt.Sprintf("site%d.onion", i)
		g.IngestPage([]models.EntityMatch{match("email", "x@y.com")}, domain, "http://"+domain+"/")
	}

	results := g.CrossDomain(2)
	require.Len(t, results, 1)
	assert.Equal(t, 5, results[0].DomainCount)
	assert.GreaterOrEqual(t, results[0].Score, 0.95)
	assert.Contains(t, results[0].Interpretation, "CRITICAL")
	assert.Len(t, results[0].Domains, 5)

	// nothing qualifies at a higher floor
	assert.Empty(t, g.CrossDomain(6))
}

func TestConnected_DepthLimit(t *testing.T) {
	g := newTestGraph()

	// chain a-b on page1, b-c on page2: c is two hops from a
	g.IngestPage([]models.EntityMatch{
		match("email", "a@x.com"),
		match("email", "b@x.com"),
	}, "x.onion", "http://x.onion/1")
	g.IngestPage([]models.EntityMatch{
		match("email", "b@x.com"),
		match("email", "c@x.com"),
	}, "x.onion", "http://x.onion/2")

	aID := models.EntityID("email", "a@x.com")

	oneHop := g.Connected(aID, "", 1)
	require.Len(t, oneHop, 1)
	assert.Equal(t, models.EntityID("email", "b@x.com"), oneHop[0].ID)

	twoHops := g.Connected(aID, "", 2)
	assert.Len(t, twoHops, 2)

	assert.Empty(t, g.Connected("email:ghost@x.com", "", 2))
}

func TestRebuildFromPages(t *testing.T) {
	g := newTestGraph()

	pages := []*models.Page{
		{
			URL:    "http://x.onion/1",
			Domain: "x.onion",
			Emails: []string{"a@x.com"},
			Cryptos: map[string][]string{
				"bitcoin": {"1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa"},
			},
		},
		{
			URL:     "http://y.onion/1",
			Domain:  "y.onion",
			Emails:  []string{"a@x.com"},
			Socials: map[string][]string{"telegram": {"vendor"}},
		},
	}

	nodes := g.RebuildFromPages(pages)
	assert.Equal(t, 3, nodes)

	emailNode, ok := g.Node(models.EntityID("email", "a@x.com"))
	require.True(t, ok)
	assert.Len(t, emailNode.SourceDomains, 2)
	assert.Equal(t, 2, emailNode.OccurrenceCount)

	stats := g.Stats()
	assert.Equal(t, 2, stats.Edges)
	assert.Equal(t, 1, stats.CrossDomain)

	g.Clear()
	assert.Equal(t, 0, g.Stats().Nodes)
}

func mustNode(t *testing.T, g *Graph, id string) *models.Entity {
	t.Helper()
	node, ok := g.Node(id)
	require.True(t, ok)
	return node
}
