package handlers

import (
	"net/http"
	"strconv"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/umbra/internal/services/graph"
)

const (
	defaultEntityLimit = 100
	maxEntityLimit     = 1000
)

// EntityHandler serves the in-memory entity graph: typed entity lists,
// cross-domain pivots, connectivity walks and pairwise correlation.
type EntityHandler struct {
	graph  *graph.Graph
	logger arbor.ILogger
}

// NewEntityHandler creates a new EntityHandler
func NewEntityHandler(entityGraph *graph.Graph, logger arbor.ILogger) *EntityHandler {
	return &EntityHandler{
		graph:  entityGraph,
		logger: logger,
	}
}

// EntitiesHandler handles GET /api/entities?type=&domain=&limit=
// With a domain it returns that domain's entities; otherwise entities of
// the given type (empty type means all), ordered by occurrence count.
func (h *EntityHandler) EntitiesHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	domain := r.URL.Query().Get("domain")
	entityType := r.URL.Query().Get("type")
	limit := QueryLimit(r, defaultEntityLimit, maxEntityLimit)

	if domain != "" {
		entities := h.graph.EntitiesByDomain(domain)
		if len(entities) > limit {
			entities = entities[:limit]
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"domain":   domain,
			"entities": entities,
			"count":    len(entities),
		})
		return
	}

	entities := h.graph.EntitiesByType(entityType, limit)
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"type":     entityType,
		"entities": entities,
		"count":    len(entities),
	})
}

// CrossDomainHandler handles GET /api/entities/cross-domain?min_domains=
func (h *EntityHandler) CrossDomainHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	minDomains := QueryInt(r, "min_domains", 2)
	if minDomains < 2 {
		minDomains = 2
	}

	entities := h.graph.CrossDomain(minDomains)
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"min_domains": minDomains,
		"entities":    entities,
		"count":       len(entities),
	})
}

// ConnectedHandler handles GET /api/graph/connected?id=&type=&depth=
func (h *EntityHandler) ConnectedHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	nodeID := r.URL.Query().Get("id")
	if nodeID == "" {
		WriteError(w, http.StatusBadRequest, "Missing required parameter: id")
		return
	}

	if _, ok := h.graph.Node(nodeID); !ok {
		WriteError(w, http.StatusNotFound, "Unknown entity")
		return
	}

	depth := QueryInt(r, "depth", 1)
	typeFilter := r.URL.Query().Get("type")

	connected := h.graph.Connected(nodeID, typeFilter, depth)
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"id":        nodeID,
		"depth":     depth,
		"connected": connected,
		"count":     len(connected),
	})
}

// ClustersHandler handles GET /api/graph/clusters?type=&min_size=
func (h *EntityHandler) ClustersHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	minSize := QueryInt(r, "min_size", 2)
	typeFilter := r.URL.Query().Get("type")

	clusters := h.graph.Clusters(typeFilter, minSize)
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"min_size": minSize,
		"clusters": clusters,
		"count":    len(clusters),
	})
}

// CorrelateHandler handles GET /api/graph/correlate?a=&b=
// Without a and b it scans for all correlated pairs above min_score.
func (h *EntityHandler) CorrelateHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	aID := r.URL.Query().Get("a")
	bID := r.URL.Query().Get("b")

	if aID != "" && bID != "" {
		correlation, err := h.graph.Correlate(aID, bID)
		if err != nil {
			WriteError(w, http.StatusNotFound, err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, correlation)
		return
	}
	if aID != "" || bID != "" {
		WriteError(w, http.StatusBadRequest, "Parameters a and b must be given together")
		return
	}

	minScore := 0.3
	if raw := r.URL.Query().Get("min_score"); raw != "" {
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil {
			minScore = parsed
		}
	}

	correlations := h.graph.Correlations(minScore)
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"min_score":    minScore,
		"correlations": correlations,
		"count":        len(correlations),
	})
}
