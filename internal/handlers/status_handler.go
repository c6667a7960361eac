package handlers

import (
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/umbra/internal/interfaces"
	"github.com/ternarybob/umbra/internal/services/graph"
)

// StatusHandler aggregates the live view of the system: engine counters,
// store totals, graph size and unread alerts.
type StatusHandler struct {
	engine  interfaces.CrawlEngine
	storage interfaces.StorageManager
	graph   *graph.Graph
	logger  arbor.ILogger
	started time.Time
}

// NewStatusHandler creates a new StatusHandler
func NewStatusHandler(engine interfaces.CrawlEngine, storage interfaces.StorageManager, entityGraph *graph.Graph, logger arbor.ILogger) *StatusHandler {
	return &StatusHandler{
		engine:  engine,
		storage: storage,
		graph:   entityGraph,
		logger:  logger,
		started: time.Now(),
	}
}

// GetStatusHandler handles GET /api/status
func (h *StatusHandler) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	storeStats, err := h.storage.Pages().GetStats()
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to read store stats")
		WriteError(w, http.StatusInternalServerError, "Failed to read store stats")
		return
	}

	unread, err := h.storage.Alerts().CountUnread()
	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to count unread alerts")
	}

	response := map[string]interface{}{
		"engine":         h.engine.Stats(),
		"store":          storeStats,
		"graph":          h.graph.Stats(),
		"alerts_unread":  unread,
		"uptime_seconds": int(time.Since(h.started).Seconds()),
	}

	if cache := h.storage.Cache(); cache != nil {
		if count, err := cache.Count(); err == nil {
			response["cache_entries"] = count
		}
	}

	WriteJSON(w, http.StatusOK, response)
}
