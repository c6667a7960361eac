package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/umbra/internal/interfaces"
	"github.com/ternarybob/umbra/internal/models"
	"github.com/ternarybob/umbra/internal/services/alerts"
)

const (
	defaultAlertLimit = 50
	maxAlertLimit     = 500
)

// AlertHandler serves the alert history and acknowledgement flow, plus the
// analyst watchlists behind the alert triggers.
type AlertHandler struct {
	manager *alerts.Manager
	store   interfaces.AlertStorage
	logger  arbor.ILogger
}

// NewAlertHandler creates a new AlertHandler
func NewAlertHandler(manager *alerts.Manager, store interfaces.AlertStorage, logger arbor.ILogger) *AlertHandler {
	return &AlertHandler{
		manager: manager,
		store:   store,
		logger:  logger,
	}
}

// ListAlertsHandler handles GET /api/alerts?severity=&unread=&limit=
func (h *AlertHandler) ListAlertsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	severity := strings.ToUpper(r.URL.Query().Get("severity"))
	switch severity {
	case "", string(models.SeverityCritical), string(models.SeverityHigh),
		string(models.SeverityMedium), string(models.SeverityLow):
	default:
		WriteError(w, http.StatusBadRequest, "Unknown severity")
		return
	}

	unreadOnly := QueryBool(r, "unread", false)
	limit := QueryLimit(r, defaultAlertLimit, maxAlertLimit)

	alertList, err := h.store.ListAlerts(severity, unreadOnly, limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list alerts")
		WriteError(w, http.StatusInternalServerError, "Failed to list alerts")
		return
	}

	unread, err := h.store.CountUnread()
	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to count unread alerts")
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": alertList,
		"count":  len(alertList),
		"unread": unread,
	})
}

// AckAlertHandler handles POST /api/alerts/ack {"id": "...", "by": "..."}
func (h *AlertHandler) AckAlertHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req struct {
		ID string `json:"id"`
		By string `json:"by"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ID == "" {
		WriteError(w, http.StatusBadRequest, "Missing required field: id")
		return
	}
	if req.By == "" {
		req.By = "dashboard"
	}

	if err := h.manager.Acknowledge(req.ID, req.By); err != nil {
		WriteError(w, http.StatusNotFound, err.Error())
		return
	}

	WriteSuccess(w, "Alert acknowledged", map[string]string{"id": req.ID, "by": req.By})
}

// WatchlistHandler handles /api/watchlist
// GET returns the active indicator lists; POST appends one entry:
// {"kind": "domain|email|wallet|internal_domain", "value": "..."}.
func (h *AlertHandler) WatchlistHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		WriteJSON(w, http.StatusOK, h.manager.Watchlists())

	case http.MethodPost:
		var req struct {
			Kind  string `json:"kind"`
			Value string `json:"value"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.Kind == "" || req.Value == "" {
			WriteError(w, http.StatusBadRequest, "Missing required fields: kind, value")
			return
		}

		if err := h.manager.AddWatchEntry(req.Kind, req.Value); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		WriteSuccess(w, "Watchlist entry added", map[string]string{"kind": req.Kind, "value": req.Value})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
