package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/umbra/internal/common"
	"github.com/ternarybob/umbra/internal/interfaces"
	"github.com/ternarybob/umbra/internal/services/reports"
)

// AdminHandler covers exports, retention maintenance and reanalysis. All
// of it is synchronous; these are operator actions, not crawl-path code.
type AdminHandler struct {
	storage interfaces.StorageManager
	reports *reports.Service
	engine  interfaces.CrawlEngine
	config  *common.Config
	logger  arbor.ILogger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(storage interfaces.StorageManager, reportService *reports.Service, engine interfaces.CrawlEngine, config *common.Config, logger arbor.ILogger) *AdminHandler {
	return &AdminHandler{
		storage: storage,
		reports: reportService,
		engine:  engine,
		config:  config,
		logger:  logger,
	}
}

// exportRequest selects the export format and narrows the projection.
// Zero-valued filter fields match everything.
type exportRequest struct {
	Format    string `json:"format"` // json|csv|emails|crypto|pdf
	Domain    string `json:"domain"`
	Status    int    `json:"status"`
	MinRisk   int    `json:"min_risk"`
	Category  string `json:"category"`
	OnlyFresh bool   `json:"only_fresh"`
}

// ExportHandler handles POST /api/export
// Writes the export under the configured export directory and returns the
// path with the record count.
func (h *AdminHandler) ExportHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	filter := interfaces.ExportFilter{
		Domain:    req.Domain,
		Status:    req.Status,
		MinRisk:   req.MinRisk,
		Category:  req.Category,
		OnlyFresh: req.OnlyFresh,
	}

	stamp := time.Now().UTC().Format("20060102-150405")
	if err := os.MkdirAll(h.exportDir(), 0o755); err != nil {
		h.logger.Error().Err(err).Str("dir", h.exportDir()).Msg("Failed to create export directory")
		WriteError(w, http.StatusInternalServerError, "Failed to create export directory")
		return
	}
	exports := h.storage.Exports()

	var (
		path    string
		records int
		err     error
	)
	switch req.Format {
	case "json":
		path = h.exportPath("pages-" + stamp + ".json")
		records, err = exports.ExportJSON(path, filter)
	case "csv":
		path = h.exportPath("pages-" + stamp + ".csv")
		records, err = exports.ExportCSV(path, filter)
	case "emails":
		path = h.exportPath("emails-" + stamp + ".txt")
		records, err = exports.ExportEmails(path, filter)
	case "crypto":
		path = h.exportPath("crypto-" + stamp + ".csv")
		records, err = exports.ExportCrypto(path, filter)
	case "pdf":
		path = h.exportPath("summary-" + stamp + ".pdf")
		records, err = h.reports.GenerateSummary(path)
	default:
		WriteError(w, http.StatusBadRequest, "Unknown format; expected json, csv, emails, crypto or pdf")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("format", req.Format).Msg("Export failed")
		WriteError(w, http.StatusInternalServerError, fmt.Sprintf("Export failed: %v", err))
		return
	}

	h.logger.Info().
		Str("format", req.Format).
		Str("path", path).
		Int("records", records).
		Msg("Export written")

	WriteSuccess(w, fmt.Sprintf("Export written to %s", path), map[string]interface{}{
		"path":    path,
		"records": records,
		"format":  req.Format,
	})
}

// PurgeHandler handles POST /api/purge {"days": N, "anonymize": bool}
// Days defaults to the scheduler retention window.
func (h *AdminHandler) PurgeHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	req := struct {
		Days      int  `json:"days"`
		Anonymize bool `json:"anonymize"`
	}{
		Days:      h.config.Scheduler.RetentionDays,
		Anonymize: h.config.Scheduler.PurgeAnonymize,
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}
	if req.Days <= 0 {
		WriteError(w, http.StatusBadRequest, "Retention days must be positive")
		return
	}

	affected, err := h.storage.Maintenance().Purge(req.Days, req.Anonymize)
	if err != nil {
		h.logger.Error().Err(err).Msg("Purge failed")
		WriteError(w, http.StatusInternalServerError, "Purge failed")
		return
	}

	action := "deleted"
	if req.Anonymize {
		action = "anonymized"
	}
	WriteSuccess(w, fmt.Sprintf("%d pages older than %d days %s", affected, req.Days, action), map[string]interface{}{
		"affected":  affected,
		"days":      req.Days,
		"anonymize": req.Anonymize,
	})
}

// VacuumHandler handles POST /api/vacuum
// Compacts the page store and reclaims content cache space when the
// cache is enabled.
func (h *AdminHandler) VacuumHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	if err := h.storage.Maintenance().Vacuum(); err != nil {
		h.logger.Error().Err(err).Msg("Vacuum failed")
		WriteError(w, http.StatusInternalServerError, "Vacuum failed")
		return
	}

	if cache := h.storage.Cache(); cache != nil {
		if err := cache.GC(); err != nil {
			h.logger.Warn().Err(err).Msg("Content cache GC failed")
		}
	}

	WriteSuccess(w, "Database vacuumed", nil)
}

// ReanalyzeHandler handles POST /api/reanalyze {"domain": "...", "limit": N}
// Re-runs extraction over cached bodies through the engine facade; no
// fetching, no frontier growth.
func (h *AdminHandler) ReanalyzeHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req struct {
		Domain string `json:"domain"`
		Limit  int    `json:"limit"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	updated, err := h.engine.Reanalyze(req.Domain, req.Limit)
	if err != nil {
		WriteError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	WriteSuccess(w, fmt.Sprintf("Reanalyzed %d pages", updated), map[string]interface{}{
		"updated": updated,
		"domain":  req.Domain,
	})
}

func (h *AdminHandler) exportDir() string {
	if h.config.Export.Dir != "" {
		return h.config.Export.Dir
	}
	return "exports"
}

func (h *AdminHandler) exportPath(name string) string {
	return filepath.Join(h.exportDir(), name)
}
