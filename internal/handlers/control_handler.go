package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/umbra/internal/interfaces"
	"github.com/ternarybob/umbra/internal/models"
)

// ControlHandler routes dashboard writes to the engine, the policy service
// and the store. Nothing here touches the graph or the frontier directly.
type ControlHandler struct {
	engine   interfaces.CrawlEngine
	policies interfaces.PolicyService
	pages    interfaces.PageStorage
	domains  interfaces.DomainStorage
	logger   arbor.ILogger
}

// NewControlHandler creates a new ControlHandler
func NewControlHandler(engine interfaces.CrawlEngine, policies interfaces.PolicyService, pages interfaces.PageStorage, domains interfaces.DomainStorage, logger arbor.ILogger) *ControlHandler {
	return &ControlHandler{
		engine:   engine,
		policies: policies,
		pages:    pages,
		domains:  domains,
		logger:   logger,
	}
}

// SeedsHandler handles POST /api/seeds {"urls": ["http://...onion", ...]}
// Seeds are validated and normalized before enqueueing; a parked engine
// wakes when at least one seed is accepted.
func (h *ControlHandler) SeedsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req struct {
		URLs []string `json:"urls"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	accepted, err := h.engine.AddSeeds(req.URLs)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	WriteSuccess(w, fmt.Sprintf("Accepted %d of %d seed URLs", accepted, len(req.URLs)), map[string]int{
		"accepted": accepted,
		"given":    len(req.URLs),
	})
}

// CrawlerControlHandler handles POST /api/crawler/control {"action": "..."}
// Actions: pause, resume, drain, rotate.
func (h *ControlHandler) CrawlerControlHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req struct {
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	switch strings.ToLower(req.Action) {
	case "pause":
		h.engine.Pause()
	case "resume":
		h.engine.Resume()
	case "drain":
		h.engine.Drain()
	case "rotate":
		h.engine.RotateCircuit()
	default:
		WriteError(w, http.StatusBadRequest, "Unknown action; expected pause, resume, drain or rotate")
		return
	}

	h.logger.Info().Str("action", req.Action).Msg("Crawler control applied")
	WriteSuccess(w, fmt.Sprintf("Crawler %s applied", strings.ToLower(req.Action)), map[string]string{
		"state": h.engine.State(),
	})
}

// IntelFlagHandler handles POST /api/intel/flag
// {"url": "...", "flag": "important|false_positive|"} - the empty flag
// clears a previous review mark.
func (h *ControlHandler) IntelFlagHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req struct {
		URL  string `json:"url"`
		Flag string `json:"flag"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.URL == "" {
		WriteError(w, http.StatusBadRequest, "Missing required field: url")
		return
	}
	switch req.Flag {
	case models.IntelFlagNone, models.IntelFlagImportant, models.IntelFlagFalsePositive:
	default:
		WriteError(w, http.StatusBadRequest, "Unknown flag; expected important, false_positive or empty")
		return
	}

	if err := h.pages.SetIntelFlag(req.URL, req.Flag); err != nil {
		WriteError(w, http.StatusNotFound, err.Error())
		return
	}

	WriteSuccess(w, "Intel flag updated", map[string]string{"url": req.URL, "flag": req.Flag})
}

// domainPolicyRequest uses pointers so absent fields leave the stored
// policy untouched.
type domainPolicyRequest struct {
	Domain        string  `json:"domain"`
	Status        *string `json:"status"`
	TrustLevel    *int    `json:"trust_level"`
	MaxDepth      *int    `json:"max_depth"`
	DelayMS       *int    `json:"delay_ms"`
	PriorityBoost *int    `json:"priority_boost"`
	Notes         *string `json:"notes"`
}

// DomainPolicyHandler handles POST /api/domains/policy
func (h *ControlHandler) DomainPolicyHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req domainPolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Domain == "" {
		WriteError(w, http.StatusBadRequest, "Missing required field: domain")
		return
	}

	policy := h.policies.Get(req.Domain)
	if req.Status != nil {
		status := strings.ToLower(*req.Status)
		switch status {
		case models.DomainStatusNormal, models.DomainStatusFrozen, models.DomainStatusPriority:
			policy.Status = status
		default:
			WriteError(w, http.StatusBadRequest, "Unknown status; expected normal, frozen or priority")
			return
		}
	}
	if req.TrustLevel != nil {
		policy.TrustLevel = *req.TrustLevel
	}
	if req.MaxDepth != nil {
		policy.MaxDepth = *req.MaxDepth
	}
	if req.DelayMS != nil {
		policy.DelayMS = *req.DelayMS
	}
	if req.PriorityBoost != nil {
		policy.PriorityBoost = *req.PriorityBoost
	}
	if req.Notes != nil {
		policy.Notes = *req.Notes
	}

	if err := h.policies.Set(policy); err != nil {
		h.logger.Error().Err(err).Str("domain", req.Domain).Msg("Failed to save domain policy")
		WriteError(w, http.StatusInternalServerError, "Failed to save domain policy")
		return
	}

	WriteSuccess(w, "Domain policy updated", policy)
}

// DomainBoostHandler handles POST /api/domains/boost {"domain": "...", "boost": N}
func (h *ControlHandler) DomainBoostHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req struct {
		Domain string `json:"domain"`
		Boost  int    `json:"boost"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Domain == "" {
		WriteError(w, http.StatusBadRequest, "Missing required field: domain")
		return
	}

	if err := h.policies.Boost(req.Domain, req.Boost); err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to apply boost")
		return
	}

	WriteSuccess(w, fmt.Sprintf("Priority boost %+d applied to %s", req.Boost, req.Domain), nil)
}

// DomainFreezeHandler handles POST /api/domains/freeze
// {"domain": "...", "frozen": true|false}
func (h *ControlHandler) DomainFreezeHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req struct {
		Domain string `json:"domain"`
		Frozen bool   `json:"frozen"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Domain == "" {
		WriteError(w, http.StatusBadRequest, "Missing required field: domain")
		return
	}

	var err error
	if req.Frozen {
		err = h.policies.Freeze(req.Domain)
	} else {
		err = h.policies.Unfreeze(req.Domain)
	}
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to update freeze state")
		return
	}

	verb := "unfrozen"
	if req.Frozen {
		verb = "frozen"
	}
	WriteSuccess(w, fmt.Sprintf("Domain %s %s", req.Domain, verb), nil)
}

// BlacklistHandler handles /api/blacklist
// GET lists entries; POST {"domain": "...", "reason": "...", "action": "add|remove"}.
// Blacklisted domains are skipped at dispatch; queued entries stay put.
func (h *ControlHandler) BlacklistHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.writeDomainList(w, "blacklist")

	case http.MethodPost:
		var req struct {
			Domain string `json:"domain"`
			Reason string `json:"reason"`
			Action string `json:"action"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.Domain == "" {
			WriteError(w, http.StatusBadRequest, "Missing required field: domain")
			return
		}

		switch req.Action {
		case "", "add":
			if err := h.domains.BlacklistAdd(req.Domain, req.Reason); err != nil {
				WriteError(w, http.StatusInternalServerError, "Failed to update blacklist")
				return
			}
			WriteSuccess(w, fmt.Sprintf("Domain %s blacklisted", req.Domain), nil)
		case "remove":
			if err := h.domains.BlacklistRemove(req.Domain); err != nil {
				WriteError(w, http.StatusInternalServerError, "Failed to update blacklist")
				return
			}
			WriteSuccess(w, fmt.Sprintf("Domain %s removed from blacklist", req.Domain), nil)
		default:
			WriteError(w, http.StatusBadRequest, "Unknown action; expected add or remove")
		}

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// WhitelistHandler handles /api/whitelist
// GET lists entries; POST {"domain": "...", "reason": "..."} adds one.
// The whitelist is advisory; it exempts a domain from future bulk blocks.
func (h *ControlHandler) WhitelistHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.writeDomainList(w, "whitelist")

	case http.MethodPost:
		var req struct {
			Domain string `json:"domain"`
			Reason string `json:"reason"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.Domain == "" {
			WriteError(w, http.StatusBadRequest, "Missing required field: domain")
			return
		}

		if err := h.domains.WhitelistAdd(req.Domain, req.Reason); err != nil {
			WriteError(w, http.StatusInternalServerError, "Failed to update whitelist")
			return
		}
		WriteSuccess(w, fmt.Sprintf("Domain %s whitelisted", req.Domain), nil)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *ControlHandler) writeDomainList(w http.ResponseWriter, listType string) {
	entries, err := h.domains.ListDomainList(listType)
	if err != nil {
		h.logger.Error().Err(err).Str("list", listType).Msg("Failed to read domain list")
		WriteError(w, http.StatusInternalServerError, "Failed to read domain list")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"list":    listType,
		"entries": entries,
		"count":   len(entries),
	})
}
