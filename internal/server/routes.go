package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket event stream
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// Read routes - system
	mux.HandleFunc("/api/status", s.app.StatusHandler.GetStatusHandler)
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// Read routes - pages and crawl state
	mux.HandleFunc("/api/pages", s.app.PageHandler.ListPagesHandler)
	mux.HandleFunc("/api/pages/by-domain", s.app.PageHandler.PagesByDomainHandler)
	mux.HandleFunc("/api/pages/content", s.app.PageHandler.PageContentHandler)
	mux.HandleFunc("/api/queue", s.app.PageHandler.QueueHandler)
	mux.HandleFunc("/api/domains", s.app.PageHandler.DomainsHandler)
	mux.HandleFunc("/api/timeline", s.app.PageHandler.TimelineHandler)

	// Read routes - entity graph
	mux.HandleFunc("/api/entities", s.app.EntityHandler.EntitiesHandler)
	mux.HandleFunc("/api/entities/cross-domain", s.app.EntityHandler.CrossDomainHandler)
	mux.HandleFunc("/api/graph/connected", s.app.EntityHandler.ConnectedHandler)
	mux.HandleFunc("/api/graph/clusters", s.app.EntityHandler.ClustersHandler)
	mux.HandleFunc("/api/graph/correlate", s.app.EntityHandler.CorrelateHandler)

	// Alerts: list, acknowledge, watchlists
	mux.HandleFunc("/api/alerts", s.app.AlertHandler.ListAlertsHandler)
	mux.HandleFunc("/api/alerts/ack", s.app.AlertHandler.AckAlertHandler)
	mux.HandleFunc("/api/watchlist", s.app.AlertHandler.WatchlistHandler)

	// Write routes - crawl control
	mux.HandleFunc("/api/seeds", s.app.ControlHandler.SeedsHandler)
	mux.HandleFunc("/api/crawler/control", s.app.ControlHandler.CrawlerControlHandler)
	mux.HandleFunc("/api/intel/flag", s.app.ControlHandler.IntelFlagHandler)
	mux.HandleFunc("/api/domains/policy", s.app.ControlHandler.DomainPolicyHandler)
	mux.HandleFunc("/api/domains/boost", s.app.ControlHandler.DomainBoostHandler)
	mux.HandleFunc("/api/domains/freeze", s.app.ControlHandler.DomainFreezeHandler)
	mux.HandleFunc("/api/blacklist", s.app.ControlHandler.BlacklistHandler)
	mux.HandleFunc("/api/whitelist", s.app.ControlHandler.WhitelistHandler)

	// Write routes - maintenance and exports
	mux.HandleFunc("/api/export", s.app.AdminHandler.ExportHandler)
	mux.HandleFunc("/api/purge", s.app.AdminHandler.PurgeHandler)
	mux.HandleFunc("/api/vacuum", s.app.AdminHandler.VacuumHandler)
	mux.HandleFunc("/api/reanalyze", s.app.AdminHandler.ReanalyzeHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}
