package interfaces

import (
	"github.com/ternarybob/umbra/internal/models"
)

// AlertContext carries the optional source fields attached to an alert
type AlertContext struct {
	Domain   string
	URL      string
	Entities []string
	Metadata map[string]interface{}
}

// WithEntities returns a copy of the context carrying the given entity
// value snapshot.
func (c AlertContext) WithEntities(values []string) AlertContext {
	c.Entities = values
	return c
}

// EvaluateInput is everything the alert triggers inspect for one page
type EvaluateInput struct {
	Content   string
	Entities  []models.EntityMatch
	SiteType  string
	RiskScore int
	Domain    string
	URL       string
	Title     string
}

// Watchlist entry kinds accepted by AddWatchEntry
const (
	WatchKindInternalDomain = "internal_domain"
	WatchKindDomain         = "domain"
	WatchKindEmail          = "email"
	WatchKindWallet         = "wallet"
)

// AlertManager owns the alert history, trigger evaluation and webhook
// fanout. All methods are safe for concurrent use by crawl workers.
type AlertManager interface {
	// CreateAlert raises an alert directly: monotonic id, history append,
	// synchronous callbacks, persistence, async webhook fanout.
	CreateAlert(severity models.AlertSeverity, trigger, title, description string, actx AlertContext) *models.Alert

	// Evaluate runs every applicable trigger against one crawled page and
	// returns the alerts raised.
	Evaluate(input EvaluateInput) []*models.Alert

	// Acknowledge marks an alert read. Idempotent.
	Acknowledge(id, who string) error

	// RecentAlerts returns the newest alerts from the in-memory history.
	RecentAlerts(limit int) []*models.Alert

	// OnAlert registers a callback invoked synchronously for every raised
	// alert. Callback panics are contained.
	OnAlert(callback func(alert *models.Alert))

	// CheckWalletTransaction raises a critical alert when the amount
	// crosses the configured threshold or the wallet is watched.
	CheckWalletTransaction(wallet string, amountBTC float64) *models.Alert

	// RaiseStatsUpdate emits the periodic crawler stats snapshot.
	RaiseStatsUpdate(stats *models.StoreStats)

	// CheckQueueMilestone raises each visited-count milestone once.
	CheckQueueMilestone(visitedCount int) *models.Alert

	// PageInserted is the store insert-hook target for domain_new_page.
	PageInserted(page *models.Page)

	// Watchlists returns a copy of the active watchlists.
	Watchlists() models.Watchlists

	// AddWatchEntry appends one indicator to a watchlist at runtime.
	AddWatchEntry(kind, value string) error
}
