package interfaces

import (
	"github.com/ternarybob/umbra/internal/models"
)

// PageStorage persists crawl results. All mutating operations run in their
// own transaction; a failed write never leaves a partial row.
type PageStorage interface {
	// SavePage upserts by canonical URL and recomputes the risk score.
	SavePage(page *models.Page) error
	GetPage(url string) (*models.Page, error)

	// VisitedURLs returns every known URL; read once at engine startup to
	// rebuild the visited-set.
	VisitedURLs() (map[string]bool, error)

	// PendingURLs returns queued or previously failed URLs ordered by
	// (depth asc, found_at desc), bounded by limit.
	PendingURLs(limit int) ([]models.FrontierEntry, error)

	// SuccessfulURLsForRecrawl returns recent status-200 URLs used to mine
	// fresh links when the frontier runs dry.
	SuccessfulURLsForRecrawl(minDepth, limit int) ([]models.FrontierEntry, error)

	RecentPages(limit int) ([]*models.Page, error)
	PagesByDomain(domain string, limit int) ([]*models.Page, error)
	SearchPages(query string, limit int) ([]*models.Page, error)
	AllPages() ([]*models.Page, error)
	DomainProfiles() ([]*models.DomainProfile, error)
	TimelineBuckets(hours int) ([]models.TimelineBucket, error)
	GetStats() (*models.StoreStats, error)

	// SetIntelFlag marks a page important or false_positive for review.
	SetIntelFlag(url, flag string) error

	// SetPageInsertHook registers the callback invoked when a page is
	// inserted for the first time with a success status.
	SetPageInsertHook(hook func(page *models.Page))
}

// DomainStorage maintains the domain allow/deny list.
type DomainStorage interface {
	BlacklistAdd(domain, reason string) error
	BlacklistRemove(domain string) error
	IsBlacklisted(domain string) (bool, error)
	WhitelistAdd(domain, reason string) error
	ListDomainList(listType string) ([]models.DomainListEntry, error)
}

// AlertStorage persists raised alerts.
type AlertStorage interface {
	SaveAlert(alert *models.Alert) error
	ListAlerts(severity string, unreadOnly bool, limit int) ([]*models.Alert, error)
	MarkAlertRead(alertID string) error
	CountUnread() (int, error)
}

// PolicyStorage persists per-domain crawl policies.
type PolicyStorage interface {
	SavePolicy(policy *models.DomainPolicy) error
	GetPolicy(domain string) (*models.DomainPolicy, error)
	ListPolicies() ([]*models.DomainPolicy, error)
	DeletePolicy(domain string) error
}

// ExportFilter narrows export projections. Zero values match everything.
type ExportFilter struct {
	Domain    string
	Status    int
	MinRisk   int
	Category  string
	OnlyFresh bool // status == 200 rows only
}

// ExportStorage projects stored pages to files. Each call returns the
// number of records written.
type ExportStorage interface {
	ExportJSON(path string, filter ExportFilter) (int, error)
	ExportCSV(path string, filter ExportFilter) (int, error)
	ExportEmails(path string, filter ExportFilter) (int, error)
	ExportCrypto(path string, filter ExportFilter) (int, error)
}

// MaintenanceStorage covers retention and compaction.
type MaintenanceStorage interface {
	// Purge deletes rows older than days, or nulls out their sensitive
	// fields when anonymize is set. Returns affected row count.
	Purge(days int, anonymize bool) (int, error)
	Vacuum() error
}

// ContentCache stores raw fetched bodies so pages can be re-analyzed
// without another trip through the overlay network.
type ContentCache interface {
	Put(page *models.CachedPage) error
	Get(url string) (*models.CachedPage, error)
	Delete(url string) error
	ListByDomain(domain string, limit int) ([]*models.CachedPage, error)
	Count() (int, error)

	// GC reclaims value-log space left by deleted and rewritten bodies.
	// Badger never runs this on its own; the maintenance scheduler does.
	GC() error

	Close() error
}

// StorageManager is the composite storage surface the app wires together.
type StorageManager interface {
	Pages() PageStorage
	Domains() DomainStorage
	Alerts() AlertStorage
	Policies() PolicyStorage
	Exports() ExportStorage
	Maintenance() MaintenanceStorage
	Cache() ContentCache // nil when the content cache is disabled
	Close() error
}
