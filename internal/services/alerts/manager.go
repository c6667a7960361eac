package alerts

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/umbra/internal/common"
	"github.com/ternarybob/umbra/internal/interfaces"
	"github.com/ternarybob/umbra/internal/models"
)

// Manager owns the alert history and trigger evaluation. One instance
// serves every crawl worker; all state lives behind the two mutexes.
type Manager struct {
	logger   arbor.ILogger
	config   *common.AlertsConfig
	store    interfaces.AlertStorage
	notifier *Notifier
	watch    *watchlistSet
	notify   map[models.AlertSeverity]bool

	mu        sync.Mutex
	history   []*models.Alert
	callbacks []func(alert *models.Alert)
	counter   int64

	// Per-trigger sighting state, guarded separately so Evaluate never
	// holds the history lock while deciding what to raise.
	stateMu        sync.Mutex
	seenPatterns   map[string]bool            // domain|subtype
	seenProviders  map[string]bool            // email provider domains
	seenVendors    map[string]bool            // marketplace vendor handles
	titleDomains   map[string]map[string]bool // normalized title -> domains seen on
	mirrorAlerted  map[string]bool
	contentLengths map[string]int // url -> last observed content length
	milestones     map[int]bool
	crawlTimes     []time.Time
	lastBurstAlert time.Time
}

// NewManager builds the alert manager. store may be nil in tests; alerts
// then live only in the bounded history.
func NewManager(logger arbor.ILogger, config *common.AlertsConfig, store interfaces.AlertStorage) *Manager {
	notify := make(map[models.AlertSeverity]bool, len(config.NotifySeverities))
	for _, severity := range config.NotifySeverities {
		notify[models.AlertSeverity(severity)] = true
	}

	return &Manager{
		logger:         logger,
		config:         config,
		store:          store,
		notifier:       newNotifier(logger, config),
		watch:          loadWatchlists(config.WatchlistPath, logger),
		notify:         notify,
		seenPatterns:   make(map[string]bool),
		seenProviders:  make(map[string]bool),
		seenVendors:    make(map[string]bool),
		titleDomains:   make(map[string]map[string]bool),
		mirrorAlerted:  make(map[string]bool),
		contentLengths: make(map[string]int),
		milestones:     make(map[int]bool),
	}
}

// OnAlert registers a callback invoked synchronously for every alert
func (m *Manager) OnAlert(callback func(alert *models.Alert)) {
	if callback == nil {
		return
	}
	m.mu.Lock()
	m.callbacks = append(m.callbacks, callback)
	m.mu.Unlock()
}

// CreateAlert raises one alert: monotonic id, history append with FIFO
// eviction, synchronous callbacks, persistence, async webhook fanout.
func (m *Manager) CreateAlert(severity models.AlertSeverity, trigger, title, description string, actx interfaces.AlertContext) *models.Alert {
	if !severity.Valid() {
		m.logger.Warn().Str("severity", string(severity)).Str("trigger", trigger).Msg("Alert dropped: unknown severity")
		return nil
	}

	m.mu.Lock()
	m.counter++
	now := time.Now()
	alert := &models.Alert{
		ID:          fmt.Sprintf("ALT-%s-%05d", now.Format("20060102150405"), m.counter%100000),
		Severity:    severity,
		Trigger:     trigger,
		Title:       title,
		Description: description,
		Timestamp:   now,
		Domain:      actx.Domain,
		URL:         actx.URL,
		Entities:    actx.Entities,
		Metadata:    actx.Metadata,
	}

	m.history = append(m.history, alert)
	if limit := m.historyLimit(); len(m.history) > limit {
		m.history = m.history[len(m.history)-limit:]
	}
	callbacks := append(([]func(alert *models.Alert))(nil), m.callbacks...)
	m.mu.Unlock()

	m.logger.Info().
		Str("alert_id", alert.ID).
		Str("severity", string(severity)).
		Str("trigger", trigger).
		Str("domain", actx.Domain).
		Msg(title)

	for _, callback := range callbacks {
		m.invoke(callback, alert)
	}

	if m.store != nil {
		if err := m.store.SaveAlert(alert); err != nil {
			m.logger.Warn().Err(err).Str("alert_id", alert.ID).Msg("Failed to persist alert")
		}
	}

	if m.notify[severity] {
		m.notifier.Notify(alert)
	}
	return alert
}

// Acknowledge marks an alert read in the history and the store. Repeat
// acknowledgements are no-ops.
func (m *Manager) Acknowledge(id, who string) error {
	m.mu.Lock()
	var found *models.Alert
	for _, alert := range m.history {
		if alert.ID == id {
			found = alert
			break
		}
	}
	alreadyAcked := found != nil && found.Acknowledged
	if found != nil && !alreadyAcked {
		now := time.Now()
		found.Acknowledged = true
		found.AcknowledgedBy = who
		found.AcknowledgedAt = &now
	}
	m.mu.Unlock()

	if alreadyAcked {
		return nil
	}

	if m.store != nil {
		if err := m.store.MarkAlertRead(id); err != nil {
			// The history may have evicted an alert that is still stored,
			// or the store may already be acked; only unknown ids fail.
			if found == nil {
				return fmt.Errorf("unknown alert %s: %w", id, err)
			}
			m.logger.Debug().Err(err).Str("alert_id", id).Msg("Store acknowledge skipped")
		}
	} else if found == nil {
		return fmt.Errorf("unknown alert %s", id)
	}
	return nil
}

// RecentAlerts returns the newest alerts, newest first
func (m *Manager) RecentAlerts(limit int) []*models.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 || limit > len(m.history) {
		limit = len(m.history)
	}

	recent := make([]*models.Alert, 0, limit)
	for i := len(m.history) - 1; i >= len(m.history)-limit; i-- {
		recent = append(recent, m.history[i])
	}
	return recent
}

// Watchlists returns a copy of the active indicator lists
func (m *Manager) Watchlists() models.Watchlists {
	return m.watch.snapshot()
}

// AddWatchEntry appends an indicator to a watchlist at runtime
func (m *Manager) AddWatchEntry(kind, value string) error {
	if err := m.watch.add(kind, value); err != nil {
		return err
	}
	m.logger.Info().Str("kind", kind).Str("value", value).Msg("Watchlist entry added")
	return nil
}

// CheckWalletTransaction raises a critical alert when the amount crosses
// the configured threshold or the wallet itself is watched.
func (m *Manager) CheckWalletTransaction(wallet string, amountBTC float64) *models.Alert {
	threshold := m.config.WalletThresholdBTC
	if threshold <= 0 {
		threshold = 10.0
	}

	watched := m.watch.isWatchedWallet(wallet)
	if amountBTC < threshold && !watched {
		return nil
	}

	reason := fmt.Sprintf("transaction of %.4f BTC-equivalent crosses the %.1f threshold", amountBTC, threshold)
	if watched {
		reason = fmt.Sprintf("watched wallet moved %.4f BTC-equivalent", amountBTC)
	}

	return m.CreateAlert(models.SeverityCritical, models.TriggerWalletMajorTx,
		"Major wallet transaction", reason,
		interfaces.AlertContext{
			Entities: []string{wallet},
			Metadata: map[string]interface{}{"wallet": wallet, "amount_btc": amountBTC},
		})
}

// RaiseStatsUpdate emits the periodic crawler stats snapshot
func (m *Manager) RaiseStatsUpdate(stats *models.StoreStats) {
	if stats == nil {
		return
	}
	m.CreateAlert(models.SeverityLow, models.TriggerCrawlerStatsUpdate,
		"Crawler stats update",
		fmt.Sprintf("%d pages stored (%d crawled, %d queued) across %d domains",
			stats.TotalPages, stats.SuccessPages, stats.QueuedPages, stats.TotalDomains),
		interfaces.AlertContext{
			Metadata: map[string]interface{}{
				"total_pages":   stats.TotalPages,
				"success_pages": stats.SuccessPages,
				"queued_pages":  stats.QueuedPages,
				"total_domains": stats.TotalDomains,
				"avg_risk":      stats.AvgRiskScore,
			},
		})
}

// CheckQueueMilestone raises each visited-count milestone exactly once
func (m *Manager) CheckQueueMilestone(visitedCount int) *models.Alert {
	var crossed int
	m.stateMu.Lock()
	for _, milestone := range []int{100, 500, 1000, 5000} {
		if visitedCount >= milestone && !m.milestones[milestone] {
			m.milestones[milestone] = true
			crossed = milestone
		}
	}
	m.stateMu.Unlock()

	if crossed == 0 {
		return nil
	}
	return m.CreateAlert(models.SeverityLow, models.TriggerQueueMilestone,
		fmt.Sprintf("Crawl milestone: %d URLs visited", crossed),
		fmt.Sprintf("the visited set crossed %d (now %d)", crossed, visitedCount),
		interfaces.AlertContext{
			Metadata: map[string]interface{}{"milestone": crossed, "visited": visitedCount},
		})
}

// PageInserted is wired to the store insert hook; it fires once per URL,
// on the first successful crawl.
func (m *Manager) PageInserted(page *models.Page) {
	if page == nil {
		return
	}
	m.CreateAlert(models.SeverityLow, models.TriggerDomainNewPage,
		fmt.Sprintf("New page on %s", page.Domain),
		page.URL,
		interfaces.AlertContext{Domain: page.Domain, URL: page.URL})
}

func (m *Manager) historyLimit() int {
	if m.config.HistoryLimit >= 10 {
		return m.config.HistoryLimit
	}
	return 1000
}

// invoke runs one callback with panic containment
func (m *Manager) invoke(callback func(alert *models.Alert), alert *models.Alert) {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			m.logger.Error().
				Str("alert_id", alert.ID).
				Str("panic", fmt.Sprintf("%v", r)).
				Str("stack", string(buf[:n])).
				Msg("Alert callback panicked")
		}
	}()
	callback(alert)
}
