package alerts

import (
	"fmt"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/umbra/internal/common"
	"github.com/ternarybob/umbra/internal/interfaces"
	"github.com/ternarybob/umbra/internal/models"
)

func testConfig() *common.AlertsConfig {
	return &common.AlertsConfig{
		HistoryLimit:         50,
		NotifySeverities:     []string{"CRITICAL", "HIGH"},
		WebhookRatePerMinute: 10,
		WalletThresholdBTC:   10.0,
	}
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(arbor.NewLogger(), testConfig(), nil)
}

func TestCreateAlert_IDFormat(t *testing.T) {
	manager := newTestManager(t)

	alert := manager.CreateAlert(models.SeverityLow, models.TriggerDomainNewPage,
		"New page", "http://a.onion/x", interfaces.AlertContext{Domain: "a.onion"})
	require.NotNil(t, alert)

	assert.Regexp(t, regexp.MustCompile(`^ALT-\d{14}-\d{5}$`), alert.ID)
	assert.Equal(t, "a.onion", alert.Domain)
	assert.False(t, alert.Timestamp.IsZero())
}

func TestCreateAlert_IDsStrictlyIncreasing(t *testing.T) {
	manager := newTestManager(t)

	previous := ""
	for i := 0; i < 200; i++ {
		alert := manager.CreateAlert(models.SeverityLow, models.TriggerDomainNewPage,
			"New page", fmt.Sprintf("http://a.onion/%d", i), interfaces.AlertContext{})
		require.NotNil(t, alert)
		assert.Greater(t, alert.ID, previous)
		previous = alert.ID
	}
}

func TestCreateAlert_RejectsUnknownSeverity(t *testing.T) {
	manager := newTestManager(t)

	alert := manager.CreateAlert("SHRUG", models.TriggerHighRiskScore, "x", "y", interfaces.AlertContext{})
	assert.Nil(t, alert)
	assert.Empty(t, manager.RecentAlerts(0))
}

func TestCreateAlert_HistoryEviction(t *testing.T) {
	manager := NewManager(arbor.NewLogger(), &common.AlertsConfig{
		HistoryLimit:     10,
		NotifySeverities: []string{},
	}, nil)

	var first string
	for i := 0; i < 15; i++ {
		alert := manager.CreateAlert(models.SeverityLow, models.TriggerDomainNewPage,
			"New page", fmt.Sprintf("http://a.onion/%d", i), interfaces.AlertContext{})
		require.NotNil(t, alert)
		if i == 0 {
			first = alert.ID
		}
	}

	recent := manager.RecentAlerts(0)
	require.Len(t, recent, 10)
	for _, alert := range recent {
		assert.NotEqual(t, first, alert.ID)
	}
}

func TestRecentAlerts_NewestFirst(t *testing.T) {
	manager := newTestManager(t)

	var ids []string
	for i := 0; i < 5; i++ {
		alert := manager.CreateAlert(models.SeverityLow, models.TriggerDomainNewPage,
			"New page", fmt.Sprintf("page %d", i), interfaces.AlertContext{})
		ids = append(ids, alert.ID)
	}

	recent := manager.RecentAlerts(3)
	require.Len(t, recent, 3)
	assert.Equal(t, ids[4], recent[0].ID)
	assert.Equal(t, ids[3], recent[1].ID)
	assert.Equal(t, ids[2], recent[2].ID)
}

func TestOnAlert_CallbacksRunForEveryAlert(t *testing.T) {
	manager := newTestManager(t)

	var seen []string
	manager.OnAlert(func(alert *models.Alert) {
		seen = append(seen, alert.Trigger)
	})

	manager.CreateAlert(models.SeverityLow, models.TriggerDomainNewPage, "a", "b", interfaces.AlertContext{})
	manager.CreateAlert(models.SeverityMedium, models.TriggerHighRiskScore, "c", "d", interfaces.AlertContext{})

	assert.Equal(t, []string{models.TriggerDomainNewPage, models.TriggerHighRiskScore}, seen)
}

func TestOnAlert_PanickingCallbackContained(t *testing.T) {
	manager := newTestManager(t)

	ran := 0
	manager.OnAlert(func(alert *models.Alert) { panic("boom") })
	manager.OnAlert(func(alert *models.Alert) { ran++ })

	alert := manager.CreateAlert(models.SeverityLow, models.TriggerDomainNewPage, "a", "b", interfaces.AlertContext{})
	require.NotNil(t, alert)
	assert.Equal(t, 1, ran)
}

func TestAcknowledge(t *testing.T) {
	manager := newTestManager(t)

	alert := manager.CreateAlert(models.SeverityHigh, models.TriggerDomainInWatchlist,
		"Watchlist domain crawled", "x", interfaces.AlertContext{Domain: "bad.onion"})
	require.NotNil(t, alert)

	require.NoError(t, manager.Acknowledge(alert.ID, "analyst"))

	recent := manager.RecentAlerts(1)
	require.Len(t, recent, 1)
	assert.True(t, recent[0].Acknowledged)
	assert.Equal(t, "analyst", recent[0].AcknowledgedBy)
	require.NotNil(t, recent[0].AcknowledgedAt)

	// Repeat acknowledgements are no-ops
	require.NoError(t, manager.Acknowledge(alert.ID, "someone-else"))
	assert.Equal(t, "analyst", manager.RecentAlerts(1)[0].AcknowledgedBy)

	assert.Error(t, manager.Acknowledge("ALT-00000000000000-00000", "analyst"))
}

func TestCheckWalletTransaction(t *testing.T) {
	manager := newTestManager(t)

	assert.Nil(t, manager.CheckWalletTransaction("bc1qunremarkable", 2.5))

	alert := manager.CheckWalletTransaction("bc1qbigmover", 12.0)
	require.NotNil(t, alert)
	assert.Equal(t, models.SeverityCritical, alert.Severity)
	assert.Equal(t, models.TriggerWalletMajorTx, alert.Trigger)
	assert.Equal(t, 12.0, alert.Metadata["amount_btc"])
}

func TestCheckWalletTransaction_WatchedWalletIgnoresThreshold(t *testing.T) {
	manager := newTestManager(t)
	require.NoError(t, manager.AddWatchEntry(interfaces.WatchKindWallet, "bc1qwatchedwallet"))

	alert := manager.CheckWalletTransaction("bc1qwatchedwallet", 0.01)
	require.NotNil(t, alert)
	assert.Equal(t, models.TriggerWalletMajorTx, alert.Trigger)
	assert.Contains(t, alert.Description, "watched wallet")
}

func TestCheckQueueMilestone_OnceEach(t *testing.T) {
	manager := newTestManager(t)

	assert.Nil(t, manager.CheckQueueMilestone(50))

	alert := manager.CheckQueueMilestone(120)
	require.NotNil(t, alert)
	assert.Equal(t, models.TriggerQueueMilestone, alert.Trigger)
	assert.Equal(t, 100, alert.Metadata["milestone"])

	assert.Nil(t, manager.CheckQueueMilestone(130))

	alert = manager.CheckQueueMilestone(5200)
	require.NotNil(t, alert)
	assert.Equal(t, 5000, alert.Metadata["milestone"])

	assert.Nil(t, manager.CheckQueueMilestone(9000))
}

func TestRaiseStatsUpdate(t *testing.T) {
	manager := newTestManager(t)

	manager.RaiseStatsUpdate(nil)
	assert.Empty(t, manager.RecentAlerts(0))

	manager.RaiseStatsUpdate(&models.StoreStats{
		TotalPages: 42, SuccessPages: 30, QueuedPages: 12, TotalDomains: 7,
	})

	recent := manager.RecentAlerts(1)
	require.Len(t, recent, 1)
	assert.Equal(t, models.TriggerCrawlerStatsUpdate, recent[0].Trigger)
	assert.Equal(t, models.SeverityLow, recent[0].Severity)
	assert.Equal(t, 42, recent[0].Metadata["total_pages"])
}

func TestPageInserted(t *testing.T) {
	manager := newTestManager(t)

	manager.PageInserted(nil)
	assert.Empty(t, manager.RecentAlerts(0))

	manager.PageInserted(&models.Page{URL: "http://fresh.onion/x", Domain: "fresh.onion"})

	recent := manager.RecentAlerts(1)
	require.Len(t, recent, 1)
	assert.Equal(t, models.TriggerDomainNewPage, recent[0].Trigger)
	assert.Equal(t, "fresh.onion", recent[0].Domain)
}

func TestWatchlists_SnapshotIsACopy(t *testing.T) {
	manager := newTestManager(t)
	require.NoError(t, manager.AddWatchEntry(interfaces.WatchKindDomain, "bad.onion"))

	lists := manager.Watchlists()
	require.Equal(t, []string{"bad.onion"}, lists.WatchlistDomains)

	lists.WatchlistDomains[0] = "mutated.onion"
	assert.Equal(t, []string{"bad.onion"}, manager.Watchlists().WatchlistDomains)
}

func TestAddWatchEntry_Validation(t *testing.T) {
	manager := newTestManager(t)

	assert.Error(t, manager.AddWatchEntry("haunted", "value"))
	assert.Error(t, manager.AddWatchEntry(interfaces.WatchKindDomain, "  "))

	require.NoError(t, manager.AddWatchEntry(interfaces.WatchKindEmail, "CEO@Corp.example"))
	assert.Equal(t, []string{"ceo@corp.example"}, manager.Watchlists().WatchlistEmails)
}
