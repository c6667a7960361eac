package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/umbra/internal/interfaces"
	"github.com/ternarybob/umbra/internal/models"
)

func TestListAlertsHandler_FiltersBySeverity(t *testing.T) {
	fx := newHandlerFixture(t)
	fx.alerts.CreateAlert(models.SeverityCritical, "ransomware_group_detected", "Ransomware leak site", "victim list published", interfaces.AlertContext{
		Domain: testOnionDomain('a'),
	})
	fx.alerts.CreateAlert(models.SeverityLow, "queue_milestone", "Queue milestone", "1000 URLs visited", interfaces.AlertContext{})

	handler := fx.alertHandler().ListAlertsHandler

	all := doJSON(t, handler, http.MethodGet, "/api/alerts", nil)
	require.Equal(t, http.StatusOK, all.Code)
	assert.Equal(t, float64(2), decodeBody(t, all)["count"])

	critical := doJSON(t, handler, http.MethodGet, "/api/alerts?severity=critical", nil)
	require.Equal(t, http.StatusOK, critical.Code)
	body := decodeBody(t, critical)
	alerts := body["alerts"].([]interface{})
	require.Len(t, alerts, 1)
	alert := alerts[0].(map[string]interface{})
	assert.Equal(t, string(models.SeverityCritical), alert["severity"])

	bad := doJSON(t, handler, http.MethodGet, "/api/alerts?severity=catastrophic", nil)
	assert.Equal(t, http.StatusBadRequest, bad.Code)
}

func TestAckAlertHandler_MarksAlertRead(t *testing.T) {
	fx := newHandlerFixture(t)
	alert := fx.alerts.CreateAlert(models.SeverityHigh, "credentials_dump_detected", "Credential dump", "combo list on paste site", interfaces.AlertContext{})
	require.NotNil(t, alert)

	rec := doJSON(t, fx.alertHandler().AckAlertHandler, http.MethodPost, "/api/alerts/ack", map[string]string{
		"id": alert.ID,
		"by": "analyst-7",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	unread, err := fx.storage.Alerts().CountUnread()
	require.NoError(t, err)
	assert.Zero(t, unread)

	recent := fx.alerts.RecentAlerts(1)
	require.Len(t, recent, 1)
	assert.True(t, recent[0].Acknowledged)
	assert.Equal(t, "analyst-7", recent[0].AcknowledgedBy)
}

func TestAckAlertHandler_Validation(t *testing.T) {
	fx := newHandlerFixture(t)
	handler := fx.alertHandler().AckAlertHandler

	missing := doJSON(t, handler, http.MethodPost, "/api/alerts/ack", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, missing.Code)

	unknown := doJSON(t, handler, http.MethodPost, "/api/alerts/ack", map[string]string{"id": "ALT-19700101000000-00001"})
	assert.Equal(t, http.StatusNotFound, unknown.Code)
}

func TestWatchlistHandler_AddAndSnapshot(t *testing.T) {
	fx := newHandlerFixture(t)
	handler := fx.alertHandler().WatchlistHandler

	add := doJSON(t, handler, http.MethodPost, "/api/watchlist", map[string]string{
		"kind":  interfaces.WatchKindDomain,
		"value": testOnionDomain('c'),
	})
	require.Equal(t, http.StatusOK, add.Code)

	snapshot := doJSON(t, handler, http.MethodGet, "/api/watchlist", nil)
	require.Equal(t, http.StatusOK, snapshot.Code)
	body := decodeBody(t, snapshot)
	domains := body["watchlist_domains"].([]interface{})
	assert.Contains(t, domains, testOnionDomain('c'))

	badKind := doJSON(t, handler, http.MethodPost, "/api/watchlist", map[string]string{
		"kind":  "ip",
		"value": "1.2.3.4",
	})
	assert.Equal(t, http.StatusBadRequest, badKind.Code)
}
