package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/umbra/internal/interfaces"
)

func TestGetStatusHandler_AggregatesSubsystems(t *testing.T) {
	fx := newHandlerFixture(t)
	fx.savePage(t, 'a', "/", "Emerald Market")
	ingestMarketPage(fx, 'a')

	rec := doJSON(t, fx.statusHandler().GetStatusHandler, http.MethodGet, "/api/status", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)

	engine := body["engine"].(map[string]interface{})
	assert.Equal(t, interfaces.EngineStateInit, engine["state"])

	store := body["store"].(map[string]interface{})
	assert.Equal(t, float64(1), store["total_pages"])

	graphStats := body["graph"].(map[string]interface{})
	assert.Equal(t, float64(2), graphStats["nodes"])

	assert.Contains(t, body, "alerts_unread")
	assert.Contains(t, body, "cache_entries")
}

func TestVersionHandler_ReportsBuildInfo(t *testing.T) {
	handler := NewAPIHandler()

	rec := doJSON(t, handler.VersionHandler, http.MethodGet, "/api/version", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.NotEmpty(t, body["version"])
}

func TestHealthHandler_AlwaysOK(t *testing.T) {
	handler := NewAPIHandler()

	rec := doJSON(t, handler.HealthHandler, http.MethodGet, "/api/health", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])
}

func TestNotFoundHandler_ReturnsJSON(t *testing.T) {
	handler := NewAPIHandler()

	rec := doJSON(t, handler.NotFoundHandler, http.MethodGet, "/api/missing", nil)

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "/api/missing", decodeBody(t, rec)["path"])
}
