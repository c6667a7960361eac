package handlers

import (
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/umbra/internal/models"
)

func TestExportHandler_WritesJSONExport(t *testing.T) {
	fx := newHandlerFixture(t)
	fx.savePage(t, 'a', "/", "Emerald Market")

	rec := doJSON(t, fx.adminHandler().ExportHandler, http.MethodPost, "/api/export", map[string]interface{}{
		"format": "json",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	details := body["details"].(map[string]interface{})
	assert.Equal(t, float64(1), details["records"])

	path := details["path"].(string)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), testOnionDomain('a'))
}

func TestExportHandler_WritesPDFSummary(t *testing.T) {
	fx := newHandlerFixture(t)
	fx.savePage(t, 'a', "/", "Emerald Market")

	rec := doJSON(t, fx.adminHandler().ExportHandler, http.MethodPost, "/api/export", map[string]interface{}{
		"format": "pdf",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	details := body["details"].(map[string]interface{})
	data, err := os.ReadFile(details["path"].(string))
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(data[:4]))
}

func TestExportHandler_RejectsUnknownFormat(t *testing.T) {
	fx := newHandlerFixture(t)

	rec := doJSON(t, fx.adminHandler().ExportHandler, http.MethodPost, "/api/export", map[string]interface{}{
		"format": "xlsx",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPurgeHandler_RemovesAgedPages(t *testing.T) {
	fx := newHandlerFixture(t)
	old := &models.Page{
		URL:       testOnionURL('a', "/stale"),
		Domain:    testOnionDomain('a'),
		Title:     "Stale listing",
		Status:    200,
		LastCrawl: time.Now().AddDate(0, 0, -90),
	}
	require.NoError(t, fx.storage.Pages().SavePage(old))
	fx.savePage(t, 'b', "/", "Fresh page")

	rec := doJSON(t, fx.adminHandler().PurgeHandler, http.MethodPost, "/api/purge", map[string]interface{}{
		"days": 30,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	details := body["details"].(map[string]interface{})
	assert.Equal(t, float64(1), details["affected"])

	remaining, err := fx.storage.Pages().AllPages()
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "Fresh page", remaining[0].Title)
}

func TestPurgeHandler_RequiresPositiveRetention(t *testing.T) {
	fx := newHandlerFixture(t)

	// No body and no configured retention window.
	rec := doJSON(t, fx.adminHandler().PurgeHandler, http.MethodPost, "/api/purge", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVacuumHandler_Succeeds(t *testing.T) {
	fx := newHandlerFixture(t)
	fx.savePage(t, 'a', "/", "Emerald Market")

	rec := doJSON(t, fx.adminHandler().VacuumHandler, http.MethodPost, "/api/vacuum", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["success"])
}

func TestReanalyzeHandler_RefreshesIntelFromCache(t *testing.T) {
	fx := newHandlerFixture(t)
	page := fx.savePage(t, 'a', "/", "Old title")
	require.NoError(t, fx.storage.Cache().Put(&models.CachedPage{
		URL:         page.URL,
		Domain:      page.Domain,
		ContentType: "text/html; charset=utf-8",
		Body: []byte(`<html><head><title>Emerald Market</title></head>` +
			`<body><p>Contact vendor@proton.me</p></body></html>`),
		FetchedAt: time.Now(),
	}))

	rec := doJSON(t, fx.adminHandler().ReanalyzeHandler, http.MethodPost, "/api/reanalyze", map[string]interface{}{
		"domain": page.Domain,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	details := body["details"].(map[string]interface{})
	assert.Equal(t, float64(1), details["updated"])

	stored, err := fx.storage.Pages().GetPage(page.URL)
	require.NoError(t, err)
	assert.Equal(t, "Emerald Market", stored.Title)
	assert.Contains(t, stored.Emails, "vendor@proton.me")
	assert.NotZero(t, fx.graph.Stats().Nodes)
}
