package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/umbra/internal/common"
	"github.com/ternarybob/umbra/internal/interfaces"
	"github.com/ternarybob/umbra/internal/models"
	"github.com/ternarybob/umbra/internal/services/alerts"
	"github.com/ternarybob/umbra/internal/services/analyzer"
	"github.com/ternarybob/umbra/internal/services/crawler"
	"github.com/ternarybob/umbra/internal/services/entities"
	"github.com/ternarybob/umbra/internal/services/graph"
	"github.com/ternarybob/umbra/internal/services/policies"
	"github.com/ternarybob/umbra/internal/services/reports"
	"github.com/ternarybob/umbra/internal/storage"
)

// handlerFixture wires the full stack onto a temp directory the way the
// composition root does, with a proxyless engine that is never started.
type handlerFixture struct {
	config   *common.Config
	storage  interfaces.StorageManager
	policies *policies.Service
	graph    *graph.Graph
	engine   *crawler.Engine
	alerts   *alerts.Manager
	analyzer *analyzer.Analyzer
	reports  *reports.Service
	logger   arbor.ILogger
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	logger := arbor.NewLogger()
	dir := t.TempDir()

	config := &common.Config{
		Storage: common.StorageConfig{
			SQLite: common.SQLiteConfig{
				Path:        filepath.Join(dir, "umbra.db"),
				CacheSizeKB: 1000,
				BusyTimeout: "1s",
			},
			Cache: common.CacheConfig{
				Enabled: true,
				Path:    filepath.Join(dir, "cache"),
			},
		},
		Crawler: common.CrawlerConfig{
			MaxWorkers:          1,
			MaxPages:            100,
			MaxDepth:            3,
			TimeoutSeconds:      5,
			QueueTimeoutSeconds: 1,
			SessionRecycle:      10,
		},
		Alerts: common.AlertsConfig{
			HistoryLimit:         100,
			WebhookRatePerMinute: 10,
		},
		Export: common.ExportConfig{
			Dir: filepath.Join(dir, "exports"),
		},
	}

	manager, err := storage.NewManager(logger, config)
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })

	policyService, err := policies.NewService(logger, manager.Policies())
	require.NoError(t, err)

	entityGraph := graph.New(logger)
	textAnalyzer := analyzer.New(logger, config.Crawler.IgnoredExtensions)
	alertManager := alerts.NewManager(logger, &config.Alerts, manager.Alerts())

	engine, err := crawler.New(crawler.Dependencies{
		Logger:    logger,
		Config:    config,
		Store:     manager.Pages(),
		Domains:   manager.Domains(),
		Cache:     manager.Cache(),
		Policies:  policyService,
		Alerts:    alertManager,
		Analyzer:  textAnalyzer,
		Extractor: entities.New(logger),
		Graph:     entityGraph,
	})
	require.NoError(t, err)

	return &handlerFixture{
		config:   config,
		storage:  manager,
		policies: policyService,
		graph:    entityGraph,
		engine:   engine,
		alerts:   alertManager,
		analyzer: textAnalyzer,
		reports:  reports.NewService(logger, manager.Pages(), manager.Alerts()),
		logger:   logger,
	}
}

func (fx *handlerFixture) pageHandler() *PageHandler {
	return NewPageHandler(fx.storage.Pages(), fx.storage.Cache(), fx.engine, fx.analyzer, fx.logger)
}

func (fx *handlerFixture) entityHandler() *EntityHandler {
	return NewEntityHandler(fx.graph, fx.logger)
}

func (fx *handlerFixture) alertHandler() *AlertHandler {
	return NewAlertHandler(fx.alerts, fx.storage.Alerts(), fx.logger)
}

func (fx *handlerFixture) controlHandler() *ControlHandler {
	return NewControlHandler(fx.engine, fx.policies, fx.storage.Pages(), fx.storage.Domains(), fx.logger)
}

func (fx *handlerFixture) adminHandler() *AdminHandler {
	return NewAdminHandler(fx.storage, fx.reports, fx.engine, fx.config, fx.logger)
}

func (fx *handlerFixture) statusHandler() *StatusHandler {
	return NewStatusHandler(fx.engine, fx.storage, fx.graph, fx.logger)
}

// savePage stores a minimal successful page for the given onion label.
func (fx *handlerFixture) savePage(t *testing.T, label rune, path, title string) *models.Page {
	t.Helper()
	page := &models.Page{
		URL:       testOnionURL(label, path),
		Domain:    testOnionDomain(label),
		Title:     title,
		Status:    200,
		LastCrawl: time.Now(),
	}
	require.NoError(t, fx.storage.Pages().SavePage(page))
	return page
}

func testOnionURL(label rune, path string) string {
	return fmt.Sprintf("http://%s.onion%s", strings.Repeat(string(label), 16), path)
}

func testOnionDomain(label rune) string {
	return strings.Repeat(string(label), 16) + ".onion"
}

// doJSON performs a request with a JSON body against a handler func.
func doJSON(t *testing.T, handler http.HandlerFunc, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

// httptestPostRaw posts a raw string body, for malformed-JSON cases.
func httptestPostRaw(t *testing.T, handler http.HandlerFunc, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

// decodeBody unmarshals a JSON response body into a generic map.
func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), "body: %s", rec.Body.String())
	return body
}
