package reports

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/umbra/internal/common"
	"github.com/ternarybob/umbra/internal/interfaces"
	"github.com/ternarybob/umbra/internal/models"
	"github.com/ternarybob/umbra/internal/storage"
)

func newTestStore(t *testing.T) interfaces.StorageManager {
	t.Helper()
	config := &common.Config{
		Storage: common.StorageConfig{
			SQLite: common.SQLiteConfig{
				Path:        filepath.Join(t.TempDir(), "umbra.db"),
				CacheSizeKB: 1000,
				BusyTimeout: "1s",
			},
		},
	}
	manager, err := storage.NewManager(arbor.NewLogger(), config)
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })
	return manager
}

func TestGenerateSummary_WritesPDF(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Pages().SavePage(&models.Page{
		URL:      "http://emeraldaaaaaaaaa.onion/market/",
		Domain:   "emeraldaaaaaaaaa.onion",
		Title:    "Emerald Market",
		Status:   http.StatusOK,
		Category: "marketplace",
		Emails:   []string{"vendor@proton.me"},
	}))
	require.NoError(t, store.Pages().SavePage(&models.Page{
		URL:    "http://quietbbbbbbbbbbb.onion/",
		Domain: "quietbbbbbbbbbbb.onion",
		Title:  "quiet forum",
		Status: http.StatusOK,
	}))
	require.NoError(t, store.Alerts().SaveAlert(&models.Alert{
		ID:        "ALT-20260825120000-00001",
		Severity:  models.SeverityCritical,
		Trigger:   models.TriggerRansomwareGroup,
		Title:     "Ransomware group mentioned",
		Timestamp: time.Now(),
		Domain:    "emeraldaaaaaaaaa.onion",
	}))

	service := NewService(arbor.NewLogger(), store.Pages(), store.Alerts())

	path := filepath.Join(t.TempDir(), "reports", "summary.pdf")
	size, err := service.GenerateSummary(path)
	require.NoError(t, err)
	assert.Greater(t, size, 500)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Greater(t, len(raw), 4)
	assert.Equal(t, "%PDF", string(raw[:4]))
}

func TestGenerateSummary_EmptyStoreStillRenders(t *testing.T) {
	store := newTestStore(t)
	service := NewService(arbor.NewLogger(), store.Pages(), store.Alerts())

	path := filepath.Join(t.TempDir(), "summary.pdf")
	size, err := service.GenerateSummary(path)
	require.NoError(t, err)
	assert.Greater(t, size, 0)
}

func TestGenerateSummary_NilAlertStoreTolerated(t *testing.T) {
	store := newTestStore(t)
	service := NewService(arbor.NewLogger(), store.Pages(), nil)

	path := filepath.Join(t.TempDir(), "summary.pdf")
	_, err := service.GenerateSummary(path)
	require.NoError(t, err)
}
