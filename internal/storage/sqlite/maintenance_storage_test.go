package sqlite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func seedAgedPages(t *testing.T, db *SQLiteDB) {
	t.Helper()

	logger := arbor.NewLogger()
	storage := NewPageStorage(db, logger, nil)

	old := testPage("http://old.onion/", "old.onion")
	old.FoundAt = time.Now().AddDate(0, 0, -30)
	old.LastCrawl = time.Now().AddDate(0, 0, -30)
	require.NoError(t, storage.SavePage(old))

	stale := testPage("http://stale.onion/", "stale.onion")
	stale.FoundAt = time.Now().AddDate(0, 0, -10)
	stale.LastCrawl = time.Now().AddDate(0, 0, -10)
	require.NoError(t, storage.SavePage(stale))

	fresh := testPage("http://fresh.onion/", "fresh.onion")
	require.NoError(t, storage.SavePage(fresh))
}

func TestPurge_DeletesOldRows(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	logger := arbor.NewLogger()
	seedAgedPages(t, db)

	maintenance := NewMaintenanceStorage(db, logger)
	affected, err := maintenance.Purge(7, false)
	require.NoError(t, err)
	assert.Equal(t, 2, affected)

	pages := NewPageStorage(db, logger, nil)
	stats, err := pages.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalPages)

	remaining, err := pages.GetPage("http://fresh.onion/")
	require.NoError(t, err)
	assert.NotNil(t, remaining)
}

func TestPurge_AnonymizeKeepsRows(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	logger := arbor.NewLogger()
	seedAgedPages(t, db)

	maintenance := NewMaintenanceStorage(db, logger)
	affected, err := maintenance.Purge(7, true)
	require.NoError(t, err)
	assert.Equal(t, 2, affected)

	pages := NewPageStorage(db, logger, nil)
	stats, err := pages.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalPages, "anonymize keeps the crawl history")

	scrubbed, err := pages.GetPage("http://old.onion/")
	require.NoError(t, err)
	require.NotNil(t, scrubbed)
	assert.Empty(t, scrubbed.Emails)
	assert.Empty(t, scrubbed.Cryptos)
	assert.Empty(t, scrubbed.Secrets)
	assert.Empty(t, scrubbed.Socials)
	assert.Empty(t, scrubbed.IPLeaks)
	assert.Equal(t, "Hidden Wiki", scrubbed.Title, "non-sensitive fields survive")

	intact, err := pages.GetPage("http://fresh.onion/")
	require.NoError(t, err)
	require.NotNil(t, intact)
	assert.NotEmpty(t, intact.Emails)
}

func TestPurge_RejectsNonPositiveWindow(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	logger := arbor.NewLogger()
	maintenance := NewMaintenanceStorage(db, logger)

	_, err := maintenance.Purge(0, false)
	assert.Error(t, err)
	_, err = maintenance.Purge(-3, false)
	assert.Error(t, err)
}

func TestVacuum(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	logger := arbor.NewLogger()
	seedAgedPages(t, db)

	maintenance := NewMaintenanceStorage(db, logger)
	_, err := maintenance.Purge(7, false)
	require.NoError(t, err)
	require.NoError(t, maintenance.Vacuum())
}
