package sqlite

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/umbra/internal/common"
	"github.com/ternarybob/umbra/internal/models"
)

// oldSchemaSQL is the table shape of the first release, before the
// intel_flag, keywords and alert acknowledgement columns existed.
const oldSchemaSQL = `
CREATE TABLE intel (
	url TEXT PRIMARY KEY,
	domain TEXT NOT NULL,
	title TEXT,
	status INTEGER DEFAULT 0,
	depth INTEGER DEFAULT 0,
	content_length INTEGER DEFAULT 0,
	error TEXT,
	secrets TEXT,
	cryptos TEXT,
	socials TEXT,
	emails TEXT,
	ip_leaks TEXT,
	tech_stack TEXT,
	onion_links TEXT,
	language TEXT,
	category TEXT,
	risk_score INTEGER DEFAULT 0,
	found_at INTEGER NOT NULL,
	last_crawl INTEGER NOT NULL
);

CREATE TABLE alerts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	alert_id TEXT NOT NULL UNIQUE,
	type TEXT NOT NULL,
	severity TEXT NOT NULL,
	title TEXT NOT NULL,
	message TEXT,
	domain TEXT,
	url TEXT,
	entities TEXT,
	metadata TEXT,
	read INTEGER DEFAULT 0,
	created_at INTEGER NOT NULL
);
`

func TestInitSchema_MigratesOldDatabase(t *testing.T) {
	dbPath := t.TempDir() + "/old.db"

	// Lay down a first-release database with a row in it
	raw, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	_, err = raw.Exec(oldSchemaSQL)
	require.NoError(t, err)
	_, err = raw.Exec(`
		INSERT INTO intel (url, domain, title, status, found_at, last_crawl)
		VALUES ('http://legacy.onion/', 'legacy.onion', 'Legacy', 200, 1700000000, 1700000000)`)
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	// Opening through the normal path upgrades it in place
	logger := arbor.NewLogger()
	config := &common.SQLiteConfig{Path: dbPath}
	db, err := NewSQLiteDB(logger, config)
	require.NoError(t, err)
	defer db.Close()

	columns, err := db.tableColumns("intel")
	require.NoError(t, err)
	assert.True(t, columns["intel_flag"])
	assert.True(t, columns["keywords"])

	alertColumns, err := db.tableColumns("alerts")
	require.NoError(t, err)
	assert.True(t, alertColumns["ack_by"])
	assert.True(t, alertColumns["ack_at"])

	// The pre-migration row is readable and writable through the new code
	storage := NewPageStorage(db, logger, nil)
	page, err := storage.GetPage("http://legacy.onion/")
	require.NoError(t, err)
	require.NotNil(t, page)
	assert.Equal(t, "Legacy", page.Title)
	assert.Equal(t, models.IntelFlagNone, page.IntelFlag)

	page.Keywords = []string{"legacy"}
	require.NoError(t, storage.SavePage(page))
	require.NoError(t, storage.SetIntelFlag(page.URL, models.IntelFlagImportant))
}

func TestInitSchema_Idempotent(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	// NewSQLiteDB already ran it once; a second run must be harmless
	require.NoError(t, db.InitSchema())
	require.NoError(t, db.InitSchema())
}
