package sqlite

import (
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/umbra/internal/interfaces"
)

// MaintenanceStorage implements retention and compaction on the store
type MaintenanceStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
}

// NewMaintenanceStorage creates a maintenance storage instance
func NewMaintenanceStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.MaintenanceStorage {
	return &MaintenanceStorage{db: db, logger: logger}
}

// Purge removes pages not crawled within the retention window. With
// anonymize set the rows stay but their sensitive intel columns are
// cleared, keeping the crawl history without the payload.
func (m *MaintenanceStorage) Purge(days int, anonymize bool) (int, error) {
	if days <= 0 {
		return 0, fmt.Errorf("retention days must be positive, got %d", days)
	}
	cutoff := time.Now().AddDate(0, 0, -days).Unix()

	var query string
	if anonymize {
		query = `
			UPDATE intel SET
				secrets = NULL,
				cryptos = NULL,
				socials = NULL,
				emails = NULL,
				ip_leaks = NULL
			WHERE last_crawl < ?`
	} else {
		query = `DELETE FROM intel WHERE last_crawl < ?`
	}

	result, err := m.db.db.Exec(query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge pages: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	m.logger.Info().
		Int("days", days).
		Bool("anonymize", anonymize).
		Int64("affected", affected).
		Msg("Purge completed")
	return int(affected), nil
}

// Vacuum compacts the database file. Run it after large purges; SQLite
// holds the freed pages otherwise.
func (m *MaintenanceStorage) Vacuum() error {
	started := time.Now()
	if _, err := m.db.db.Exec(`VACUUM`); err != nil {
		return fmt.Errorf("failed to vacuum database: %w", err)
	}
	m.logger.Info().Str("duration", time.Since(started).String()).Msg("Database vacuum completed")
	return nil
}
