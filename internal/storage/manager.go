package storage

import (
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/umbra/internal/common"
	"github.com/ternarybob/umbra/internal/interfaces"
	"github.com/ternarybob/umbra/internal/storage/cache"
	"github.com/ternarybob/umbra/internal/storage/sqlite"
)

// Manager wires the SQLite store and the optional Badger content cache
// into the composite storage surface the rest of the app consumes.
type Manager struct {
	db     *sqlite.SQLiteDB
	logger arbor.ILogger

	pages       interfaces.PageStorage
	domains     interfaces.DomainStorage
	alerts      interfaces.AlertStorage
	policies    interfaces.PolicyStorage
	exports     interfaces.ExportStorage
	maintenance interfaces.MaintenanceStorage
	cache       interfaces.ContentCache
}

// NewManager opens the store described by config. The content cache is
// only opened when enabled; Cache() returns nil otherwise.
func NewManager(logger arbor.ILogger, config *common.Config) (interfaces.StorageManager, error) {
	crypt, err := common.NewFieldCryptFromConfig(config)
	if err != nil {
		return nil, err
	}

	db, err := sqlite.NewSQLiteDB(logger, &config.Storage.SQLite)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:          db,
		logger:      logger,
		pages:       sqlite.NewPageStorage(db, logger, crypt),
		domains:     sqlite.NewDomainStorage(db, logger),
		alerts:      sqlite.NewAlertStorage(db, logger),
		policies:    sqlite.NewPolicyStorage(db, logger),
		exports:     sqlite.NewExportStorage(db, logger, crypt),
		maintenance: sqlite.NewMaintenanceStorage(db, logger),
	}

	if config.Storage.Cache.Enabled {
		contentCache, err := cache.New(logger, &config.Storage.Cache)
		if err != nil {
			db.Close()
			return nil, err
		}
		manager.cache = contentCache
	}

	return manager, nil
}

func (m *Manager) Pages() interfaces.PageStorage {
	return m.pages
}

func (m *Manager) Domains() interfaces.DomainStorage {
	return m.domains
}

func (m *Manager) Alerts() interfaces.AlertStorage {
	return m.alerts
}

func (m *Manager) Policies() interfaces.PolicyStorage {
	return m.policies
}

func (m *Manager) Exports() interfaces.ExportStorage {
	return m.exports
}

func (m *Manager) Maintenance() interfaces.MaintenanceStorage {
	return m.maintenance
}

// Cache returns the content cache, or nil when it is disabled
func (m *Manager) Cache() interfaces.ContentCache {
	return m.cache
}

// Close shuts down the cache and then the database
func (m *Manager) Close() error {
	var firstErr error
	if m.cache != nil {
		if err := m.cache.Close(); err != nil {
			m.logger.Warn().Err(err).Msg("Failed to close content cache")
			firstErr = err
		}
	}
	if m.db != nil {
		if err := m.db.Close(); err != nil {
			m.logger.Warn().Err(err).Msg("Failed to close database")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
