package sqlite

const schemaSQL = `
-- Crawled pages and the intel extracted from them.
-- List and map fields are stored as JSON text; timestamps as unix seconds.
CREATE TABLE IF NOT EXISTS intel (
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
	keywords TEXT,
	risk_score INTEGER DEFAULT 0,
	intel_flag TEXT DEFAULT '',
	found_at INTEGER NOT NULL,
	last_crawl INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_intel_domain ON intel(domain);
CREATE INDEX IF NOT EXISTS idx_intel_status ON intel(status);
CREATE INDEX IF NOT EXISTS idx_intel_risk ON intel(risk_score);
CREATE INDEX IF NOT EXISTS idx_intel_last_crawl ON intel(last_crawl);

-- Domain allow/deny list. A domain sits on at most one list.
CREATE TABLE IF NOT EXISTS domain_lists (
	domain TEXT PRIMARY KEY,
	list_type TEXT NOT NULL,
	reason TEXT,
	added_at INTEGER NOT NULL
);

-- Raised alerts. Immutable except the read/acknowledgement fields.
CREATE TABLE IF NOT EXISTS alerts (
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
	ack_by TEXT,
	ack_at INTEGER,
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_alerts_severity ON alerts(severity, created_at);
CREATE INDEX IF NOT EXISTS idx_alerts_read ON alerts(read, created_at);

-- Per-domain crawl policies
CREATE TABLE IF NOT EXISTS domain_policy (
	domain TEXT PRIMARY KEY,
	status TEXT NOT NULL DEFAULT 'normal',
	trust_level INTEGER DEFAULT 0,
	max_depth INTEGER DEFAULT 0,
	delay_ms INTEGER DEFAULT 0,
	priority_boost INTEGER DEFAULT 0,
	notes TEXT,
	updated_at INTEGER NOT NULL
);
`

// InitSchema initializes the database schema
func (s *SQLiteDB) InitSchema() error {
	_, err := s.db.Exec(schemaSQL)
	if err != nil {
		return err
	}
	s.logger.Info().Msg("Database schema initialized")

	// Schema evolution for databases created by earlier builds
	if err := s.runMigrations(); err != nil {
		return err
	}

	return nil
}

// runMigrations adds columns introduced after the first release. Additive
// only: existing rows keep working and downgrades just ignore the extras.
func (s *SQLiteDB) runMigrations() error {
	intelColumns, err := s.tableColumns("intel")
	if err != nil {
		return err
	}
	alertColumns, err := s.tableColumns("alerts")
	if err != nil {
		return err
	}

	migrated := false

	if !intelColumns["intel_flag"] {
		s.logger.Info().Msg("Running migration: adding intel_flag column to intel")
		if _, err := s.db.Exec(`ALTER TABLE intel ADD COLUMN intel_flag TEXT DEFAULT ''`); err != nil {
			return err
		}
		migrated = true
	}

	if !intelColumns["keywords"] {
		s.logger.Info().Msg("Running migration: adding keywords column to intel")
		if _, err := s.db.Exec(`ALTER TABLE intel ADD COLUMN keywords TEXT`); err != nil {
			return err
		}
		migrated = true
	}

	if !alertColumns["ack_by"] {
		s.logger.Info().Msg("Running migration: adding acknowledgement columns to alerts")
		if _, err := s.db.Exec(`ALTER TABLE alerts ADD COLUMN ack_by TEXT`); err != nil {
			return err
		}
		if _, err := s.db.Exec(`ALTER TABLE alerts ADD COLUMN ack_at INTEGER`); err != nil {
			return err
		}
		migrated = true
	}

	if migrated {
		s.logger.Info().Msg("Schema migrations completed successfully")
	}
	return nil
}

// tableColumns returns the column names of a table via PRAGMA table_info
func (s *SQLiteDB) tableColumns(table string) (map[string]bool, error) {
	rows, err := s.db.Query(`PRAGMA table_info(` + table + `)`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns := make(map[string]bool)
	for rows.Next() {
		var cid int
		var name, typ string
		var notnull, dfltValue, pk interface{}
		if err := rows.Scan(&cid, &name, &typ, &notnull, &dfltValue, &pk); err != nil {
			return nil, err
		}
		columns[name] = true
	}
	return columns, rows.Err()
}
