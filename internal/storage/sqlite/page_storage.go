package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/umbra/internal/common"
	"github.com/ternarybob/umbra/internal/interfaces"
	"github.com/ternarybob/umbra/internal/models"
)

// intelColumns is the canonical select list for page rows
const intelColumns = `url, domain, title, status, depth, content_length, error,
	secrets, cryptos, socials, emails, ip_leaks, tech_stack, onion_links,
	language, category, keywords, risk_score, intel_flag, found_at, last_crawl`

// PageStorage implements interfaces.PageStorage on the intel table.
// The secrets, cryptos, socials and emails columns are encrypted at rest
// when a field crypt is configured.
type PageStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
	crypt  *common.FieldCrypt

	hookMu     sync.RWMutex
	insertHook func(page *models.Page)
}

// NewPageStorage creates a page storage instance. crypt may be nil, which
// stores the sensitive columns in plaintext.
func NewPageStorage(db *SQLiteDB, logger arbor.ILogger, crypt *common.FieldCrypt) interfaces.PageStorage {
	return &PageStorage{
		db:     db,
		logger: logger,
		crypt:  crypt,
	}
}

// SetPageInsertHook registers the callback invoked after a page is stored
// with a success status for the first time.
func (p *PageStorage) SetPageInsertHook(hook func(page *models.Page)) {
	p.hookMu.Lock()
	p.insertHook = hook
	p.hookMu.Unlock()
}

// SavePage upserts by canonical URL. The title is clamped and the risk
// score recomputed before the row is written, so a stored page is always
// internally consistent.
func (p *PageStorage) SavePage(page *models.Page) error {
	if page == nil || page.URL == "" {
		return fmt.Errorf("page requires a url")
	}

	page.ClampTitle()
	page.RiskScore = page.ComputeRiskScore()
	if page.FoundAt.IsZero() {
		page.FoundAt = time.Now()
	}
	if page.LastCrawl.IsZero() {
		page.LastCrawl = time.Now()
	}

	secrets, err := p.sealField(page.Secrets, len(page.Secrets) == 0)
	if err != nil {
		return err
	}
	cryptos, err := p.sealField(page.Cryptos, len(page.Cryptos) == 0)
	if err != nil {
		return err
	}
	socials, err := p.sealField(page.Socials, len(page.Socials) == 0)
	if err != nil {
		return err
	}
	emails, err := p.sealField(page.Emails, len(page.Emails) == 0)
	if err != nil {
		return err
	}
	ipLeaks, err := marshalField(page.IPLeaks, len(page.IPLeaks) == 0)
	if err != nil {
		return err
	}
	techStack, err := marshalField(page.TechStack, len(page.TechStack) == 0)
	if err != nil {
		return err
	}
	onionLinks, err := marshalField(page.OnionLinks, len(page.OnionLinks) == 0)
	if err != nil {
		return err
	}
	keywords, err := marshalField(page.Keywords, len(page.Keywords) == 0)
	if err != nil {
		return err
	}

	tx, err := p.db.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var priorStatus sql.NullInt64
	err = tx.QueryRow(`SELECT status FROM intel WHERE url = ?`, page.URL).Scan(&priorStatus)
	if err != nil && err != sql.ErrNoRows {
		return err
	}

	query := `
		INSERT INTO intel (
			url, domain, title, status, depth, content_length, error,
			secrets, cryptos, socials, emails, ip_leaks, tech_stack,
			onion_links, language, category, keywords, risk_score,
			intel_flag, found_at, last_crawl
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			domain = excluded.domain,
			title = excluded.title,
			status = excluded.status,
			depth = excluded.depth,
			content_length = excluded.content_length,
			error = excluded.error,
			secrets = excluded.secrets,
			cryptos = excluded.cryptos,
			socials = excluded.socials,
			emails = excluded.emails,
			ip_leaks = excluded.ip_leaks,
			tech_stack = excluded.tech_stack,
			onion_links = excluded.onion_links,
			language = excluded.language,
			category = excluded.category,
			keywords = excluded.keywords,
			risk_score = excluded.risk_score,
			last_crawl = excluded.last_crawl
	`

	_, err = tx.Exec(query,
		page.URL,
		page.Domain,
		page.Title,
		page.Status,
		page.Depth,
		page.ContentLength,
		page.Error,
		secrets,
		cryptos,
		socials,
		emails,
		ipLeaks,
		techStack,
		onionLinks,
		page.Language,
		page.Category,
		keywords,
		page.RiskScore,
		page.IntelFlag,
		page.FoundAt.Unix(),
		page.LastCrawl.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save page: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	firstSuccess := page.Status == 200 &&
		(!priorStatus.Valid || priorStatus.Int64 != 200)
	if firstSuccess {
		p.hookMu.RLock()
		hook := p.insertHook
		p.hookMu.RUnlock()
		if hook != nil {
			hook(page)
		}
	}
	return nil
}

// GetPage retrieves one page by canonical URL, or nil when unknown
func (p *PageStorage) GetPage(url string) (*models.Page, error) {
	row := p.db.db.QueryRow(`SELECT `+intelColumns+` FROM intel WHERE url = ?`, url)
	page, err := p.scanPage(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return page, err
}

// VisitedURLs returns every known URL. Read once at engine startup to
// rebuild the visited-set.
func (p *PageStorage) VisitedURLs() (map[string]bool, error) {
	rows, err := p.db.db.Query(`SELECT url FROM intel`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	visited := make(map[string]bool)
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, err
		}
		visited[url] = true
	}
	return visited, rows.Err()
}

// PendingURLs returns queued or previously failed URLs, shallowest first so
// a restarted crawl resumes near the seeds.
func (p *PageStorage) PendingURLs(limit int) ([]models.FrontierEntry, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := p.db.db.Query(`
		SELECT url, depth, found_at FROM intel
		WHERE status = 0 OR status >= 400
		ORDER BY depth ASC, found_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanFrontierEntries(rows)
}

// SuccessfulURLsForRecrawl returns recent status-200 URLs at or below the
// given depth floor, used to mine fresh links when the frontier runs dry.
func (p *PageStorage) SuccessfulURLsForRecrawl(minDepth, limit int) ([]models.FrontierEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.db.db.Query(`
		SELECT url, depth, found_at FROM intel
		WHERE status = 200 AND depth >= ?
		ORDER BY last_crawl DESC
		LIMIT ?`, minDepth, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanFrontierEntries(rows)
}

func scanFrontierEntries(rows *sql.Rows) ([]models.FrontierEntry, error) {
	entries := make([]models.FrontierEntry, 0)
	for rows.Next() {
		var entry models.FrontierEntry
		var foundAt int64
		if err := rows.Scan(&entry.URL, &entry.Depth, &foundAt); err != nil {
			return nil, err
		}
		entry.Priority = models.DefaultPriority
		entry.EnqueuedAt = time.Unix(foundAt, 0)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// RecentPages returns the most recently crawled pages
func (p *PageStorage) RecentPages(limit int) ([]*models.Page, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.db.db.Query(
		`SELECT `+intelColumns+` FROM intel ORDER BY last_crawl DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return p.scanPages(rows)
}

// PagesByDomain returns pages for one domain, most recent first
func (p *PageStorage) PagesByDomain(domain string, limit int) ([]*models.Page, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.db.db.Query(
		`SELECT `+intelColumns+` FROM intel WHERE domain = ? ORDER BY last_crawl DESC LIMIT ?`,
		domain, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return p.scanPages(rows)
}

// SearchPages matches the query against url, title, domain and category
func (p *PageStorage) SearchPages(query string, limit int) ([]*models.Page, error) {
	if limit <= 0 {
		limit = 50
	}
	like := "%" + query + "%"
	rows, err := p.db.db.Query(`
		SELECT `+intelColumns+` FROM intel
		WHERE url LIKE ? OR title LIKE ? OR domain LIKE ? OR category LIKE ?
		ORDER BY risk_score DESC, last_crawl DESC
		LIMIT ?`, like, like, like, like, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return p.scanPages(rows)
}

// AllPages returns every stored page in discovery order
func (p *PageStorage) AllPages() ([]*models.Page, error) {
	rows, err := p.db.db.Query(`SELECT ` + intelColumns + ` FROM intel ORDER BY found_at ASC, url ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return p.scanPages(rows)
}

// DomainProfiles aggregates stored pages per domain and attaches policy and
// blacklist state.
func (p *PageStorage) DomainProfiles() ([]*models.DomainProfile, error) {
	rows, err := p.db.db.Query(`
		SELECT domain,
			COUNT(*),
			SUM(CASE WHEN status = 200 THEN 1 ELSE 0 END),
			AVG(risk_score),
			MAX(risk_score),
			MIN(found_at),
			MAX(last_crawl)
		FROM intel
		GROUP BY domain
		ORDER BY COUNT(*) DESC, domain ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	profiles := make([]*models.DomainProfile, 0)
	byDomain := make(map[string]*models.DomainProfile)
	for rows.Next() {
		var profile models.DomainProfile
		var avgRisk sql.NullFloat64
		var firstSeen, lastCrawl int64
		if err := rows.Scan(&profile.Domain, &profile.PageCount, &profile.SuccessCount,
			&avgRisk, &profile.MaxRisk, &firstSeen, &lastCrawl); err != nil {
			return nil, err
		}
		if avgRisk.Valid {
			profile.AvgRisk = avgRisk.Float64
		}
		profile.FirstSeen = time.Unix(firstSeen, 0)
		profile.LastCrawl = time.Unix(lastCrawl, 0)
		profiles = append(profiles, &profile)
		byDomain[profile.Domain] = &profile
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := p.attachCategories(byDomain); err != nil {
		return nil, err
	}
	if err := p.attachPolicies(byDomain); err != nil {
		return nil, err
	}
	return profiles, nil
}

func (p *PageStorage) attachCategories(byDomain map[string]*models.DomainProfile) error {
	rows, err := p.db.db.Query(`
		SELECT DISTINCT domain, category FROM intel
		WHERE category IS NOT NULL AND category != ''`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var domain, category string
		if err := rows.Scan(&domain, &category); err != nil {
			return err
		}
		if profile, ok := byDomain[domain]; ok {
			profile.Categories = append(profile.Categories, category)
		}
	}
	return rows.Err()
}

func (p *PageStorage) attachPolicies(byDomain map[string]*models.DomainProfile) error {
	rows, err := p.db.db.Query(`
		SELECT domain, status, trust_level, max_depth, delay_ms, priority_boost, notes, updated_at
		FROM domain_policy`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		policy, err := scanPolicyRow(rows.Scan)
		if err != nil {
			return err
		}
		if profile, ok := byDomain[policy.Domain]; ok {
			profile.Policy = policy
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	blacklisted, err := p.db.db.Query(
		`SELECT domain FROM domain_lists WHERE list_type = 'blacklist'`)
	if err != nil {
		return err
	}
	defer blacklisted.Close()

	for blacklisted.Next() {
		var domain string
		if err := blacklisted.Scan(&domain); err != nil {
			return err
		}
		if profile, ok := byDomain[domain]; ok {
			profile.Blacklisted = true
		}
	}
	return blacklisted.Err()
}

// TimelineBuckets returns hourly crawl volume for the trailing window
func (p *PageStorage) TimelineBuckets(hours int) ([]models.TimelineBucket, error) {
	if hours <= 0 {
		hours = 24
	}
	since := time.Now().Add(-time.Duration(hours) * time.Hour).Unix()

	rows, err := p.db.db.Query(`
		SELECT strftime('%Y-%m-%d %H:00', last_crawl, 'unixepoch') AS bucket,
			COUNT(*),
			SUM(CASE WHEN status != 200 THEN 1 ELSE 0 END)
		FROM intel
		WHERE last_crawl >= ?
		GROUP BY bucket
		ORDER BY bucket ASC`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	buckets := make([]models.TimelineBucket, 0)
	for rows.Next() {
		var bucket models.TimelineBucket
		if err := rows.Scan(&bucket.Bucket, &bucket.Count, &bucket.Errors); err != nil {
			return nil, err
		}
		buckets = append(buckets, bucket)
	}
	return buckets, rows.Err()
}

// GetStats aggregates store-wide counters for the dashboard
func (p *PageStorage) GetStats() (*models.StoreStats, error) {
	stats := &models.StoreStats{}

	err := p.db.db.QueryRow(`
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN status = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 200 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status != 0 AND status != 200 THEN 1 ELSE 0 END), 0),
			COUNT(DISTINCT domain),
			COALESCE(AVG(risk_score), 0),
			COALESCE(SUM(CASE WHEN risk_score >= 70 THEN 1 ELSE 0 END), 0)
		FROM intel`).Scan(
		&stats.TotalPages,
		&stats.QueuedPages,
		&stats.SuccessPages,
		&stats.ErrorPages,
		&stats.TotalDomains,
		&stats.AvgRiskScore,
		&stats.HighRiskPages,
	)
	if err != nil {
		return nil, err
	}

	// Intel fields are encrypted at rest, so totals are counted in process
	rows, err := p.db.db.Query(`
		SELECT secrets, cryptos, emails FROM intel
		WHERE secrets IS NOT NULL OR cryptos IS NOT NULL OR emails IS NOT NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var secrets, cryptos, emails sql.NullString
		if err := rows.Scan(&secrets, &cryptos, &emails); err != nil {
			return nil, err
		}

		var secretMap, cryptoMap map[string][]string
		var emailList []string
		if err := p.openField(secrets, &secretMap); err == nil {
			for _, values := range secretMap {
				stats.TotalSecrets += len(values)
			}
		}
		if err := p.openField(cryptos, &cryptoMap); err == nil {
			for _, values := range cryptoMap {
				stats.TotalCryptos += len(values)
			}
		}
		if err := p.openField(emails, &emailList); err == nil {
			stats.TotalEmails += len(emailList)
		}
	}
	return stats, rows.Err()
}

// SetIntelFlag marks a page for analyst review
func (p *PageStorage) SetIntelFlag(url, flag string) error {
	switch flag {
	case models.IntelFlagNone, models.IntelFlagImportant, models.IntelFlagFalsePositive:
	default:
		return fmt.Errorf("unknown intel flag %q", flag)
	}

	result, err := p.db.db.Exec(`UPDATE intel SET intel_flag = ? WHERE url = ?`, flag, url)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("no page stored for %s", url)
	}
	return nil
}

// scanPage reads one row using the intelColumns order
func (p *PageStorage) scanPage(scan func(dest ...interface{}) error) (*models.Page, error) {
	var page models.Page
	var title, errText, language, category, intelFlag sql.NullString
	var secrets, cryptos, socials, emails, ipLeaks, techStack, onionLinks, keywords sql.NullString
	var foundAt, lastCrawl int64

	err := scan(
		&page.URL,
		&page.Domain,
		&title,
		&page.Status,
		&page.Depth,
		&page.ContentLength,
		&errText,
		&secrets,
		&cryptos,
		&socials,
		&emails,
		&ipLeaks,
		&techStack,
		&onionLinks,
		&language,
		&category,
		&keywords,
		&page.RiskScore,
		&intelFlag,
		&foundAt,
		&lastCrawl,
	)
	if err != nil {
		return nil, err
	}

	page.Title = title.String
	page.Error = errText.String
	page.Language = language.String
	page.Category = category.String
	page.IntelFlag = intelFlag.String
	page.FoundAt = time.Unix(foundAt, 0)
	page.LastCrawl = time.Unix(lastCrawl, 0)

	if err := p.openField(secrets, &page.Secrets); err != nil {
		return nil, err
	}
	if err := p.openField(cryptos, &page.Cryptos); err != nil {
		return nil, err
	}
	if err := p.openField(socials, &page.Socials); err != nil {
		return nil, err
	}
	if err := p.openField(emails, &page.Emails); err != nil {
		return nil, err
	}
	if err := unmarshalField(ipLeaks, &page.IPLeaks); err != nil {
		return nil, err
	}
	if err := unmarshalField(techStack, &page.TechStack); err != nil {
		return nil, err
	}
	if err := unmarshalField(onionLinks, &page.OnionLinks); err != nil {
		return nil, err
	}
	if err := unmarshalField(keywords, &page.Keywords); err != nil {
		return nil, err
	}

	return &page, nil
}

func (p *PageStorage) scanPages(rows *sql.Rows) ([]*models.Page, error) {
	pages := make([]*models.Page, 0)
	for rows.Next() {
		page, err := p.scanPage(rows.Scan)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}
	return pages, rows.Err()
}

// sealField serializes a sensitive field and encrypts it when a crypt is
// configured. Empty fields store NULL.
func (p *PageStorage) sealField(value interface{}, empty bool) (sql.NullString, error) {
	if empty {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to marshal field: %w", err)
	}
	text, err := p.crypt.Encrypt(string(data))
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encrypt field: %w", err)
	}
	return sql.NullString{String: text, Valid: true}, nil
}

// openField reverses sealField into out
func (p *PageStorage) openField(column sql.NullString, out interface{}) error {
	if !column.Valid || column.String == "" {
		return nil
	}
	text, err := p.crypt.Decrypt(column.String)
	if err != nil {
		return fmt.Errorf("failed to decrypt field: %w", err)
	}
	return json.Unmarshal([]byte(text), out)
}

// marshalField serializes a non-sensitive field, storing NULL when empty
func marshalField(value interface{}, empty bool) (sql.NullString, error) {
	if empty {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to marshal field: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func unmarshalField(column sql.NullString, out interface{}) error {
	if !column.Valid || column.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(column.String), out)
}
