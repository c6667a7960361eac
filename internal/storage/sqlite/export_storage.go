package sqlite

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/umbra/internal/common"
	"github.com/ternarybob/umbra/internal/interfaces"
	"github.com/ternarybob/umbra/internal/models"
)

// csvHeader is the fixed column order of CSV exports. Downstream tooling
// matches on it verbatim, spaces included.
const csvHeader = "URL, Domain, Title, Status, Risk Score, Emails, Crypto, Secrets, Socials, Found At"

// csvTitleLimit caps exported titles so spreadsheets stay readable
const csvTitleLimit = 100

// ExportStorage projects stored pages to report files
type ExportStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
	pages  *PageStorage
}

// NewExportStorage creates an export storage instance. crypt must match the
// one used by the page storage so sealed columns decrypt on the way out.
func NewExportStorage(db *SQLiteDB, logger arbor.ILogger, crypt *common.FieldCrypt) interfaces.ExportStorage {
	return &ExportStorage{
		db:     db,
		logger: logger,
		pages:  &PageStorage{db: db, logger: logger, crypt: crypt},
	}
}

// ExportJSON writes the filtered pages as an indented JSON array with all
// list and map fields decoded. Non-ASCII content is written as-is.
func (e *ExportStorage) ExportJSON(path string, filter interfaces.ExportFilter) (int, error) {
	pages, err := e.filteredPages(filter)
	if err != nil {
		return 0, err
	}

	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create export file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(pages); err != nil {
		file.Close()
		return 0, fmt.Errorf("failed to encode pages: %w", err)
	}
	if err := file.Close(); err != nil {
		return 0, err
	}

	e.logger.Info().Int("count", len(pages)).Str("path", path).Msg("Exported pages to JSON")
	return len(pages), nil
}

// ExportCSV writes one row per filtered page. Multivalue fields are joined
// by "; " and titles are truncated.
func (e *ExportStorage) ExportCSV(path string, filter interfaces.ExportFilter) (int, error) {
	pages, err := e.filteredPages(filter)
	if err != nil {
		return 0, err
	}

	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create export file: %w", err)
	}

	// The header carries spaces after the commas, so it is written raw
	// rather than through the csv writer.
	if _, err := file.WriteString(csvHeader + "\n"); err != nil {
		file.Close()
		return 0, err
	}

	writer := csv.NewWriter(file)
	for _, page := range pages {
		title := page.Title
		if len(title) > csvTitleLimit {
			title = title[:csvTitleLimit]
		}
		record := []string{
			page.URL,
			page.Domain,
			title,
			strconv.Itoa(page.Status),
			strconv.Itoa(page.RiskScore),
			strings.Join(page.Emails, "; "),
			joinGrouped(page.Cryptos),
			joinGrouped(page.Secrets),
			joinGrouped(page.Socials),
			page.FoundAt.UTC().Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			file.Close()
			return 0, fmt.Errorf("failed to write csv record: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		file.Close()
		return 0, err
	}
	if err := file.Close(); err != nil {
		return 0, err
	}

	e.logger.Info().Int("count", len(pages)).Str("path", path).Msg("Exported pages to CSV")
	return len(pages), nil
}

// ExportEmails writes a plain-text report of every discovered email,
// grouped into "## <domain>" sections with sorted unique addresses.
func (e *ExportStorage) ExportEmails(path string, filter interfaces.ExportFilter) (int, error) {
	pages, err := e.filteredPages(filter)
	if err != nil {
		return 0, err
	}

	byDomain := make(map[string]map[string]bool)
	for _, page := range pages {
		for _, email := range page.Emails {
			if byDomain[page.Domain] == nil {
				byDomain[page.Domain] = make(map[string]bool)
			}
			byDomain[page.Domain][email] = true
		}
	}

	var builder strings.Builder
	count := 0
	for _, domain := range sortedKeys(byDomain) {
		builder.WriteString("## " + domain + "\n")
		for _, email := range sortedSet(byDomain[domain]) {
			builder.WriteString(email + "\n")
			count++
		}
		builder.WriteString("\n")
	}

	if err := os.WriteFile(path, []byte(builder.String()), 0644); err != nil {
		return 0, fmt.Errorf("failed to write export file: %w", err)
	}

	e.logger.Info().Int("count", count).Str("path", path).Msg("Exported emails")
	return count, nil
}

// ExportCrypto writes a plain-text report of every discovered wallet
// address, grouped into "## <COIN> (<count>)" sections with sorted unique
// addresses.
func (e *ExportStorage) ExportCrypto(path string, filter interfaces.ExportFilter) (int, error) {
	pages, err := e.filteredPages(filter)
	if err != nil {
		return 0, err
	}

	byCoin := make(map[string]map[string]bool)
	for _, page := range pages {
		for coin, addresses := range page.Cryptos {
			for _, address := range addresses {
				if byCoin[coin] == nil {
					byCoin[coin] = make(map[string]bool)
				}
				byCoin[coin][address] = true
			}
		}
	}

	var builder strings.Builder
	count := 0
	for _, coin := range sortedKeys(byCoin) {
		addresses := sortedSet(byCoin[coin])
		builder.WriteString(fmt.Sprintf("## %s (%d)\n", strings.ToUpper(coin), len(addresses)))
		for _, address := range addresses {
			builder.WriteString(address + "\n")
			count++
		}
		builder.WriteString("\n")
	}

	if err := os.WriteFile(path, []byte(builder.String()), 0644); err != nil {
		return 0, fmt.Errorf("failed to write export file: %w", err)
	}

	e.logger.Info().Int("count", count).Str("path", path).Msg("Exported crypto addresses")
	return count, nil
}

// filteredPages loads the pages matched by the filter in a stable order
func (e *ExportStorage) filteredPages(filter interfaces.ExportFilter) ([]*models.Page, error) {
	query := `SELECT ` + intelColumns + ` FROM intel`
	var conditions []string
	var args []interface{}

	if filter.Domain != "" {
		conditions = append(conditions, "domain = ?")
		args = append(args, normalizeDomain(filter.Domain))
	}
	if filter.Status != 0 {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.OnlyFresh {
		conditions = append(conditions, "status = 200")
	}
	if filter.MinRisk > 0 {
		conditions = append(conditions, "risk_score >= ?")
		args = append(args, filter.MinRisk)
	}
	if filter.Category != "" {
		conditions = append(conditions, "category = ?")
		args = append(args, filter.Category)
	}

	for i, condition := range conditions {
		if i == 0 {
			query += " WHERE " + condition
		} else {
			query += " AND " + condition
		}
	}
	query += " ORDER BY domain ASC, url ASC"

	rows, err := e.db.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return e.pages.scanPages(rows)
}

func joinGrouped(grouped map[string][]string) string {
	var values []string
	for _, key := range sortedMapKeys(grouped) {
		values = append(values, grouped[key]...)
	}
	return strings.Join(values, "; ")
}

func sortedKeys(m map[string]map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func sortedMapKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func sortedSet(set map[string]bool) []string {
	values := make([]string, 0, len(set))
	for value := range set {
		values = append(values, value)
	}
	sort.Strings(values)
	return values
}
