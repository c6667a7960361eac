package sqlite

import (
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/umbra/internal/interfaces"
	"github.com/ternarybob/umbra/internal/models"
)

// DomainStorage implements interfaces.DomainStorage on the domain_lists
// table. Domains are stored lowercased.
type DomainStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
}

// NewDomainStorage creates a domain list storage instance
func NewDomainStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.DomainStorage {
	return &DomainStorage{db: db, logger: logger}
}

// BlacklistAdd adds a domain to the deny list
func (d *DomainStorage) BlacklistAdd(domain, reason string) error {
	return d.listAdd(domain, "blacklist", reason)
}

// BlacklistRemove removes a domain from the deny list
func (d *DomainStorage) BlacklistRemove(domain string) error {
	_, err := d.db.db.Exec(
		`DELETE FROM domain_lists WHERE domain = ? AND list_type = 'blacklist'`,
		normalizeDomain(domain))
	return err
}

// IsBlacklisted reports whether a domain is on the deny list
func (d *DomainStorage) IsBlacklisted(domain string) (bool, error) {
	var count int
	err := d.db.db.QueryRow(
		`SELECT COUNT(*) FROM domain_lists WHERE domain = ? AND list_type = 'blacklist'`,
		normalizeDomain(domain)).Scan(&count)
	return count > 0, err
}

// WhitelistAdd adds a domain to the allow list
func (d *DomainStorage) WhitelistAdd(domain, reason string) error {
	return d.listAdd(domain, "whitelist", reason)
}

// ListDomainList returns the entries of one list type, newest first
func (d *DomainStorage) ListDomainList(listType string) ([]models.DomainListEntry, error) {
	if listType != "blacklist" && listType != "whitelist" {
		return nil, fmt.Errorf("unknown list type %q", listType)
	}

	rows, err := d.db.db.Query(`
		SELECT domain, list_type, reason, added_at FROM domain_lists
		WHERE list_type = ?
		ORDER BY added_at DESC, domain ASC`, listType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]models.DomainListEntry, 0)
	for rows.Next() {
		var entry models.DomainListEntry
		var addedAt int64
		if err := rows.Scan(&entry.Domain, &entry.ListType, &entry.Reason, &addedAt); err != nil {
			return nil, err
		}
		entry.AddedAt = time.Unix(addedAt, 0)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (d *DomainStorage) listAdd(domain, listType, reason string) error {
	domain = normalizeDomain(domain)
	if domain == "" {
		return fmt.Errorf("domain required")
	}

	// A domain sits on one list at a time; re-adding moves it.
	_, err := d.db.db.Exec(`
		INSERT INTO domain_lists (domain, list_type, reason, added_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(domain) DO UPDATE SET
			list_type = excluded.list_type,
			reason = excluded.reason,
			added_at = excluded.added_at`,
		domain, listType, reason, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", listType, err)
	}

	d.logger.Info().Str("domain", domain).Str("list", listType).Msg("Domain list updated")
	return nil
}

func normalizeDomain(domain string) string {
	return strings.ToLower(strings.TrimSpace(domain))
}
