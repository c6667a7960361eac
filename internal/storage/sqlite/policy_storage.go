package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/umbra/internal/interfaces"
	"github.com/ternarybob/umbra/internal/models"
)

// PolicyStorage implements interfaces.PolicyStorage on the domain_policy
// table
type PolicyStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
}

// NewPolicyStorage creates a policy storage instance
func NewPolicyStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.PolicyStorage {
	return &PolicyStorage{db: db, logger: logger}
}

// SavePolicy upserts one domain policy
func (p *PolicyStorage) SavePolicy(policy *models.DomainPolicy) error {
	if policy == nil || policy.Domain == "" {
		return fmt.Errorf("policy requires a domain")
	}
	switch policy.Status {
	case models.DomainStatusNormal, models.DomainStatusFrozen, models.DomainStatusPriority:
	default:
		return fmt.Errorf("unknown policy status %q", policy.Status)
	}

	policy.Domain = normalizeDomain(policy.Domain)
	policy.UpdatedAt = time.Now()

	_, err := p.db.db.Exec(`
		INSERT INTO domain_policy (
			domain, status, trust_level, max_depth, delay_ms,
			priority_boost, notes, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(domain) DO UPDATE SET
			status = excluded.status,
			trust_level = excluded.trust_level,
			max_depth = excluded.max_depth,
			delay_ms = excluded.delay_ms,
			priority_boost = excluded.priority_boost,
			notes = excluded.notes,
			updated_at = excluded.updated_at`,
		policy.Domain,
		policy.Status,
		policy.TrustLevel,
		policy.MaxDepth,
		policy.DelayMS,
		policy.PriorityBoost,
		policy.Notes,
		policy.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save policy: %w", err)
	}
	return nil
}

// GetPolicy returns the stored policy for a domain, or nil when none exists
func (p *PolicyStorage) GetPolicy(domain string) (*models.DomainPolicy, error) {
	row := p.db.db.QueryRow(`
		SELECT domain, status, trust_level, max_depth, delay_ms, priority_boost, notes, updated_at
		FROM domain_policy WHERE domain = ?`, normalizeDomain(domain))

	policy, err := scanPolicyRow(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return policy, err
}

// ListPolicies returns every stored policy
func (p *PolicyStorage) ListPolicies() ([]*models.DomainPolicy, error) {
	rows, err := p.db.db.Query(`
		SELECT domain, status, trust_level, max_depth, delay_ms, priority_boost, notes, updated_at
		FROM domain_policy ORDER BY domain ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	policies := make([]*models.DomainPolicy, 0)
	for rows.Next() {
		policy, err := scanPolicyRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		policies = append(policies, policy)
	}
	return policies, rows.Err()
}

// DeletePolicy removes a domain's policy, reverting it to engine defaults
func (p *PolicyStorage) DeletePolicy(domain string) error {
	_, err := p.db.db.Exec(`DELETE FROM domain_policy WHERE domain = ?`, normalizeDomain(domain))
	return err
}

func scanPolicyRow(scan func(dest ...interface{}) error) (*models.DomainPolicy, error) {
	var policy models.DomainPolicy
	var notes sql.NullString
	var updatedAt int64

	err := scan(
		&policy.Domain,
		&policy.Status,
		&policy.TrustLevel,
		&policy.MaxDepth,
		&policy.DelayMS,
		&policy.PriorityBoost,
		&notes,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	policy.Notes = notes.String
	policy.UpdatedAt = time.Unix(updatedAt, 0)
	return &policy, nil
}
