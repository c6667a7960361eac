package policies

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/umbra/internal/interfaces"
	"github.com/ternarybob/umbra/internal/models"
)

// Service caches domain policies in memory and writes changes through to
// the store. The engine consults Get on every dispatch, so reads must not
// touch the database.
type Service struct {
	logger arbor.ILogger
	store  interfaces.PolicyStorage

	mu    sync.RWMutex
	cache map[string]*models.DomainPolicy
}

// NewService hydrates the cache from the domain_policy table
func NewService(logger arbor.ILogger, store interfaces.PolicyStorage) (*Service, error) {
	service := &Service{
		logger: logger,
		store:  store,
		cache:  make(map[string]*models.DomainPolicy),
	}

	policies, err := store.ListPolicies()
	if err != nil {
		return nil, fmt.Errorf("failed to load domain policies: %w", err)
	}
	for _, policy := range policies {
		service.cache[policy.Domain] = policy
	}

	logger.Info().Int("policies", len(policies)).Msg("Domain policies loaded")
	return service, nil
}

// Get returns the policy for a domain, or the default policy when none is
// stored. The returned value is a copy; mutate and Set to change it.
func (s *Service) Get(domain string) *models.DomainPolicy {
	domain = normalize(domain)

	s.mu.RLock()
	stored, ok := s.cache[domain]
	s.mu.RUnlock()

	if !ok {
		return &models.DomainPolicy{Domain: domain, Status: models.DomainStatusNormal}
	}
	copied := *stored
	return &copied
}

// Set validates, persists and caches one policy
func (s *Service) Set(policy *models.DomainPolicy) error {
	if policy == nil {
		return fmt.Errorf("policy required")
	}
	if policy.Status == "" {
		policy.Status = models.DomainStatusNormal
	}

	if err := s.store.SavePolicy(policy); err != nil {
		return err
	}

	copied := *policy
	s.mu.Lock()
	s.cache[copied.Domain] = &copied
	s.mu.Unlock()

	s.logger.Info().
		Str("domain", copied.Domain).
		Str("status", copied.Status).
		Int("boost", copied.PriorityBoost).
		Msg("Domain policy updated")
	return nil
}

// Boost sets the priority boost applied to new frontier entries
func (s *Service) Boost(domain string, boost int) error {
	policy := s.Get(domain)
	policy.PriorityBoost = boost
	return s.Set(policy)
}

// Freeze stops dispatch for a domain without touching its queue entries
func (s *Service) Freeze(domain string) error {
	policy := s.Get(domain)
	policy.Status = models.DomainStatusFrozen
	return s.Set(policy)
}

// Unfreeze lifts a freeze; other statuses are left alone
func (s *Service) Unfreeze(domain string) error {
	policy := s.Get(domain)
	if !policy.Frozen() {
		return nil
	}
	policy.Status = models.DomainStatusNormal
	return s.Set(policy)
}

// List returns every stored policy, sorted by domain
func (s *Service) List() []*models.DomainPolicy {
	s.mu.RLock()
	policies := make([]*models.DomainPolicy, 0, len(s.cache))
	for _, policy := range s.cache {
		copied := *policy
		policies = append(policies, &copied)
	}
	s.mu.RUnlock()

	sort.Slice(policies, func(i, j int) bool {
		return policies[i].Domain < policies[j].Domain
	})
	return policies
}

func normalize(domain string) string {
	return strings.ToLower(strings.TrimSpace(domain))
}
