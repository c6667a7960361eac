package interfaces

import (
	"github.com/ternarybob/umbra/internal/models"
)

// PolicyService caches per-domain crawl policies in memory and persists
// changes through the store. Get never returns nil; absent domains get
// the default policy.
type PolicyService interface {
	Get(domain string) *models.DomainPolicy
	Set(policy *models.DomainPolicy) error
	Boost(domain string, boost int) error
	Freeze(domain string) error
	Unfreeze(domain string) error
	List() []*models.DomainPolicy
}
