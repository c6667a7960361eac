package policies

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/umbra/internal/common"
	"github.com/ternarybob/umbra/internal/models"
	"github.com/ternarybob/umbra/internal/storage/sqlite"
)

func newTestService(t *testing.T) (*Service, func()) {
	t.Helper()

	logger := arbor.NewLogger()
	db, err := sqlite.NewSQLiteDB(logger, &common.SQLiteConfig{
		Path:        filepath.Join(t.TempDir(), "policies.db"),
		CacheSizeKB: 1000,
		BusyTimeout: "1s",
	})
	require.NoError(t, err)

	service, err := NewService(logger, sqlite.NewPolicyStorage(db, logger))
	require.NoError(t, err)

	return service, func() { db.Close() }
}

func TestGet_DefaultForUnknownDomain(t *testing.T) {
	service, cleanup := newTestService(t)
	defer cleanup()

	policy := service.Get("Fresh.Onion")
	require.NotNil(t, policy)
	assert.Equal(t, "fresh.onion", policy.Domain)
	assert.Equal(t, models.DomainStatusNormal, policy.Status)
	assert.Zero(t, policy.PriorityBoost)
	assert.False(t, policy.Frozen())
}

func TestSet_PersistsAndCaches(t *testing.T) {
	service, cleanup := newTestService(t)
	defer cleanup()

	require.NoError(t, service.Set(&models.DomainPolicy{
		Domain:        "Market.Onion",
		Status:        models.DomainStatusPriority,
		TrustLevel:    2,
		MaxDepth:      4,
		DelayMS:       1500,
		PriorityBoost: 20,
		Notes:         "vendor tracking",
	}))

	policy := service.Get("market.onion")
	assert.Equal(t, models.DomainStatusPriority, policy.Status)
	assert.Equal(t, 20, policy.PriorityBoost)
	assert.Equal(t, 1500, policy.DelayMS)
	assert.False(t, policy.UpdatedAt.IsZero())
}

func TestSet_RejectsUnknownStatus(t *testing.T) {
	service, cleanup := newTestService(t)
	defer cleanup()

	err := service.Set(&models.DomainPolicy{Domain: "x.onion", Status: "haunted"})
	assert.Error(t, err)
	assert.Error(t, service.Set(nil))
}

func TestGet_ReturnsACopy(t *testing.T) {
	service, cleanup := newTestService(t)
	defer cleanup()

	require.NoError(t, service.Boost("copy.onion", 10))

	policy := service.Get("copy.onion")
	policy.PriorityBoost = 99

	assert.Equal(t, 10, service.Get("copy.onion").PriorityBoost)
}

func TestFreezeAndUnfreeze(t *testing.T) {
	service, cleanup := newTestService(t)
	defer cleanup()

	require.NoError(t, service.Freeze("cold.onion"))
	assert.True(t, service.Get("cold.onion").Frozen())

	require.NoError(t, service.Unfreeze("cold.onion"))
	assert.False(t, service.Get("cold.onion").Frozen())
	assert.Equal(t, models.DomainStatusNormal, service.Get("cold.onion").Status)
}

func TestUnfreeze_LeavesOtherStatusesAlone(t *testing.T) {
	service, cleanup := newTestService(t)
	defer cleanup()

	require.NoError(t, service.Set(&models.DomainPolicy{
		Domain: "vip.onion",
		Status: models.DomainStatusPriority,
	}))

	require.NoError(t, service.Unfreeze("vip.onion"))
	assert.Equal(t, models.DomainStatusPriority, service.Get("vip.onion").Status)
}

func TestBoost_KeepsExistingFields(t *testing.T) {
	service, cleanup := newTestService(t)
	defer cleanup()

	require.NoError(t, service.Set(&models.DomainPolicy{
		Domain:  "keep.onion",
		Status:  models.DomainStatusNormal,
		DelayMS: 3000,
	}))
	require.NoError(t, service.Boost("keep.onion", 15))

	policy := service.Get("keep.onion")
	assert.Equal(t, 15, policy.PriorityBoost)
	assert.Equal(t, 3000, policy.DelayMS)
}

func TestList_SortedAndHydrated(t *testing.T) {
	service, cleanup := newTestService(t)
	defer cleanup()

	require.NoError(t, service.Freeze("zulu.onion"))
	require.NoError(t, service.Boost("alpha.onion", 5))

	policies := service.List()
	require.Len(t, policies, 2)
	assert.Equal(t, "alpha.onion", policies[0].Domain)
	assert.Equal(t, "zulu.onion", policies[1].Domain)
}

func TestNewService_HydratesFromStore(t *testing.T) {
	logger := arbor.NewLogger()
	db, err := sqlite.NewSQLiteDB(logger, &common.SQLiteConfig{
		Path:        filepath.Join(t.TempDir(), "policies.db"),
		CacheSizeKB: 1000,
		BusyTimeout: "1s",
	})
	require.NoError(t, err)
	defer db.Close()

	store := sqlite.NewPolicyStorage(db, logger)
	require.NoError(t, store.SavePolicy(&models.DomainPolicy{
		Domain: "persisted.onion",
		Status: models.DomainStatusFrozen,
	}))

	service, err := NewService(logger, store)
	require.NoError(t, err)
	assert.True(t, service.Get("persisted.onion").Frozen())
}
