package sqlite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/umbra/internal/models"
)

func TestPolicy_SaveAndGet(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	logger := arbor.NewLogger()
	storage := NewPolicyStorage(db, logger)

	policy := &models.DomainPolicy{
		Domain:        "Market.Onion",
		Status:        models.DomainStatusPriority,
		TrustLevel:    3,
		MaxDepth:      5,
		DelayMS:       2000,
		PriorityBoost: 25,
		Notes:         "vendor tracking",
	}
	require.NoError(t, storage.SavePolicy(policy))

	loaded, err := storage.GetPolicy("market.onion")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "market.onion", loaded.Domain)
	assert.Equal(t, models.DomainStatusPriority, loaded.Status)
	assert.Equal(t, 3, loaded.TrustLevel)
	assert.Equal(t, 5, loaded.MaxDepth)
	assert.Equal(t, 2000, loaded.DelayMS)
	assert.Equal(t, 25, loaded.PriorityBoost)
	assert.Equal(t, "vendor tracking", loaded.Notes)
	assert.False(t, loaded.UpdatedAt.IsZero())
}

func TestPolicy_GetMissing(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	logger := arbor.NewLogger()
	storage := NewPolicyStorage(db, logger)

	loaded, err := storage.GetPolicy("nowhere.onion")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestPolicy_UpsertAndFreeze(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	logger := arbor.NewLogger()
	storage := NewPolicyStorage(db, logger)

	policy := &models.DomainPolicy{Domain: "slow.onion", Status: models.DomainStatusNormal}
	require.NoError(t, storage.SavePolicy(policy))

	policy.Status = models.DomainStatusFrozen
	require.NoError(t, storage.SavePolicy(policy))

	loaded, err := storage.GetPolicy("slow.onion")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.True(t, loaded.Frozen())

	policies, err := storage.ListPolicies()
	require.NoError(t, err)
	assert.Len(t, policies, 1)
}

func TestPolicy_UnknownStatusRejected(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	logger := arbor.NewLogger()
	storage := NewPolicyStorage(db, logger)

	err := storage.SavePolicy(&models.DomainPolicy{Domain: "x.onion", Status: "haunted"})
	assert.Error(t, err)
}

func TestPolicy_Delete(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	logger := arbor.NewLogger()
	storage := NewPolicyStorage(db, logger)

	require.NoError(t, storage.SavePolicy(&models.DomainPolicy{
		Domain: "gone.onion", Status: models.DomainStatusNormal,
	}))
	require.NoError(t, storage.DeletePolicy("gone.onion"))

	loaded, err := storage.GetPolicy("gone.onion")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}
