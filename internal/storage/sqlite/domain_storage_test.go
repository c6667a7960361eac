package sqlite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func TestBlacklist_AddAndCheck(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	logger := arbor.NewLogger()
	storage := NewDomainStorage(db, logger)

	require.NoError(t, storage.BlacklistAdd("Scam.Onion", "mirrors a takedown page"))

	// Lookups are case-insensitive
	blocked, err := storage.IsBlacklisted("scam.onion")
	require.NoError(t, err)
	assert.True(t, blocked)

	blocked, err = storage.IsBlacklisted("SCAM.ONION")
	require.NoError(t, err)
	assert.True(t, blocked)

	blocked, err = storage.IsBlacklisted("other.onion")
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestBlacklist_Remove(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	logger := arbor.NewLogger()
	storage := NewDomainStorage(db, logger)

	require.NoError(t, storage.BlacklistAdd("scam.onion", ""))
	require.NoError(t, storage.BlacklistRemove("scam.onion"))

	blocked, err := storage.IsBlacklisted("scam.onion")
	require.NoError(t, err)
	assert.False(t, blocked)

	// Removing an absent domain is a no-op
	require.NoError(t, storage.BlacklistRemove("scam.onion"))
}

func TestDomainList_MovesBetweenLists(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	logger := arbor.NewLogger()
	storage := NewDomainStorage(db, logger)

	require.NoError(t, storage.BlacklistAdd("flip.onion", "suspected scam"))
	require.NoError(t, storage.WhitelistAdd("flip.onion", "verified mirror"))

	// Whitelisting supersedes the blacklist entry
	blocked, err := storage.IsBlacklisted("flip.onion")
	require.NoError(t, err)
	assert.False(t, blocked)

	whitelist, err := storage.ListDomainList("whitelist")
	require.NoError(t, err)
	require.Len(t, whitelist, 1)
	assert.Equal(t, "flip.onion", whitelist[0].Domain)
	assert.Equal(t, "verified mirror", whitelist[0].Reason)
	assert.False(t, whitelist[0].AddedAt.IsZero())

	blacklist, err := storage.ListDomainList("blacklist")
	require.NoError(t, err)
	assert.Empty(t, blacklist)
}

func TestListDomainList_UnknownType(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	logger := arbor.NewLogger()
	storage := NewDomainStorage(db, logger)

	_, err := storage.ListDomainList("greylist")
	assert.Error(t, err)
}
