package alerts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/umbra/internal/interfaces"
)

const watchlistYAML = `internal_domains:
  - Corp.Example.com
  - vpn.corp.example.com
  - corp.example.com
watchlist_domains:
  - BAD.onion
watchlist_emails:
  - CEO@corp.example.com
watchlist_wallets:
  - bc1qWatchedWallet
  - bc1qWatchedWallet
`

func writeWatchlistFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "watchlists.yaml")
	require.NoError(t, os.WriteFile(path, []byte(watchlistYAML), 0o644))
	return path
}

func TestLoadWatchlists_EmptyPath(t *testing.T) {
	set := loadWatchlists("", arbor.NewLogger())
	lists := set.snapshot()
	assert.Empty(t, lists.InternalDomains)
	assert.Empty(t, lists.WatchlistWallets)
}

func TestLoadWatchlists_MissingFileIsEmpty(t *testing.T) {
	set := loadWatchlists(filepath.Join(t.TempDir(), "nope.yaml"), arbor.NewLogger())
	assert.Empty(t, set.snapshot().WatchlistDomains)
}

func TestLoadWatchlists_NormalizesAndDedupes(t *testing.T) {
	set := loadWatchlists(writeWatchlistFile(t), arbor.NewLogger())
	lists := set.snapshot()

	assert.Equal(t, []string{"corp.example.com", "vpn.corp.example.com"}, lists.InternalDomains)
	assert.Equal(t, []string{"bad.onion"}, lists.WatchlistDomains)
	assert.Equal(t, []string{"ceo@corp.example.com"}, lists.WatchlistEmails)

	// Wallet addresses are case sensitive; only exact duplicates collapse
	assert.Equal(t, []string{"bc1qWatchedWallet"}, lists.WatchlistWallets)
}

func TestWatchlistSet_Lookups(t *testing.T) {
	set := loadWatchlists(writeWatchlistFile(t), arbor.NewLogger())

	assert.True(t, set.isWatchedDomain("BAD.ONION"))
	assert.False(t, set.isWatchedDomain("good.onion"))

	assert.True(t, set.isWatchedWallet("bc1qWatchedWallet"))
	assert.False(t, set.isWatchedWallet("bc1qwatchedwallet"))

	indicators := set.internalIndicators()
	assert.Contains(t, indicators, "corp.example.com")
	assert.Contains(t, indicators, "ceo@corp.example.com")
	assert.NotContains(t, indicators, "bad.onion")
}

func TestWatchlistSet_AddDeduplicates(t *testing.T) {
	set := loadWatchlists("", arbor.NewLogger())

	require.NoError(t, set.add(interfaces.WatchKindDomain, "New.Onion"))
	require.NoError(t, set.add(interfaces.WatchKindDomain, "new.onion"))

	assert.Equal(t, []string{"new.onion"}, set.snapshot().WatchlistDomains)
}
