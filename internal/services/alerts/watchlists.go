package alerts

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"
	"gopkg.in/yaml.v3"

	"github.com/ternarybob/umbra/internal/interfaces"
	"github.com/ternarybob/umbra/internal/models"
)

// watchlistSet holds the analyst indicator lists behind a lock so crawl
// workers can consult them while the control API appends entries.
type watchlistSet struct {
	mu    sync.RWMutex
	lists models.Watchlists
}

// loadWatchlists reads the YAML watchlist file. A missing file is not an
// error; the manager starts with empty lists.
func loadWatchlists(path string, logger arbor.ILogger) *watchlistSet {
	set := &watchlistSet{}

	if path == "" {
		return set
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn().Err(err).Str("path", path).Msg("Failed to read watchlist file")
		}
		return set
	}

	var lists models.Watchlists
	if err := yaml.Unmarshal(data, &lists); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("Failed to parse watchlist file")
		return set
	}

	set.lists = models.Watchlists{
		InternalDomains:  normalizeAll(lists.InternalDomains),
		WatchlistDomains: normalizeAll(lists.WatchlistDomains),
		WatchlistEmails:  normalizeAll(lists.WatchlistEmails),
		WatchlistWallets: dedupe(lists.WatchlistWallets),
	}

	logger.Info().
		Str("path", path).
		Int("internal_domains", len(set.lists.InternalDomains)).
		Int("domains", len(set.lists.WatchlistDomains)).
		Int("emails", len(set.lists.WatchlistEmails)).
		Int("wallets", len(set.lists.WatchlistWallets)).
		Msg("Watchlists loaded")
	return set
}

// snapshot returns a copy safe to hand out
func (w *watchlistSet) snapshot() models.Watchlists {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return models.Watchlists{
		InternalDomains:  append([]string(nil), w.lists.InternalDomains...),
		WatchlistDomains: append([]string(nil), w.lists.WatchlistDomains...),
		WatchlistEmails:  append([]string(nil), w.lists.WatchlistEmails...),
		WatchlistWallets: append([]string(nil), w.lists.WatchlistWallets...),
	}
}

// add appends one indicator. Duplicates are silently ignored.
func (w *watchlistSet) add(kind, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return fmt.Errorf("watchlist value required")
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	switch kind {
	case interfaces.WatchKindInternalDomain:
		w.lists.InternalDomains = appendUnique(w.lists.InternalDomains, strings.ToLower(value))
	case interfaces.WatchKindDomain:
		w.lists.WatchlistDomains = appendUnique(w.lists.WatchlistDomains, strings.ToLower(value))
	case interfaces.WatchKindEmail:
		w.lists.WatchlistEmails = appendUnique(w.lists.WatchlistEmails, strings.ToLower(value))
	case interfaces.WatchKindWallet:
		w.lists.WatchlistWallets = appendUnique(w.lists.WatchlistWallets, value)
	default:
		return fmt.Errorf("unknown watchlist kind %q", kind)
	}
	return nil
}

// isWatchedDomain reports whether the domain is on the watchlist
func (w *watchlistSet) isWatchedDomain(domain string) bool {
	domain = strings.ToLower(domain)

	w.mu.RLock()
	defer w.mu.RUnlock()

	for _, watched := range w.lists.WatchlistDomains {
		if domain == watched {
			return true
		}
	}
	return false
}

// isWatchedWallet reports whether the wallet address is on the watchlist
func (w *watchlistSet) isWatchedWallet(wallet string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	for _, watched := range w.lists.WatchlistWallets {
		if wallet == watched {
			return true
		}
	}
	return false
}

// internalIndicators returns the terms whose appearance on a page means
// internal exposure: internal domains and watched emails.
func (w *watchlistSet) internalIndicators() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	indicators := make([]string, 0, len(w.lists.InternalDomains)+len(w.lists.WatchlistEmails))
	indicators = append(indicators, w.lists.InternalDomains...)
	indicators = append(indicators, w.lists.WatchlistEmails...)
	return indicators
}

func normalizeAll(values []string) []string {
	normalized := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.ToLower(strings.TrimSpace(value))
		if value != "" {
			normalized = appendUnique(normalized, value)
		}
	}
	return normalized
}

func dedupe(values []string) []string {
	deduped := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value != "" {
			deduped = appendUnique(deduped, value)
		}
	}
	return deduped
}

func appendUnique(values []string, value string) []string {
	for _, existing := range values {
		if existing == value {
			return values
		}
	}
	return append(values, value)
}
