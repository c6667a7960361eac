package cache

import (
	"errors"
	"fmt"
	"os"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/umbra/internal/common"
	"github.com/ternarybob/umbra/internal/interfaces"
	"github.com/ternarybob/umbra/internal/models"
)

// ContentCache stores raw fetched bodies in a Badger key-value store so
// pages can be re-analyzed without another trip through the proxy.
type ContentCache struct {
	store  *badgerhold.Store
	logger arbor.ILogger
}

// New opens the content cache at the configured path
func New(logger arbor.ILogger, config *common.CacheConfig) (interfaces.ContentCache, error) {
	if err := os.MkdirAll(config.Path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = config.Path
	options.ValueDir = config.Path
	options.Logger = nil // Disable default badger logger to use arbor

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open content cache: %w", err)
	}

	logger.Debug().Str("path", config.Path).Msg("Content cache opened")

	return &ContentCache{store: store, logger: logger}, nil
}

// Put upserts a fetched body keyed by URL
func (c *ContentCache) Put(page *models.CachedPage) error {
	if page == nil || page.URL == "" {
		return fmt.Errorf("cached page requires a url")
	}
	if page.FetchedAt.IsZero() {
		page.FetchedAt = time.Now()
	}

	if err := c.store.Upsert(page.URL, page); err != nil {
		return fmt.Errorf("failed to cache page: %w", err)
	}
	return nil
}

// Get returns the cached body for a URL, or nil when nothing is cached
func (c *ContentCache) Get(url string) (*models.CachedPage, error) {
	var page models.CachedPage
	if err := c.store.Get(url, &page); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cached page: %w", err)
	}
	return &page, nil
}

// Delete removes a cached body. Deleting an absent URL is not an error.
func (c *ContentCache) Delete(url string) error {
	if err := c.store.Delete(url, &models.CachedPage{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil
		}
		return fmt.Errorf("failed to delete cached page: %w", err)
	}
	return nil
}

// ListByDomain returns cached pages for one domain, newest first
func (c *ContentCache) ListByDomain(domain string, limit int) ([]*models.CachedPage, error) {
	if limit <= 0 {
		limit = 100
	}

	var pages []models.CachedPage
	query := badgerhold.Where("Domain").Eq(domain).SortBy("FetchedAt").Reverse().Limit(limit)
	if err := c.store.Find(&pages, query); err != nil {
		return nil, fmt.Errorf("failed to list cached pages: %w", err)
	}

	result := make([]*models.CachedPage, len(pages))
	for i := range pages {
		result[i] = &pages[i]
	}
	return result, nil
}

// Count returns the number of cached bodies
func (c *ContentCache) Count() (int, error) {
	count, err := c.store.Count(&models.CachedPage{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count cached pages: %w", err)
	}
	return int(count), nil
}

// GC rewrites value-log files until Badger reports nothing left to
// reclaim. Safe to call while reads and writes are in flight.
func (c *ContentCache) GC() error {
	for {
		err := c.store.Badger().RunValueLogGC(0.5)
		if err == nil {
			continue
		}
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		return fmt.Errorf("content cache gc failed: %w", err)
	}
}

// Close closes the underlying store
func (c *ContentCache) Close() error {
	if c.store != nil {
		return c.store.Close()
	}
	return nil
}
