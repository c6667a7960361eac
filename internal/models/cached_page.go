package models

import "time"

// CachedPage is the raw fetched body kept in the content cache so pages can
// be re-analyzed without re-fetching them over the overlay network. Keyed by
// canonical URL.
type CachedPage struct {
	URL         string    `badgerhold:"key" json:"url"`
	Domain      string    `badgerhold:"index" json:"domain"`
	ContentType string    `json:"content_type"`
	Body        []byte    `json:"body"`
	FetchedAt   time.Time `json:"fetched_at"`
}
