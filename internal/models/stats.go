package models

import "time"

// StoreStats are the aggregate counts the dashboard and the engine's
// progress logs read from the store
type StoreStats struct {
	TotalPages    int     `json:"total_pages"`
	QueuedPages   int     `json:"queued_pages"`
	SuccessPages  int     `json:"success_pages"`
	ErrorPages    int     `json:"error_pages"`
	TotalDomains  int     `json:"total_domains"`
	AvgRiskScore  float64 `json:"avg_risk_score"`
	HighRiskPages int     `json:"high_risk_pages"` // risk_score >= 70
	TotalEmails   int     `json:"total_emails"`
	TotalCryptos  int     `json:"total_cryptos"`
	TotalSecrets  int     `json:"total_secrets"`
}

// EngineStats are the live counters owned by the crawl engine
type EngineStats struct {
	State         string        `json:"state"`
	RunID         string        `json:"run_id"`
	Requests      int64         `json:"requests"`
	Success       int64         `json:"success"`
	Errors        int64         `json:"errors"`
	Retries       int64         `json:"retries"`
	ParseErrors   int64         `json:"parse_errors"`
	Skipped       int64         `json:"skipped"`
	VisitedCount  int           `json:"visited_count"`
	FrontierSize  int           `json:"frontier_size"`
	ActiveWorkers int           `json:"active_workers"`
	Paused        bool          `json:"paused"`
	StartedAt     time.Time     `json:"started_at"`
	Elapsed       time.Duration `json:"elapsed"`
}

// GraphStats summarize the in-memory entity graph
type GraphStats struct {
	Nodes       int            `json:"nodes"`
	Edges       int            `json:"edges"`
	Domains     int            `json:"domains"`
	ByType      map[string]int `json:"by_type"`
	CrossDomain int            `json:"cross_domain"` // nodes seen on 2+ domains
}

// TimelineBucket is one interval of crawl-volume history
type TimelineBucket struct {
	Bucket string `json:"bucket"` // e.g. "2025-06-01 14:00"
	Count  int    `json:"count"`
	Errors int    `json:"errors"`
}

// FrontierEntry is a queued URL awaiting dispatch. Higher priority pops
// first; entries of equal priority pop in insertion order.
type FrontierEntry struct {
	URL        string    `json:"url"`
	Depth      int       `json:"depth"`
	Priority   int       `json:"priority"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// DefaultPriority is the frontier priority assigned to ordinary links
const DefaultPriority = 50
