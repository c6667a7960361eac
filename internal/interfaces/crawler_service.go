package interfaces

import (
	"context"

	"github.com/ternarybob/umbra/internal/models"
)

// Engine states
const (
	EngineStateInit        = "INIT"
	EngineStateVerifyProxy = "VERIFY_PROXY"
	EngineStateLoadState   = "LOAD_STATE"
	EngineStateSeed        = "SEED"
	EngineStateRun         = "RUN"
	EngineStateDrain       = "DRAIN"
	EngineStateStop        = "STOP"
)

// CrawlEngine drives the worker pool over the frontier. Start is
// non-blocking; the engine runs until stopped, drained dry, or hit by a
// fatal proxy failure.
type CrawlEngine interface {
	// Start verifies the proxy, loads persisted state, seeds the frontier
	// and launches the workers. With nothing to crawl the engine parks in
	// SEED until AddSeeds wakes it.
	Start(ctx context.Context) error

	// Stop drains the workers, waiting up to the context deadline.
	Stop(ctx context.Context) error

	// Pause gates dispatch without dropping queued work.
	Pause()
	Resume()

	// Drain finishes queued and in-flight work but accepts no new links.
	Drain()

	// AddSeeds validates and enqueues crawl roots, waking a parked engine.
	// Returns the number accepted.
	AddSeeds(urls []string) (int, error)

	// RotateCircuit forces every worker onto a fresh proxy session.
	RotateCircuit()

	// Reanalyze re-runs extraction over cached bodies without refetching.
	// Returns the number of pages updated.
	Reanalyze(domain string, limit int) (int, error)

	State() string
	Stats() models.EngineStats
	QueueSnapshot(limit int) []models.FrontierEntry
}
