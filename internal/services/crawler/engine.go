package crawler

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/umbra/internal/common"
	"github.com/ternarybob/umbra/internal/interfaces"
	"github.com/ternarybob/umbra/internal/models"
	"github.com/ternarybob/umbra/internal/services/analyzer"
	"github.com/ternarybob/umbra/internal/services/entities"
	"github.com/ternarybob/umbra/internal/services/graph"
)

const (
	// seedBoost lifts operator-provided roots above ordinary links
	seedBoost = 25

	// pendingBatchSize caps how many persisted queue entries are restored
	// at startup
	pendingBatchSize = 500

	// recrawlBatchSize caps how many old successes are re-fetched when
	// there is nothing else to do
	recrawlBatchSize = 50

	// stopGracePeriod is how long Stop waits for in-flight work before
	// giving up
	stopGracePeriod = 30 * time.Second
)

// Dependencies carries everything the engine needs. Cache, Alerts and
// Events may be nil; the engine then runs without them.
type Dependencies struct {
	Logger    arbor.ILogger
	Config    *common.Config
	Store     interfaces.PageStorage
	Domains   interfaces.DomainStorage
	Cache     interfaces.ContentCache
	Policies  interfaces.PolicyService
	Alerts    interfaces.AlertManager
	Events    interfaces.EventService
	Analyzer  *analyzer.Analyzer
	Extractor *entities.Extractor
	Graph     *graph.Graph
}

// Engine is the breadth-first crawl driver: a shared frontier, a pool of
// workers fetching through the overlay proxy, and the bookkeeping that
// keeps one URL from being fetched twice.
type Engine struct {
	logger      arbor.ILogger
	config      *common.CrawlerConfig
	proxyConfig *common.ProxyConfig

	store     interfaces.PageStorage
	domains   interfaces.DomainStorage
	cache     interfaces.ContentCache
	policies  interfaces.PolicyService
	alerts    interfaces.AlertManager
	events    interfaces.EventService
	analyzer  *analyzer.Analyzer
	extractor *entities.Extractor
	graph     *graph.Graph

	frontier *frontier
	limiter  *rateLimiter

	// proxyURL is fixed before workers launch; nil means direct connections
	proxyURL   *url.URL
	generation atomic.Int64

	runCtx    context.Context
	runCancel context.CancelFunc
	workerWG  sync.WaitGroup

	mu        sync.Mutex
	state     string
	runID     string
	startedAt time.Time
	paused    bool
	draining  bool
	launched  bool

	visitedMu sync.Mutex
	visited   map[string]bool

	stop atomic.Bool
	busy atomic.Int32

	requests    atomic.Int64
	success     atomic.Int64
	errors      atomic.Int64
	retries     atomic.Int64
	parseErrors atomic.Int64
	skipped     atomic.Int64
	processed   atomic.Int64
}

// New wires an engine from its dependencies. The engine is idle until
// Start is called.
func New(deps Dependencies) (*Engine, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("crawler engine requires a logger")
	}
	if deps.Config == nil {
		return nil, fmt.Errorf("crawler engine requires a config")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("crawler engine requires page storage")
	}
	if deps.Domains == nil {
		return nil, fmt.Errorf("crawler engine requires domain storage")
	}
	if deps.Policies == nil {
		return nil, fmt.Errorf("crawler engine requires the policy service")
	}
	if deps.Analyzer == nil || deps.Extractor == nil || deps.Graph == nil {
		return nil, fmt.Errorf("crawler engine requires analyzer, extractor and graph")
	}

	runCtx, runCancel := context.WithCancel(context.Background())

	return &Engine{
		logger:      deps.Logger,
		config:      &deps.Config.Crawler,
		proxyConfig: &deps.Config.Proxy,
		store:       deps.Store,
		domains:     deps.Domains,
		cache:       deps.Cache,
		policies:    deps.Policies,
		alerts:      deps.Alerts,
		events:      deps.Events,
		analyzer:    deps.Analyzer,
		extractor:   deps.Extractor,
		graph:       deps.Graph,
		frontier:    newFrontier(),
		limiter:     newRateLimiter(),
		runCtx:      runCtx,
		runCancel:   runCancel,
		state:       interfaces.EngineStateInit,
		visited:     make(map[string]bool),
	}, nil
}

// Start verifies the proxy, restores persisted crawl state, seeds the
// frontier and launches the worker pool. It returns once the workers are
// running, or with nothing to crawl leaves the engine parked in SEED.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	e.runID = uuid.New().String()
	e.startedAt = time.Now()
	runID := e.runID
	e.mu.Unlock()

	e.logger.Info().
		Str("run_id", runID).
		Int("max_workers", e.workerCount()).
		Int("max_pages", e.config.MaxPages).
		Msg("Starting crawl engine")

	if err := e.verifyProxySetup(ctx); err != nil {
		e.setState(interfaces.EngineStateStop)
		return err
	}

	e.setState(interfaces.EngineStateLoadState)
	known, err := e.store.VisitedURLs()
	if err != nil {
		e.setState(interfaces.EngineStateStop)
		return fmt.Errorf("failed to load crawl state: %w", err)
	}
	if known == nil {
		known = make(map[string]bool)
	}
	e.visitedMu.Lock()
	e.visited = known
	knownCount := len(known)
	e.visitedMu.Unlock()
	e.logger.Info().Int("known_urls", knownCount).Msg("Crawl state loaded")

	e.setState(interfaces.EngineStateSeed)
	queued := e.bootstrap()
	if queued == 0 {
		e.logger.Info().Msg("Frontier empty; parked until seeds arrive")
		return nil
	}

	e.launch()
	return nil
}

// verifyProxySetup resolves the proxy address and confirms the exit is
// inside the overlay. A failed primary port gets one retry on the
// fallback port; a second failure is fatal. Verification is skipped when
// no verify URL is configured.
func (e *Engine) verifyProxySetup(ctx context.Context) error {
	e.setState(interfaces.EngineStateVerifyProxy)

	proxyURL, err := proxyAddress(e.proxyConfig, e.proxyConfig.Port)
	if err != nil {
		return fmt.Errorf("invalid proxy address: %w", err)
	}
	if proxyURL == nil {
		e.logger.Warn().Msg("No proxy configured; connecting directly")
		return nil
	}
	if e.proxyConfig.VerifyURL == "" {
		e.logger.Warn().Str("proxy", proxyURL.String()).Msg("Proxy verification disabled")
		e.proxyURL = proxyURL
		return nil
	}

	ip, err := verifyProxy(ctx, proxyURL, e.proxyConfig.VerifyURL, e.requestTimeout())
	if err != nil && e.proxyConfig.FallbackPort > 0 && e.proxyConfig.FallbackPort != e.proxyConfig.Port {
		e.logger.Warn().
			Int("port", e.proxyConfig.Port).
			Int("fallback_port", e.proxyConfig.FallbackPort).
			Err(err).
			Msg("Proxy verification failed; trying fallback port")

		fallback, ferr := proxyAddress(e.proxyConfig, e.proxyConfig.FallbackPort)
		if ferr == nil && fallback != nil {
			if fip, verr := verifyProxy(ctx, fallback, e.proxyConfig.VerifyURL, e.requestTimeout()); verr == nil {
				proxyURL = fallback
				ip = fip
				err = nil
			}
		}
	}
	if err != nil {
		return fmt.Errorf("proxy verification failed: %w", err)
	}

	e.logger.Info().Str("proxy", proxyURL.String()).Str("exit_ip", ip).Msg("Proxy verified")
	e.proxyURL = proxyURL
	return nil
}

// bootstrap fills the frontier from the first non-empty source: configured
// seeds, the persisted queue, then old successes re-fetched to mine fresh
// links. Returns how many entries were queued.
func (e *Engine) bootstrap() int {
	queued := 0
	for _, seed := range e.config.Seeds {
		if e.dispatch(seed, 0, seedBoost) {
			queued++
		}
	}
	if queued > 0 {
		e.logger.Info().Int("seeds", queued).Msg("Frontier seeded from config")
		return queued
	}

	pending, err := e.store.PendingURLs(pendingBatchSize)
	if err != nil {
		e.logger.Warn().Err(err).Msg("Failed to load pending queue")
	}
	for _, entry := range pending {
		if entry.Priority <= 0 {
			entry.Priority = models.DefaultPriority
		}
		if e.frontier.Push(entry) {
			queued++
		}
	}
	if queued > 0 {
		e.logger.Info().Int("pending", queued).Msg("Frontier restored from persisted queue")
		return queued
	}

	recrawl, err := e.store.SuccessfulURLsForRecrawl(0, recrawlBatchSize)
	if err != nil {
		e.logger.Warn().Err(err).Msg("Failed to load recrawl candidates")
	}
	for _, entry := range recrawl {
		if entry.Priority <= 0 {
			entry.Priority = models.DefaultPriority
		}
		if e.frontier.Push(entry) {
			queued++
		}
	}
	if queued > 0 {
		e.logger.Info().Int("recrawl", queued).Msg("Frontier seeded from recrawl candidates")
	}
	return queued
}

// launch starts the worker pool once and moves the engine to RUN
func (e *Engine) launch() {
	e.mu.Lock()
	if e.launched {
		e.mu.Unlock()
		return
	}
	e.launched = true
	e.mu.Unlock()

	workers := e.workerCount()
	e.setState(interfaces.EngineStateRun)

	for i := 0; i < workers; i++ {
		id := i
		e.workerWG.Add(1)
		common.SafeGo(e.logger, fmt.Sprintf("crawl-worker-%d", id), func() {
			e.worker(id)
		})
	}
	e.logger.Info().Int("workers", workers).Msg("Worker pool launched")
}

// AddSeeds validates and enqueues crawl roots. An engine parked in SEED
// is woken when at least one seed is accepted.
func (e *Engine) AddSeeds(urls []string) (int, error) {
	if len(urls) == 0 {
		return 0, fmt.Errorf("no seed URLs given")
	}
	if e.stopRequested() {
		return 0, fmt.Errorf("engine is stopped")
	}

	added := 0
	for _, raw := range urls {
		if e.dispatch(raw, 0, seedBoost) {
			added++
		}
	}
	e.logger.Info().Int("accepted", added).Int("given", len(urls)).Msg("Seeds added")

	if added > 0 {
		e.mu.Lock()
		parked := e.state == interfaces.EngineStateSeed
		e.mu.Unlock()
		if parked {
			e.launch()
		}
	}
	return added, nil
}

// Pause gates dispatch without dropping queued work
func (e *Engine) Pause() {
	e.mu.Lock()
	if e.paused {
		e.mu.Unlock()
		return
	}
	e.paused = true
	e.mu.Unlock()

	e.frontier.Pause()
	e.logger.Info().Msg("Crawl paused")
	e.publish(interfaces.EventEngineState, e.Stats())
}

// Resume releases a pause
func (e *Engine) Resume() {
	e.mu.Lock()
	if !e.paused {
		e.mu.Unlock()
		return
	}
	e.paused = false
	e.mu.Unlock()

	e.frontier.Resume()
	e.logger.Info().Msg("Crawl resumed")
	e.publish(interfaces.EventEngineState, e.Stats())
}

// Drain finishes queued and in-flight work but accepts no new links.
// Once the frontier runs dry the engine stops itself.
func (e *Engine) Drain() {
	e.mu.Lock()
	if e.draining {
		e.mu.Unlock()
		return
	}
	e.draining = true
	e.mu.Unlock()

	e.setState(interfaces.EngineStateDrain)
	e.logger.Info().Msg("Draining; discovered links will be discarded")
}

// Stop shuts the engine down, waiting for in-flight work up to the
// context deadline or the grace period, whichever ends first. Safe to
// call more than once.
func (e *Engine) Stop(ctx context.Context) error {
	if !e.stop.CompareAndSwap(false, true) {
		return nil
	}

	e.logger.Info().Msg("Stopping crawl engine")
	e.frontier.Close()
	e.runCancel()

	done := make(chan struct{})
	go func() {
		e.workerWG.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		e.setState(interfaces.EngineStateStop)
		return fmt.Errorf("stopped before workers finished: %w", ctx.Err())
	case <-time.After(stopGracePeriod):
		e.setState(interfaces.EngineStateStop)
		return fmt.Errorf("timed out waiting for workers to finish")
	}

	e.setState(interfaces.EngineStateStop)
	e.logger.Info().
		Int64("requests", e.requests.Load()).
		Int64("success", e.success.Load()).
		Int64("errors", e.errors.Load()).
		Msg("Crawl engine stopped")
	return nil
}

// autoStop is reached by the last busy worker when the frontier is empty.
// It flips the same stop flag Stop uses, so a later Stop is a no-op.
func (e *Engine) autoStop() {
	if !e.stop.CompareAndSwap(false, true) {
		return
	}

	e.frontier.Close()
	e.runCancel()
	e.setState(interfaces.EngineStateStop)
	e.logger.Info().
		Int64("requests", e.requests.Load()).
		Int64("success", e.success.Load()).
		Int64("errors", e.errors.Load()).
		Int("visited", e.visitedCount()).
		Msg("Frontier exhausted; crawl complete")
}

// RotateCircuit retires every worker's HTTP session; the next fetch on
// each builds a fresh one, giving the proxy a chance to pick new circuits.
func (e *Engine) RotateCircuit() {
	gen := e.generation.Add(1)
	e.logger.Info().Int64("generation", gen).Msg("Circuit rotation requested")
}

// State returns the engine lifecycle state
func (e *Engine) State() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Stats snapshots the live counters
func (e *Engine) Stats() models.EngineStats {
	e.mu.Lock()
	state := e.state
	runID := e.runID
	paused := e.paused
	startedAt := e.startedAt
	e.mu.Unlock()

	var elapsed time.Duration
	if !startedAt.IsZero() {
		elapsed = time.Since(startedAt)
	}

	return models.EngineStats{
		State:         state,
		RunID:         runID,
		Requests:      e.requests.Load(),
		Success:       e.success.Load(),
		Errors:        e.errors.Load(),
		Retries:       e.retries.Load(),
		ParseErrors:   e.parseErrors.Load(),
		Skipped:       e.skipped.Load(),
		VisitedCount:  e.visitedCount(),
		FrontierSize:  e.frontier.Len(),
		ActiveWorkers: int(e.busy.Load()),
		Paused:        paused,
		StartedAt:     startedAt,
		Elapsed:       elapsed,
	}
}

// QueueSnapshot returns up to limit frontier entries in pop order
func (e *Engine) QueueSnapshot(limit int) []models.FrontierEntry {
	return e.frontier.Snapshot(limit)
}

func (e *Engine) setState(state string) {
	e.mu.Lock()
	if e.state == state {
		e.mu.Unlock()
		return
	}
	prev := e.state
	e.state = state
	e.mu.Unlock()

	e.logger.Info().Str("from", prev).Str("to", state).Msg("Engine state changed")
	e.publish(interfaces.EventEngineState, map[string]interface{}{"state": state, "previous": prev})
}

// publish sends an event when an event bus is wired. Uses a background
// context so the final STOP event still goes out after runCtx is
// cancelled.
func (e *Engine) publish(eventType interfaces.EventType, payload interface{}) {
	if e.events == nil {
		return
	}
	if err := e.events.Publish(context.Background(), interfaces.Event{Type: eventType, Payload: payload}); err != nil {
		e.logger.Debug().Str("event", string(eventType)).Err(err).Msg("Event publish failed")
	}
}

func (e *Engine) stopRequested() bool {
	return e.stop.Load()
}

func (e *Engine) isPaused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

func (e *Engine) isDraining() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.draining
}

func (e *Engine) visitedCount() int {
	e.visitedMu.Lock()
	defer e.visitedMu.Unlock()
	return len(e.visited)
}

func (e *Engine) workerCount() int {
	if e.config.MaxWorkers <= 0 {
		return 1
	}
	return e.config.MaxWorkers
}

func (e *Engine) requestTimeout() time.Duration {
	if e.config.TimeoutSeconds <= 0 {
		return 90 * time.Second
	}
	return time.Duration(e.config.TimeoutSeconds) * time.Second
}

func (e *Engine) queueTimeout() time.Duration {
	if e.config.QueueTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(e.config.QueueTimeoutSeconds) * time.Second
}

// domainDelay resolves the politeness delay for one domain: the policy
// override when set, else the engine default.
func (e *Engine) domainDelay(domain string) time.Duration {
	ms := e.policies.Get(domain).DelayMS
	if ms <= 0 {
		ms = e.config.RequestDelayMS
	}
	if ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}
