package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/umbra/internal/common"
	"github.com/ternarybob/umbra/internal/handlers"
	"github.com/ternarybob/umbra/internal/interfaces"
	"github.com/ternarybob/umbra/internal/models"
	"github.com/ternarybob/umbra/internal/services/alerts"
	"github.com/ternarybob/umbra/internal/services/analyzer"
	"github.com/ternarybob/umbra/internal/services/crawler"
	"github.com/ternarybob/umbra/internal/services/entities"
	"github.com/ternarybob/umbra/internal/services/events"
	"github.com/ternarybob/umbra/internal/services/graph"
	"github.com/ternarybob/umbra/internal/services/policies"
	"github.com/ternarybob/umbra/internal/services/reports"
	"github.com/ternarybob/umbra/internal/services/scheduler"
	"github.com/ternarybob/umbra/internal/storage"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	StorageManager interfaces.StorageManager

	// Intelligence pipeline
	Analyzer  *analyzer.Analyzer
	Extractor *entities.Extractor
	Graph     *graph.Graph

	// Event-driven services
	EventService interfaces.EventService
	AlertManager *alerts.Manager
	Policies     *policies.Service
	Scheduler    *scheduler.Service
	Reports      *reports.Service

	// Crawl engine
	Engine interfaces.CrawlEngine

	// HTTP handlers
	APIHandler     *handlers.APIHandler
	WSHandler      *handlers.WebSocketHandler
	StatusHandler  *handlers.StatusHandler
	PageHandler    *handlers.PageHandler
	EntityHandler  *handlers.EntityHandler
	AlertHandler   *handlers.AlertHandler
	ControlHandler *handlers.ControlHandler
	AdminHandler   *handlers.AdminHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initStorage(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if err := app.initServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initHandlers()

	logger.Info().
		Str("state", app.Engine.State()).
		Bool("cache_enabled", app.StorageManager.Cache() != nil).
		Bool("scheduler_enabled", cfg.Scheduler.Enabled).
		Msg("Application initialization complete")

	return app, nil
}

// initStorage opens the SQLite store and the optional content cache.
func (a *App) initStorage() error {
	manager, err := storage.NewManager(a.Logger, a.Config)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}
	a.StorageManager = manager

	a.Logger.Debug().
		Str("storage", "sqlite").
		Str("path", a.Config.Storage.SQLite.Path).
		Msg("Storage layer initialized")
	return nil
}

// initServices initializes all business services in dependency order:
// event bus first, then the intelligence pipeline, then alerting, and
// the engine last since it consumes everything above it.
func (a *App) initServices() error {
	a.EventService = events.NewService(a.Logger)

	a.Analyzer = analyzer.New(a.Logger, a.Config.Crawler.IgnoredExtensions)
	a.Extractor = entities.New(a.Logger)

	// The graph is memory-resident; rebuild it from persisted entity
	// matches so correlation survives restarts.
	a.Graph = graph.New(a.Logger)
	pages, err := a.StorageManager.Pages().AllPages()
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to load pages for graph rebuild")
	} else if len(pages) > 0 {
		nodes := a.Graph.RebuildFromPages(pages)
		a.Logger.Debug().
			Int("pages", len(pages)).
			Int("nodes", nodes).
			Msg("Entity graph rebuilt from store")
	}

	a.Policies, err = policies.NewService(a.Logger, a.StorageManager.Policies())
	if err != nil {
		return fmt.Errorf("failed to initialize policy service: %w", err)
	}

	a.AlertManager = alerts.NewManager(a.Logger, &a.Config.Alerts, a.StorageManager.Alerts())

	// Bridge raised alerts onto the event bus so WebSocket clients see
	// them without polling.
	a.AlertManager.OnAlert(func(alert *models.Alert) {
		_ = a.EventService.Publish(context.Background(), interfaces.Event{
			Type:    interfaces.EventAlertRaised,
			Payload: alert,
		})
	})

	// First-time successful inserts feed the domain_new_page trigger.
	a.StorageManager.Pages().SetPageInsertHook(a.AlertManager.PageInserted)

	engine, err := crawler.New(crawler.Dependencies{
		Logger:    a.Logger,
		Config:    a.Config,
		Store:     a.StorageManager.Pages(),
		Domains:   a.StorageManager.Domains(),
		Cache:     a.StorageManager.Cache(),
		Policies:  a.Policies,
		Alerts:    a.AlertManager,
		Events:    a.EventService,
		Analyzer:  a.Analyzer,
		Extractor: a.Extractor,
		Graph:     a.Graph,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize crawl engine: %w", err)
	}
	a.Engine = engine

	a.Reports = reports.NewService(a.Logger, a.StorageManager.Pages(), a.StorageManager.Alerts())

	if err := a.initScheduler(); err != nil {
		return fmt.Errorf("failed to initialize scheduler: %w", err)
	}

	a.Logger.Debug().Msg("Services initialized")
	return nil
}

// initScheduler registers the maintenance jobs and starts the cron loop
// when enabled. Jobs are registered even when the scheduler is disabled
// so they show up in status output.
func (a *App) initScheduler() error {
	a.Scheduler = scheduler.NewService(a.Logger, a.EventService)

	schedCfg := &a.Config.Scheduler

	err := a.Scheduler.RegisterJob("stats_snapshot", schedCfg.StatsCron,
		"Emit periodic store statistics as an info alert", func() error {
			stats, err := a.StorageManager.Pages().GetStats()
			if err != nil {
				return err
			}
			a.AlertManager.RaiseStatsUpdate(stats)
			return nil
		})
	if err != nil {
		return err
	}

	err = a.Scheduler.RegisterJob("retention_purge", schedCfg.PurgeCron,
		"Purge or anonymize pages past the retention window", func() error {
			if schedCfg.RetentionDays <= 0 {
				return nil
			}
			affected, err := a.StorageManager.Maintenance().Purge(schedCfg.RetentionDays, schedCfg.PurgeAnonymize)
			if err != nil {
				return err
			}
			if affected > 0 {
				a.Logger.Info().
					Int("rows", affected).
					Int("retention_days", schedCfg.RetentionDays).
					Bool("anonymize", schedCfg.PurgeAnonymize).
					Msg("Retention purge complete")
			}
			return nil
		})
	if err != nil {
		return err
	}

	err = a.Scheduler.RegisterJob("store_vacuum", schedCfg.VacuumCron,
		"Compact the page store and the content cache", func() error {
			if err := a.StorageManager.Maintenance().Vacuum(); err != nil {
				return err
			}
			if cache := a.StorageManager.Cache(); cache != nil {
				return cache.GC()
			}
			return nil
		})
	if err != nil {
		return err
	}

	if schedCfg.Enabled {
		if err := a.Scheduler.Start(); err != nil {
			return err
		}
	} else {
		a.Logger.Debug().Msg("Scheduler disabled, maintenance jobs will not run")
	}
	return nil
}

// initHandlers initializes all HTTP handlers
func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler()
	a.WSHandler = handlers.NewWebSocketHandler(a.EventService, a.Engine, a.Logger, &a.Config.WebSocket)
	a.StatusHandler = handlers.NewStatusHandler(a.Engine, a.StorageManager, a.Graph, a.Logger)
	a.PageHandler = handlers.NewPageHandler(a.StorageManager.Pages(), a.StorageManager.Cache(), a.Engine, a.Analyzer, a.Logger)
	a.EntityHandler = handlers.NewEntityHandler(a.Graph, a.Logger)
	a.AlertHandler = handlers.NewAlertHandler(a.AlertManager, a.StorageManager.Alerts(), a.Logger)
	a.ControlHandler = handlers.NewControlHandler(a.Engine, a.Policies, a.StorageManager.Pages(), a.StorageManager.Domains(), a.Logger)
	a.AdminHandler = handlers.NewAdminHandler(a.StorageManager, a.Reports, a.Engine, a.Config, a.Logger)

	a.Logger.Debug().Msg("Handlers initialized")
}

// Close tears down application resources in reverse dependency order.
func (a *App) Close() error {
	if a.Scheduler != nil {
		if err := a.Scheduler.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop scheduler")
		}
	}

	if a.Engine != nil && a.Engine.State() != interfaces.EngineStateStop && a.Engine.State() != interfaces.EngineStateInit {
		ctx, cancel := context.WithTimeout(context.Background(), 35*time.Second)
		if err := a.Engine.Stop(ctx); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop crawl engine")
		}
		cancel()
	}

	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event service")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
