package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/umbra/internal/interfaces"
)

// jobEntry is one registered maintenance job and its run bookkeeping
type jobEntry struct {
	name        string
	schedule    string
	description string
	handler     func() error
	cronID      cron.EntryID
	lastRun     *time.Time
	isRunning   bool
	lastError   string
	runCount    int
}

// Service runs the cron maintenance jobs. Jobs execute one at a time; a
// vacuum and a purge must never overlap on the same database file.
type Service struct {
	logger arbor.ILogger
	events interfaces.EventService
	cron   *cron.Cron

	mu      sync.Mutex
	jobs    map[string]*jobEntry
	running bool

	// execMu serializes job execution across the whole scheduler
	execMu sync.Mutex
}

// NewService creates an empty scheduler; register jobs before Start
func NewService(logger arbor.ILogger, events interfaces.EventService) *Service {
	return &Service{
		logger: logger,
		events: events,
		cron:   cron.New(),
		jobs:   make(map[string]*jobEntry),
	}
}

// RegisterJob adds a named job on a five-field cron schedule
func (s *Service) RegisterJob(name, schedule, description string, handler func() error) error {
	if name == "" {
		return fmt.Errorf("job name is required")
	}
	if handler == nil {
		return fmt.Errorf("job %s has no handler", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("cannot register %s after the scheduler started", name)
	}
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already registered", name)
	}

	cronID, err := s.cron.AddFunc(schedule, func() {
		s.executeJob(name)
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", schedule, name, err)
	}

	s.jobs[name] = &jobEntry{
		name:        name,
		schedule:    schedule,
		description: description,
		handler:     handler,
		cronID:      cronID,
	}

	s.logger.Info().
		Str("job_name", name).
		Str("schedule", schedule).
		Msg("Job registered")
	return nil
}

// Start begins cron dispatch
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	s.cron.Start()
	s.running = true
	s.logger.Info().Int("jobs", len(s.jobs)).Msg("Scheduler started")
	return nil
}

// Stop halts dispatch and waits for the running job to finish
func (s *Service) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	ctx := s.cron.Stop()
	<-ctx.Done()

	// A handler fired just before Stop may still hold execMu
	s.execMu.Lock()
	s.execMu.Unlock()

	s.logger.Info().Msg("Scheduler stopped")
	return nil
}

// IsRunning returns true while the scheduler is started
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// TriggerJob runs a registered job immediately, outside its schedule
func (s *Service) TriggerJob(name string) error {
	s.mu.Lock()
	_, exists := s.jobs[name]
	s.mu.Unlock()

	if !exists {
		return fmt.Errorf("job %s not found", name)
	}

	s.logger.Info().Str("job_name", name).Msg("Manual job trigger")
	s.executeJob(name)

	s.mu.Lock()
	defer s.mu.Unlock()
	if lastError := s.jobs[name].lastError; lastError != "" {
		return fmt.Errorf("job %s failed: %s", name, lastError)
	}
	return nil
}

// JobStatuses returns the status of every registered job
func (s *Service) JobStatuses() map[string]*interfaces.JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make(map[string]*interfaces.JobStatus, len(s.jobs))
	for name, entry := range s.jobs {
		status := &interfaces.JobStatus{
			Name:        entry.name,
			Schedule:    entry.schedule,
			Description: entry.description,
			IsRunning:   entry.isRunning,
			LastError:   entry.lastError,
			RunCount:    entry.runCount,
		}
		if entry.lastRun != nil {
			lastRun := *entry.lastRun
			status.LastRun = &lastRun
		}
		if s.running {
			if next := s.cron.Entry(entry.cronID).Next; !next.IsZero() {
				nextRun := next
				status.NextRun = &nextRun
			}
		}
		statuses[name] = status
	}
	return statuses
}

// executeJob runs one job with panic containment and status tracking
func (s *Service) executeJob(name string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("job_name", name).
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("PANIC RECOVERED in job execution")

			s.mu.Lock()
			if entry, exists := s.jobs[name]; exists {
				entry.isRunning = false
				entry.lastError = fmt.Sprintf("panic: %v", r)
			}
			s.mu.Unlock()
		}
	}()

	s.execMu.Lock()
	defer s.execMu.Unlock()

	s.mu.Lock()
	entry, exists := s.jobs[name]
	if !exists {
		s.mu.Unlock()
		s.logger.Warn().Str("job_name", name).Msg("Job not found")
		return
	}
	entry.isRunning = true
	handler := entry.handler
	s.mu.Unlock()

	started := time.Now()
	s.logger.Info().Str("job_name", name).Msg("🚀 Job execution started")

	err := handler()

	completed := time.Now()
	s.mu.Lock()
	entry.isRunning = false
	entry.lastRun = &completed
	entry.runCount++
	if err != nil {
		entry.lastError = err.Error()
	} else {
		entry.lastError = ""
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error().
			Str("job_name", name).
			Err(err).
			Dur("duration", time.Since(started)).
			Msg("❌ Job execution failed")
	} else {
		s.logger.Info().
			Str("job_name", name).
			Dur("duration", time.Since(started)).
			Msg("✅ Job execution completed")
	}

	s.publishRun(name, started, completed, err)
}

func (s *Service) publishRun(name string, started, completed time.Time, err error) {
	if s.events == nil {
		return
	}

	payload := map[string]interface{}{
		"job":         name,
		"started_at":  started,
		"duration_ms": completed.Sub(started).Milliseconds(),
	}
	if err != nil {
		payload["error"] = err.Error()
	}

	publishErr := s.events.Publish(context.Background(), interfaces.Event{
		Type:    interfaces.EventSchedulerRun,
		Payload: payload,
	})
	if publishErr != nil {
		s.logger.Debug().Err(publishErr).Msg("Failed to publish scheduler event")
	}
}
