package interfaces

import "time"

// JobStatus represents the current status of a scheduled job
type JobStatus struct {
	Name        string
	Schedule    string
	Description string
	LastRun     *time.Time
	NextRun     *time.Time
	IsRunning   bool
	LastError   string
	RunCount    int
}

// SchedulerService manages the cron-driven maintenance jobs
type SchedulerService interface {
	// RegisterJob adds a job. Must be called before Start.
	RegisterJob(name, schedule, description string, handler func() error) error

	// Start begins cron dispatch
	Start() error

	// Stop halts dispatch and waits for running jobs
	Stop() error

	// IsRunning returns true while the scheduler is started
	IsRunning() bool

	// TriggerJob runs a registered job immediately
	TriggerJob(name string) error

	// JobStatuses returns the status of every registered job
	JobStatuses() map[string]*JobStatus
}
