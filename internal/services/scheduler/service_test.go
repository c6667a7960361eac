package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/umbra/internal/interfaces"
	"github.com/ternarybob/umbra/internal/services/events"
)

func newTestScheduler(t *testing.T) *Service {
	t.Helper()
	s := NewService(arbor.NewLogger(), nil)
	t.Cleanup(func() { s.Stop() })
	return s
}

func TestRegisterJob_Validation(t *testing.T) {
	s := newTestScheduler(t)

	assert.Error(t, s.RegisterJob("", "* * * * *", "", func() error { return nil }))
	assert.Error(t, s.RegisterJob("no-handler", "* * * * *", "", nil))
	assert.Error(t, s.RegisterJob("bad-schedule", "not cron", "", func() error { return nil }))

	require.NoError(t, s.RegisterJob("stats", "*/5 * * * *", "stats snapshot", func() error { return nil }))
	assert.Error(t, s.RegisterJob("stats", "*/5 * * * *", "duplicate", func() error { return nil }))
}

func TestRegisterJob_RejectedAfterStart(t *testing.T) {
	s := newTestScheduler(t)
	require.NoError(t, s.RegisterJob("stats", "*/5 * * * *", "", func() error { return nil }))
	require.NoError(t, s.Start())

	err := s.RegisterJob("late", "* * * * *", "", func() error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after the scheduler started")
}

func TestStartAndStop(t *testing.T) {
	s := newTestScheduler(t)
	require.NoError(t, s.RegisterJob("stats", "*/5 * * * *", "", func() error { return nil }))

	assert.False(t, s.IsRunning())
	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())
	assert.Error(t, s.Start(), "double start must fail")

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	require.NoError(t, s.Stop(), "stop is idempotent")
}

func TestTriggerJob_RunsHandlerAndTracksStatus(t *testing.T) {
	s := newTestScheduler(t)

	var runs atomic.Int32
	require.NoError(t, s.RegisterJob("purge", "0 3 * * *", "retention purge", func() error {
		runs.Add(1)
		return nil
	}))

	require.NoError(t, s.TriggerJob("purge"))
	require.NoError(t, s.TriggerJob("purge"))
	assert.Equal(t, int32(2), runs.Load())

	status := s.JobStatuses()["purge"]
	require.NotNil(t, status)
	assert.Equal(t, 2, status.RunCount)
	assert.False(t, status.IsRunning)
	assert.Empty(t, status.LastError)
	require.NotNil(t, status.LastRun)
	assert.WithinDuration(t, time.Now(), *status.LastRun, 5*time.Second)
}

func TestTriggerJob_PropagatesHandlerError(t *testing.T) {
	s := newTestScheduler(t)
	require.NoError(t, s.RegisterJob("vacuum", "0 4 * * 0", "", func() error {
		return errors.New("database is locked")
	}))

	err := s.TriggerJob("vacuum")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is locked")
	assert.Equal(t, "database is locked", s.JobStatuses()["vacuum"].LastError)

	assert.Error(t, s.TriggerJob("missing"))
}

func TestTriggerJob_ErrorClearsOnNextSuccess(t *testing.T) {
	s := newTestScheduler(t)

	var fail atomic.Bool
	fail.Store(true)
	require.NoError(t, s.RegisterJob("flaky", "* * * * *", "", func() error {
		if fail.Load() {
			return errors.New("transient")
		}
		return nil
	}))

	require.Error(t, s.TriggerJob("flaky"))
	fail.Store(false)
	require.NoError(t, s.TriggerJob("flaky"))
	assert.Empty(t, s.JobStatuses()["flaky"].LastError)
}

func TestExecuteJob_ContainsPanics(t *testing.T) {
	s := newTestScheduler(t)
	require.NoError(t, s.RegisterJob("explosive", "* * * * *", "", func() error {
		panic("boom")
	}))

	err := s.TriggerJob("explosive")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic: boom")

	// The scheduler keeps working after a panic
	require.NoError(t, s.RegisterJob("calm", "* * * * *", "", func() error { return nil }))
	require.NoError(t, s.TriggerJob("calm"))
}

func TestJobStatuses_NextRunOnlyWhileRunning(t *testing.T) {
	s := newTestScheduler(t)
	require.NoError(t, s.RegisterJob("stats", "*/5 * * * *", "", func() error { return nil }))

	assert.Nil(t, s.JobStatuses()["stats"].NextRun)

	require.NoError(t, s.Start())
	next := s.JobStatuses()["stats"].NextRun
	require.NotNil(t, next)
	assert.True(t, next.After(time.Now()))
}

func TestScheduler_PublishesRunEvents(t *testing.T) {
	bus := events.NewService(arbor.NewLogger())
	defer bus.Close()

	received := make(chan interfaces.Event, 1)
	require.NoError(t, bus.Subscribe(interfaces.EventSchedulerRun, func(ctx context.Context, event interfaces.Event) error {
		received <- event
		return nil
	}))

	s := NewService(arbor.NewLogger(), bus)
	defer s.Stop()

	require.NoError(t, s.RegisterJob("stats", "*/5 * * * *", "", func() error { return nil }))
	require.NoError(t, s.TriggerJob("stats"))

	select {
	case event := <-received:
		payload, ok := event.Payload.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "stats", payload["job"])
		assert.NotContains(t, payload, "error")
	case <-time.After(2 * time.Second):
		t.Fatal("no scheduler_run event received")
	}
}
