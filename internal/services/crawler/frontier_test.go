package crawler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/umbra/internal/models"
)

func entry(url string, depth, priority int) models.FrontierEntry {
	return models.FrontierEntry{URL: url, Depth: depth, Priority: priority}
}

func TestFrontier_PopsHighestPriorityFirst(t *testing.T) {
	f := newFrontier()
	require.True(t, f.Push(entry("http://low.onion/", 0, 10)))
	require.True(t, f.Push(entry("http://high.onion/", 0, 90)))
	require.True(t, f.Push(entry("http://mid.onion/", 0, 50)))

	assert.Equal(t, "http://high.onion/", f.Pop(time.Second).URL)
	assert.Equal(t, "http://mid.onion/", f.Pop(time.Second).URL)
	assert.Equal(t, "http://low.onion/", f.Pop(time.Second).URL)
}

func TestFrontier_TiesBreakOnDepthThenInsertionOrder(t *testing.T) {
	f := newFrontier()
	require.True(t, f.Push(entry("http://deep.onion/", 3, 50)))
	require.True(t, f.Push(entry("http://shallow.onion/", 1, 50)))
	require.True(t, f.Push(entry("http://first.onion/", 1, 50)))
	require.True(t, f.Push(entry("http://second.onion/", 1, 50)))

	assert.Equal(t, "http://shallow.onion/", f.Pop(time.Second).URL)
	assert.Equal(t, "http://first.onion/", f.Pop(time.Second).URL)
	assert.Equal(t, "http://second.onion/", f.Pop(time.Second).URL)
	assert.Equal(t, "http://deep.onion/", f.Pop(time.Second).URL)
}

func TestFrontier_RejectsDuplicatesWhileQueued(t *testing.T) {
	f := newFrontier()
	require.True(t, f.Push(entry("http://dup.onion/", 0, 50)))
	assert.False(t, f.Push(entry("http://dup.onion/", 1, 99)))
	assert.Equal(t, 1, f.Len())

	popped := f.Pop(time.Second)
	require.NotNil(t, popped)

	// Once popped the URL may be queued again; re-enqueue decisions
	// belong to the visited-set, not the frontier.
	assert.True(t, f.Push(entry("http://dup.onion/", 0, 50)))
}

func TestFrontier_RejectsEmptyURL(t *testing.T) {
	f := newFrontier()
	assert.False(t, f.Push(entry("", 0, 50)))
	assert.Equal(t, 0, f.Len())
}

func TestFrontier_PopTimesOutOnEmptyQueue(t *testing.T) {
	f := newFrontier()

	start := time.Now()
	popped := f.Pop(60 * time.Millisecond)
	elapsed := time.Since(start)

	assert.Nil(t, popped)
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
}

func TestFrontier_PauseGatesDispatch(t *testing.T) {
	f := newFrontier()
	require.True(t, f.Push(entry("http://waiting.onion/", 0, 50)))

	f.Pause()
	assert.Nil(t, f.Pop(60*time.Millisecond))
	assert.Equal(t, 1, f.Len())

	f.Resume()
	popped := f.Pop(time.Second)
	require.NotNil(t, popped)
	assert.Equal(t, "http://waiting.onion/", popped.URL)
}

func TestFrontier_CloseWakesBlockedPop(t *testing.T) {
	f := newFrontier()

	done := make(chan *models.FrontierEntry, 1)
	go func() {
		done <- f.Pop(10 * time.Second)
	}()

	time.Sleep(20 * time.Millisecond)
	f.Close()

	select {
	case popped := <-done:
		assert.Nil(t, popped)
	case <-time.After(time.Second):
		t.Fatal("Pop did not return after Close")
	}

	assert.False(t, f.Push(entry("http://late.onion/", 0, 50)))
}

func TestFrontier_PushWakesBlockedPop(t *testing.T) {
	f := newFrontier()

	done := make(chan *models.FrontierEntry, 1)
	go func() {
		done <- f.Pop(10 * time.Second)
	}()

	time.Sleep(20 * time.Millisecond)
	require.True(t, f.Push(entry("http://fresh.onion/", 0, 50)))

	select {
	case popped := <-done:
		require.NotNil(t, popped)
		assert.Equal(t, "http://fresh.onion/", popped.URL)
	case <-time.After(time.Second):
		t.Fatal("Pop did not return after Push")
	}
}

func TestFrontier_SnapshotReturnsPopOrderWithoutDraining(t *testing.T) {
	f := newFrontier()
	require.True(t, f.Push(entry("http://low.onion/", 0, 10)))
	require.True(t, f.Push(entry("http://high.onion/", 0, 90)))
	require.True(t, f.Push(entry("http://mid.onion/", 0, 50)))

	snap := f.Snapshot(2)
	require.Len(t, snap, 2)
	assert.Equal(t, "http://high.onion/", snap[0].URL)
	assert.Equal(t, "http://mid.onion/", snap[1].URL)

	// Snapshot must not consume entries
	assert.Equal(t, 3, f.Len())
	assert.True(t, f.Contains("http://low.onion/"))
}
