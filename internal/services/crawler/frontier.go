package crawler

import (
	"container/heap"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/umbra/internal/models"
)

// frontier is the queue of URLs awaiting dispatch. Higher priority pops
// first, shallower depth breaks ties, insertion order breaks those. A
// presence map keeps a URL from sitting in the queue twice; the engine's
// visited set is what prevents re-crawling.
type frontier struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   entryHeap
	present map[string]bool
	paused  bool
	closed  bool
	seq     uint64
}

type frontierItem struct {
	entry models.FrontierEntry
	seq   uint64
}

type entryHeap []*frontierItem

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if h[i].entry.Priority != h[j].entry.Priority {
		return h[i].entry.Priority > h[j].entry.Priority
	}
	if h[i].entry.Depth != h[j].entry.Depth {
		return h[i].entry.Depth < h[j].entry.Depth
	}
	return h[i].seq < h[j].seq
}

func (h entryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *entryHeap) Push(x interface{}) { *h = append(*h, x.(*frontierItem)) }

func (h *entryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

func newFrontier() *frontier {
	f := &frontier{present: make(map[string]bool)}
	f.cond = sync.NewCond(&f.mu)
	heap.Init(&f.items)
	return f
}

// Push enqueues one entry. Returns false when the URL is already queued
// or the frontier is closed.
func (f *frontier) Push(entry models.FrontierEntry) bool {
	if entry.URL == "" {
		return false
	}
	if entry.EnqueuedAt.IsZero() {
		entry.EnqueuedAt = time.Now()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed || f.present[entry.URL] {
		return false
	}

	f.present[entry.URL] = true
	f.seq++
	heap.Push(&f.items, &frontierItem{entry: entry, seq: f.seq})
	f.cond.Signal()
	return true
}

// Pop blocks until an entry is available, then returns it. Returns nil
// after timeout, while paused past the timeout, or once closed. Callers
// re-check engine state on nil and poll again.
func (f *frontier) Pop(timeout time.Duration) *models.FrontierEntry {
	deadline := time.Now().Add(timeout)

	f.mu.Lock()
	defer f.mu.Unlock()

	for {
		if f.closed {
			return nil
		}
		if !f.paused && f.items.Len() > 0 {
			item := heap.Pop(&f.items).(*frontierItem)
			delete(f.present, item.entry.URL)
			return &item.entry
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil
		}
		timer := time.AfterFunc(remaining, f.cond.Broadcast)
		f.cond.Wait()
		timer.Stop()
	}
}

// Pause holds queued entries back without dropping them
func (f *frontier) Pause() {
	f.mu.Lock()
	f.paused = true
	f.mu.Unlock()
}

// Resume releases paused dispatch
func (f *frontier) Resume() {
	f.mu.Lock()
	f.paused = false
	f.mu.Unlock()
	f.cond.Broadcast()
}

// Close wakes every blocked Pop; the frontier accepts nothing afterwards
func (f *frontier) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	f.cond.Broadcast()
}

func (f *frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items.Len()
}

// Contains reports whether the URL currently sits in the queue
func (f *frontier) Contains(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.present[url]
}

// Snapshot returns up to limit queued entries in pop order without
// disturbing the queue.
func (f *frontier) Snapshot(limit int) []models.FrontierEntry {
	f.mu.Lock()
	copied := make([]*frontierItem, len(f.items))
	copy(copied, f.items)
	f.mu.Unlock()

	sort.Slice(copied, func(i, j int) bool {
		if copied[i].entry.Priority != copied[j].entry.Priority {
			return copied[i].entry.Priority > copied[j].entry.Priority
		}
		if copied[i].entry.Depth != copied[j].entry.Depth {
			return copied[i].entry.Depth < copied[j].entry.Depth
		}
		return copied[i].seq < copied[j].seq
	})

	if limit <= 0 || limit > len(copied) {
		limit = len(copied)
	}
	entries := make([]models.FrontierEntry, 0, limit)
	for _, item := range copied[:limit] {
		entries = append(entries, item.entry)
	}
	return entries
}
