package crawler

import (
	"context"
	"sync"
	"time"
)

// rateLimiter spaces requests per domain. The effective delay arrives at
// wait time so a policy change applies to the very next request.
type rateLimiter struct {
	mu    sync.Mutex
	gates map[string]*domainGate
}

type domainGate struct {
	mu          sync.Mutex
	lastRequest time.Time
}

func newRateLimiter() *rateLimiter {
	return &rateLimiter{gates: make(map[string]*domainGate)}
}

// Wait blocks until the domain's delay since its previous request has
// elapsed, or the context is cancelled.
func (r *rateLimiter) Wait(ctx context.Context, domain string, delay time.Duration) error {
	if domain == "" || delay <= 0 {
		return nil
	}

	r.mu.Lock()
	gate, ok := r.gates[domain]
	if !ok {
		gate = &domainGate{}
		r.gates[domain] = gate
	}
	r.mu.Unlock()

	gate.mu.Lock()
	defer gate.mu.Unlock()

	next := gate.lastRequest.Add(delay)
	if wait := time.Until(next); wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	gate.lastRequest = time.Now()
	return nil
}
