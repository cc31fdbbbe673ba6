// Package ratelimit enforces per-user, per-bucket sliding-window quotas.
package ratelimit

import (
	"sync"
	"time"

	"pricehunt/internal/clock"
)

const window = time.Minute

type key struct {
	userID string
	bucket string
}

// Limiter tracks action timestamps per (user, bucket) and admits a call
// only while fewer than the limit landed inside the trailing window.
type Limiter struct {
	mu    sync.Mutex
	calls map[key][]time.Time
	clock clock.Clock
}

func New(clk clock.Clock) *Limiter {
	if clk == nil {
		clk = clock.System()
	}
	return &Limiter{
		calls: make(map[key][]time.Time),
		clock: clk,
	}
}

// Allow prunes entries older than the window, checks the remaining count
// against the limit, and records the call if admitted. The whole
// read-prune-check-append runs as one critical section so two concurrent
// calls cannot both claim the last slot.
func (l *Limiter) Allow(userID, bucket string, limitPerMinute int) bool {
	if limitPerMinute <= 0 {
		return false
	}
	now := l.clock.Now()
	cutoff := now.Add(-window)

	l.mu.Lock()
	defer l.mu.Unlock()

	k := key{userID: userID, bucket: bucket}
	recent := l.calls[k][:0]
	for _, ts := range l.calls[k] {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}
	if len(recent) >= limitPerMinute {
		l.calls[k] = recent
		return false
	}
	l.calls[k] = append(recent, now)
	return true
}
