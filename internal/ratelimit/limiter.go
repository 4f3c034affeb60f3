package ratelimit

import (
	"sync"
	"time"
)

// DefaultWindow is the trailing window applied when callers pass a
// non-positive duration.
const DefaultWindow = time.Hour

// Limiter is a per-key sliding-window admission counter. A key is an
// endpoint id or a client IP; each limiter instance tracks one scope.
//
// Admission is check-then-record under one lock: a denied call records
// nothing, an allowed call records its timestamp. Stale timestamps are
// purged lazily on the next check for that key.
type Limiter struct {
	mu    sync.Mutex
	calls map[string][]time.Time
	now   func() time.Time
}

// New creates an empty limiter.
func New() *Limiter {
	return &Limiter{
		calls: make(map[string][]time.Time),
		now:   time.Now,
	}
}

// Allow reports whether key may make another call, recording the call
// when admitted. maxCalls <= 0 always denies; window <= 0 selects
// DefaultWindow.
func (l *Limiter) Allow(key string, maxCalls int, window time.Duration) bool {
	if window <= 0 {
		window = DefaultWindow
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	kept := l.purge(key, now.Add(-window))
	if len(kept) >= maxCalls {
		return false
	}
	l.calls[key] = append(kept, now)
	return true
}

// Remaining returns how many calls key has left in the current window.
// It purges stale entries but records nothing.
func (l *Limiter) Remaining(key string, maxCalls int, window time.Duration) int {
	if window <= 0 {
		window = DefaultWindow
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.purge(key, l.now().Add(-window))
	if remaining := maxCalls - len(kept); remaining > 0 {
		return remaining
	}
	return 0
}

// purge drops timestamps at or before cutoff for key and returns the
// surviving slice. Caller holds the lock. Empty keys are deleted so
// one-shot keys do not accumulate.
func (l *Limiter) purge(key string, cutoff time.Time) []time.Time {
	ts := l.calls[key]
	kept := ts[:0]
	for _, t := range ts {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		delete(l.calls, key)
		return nil
	}
	l.calls[key] = kept
	return kept
}
