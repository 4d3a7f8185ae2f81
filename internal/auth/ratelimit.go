// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"sync"
	"time"
)

// Rate limiting defaults.
const (
	// DefaultRateLimit is the number of failures inside the window that
	// blocks further attempts.
	DefaultRateLimit = 5

	// DefaultBlockTime is the sliding lookback window for counted failures.
	DefaultBlockTime = 300 * time.Second
)

// Limiter tracks failed login attempts per client identity inside a
// sliding window. It is process-local state: in a multi-node deployment
// each node enforces the limit independently, so the global invariant
// requires a shared store instead. The limiter is checked before any
// database access and must never be the sole defense against
// distributed, multi-identity attacks.
type Limiter struct {
	mu       sync.Mutex
	limit    int
	window   time.Duration
	failures map[string][]time.Time
}

// NewLimiter creates a Limiter. Non-positive limit or window fall back
// to the defaults.
func NewLimiter(limit int, window time.Duration) *Limiter {
	if limit <= 0 {
		limit = DefaultRateLimit
	}
	if window <= 0 {
		window = DefaultBlockTime
	}
	return &Limiter{
		limit:    limit,
		window:   window,
		failures: make(map[string][]time.Time),
	}
}

// RecordFailure appends a failure timestamp for the identity, pruning
// entries that have slid out of the window.
func (l *Limiter) RecordFailure(identity string, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	recent := l.prune(identity, now)
	l.failures[identity] = append(recent, now)
}

// Blocked reports whether the identity has reached the failure limit
// inside the window. Pruning happens on every call so stale identities
// never accumulate without a background sweep.
func (l *Limiter) Blocked(identity string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	recent := l.prune(identity, now)
	if len(recent) == 0 {
		delete(l.failures, identity)
		return false
	}
	l.failures[identity] = recent
	return len(recent) >= l.limit
}

// Clear removes all recorded failures for the identity. Called on
// successful authentication.
func (l *Limiter) Clear(identity string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.failures, identity)
}

// prune returns the identity's failures still inside the window ending
// at now. The caller must hold l.mu.
func (l *Limiter) prune(identity string, now time.Time) []time.Time {
	all := l.failures[identity]
	cutoff := now.Add(-l.window)

	// Timestamps are appended in order; find the first still-counted one.
	i := 0
	for i < len(all) && !all[i].After(cutoff) {
		i++
	}
	return all[i:]
}
