// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// DefaultSweepInterval is how often expired rows are removed.
const DefaultSweepInterval = time.Hour

// Sweeper periodically deletes expired sessions and reset tokens.
// Expired rows are already excluded from every lookup; the sweep only
// reclaims storage.
type Sweeper struct {
	sessions SessionRepository
	resets   PasswordResetRepository
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper creates a Sweeper. A non-positive interval falls back to
// the default.
func NewSweeper(sessions SessionRepository, resets PasswordResetRepository, interval time.Duration, logger *slog.Logger) (*Sweeper, error) {
	if sessions == nil {
		return nil, oops.Code("SWEEPER_INVALID").Errorf("sessions repository is required")
	}
	if resets == nil {
		return nil, oops.Code("SWEEPER_INVALID").Errorf("resets repository is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{sessions: sessions, resets: resets, interval: interval, logger: logger}, nil
}

// Run sweeps on the configured interval until ctx is canceled. The first
// sweep happens immediately.
func (s *Sweeper) Run(ctx context.Context) {
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep removes expired rows once. Failures are logged, not fatal; the
// next tick retries.
func (s *Sweeper) sweep(ctx context.Context) {
	if n, err := s.sessions.DeleteExpired(ctx); err != nil {
		s.logger.Error("session sweep failed", "error", err)
	} else if n > 0 {
		s.logger.Debug("expired sessions removed", "count", n)
	}

	if n, err := s.resets.DeleteExpired(ctx); err != nil {
		s.logger.Error("reset sweep failed", "error", err)
	} else if n > 0 {
		s.logger.Debug("expired reset tokens removed", "count", n)
	}
}
