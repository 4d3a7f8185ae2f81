// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

// Metrics receives counters from the auth flows. The observability
// package provides a Prometheus-backed implementation; services default
// to a no-op.
type Metrics interface {
	// LoginAttempt records a login outcome: "success",
	// "invalid_credentials", "rate_limited", "validation_error", or
	// "error".
	LoginAttempt(outcome string)

	// ResetRequested records a forgot-password outcome: "issued",
	// "unknown_email", or "error".
	ResetRequested(outcome string)

	// ResetCompleted records a reset-password outcome: "success",
	// "invalid_token", "password_reuse", or "error".
	ResetCompleted(outcome string)
}

// nopMetrics discards all observations.
type nopMetrics struct{}

func (nopMetrics) LoginAttempt(string)   {}
func (nopMetrics) ResetRequested(string) {}
func (nopMetrics) ResetCompleted(string) {}
