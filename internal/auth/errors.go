// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import "errors"

// Error sentinels surfaced by the auth flows. Callers match these with
// errors.Is; the wrapping oops errors carry codes and context for logs.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation is returned for malformed or missing input. It is
	// user-correctable and never counts toward rate limiting.
	ErrValidation = errors.New("invalid input")

	// ErrInvalidCredentials is returned for every failed login, whether
	// the email is unknown or the password is wrong. The message is
	// deliberately identical for both causes.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrRateLimited is returned when a client identity has exceeded the
	// failed-attempt budget inside the sliding window.
	ErrRateLimited = errors.New("too many failed attempts")

	// ErrAccountExists is returned on a registration uniqueness conflict.
	// It does not disclose whether the email or the username collided.
	ErrAccountExists = errors.New("account already exists")

	// ErrInvalidToken is returned for every failed reset-token redemption:
	// unknown, expired, and malformed tokens all produce this error.
	ErrInvalidToken = errors.New("invalid or expired token")

	// ErrPasswordReuse is returned when a password reset submits the
	// password already on record.
	ErrPasswordReuse = errors.New("new password must differ from the current password")
)
