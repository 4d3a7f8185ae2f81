// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Notifier delivers a reset token to a user out-of-band. Delivery
// failure surfaces to the forgot-password caller; it is never silently
// swallowed.
type Notifier interface {
	SendPasswordReset(ctx context.Context, email, token string) error
}

// PasswordResetService handles the reset-token lifecycle: issue, redeem,
// and the password change itself.
type PasswordResetService struct {
	users    UserRepository
	resets   PasswordResetRepository
	hasher   PasswordHasher
	tx       Transactor
	notifier Notifier
	logger   *slog.Logger
	metrics  Metrics
	tokenTTL time.Duration
}

// ResetOption configures a PasswordResetService.
type ResetOption func(*PasswordResetService)

// WithResetLogger sets the service logger.
func WithResetLogger(logger *slog.Logger) ResetOption {
	return func(s *PasswordResetService) { s.logger = logger }
}

// WithResetMetrics sets the metrics sink.
func WithResetMetrics(m Metrics) ResetOption {
	return func(s *PasswordResetService) { s.metrics = m }
}

// WithResetTokenTTL overrides the token lifetime. Non-positive values
// keep the default.
func WithResetTokenTTL(ttl time.Duration) ResetOption {
	return func(s *PasswordResetService) {
		if ttl > 0 {
			s.tokenTTL = ttl
		}
	}
}

// NewPasswordResetService creates a PasswordResetService. All five
// dependencies are required.
func NewPasswordResetService(users UserRepository, resets PasswordResetRepository, hasher PasswordHasher, tx Transactor, notifier Notifier, opts ...ResetOption) (*PasswordResetService, error) {
	if users == nil {
		return nil, oops.Code("RESET_SERVICE_INVALID").Errorf("users repository is required")
	}
	if resets == nil {
		return nil, oops.Code("RESET_SERVICE_INVALID").Errorf("resets repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("RESET_SERVICE_INVALID").Errorf("password hasher is required")
	}
	if tx == nil {
		return nil, oops.Code("RESET_SERVICE_INVALID").Errorf("transactor is required")
	}
	if notifier == nil {
		return nil, oops.Code("RESET_SERVICE_INVALID").Errorf("notifier is required")
	}

	s := &PasswordResetService{
		users:    users,
		resets:   resets,
		hasher:   hasher,
		tx:       tx,
		notifier: notifier,
		logger:   slog.Default(),
		metrics:  nopMetrics{},
		tokenTTL: DefaultResetTokenTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		return nil, oops.Code("RESET_SERVICE_INVALID").Errorf("logger cannot be nil")
	}
	return s, nil
}

// RequestReset issues a reset token for the account behind email and
// hands it to the notifier. The outward result is identical whether or
// not the account exists: the token travels only through the
// notification channel, never through the response.
//
// Issuing supersedes any earlier token for the user; delete-old and
// insert-new happen in one transaction, so a crash cannot leave zero or
// two live tokens.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) error {
	if err := ValidateEmail(email); err != nil {
		return err
	}

	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.metrics.ResetRequested("unknown_email")
			s.logger.Info("reset requested for unknown email")
			return nil
		}
		s.metrics.ResetRequested("error")
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	token, hash, err := GenerateResetToken()
	if err != nil {
		s.metrics.ResetRequested("error")
		return oops.Code("RESET_REQUEST_FAILED").With("operation", "generate token").Wrap(err)
	}

	reset, err := NewPasswordReset(user.ID, hash, time.Now().UTC().Add(s.tokenTTL))
	if err != nil {
		s.metrics.ResetRequested("error")
		return oops.Code("RESET_REQUEST_FAILED").With("operation", "build reset").Wrap(err)
	}

	if err := s.resets.Replace(ctx, reset); err != nil {
		s.metrics.ResetRequested("error")
		return oops.Code("RESET_REQUEST_FAILED").With("operation", "replace reset").Wrap(err)
	}

	if err := s.notifier.SendPasswordReset(ctx, user.Email, token); err != nil {
		s.metrics.ResetRequested("error")
		return oops.Code("RESET_NOTIFY_FAILED").
			With("operation", "send reset email").
			With("user_id", user.ID.String()).
			Wrap(err)
	}

	s.metrics.ResetRequested("issued")
	s.logger.Info("reset token issued", "user_id", user.ID.String())
	return nil
}

// Redeem resolves a plaintext token to the owning user. Every live
// token row is checked with a constant-time digest comparison; there is
// no lookup by token value because only one-way hashes are stored, and
// the O(live tokens) scan is an accepted cost of that property. Unknown,
// expired, and malformed tokens produce the same error.
func (s *PasswordResetService) Redeem(ctx context.Context, token string) (ulid.ULID, error) {
	if token == "" {
		return ulid.ULID{}, oops.Code("RESET_TOKEN_INVALID").Wrap(ErrInvalidToken)
	}

	live, err := s.resets.ListLive(ctx, time.Now().UTC())
	if err != nil {
		return ulid.ULID{}, oops.Code("RESET_REDEEM_FAILED").
			With("operation", "list live resets").
			Wrap(err)
	}

	for _, reset := range live {
		if VerifyResetToken(token, reset.TokenHash) {
			return reset.UserID, nil
		}
	}

	return ulid.ULID{}, oops.Code("RESET_TOKEN_INVALID").Wrap(ErrInvalidToken)
}

// ResetPassword redeems a token and sets a new password. Setting the
// password already on record fails and keeps the token; a successful
// change and the deletion of the user's token rows commit as one
// transaction.
func (s *PasswordResetService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if newPassword == "" {
		return oops.Code("AUTH_VALIDATION").Wrapf(ErrValidation, "new password is required")
	}

	userID, err := s.Redeem(ctx, token)
	if err != nil {
		s.metrics.ResetCompleted("invalid_token")
		return err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		s.metrics.ResetCompleted("error")
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "get user by id").
			Wrap(err)
	}

	if s.hasher.Verify(newPassword, user.PasswordHash) {
		s.metrics.ResetCompleted("password_reuse")
		return oops.Code("RESET_PASSWORD_REUSE").Wrap(ErrPasswordReuse)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		s.metrics.ResetCompleted("error")
		return oops.Code("RESET_PASSWORD_FAILED").With("operation", "hash password").Wrap(err)
	}

	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
			return oops.Code("RESET_PASSWORD_FAILED").
				With("operation", "update password").
				Wrap(err)
		}
		if err := s.resets.DeleteByUser(ctx, user.ID); err != nil {
			return oops.Code("RESET_PASSWORD_FAILED").
				With("operation", "delete resets").
				Wrap(err)
		}
		return nil
	})
	if err != nil {
		s.metrics.ResetCompleted("error")
		return err
	}

	s.metrics.ResetCompleted("success")
	s.logger.Info("password reset completed", "user_id", user.ID.String())
	return nil
}
