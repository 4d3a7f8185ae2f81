// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// AuthService provides login, registration, and session operations.
type AuthService struct {
	users    UserRepository
	sessions SessionRepository
	hasher   PasswordHasher
	limiter  *Limiter
	logger   *slog.Logger
	metrics  Metrics

	sessionTTL  time.Duration
	rememberTTL time.Duration

	// dummyCredential is verified against when a login email has no
	// account, so the miss path burns the same hashing work as a real
	// verification. The plaintext behind it is random per process and
	// discarded at construction.
	dummyCredential string
}

// AuthOption configures an AuthService.
type AuthOption func(*AuthService)

// WithAuthLogger sets the service logger.
func WithAuthLogger(logger *slog.Logger) AuthOption {
	return func(s *AuthService) { s.logger = logger }
}

// WithAuthMetrics sets the metrics sink.
func WithAuthMetrics(m Metrics) AuthOption {
	return func(s *AuthService) { s.metrics = m }
}

// WithSessionTTLs overrides the session lifetimes. Non-positive values
// keep the defaults.
func WithSessionTTLs(session, remember time.Duration) AuthOption {
	return func(s *AuthService) {
		if session > 0 {
			s.sessionTTL = session
		}
		if remember > 0 {
			s.rememberTTL = remember
		}
	}
}

// NewAuthService creates an AuthService. All four dependencies are
// required.
func NewAuthService(users UserRepository, sessions SessionRepository, hasher PasswordHasher, limiter *Limiter, opts ...AuthOption) (*AuthService, error) {
	if users == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("users repository is required")
	}
	if sessions == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("sessions repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("password hasher is required")
	}
	if limiter == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("rate limiter is required")
	}

	dummy, err := makeDummyCredential(hasher)
	if err != nil {
		return nil, err
	}

	s := &AuthService{
		users:           users,
		sessions:        sessions,
		hasher:          hasher,
		limiter:         limiter,
		logger:          slog.Default(),
		metrics:         nopMetrics{},
		sessionTTL:      DefaultSessionTTL,
		rememberTTL:     DefaultRememberTTL,
		dummyCredential: dummy,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("logger cannot be nil")
	}
	return s, nil
}

// makeDummyCredential hashes a random throwaway secret so the produced
// credential has exactly the configured cost but can never match input.
func makeDummyCredential(hasher PasswordHasher) (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", oops.Code("AUTH_SERVICE_INVALID").Wrap(err)
	}
	dummy, err := hasher.Hash(hex.EncodeToString(raw))
	if err != nil {
		return "", oops.Code("AUTH_SERVICE_INVALID").With("operation", "hash dummy credential").Wrap(err)
	}
	return dummy, nil
}

// Login authenticates a user and issues a session. The identity is the
// client's network identity (remote address) used for rate limiting.
//
// Validation failures do not consume the rate-limit budget; the limiter
// is consulted before any store access; unknown email and wrong password
// are indistinguishable to the caller in both timing and error value.
func (s *AuthService) Login(ctx context.Context, email, password string, remember bool, identity string) (*Session, string, error) {
	now := time.Now()

	if email == "" || password == "" {
		s.metrics.LoginAttempt("validation_error")
		return nil, "", oops.Code("AUTH_VALIDATION").Wrapf(ErrValidation, "email and password are required")
	}
	if err := ValidateEmail(email); err != nil {
		s.metrics.LoginAttempt("validation_error")
		return nil, "", err
	}

	if s.limiter.Blocked(identity, now) {
		s.metrics.LoginAttempt("rate_limited")
		s.logger.Warn("login rate limited", "identity", identity)
		return nil, "", oops.Code("AUTH_RATE_LIMITED").Wrap(ErrRateLimited)
	}

	user, lookupErr := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if lookupErr != nil {
		if errors.Is(lookupErr, ErrNotFound) {
			// Burn the same hashing work as a real verification so the
			// miss is not observable through response time.
			s.hasher.Verify(password, s.dummyCredential)
			return nil, "", s.failLogin(identity, now)
		}
		s.metrics.LoginAttempt("error")
		return nil, "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "get user by email").
			Wrap(lookupErr)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, "", s.failLogin(identity, now)
	}

	s.limiter.Clear(identity)

	// Opportunistic upgrade when the stored credential predates a cost
	// increase. Login succeeds regardless of the outcome.
	if s.hasher.NeedsRehash(user.PasswordHash) {
		if newHash, hashErr := s.hasher.Hash(password); hashErr == nil {
			_ = s.users.UpdatePassword(ctx, user.ID, newHash) //nolint:errcheck // best effort
		}
	}

	session, token, err := s.issueSession(ctx, user.ID, remember)
	if err != nil {
		s.metrics.LoginAttempt("error")
		return nil, "", err
	}

	s.metrics.LoginAttempt("success")
	s.logger.Info("login succeeded", "user_id", user.ID.String(), "persistent", remember)
	return session, token, nil
}

// failLogin records a counted failure and returns the one generic
// credentials error. Both the unknown-email and wrong-password paths end
// here, so their results are byte-identical.
func (s *AuthService) failLogin(identity string, now time.Time) error {
	s.limiter.RecordFailure(identity, now)
	s.metrics.LoginAttempt("invalid_credentials")
	s.logger.Info("login failed", "identity", identity)
	return oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)
}

// Register creates an account and signs the new user in. Uniqueness of
// email and username is enforced by the store in the insert itself;
// there is no check-then-insert race to exploit.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*Session, string, error) {
	if username == "" || email == "" || password == "" {
		return nil, "", oops.Code("AUTH_VALIDATION").Wrapf(ErrValidation, "username, email, and password are required")
	}
	if err := ValidateUsername(username); err != nil {
		return nil, "", err
	}
	if err := ValidateEmail(email); err != nil {
		return nil, "", err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, "", oops.Code("AUTH_REGISTER_FAILED").With("operation", "hash password").Wrap(err)
	}

	user, err := NewUser(username, email, hash)
	if err != nil {
		return nil, "", err
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrAccountExists) {
			s.logger.Info("registration conflict", "username", username)
			return nil, "", oops.Code("AUTH_ACCOUNT_EXISTS").Wrap(ErrAccountExists)
		}
		return nil, "", oops.Code("AUTH_REGISTER_FAILED").With("operation", "insert user").Wrap(err)
	}

	session, token, err := s.issueSession(ctx, user.ID, false)
	if err != nil {
		return nil, "", err
	}

	s.logger.Info("user registered", "user_id", user.ID.String())
	return session, token, nil
}

// Logout invalidates a session. It is idempotent: logging out an
// already-invalid session succeeds.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.sessions.DeleteByTokenHash(ctx, HashSessionToken(token)); err != nil {
		return oops.Code("AUTH_LOGOUT_FAILED").With("operation", "delete session").Wrap(err)
	}
	return nil
}

// ValidateSession resolves a session token to its live session and bumps
// the last-seen timestamp. Unknown and expired tokens are
// indistinguishable.
func (s *AuthService) ValidateSession(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, oops.Code("SESSION_INVALID").Wrap(ErrNotFound)
	}

	session, err := s.sessions.GetByTokenHash(ctx, HashSessionToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("SESSION_INVALID").Wrap(ErrNotFound)
		}
		return nil, oops.Code("SESSION_VALIDATE_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}

	if session.IsExpired() {
		return nil, oops.Code("SESSION_INVALID").Wrap(ErrNotFound)
	}

	// Best effort; validation succeeds regardless.
	_ = s.sessions.UpdateLastSeen(ctx, session.ID, time.Now().UTC()) //nolint:errcheck

	return session, nil
}

// CurrentUser resolves a session token to the owning user record.
func (s *AuthService) CurrentUser(ctx context.Context, token string) (*User, error) {
	session, err := s.ValidateSession(ctx, token)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("SESSION_INVALID").Wrap(ErrNotFound)
		}
		return nil, oops.Code("AUTH_CURRENT_USER_FAILED").
			With("operation", "get user by id").
			Wrap(err)
	}
	return user, nil
}

// issueSession generates a token, persists its hash, and returns the
// session with the plaintext for the caller to deliver.
func (s *AuthService) issueSession(ctx context.Context, userID ulid.ULID, remember bool) (*Session, string, error) {
	token, hash, err := GenerateSessionToken()
	if err != nil {
		return nil, "", err
	}

	ttl := s.sessionTTL
	if remember {
		ttl = s.rememberTTL
	}

	session, err := NewSession(userID, hash, remember, time.Now().UTC().Add(ttl))
	if err != nil {
		return nil, "", err
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, "", oops.Code("SESSION_CREATE_FAILED").With("operation", "persist session").Wrap(err)
	}

	return session, token, nil
}
