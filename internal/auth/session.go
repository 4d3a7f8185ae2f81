// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Session token configuration.
const (
	SessionTokenBytes = 32 // 32 bytes = 64 hex chars

	// DefaultSessionTTL caps a non-persistent session server-side. The
	// cookie itself ends with the browsing context; this is the backstop.
	DefaultSessionTTL = 24 * time.Hour

	// DefaultRememberTTL is the fixed absolute expiry of a remember-me
	// session.
	DefaultRememberTTL = 30 * 24 * time.Hour
)

// Session proves authentication for subsequent requests. The client
// holds only the opaque plaintext token; the store holds its hash.
type Session struct {
	ID         ulid.ULID
	UserID     ulid.ULID
	TokenHash  string
	Persistent bool // remember-me: fixed long-lived expiry
	ExpiresAt  time.Time
	CreatedAt  time.Time
	LastSeenAt time.Time
}

// NewSession creates a validated Session bound to a user.
func NewSession(userID ulid.ULID, tokenHash string, persistent bool, expiresAt time.Time) (*Session, error) {
	if userID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("SESSION_INVALID_USER").Errorf("user ID cannot be zero")
	}
	if tokenHash == "" {
		return nil, oops.Code("SESSION_INVALID_HASH").Errorf("token hash cannot be empty")
	}
	if expiresAt.IsZero() {
		return nil, oops.Code("SESSION_INVALID_EXPIRY").Errorf("expiry time cannot be zero")
	}

	now := time.Now().UTC()
	return &Session{
		ID:         ulid.Make(),
		UserID:     userID,
		TokenHash:  tokenHash,
		Persistent: persistent,
		ExpiresAt:  expiresAt,
		CreatedAt:  now,
		LastSeenAt: now,
	}, nil
}

// IsExpired returns true if the session has expired.
func (s *Session) IsExpired() bool {
	return s.IsExpiredAt(time.Now())
}

// IsExpiredAt returns true if the session would be expired at the given
// time. Useful for testing with deterministic time values.
func (s *Session) IsExpiredAt(t time.Time) bool {
	return t.After(s.ExpiresAt)
}

// GenerateSessionToken creates a secure random token and its hash.
// Returns (plaintext_token, sha256_hash, error). The plaintext goes to
// the client; only the hash is persisted.
func GenerateSessionToken() (token, hash string, err error) {
	raw := make([]byte, SessionTokenBytes)
	if _, err = rand.Read(raw); err != nil {
		return "", "", oops.Code("SESSION_TOKEN_GENERATE_FAILED").
			With("requested_bytes", SessionTokenBytes).
			Wrap(err)
	}

	token = hex.EncodeToString(raw)
	hash = HashSessionToken(token)

	return token, hash, nil
}

// HashSessionToken computes the SHA-256 hash of a session token for
// storage and lookup.
func HashSessionToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// VerifySessionToken checks a plaintext token against a stored hash in
// constant time.
func VerifySessionToken(token, hash string) bool {
	if token == "" || hash == "" {
		return false
	}
	computed := HashSessionToken(token)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
}

// SessionRepository manages session persistence.
type SessionRepository interface {
	// Create stores a new session.
	Create(ctx context.Context, session *Session) error

	// GetByTokenHash retrieves a session by its token hash.
	GetByTokenHash(ctx context.Context, tokenHash string) (*Session, error)

	// UpdateLastSeen updates the LastSeenAt timestamp for a session.
	UpdateLastSeen(ctx context.Context, id ulid.ULID, lastSeen time.Time) error

	// DeleteByTokenHash removes a session. Deleting an absent session is
	// not an error; logout is idempotent.
	DeleteByTokenHash(ctx context.Context, tokenHash string) error

	// DeleteByUser removes all sessions for a user.
	DeleteByUser(ctx context.Context, userID ulid.ULID) error

	// DeleteExpired removes all expired sessions and returns the count
	// of deleted records.
	DeleteExpired(ctx context.Context) (int64, error)
}
