// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Reset token configuration.
const (
	// ResetTokenBytes is the entropy of a reset token secret.
	ResetTokenBytes = 32

	// DefaultResetTokenTTL is the absolute lifetime of a reset token.
	DefaultResetTokenTTL = time.Hour
)

// PasswordReset is a pending password-reset request. Only the SHA-256
// hash of the secret is stored; the plaintext leaves the process solely
// through the notification channel. Tokens are machine-generated with
// full entropy, so a fast unsalted digest is sufficient here where a
// user-chosen password would need a slow salted hash.
type PasswordReset struct {
	ID        ulid.ULID
	UserID    ulid.ULID
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// NewPasswordReset creates a validated PasswordReset.
func NewPasswordReset(userID ulid.ULID, tokenHash string, expiresAt time.Time) (*PasswordReset, error) {
	if userID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("RESET_INVALID_USER").Errorf("user ID cannot be zero")
	}
	if tokenHash == "" {
		return nil, oops.Code("RESET_INVALID_HASH").Errorf("token hash cannot be empty")
	}
	if expiresAt.IsZero() {
		return nil, oops.Code("RESET_INVALID_EXPIRY").Errorf("expiry time cannot be zero")
	}

	return &PasswordReset{
		ID:        ulid.Make(),
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt.UTC(),
		CreatedAt: time.Now().UTC(),
	}, nil
}

// IsExpiredAt returns true if the reset would be expired at the given time.
func (r *PasswordReset) IsExpiredAt(t time.Time) bool {
	return t.After(r.ExpiresAt)
}

// GenerateResetToken creates a URL-safe random secret and its hash.
// Returns (plaintext_token, sha256_hash, error). The plaintext is never
// persisted.
func GenerateResetToken() (token, hash string, err error) {
	raw := make([]byte, ResetTokenBytes)
	if _, err = rand.Read(raw); err != nil {
		return "", "", oops.Code("RESET_TOKEN_GENERATE_FAILED").Wrap(err)
	}

	token = base64.RawURLEncoding.EncodeToString(raw)
	hash = HashResetToken(token)

	return token, hash, nil
}

// HashResetToken computes the SHA-256 hash of a reset token.
func HashResetToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// VerifyResetToken checks a plaintext token against a stored hash in
// constant time over the digests.
func VerifyResetToken(token, hash string) bool {
	if token == "" || hash == "" {
		return false
	}
	computed := HashResetToken(token)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
}

// PasswordResetRepository manages reset-token persistence.
type PasswordResetRepository interface {
	// Replace atomically removes any existing reset rows for the owning
	// user and inserts the new one, in a single transaction. At most one
	// live token per user survives.
	Replace(ctx context.Context, reset *PasswordReset) error

	// ListLive retrieves every reset row whose expiry is after now.
	// Redemption scans this list with constant-time comparison; there is
	// deliberately no lookup by token value, because only one-way hashes
	// are stored.
	ListLive(ctx context.Context, now time.Time) ([]*PasswordReset, error)

	// DeleteByUser removes all reset rows for a user. It participates in
	// an active transaction when called under Transactor.InTransaction.
	DeleteByUser(ctx context.Context, userID ulid.ULID) error

	// DeleteExpired removes all expired reset rows and returns the count.
	DeleteExpired(ctx context.Context) (int64, error)
}
