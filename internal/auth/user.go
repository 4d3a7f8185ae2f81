// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"context"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Username validation constraints.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 30
)

// usernameRegex matches usernames that:
// - Start with a letter (a-z, A-Z)
// - Contain only letters, numbers, and underscores
var usernameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// User represents a registered account. The password is held only as a
// one-way credential; the plaintext never reaches a User.
type User struct {
	ID           ulid.ULID
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewUser creates a validated User. The email is normalized to lower
// case; uniqueness of email and username is enforced by the store, not
// here.
func NewUser(username, email, passwordHash string) (*User, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code("AUTH_INVALID_USER").Errorf("password hash cannot be empty")
	}

	now := time.Now().UTC()
	return &User{
		ID:           ulid.Make(),
		Username:     username,
		Email:        NormalizeEmail(email),
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// NormalizeEmail lower-cases and trims an email address so that lookups
// and the store's uniqueness constraint are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks the RFC shape of an address. A bare address is
// required; display names ("Alice <a@example.com>") are rejected.
func ValidateEmail(email string) error {
	if email == "" {
		return oops.Code("AUTH_INVALID_EMAIL").Wrapf(ErrValidation, "email cannot be empty")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return oops.Code("AUTH_INVALID_EMAIL").With("email", email).Wrapf(ErrValidation, "malformed email address")
	}
	return nil
}

// ValidateUsername validates a username against rules.
// Username requirements:
// - Length: MinUsernameLength to MaxUsernameLength characters
// - Must start with a letter
// - Can contain only letters (a-z, A-Z), numbers (0-9), and underscores (_)
func ValidateUsername(username string) error {
	if username == "" {
		return oops.Code("AUTH_INVALID_USERNAME").Wrapf(ErrValidation, "username cannot be empty")
	}
	if len(username) < MinUsernameLength {
		return oops.Code("AUTH_INVALID_USERNAME").
			With("min", MinUsernameLength).
			Wrapf(ErrValidation, "username must be at least %d characters", MinUsernameLength)
	}
	if len(username) > MaxUsernameLength {
		return oops.Code("AUTH_INVALID_USERNAME").
			With("max", MaxUsernameLength).
			Wrapf(ErrValidation, "username must be at most %d characters", MaxUsernameLength)
	}
	if !usernameRegex.MatchString(username) {
		return oops.Code("AUTH_INVALID_USERNAME").
			Wrapf(ErrValidation, "username must start with a letter and contain only letters, numbers, and underscores")
	}
	return nil
}

// UserRepository manages user persistence.
type UserRepository interface {
	// Create stores a new user. A uniqueness conflict on email or
	// username returns ErrAccountExists; the conflicting column is not
	// disclosed.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByEmail retrieves a user by email (case-insensitive). Anything
	// other than exactly one matching row returns ErrNotFound.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// UpdatePassword replaces only the password hash for a user. It
	// participates in an active transaction when called under
	// Transactor.InTransaction.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error
}

// Transactor runs a function inside a single durable transaction.
// Repository calls made with the context passed to fn join that
// transaction; any error rolls the whole unit back.
type Transactor interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
