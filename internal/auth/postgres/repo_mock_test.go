// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/auth/postgres"
)

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		mock.Close()
	})
	return mock
}

func TestUserRepository_Create_ErrorMapping(t *testing.T) {
	ctx := context.Background()

	user := &auth.User{
		ID:           ulid.Make(),
		Username:     "testuser",
		Email:        "user@example.com",
		PasswordHash: "hash",
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}

	t.Run("unique violation maps to account-exists", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`INSERT INTO users`).
			WithArgs(user.ID.String(), user.Username, user.Email, user.PasswordHash, user.CreatedAt, user.UpdatedAt).
			WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "users_email_lower_idx"})

		repo := postgres.NewUserRepository(mock)
		err := repo.Create(ctx, user)
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrAccountExists)
		// The conflicting column is not disclosed.
		assert.NotContains(t, err.Error(), "email")
	})

	t.Run("other database errors pass through wrapped", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`INSERT INTO users`).
			WithArgs(user.ID.String(), user.Username, user.Email, user.PasswordHash, user.CreatedAt, user.UpdatedAt).
			WillReturnError(errors.New("connection refused"))

		repo := postgres.NewUserRepository(mock)
		err := repo.Create(ctx, user)
		require.Error(t, err)
		assert.NotErrorIs(t, err, auth.ErrAccountExists)
		assert.Contains(t, err.Error(), "connection refused")
	})
}

func TestUserRepository_GetByEmail_RowCardinality(t *testing.T) {
	ctx := context.Background()
	columns := []string{"id", "username", "email", "password_hash", "created_at", "updated_at"}

	t.Run("zero rows is not found", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery(`SELECT id, username, email, password_hash, created_at, updated_at`).
			WithArgs("nobody@example.com").
			WillReturnRows(pgxmock.NewRows(columns))

		repo := postgres.NewUserRepository(mock)
		user, err := repo.GetByEmail(ctx, "nobody@example.com")
		assert.Nil(t, user)
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("more than one row is treated as not found", func(t *testing.T) {
		now := time.Now().UTC()
		mock := newMockPool(t)
		mock.ExpectQuery(`SELECT id, username, email, password_hash, created_at, updated_at`).
			WithArgs("user@example.com").
			WillReturnRows(pgxmock.NewRows(columns).
				AddRow(ulid.Make().String(), "usera", "user@example.com", "hash", now, now).
				AddRow(ulid.Make().String(), "userb", "user@example.com", "hash", now, now))

		repo := postgres.NewUserRepository(mock)
		user, err := repo.GetByEmail(ctx, "user@example.com")
		assert.Nil(t, user)
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestSessionRepository_UpdateLastSeen_NoRows(t *testing.T) {
	ctx := context.Background()
	id := ulid.Make()
	lastSeen := time.Now().UTC()

	mock := newMockPool(t)
	mock.ExpectExec(`UPDATE sessions SET last_seen_at`).
		WithArgs(id.String(), lastSeen).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	repo := postgres.NewSessionRepository(mock)
	err := repo.UpdateLastSeen(ctx, id, lastSeen)
	assert.ErrorIs(t, err, auth.ErrNotFound)
}

func TestPasswordResetRepository_Replace_Transaction(t *testing.T) {
	ctx := context.Background()

	reset := &auth.PasswordReset{
		ID:        ulid.Make(),
		UserID:    ulid.Make(),
		TokenHash: auth.HashResetToken("secret"),
		ExpiresAt: time.Now().Add(time.Hour).UTC(),
		CreatedAt: time.Now().UTC(),
	}

	t.Run("delete and insert commit together", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM password_resets WHERE user_id`).
			WithArgs(reset.UserID.String()).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))
		mock.ExpectExec(`INSERT INTO password_resets`).
			WithArgs(reset.ID.String(), reset.UserID.String(), reset.TokenHash, reset.ExpiresAt, reset.CreatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectCommit()

		repo := postgres.NewPasswordResetRepository(mock)
		require.NoError(t, repo.Replace(ctx, reset))
	})

	t.Run("insert failure rolls the delete back", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM password_resets WHERE user_id`).
			WithArgs(reset.UserID.String()).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))
		mock.ExpectExec(`INSERT INTO password_resets`).
			WithArgs(reset.ID.String(), reset.UserID.String(), reset.TokenHash, reset.ExpiresAt, reset.CreatedAt).
			WillReturnError(errors.New("disk full"))
		mock.ExpectRollback()

		repo := postgres.NewPasswordResetRepository(mock)
		err := repo.Replace(ctx, reset)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk full")
	})
}
