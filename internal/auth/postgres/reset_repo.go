// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/gatehouse/gatehouse/internal/auth"
)

// PasswordResetRepository implements auth.PasswordResetRepository using
// PostgreSQL.
type PasswordResetRepository struct {
	db DB
}

// NewPasswordResetRepository creates a new PasswordResetRepository.
func NewPasswordResetRepository(db DB) *PasswordResetRepository {
	return &PasswordResetRepository{db: db}
}

// Replace removes any existing reset rows for the owning user and
// inserts the new one inside a single transaction. Concurrent calls for
// the same user serialize on the row deletes, so exactly one token
// survives.
func (r *PasswordResetRepository) Replace(ctx context.Context, reset *auth.PasswordReset) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return oops.Code("RESET_REPLACE_FAILED").
			With("operation", "begin transaction").
			Wrap(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if _, err := tx.Exec(ctx, `
		DELETE FROM password_resets WHERE user_id = $1
	`, reset.UserID.String()); err != nil {
		return oops.Code("RESET_REPLACE_FAILED").
			With("operation", "delete previous resets").
			With("user_id", reset.UserID.String()).
			Wrap(err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO password_resets (id, user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, reset.ID.String(), reset.UserID.String(), reset.TokenHash, reset.ExpiresAt, reset.CreatedAt); err != nil {
		return oops.Code("RESET_REPLACE_FAILED").
			With("operation", "insert reset").
			With("user_id", reset.UserID.String()).
			Wrap(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return oops.Code("RESET_REPLACE_FAILED").
			With("operation", "commit").
			Wrap(err)
	}
	return nil
}

// ListLive retrieves every reset row whose expiry is after now.
func (r *PasswordResetRepository) ListLive(ctx context.Context, now time.Time) ([]*auth.PasswordReset, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, token_hash, expires_at, created_at
		FROM password_resets
		WHERE expires_at > $1
	`, now)
	if err != nil {
		return nil, oops.Code("RESET_LIST_FAILED").
			With("operation", "list live resets").
			Wrap(err)
	}
	defer rows.Close()

	var resets []*auth.PasswordReset
	for rows.Next() {
		reset, err := scanReset(rows)
		if err != nil {
			return nil, err
		}
		resets = append(resets, reset)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("RESET_LIST_FAILED").
			With("operation", "iterate resets").
			Wrap(err)
	}
	return resets, nil
}

// DeleteByUser removes all reset rows for a user. Runs inside the active
// transaction when one is present in ctx. No error if nothing matched;
// an absent token is a valid state.
func (r *PasswordResetRepository) DeleteByUser(ctx context.Context, userID ulid.ULID) error {
	_, err := execerFromCtx(ctx, r.db).Exec(ctx, `
		DELETE FROM password_resets WHERE user_id = $1
	`, userID.String())
	if err != nil {
		return oops.Code("RESET_DELETE_BY_USER_FAILED").
			With("operation", "delete resets by user").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return nil
}

// DeleteExpired removes all expired reset rows and returns the count.
func (r *PasswordResetRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.Exec(ctx, `
		DELETE FROM password_resets WHERE expires_at < $1
	`, time.Now().UTC())
	if err != nil {
		return 0, oops.Code("RESET_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired resets").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// scanReset scans a single row into a PasswordReset.
func scanReset(row pgx.Row) (*auth.PasswordReset, error) {
	var (
		idStr     string
		userIDStr string
		tokenHash string
		expiresAt time.Time
		createdAt time.Time
	)

	err := row.Scan(&idStr, &userIDStr, &tokenHash, &expiresAt, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // callers wrap with context-specific info
		}
		return nil, oops.Code("RESET_SCAN_FAILED").
			With("operation", "scan reset").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("RESET_INVALID_ID").
			With("operation", "parse reset id").
			With("id", idStr).
			Wrap(err)
	}
	userID, err := ulid.Parse(userIDStr)
	if err != nil {
		return nil, oops.Code("RESET_INVALID_USER_ID").
			With("operation", "parse user id").
			With("user_id", userIDStr).
			Wrap(err)
	}

	return &auth.PasswordReset{
		ID:        id,
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		CreatedAt: createdAt,
	}, nil
}

// Compile-time interface check.
var _ auth.PasswordResetRepository = (*PasswordResetRepository)(nil)
