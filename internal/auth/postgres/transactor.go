// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package postgres provides PostgreSQL implementations of the auth
// repositories.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/gatehouse/gatehouse/internal/auth"
)

// DB is the subset of pgxpool.Pool the repositories use. pgxmock
// satisfies it, which keeps the repositories unit-testable without a
// database.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// execer is the query surface shared by DB and pgx.Tx, so repository
// methods can run inside or outside a transaction.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// txKey marks an active transaction stored in context by Transactor.
type txKey struct{}

// execerFromCtx returns the active transaction from ctx if present,
// falling back to the pool otherwise.
func execerFromCtx(ctx context.Context, db DB) execer {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return db
}

// Transactor implements auth.Transactor. It stores the active pgx.Tx in
// context so that transaction-aware repository methods participate in
// the same transaction.
type Transactor struct {
	db DB
}

// NewTransactor creates a Transactor backed by the given pool.
func NewTransactor(db DB) *Transactor {
	return &Transactor{db: db}
}

// InTransaction begins a transaction, stores it in context, and calls
// fn. If fn returns nil the transaction commits; otherwise it rolls
// back.
func (t *Transactor) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := t.db.Begin(ctx)
	if err != nil {
		return oops.Code("TX_BEGIN_FAILED").Wrap(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	txCtx := context.WithValue(ctx, txKey{}, tx)
	if err := fn(txCtx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return oops.Code("TX_COMMIT_FAILED").Wrap(err)
	}
	return nil
}

// Compile-time interface check.
var _ auth.Transactor = (*Transactor)(nil)
