// Package postgres implements ledger.Store on PostgreSQL with sqlx and squirrel.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	pkgerrors "github.com/pkg/errors"

	"github.com/m3rciful/growbot/internal/ledger"
)

// registrationLockKey is the advisory lock serialising capped registrations.
const registrationLockKey = 0x67726f77

const uniqueViolation = "23505"

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// Store is a ledger.Store backed by the users, deposits and withdraws tables.
type Store struct {
	queries
	db *sqlx.DB
}

var _ ledger.Store = (*Store)(nil)

// New wraps an open connection pool.
func New(db *sqlx.DB) *Store {
	return &Store{queries: queries{ext: db}, db: db}
}

// Transaction runs t inside a database transaction, rolling back on error.
func (s *Store) Transaction(ctx context.Context, t func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := t(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return pkgerrors.Wrapf(err, "rollback error: %v", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// WithinUser locks the user row for the duration of fn. A missing row is not
// an error here; fn decides how to treat an unknown user.
func (s *Store) WithinUser(ctx context.Context, uid int64, fn func(q ledger.Queries) error) error {
	return s.Transaction(ctx, func(tx *sqlx.Tx) error {
		query, args, err := psql.Select("uid").From("users").
			Where(squirrel.Eq{"uid": uid}).
			Suffix("FOR UPDATE").
			ToSql()
		if err != nil {
			return fmt.Errorf("build lock query: %w", err)
		}
		var locked int64
		if err := tx.GetContext(ctx, &locked, query, args...); err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("lock user %d: %w", uid, err)
		}
		return fn(queries{ext: tx})
	})
}

// RegisterUser takes a transaction scoped advisory lock so concurrent
// registrations cannot overshoot limit.
func (s *Store) RegisterUser(ctx context.Context, u ledger.User, limit int) error {
	return s.Transaction(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", registrationLockKey); err != nil {
			return fmt.Errorf("registration lock: %w", err)
		}
		q := queries{ext: tx}
		n, err := q.CountUsers(ctx)
		if err != nil {
			return err
		}
		if n >= limit {
			return ledger.Refusal(ledger.KindCapacityExceeded, "")
		}
		if _, err := q.FindUserByID(ctx, u.UID); err == nil {
			return ledger.Refusal(ledger.KindDuplicateIdentity, "uid already registered")
		} else if !errors.Is(err, ledger.ErrNotFound) {
			return err
		}
		if _, err := q.FindUserByUsername(ctx, u.Username); err == nil {
			return ledger.Refusal(ledger.KindDuplicateIdentity, "username taken")
		} else if !errors.Is(err, ledger.ErrNotFound) {
			return err
		}
		return q.CreateUser(ctx, u)
	})
}

// Close releases the pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}
