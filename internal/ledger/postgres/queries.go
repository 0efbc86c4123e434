package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/growbot/internal/ledger"
)

var (
	userColumns     = []string{"uid", "username", "balance", "referral_balance", "referred_by", "status", "registered_at", "last_check_in"}
	depositColumns  = []string{"id", "uid", "amount", "status", "is_reactivation", "created_at"}
	withdrawColumns = []string{"id", "uid", "amount", "upi_id", "payee_name", "status", "created_at"}
)

// queries runs against either the pool or an open transaction.
type queries struct {
	ext sqlx.ExtContext
}

func (q queries) get(ctx context.Context, dest any, b squirrel.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return mapNotFound(sqlx.GetContext(ctx, q.ext, dest, query, args...))
}

func (q queries) selectAll(ctx context.Context, dest any, b squirrel.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return sqlx.SelectContext(ctx, q.ext, dest, query, args...)
}

func (q queries) exec(ctx context.Context, b squirrel.Sqlizer) (int64, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}
	res, err := q.ext.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q queries) FindUserByID(ctx context.Context, uid int64) (*ledger.User, error) {
	var u ledger.User
	if err := q.get(ctx, &u, psql.Select(userColumns...).From("users").Where(squirrel.Eq{"uid": uid})); err != nil {
		return nil, err
	}
	return &u, nil
}

func (q queries) FindUserByUsername(ctx context.Context, username string) (*ledger.User, error) {
	var u ledger.User
	if err := q.get(ctx, &u, psql.Select(userColumns...).From("users").Where(squirrel.Eq{"username": username})); err != nil {
		return nil, err
	}
	return &u, nil
}

func (q queries) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := q.get(ctx, &n, psql.Select("COUNT(*)").From("users")); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func (q queries) CreateUser(ctx context.Context, u ledger.User) error {
	_, err := q.exec(ctx, psql.Insert("users").SetMap(map[string]any{
		"uid":              u.UID,
		"username":         u.Username,
		"balance":          u.Balance,
		"referral_balance": u.ReferralBalance,
		"referred_by":      u.ReferredBy,
		"status":           u.Status,
		"registered_at":    u.RegisteredAt,
		"last_check_in":    u.LastCheckIn,
	}))
	if isUniqueViolation(err) {
		return ledger.Refusal(ledger.KindDuplicateIdentity, "unique violation")
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// SaveUser writes the mutable columns. referred_by and registered_at never change.
func (q queries) SaveUser(ctx context.Context, u ledger.User) error {
	n, err := q.exec(ctx, psql.Update("users").SetMap(map[string]any{
		"username":         u.Username,
		"balance":          u.Balance,
		"referral_balance": u.ReferralBalance,
		"status":           u.Status,
		"last_check_in":    u.LastCheckIn,
	}).Where(squirrel.Eq{"uid": u.UID}))
	if isUniqueViolation(err) {
		return ledger.Refusal(ledger.KindDuplicateIdentity, "unique violation")
	}
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if n == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

func (q queries) CountReferrals(ctx context.Context, uid int64) (int, error) {
	var n int
	if err := q.get(ctx, &n, psql.Select("COUNT(*)").From("users").Where(squirrel.Eq{"referred_by": uid})); err != nil {
		return 0, fmt.Errorf("count referrals: %w", err)
	}
	return n, nil
}

func (q queries) CountDeposits(ctx context.Context, uid int64) (int, error) {
	var n int
	if err := q.get(ctx, &n, psql.Select("COUNT(*)").From("deposits").Where(squirrel.Eq{"uid": uid})); err != nil {
		return 0, fmt.Errorf("count deposits: %w", err)
	}
	return n, nil
}

func (q queries) FindOldestDeposit(ctx context.Context, uid int64) (*ledger.Deposit, error) {
	var d ledger.Deposit
	err := q.get(ctx, &d, psql.Select(depositColumns...).From("deposits").
		Where(squirrel.Eq{"uid": uid}).
		OrderBy("created_at ASC").
		Limit(1))
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (q queries) DeleteDeposit(ctx context.Context, id uuid.UUID) error {
	n, err := q.exec(ctx, psql.Delete("deposits").Where(squirrel.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("delete deposit: %w", err)
	}
	if n == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

func (q queries) CreateDeposit(ctx context.Context, d ledger.Deposit) error {
	_, err := q.exec(ctx, psql.Insert("deposits").
		Columns(depositColumns...).
		Values(d.ID, d.UID, d.Amount, d.Status, d.IsReactivation, d.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert deposit: %w", err)
	}
	return nil
}

func (q queries) FindDepositsByUser(ctx context.Context, uid int64) ([]ledger.Deposit, error) {
	var ds []ledger.Deposit
	err := q.selectAll(ctx, &ds, psql.Select(depositColumns...).From("deposits").
		Where(squirrel.Eq{"uid": uid}).
		OrderBy("created_at DESC"))
	if err != nil {
		return nil, fmt.Errorf("select deposits: %w", err)
	}
	return ds, nil
}

func (q queries) FindWithdrawsByUserInRange(ctx context.Context, uid int64, start, end time.Time) ([]ledger.Withdraw, error) {
	var ws []ledger.Withdraw
	err := q.selectAll(ctx, &ws, psql.Select(withdrawColumns...).From("withdraws").
		Where(squirrel.Eq{"uid": uid}).
		Where(squirrel.GtOrEq{"created_at": start}).
		Where(squirrel.Lt{"created_at": end}).
		OrderBy("created_at ASC"))
	if err != nil {
		return nil, fmt.Errorf("select withdraws in range: %w", err)
	}
	return ws, nil
}

func (q queries) FindWithdrawsByUser(ctx context.Context, uid int64, desc bool, limit int) ([]ledger.Withdraw, error) {
	order := "created_at ASC"
	if desc {
		order = "created_at DESC"
	}
	b := psql.Select(withdrawColumns...).From("withdraws").
		Where(squirrel.Eq{"uid": uid}).
		OrderBy(order)
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	var ws []ledger.Withdraw
	if err := q.selectAll(ctx, &ws, b); err != nil {
		return nil, fmt.Errorf("select withdraws: %w", err)
	}
	return ws, nil
}

func (q queries) CreateWithdraw(ctx context.Context, w ledger.Withdraw) error {
	_, err := q.exec(ctx, psql.Insert("withdraws").
		Columns(withdrawColumns...).
		Values(w.ID, w.UID, w.Amount, w.UPIID, w.PayeeName, w.Status, w.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert withdraw: %w", err)
	}
	return nil
}
