package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Queries is the record level access used by the ledger. Lookups that match
// nothing return ErrNotFound.
type Queries interface {
	FindUserByID(ctx context.Context, uid int64) (*User, error)
	FindUserByUsername(ctx context.Context, username string) (*User, error)
	CountUsers(ctx context.Context) (int, error)
	CreateUser(ctx context.Context, u User) error
	SaveUser(ctx context.Context, u User) error
	CountReferrals(ctx context.Context, uid int64) (int, error)

	CountDeposits(ctx context.Context, uid int64) (int, error)
	FindOldestDeposit(ctx context.Context, uid int64) (*Deposit, error)
	DeleteDeposit(ctx context.Context, id uuid.UUID) error
	CreateDeposit(ctx context.Context, d Deposit) error
	// FindDepositsByUser returns deposits newest first.
	FindDepositsByUser(ctx context.Context, uid int64) ([]Deposit, error)

	// FindWithdrawsByUserInRange returns withdrawals created in [start, end), oldest first.
	FindWithdrawsByUserInRange(ctx context.Context, uid int64, start, end time.Time) ([]Withdraw, error)
	FindWithdrawsByUser(ctx context.Context, uid int64, desc bool, limit int) ([]Withdraw, error)
	CreateWithdraw(ctx context.Context, w Withdraw) error
}

// Store adds the transaction boundaries to Queries.
type Store interface {
	Queries

	// WithinUser runs fn with the user's aggregate locked. Every write made
	// through q commits together or not at all.
	WithinUser(ctx context.Context, uid int64, fn func(q Queries) error) error

	// RegisterUser inserts u unless the user count reached limit, the uid
	// exists or the username is taken. The checks and the insert are atomic.
	RegisterUser(ctx context.Context, u User, limit int) error
}
