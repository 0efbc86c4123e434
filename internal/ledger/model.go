// Package ledger holds the account records of the bot together with the
// eligibility rules that gate every monetary action.
package ledger

import (
	"time"

	"github.com/google/uuid"
)

// Status describes whether a user's plan is currently paid up.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// RecordStatus is the review state of a deposit or withdrawal.
// Transitions happen outside the bot.
type RecordStatus string

const (
	RecordPending  RecordStatus = "pending"
	RecordApproved RecordStatus = "approved"
	RecordRejected RecordStatus = "rejected"
)

// User is the root aggregate. UID is the platform user id.
type User struct {
	UID             int64      `db:"uid"`
	Username        string     `db:"username"`
	Balance         int64      `db:"balance"`
	ReferralBalance int64      `db:"referral_balance"`
	ReferredBy      *int64     `db:"referred_by"`
	Status          Status     `db:"status"`
	RegisteredAt    time.Time  `db:"registered_at"`
	LastCheckIn     *time.Time `db:"last_check_in"`
}

// Active reports whether the user can earn and withdraw.
func (u *User) Active() bool {
	return u != nil && u.Status == StatusActive
}

// Deposit is a pending plan payment created by a purchase or reactivation dialog.
type Deposit struct {
	ID             uuid.UUID    `db:"id"`
	UID            int64        `db:"uid"`
	Amount         int64        `db:"amount"`
	Status         RecordStatus `db:"status"`
	IsReactivation bool         `db:"is_reactivation"`
	CreatedAt      time.Time    `db:"created_at"`
}

// Withdraw is a payout request. It is created together with the balance debit.
type Withdraw struct {
	ID        uuid.UUID    `db:"id"`
	UID       int64        `db:"uid"`
	Amount    int64        `db:"amount"`
	UPIID     string       `db:"upi_id"`
	PayeeName string       `db:"payee_name"`
	Status    RecordStatus `db:"status"`
	CreatedAt time.Time    `db:"created_at"`
}

// NewDeposit builds a pending deposit for uid.
func NewDeposit(uid, amount int64, reactivation bool, now time.Time) Deposit {
	return Deposit{
		ID:             uuid.New(),
		UID:            uid,
		Amount:         amount,
		Status:         RecordPending,
		IsReactivation: reactivation,
		CreatedAt:      now,
	}
}

// NewWithdraw builds a pending withdrawal for uid.
func NewWithdraw(uid, amount int64, upi, name string, now time.Time) Withdraw {
	return Withdraw{
		ID:        uuid.New(),
		UID:       uid,
		Amount:    amount,
		UPIID:     upi,
		PayeeName: name,
		Status:    RecordPending,
		CreatedAt: now,
	}
}
