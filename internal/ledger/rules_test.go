package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time {
	return time.Date(2025, time.March, d, 10, 0, 0, 0, time.UTC)
}

func activeUser(balance int64) *User {
	return &User{UID: 1, Username: "alice", Balance: balance, Status: StatusActive}
}

func TestCanCheckIn(t *testing.T) {
	r := DefaultRules()
	yesterday := day(9)
	today := day(10).Add(-3 * time.Hour)

	tests := []struct {
		name string
		user *User
		now  time.Time
		kind Kind
	}{
		{name: "not registered", user: nil, now: day(10), kind: KindNotRegistered},
		{name: "holiday", user: activeUser(0), now: day(6), kind: KindIneligibleWindow},
		{name: "inactive", user: &User{UID: 1, Status: StatusInactive}, now: day(10), kind: KindInactiveAccount},
		{name: "already today", user: &User{UID: 1, Status: StatusActive, LastCheckIn: &today}, now: day(10), kind: KindAlreadyActedToday},
		{name: "checked in yesterday", user: &User{UID: 1, Status: StatusActive, LastCheckIn: &yesterday}, now: day(10)},
		{name: "first check-in", user: activeUser(0), now: day(10)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.CanCheckIn(tt.user, tt.now)
			if tt.kind == "" {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.kind, KindOf(err))
		})
	}
}

func TestCanCheckInUsesLedgerCalendar(t *testing.T) {
	r := DefaultRules()
	r.Location = time.FixedZone("IST", 5*3600+1800)

	// 20:00 UTC on the 5th is already the 6th in IST.
	now := time.Date(2025, time.March, 5, 20, 0, 0, 0, time.UTC)
	err := r.CanCheckIn(activeUser(0), now)
	assert.Equal(t, KindIneligibleWindow, KindOf(err))

	last := time.Date(2025, time.March, 4, 19, 0, 0, 0, time.UTC) // 5th 00:30 IST
	u := activeUser(0)
	u.LastCheckIn = &last
	err = r.CanCheckIn(u, time.Date(2025, time.March, 5, 10, 0, 0, 0, time.UTC))
	assert.Equal(t, KindAlreadyActedToday, KindOf(err))
}

func TestApplyCheckIn(t *testing.T) {
	r := DefaultRules()
	u := activeUser(0)
	r.ApplyCheckIn(u, day(10))

	assert.Equal(t, int64(40), u.Balance)
	require.NotNil(t, u.LastCheckIn)
	assert.ErrorIs(t, r.CanCheckIn(u, day(10)), ErrAlreadyActedToday)
	assert.NoError(t, r.CanCheckIn(u, day(11)))
}

func TestCanWithdraw(t *testing.T) {
	r := DefaultRules()
	earlier := Withdraw{UID: 1, Amount: 400, CreatedAt: day(3)}
	lastMonth := Withdraw{UID: 1, Amount: 400, CreatedAt: time.Date(2025, time.February, 10, 9, 0, 0, 0, time.UTC)}

	tests := []struct {
		name    string
		user    *User
		monthly []Withdraw
		now     time.Time
		kind    Kind
		quote   WithdrawalQuote
	}{
		{name: "before window", user: activeUser(1000), now: day(1), kind: KindIneligibleWindow},
		{name: "after window", user: activeUser(1000), now: day(26), kind: KindIneligibleWindow},
		{name: "inactive", user: &User{UID: 1, Balance: 1000, Status: StatusInactive}, now: day(10), kind: KindInactiveAccount},
		{name: "same day", user: activeUser(1000), monthly: []Withdraw{{CreatedAt: day(10).Add(-time.Hour)}}, now: day(10), kind: KindLimitExceeded},
		{name: "monthly cap", user: activeUser(5000), monthly: []Withdraw{earlier, {CreatedAt: day(5)}}, now: day(10), kind: KindLimitExceeded},
		{name: "first needs 400", user: activeUser(399), now: day(10), kind: KindInsufficientFunds},
		{name: "first fixed", user: activeUser(1000), now: day(10), quote: WithdrawalQuote{Fixed: true, Amount: 400}},
		{name: "previous month ignored", user: activeUser(1000), monthly: []Withdraw{lastMonth}, now: day(10), quote: WithdrawalQuote{Fixed: true, Amount: 400}},
		{name: "window edges", user: activeUser(1000), now: day(25), quote: WithdrawalQuote{Fixed: true, Amount: 400}},
		{name: "subsequent", user: activeUser(1000), monthly: []Withdraw{earlier}, now: day(10), quote: WithdrawalQuote{Min: 650, Max: 1100}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quote, err := r.CanWithdraw(tt.user, tt.monthly, tt.now)
			if tt.kind != "" {
				assert.Equal(t, tt.kind, KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.quote, quote)
		})
	}
}

func TestCheckWithdrawalAmount(t *testing.T) {
	r := DefaultRules()
	assert.Equal(t, KindInvalidInput, KindOf(r.CheckWithdrawalAmount(activeUser(5000), 649)))
	assert.Equal(t, KindInvalidInput, KindOf(r.CheckWithdrawalAmount(activeUser(5000), 1101)))
	assert.Equal(t, KindInsufficientFunds, KindOf(r.CheckWithdrawalAmount(activeUser(700), 800)))
	assert.NoError(t, r.CheckWithdrawalAmount(activeUser(700), 650))
	assert.NoError(t, r.CheckWithdrawalAmount(activeUser(1100), 1100))
}

func TestCheckWithdrawalFixedAmount(t *testing.T) {
	r := DefaultRules()
	assert.NoError(t, r.CheckWithdrawal(activeUser(1000), nil, 400, day(10)))
	assert.Equal(t, KindInvalidInput, KindOf(r.CheckWithdrawal(activeUser(1000), nil, 700, day(10))))

	// A fixed-amount dialog committed after another payout landed the same month.
	monthly := []Withdraw{{CreatedAt: day(4)}}
	assert.Equal(t, KindInvalidInput, KindOf(r.CheckWithdrawal(activeUser(1000), monthly, 400, day(10))))
}

func TestCanMoveReferral(t *testing.T) {
	r := DefaultRules()
	u := &User{UID: 1, ReferralBalance: 150}

	require.NoError(t, r.CanMoveReferral(u))
	r.ApplyReferralMove(u)
	assert.Equal(t, int64(50), u.ReferralBalance)
	assert.Equal(t, int64(100), u.Balance)

	err := r.CanMoveReferral(u)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	var re *RuleError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, int64(100), re.Required)
	assert.Equal(t, int64(50), re.Available)
}

func TestCanRegister(t *testing.T) {
	r := DefaultRules()
	assert.NoError(t, r.CanRegister(19))
	assert.ErrorIs(t, r.CanRegister(20), ErrCapacityExceeded)
}

func TestRulesValidate(t *testing.T) {
	assert.NoError(t, DefaultRules().Validate())

	r := DefaultRules()
	r.MaxWithdrawal = 100
	assert.Error(t, r.Validate())

	r = DefaultRules()
	r.WindowStartDay = 0
	assert.Error(t, r.Validate())
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.Equal(t, KindStorageFailure, KindOf(errors.New("connection reset")))
	assert.Equal(t, KindSessionLost, KindOf(ErrSessionLost))
	assert.True(t, IsRefusal(Refusal(KindLimitExceeded, "")))
	assert.False(t, IsRefusal(errors.New("boom")))
	assert.Equal(t, "limit_exceeded", Refusal(KindLimitExceeded, "x").Code())
}
