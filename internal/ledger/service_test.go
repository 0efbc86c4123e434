package ledger_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/growbot/internal/ledger"
	"github.com/m3rciful/growbot/internal/ledger/memstore"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newService(t *testing.T, at time.Time) (*ledger.Service, *memstore.Store, *clock) {
	t.Helper()
	store := memstore.New()
	clk := &clock{now: at}
	return ledger.NewService(store, ledger.DefaultRules(), ledger.WithClock(clk.Now)), store, clk
}

func march(d int) time.Time {
	return time.Date(2025, time.March, d, 12, 0, 0, 0, time.UTC)
}

func activate(t *testing.T, store *memstore.Store, uid int64, balance int64) {
	t.Helper()
	ctx := context.Background()
	u, err := store.FindUserByID(ctx, uid)
	require.NoError(t, err)
	u.Status = ledger.StatusActive
	u.Balance = balance
	require.NoError(t, store.SaveUser(ctx, *u))
}

func TestRegisterCreatesInactiveUser(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t, march(10))

	u, err := svc.Register(ctx, 100, "  alice ", nil)
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, ledger.StatusInactive, u.Status)
	assert.Zero(t, u.Balance)
	assert.Nil(t, u.ReferredBy)

	_, err = svc.Register(ctx, 101, "alice", nil)
	assert.ErrorIs(t, err, ledger.ErrDuplicateIdentity)

	_, err = svc.Register(ctx, 102, "   ", nil)
	assert.Equal(t, ledger.KindInvalidInput, ledger.KindOf(err))
}

func TestRegisterTwentyFirstRejected(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t, march(10))

	for i := 1; i <= 20; i++ {
		_, err := svc.Register(ctx, int64(i), fmt.Sprintf("user%d", i), nil)
		require.NoError(t, err)
	}
	assert.ErrorIs(t, svc.RegistrationOpen(ctx), ledger.ErrCapacityExceeded)

	_, err := svc.Register(ctx, 21, "latecomer", nil)
	assert.ErrorIs(t, err, ledger.ErrCapacityExceeded)
}

func TestResolveReferrer(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t, march(10))
	_, err := svc.Register(ctx, 1, "alice", nil)
	require.NoError(t, err)

	ref, err := svc.ResolveReferrer(ctx, 2, "1")
	require.NoError(t, err)
	require.NotNil(t, ref)
	assert.Equal(t, int64(1), *ref)

	for _, payload := range []string{"", "abc", "2", "999", "-1"} {
		ref, err := svc.ResolveReferrer(ctx, 2, payload)
		require.NoError(t, err)
		assert.Nil(t, ref, payload)
	}
}

func TestCheckInOncePerDay(t *testing.T) {
	ctx := context.Background()
	svc, store, clk := newService(t, march(10))
	_, err := svc.Register(ctx, 1, "alice", nil)
	require.NoError(t, err)

	_, err = svc.CheckIn(ctx, 1)
	assert.ErrorIs(t, err, ledger.ErrInactiveAccount)

	activate(t, store, 1, 0)
	u, err := svc.CheckIn(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(40), u.Balance)
	require.NotNil(t, u.LastCheckIn)

	_, err = svc.CheckIn(ctx, 1)
	assert.ErrorIs(t, err, ledger.ErrAlreadyActedToday)

	clk.now = march(11)
	u, err = svc.CheckIn(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(80), u.Balance)

	clk.now = time.Date(2025, time.April, 6, 9, 0, 0, 0, time.UTC)
	_, err = svc.CheckIn(ctx, 1)
	assert.ErrorIs(t, err, ledger.ErrIneligibleWindow)

	_, err = svc.CheckIn(ctx, 42)
	assert.ErrorIs(t, err, ledger.ErrNotRegistered)
}

func TestDepositRetention(t *testing.T) {
	ctx := context.Background()
	svc, _, clk := newService(t, march(1))
	_, err := svc.Register(ctx, 1, "alice", nil)
	require.NoError(t, err)

	for n := 1; n <= 7; n++ {
		clk.now = march(n)
		d, err := svc.PlaceDeposit(ctx, 1, n%2 == 0)
		require.NoError(t, err)
		if n%2 == 0 {
			assert.Equal(t, int64(150), d.Amount)
			assert.True(t, d.IsReactivation)
		} else {
			assert.Equal(t, int64(390), d.Amount)
		}
		assert.Equal(t, ledger.RecordPending, d.Status)

		ds, err := svc.Deposits(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, ds, min(n, 4))
		assert.Equal(t, march(n), ds[0].CreatedAt)
	}

	ds, err := svc.Deposits(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, march(4), ds[len(ds)-1].CreatedAt)

	_, err = svc.PlaceDeposit(ctx, 99, false)
	assert.ErrorIs(t, err, ledger.ErrNotRegistered)
}

func TestWithdrawFirstThenSameDay(t *testing.T) {
	ctx := context.Background()
	svc, store, clk := newService(t, march(10))
	_, err := svc.Register(ctx, 1, "alice", nil)
	require.NoError(t, err)
	activate(t, store, 1, 1000)

	_, quote, err := svc.QuoteWithdrawal(ctx, 1)
	require.NoError(t, err)
	assert.True(t, quote.Fixed)
	assert.Equal(t, int64(400), quote.Amount)

	u, w, err := svc.Withdraw(ctx, 1, 400, "x@y.com", "John Smith")
	require.NoError(t, err)
	assert.Equal(t, int64(600), u.Balance)
	assert.Equal(t, int64(400), w.Amount)
	assert.Equal(t, ledger.RecordPending, w.Status)

	_, _, err = svc.QuoteWithdrawal(ctx, 1)
	assert.ErrorIs(t, err, ledger.ErrLimitExceeded)

	clk.now = march(11)
	_, quote, err = svc.QuoteWithdrawal(ctx, 1)
	require.NoError(t, err)
	assert.False(t, quote.Fixed)

	assert.ErrorIs(t, svc.CheckWithdrawalAmount(ctx, 1, 700), ledger.ErrInsufficientFunds)
	assert.Equal(t, ledger.KindInvalidInput, ledger.KindOf(svc.CheckWithdrawalAmount(ctx, 1, 100)))

	_, _, err = svc.Withdraw(ctx, 1, 650, "x@y.com", "John Smith")
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	u, err = svc.User(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(600), u.Balance)

	hist, err := svc.Withdrawals(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, hist, 1)
}

func TestWithdrawMonthlyCap(t *testing.T) {
	ctx := context.Background()
	svc, store, clk := newService(t, march(3))
	_, err := svc.Register(ctx, 1, "alice", nil)
	require.NoError(t, err)
	activate(t, store, 1, 5000)

	_, _, err = svc.Withdraw(ctx, 1, 400, "a@b", "Alice")
	require.NoError(t, err)
	clk.now = march(4)
	_, _, err = svc.Withdraw(ctx, 1, 800, "a@b", "Alice")
	require.NoError(t, err)
	clk.now = march(5)
	_, _, err = svc.QuoteWithdrawal(ctx, 1)
	assert.ErrorIs(t, err, ledger.ErrLimitExceeded)

	clk.now = time.Date(2025, time.April, 2, 8, 0, 0, 0, time.UTC)
	_, quote, err := svc.QuoteWithdrawal(ctx, 1)
	require.NoError(t, err)
	assert.True(t, quote.Fixed)

	u, err := svc.User(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3800), u.Balance)
}

type failingWithdraws struct{ ledger.Queries }

func (failingWithdraws) CreateWithdraw(context.Context, ledger.Withdraw) error {
	return errors.New("disk full")
}

type failingStore struct{ *memstore.Store }

func (f failingStore) WithinUser(ctx context.Context, uid int64, fn func(ledger.Queries) error) error {
	return f.Store.WithinUser(ctx, uid, func(q ledger.Queries) error {
		return fn(failingWithdraws{q})
	})
}

func TestWithdrawIsAtomic(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	clk := &clock{now: march(10)}
	svc := ledger.NewService(failingStore{store}, ledger.DefaultRules(), ledger.WithClock(clk.Now))
	_, err := svc.Register(ctx, 1, "alice", nil)
	require.NoError(t, err)
	activate(t, store, 1, 1000)

	_, _, err = svc.Withdraw(ctx, 1, 400, "a@b", "Alice")
	require.Error(t, err)
	assert.Equal(t, ledger.KindStorageFailure, ledger.KindOf(err))

	u, err := store.FindUserByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), u.Balance)
}

func TestMoveReferral(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newService(t, march(10))
	_, err := svc.Register(ctx, 1, "alice", nil)
	require.NoError(t, err)

	u, err := store.FindUserByID(ctx, 1)
	require.NoError(t, err)
	u.ReferralBalance = 150
	require.NoError(t, store.SaveUser(ctx, *u))

	u, err = svc.MoveReferral(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(50), u.ReferralBalance)
	assert.Equal(t, int64(100), u.Balance)

	_, err = svc.MoveReferral(ctx, 1)
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	u, err = svc.User(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(50), u.ReferralBalance)
	assert.GreaterOrEqual(t, u.Balance, int64(0))
}

func TestReferrals(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t, march(10))
	_, err := svc.Register(ctx, 1, "alice", nil)
	require.NoError(t, err)
	ref := int64(1)
	_, err = svc.Register(ctx, 2, "bob", &ref)
	require.NoError(t, err)

	n, err := svc.Referrals(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
