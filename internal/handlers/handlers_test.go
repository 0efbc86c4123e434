package handlers_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/growbot/internal/dialog"
	"github.com/m3rciful/growbot/internal/handlers"
	"github.com/m3rciful/growbot/internal/ledger"
	"github.com/m3rciful/growbot/internal/ledger/memstore"
	"github.com/m3rciful/growbot/internal/metrics"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

type env struct {
	h        *handlers.Handlers
	store    *memstore.Store
	sessions *dialog.MemoryStore
	clk      *clock
	metrics  *metrics.Metrics
}

func newEnv(t *testing.T, at time.Time) *env {
	t.Helper()
	clk := &clock{now: at}
	store := memstore.New()
	sessions := dialog.NewMemoryStore(30*time.Minute, dialog.WithClock(clk.Now))
	m := metrics.New(false)
	svc := ledger.NewService(store, ledger.DefaultRules(), ledger.WithClock(clk.Now))
	return &env{
		h:        handlers.New(svc, sessions, handlers.WithRecorder(m)),
		store:    store,
		sessions: sessions,
		clk:      clk,
		metrics:  m,
	}
}

func day(d int) time.Time {
	return time.Date(2025, time.March, d, 10, 0, 0, 0, time.UTC)
}

// say feeds text into the dialog and returns the single reply text, or "" when ignored.
func (e *env) say(t *testing.T, uid int64, input string) (string, error) {
	t.Helper()
	ds, err := e.h.HandleText(context.Background(), uid, input)
	if len(ds) == 0 {
		return "", err
	}
	return ds[0].Text, err
}

func (e *env) register(t *testing.T, uid int64, name string) {
	t.Helper()
	_, err := e.h.Start(context.Background(), uid, "")
	require.NoError(t, err)
	_, err = e.say(t, uid, name)
	require.NoError(t, err)
}

func (e *env) user(t *testing.T, uid int64) *ledger.User {
	t.Helper()
	u, err := e.store.FindUserByID(context.Background(), uid)
	require.NoError(t, err)
	return u
}

func (e *env) set(t *testing.T, uid int64, fn func(u *ledger.User)) {
	t.Helper()
	u := e.user(t, uid)
	fn(u)
	require.NoError(t, e.store.SaveUser(context.Background(), *u))
}

func activeWith(balance int64) func(u *ledger.User) {
	return func(u *ledger.User) {
		u.Status = ledger.StatusActive
		u.Balance = balance
	}
}

// Scenario 1.
func TestRegistration(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, day(10))

	ds, err := e.h.Start(ctx, 1, "")
	require.NoError(t, err)
	require.Len(t, ds, 1)
	assert.Contains(t, ds[0].Text, "unique username")

	ds, err = e.h.HandleText(ctx, 1, "alice")
	require.NoError(t, err)
	require.Len(t, ds, 2)
	assert.Contains(t, ds[0].Text, "Welcome, alice!")
	assert.Equal(t, handlers.MainMenu, ds[1].Menu)

	u := e.user(t, 1)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, int64(0), u.Balance)
	assert.Equal(t, ledger.StatusInactive, u.Status)
	assert.Nil(t, u.ReferredBy)

	_, err = e.sessions.Load(ctx, 1)
	assert.ErrorIs(t, err, dialog.ErrNoSession)

	ds, err = e.h.Start(ctx, 1, "")
	require.NoError(t, err)
	assert.Contains(t, ds[0].Text, "Welcome back")
}

func TestRegistrationDuplicateKeepsReferrer(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, day(10))
	e.register(t, 1, "alice")

	_, err := e.h.Start(ctx, 2, "1")
	require.NoError(t, err)

	reply, err := e.say(t, 2, "alice")
	assert.ErrorIs(t, err, ledger.ErrDuplicateIdentity)
	assert.Contains(t, reply, "already taken")

	reply, err = e.say(t, 2, strings.Repeat("x", 40))
	assert.ErrorIs(t, err, ledger.ErrInvalidInput)
	assert.Contains(t, reply, "1-32")

	_, err = e.say(t, 2, "bob")
	require.NoError(t, err)
	u := e.user(t, 2)
	require.NotNil(t, u.ReferredBy)
	assert.Equal(t, int64(1), *u.ReferredBy)
}

func TestRegistrationCap(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, day(10))
	for i := int64(1); i <= 20; i++ {
		e.register(t, i, fmt.Sprintf("user%d", i))
	}

	ds, err := e.h.Start(ctx, 21, "")
	assert.ErrorIs(t, err, ledger.ErrCapacityExceeded)
	assert.Contains(t, ds[0].Text, "Registration limit reached")

	_, err = e.sessions.Load(ctx, 21)
	assert.ErrorIs(t, err, dialog.ErrNoSession)
}

func TestRegistrationCapReachedMidDialog(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, day(10))
	for i := int64(1); i <= 19; i++ {
		e.register(t, i, fmt.Sprintf("user%d", i))
	}
	_, err := e.h.Start(ctx, 100, "")
	require.NoError(t, err)
	e.register(t, 20, "user20")

	reply, err := e.say(t, 100, "late")
	assert.ErrorIs(t, err, ledger.ErrCapacityExceeded)
	assert.Contains(t, reply, "Registration limit reached")

	n, err := e.store.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, n)
}

// Scenario 2.
func TestCheckIn(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, day(10))
	e.register(t, 1, "alice")

	ds, err := e.h.CheckIn(ctx, 1)
	assert.ErrorIs(t, err, ledger.ErrInactiveAccount)
	assert.Contains(t, ds[0].Text, "inactive")

	e.set(t, 1, func(u *ledger.User) { u.Status = ledger.StatusActive })

	ds, err = e.h.CheckIn(ctx, 1)
	require.NoError(t, err)
	require.Len(t, ds, 2)
	assert.Contains(t, ds[0].Text, "+₹40")
	assert.Contains(t, ds[1].Text, "₹40")
	assert.True(t, ds[1].Markdown)

	u := e.user(t, 1)
	assert.Equal(t, int64(40), u.Balance)
	require.NotNil(t, u.LastCheckIn)
	assert.Equal(t, day(10), *u.LastCheckIn)

	ds, err = e.h.CheckIn(ctx, 1)
	assert.ErrorIs(t, err, ledger.ErrAlreadyActedToday)
	assert.Contains(t, ds[0].Text, "already checked in")
	assert.Equal(t, int64(40), e.user(t, 1).Balance)

	e.clk.now = time.Date(2025, time.April, 6, 10, 0, 0, 0, time.UTC)
	ds, err = e.h.CheckIn(ctx, 1)
	assert.ErrorIs(t, err, ledger.ErrIneligibleWindow)
	assert.Contains(t, ds[0].Text, "6th")

	ds, err = e.h.CheckIn(ctx, 99)
	assert.ErrorIs(t, err, ledger.ErrNotRegistered)
	assert.Contains(t, ds[0].Text, "not registered")
}

// Scenario 3.
func TestPurchaseFlow(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, day(10))
	e.register(t, 1, "alice")
	e.set(t, 1, activeWith(390))

	ds, err := e.h.Purchase(ctx, 1)
	require.NoError(t, err)
	assert.Contains(t, ds[0].Text, "Starter Pack")

	reply, err := e.say(t, 1, "gold pack")
	require.NoError(t, err)
	assert.Empty(t, reply)

	reply, err = e.say(t, 1, "Starter Pack")
	require.NoError(t, err)
	assert.Contains(t, reply, "₹390")

	ds, err = e.h.HandleText(ctx, 1, "Proceed")
	require.NoError(t, err)
	require.Len(t, ds, 1)
	assert.Contains(t, ds[0].Text, handlers.DefaultPayments().PurchaseURL)
	assert.True(t, ds[0].DisablePreview)

	deposits, err := e.store.FindDepositsByUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, deposits, 1)
	assert.Equal(t, int64(390), deposits[0].Amount)
	assert.False(t, deposits[0].IsReactivation)
	assert.Equal(t, ledger.RecordPending, deposits[0].Status)

	reply, err = e.say(t, 1, "Proceed")
	require.NoError(t, err)
	assert.Empty(t, reply)

	for i := 0; i < 5; i++ {
		e.clk.now = e.clk.now.Add(time.Minute)
		_, err = e.h.Reactivate(ctx, 1)
		require.NoError(t, err)
		_, err = e.say(t, 1, "starter pack re-activate")
		require.NoError(t, err)
		_, err = e.say(t, 1, "re-activate")
		require.NoError(t, err)
	}
	n, err := e.store.CountDeposits(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	ds, err = e.h.DepositHistory(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 4, strings.Count(ds[0].Text, "Re-activating"))
	assert.Contains(t, ds[0].Text, "Pending")
}

// Scenario 4 and 5.
func TestWithdrawalFlow(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, day(10))
	e.register(t, 1, "alice")
	e.set(t, 1, activeWith(1000))

	ds, err := e.h.Payout(ctx, 1)
	require.NoError(t, err)
	assert.Contains(t, ds[0].Text, "₹400")

	reply, err := e.say(t, 1, "John Smith")
	require.NoError(t, err)
	assert.Empty(t, reply)

	reply, err = e.say(t, 1, "x@y.com")
	require.NoError(t, err)
	assert.Contains(t, reply, "name")

	reply, err = e.say(t, 1, "John Smith")
	require.NoError(t, err)
	assert.Contains(t, reply, "Withdrawal Successful")

	assert.Equal(t, int64(600), e.user(t, 1).Balance)
	ws, err := e.store.FindWithdrawsByUser(ctx, 1, true, 0)
	require.NoError(t, err)
	require.Len(t, ws, 1)
	assert.Equal(t, int64(400), ws[0].Amount)
	assert.Equal(t, "x@y.com", ws[0].UPIID)
	assert.Equal(t, "John Smith", ws[0].PayeeName)

	ds, err = e.h.Payout(ctx, 1)
	assert.ErrorIs(t, err, ledger.ErrLimitExceeded)
	assert.Contains(t, ds[0].Text, "once per day")

	ds, err = e.h.WithdrawHistory(ctx, 1)
	require.NoError(t, err)
	assert.Contains(t, ds[0].Text, "UPI")
}

func TestWithdrawalChosenAmount(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, day(10))
	e.register(t, 1, "alice")
	e.set(t, 1, activeWith(1100))
	require.NoError(t, e.store.CreateWithdraw(ctx, ledger.NewWithdraw(1, 400, "a@b", "Alice", day(3))))

	ds, err := e.h.Payout(ctx, 1)
	require.NoError(t, err)
	assert.Contains(t, ds[0].Text, "₹650 - ₹1100")

	reply, err := e.say(t, 1, "500")
	assert.ErrorIs(t, err, ledger.ErrInvalidInput)
	assert.Contains(t, reply, "valid amount")

	e.set(t, 1, func(u *ledger.User) { u.Balance = 700 })
	reply, err = e.say(t, 1, "800")
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	assert.Equal(t, "❌ Insufficient balance!", reply)

	reply, err = e.say(t, 1, "700")
	require.NoError(t, err)
	assert.Contains(t, reply, "UPI")
	_, err = e.say(t, 1, "a@b")
	require.NoError(t, err)
	_, err = e.say(t, 1, "Alice")
	require.NoError(t, err)

	assert.Equal(t, int64(0), e.user(t, 1).Balance)

	e.clk.now = day(11)
	ds, err = e.h.Payout(ctx, 1)
	assert.ErrorIs(t, err, ledger.ErrLimitExceeded)
	assert.Contains(t, ds[0].Text, "2 withdrawals per month")
}

func TestWithdrawalStaleSessionCannotOverdraw(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, day(10))
	e.register(t, 1, "alice")
	e.set(t, 1, activeWith(400))

	_, err := e.h.Payout(ctx, 1)
	require.NoError(t, err)
	_, err = e.say(t, 1, "x@y.com")
	require.NoError(t, err)

	e.set(t, 1, func(u *ledger.User) { u.Balance = 100 })
	_, err = e.say(t, 1, "John")
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	assert.Equal(t, int64(100), e.user(t, 1).Balance)

	_, err = e.sessions.Load(ctx, 1)
	assert.ErrorIs(t, err, dialog.ErrNoSession)
}

func TestPayoutOutsideWindow(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, day(26))
	e.register(t, 1, "alice")
	e.set(t, 1, activeWith(1000))

	ds, err := e.h.Payout(ctx, 1)
	assert.ErrorIs(t, err, ledger.ErrIneligibleWindow)
	assert.Contains(t, ds[0].Text, "2nd to 25th")
}

// Scenario 6.
func TestMoveToBalance(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, day(10))
	e.register(t, 1, "alice")
	e.set(t, 1, func(u *ledger.User) { u.ReferralBalance = 150 })

	ds, err := e.h.MoveToBalance(ctx, 1)
	require.NoError(t, err)
	require.Len(t, ds, 1)
	assert.True(t, ds[0].Alert)
	assert.Contains(t, ds[0].Text, "₹100 has been moved")

	u := e.user(t, 1)
	assert.Equal(t, int64(50), u.ReferralBalance)
	assert.Equal(t, int64(100), u.Balance)

	ds, err = e.h.MoveToBalance(ctx, 1)
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	assert.True(t, ds[0].Alert)
	assert.Equal(t, int64(50), e.user(t, 1).ReferralBalance)
}

func TestAffiliateAndProfile(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, day(10))
	e.register(t, 1, "alice")
	_, err := e.h.Start(ctx, 2, "1")
	require.NoError(t, err)
	_, err = e.say(t, 2, "bob")
	require.NoError(t, err)

	ds, err := e.h.Affiliate(ctx, 1, "growbot")
	require.NoError(t, err)
	assert.Contains(t, ds[0].Text, "https://t.me/growbot?start=1")
	assert.Contains(t, ds[0].Text, "*1* users")
	require.Len(t, ds[0].Inline, 1)
	assert.Equal(t, handlers.CallbackMoveToBalance, ds[0].Inline[0].Unique)

	ds, err = e.h.Profile(ctx, 1)
	require.NoError(t, err)
	assert.Contains(t, ds[0].Text, "❌ Inactive")
	assert.Contains(t, ds[0].Text, "10 Mar 2025")

	ds, err = e.h.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Contains(t, ds[0].Text, "₹0")

	_, err = e.h.Profile(ctx, 42)
	assert.ErrorIs(t, err, ledger.ErrNotRegistered)
}

func TestUsernameStaysOutsideEntities(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, day(10))
	_, err := e.h.Start(ctx, 1, "")
	require.NoError(t, err)
	text, err := e.say(t, 1, "a_b")
	require.NoError(t, err)
	assert.Contains(t, text, `Welcome, a\_b!`)

	ds, err := e.h.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Contains(t, ds[0].Text, `Hey a\_b!`)
	assert.NotContains(t, ds[0].Text, `*a\_b`)

	ds, err = e.h.Affiliate(ctx, 1, "growbot")
	require.NoError(t, err)
	assert.Contains(t, ds[0].Text, `Hello a\_b!`)
	assert.NotContains(t, ds[0].Text, `*a\_b`)
}

func TestHandleTextWithoutSession(t *testing.T) {
	e := newEnv(t, day(10))
	ds, err := e.h.HandleText(context.Background(), 1, "700")
	assert.NoError(t, err)
	assert.Empty(t, ds)
}

func TestExpiredSessionIsLost(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, day(10))
	e.register(t, 1, "alice")
	_, err := e.h.Purchase(ctx, 1)
	require.NoError(t, err)

	e.clk.now = e.clk.now.Add(time.Hour)
	ds, err := e.h.HandleText(ctx, 1, "starter pack")
	assert.ErrorIs(t, err, ledger.ErrSessionLost)
	require.Len(t, ds, 1)
	assert.Equal(t, handlers.MainMenu, ds[0].Menu)

	ds, err = e.h.HandleText(ctx, 1, "starter pack")
	assert.NoError(t, err)
	assert.Empty(t, ds)
}

func TestNewFlowOverwritesSession(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, day(10))
	e.register(t, 1, "alice")
	e.set(t, 1, activeWith(1000))

	_, err := e.h.Purchase(ctx, 1)
	require.NoError(t, err)
	_, err = e.h.Payout(ctx, 1)
	require.NoError(t, err)

	reply, err := e.say(t, 1, "starter pack")
	require.NoError(t, err)
	assert.Empty(t, reply)

	s, err := e.sessions.Load(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, dialog.FlowWithdrawal, s.Flow)
}

type brokenSessions struct{ dialog.Store }

func (brokenSessions) Save(context.Context, int64, *dialog.Session) error {
	return errors.New("redis down")
}

func TestStorageFailureAsksToRetry(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: day(10)}
	store := memstore.New()
	svc := ledger.NewService(store, ledger.DefaultRules(), ledger.WithClock(clk.Now))
	_, err := svc.Register(ctx, 1, "alice", nil)
	require.NoError(t, err)

	h := handlers.New(svc, brokenSessions{dialog.NewMemoryStore(time.Minute)})
	ds, err := h.Purchase(ctx, 1)
	require.Error(t, err)
	assert.Equal(t, ledger.KindStorageFailure, ledger.KindOf(err))
	assert.Contains(t, ds[0].Text, "try again later")
}

func TestStaticScreens(t *testing.T) {
	e := newEnv(t, day(10))
	assert.Equal(t, handlers.DepositMenu, e.h.DepositMenu()[0].Menu)
	assert.Equal(t, handlers.PurchaseMenu, e.h.PurchaseMenu()[0].Menu)
	assert.Equal(t, handlers.WithdrawMenu, e.h.WithdrawMenu()[0].Menu)
	assert.Contains(t, e.h.About()[0].Text, "tshmgrow@gmail.com")
	assert.Contains(t, e.h.Plans()[0].Text, "₹390")
	assert.Contains(t, e.h.WithdrawRules()[0].Text, "Min ₹650 | Max ₹1100")
	assert.Contains(t, e.h.WithdrawRules()[0].Text, "10% processing fee")
}
