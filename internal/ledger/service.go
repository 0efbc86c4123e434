package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/growbot/core/logger"
)

const component = "ledger"

// Service applies the rules to the store. Every mutation runs inside
// Store.WithinUser and re-reads the user under the lock.
type Service struct {
	store Store
	rules Rules
	now   func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService wires a ledger service.
func NewService(store Store, rules Rules, opts ...Option) *Service {
	s := &Service{store: store, rules: rules, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Rules returns the constants the service enforces.
func (s *Service) Rules() Rules { return s.rules }

// Now returns the service clock.
func (s *Service) Now() time.Time { return s.now() }

// User loads a registered user or refuses with NotRegistered.
func (s *Service) User(ctx context.Context, uid int64) (*User, error) {
	return loadUser(ctx, s.store, uid)
}

func loadUser(ctx context.Context, q Queries, uid int64) (*User, error) {
	u, err := q.FindUserByID(ctx, uid)
	if errors.Is(err, ErrNotFound) {
		return nil, Refusal(KindNotRegistered, "")
	}
	if err != nil {
		return nil, fmt.Errorf("find user %d: %w", uid, err)
	}
	return u, nil
}

// Exists reports whether uid is registered.
func (s *Service) Exists(ctx context.Context, uid int64) (bool, error) {
	_, err := s.store.FindUserByID(ctx, uid)
	switch {
	case errors.Is(err, ErrNotFound):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("find user %d: %w", uid, err)
	}
	return true, nil
}

// RegistrationOpen refuses with CapacityExceeded once the cap is reached.
func (s *Service) RegistrationOpen(ctx context.Context) error {
	n, err := s.store.CountUsers(ctx)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	return s.rules.CanRegister(n)
}

// ResolveReferrer parses a start payload into a referrer id. Payloads that are
// not numeric, point at the registering user or at an unknown user are dropped.
func (s *Service) ResolveReferrer(ctx context.Context, uid int64, payload string) (*int64, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, nil
	}
	ref, err := strconv.ParseInt(payload, 10, 64)
	if err != nil || ref <= 0 || ref == uid {
		return nil, nil
	}
	ok, err := s.Exists(ctx, ref)
	if err != nil || !ok {
		return nil, err
	}
	return &ref, nil
}

// MaxUsernameLength bounds chosen usernames in runes.
const MaxUsernameLength = 32

// NormalizeUsername trims the input and refuses empty or oversized names.
func NormalizeUsername(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", Refusal(KindInvalidInput, "empty username")
	}
	if len([]rune(name)) > MaxUsernameLength {
		return "", Refusal(KindInvalidInput, "username too long")
	}
	return name, nil
}

// UsernameTaken reports whether another user holds name.
func (s *Service) UsernameTaken(ctx context.Context, name string) (bool, error) {
	_, err := s.store.FindUserByUsername(ctx, name)
	switch {
	case errors.Is(err, ErrNotFound):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("find username: %w", err)
	}
	return true, nil
}

// Register creates an inactive user with a zero balance.
func (s *Service) Register(ctx context.Context, uid int64, username string, referrer *int64) (*User, error) {
	name, err := NormalizeUsername(username)
	if err != nil {
		return nil, err
	}
	u := User{
		UID:          uid,
		Username:     name,
		ReferredBy:   referrer,
		Status:       StatusInactive,
		RegisteredAt: s.now(),
	}
	if err := s.store.RegisterUser(ctx, u, s.rules.RegistrationCap); err != nil {
		if IsRefusal(err) {
			return nil, err
		}
		return nil, fmt.Errorf("register user %d: %w", uid, err)
	}
	attrs := []slog.Attr{slog.Int64("user_id", uid), slog.String("username", logger.SanitizeLimit(name, 64))}
	if referrer != nil {
		attrs = append(attrs, slog.Int64("referrer_id", *referrer))
	}
	logger.Info(ctx, component, "ledger.register", attrs...)
	return &u, nil
}

// CheckIn credits the daily reward.
func (s *Service) CheckIn(ctx context.Context, uid int64) (*User, error) {
	now := s.now()
	var out *User
	err := s.store.WithinUser(ctx, uid, func(q Queries) error {
		u, err := loadUser(ctx, q, uid)
		if err != nil {
			return err
		}
		if err := s.rules.CanCheckIn(u, now); err != nil {
			return err
		}
		s.rules.ApplyCheckIn(u, now)
		if err := q.SaveUser(ctx, *u); err != nil {
			return fmt.Errorf("save user: %w", err)
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, component, "ledger.checkin",
		slog.Int64("user_id", uid),
		slog.Int64("amount", s.rules.CheckInReward),
		slog.Int64("balance", out.Balance),
	)
	return out, nil
}

// PlaceDeposit records a pending plan payment and evicts the oldest deposits
// past the retention limit.
func (s *Service) PlaceDeposit(ctx context.Context, uid int64, reactivation bool) (Deposit, error) {
	amount := s.rules.PlanPrice
	if reactivation {
		amount = s.rules.ReactivationPrice
	}
	d := NewDeposit(uid, amount, reactivation, s.now())
	evicted := 0
	err := s.store.WithinUser(ctx, uid, func(q Queries) error {
		u, err := loadUser(ctx, q, uid)
		if err != nil {
			return err
		}
		if err := s.rules.CanPurchase(u); err != nil {
			return err
		}
		if err := q.CreateDeposit(ctx, d); err != nil {
			return fmt.Errorf("create deposit: %w", err)
		}
		evicted, err = enforceRetention(ctx, q, uid, s.rules.DepositRetention)
		return err
	})
	if err != nil {
		return Deposit{}, err
	}
	logger.Info(ctx, component, "ledger.deposit",
		slog.Int64("user_id", uid),
		slog.Int64("amount", amount),
		slog.Bool("reactivation", reactivation),
		slog.Int("evicted", evicted),
	)
	return d, nil
}

func enforceRetention(ctx context.Context, q Queries, uid int64, keep int) (int, error) {
	evicted := 0
	for {
		n, err := q.CountDeposits(ctx, uid)
		if err != nil {
			return evicted, fmt.Errorf("count deposits: %w", err)
		}
		if n <= keep {
			return evicted, nil
		}
		oldest, err := q.FindOldestDeposit(ctx, uid)
		if err != nil {
			return evicted, fmt.Errorf("find oldest deposit: %w", err)
		}
		if err := q.DeleteDeposit(ctx, oldest.ID); err != nil {
			return evicted, fmt.Errorf("delete deposit: %w", err)
		}
		evicted++
	}
}

// QuoteWithdrawal evaluates the payout entry rules.
func (s *Service) QuoteWithdrawal(ctx context.Context, uid int64) (*User, WithdrawalQuote, error) {
	now := s.now()
	u, err := loadUser(ctx, s.store, uid)
	if err != nil {
		return nil, WithdrawalQuote{}, err
	}
	monthly, err := s.monthlyWithdrawals(ctx, s.store, uid, now)
	if err != nil {
		return nil, WithdrawalQuote{}, err
	}
	quote, err := s.rules.CanWithdraw(u, monthly, now)
	if err != nil {
		return nil, WithdrawalQuote{}, err
	}
	return u, quote, nil
}

// CheckWithdrawalAmount validates the amount typed in the dialog against the current balance.
func (s *Service) CheckWithdrawalAmount(ctx context.Context, uid, amount int64) error {
	u, err := loadUser(ctx, s.store, uid)
	if err != nil {
		return err
	}
	return s.rules.CheckWithdrawalAmount(u, amount)
}

// Withdraw debits the balance and records the payout in one transaction.
func (s *Service) Withdraw(ctx context.Context, uid, amount int64, upi, name string) (*User, Withdraw, error) {
	now := s.now()
	w := NewWithdraw(uid, amount, upi, name, now)
	var out *User
	err := s.store.WithinUser(ctx, uid, func(q Queries) error {
		u, err := loadUser(ctx, q, uid)
		if err != nil {
			return err
		}
		monthly, err := s.monthlyWithdrawals(ctx, q, uid, now)
		if err != nil {
			return err
		}
		if err := s.rules.CheckWithdrawal(u, monthly, amount, now); err != nil {
			return err
		}
		s.rules.ApplyWithdrawal(u, amount)
		if err := q.SaveUser(ctx, *u); err != nil {
			return fmt.Errorf("save user: %w", err)
		}
		if err := q.CreateWithdraw(ctx, w); err != nil {
			return fmt.Errorf("create withdraw: %w", err)
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, Withdraw{}, err
	}
	logger.Info(ctx, component, "ledger.withdraw",
		slog.Int64("user_id", uid),
		slog.Int64("amount", amount),
		slog.Int64("balance", out.Balance),
	)
	return out, w, nil
}

func (s *Service) monthlyWithdrawals(ctx context.Context, q Queries, uid int64, now time.Time) ([]Withdraw, error) {
	start, end := s.rules.MonthRange(now)
	ws, err := q.FindWithdrawsByUserInRange(ctx, uid, start, end)
	if err != nil {
		return nil, fmt.Errorf("find monthly withdraws: %w", err)
	}
	return ws, nil
}

// MoveReferral transfers one referral unit into the main balance.
func (s *Service) MoveReferral(ctx context.Context, uid int64) (*User, error) {
	var out *User
	err := s.store.WithinUser(ctx, uid, func(q Queries) error {
		u, err := loadUser(ctx, q, uid)
		if err != nil {
			return err
		}
		if err := s.rules.CanMoveReferral(u); err != nil {
			return err
		}
		s.rules.ApplyReferralMove(u)
		if err := q.SaveUser(ctx, *u); err != nil {
			return fmt.Errorf("save user: %w", err)
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, component, "ledger.referral_move",
		slog.Int64("user_id", uid),
		slog.Int64("amount", s.rules.ReferralUnit),
		slog.Int64("balance", out.Balance),
	)
	return out, nil
}

// Deposits lists the retained deposits of a registered user, newest first.
func (s *Service) Deposits(ctx context.Context, uid int64) ([]Deposit, error) {
	if _, err := loadUser(ctx, s.store, uid); err != nil {
		return nil, err
	}
	ds, err := s.store.FindDepositsByUser(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("find deposits: %w", err)
	}
	return ds, nil
}

// Withdrawals lists the latest withdrawals of a registered user, newest first.
func (s *Service) Withdrawals(ctx context.Context, uid int64) ([]Withdraw, error) {
	if _, err := loadUser(ctx, s.store, uid); err != nil {
		return nil, err
	}
	ws, err := s.store.FindWithdrawsByUser(ctx, uid, true, s.rules.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("find withdraws: %w", err)
	}
	return ws, nil
}

// Referrals counts users registered with uid as referrer.
func (s *Service) Referrals(ctx context.Context, uid int64) (int, error) {
	n, err := s.store.CountReferrals(ctx, uid)
	if err != nil {
		return 0, fmt.Errorf("count referrals: %w", err)
	}
	return n, nil
}
