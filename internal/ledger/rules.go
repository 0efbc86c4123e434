package ledger

import (
	"fmt"
	"time"
)

// Rules holds the business constants. All predicates are pure: they read
// the user record and the reference time and never mutate storage.
type Rules struct {
	RegistrationCap    int   `yaml:"registration_cap" envconfig:"LEDGER_REGISTRATION_CAP"`
	CheckInReward      int64 `yaml:"checkin_reward" envconfig:"LEDGER_CHECKIN_REWARD"`
	PlanPrice          int64 `yaml:"plan_price" envconfig:"LEDGER_PLAN_PRICE"`
	ReactivationPrice  int64 `yaml:"reactivation_price" envconfig:"LEDGER_REACTIVATION_PRICE"`
	FirstWithdrawal    int64 `yaml:"first_withdrawal" envconfig:"LEDGER_FIRST_WITHDRAWAL"`
	MinWithdrawal      int64 `yaml:"min_withdrawal" envconfig:"LEDGER_MIN_WITHDRAWAL"`
	MaxWithdrawal      int64 `yaml:"max_withdrawal" envconfig:"LEDGER_MAX_WITHDRAWAL"`
	MonthlyWithdrawals int   `yaml:"monthly_withdrawals" envconfig:"LEDGER_MONTHLY_WITHDRAWALS"`
	WindowStartDay     int   `yaml:"window_start_day" envconfig:"LEDGER_WINDOW_START_DAY"`
	WindowEndDay       int   `yaml:"window_end_day" envconfig:"LEDGER_WINDOW_END_DAY"`
	HolidayDay         int   `yaml:"holiday_day" envconfig:"LEDGER_HOLIDAY_DAY"`
	ReferralUnit       int64 `yaml:"referral_unit" envconfig:"LEDGER_REFERRAL_UNIT"`
	// ReferralReward is advertised in the affiliate screen only; nothing credits it.
	ReferralReward   int64 `yaml:"referral_reward" envconfig:"LEDGER_REFERRAL_REWARD"`
	DepositRetention int   `yaml:"deposit_retention" envconfig:"LEDGER_DEPOSIT_RETENTION"`
	HistoryLimit     int   `yaml:"history_limit" envconfig:"LEDGER_HISTORY_LIMIT"`

	// Location defines calendar days. Nil means UTC.
	Location *time.Location `yaml:"-" ignored:"true"`
}

// DefaultRules returns the production constants.
func DefaultRules() Rules {
	return Rules{
		RegistrationCap:    20,
		CheckInReward:      40,
		PlanPrice:          390,
		ReactivationPrice:  150,
		FirstWithdrawal:    400,
		MinWithdrawal:      650,
		MaxWithdrawal:      1100,
		MonthlyWithdrawals: 2,
		WindowStartDay:     2,
		WindowEndDay:       25,
		HolidayDay:         6,
		ReferralUnit:       100,
		ReferralReward:     20,
		DepositRetention:   4,
		HistoryLimit:       4,
		Location:           time.UTC,
	}
}

// Validate rejects inconsistent constants.
func (r Rules) Validate() error {
	switch {
	case r.RegistrationCap <= 0:
		return fmt.Errorf("ledger.registration_cap must be > 0")
	case r.CheckInReward <= 0 || r.PlanPrice <= 0 || r.ReactivationPrice <= 0:
		return fmt.Errorf("ledger amounts must be > 0")
	case r.FirstWithdrawal <= 0:
		return fmt.Errorf("ledger.first_withdrawal must be > 0")
	case r.MinWithdrawal <= 0 || r.MaxWithdrawal < r.MinWithdrawal:
		return fmt.Errorf("ledger withdrawal bounds invalid: %d..%d", r.MinWithdrawal, r.MaxWithdrawal)
	case r.MonthlyWithdrawals <= 0:
		return fmt.Errorf("ledger.monthly_withdrawals must be > 0")
	case r.WindowStartDay < 1 || r.WindowEndDay > 31 || r.WindowEndDay < r.WindowStartDay:
		return fmt.Errorf("ledger withdrawal window invalid: %d..%d", r.WindowStartDay, r.WindowEndDay)
	case r.HolidayDay < 0 || r.HolidayDay > 31:
		return fmt.Errorf("ledger.holiday_day must be within 0..31")
	case r.ReferralUnit <= 0:
		return fmt.Errorf("ledger.referral_unit must be > 0")
	case r.DepositRetention <= 0 || r.HistoryLimit <= 0:
		return fmt.Errorf("ledger retention and history limit must be > 0")
	}
	return nil
}

// In converts t to the ledger calendar.
func (r Rules) In(t time.Time) time.Time {
	if r.Location == nil {
		return t.UTC()
	}
	return t.In(r.Location)
}

// SameDay reports whether a and b fall on the same ledger calendar day.
func (r Rules) SameDay(a, b time.Time) bool {
	a, b = r.In(a), r.In(b)
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// MonthRange returns [start, end) of the calendar month containing now.
func (r Rules) MonthRange(now time.Time) (time.Time, time.Time) {
	local := r.In(now)
	start := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, local.Location())
	return start, start.AddDate(0, 1, 0)
}

// CanRegister checks the global cap against the current user count.
func (r Rules) CanRegister(registered int) error {
	if registered >= r.RegistrationCap {
		return Refusal(KindCapacityExceeded, fmt.Sprintf("cap %d reached", r.RegistrationCap))
	}
	return nil
}

// CanCheckIn refuses on the holiday, for inactive accounts and for a second
// check-in on the same day.
func (r Rules) CanCheckIn(u *User, now time.Time) error {
	if u == nil {
		return Refusal(KindNotRegistered, "")
	}
	if r.HolidayDay > 0 && r.In(now).Day() == r.HolidayDay {
		return Refusal(KindIneligibleWindow, "holiday")
	}
	if !u.Active() {
		return Refusal(KindInactiveAccount, "")
	}
	if u.LastCheckIn != nil && r.SameDay(*u.LastCheckIn, now) {
		return Refusal(KindAlreadyActedToday, "check-in")
	}
	return nil
}

// ApplyCheckIn credits the reward. Call only after CanCheckIn approved.
func (r Rules) ApplyCheckIn(u *User, now time.Time) {
	u.Balance += r.CheckInReward
	t := now
	u.LastCheckIn = &t
}

// CanPurchase gates both purchase and reactivation. There is no calendar window.
func (r Rules) CanPurchase(u *User) error {
	if u == nil {
		return Refusal(KindNotRegistered, "")
	}
	return nil
}

// WithdrawalQuote is the outcome of an approved payout request.
// Fixed quotes carry the amount; otherwise the user picks one in [Min, Max].
type WithdrawalQuote struct {
	Fixed  bool
	Amount int64
	Min    int64
	Max    int64
}

// CanWithdraw evaluates the payout entry rules. monthly must hold the
// user's withdrawals of the current calendar month.
func (r Rules) CanWithdraw(u *User, monthly []Withdraw, now time.Time) (WithdrawalQuote, error) {
	if u == nil {
		return WithdrawalQuote{}, Refusal(KindNotRegistered, "")
	}
	local := r.In(now)
	if day := local.Day(); day < r.WindowStartDay || day > r.WindowEndDay {
		return WithdrawalQuote{}, Refusal(KindIneligibleWindow,
			fmt.Sprintf("withdrawals open on days %d-%d", r.WindowStartDay, r.WindowEndDay))
	}
	if !u.Active() {
		return WithdrawalQuote{}, Refusal(KindInactiveAccount, "")
	}
	start, end := r.MonthRange(now)
	count := 0
	for _, w := range monthly {
		at := r.In(w.CreatedAt)
		if at.Before(start) || !at.Before(end) {
			continue
		}
		count++
		if at.Day() == local.Day() {
			return WithdrawalQuote{}, Refusal(KindLimitExceeded, ReasonDailyLimit)
		}
	}
	if count >= r.MonthlyWithdrawals {
		return WithdrawalQuote{}, Refusal(KindLimitExceeded, ReasonMonthlyLimit)
	}
	if count == 0 {
		if u.Balance < r.FirstWithdrawal {
			return WithdrawalQuote{}, shortfall(r.FirstWithdrawal, u.Balance)
		}
		return WithdrawalQuote{Fixed: true, Amount: r.FirstWithdrawal}, nil
	}
	return WithdrawalQuote{Min: r.MinWithdrawal, Max: r.MaxWithdrawal}, nil
}

// CheckWithdrawalAmount validates a user chosen amount against the bounds and balance.
func (r Rules) CheckWithdrawalAmount(u *User, amount int64) error {
	if u == nil {
		return Refusal(KindNotRegistered, "")
	}
	if amount < r.MinWithdrawal || amount > r.MaxWithdrawal {
		return Refusal(KindInvalidInput,
			fmt.Sprintf("amount must be within %d-%d", r.MinWithdrawal, r.MaxWithdrawal))
	}
	if u.Balance < amount {
		return shortfall(amount, u.Balance)
	}
	return nil
}

// CheckWithdrawal re-runs every payout rule for a concrete amount. It is
// evaluated inside the commit transaction so a stale dialog cannot overdraw.
func (r Rules) CheckWithdrawal(u *User, monthly []Withdraw, amount int64, now time.Time) error {
	quote, err := r.CanWithdraw(u, monthly, now)
	if err != nil {
		return err
	}
	if quote.Fixed {
		if amount != quote.Amount {
			return Refusal(KindInvalidInput, fmt.Sprintf("first withdrawal is fixed at %d", quote.Amount))
		}
		return nil
	}
	return r.CheckWithdrawalAmount(u, amount)
}

// ApplyWithdrawal debits the balance. Call only after CheckWithdrawal approved.
func (r Rules) ApplyWithdrawal(u *User, amount int64) {
	u.Balance -= amount
}

// CanMoveReferral requires at least one transfer unit in the referral balance.
func (r Rules) CanMoveReferral(u *User) error {
	if u == nil {
		return Refusal(KindNotRegistered, "")
	}
	if u.ReferralBalance < r.ReferralUnit {
		return shortfall(r.ReferralUnit, u.ReferralBalance)
	}
	return nil
}

// ApplyReferralMove transfers exactly one unit.
func (r Rules) ApplyReferralMove(u *User) {
	u.ReferralBalance -= r.ReferralUnit
	u.Balance += r.ReferralUnit
}
