package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/m3rciful/growbot/internal/dialog"
	"github.com/m3rciful/growbot/internal/ledger"
)

// Start greets a registered user or opens the registration dialog.
func (h *Handlers) Start(ctx context.Context, uid int64, payload string) ([]Directive, error) {
	const action = "start"
	ok, err := h.ledger.Exists(ctx, uid)
	if err != nil {
		return h.failure(ctx, action, uid, err)
	}
	if ok {
		return h.done(action, one(text(msgWelcomeBack).withMenu(MainMenu)), nil)
	}

	if err := h.ledger.RegistrationOpen(ctx); err != nil {
		if !ledger.IsRefusal(err) {
			return h.failure(ctx, action, uid, err)
		}
		return h.done(action, one(text(fmt.Sprintf(msgRegistrationCap, h.ledger.Rules().RegistrationCap))), err)
	}

	ref, err := h.ledger.ResolveReferrer(ctx, uid, payload)
	if err != nil {
		return h.failure(ctx, action, uid, err)
	}
	if err := h.startSession(ctx, uid, dialog.NewRegistration(ref, h.ledger.Now())); err != nil {
		return h.failure(ctx, action, uid, err)
	}
	return h.done(action, one(text(msgAskUsername)), nil)
}

// CheckIn credits the daily reward. A granted check-in yields two messages.
func (h *Handlers) CheckIn(ctx context.Context, uid int64) ([]Directive, error) {
	const action = "checkin"
	rules := h.ledger.Rules()
	u, err := h.ledger.CheckIn(ctx, uid)
	if err != nil {
		if !ledger.IsRefusal(err) {
			return h.failure(ctx, action, uid, err)
		}
		var reply Directive
		switch ledger.KindOf(err) {
		case ledger.KindNotRegistered:
			reply = text(msgNotRegistered).withMenu(MainMenu)
		case ledger.KindIneligibleWindow:
			reply = markdown(fmt.Sprintf(msgHoliday, ordinal(rules.HolidayDay)))
		case ledger.KindInactiveAccount:
			reply = text(msgCheckInInactive).withMenu(MainMenu)
		case ledger.KindAlreadyActedToday:
			reply = text(msgCheckedInAlready).withMenu(MainMenu)
		default:
			reply = text(msgTryAgain)
		}
		return h.done(action, one(reply), err)
	}
	return h.done(action, []Directive{
		markdown(fmt.Sprintf(msgCheckedIn, rules.CheckInReward)),
		markdown(fmt.Sprintf(msgCheckInBalance, u.Balance)),
	}, nil)
}

// Purchase opens the plan purchase dialog.
func (h *Handlers) Purchase(ctx context.Context, uid int64) ([]Directive, error) {
	return h.startDeposit(ctx, uid, false)
}

// Reactivate opens the plan reactivation dialog.
func (h *Handlers) Reactivate(ctx context.Context, uid int64) ([]Directive, error) {
	return h.startDeposit(ctx, uid, true)
}

func (h *Handlers) startDeposit(ctx context.Context, uid int64, reactivation bool) ([]Directive, error) {
	action, flow, prompt := "purchase", dialog.NewPurchase, msgPurchaseStart
	if reactivation {
		action, flow, prompt = "reactivate", dialog.NewReactivation, msgReactivateStart
	}
	u, err := h.ledger.User(ctx, uid)
	if err == nil {
		err = h.ledger.Rules().CanPurchase(u)
	}
	if err != nil {
		if !ledger.IsRefusal(err) {
			return h.failure(ctx, action, uid, err)
		}
		return h.done(action, notRegistered(), err)
	}
	if err := h.startSession(ctx, uid, flow(h.ledger.Now())); err != nil {
		return h.failure(ctx, action, uid, err)
	}
	return h.done(action, one(markdown(fmt.Sprintf(prompt, escape(u.Username)))), nil)
}

// Payout evaluates the withdrawal entry rules and opens the payout dialog.
func (h *Handlers) Payout(ctx context.Context, uid int64) ([]Directive, error) {
	const action = "payout"
	_, quote, err := h.ledger.QuoteWithdrawal(ctx, uid)
	if err != nil {
		if !ledger.IsRefusal(err) {
			return h.failure(ctx, action, uid, err)
		}
		return h.done(action, one(text(h.withdrawRefusal(err))), err)
	}
	if err := h.startSession(ctx, uid, dialog.NewWithdrawal(quote.Fixed, quote.Amount, h.ledger.Now())); err != nil {
		return h.failure(ctx, action, uid, err)
	}
	if quote.Fixed {
		return h.done(action, one(text(fmt.Sprintf(msgWithdrawFixed, quote.Amount))), nil)
	}
	return h.done(action, one(text(fmt.Sprintf(msgWithdrawAskAmount, quote.Min, quote.Max))), nil)
}

func (h *Handlers) withdrawRefusal(err error) string {
	rules := h.ledger.Rules()
	switch ledger.KindOf(err) {
	case ledger.KindNotRegistered:
		return msgNotRegistered
	case ledger.KindIneligibleWindow:
		return fmt.Sprintf(msgWithdrawWindow, ordinal(rules.WindowStartDay), ordinal(rules.WindowEndDay))
	case ledger.KindLimitExceeded, ledger.KindAlreadyActedToday:
		if ledger.ReasonOf(err) == ledger.ReasonMonthlyLimit {
			return fmt.Sprintf(msgWithdrawMonthly, rules.MonthlyWithdrawals)
		}
		return msgWithdrawDaily
	case ledger.KindInactiveAccount:
		return msgWithdrawInactive
	case ledger.KindInsufficientFunds:
		return fmt.Sprintf(msgWithdrawMinimum, rules.FirstWithdrawal)
	case ledger.KindInvalidInput:
		return fmt.Sprintf(msgWithdrawBadAmount, rules.MinWithdrawal, rules.MaxWithdrawal)
	}
	return msgTryAgain
}

// DepositHistory lists the retained deposits, newest first.
func (h *Handlers) DepositHistory(ctx context.Context, uid int64) ([]Directive, error) {
	const action = "deposit_history"
	if _, err := h.ledger.User(ctx, uid); err != nil {
		return h.userError(ctx, action, uid, err)
	}
	deposits, err := h.ledger.Deposits(ctx, uid)
	if err != nil {
		return h.failure(ctx, action, uid, err)
	}
	if len(deposits) == 0 {
		return h.done(action, one(text(msgNoDeposits)), nil)
	}

	rules := h.ledger.Rules()
	var b strings.Builder
	b.WriteString("📂 *Your Deposit History:*\n\n")
	for _, d := range deposits {
		kind := "Purchasing"
		if d.IsReactivation {
			kind = "Re-activating"
		}
		fmt.Fprintf(&b, "💰 *Amount:* ₹%d\n📅 *Date:* %s\n✅ *Status:* %s\n🔄 *Type:* %s\n-------------------------\n",
			d.Amount, rules.In(d.CreatedAt).Format("2006-01-02"), capitalize(string(d.Status)), kind)
	}
	return h.done(action, one(markdown(b.String())), nil)
}

// WithdrawHistory lists the latest withdrawals.
func (h *Handlers) WithdrawHistory(ctx context.Context, uid int64) ([]Directive, error) {
	const action = "withdraw_history"
	if _, err := h.ledger.User(ctx, uid); err != nil {
		return h.userError(ctx, action, uid, err)
	}
	withdrawals, err := h.ledger.Withdrawals(ctx, uid)
	if err != nil {
		return h.failure(ctx, action, uid, err)
	}
	if len(withdrawals) == 0 {
		return h.done(action, one(text(msgNoWithdrawals)), nil)
	}

	rules := h.ledger.Rules()
	var b strings.Builder
	b.WriteString("📂 *Your Withdrawal History:*\n\n")
	for _, w := range withdrawals {
		fmt.Fprintf(&b, "💰 *Amount:* ₹%d\n📅 *Date:* %s\n🔄 *Status:* %s\n💳 *Type:* UPI\n------------------------\n",
			w.Amount, rules.In(w.CreatedAt).Format("2006-01-02"), w.Status)
	}
	return h.done(action, one(markdown(b.String())), nil)
}

// Balance shows the main balance.
func (h *Handlers) Balance(ctx context.Context, uid int64) ([]Directive, error) {
	const action = "balance"
	u, err := h.ledger.User(ctx, uid)
	if err != nil {
		return h.userError(ctx, action, uid, err)
	}
	return h.done(action, one(markdown(fmt.Sprintf(msgBalance, escape(u.Username), u.Balance))), nil)
}

// Affiliate shows the referral link and earnings with the move-to-balance button.
func (h *Handlers) Affiliate(ctx context.Context, uid int64, botUsername string) ([]Directive, error) {
	const action = "affiliate"
	u, err := h.ledger.User(ctx, uid)
	if err != nil {
		return h.userError(ctx, action, uid, err)
	}
	referrals, err := h.ledger.Referrals(ctx, uid)
	if err != nil {
		return h.failure(ctx, action, uid, err)
	}

	rules := h.ledger.Rules()
	link := fmt.Sprintf("https://t.me/%s?start=%d", botUsername, uid)
	d := markdown(fmt.Sprintf(msgAffiliate,
		escape(u.Username), referrals, u.ReferralBalance, link, link, rules.ReferralReward, rules.ReferralUnit))
	d.DisablePreview = true
	d.Inline = []InlineButton{{Text: msgMoveButton, Unique: CallbackMoveToBalance}}
	return h.done(action, one(d), nil)
}

// MoveToBalance transfers one referral unit. Replies are callback alerts.
func (h *Handlers) MoveToBalance(ctx context.Context, uid int64) ([]Directive, error) {
	const action = "move_to_balance"
	rules := h.ledger.Rules()
	_, err := h.ledger.MoveReferral(ctx, uid)
	if err != nil {
		if !ledger.IsRefusal(err) {
			_, err = h.failure(ctx, action, uid, err)
			return one(alert(msgMoveFailed)), err
		}
		reply := alert(fmt.Sprintf(msgMoveShortfall, rules.ReferralUnit))
		if ledger.KindOf(err) == ledger.KindNotRegistered {
			reply = alert(msgNotRegistered)
		}
		return h.done(action, one(reply), err)
	}
	return h.done(action, one(alert(fmt.Sprintf(msgMoved, rules.ReferralUnit))), nil)
}

// Profile shows the account summary.
func (h *Handlers) Profile(ctx context.Context, uid int64) ([]Directive, error) {
	const action = "profile"
	u, err := h.ledger.User(ctx, uid)
	if err != nil {
		return h.userError(ctx, action, uid, err)
	}
	status := "❌ Inactive"
	if u.Active() {
		status = "✅ Active"
	}
	since := h.ledger.Rules().In(u.RegisteredAt).Format("02 Jan 2006")
	return h.done(action, one(markdown(fmt.Sprintf(msgProfile, escape(u.Username), u.UID, status, since))), nil)
}

// userError answers a failed user lookup.
func (h *Handlers) userError(ctx context.Context, action string, uid int64, err error) ([]Directive, error) {
	if !ledger.IsRefusal(err) {
		return h.failure(ctx, action, uid, err)
	}
	return h.done(action, notRegistered(), err)
}

// Static screens.

func (h *Handlers) MainMenu() []Directive {
	return one(markdown(msgMainMenu).withMenu(MainMenu))
}

func (h *Handlers) BackToMain() []Directive {
	return one(text(msgReturningMain).withMenu(MainMenu))
}

func (h *Handlers) About() []Directive {
	return one(markdown(aboutText(h.ledger.Rules())).withMenu(MainMenu))
}

func (h *Handlers) DepositMenu() []Directive {
	return one(markdown(msgDepositMenu).withMenu(DepositMenu))
}

func (h *Handlers) DepositRules() []Directive {
	return one(markdown(msgDepositRules).withMenu(DepositMenu))
}

func (h *Handlers) Plans() []Directive {
	return one(markdown(plansText(h.ledger.Rules())).withMenu(DepositMenu))
}

func (h *Handlers) PurchaseMenu() []Directive {
	return one(markdown(msgPurchaseMenu).withMenu(PurchaseMenu))
}

func (h *Handlers) WithdrawMenu() []Directive {
	return one(markdown(msgWithdrawMenu).withMenu(WithdrawMenu))
}

func (h *Handlers) WithdrawRules() []Directive {
	return one(markdown(withdrawRulesText(h.ledger.Rules())))
}
