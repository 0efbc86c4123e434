package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/m3rciful/growbot/core/logger"
	"github.com/m3rciful/growbot/internal/dialog"
	"github.com/m3rciful/growbot/internal/ledger"
)

// startSession stores a fresh session, replacing whatever flow was open.
func (h *Handlers) startSession(ctx context.Context, uid int64, s *dialog.Session) error {
	if err := h.sessions.Save(ctx, uid, s); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	h.rec.Session(string(s.Flow), "started")
	logger.Debug(ctx, component, "dialog.started",
		slog.Int64("user_id", uid),
		slog.String("flow", string(s.Flow)),
		slog.String("step", string(s.Step)),
	)
	return nil
}

// HandleText feeds free text into the user's open dialog. Without a session it
// returns no directives and no error.
func (h *Handlers) HandleText(ctx context.Context, uid int64, input string) ([]Directive, error) {
	const action = "dialog"
	sess, err := h.sessions.Load(ctx, uid)
	switch {
	case errors.Is(err, dialog.ErrNoSession):
		return nil, nil
	case errors.Is(err, dialog.ErrSessionExpired):
		h.rec.Session("unknown", "expired")
		lost := ledger.Refusal(ledger.KindSessionLost, "session expired")
		return h.done(action, one(text(msgSessionLost).withMenu(MainMenu)), lost)
	case err != nil:
		return h.failure(ctx, action, uid, fmt.Errorf("load session: %w", err))
	}

	switch sess.Flow {
	case dialog.FlowRegistration:
		return h.advanceRegistration(ctx, uid, sess, input)
	case dialog.FlowPurchase, dialog.FlowReactivation:
		return h.advanceDeposit(ctx, uid, sess, input)
	case dialog.FlowWithdrawal:
		return h.advanceWithdrawal(ctx, uid, sess, input)
	}
	// unknown flow: drop it so the user is not stuck
	_ = h.sessions.Delete(ctx, uid)
	lost := ledger.Refusal(ledger.KindSessionLost, "unknown flow "+string(sess.Flow))
	return h.done(action, one(text(msgSessionLost).withMenu(MainMenu)), lost)
}

// step applies text to the session and persists the result. Completed
// sessions are not saved: the caller commits the ledger effect and deletes
// the session, so a failed commit leaves the last step in place for a retry.
func (h *Handlers) step(ctx context.Context, uid int64, sess *dialog.Session, input string, guard dialog.Guard) (dialog.Outcome, error) {
	flow := string(sess.Flow)
	out, err := sess.Advance(input, h.ledger.Now(), guard)
	if err != nil {
		h.rec.DialogInput(flow, "rejected")
		return out, err
	}
	h.rec.DialogInput(flow, out.String())
	logger.Debug(ctx, component, "dialog.input",
		slog.Int64("user_id", uid),
		slog.String("flow", flow),
		slog.String("step", string(sess.Step)),
		slog.String("outcome", out.String()),
	)
	if out == dialog.Advanced {
		if err := h.sessions.Save(ctx, uid, sess); err != nil {
			return out, fmt.Errorf("save session: %w", err)
		}
	}
	return out, nil
}

// finish removes the session once the flow has produced its effect.
func (h *Handlers) finish(ctx context.Context, uid int64, flow dialog.Flow, event string) {
	if err := h.sessions.Delete(ctx, uid); err != nil {
		logger.Warn(ctx, component, "dialog.delete_failed",
			slog.Int64("user_id", uid),
			slog.String("err", err.Error()),
		)
	}
	h.rec.Session(string(flow), event)
}

func (h *Handlers) advanceRegistration(ctx context.Context, uid int64, sess *dialog.Session, input string) ([]Directive, error) {
	const action = "register"
	guard := func(next *dialog.Session) error {
		name, err := ledger.NormalizeUsername(next.Username)
		if err != nil {
			return err
		}
		taken, err := h.ledger.UsernameTaken(ctx, name)
		if err != nil {
			return err
		}
		if taken {
			return ledger.Refusal(ledger.KindDuplicateIdentity, "username taken")
		}
		next.Username = name
		return nil
	}

	out, err := h.step(ctx, uid, sess, input, guard)
	if err != nil {
		return h.registrationRefusal(ctx, uid, sess, action, err)
	}
	if out != dialog.Completed {
		return nil, nil
	}

	u, err := h.ledger.Register(ctx, uid, sess.Username, sess.ReferrerID)
	if err != nil {
		return h.registrationRefusal(ctx, uid, sess, action, err)
	}
	h.finish(ctx, uid, sess.Flow, "completed")
	return h.done(action, []Directive{
		markdown(fmt.Sprintf(msgRegistered, escape(u.Username))),
		markdown(msgMainMenu).withMenu(MainMenu),
	}, nil)
}

func (h *Handlers) registrationRefusal(ctx context.Context, uid int64, sess *dialog.Session, action string, err error) ([]Directive, error) {
	if !ledger.IsRefusal(err) {
		return h.failure(ctx, action, uid, err)
	}
	switch ledger.KindOf(err) {
	case ledger.KindDuplicateIdentity:
		// session stays at awaiting_username with the referrer intact
		return h.done(action, one(text(msgUsernameTaken)), err)
	case ledger.KindInvalidInput:
		return h.done(action, one(text(fmt.Sprintf(msgUsernameInvalid, ledger.MaxUsernameLength))), err)
	case ledger.KindCapacityExceeded:
		h.finish(ctx, uid, sess.Flow, "aborted")
		return h.done(action, one(text(fmt.Sprintf(msgRegistrationCap, h.ledger.Rules().RegistrationCap))), err)
	}
	h.finish(ctx, uid, sess.Flow, "aborted")
	return h.done(action, one(text(msgTryAgain)), err)
}

func (h *Handlers) advanceDeposit(ctx context.Context, uid int64, sess *dialog.Session, input string) ([]Directive, error) {
	reactivation := sess.Flow == dialog.FlowReactivation
	action := "purchase"
	if reactivation {
		action = "reactivate"
	}
	rules := h.ledger.Rules()

	out, err := h.step(ctx, uid, sess, input, nil)
	if err != nil {
		return h.failure(ctx, action, uid, err)
	}
	switch out {
	case dialog.Ignored:
		return nil, nil
	case dialog.Advanced:
		if reactivation {
			return h.done(action, one(markdown(fmt.Sprintf(msgReactivateConfirm, rules.ReactivationPrice))), nil)
		}
		return h.done(action, one(markdown(fmt.Sprintf(msgPurchaseConfirm, rules.PlanPrice))), nil)
	}

	d, err := h.ledger.PlaceDeposit(ctx, uid, reactivation)
	if err != nil {
		if !ledger.IsRefusal(err) {
			return h.failure(ctx, action, uid, err)
		}
		h.finish(ctx, uid, sess.Flow, "aborted")
		return h.done(action, notRegistered(), err)
	}
	h.finish(ctx, uid, sess.Flow, "completed")

	var reply Directive
	if d.IsReactivation {
		reply = markdown(fmt.Sprintf(msgReactivatePayment, d.Amount, h.payments.ReactivationURL, h.payments.ProofFormURL))
	} else {
		reply = markdown(fmt.Sprintf(msgPurchasePayment, h.payments.PurchaseURL, h.payments.ProofFormURL))
	}
	reply.DisablePreview = true
	return h.done(action, one(reply), nil)
}

func (h *Handlers) advanceWithdrawal(ctx context.Context, uid int64, sess *dialog.Session, input string) ([]Directive, error) {
	const action = "withdraw"
	guard := func(next *dialog.Session) error {
		if next.Step != dialog.StepAwaitingUPI || sess.Step != dialog.StepAwaitingAmount {
			return nil
		}
		return h.ledger.CheckWithdrawalAmount(ctx, uid, next.Amount)
	}

	out, err := h.step(ctx, uid, sess, input, guard)
	if err != nil {
		if !ledger.IsRefusal(err) {
			return h.failure(ctx, action, uid, err)
		}
		reply := h.withdrawRefusal(err)
		if ledger.KindOf(err) == ledger.KindInsufficientFunds {
			reply = msgInsufficient
		}
		return h.done(action, one(text(reply)), err)
	}
	switch out {
	case dialog.Ignored:
		return nil, nil
	case dialog.Advanced:
		if sess.Step == dialog.StepAwaitingName {
			return h.done(action, one(text(msgAskName)), nil)
		}
		return h.done(action, one(text(msgAskUPI)), nil)
	}

	_, w, err := h.ledger.Withdraw(ctx, uid, sess.Amount, sess.UPIID, sess.Name)
	if err != nil {
		if !ledger.IsRefusal(err) {
			return h.failure(ctx, action, uid, err)
		}
		h.finish(ctx, uid, sess.Flow, "aborted")
		reply := h.withdrawRefusal(err)
		if ledger.KindOf(err) == ledger.KindInsufficientFunds {
			reply = msgInsufficient
		}
		return h.done(action, one(text(reply)), err)
	}
	h.finish(ctx, uid, sess.Flow, "completed")
	logger.Info(ctx, component, "withdraw.requested",
		slog.Int64("user_id", uid),
		slog.Int64("amount", w.Amount),
		slog.String("withdraw_id", w.ID.String()),
	)
	return h.done(action, one(text(msgWithdrawSuccessful)), nil)
}
