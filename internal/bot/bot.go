// Package bot binds the ledger handlers to the Telegram transport: commands,
// reply keyboard labels, the affiliate callback and dialog text.
package bot

import (
	"context"
	"fmt"
	"strings"

	tg "github.com/m3rciful/growbot/core/telegram"
	"github.com/m3rciful/growbot/core/telegram/commands"
	tghelpers "github.com/m3rciful/growbot/core/telegram/helpers"
	"github.com/m3rciful/growbot/core/telegram/router"
	"github.com/m3rciful/growbot/internal/handlers"

	tele "gopkg.in/telebot.v4"
)

type action func(ctx context.Context, uid int64) ([]handlers.Directive, error)

// Bot adapts handlers to telebot handler funcs.
type Bot struct {
	h        *handlers.Handlers
	username string
}

// New returns a Bot serving h.
func New(h *handlers.Handlers) *Bot {
	return &Bot{h: h}
}

// Register binds the /start command, every menu label and the
// move-to-balance callback.
func (b *Bot) Register(reg *tg.Registry) error {
	if reg == nil {
		return fmt.Errorf("bot: nil registry")
	}
	reg.RegisterCommand("/start", commands.Command{
		Handler:     b.start,
		Description: "Register or open the main menu",
	})

	static := func(fn func() []handlers.Directive) action {
		return func(context.Context, int64) ([]handlers.Directive, error) {
			return fn(), nil
		}
	}
	labels := map[string]action{
		handlers.LabelCheckIn:         b.h.CheckIn,
		handlers.LabelAbout:           static(b.h.About),
		handlers.LabelDeposit:         static(b.h.DepositMenu),
		handlers.LabelWithdraw:        static(b.h.WithdrawMenu),
		handlers.LabelBalance:         b.h.Balance,
		handlers.LabelAffiliate:       b.affiliate,
		handlers.LabelProfile:         b.h.Profile,
		handlers.LabelDepositRules:    static(b.h.DepositRules),
		handlers.LabelPlans:           static(b.h.Plans),
		handlers.LabelPurchase:        static(b.h.PurchaseMenu),
		handlers.LabelDepositHistory:  b.h.DepositHistory,
		handlers.LabelBackToMain:      static(b.h.BackToMain),
		handlers.LabelPurchasePlan:    b.h.Purchase,
		handlers.LabelReactivatePlan:  b.h.Reactivate,
		handlers.LabelBackToDeposit:   static(b.h.DepositMenu),
		handlers.LabelWithdrawRules:   static(b.h.WithdrawRules),
		handlers.LabelPayout:          b.h.Payout,
		handlers.LabelWithdrawHistory: b.h.WithdrawHistory,
	}
	for label, fn := range labels {
		reg.RegisterText(label, b.reply(fn))
	}

	return reg.RegisterCallback(handlers.CallbackMoveToBalance, b.reply(b.h.MoveToBalance))
}

// Routes registers everything on rt.Registry and returns the telebot routes.
// It runs once the bot identity is known so referral links carry the username.
func (b *Bot) Routes(rt tg.Runtime) ([]tg.Route, error) {
	if rt.Bot != nil && rt.Bot.Me != nil {
		b.username = rt.Bot.Me.Username
	}
	if err := b.Register(rt.Registry); err != nil {
		return nil, err
	}

	routes := router.CommandRoutes(rt.Registry)
	routes = append(routes, router.CallbackRoute(rt.Registry, router.CallbackOptions{}))
	routes = append(routes, router.TextRoutes(b, rt.Registry, router.TextOptions{})...)
	return routes, nil
}

// Handle feeds free text into the sender's open dialog. Text that produced
// no reply and no error is reported as unhandled.
func (b *Bot) Handle(c tele.Context) (bool, error) {
	sender := c.Sender()
	if sender == nil {
		return false, nil
	}
	ctx := tghelpers.BuildContext(c)
	ds, err := b.h.HandleText(ctx, sender.ID, c.Text())
	if len(ds) == 0 && err == nil {
		return false, nil
	}
	return true, Render(c, ds, err)
}

func (b *Bot) start(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	var payload string
	if msg := c.Message(); msg != nil {
		payload = strings.TrimSpace(msg.Payload)
	}
	ds, err := b.h.Start(tghelpers.BuildContext(c), sender.ID, payload)
	return Render(c, ds, err)
}

func (b *Bot) affiliate(ctx context.Context, uid int64) ([]handlers.Directive, error) {
	return b.h.Affiliate(ctx, uid, b.username)
}

func (b *Bot) reply(fn action) tele.HandlerFunc {
	return func(c tele.Context) error {
		sender := c.Sender()
		if sender == nil {
			return nil
		}
		ds, err := fn(tghelpers.BuildContext(c), sender.ID)
		return Render(c, ds, err)
	}
}
