package handlers

import (
	"context"
	"log/slog"

	"github.com/m3rciful/growbot/core/logger"
	"github.com/m3rciful/growbot/internal/dialog"
	"github.com/m3rciful/growbot/internal/ledger"
)

const component = "handlers"

// Recorder receives action and dialog outcomes. *metrics.Metrics satisfies it.
type Recorder interface {
	Action(action, outcome string)
	DialogInput(flow, result string)
	Session(flow, event string)
}

type nopRecorder struct{}

func (nopRecorder) Action(string, string)      {}
func (nopRecorder) DialogInput(string, string) {}
func (nopRecorder) Session(string, string)     {}

// Payments holds the external links shown after a deposit is placed.
type Payments struct {
	PurchaseURL     string `yaml:"purchase_url" envconfig:"PAYMENTS_PURCHASE_URL"`
	ReactivationURL string `yaml:"reactivation_url" envconfig:"PAYMENTS_REACTIVATION_URL"`
	ProofFormURL    string `yaml:"proof_form_url" envconfig:"PAYMENTS_PROOF_FORM_URL"`
}

// DefaultPayments returns the production payment links.
func DefaultPayments() Payments {
	return Payments{
		PurchaseURL:     "https://superprofile.bio/vp/67db95df6268760013723595",
		ReactivationURL: "https://superprofile.bio/vp/67db95713522a40013bbfaf7",
		ProofFormURL:    "https://forms.gle/oiVxY9s2NEUykm3m8",
	}
}

// Option configures Handlers.
type Option func(*Handlers)

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(h *Handlers) {
		if r != nil {
			h.rec = r
		}
	}
}

// WithPayments overrides DefaultPayments.
func WithPayments(p Payments) Option {
	return func(h *Handlers) { h.payments = p }
}

// Handlers orchestrates one user action per call. Every action returns the
// directives to render and, when the action was refused or failed, the error
// for logging. Directives are returned in both cases.
type Handlers struct {
	ledger   *ledger.Service
	sessions dialog.Store
	payments Payments
	rec      Recorder
}

// New wires the handlers.
func New(svc *ledger.Service, sessions dialog.Store, opts ...Option) *Handlers {
	h := &Handlers{
		ledger:   svc,
		sessions: sessions,
		payments: DefaultPayments(),
		rec:      nopRecorder{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// outcome labels err for metrics: "ok" or its ledger kind.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return string(ledger.KindOf(err))
}

// failure logs an infrastructure error and returns the generic retry reply.
func (h *Handlers) failure(ctx context.Context, action string, uid int64, err error) ([]Directive, error) {
	logger.Error(ctx, component, "action.failed",
		slog.String("action", action),
		slog.Int64("user_id", uid),
		slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
	)
	h.rec.Action(action, string(ledger.KindStorageFailure))
	return one(text(msgTryAgain)), err
}

// done records the action and passes its result through.
func (h *Handlers) done(action string, ds []Directive, err error) ([]Directive, error) {
	h.rec.Action(action, outcome(err))
	return ds, err
}

// notRegistered is the common reply for actions by unknown users.
func notRegistered() []Directive {
	return one(text(msgNotRegistered))
}
