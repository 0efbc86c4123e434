// Package dialog tracks per-user progress through multi-step conversations.
//
// A Session is a linear state machine: each step names the kind of input it
// expects, and text that does not match that kind leaves the session untouched.
package dialog

import (
	"errors"
	"time"
)

// Flow identifies the conversation a session belongs to.
type Flow string

const (
	FlowRegistration Flow = "registration"
	FlowPurchase     Flow = "purchase"
	FlowReactivation Flow = "reactivation"
	FlowWithdrawal   Flow = "withdrawal"
)

// Step is the position inside a flow.
type Step string

const (
	StepAwaitingUsername     Step = "awaiting_username"
	StepAwaitingPlan         Step = "awaiting_plan"
	StepAwaitingConfirmation Step = "awaiting_confirmation"
	StepAwaitingAmount       Step = "awaiting_amount"
	StepAwaitingUPI          Step = "awaiting_upi"
	StepAwaitingName         Step = "awaiting_name"
	StepDone                 Step = "done"
)

var (
	// ErrNoSession is returned by stores when the user has no open dialog.
	ErrNoSession = errors.New("dialog: no session")
	// ErrSessionExpired is returned once for a session idle longer than the TTL.
	ErrSessionExpired = errors.New("dialog: session expired")
)

// Session holds the step tag and the fields collected so far.
type Session struct {
	Flow       Flow      `json:"flow"`
	Step       Step      `json:"step"`
	Plan       string    `json:"plan,omitempty"`
	Amount     int64     `json:"amount,omitempty"`
	UPIID      string    `json:"upi_id,omitempty"`
	Name       string    `json:"name,omitempty"`
	Username   string    `json:"username,omitempty"`
	ReferrerID *int64    `json:"referrer_id,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func newSession(flow Flow, step Step, now time.Time) *Session {
	return &Session{Flow: flow, Step: step, StartedAt: now, UpdatedAt: now}
}

// NewRegistration opens the username prompt, keeping the referrer captured from /start.
func NewRegistration(referrer *int64, now time.Time) *Session {
	s := newSession(FlowRegistration, StepAwaitingUsername, now)
	s.ReferrerID = referrer
	return s
}

// NewPurchase opens the plan purchase flow.
func NewPurchase(now time.Time) *Session {
	return newSession(FlowPurchase, StepAwaitingPlan, now)
}

// NewReactivation opens the plan reactivation flow.
func NewReactivation(now time.Time) *Session {
	return newSession(FlowReactivation, StepAwaitingPlan, now)
}

// NewWithdrawal opens the payout flow. A fixed amount skips the amount step.
func NewWithdrawal(fixed bool, amount int64, now time.Time) *Session {
	if fixed {
		s := newSession(FlowWithdrawal, StepAwaitingUPI, now)
		s.Amount = amount
		return s
	}
	return newSession(FlowWithdrawal, StepAwaitingAmount, now)
}

// Done reports whether every field of the flow has been collected.
func (s *Session) Done() bool {
	return s != nil && s.Step == StepDone
}

// Expired reports whether the session has been idle longer than ttl.
func (s *Session) Expired(ttl time.Duration, now time.Time) bool {
	if s == nil || ttl <= 0 {
		return false
	}
	return now.Sub(s.UpdatedAt) > ttl
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.ReferrerID != nil {
		ref := *s.ReferrerID
		c.ReferrerID = &ref
	}
	return &c
}
