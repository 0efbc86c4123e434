package dialog

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Kind is the class of text a step accepts.
type Kind string

const (
	KindNone     Kind = ""
	KindUsername Kind = "username"
	KindPlan     Kind = "plan"
	KindKeyword  Kind = "keyword"
	KindAmount   Kind = "amount"
	KindUPI      Kind = "upi"
	KindName     Kind = "name"
)

// Plan names and confirmation keywords, compared case-insensitively.
const (
	PlanStarter           = "starter pack"
	PlanStarterReactivate = "starter pack re-activate"
	KeywordProceed        = "proceed"
	KeywordReactivate     = "re-activate"
)

var (
	amountPattern = regexp.MustCompile(`^\d+$`)
	upiPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+$`)
	namePattern   = regexp.MustCompile(`^[A-Za-z ]+$`)
)

// Input describes what the current step expects. Literal is set for plan and
// keyword steps.
type Input struct {
	Kind    Kind
	Literal string
}

// Outcome of feeding text into a session.
type Outcome int

const (
	// Ignored means the text did not match the expected input; nothing changed.
	Ignored Outcome = iota
	// Advanced means the session moved to its next step.
	Advanced
	// Completed means the flow collected everything and awaits its ledger effect.
	Completed
)

func (o Outcome) String() string {
	switch o {
	case Advanced:
		return "advanced"
	case Completed:
		return "completed"
	default:
		return "ignored"
	}
}

// Guard vets a candidate transition before it is applied. A non-nil error
// leaves the session at its current step.
type Guard func(next *Session) error

// Expects returns the input accepted by the current step.
func (s *Session) Expects() Input {
	if s == nil {
		return Input{}
	}
	switch s.Step {
	case StepAwaitingUsername:
		return Input{Kind: KindUsername}
	case StepAwaitingPlan:
		if s.Flow == FlowReactivation {
			return Input{Kind: KindPlan, Literal: PlanStarterReactivate}
		}
		return Input{Kind: KindPlan, Literal: PlanStarter}
	case StepAwaitingConfirmation:
		if s.Flow == FlowReactivation {
			return Input{Kind: KindKeyword, Literal: KeywordReactivate}
		}
		return Input{Kind: KindKeyword, Literal: KeywordProceed}
	case StepAwaitingAmount:
		return Input{Kind: KindAmount}
	case StepAwaitingUPI:
		return Input{Kind: KindUPI}
	case StepAwaitingName:
		return Input{Kind: KindName}
	}
	return Input{}
}

// Match reports whether text satisfies in and returns the normalized value.
func Match(in Input, text string) (string, bool) {
	switch in.Kind {
	case KindUsername:
		v := strings.TrimSpace(text)
		return v, v != ""
	case KindPlan, KindKeyword:
		v := strings.TrimSpace(text)
		return strings.ToLower(v), strings.EqualFold(v, in.Literal)
	case KindAmount:
		v := strings.TrimSpace(text)
		return v, amountPattern.MatchString(v)
	case KindUPI:
		return text, upiPattern.MatchString(text)
	case KindName:
		return text, namePattern.MatchString(text)
	}
	return "", false
}

// ParseAmount parses a whole rupee amount typed by the user.
func ParseAmount(text string) (int64, bool) {
	v := strings.TrimSpace(text)
	if !amountPattern.MatchString(v) {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Advance feeds text into the session. Non-matching text is Ignored with a nil
// error. When guard rejects the transition its error is returned and the
// session is unchanged.
func (s *Session) Advance(text string, now time.Time, guard Guard) (Outcome, error) {
	if s == nil || s.Done() {
		return Ignored, nil
	}
	value, ok := Match(s.Expects(), text)
	if !ok {
		return Ignored, nil
	}

	next := s.Clone()
	switch s.Step {
	case StepAwaitingUsername:
		next.Username = value
		next.Step = StepDone
	case StepAwaitingPlan:
		next.Plan = value
		next.Step = StepAwaitingConfirmation
	case StepAwaitingConfirmation:
		next.Step = StepDone
	case StepAwaitingAmount:
		amount, ok := ParseAmount(value)
		if !ok {
			return Ignored, nil
		}
		next.Amount = amount
		next.Step = StepAwaitingUPI
	case StepAwaitingUPI:
		next.UPIID = value
		next.Step = StepAwaitingName
	case StepAwaitingName:
		next.Name = value
		next.Step = StepDone
	default:
		return Ignored, nil
	}
	next.UpdatedAt = now

	if guard != nil {
		if err := guard(next); err != nil {
			return Ignored, err
		}
	}
	*s = *next
	if s.Done() {
		return Completed, nil
	}
	return Advanced, nil
}
