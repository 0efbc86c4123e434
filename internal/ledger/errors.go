package ledger

import (
	"errors"
	"fmt"
)

// Kind enumerates the reasons an action can be refused.
type Kind string

const (
	KindNotRegistered     Kind = "not_registered"
	KindDuplicateIdentity Kind = "duplicate_identity"
	KindCapacityExceeded  Kind = "capacity_exceeded"
	KindIneligibleWindow  Kind = "ineligible_window"
	KindAlreadyActedToday Kind = "already_acted_today"
	KindLimitExceeded     Kind = "limit_exceeded"
	KindInsufficientFunds Kind = "insufficient_funds"
	KindInactiveAccount   Kind = "inactive_account"
	KindInvalidInput      Kind = "invalid_input"
	KindSessionLost       Kind = "session_lost"
	KindStorageFailure    Kind = "storage_failure"
)

// Sentinel errors, one per Kind. Use errors.Is against these.
var (
	ErrNotRegistered     = errors.New("user is not registered")
	ErrDuplicateIdentity = errors.New("username already taken")
	ErrCapacityExceeded  = errors.New("registration limit reached")
	ErrIneligibleWindow  = errors.New("action not allowed on this day")
	ErrAlreadyActedToday = errors.New("action already performed today")
	ErrLimitExceeded     = errors.New("frequency limit reached")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInactiveAccount   = errors.New("account is inactive")
	ErrInvalidInput      = errors.New("invalid input")
	ErrSessionLost       = errors.New("dialog session lost")
	ErrStorageFailure    = errors.New("storage failure")

	// ErrNotFound is returned by stores when a lookup matches nothing.
	ErrNotFound = errors.New("record not found")
)

var sentinels = map[Kind]error{
	KindNotRegistered:     ErrNotRegistered,
	KindDuplicateIdentity: ErrDuplicateIdentity,
	KindCapacityExceeded:  ErrCapacityExceeded,
	KindIneligibleWindow:  ErrIneligibleWindow,
	KindAlreadyActedToday: ErrAlreadyActedToday,
	KindLimitExceeded:     ErrLimitExceeded,
	KindInsufficientFunds: ErrInsufficientFunds,
	KindInactiveAccount:   ErrInactiveAccount,
	KindInvalidInput:      ErrInvalidInput,
	KindSessionLost:       ErrSessionLost,
	KindStorageFailure:    ErrStorageFailure,
}

// Reasons attached to LimitExceeded refusals.
const (
	ReasonDailyLimit   = "daily limit"
	ReasonMonthlyLimit = "monthly limit"
)

// RuleError is a refusal carrying the rule that fired and the amounts involved.
type RuleError struct {
	Kind      Kind
	Reason    string
	Required  int64
	Available int64
}

func (e *RuleError) Error() string {
	msg := string(e.Kind)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Required > 0 {
		msg += fmt.Sprintf(" (required %d, available %d)", e.Required, e.Available)
	}
	return msg
}

// Unwrap exposes the sentinel for errors.Is.
func (e *RuleError) Unwrap() error {
	return sentinels[e.Kind]
}

// Code is picked up by the router summary log as err_code.
func (e *RuleError) Code() string {
	return string(e.Kind)
}

// Refused marks the error as an expected business outcome for the router log.
func (e *RuleError) Refused() bool {
	return true
}

// Refusal builds a RuleError of the given kind.
func Refusal(kind Kind, reason string) *RuleError {
	return &RuleError{Kind: kind, Reason: reason}
}

func shortfall(required, available int64) *RuleError {
	return &RuleError{Kind: KindInsufficientFunds, Required: required, Available: available}
}

// KindOf maps any error to its refusal kind. Unknown errors are storage failures.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var re *RuleError
	if errors.As(err, &re) {
		return re.Kind
	}
	for kind, sentinel := range sentinels {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindStorageFailure
}

// IsRefusal reports whether err is a business rule refusal rather than an infrastructure error.
func IsRefusal(err error) bool {
	k := KindOf(err)
	return k != "" && k != KindStorageFailure
}

// ReasonOf returns the reason of a RuleError, or "".
func ReasonOf(err error) string {
	var re *RuleError
	if errors.As(err, &re) {
		return re.Reason
	}
	return ""
}
