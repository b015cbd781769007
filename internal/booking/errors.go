package booking

import (
	"errors"
	"fmt"
)

// Reason is the client-facing code of a business rule failure.
type Reason string

const (
	ReasonExpired       Reason = "EXPIRED"
	ReasonInactive      Reason = "INACTIVE"
	ReasonNoCredits     Reason = "NO_CREDITS"
	ReasonInvalidDate   Reason = "INVALID_DATE"
	ReasonNoEntitlement Reason = "NO_ENTITLEMENT"
)

// Error is a typed business rule failure. Any Error raised inside a
// transaction aborts it.
type Error struct {
	Reason Reason
	Date   string // offending date, when the failure is about one
	Msg    string
}

func (e *Error) Error() string {
	if e.Date != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Reason, e.Msg, e.Date)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Msg)
}

func newError(r Reason, date, msg string) *Error {
	return &Error{Reason: r, Date: date, Msg: msg}
}

// ReasonOf extracts the Reason from err, or "" when err is not an *Error.
func ReasonOf(err error) Reason {
	var be *Error
	if errors.As(err, &be) {
		return be.Reason
	}
	return ""
}

// Validation and authorization failures rejected before any transaction.
var (
	ErrBadRequest      = errors.New("bad request")
	ErrChildNotFound   = errors.New("child not found")
	ErrClassNotFound   = errors.New("class not found")
	ErrClassInactive   = errors.New("class not active")
	ErrForbidden       = errors.New("forbidden")
	ErrEntitlementGone = errors.New("entitlement missing")
)
