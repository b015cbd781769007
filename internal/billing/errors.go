package billing

import "errors"

var (
	ErrIntentNotFound  = errors.New("billing: payment intent not found")
	ErrPlanNotFound    = errors.New("billing: plan not found")
	ErrPlanInactive    = errors.New("billing: plan inactive")
	ErrChildRequired   = errors.New("billing: plan scope child requires a child")
	ErrNotCovered      = errors.New("billing: plan not valid for date")
	ErrLimitExceeded   = errors.New("billing: enrollment exceeds plan credits")
	ErrAmountMismatch  = errors.New("billing: paid amount does not match intent")
	ErrIntentState     = errors.New("billing: payment intent cannot be paid in its current state")
	ErrInvalidAmount   = errors.New("billing: invalid amount")
	ErrEmailRequired   = errors.New("billing: payer email required")
	ErrGatewayDisabled = errors.New("billing: payment gateway not configured")
	ErrGateway         = errors.New("billing: payment gateway error")
)
