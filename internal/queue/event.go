// Package queue defines the domain events exchanged over the message broker
// and the RabbitMQ publisher and consumer that carry them.
package queue

// Routing keys on the events exchange.
const (
	RoutingReservationCreated = "reservation.created"
	RoutingPaymentFinalized   = "payment.finalized"
	RoutingPaymentFailed      = "payment.failed"
)

// ReservationCreatedEvent is published after reservations were committed,
// either by a credit booking or by a payment finalization.
type ReservationCreatedEvent struct {
	ParentID        string   `json:"parent_id"`
	ChildID         string   `json:"child_id"`
	ClassID         string   `json:"class_id"`
	ClassTitle      string   `json:"class_title,omitempty"`
	Dates           []string `json:"dates"`
	PaymentMethod   string   `json:"payment_method"`
	EntitlementID   string   `json:"entitlement_id,omitempty"`
	PaymentIntentID string   `json:"payment_intent_id,omitempty"`
	CreatedAt       string   `json:"created_at"`
}

// PaymentFinalizedEvent is published once per payment intent when its side
// effects were committed, and for failed payments with Status "failed".
type PaymentFinalizedEvent struct {
	IntentID              string   `json:"intent_id"`
	ParentID              string   `json:"parent_id"`
	PlanID                string   `json:"plan_id"`
	Status                string   `json:"status"`
	AmountCents           int64    `json:"amount_cents"`
	Currency              string   `json:"currency"`
	ProviderTransactionID string   `json:"provider_transaction_id,omitempty"`
	EntitlementID         string   `json:"entitlement_id,omitempty"`
	ReservedDates         []string `json:"reserved_dates,omitempty"`
	OccurredAt            string   `json:"occurred_at"`
}
