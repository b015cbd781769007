package model

import (
	"strings"
	"time"
)

// IntentStatus is the state of a payment intent.
type IntentStatus string

const (
	IntentCreated    IntentStatus = "created"
	IntentRedirected IntentStatus = "redirected"
	IntentPaid       IntentStatus = "paid"
	IntentFailed     IntentStatus = "failed"
	IntentCancelled  IntentStatus = "cancelled"
)

// ProviderTpay is the only payment provider.
const ProviderTpay = "tpay"

// IntentMetadata carries the purchase context: which class and child the
// payment is for and which dates should be reserved once it is paid.
type IntentMetadata struct {
	ClassID   string   `json:"classId,omitempty" bson:"classId,omitempty"`
	ChildID   string   `json:"childId,omitempty" bson:"childId,omitempty"`
	EnrollNow bool     `json:"enrollNow,omitempty" bson:"enrollNow,omitempty"`
	DateYMD   string   `json:"dateYMD,omitempty" bson:"dateYMD,omitempty"`
	Dates     []string `json:"dates,omitempty" bson:"dates,omitempty"`
}

// ReserveDates returns the trimmed, de-duplicated, sorted dates to reserve
// on finalization. Dates wins over the single DateYMD field.
func (m IntentMetadata) ReserveDates() []string {
	src := m.Dates
	if len(src) == 0 && strings.TrimSpace(m.DateYMD) != "" {
		src = []string{m.DateYMD}
	}
	r := EnrollmentRequest{}
	trimmed := make([]string, 0, len(src))
	for _, d := range src {
		trimmed = append(trimmed, strings.TrimSpace(d))
	}
	r.AddDates(trimmed...)
	return r.Dates
}

// PaymentIntent is a pending or resolved online payment.
//
// Fields:
//
//	ID                    – opaque intent id, sent to the gateway as the correlation id.
//	ParentID              – paying guardian.
//	PlanID                – plan being bought.
//	AmountCents           – amount in the smallest currency unit.
//	Currency              – ISO currency code.
//	Email                 – payer contact for the gateway.
//	Description           – text shown on the gateway page.
//	Provider              – payment provider name.
//	ProviderTransactionID – gateway transaction id.
//	ProviderTitle         – gateway transaction title.
//	Status                – created, redirected, paid, failed or cancelled.
//	Metadata              – purchase context.
//	PaidAt                – when the gateway confirmed the payment.
//	FinalizedAt           – set exactly once when side effects were committed.
//	ProcessingAt          – advisory processing lease, never used for correctness.
type PaymentIntent struct {
	ID                    string         `json:"id" bson:"_id"`
	ParentID              string         `json:"parentId" bson:"parentId"`
	PlanID                string         `json:"planId" bson:"planId"`
	AmountCents           int64          `json:"amountCents" bson:"amountCents"`
	Currency              string         `json:"currency" bson:"currency"`
	Email                 string         `json:"email,omitempty" bson:"email,omitempty"`
	Description           string         `json:"description,omitempty" bson:"description,omitempty"`
	Provider              string         `json:"provider,omitempty" bson:"provider,omitempty"`
	ProviderTransactionID string         `json:"providerTransactionId,omitempty" bson:"providerTransactionId,omitempty"`
	ProviderTitle         string         `json:"providerTitle,omitempty" bson:"providerTitle,omitempty"`
	Status                IntentStatus   `json:"status" bson:"status"`
	Metadata              IntentMetadata `json:"metadata" bson:"metadata"`
	CreatedAt             time.Time      `json:"createdAt" bson:"createdAt"`
	UpdatedAt             time.Time      `json:"updatedAt" bson:"updatedAt"`
	PaidAt                *time.Time     `json:"paidAt,omitempty" bson:"paidAt,omitempty"`
	FinalizedAt           *time.Time     `json:"finalizedAt,omitempty" bson:"finalizedAt,omitempty"`
	ProcessingAt          *time.Time     `json:"processingAt,omitempty" bson:"processingAt,omitempty"`
}

// Normalize applies defaults to an intent read from storage.
func (p *PaymentIntent) Normalize() {
	if p.Status == "" {
		p.Status = IntentCreated
	}
	if p.Currency == "" {
		p.Currency = "PLN"
	}
	p.Metadata.ClassID = strings.TrimSpace(p.Metadata.ClassID)
	p.Metadata.ChildID = strings.TrimSpace(p.Metadata.ChildID)
}

// Finalized reports whether the intent's side effects were committed.
func (p *PaymentIntent) Finalized() bool { return p.FinalizedAt != nil }

// LeaseHeld reports whether another worker claimed the intent less than ttl ago.
func (p *PaymentIntent) LeaseHeld(now time.Time, ttl time.Duration) bool {
	return p.ProcessingAt != nil && now.Sub(*p.ProcessingAt) < ttl
}

// Clone returns a deep copy.
func (p PaymentIntent) Clone() PaymentIntent {
	p.Metadata.Dates = append([]string(nil), p.Metadata.Dates...)
	p.PaidAt = cloneTime(p.PaidAt)
	p.FinalizedAt = cloneTime(p.FinalizedAt)
	p.ProcessingAt = cloneTime(p.ProcessingAt)
	return p
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
