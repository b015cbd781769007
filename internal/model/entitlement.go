package model

import "time"

// EntitlementStatus is the lifecycle state of an entitlement.
type EntitlementStatus string

const (
	EntitlementActive    EntitlementStatus = "active"
	EntitlementInactive  EntitlementStatus = "inactive"
	EntitlementExpired   EntitlementStatus = "expired"
	EntitlementCancelled EntitlementStatus = "cancelled"
)

// Entitlement is a purchased right to consume class occurrences within a
// validity window. Usage maps a usage bucket key (see schedule.BucketKey) to
// the number of occurrences already consumed in that bucket.
//
// Fields:
//
//	ID                  – document identifier (equals the paying intent id).
//	ParentID            – owning guardian.
//	ChildID             – child the entitlement is bound to, empty for any child.
//	PlanID              – plan it was bought from.
//	Type                – plan type at purchase time.
//	Status              – active, inactive, expired or cancelled.
//	ValidFrom, ValidTo  – inclusive validity window.
//	Limits              – credit limits per usage bucket.
//	Usage               – consumed credits per usage bucket.
//	CreatedFromIntentID – payment intent that produced it.
type Entitlement struct {
	ID                  string            `json:"id" bson:"_id"`
	ParentID            string            `json:"parentId" bson:"parentId"`
	ChildID             string            `json:"childId,omitempty" bson:"childId,omitempty"`
	PlanID              string            `json:"planId" bson:"planId"`
	Type                PlanType          `json:"type" bson:"type"`
	Status              EntitlementStatus `json:"status" bson:"status"`
	ValidFrom           time.Time         `json:"validFrom" bson:"validFrom"`
	ValidTo             time.Time         `json:"validTo" bson:"validTo"`
	Limits              CreditLimits      `json:"limits" bson:"limits"`
	Usage               map[string]int    `json:"usage" bson:"usage"`
	CreatedFromIntentID string            `json:"createdFromPaymentIntentId,omitempty" bson:"createdFromPaymentIntentId,omitempty"`
	CreatedAt           time.Time         `json:"createdAt" bson:"createdAt"`
	UpdatedAt           time.Time         `json:"updatedAt" bson:"updatedAt"`
}

// Normalize converts an entitlement read from storage into its typed form:
// nil usage becomes empty, missing status and period get their defaults and
// negative counters are clamped.
func (e *Entitlement) Normalize() {
	if e.Usage == nil {
		e.Usage = map[string]int{}
	}
	for k, v := range e.Usage {
		if v < 0 {
			e.Usage[k] = 0
		}
	}
	if e.Status == "" {
		e.Status = EntitlementInactive
	}
	if e.Limits.Period == "" {
		e.Limits.Period = PeriodNone
	}
	if e.Limits.Amount < 0 {
		e.Limits.Amount = 0
	}
}

// Covers reports whether the instant lies inside the validity window.
func (e *Entitlement) Covers(at time.Time) bool {
	return !at.Before(e.ValidFrom) && !at.After(e.ValidTo)
}

// Clone returns a deep copy.
func (e Entitlement) Clone() Entitlement {
	usage := make(map[string]int, len(e.Usage))
	for k, v := range e.Usage {
		usage[k] = v
	}
	e.Usage = usage
	return e
}
