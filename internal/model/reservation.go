package model

import (
	"sort"
	"time"
)

// ReservationStatus is the state of a reservation.
type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "active"
	ReservationCancelled ReservationStatus = "cancelled"
)

// PaymentMethod records how a reservation or enrollment was paid for.
type PaymentMethod string

const (
	PaymentCredits PaymentMethod = "credits"
	PaymentOnline  PaymentMethod = "online"
	PaymentOneOff  PaymentMethod = "one_off"
)

// ReservationID builds the natural key of a reservation. Using it as the
// document id makes a retried create a no-op instead of a duplicate.
func ReservationID(childID, classID, date string) string {
	return childID + "__" + classID + "__" + date
}

// EnrollmentRequestID builds the key of the per child and class audit record.
func EnrollmentRequestID(classID, childID string) string {
	return classID + "_" + childID
}

// Reservation is one seat of one child in one class on one calendar date.
//
// Fields:
//
//	ID                    – natural key {childId}__{classId}__{date}.
//	ParentID              – guardian who booked.
//	ChildID               – child attending.
//	ClassID               – class attended.
//	Date                  – occurrence date, YYYY-MM-DD.
//	Status                – active or cancelled.
//	PaymentMethod         – credits, online or one_off.
//	EntitlementID         – entitlement debited (empty for one-off purchases).
//	PaymentIntentID       – intent that paid for it, when bought online.
//	ProviderTransactionID – gateway transaction reference, when bought online.
//	CreatedAt             – creation timestamp.
type Reservation struct {
	ID                    string            `json:"id" bson:"_id"`
	ParentID              string            `json:"parentId" bson:"parentId"`
	ChildID               string            `json:"childId" bson:"childId"`
	ClassID               string            `json:"classId" bson:"classId"`
	Date                  string            `json:"dateYMD" bson:"dateYMD"`
	Status                ReservationStatus `json:"status" bson:"status"`
	PaymentMethod         PaymentMethod     `json:"paymentMethod" bson:"paymentMethod"`
	EntitlementID         string            `json:"entitlementId,omitempty" bson:"entitlementId,omitempty"`
	PaymentIntentID       string            `json:"paymentIntentId,omitempty" bson:"paymentIntentId,omitempty"`
	ProviderTransactionID string            `json:"providerTransactionId,omitempty" bson:"providerTransactionId,omitempty"`
	CreatedAt             time.Time         `json:"createdAt" bson:"createdAt"`
}

// EnrollmentRequest summarizes, for display, every date a child was
// reserved into a class. It is an audit trail and never drives credit
// accounting.
type EnrollmentRequest struct {
	ID                    string        `json:"id" bson:"_id"`
	ParentID              string        `json:"parentId" bson:"parentId"`
	ChildID               string        `json:"childId" bson:"childId"`
	ClassID               string        `json:"classId" bson:"classId"`
	Status                string        `json:"status" bson:"status"`
	PaymentMethod         PaymentMethod `json:"paymentMethod" bson:"paymentMethod"`
	PaymentIntentID       string        `json:"paymentIntentId,omitempty" bson:"paymentIntentId,omitempty"`
	ProviderTransactionID string        `json:"providerTransactionId,omitempty" bson:"providerTransactionId,omitempty"`
	Dates                 []string      `json:"dates" bson:"dates"`
	CreatedAt             time.Time     `json:"createdAt" bson:"createdAt"`
	UpdatedAt             time.Time     `json:"updatedAt" bson:"updatedAt"`
}

// AddDates unions dates into the record keeping them sorted and unique.
func (r *EnrollmentRequest) AddDates(dates ...string) {
	seen := make(map[string]bool, len(r.Dates)+len(dates))
	out := make([]string, 0, len(r.Dates)+len(dates))
	for _, d := range append(append([]string{}, r.Dates...), dates...) {
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	sort.Strings(out)
	r.Dates = out
}

// Clone returns a deep copy.
func (r EnrollmentRequest) Clone() EnrollmentRequest {
	r.Dates = append([]string(nil), r.Dates...)
	return r
}
