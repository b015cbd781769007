// Package store defines the persistence contract of the booking engine: a
// document store addressed by deterministic ids with an atomic
// read-modify-write transaction primitive. Backends live in subpackages.
package store

import (
	"context"
	"errors"

	"github.com/iliyamo/kids-class-booking/internal/model"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict is returned when a transaction lost a race and could not be
	// committed after the backend's own retries.
	ErrConflict = errors.New("store: transaction conflict")
)

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// EntitlementFilter narrows ListEntitlements. Empty fields are not applied.
type EntitlementFilter struct {
	ParentID string
	PlanID   string
	ChildID  string
	Status   model.EntitlementStatus
}

// Match reports whether e satisfies the filter.
func (f EntitlementFilter) Match(e *model.Entitlement) bool {
	if f.ParentID != "" && e.ParentID != f.ParentID {
		return false
	}
	if f.PlanID != "" && e.PlanID != f.PlanID {
		return false
	}
	if f.ChildID != "" && e.ChildID != f.ChildID {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	return true
}

// Reader exposes the document lookups. Reads made outside a transaction are
// advisory and must never decide a mutation.
type Reader interface {
	GetClass(ctx context.Context, id string) (*model.Class, error)
	GetChild(ctx context.Context, id string) (*model.Child, error)
	GetPlan(ctx context.Context, id string) (*model.Plan, error)
	GetEntitlement(ctx context.Context, id string) (*model.Entitlement, error)
	GetReservation(ctx context.Context, id string) (*model.Reservation, error)
	GetPaymentIntent(ctx context.Context, id string) (*model.PaymentIntent, error)
	GetEnrollmentRequest(ctx context.Context, id string) (*model.EnrollmentRequest, error)
	ListEntitlements(ctx context.Context, f EntitlementFilter) ([]model.Entitlement, error)
}

// Tx is the view of the store inside one atomic transaction. Reads observe a
// consistent snapshot including the transaction's own writes. Put methods
// replace the whole document under its id.
type Tx interface {
	Reader
	PutClass(ctx context.Context, c *model.Class) error
	PutChild(ctx context.Context, c *model.Child) error
	PutPlan(ctx context.Context, p *model.Plan) error
	PutEntitlement(ctx context.Context, e *model.Entitlement) error
	PutReservation(ctx context.Context, r *model.Reservation) error
	PutPaymentIntent(ctx context.Context, p *model.PaymentIntent) error
	PutEnrollmentRequest(ctx context.Context, r *model.EnrollmentRequest) error
}

// TxFunc is the body of a transaction. Returning an error discards every
// write made through tx.
type TxFunc func(ctx context.Context, tx Tx) error

// Store is implemented by every backend.
type Store interface {
	Reader
	// RunInTx runs fn atomically. Backends may call fn more than once when a
	// concurrent transaction wins a race, so fn must not have side effects
	// outside tx.
	RunInTx(ctx context.Context, fn TxFunc) error
	Close(ctx context.Context) error
}
