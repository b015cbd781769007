// Package booking is the transactional core: it turns a validated request
// for class dates into reservations while debiting exactly the credits
// consumed, inside a single store transaction.
package booking

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/iliyamo/kids-class-booking/internal/entitlement"
	"github.com/iliyamo/kids-class-booking/internal/model"
	"github.com/iliyamo/kids-class-booking/internal/schedule"
	"github.com/iliyamo/kids-class-booking/internal/store"
)

var tracer = otel.Tracer("github.com/iliyamo/kids-class-booking/internal/booking")

// Engine runs the consume transaction. It is safe for concurrent use.
type Engine struct {
	store store.Store
	loc   *time.Location
	now   func() time.Time
}

// NewEngine builds an Engine. loc is the business time zone used for
// validity windows; nil means UTC.
func NewEngine(s store.Store, loc *time.Location) *Engine {
	if s == nil {
		panic("nil store passed to NewEngine")
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{store: s, loc: loc, now: time.Now}
}

// Location returns the business time zone.
func (e *Engine) Location() *time.Location { return e.loc }

// ConsumeRequest asks to reserve Dates of ClassID for ChildID paid with
// EntitlementID.
type ConsumeRequest struct {
	EntitlementID string
	ParentID      string
	ChildID       string
	ClassID       string
	Dates         []time.Time
}

// ConsumeResult describes the side effects of a consume. AlreadyReserved is
// set when every date was reserved before and nothing changed.
type ConsumeResult struct {
	Created         int      `json:"created"`
	AlreadyReserved bool     `json:"alreadyReserved"`
	Dates           []string `json:"dates,omitempty"`
}

// Consume re-validates the entitlement and class, skips dates already
// reserved and burns credits for the rest, all in one transaction.
func (e *Engine) Consume(ctx context.Context, req ConsumeRequest) (ConsumeResult, error) {
	ctx, span := tracer.Start(ctx, "booking.consume")
	defer span.End()
	span.SetAttributes(
		attribute.String("entitlement.id", req.EntitlementID),
		attribute.String("class.id", req.ClassID),
		attribute.Int("dates", len(req.Dates)),
	)

	var res ConsumeResult
	err := e.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		r, err := e.ConsumeTx(ctx, tx, req)
		res = r
		return err
	})
	if err != nil {
		span.RecordError(err)
		return ConsumeResult{}, err
	}
	return res, nil
}

// ConsumeTx is Consume's body, reusable by callers that already hold a
// transaction.
func (e *Engine) ConsumeTx(ctx context.Context, tx store.Tx, req ConsumeRequest) (ConsumeResult, error) {
	ent, err := tx.GetEntitlement(ctx, req.EntitlementID)
	if err != nil {
		if store.IsNotFound(err) {
			return ConsumeResult{}, ErrEntitlementGone
		}
		return ConsumeResult{}, err
	}
	if ent.ParentID != req.ParentID || (ent.ChildID != "" && ent.ChildID != req.ChildID) {
		return ConsumeResult{}, ErrForbidden
	}
	switch ent.Status {
	case model.EntitlementActive:
	case model.EntitlementExpired:
		return ConsumeResult{}, newError(ReasonExpired, "", "entitlement expired")
	default:
		return ConsumeResult{}, newError(ReasonInactive, "", "entitlement not active")
	}
	for _, d := range req.Dates {
		if !ent.Covers(schedule.Instant(d, e.loc)) {
			return ConsumeResult{}, newError(ReasonExpired, schedule.FormatDate(d), "entitlement not valid for date")
		}
	}
	if !ent.Limits.Unlimited && ent.Limits.Amount <= 0 {
		return ConsumeResult{}, newError(ReasonNoCredits, "", "entitlement has no credit limit")
	}

	cls, err := tx.GetClass(ctx, req.ClassID)
	if err != nil {
		if store.IsNotFound(err) {
			return ConsumeResult{}, ErrClassNotFound
		}
		return ConsumeResult{}, err
	}
	if !cls.IsActive {
		return ConsumeResult{}, ErrClassInactive
	}

	fresh, err := unreserved(ctx, tx, req.ChildID, req.ClassID, req.Dates)
	if err != nil {
		return ConsumeResult{}, err
	}
	if len(fresh) == 0 {
		return ConsumeResult{AlreadyReserved: true}, nil
	}

	burn := schedule.BurnByBucket(ent.Limits.Period, fresh)
	if !entitlement.Fits(*ent, burn) {
		return ConsumeResult{}, newError(ReasonNoCredits, "", "not enough credits")
	}

	now := e.now().UTC()
	created, err := e.ReserveTx(ctx, tx, ReserveParams{
		ParentID:      req.ParentID,
		ChildID:       req.ChildID,
		ClassID:       req.ClassID,
		Dates:         fresh,
		PaymentMethod: model.PaymentCredits,
		EntitlementID: ent.ID,
	})
	if err != nil {
		return ConsumeResult{}, err
	}

	entitlement.Apply(ent, burn)
	ent.UpdatedAt = now
	if err := tx.PutEntitlement(ctx, ent); err != nil {
		return ConsumeResult{}, err
	}
	return ConsumeResult{Created: len(created), Dates: created}, nil
}

// ReserveParams describes reservations to create for one child and class.
type ReserveParams struct {
	ParentID              string
	ChildID               string
	ClassID               string
	Dates                 []time.Time
	PaymentMethod         model.PaymentMethod
	EntitlementID         string
	PaymentIntentID       string
	ProviderTransactionID string
}

// ReserveTx writes a reservation for every date not reserved yet and unions
// the new dates into the enrollment audit record. It returns the dates it
// created. Existing reservations are left untouched.
func (e *Engine) ReserveTx(ctx context.Context, tx store.Tx, p ReserveParams) ([]string, error) {
	fresh, err := unreserved(ctx, tx, p.ChildID, p.ClassID, p.Dates)
	if err != nil {
		return nil, err
	}
	now := e.now().UTC()
	created := make([]string, 0, len(fresh))
	for _, d := range fresh {
		ymd := schedule.FormatDate(d)
		r := &model.Reservation{
			ID:                    model.ReservationID(p.ChildID, p.ClassID, ymd),
			ParentID:              p.ParentID,
			ChildID:               p.ChildID,
			ClassID:               p.ClassID,
			Date:                  ymd,
			Status:                model.ReservationActive,
			PaymentMethod:         p.PaymentMethod,
			EntitlementID:         p.EntitlementID,
			PaymentIntentID:       p.PaymentIntentID,
			ProviderTransactionID: p.ProviderTransactionID,
			CreatedAt:             now,
		}
		if err := tx.PutReservation(ctx, r); err != nil {
			return nil, err
		}
		created = append(created, ymd)
	}
	if err := e.appendAudit(ctx, tx, p, created, now); err != nil {
		return nil, err
	}
	return created, nil
}

func (e *Engine) appendAudit(ctx context.Context, tx store.Tx, p ReserveParams, dates []string, now time.Time) error {
	id := model.EnrollmentRequestID(p.ClassID, p.ChildID)
	req, err := tx.GetEnrollmentRequest(ctx, id)
	switch {
	case store.IsNotFound(err):
		req = &model.EnrollmentRequest{
			ID:        id,
			ParentID:  p.ParentID,
			ChildID:   p.ChildID,
			ClassID:   p.ClassID,
			CreatedAt: now,
		}
	case err != nil:
		return err
	}
	method := p.PaymentMethod
	if method == model.PaymentOneOff {
		method = model.PaymentOnline
	}
	req.Status = "approved"
	req.PaymentMethod = method
	if p.PaymentIntentID != "" {
		req.PaymentIntentID = p.PaymentIntentID
		req.ProviderTransactionID = p.ProviderTransactionID
	}
	req.AddDates(dates...)
	req.UpdatedAt = now
	return tx.PutEnrollmentRequest(ctx, req)
}

// unreserved returns the subset of dates with no reservation document yet.
func unreserved(ctx context.Context, r store.Reader, childID, classID string, dates []time.Time) ([]time.Time, error) {
	out := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		id := model.ReservationID(childID, classID, schedule.FormatDate(d))
		_, err := r.GetReservation(ctx, id)
		switch {
		case err == nil:
			continue
		case store.IsNotFound(err):
			out = append(out, d)
		default:
			log.Printf("booking: read reservation %s: %v", id, err)
			return nil, err
		}
	}
	return out, nil
}
