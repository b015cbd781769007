package booking

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/iliyamo/kids-class-booking/internal/entitlement"
	"github.com/iliyamo/kids-class-booking/internal/model"
	"github.com/iliyamo/kids-class-booking/internal/queue"
	"github.com/iliyamo/kids-class-booking/internal/schedule"
	"github.com/iliyamo/kids-class-booking/internal/store"
)

// Service validates booking requests, picks the paying entitlement and
// hands the request to the Engine.
type Service struct {
	store  store.Store
	engine *Engine
	events queue.Publisher
	now    func() time.Time
}

// NewService wires a Service. events may be nil to disable publishing.
func NewService(s store.Store, engine *Engine, events queue.Publisher) *Service {
	if s == nil || engine == nil {
		panic("nil dependency passed to NewService")
	}
	if events == nil {
		events = queue.Discard{}
	}
	return &Service{store: s, engine: engine, events: events, now: time.Now}
}

// BookRequest is a guardian's request to reserve dates of a class for a child.
type BookRequest struct {
	ParentID string
	ChildID  string
	ClassID  string
	Dates    []string
}

// BookResult reports which entitlement paid and what was created.
type BookResult struct {
	EntitlementID string `json:"entitlementId"`
	ConsumeResult
}

// Book runs the full booking flow. Validation and ownership failures are
// returned before any transaction; business rule failures come back as
// *Error from inside the transaction.
func (s *Service) Book(ctx context.Context, req BookRequest) (BookResult, error) {
	req.ChildID = strings.TrimSpace(req.ChildID)
	req.ClassID = strings.TrimSpace(req.ClassID)
	if req.ParentID == "" || req.ChildID == "" || req.ClassID == "" {
		return BookResult{}, ErrBadRequest
	}
	dates, err := schedule.NormalizeDates(req.Dates)
	if err != nil {
		return BookResult{}, newError(ReasonInvalidDate, "", err.Error())
	}
	if len(dates) == 0 {
		return BookResult{}, ErrBadRequest
	}

	child, err := s.store.GetChild(ctx, req.ChildID)
	if err != nil {
		if store.IsNotFound(err) {
			return BookResult{}, ErrChildNotFound
		}
		return BookResult{}, err
	}
	if child.ParentID != req.ParentID {
		return BookResult{}, ErrForbidden
	}

	cls, err := s.store.GetClass(ctx, req.ClassID)
	if err != nil {
		if store.IsNotFound(err) {
			return BookResult{}, ErrClassNotFound
		}
		return BookResult{}, err
	}
	if !cls.IsActive {
		return BookResult{}, ErrClassInactive
	}
	if err := ValidateDates(cls, dates, s.now(), s.engine.Location()); err != nil {
		return BookResult{}, err
	}

	ents, err := s.store.ListEntitlements(ctx, store.EntitlementFilter{
		ParentID: req.ParentID,
		Status:   model.EntitlementActive,
	})
	if err != nil {
		return BookResult{}, err
	}
	// Reservations are read after the entitlements so a concurrent commit of
	// the same dates is seen as reserved rather than as spent credit.
	// Consume re-checks every date inside its transaction.
	pending, err := unreserved(ctx, s.store, req.ChildID, req.ClassID, dates)
	if err != nil {
		return BookResult{}, err
	}
	if len(pending) == 0 {
		return BookResult{ConsumeResult: ConsumeResult{AlreadyReserved: true}}, nil
	}
	cand, err := entitlement.Select(ents, req.ChildID, pending, s.engine.Location())
	switch {
	case errors.Is(err, entitlement.ErrNoCoverage):
		return BookResult{}, newError(ReasonNoEntitlement, "", err.Error())
	case errors.Is(err, entitlement.ErrInsufficientCredits):
		return BookResult{}, newError(ReasonNoCredits, "", err.Error())
	case err != nil:
		return BookResult{}, err
	}

	res, err := s.engine.Consume(ctx, ConsumeRequest{
		EntitlementID: cand.Entitlement.ID,
		ParentID:      req.ParentID,
		ChildID:       req.ChildID,
		ClassID:       req.ClassID,
		Dates:         pending,
	})
	if err != nil {
		return BookResult{}, err
	}
	if res.Created > 0 {
		ev := queue.ReservationCreatedEvent{
			ParentID:      req.ParentID,
			ChildID:       req.ChildID,
			ClassID:       req.ClassID,
			ClassTitle:    cls.Title,
			Dates:         res.Dates,
			PaymentMethod: string(model.PaymentCredits),
			EntitlementID: cand.Entitlement.ID,
			CreatedAt:     s.now().UTC().Format(time.RFC3339),
		}
		if err := s.events.Publish(ctx, queue.RoutingReservationCreated, ev); err != nil {
			log.Printf("booking: publish reservation.created failed: %v", err)
		}
	}
	return BookResult{EntitlementID: cand.Entitlement.ID, ConsumeResult: res}, nil
}

// ValidateDates rejects dates before today (in loc) and dates on which the
// class does not take place.
func ValidateDates(cls *model.Class, dates []time.Time, now time.Time, loc *time.Location) error {
	today := schedule.Today(now, loc)
	for _, d := range dates {
		ymd := schedule.FormatDate(d)
		if d.Before(today) {
			return newError(ReasonInvalidDate, ymd, "date in the past")
		}
		if !schedule.OccursOn(cls.Schedule, d) {
			return newError(ReasonInvalidDate, ymd, "date not valid for this class")
		}
	}
	return nil
}
