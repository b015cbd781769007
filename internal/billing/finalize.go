// Package billing turns payments into entitlements and reservations. The
// Finalizer applies gateway notifications exactly once; Checkout creates
// payment intents and hands them to the gateway.
package billing

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/iliyamo/kids-class-booking/internal/booking"
	"github.com/iliyamo/kids-class-booking/internal/entitlement"
	"github.com/iliyamo/kids-class-booking/internal/model"
	"github.com/iliyamo/kids-class-booking/internal/queue"
	"github.com/iliyamo/kids-class-booking/internal/schedule"
	"github.com/iliyamo/kids-class-booking/internal/store"
	"github.com/iliyamo/kids-class-booking/internal/tpay"
)

var tracer = otel.Tracer("github.com/iliyamo/kids-class-booking/internal/billing")

// DefaultLeaseTTL is how long a processing claim is reported as live.
const DefaultLeaseTTL = 2 * time.Minute

const (
	oneOffValidity  = 60 * 24 * time.Hour
	defaultValidity = 365 * 24 * time.Hour
)

// Outcome says what a finalization call did.
type Outcome string

const (
	OutcomeFinalized        Outcome = "finalized"
	OutcomeAlreadyFinalized Outcome = "already_finalized"
	OutcomeFailed           Outcome = "failed"
)

// Result of FinalizePaid or MarkFailed.
type Result struct {
	Outcome       Outcome
	EntitlementID string
	ReservedDates []string
}

// PaidNotice is a verified payment confirmation. AmountCents is checked
// against the intent when positive.
type PaidNotice struct {
	IntentID              string
	ProviderTransactionID string
	AmountCents           int64
}

// Finalizer applies payment outcomes to the store.
type Finalizer struct {
	store    store.Store
	engine   *booking.Engine
	events   queue.Publisher
	leaseTTL time.Duration
	now      func() time.Time
}

// NewFinalizer wires a Finalizer. A zero leaseTTL means DefaultLeaseTTL and
// nil events disables publishing.
func NewFinalizer(s store.Store, engine *booking.Engine, events queue.Publisher, leaseTTL time.Duration) *Finalizer {
	if s == nil || engine == nil {
		panic("nil dependency passed to NewFinalizer")
	}
	if leaseTTL <= 0 {
		leaseTTL = DefaultLeaseTTL
	}
	if events == nil {
		events = queue.Discard{}
	}
	return &Finalizer{store: s, engine: engine, events: events, leaseTTL: leaseTTL, now: time.Now}
}

// FinalizePaid commits the side effects of a paid intent. Replays of an
// already finalized intent are no-ops. The processing claim is only a hint:
// a live claim by another worker is logged and finalization still runs,
// with FinalizedAt re-checked inside the transaction. On error the intent
// stays unfinalized and the claim is released.
func (f *Finalizer) FinalizePaid(ctx context.Context, n PaidNotice) (Result, error) {
	ctx, span := tracer.Start(ctx, "billing.finalize_paid",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(attribute.String("intent.id", n.IntentID)),
	)
	defer span.End()

	claimed, res, err := f.claim(ctx, n.IntentID)
	if err != nil || !claimed {
		return res, err
	}

	var (
		out   Result
		sweep *store.EntitlementFilter
		ev    *queue.ReservationCreatedEvent
		paid  model.PaymentIntent
	)
	err = f.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		out, sweep, ev = Result{}, nil, nil
		intent, err := tx.GetPaymentIntent(ctx, n.IntentID)
		if err != nil {
			if store.IsNotFound(err) {
				return ErrIntentNotFound
			}
			return err
		}
		if intent.Finalized() {
			out.Outcome = OutcomeAlreadyFinalized
			return nil
		}
		if n.AmountCents > 0 && n.AmountCents != intent.AmountCents {
			return fmt.Errorf("%w: got %d, want %d", ErrAmountMismatch, n.AmountCents, intent.AmountCents)
		}
		r, s, e, err := f.apply(ctx, tx, intent, n.ProviderTransactionID)
		if err != nil {
			return err
		}
		out, sweep, ev, paid = r, s, e, *intent
		return nil
	})
	if err != nil {
		span.RecordError(err)
		log.Printf("finalize: intent %s failed: %v", tpay.Mask(n.IntentID), err)
		f.release(ctx, n.IntentID)
		return Result{}, err
	}
	if out.Outcome == OutcomeAlreadyFinalized {
		return out, nil
	}

	if sweep != nil {
		f.sweep(ctx, *sweep, out.EntitlementID)
	}
	f.publishFinalized(ctx, paid, out)
	if ev != nil {
		if err := f.events.Publish(ctx, queue.RoutingReservationCreated, *ev); err != nil {
			log.Printf("finalize: publish reservation.created failed: %v", err)
		}
	}
	log.Printf("finalize: intent %s finalized (entitlement=%q, reserved=%d)", tpay.Mask(n.IntentID), out.EntitlementID, len(out.ReservedDates))
	return out, nil
}

// claim stamps the processing lease. It returns claimed=false with the
// outcome to report when the intent is already finalized.
func (f *Finalizer) claim(ctx context.Context, intentID string) (bool, Result, error) {
	var res Result
	claimed, contended := false, false
	err := f.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		claimed, contended, res = false, false, Result{}
		intent, err := tx.GetPaymentIntent(ctx, intentID)
		if err != nil {
			if store.IsNotFound(err) {
				return ErrIntentNotFound
			}
			return err
		}
		if intent.Finalized() {
			res.Outcome = OutcomeAlreadyFinalized
			return nil
		}
		now := f.now().UTC()
		contended = intent.LeaseHeld(now, f.leaseTTL)
		intent.ProcessingAt = &now
		intent.UpdatedAt = now
		claimed = true
		return tx.PutPaymentIntent(ctx, intent)
	})
	if err != nil {
		return false, Result{}, err
	}
	if contended {
		log.Printf("finalize: intent %s has a live claim elsewhere, finalizing anyway", tpay.Mask(intentID))
	}
	return claimed, res, nil
}

func (f *Finalizer) release(ctx context.Context, intentID string) {
	err := f.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		intent, err := tx.GetPaymentIntent(ctx, intentID)
		if err != nil {
			return err
		}
		if intent.Finalized() || intent.ProcessingAt == nil {
			return nil
		}
		intent.ProcessingAt = nil
		intent.UpdatedAt = f.now().UTC()
		return tx.PutPaymentIntent(ctx, intent)
	})
	if err != nil {
		log.Printf("finalize: release lease on %s failed: %v", tpay.Mask(intentID), err)
	}
}

// apply runs inside the finalization transaction and mutates intent in place.
func (f *Finalizer) apply(ctx context.Context, tx store.Tx, intent *model.PaymentIntent, trID string) (Result, *store.EntitlementFilter, *queue.ReservationCreatedEvent, error) {
	now := f.now().UTC()
	loc := f.engine.Location()

	plan, err := tx.GetPlan(ctx, intent.PlanID)
	if err != nil {
		if store.IsNotFound(err) {
			return Result{}, nil, nil, ErrPlanNotFound
		}
		return Result{}, nil, nil, err
	}
	if !plan.IsActive {
		return Result{}, nil, nil, ErrPlanInactive
	}

	meta := intent.Metadata
	if plan.Scope == model.ScopeChild && meta.ChildID == "" {
		return Result{}, nil, nil, ErrChildRequired
	}
	dates, err := schedule.NormalizeDates(meta.ReserveDates())
	if err != nil {
		return Result{}, nil, nil, err
	}
	oneOff := plan.IsOneOff()
	reserve := meta.ClassID != "" && meta.ChildID != "" && len(dates) > 0 && (oneOff || meta.EnrollNow)
	var cls *model.Class
	if reserve {
		cls, err = tx.GetClass(ctx, meta.ClassID)
		if err != nil {
			if store.IsNotFound(err) {
				return Result{}, nil, nil, booking.ErrClassNotFound
			}
			return Result{}, nil, nil, err
		}
		if !cls.IsActive {
			return Result{}, nil, nil, booking.ErrClassInactive
		}
		if err := booking.ValidateDates(cls, dates, now, loc); err != nil {
			return Result{}, nil, nil, err
		}
	}

	paidAt := now
	if intent.PaidAt != nil {
		paidAt = *intent.PaidAt
	}
	intent.Status = model.IntentPaid
	intent.PaidAt = &paidAt
	intent.FinalizedAt = &now
	intent.ProcessingAt = nil
	intent.Provider = model.ProviderTpay
	if trID != "" {
		intent.ProviderTransactionID = trID
	}
	intent.UpdatedAt = now
	if err := tx.PutPaymentIntent(ctx, intent); err != nil {
		return Result{}, nil, nil, err
	}

	res := Result{Outcome: OutcomeFinalized}
	params := booking.ReserveParams{
		ParentID:              intent.ParentID,
		ChildID:               meta.ChildID,
		ClassID:               meta.ClassID,
		Dates:                 dates,
		PaymentIntentID:       intent.ID,
		ProviderTransactionID: intent.ProviderTransactionID,
	}

	if oneOff {
		if !reserve {
			return res, nil, nil, nil
		}
		params.PaymentMethod = model.PaymentOneOff
		created, err := f.engine.ReserveTx(ctx, tx, params)
		if err != nil {
			return Result{}, nil, nil, err
		}
		res.ReservedDates = created
		return res, nil, reservationEvent(params, cls, created, now), nil
	}

	ent, err := f.upsertEntitlement(ctx, tx, plan, intent, paidAt, now)
	if err != nil {
		return Result{}, nil, nil, err
	}
	res.EntitlementID = ent.ID

	var sweep *store.EntitlementFilter
	if plan.Validity.Kind == model.ValidityMonthly {
		sweep = &store.EntitlementFilter{
			ParentID: intent.ParentID,
			PlanID:   plan.ID,
			ChildID:  ent.ChildID,
			Status:   model.EntitlementActive,
		}
	}
	if !reserve {
		return res, sweep, nil, nil
	}

	for _, d := range dates {
		if !ent.Covers(schedule.Instant(d, loc)) {
			return Result{}, nil, nil, fmt.Errorf("%w: %s", ErrNotCovered, schedule.FormatDate(d))
		}
	}
	params.PaymentMethod = model.PaymentOnline
	params.EntitlementID = ent.ID
	created, err := f.engine.ReserveTx(ctx, tx, params)
	if err != nil {
		return Result{}, nil, nil, err
	}
	if len(created) > 0 {
		createdDates, _ := schedule.NormalizeDates(created)
		burn := schedule.BurnByBucket(ent.Limits.Period, createdDates)
		if !entitlement.Fits(*ent, burn) {
			return Result{}, nil, nil, ErrLimitExceeded
		}
		entitlement.Apply(ent, burn)
		ent.UpdatedAt = now
		if err := tx.PutEntitlement(ctx, ent); err != nil {
			return Result{}, nil, nil, err
		}
	}
	res.ReservedDates = created
	return res, sweep, reservationEvent(params, cls, created, now), nil
}

// upsertEntitlement creates the entitlement keyed by the intent id, or
// reactivates a shell written by an earlier attempt.
func (f *Finalizer) upsertEntitlement(ctx context.Context, tx store.Tx, plan *model.Plan, intent *model.PaymentIntent, paidAt, now time.Time) (*model.Entitlement, error) {
	ent, err := tx.GetEntitlement(ctx, intent.ID)
	switch {
	case err == nil:
		ent.Status = model.EntitlementActive
		ent.UpdatedAt = now
	case store.IsNotFound(err):
		from, to := ValidityWindow(plan.Validity, paidAt, f.engine.Location())
		childID := intent.Metadata.ChildID
		if plan.Scope == model.ScopeParent {
			childID = ""
		}
		ent = &model.Entitlement{
			ID:                  intent.ID,
			ParentID:            intent.ParentID,
			ChildID:             childID,
			PlanID:              plan.ID,
			Type:                plan.Type,
			Status:              model.EntitlementActive,
			ValidFrom:           from,
			ValidTo:             to,
			Limits:              plan.Limits,
			Usage:               map[string]int{},
			CreatedFromIntentID: intent.ID,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
	default:
		return nil, err
	}
	if err := tx.PutEntitlement(ctx, ent); err != nil {
		return nil, err
	}
	return ent, nil
}

// ValidityWindow returns the inclusive window of an entitlement paid at
// paidAt. It starts at the beginning of the paid day in loc. Monthly plans
// end with the calendar month, one_off plans after 60 days, others after
// v.Days or a year.
func ValidityWindow(v model.Validity, paidAt time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	local := paidAt.In(loc)
	from := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	var to time.Time
	switch {
	case v.Kind == model.ValidityMonthly:
		to = time.Date(local.Year(), local.Month()+1, 1, 0, 0, 0, 0, loc).Add(-time.Millisecond)
	case v.Kind == model.ValidityOneOff:
		to = from.Add(oneOffValidity).Add(-time.Millisecond)
	case v.Days > 0:
		to = from.AddDate(0, 0, v.Days).Add(-time.Millisecond)
	default:
		to = from.Add(defaultValidity).Add(-time.Millisecond)
	}
	return from, to
}

// sweep deactivates the other active entitlements of the same guardian,
// plan and child after a monthly plan was bought. Failures are logged only.
func (f *Finalizer) sweep(ctx context.Context, filter store.EntitlementFilter, keepID string) {
	var n int
	err := f.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		n = 0
		ents, err := tx.ListEntitlements(ctx, filter)
		if err != nil {
			return err
		}
		now := f.now().UTC()
		for i := range ents {
			e := &ents[i]
			if e.ID == keepID || e.ChildID != filter.ChildID {
				continue
			}
			e.Status = model.EntitlementInactive
			e.UpdatedAt = now
			if err := tx.PutEntitlement(ctx, e); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		log.Printf("finalize: deactivate previous entitlements failed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("finalize: deactivated %d previous %s entitlements", n, filter.PlanID)
	}
}

// MarkFailed records a failed payment. Finalized intents are never touched.
func (f *Finalizer) MarkFailed(ctx context.Context, intentID, trID string) (Result, error) {
	var (
		res    Result
		failed model.PaymentIntent
	)
	err := f.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		res = Result{}
		intent, err := tx.GetPaymentIntent(ctx, intentID)
		if err != nil {
			if store.IsNotFound(err) {
				return ErrIntentNotFound
			}
			return err
		}
		if intent.Finalized() {
			res.Outcome = OutcomeAlreadyFinalized
			return nil
		}
		now := f.now().UTC()
		intent.Status = model.IntentFailed
		intent.Provider = model.ProviderTpay
		if trID != "" {
			intent.ProviderTransactionID = trID
		}
		intent.ProcessingAt = nil
		intent.UpdatedAt = now
		res.Outcome = OutcomeFailed
		failed = *intent
		return tx.PutPaymentIntent(ctx, intent)
	})
	if err != nil {
		return Result{}, err
	}
	if res.Outcome == OutcomeFailed {
		f.publishFinalized(ctx, failed, res)
	}
	return res, nil
}

func (f *Finalizer) publishFinalized(ctx context.Context, intent model.PaymentIntent, res Result) {
	key := queue.RoutingPaymentFinalized
	if res.Outcome == OutcomeFailed {
		key = queue.RoutingPaymentFailed
	}
	ev := queue.PaymentFinalizedEvent{
		IntentID:              intent.ID,
		ParentID:              intent.ParentID,
		PlanID:                intent.PlanID,
		Status:                string(intent.Status),
		AmountCents:           intent.AmountCents,
		Currency:              intent.Currency,
		ProviderTransactionID: intent.ProviderTransactionID,
		EntitlementID:         res.EntitlementID,
		ReservedDates:         res.ReservedDates,
		OccurredAt:            f.now().UTC().Format(time.RFC3339),
	}
	if err := f.events.Publish(ctx, key, ev); err != nil {
		log.Printf("finalize: publish %s failed: %v", key, err)
	}
}

func reservationEvent(p booking.ReserveParams, cls *model.Class, created []string, now time.Time) *queue.ReservationCreatedEvent {
	if len(created) == 0 {
		return nil
	}
	title := ""
	if cls != nil {
		title = cls.Title
	}
	return &queue.ReservationCreatedEvent{
		ParentID:        p.ParentID,
		ChildID:         p.ChildID,
		ClassID:         p.ClassID,
		ClassTitle:      title,
		Dates:           created,
		PaymentMethod:   string(p.PaymentMethod),
		EntitlementID:   p.EntitlementID,
		PaymentIntentID: p.PaymentIntentID,
		CreatedAt:       now.Format(time.RFC3339),
	}
}

// IsBusinessError reports whether err is a rule violation of the intent's
// content rather than an infrastructure failure.
func IsBusinessError(err error) bool {
	var be *booking.Error
	return errors.As(err, &be) ||
		errors.Is(err, ErrPlanNotFound) || errors.Is(err, ErrPlanInactive) ||
		errors.Is(err, ErrChildRequired) || errors.Is(err, ErrNotCovered) ||
		errors.Is(err, ErrLimitExceeded) || errors.Is(err, ErrAmountMismatch) ||
		errors.Is(err, booking.ErrClassNotFound) || errors.Is(err, booking.ErrClassInactive)
}
