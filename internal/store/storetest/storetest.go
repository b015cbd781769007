// Package storetest is a conformance suite every store backend runs in its
// own tests. Identifiers are prefixed per run so the suite can share a
// database with other runs.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/kids-class-booking/internal/model"
	"github.com/iliyamo/kids-class-booking/internal/store"
)

// Run executes the suite against the store returned by open.
func Run(t *testing.T, open func(t *testing.T) store.Store) {
	t.Helper()
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store, id func(string) string)
	}{
		{"RoundTrip", testRoundTrip},
		{"NotFound", testNotFound},
		{"DiscardOnError", testDiscardOnError},
		{"ListEntitlements", testListEntitlements},
		{"ConcurrentIncrements", testConcurrentIncrements},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			prefix := uuid.NewString()[:8] + "-"
			tc.fn(t, open(t), func(s string) string { return prefix + s })
		})
	}
}

var (
	created = time.Date(2026, 2, 1, 8, 30, 0, 0, time.UTC)
	paid    = time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
)

func put(t *testing.T, s store.Store, fn store.TxFunc) {
	t.Helper()
	require.NoError(t, s.RunInTx(context.Background(), fn))
}

func testRoundTrip(t *testing.T, s store.Store, id func(string) string) {
	ctx := context.Background()
	class := model.Class{
		ID: id("yoga"), Title: "Kids yoga", InstructorName: "Ala", Location: "Room 2",
		StartTime: "16:00", EndTime: "16:45", Capacity: 12, IsActive: true, CreatedAt: created,
		Schedule: model.ScheduleRule{Weekday: 1, Recurrence: model.RecurrenceBiweekly, Interval: 2, StartDate: "2026-01-05"},
	}
	child := model.Child{ID: id("kid"), ParentID: id("parent"), FirstName: "Ola", LastName: "Nowak"}
	plan := model.DefaultPlans()[1]
	plan.ID = id("monthly")
	plan.CreatedAt = created
	ent := model.Entitlement{
		ID: id("ent"), ParentID: child.ParentID, ChildID: child.ID, PlanID: plan.ID, Type: plan.Type,
		Status: model.EntitlementActive, ValidFrom: created, ValidTo: created.AddDate(0, 1, 0),
		Limits: plan.Limits, Usage: map[string]int{"2026-02": 2}, CreatedFromIntentID: id("intent"),
		CreatedAt: created, UpdatedAt: created,
	}
	res := model.Reservation{
		ID: model.ReservationID(child.ID, class.ID, "2026-02-02"), ParentID: child.ParentID, ChildID: child.ID,
		ClassID: class.ID, Date: "2026-02-02", Status: model.ReservationActive, PaymentMethod: model.PaymentCredits,
		EntitlementID: ent.ID, CreatedAt: created,
	}
	intent := model.PaymentIntent{
		ID: id("intent"), ParentID: child.ParentID, PlanID: plan.ID, AmountCents: 14000, Currency: "PLN",
		Email: "parent@example.com", Description: "Monthly", Provider: model.ProviderTpay,
		ProviderTransactionID: "01TX", ProviderTitle: "TR-1", Status: model.IntentPaid,
		Metadata:  model.IntentMetadata{ClassID: class.ID, ChildID: child.ID, EnrollNow: true, DateYMD: "2026-02-02", Dates: []string{"2026-02-02"}},
		CreatedAt: created, UpdatedAt: paid, PaidAt: &paid, FinalizedAt: &paid,
	}
	audit := model.EnrollmentRequest{
		ID: model.EnrollmentRequestID(class.ID, child.ID), ParentID: child.ParentID, ChildID: child.ID, ClassID: class.ID,
		Status: "approved", PaymentMethod: model.PaymentOnline, PaymentIntentID: intent.ID,
		Dates: []string{"2026-02-02"}, CreatedAt: created, UpdatedAt: paid,
	}

	put(t, s, func(ctx context.Context, tx store.Tx) error {
		return errors.Join(
			tx.PutClass(ctx, &class), tx.PutChild(ctx, &child), tx.PutPlan(ctx, &plan),
			tx.PutEntitlement(ctx, &ent), tx.PutReservation(ctx, &res),
			tx.PutPaymentIntent(ctx, &intent), tx.PutEnrollmentRequest(ctx, &audit),
		)
	})

	gotClass, err := s.GetClass(ctx, class.ID)
	require.NoError(t, err)
	require.Equal(t, class.Schedule, gotClass.Schedule)
	require.Equal(t, class.Title, gotClass.Title)
	require.True(t, gotClass.CreatedAt.Equal(created))

	gotChild, err := s.GetChild(ctx, child.ID)
	require.NoError(t, err)
	require.Equal(t, child, *gotChild)

	gotPlan, err := s.GetPlan(ctx, plan.ID)
	require.NoError(t, err)
	require.Equal(t, plan.Limits, gotPlan.Limits)
	require.Equal(t, plan.Validity, gotPlan.Validity)
	require.Equal(t, plan.PriceCents, gotPlan.PriceCents)

	gotEnt, err := s.GetEntitlement(ctx, ent.ID)
	require.NoError(t, err)
	require.Equal(t, ent.Usage, gotEnt.Usage)
	require.Equal(t, ent.Limits, gotEnt.Limits)
	require.True(t, gotEnt.ValidTo.Equal(ent.ValidTo))

	gotRes, err := s.GetReservation(ctx, res.ID)
	require.NoError(t, err)
	require.Equal(t, res.PaymentMethod, gotRes.PaymentMethod)
	require.Equal(t, res.EntitlementID, gotRes.EntitlementID)

	gotIntent, err := s.GetPaymentIntent(ctx, intent.ID)
	require.NoError(t, err)
	require.Equal(t, intent.Metadata, gotIntent.Metadata)
	require.NotNil(t, gotIntent.FinalizedAt)
	require.True(t, gotIntent.FinalizedAt.Equal(paid))
	require.Nil(t, gotIntent.ProcessingAt)

	gotAudit, err := s.GetEnrollmentRequest(ctx, audit.ID)
	require.NoError(t, err)
	require.Equal(t, audit.Dates, gotAudit.Dates)

	// Put replaces the document.
	put(t, s, func(ctx context.Context, tx store.Tx) error {
		e, err := tx.GetEntitlement(ctx, ent.ID)
		if err != nil {
			return err
		}
		e.Usage["2026-02"] = 3
		e.Status = model.EntitlementInactive
		return tx.PutEntitlement(ctx, e)
	})
	gotEnt, err = s.GetEntitlement(ctx, ent.ID)
	require.NoError(t, err)
	require.Equal(t, 3, gotEnt.Usage["2026-02"])
	require.Equal(t, model.EntitlementInactive, gotEnt.Status)
}

func testNotFound(t *testing.T, s store.Store, id func(string) string) {
	ctx := context.Background()
	_, err := s.GetClass(ctx, id("missing"))
	require.True(t, store.IsNotFound(err))
	_, err = s.GetEntitlement(ctx, id("missing"))
	require.True(t, store.IsNotFound(err))
	_, err = s.GetPaymentIntent(ctx, id("missing"))
	require.True(t, store.IsNotFound(err))

	err = s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		_, err := tx.GetReservation(ctx, id("missing"))
		return err
	})
	require.True(t, store.IsNotFound(err))
}

func testDiscardOnError(t *testing.T, s store.Store, id func(string) string) {
	ctx := context.Background()
	boom := errors.New("boom")
	err := s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.PutChild(ctx, &model.Child{ID: id("kid"), ParentID: id("parent")}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	_, err = s.GetChild(ctx, id("kid"))
	require.True(t, store.IsNotFound(err))
}

func testListEntitlements(t *testing.T, s store.Store, id func(string) string) {
	ctx := context.Background()
	p1, p2 := id("p-1"), id("p-2")
	ents := []model.Entitlement{
		{ID: id("a"), ParentID: p1, PlanID: "class_monthly", ChildID: "kid-1", Status: model.EntitlementActive},
		{ID: id("b"), ParentID: p1, PlanID: "class_monthly", ChildID: "kid-2", Status: model.EntitlementActive},
		{ID: id("c"), ParentID: p1, PlanID: "subscription_gold", Status: model.EntitlementActive},
		{ID: id("d"), ParentID: p1, PlanID: "class_monthly", ChildID: "kid-1", Status: model.EntitlementInactive},
		{ID: id("e"), ParentID: p2, PlanID: "class_monthly", ChildID: "kid-1", Status: model.EntitlementActive},
	}
	put(t, s, func(ctx context.Context, tx store.Tx) error {
		for i := range ents {
			ents[i].ValidFrom, ents[i].ValidTo = created, created.AddDate(0, 1, 0)
			ents[i].CreatedAt, ents[i].UpdatedAt = created, created
			if err := tx.PutEntitlement(ctx, &ents[i]); err != nil {
				return err
			}
		}
		return nil
	})

	ids := func(es []model.Entitlement) []string {
		out := make([]string, len(es))
		for i, e := range es {
			out[i] = e.ID
		}
		return out
	}

	got, err := s.ListEntitlements(ctx, store.EntitlementFilter{ParentID: p1, Status: model.EntitlementActive})
	require.NoError(t, err)
	require.Equal(t, []string{id("a"), id("b"), id("c")}, ids(got))

	got, err = s.ListEntitlements(ctx, store.EntitlementFilter{ParentID: p1, PlanID: "class_monthly", ChildID: "kid-1"})
	require.NoError(t, err)
	require.Equal(t, []string{id("a"), id("d")}, ids(got))

	got, err = s.ListEntitlements(ctx, store.EntitlementFilter{ParentID: id("nobody")})
	require.NoError(t, err)
	require.Empty(t, got)
}

func testConcurrentIncrements(t *testing.T, s store.Store, id func(string) string) {
	ctx := context.Background()
	entID := id("counter")
	put(t, s, func(ctx context.Context, tx store.Tx) error {
		return tx.PutEntitlement(ctx, &model.Entitlement{
			ID: entID, ParentID: id("p"), PlanID: "class_monthly", Status: model.EntitlementActive,
			ValidFrom: created, ValidTo: created, CreatedAt: created, UpdatedAt: created,
		})
	})

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
				e, err := tx.GetEntitlement(ctx, entID)
				if err != nil {
					return err
				}
				e.Usage["lifetime"]++
				return tx.PutEntitlement(ctx, e)
			})
		}()
	}
	wg.Wait()
	close(errs)

	committed := 0
	for err := range errs {
		if err == nil {
			committed++
			continue
		}
		require.ErrorIs(t, err, store.ErrConflict)
	}

	e, err := s.GetEntitlement(ctx, entID)
	require.NoError(t, err)
	require.Equal(t, committed, e.Usage["lifetime"])
}
