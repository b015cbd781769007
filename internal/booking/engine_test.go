package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/kids-class-booking/internal/model"
	"github.com/iliyamo/kids-class-booking/internal/schedule"
	"github.com/iliyamo/kids-class-booking/internal/store"
)

func consumeReq(t *testing.T, ymd ...string) ConsumeRequest {
	t.Helper()
	dates, err := schedule.NormalizeDates(ymd)
	require.NoError(t, err)
	return ConsumeRequest{EntitlementID: "ent-feb", ParentID: "parent-1", ChildID: "kid-1", ClassID: "yoga", Dates: dates}
}

func setStatus(t *testing.T, f *fixture, status model.EntitlementStatus) {
	t.Helper()
	seed(t, f.store, func(ctx context.Context, tx store.Tx) error {
		e, err := tx.GetEntitlement(ctx, "ent-feb")
		if err != nil {
			return err
		}
		e.Status = status
		return tx.PutEntitlement(ctx, e)
	})
}

func TestConsumeRechecksEntitlementState(t *testing.T) {
	tests := []struct {
		name   string
		status model.EntitlementStatus
		want   Reason
	}{
		{"expired", model.EntitlementExpired, ReasonExpired},
		{"inactive", model.EntitlementInactive, ReasonInactive},
		{"cancelled", model.EntitlementCancelled, ReasonInactive},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			setStatus(t, f, tc.status)
			_, err := f.engine.Consume(context.Background(), consumeReq(t, "2026-02-10"))
			require.Equal(t, tc.want, ReasonOf(err))
			require.Empty(t, f.store.Reservations())
		})
	}
}

func TestConsumeOutsideWindowIsExpired(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Consume(context.Background(), consumeReq(t, "2026-03-03"))
	var be *Error
	require.True(t, errors.As(err, &be))
	require.Equal(t, ReasonExpired, be.Reason)
	require.Equal(t, "2026-03-03", be.Date)
}

func TestConsumeForeignEntitlement(t *testing.T) {
	f := newFixture(t)
	req := consumeReq(t, "2026-02-10")
	req.ParentID = "parent-2"
	_, err := f.engine.Consume(context.Background(), req)
	require.ErrorIs(t, err, ErrForbidden)

	req = consumeReq(t, "2026-02-10")
	req.ChildID = "kid-2"
	_, err = f.engine.Consume(context.Background(), req)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestConsumeMissingEntitlement(t *testing.T) {
	f := newFixture(t)
	req := consumeReq(t, "2026-02-10")
	req.EntitlementID = "nope"
	_, err := f.engine.Consume(context.Background(), req)
	require.ErrorIs(t, err, ErrEntitlementGone)
}

func TestConsumeSkipsExistingBeforeBurning(t *testing.T) {
	f := newFixture(t)
	seed(t, f.store, func(ctx context.Context, tx store.Tx) error {
		return tx.PutReservation(ctx, &model.Reservation{
			ID: model.ReservationID("kid-1", "yoga", "2026-02-10"), ParentID: "parent-1",
			ChildID: "kid-1", ClassID: "yoga", Date: "2026-02-10", Status: model.ReservationActive,
			PaymentMethod: model.PaymentCredits, CreatedAt: time.Now(),
		})
	})

	// Only 2026-02-17 is new, so one credit fits even though two dates were asked for.
	res, err := f.engine.Consume(context.Background(), consumeReq(t, "2026-02-10", "2026-02-17"))
	require.NoError(t, err)
	require.Equal(t, 1, res.Created)
	require.Equal(t, []string{"2026-02-17"}, res.Dates)
	require.Equal(t, 4, f.usage(t, "ent-feb", "2026-02"))
}

func TestConsumeInactiveClass(t *testing.T) {
	f := newFixture(t)
	seed(t, f.store, func(ctx context.Context, tx store.Tx) error {
		c, err := tx.GetClass(ctx, "yoga")
		if err != nil {
			return err
		}
		c.IsActive = false
		return tx.PutClass(ctx, c)
	})
	_, err := f.engine.Consume(context.Background(), consumeReq(t, "2026-02-10"))
	require.ErrorIs(t, err, ErrClassInactive)
	require.Equal(t, 3, f.usage(t, "ent-feb", "2026-02"))
}

func TestConsumeUnlimitedNeverRunsOut(t *testing.T) {
	f := newFixture(t)
	seed(t, f.store, func(ctx context.Context, tx store.Tx) error {
		e, err := tx.GetEntitlement(ctx, "ent-feb")
		if err != nil {
			return err
		}
		e.Limits = model.CreditLimits{Period: model.PeriodMonth, Unlimited: true}
		return tx.PutEntitlement(ctx, e)
	})
	res, err := f.engine.Consume(context.Background(), consumeReq(t, "2026-02-03", "2026-02-10", "2026-02-17", "2026-02-24"))
	require.NoError(t, err)
	require.Equal(t, 4, res.Created)
	require.Equal(t, 3, f.usage(t, "ent-feb", "2026-02"))
}
