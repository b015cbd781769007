package billing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/kids-class-booking/internal/booking"
	"github.com/iliyamo/kids-class-booking/internal/model"
	"github.com/iliyamo/kids-class-booking/internal/queue"
	"github.com/iliyamo/kids-class-booking/internal/store"
	"github.com/iliyamo/kids-class-booking/internal/store/memory"
)

var cet = time.FixedZone("CET", 3600)

// marchFirst is the fixed clock of every billing test.
var marchFirst = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type fixture struct {
	store     *memory.Store
	events    *queue.Recorder
	finalizer *Finalizer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := memory.New()
	seed(t, s, func(ctx context.Context, tx store.Tx) error {
		for _, p := range model.DefaultPlans() {
			if err := tx.PutPlan(ctx, &p); err != nil {
				return err
			}
		}
		if err := tx.PutChild(ctx, &model.Child{ID: "kid-1", ParentID: "parent-1"}); err != nil {
			return err
		}
		if err := tx.PutChild(ctx, &model.Child{ID: "kid-x", ParentID: "parent-2"}); err != nil {
			return err
		}
		return tx.PutClass(ctx, &model.Class{
			ID:       "yoga",
			Title:    "Kids yoga",
			IsActive: true,
			Schedule: model.ScheduleRule{Weekday: 2, Recurrence: model.RecurrenceWeekly, Interval: 1, StartDate: "2026-01-06"},
		})
	})
	engine := booking.NewEngine(s, cet)
	rec := &queue.Recorder{}
	f := NewFinalizer(s, engine, rec, 0)
	f.now = func() time.Time { return marchFirst }
	return &fixture{store: s, events: rec, finalizer: f}
}

func seed(t *testing.T, s store.Store, fn store.TxFunc) {
	t.Helper()
	require.NoError(t, s.RunInTx(context.Background(), fn))
}

func (f *fixture) putIntent(t *testing.T, p model.PaymentIntent) {
	t.Helper()
	if p.Status == "" {
		p.Status = model.IntentRedirected
	}
	seed(t, f.store, func(ctx context.Context, tx store.Tx) error {
		return tx.PutPaymentIntent(ctx, &p)
	})
}

func (f *fixture) intent(t *testing.T, id string) *model.PaymentIntent {
	t.Helper()
	p, err := f.store.GetPaymentIntent(context.Background(), id)
	require.NoError(t, err)
	return p
}
