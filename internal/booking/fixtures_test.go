package booking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/kids-class-booking/internal/model"
	"github.com/iliyamo/kids-class-booking/internal/store"
	"github.com/iliyamo/kids-class-booking/internal/store/memory"
)

var warsaw = time.FixedZone("CET", 3600)

// fixture seeds one guardian with one child, a Tuesday class starting
// 2026-01-06 and a February entitlement with 4 credits, 3 of them used.
type fixture struct {
	store   *memory.Store
	engine  *Engine
	service *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := memory.New()
	seed(t, s, func(ctx context.Context, tx store.Tx) error {
		if err := tx.PutChild(ctx, &model.Child{ID: "kid-1", ParentID: "parent-1", FirstName: "Ola"}); err != nil {
			return err
		}
		if err := tx.PutChild(ctx, &model.Child{ID: "kid-x", ParentID: "parent-2", FirstName: "Jan"}); err != nil {
			return err
		}
		if err := tx.PutClass(ctx, &model.Class{
			ID:       "yoga",
			Title:    "Kids yoga",
			IsActive: true,
			Schedule: model.ScheduleRule{Weekday: 2, Recurrence: model.RecurrenceWeekly, Interval: 1, StartDate: "2026-01-06"},
		}); err != nil {
			return err
		}
		return tx.PutEntitlement(ctx, &model.Entitlement{
			ID:        "ent-feb",
			ParentID:  "parent-1",
			ChildID:   "kid-1",
			PlanID:    "class_monthly",
			Type:      model.PlanClassMonthly,
			Status:    model.EntitlementActive,
			ValidFrom: time.Date(2026, 2, 1, 0, 0, 0, 0, warsaw),
			ValidTo:   time.Date(2026, 2, 28, 23, 59, 59, 0, warsaw),
			Limits:    model.CreditLimits{Period: model.PeriodMonth, Amount: 4},
			Usage:     map[string]int{"2026-02": 3},
		})
	})

	e := NewEngine(s, warsaw)
	clock := func() time.Time { return time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC) }
	e.now = clock
	svc := NewService(s, e, nil)
	svc.now = clock
	return &fixture{store: s, engine: e, service: svc}
}

func seed(t *testing.T, s store.Store, fn store.TxFunc) {
	t.Helper()
	require.NoError(t, s.RunInTx(context.Background(), fn))
}

func (f *fixture) usage(t *testing.T, id, bucket string) int {
	t.Helper()
	e, err := f.store.GetEntitlement(context.Background(), id)
	require.NoError(t, err)
	return e.Usage[bucket]
}
