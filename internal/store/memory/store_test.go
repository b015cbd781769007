package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/kids-class-booking/internal/model"
	"github.com/iliyamo/kids-class-booking/internal/store"
	"github.com/iliyamo/kids-class-booking/internal/store/storetest"
)

func TestRunInTxCommitsAndReadsOwnWrites(t *testing.T) {
	ctx := context.Background()
	s := New()
	err := s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		require.NoError(t, tx.PutChild(ctx, &model.Child{ID: "kid-1", ParentID: "p-1"}))
		c, err := tx.GetChild(ctx, "kid-1")
		require.NoError(t, err)
		require.Equal(t, "p-1", c.ParentID)
		return nil
	})
	require.NoError(t, err)

	c, err := s.GetChild(ctx, "kid-1")
	require.NoError(t, err)
	require.Equal(t, "p-1", c.ParentID)
}

func TestRunInTxDiscardsOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	boom := errors.New("boom")
	err := s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		require.NoError(t, tx.PutReservation(ctx, &model.Reservation{ID: "r-1"}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.GetReservation(ctx, "r-1")
	require.True(t, store.IsNotFound(err))
	require.Empty(t, s.Reservations())
}

func TestGetReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.PutEntitlement(ctx, &model.Entitlement{ID: "e-1", Status: model.EntitlementActive, Usage: map[string]int{"2026-02": 1}})
	}))

	e, err := s.GetEntitlement(ctx, "e-1")
	require.NoError(t, err)
	e.Usage["2026-02"] = 99

	again, err := s.GetEntitlement(ctx, "e-1")
	require.NoError(t, err)
	require.Equal(t, 1, again.Usage["2026-02"])
}

func TestListEntitlementsFilters(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		for _, e := range []model.Entitlement{
			{ID: "a", ParentID: "p-1", PlanID: "class_monthly", ChildID: "kid-1", Status: model.EntitlementActive},
			{ID: "b", ParentID: "p-1", PlanID: "class_monthly", ChildID: "kid-2", Status: model.EntitlementActive},
			{ID: "c", ParentID: "p-1", PlanID: "class_monthly", ChildID: "kid-1", Status: model.EntitlementInactive},
			{ID: "d", ParentID: "p-2", PlanID: "class_monthly", Status: model.EntitlementActive},
		} {
			if err := tx.PutEntitlement(ctx, &e); err != nil {
				return err
			}
		}
		return nil
	}))

	got, err := s.ListEntitlements(ctx, store.EntitlementFilter{ParentID: "p-1", ChildID: "kid-1", Status: model.EntitlementActive})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "a", got[0].ID)

	got, err = s.ListEntitlements(ctx, store.EntitlementFilter{ParentID: "p-1"})
	require.NoError(t, err)
	require.Len(t, got, 3)
}

func TestConcurrentIncrementsAreSerialised(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.PutEntitlement(ctx, &model.Entitlement{ID: "e-1", Status: model.EntitlementActive})
	}))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
				e, err := tx.GetEntitlement(ctx, "e-1")
				if err != nil {
					return err
				}
				e.Usage["lifetime"]++
				return tx.PutEntitlement(ctx, e)
			})
		}()
	}
	wg.Wait()

	e, err := s.GetEntitlement(ctx, "e-1")
	require.NoError(t, err)
	require.Equal(t, 50, e.Usage["lifetime"])
}

func TestRunInTxHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := New().RunInTx(ctx, func(context.Context, store.Tx) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, called)
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(*testing.T) store.Store { return New() })
}
