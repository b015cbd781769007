package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestScheduleRuleNormalize(t *testing.T) {
	cases := []struct {
		name     string
		rule     ScheduleRule
		wantErr  bool
		interval int
	}{
		{"defaults interval", ScheduleRule{Weekday: 1, Recurrence: RecurrenceWeekly, StartDate: "2026-01-05"}, false, 1},
		{"biweekly default", ScheduleRule{Weekday: 1, Recurrence: RecurrenceBiweekly, StartDate: "2026-01-05"}, false, 2},
		{"missing start", ScheduleRule{Weekday: 1, Recurrence: RecurrenceWeekly}, true, 1},
		{"end before start", ScheduleRule{Weekday: 1, StartDate: "2026-02-01", EndDate: "2026-01-01"}, true, 1},
		{"bad weekday", ScheduleRule{Weekday: 9, StartDate: "2026-01-05"}, true, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := tc.rule
			err := r.Normalize()
			if tc.wantErr {
				require.ErrorIs(t, err, ErrInvalidSchedule)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.interval, r.Interval)
		})
	}
}

func TestReserveDatesDedupesAndSorts(t *testing.T) {
	m := IntentMetadata{Dates: []string{" 2026-03-17", "2026-03-10", "2026-03-17", ""}}
	require.Equal(t, []string{"2026-03-10", "2026-03-17"}, m.ReserveDates())

	m = IntentMetadata{DateYMD: "2026-03-10"}
	require.Equal(t, []string{"2026-03-10"}, m.ReserveDates())

	require.Empty(t, IntentMetadata{}.ReserveDates())
}

func TestEntitlementNormalizeAndCovers(t *testing.T) {
	e := Entitlement{Usage: map[string]int{"2026-02": -1}}
	e.Normalize()
	require.Equal(t, EntitlementInactive, e.Status)
	require.Equal(t, PeriodNone, e.Limits.Period)
	require.Equal(t, 0, e.Usage["2026-02"])

	e.ValidFrom = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	e.ValidTo = time.Date(2026, 2, 28, 23, 59, 59, 0, time.UTC)
	require.True(t, e.Covers(e.ValidFrom))
	require.True(t, e.Covers(e.ValidTo))
	require.False(t, e.Covers(e.ValidTo.Add(time.Second)))
}

func TestIdentifiers(t *testing.T) {
	require.Equal(t, "kid__yoga__2026-03-10", ReservationID("kid", "yoga", "2026-03-10"))
	require.Equal(t, "yoga_kid", EnrollmentRequestID("yoga", "kid"))
}

func TestLeaseHeld(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := PaymentIntent{}
	require.False(t, p.LeaseHeld(now, time.Minute))
	at := now.Add(-30 * time.Second)
	p.ProcessingAt = &at
	require.True(t, p.LeaseHeld(now, time.Minute))
	require.False(t, p.LeaseHeld(now, 10*time.Second))
}
