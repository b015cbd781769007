package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/kids-class-booking/internal/model"
)

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := ParseDate(s)
	require.NoError(t, err)
	return d
}

func TestOccursOnBiweeklyMonday(t *testing.T) {
	rule := model.ScheduleRule{Weekday: 1, Recurrence: model.RecurrenceWeekly, Interval: 2, StartDate: "2026-01-05"}
	cases := map[string]bool{
		"2026-01-05": true,
		"2026-01-12": false,
		"2026-01-19": true,
		"2026-01-26": false,
		"2026-02-02": true,
		"2026-01-06": false,
		"2025-12-22": false,
	}
	for date, want := range cases {
		t.Run(date, func(t *testing.T) {
			require.Equal(t, want, OccursOn(rule, day(t, date)))
		})
	}
}

func TestOccursOnAnchorAfterStart(t *testing.T) {
	// starts on a Thursday, class is on Mondays: the first Monday is the anchor
	rule := model.ScheduleRule{Weekday: 1, Recurrence: model.RecurrenceBiweekly, StartDate: "2026-01-01"}
	require.True(t, OccursOn(rule, day(t, "2026-01-05")))
	require.False(t, OccursOn(rule, day(t, "2026-01-12")))
	require.True(t, OccursOn(rule, day(t, "2026-01-19")))
}

func TestOccursOnBounds(t *testing.T) {
	rule := model.ScheduleRule{Weekday: 3, Recurrence: model.RecurrenceWeekly, Interval: 1, StartDate: "2026-03-04", EndDate: "2026-03-18"}
	require.False(t, OccursOn(rule, day(t, "2026-02-25")))
	require.True(t, OccursOn(rule, day(t, "2026-03-04")))
	require.True(t, OccursOn(rule, day(t, "2026-03-18")))
	require.False(t, OccursOn(rule, day(t, "2026-03-25")))
}

func TestOccursOnNone(t *testing.T) {
	rule := model.ScheduleRule{Weekday: 2, Recurrence: model.RecurrenceNone, StartDate: "2026-03-10"}
	require.True(t, OccursOn(rule, day(t, "2026-03-10")))
	require.False(t, OccursOn(rule, day(t, "2026-03-17")))
}

func TestOccursOnMonthly(t *testing.T) {
	// first Monday of every month
	rule := model.ScheduleRule{Weekday: 1, Recurrence: model.RecurrenceMonthly, Interval: 1, StartDate: "2026-01-05"}
	require.True(t, OccursOn(rule, day(t, "2026-02-02")))
	require.False(t, OccursOn(rule, day(t, "2026-02-09")))
	require.True(t, OccursOn(rule, day(t, "2026-03-02")))

	rule.Interval = 2
	require.False(t, OccursOn(rule, day(t, "2026-02-02")))
	require.True(t, OccursOn(rule, day(t, "2026-03-02")))
}

func TestOccursOnMalformedRuleNeverMatches(t *testing.T) {
	require.False(t, OccursOn(model.ScheduleRule{Weekday: 1}, day(t, "2026-01-05")))
	require.False(t, OccursOn(model.ScheduleRule{Weekday: 1, StartDate: "05.01.2026"}, day(t, "2026-01-05")))
}

func TestOccursOnIgnoresTimeOfDay(t *testing.T) {
	rule := model.ScheduleRule{Weekday: 1, Recurrence: model.RecurrenceWeekly, StartDate: "2026-01-05"}
	warsaw := time.FixedZone("CET", 3600)
	require.True(t, OccursOn(rule, time.Date(2026, 1, 12, 23, 30, 0, 0, warsaw)))
	require.True(t, OccursOn(rule, time.Date(2026, 1, 12, 0, 5, 0, 0, time.UTC)))
}

func TestOccurrencesInRange(t *testing.T) {
	rule := model.ScheduleRule{Weekday: 1, Recurrence: model.RecurrenceWeekly, Interval: 2, StartDate: "2026-01-05"}
	got := OccurrencesInRange(rule, day(t, "2026-01-01"), day(t, "2026-02-28"))
	require.Equal(t, []string{"2026-01-05", "2026-01-19", "2026-02-02", "2026-02-16"}, FormatDates(got))

	require.Empty(t, OccurrencesInRange(rule, day(t, "2026-02-28"), day(t, "2026-01-01")))

	once := model.ScheduleRule{Weekday: 2, Recurrence: model.RecurrenceNone, StartDate: "2026-03-10"}
	require.Len(t, OccurrencesInRange(once, day(t, "2026-03-01"), day(t, "2026-03-31")), 1)
	require.Empty(t, OccurrencesInRange(once, day(t, "2026-04-01"), day(t, "2026-04-30")))
}

func TestNormalizeDates(t *testing.T) {
	got, err := NormalizeDates([]string{"2026-02-16", " 2026-02-02", "", "2026-02-16"})
	require.NoError(t, err)
	require.Equal(t, []string{"2026-02-02", "2026-02-16"}, FormatDates(got))

	_, err = NormalizeDates([]string{"2026-02-30"})
	require.ErrorIs(t, err, ErrInvalidDate)
}

func TestToday(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	now := time.Date(2026, 3, 9, 23, 30, 0, 0, time.UTC)
	require.Equal(t, "2026-03-10", FormatDate(Today(now, loc)))
	require.Equal(t, "2026-03-09", FormatDate(Today(now, time.UTC)))
}
