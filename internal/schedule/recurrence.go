package schedule

import (
	"time"

	"github.com/iliyamo/kids-class-booking/internal/model"
)

// OccursOn decides whether a class with the given rule takes place on date.
// Only the calendar date of the argument matters. The answer depends on the
// rule alone, so past and future dates are treated identically.
func OccursOn(rule model.ScheduleRule, date time.Time) bool {
	if err := rule.Normalize(); err != nil {
		return false
	}
	start, _ := ParseDate(rule.StartDate)
	d := Day(date)
	if d.Before(start) {
		return false
	}
	if rule.EndDate != "" {
		end, _ := ParseDate(rule.EndDate)
		if d.After(end) {
			return false
		}
	}
	if rule.Recurrence == model.RecurrenceNone {
		return d.Equal(start)
	}
	if Weekday(d) != rule.Weekday {
		return false
	}

	anchor := anchorDate(start, rule.Weekday)
	switch rule.Recurrence {
	case model.RecurrenceMonthly:
		if weekOfMonth(d) != weekOfMonth(anchor) {
			return false
		}
		months := monthsBetween(anchor, d)
		return months >= 0 && months%rule.Interval == 0
	default:
		weeks := int(weekStart(d).Sub(weekStart(anchor)).Hours() / 24 / 7)
		return weeks >= 0 && weeks%rule.Interval == 0
	}
}

// OccurrencesInRange lists, in ascending order, every date within
// [from, to] on which the class occurs.
func OccurrencesInRange(rule model.ScheduleRule, from, to time.Time) []time.Time {
	if err := rule.Normalize(); err != nil {
		return nil
	}
	from, to = Day(from), Day(to)
	if to.Before(from) {
		return nil
	}
	start, _ := ParseDate(rule.StartDate)
	if rule.Recurrence == model.RecurrenceNone {
		if start.Before(from) || start.After(to) {
			return nil
		}
		return []time.Time{start}
	}

	cur := from
	if cur.Before(start) {
		cur = start
	}
	cur = anchorDate(cur, rule.Weekday)

	var out []time.Time
	for ; !cur.After(to); cur = cur.AddDate(0, 0, 7) {
		if OccursOn(rule, cur) {
			out = append(out, cur)
		}
	}
	return out
}

// anchorDate is the first date on or after from that falls on weekday.
func anchorDate(from time.Time, weekday int) time.Time {
	diff := (weekday - Weekday(from) + 7) % 7
	return from.AddDate(0, 0, diff)
}

// weekStart returns the Monday of the ISO week containing d.
func weekStart(d time.Time) time.Time {
	return d.AddDate(0, 0, -(Weekday(d) - 1))
}

// weekOfMonth is the ordinal occurrence of d's weekday within its month.
func weekOfMonth(d time.Time) int {
	return (d.Day()-1)/7 + 1
}

func monthsBetween(a, b time.Time) int {
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}
