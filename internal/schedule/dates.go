// Package schedule answers calendar questions about classes: on which dates a
// class occurs and which usage bucket a date falls into. Nothing here reads
// the wall clock; callers pass "now" explicitly where they need it.
package schedule

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/iliyamo/kids-class-booking/internal/model"
)

// ErrInvalidDate is returned for strings that are not YYYY-MM-DD dates.
var ErrInvalidDate = errors.New("invalid date")

// ParseDate parses a YYYY-MM-DD string into midnight UTC of that day.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(model.DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return d, nil
}

// FormatDate renders the calendar date of t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(model.DateLayout)
}

// Day strips t down to its calendar date, expressed as midnight UTC. The
// calendar fields are read in t's own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Weekday returns the ISO weekday of t: 1=Monday … 7=Sunday.
func Weekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// Instant maps a calendar date to the instant used for validity window
// checks: noon of that day in loc, which keeps the comparison clear of
// daylight saving edges.
func Instant(date time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := date.Date()
	return time.Date(y, m, d, 12, 0, 0, 0, loc)
}

// Today returns the calendar date of now as seen in loc.
func Today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return Day(now.In(loc))
}

// NormalizeDates trims, de-duplicates, sorts and parses a requested list of
// dates. Empty strings are dropped; any malformed entry fails the whole list.
func NormalizeDates(raw []string) ([]time.Time, error) {
	seen := make(map[string]bool, len(raw))
	keys := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		keys = append(keys, s)
	}
	sort.Strings(keys)
	out := make([]time.Time, 0, len(keys))
	for _, s := range keys {
		d, err := ParseDate(s)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// FormatDates renders a list of dates as YYYY-MM-DD strings.
func FormatDates(dates []time.Time) []string {
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = FormatDate(d)
	}
	return out
}
