package model

import (
	"errors"
	"strings"
	"time"
)

// RecurrenceType enumerates how a class repeats.
type RecurrenceType string

const (
	RecurrenceNone     RecurrenceType = "none"
	RecurrenceWeekly   RecurrenceType = "weekly"
	RecurrenceBiweekly RecurrenceType = "biweekly"
	RecurrenceMonthly  RecurrenceType = "monthly"
)

// DateLayout is the calendar date format used for every stored date
// (schedule bounds, reservation dates, audit date lists).
const DateLayout = "2006-01-02"

// ErrInvalidSchedule is returned by ScheduleRule.Normalize for rules that
// can never produce an occurrence.
var ErrInvalidSchedule = errors.New("invalid schedule rule")

// ScheduleRule describes when a class takes place.
//
// Fields:
//
//	Weekday    – day of week, 1=Monday … 7=Sunday.
//	Recurrence – none, weekly, biweekly or monthly.
//	Interval   – repeat every N weeks (weekly/biweekly) or N months (monthly).
//	StartDate  – first possible date, YYYY-MM-DD.
//	EndDate    – last possible date, YYYY-MM-DD (empty when open ended).
type ScheduleRule struct {
	Weekday    int            `json:"weekday" bson:"weekday"`
	Recurrence RecurrenceType `json:"type" bson:"type"`
	Interval   int            `json:"interval" bson:"interval"`
	StartDate  string         `json:"startDate" bson:"startDate"`
	EndDate    string         `json:"endDate,omitempty" bson:"endDate,omitempty"`
}

// Normalize fills defaults for missing fields and reports rules that are
// structurally unusable. A rule with an error still never matches any date.
func (r *ScheduleRule) Normalize() error {
	r.StartDate = strings.TrimSpace(r.StartDate)
	r.EndDate = strings.TrimSpace(r.EndDate)
	if r.Recurrence == "" {
		r.Recurrence = RecurrenceWeekly
	}
	if r.Interval < 1 {
		r.Interval = 1
		if r.Recurrence == RecurrenceBiweekly {
			r.Interval = 2
		}
	}
	if r.Weekday == 0 {
		r.Weekday = 1
	}
	if r.Weekday < 1 || r.Weekday > 7 {
		return ErrInvalidSchedule
	}
	start, err := time.Parse(DateLayout, r.StartDate)
	if err != nil {
		return ErrInvalidSchedule
	}
	if r.EndDate != "" {
		end, err := time.Parse(DateLayout, r.EndDate)
		if err != nil || end.Before(start) {
			return ErrInvalidSchedule
		}
	}
	return nil
}

// Class is a recurring activity children can be booked into.
//
// Fields:
//
//	ID             – document identifier.
//	Title          – display name.
//	InstructorName – who runs the class.
//	Location       – where it takes place.
//	StartTime      – local start time "HH:MM".
//	EndTime        – local end time "HH:MM".
//	Schedule       – recurrence rule deciding the dates.
//	Capacity       – optional seat limit (0 means unlimited).
//	IsActive       – inactive classes accept no new reservations.
type Class struct {
	ID             string       `json:"id" bson:"_id"`
	Title          string       `json:"title" bson:"title"`
	InstructorName string       `json:"instructorName,omitempty" bson:"instructorName,omitempty"`
	Location       string       `json:"location,omitempty" bson:"location,omitempty"`
	StartTime      string       `json:"startTime,omitempty" bson:"startTime,omitempty"`
	EndTime        string       `json:"endTime,omitempty" bson:"endTime,omitempty"`
	Schedule       ScheduleRule `json:"recurrence" bson:"recurrence"`
	Capacity       int          `json:"capacity,omitempty" bson:"capacity,omitempty"`
	IsActive       bool         `json:"isActive" bson:"isActive"`
	CreatedAt      time.Time    `json:"createdAt" bson:"createdAt"`
}
