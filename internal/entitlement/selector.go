// Package entitlement picks which prepaid entitlement pays for a set of
// class dates and does the per bucket credit arithmetic shared by booking
// and payment finalization.
package entitlement

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/iliyamo/kids-class-booking/internal/model"
	"github.com/iliyamo/kids-class-booking/internal/schedule"
)

var (
	// ErrNoCoverage means no active entitlement of the guardian is valid on
	// every requested date for the child.
	ErrNoCoverage = errors.New("no valid entitlement for these dates")
	// ErrInsufficientCredits means some entitlement covers the dates but none
	// has enough credit left in every touched bucket.
	ErrInsufficientCredits = errors.New("not enough credits")
)

// Candidate is an entitlement that can pay for the requested dates together
// with the figures used to rank it.
type Candidate struct {
	Entitlement    model.Entitlement
	Need           map[string]int // dates per usage bucket
	Remaining      map[string]int // credits left per touched bucket before the burn
	TotalRemaining int
}

// ChildSpecific reports whether the entitlement is bound to one child.
func (c Candidate) ChildSpecific() bool { return c.Entitlement.ChildID != "" }

// Unlimited reports whether the entitlement has no credit limit.
func (c Candidate) Unlimited() bool { return c.Entitlement.Limits.Unlimited }

// Stage compares two candidates. A positive result prefers a, negative
// prefers b and zero defers to the next stage.
type Stage func(a, b Candidate) int

// PreferChildSpecific ranks entitlements bound to the child above
// guardian-wide ones.
func PreferChildSpecific(a, b Candidate) int {
	return boolRank(a.ChildSpecific()) - boolRank(b.ChildSpecific())
}

// PreferMoreRemaining ranks by total credit left across the touched buckets;
// unlimited entitlements outrank every limited one.
func PreferMoreRemaining(a, b Candidate) int {
	if a.Unlimited() != b.Unlimited() {
		return boolRank(a.Unlimited()) - boolRank(b.Unlimited())
	}
	return a.TotalRemaining - b.TotalRemaining
}

// PreferLowerID makes the ranking total so equal candidates resolve the same
// way on every call.
func PreferLowerID(a, b Candidate) int {
	return -strings.Compare(a.Entitlement.ID, b.Entitlement.ID)
}

// DefaultStages is the ranking used by Select when no stages are given.
var DefaultStages = []Stage{PreferChildSpecific, PreferMoreRemaining, PreferLowerID}

// Select returns the best entitlement able to pay for every date for the
// child. Pre-transaction reads are advisory: the chosen entitlement is
// re-validated inside the booking transaction.
func Select(ents []model.Entitlement, childID string, dates []time.Time, loc *time.Location, stages ...Stage) (Candidate, error) {
	if len(stages) == 0 {
		stages = DefaultStages
	}
	var feasible []Candidate
	covered := 0
	for _, e := range ents {
		e = e.Clone()
		e.Normalize()
		if !Usable(e, childID, dates, loc) {
			continue
		}
		covered++
		if c, ok := Evaluate(e, dates); ok {
			feasible = append(feasible, c)
		}
	}
	if covered == 0 {
		return Candidate{}, ErrNoCoverage
	}
	if len(feasible) == 0 {
		return Candidate{}, ErrInsufficientCredits
	}
	sort.SliceStable(feasible, func(i, j int) bool {
		for _, st := range stages {
			if r := st(feasible[i], feasible[j]); r != 0 {
				return r > 0
			}
		}
		return false
	})
	return feasible[0], nil
}

// Usable reports whether e is active, scoped to the child (or to any child)
// and valid on every date.
func Usable(e model.Entitlement, childID string, dates []time.Time, loc *time.Location) bool {
	if e.Status != model.EntitlementActive {
		return false
	}
	if e.ChildID != "" && e.ChildID != childID {
		return false
	}
	for _, d := range dates {
		if !e.Covers(schedule.Instant(d, loc)) {
			return false
		}
	}
	return true
}

// Evaluate computes need and remaining credit per bucket and reports
// whether e can pay for all dates.
func Evaluate(e model.Entitlement, dates []time.Time) (Candidate, bool) {
	lim := e.Limits
	if !lim.Unlimited && lim.Amount <= 0 {
		return Candidate{}, false
	}
	need := schedule.BurnByBucket(lim.Period, dates)
	c := Candidate{Entitlement: e, Need: need, Remaining: make(map[string]int, len(need))}
	for k, n := range need {
		left := Remaining(e, k)
		c.Remaining[k] = left
		c.TotalRemaining += left
		if !lim.Unlimited && left < n {
			return Candidate{}, false
		}
	}
	return c, true
}

// Remaining is the credit left in one bucket. Unlimited entitlements report
// their nominal amount, which callers must not treat as a cap.
func Remaining(e model.Entitlement, bucket string) int {
	left := e.Limits.Amount - e.Usage[bucket]
	if left < 0 {
		return 0
	}
	return left
}

// Fits reports whether burning the given credits keeps every bucket within
// the limit.
func Fits(e model.Entitlement, burn map[string]int) bool {
	if e.Limits.Unlimited {
		return true
	}
	if e.Limits.Amount <= 0 {
		return false
	}
	for k, n := range burn {
		if e.Usage[k]+n > e.Limits.Amount {
			return false
		}
	}
	return true
}

// Apply adds the burn to the usage counters. Unlimited entitlements are left
// untouched.
func Apply(e *model.Entitlement, burn map[string]int) {
	if e.Limits.Unlimited {
		return
	}
	if e.Usage == nil {
		e.Usage = map[string]int{}
	}
	for k, n := range burn {
		e.Usage[k] += n
	}
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}
