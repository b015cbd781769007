package schedule

import (
	"fmt"
	"time"

	"github.com/iliyamo/kids-class-booking/internal/model"
)

// LifetimeBucket is the usage bucket of entitlements without a period.
const LifetimeBucket = "lifetime"

// BucketKey maps an occurrence date to the usage counter it consumes:
// YYYY-MM for monthly limits, the ISO week YYYY-Www for weekly limits and a
// single lifetime bucket otherwise. Pass the occurrence date, not the time
// of booking, so a class next month burns next month's credits.
func BucketKey(period model.Period, date time.Time) string {
	switch period {
	case model.PeriodMonth:
		return fmt.Sprintf("%04d-%02d", date.Year(), int(date.Month()))
	case model.PeriodWeek:
		y, w := date.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", y, w)
	default:
		return LifetimeBucket
	}
}

// BurnByBucket counts how many of dates fall into each usage bucket.
func BurnByBucket(period model.Period, dates []time.Time) map[string]int {
	out := make(map[string]int)
	for _, d := range dates {
		out[BucketKey(period, d)]++
	}
	return out
}
