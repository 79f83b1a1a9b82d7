package availability

import (
	"time"

	"github.com/md-rashed-zaman/salonagenda/services/booking-service/internal/policy"
)

// Validate checks a requested start (date's calendar day at clock time at, in the policy
// time zone) against p. Guards run in a fixed order and the first failure wins:
// past, lead time, horizon, open day.
func Validate(p policy.OperatingHours, date time.Time, at policy.Clock, now time.Time) Verdict {
	loc := p.Location()
	requested := at.On(date, loc)

	if !requested.After(now) {
		return Verdict{Kind: PastDateTime}
	}
	if gap := requested.Sub(now); gap < p.LeadTime() {
		return Verdict{Kind: InsufficientLeadTime, ShortBy: p.LeadTime() - gap}
	}
	if ahead := daysBetween(now.In(loc), requested); ahead > p.MaxAdvanceDays {
		return Verdict{Kind: BookingHorizonExceeded, DaysAhead: ahead}
	}
	if !p.IsOpen(requested.Weekday()) {
		return Verdict{Kind: SalonClosedOnDate}
	}
	return ok()
}
