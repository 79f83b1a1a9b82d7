package availability

import (
	"iter"
	"slices"
	"time"

	"github.com/md-rashed-zaman/salonagenda/services/booking-service/internal/policy"
)

// Grid yields the candidate start times of date's calendar day under p, ascending.
//
// The day is read from date's year/month/day and placed in the policy time zone. Closed days
// and days before now's calendar day yield nothing. On now's calendar day the first candidate
// is the earliest grid point at or after now plus the lead time.
//
// Only the start of a candidate is checked against the break window; a candidate starting
// right before the break may run into it, and no candidate is checked against the service
// duration or closing time.
func Grid(p policy.OperatingHours, date, now time.Time) iter.Seq[time.Time] {
	loc := p.Location()
	day := civilDate(date, loc)
	if !p.IsOpen(day.Weekday()) {
		return none
	}

	from := p.OpenTime
	today := civilDate(now.In(loc), loc)
	switch {
	case day.Before(today):
		return none
	case day.Equal(today):
		earliest := now.In(loc).Add(p.LeadTime())
		if !civilDate(earliest, loc).Equal(day) {
			return none
		}
		from = roundUpToGrid(p, earliest)
	}
	return dayGrid(p, day, from)
}

// DayGrid yields every candidate of date's calendar day, with no lead-time or past-day cutoff.
func DayGrid(p policy.OperatingHours, date time.Time) iter.Seq[time.Time] {
	loc := p.Location()
	day := civilDate(date, loc)
	if !p.IsOpen(day.Weekday()) {
		return none
	}
	return dayGrid(p, day, p.OpenTime)
}

// Generate is Grid collected into a slice. Closed days and days before now's calendar day
// give an empty result, even when the time of day is still ahead of now.
func Generate(p policy.OperatingHours, date, now time.Time) []time.Time {
	return slices.Collect(Grid(p, date, now))
}

func dayGrid(p policy.OperatingHours, day time.Time, from policy.Clock) iter.Seq[time.Time] {
	interval := p.SlotIntervalMinutes
	if interval <= 0 {
		return none
	}
	last := p.LastStart()
	loc := day.Location()
	return func(yield func(time.Time) bool) {
		for c := from; c <= last && c < p.CloseTime; c = c.Add(interval) {
			if p.InBreak(c) {
				continue
			}
			if !yield(c.On(day, loc)) {
				return
			}
		}
	}
}

// roundUpToGrid returns the first grid point, counted from the opening time, at or after t.
func roundUpToGrid(p policy.OperatingHours, t time.Time) policy.Clock {
	c := policy.ClockOf(t)
	if t.Second() > 0 || t.Nanosecond() > 0 {
		c++
	}
	if c <= p.OpenTime {
		return p.OpenTime
	}
	interval := policy.Clock(p.SlotIntervalMinutes)
	steps := (c - p.OpenTime + interval - 1) / interval
	return p.OpenTime + steps*interval
}

func none(func(time.Time) bool) {}
