package availability

import (
	"time"

	"github.com/md-rashed-zaman/salonagenda/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonagenda/services/booking-service/internal/policy"
)

const (
	DefaultHorizonDays = 7
	DefaultMaxPerDay   = 5
)

type SuggestOptions struct {
	ProfessionalID string
	HorizonDays    int
	MaxPerDay      int
}

func (o SuggestOptions) withDefaults() SuggestOptions {
	if o.HorizonDays <= 0 {
		o.HorizonDays = DefaultHorizonDays
	}
	if o.MaxPerDay <= 0 {
		o.MaxPerDay = DefaultMaxPerDay
	}
	return o
}

// DaySuggestion lists the first available slots of one calendar day.
type DaySuggestion struct {
	Date  time.Time
	Slots []SlotCandidate
}

// Suggest scans HorizonDays calendar days starting at startDate and returns, for each day
// with at least one available slot, its first MaxPerDay available slots. The whole window is
// always scanned. appts may span the window; only overlaps matter.
func Suggest(p policy.OperatingHours, duration time.Duration, startDate, now time.Time, appts []model.Appointment, opts SuggestOptions) []DaySuggestion {
	opts = opts.withDefaults()
	loc := p.Location()
	first := civilDate(startDate, loc)

	var out []DaySuggestion
	for i := 0; i < opts.HorizonDays; i++ {
		day := first.AddDate(0, 0, i)
		var slots []SlotCandidate
		for s := range Available(ResolveSeq(Grid(p, day, now), duration, appts, opts.ProfessionalID)) {
			slots = append(slots, s)
			if len(slots) == opts.MaxPerDay {
				break
			}
		}
		if len(slots) > 0 {
			out = append(out, DaySuggestion{Date: day, Slots: slots})
		}
	}
	return out
}
