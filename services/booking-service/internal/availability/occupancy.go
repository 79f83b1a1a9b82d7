package availability

import (
	"math"
	"time"

	"github.com/md-rashed-zaman/salonagenda/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonagenda/services/booking-service/internal/policy"
)

// Occupancy measures a day by grid slots, not by appointments: one long appointment blocks
// every slot it overlaps, and overlapping appointments on one slot count it once.
type Occupancy struct {
	Date          time.Time
	TotalSlots    int
	// OccupiedSlots counts grid slots overlapped by at least one appointment.
	OccupiedSlots int
	// OccupancyRate is OccupiedSlots/TotalSlots as a percentage rounded to the nearest integer.
	OccupancyRate int
	FreeSlots     []time.Time
}

// ComputeOccupancy probes every grid slot of the day, one interval long, against appts.
// Any professional's appointment occupies a slot. The rate is the share of blocked grid
// slots; lead time does not apply, so past slots of today still count.
func ComputeOccupancy(p policy.OperatingHours, date time.Time, appts []model.Appointment) Occupancy {
	occ := Occupancy{Date: civilDate(date, p.Location()), FreeSlots: []time.Time{}}
	for s := range ResolveSeq(DayGrid(p, date), p.Interval(), appts, "") {
		occ.TotalSlots++
		if s.Available {
			occ.FreeSlots = append(occ.FreeSlots, s.Start)
		} else {
			occ.OccupiedSlots++
		}
	}
	if occ.TotalSlots > 0 {
		occ.OccupancyRate = int(math.Round(float64(occ.OccupiedSlots) / float64(occ.TotalSlots) * 100))
	}
	return occ
}
