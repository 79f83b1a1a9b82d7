package availability

import (
	"iter"
	"slices"
	"time"

	"github.com/md-rashed-zaman/salonagenda/services/booking-service/internal/model"
)

// SlotCandidate is one grid start time resolved against existing appointments.
// It is rebuilt on every query and never stored.
type SlotCandidate struct {
	Start     time.Time
	End       time.Time
	Available bool
	// BlockingAppointment is the first conflicting appointment in the order supplied by the caller.
	BlockingAppointment *model.Appointment
	ProfessionalID      string
}

// Resolve marks each candidate available unless [start, start+duration) overlaps an
// existing appointment. With a non-empty professionalID only that professional's
// appointments block; appointments without a professional are then ignored.
func Resolve(candidates []time.Time, duration time.Duration, appts []model.Appointment, professionalID string) []SlotCandidate {
	return slices.Collect(ResolveSeq(slices.Values(candidates), duration, appts, professionalID))
}

// ResolveSeq is the lazy form of Resolve.
func ResolveSeq(candidates iter.Seq[time.Time], duration time.Duration, appts []model.Appointment, professionalID string) iter.Seq[SlotCandidate] {
	relevant := make([]model.Appointment, 0, len(appts))
	for _, a := range appts {
		if !a.Active() {
			continue
		}
		if professionalID != "" && a.ProfessionalID != professionalID {
			continue
		}
		relevant = append(relevant, a)
	}

	return func(yield func(SlotCandidate) bool) {
		for start := range candidates {
			slot := SlotCandidate{
				Start:          start,
				End:            start.Add(duration),
				Available:      true,
				ProfessionalID: professionalID,
			}
			if blocking := firstConflict(Interval{Start: slot.Start, End: slot.End}, relevant); blocking != nil {
				slot.Available = false
				slot.BlockingAppointment = blocking
				slot.ProfessionalID = blocking.ProfessionalID
			}
			if !yield(slot) {
				return
			}
		}
	}
}

// Available filters a candidate sequence down to available slots.
func Available(seq iter.Seq[SlotCandidate]) iter.Seq[SlotCandidate] {
	return func(yield func(SlotCandidate) bool) {
		for s := range seq {
			if s.Available && !yield(s) {
				return
			}
		}
	}
}

func firstConflict(slot Interval, appts []model.Appointment) *model.Appointment {
	for i := range appts {
		if slot.Overlaps(Interval{Start: appts[i].StartTime, End: appts[i].EndTime}) {
			a := appts[i]
			return &a
		}
	}
	return nil
}
