package availability

import (
	"fmt"
	"time"
)

type ErrorKind string

const (
	ServiceNotFound        ErrorKind = "service_not_found"
	SalonClosedOnDate      ErrorKind = "salon_closed_on_date"
	PastDateTime           ErrorKind = "past_date_time"
	InsufficientLeadTime   ErrorKind = "insufficient_lead_time"
	BookingHorizonExceeded ErrorKind = "booking_horizon_exceeded"
	// OutsideOperatingHours is a start the day's grid never offers: after the last bookable
	// start, inside the break, or off the slot interval.
	OutsideOperatingHours ErrorKind = "outside_operating_hours"
	// SlotConflict is produced by the booking write path, never by the validator.
	SlotConflict ErrorKind = "slot_conflict"
)

// BookingError carries an ErrorKind plus the numeric context relevant to it.
// errors.Is matches on Kind alone, so the sentinels below can be used as targets.
type BookingError struct {
	Kind      ErrorKind
	ShortBy   time.Duration
	DaysAhead int
	ServiceID string
}

var (
	ErrServiceNotFound        = &BookingError{Kind: ServiceNotFound}
	ErrSalonClosedOnDate      = &BookingError{Kind: SalonClosedOnDate}
	ErrPastDateTime           = &BookingError{Kind: PastDateTime}
	ErrInsufficientLeadTime   = &BookingError{Kind: InsufficientLeadTime}
	ErrBookingHorizonExceeded = &BookingError{Kind: BookingHorizonExceeded}
	ErrOutsideOperatingHours  = &BookingError{Kind: OutsideOperatingHours}
	ErrSlotConflict           = &BookingError{Kind: SlotConflict}
)

func (e *BookingError) Error() string {
	switch e.Kind {
	case ServiceNotFound:
		if e.ServiceID != "" {
			return fmt.Sprintf("%s: %s", e.Kind, e.ServiceID)
		}
	case InsufficientLeadTime:
		if e.ShortBy > 0 {
			return fmt.Sprintf("%s: %d minutes short", e.Kind, int(e.ShortBy.Minutes()))
		}
	case BookingHorizonExceeded:
		if e.DaysAhead > 0 {
			return fmt.Sprintf("%s: %d days ahead", e.Kind, e.DaysAhead)
		}
	}
	return string(e.Kind)
}

func (e *BookingError) Is(target error) bool {
	t, ok := target.(*BookingError)
	return ok && t.Kind == e.Kind
}

// Verdict is the outcome of validating a single requested booking time.
type Verdict struct {
	Valid bool      `json:"valid"`
	Kind  ErrorKind `json:"error,omitempty"`
	// ShortBy is set for InsufficientLeadTime.
	ShortBy time.Duration `json:"-"`
	// DaysAhead is set for BookingHorizonExceeded.
	DaysAhead int `json:"days_ahead,omitempty"`
}

func ok() Verdict { return Verdict{Valid: true} }

// Err returns nil for a valid verdict and a *BookingError otherwise.
func (v Verdict) Err() error {
	if v.Valid {
		return nil
	}
	return &BookingError{Kind: v.Kind, ShortBy: v.ShortBy, DaysAhead: v.DaysAhead}
}
