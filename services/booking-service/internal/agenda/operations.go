package agenda

import (
	"context"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/md-rashed-zaman/salonagenda/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/salonagenda/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/salonagenda/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonagenda/services/booking-service/internal/policy"
)

type SlotsQuery struct {
	SalonID        string
	Date           time.Time
	ServiceID      string
	ProfessionalID string
}

// GetAvailableSlots returns every grid candidate of the day resolved against the salon's
// appointments, available or not, in ascending order.
func (a *Agenda) GetAvailableSlots(ctx context.Context, q SlotsQuery) (slots []availability.SlotCandidate, err error) {
	ctx, done := a.start(ctx, "slots", q.SalonID)
	defer done(&err)

	p, err := a.policy(ctx, q.SalonID)
	if err != nil {
		return nil, err
	}
	svc, err := a.service(ctx, q.SalonID, q.ServiceID)
	if err != nil {
		return nil, err
	}
	from, to := dayBounds(q.Date, p.Location(), 1)
	appts, err := a.appointments(ctx, q.SalonID, from, to)
	if err != nil {
		return nil, err
	}
	slots = availability.Resolve(availability.Generate(p, q.Date, a.now()), svc.Duration(), appts, q.ProfessionalID)
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("slots.count", len(slots)))
	return slots, nil
}

type ValidateRequest struct {
	SalonID        string
	Date           time.Time
	Time           policy.Clock
	ServiceID      string
	ProfessionalID string
}

// ValidateBooking runs the policy guards for one requested start. An unknown service is
// reported as a ServiceNotFound verdict, not as an error; errors mean a dependency failed.
func (a *Agenda) ValidateBooking(ctx context.Context, req ValidateRequest) (v availability.Verdict, err error) {
	ctx, done := a.start(ctx, "validate", req.SalonID)
	defer done(&err)

	p, err := a.policy(ctx, req.SalonID)
	if err != nil {
		return availability.Verdict{}, err
	}
	if _, err := a.service(ctx, req.SalonID, req.ServiceID); err != nil {
		if kind, ok := bookingKind(err); ok {
			v = availability.Verdict{Kind: kind}
			metrics.IncVerdict(string(v.Kind))
			return v, nil
		}
		return availability.Verdict{}, err
	}
	v = availability.Validate(p, req.Date, req.Time, a.now())
	metrics.IncVerdict(string(v.Kind))
	return v, nil
}

type SuggestRequest struct {
	SalonID   string
	ServiceID string
	// StartDate defaults to today in the salon's time zone.
	StartDate      time.Time
	ProfessionalID string
	HorizonDays    int
	MaxPerDay      int
}

func (a *Agenda) SuggestSlots(ctx context.Context, req SuggestRequest) (days []availability.DaySuggestion, err error) {
	ctx, done := a.start(ctx, "suggest", req.SalonID)
	defer done(&err)

	p, err := a.policy(ctx, req.SalonID)
	if err != nil {
		return nil, err
	}
	svc, err := a.service(ctx, req.SalonID, req.ServiceID)
	if err != nil {
		return nil, err
	}
	now := a.now()
	start := req.StartDate
	if start.IsZero() {
		start = now.In(p.Location())
	}
	opts := availability.SuggestOptions{
		ProfessionalID: req.ProfessionalID,
		HorizonDays:    req.HorizonDays,
		MaxPerDay:      req.MaxPerDay,
	}
	horizon := opts.HorizonDays
	if horizon <= 0 {
		horizon = availability.DefaultHorizonDays
	}
	from, to := dayBounds(start, p.Location(), horizon)
	appts, err := a.appointments(ctx, req.SalonID, from, to)
	if err != nil {
		return nil, err
	}
	return availability.Suggest(p, svc.Duration(), start, now, appts, opts), nil
}

func (a *Agenda) GetOccupancy(ctx context.Context, salonID string, date time.Time) (occ availability.Occupancy, err error) {
	ctx, done := a.start(ctx, "occupancy", salonID)
	defer done(&err)

	p, err := a.policy(ctx, salonID)
	if err != nil {
		return availability.Occupancy{}, err
	}
	from, to := dayBounds(date, p.Location(), 1)
	appts, err := a.appointments(ctx, salonID, from, to)
	if err != nil {
		return availability.Occupancy{}, err
	}
	return availability.ComputeOccupancy(p, date, appts), nil
}

type BookingRequest struct {
	SalonID        string
	ServiceID      string
	ProfessionalID string
	Date           time.Time
	Time           policy.Clock
	CustomerName   string
	CustomerEmail  string
	CustomerPhone  string
}

// PrepareBooking validates a booking request and returns the appointment to insert, with its
// end time derived from the service duration. It rejects a slot already taken at read time
// with SlotConflict, but the insert itself must still be atomic. Starts the day's grid does not
// offer are OutsideOperatingHours, which keeps every stored start on the slot key.
func (a *Agenda) PrepareBooking(ctx context.Context, req BookingRequest) (appt model.Appointment, err error) {
	ctx, done := a.start(ctx, "prepare_booking", req.SalonID)
	defer done(&err)

	p, err := a.policy(ctx, req.SalonID)
	if err != nil {
		return model.Appointment{}, err
	}
	svc, err := a.service(ctx, req.SalonID, req.ServiceID)
	if err != nil {
		return model.Appointment{}, err
	}
	now := a.now()
	v := availability.Validate(p, req.Date, req.Time, now)
	if !v.Valid {
		metrics.IncVerdict(string(v.Kind))
		return model.Appointment{}, v.Err()
	}

	start := req.Time.On(req.Date, p.Location())
	if !slices.ContainsFunc(availability.Generate(p, req.Date, now), start.Equal) {
		metrics.IncVerdict(string(availability.OutsideOperatingHours))
		return model.Appointment{}, availability.ErrOutsideOperatingHours
	}
	metrics.IncVerdict(string(v.Kind))
	end := start.Add(svc.Duration())
	appts, err := a.appointments(ctx, req.SalonID, start, end)
	if err != nil {
		return model.Appointment{}, err
	}
	if slot := availability.Resolve([]time.Time{start}, svc.Duration(), appts, req.ProfessionalID)[0]; !slot.Available {
		return model.Appointment{}, availability.ErrSlotConflict
	}

	return model.Appointment{
		SalonID:        req.SalonID,
		ServiceID:      svc.ID,
		ProfessionalID: req.ProfessionalID,
		CustomerName:   req.CustomerName,
		CustomerEmail:  req.CustomerEmail,
		CustomerPhone:  req.CustomerPhone,
		StartTime:      start,
		EndTime:        end,
		Status:         model.StatusBooked,
	}, nil
}
