package outbox

import (
	"encoding/json"
	"time"

	"github.com/md-rashed-zaman/salonagenda/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonagenda/services/booking-service/internal/policy"
)

const (
	TypeAppointmentBooked     = "booking.appointment.booked.v1"
	TypeAppointmentCancelled  = "booking.appointment.cancelled.v1"
	TypeOperatingHoursUpdated = "salon.operating_hours.updated.v1"
)

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

func AppointmentBooked(appt model.Appointment) (Event, error) {
	payload, err := json.Marshal(map[string]any{
		"appointment_id":  appt.ID,
		"salon_id":        appt.SalonID,
		"service_id":      appt.ServiceID,
		"professional_id": appt.ProfessionalID,
		"customer_name":   appt.CustomerName,
		"customer_email":  appt.CustomerEmail,
		"customer_phone":  appt.CustomerPhone,
		"start_time":      appt.StartTime.UTC().Format(time.RFC3339),
		"end_time":        appt.EndTime.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return Event{}, err
	}
	return Event{AggregateType: "appointment", AggregateID: appt.ID, EventType: TypeAppointmentBooked, Payload: payload}, nil
}

func AppointmentCancelled(appt model.Appointment, cancelledAt time.Time, reason string) (Event, error) {
	payload, err := json.Marshal(map[string]any{
		"appointment_id":  appt.ID,
		"salon_id":        appt.SalonID,
		"service_id":      appt.ServiceID,
		"professional_id": appt.ProfessionalID,
		"start_time":      appt.StartTime.UTC().Format(time.RFC3339),
		"end_time":        appt.EndTime.UTC().Format(time.RFC3339),
		"cancelled_at":    cancelledAt.UTC().Format(time.RFC3339),
		"reason":          reason,
	})
	if err != nil {
		return Event{}, err
	}
	return Event{AggregateType: "appointment", AggregateID: appt.ID, EventType: TypeAppointmentCancelled, Payload: payload}, nil
}

func OperatingHoursUpdated(h policy.OperatingHours) (Event, error) {
	payload, err := json.Marshal(h)
	if err != nil {
		return Event{}, err
	}
	return Event{AggregateType: "salon", AggregateID: h.SalonID, EventType: TypeOperatingHoursUpdated, Payload: payload}, nil
}
