package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/salonagenda/services/booking-service/internal/model"
)

// AnyProfessional is the professional_key stored for bookings without a professional.
const AnyProfessional = "*"

const slotKeyConstraint = "appointments_slot_key"

const appointmentColumns = `id::text, salon_id, service_id, COALESCE(professional_id, ''),
	customer_name, customer_email, customer_phone,
	start_time, end_time, status, cancelled_at, COALESCE(cancellation_reason, ''), created_at`

func professionalKey(professionalID string) string {
	if professionalID == "" {
		return AnyProfessional
	}
	return professionalID
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var appt model.Appointment
	var cancelledAt *time.Time
	err := row.Scan(
		&appt.ID,
		&appt.SalonID,
		&appt.ServiceID,
		&appt.ProfessionalID,
		&appt.CustomerName,
		&appt.CustomerEmail,
		&appt.CustomerPhone,
		&appt.StartTime,
		&appt.EndTime,
		&appt.Status,
		&cancelledAt,
		&appt.CancelReason,
		&appt.CreatedAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	appt.CancelledAt = cancelledAt
	return appt, nil
}

func collectAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	defer rows.Close()
	appts := []model.Appointment{}
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

// Create inserts a booked appointment. Two bookings for the same salon, professional key
// and start time, or overlapping bookings of one professional, fail with an error
// for which IsConflict is true.
func (r *Repository) Create(ctx context.Context, tx pgx.Tx, appt *model.Appointment) (string, error) {
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	if appt.Status == "" {
		appt.Status = model.StatusBooked
	}
	err := tx.QueryRow(ctx, `
		INSERT INTO appointments
			(id, salon_id, service_id, professional_id, professional_key, customer_name, customer_email, customer_phone,
			 start_time, end_time, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at
	`, appt.ID, appt.SalonID, appt.ServiceID, nullable(appt.ProfessionalID), professionalKey(appt.ProfessionalID),
		appt.CustomerName, appt.CustomerEmail, appt.CustomerPhone,
		appt.StartTime, appt.EndTime, appt.Status).Scan(&appt.CreatedAt)
	if err != nil {
		return "", err
	}
	return appt.ID, nil
}

// ListAppointments returns active appointments of a salon overlapping [from, to),
// ordered by start time.
func (r *Repository) ListAppointments(ctx context.Context, salonID string, from, to time.Time) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE salon_id = $1
			AND status = 'booked'
			AND start_time < $3
			AND end_time > $2
		ORDER BY start_time ASC, created_at ASC
	`, salonID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return collectAppointments(rows)
}

// ListBySalon returns the most recent appointments of a salon in any status, newest first.
// A zero from or to leaves that side unbounded.
func (r *Repository) ListBySalon(ctx context.Context, salonID string, from, to time.Time, limit int) ([]model.Appointment, error) {
	if limit <= 0 {
		limit = 50
	}
	var fromArg, toArg *time.Time
	if !from.IsZero() {
		fromArg = &from
	}
	if !to.IsZero() {
		toArg = &to
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE salon_id = $1
			AND ($2::timestamptz IS NULL OR start_time >= $2)
			AND ($3::timestamptz IS NULL OR start_time < $3)
		ORDER BY start_time DESC
		LIMIT $4
	`, salonID, fromArg, toArg, limit)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *Repository) GetAppointmentForUpdate(ctx context.Context, tx pgx.Tx, salonID, appointmentID string) (model.Appointment, error) {
	if _, err := uuid.Parse(appointmentID); err != nil {
		return model.Appointment{}, pgx.ErrNoRows
	}
	return scanAppointment(tx.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1 AND salon_id = $2
		FOR UPDATE
	`, appointmentID, salonID))
}

func (r *Repository) CancelAppointment(ctx context.Context, tx pgx.Tx, salonID, appointmentID, reason string) (time.Time, error) {
	var cancelledAt time.Time
	err := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'cancelled',
			cancelled_at = now(),
			cancellation_reason = $3
		WHERE id = $1 AND salon_id = $2
		RETURNING cancelled_at
	`, appointmentID, salonID, reason).Scan(&cancelledAt)
	return cancelledAt, err
}

// IdempotencyRecord is the stored outcome of a booking request made under an Idempotency-Key.
type IdempotencyRecord struct {
	SalonID       string
	Key           string
	AppointmentID string
	StatusCode    int
	Response      []byte
}

// Completed reports whether an earlier request already wrote its response.
func (rec IdempotencyRecord) Completed() bool { return rec.StatusCode > 0 }

// ClaimIdempotencyKey upserts the key and holds its row lock until tx ends, so a
// concurrent request with the same key waits and then sees the committed outcome.
func (r *Repository) ClaimIdempotencyKey(ctx context.Context, tx pgx.Tx, salonID, key string) (IdempotencyRecord, error) {
	rec := IdempotencyRecord{SalonID: salonID, Key: key}
	err := tx.QueryRow(ctx, `
		INSERT INTO booking_idempotency_keys AS k (salon_id, idempotency_key)
		VALUES ($1, $2)
		ON CONFLICT (salon_id, idempotency_key) DO UPDATE SET updated_at = k.updated_at
		RETURNING COALESCE(k.appointment_id::text, ''), COALESCE(k.status_code, 0), k.response_payload
	`, salonID, key).Scan(&rec.AppointmentID, &rec.StatusCode, &rec.Response)
	if err != nil {
		return IdempotencyRecord{}, fmt.Errorf("claim idempotency key: %w", err)
	}
	return rec, nil
}

// CompleteIdempotencyKey stores rec's response against its key. An empty
// AppointmentID is stored as NULL.
func (r *Repository) CompleteIdempotencyKey(ctx context.Context, tx pgx.Tx, rec IdempotencyRecord) error {
	tag, err := tx.Exec(ctx, `
		UPDATE booking_idempotency_keys
		SET appointment_id = NULLIF($3, '')::uuid, status_code = $4, response_payload = $5, updated_at = now()
		WHERE salon_id = $1 AND idempotency_key = $2
	`, rec.SalonID, rec.Key, rec.AppointmentID, rec.StatusCode, rec.Response)
	if err != nil {
		return fmt.Errorf("complete idempotency key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("complete idempotency key %q: not claimed", rec.Key)
	}
	return nil
}
