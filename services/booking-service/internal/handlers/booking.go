package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/salonagenda/services/booking-service/internal/agenda"
	"github.com/md-rashed-zaman/salonagenda/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/salonagenda/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/salonagenda/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonagenda/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/salonagenda/services/booking-service/internal/storage"
)

// BookingStore is the transactional side of the appointment store; *storage.Repository
// implements it.
type BookingStore interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	ClaimIdempotencyKey(ctx context.Context, tx pgx.Tx, salonID, key string) (storage.IdempotencyRecord, error)
	CompleteIdempotencyKey(ctx context.Context, tx pgx.Tx, rec storage.IdempotencyRecord) error
	Create(ctx context.Context, tx pgx.Tx, appt *model.Appointment) (string, error)
	GetAppointmentForUpdate(ctx context.Context, tx pgx.Tx, salonID, appointmentID string) (model.Appointment, error)
	CancelAppointment(ctx context.Context, tx pgx.Tx, salonID, appointmentID, reason string) (time.Time, error)
	ListBySalon(ctx context.Context, salonID string, from, to time.Time, limit int) ([]model.Appointment, error)
}

// EventWriter stores an outbox event inside the caller's transaction.
type EventWriter interface {
	Append(ctx context.Context, tx pgx.Tx, evts ...outbox.Event) error
}

type BookingHandler struct {
	repo   BookingStore
	events EventWriter
	agenda *agenda.Agenda
	logger *slog.Logger
}

func NewBookingHandler(repo BookingStore, events EventWriter, a *agenda.Agenda, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{
		repo:   repo,
		events: events,
		agenda: a,
		logger: logger,
	}
}

type createBookingRequest struct {
	SalonID        string `json:"salon_id"`
	ServiceID      string `json:"service_id"`
	ProfessionalID string `json:"professional_id"`
	Date           string `json:"date"`
	Time           string `json:"time"`
	CustomerName   string `json:"customer_name"`
	CustomerEmail  string `json:"customer_email"`
	CustomerPhone  string `json:"customer_phone"`
}

type createBookingResponse struct {
	AppointmentID string `json:"appointment_id"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
}

type cancelBookingRequest struct {
	SalonID       string `json:"salon_id"`
	AppointmentID string `json:"appointment_id"`
	Reason        string `json:"reason"`
}

type cancelBookingResponse struct {
	AppointmentID string `json:"appointment_id"`
	Status        string `json:"status"`
	CancelledAt   string `json:"cancelled_at"`
}

type listAppointmentItem struct {
	AppointmentID  string `json:"appointment_id"`
	ProfessionalID string `json:"professional_id,omitempty"`
	ServiceID      string `json:"service_id"`
	CustomerName   string `json:"customer_name"`
	StartTime      string `json:"start_time"`
	EndTime        string `json:"end_time"`
	Status         string `json:"status"`
	CancelledAt    string `json:"cancelled_at,omitempty"`
	CreatedAt      string `json:"created_at"`
}

// Create books a slot. Availability reads are advisory; the insert is the reservation and
// the loser of a race gets 409 slot_conflict from the database constraints.
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !methodAllowed(w, r, http.MethodPost) {
		return
	}

	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	req.SalonID = strings.TrimSpace(req.SalonID)
	req.ServiceID = strings.TrimSpace(req.ServiceID)
	req.ProfessionalID = strings.TrimSpace(req.ProfessionalID)
	req.CustomerName = strings.TrimSpace(req.CustomerName)

	if req.SalonID == "" || req.ServiceID == "" || req.CustomerName == "" {
		http.Error(w, "missing required fields", http.StatusBadRequest)
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		http.Error(w, "invalid date (want YYYY-MM-DD)", http.StatusBadRequest)
		return
	}
	at, err := parseClock(req.Time)
	if err != nil {
		http.Error(w, "invalid time (want HH:MM)", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if idempotencyKey != "" {
		rec, err := h.repo.ClaimIdempotencyKey(ctx, tx, req.SalonID, idempotencyKey)
		if err != nil {
			http.Error(w, "failed to lock idempotency key", http.StatusInternalServerError)
			return
		}
		if rec.Completed() {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(rec.StatusCode)
			_, _ = w.Write(rec.Response)
			return
		}
	}

	appt, err := h.agenda.PrepareBooking(ctx, agenda.BookingRequest{
		SalonID:        req.SalonID,
		ServiceID:      req.ServiceID,
		ProfessionalID: req.ProfessionalID,
		Date:           date,
		Time:           at,
		CustomerName:   req.CustomerName,
		CustomerEmail:  strings.TrimSpace(req.CustomerEmail),
		CustomerPhone:  strings.TrimSpace(req.CustomerPhone),
	})
	if err != nil {
		var be *availability.BookingError
		if !errors.As(err, &be) {
			// Dependency failure: leave the idempotency key open so the client can retry.
			writeError(w, h.logger, "booking", err)
			return
		}
		metrics.IncBooking(string(be.Kind))
		if idempotencyKey != "" && h.recordRejection(ctx, tx, req.SalonID, idempotencyKey, be) {
			_ = tx.Commit(ctx)
		}
		writeJSON(w, statusFor(be.Kind), bookingErrorBody(be))
		return
	}

	id, err := h.repo.Create(ctx, tx, &appt)
	if err != nil {
		if storage.IsConflict(err) {
			metrics.IncBooking(string(availability.SlotConflict))
			writeJSON(w, http.StatusConflict, bookingErrorBody(availability.ErrSlotConflict))
			return
		}
		h.logger.Error("failed to create appointment", "err", err)
		http.Error(w, "failed to create appointment", http.StatusInternalServerError)
		return
	}

	evt, err := outbox.AppointmentBooked(appt)
	if err != nil {
		http.Error(w, "failed to build event payload", http.StatusInternalServerError)
		return
	}
	if err := h.events.Append(ctx, tx, evt); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	respBody, err := json.Marshal(createBookingResponse{
		AppointmentID: id,
		StartTime:     appt.StartTime.Format(time.RFC3339),
		EndTime:       appt.EndTime.Format(time.RFC3339),
	})
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	if idempotencyKey != "" {
		done := storage.IdempotencyRecord{
			SalonID: req.SalonID, Key: idempotencyKey,
			AppointmentID: id, StatusCode: http.StatusCreated, Response: respBody,
		}
		if err := h.repo.CompleteIdempotencyKey(ctx, tx, done); err != nil {
			http.Error(w, "failed to finalize idempotency key", http.StatusInternalServerError)
			return
		}
	}

	if err := tx.Commit(ctx); err != nil {
		if storage.IsConflict(err) {
			metrics.IncBooking(string(availability.SlotConflict))
			writeJSON(w, http.StatusConflict, bookingErrorBody(availability.ErrSlotConflict))
			return
		}
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	metrics.IncBooking("booked")
	h.logger.Info("appointment booked", "appointment_id", id, "salon_id", appt.SalonID, "start_time", appt.StartTime)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(respBody)
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if !methodAllowed(w, r, http.MethodPost) {
		return
	}

	var req cancelBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.SalonID = strings.TrimSpace(req.SalonID)
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	req.Reason = strings.TrimSpace(req.Reason)
	if req.SalonID == "" || req.AppointmentID == "" {
		http.Error(w, "salon_id and appointment_id required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := h.repo.GetAppointmentForUpdate(ctx, tx, req.SalonID, req.AppointmentID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "appointment not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load appointment", http.StatusInternalServerError)
		return
	}

	if appt.Status == model.StatusCancelled && appt.CancelledAt != nil {
		h.writeCancelResponse(w, appt.ID, appt.CancelledAt.UTC())
		return
	}
	if appt.Status != model.StatusBooked {
		http.Error(w, "appointment cannot be cancelled", http.StatusConflict)
		return
	}

	cancelledAt, err := h.repo.CancelAppointment(ctx, tx, req.SalonID, appt.ID, req.Reason)
	if err != nil {
		http.Error(w, "failed to cancel appointment", http.StatusInternalServerError)
		return
	}

	evt, err := outbox.AppointmentCancelled(appt, cancelledAt, req.Reason)
	if err != nil {
		http.Error(w, "failed to build cancellation event", http.StatusInternalServerError)
		return
	}
	if err := h.events.Append(ctx, tx, evt); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	metrics.IncBooking("cancelled")
	h.writeCancelResponse(w, appt.ID, cancelledAt.UTC())
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if !methodAllowed(w, r, http.MethodGet) {
		return
	}

	q := r.URL.Query()
	salonID := strings.TrimSpace(r.Header.Get("X-Salon-Id"))
	if salonID == "" {
		salonID = strings.TrimSpace(q.Get("salon_id"))
	}
	if salonID == "" {
		http.Error(w, "salon_id required", http.StatusBadRequest)
		return
	}

	var from, to time.Time
	if raw := q.Get("from"); raw != "" {
		d, err := parseDate(raw)
		if err != nil {
			http.Error(w, "invalid from (want YYYY-MM-DD)", http.StatusBadRequest)
			return
		}
		from = d
	}
	if raw := q.Get("to"); raw != "" {
		d, err := parseDate(raw)
		if err != nil {
			http.Error(w, "invalid to (want YYYY-MM-DD)", http.StatusBadRequest)
			return
		}
		to = d.AddDate(0, 0, 1)
	}

	limit := 50
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	appts, err := h.repo.ListBySalon(r.Context(), salonID, from, to, limit)
	if err != nil {
		h.logger.Error("failed to list appointments", "salon_id", salonID, "err", err)
		http.Error(w, "failed to list appointments", http.StatusInternalServerError)
		return
	}

	items := make([]listAppointmentItem, 0, len(appts))
	for _, appt := range appts {
		item := listAppointmentItem{
			AppointmentID:  appt.ID,
			ProfessionalID: appt.ProfessionalID,
			ServiceID:      appt.ServiceID,
			CustomerName:   appt.CustomerName,
			StartTime:      appt.StartTime.UTC().Format(time.RFC3339),
			EndTime:        appt.EndTime.UTC().Format(time.RFC3339),
			Status:         appt.Status,
			CreatedAt:      appt.CreatedAt.UTC().Format(time.RFC3339),
		}
		if appt.CancelledAt != nil {
			item.CancelledAt = appt.CancelledAt.UTC().Format(time.RFC3339)
		}
		items = append(items, item)
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *BookingHandler) writeCancelResponse(w http.ResponseWriter, appointmentID string, cancelledAt time.Time) {
	writeJSON(w, http.StatusOK, cancelBookingResponse{
		AppointmentID: appointmentID,
		Status:        model.StatusCancelled,
		CancelledAt:   cancelledAt.Format(time.RFC3339),
	})
}

func (h *BookingHandler) recordRejection(ctx context.Context, tx pgx.Tx, salonID, key string, be *availability.BookingError) bool {
	body, err := json.Marshal(bookingErrorBody(be))
	if err != nil {
		return false
	}
	rec := storage.IdempotencyRecord{SalonID: salonID, Key: key, StatusCode: statusFor(be.Kind), Response: body}
	if err := h.repo.CompleteIdempotencyKey(ctx, tx, rec); err != nil {
		h.logger.Error("failed to record rejected booking", "err", err)
		return false
	}
	return true
}
