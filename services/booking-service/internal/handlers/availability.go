package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/salonagenda/services/booking-service/internal/agenda"
	"github.com/md-rashed-zaman/salonagenda/services/booking-service/internal/availability"
)

type AvailabilityHandler struct {
	agenda *agenda.Agenda
	logger *slog.Logger
}

func NewAvailabilityHandler(a *agenda.Agenda, logger *slog.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{agenda: a, logger: logger}
}

type slotItem struct {
	Time                  string `json:"time"`
	StartTime             string `json:"start_time"`
	EndTime               string `json:"end_time"`
	Available             bool   `json:"available"`
	ProfessionalID        string `json:"professional_id,omitempty"`
	BlockingAppointmentID string `json:"blocking_appointment_id,omitempty"`
}

type slotsResponse struct {
	SalonID        string     `json:"salon_id"`
	Date           string     `json:"date"`
	ServiceID      string     `json:"service_id"`
	ProfessionalID string     `json:"professional_id,omitempty"`
	Slots          []slotItem `json:"slots"`
}

func (h *AvailabilityHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if !methodAllowed(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	salonID := strings.TrimSpace(q.Get("salon_id"))
	serviceID := strings.TrimSpace(q.Get("service_id"))
	professionalID := strings.TrimSpace(q.Get("professional_id"))
	if salonID == "" || serviceID == "" || q.Get("date") == "" {
		http.Error(w, "salon_id, service_id, and date are required", http.StatusBadRequest)
		return
	}
	date, err := parseDate(q.Get("date"))
	if err != nil {
		http.Error(w, "invalid date (want YYYY-MM-DD)", http.StatusBadRequest)
		return
	}

	slots, err := h.agenda.GetAvailableSlots(r.Context(), agenda.SlotsQuery{
		SalonID: salonID, Date: date, ServiceID: serviceID, ProfessionalID: professionalID,
	})
	if err != nil {
		writeError(w, h.logger, "slots", err)
		return
	}

	resp := slotsResponse{
		SalonID:        salonID,
		Date:           formatDate(date),
		ServiceID:      serviceID,
		ProfessionalID: professionalID,
		Slots:          make([]slotItem, 0, len(slots)),
	}
	for _, s := range slots {
		item := slotItem{
			Time:           formatClock(s.Start),
			StartTime:      s.Start.Format(time.RFC3339),
			EndTime:        s.End.Format(time.RFC3339),
			Available:      s.Available,
			ProfessionalID: s.ProfessionalID,
		}
		if s.BlockingAppointment != nil {
			item.BlockingAppointmentID = s.BlockingAppointment.ID
		}
		resp.Slots = append(resp.Slots, item)
	}
	writeJSON(w, http.StatusOK, resp)
}

type validateRequest struct {
	SalonID        string `json:"salon_id"`
	Date           string `json:"date"`
	Time           string `json:"time"`
	ServiceID      string `json:"service_id"`
	ProfessionalID string `json:"professional_id"`
}

type validateResponse struct {
	Valid bool `json:"valid"`
	errorBody
}

func (h *AvailabilityHandler) Validate(w http.ResponseWriter, r *http.Request) {
	if !methodAllowed(w, r, http.MethodPost) {
		return
	}
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.SalonID = strings.TrimSpace(req.SalonID)
	req.ServiceID = strings.TrimSpace(req.ServiceID)
	if req.SalonID == "" || req.ServiceID == "" {
		http.Error(w, "salon_id and service_id are required", http.StatusBadRequest)
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

	v, err := h.agenda.ValidateBooking(r.Context(), agenda.ValidateRequest{
		SalonID: req.SalonID, Date: date, Time: at, ServiceID: req.ServiceID, ProfessionalID: strings.TrimSpace(req.ProfessionalID),
	})
	if err != nil {
		writeError(w, h.logger, "validate", err)
		return
	}
	if v.Valid {
		writeJSON(w, http.StatusOK, validateResponse{Valid: true})
		return
	}
	be := v.Err().(*availability.BookingError)
	writeJSON(w, http.StatusUnprocessableEntity, validateResponse{errorBody: bookingErrorBody(be)})
}

type daySuggestion struct {
	Date  string   `json:"date"`
	Times []string `json:"times"`
}

type suggestionsResponse struct {
	SalonID     string          `json:"salon_id"`
	ServiceID   string          `json:"service_id"`
	Suggestions []daySuggestion `json:"suggestions"`
}

func (h *AvailabilityHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	if !methodAllowed(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	req := agenda.SuggestRequest{
		SalonID:        strings.TrimSpace(q.Get("salon_id")),
		ServiceID:      strings.TrimSpace(q.Get("service_id")),
		ProfessionalID: strings.TrimSpace(q.Get("professional_id")),
	}
	if req.SalonID == "" || req.ServiceID == "" {
		http.Error(w, "salon_id and service_id are required", http.StatusBadRequest)
		return
	}
	if raw := q.Get("start_date"); raw != "" {
		d, err := parseDate(raw)
		if err != nil {
			http.Error(w, "invalid start_date (want YYYY-MM-DD)", http.StatusBadRequest)
			return
		}
		req.StartDate = d
	}
	var ok bool
	if req.HorizonDays, ok = boundedInt(q.Get("horizon_days"), 1, 60); !ok {
		http.Error(w, "horizon_days must be between 1 and 60", http.StatusBadRequest)
		return
	}
	if req.MaxPerDay, ok = boundedInt(q.Get("max_per_day"), 1, 50); !ok {
		http.Error(w, "max_per_day must be between 1 and 50", http.StatusBadRequest)
		return
	}

	days, err := h.agenda.SuggestSlots(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, "suggestions", err)
		return
	}
	resp := suggestionsResponse{SalonID: req.SalonID, ServiceID: req.ServiceID, Suggestions: make([]daySuggestion, 0, len(days))}
	for _, d := range days {
		item := daySuggestion{Date: formatDate(d.Date), Times: make([]string, 0, len(d.Slots))}
		for _, s := range d.Slots {
			item.Times = append(item.Times, formatClock(s.Start))
		}
		resp.Suggestions = append(resp.Suggestions, item)
	}
	writeJSON(w, http.StatusOK, resp)
}

type occupancyResponse struct {
	SalonID       string   `json:"salon_id"`
	Date          string   `json:"date"`
	TotalSlots    int      `json:"total_slots"`
	OccupiedSlots int      `json:"occupied_slots"`
	OccupancyRate int      `json:"occupancy_rate"`
	FreeSlots     []string `json:"free_slots"`
}

func (h *AvailabilityHandler) Occupancy(w http.ResponseWriter, r *http.Request) {
	if !methodAllowed(w, r, http.MethodGet) {
		return
	}
	salonID := strings.TrimSpace(r.Header.Get("X-Salon-Id"))
	if salonID == "" {
		salonID = strings.TrimSpace(r.URL.Query().Get("salon_id"))
	}
	if salonID == "" {
		http.Error(w, "salon_id required", http.StatusBadRequest)
		return
	}
	date, err := parseDate(r.URL.Query().Get("date"))
	if err != nil {
		http.Error(w, "invalid date (want YYYY-MM-DD)", http.StatusBadRequest)
		return
	}

	occ, err := h.agenda.GetOccupancy(r.Context(), salonID, date)
	if err != nil {
		writeError(w, h.logger, "occupancy", err)
		return
	}
	resp := occupancyResponse{
		SalonID:       salonID,
		Date:          formatDate(date),
		TotalSlots:    occ.TotalSlots,
		OccupiedSlots: occ.OccupiedSlots,
		OccupancyRate: occ.OccupancyRate,
		FreeSlots:     make([]string, 0, len(occ.FreeSlots)),
	}
	for _, t := range occ.FreeSlots {
		resp.FreeSlots = append(resp.FreeSlots, formatClock(t))
	}
	writeJSON(w, http.StatusOK, resp)
}

// boundedInt parses an optional query value; empty yields 0 (use the default).
func boundedInt(raw string, lo, hi int) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < lo || n > hi {
		return 0, false
	}
	return n, true
}
