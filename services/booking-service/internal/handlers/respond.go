package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/salonagenda/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/salonagenda/services/booking-service/internal/policy"
)

const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

type errorBody struct {
	Error          availability.ErrorKind `json:"error,omitempty"`
	ServiceID      string                 `json:"service_id,omitempty"`
	ShortByMinutes int                    `json:"short_by_minutes,omitempty"`
	DaysAhead      int                    `json:"days_ahead,omitempty"`
}

func bookingErrorBody(be *availability.BookingError) errorBody {
	return errorBody{
		Error:          be.Kind,
		ServiceID:      be.ServiceID,
		ShortByMinutes: int(be.ShortBy.Round(time.Minute).Minutes()),
		DaysAhead:      be.DaysAhead,
	}
}

func statusFor(kind availability.ErrorKind) int {
	switch kind {
	case availability.ServiceNotFound:
		return http.StatusNotFound
	case availability.SlotConflict:
		return http.StatusConflict
	default:
		return http.StatusUnprocessableEntity
	}
}

// writeError answers typed booking errors with their kind and context; anything else is a 500.
func writeError(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	var be *availability.BookingError
	if errors.As(err, &be) {
		writeJSON(w, statusFor(be.Kind), bookingErrorBody(be))
		return
	}
	logger.Error(op+" failed", "err", err)
	http.Error(w, op+" failed", http.StatusInternalServerError)
}

func methodAllowed(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func parseDate(raw string) (time.Time, error) {
	return time.Parse(dateLayout, strings.TrimSpace(raw))
}

func parseClock(raw string) (policy.Clock, error) {
	return policy.ParseClock(raw)
}

func formatDate(t time.Time) string  { return t.Format(dateLayout) }
func formatClock(t time.Time) string { return t.Format(clockLayout) }
