package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/salonagenda/services/booking-service/internal/agenda"
	"github.com/md-rashed-zaman/salonagenda/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonagenda/services/booking-service/internal/policy"
)

type memStore struct {
	appts []model.Appointment
}

func (s *memStore) ListAppointments(_ context.Context, salonID string, from, to time.Time) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range s.appts {
		if a.SalonID == salonID && a.StartTime.Before(to) && a.EndTime.After(from) {
			out = append(out, a)
		}
	}
	return out, nil
}

type memCatalog map[string]model.Service

func (c memCatalog) GetService(_ context.Context, _ string, serviceID string) (model.Service, error) {
	svc, ok := c[serviceID]
	if !ok {
		return model.Service{}, model.ErrNotFound
	}
	return svc, nil
}

var monday = time.Date(2025, 10, 6, 0, 0, 0, 0, time.UTC)

func newTestMux(t *testing.T, now time.Time, appts ...model.Appointment) *http.ServeMux {
	t.Helper()
	p := policy.Default()
	last := policy.MustClock("17:00")
	p.Break = &policy.Break{Start: policy.MustClock("12:00"), End: policy.MustClock("14:00")}
	p.LastBookableStart = &last

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := agenda.New(
		policy.NewStaticProvider(p),
		&memStore{appts: appts},
		memCatalog{"cut": {ID: "cut", SalonID: "s-1", DurationMinutes: 60, Active: true}},
		agenda.WithClock(func() time.Time { return now }),
		agenda.WithLogger(logger),
	)
	mux := http.NewServeMux()
	Routes{Availability: NewAvailabilityHandler(a, logger)}.Register(mux, nil)
	return mux
}

func do(t *testing.T, mux http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestSlots(t *testing.T) {
	booked := model.Appointment{
		ID: "a1", SalonID: "s-1", Status: model.StatusBooked,
		StartTime: time.Date(2025, 10, 6, 9, 0, 0, 0, time.UTC), EndTime: time.Date(2025, 10, 6, 10, 30, 0, 0, time.UTC),
	}
	mux := newTestMux(t, monday.AddDate(0, 0, -5), booked)

	rec := do(t, mux, http.MethodGet, "/api/v1/public/slots?salon_id=s-1&date=2025-10-06&service_id=cut", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp slotsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Slots, 13)
	assert.Equal(t, "09:00", resp.Slots[0].Time)
	assert.False(t, resp.Slots[0].Available)
	assert.Equal(t, "a1", resp.Slots[0].BlockingAppointmentID)
	assert.Equal(t, "10:30", resp.Slots[3].Time)
	assert.True(t, resp.Slots[3].Available)
	assert.Equal(t, "2025-10-06T11:30:00Z", resp.Slots[3].EndTime)
	assert.Equal(t, "17:00", resp.Slots[12].Time)
}

func TestSlots_BadRequests(t *testing.T) {
	mux := newTestMux(t, monday)

	rec := do(t, mux, http.MethodGet, "/api/v1/public/slots?salon_id=s-1&service_id=cut", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, mux, http.MethodGet, "/api/v1/public/slots?salon_id=s-1&service_id=cut&date=06/10/2025", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, mux, http.MethodPost, "/api/v1/public/slots?salon_id=s-1&service_id=cut&date=2025-10-06", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = do(t, mux, http.MethodGet, "/api/v1/public/slots?salon_id=s-1&service_id=perm&date=2025-10-06", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"service_not_found","service_id":"perm"}`, rec.Body.String())
}

func TestValidate(t *testing.T) {
	mux := newTestMux(t, time.Date(2025, 10, 6, 14, 0, 0, 0, time.UTC))

	rec := do(t, mux, http.MethodPost, "/api/v1/public/validate", `{"salon_id":"s-1","service_id":"cut","date":"2025-10-06","time":"15:00"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.JSONEq(t, `{"valid":false,"error":"insufficient_lead_time","short_by_minutes":60}`, rec.Body.String())

	rec = do(t, mux, http.MethodPost, "/api/v1/public/validate", `{"salon_id":"s-1","service_id":"cut","date":"2025-10-06","time":"16:30"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"valid":true}`, rec.Body.String())

	rec = do(t, mux, http.MethodPost, "/api/v1/public/validate", `{"salon_id":"s-1","service_id":"cut","date":"2025-11-10","time":"10:00"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.JSONEq(t, `{"valid":false,"error":"booking_horizon_exceeded","days_ahead":35}`, rec.Body.String())

	rec = do(t, mux, http.MethodPost, "/api/v1/public/validate", `{"salon_id":"s-1","service_id":"nope","date":"2025-10-07","time":"10:00"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.JSONEq(t, `{"valid":false,"error":"service_not_found"}`, rec.Body.String())

	rec = do(t, mux, http.MethodPost, "/api/v1/public/validate", `{"salon_id":"s-1","service_id":"cut","date":"2025-10-07","time":"25:00"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSuggestions(t *testing.T) {
	sunday := monday.AddDate(0, 0, -1)
	mux := newTestMux(t, sunday.Add(-24*time.Hour))

	rec := do(t, mux, http.MethodGet, "/api/v1/public/suggestions?salon_id=s-1&service_id=cut&start_date=2025-10-05&horizon_days=3&max_per_day=2", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp suggestionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Suggestions, 2)
	assert.Equal(t, "2025-10-06", resp.Suggestions[0].Date)
	assert.Equal(t, []string{"09:00", "09:30"}, resp.Suggestions[0].Times)
	assert.Equal(t, "2025-10-07", resp.Suggestions[1].Date)

	rec = do(t, mux, http.MethodGet, "/api/v1/public/suggestions?salon_id=s-1&service_id=cut&horizon_days=0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOccupancy(t *testing.T) {
	booked := model.Appointment{
		ID: "a1", SalonID: "s-1", Status: model.StatusBooked,
		StartTime: time.Date(2025, 10, 6, 9, 0, 0, 0, time.UTC), EndTime: time.Date(2025, 10, 6, 10, 0, 0, 0, time.UTC),
	}
	mux := newTestMux(t, monday, booked)

	rec := do(t, mux, http.MethodGet, "/api/v1/occupancy?salon_id=s-1&date=2025-10-06", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp occupancyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 13, resp.TotalSlots)
	assert.Equal(t, 2, resp.OccupiedSlots)
	assert.Equal(t, 15, resp.OccupancyRate)
	assert.Equal(t, "10:00", resp.FreeSlots[0])
	assert.Len(t, resp.FreeSlots, 11)
}

func TestOperatingHours_WithoutDatabase(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mux := http.NewServeMux()
	Routes{OperatingHours: NewOperatingHoursHandler(nil, nil, policy.NewStaticProvider(policy.Default()), nil, logger)}.Register(mux, nil)

	rec := do(t, mux, http.MethodGet, "/api/v1/salons/operating-hours?salon_id=s-9", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "s-9", got["salon_id"])
	assert.Equal(t, "09:00", got["open_time"])

	rec = do(t, mux, http.MethodPut, "/api/v1/salons/operating-hours", `{"salon_id":"s-9","open_days":[1],"open_time":"18:00","close_time":"09:00"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, mux, http.MethodPut, "/api/v1/salons/operating-hours", `{"open_time":"09:00","close_time":"18:00"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, mux, http.MethodDelete, "/api/v1/salons/operating-hours", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
