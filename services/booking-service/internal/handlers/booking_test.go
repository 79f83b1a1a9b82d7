package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/salonagenda/libs/db"
	"github.com/md-rashed-zaman/salonagenda/services/booking-service/internal/agenda"
	"github.com/md-rashed-zaman/salonagenda/services/booking-service/internal/migrations"
	"github.com/md-rashed-zaman/salonagenda/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonagenda/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/salonagenda/services/booking-service/internal/policy"
	"github.com/md-rashed-zaman/salonagenda/services/booking-service/internal/storage"
)

func TestBookingLifecycle_Postgres(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pool, err := db.Open(ctx, url)
	require.NoError(t, err)
	defer pool.Close()
	require.NoError(t, migrations.Up(ctx, pool, logger))

	repo := storage.NewRepository(pool)
	salon := uuid.NewString()
	svcID := uuid.NewString()
	require.NoError(t, repo.UpsertService(ctx, model.Service{ID: svcID, SalonID: salon, Name: "Cut", DurationMinutes: 60, Active: true}))

	now := time.Date(2030, 3, 1, 8, 0, 0, 0, time.UTC)
	a := agenda.New(policy.NewStaticProvider(policy.Default()), repo, repo,
		agenda.WithClock(func() time.Time { return now }), agenda.WithLogger(logger))
	mux := http.NewServeMux()
	Routes{
		Availability: NewAvailabilityHandler(a, logger),
		Booking:      NewBookingHandler(repo, outbox.NewStore(), a, logger),
	}.Register(mux, nil)

	body := `{"salon_id":"` + salon + `","service_id":"` + svcID + `","date":"2030-03-04","time":"10:00","customer_name":"Ana"}`
	post := func(target, body, key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
		if key != "" {
			req.Header.Set("Idempotency-Key", key)
		}
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		return rec
	}

	first := post("/api/v1/public/book", body, "k-1")
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	var created createBookingResponse
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &created))
	assert.Equal(t, "2030-03-04T11:00:00Z", created.EndTime)

	replay := post("/api/v1/public/book", body, "k-1")
	assert.Equal(t, http.StatusCreated, replay.Code)
	assert.JSONEq(t, first.Body.String(), replay.Body.String())

	conflict := post("/api/v1/public/book", body, "")
	assert.Equal(t, http.StatusConflict, conflict.Code)
	assert.JSONEq(t, `{"error":"slot_conflict"}`, conflict.Body.String())

	tooSoon := post("/api/v1/public/book", strings.NewReplacer("2030-03-04", "2030-03-01", "10:00", "09:00").Replace(body), "")
	assert.Equal(t, http.StatusUnprocessableEntity, tooSoon.Code)
	assert.JSONEq(t, `{"error":"insufficient_lead_time","short_by_minutes":60}`, tooSoon.Body.String())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/public/slots?salon_id="+salon+"&service_id="+svcID+"&date=2030-03-04", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var slots slotsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &slots))
	for _, s := range slots.Slots {
		if s.Time == "10:00" {
			assert.False(t, s.Available)
			assert.Equal(t, created.AppointmentID, s.BlockingAppointmentID)
		}
	}

	cancel := post("/api/v1/appointments/cancel", `{"salon_id":"`+salon+`","appointment_id":"`+created.AppointmentID+`","reason":"sick"}`, "")
	require.Equal(t, http.StatusOK, cancel.Code, cancel.Body.String())
	again := post("/api/v1/appointments/cancel", `{"salon_id":"`+salon+`","appointment_id":"`+created.AppointmentID+`"}`, "")
	assert.Equal(t, http.StatusOK, again.Code)
	assert.JSONEq(t, cancel.Body.String(), again.Body.String())

	rebook := post("/api/v1/public/book", body, "")
	assert.Equal(t, http.StatusCreated, rebook.Code, rebook.Body.String())

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/appointments?salon_id="+salon, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var items []listAppointmentItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	assert.Len(t, items, 2)

	missing := post("/api/v1/appointments/cancel", `{"salon_id":"`+salon+`","appointment_id":"`+uuid.NewString()+`"}`, "")
	assert.Equal(t, http.StatusNotFound, missing.Code)
}
