package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/salonagenda/services/booking-service/internal/agenda"
	"github.com/md-rashed-zaman/salonagenda/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonagenda/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/salonagenda/services/booking-service/internal/policy"
	"github.com/md-rashed-zaman/salonagenda/services/booking-service/internal/storage"
)

// fakeTx runs queued writes on Commit only.
type fakeTx struct {
	pgx.Tx
	committed bool
	onCommit  []func()
}

func (tx *fakeTx) Commit(context.Context) error {
	tx.committed = true
	for _, f := range tx.onCommit {
		f()
	}
	return nil
}

func (tx *fakeTx) Rollback(context.Context) error { return nil }

type fakeBookingStore struct {
	keys      map[string]storage.IdempotencyRecord
	created   []model.Appointment
	createErr error
	tx        *fakeTx
}

func newFakeBookingStore() *fakeBookingStore {
	return &fakeBookingStore{keys: map[string]storage.IdempotencyRecord{}}
}

func (s *fakeBookingStore) Begin(context.Context) (pgx.Tx, error) {
	s.tx = &fakeTx{}
	return s.tx, nil
}

func (s *fakeBookingStore) ClaimIdempotencyKey(_ context.Context, _ pgx.Tx, salonID, key string) (storage.IdempotencyRecord, error) {
	if rec, ok := s.keys[salonID+"/"+key]; ok {
		return rec, nil
	}
	return storage.IdempotencyRecord{SalonID: salonID, Key: key}, nil
}

func (s *fakeBookingStore) CompleteIdempotencyKey(_ context.Context, tx pgx.Tx, rec storage.IdempotencyRecord) error {
	ftx := tx.(*fakeTx)
	ftx.onCommit = append(ftx.onCommit, func() { s.keys[rec.SalonID+"/"+rec.Key] = rec })
	return nil
}

func (s *fakeBookingStore) Create(_ context.Context, _ pgx.Tx, appt *model.Appointment) (string, error) {
	if s.createErr != nil {
		return "", s.createErr
	}
	s.created = append(s.created, *appt)
	return fmt.Sprintf("appt-%d", len(s.created)), nil
}

func (s *fakeBookingStore) GetAppointmentForUpdate(context.Context, pgx.Tx, string, string) (model.Appointment, error) {
	return model.Appointment{}, errors.New("not stored")
}

func (s *fakeBookingStore) CancelAppointment(context.Context, pgx.Tx, string, string, string) (time.Time, error) {
	return time.Time{}, errors.New("not stored")
}

func (s *fakeBookingStore) ListBySalon(context.Context, string, time.Time, time.Time, int) ([]model.Appointment, error) {
	return nil, nil
}

type recordingEvents struct {
	evts []outbox.Event
}

func (e *recordingEvents) Append(_ context.Context, _ pgx.Tx, evts ...outbox.Event) error {
	e.evts = append(e.evts, evts...)
	return nil
}

func newBookingMux(t *testing.T, store *fakeBookingStore, events *recordingEvents, now time.Time) *http.ServeMux {
	t.Helper()
	p := policy.Default()
	last := policy.MustClock("17:00")
	p.Break = &policy.Break{Start: policy.MustClock("12:00"), End: policy.MustClock("14:00")}
	p.LastBookableStart = &last

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := agenda.New(
		policy.NewStaticProvider(p),
		&memStore{},
		memCatalog{"cut": {ID: "cut", SalonID: "s-1", DurationMinutes: 60, Active: true}},
		agenda.WithClock(func() time.Time { return now }),
		agenda.WithLogger(logger),
	)
	mux := http.NewServeMux()
	Routes{Booking: NewBookingHandler(store, events, a, logger)}.Register(mux, nil)
	return mux
}

func postBooking(t *testing.T, mux http.Handler, key, serviceID, hhmm string) *httptest.ResponseRecorder {
	t.Helper()
	body := fmt.Sprintf(`{"salon_id":"s-1","service_id":%q,"date":"2025-10-06","time":%q,"customer_name":"Ada"}`, serviceID, hhmm)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/public/book", strings.NewReader(body))
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestCreateBooking_WithoutDatabase(t *testing.T) {
	now := time.Date(2025, 10, 6, 8, 0, 0, 0, time.UTC)

	t.Run("policy rejection is 422 with its context", func(t *testing.T) {
		store, events := newFakeBookingStore(), &recordingEvents{}
		mux := newBookingMux(t, store, events, now)

		rec := postBooking(t, mux, "", "cut", "09:00")
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.JSONEq(t, `{"error":"insufficient_lead_time","short_by_minutes":60}`, rec.Body.String())
		assert.Empty(t, store.created)
		assert.Empty(t, events.evts)
		assert.False(t, store.tx.committed)
	})

	t.Run("start off the grid is 422", func(t *testing.T) {
		mux := newBookingMux(t, newFakeBookingStore(), &recordingEvents{}, now)
		for _, hhmm := range []string{"12:30", "17:30", "10:07"} {
			rec := postBooking(t, mux, "", "cut", hhmm)
			require.Equal(t, http.StatusUnprocessableEntity, rec.Code, hhmm)
			assert.JSONEq(t, `{"error":"outside_operating_hours"}`, rec.Body.String(), hhmm)
		}
	})

	t.Run("unknown service is 404", func(t *testing.T) {
		mux := newBookingMux(t, newFakeBookingStore(), &recordingEvents{}, now)
		rec := postBooking(t, mux, "", "perm", "10:00")
		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.JSONEq(t, `{"error":"service_not_found","service_id":"perm"}`, rec.Body.String())
	})

	t.Run("constraint violation on insert is 409", func(t *testing.T) {
		store, events := newFakeBookingStore(), &recordingEvents{}
		store.createErr = &pgconn.PgError{Code: "23505", ConstraintName: "appointments_slot_key"}
		mux := newBookingMux(t, store, events, now)

		rec := postBooking(t, mux, "", "cut", "10:00")
		require.Equal(t, http.StatusConflict, rec.Code)
		assert.JSONEq(t, `{"error":"slot_conflict"}`, rec.Body.String())
		assert.Empty(t, events.evts)
		assert.False(t, store.tx.committed)
	})

	t.Run("other insert failures are 500", func(t *testing.T) {
		store := newFakeBookingStore()
		store.createErr = &pgconn.PgError{Code: "23505", ConstraintName: "appointments_pkey"}
		rec := postBooking(t, newBookingMux(t, store, &recordingEvents{}, now), "", "cut", "10:00")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("booked and replayed under the same key", func(t *testing.T) {
		store, events := newFakeBookingStore(), &recordingEvents{}
		mux := newBookingMux(t, store, events, now)
		want := `{"appointment_id":"appt-1","start_time":"2025-10-06T10:00:00Z","end_time":"2025-10-06T11:00:00Z"}`

		rec := postBooking(t, mux, "k-1", "cut", "10:00")
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.JSONEq(t, want, rec.Body.String())
		assert.True(t, store.tx.committed)
		require.Len(t, events.evts, 1)
		assert.Equal(t, outbox.TypeAppointmentBooked, events.evts[0].EventType)

		rec = postBooking(t, mux, "k-1", "cut", "10:00")
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.JSONEq(t, want, rec.Body.String())
		assert.Len(t, store.created, 1)
		assert.Len(t, events.evts, 1)
	})

	t.Run("rejection is replayed under the same key", func(t *testing.T) {
		store := newFakeBookingStore()
		mux := newBookingMux(t, store, &recordingEvents{}, now)

		first := postBooking(t, mux, "k-2", "cut", "09:00")
		require.Equal(t, http.StatusUnprocessableEntity, first.Code)
		assert.True(t, store.tx.committed)

		// A valid time under the same key still gets the stored answer.
		again := postBooking(t, mux, "k-2", "cut", "10:00")
		require.Equal(t, http.StatusUnprocessableEntity, again.Code)
		assert.JSONEq(t, first.Body.String(), again.Body.String())
		assert.Empty(t, store.created)
	})

	t.Run("missing fields are 400", func(t *testing.T) {
		mux := newBookingMux(t, newFakeBookingStore(), &recordingEvents{}, now)
		rec := do(t, mux, http.MethodPost, "/api/v1/public/book", `{"salon_id":"s-1","service_id":"cut"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor("service_not_found"))
	assert.Equal(t, http.StatusConflict, statusFor("slot_conflict"))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor("outside_operating_hours"))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor("insufficient_lead_time"))
}
