package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRegisterIsIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Register()
		Register()
	})
}

func TestCounters(t *testing.T) {
	IncVerdict("")
	IncVerdict("insufficient_lead_time")
	IncVerdict("insufficient_lead_time")
	assert.Equal(t, 1.0, testutil.ToFloat64(verdicts.WithLabelValues("valid")))
	assert.Equal(t, 2.0, testutil.ToFloat64(verdicts.WithLabelValues("insufficient_lead_time")))

	IncBooking("conflict")
	assert.Equal(t, 1.0, testutil.ToFloat64(bookings.WithLabelValues("conflict")))
}

func TestObserveQuery(t *testing.T) {
	ObserveQuery("slots", nil, 5*time.Millisecond)
	ObserveQuery("slots", errors.New("db"), time.Millisecond)

	assert.Equal(t, 2, testutil.CollectAndCount(queryDuration, "booking_availability_query_duration_seconds"))
}
