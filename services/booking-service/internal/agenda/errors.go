package agenda

import (
	"errors"

	"github.com/md-rashed-zaman/salonagenda/services/booking-service/internal/availability"
)

// bookingKind extracts the ErrorKind of a typed booking error.
func bookingKind(err error) (availability.ErrorKind, bool) {
	var be *availability.BookingError
	if errors.As(err, &be) {
		return be.Kind, true
	}
	return "", false
}
