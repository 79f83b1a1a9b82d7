package handlers

import "net/http"

// Routes groups the HTTP handlers of the service. Public routes are wrapped with the
// public middleware (rate limiting); nil handlers are not mounted.
type Routes struct {
	Availability   *AvailabilityHandler
	Booking        *BookingHandler
	OperatingHours *OperatingHoursHandler
}

func (rt Routes) Register(mux *http.ServeMux, public func(http.Handler) http.Handler) {
	if public == nil {
		public = func(h http.Handler) http.Handler { return h }
	}
	if h := rt.Availability; h != nil {
		mux.Handle("/api/v1/public/slots", public(http.HandlerFunc(h.Slots)))
		mux.Handle("/api/v1/public/validate", public(http.HandlerFunc(h.Validate)))
		mux.Handle("/api/v1/public/suggestions", public(http.HandlerFunc(h.Suggestions)))
		mux.HandleFunc("/api/v1/occupancy", h.Occupancy)
	}
	if h := rt.Booking; h != nil {
		mux.Handle("/api/v1/public/book", public(http.HandlerFunc(h.Create)))
		mux.HandleFunc("/api/v1/appointments", h.List)
		mux.HandleFunc("/api/v1/appointments/cancel", h.Cancel)
	}
	if h := rt.OperatingHours; h != nil {
		mux.Handle("/api/v1/salons/operating-hours", h)
	}
}
