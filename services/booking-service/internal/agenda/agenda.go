package agenda

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	otelx "github.com/md-rashed-zaman/salonagenda/libs/otel"
	"github.com/md-rashed-zaman/salonagenda/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/salonagenda/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/salonagenda/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonagenda/services/booking-service/internal/policy"
)

// AppointmentStore returns a salon's active appointments overlapping [from, to).
type AppointmentStore interface {
	ListAppointments(ctx context.Context, salonID string, from, to time.Time) ([]model.Appointment, error)
}

// ServiceCatalog returns model.ErrNotFound for unknown or inactive services.
type ServiceCatalog interface {
	GetService(ctx context.Context, salonID, serviceID string) (model.Service, error)
}

// Agenda answers availability questions for a salon by loading the policy, the service and the
// existing appointments, then running the availability engine over them.
// Results are advisory; only the booking insert reserves a slot.
type Agenda struct {
	policies policy.Provider
	store    AppointmentStore
	catalog  ServiceCatalog
	now      func() time.Time
	logger   *slog.Logger
	tracer   trace.Tracer
}

type Option func(*Agenda)

func WithClock(now func() time.Time) Option {
	return func(a *Agenda) { a.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(a *Agenda) { a.logger = logger }
}

func New(policies policy.Provider, store AppointmentStore, catalog ServiceCatalog, opts ...Option) *Agenda {
	a := &Agenda{
		policies: policies,
		store:    store,
		catalog:  catalog,
		now:      time.Now,
		logger:   slog.Default(),
		tracer:   otelx.Tracer("booking-service/agenda"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Agenda) start(ctx context.Context, op, salonID string) (context.Context, func(*error)) {
	ctx, span := a.tracer.Start(ctx, "agenda."+op, trace.WithAttributes(attribute.String("salon.id", salonID)))
	began := time.Now()
	return ctx, func(errp *error) {
		err := *errp
		var be *availability.BookingError
		if err != nil && !errors.As(err, &be) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		metrics.ObserveQuery(op, err, time.Since(began))
	}
}

func (a *Agenda) policy(ctx context.Context, salonID string) (policy.OperatingHours, error) {
	p, err := a.policies.GetOperatingHours(ctx, salonID)
	if err != nil {
		return policy.OperatingHours{}, fmt.Errorf("load operating hours: %w", err)
	}
	return p, nil
}

func (a *Agenda) service(ctx context.Context, salonID, serviceID string) (model.Service, error) {
	svc, err := a.catalog.GetService(ctx, salonID, serviceID)
	if errors.Is(err, model.ErrNotFound) {
		return model.Service{}, &availability.BookingError{Kind: availability.ServiceNotFound, ServiceID: serviceID}
	}
	if err != nil {
		return model.Service{}, fmt.Errorf("load service: %w", err)
	}
	return svc, nil
}

func (a *Agenda) appointments(ctx context.Context, salonID string, from, to time.Time) ([]model.Appointment, error) {
	appts, err := a.store.ListAppointments(ctx, salonID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}
	return appts, nil
}

// dayBounds returns [midnight, next midnight) of date's calendar day in loc.
func dayBounds(date time.Time, loc *time.Location, days int) (time.Time, time.Time) {
	y, m, d := date.Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, loc)
	return from, from.AddDate(0, 0, days)
}
