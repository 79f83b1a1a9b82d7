package policy

import (
	"context"
	"errors"
	"log/slog"
)

// ErrNotConfigured is returned by a Provider when a salon has no stored operating hours.
var ErrNotConfigured = errors.New("operating hours not configured")

type Provider interface {
	GetOperatingHours(ctx context.Context, salonID string) (OperatingHours, error)
}

type staticProvider struct {
	hours OperatingHours
}

// NewStaticProvider serves the same policy for every salon.
func NewStaticProvider(hours OperatingHours) Provider {
	return &staticProvider{hours: hours}
}

func (p *staticProvider) GetOperatingHours(_ context.Context, salonID string) (OperatingHours, error) {
	h := p.hours
	h.SalonID = salonID
	return h, nil
}

type fallbackProvider struct {
	primary  Provider
	defaults OperatingHours
	logger   *slog.Logger
}

// WithFallback serves defaults for salons the primary provider reports as ErrNotConfigured.
// Any other error is returned unchanged.
func WithFallback(primary Provider, defaults OperatingHours, logger *slog.Logger) Provider {
	return &fallbackProvider{primary: primary, defaults: defaults, logger: logger}
}

func (p *fallbackProvider) GetOperatingHours(ctx context.Context, salonID string) (OperatingHours, error) {
	h, err := p.primary.GetOperatingHours(ctx, salonID)
	if err == nil {
		return h.Normalize(), nil
	}
	if !errors.Is(err, ErrNotConfigured) {
		return OperatingHours{}, err
	}
	if p.logger != nil {
		p.logger.Debug("operating hours not configured; using defaults", "salon_id", salonID)
	}
	d := p.defaults
	d.SalonID = salonID
	return d, nil
}
