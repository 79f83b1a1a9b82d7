package storage

import (
	"context"
	"fmt"

	"github.com/md-rashed-zaman/salonagenda/services/booking-service/internal/model"
)

// GetService returns an active catalog entry, or model.ErrNotFound.
func (r *Repository) GetService(ctx context.Context, salonID, serviceID string) (model.Service, error) {
	var svc model.Service
	err := r.pool.QueryRow(ctx, `
		SELECT id, salon_id, name, duration_minutes, active
		FROM services
		WHERE id = $1 AND salon_id = $2
	`, serviceID, salonID).Scan(&svc.ID, &svc.SalonID, &svc.Name, &svc.DurationMinutes, &svc.Active)
	if IsNotFound(err) {
		return model.Service{}, model.ErrNotFound
	}
	if err != nil {
		return model.Service{}, fmt.Errorf("get service: %w", err)
	}
	if !svc.Active {
		return model.Service{}, model.ErrNotFound
	}
	return svc, nil
}

func (r *Repository) UpsertService(ctx context.Context, svc model.Service) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO services (id, salon_id, name, duration_minutes, active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id)
		DO UPDATE SET name = EXCLUDED.name,
		              duration_minutes = EXCLUDED.duration_minutes,
		              active = EXCLUDED.active,
		              updated_at = now()
	`, svc.ID, svc.SalonID, svc.Name, svc.DurationMinutes, svc.Active)
	return err
}
