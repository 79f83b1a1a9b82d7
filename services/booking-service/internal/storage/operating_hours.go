package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/salonagenda/services/booking-service/internal/policy"
)

// GetOperatingHours implements policy.Provider. Salons without a row yield policy.ErrNotConfigured.
func (r *Repository) GetOperatingHours(ctx context.Context, salonID string) (policy.OperatingHours, error) {
	var (
		h          policy.OperatingHours
		days       []int32
		openMin    int32
		closeMin   int32
		breakStart *int32
		breakEnd   *int32
		last       *int32
	)
	err := r.pool.QueryRow(ctx, `
		SELECT salon_id, timezone, open_days, open_minute, close_minute, break_start_minute, break_end_minute,
			slot_interval_minutes, min_lead_time_minutes, max_advance_days, last_bookable_start_minute
		FROM salon_operating_hours
		WHERE salon_id = $1
	`, salonID).Scan(
		&h.SalonID,
		&h.Timezone,
		&days,
		&openMin,
		&closeMin,
		&breakStart,
		&breakEnd,
		&h.SlotIntervalMinutes,
		&h.MinLeadTimeMinutes,
		&h.MaxAdvanceDays,
		&last,
	)
	if IsNotFound(err) {
		return policy.OperatingHours{}, policy.ErrNotConfigured
	}
	if err != nil {
		return policy.OperatingHours{}, fmt.Errorf("get operating hours: %w", err)
	}

	h.OpenDays = make([]time.Weekday, 0, len(days))
	for _, d := range days {
		h.OpenDays = append(h.OpenDays, time.Weekday(d))
	}
	h.OpenTime = policy.Clock(openMin)
	h.CloseTime = policy.Clock(closeMin)
	if breakStart != nil && breakEnd != nil {
		h.Break = &policy.Break{Start: policy.Clock(*breakStart), End: policy.Clock(*breakEnd)}
	}
	if last != nil {
		c := policy.Clock(*last)
		h.LastBookableStart = &c
	}
	return h, nil
}

func (r *Repository) UpsertOperatingHours(ctx context.Context, tx pgx.Tx, h policy.OperatingHours) error {
	days := make([]int32, 0, len(h.OpenDays))
	for _, d := range h.OpenDays {
		days = append(days, int32(d))
	}
	var breakStart, breakEnd, last *int32
	if h.Break != nil {
		s, e := int32(h.Break.Start), int32(h.Break.End)
		breakStart, breakEnd = &s, &e
	}
	if h.LastBookableStart != nil {
		l := int32(*h.LastBookableStart)
		last = &l
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO salon_operating_hours
			(salon_id, timezone, open_days, open_minute, close_minute, break_start_minute, break_end_minute,
			 slot_interval_minutes, min_lead_time_minutes, max_advance_days, last_bookable_start_minute)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (salon_id)
		DO UPDATE SET timezone = EXCLUDED.timezone,
		              open_days = EXCLUDED.open_days,
		              open_minute = EXCLUDED.open_minute,
		              close_minute = EXCLUDED.close_minute,
		              break_start_minute = EXCLUDED.break_start_minute,
		              break_end_minute = EXCLUDED.break_end_minute,
		              slot_interval_minutes = EXCLUDED.slot_interval_minutes,
		              min_lead_time_minutes = EXCLUDED.min_lead_time_minutes,
		              max_advance_days = EXCLUDED.max_advance_days,
		              last_bookable_start_minute = EXCLUDED.last_bookable_start_minute,
		              updated_at = now()
	`, h.SalonID, h.Timezone, days, int32(h.OpenTime), int32(h.CloseTime), breakStart, breakEnd,
		h.SlotIntervalMinutes, h.MinLeadTimeMinutes, h.MaxAdvanceDays, last)
	return err
}
