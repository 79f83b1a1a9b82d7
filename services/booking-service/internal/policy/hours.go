package policy

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// Break is the daily pause window, half-open [Start, End).
type Break struct {
	Start Clock `json:"start" yaml:"start"`
	End   Clock `json:"end" yaml:"end"`
}

// OperatingHours is the per-salon scheduling policy. It is read-only to the availability
// engine; every generation and validation call receives the same value.
type OperatingHours struct {
	SalonID             string         `json:"salon_id" yaml:"-"`
	Timezone            string         `json:"timezone" yaml:"timezone"`
	OpenDays            []time.Weekday `json:"open_days" yaml:"open_days"`
	OpenTime            Clock          `json:"open_time" yaml:"open_time"`
	CloseTime           Clock          `json:"close_time" yaml:"close_time"`
	Break               *Break         `json:"break,omitempty" yaml:"break,omitempty"`
	SlotIntervalMinutes int            `json:"slot_interval_minutes" yaml:"slot_interval_minutes"`
	MinLeadTimeMinutes  int            `json:"min_lead_time_minutes" yaml:"min_lead_time_minutes"`
	MaxAdvanceDays      int            `json:"max_advance_days" yaml:"max_advance_days"`
	// LastBookableStart defaults to CloseTime minus one interval when nil.
	LastBookableStart *Clock `json:"last_bookable_start,omitempty" yaml:"last_bookable_start,omitempty"`
}

const DefaultSlotIntervalMinutes = 30

// Default is the policy used for salons that never configured their hours:
// Monday to Saturday 09:00-18:00, no break, 30 minute grid, 2h lead time, 30 day horizon.
func Default() OperatingHours {
	return OperatingHours{
		Timezone:            "UTC",
		OpenDays:            []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday},
		OpenTime:            9 * 60,
		CloseTime:           18 * 60,
		SlotIntervalMinutes: DefaultSlotIntervalMinutes,
		MinLeadTimeMinutes:  120,
		MaxAdvanceDays:      30,
	}
}

func (p OperatingHours) IsOpen(wd time.Weekday) bool {
	return slices.Contains(p.OpenDays, wd)
}

// Location resolves Timezone, falling back to UTC for empty or unknown names.
func (p OperatingHours) Location() *time.Location {
	if p.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (p OperatingHours) Interval() time.Duration {
	return time.Duration(p.SlotIntervalMinutes) * time.Minute
}

func (p OperatingHours) LeadTime() time.Duration {
	return time.Duration(p.MinLeadTimeMinutes) * time.Minute
}

// LastStart is the latest time of day a slot may begin.
func (p OperatingHours) LastStart() Clock {
	if p.LastBookableStart != nil {
		return *p.LastBookableStart
	}
	last := p.CloseTime.Add(-p.SlotIntervalMinutes)
	if last < p.OpenTime {
		return p.OpenTime
	}
	return last
}

// InBreak reports whether c falls inside the break window.
func (p OperatingHours) InBreak(c Clock) bool {
	return p.Break != nil && c >= p.Break.Start && c < p.Break.End
}

// Normalize fills zero-valued fields that have a documented default.
func (p OperatingHours) Normalize() OperatingHours {
	if p.Timezone == "" {
		p.Timezone = "UTC"
	}
	if p.SlotIntervalMinutes <= 0 {
		p.SlotIntervalMinutes = DefaultSlotIntervalMinutes
	}
	if p.OpenDays == nil {
		p.OpenDays = Default().OpenDays
	}
	return p
}

var ErrInvalidPolicy = errors.New("invalid operating hours")

func (p OperatingHours) Validate() error {
	bad := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidPolicy, fmt.Sprintf(format, args...))
	}
	if _, err := time.LoadLocation(p.Timezone); p.Timezone != "" && err != nil {
		return bad("unknown timezone %q", p.Timezone)
	}
	for _, wd := range p.OpenDays {
		if wd < time.Sunday || wd > time.Saturday {
			return bad("weekday %d out of range", wd)
		}
	}
	if p.OpenTime < 0 || p.CloseTime > endOfDay || p.OpenTime >= p.CloseTime {
		return bad("open time %s must be before close time %s", p.OpenTime, p.CloseTime)
	}
	if p.SlotIntervalMinutes <= 0 {
		return bad("slot interval must be positive")
	}
	if p.MinLeadTimeMinutes < 0 {
		return bad("lead time must not be negative")
	}
	if p.MaxAdvanceDays < 0 {
		return bad("booking horizon must not be negative")
	}
	if last := p.LastStart(); last < p.OpenTime || last > p.CloseTime {
		return bad("last bookable start %s outside %s-%s", last, p.OpenTime, p.CloseTime)
	}
	if b := p.Break; b != nil {
		if !(b.Start < b.End && b.End < p.CloseTime) {
			return bad("break %s-%s must satisfy start < end < close", b.Start, b.End)
		}
	}
	return nil
}
