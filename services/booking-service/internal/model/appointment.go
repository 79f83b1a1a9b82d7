package model

import (
	"errors"
	"time"
)

const (
	StatusBooked    = "booked"
	StatusCancelled = "cancelled"
)

// ErrNotFound is returned by stores when a requested row does not exist.
var ErrNotFound = errors.New("not found")

type Appointment struct {
	ID             string
	SalonID        string
	ServiceID      string
	ProfessionalID string // empty means "any staff"
	CustomerName   string
	CustomerEmail  string
	CustomerPhone  string
	StartTime      time.Time
	EndTime        time.Time
	Status         string
	CancelledAt    *time.Time
	CancelReason   string
	CreatedAt      time.Time
}

func (a Appointment) Active() bool {
	return a.Status == "" || a.Status == StatusBooked
}

type Service struct {
	ID              string
	SalonID         string
	Name            string
	DurationMinutes int
	Active          bool
}

func (s Service) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}
