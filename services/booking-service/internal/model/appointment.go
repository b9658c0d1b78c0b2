package model

import (
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/apperr"
)

type Status string

const (
	StatusScheduled Status = "Scheduled"
	StatusCompleted Status = "Completed"
	StatusCancelled Status = "Cancelled"
)

func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusScheduled, StatusCompleted, StatusCancelled:
		return Status(s), true
	}
	return "", false
}

// Active appointments block their slot and count towards the per-day rule.
func (s Status) Active() bool {
	return s != StatusCancelled
}

// CanTransition is the forward-only lifecycle: Scheduled moves to Completed
// or Cancelled and nothing leaves a terminal state.
func (s Status) CanTransition(to Status) bool {
	return s == StatusScheduled && (to == StatusCompleted || to == StatusCancelled)
}

type RequesterKind string

const (
	RequesterRecipient RequesterKind = "recipient"
	RequesterDonor     RequesterKind = "donor"
)

func (k RequesterKind) Valid() bool {
	return k == RequesterRecipient || k == RequesterDonor
}

// Appointment is the booking of one slot. The slot's provider, date and times
// are copied in so listings can be ordered without a join.
type Appointment struct {
	ID            string
	SlotID        string
	ProviderID    string
	SlotDate      time.Time
	StartTime     time.Time
	EndTime       time.Time
	RequesterKind RequesterKind
	RequesterID   string
	BookedBy      string
	Purpose       string
	Status        Status
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Transition applies the lifecycle guard and moves the appointment to next.
func (a *Appointment) Transition(next Status, now time.Time) error {
	if !a.Status.CanTransition(next) {
		return apperr.State("appointment %s cannot move from %s to %s", a.ID, a.Status, next)
	}
	a.Status = next
	a.UpdatedAt = now
	return nil
}

// AppointmentFilter narrows ListAppointments; empty fields match everything.
type AppointmentFilter struct {
	ProviderID    string
	RequesterKind RequesterKind
	RequesterID   string
	Status        Status
	Limit         int
}

// Matches applies the filter to one appointment, ignoring Limit.
func (f AppointmentFilter) Matches(a Appointment) bool {
	switch {
	case f.ProviderID != "" && a.ProviderID != f.ProviderID:
		return false
	case f.RequesterKind != "" && a.RequesterKind != f.RequesterKind:
		return false
	case f.RequesterID != "" && a.RequesterID != f.RequesterID:
		return false
	case f.Status != "" && a.Status != f.Status:
		return false
	}
	return true
}

// Before orders appointments by slot date then start time, ties broken by id.
func (a Appointment) Before(b Appointment) bool {
	if !a.SlotDate.Equal(b.SlotDate) {
		return a.SlotDate.Before(b.SlotDate)
	}
	if !a.StartTime.Equal(b.StartTime) {
		return a.StartTime.Before(b.StartTime)
	}
	return a.ID < b.ID
}
