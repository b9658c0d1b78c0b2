// Package storage declares what the slot generator and the booking
// coordinator need from persistence. The postgres and memory packages
// implement it.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/outbox"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrSlotOverlap is returned when a new slot would overlap an existing
	// slot of the same provider.
	ErrSlotOverlap = errors.New("slot overlaps an existing slot")
	// ErrSlotTaken is returned when a slot already has an active appointment.
	ErrSlotTaken = errors.New("slot already has an active appointment")
	// ErrDuplicateForDate is returned when the requester already holds an
	// active appointment with the same provider on the same date.
	ErrDuplicateForDate = errors.New("requester already booked with provider on this date")
	// ErrInvalidSlot is returned for a slot that is not exactly
	// model.SlotLength long.
	ErrInvalidSlot = errors.New("slot must be exactly 30 minutes")
	ErrLockTimeout = errors.New("lock wait timed out")
)

// Store reads never block on booking locks.
type Store interface {
	// InTx runs fn in one transaction. Nothing fn wrote is visible unless fn
	// returns nil.
	InTx(ctx context.Context, fn func(Tx) error) error

	GetSlot(ctx context.Context, id string) (model.Slot, error)
	// ListSlotsByProvider returns the provider's slots on or after from,
	// ordered by (date, start).
	ListSlotsByProvider(ctx context.Context, providerID string, from time.Time) ([]model.Slot, error)
	// ListAvailableSlots returns unbooked slots on or after from, optionally
	// for one provider, ordered by (date, start).
	ListAvailableSlots(ctx context.Context, from time.Time, providerID string) ([]model.Slot, error)

	GetAppointment(ctx context.Context, id string) (model.Appointment, error)
	// ListAppointments is ordered by (slot date, start time).
	ListAppointments(ctx context.Context, filter model.AppointmentFilter) ([]model.Appointment, error)

	Ping(ctx context.Context) error
}

// Tx holds row locks until the transaction ends.
type Tx interface {
	// LockProviderDay serialises slot creation for one provider and date.
	LockProviderDay(ctx context.Context, providerID string, date time.Time) error
	ListSlotsForDay(ctx context.Context, providerID string, date time.Time) ([]model.Slot, error)
	CreateSlot(ctx context.Context, slot model.Slot) error

	// LockSlot waits for exclusive access to the slot, bounded by the
	// store's lock timeout.
	LockSlot(ctx context.Context, id string) (model.Slot, error)
	SetSlotBooked(ctx context.Context, id string, booked bool) error
	DeleteSlot(ctx context.Context, id string) error

	// LockRequesterDay serialises the per-date rule for one requester and
	// provider. Recipients and donors are separate populations: the same id
	// under another kind is a different requester.
	LockRequesterDay(ctx context.Context, kind model.RequesterKind, requesterID, providerID string, date time.Time) error
	HasActiveAppointment(ctx context.Context, kind model.RequesterKind, requesterID, providerID string, date time.Time) (bool, error)
	InsertAppointment(ctx context.Context, appt model.Appointment) error
	LockAppointment(ctx context.Context, id string) (model.Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id string, status model.Status, at time.Time) error

	AddEvent(ctx context.Context, evt outbox.Event) error
}
