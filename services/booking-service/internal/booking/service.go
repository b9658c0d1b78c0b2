// Package booking reserves slots and moves appointments through their
// lifecycle. Every write runs in one store transaction that locks the slot
// row first; failures leave no partial state.
package booking

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/identity"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const maxPurposeLen = 200

type Service struct {
	store  storage.Store
	logger *slog.Logger
	now    func() time.Time
	tracer trace.Tracer
}

func NewService(store storage.Store, logger *slog.Logger, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:  store,
		logger: logger,
		now:    now,
		tracer: otel.Tracer("booking-service/booking"),
	}
}

// BookSlot reserves slotID for the calling recipient or donor.
func (s *Service) BookSlot(ctx context.Context, who identity.Identity, slotID, purpose string) (string, error) {
	kind, ok := who.Requester()
	if !ok || who.ID == "" {
		return "", apperr.Forbidden("only recipients and donors may book slots")
	}
	return s.book(ctx, kind, who.ID, "", slotID, purpose)
}

// BookSlotFor is the administrative entry point: an admin books slotID on
// behalf of requester. The appointment records the admin in BookedBy.
func (s *Service) BookSlotFor(ctx context.Context, admin, requester identity.Identity, slotID, purpose string) (string, error) {
	if admin.Kind != identity.KindAdmin || admin.ID == "" {
		return "", apperr.Forbidden("only admins may book on behalf of others")
	}
	kind, ok := requester.Requester()
	if !ok || strings.TrimSpace(requester.ID) == "" {
		return "", apperr.Validation("requester must be a recipient or donor with an id")
	}
	return s.book(ctx, kind, strings.TrimSpace(requester.ID), admin.ID, slotID, purpose)
}

func (s *Service) book(ctx context.Context, kind model.RequesterKind, requesterID, bookedBy, slotID, purpose string) (string, error) {
	slotID = strings.TrimSpace(slotID)
	if _, err := uuid.Parse(slotID); err != nil {
		return "", apperr.Validation("slot_id must be a uuid")
	}
	purpose = strings.TrimSpace(purpose)
	if utf8.RuneCountInString(purpose) > maxPurposeLen {
		return "", apperr.Validation("purpose must be at most %d characters", maxPurposeLen)
	}

	ctx, span := s.tracer.Start(ctx, "booking.BookSlot", trace.WithAttributes(
		attribute.String("slot.id", slotID),
		attribute.String("requester.kind", string(kind)),
		attribute.Bool("booking.admin", bookedBy != ""),
	))
	defer span.End()

	now := s.now().UTC()
	appt := model.Appointment{
		ID:            uuid.NewString(),
		SlotID:        slotID,
		RequesterKind: kind,
		RequesterID:   requesterID,
		BookedBy:      bookedBy,
		Purpose:       purpose,
		Status:        model.StatusScheduled,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err := s.store.InTx(ctx, func(tx storage.Tx) error {
		slot, err := tx.LockSlot(ctx, slotID)
		if err != nil {
			return err
		}
		if slot.IsBooked {
			return apperr.Conflict(apperr.ReasonAlreadyBooked, "slot is already booked")
		}
		appt.ProviderID = slot.ProviderID
		appt.SlotDate = slot.Date
		appt.StartTime = slot.StartTime
		appt.EndTime = slot.EndTime

		if err := tx.LockRequesterDay(ctx, kind, requesterID, slot.ProviderID, slot.Date); err != nil {
			return err
		}
		dup, err := tx.HasActiveAppointment(ctx, kind, requesterID, slot.ProviderID, slot.Date)
		if err != nil {
			return err
		}
		if dup {
			return apperr.Conflict(apperr.ReasonDuplicateForDate, "already booked with this provider on this date")
		}

		if err := tx.InsertAppointment(ctx, appt); err != nil {
			return err
		}
		if err := tx.SetSlotBooked(ctx, slotID, true); err != nil {
			return err
		}
		return s.addAppointmentEvent(ctx, tx, outbox.TypeAppointmentBooked, appt)
	})
	if err != nil {
		err = translate(err, "slot")
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperr.KindOf(err)))
		level := slog.LevelWarn
		if apperr.IsConflict(err, "") || errors.Is(err, context.Canceled) {
			level = slog.LevelInfo
		}
		s.logger.Log(ctx, level, "booking rejected",
			"slot_id", slotID,
			"requester_kind", string(kind),
			"requester_id", requesterID,
			"booked_by", bookedBy,
			"err", err,
		)
		return "", err
	}

	span.SetAttributes(attribute.String("appointment.id", appt.ID))
	s.logger.Info("slot booked",
		"appointment_id", appt.ID,
		"slot_id", slotID,
		"provider_id", appt.ProviderID,
		"requester_kind", string(kind),
		"requester_id", requesterID,
		"booked_by", bookedBy,
	)
	return appt.ID, nil
}

// TransitionAppointment moves a Scheduled appointment to Completed or
// Cancelled. Cancelling releases the slot in the same transaction.
func (s *Service) TransitionAppointment(ctx context.Context, who identity.Identity, appointmentID string, next model.Status) error {
	appointmentID = strings.TrimSpace(appointmentID)
	if _, err := uuid.Parse(appointmentID); err != nil {
		return apperr.Validation("appointment_id must be a uuid")
	}
	if _, ok := model.ParseStatus(string(next)); !ok {
		return apperr.Validation("unknown status %q", next)
	}

	ctx, span := s.tracer.Start(ctx, "booking.TransitionAppointment", trace.WithAttributes(
		attribute.String("appointment.id", appointmentID),
		attribute.String("appointment.status", string(next)),
	))
	defer span.End()

	var appt model.Appointment
	err := s.store.InTx(ctx, func(tx storage.Tx) error {
		var err error
		appt, err = tx.LockAppointment(ctx, appointmentID)
		if err != nil {
			return err
		}
		if err := authorizeTransition(who, appt, next); err != nil {
			return err
		}
		if err := appt.Transition(next, s.now().UTC()); err != nil {
			return err
		}
		if err := tx.UpdateAppointmentStatus(ctx, appt.ID, appt.Status, appt.UpdatedAt); err != nil {
			return err
		}
		eventType := outbox.TypeAppointmentCompleted
		if next == model.StatusCancelled {
			eventType = outbox.TypeAppointmentCancelled
			if err := releaseSlot(ctx, tx, appt.SlotID); err != nil {
				return err
			}
		}
		return s.addAppointmentEvent(ctx, tx, eventType, appt)
	})
	if err != nil {
		err = translate(err, "appointment")
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperr.KindOf(err)))
		return err
	}

	s.logger.Info("appointment transitioned",
		"appointment_id", appt.ID,
		"slot_id", appt.SlotID,
		"status", string(next),
		"actor_kind", string(who.Kind),
		"actor_id", who.ID,
	)
	return nil
}

// releaseSlot makes a cancelled appointment's slot bookable again. A slot
// deleted since the booking is left alone.
func releaseSlot(ctx context.Context, tx storage.Tx, slotID string) error {
	_, err := tx.LockSlot(ctx, slotID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return tx.SetSlotBooked(ctx, slotID, false)
}

// authorizeTransition: admins and the slot's provider may make any move, the
// requester may only cancel.
func authorizeTransition(who identity.Identity, appt model.Appointment, next model.Status) error {
	switch {
	case who.Kind == identity.KindAdmin:
		return nil
	case who.Kind == identity.KindProvider && who.ID == appt.ProviderID:
		return nil
	case string(who.Kind) == string(appt.RequesterKind) && who.ID == appt.RequesterID:
		if next == model.StatusCancelled {
			return nil
		}
		return apperr.Forbidden("requesters may only cancel their appointments")
	}
	return apperr.Forbidden("not allowed to change this appointment")
}

// ListAppointments returns appointments ordered by (slot date, start time).
// Recipients and donors only ever see their own; providers only theirs.
func (s *Service) ListAppointments(ctx context.Context, who identity.Identity, filter model.AppointmentFilter) ([]model.Appointment, error) {
	if filter.Status != "" {
		if _, ok := model.ParseStatus(string(filter.Status)); !ok {
			return nil, apperr.Validation("unknown status %q", filter.Status)
		}
	}
	if filter.RequesterKind != "" && !filter.RequesterKind.Valid() {
		return nil, apperr.Validation("requester_kind must be recipient or donor")
	}
	switch who.Kind {
	case identity.KindAdmin:
	case identity.KindProvider:
		if filter.ProviderID != "" && filter.ProviderID != who.ID {
			return nil, apperr.Forbidden("providers may only list their own appointments")
		}
		filter.ProviderID = who.ID
	case identity.KindRecipient, identity.KindDonor:
		kind, _ := who.Requester()
		if (filter.RequesterID != "" && filter.RequesterID != who.ID) ||
			(filter.RequesterKind != "" && filter.RequesterKind != kind) {
			return nil, apperr.Forbidden("requesters may only list their own appointments")
		}
		filter.RequesterKind = kind
		filter.RequesterID = who.ID
	default:
		return nil, apperr.Forbidden("unknown caller")
	}
	return s.store.ListAppointments(ctx, filter)
}

func (s *Service) addAppointmentEvent(ctx context.Context, tx storage.Tx, eventType string, appt model.Appointment) error {
	evt, err := outbox.New(ctx, outbox.AggregateAppointment, appt.ID, eventType, outbox.AppointmentPayload{
		AppointmentID: appt.ID,
		SlotID:        appt.SlotID,
		ProviderID:    appt.ProviderID,
		RequesterKind: string(appt.RequesterKind),
		RequesterID:   appt.RequesterID,
		BookedBy:      appt.BookedBy,
		Status:        string(appt.Status),
		SlotDate:      appt.SlotDate.Format(model.DateLayout),
		StartTime:     appt.StartTime.Format("15:04"),
		EndTime:       appt.EndTime.Format("15:04"),
	})
	if err != nil {
		return err
	}
	return tx.AddEvent(ctx, evt)
}

// translate maps storage sentinels onto the error taxonomy. Errors that are
// already classified pass through.
func translate(err error, what string) error {
	if apperr.KindOf(err) != "" {
		return err
	}
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return apperr.NotFound("%s not found", what)
	case errors.Is(err, storage.ErrSlotTaken):
		return apperr.Conflict(apperr.ReasonAlreadyBooked, "slot is already booked")
	case errors.Is(err, storage.ErrDuplicateForDate):
		return apperr.Conflict(apperr.ReasonDuplicateForDate, "already booked with this provider on this date")
	case errors.Is(err, storage.ErrLockTimeout), errors.Is(err, context.DeadlineExceeded):
		return apperr.Timeout("timed out waiting for the "+what, err)
	}
	return err
}
