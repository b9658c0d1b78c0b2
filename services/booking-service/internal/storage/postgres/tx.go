package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/storage"
)

type tx struct {
	tx     pgx.Tx
	outbox *outbox.Repository
}

// advisoryLock takes a transaction-scoped lock on key. It waits subject to
// lock_timeout like any row lock.
func (t *tx) advisoryLock(ctx context.Context, key string) error {
	_, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key)
	return mapError(err)
}

func (t *tx) LockProviderDay(ctx context.Context, providerID string, date time.Time) error {
	return t.advisoryLock(ctx, storage.LockKey("slots", providerID, date.Format(model.DateLayout)))
}

func (t *tx) ListSlotsForDay(ctx context.Context, providerID string, date time.Time) ([]model.Slot, error) {
	return collectSlots(t.tx.Query(ctx, `
		SELECT `+slotColumns+`
		FROM slots
		WHERE provider_id = $1 AND slot_date = $2
		ORDER BY start_at, id
	`, providerID, date))
}

func (t *tx) CreateSlot(ctx context.Context, slot model.Slot) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO slots (id, provider_id, slot_date, start_at, end_at, is_booked, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, slot.ID, slot.ProviderID, slot.Date, slot.StartTime, slot.EndTime, slot.IsBooked, slot.CreatedAt)
	return mapError(err)
}

func (t *tx) LockSlot(ctx context.Context, id string) (model.Slot, error) {
	slot, err := scanSlot(t.tx.QueryRow(ctx, `SELECT `+slotColumns+` FROM slots WHERE id = $1 FOR UPDATE`, id))
	return slot, mapError(err)
}

func (t *tx) SetSlotBooked(ctx context.Context, id string, booked bool) error {
	tag, err := t.tx.Exec(ctx, `UPDATE slots SET is_booked = $2 WHERE id = $1`, id, booked)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (t *tx) DeleteSlot(ctx context.Context, id string) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM slots WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (t *tx) LockRequesterDay(ctx context.Context, kind model.RequesterKind, requesterID, providerID string, date time.Time) error {
	return t.advisoryLock(ctx, storage.LockKey("requester", string(kind), requesterID, providerID, date.Format(model.DateLayout)))
}

func (t *tx) HasActiveAppointment(ctx context.Context, kind model.RequesterKind, requesterID, providerID string, date time.Time) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM appointments
			WHERE requester_kind = $1 AND requester_id = $2 AND provider_id = $3 AND slot_date = $4
			  AND status <> 'Cancelled'
		)
	`, string(kind), requesterID, providerID, date).Scan(&exists)
	return exists, mapError(err)
}

func (t *tx) InsertAppointment(ctx context.Context, a model.Appointment) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO appointments
			(id, slot_id, provider_id, slot_date, start_at, end_at, requester_kind, requester_id,
			 booked_by, purpose, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, a.ID, a.SlotID, a.ProviderID, a.SlotDate, a.StartTime, a.EndTime, string(a.RequesterKind), a.RequesterID,
		a.BookedBy, a.Purpose, string(a.Status), a.CreatedAt, a.UpdatedAt)
	return mapError(err)
}

func (t *tx) LockAppointment(ctx context.Context, id string) (model.Appointment, error) {
	a, err := scanAppointment(t.tx.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1 FOR UPDATE`, id))
	return a, mapError(err)
}

func (t *tx) UpdateAppointmentStatus(ctx context.Context, id string, status model.Status, at time.Time) error {
	tag, err := t.tx.Exec(ctx, `UPDATE appointments SET status = $2, updated_at = $3 WHERE id = $1`, id, string(status), at)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (t *tx) AddEvent(ctx context.Context, evt outbox.Event) error {
	return t.outbox.Insert(ctx, t.tx, evt)
}
