// Package postgres implements storage.Store on PostgreSQL. Slot overlap and
// the one-active-appointment rules are enforced by constraints; booking
// serialises on SELECT ... FOR UPDATE of the slot row with a bounded
// lock_timeout.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/slotbook/libs/db"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/storage"
)

type Store struct {
	pool        *db.Pool
	outbox      *outbox.Repository
	lockTimeout time.Duration
}

var _ storage.Store = (*Store)(nil)

func New(pool *db.Pool, outboxRepo *outbox.Repository, lockTimeout time.Duration) *Store {
	return &Store{pool: pool, outbox: outboxRepo, lockTimeout: lockTimeout}
}

func (s *Store) InTx(ctx context.Context, fn func(storage.Tx) error) error {
	err := s.pool.InTx(ctx, func(ptx pgx.Tx) error {
		if s.lockTimeout > 0 {
			ms := fmt.Sprintf("%dms", s.lockTimeout.Milliseconds())
			if _, err := ptx.Exec(ctx, `SELECT set_config('lock_timeout', $1, true)`, ms); err != nil {
				return err
			}
		}
		return fn(&tx{tx: ptx, outbox: s.outbox})
	})
	return mapError(err)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const slotColumns = `id::text, provider_id, slot_date, start_at, end_at, is_booked, created_at`

func scanSlot(row pgx.Row) (model.Slot, error) {
	var slot model.Slot
	err := row.Scan(&slot.ID, &slot.ProviderID, &slot.Date, &slot.StartTime, &slot.EndTime, &slot.IsBooked, &slot.CreatedAt)
	return slot, err
}

func collectSlots(rows pgx.Rows, err error) ([]model.Slot, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []model.Slot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return slots, nil
}

func (s *Store) GetSlot(ctx context.Context, id string) (model.Slot, error) {
	slot, err := scanSlot(s.pool.QueryRow(ctx, `SELECT `+slotColumns+` FROM slots WHERE id = $1`, id))
	return slot, mapError(err)
}

func (s *Store) ListSlotsByProvider(ctx context.Context, providerID string, from time.Time) ([]model.Slot, error) {
	return collectSlots(s.pool.Query(ctx, `
		SELECT `+slotColumns+`
		FROM slots
		WHERE provider_id = $1 AND slot_date >= $2
		ORDER BY slot_date, start_at, id
	`, providerID, from))
}

func (s *Store) ListAvailableSlots(ctx context.Context, from time.Time, providerID string) ([]model.Slot, error) {
	return collectSlots(s.pool.Query(ctx, `
		SELECT `+slotColumns+`
		FROM slots
		WHERE NOT is_booked
			AND slot_date >= $1
			AND ($2 = '' OR provider_id = $2)
		ORDER BY slot_date, start_at, id
	`, from, providerID))
}

const appointmentColumns = `id::text, slot_id::text, provider_id, slot_date, start_at, end_at,
	requester_kind, requester_id, booked_by, purpose, status, created_at, updated_at`

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var a model.Appointment
	err := row.Scan(
		&a.ID,
		&a.SlotID,
		&a.ProviderID,
		&a.SlotDate,
		&a.StartTime,
		&a.EndTime,
		&a.RequesterKind,
		&a.RequesterID,
		&a.BookedBy,
		&a.Purpose,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	return a, err
}

func (s *Store) GetAppointment(ctx context.Context, id string) (model.Appointment, error) {
	a, err := scanAppointment(s.pool.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id))
	return a, mapError(err)
}

func (s *Store) ListAppointments(ctx context.Context, filter model.AppointmentFilter) ([]model.Appointment, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filter.ProviderID != "" {
		add("provider_id = $%d", filter.ProviderID)
	}
	if filter.RequesterKind != "" {
		add("requester_kind = $%d", string(filter.RequesterKind))
	}
	if filter.RequesterID != "" {
		add("requester_id = $%d", filter.RequesterID)
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}

	q := `SELECT ` + appointmentColumns + ` FROM appointments`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY slot_date, start_at, id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		q += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, a)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

// Constraint names from the migrations, used to tell unique violations apart.
const (
	constraintActiveSlot         = "appointments_active_slot_uq"
	constraintActiveRequesterDay = "appointments_active_requester_day_uq"
	constraintSlotLength         = "slots_fixed_length"
)

// mapError translates driver errors into storage sentinels, keeping the
// original error in the chain.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23P01":
		return fmt.Errorf("%w: %w", storage.ErrSlotOverlap, err)
	case "23514":
		if pgErr.ConstraintName == constraintSlotLength {
			return fmt.Errorf("%w: %w", storage.ErrInvalidSlot, err)
		}
	case "55P03":
		return fmt.Errorf("%w: %w", storage.ErrLockTimeout, err)
	case "23505":
		switch pgErr.ConstraintName {
		case constraintActiveSlot:
			return fmt.Errorf("%w: %w", storage.ErrSlotTaken, err)
		case constraintActiveRequesterDay:
			return fmt.Errorf("%w: %w", storage.ErrDuplicateForDate, err)
		}
	}
	return err
}
