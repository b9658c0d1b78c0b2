// Package memory is a single-process storage.Store. Writers serialise on
// keyed locks; a transaction's writes are staged and applied under one short
// state latch at commit, so readers only ever see committed snapshots.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/storage"
)

type Store struct {
	lockTimeout time.Duration
	locks       *keyedLocks

	mu    sync.RWMutex
	slots map[string]model.Slot
	byDay map[providerDay]map[string]struct{}
	appts map[string]model.Appointment

	// Active appointment id by slot id and by requester day.
	activeBySlot map[string]string
	activeByDay  map[requesterDay]string
	events       []outbox.Record

	// published is the index of the first event not yet drained.
	published int
	drainMu   sync.Mutex
}

var (
	_ storage.Store = (*Store)(nil)
	_ outbox.Source = (*Store)(nil)
)

func New(lockTimeout time.Duration) *Store {
	return &Store{
		lockTimeout:  lockTimeout,
		locks:        newKeyedLocks(),
		slots:        make(map[string]model.Slot),
		byDay:        make(map[providerDay]map[string]struct{}),
		appts:        make(map[string]model.Appointment),
		activeBySlot: make(map[string]string),
		activeByDay:  make(map[requesterDay]string),
	}
}

type providerDay struct {
	providerID string
	date       string
}

func dayOf(providerID string, date time.Time) providerDay {
	return providerDay{providerID: providerID, date: date.Format(model.DateLayout)}
}

// requesterDay scopes the one-appointment-per-day rule. The kind is part of
// the key because recipient and donor ids come from separate populations.
type requesterDay struct {
	kind        model.RequesterKind
	requesterID string
	providerDay
}

func requesterDayOf(kind model.RequesterKind, requesterID, providerID string, date time.Time) requesterDay {
	return requesterDay{kind: kind, requesterID: requesterID, providerDay: dayOf(providerID, date)}
}

func appointmentDay(a model.Appointment) requesterDay {
	return requesterDayOf(a.RequesterKind, a.RequesterID, a.ProviderID, a.SlotDate)
}

func (s *Store) InTx(ctx context.Context, fn func(storage.Tx) error) error {
	t := newTx(s)
	defer t.releaseLocks()

	if err := fn(t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.commit(t)
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) GetSlot(_ context.Context, id string) (model.Slot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	slot, ok := s.slots[id]
	if !ok {
		return model.Slot{}, storage.ErrNotFound
	}
	return slot, nil
}

func (s *Store) ListSlotsByProvider(_ context.Context, providerID string, from time.Time) ([]model.Slot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Slot
	for _, slot := range s.slots {
		if slot.ProviderID == providerID && !slot.Date.Before(from) {
			out = append(out, slot)
		}
	}
	sortSlots(out)
	return out, nil
}

func (s *Store) ListAvailableSlots(_ context.Context, from time.Time, providerID string) ([]model.Slot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Slot
	for _, slot := range s.slots {
		if slot.IsBooked || slot.Date.Before(from) {
			continue
		}
		if providerID != "" && slot.ProviderID != providerID {
			continue
		}
		out = append(out, slot)
	}
	sortSlots(out)
	return out, nil
}

func (s *Store) GetAppointment(_ context.Context, id string) (model.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	appt, ok := s.appts[id]
	if !ok {
		return model.Appointment{}, storage.ErrNotFound
	}
	return appt, nil
}

func (s *Store) ListAppointments(_ context.Context, filter model.AppointmentFilter) ([]model.Appointment, error) {
	s.mu.RLock()
	var out []model.Appointment
	for _, appt := range s.appts {
		if filter.Matches(appt) {
			out = append(out, appt)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Events returns every event written so far, published or not.
func (s *Store) Events() []outbox.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]outbox.Record(nil), s.events...)
}

// Drain implements outbox.Source. Drains run one at a time and hand events
// out in write order.
func (s *Store) Drain(ctx context.Context, limit int, send outbox.SendFunc) (int, error) {
	s.drainMu.Lock()
	defer s.drainMu.Unlock()

	s.mu.RLock()
	end := len(s.events)
	if limit > 0 && end-s.published > limit {
		end = s.published + limit
	}
	batch := append([]outbox.Record(nil), s.events[s.published:end]...)
	s.mu.RUnlock()

	if len(batch) == 0 {
		return 0, nil
	}
	if err := send(ctx, batch); err != nil {
		return 0, err
	}

	s.mu.Lock()
	s.published += len(batch)
	s.mu.Unlock()
	return len(batch), nil
}

func sortSlots(slots []model.Slot) {
	sort.Slice(slots, func(i, j int) bool {
		a, b := slots[i], slots[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if !a.StartTime.Equal(b.StartTime) {
			return a.StartTime.Before(b.StartTime)
		}
		return a.ID < b.ID
	})
}
