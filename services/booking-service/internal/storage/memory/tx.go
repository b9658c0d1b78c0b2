package memory

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/storage"
)

type tx struct {
	s    *Store
	held []string

	// Staged writes. A nil slot marks a deletion.
	slots        map[string]*model.Slot
	createdSlots []string
	appts        map[string]model.Appointment
	insertedAppt []string
	events       []outbox.Event
}

func newTx(s *Store) *tx {
	return &tx{
		s:     s,
		slots: make(map[string]*model.Slot),
		appts: make(map[string]model.Appointment),
	}
}

func (t *tx) lock(ctx context.Context, key string) error {
	for _, k := range t.held {
		if k == key {
			return nil
		}
	}
	if err := t.s.locks.acquire(ctx, key, t.s.lockTimeout); err != nil {
		return err
	}
	t.held = append(t.held, key)
	return nil
}

func (t *tx) releaseLocks() {
	for i := len(t.held) - 1; i >= 0; i-- {
		t.s.locks.release(t.held[i])
	}
	t.held = nil
}

// slot reads through staged writes. Callers hold s.mu.
func (t *tx) slot(id string) (model.Slot, bool) {
	if p, ok := t.slots[id]; ok {
		if p == nil {
			return model.Slot{}, false
		}
		return *p, true
	}
	slot, ok := t.s.slots[id]
	return slot, ok
}

func (t *tx) appt(id string) (model.Appointment, bool) {
	if a, ok := t.appts[id]; ok {
		return a, true
	}
	a, ok := t.s.appts[id]
	return a, ok
}

func (t *tx) LockProviderDay(ctx context.Context, providerID string, date time.Time) error {
	return t.lock(ctx, storage.LockKey("day", providerID, date.Format(model.DateLayout)))
}

func (t *tx) ListSlotsForDay(_ context.Context, providerID string, date time.Time) ([]model.Slot, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	return t.daySlots(providerID, date), nil
}

// daySlots merges committed and staged slots. Callers hold s.mu.
func (t *tx) daySlots(providerID string, date time.Time) []model.Slot {
	var out []model.Slot
	for id := range t.s.byDay[dayOf(providerID, date)] {
		if slot, ok := t.slot(id); ok {
			out = append(out, slot)
		}
	}
	for _, id := range t.createdSlots {
		if _, committed := t.s.slots[id]; committed {
			continue
		}
		if slot, ok := t.slot(id); ok && slot.ProviderID == providerID && slot.Date.Equal(date) {
			out = append(out, slot)
		}
	}
	sortSlots(out)
	return out
}

func (t *tx) CreateSlot(_ context.Context, slot model.Slot) error {
	if slot.EndTime.Sub(slot.StartTime) != model.SlotLength {
		return storage.ErrInvalidSlot
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	if overlapsDay(t.daySlots(slot.ProviderID, slot.Date), slot) {
		return storage.ErrSlotOverlap
	}
	t.slots[slot.ID] = &slot
	t.createdSlots = append(t.createdSlots, slot.ID)
	return nil
}

func overlapsDay(day []model.Slot, slot model.Slot) bool {
	set := availability.NewSet()
	for _, other := range day {
		if other.ID != slot.ID {
			set.Insert(other.Interval())
		}
	}
	return set.OverlapsAny(slot.Interval())
}

func (t *tx) LockSlot(ctx context.Context, id string) (model.Slot, error) {
	if err := t.lock(ctx, storage.LockKey("slot", id)); err != nil {
		return model.Slot{}, err
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	slot, ok := t.slot(id)
	if !ok {
		return model.Slot{}, storage.ErrNotFound
	}
	return slot, nil
}

func (t *tx) SetSlotBooked(_ context.Context, id string, booked bool) error {
	t.s.mu.RLock()
	slot, ok := t.slot(id)
	t.s.mu.RUnlock()
	if !ok {
		return storage.ErrNotFound
	}
	slot.IsBooked = booked
	t.slots[id] = &slot
	return nil
}

func (t *tx) DeleteSlot(_ context.Context, id string) error {
	t.s.mu.RLock()
	_, ok := t.slot(id)
	t.s.mu.RUnlock()
	if !ok {
		return storage.ErrNotFound
	}
	t.slots[id] = nil
	return nil
}

func (t *tx) LockRequesterDay(ctx context.Context, kind model.RequesterKind, requesterID, providerID string, date time.Time) error {
	return t.lock(ctx, storage.LockKey("requester", string(kind), requesterID, providerID, date.Format(model.DateLayout)))
}

func (t *tx) HasActiveAppointment(_ context.Context, kind model.RequesterKind, requesterID, providerID string, date time.Time) (bool, error) {
	key := requesterDayOf(kind, requesterID, providerID, date)
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	for _, a := range t.appts {
		if a.Status.Active() && appointmentDay(a) == key {
			return true, nil
		}
	}
	if id, ok := t.s.activeByDay[key]; ok {
		a, _ := t.appt(id)
		return a.Status.Active(), nil
	}
	return false, nil
}

func (t *tx) InsertAppointment(_ context.Context, appt model.Appointment) error {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	if err := t.checkActive(appt); err != nil {
		return err
	}
	t.appts[appt.ID] = appt
	t.insertedAppt = append(t.insertedAppt, appt.ID)
	return nil
}

// checkActive enforces one active appointment per slot and per requester,
// provider and date. Callers hold s.mu.
func (t *tx) checkActive(appt model.Appointment) error {
	if !appt.Status.Active() {
		return nil
	}
	taken := func(id string) bool {
		if id == appt.ID {
			return false
		}
		other, ok := t.appt(id)
		return ok && other.Status.Active()
	}
	if id, ok := t.s.activeBySlot[appt.SlotID]; ok && taken(id) {
		return storage.ErrSlotTaken
	}
	day := appointmentDay(appt)
	if id, ok := t.s.activeByDay[day]; ok && taken(id) {
		return storage.ErrDuplicateForDate
	}
	for id, other := range t.appts {
		if !taken(id) {
			continue
		}
		if other.SlotID == appt.SlotID {
			return storage.ErrSlotTaken
		}
		if appointmentDay(other) == day {
			return storage.ErrDuplicateForDate
		}
	}
	return nil
}

func (t *tx) LockAppointment(ctx context.Context, id string) (model.Appointment, error) {
	if err := t.lock(ctx, storage.LockKey("appointment", id)); err != nil {
		return model.Appointment{}, err
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	a, ok := t.appt(id)
	if !ok {
		return model.Appointment{}, storage.ErrNotFound
	}
	return a, nil
}

func (t *tx) UpdateAppointmentStatus(_ context.Context, id string, status model.Status, at time.Time) error {
	t.s.mu.RLock()
	a, ok := t.appt(id)
	t.s.mu.RUnlock()
	if !ok {
		return storage.ErrNotFound
	}
	a.Status = status
	a.UpdatedAt = at
	t.appts[id] = a
	return nil
}

func (t *tx) AddEvent(_ context.Context, evt outbox.Event) error {
	t.events = append(t.events, evt)
	return nil
}

// commit re-checks the invariants against the latest committed state and
// applies the staged writes in one step.
func (s *Store) commit(t *tx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range t.createdSlots {
		slot, ok := t.slot(id)
		if !ok {
			continue
		}
		if overlapsDay(t.daySlots(slot.ProviderID, slot.Date), slot) {
			return storage.ErrSlotOverlap
		}
	}
	for _, id := range t.insertedAppt {
		if err := t.checkActive(t.appts[id]); err != nil {
			return err
		}
	}

	for id, p := range t.slots {
		if p == nil {
			if old, ok := s.slots[id]; ok {
				delete(s.byDay[dayOf(old.ProviderID, old.Date)], id)
				delete(s.slots, id)
			}
			continue
		}
		key := dayOf(p.ProviderID, p.Date)
		if s.byDay[key] == nil {
			s.byDay[key] = make(map[string]struct{})
		}
		s.byDay[key][id] = struct{}{}
		s.slots[id] = *p
	}

	for id, a := range t.appts {
		slotKey := a.SlotID
		reqKey := appointmentDay(a)
		if a.Status.Active() {
			s.activeBySlot[slotKey] = id
			s.activeByDay[reqKey] = id
		} else {
			if s.activeBySlot[slotKey] == id {
				delete(s.activeBySlot, slotKey)
			}
			if s.activeByDay[reqKey] == id {
				delete(s.activeByDay, reqKey)
			}
		}
		s.appts[id] = a
	}

	now := time.Now().UTC()
	for _, evt := range t.events {
		s.events = append(s.events, outbox.Record{
			ID:        int64(len(s.events) + 1),
			Event:     evt,
			CreatedAt: now,
		})
	}
	return nil
}
