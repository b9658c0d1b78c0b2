package model

import (
	"testing"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/apperr"
)

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusScheduled, StatusCompleted, true},
		{StatusScheduled, StatusCancelled, true},
		{StatusScheduled, StatusScheduled, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusCompleted, false},
		{StatusCancelled, StatusScheduled, false},
		{StatusCompleted, StatusScheduled, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.ok {
			t.Fatalf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.ok, got)
		}
	}
}

func TestAppointmentTransitionFromCancelledFails(t *testing.T) {
	now := time.Date(2026, 10, 21, 12, 0, 0, 0, time.UTC)
	a := Appointment{ID: "a1", Status: StatusCancelled, UpdatedAt: now.Add(-time.Hour)}
	err := a.Transition(StatusCompleted, now)
	if !apperr.IsKind(err, apperr.KindState) {
		t.Fatalf("expected state error, got %v", err)
	}
	if a.Status != StatusCancelled || a.UpdatedAt.Equal(now) {
		t.Fatal("failed transition must not mutate the appointment")
	}

	b := Appointment{ID: "a2", Status: StatusScheduled}
	if err := b.Transition(StatusCompleted, now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Status != StatusCompleted || !b.UpdatedAt.Equal(now) {
		t.Fatalf("unexpected appointment %+v", b)
	}
}

func TestCivilAndClock(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	// 23:30 UTC on the 19th is already the 20th in UTC+3.
	got := Civil(time.Date(2026, 10, 19, 23, 30, 0, 0, time.UTC).In(loc))
	if !got.Equal(time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected civil date %s", got)
	}

	clock, err := ParseClock("09:30")
	if err != nil || clock != 9*time.Hour+30*time.Minute {
		t.Fatalf("unexpected clock %s (%v)", clock, err)
	}
	if _, err := ParseClock("9.30"); err == nil {
		t.Fatal("expected parse error")
	}
	if at := At(got, clock); at.Hour() != 9 || at.Minute() != 30 || at.Day() != 20 {
		t.Fatalf("unexpected combined time %s", at)
	}
}

func TestAppointmentOrdering(t *testing.T) {
	d1 := time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 0, 1)
	early := Appointment{ID: "b", SlotDate: d1, StartTime: d1.Add(9 * time.Hour)}
	late := Appointment{ID: "a", SlotDate: d1, StartTime: d1.Add(10 * time.Hour)}
	nextDay := Appointment{ID: "c", SlotDate: d2, StartTime: d2.Add(8 * time.Hour)}
	if !early.Before(late) || !late.Before(nextDay) || nextDay.Before(early) {
		t.Fatal("ordering must follow (date, start)")
	}
}
