package postgres

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/storage"
)

func TestMapError(t *testing.T) {
	cases := []struct {
		name string
		in   error
		want error
	}{
		{"no rows", pgx.ErrNoRows, storage.ErrNotFound},
		{"exclusion", &pgconn.PgError{Code: "23P01", ConstraintName: "slots_no_overlap"}, storage.ErrSlotOverlap},
		{"lock timeout", fmt.Errorf("exec: %w", &pgconn.PgError{Code: "55P03"}), storage.ErrLockTimeout},
		{"active slot", &pgconn.PgError{Code: "23505", ConstraintName: constraintActiveSlot}, storage.ErrSlotTaken},
		{"requester day", &pgconn.PgError{Code: "23505", ConstraintName: constraintActiveRequesterDay}, storage.ErrDuplicateForDate},
		{"slot length", &pgconn.PgError{Code: "23514", ConstraintName: constraintSlotLength}, storage.ErrInvalidSlot},
	}
	for _, tc := range cases {
		if got := mapError(tc.in); !errors.Is(got, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}

	other := &pgconn.PgError{Code: "23505", ConstraintName: "outbox_events_event_id_key"}
	got := mapError(other)
	if errors.Is(got, storage.ErrSlotTaken) || errors.Is(got, storage.ErrDuplicateForDate) {
		t.Fatalf("unrelated unique violation mapped: %v", got)
	}
	var pgErr *pgconn.PgError
	if !errors.As(mapError(&pgconn.PgError{Code: "55P03"}), &pgErr) {
		t.Fatal("driver error must stay in the chain")
	}
	if mapError(nil) != nil {
		t.Fatal("nil must stay nil")
	}
}

func TestMigrationsAreOrderedAndDeclareConstraints(t *testing.T) {
	files, err := migrationFiles()
	if err != nil {
		t.Fatalf("migrationFiles failed: %v", err)
	}
	if len(files) < 3 || files[0] != "0001_slots.sql" {
		t.Fatalf("unexpected migrations %v", files)
	}

	var all strings.Builder
	for _, f := range files {
		b, err := migrations.ReadFile("migrations/" + f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		all.Write(b)
	}
	if !strings.Contains(all.String(), "(requester_kind, requester_id, provider_id, slot_date)") {
		t.Fatal("per-day index must be scoped by requester kind")
	}
	for _, name := range []string{"slots_no_overlap", constraintSlotLength, constraintActiveSlot, constraintActiveRequesterDay, "outbox_events"} {
		if !strings.Contains(all.String(), name) {
			t.Fatalf("migrations do not declare %s", name)
		}
	}
}
