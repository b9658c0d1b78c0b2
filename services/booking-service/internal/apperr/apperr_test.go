package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestKindSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("book slot s1: %w", Conflict(ReasonAlreadyBooked, "slot already booked"))
	if !IsKind(err, KindConflict) {
		t.Fatalf("expected conflict, got %q", KindOf(err))
	}
	if !IsConflict(err, ReasonAlreadyBooked) || IsConflict(err, ReasonDuplicateForDate) {
		t.Fatal("reason matching is wrong")
	}

	var e *Error
	if !errors.As(err, &e) || e.Code() != ReasonAlreadyBooked {
		t.Fatalf("unexpected code %v", e)
	}
}

func TestTimeoutUnwrapsCause(t *testing.T) {
	err := Timeout("slot lock wait exceeded", context.DeadlineExceeded)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("timeout should unwrap to its cause")
	}
	if KindOf(errors.New("plain")) != "" {
		t.Fatal("plain errors have no kind")
	}
}
