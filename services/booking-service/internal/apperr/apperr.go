// Package apperr is the error taxonomy shared by the slot generator, the
// booking coordinator and the transports that map it to status codes.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindState      Kind = "state"
	KindTimeout    Kind = "timeout"
	KindForbidden  Kind = "forbidden"
)

// Conflict reasons.
const (
	ReasonAlreadyBooked    = "already_booked"
	ReasonDuplicateForDate = "duplicate_for_date"
	ReasonSlotBooked       = "slot_booked"
)

type Error struct {
	Kind    Kind
	Reason  string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Code is the machine readable identifier surfaced to clients.
func (e *Error) Code() string {
	if e.Reason != "" {
		return e.Reason
	}
	return string(e.Kind)
}

func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Conflict(reason, msg string) error {
	return &Error{Kind: KindConflict, Reason: reason, Message: msg}
}

func State(format string, args ...any) error {
	return &Error{Kind: KindState, Message: fmt.Sprintf(format, args...)}
}

func Timeout(msg string, cause error) error {
	return &Error{Kind: KindTimeout, Message: msg, Err: cause}
}

func Forbidden(format string, args ...any) error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// IsConflict reports a conflict; with a reason it also has to match.
func IsConflict(err error, reason string) bool {
	var e *Error
	if !errors.As(err, &e) || e.Kind != KindConflict {
		return false
	}
	return reason == "" || e.Reason == reason
}
