package service

import (
	"errors"
	"fmt"
)

// Kind is the failure taxonomy shared by every operation. The HTTP layer
// maps each kind to exactly one status code.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindForbidden
	KindConflict
	KindValidation
	KindUpstream
	KindUnauthorized
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindValidation:
		return "validation_failed"
	case KindUpstream:
		return "upstream_unavailable"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "internal"
	}
}

// Error is a classified failure. Code is stable and machine readable;
// Message is safe to show to the user.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Code so a wrapped copy still compares equal to its sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

var (
	ErrRideNotFound = newError(KindNotFound, "ride_not_found", "ride not found")
	ErrUserNotFound = newError(KindNotFound, "user_not_found", "user not found")
	ErrRoomNotFound = newError(KindNotFound, "room_not_found", "chat not found")

	ErrAlreadyCompleted = newError(KindConflict, "ride_already_completed", "ride is already completed")
	ErrNoSeatsAvailable = newError(KindConflict, "no_seats_available", "no seats available")
	ErrAlreadyJoined    = newError(KindConflict, "already_joined", "you have already joined this ride")
	ErrNotCompleted     = newError(KindConflict, "ride_not_completed", "ride has not been completed yet")
	ErrDuplicateRating  = newError(KindConflict, "duplicate_rating", "you have already rated this ride")
	ErrEmailTaken       = newError(KindConflict, "email_taken", "email already registered")

	ErrNotDriver        = newError(KindForbidden, "not_ride_driver", "only the driver can do this")
	ErrSelfRating       = newError(KindForbidden, "driver_cannot_rate_own_ride", "drivers cannot rate their own ride")
	ErrNotPassenger     = newError(KindForbidden, "not_a_passenger", "only passengers of this ride can rate it")
	ErrDriverCannotJoin = newError(KindForbidden, "driver_cannot_join_own_ride", "drivers cannot join their own ride")
	ErrNotParticipant   = newError(KindForbidden, "not_room_participant", "you are not part of this chat")
	ErrWrongPassword    = newError(KindForbidden, "current_password_incorrect", "current password is incorrect")

	ErrInvalidCredentials = newError(KindUnauthorized, "invalid_credentials", "invalid email or password")
)

// Validation builds a KindValidation error for one bad field.
func Validation(code, msg string) error {
	return newError(KindValidation, code, msg)
}

// Upstream classifies an unexpected failure of a store or provider. Errors
// that are already classified pass through untouched.
func Upstream(op string, err error) error {
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{
		Kind:    KindUpstream,
		Code:    "upstream_unavailable",
		Message: "service temporarily unavailable",
		Err:     fmt.Errorf("%s: %w", op, err),
	}
}

// KindOf reports the kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}
