package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Caller-recoverable outcomes of the hold and booking operations.
var (
	ErrSeatUnavailable = errors.New("seat unavailable")
	ErrUnknownSeats    = errors.New("unknown seats")
	ErrConflict        = errors.New("concurrent update conflict")
	ErrHoldNotFound    = errors.New("hold not found")
	ErrHoldExpired     = errors.New("hold expired")
	ErrPaymentFailed   = errors.New("payment failed")
	ErrBookingNotFound = errors.New("booking not found")
	ErrEventNotFound   = errors.New("event not found")
	ErrEventExists     = errors.New("event seats already exist")
	ErrInvalidInput    = errors.New("invalid input")
)

// SeatUnavailableError lists the requested seats that could not be claimed.
type SeatUnavailableError struct {
	SeatKeys []string
}

func (e *SeatUnavailableError) Error() string {
	return fmt.Sprintf("seats not available: %s", strings.Join(e.SeatKeys, ", "))
}

func (e *SeatUnavailableError) Is(target error) bool {
	return target == ErrSeatUnavailable
}

// UnknownSeatsError lists requested seat keys that do not exist for the event.
type UnknownSeatsError struct {
	SeatKeys []string
}

func (e *UnknownSeatsError) Error() string {
	return fmt.Sprintf("seats do not exist for this event: %s", strings.Join(e.SeatKeys, ", "))
}

func (e *UnknownSeatsError) Is(target error) bool {
	return target == ErrUnknownSeats
}

// Invalid wraps ErrInvalidInput with a reason.
func Invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
