package service

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	// ErrSeatUnavailable is returned when a requested seat is not in the
	// status an operation needs, e.g. locking a seat someone else holds.
	ErrSeatUnavailable = errors.New("seat unavailable")

	// ErrInvalidStateTransition is returned for a booking or seat move
	// the state machine does not allow, e.g. cancelling twice.
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrInvalidInput is returned for requests that fail validation.
	ErrInvalidInput = errors.New("invalid input")
)

// SeatUnavailableError lists the show seats that blocked an operation.
// It matches ErrSeatUnavailable under errors.Is.
type SeatUnavailableError struct {
	IDs []uint64
}

func (e *SeatUnavailableError) Error() string {
	return fmt.Sprintf("seat unavailable: %v", e.IDs)
}

func (e *SeatUnavailableError) Is(target error) bool { return target == ErrSeatUnavailable }

// UnavailableSeats extracts the offending ids from err, if any.
func UnavailableSeats(err error) []uint64 {
	var su *SeatUnavailableError
	if errors.As(err, &su) {
		return su.IDs
	}
	return nil
}
