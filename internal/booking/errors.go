package booking

import (
	"errors"
	"strings"
)

var (
	// ErrIncompleteBooking is returned when Save is called without all five fields
	ErrIncompleteBooking = errors.New("booking: incomplete booking data")

	// ErrNotFound is returned when no booking has the requested id
	ErrNotFound = errors.New("booking: not found")

	// ErrInvalidStatus is returned for a status outside the canonical set
	ErrInvalidStatus = errors.New("booking: invalid status")

	// ErrNoOpUpdate is returned when an update carries no recognized fields
	ErrNoOpUpdate = errors.New("booking: update has no recognized fields")

	// ErrBlankField is returned when an update would empty a required field
	ErrBlankField = errors.New("booking: field cannot be blank")
)

// IncompleteBookingError names the fields that were missing or blank.
type IncompleteBookingError struct {
	Missing []Field
}

func (e *IncompleteBookingError) Error() string {
	labels := make([]string, 0, len(e.Missing))
	for _, f := range e.Missing {
		labels = append(labels, f.Label())
	}
	return ErrIncompleteBooking.Error() + ": missing " + strings.Join(labels, ", ")
}

// Is lets errors.Is(err, ErrIncompleteBooking) match.
func (e *IncompleteBookingError) Is(target error) bool {
	return target == ErrIncompleteBooking
}
